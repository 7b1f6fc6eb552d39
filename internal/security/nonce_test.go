package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonceIssueAndVerify(t *testing.T) {
	svc := NewNonceService("test-secret", time.Minute)

	nonce, err := svc.Issue(ActionPreviewCSS)
	require.NoError(t, err)
	require.NotEmpty(t, nonce)

	assert.NoError(t, svc.Verify(nonce, ActionPreviewCSS))
}

func TestNonceActionScoped(t *testing.T) {
	svc := NewNonceService("test-secret", time.Minute)

	nonce, err := svc.Issue(ActionPreviewCSS)
	require.NoError(t, err)

	err = svc.Verify(nonce, ActionSaveSettings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "action mismatch")
}

func TestNonceExpiry(t *testing.T) {
	svc := NewNonceService("test-secret", time.Minute)

	current := time.Now()
	svc.now = func() time.Time { return current }

	nonce, err := svc.Issue(ActionPreviewCSS)
	require.NoError(t, err)
	require.NoError(t, svc.Verify(nonce, ActionPreviewCSS))

	// Move past the rotating window.
	svc.now = func() time.Time { return current.Add(2 * time.Minute) }
	assert.Error(t, svc.Verify(nonce, ActionPreviewCSS))
}

func TestNonceWrongSecret(t *testing.T) {
	issuer := NewNonceService("secret-a", time.Minute)
	verifier := NewNonceService("secret-b", time.Minute)

	nonce, err := issuer.Issue(ActionPreviewCSS)
	require.NoError(t, err)

	assert.Error(t, verifier.Verify(nonce, ActionPreviewCSS))
}

func TestNonceGarbageToken(t *testing.T) {
	svc := NewNonceService("test-secret", time.Minute)
	assert.Error(t, svc.Verify("not-a-token", ActionPreviewCSS))
	assert.Error(t, svc.Verify("", ActionPreviewCSS))
}

func TestNonceZeroTTLUsesDefault(t *testing.T) {
	svc := NewNonceService("test-secret", 0)
	assert.Equal(t, DefaultNonceTTL, svc.ttl)
}

func TestSessionRoundTrip(t *testing.T) {
	svc := NewSessionService("test-secret", time.Hour)

	issued := Principal{ID: "admin", Roles: []string{"administrator"}}
	token, err := svc.Issue(issued)
	require.NoError(t, err)

	got, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, got.ID)
	assert.Equal(t, issued.Roles, got.Roles)
}

func TestSessionExpired(t *testing.T) {
	svc := NewSessionService("test-secret", time.Hour)

	current := time.Now()
	svc.now = func() time.Time { return current }
	token, err := svc.Issue(Principal{ID: "admin", Roles: []string{"administrator"}})
	require.NoError(t, err)

	svc.now = func() time.Time { return current.Add(2 * time.Hour) }
	_, err = svc.Verify(token)
	assert.Error(t, err)
}

func TestSessionInvalidToken(t *testing.T) {
	svc := NewSessionService("test-secret", time.Hour)
	_, err := svc.Verify("garbage")
	assert.Error(t, err)
}
