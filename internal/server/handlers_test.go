package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adminstyler/adminstyler/internal/config"
	"github.com/adminstyler/adminstyler/internal/logging"
	"github.com/adminstyler/adminstyler/internal/security"
)

type fakeStore struct {
	mutex     sync.Mutex
	values    map[string]string
	saveCalls int
	loadErr   error
	saveErr   error
}

func (fs *fakeStore) Load(ctx context.Context) (map[string]string, error) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	if fs.loadErr != nil {
		return nil, fs.loadErr
	}
	out := make(map[string]string, len(fs.values))
	for k, v := range fs.values {
		out[k] = v
	}
	return out, nil
}

func (fs *fakeStore) Save(ctx context.Context, values map[string]string) error {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	fs.saveCalls++
	if fs.saveErr != nil {
		return fs.saveErr
	}
	for k, v := range values {
		fs.values[k] = v
	}
	return nil
}

func (fs *fakeStore) saves() int {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	return fs.saveCalls
}

type testEnv struct {
	server   *Server
	handler  http.Handler
	store    *fakeStore
	nonces   *security.NonceService
	sessions *security.SessionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           8090,
			Host:           "localhost",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:8090"},
		},
		Security: config.SecurityConfig{
			Secret:           "test-secret",
			RateLimitEnabled: false,
		},
		Preview: config.PreviewConfig{Debounce: 25 * time.Millisecond},
	}

	nonces := security.NewNonceService(cfg.Security.Secret, time.Minute)
	sessions := security.NewSessionService(cfg.Security.Secret, time.Hour)
	caps := security.DefaultRoles()
	gate := security.NewGate(nonces, caps, security.CapManageOptions, logging.NopLogger{})
	store := &fakeStore{values: map[string]string{}}

	srv := New(cfg, Dependencies{
		Logger:       logging.NopLogger{},
		Store:        store,
		Nonces:       nonces,
		Sessions:     sessions,
		Capabilities: caps,
		Gate:         gate,
	})

	return &testEnv{
		server:   srv,
		handler:  srv.Handler(),
		store:    store,
		nonces:   nonces,
		sessions: sessions,
	}
}

func (env *testEnv) sessionFor(t *testing.T, roles ...string) string {
	t.Helper()
	token, err := env.sessions.Issue(security.Principal{ID: "tester", Roles: roles})
	require.NoError(t, err)
	return token
}

func (env *testEnv) nonceFor(t *testing.T, action string) string {
	t.Helper()
	nonce, err := env.nonces.Issue(action)
	require.NoError(t, err)
	return nonce
}

func (env *testEnv) do(t *testing.T, method, path, session string, body any) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if session != "" {
		req.Header.Set("Authorization", "Bearer "+session)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	var parsed apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed),
		"body: %s", rec.Body.String())
	return rec, parsed
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, out.Success)
}

func TestPreviewCSSGeneratesOrderedRules(t *testing.T) {
	env := newTestEnv(t)
	session := env.sessionFor(t, "administrator")

	_, out := env.do(t, http.MethodPost, "/api/preview-css", session, styleRequest{
		Nonce: env.nonceFor(t, security.ActionPreviewCSS),
		Settings: map[string]string{
			"menu_bg_color": "#2c3e50",
			"menu_width":    "200",
		},
	})

	require.True(t, out.Success)
	require.NotNil(t, out.Data)
	assert.Equal(t,
		"#adminmenu { background-color: #2C3E50 !important; }\n"+
			"#adminmenu { width: 200px !important; }\n",
		out.Data.CSS)
	assert.Empty(t, out.Data.Errors)
}

func TestPreviewCSSReportsInvalidFields(t *testing.T) {
	env := newTestEnv(t)
	session := env.sessionFor(t, "administrator")

	_, out := env.do(t, http.MethodPost, "/api/preview-css", session, styleRequest{
		Nonce: env.nonceFor(t, security.ActionPreviewCSS),
		Settings: map[string]string{
			"menu_bg_color": "#2c3e50",
			"menu_width":    "999",
		},
	})

	require.True(t, out.Success)
	require.NotNil(t, out.Data)
	assert.Equal(t, "#adminmenu { background-color: #2C3E50 !important; }\n", out.Data.CSS)
	require.Len(t, out.Data.Errors, 1)
	assert.Equal(t, "menu_width", out.Data.Errors[0].Key)
	assert.Equal(t, "out of range", out.Data.Errors[0].Reason)
}

func TestPreviewCSSRejectsBadNonce(t *testing.T) {
	env := newTestEnv(t)
	session := env.sessionFor(t, "administrator")

	rec, out := env.do(t, http.MethodPost, "/api/preview-css", session, styleRequest{
		Nonce:    "garbage",
		Settings: map[string]string{"menu_width": "200"},
	})

	// Security failures still answer 200 so the page can read the code.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, out.Success)
	require.NotNil(t, out.Error)
	assert.Equal(t, "nonce", out.Error.Code)
	assert.Equal(t, "security token expired", out.Error.Message)
}

func TestPreviewCSSRejectsNonceForOtherAction(t *testing.T) {
	env := newTestEnv(t)
	session := env.sessionFor(t, "administrator")

	_, out := env.do(t, http.MethodPost, "/api/preview-css", session, styleRequest{
		Nonce:    env.nonceFor(t, security.ActionSaveSettings),
		Settings: map[string]string{"menu_width": "200"},
	})

	assert.False(t, out.Success)
	require.NotNil(t, out.Error)
	assert.Equal(t, "nonce", out.Error.Code)
}

func TestSaveRequiresCapability(t *testing.T) {
	env := newTestEnv(t)
	session := env.sessionFor(t, "editor")

	_, out := env.do(t, http.MethodPost, "/api/settings", session, styleRequest{
		Nonce:    env.nonceFor(t, security.ActionSaveSettings),
		Settings: map[string]string{"menu_width": "200"},
	})

	assert.False(t, out.Success)
	require.NotNil(t, out.Error)
	assert.Equal(t, "capability", out.Error.Code)
	assert.Equal(t, "insufficient permissions", out.Error.Message)
	assert.Zero(t, env.store.saves(), "rejected request must not touch the store")
}

func TestSaveRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	_, out := env.do(t, http.MethodPost, "/api/settings", "", styleRequest{
		Nonce:    env.nonceFor(t, security.ActionSaveSettings),
		Settings: map[string]string{"menu_width": "200"},
	})

	assert.False(t, out.Success)
	require.NotNil(t, out.Error)
	assert.Equal(t, "capability", out.Error.Code)
}

func TestSaveSettingsPersistsValidSubset(t *testing.T) {
	env := newTestEnv(t)
	session := env.sessionFor(t, "administrator")

	_, out := env.do(t, http.MethodPost, "/api/settings", session, styleRequest{
		Nonce: env.nonceFor(t, security.ActionSaveSettings),
		Settings: map[string]string{
			"menu_bg_color": "#2c3e50",
			"menu_width":    "oops",
		},
	})

	require.True(t, out.Success)
	require.NotNil(t, out.Data)
	assert.Equal(t, "#2C3E50", env.store.values["menu_bg_color"])
	_, stored := env.store.values["menu_width"]
	assert.False(t, stored, "invalid value must not be persisted")
	require.Len(t, out.Data.Errors, 1)
	assert.Equal(t, "menu_width", out.Data.Errors[0].Key)
	assert.Contains(t, out.Data.CSS, "background-color: #2C3E50")
}

func TestSaveSettingsRegeneratesFromStoredState(t *testing.T) {
	env := newTestEnv(t)
	env.store.values["menu_width"] = "200"
	session := env.sessionFor(t, "administrator")

	_, out := env.do(t, http.MethodPost, "/api/settings", session, styleRequest{
		Nonce:    env.nonceFor(t, security.ActionSaveSettings),
		Settings: map[string]string{"menu_bg_color": "#2c3e50"},
	})

	require.True(t, out.Success)
	require.NotNil(t, out.Data)
	// The broadcast stylesheet covers previously stored settings too.
	assert.Contains(t, out.Data.CSS, "width: 200px")
	assert.Contains(t, out.Data.CSS, "background-color: #2C3E50")
}

func TestGetSettingsRequiresCapability(t *testing.T) {
	env := newTestEnv(t)

	_, out := env.do(t, http.MethodGet, "/api/settings", "", nil)
	assert.False(t, out.Success)
	require.NotNil(t, out.Error)
	assert.Equal(t, "capability", out.Error.Code)
}

func TestGetSettingsReturnsStoredValues(t *testing.T) {
	env := newTestEnv(t)
	env.store.values["menu_width"] = "200"
	session := env.sessionFor(t, "administrator")

	_, out := env.do(t, http.MethodGet, "/api/settings", session, nil)
	require.True(t, out.Success)
	require.NotNil(t, out.Data)
	assert.Equal(t, "200", out.Data.Settings["menu_width"])
	assert.Contains(t, out.Data.CSS, "width: 200px")
}

func TestNonceRefreshIssuesVerifiableToken(t *testing.T) {
	env := newTestEnv(t)
	session := env.sessionFor(t, "administrator")

	_, out := env.do(t, http.MethodPost, "/api/nonce", session, nonceRequest{
		Action: security.ActionPreviewCSS,
	})

	require.True(t, out.Success)
	require.NotNil(t, out.Data)
	require.NotEmpty(t, out.Data.Nonce)
	assert.NoError(t, env.nonces.Verify(out.Data.Nonce, security.ActionPreviewCSS))
	assert.Error(t, env.nonces.Verify(out.Data.Nonce, security.ActionSaveSettings))
}

func TestNonceRefreshRejectsUnknownAction(t *testing.T) {
	env := newTestEnv(t)
	session := env.sessionFor(t, "administrator")

	_, out := env.do(t, http.MethodPost, "/api/nonce", session, nonceRequest{
		Action: "drop_tables",
	})

	assert.False(t, out.Success)
	require.NotNil(t, out.Error)
	assert.Equal(t, "nonce", out.Error.Code)
}

func TestNonceRefreshRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	_, out := env.do(t, http.MethodPost, "/api/nonce", "", nonceRequest{
		Action: security.ActionPreviewCSS,
	})

	assert.False(t, out.Success)
	require.NotNil(t, out.Error)
	assert.Equal(t, "capability", out.Error.Code)
}

func TestPreviewCSSRejectsWrongMethod(t *testing.T) {
	env := newTestEnv(t)

	rec, out := env.do(t, http.MethodGet, "/api/preview-css", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.False(t, out.Success)
}

func TestMalformedBodyRejected(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/preview-css", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndexServesAdminPage(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Admin Styler")
	assert.Contains(t, body, "menu_bg_color")
	assert.Contains(t, body, "preview-style")
}

func TestIndexUnknownPathIs404(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
