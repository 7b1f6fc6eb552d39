// Package security guards the settings pipeline. Every mutating request
// passes two gates in sequence: nonce verification (the token must match
// the requested action and a short rotating time window) and a capability
// check on the requesting principal. Only then may the payload reach the
// sanitizer.
package security

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultNonceTTL is the rotating window a nonce stays valid for
const DefaultNonceTTL = 10 * time.Minute

// NonceService issues and verifies short-lived, action-scoped tokens.
// Tokens are HS256 JWTs carrying the action they authorize; a nonce for
// one action never verifies against another.
type NonceService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewNonceService creates a nonce service with the given signing secret
// and lifetime. A zero ttl falls back to DefaultNonceTTL.
func NewNonceService(secret string, ttl time.Duration) *NonceService {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &NonceService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue creates a nonce scoped to the given action
func (s *NonceService) Issue(action string) (string, error) {
	now := s.now().UTC()
	claims := jwt.MapClaims{
		"action": action,
		"iat":    now.Unix(),
		"exp":    now.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing nonce: %w", err)
	}
	return signed, nil
}

// Verify checks a nonce against the expected action and the current time
// window. The returned error carries the raw reason for server-side
// logging; callers must not forward it to clients.
func (s *NonceService) Verify(tokenString, action string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return fmt.Errorf("parsing nonce: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("invalid nonce token")
	}

	tokenAction, _ := claims["action"].(string)
	if tokenAction != action {
		return fmt.Errorf("nonce action mismatch: issued for %q, used for %q", tokenAction, action)
	}

	return nil
}
