// Package auth implements the web session layer: a single shared password
// gates mutating endpoints, and successful logins receive a short-lived
// signed session token carried in a cookie.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrTokenInvalid is returned for tokens that fail signature, expiry or
// shape checks.
var ErrTokenInvalid = errors.New("auth: invalid token")

const defaultTTL = 12 * time.Hour

// Sessions issues and verifies web session tokens. Tokens are stateless;
// logout is cookie deletion on the client side.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

// NewSessions creates a session issuer. A zero ttl takes the default.
func NewSessions(secret string, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Sessions{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured session lifetime.
func (s *Sessions) TTL() time.Duration { return s.ttl }

// Issue creates a signed session token and returns it with its expiry.
func (s *Sessions) Issue() (string, time.Time, error) {
	now := time.Now()
	expiry := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   "web",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiry),
		ID:        uuid.NewString(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session token: %w", err)
	}
	return signed, expiry, nil
}

// Verify checks a session token's signature and expiry.
func (s *Sessions) Verify(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return ErrTokenInvalid
	}
	if claims.Subject != "web" {
		return fmt.Errorf("%w: unexpected subject", ErrTokenInvalid)
	}
	return nil
}

// CheckPassword compares a presented password against the configured one in
// constant time. Both sides are hashed first so length leaks nothing.
func CheckPassword(configured, presented string) bool {
	if configured == "" {
		return false
	}
	want := sha256.Sum256([]byte(configured))
	got := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(want[:], got[:]) == 1
}
