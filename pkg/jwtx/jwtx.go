// Package jwtx wraps golang-jwt with the claim shape and signing policy
// used across the service: HS256 with a shared secret, a random jti on
// every token, and issuer/expiry validation on parse.
package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Short-lived access tokens, longer refresh window.
const (
	DefaultAccessTokenTTL  = 30 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

var (
	ErrInvalidToken = errors.New("jwtx: invalid token")
	ErrExpiredToken = errors.New("jwtx: token expired")
)

// Claims are the access-token claims. Additive changes only, downstream
// services decode these.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the authenticated user.
	Email string `json:"email,omitempty"`

	// SID is the session ID that persists across token refreshes.
	SID string `json:"sid,omitempty"`
}

// NewAccessClaims builds minimally-correct claims with a fresh jti.
func NewAccessClaims(subject, email, sid, issuer string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Email: email,
		SID:   sid,
	}
}

// RemainingLife returns the duration until the token expires, measured
// from now. Zero or negative means the token is already expired.
func (c Claims) RemainingLife(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in no state to
		// mint credentials at all.
		panic(fmt.Sprintf("jwtx: failed to generate jti: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// Signer signs and parses HS256 access tokens with a shared secret.
type Signer struct {
	secret []byte
	issuer string
}

func NewSigner(secret []byte, issuer string) (*Signer, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwtx: signing secret must be at least 32 bytes")
	}
	if issuer == "" {
		return nil, errors.New("jwtx: issuer is required")
	}
	return &Signer{secret: secret, issuer: issuer}, nil
}

// Issuer returns the issuer this signer stamps and requires.
func (s *Signer) Issuer() string { return s.issuer }

// Sign produces a compact HS256 JWT for the given claims.
func (s *Signer) Sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse validates signature, algorithm, issuer and expiry, and returns
// the embedded claims.
func (s *Signer) Parse(raw string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return s.secret, nil
		},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, ErrInvalidToken
	}
	if !token.Valid || claims.ID == "" || claims.Subject == "" {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
