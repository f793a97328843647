package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()

	s, err := NewSigner([]byte("0123456789abcdef0123456789abcdef"), "issuer-test")
	require.NoError(t, err)
	return s
}

func TestNewSigner(t *testing.T) {
	t.Parallel()

	_, err := NewSigner([]byte("too-short"), "issuer")
	require.Error(t, err)

	_, err = NewSigner([]byte("0123456789abcdef0123456789abcdef"), "")
	require.Error(t, err)
}

func TestSignParseRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	now := time.Now().UTC()

	claims := NewAccessClaims("user-1", "user@example.com", "session-1", s.Issuer(), time.Minute, now)
	raw, err := s.Sign(claims)
	require.NoError(t, err)

	got, err := s.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "user@example.com", got.Email)
	require.Equal(t, "session-1", got.SID)
	require.Equal(t, claims.ID, got.ID)
	require.NotEmpty(t, got.ID)
}

func TestParseRejections(t *testing.T) {
	t.Parallel()

	s := newTestSigner(t)
	now := time.Now().UTC()

	t.Run("expired token", func(t *testing.T) {
		raw, err := s.Sign(NewAccessClaims("u", "", "", s.Issuer(), -time.Minute, now.Add(-time.Hour)))
		require.NoError(t, err)

		_, err = s.Parse(raw)
		require.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewSigner([]byte("0123456789abcdef0123456789abcdef"), "someone-else")
		require.NoError(t, err)

		raw, err := other.Sign(NewAccessClaims("u", "", "", other.Issuer(), time.Minute, now))
		require.NoError(t, err)

		_, err = s.Parse(raw)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewSigner([]byte("ffffffffffffffffffffffffffffffff"), s.Issuer())
		require.NoError(t, err)

		raw, err := other.Sign(NewAccessClaims("u", "", "", s.Issuer(), time.Minute, now))
		require.NoError(t, err)

		_, err = s.Parse(raw)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := s.Parse("not.a.jwt")
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestRemainingLife(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	claims := NewAccessClaims("u", "", "", "iss", time.Minute, now)

	require.Equal(t, time.Minute, claims.RemainingLife(now))
	require.LessOrEqual(t, claims.RemainingLife(now.Add(2*time.Minute)), time.Duration(0))

	require.Zero(t, Claims{}.RemainingLife(now))
}
