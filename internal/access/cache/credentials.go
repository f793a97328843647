package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sproutcrm/tenantcore/pkg/slogx"
)

// CredentialStore keeps the volatile credential state: opaque refresh
// tokens keyed by session, the access-token denylist, and single-use
// flow tokens. Every operation degrades gracefully: a backend outage is
// logged and answered with a safe fallback instead of an error, so an
// unavailable cache slows users down (forced re-login, retried flows)
// but never takes the service down.
type CredentialStore struct {
	client Client
}

// revokedMarker is the value stored under a denylisted jti. The value is
// never read back for content, only for presence.
const revokedMarker = "revoked"

func NewCredentialStore(client Client) *CredentialStore {
	return &CredentialStore{client: client}
}

// StoreRefreshToken saves the refresh token for (user, session) with the
// session's remaining lifetime. Returns false when the backend is down.
func (s *CredentialStore) StoreRefreshToken(ctx context.Context, userID, sessionID, token string, ttl time.Duration) bool {
	if err := s.client.Set(ctx, refreshKey(userID, sessionID), token, ttl); err != nil {
		s.degraded(ctx, "store_refresh_token", err)
		return false
	}
	return true
}

// GetRefreshToken returns the stored token for an exact (user, session)
// pair. Lookup is always fully qualified; there is no wildcard read.
func (s *CredentialStore) GetRefreshToken(ctx context.Context, userID, sessionID string) (string, bool) {
	val, err := s.client.Get(ctx, refreshKey(userID, sessionID))
	if errors.Is(err, ErrMiss) {
		return "", false
	}
	if err != nil {
		s.degraded(ctx, "get_refresh_token", err)
		return "", false
	}
	return val, true
}

// RevokeSession removes a single session's refresh token.
func (s *CredentialStore) RevokeSession(ctx context.Context, userID, sessionID string) bool {
	if err := s.client.Del(ctx, refreshKey(userID, sessionID)); err != nil {
		s.degraded(ctx, "revoke_session", err)
		return false
	}
	return true
}

// RevokeAllSessions removes every refresh token a user holds, across all
// sessions. Used for logout-everywhere and password resets.
func (s *CredentialStore) RevokeAllSessions(ctx context.Context, userID string) int {
	keys, err := s.client.Keys(ctx, refreshUserPattern(userID))
	if err != nil {
		s.degraded(ctx, "revoke_all_sessions", err)
		return 0
	}
	if len(keys) == 0 {
		return 0
	}
	if err := s.client.Del(ctx, keys...); err != nil {
		s.degraded(ctx, "revoke_all_sessions", err)
		return 0
	}
	return len(keys)
}

// DenyJTI marks an access token id as revoked for the token's remaining
// life. After the TTL lapses the token has expired on its own and the
// entry is no longer needed.
func (s *CredentialStore) DenyJTI(ctx context.Context, jti string, remaining time.Duration) bool {
	if remaining <= 0 {
		return true // already expired, nothing to deny
	}
	if err := s.client.Set(ctx, denyKey(jti), revokedMarker, remaining); err != nil {
		s.degraded(ctx, "deny_jti", err)
		return false
	}
	return true
}

// IsJTIDenied reports whether an access token id has been revoked. A
// backend outage answers false: an unreachable denylist must not lock
// every valid token out of the service.
func (s *CredentialStore) IsJTIDenied(ctx context.Context, jti string) bool {
	_, err := s.client.Get(ctx, denyKey(jti))
	if err == nil {
		return true
	}
	if !errors.Is(err, ErrMiss) {
		s.degraded(ctx, "is_jti_denied", err)
	}
	return false
}

// StoreOAuthState saves a CSRF state nonce for an in-flight OAuth flow.
func (s *CredentialStore) StoreOAuthState(ctx context.Context, state, payload string, ttl time.Duration) bool {
	if err := s.client.Set(ctx, oauthStateKey(state), payload, ttl); err != nil {
		s.degraded(ctx, "store_oauth_state", err)
		return false
	}
	return true
}

// TakeOAuthState atomically consumes a state nonce. A second take of the
// same state misses, which is what defeats replay.
func (s *CredentialStore) TakeOAuthState(ctx context.Context, state string) (string, bool) {
	return s.take(ctx, "take_oauth_state", oauthStateKey(state))
}

// StorePasswordReset saves a password-reset token fingerprint.
func (s *CredentialStore) StorePasswordReset(ctx context.Context, fingerprint, userID string, ttl time.Duration) bool {
	if err := s.client.Set(ctx, passwordResetKey(fingerprint), userID, ttl); err != nil {
		s.degraded(ctx, "store_password_reset", err)
		return false
	}
	return true
}

// TakePasswordReset consumes a password-reset token, returning the user
// it was issued to.
func (s *CredentialStore) TakePasswordReset(ctx context.Context, fingerprint string) (string, bool) {
	return s.take(ctx, "take_password_reset", passwordResetKey(fingerprint))
}

// StoreEmailVerification saves an email-verification token fingerprint.
func (s *CredentialStore) StoreEmailVerification(ctx context.Context, fingerprint, userID string, ttl time.Duration) bool {
	if err := s.client.Set(ctx, emailVerifyKey(fingerprint), userID, ttl); err != nil {
		s.degraded(ctx, "store_email_verification", err)
		return false
	}
	return true
}

// TakeEmailVerification consumes an email-verification token.
func (s *CredentialStore) TakeEmailVerification(ctx context.Context, fingerprint string) (string, bool) {
	return s.take(ctx, "take_email_verification", emailVerifyKey(fingerprint))
}

// take wraps the atomic read-and-delete all one-time tokens share.
func (s *CredentialStore) take(ctx context.Context, op, key string) (string, bool) {
	val, err := s.client.GetDel(ctx, key)
	if errors.Is(err, ErrMiss) {
		return "", false
	}
	if err != nil {
		s.degraded(ctx, op, err)
		return "", false
	}
	return val, true
}

// AuditTTLs sweeps the credential key space and drops any key that
// somehow lost its expiry. Every credential key is written with a TTL;
// one without is a leak that would otherwise live forever.
func (s *CredentialStore) AuditTTLs(ctx context.Context) int {
	patterns := []string{"refresh:*", "jti_deny:*", "oauth_state:*", "pwd_reset:*", "email_verify:*"}

	var dropped int
	for _, pattern := range patterns {
		keys, err := s.client.Keys(ctx, pattern)
		if err != nil {
			s.degraded(ctx, "audit_ttls", err)
			return dropped
		}
		for _, key := range keys {
			ttl, err := s.client.TTL(ctx, key)
			if errors.Is(err, ErrMiss) {
				continue
			}
			if err != nil {
				s.degraded(ctx, "audit_ttls", err)
				return dropped
			}
			if ttl < 0 {
				if err := s.client.Del(ctx, key); err != nil {
					s.degraded(ctx, "audit_ttls", err)
					return dropped
				}
				dropped++
			}
		}
	}
	return dropped
}

func (s *CredentialStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

func (s *CredentialStore) degraded(ctx context.Context, op string, err error) {
	slogx.FromContext(ctx).Warn("credential cache degraded",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}
