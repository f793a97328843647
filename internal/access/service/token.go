package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sproutcrm/tenantcore/internal/access/cache"
	"github.com/sproutcrm/tenantcore/internal/access/domain"
	"github.com/sproutcrm/tenantcore/internal/access/store"
	"github.com/sproutcrm/tenantcore/pkg/cryptox"
	"github.com/sproutcrm/tenantcore/pkg/jwtx"
	"github.com/sproutcrm/tenantcore/pkg/slogx"
)

// One-time token lifetimes. Short for CSRF states, longer for flows
// that round-trip through email.
const (
	OAuthStateTTL        = 10 * time.Minute
	PasswordResetTTL     = 1 * time.Hour
	EmailVerificationTTL = 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
	ErrTokenRevoked       = errors.New("token_revoked")
	ErrInvalidOneTime     = errors.New("invalid_or_used_token")
	ErrCacheUnavailable   = errors.New("credential_store_unavailable")
)

// TokenService issues, validates, refreshes and revokes credentials.
// Access tokens are signed JWTs verified statelessly plus a denylist
// check; refresh tokens are opaque values that live only in the
// credential store, so losing the store forces re-login rather than
// leaking sessions.
type TokenService struct {
	Signer      *jwtx.Signer
	Store       store.Store
	Credentials *cache.CredentialStore
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return jwtx.DefaultRefreshTokenTTL
}

// Login verifies a password and issues a token pair under a fresh
// session.
func (s *TokenService) Login(ctx context.Context, email, password string) (domain.TokenPair, error) {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn comparable time so missing users are not
			// distinguishable by response latency.
			_ = cryptox.VerifyPassword(password, dummyHash)
			return domain.TokenPair{}, ErrInvalidCredentials
		}
		return domain.TokenPair{}, err
	}

	if user.PasswordHash == "" || cryptox.VerifyPassword(password, user.PasswordHash) != nil {
		log.Info("login failed", slog.String("user_id", user.ID))
		return domain.TokenPair{}, ErrInvalidCredentials
	}

	return s.IssueTokens(ctx, user)
}

// dummyHash is a valid argon2id hash of an unguessable value, used to
// equalize timing on unknown-user login attempts.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=4$c29tZXNhbHRzb21lc2FsdA$RdescudvJCsgt3ub+b+dWRWJTmaaJObG"

// IssueTokens mints an access/refresh pair under a new session for an
// already-authenticated user.
func (s *TokenService) IssueTokens(ctx context.Context, user domain.User) (domain.TokenPair, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	// 1. New session ID ties the pair together across refreshes.
	sessionID := uuid.NewString()

	// 2. Signed access token.
	claims := jwtx.NewAccessClaims(user.ID, user.Email, sessionID, s.Signer.Issuer(), s.accessTTL(), now)
	accessToken, err := s.Signer.Sign(claims)
	if err != nil {
		log.Error("failed to sign access token", slog.Any("error", err))
		return domain.TokenPair{}, err
	}

	// 3. Opaque refresh token, stored server-side only.
	refreshToken, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("failed to generate refresh token", slog.Any("error", err))
		return domain.TokenPair{}, err
	}
	if !s.Credentials.StoreRefreshToken(ctx, user.ID, sessionID, refreshToken, s.refreshTTL()) {
		// Without a stored refresh token the pair would be
		// half-functional; refuse issuance instead.
		return domain.TokenPair{}, ErrCacheUnavailable
	}

	log.Debug("tokens issued",
		slog.String("user_id", user.ID),
		slog.String("session_id", sessionID),
	)

	return domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.accessTTL(),
		SessionID:    sessionID,
	}, nil
}

// Refresh rotates a session's credentials. The presented refresh token
// must match the stored one exactly; a mismatch revokes the session
// outright since it means the token leaked or was already rotated.
func (s *TokenService) Refresh(ctx context.Context, userID, sessionID, refreshToken string) (domain.TokenPair, error) {
	log := slogx.FromContext(ctx)
	now := time.Now().UTC()

	// 1. Look up the stored token for this exact (user, session) pair.
	stored, ok := s.Credentials.GetRefreshToken(ctx, userID, sessionID)
	if !ok {
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	// 2. Constant-time comparison.
	if subtle.ConstantTimeCompare([]byte(stored), []byte(refreshToken)) != 1 {
		log.Warn("refresh token mismatch, revoking session",
			slog.String("user_id", userID),
			slog.String("session_id", sessionID),
		)
		s.Credentials.RevokeSession(ctx, userID, sessionID)
		return domain.TokenPair{}, ErrInvalidRefresh
	}

	// 3. Load the user so the new access token carries current claims.
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.Credentials.RevokeSession(ctx, userID, sessionID)
			return domain.TokenPair{}, ErrInvalidRefresh
		}
		return domain.TokenPair{}, err
	}

	// 4. Rotate: new access token and new refresh token, same session.
	claims := jwtx.NewAccessClaims(user.ID, user.Email, sessionID, s.Signer.Issuer(), s.accessTTL(), now)
	accessToken, err := s.Signer.Sign(claims)
	if err != nil {
		log.Error("failed to sign access token", slog.Any("error", err))
		return domain.TokenPair{}, err
	}

	newRefresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		log.Error("failed to generate refresh token", slog.Any("error", err))
		return domain.TokenPair{}, err
	}
	if !s.Credentials.StoreRefreshToken(ctx, userID, sessionID, newRefresh, s.refreshTTL()) {
		return domain.TokenPair{}, ErrCacheUnavailable
	}

	log.Debug("session refreshed",
		slog.String("user_id", userID),
		slog.String("session_id", sessionID),
	)

	return domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.accessTTL(),
		SessionID:    sessionID,
	}, nil
}

// ValidateAccess parses and verifies an access token, then checks the
// denylist. Signature and expiry are stateless; only revocation needs
// the credential store.
func (s *TokenService) ValidateAccess(ctx context.Context, raw string) (jwtx.Claims, error) {
	claims, err := s.Signer.Parse(raw)
	if err != nil {
		return jwtx.Claims{}, err
	}
	if s.Credentials.IsJTIDenied(ctx, claims.ID) {
		return jwtx.Claims{}, ErrTokenRevoked
	}
	return claims, nil
}

// RevokeAccess denylists an access token for its remaining life and
// drops the session's refresh token. This is the logout path.
func (s *TokenService) RevokeAccess(ctx context.Context, claims jwtx.Claims) {
	now := time.Now().UTC()
	s.Credentials.DenyJTI(ctx, claims.ID, claims.RemainingLife(now))
	if claims.SID != "" {
		s.Credentials.RevokeSession(ctx, claims.Subject, claims.SID)
	}
}

// LogoutEverywhere revokes every session a user holds. The caller's own
// access token should additionally be denylisted via RevokeAccess.
func (s *TokenService) LogoutEverywhere(ctx context.Context, userID string) int {
	n := s.Credentials.RevokeAllSessions(ctx, userID)
	slogx.FromContext(ctx).Info("all sessions revoked",
		slog.String("user_id", userID),
		slog.Int("sessions", n),
	)
	return n
}

// IssuePasswordReset creates a single-use reset token for the account
// behind email. The raw token goes to the user; only its fingerprint is
// stored. Unknown emails succeed silently to avoid account enumeration,
// returning an empty token.
func (s *TokenService) IssuePasswordReset(ctx context.Context, email string) (string, error) {
	log := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", err
	}

	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}
	if !s.Credentials.StorePasswordReset(ctx, cryptox.FingerprintToken(token), user.ID, PasswordResetTTL) {
		return "", ErrCacheUnavailable
	}

	log.Info("password reset issued", slog.String("user_id", user.ID))
	return token, nil
}

// ConsumePasswordReset redeems a reset token and sets the new password.
// The token is consumed atomically, so a second attempt with the same
// token fails even if the first one errored later in the flow. All
// existing sessions are revoked on success.
func (s *TokenService) ConsumePasswordReset(ctx context.Context, token, newPassword string) error {
	log := slogx.FromContext(ctx)

	userID, ok := s.Credentials.TakePasswordReset(ctx, cryptox.FingerprintToken(token))
	if !ok {
		return ErrInvalidOneTime
	}

	hash, err := cryptox.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Store.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	s.Credentials.RevokeAllSessions(ctx, userID)

	log.Info("password reset completed", slog.String("user_id", userID))
	return nil
}

// IssueEmailVerification creates a single-use verification token for a
// user.
func (s *TokenService) IssueEmailVerification(ctx context.Context, userID string) (string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}
	if !s.Credentials.StoreEmailVerification(ctx, cryptox.FingerprintToken(token), userID, EmailVerificationTTL) {
		return "", ErrCacheUnavailable
	}
	return token, nil
}

// ConsumeEmailVerification redeems a verification token and marks the
// account's email verified.
func (s *TokenService) ConsumeEmailVerification(ctx context.Context, token string) error {
	userID, ok := s.Credentials.TakeEmailVerification(ctx, cryptox.FingerprintToken(token))
	if !ok {
		return ErrInvalidOneTime
	}
	if err := s.Store.Users().MarkEmailVerified(ctx, userID); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("email verified", slog.String("user_id", userID))
	return nil
}

// NewOAuthState mints and stores a CSRF state nonce for an external
// OAuth flow. The payload travels with the state (e.g. a post-login
// redirect target).
func (s *TokenService) NewOAuthState(ctx context.Context, payload string) (string, error) {
	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}
	if !s.Credentials.StoreOAuthState(ctx, state, payload, OAuthStateTTL) {
		return "", ErrCacheUnavailable
	}
	return state, nil
}

// ConsumeOAuthState validates and burns a state nonce on callback.
func (s *TokenService) ConsumeOAuthState(ctx context.Context, state string) (string, error) {
	payload, ok := s.Credentials.TakeOAuthState(ctx, state)
	if !ok {
		return "", ErrInvalidOneTime
	}
	return payload, nil
}
