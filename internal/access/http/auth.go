package http

import (
	"encoding/json"
	"net/http"

	"github.com/sproutcrm/tenantcore/internal/access/service"
	"github.com/sproutcrm/tenantcore/pkg/httpx"
	"github.com/sproutcrm/tenantcore/pkg/jwtx"
)

// AuthHandler covers registration, login and the credential lifecycle.
type AuthHandler struct {
	AccountService *service.AccountService
	TokenService   *service.TokenService
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}

	user, err := h.AccountService.Register(r.Context(), req.Email, req.FullName, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, userResponse{
		ID:            user.ID,
		Email:         user.Email,
		FullName:      user.FullName,
		EmailVerified: user.EmailVerified,
	})
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}

	pair, err := h.TokenService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int64(pair.ExpiresIn.Seconds()),
		SessionID:    pair.SessionID,
	})
}

func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}
	if req.UserID == "" || req.SessionID == "" || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "user_id, session_id and refresh_token are required")
		return
	}

	pair, err := h.TokenService.Refresh(r.Context(), req.UserID, req.SessionID, req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    int64(pair.ExpiresIn.Seconds()),
		SessionID:    pair.SessionID,
	})
}

// HandleLogout revokes the presented access token and its session.
// Requires AuthnMiddleware, which already validated the token.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims := jwtx.Claims{}
	if raw := bearerToken(r); raw != "" {
		if parsed, err := h.TokenService.ValidateAccess(ctx, raw); err == nil {
			claims = parsed
		}
	}
	if claims.Subject == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	h.TokenService.RevokeAccess(ctx, claims)
	w.WriteHeader(http.StatusNoContent)
}

// HandleLogoutAll revokes every session the caller holds, plus the
// presented access token itself.
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserIDFromContext(ctx)

	if raw := bearerToken(r); raw != "" {
		if claims, err := h.TokenService.ValidateAccess(ctx, raw); err == nil {
			h.TokenService.RevokeAccess(ctx, claims)
		}
	}
	h.TokenService.LogoutEverywhere(ctx, userID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleRequestPasswordReset always answers 202 so the endpoint cannot
// be used to enumerate accounts. Token delivery (email) is out of
// process; in development the token is logged, never returned.
func (h *AuthHandler) HandleRequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}

	if _, err := h.TokenService.IssuePasswordReset(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *AuthHandler) HandleConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetConfirm
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}
	if len(req.NewPassword) < 10 {
		httpx.WriteError(w, http.StatusBadRequest, "weak_password", "Password does not meet the minimum length")
		return
	}

	if err := h.TokenService.ConsumePasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) HandleRequestEmailVerification(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return
	}

	if _, err := h.TokenService.IssueEmailVerification(r.Context(), userID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *AuthHandler) HandleConfirmEmailVerification(w http.ResponseWriter, r *http.Request) {
	var req emailVerifyConfirm
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}

	if err := h.TokenService.ConsumeEmailVerification(r.Context(), req.Token); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
