package http

import (
	"errors"
	"net/http"

	"github.com/sproutcrm/tenantcore/internal/access/service"
	"github.com/sproutcrm/tenantcore/pkg/httpx"
	"github.com/sproutcrm/tenantcore/pkg/jwtx"
	"github.com/sproutcrm/tenantcore/pkg/slogx"
)

// writeServiceError maps service sentinels onto HTTP responses. Two
// deliberate collapses: every authorization denial looks like "not a
// member" so probing cannot distinguish a suspended account from a role
// that is too low, and every unusable one-time token gets the same
// generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInviteNotFound):
		httpx.WriteError(w, http.StatusNotFound, "invalid_invite", "Invite code is invalid or expired")
	case errors.Is(err, service.ErrInviteExpired):
		httpx.WriteError(w, http.StatusGone, "invite_expired", "Invite has expired")
	case errors.Is(err, service.ErrInviteRevoked):
		httpx.WriteError(w, http.StatusGone, "invite_revoked", "Invite has been revoked")
	case errors.Is(err, service.ErrInviteExhausted):
		httpx.WriteError(w, http.StatusGone, "invite_exhausted", "Invite has no uses remaining")
	case errors.Is(err, service.ErrInviteEmailMismatch):
		httpx.WriteError(w, http.StatusForbidden, "email_mismatch", "Invite was issued for a different email address")
	case errors.Is(err, service.ErrCodeGeneration):
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Could not create invite")

	case errors.Is(err, service.ErrNotAMember),
		errors.Is(err, service.ErrMembershipBlocked),
		errors.Is(err, service.ErrInsufficientRole):
		httpx.WriteError(w, http.StatusForbidden, "forbidden", "Not a member of this organization")

	case errors.Is(err, service.ErrMembershipNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", "Membership not found")
	case errors.Is(err, service.ErrMembershipExists):
		httpx.WriteError(w, http.StatusConflict, "already_member", "User is already a member of this organization")

	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, service.ErrInvalidRefresh), errors.Is(err, service.ErrTokenRevoked):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Token is invalid or revoked")
	case errors.Is(err, jwtx.ErrInvalidToken), errors.Is(err, jwtx.ErrExpiredToken):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "Token is invalid or expired")
	case errors.Is(err, service.ErrInvalidOneTime):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_token", "Token is invalid or already used")

	case errors.Is(err, service.ErrEmailTaken):
		httpx.WriteError(w, http.StatusConflict, "email_taken", "Email is already registered")
	case errors.Is(err, service.ErrSlugTaken):
		httpx.WriteError(w, http.StatusConflict, "slug_taken", "Organization slug is already taken")
	case errors.Is(err, service.ErrWeakPassword):
		httpx.WriteError(w, http.StatusBadRequest, "weak_password", "Password does not meet the minimum length")

	case errors.Is(err, service.ErrInvalidInviteRequest),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidMembership),
		errors.Is(err, service.ErrInvalidAccount):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid request parameters")

	case errors.Is(err, service.ErrCacheUnavailable):
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable", "Service temporarily unavailable")

	default:
		slogx.FromContext(r.Context()).Error("unhandled service error", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "Internal server error")
	}
}

func writeBadJSON(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
}
