package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sproutcrm/tenantcore/internal/access/domain"
	"github.com/sproutcrm/tenantcore/internal/access/service"
	"github.com/sproutcrm/tenantcore/pkg/httpx"
)

const defaultInviteLifetime = 7 * 24 * time.Hour

// InvitesHandler covers minting, validating, accepting and revoking
// invites.
type InvitesHandler struct {
	InviteService *service.InviteService
}

// HandleCreate mints an invite for the selected tenant. Admin only,
// enforced by the route's RequireRole chain. The code is returned once,
// here, and never listed again.
func (h *InvitesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := httpx.OrgIDFromContext(ctx)
	userID := httpx.UserIDFromContext(ctx)

	var req createInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}

	expiresAt := time.Now().Add(defaultInviteLifetime)
	if req.ExpiresAt != 0 {
		expiresAt = time.Unix(req.ExpiresAt, 0)
	}
	maxUses := req.MaxUses
	if maxUses == 0 {
		maxUses = 1
	}

	invite, err := h.InviteService.CreateInvite(ctx, orgID, userID,
		domain.Role(req.Role), req.Email, expiresAt, maxUses)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toInviteResponse(invite, true))
}

// HandleValidate is the pre-flight check a signup page uses to show
// whether a code is still good, without consuming it.
func (h *InvitesHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	invite, err := h.InviteService.ValidateInvite(r.Context(), code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toInviteResponse(invite, false))
}

// HandleAccept redeems a code for the authenticated caller.
func (h *InvitesHandler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserIDFromContext(ctx)

	var req acceptInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}
	if req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	membership, err := h.InviteService.AcceptInvite(ctx, req.Code, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toMembershipResponse(membership))
}

// HandleRevoke withdraws a pending invite. Admin only; the revocation
// is scoped to the tenant the caller was authorized in.
func (h *InvitesHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	inviteID := r.PathValue("id")

	var req revokeInviteRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // reason is optional
	}

	if err := h.InviteService.RevokeInvite(ctx, httpx.OrgIDFromContext(ctx), inviteID, httpx.UserIDFromContext(ctx), req.Reason); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleList returns the tenant's invites, optionally filtered by
// ?status=. Codes are omitted.
func (h *InvitesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := httpx.OrgIDFromContext(ctx)
	status := domain.InviteStatus(r.URL.Query().Get("status"))

	invites, err := h.InviteService.ListOrganizationInvites(ctx, orgID, status)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]inviteResponse, 0, len(invites))
	for _, inv := range invites {
		out = append(out, toInviteResponse(inv, false))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleStats returns per-status invite counts for the tenant.
func (h *InvitesHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := httpx.OrgIDFromContext(ctx)

	stats, err := h.InviteService.InviteStats(ctx, orgID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}

func toInviteResponse(inv domain.Invite, includeCode bool) inviteResponse {
	resp := inviteResponse{
		ID:            inv.ID,
		Organization:  inv.OrganizationID,
		Role:          string(inv.TargetRole),
		Email:         inv.Email,
		Status:        string(inv.Status),
		ExpiresAt:     inv.ExpiresAt,
		MaxUses:       inv.MaxUses,
		UsesRemaining: inv.UsesRemaining(),
	}
	if includeCode {
		resp.Code = inv.Code
	}
	return resp
}
