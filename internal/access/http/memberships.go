package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sproutcrm/tenantcore/internal/access/domain"
	"github.com/sproutcrm/tenantcore/internal/access/service"
	"github.com/sproutcrm/tenantcore/pkg/httpx"
)

// MembershipsHandler covers member listing and lifecycle within the
// selected tenant.
type MembershipsHandler struct {
	MembershipService *service.MembershipService
}

// HandleList returns the tenant's members. Any active member may look.
func (h *MembershipsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := httpx.OrgIDFromContext(ctx)

	members, err := h.MembershipService.ListOrganizationMembers(ctx, orgID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]membershipResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toMembershipResponse(m))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleListMine returns every organization the caller belongs to. No
// tenant header needed.
func (h *MembershipsHandler) HandleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserIDFromContext(ctx)

	memberships, err := h.MembershipService.ListUserMemberships(ctx, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]membershipResponse, 0, len(memberships))
	for _, m := range memberships {
		out = append(out, toMembershipResponse(m))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleUpdateRole changes a member's role. Admin only. Demoting the
// last admin is refused so the organization cannot lock itself out.
func (h *MembershipsHandler) HandleUpdateRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}

	target, err := h.tenantMembership(ctx, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.guardLastAdmin(ctx, target, domain.Role(req.Role) == domain.RoleAdmin); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.MembershipService.UpdateRole(ctx, target.ID, domain.Role(req.Role)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpdateStatus suspends or reactivates a member. Admin only.
func (h *MembershipsHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}

	target, err := h.tenantMembership(ctx, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	status := domain.MembershipStatus(req.Status)
	if err := h.guardLastAdmin(ctx, target, status == domain.MembershipActive); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.MembershipService.UpdateStatus(ctx, target.ID, status); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemove deletes a membership. Admin only, same last-admin guard.
func (h *MembershipsHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	target, err := h.tenantMembership(ctx, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.guardLastAdmin(ctx, target, false); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := h.MembershipService.RemoveMembership(ctx, target.ID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// tenantMembership loads the targeted membership and confirms it belongs
// to the tenant the caller was authorized in. A membership in another
// organization is reported exactly like one that does not exist, so the
// endpoint does not reveal which membership IDs other tenants hold.
func (h *MembershipsHandler) tenantMembership(ctx context.Context, membershipID string) (domain.Membership, error) {
	target, err := h.MembershipService.GetMembershipByID(ctx, membershipID)
	if err != nil {
		return domain.Membership{}, err
	}
	if target.OrganizationID != httpx.OrgIDFromContext(ctx) {
		return domain.Membership{}, service.ErrMembershipNotFound
	}
	return target, nil
}

// guardLastAdmin refuses changes that would leave the organization with
// no active admin. keepsAdmin is true when the change preserves the
// target's admin standing.
func (h *MembershipsHandler) guardLastAdmin(ctx context.Context, target domain.Membership, keepsAdmin bool) error {
	if keepsAdmin {
		return nil
	}
	if target.Role != domain.RoleAdmin || !target.IsActive() {
		return nil
	}
	admins, err := h.MembershipService.CountAdmins(ctx, target.OrganizationID)
	if err != nil {
		return err
	}
	if admins <= 1 {
		return service.ErrInvalidMembership
	}
	return nil
}

func toMembershipResponse(m domain.Membership) membershipResponse {
	return membershipResponse{
		ID:           m.ID,
		UserID:       m.UserID,
		Organization: m.OrganizationID,
		Role:         string(m.Role),
		Status:       string(m.Status),
		JoinedAt:     m.JoinedAt,
		LastAccessed: m.LastAccessed,
	}
}
