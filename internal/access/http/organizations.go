package http

import (
	"encoding/json"
	"net/http"

	"github.com/sproutcrm/tenantcore/internal/access/service"
	"github.com/sproutcrm/tenantcore/pkg/httpx"
)

type OrganizationsHandler struct {
	AccountService *service.AccountService
}

// HandleCreate creates an organization with the caller as first admin.
func (h *OrganizationsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserIDFromContext(ctx)

	var req createOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadJSON(w)
		return
	}

	org, err := h.AccountService.CreateOrganization(ctx, req.Name, req.Slug, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, organizationResponse{
		ID:   org.ID,
		Name: org.Name,
		Slug: org.Slug,
	})
}
