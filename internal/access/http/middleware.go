package http

import (
	"net/http"
	"strings"

	"github.com/sproutcrm/tenantcore/internal/access/domain"
	"github.com/sproutcrm/tenantcore/internal/access/service"
	"github.com/sproutcrm/tenantcore/pkg/httpx"
)

// orgHeader selects the tenant a request operates in. Identity comes
// from the bearer token; tenancy always comes from this header so a
// token never pins its holder to one organization.
const orgHeader = "X-Organization-ID"

// AuthnMiddleware validates the bearer token (signature, expiry,
// denylist) and stores the caller's identity in the request context.
func AuthnMiddleware(tokens *service.TokenService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Bearer token required")
				return
			}

			claims, err := tokens.ValidateAccess(r.Context(), raw)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}

			ctx := httpx.ContextWithIdentity(r.Context(), claims.Subject, claims.Email, claims.SID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantMiddleware requires the organization header and stores the
// selected tenant in the context. Membership is not checked here; that
// is RequireRole's job.
func TenantMiddleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID := strings.TrimSpace(r.Header.Get(orgHeader))
			if orgID == "" {
				httpx.WriteError(w, http.StatusBadRequest, "invalid_request", orgHeader+" header required")
				return
			}
			ctx := httpx.ContextWithOrg(r.Context(), orgID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole resolves the caller's membership in the selected tenant
// and enforces a role floor. Must run after AuthnMiddleware and
// TenantMiddleware.
func RequireRole(authz *service.AuthzService, minimum domain.Role) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			userID := httpx.UserIDFromContext(ctx)
			orgID := httpx.OrgIDFromContext(ctx)
			if userID == "" || orgID == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}

			if _, err := authz.RequireRole(ctx, orgID, userID, minimum); err != nil {
				writeServiceError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}
