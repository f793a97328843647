package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sproutcrm/tenantcore/internal/access/cache"
	"github.com/sproutcrm/tenantcore/internal/access/domain"
	"github.com/sproutcrm/tenantcore/internal/access/service"
	"github.com/sproutcrm/tenantcore/internal/access/store"
	"github.com/sproutcrm/tenantcore/pkg/httpx"
	"github.com/sproutcrm/tenantcore/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store       store.Store
	credentials *cache.CredentialStore

	AccountService    *service.AccountService
	TokenService      *service.TokenService
	InviteService     *service.InviteService
	MembershipService *service.MembershipService
	AuthzService      *service.AuthzService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	credentials *cache.CredentialStore,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		credentials:  credentials,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerOrganizations()
	r.registerInvites()
	r.registerMemberships()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		AccountService: r.AccountService,
		TokenService:   r.TokenService,
	}

	// Public endpoints, strict limits: these are the brute-force targets.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/password-reset",
		httpx.Chain(http.HandlerFunc(h.HandleRequestPasswordReset),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/password-reset/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirmPasswordReset),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/verify-email/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirmEmailVerification),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Authenticated credential lifecycle.
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout-all",
		httpx.Chain(http.HandlerFunc(h.HandleLogoutAll),
			AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/verify-email",
		httpx.Chain(http.HandlerFunc(h.HandleRequestEmailVerification),
			AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerOrganizations() {
	h := &OrganizationsHandler{AccountService: r.AccountService}

	r.Mux.Handle("POST /v1/organizations",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerInvites() {
	h := &InvitesHandler{InviteService: r.InviteService}

	// Minting, listing, stats and revocation are tenant-scoped admin
	// operations.
	admin := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			AuthnMiddleware(r.TokenService),
			TenantMiddleware(),
			RequireRole(r.AuthzService, domain.RoleAdmin),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /v1/invites", admin(h.HandleCreate))
	r.Mux.Handle("GET /v1/invites", admin(h.HandleList))
	r.Mux.Handle("GET /v1/invites/stats", admin(h.HandleStats))
	r.Mux.Handle("DELETE /v1/invites/{id}", admin(h.HandleRevoke))

	// Validation is public (signup pages poll it); strict IP limit to
	// stop code scanning.
	r.Mux.Handle("GET /v1/invites/validate/{code}",
		httpx.Chain(http.HandlerFunc(h.HandleValidate),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Acceptance needs an account but no prior membership.
	r.Mux.Handle("POST /v1/invites/accept",
		httpx.Chain(http.HandlerFunc(h.HandleAccept),
			AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerMemberships() {
	h := &MembershipsHandler{MembershipService: r.MembershipService}

	member := func(fn http.HandlerFunc, minimum domain.Role) http.Handler {
		return httpx.Chain(fn,
			AuthnMiddleware(r.TokenService),
			TenantMiddleware(),
			RequireRole(r.AuthzService, minimum),
			httpx.RateLimitByUser(httpx.LenientLimit),
		)
	}

	r.Mux.Handle("GET /v1/members", member(h.HandleList, domain.RoleViewer))
	r.Mux.Handle("PATCH /v1/members/{id}/role", member(h.HandleUpdateRole, domain.RoleAdmin))
	r.Mux.Handle("PATCH /v1/members/{id}/status", member(h.HandleUpdateStatus, domain.RoleAdmin))
	r.Mux.Handle("DELETE /v1/members/{id}", member(h.HandleRemove, domain.RoleAdmin))

	// The caller's own memberships span tenants, so no tenant header.
	r.Mux.Handle("GET /v1/me/memberships",
		httpx.Chain(http.HandlerFunc(h.HandleListMine),
			AuthnMiddleware(r.TokenService),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.credentials),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
