package http

import (
	"net/http"
	"time"

	"github.com/sproutcrm/tenantcore/internal/access/cache"
	"github.com/sproutcrm/tenantcore/internal/access/store"
	"github.com/sproutcrm/tenantcore/pkg/httpx"
)

// LivezHandler reports process liveness. Always 200 while the process
// can serve requests at all.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler checks the dependencies. The database failing makes the
// service not ready; the cache failing only degrades it, because every
// cache consumer falls back to the database.
func ReadyzHandler(startTime time.Time, version string, st store.Store, credentials *cache.CredentialStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &healthChecks{
			Database: "ok",
			Cache:    "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if err := credentials.Ping(r.Context()); err != nil {
			checks.Cache = "error: " + err.Error()
			// Degraded but still ready; authorization reads through.
			if overallStatus == "ok" {
				overallStatus = "degraded"
			}
		}

		httpx.WriteJSON(w, statusCode, healthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
