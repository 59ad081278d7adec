package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/iota-import/pkg/composables"
	"github.com/iota-uz/iota-import/pkg/constants"
	"github.com/iota-uz/iota-import/pkg/httpapi"
)

// RequireTenant reads the owner scope from the X-Tenant-ID header. Requests without a valid
// tenant never reach a controller.
func RequireTenant() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(constants.TenantHeader))
			tenantID, err := uuid.Parse(raw)
			if raw == "" || err != nil || tenantID == uuid.Nil {
				logger := composables.UseLogger(r.Context())
				logger.WithField("path", r.URL.Path).Warn("request without a valid tenant")
				_ = httpapi.WriteError(w, http.StatusUnauthorized, "TENANT_REQUIRED",
					"a valid "+constants.TenantHeader+" header is required", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(composables.WithTenantID(r.Context(), tenantID)))
		})
	}
}
