package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

// TenantIDKey is the context key for the resolved tenant ID.
const TenantIDKey contextKey = "tenant_id"

// TenantExtractor resolves the tenant for the request. It checks the
// X-Tenant-Id header, then the tenant query parameter, and falls back to
// "default" so a single-tenant install needs no headers at all.
func TenantExtractor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
		if tenantID == "" {
			tenantID = strings.TrimSpace(r.URL.Query().Get("tenant"))
		}
		if tenantID == "" {
			tenantID = "default"
		}

		ctx := context.WithValue(r.Context(), TenantIDKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetTenantID retrieves the tenant ID from the request context.
func GetTenantID(ctx context.Context) string {
	if v, ok := ctx.Value(TenantIDKey).(string); ok {
		return v
	}
	return "default"
}
