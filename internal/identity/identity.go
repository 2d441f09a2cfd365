// Package identity provides admin identity primitives for protected routes.
package identity

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"regexp"
	"strings"
)

const (
	// AdminKeyHeader carries the shared admin key on protected requests.
	AdminKeyHeader = "X-Admin-Key"
	// AdminIDHeader optionally names the acting admin for audit logs.
	AdminIDHeader = "X-Admin-ID"

	DefaultAdminIDValue = "admin"
)

type contextKey int

const adminIDKey contextKey = iota

var adminIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// AdminIDFromContext extracts the acting admin's ID from the request context.
func AdminIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(adminIDKey).(string); ok {
		return v
	}
	return ""
}

func sanitizeAdminID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || !adminIDPattern.MatchString(id) {
		return DefaultAdminIDValue
	}
	return id
}

func keyFromRequest(r *http.Request) string {
	key := r.Header.Get(AdminKeyHeader)
	if key == "" {
		key = r.URL.Query().Get("admin_key")
	}
	return key
}

// RequireAdmin returns middleware that rejects requests lacking the shared
// admin key. An empty configured key leaves the routes open (development).
func RequireAdmin(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey != "" {
				key := keyFromRequest(r)
				if subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
					return
				}
			}

			adminID := sanitizeAdminID(r.Header.Get(AdminIDHeader))
			ctx := context.WithValue(r.Context(), adminIDKey, adminID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
