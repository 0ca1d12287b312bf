package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/leadgate/leadgate/common/httputil"
	"github.com/leadgate/leadgate/gateway/internal/metrics"
)

// RequireAdmin guards operator endpoints with a static bearer token. An empty
// token disables the endpoints entirely.
func RequireAdmin(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				httputil.WriteError(w, http.StatusNotFound, "not found")
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				metrics.AuthRejections.WithLabelValues("admin_missing").Inc()
				httputil.WriteError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				metrics.AuthRejections.WithLabelValues("admin_malformed").Inc()
				httputil.WriteError(w, http.StatusUnauthorized, "invalid authorization header")
				return
			}

			if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
				metrics.AuthRejections.WithLabelValues("admin_token").Inc()
				httputil.WriteError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
