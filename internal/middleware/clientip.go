package middleware

import (
	"net/http"

	"github.com/benvon/smart-forms/internal/request"
)

// ClientIP resolves the caller address once so audit events and logs agree
// with the rate limiter key. Forwarding headers count only when trustProxy is set.
func ClientIP(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := request.ResolveClientIP(r, trustProxy)
			next.ServeHTTP(w, r.WithContext(request.WithClientIP(r.Context(), ip)))
		})
	}
}
