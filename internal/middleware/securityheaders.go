package middleware

import (
	"net/http"
	"strings"
)

const (
	apiContentSecurityPolicy  = "default-src 'none'; frame-ancestors 'none'"
	pageContentSecurityPolicy = "default-src 'self'; img-src 'self' data: https:; object-src 'none'; base-uri 'self'; frame-ancestors 'none'"
)

// SecurityHeaders sets security headers on all responses
func SecurityHeaders(enableHSTS bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			if strings.HasPrefix(r.URL.Path, "/api/") {
				h.Set("Content-Security-Policy", apiContentSecurityPolicy)
			} else {
				h.Set("Content-Security-Policy", pageContentSecurityPolicy)
			}

			// responses that carry or describe a session must never be cached
			if strings.HasPrefix(r.URL.Path, "/api/auth/") || r.URL.Path == "/api/me" {
				h.Set("Cache-Control", "no-store")
			}

			// Only over TLS and when explicitly enabled, so local HTTP development is unaffected
			if enableHSTS && r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			}

			next.ServeHTTP(w, r)
		})
	}
}
