package request

import (
	"context"
	"net/http"

	"github.com/benvon/smart-forms/internal/session"
	"github.com/ulule/limiter/v3"
)

type contextKey string

const (
	sessionContextKey  contextKey = "session"
	clientIPContextKey contextKey = "client_ip"
)

// SessionContextKey returns the context key used for session claims. Exposed for tests that inject non-claims values.
func SessionContextKey() contextKey { return sessionContextKey }

// ResolveClientIP returns the peer host without its port. X-Forwarded-For and
// X-Real-IP are only consulted when trustProxy is set, which must only be done
// behind a proxy that overwrites those headers.
func ResolveClientIP(r *http.Request, trustProxy bool) string {
	ip := limiter.GetIP(r, limiter.Options{TrustForwardHeader: trustProxy})
	if ip == nil {
		return ""
	}
	return ip.String()
}

// WithClientIP returns a context carrying the resolved client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey, ip)
}

// ClientIP returns the IP stored by WithClientIP, or the peer host when none was stored.
func ClientIP(r *http.Request) string {
	if ip, ok := r.Context().Value(clientIPContextKey).(string); ok {
		return ip
	}
	return ResolveClientIP(r, false)
}

// WithSession returns a context with the session claims attached.
func WithSession(ctx context.Context, claims *session.Claims) context.Context {
	return context.WithValue(ctx, sessionContextKey, claims)
}

// SessionFromContext returns the session claims from the request context, or nil if missing or wrong type.
func SessionFromContext(r *http.Request) *session.Claims {
	c, _ := r.Context().Value(sessionContextKey).(*session.Claims)
	return c
}
