package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/benvon/smart-forms/internal/audit"
	logpkg "github.com/benvon/smart-forms/internal/logger"
	"github.com/benvon/smart-forms/internal/models"
	"github.com/benvon/smart-forms/internal/request"
	"github.com/benvon/smart-forms/internal/revocation"
	"github.com/benvon/smart-forms/internal/routes"
	"github.com/benvon/smart-forms/internal/session"
	"go.uber.org/zap"
)

const (
	// DefaultSignInPath is where unauthenticated callers of protected routes are sent
	DefaultSignInPath = "/auth/signin"
	// DefaultAfterSignInPath is where authenticated callers of auth-only routes are sent
	DefaultAfterSignInPath = "/dashboard"
	// CallbackParam carries the originally requested location through sign-in
	CallbackParam = "callbackUrl"
)

// SessionReader reads and clears the session cookie
type SessionReader interface {
	Read(r *http.Request) (*session.Claims, error)
	Clear(w http.ResponseWriter) error
}

// SessionRefresher re-issues sessions that are close to expiry
type SessionRefresher interface {
	MaybeRefresh(ctx context.Context, w http.ResponseWriter, claims *session.Claims) (*session.Claims, bool, error)
}

// Gate decides per request whether to allow, or redirect, based on the route
// class and the session cookie. It holds no per-request state.
type Gate struct {
	classifier     *routes.Classifier
	sessions       SessionReader
	refresher      SessionRefresher
	denylist       revocation.Denylist
	events         audit.Sink
	logger         *zap.Logger
	signInPath     string
	afterSignInURL string
}

// GateOption configures a Gate
type GateOption func(*Gate)

// WithRefresher enables sliding refresh of sessions near expiry
func WithRefresher(r SessionRefresher) GateOption {
	return func(g *Gate) { g.refresher = r }
}

// WithDenylist enables revocation checks
func WithDenylist(d revocation.Denylist) GateOption {
	return func(g *Gate) { g.denylist = d }
}

// WithEventSink records refresh outcomes as auth events
func WithEventSink(sink audit.Sink) GateOption {
	return func(g *Gate) {
		if sink != nil {
			g.events = sink
		}
	}
}

// WithSignInPath overrides the sign-in redirect target
func WithSignInPath(path string) GateOption {
	return func(g *Gate) {
		if path != "" {
			g.signInPath = path
		}
	}
}

// WithAfterSignInPath overrides where authenticated callers of auth-only routes land
func WithAfterSignInPath(path string) GateOption {
	return func(g *Gate) {
		if path != "" {
			g.afterSignInURL = path
		}
	}
}

// NewGate creates the access gate
func NewGate(classifier *routes.Classifier, sessions SessionReader, logger *zap.Logger, opts ...GateOption) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{
		classifier:     classifier,
		sessions:       sessions,
		events:         audit.Discard{},
		logger:         logger,
		signInPath:     DefaultSignInPath,
		afterSignInURL: DefaultAfterSignInPath,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Middleware returns the gate as router middleware
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class := g.classifier.Classify(r.URL.Path)
		if class == routes.Public {
			next.ServeHTTP(w, r)
			return
		}

		claims := g.resolveSession(w, r)

		switch class {
		case routes.Protected:
			if claims == nil {
				g.redirectToSignIn(w, r)
				return
			}
		case routes.AuthOnly:
			if claims != nil {
				target := g.callbackTarget(r)
				g.logger.Debug("auth_only_route_redirect",
					zap.String("path", logpkg.SanitizePath(r.URL.Path)),
					zap.String("target", logpkg.SanitizePath(target)),
				)
				http.Redirect(w, r, target, http.StatusTemporaryRedirect)
				return
			}
		}

		if claims != nil {
			r = r.WithContext(request.WithSession(r.Context(), claims))
		}
		next.ServeHTTP(w, r)
	})
}

// resolveSession reads, checks and refreshes the session. It never fails the
// request: every error, including a panic in the reader, the deny-list or the
// user lookup, degrades to no session.
func (g *Gate) resolveSession(w http.ResponseWriter, r *http.Request) (claims *session.Claims) {
	defer func() {
		if rec := recover(); rec != nil {
			g.logger.Error("session_resolve_panic",
				zap.Any("panic", rec),
				zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			)
			claims = nil
		}
	}()

	claims = g.readSession(r)
	if claims != nil {
		claims = g.checkRevoked(r.Context(), claims)
	}
	if claims != nil && g.refresher != nil {
		claims = g.refresh(w, r, claims)
	}
	return claims
}

func (g *Gate) readSession(r *http.Request) *session.Claims {
	c, err := g.sessions.Read(r)
	switch {
	case err == nil:
		return c
	case errors.Is(err, session.ErrNoSession):
	case errors.Is(err, session.ErrTokenExpired):
		g.logger.Debug("session_expired", zap.String("path", logpkg.SanitizePath(r.URL.Path)))
	case errors.Is(err, session.ErrTokenInvalid):
		g.logger.Debug("session_invalid",
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.String("error", logpkg.SanitizeError(err)),
		)
	default:
		g.logger.Warn("session_read_failed",
			zap.String("path", logpkg.SanitizePath(r.URL.Path)),
			zap.Error(err),
		)
	}
	return nil
}

func (g *Gate) checkRevoked(ctx context.Context, claims *session.Claims) *session.Claims {
	if g.denylist == nil {
		return claims
	}
	revoked, err := g.denylist.IsRevoked(ctx, claims)
	if err != nil {
		g.logger.Warn("session_revocation_check_failed",
			zap.String("user_id", logpkg.SanitizeUserID(claims.SubjectID)),
			zap.Error(err),
		)
		return nil
	}
	if revoked {
		g.logger.Debug("session_revoked", zap.String("user_id", logpkg.SanitizeUserID(claims.SubjectID)))
		return nil
	}
	return claims
}

func (g *Gate) refresh(w http.ResponseWriter, r *http.Request, claims *session.Claims) *session.Claims {
	refreshed, didRefresh, err := g.refresher.MaybeRefresh(r.Context(), w, claims)
	if err == nil {
		if didRefresh {
			g.events.Record(r.Context(), audit.NewEvent(r, models.AuthEventSessionRefreshed, refreshed.SubjectID, refreshed.Email))
		}
		return refreshed
	}
	if errors.Is(err, session.ErrRefreshUserMissing) {
		g.logger.Info("session_user_missing", zap.String("user_id", logpkg.SanitizeUserID(claims.SubjectID)))
		if clearErr := g.sessions.Clear(w); clearErr != nil {
			g.logger.Warn("session_clear_failed", zap.Error(clearErr))
		}
		g.events.Record(r.Context(), audit.NewEvent(r, models.AuthEventSessionRefreshUserMissing, claims.SubjectID, claims.Email))
		return nil
	}
	g.logger.Warn("session_refresh_failed",
		zap.String("user_id", logpkg.SanitizeUserID(claims.SubjectID)),
		zap.Error(err),
	)
	return claims
}

func (g *Gate) redirectToSignIn(w http.ResponseWriter, r *http.Request) {
	callback := r.URL.Path
	if r.URL.RawQuery != "" {
		callback += "?" + r.URL.RawQuery
	}
	target := g.signInPath + "?" + url.Values{CallbackParam: {callback}}.Encode()

	g.logger.Debug("protected_route_redirect", zap.String("path", logpkg.SanitizePath(r.URL.Path)))
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// callbackTarget returns the requested callback when it is a local path that
// does not lead back into an auth-only route, else the default landing page.
func (g *Gate) callbackTarget(r *http.Request) string {
	cb := r.URL.Query().Get(CallbackParam)
	if !IsSafeCallback(cb) {
		return g.afterSignInURL
	}
	u, err := url.Parse(cb)
	if err != nil || g.classifier.Classify(u.Path) == routes.AuthOnly {
		return g.afterSignInURL
	}
	return cb
}

// IsSafeCallback reports whether cb is a same-origin path
func IsSafeCallback(cb string) bool {
	if cb == "" || !strings.HasPrefix(cb, "/") {
		return false
	}
	if strings.HasPrefix(cb, "//") || strings.HasPrefix(cb, "/\\") {
		return false
	}
	if strings.ContainsAny(cb, "\r\n\t") {
		return false
	}
	u, err := url.Parse(cb)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}
