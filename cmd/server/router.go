package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/smart-forms/internal/audit"
	"github.com/benvon/smart-forms/internal/config"
	"github.com/benvon/smart-forms/internal/database"
	"github.com/benvon/smart-forms/internal/handlers"
	"github.com/benvon/smart-forms/internal/middleware"
	"github.com/benvon/smart-forms/internal/revocation"
	"github.com/benvon/smart-forms/internal/routes"
	"github.com/benvon/smart-forms/internal/session"
	"github.com/benvon/smart-forms/internal/telemetry"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// userStore is what the HTTP surface needs from the user table
type userStore interface {
	database.UserRepositoryInterface
	session.UserLookup
}

// routerDeps collects the collaborators the router wires together
type routerDeps struct {
	cfg        *config.Config
	logger     *zap.Logger
	users      userStore
	sessions   *session.Store
	hasher     handlers.PasswordHasher
	limiter    *middleware.RedisRateLimiter
	denylist   revocation.Denylist
	events     audit.Sink
	classifier *routes.Classifier
	health     *handlers.HealthChecker
	tracing    *telemetry.Tracing
}

// newRouter builds the full HTTP surface. The access gate runs on every
// matched route, and the trailing catch-alls make every path a match.
func newRouter(d routerDeps) (*mux.Router, error) {
	gate := middleware.NewGate(d.classifier, d.sessions, d.logger,
		middleware.WithRefresher(session.NewRefresher(d.sessions, d.users, d.logger)),
		middleware.WithDenylist(d.denylist),
		middleware.WithEventSink(d.events),
	)

	loginLimit, err := middleware.LoginRateLimit(d.limiter, d.cfg.LoginRateLimit, d.cfg.TrustProxy, d.logger)
	if err != nil {
		return nil, err
	}

	openAPIHandler, err := handlers.NewOpenAPIHandler()
	if err != nil {
		return nil, err
	}

	authHandler := handlers.NewAuthHandler(d.users, d.hasher, d.sessions, d.denylist, d.events, d.logger)

	r := mux.NewRouter()

	// First registered runs outermost
	r.Use(d.tracing.Middleware())
	r.Use(middleware.ClientIP(d.cfg.TrustProxy))
	r.Use(middleware.SecurityHeaders(d.cfg.EnableHSTS))
	r.Use(middleware.CORS(middleware.ParseOrigins(d.cfg.FrontendURL)))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize, d.logger))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))
	r.Use(middleware.ErrorHandler(d.logger))
	r.Use(gate.Middleware)
	r.Use(middleware.Audit(d.logger))
	r.Use(middleware.Logging(d.logger))

	r.HandleFunc("/healthz", d.health.HealthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")
	openAPIHandler.RegisterRoutes(r)

	authRouter := r.PathPrefix("/api/auth").Subrouter()
	credentialRouter := authRouter.NewRoute().Subrouter()
	credentialRouter.Use(loginLimit)
	authHandler.RegisterCredentialRoutes(credentialRouter)
	authHandler.RegisterRoutes(authRouter)

	r.HandleFunc("/api/me", authHandler.GetMe).Methods("GET")

	// Preflight requests are answered by the CORS middleware; this only makes them match
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.PathPrefix("/").Handler(handlers.NewFrontendHandler(d.cfg.StaticDir))

	return r, nil
}

// newHealthChecker registers a readiness check per backing service
func newHealthChecker(db *database.DB, limiter *middleware.RedisRateLimiter, queue interface {
	HealthCheck(ctx context.Context) error
}) *handlers.HealthChecker {
	h := handlers.NewHealthChecker()
	if db != nil {
		h.AddCheck("database", db.HealthCheck)
	}
	if limiter != nil {
		h.AddCheck("redis", limiter.Ping)
	}
	if queue != nil {
		h.AddCheck("queue", queue.HealthCheck)
	}
	return h
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().UTC().Format(time.RFC3339))
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"version":"%s","timestamp":"%s"}`, version, time.Now().UTC().Format(time.RFC3339))
}
