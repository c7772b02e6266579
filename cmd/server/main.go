package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/smart-forms/internal/audit"
	"github.com/benvon/smart-forms/internal/config"
	"github.com/benvon/smart-forms/internal/database"
	"github.com/benvon/smart-forms/internal/logger"
	"github.com/benvon/smart-forms/internal/middleware"
	"github.com/benvon/smart-forms/internal/password"
	"github.com/benvon/smart-forms/internal/queue"
	"github.com/benvon/smart-forms/internal/revocation"
	"github.com/benvon/smart-forms/internal/routes"
	"github.com/benvon/smart-forms/internal/session"
	"github.com/benvon/smart-forms/internal/telemetry"
	"go.uber.org/zap"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.RequireRabbitMQ(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(cfg.IsProduction(), debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("app_env", cfg.AppEnv),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Cancelled on SIGINT/SIGTERM so a slow dependency cannot block shutdown
	signalCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracing, err := telemetry.Init(signalCtx, telemetry.Options{
		Enabled:  cfg.OTELEnabled,
		Endpoint: cfg.OTELEndpoint,
		Insecure: !cfg.IsProduction(),
	}, zapLogger)
	if err != nil {
		zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

	// A bad secret or cookie policy must stop startup, never degrade to anonymous
	sessions, err := session.Setup(cfg.CookieEnvironment(), []byte(cfg.SessionSecret), zapLogger)
	if err != nil {
		zapLogger.Fatal("invalid_session_configuration", zap.Error(err))
	}

	table, err := routes.LoadTable(cfg.RoutesFile)
	if err != nil {
		zapLogger.Fatal("failed_to_load_route_table", zap.Error(err))
	}

	hasher, err := password.NewHasher(password.DefaultParams())
	if err != nil {
		zapLogger.Fatal("failed_to_create_password_hasher", zap.Error(err))
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	if err := db.Migrate(signalCtx); err != nil {
		zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	redisLimiter, err := middleware.NewRedisRateLimiter(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisLimiter.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	jobQueue, err := queue.ConnectWithRetry(signalCtx, cfg.RabbitMQURL, queue.DefaultConnectOptions(), zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	router, err := newRouter(routerDeps{
		cfg:        cfg,
		logger:     zapLogger,
		users:      database.NewUserRepository(db),
		sessions:   sessions,
		hasher:     hasher,
		limiter:    redisLimiter,
		denylist:   revocation.NewRedisDenylist(redisLimiter.Client()),
		events:     audit.NewRecorder(jobQueue, zapLogger),
		classifier: routes.NewClassifier(table),
		health:     newHealthChecker(db, redisLimiter, jobQueue),
		tracing:    tracing,
	})
	if err != nil {
		zapLogger.Fatal("failed_to_build_router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      middleware.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	<-signalCtx.Done()

	zapLogger.Info("server_shutting_down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}
