package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/tmcfarland/authgate/internal/background"
	"github.com/tmcfarland/authgate/internal/config"
	"github.com/tmcfarland/authgate/internal/database"
	"github.com/tmcfarland/authgate/internal/handlers"
	"github.com/tmcfarland/authgate/internal/identity"
	middlewareCustom "github.com/tmcfarland/authgate/internal/middleware"
	"github.com/tmcfarland/authgate/internal/repositories"
	"github.com/tmcfarland/authgate/internal/routes"
	"github.com/tmcfarland/authgate/internal/services"
	"github.com/tmcfarland/authgate/internal/store"
	pkghttp "github.com/tmcfarland/authgate/pkg/http"
	pkglogger "github.com/tmcfarland/authgate/pkg/logger"
)

// gateStore is the full backend surface the entrypoint wires up: state
// reads and writes for the service layer, expiry sweeps for the cleanup
// manager, and liveness for the health endpoint.
type gateStore interface {
	services.StateStore
	DeleteExpired(ctx context.Context) (int64, error)
	HealthCheck(ctx context.Context) error
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store", cfg.Store.Backend))

	// Initialize the state store backend
	var (
		st              gateStore
		attemptLog      services.AttemptLog
		attemptsDeleter background.ExpiredDeleter
	)

	switch cfg.Store.Backend {
	case config.StorePostgres:
		db, err := database.NewConnection(&cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer db.Close()

		st = repositories.NewStateRepository(db, cfg.Gate.AttemptTTL)

		// Durable attempt history rides along with the postgres backend
		attemptRepo := repositories.NewAttemptLogRepository(db)
		attemptLog = attemptRepo
		attemptsDeleter = attemptRepo

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx).Err()
		pingCancel()
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}

		st = store.NewRedisStore(client, cfg.Gate.AttemptTTL)

	default:
		st = store.NewMemoryStore(cfg.Gate.AttemptTTL)
	}

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(st, attemptsDeleter, logger, cfg.Gate.CleanupInterval)

	// Initialize identity resolution
	var tokens *identity.ServiceTokenSource
	if cfg.Resolver.ServiceTokenSecret != "" {
		tokens = identity.NewServiceTokenSource(cfg.Resolver.ServiceTokenSecret, cfg.Resolver.ServiceTokenTTL)
	}

	resolver := identity.NewResolver(identity.ResolverConfig{
		EdgeURL:     cfg.Resolver.EdgeURL,
		EdgeTimeout: cfg.Resolver.EdgeTimeout,
		EchoURL:     cfg.Resolver.EchoURL,
		EchoTimeout: cfg.Resolver.EchoTimeout,
	}, nil, tokens, logger)

	// Initialize security services
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Rate limiting service
	rateLimitConfig := services.RateLimitConfig{
		MaxFailedAttempts: cfg.Gate.MaxFailedAttempts,
		BaseLockout:       cfg.Gate.BaseLockout,
		MaxLockout:        cfg.Gate.MaxLockout,
		AttemptTTL:        cfg.Gate.AttemptTTL,
	}
	rateLimitService := services.NewRateLimitService(st, rateLimitConfig, logger)

	attemptService := services.NewAttemptService(rateLimitService, resolver, attemptLog, auditLogger, logger)

	// Initialize handlers
	gateHandler := handlers.NewGateHandler(attemptService)

	// Setup CORS middleware
	corsConfig := middlewareCustom.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(corsConfig))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, gateHandler, middlewareCustom.RateLimitConfig{
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
	})

	// Health check with the active store backend
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := st.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","store":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","store":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
