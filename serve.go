package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/peroxia-tech/peroxia-engine/pkg/auth"
	"github.com/peroxia-tech/peroxia-engine/pkg/config"
	"github.com/peroxia-tech/peroxia-engine/pkg/database"
	"github.com/peroxia-tech/peroxia-engine/pkg/handlers"
	"github.com/peroxia-tech/peroxia-engine/pkg/logging"
	"github.com/peroxia-tech/peroxia-engine/pkg/middleware"
	"github.com/peroxia-tech/peroxia-engine/pkg/realtime"
	"github.com/peroxia-tech/peroxia-engine/pkg/repositories"
	"github.com/peroxia-tech/peroxia-engine/pkg/retry"
	"github.com/peroxia-tech/peroxia-engine/pkg/services"
	"github.com/peroxia-tech/peroxia-engine/pkg/services/workqueue"
)

const (
	shutdownTimeout   = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
	rateLimitPrefix   = "peroxia:ratelimit:"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and live channel server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return runServer(cmd.Context(), cfg, logger)
		},
	}
}

// runServer wires every component and serves until ctx is cancelled.
func runServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	startedAt := time.Now()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("redis", cfg.Redis.Addr()),
		zap.Bool("jwks", cfg.Auth.JWKSURL != ""),
		zap.Bool("notifications", cfg.Notifications.Enabled))

	db, err := retry.DoWithResult(ctx, retry.StartupConfig(), func() (*database.DB, error) {
		return database.NewConnection(ctx, database.ConfigFrom(&cfg.Database))
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		sqlDB, err := database.OpenSQL(cfg.Database.ConnectionString())
		if err != nil {
			return err
		}
		if err := database.RunMigrations(sqlDB, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, rate limiting falls back to process memory", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	verifier, err := auth.NewVerifier(ctx, &auth.VerifierConfig{
		Secret:  cfg.Auth.JWTSecret,
		JWKSURL: cfg.Auth.JWKSURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create token verifier: %w", err)
	}
	defer verifier.Close()

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := realtime.NewMetrics(promRegistry)

	// Live channels
	rooms := realtime.NewRegistry(metrics)
	dispatcher := realtime.NewDispatcher(rooms, realtime.DispatcherConfig{
		SendTimeout: cfg.Realtime.SendTimeout,
		MaxPending:  cfg.Realtime.MaxPending,
	}, metrics, logger)

	// Repositories
	userRepo := repositories.NewUserRepository()
	projectRepo := repositories.NewProjectRepository()
	taskRepo := repositories.NewTaskRepository()
	txManager := database.NewTxManager()

	// Deferred assignment notifications
	var notificationQueue *workqueue.Queue
	var queueStats handlers.QueueStats
	assignments := services.NewNoopAssignmentNotifier()
	if cfg.Notifications.Enabled {
		notificationQueue = workqueue.New(logger.Named("notifications"),
			workqueue.WithStrategy(workqueue.NewLimitStrategy(cfg.Notifications.MaxConcurrent)))
		mailer := services.NewLogMailer(cfg.Notifications.SimulatedLatency, logger)
		assignments = services.NewAssignmentNotifier(notificationQueue, mailer, logger)
		queueStats = notificationQueue
	}

	// Services
	userService := services.NewUserService(userRepo,
		auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		logger)
	projectService := services.NewProjectService(projectRepo, userRepo, txManager, logger)
	taskService := services.NewTaskService(taskRepo, userRepo, projectService, txManager, dispatcher, assignments, logger)

	// Middleware
	authMiddleware := auth.NewMiddleware(auth.NewAuthService(verifier, logger), logger)
	scope := database.WithScopeContext(db, logger)
	limit := middleware.RateLimit(newRateLimiter(cfg, redisClient, logger), logger)

	// Routes
	mux := http.NewServeMux()
	handlers.NewAuthHandler(userService, logger).RegisterRoutes(mux, cfg.APIPrefix, scope, limit)
	handlers.NewUsersHandler(userService, logger).RegisterRoutes(mux, cfg.APIPrefix, authMiddleware, scope)
	handlers.NewProjectsHandler(projectService, logger).RegisterRoutes(mux, cfg.APIPrefix, authMiddleware, scope)
	handlers.NewTasksHandler(taskService, logger).RegisterRoutes(mux, cfg.APIPrefix, authMiddleware, scope)

	gate := realtime.NewGate(verifier, userRepo, projectRepo, database.NewScopeProvider(db), metrics, logger)
	liveHandler := handlers.NewLiveHandler(gate, rooms, cfg.Realtime.AllowedOrigins, logger)
	liveHandler.RegisterRoutes(mux)

	handlers.NewHealthHandler(cfg, db, rooms, queueStats,
		promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}), logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           middleware.CORS(cfg.CORSOrigins())(middleware.RequestLogger(logger)(mux)),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting peroxia-engine",
			zap.String("addr", server.Addr),
			zap.String("api_prefix", cfg.APIPrefix),
			zap.Duration("startup", time.Since(startedAt)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
	}
	// Hijacked WebSocket connections are not tracked by http.Server.
	liveHandler.CloseAll("server shutting down")
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("Realtime dispatcher did not drain", zap.Error(err))
	}
	if notificationQueue != nil {
		if err := notificationQueue.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Notification queue did not drain", zap.Error(err))
		}
	}

	logger.Info("Server stopped", zap.String("started", humanize.Time(startedAt)))
	return runErr
}

// newRateLimiter picks the shared Redis limiter when Redis is available and
// the in-process limiter otherwise. It returns nil when rate limiting is off.
func newRateLimiter(cfg *config.Config, client *redis.Client, logger *zap.Logger) middleware.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}

	rule := fmt.Sprintf("%s requests per %s", humanize.Comma(int64(cfg.RateLimit.Requests)), cfg.RateLimit.Window)
	if client != nil {
		logger.Info("Rate limiting credential endpoints with Redis", zap.String("limit", rule))
		return middleware.NewRedisLimiter(client, rateLimitPrefix, cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}
	logger.Info("Rate limiting credential endpoints in memory", zap.String("limit", rule))
	return middleware.NewMemoryLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
}
