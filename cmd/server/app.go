package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/taskdeck/taskdeck-api/internal/cache"
	"github.com/taskdeck/taskdeck-api/internal/config"
	"github.com/taskdeck/taskdeck-api/internal/notify"
	"github.com/taskdeck/taskdeck-api/internal/platform/postgres"
	"github.com/taskdeck/taskdeck-api/internal/queue"
	"github.com/taskdeck/taskdeck-api/internal/service"
	"github.com/taskdeck/taskdeck-api/internal/service/auth"
	"github.com/taskdeck/taskdeck-api/internal/store"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	userStore store.UserStore
	taskStore store.TaskStore
	jobStore  queue.JobStore

	// Service interfaces
	jwtService       auth.JWTService
	passwordVerifier auth.PasswordVerifier
	userService      service.UserService
	taskService      service.TaskService

	// Task read cache
	taskCache cache.Cache

	// Job processing
	gateway *queue.Gateway
	pool    *queue.Pool
	scanner *service.OverdueScanner
}

// newApplication creates a new application instance with all dependencies initialized.
// It accepts core dependencies like configuration, logger, and database connection that
// must be established before application initialization. The worker pool and overdue
// scanner are started before returning, so a non-nil application is fully running.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize JWT service
	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	// Initialize password verifier
	app.passwordVerifier = auth.NewBcryptVerifier()

	// Initialize stores
	bcryptCost := cfg.Auth.BCryptCost
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	app.userStore = postgres.NewPostgresUserStore(db, bcryptCost, logger)
	app.taskStore = postgres.NewPostgresTaskStore(db, logger)

	// Select the job store backend. The memory backend is for local
	// development: job enqueues lose transactional coupling with task
	// writes because the store lives outside the database.
	switch cfg.Queue.Backend {
	case "memory":
		app.jobStore = queue.NewMemoryJobStore()
		logger.Warn("Using in-memory job store; queued jobs will not survive restarts")
	default:
		app.jobStore = postgres.NewPostgresJobStore(db, logger)
	}

	// Initialize the enqueue gateway used by services and job handlers
	app.gateway = queue.NewGateway(db, app.taskStore, app.jobStore, cfg.Queue.MaxAttempts, logger)

	// Initialize the task read cache
	app.taskCache, err = setupTaskCache(ctx, cfg.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to set up task cache: %w", err)
	}

	// Initialize services
	app.userService = service.NewUserService(app.userStore, db, logger)
	app.taskService, err = service.NewTaskService(app.taskStore, app.gateway, app.taskCache, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	// Initialize and start the worker pool
	app.pool, err = setupWorkerPool(app)
	if err != nil {
		return nil, fmt.Errorf("failed to setup worker pool: %w", err)
	}

	// Initialize and start the overdue task scanner
	app.scanner = service.NewOverdueScanner(
		app.taskStore,
		app.gateway,
		cfg.Queue.OverdueScanInterval,
		cfg.Queue.OverdueBatchSize,
		logger,
	)
	if err := app.scanner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start overdue scanner: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	// Set up router using the application dependencies
	router := app.setupRouter()

	// Start the HTTP server
	err := app.startHTTPServer(ctx, router)
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// setupWorkerPool initializes and starts the background job processor.
// It uses the application struct to access required dependencies.
func setupWorkerPool(app *application) (*queue.Pool, error) {
	// Register one handler per job kind the API and scanner enqueue
	registry := queue.NewRegistry()

	handlers := []queue.Handler{
		queue.NewStatusUpdateHandler(app.taskStore, app.logger),
		queue.NewOverdueNotificationHandler(notify.NewLogNotifier(app.logger), app.logger),
		queue.NewBulkStatusUpdateHandler(app.gateway, app.logger),
	}
	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			return nil, fmt.Errorf("failed to register job handler: %w", err)
		}
	}

	// Start from the defaults so knobs absent from the config keep
	// sensible values (poll interval has no config entry)
	poolCfg := queue.DefaultPoolConfig()
	poolCfg.WorkerCount = app.config.Queue.WorkerCount
	poolCfg.RatePerSecond = app.config.Queue.RatePerSecond
	poolCfg.JobTimeout = app.config.Queue.JobTimeout
	poolCfg.Retry = queue.RetryPolicy{
		BaseDelay:   app.config.Queue.RetryBaseDelay,
		MaxDelay:    app.config.Queue.RetryMaxDelay,
		MaxAttempts: app.config.Queue.MaxAttempts,
	}
	poolCfg.StaleClaimAge = app.config.Queue.StaleClaimAge
	poolCfg.StaleCheckInterval = app.config.Queue.StaleCheckInterval
	poolCfg.SweepInterval = app.config.Queue.SweepInterval
	poolCfg.CompletedTTL = app.config.Queue.CompletedTTL
	poolCfg.CompletedCap = app.config.Queue.CompletedCap
	poolCfg.FailedTTL = app.config.Queue.FailedTTL

	pool := queue.NewPool(app.jobStore, registry, queue.NewLogHooks(app.logger), poolCfg, app.logger)

	// Start the worker pool
	if err := pool.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker pool: %w", err)
	}

	return pool, nil
}

// setupTaskCache builds the cache backend named by the configuration.
// "none" disables caching via the no-op implementation. The redis backend
// is pinged before it is handed out, so a deployment pointed at an
// unreachable server fails at startup rather than silently running
// uncached.
func setupTaskCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (cache.Cache, error) {
	switch cfg.Backend {
	case "memory":
		return cache.NewMemory(cfg.TTL, cfg.MaxEntries), nil
	case "redis":
		redisCache, err := cache.NewRedis(cfg.RedisURL, cfg.TTL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis cache: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := redisCache.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("failed to reach redis cache: %w", err)
		}
		return redisCache, nil
	default:
		return cache.Noop{}, nil
	}
}

// cleanup handles graceful shutdown of application resources.
// The shutdown timeout bounds how long the scanner and worker pool may
// spend finishing in-flight work.
func (app *application) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	// Stop the overdue scanner first so no new jobs are enqueued while
	// the pool drains
	if app.scanner != nil {
		if err := app.scanner.Stop(ctx); err != nil {
			app.logger.Error("Overdue scanner shutdown failed", "error", err)
		}
	}

	// Stop the worker pool
	if app.pool != nil {
		if err := app.pool.Stop(ctx); err != nil {
			app.logger.Error("Worker pool shutdown failed", "error", err)
		}
	}

	// Close the cache backend
	if app.taskCache != nil {
		if err := app.taskCache.Close(); err != nil {
			app.logger.Error("Error closing task cache", "error", err)
		}
	}

	// Close database connection
	closeDatabase(app.db, app.logger)

	app.logger.Info("Application shutdown completed")
}
