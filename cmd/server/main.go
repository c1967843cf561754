// Package main implements the entry point for the Taskdeck API server
// which manages users' tasks and processes task lifecycle jobs through
// a durable background queue.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/taskdeck/taskdeck-api/internal/config"
	"github.com/taskdeck/taskdeck-api/internal/platform/logger"
)

// main is the entry point for the taskdeck-api server.
// It initializes configuration, sets up logging, establishes the database
// connection, applies migrations, injects dependencies, and starts the
// HTTP server.
func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

// run wires the application together and blocks until shutdown.
// Errors are returned rather than logged fatally so main owns the exit.
func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Set up structured logging using the configured log level
	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	// Log configuration details using structured logging
	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"queue_backend", cfg.Queue.Backend,
		"cache_backend", cfg.Cache.Backend)

	// Establish database connection
	db, err := setupAppDatabase(cfg, appLogger)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}

	// Apply pending schema migrations before any store touches the database
	if err := runMigrations(db); err != nil {
		closeDatabase(db, appLogger)
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Initialize application dependencies
	app, err := newApplication(ctx, cfg, appLogger, db)
	if err != nil {
		closeDatabase(db, appLogger)
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	// Start the HTTP server and block until shutdown completes
	return app.Run(ctx)
}
