package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/taskdeck/taskdeck-api/internal/api"
	apiMiddleware "github.com/taskdeck/taskdeck-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
// It accepts the application dependencies to create handlers and register routes.
// Returns the configured router.
func (app *application) setupRouter() http.Handler {
	// Create a router
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(
		apiMiddleware.TraceMiddleware,
	) // Add trace IDs for improved error handling

	// Create API handlers using the application's services
	authHandler := api.NewAuthHandler(
		app.userService,
		app.jwtService,
		app.passwordVerifier,
		time.Duration(app.config.Auth.TokenLifetimeMinutes)*time.Minute,
	)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	// Use task service from application dependencies
	taskHandler := api.NewTaskHandler(app.taskService, app.logger)

	// Queue introspection reads the job store directly
	queueHandler := api.NewQueueHandler(app.jobStore, app.logger)

	// Per-client rate limiting covers the whole API surface, including
	// the public auth endpoints
	rateLimiter := apiMiddleware.NewRateLimiter(
		app.config.Server.RateLimitPerSecond,
		app.config.Server.RateLimitBurst,
	)

	// Register routes
	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimiter.Limit)

		// Authentication endpoints (public)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.RefreshToken)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			// Task endpoints
			r.Post("/tasks", taskHandler.Create)
			r.Get("/tasks", taskHandler.List)
			r.Post("/tasks/bulk/complete", taskHandler.BulkComplete)
			r.Get("/tasks/{id}", taskHandler.Get)
			r.Patch("/tasks/{id}/status", taskHandler.UpdateStatus)
			r.Delete("/tasks/{id}", taskHandler.Delete)

			// Queue introspection endpoints
			r.Get("/queue/stats", queueHandler.Stats)
		})
	})

	// Health check endpoint. A database ping is included so orchestrators
	// pull an instance whose connection pool has gone bad.
	r.Get("/healthz", app.handleHealthz)

	return r
}

// handleHealthz reports whether the instance can serve traffic.
func (app *application) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	if err := app.db.PingContext(ctx); err != nil {
		app.logger.Error("Health check database ping failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte("database unreachable")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		app.logger.Error("Failed to write health check response", "error", err)
	}
}
