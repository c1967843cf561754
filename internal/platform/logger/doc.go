// Package logger configures the application's structured JSON logging on
// top of log/slog and provides helpers for carrying a logger through a
// context.Context so handlers and workers log with request- or job-scoped
// attributes.
package logger
