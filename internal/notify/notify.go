// Package notify delivers user-facing notifications about tasks. The
// queue's overdue-notification handler depends on the queue.Notifier
// interface; this package provides the concrete delivery channel.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck-api/internal/queue"
)

// LogNotifier delivers notifications to the structured log. It stands in
// for an outbound channel (email, webhooks) while still exercising the
// full job pipeline: handlers call it per task and its errors drive the
// retry path.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier that writes to the given logger.
// If logger is nil, a default logger will be used.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogNotifier{
		logger: logger.With(slog.String("component", "notifier")),
	}
}

// Ensure LogNotifier implements queue.Notifier interface
var _ queue.Notifier = (*LogNotifier)(nil)

// Notify implements queue.Notifier.
func (n *LogNotifier) Notify(ctx context.Context, taskID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.logger.InfoContext(ctx, "task overdue notification",
		slog.String("task_id", taskID.String()))
	return nil
}
