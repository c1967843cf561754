package queue

import (
	"log/slog"

	"github.com/google/uuid"
)

// Hooks receives job lifecycle notifications from the worker pool.
// OnJobFailedFinal fires exactly once per job, when it reaches the
// terminal Failed state; retried failures are not reported here.
type Hooks interface {
	// OnJobCompleted is called after a job is acked.
	OnJobCompleted(jobID uuid.UUID)

	// OnJobFailedFinal is called when a job is marked Failed, either by
	// retry exhaustion or an immediate terminal failure.
	OnJobFailedFinal(jobID uuid.UUID, err error)
}

// LogHooks is the default Hooks implementation: it writes one
// structured log line per terminal job outcome.
type LogHooks struct {
	logger *slog.Logger
}

// NewLogHooks creates LogHooks.
// If logger is nil, a default logger will be used.
func NewLogHooks(logger *slog.Logger) *LogHooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogHooks{
		logger: logger.With(slog.String("component", "job_hooks")),
	}
}

// OnJobCompleted implements Hooks.
func (h *LogHooks) OnJobCompleted(jobID uuid.UUID) {
	h.logger.Info("job completed", slog.String("job_id", jobID.String()))
}

// OnJobFailedFinal implements Hooks.
func (h *LogHooks) OnJobFailedFinal(jobID uuid.UUID, err error) {
	h.logger.Error("job failed terminally",
		slog.String("job_id", jobID.String()),
		slog.String("error", err.Error()))
}

// NopHooks discards all notifications. Used where no observer is wired.
type NopHooks struct{}

// OnJobCompleted implements Hooks.
func (NopHooks) OnJobCompleted(uuid.UUID) {}

// OnJobFailedFinal implements Hooks.
func (NopHooks) OnJobFailedFinal(uuid.UUID, error) {}
