package api

import (
	"log/slog"
	"net/http"

	"github.com/taskdeck/taskdeck-api/internal/api/shared"
	"github.com/taskdeck/taskdeck-api/internal/platform/logger"
	"github.com/taskdeck/taskdeck-api/internal/queue"
)

// QueueHandler exposes read-only queue introspection endpoints.
type QueueHandler struct {
	jobStore queue.JobStore
	logger   *slog.Logger
}

// NewQueueHandler creates a new QueueHandler.
func NewQueueHandler(jobStore queue.JobStore, logger *slog.Logger) *QueueHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for QueueHandler")
	}

	return &QueueHandler{
		jobStore: jobStore,
		logger:   logger.With(slog.String("component", "queue_handler")),
	}
}

// Stats handles GET /queue/stats requests. The four counts are read one
// state at a time, so the snapshot is only approximately consistent while
// workers are draining the queue.
func (h *QueueHandler) Stats(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var resp QueueStatsResponse
	for _, entry := range []struct {
		state queue.JobState
		dest  *int
	}{
		{queue.JobStatePending, &resp.Pending},
		{queue.JobStateActive, &resp.Active},
		{queue.JobStateCompleted, &resp.Completed},
		{queue.JobStateFailed, &resp.Failed},
	} {
		count, err := h.jobStore.CountByState(r.Context(), entry.state)
		if err != nil {
			HandleAPIError(w, r, err, "Failed to read queue stats")
			return
		}
		*entry.dest = count
	}

	log.Debug("queue stats read",
		slog.Int("pending", resp.Pending),
		slog.Int("active", resp.Active),
		slog.Int("completed", resp.Completed),
		slog.Int("failed", resp.Failed))
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
