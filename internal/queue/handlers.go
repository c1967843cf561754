package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck-api/internal/domain"
	"github.com/taskdeck/taskdeck-api/internal/platform/logger"
	"github.com/taskdeck/taskdeck-api/internal/store"
)

// TaskRepository is the slice of the task store the handlers depend on.
// Handlers re-read the task through it before every mutation; the payload
// never carries an entity snapshot they could act on.
type TaskRepository interface {
	// GetByID retrieves a task by its unique ID.
	// Returns store.ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// UpdateStatus updates the status of an existing task.
	// Returns store.ErrTaskNotFound if the task does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) error
}

// Notifier delivers a notification about a single task. Implementations
// live outside the queue; failures are reported per task, not per batch.
type Notifier interface {
	// Notify sends a notification for the given task.
	Notify(ctx context.Context, taskID uuid.UUID) error
}

// Result is the outcome a handler reports for a completed execution.
type Result struct {
	// Processed counts the items the handler acted on.
	Processed int

	// Message is a human-readable summary for logs and observability.
	Message string
}

// Handler executes the logic for one job kind. Implementations must be
// idempotent with respect to re-execution (at-least-once delivery) and
// must honor ctx cancellation at safe points. Handlers never touch job
// store state; the worker pool alone translates their outcome into
// ack/nack/fail decisions.
type Handler interface {
	// Kind returns the job kind this handler executes.
	Kind() Kind

	// Handle executes the job logic for the decoded payload.
	Handle(ctx context.Context, payload Payload) (Result, error)
}

// Registry maps job kinds to their handlers. It is safe for concurrent
// use; registration happens during wiring, lookups happen on the worker
// pool's hot path.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Kind]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[Kind]Handler),
	}
}

// Register adds a handler for its kind.
// Returns an error if a handler for that kind is already registered.
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[h.Kind()]; exists {
		return fmt.Errorf("handler for kind %q already registered", h.Kind())
	}
	r.handlers[h.Kind()] = h
	return nil
}

// Get returns the handler for the given kind.
// Returns false if no handler is registered.
func (r *Registry) Get(kind Kind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns all registered job kinds.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	return kinds
}

// StatusUpdateHandler propagates a task status change. It re-fetches the
// task from the repository before writing, so a stale status carried in
// the payload of a retried job never clobbers a newer concurrent write.
type StatusUpdateHandler struct {
	tasks  TaskRepository
	logger *slog.Logger
}

// NewStatusUpdateHandler creates a StatusUpdateHandler.
// If logger is nil, a default logger will be used.
func NewStatusUpdateHandler(tasks TaskRepository, logger *slog.Logger) *StatusUpdateHandler {
	if tasks == nil {
		panic("tasks cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusUpdateHandler{
		tasks:  tasks,
		logger: logger.With(slog.String("component", "status_update_handler")),
	}
}

// Kind implements Handler.
func (h *StatusUpdateHandler) Kind() Kind { return KindStatusUpdate }

// Handle implements Handler. Re-running with the same payload after a
// partial prior success produces the same end state.
func (h *StatusUpdateHandler) Handle(ctx context.Context, payload Payload) (Result, error) {
	log := logger.FromContextOrDefault(ctx, h.logger)

	p, ok := payload.(StatusUpdatePayload)
	if !ok {
		return Result{}, NewValidationError(fmt.Sprintf("expected status update payload, got %s", payload.Kind()))
	}
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	task, err := h.tasks.GetByID(ctx, p.TaskID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch task %s: %w", p.TaskID, err)
	}

	if task.Status == p.Status {
		log.Debug("task already in target status",
			slog.String("task_id", p.TaskID.String()),
			slog.String("status", string(p.Status)))
		return Result{
			Processed: 1,
			Message:   fmt.Sprintf("task %s already %s", p.TaskID, p.Status),
		}, nil
	}

	if err := h.tasks.UpdateStatus(ctx, p.TaskID, p.Status); err != nil {
		return Result{}, fmt.Errorf("failed to update task %s status: %w", p.TaskID, err)
	}

	log.Info("task status propagated",
		slog.String("task_id", p.TaskID.String()),
		slog.String("status", string(p.Status)))
	return Result{
		Processed: 1,
		Message:   fmt.Sprintf("task %s status set to %s", p.TaskID, p.Status),
	}, nil
}

// OverdueNotificationHandler fans a single overdue batch out to the
// notifier, one notification per task id. A failure on one id is logged
// and counted but does not abort the remaining ids, so the job as a
// whole completes on partial failure. The list is processed serially;
// cancellation is checked between iterations.
type OverdueNotificationHandler struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewOverdueNotificationHandler creates an OverdueNotificationHandler.
// If logger is nil, a default logger will be used.
func NewOverdueNotificationHandler(notifier Notifier, logger *slog.Logger) *OverdueNotificationHandler {
	if notifier == nil {
		panic("notifier cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OverdueNotificationHandler{
		notifier: notifier,
		logger:   logger.With(slog.String("component", "overdue_notification_handler")),
	}
}

// Kind implements Handler.
func (h *OverdueNotificationHandler) Kind() Kind { return KindOverdueNotification }

// Handle implements Handler.
func (h *OverdueNotificationHandler) Handle(ctx context.Context, payload Payload) (Result, error) {
	log := logger.FromContextOrDefault(ctx, h.logger)

	p, ok := payload.(OverdueNotificationPayload)
	if !ok {
		return Result{}, NewValidationError(fmt.Sprintf("expected overdue notification payload, got %s", payload.Kind()))
	}
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	processed := 0
	for _, taskID := range p.TaskIDs {
		select {
		case <-ctx.Done():
			return Result{
				Processed: processed,
				Message:   fmt.Sprintf("cancelled after %d of %d notifications", processed, len(p.TaskIDs)),
			}, ctx.Err()
		default:
		}

		if err := h.notifier.Notify(ctx, taskID); err != nil {
			log.Warn("failed to notify overdue task, continuing with remaining ids",
				slog.String("task_id", taskID.String()),
				slog.String("error", err.Error()))
			continue
		}
		processed++
	}

	log.Info("overdue batch processed",
		slog.Int("processed", processed),
		slog.Int("total", len(p.TaskIDs)))
	return Result{
		Processed: processed,
		Message:   fmt.Sprintf("notified %d of %d overdue tasks", processed, len(p.TaskIDs)),
	}, nil
}

// BulkStatusUpdateHandler marks a set of tasks completed in one
// storage-level bulk transition and enqueues a downstream StatusUpdate
// job for every task actually transitioned. The transition and the
// downstream enqueue share one transaction, and the downstream payloads
// carry the post-transition status.
type BulkStatusUpdateHandler struct {
	tx     TxRunner
	logger *slog.Logger
}

// NewBulkStatusUpdateHandler creates a BulkStatusUpdateHandler.
// If logger is nil, a default logger will be used.
func NewBulkStatusUpdateHandler(tx TxRunner, logger *slog.Logger) *BulkStatusUpdateHandler {
	if tx == nil {
		panic("tx runner cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkStatusUpdateHandler{
		tx:     tx,
		logger: logger.With(slog.String("component", "bulk_status_update_handler")),
	}
}

// Kind implements Handler.
func (h *BulkStatusUpdateHandler) Kind() Kind { return KindBulkStatusUpdate }

// Handle implements Handler. Tasks already completed are excluded by the
// bulk transition; if no rows transition at all, the handler surfaces
// store.ErrTaskNotFound rather than silently succeeding.
func (h *BulkStatusUpdateHandler) Handle(ctx context.Context, payload Payload) (Result, error) {
	log := logger.FromContextOrDefault(ctx, h.logger)

	p, ok := payload.(BulkStatusUpdatePayload)
	if !ok {
		return Result{}, NewValidationError(fmt.Sprintf("expected bulk status update payload, got %s", payload.Kind()))
	}
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	var transitioned int
	err := h.tx.WithTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		tasks, err := tx.Tasks.BulkTransition(ctx, p.TaskIDs, domain.TaskStatusCompleted)
		if err != nil {
			return fmt.Errorf("bulk transition failed: %w", err)
		}
		if len(tasks) == 0 {
			return fmt.Errorf("%w: no tasks transitioned from %d ids", store.ErrTaskNotFound, len(p.TaskIDs))
		}

		jobs := make([]*Job, 0, len(tasks))
		for _, task := range tasks {
			job, err := NewJob(StatusUpdatePayload{TaskID: task.ID, Status: task.Status}, tx.MaxAttempts)
			if err != nil {
				return fmt.Errorf("failed to build downstream job for task %s: %w", task.ID, err)
			}
			jobs = append(jobs, job)
		}
		if err := tx.Jobs.EnqueueBulk(ctx, jobs); err != nil {
			return fmt.Errorf("failed to enqueue downstream status updates: %w", err)
		}

		transitioned = len(tasks)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	log.Info("bulk status update applied",
		slog.Int("transitioned", transitioned),
		slog.Int("requested", len(p.TaskIDs)))
	return Result{
		Processed: transitioned,
		Message:   fmt.Sprintf("completed %d of %d tasks", transitioned, len(p.TaskIDs)),
	}, nil
}
