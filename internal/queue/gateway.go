package queue

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck-api/internal/domain"
	"github.com/taskdeck/taskdeck-api/internal/platform/logger"
	"github.com/taskdeck/taskdeck-api/internal/store"
)

// BulkChunkSize caps how many task ids a single BulkStatusUpdate job
// carries. Larger requests are split into several jobs inserted in one
// atomic batch.
const BulkChunkSize = 100

// Tx is the handle a gateway transaction body works with. Both stores
// are bound to the same underlying database transaction, so an entity
// write and a job enqueue commit or roll back together.
type Tx struct {
	Tasks store.TaskStore
	Jobs  JobStore

	// MaxAttempts is the retry budget stamped onto jobs created inside
	// this transaction.
	MaxAttempts int
}

// TxRunner runs a function against a transaction-bound Tx handle.
// Implemented by the Gateway; consumed by handlers and services that
// need the pairing guarantee without depending on the full gateway API.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error
}

// Gateway is the transactional seam pairing entity writes with job
// creation. Every task-create and task-status-update flow must pass
// through it: persisting a task mutation without its job, or a job
// without its mutation, breaks the delivery contract.
type Gateway struct {
	db          *sql.DB
	tasks       store.TaskStore
	jobs        JobStore
	maxAttempts int
	logger      *slog.Logger
}

var _ TxRunner = (*Gateway)(nil)

// NewGateway creates a Gateway over the given database handle and stores.
// maxAttempts <= 0 selects DefaultMaxAttempts. If logger is nil, a default
// logger will be used.
func NewGateway(db *sql.DB, tasks store.TaskStore, jobs JobStore, maxAttempts int, logger *slog.Logger) *Gateway {
	if db == nil {
		panic("db cannot be nil")
	}
	if tasks == nil {
		panic("tasks cannot be nil")
	}
	if jobs == nil {
		panic("jobs cannot be nil")
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		db:          db,
		tasks:       tasks,
		jobs:        jobs,
		maxAttempts: maxAttempts,
		logger:      logger.With(slog.String("component", "enqueue_gateway")),
	}
}

// WithTransaction runs fn with a Tx whose stores share one database
// transaction. If fn returns an error, every write made through the
// handle is rolled back.
func (g *Gateway) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	return store.RunInTransaction(ctx, g.db, func(ctx context.Context, sqlTx *sql.Tx) error {
		handle := &Tx{
			Tasks:       g.tasks.WithTx(sqlTx),
			Jobs:        g.jobs.WithTx(sqlTx),
			MaxAttempts: g.maxAttempts,
		}
		return fn(ctx, handle)
	})
}

// EnqueueTaskCreated pairs a new task's insert with its StatusUpdate job
// in one transaction. The job propagates the task's initial status.
func (g *Gateway) EnqueueTaskCreated(ctx context.Context, task *domain.Task) (uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	job, err := NewJob(StatusUpdatePayload{TaskID: task.ID, Status: task.Status}, g.maxAttempts)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to build status update job: %w", err)
	}

	err = g.WithTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		if err := tx.Tasks.Create(ctx, task); err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		if err := tx.Jobs.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("failed to enqueue status update job: %w", err)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	log.Debug("task created with paired job",
		slog.String("task_id", task.ID.String()),
		slog.String("job_id", job.ID.String()))
	return job.ID, nil
}

// EnqueueTaskStatusChanged re-reads the task, writes the new status, and
// enqueues the StatusUpdate job, all in one transaction. The re-read
// keeps the write from clobbering a concurrent change with stale data.
// Returns store.ErrTaskNotFound if the task does not exist.
func (g *Gateway) EnqueueTaskStatusChanged(ctx context.Context, taskID uuid.UUID, newStatus domain.TaskStatus) (uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	job, err := NewJob(StatusUpdatePayload{TaskID: taskID, Status: newStatus}, g.maxAttempts)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to build status update job: %w", err)
	}

	err = g.WithTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		task, err := tx.Tasks.GetByID(ctx, taskID)
		if err != nil {
			return fmt.Errorf("failed to fetch task %s: %w", taskID, err)
		}
		if err := task.UpdateStatus(newStatus); err != nil {
			return err
		}
		if err := tx.Tasks.Update(ctx, task); err != nil {
			return fmt.Errorf("failed to update task %s: %w", taskID, err)
		}
		if err := tx.Jobs.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("failed to enqueue status update job: %w", err)
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	log.Debug("task status changed with paired job",
		slog.String("task_id", taskID.String()),
		slog.String("status", string(newStatus)),
		slog.String("job_id", job.ID.String()))
	return job.ID, nil
}

// EnqueueOverdueBatch enqueues one OverdueNotification job for the given
// task ids. No entity write is paired with it, so the plain enqueue form
// is used.
func (g *Gateway) EnqueueOverdueBatch(ctx context.Context, taskIDs []uuid.UUID) (uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	job, err := NewJob(OverdueNotificationPayload{TaskIDs: taskIDs}, g.maxAttempts)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to build overdue notification job: %w", err)
	}

	if err := g.jobs.Enqueue(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue overdue notification job: %w", err)
	}

	log.Debug("overdue batch enqueued",
		slog.Int("task_count", len(taskIDs)),
		slog.String("job_id", job.ID.String()))
	return job.ID, nil
}

// EnqueueBulkComplete splits the task ids into chunks of BulkChunkSize
// and inserts one BulkStatusUpdate job per chunk as a single atomic
// batch: either every chunk becomes visible or none does. Returns the
// ids of the jobs created.
func (g *Gateway) EnqueueBulkComplete(ctx context.Context, taskIDs []uuid.UUID) ([]uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	if len(taskIDs) == 0 {
		return nil, NewValidationError("bulk complete requires at least one task id")
	}

	jobs := make([]*Job, 0, (len(taskIDs)+BulkChunkSize-1)/BulkChunkSize)
	for start := 0; start < len(taskIDs); start += BulkChunkSize {
		end := start + BulkChunkSize
		if end > len(taskIDs) {
			end = len(taskIDs)
		}
		job, err := NewJob(BulkStatusUpdatePayload{TaskIDs: taskIDs[start:end]}, g.maxAttempts)
		if err != nil {
			return nil, fmt.Errorf("failed to build bulk status update job: %w", err)
		}
		jobs = append(jobs, job)
	}

	if err := g.jobs.EnqueueBulk(ctx, jobs); err != nil {
		return nil, fmt.Errorf("failed to enqueue bulk status update jobs: %w", err)
	}

	jobIDs := make([]uuid.UUID, len(jobs))
	for i, job := range jobs {
		jobIDs[i] = job.ID
	}

	log.Debug("bulk complete enqueued",
		slog.Int("task_count", len(taskIDs)),
		slog.Int("job_count", len(jobs)))
	return jobIDs, nil
}
