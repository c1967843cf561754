package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck-api/internal/domain"
)

// TaskFilter narrows the result set of TaskStore.List. Zero-valued
// fields are ignored, so an empty filter lists everything the user owns.
type TaskFilter struct {
	Status   *domain.TaskStatus
	Priority *domain.TaskPriority
	Limit    int
	Offset   int
}

// TaskStore defines the interface for task data persistence.
type TaskStore interface {
	// Create saves a new task to the store.
	// It handles domain validation internally.
	// Returns validation errors from the domain Task if data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// List retrieves tasks owned by the given user, newest first,
	// narrowed by the filter. Returns an empty slice if nothing matches.
	List(ctx context.Context, userID uuid.UUID, filter TaskFilter) ([]*domain.Task, error)

	// Update saves changes to an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	// Returns validation errors if the task data is invalid.
	Update(ctx context.Context, task *domain.Task) error

	// UpdateStatus updates the status of an existing task.
	// Returns ErrTaskNotFound if the task does not exist.
	// Returns domain.ErrInvalidTaskStatus if the status is invalid.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) error

	// Delete removes a task from the store by its ID.
	// Returns ErrTaskNotFound if the task does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// BulkTransition moves every listed task to the target status in a
	// single statement, skipping tasks already in that status, and returns
	// the tasks that actually changed. IDs that do not exist are ignored.
	BulkTransition(ctx context.Context, ids []uuid.UUID, target domain.TaskStatus) ([]*domain.Task, error)

	// ListOverdue retrieves up to limit tasks whose due date is before
	// asOf and whose status is neither completed nor failed, ordered by
	// due date, oldest first.
	ListOverdue(ctx context.Context, asOf time.Time, limit int) ([]*domain.Task, error)

	// WithTx returns a new TaskStore instance that uses the provided transaction.
	// The transaction should be created and managed by the caller (typically a service).
	WithTx(tx *sql.Tx) TaskStore
}
