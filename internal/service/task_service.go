package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/taskdeck/taskdeck-api/internal/cache"
	"github.com/taskdeck/taskdeck-api/internal/domain"
	"github.com/taskdeck/taskdeck-api/internal/platform/logger"
	"github.com/taskdeck/taskdeck-api/internal/store"
)

// TaskServiceError is a custom error type for task service errors.
type TaskServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// NewTaskServiceError creates a new TaskServiceError.
func NewTaskServiceError(operation, message string, err error) *TaskServiceError {
	return &TaskServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// bulkOwnershipConcurrency caps how many ownership lookups a bulk
// completion runs at once.
const bulkOwnershipConcurrency = 8

// EnqueueGateway is the slice of the queue gateway the task service needs.
// Every mutation that must be paired with a job goes through it, so the
// service never writes a task change and its job separately.
type EnqueueGateway interface {
	// EnqueueTaskCreated persists a new task together with its status
	// update job in one transaction.
	EnqueueTaskCreated(ctx context.Context, task *domain.Task) (uuid.UUID, error)

	// EnqueueTaskStatusChanged writes a task's new status together with
	// its status update job in one transaction.
	EnqueueTaskStatusChanged(ctx context.Context, taskID uuid.UUID, newStatus domain.TaskStatus) (uuid.UUID, error)

	// EnqueueBulkComplete enqueues the bulk-completion jobs covering the
	// given task ids atomically.
	EnqueueBulkComplete(ctx context.Context, taskIDs []uuid.UUID) ([]uuid.UUID, error)
}

// TaskService provides task-related operations scoped to the requesting
// user. Mutations are accepted, not applied: they come back with the id
// of the queued job that will carry out the downstream work.
type TaskService interface {
	// CreateTask persists a new task for the user and pairs it with its
	// status update job. Returns the created task and the job's id.
	CreateTask(ctx context.Context, userID uuid.UUID, title, description string, priority domain.TaskPriority, dueDate *time.Time) (*domain.Task, uuid.UUID, error)

	// GetTask retrieves one of the user's tasks by id.
	GetTask(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error)

	// ListTasks retrieves the user's tasks, newest first, narrowed by the
	// filter.
	ListTasks(ctx context.Context, userID uuid.UUID, filter store.TaskFilter) ([]*domain.Task, error)

	// UpdateTaskStatus moves one of the user's tasks to the given status
	// and pairs the write with its status update job.
	UpdateTaskStatus(ctx context.Context, userID, taskID uuid.UUID, status domain.TaskStatus) (uuid.UUID, error)

	// DeleteTask removes one of the user's tasks.
	DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error

	// BulkComplete queues completion of the given tasks, all of which
	// must belong to the user. Returns the ids of the jobs created.
	BulkComplete(ctx context.Context, userID uuid.UUID, taskIDs []uuid.UUID) ([]uuid.UUID, error)
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	tasks   store.TaskStore
	gateway EnqueueGateway
	cache   cache.Cache
	logger  *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if the store or gateway is nil. A nil cache falls
// back to the no-op backend, and a nil logger to slog.Default().
func NewTaskService(
	tasks store.TaskStore,
	gateway EnqueueGateway,
	taskCache cache.Cache,
	logger *slog.Logger,
) (TaskService, error) {
	if tasks == nil {
		return nil, fmt.Errorf("%w: task store cannot be nil", domain.ErrValidation)
	}
	if gateway == nil {
		return nil, fmt.Errorf("%w: enqueue gateway cannot be nil", domain.ErrValidation)
	}
	if taskCache == nil {
		taskCache = cache.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		tasks:   tasks,
		gateway: gateway,
		cache:   taskCache,
		logger:  logger.With(slog.String("component", "task_service")),
	}, nil
}

// taskCacheKey returns the cache key under which a task is stored.
func taskCacheKey(id uuid.UUID) string {
	return "task:" + id.String()
}

// CreateTask implements TaskService.CreateTask.
// The insert and the job enqueue share a transaction inside the gateway,
// so a non-nil return means both are durable.
func (s *taskServiceImpl) CreateTask(
	ctx context.Context,
	userID uuid.UUID,
	title, description string,
	priority domain.TaskPriority,
	dueDate *time.Time,
) (*domain.Task, uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := domain.NewTask(userID, title, description, priority, dueDate)
	if err != nil {
		log.Debug("rejected invalid task data",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, uuid.Nil, NewTaskServiceError("create_task", "invalid task data", err)
	}

	jobID, err := s.gateway.EnqueueTaskCreated(ctx, task)
	if err != nil {
		log.Error("failed to create task with paired job",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, uuid.Nil, NewTaskServiceError("create_task", "failed to save task", err)
	}

	log.Info("task created",
		slog.String("task_id", task.ID.String()),
		slog.String("job_id", jobID.String()))
	return task, jobID, nil
}

// GetTask implements TaskService.GetTask.
// Reads go through the cache: a hit skips the store entirely, a miss
// loads from the store and fills the cache for the next reader. The
// ownership check runs on both paths.
func (s *taskServiceImpl) GetTask(ctx context.Context, userID, taskID uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	key := taskCacheKey(taskID)

	if data, err := s.cache.Get(ctx, key); err == nil {
		var task domain.Task
		if err := json.Unmarshal(data, &task); err == nil {
			if task.UserID != userID {
				return nil, NewTaskServiceError("get_task", "task belongs to another user", ErrNotOwned)
			}
			log.Debug("task served from cache", slog.String("task_id", taskID.String()))
			return &task, nil
		}
		// A corrupt entry is dropped and reloaded from the store.
		_ = s.cache.Delete(ctx, key)
	}

	task, err := s.fetchOwned(ctx, "get_task", userID, taskID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(task); err == nil {
		if err := s.cache.Set(ctx, key, data, 0); err != nil {
			log.Warn("failed to cache task",
				slog.String("task_id", taskID.String()),
				slog.String("error", err.Error()))
		}
	}

	return task, nil
}

// ListTasks implements TaskService.ListTasks.
func (s *taskServiceImpl) ListTasks(ctx context.Context, userID uuid.UUID, filter store.TaskFilter) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	tasks, err := s.tasks.List(ctx, userID, filter)
	if err != nil {
		log.Error("failed to list tasks",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, NewTaskServiceError("list_tasks", "failed to list tasks", err)
	}

	log.Debug("tasks listed",
		slog.String("user_id", userID.String()),
		slog.Int("count", len(tasks)))
	return tasks, nil
}

// UpdateTaskStatus implements TaskService.UpdateTaskStatus.
// The status write and its job are committed together by the gateway;
// the cache entry is dropped once the commit succeeds.
func (s *taskServiceImpl) UpdateTaskStatus(
	ctx context.Context,
	userID, taskID uuid.UUID,
	status domain.TaskStatus,
) (uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !domain.IsValidTaskStatus(status) {
		return uuid.Nil, NewTaskServiceError("update_task_status", "invalid target status", domain.ErrInvalidTaskStatus)
	}

	if _, err := s.fetchOwned(ctx, "update_task_status", userID, taskID); err != nil {
		return uuid.Nil, err
	}

	jobID, err := s.gateway.EnqueueTaskStatusChanged(ctx, taskID, status)
	if err != nil {
		log.Error("failed to update task status with paired job",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()),
			slog.String("status", string(status)))
		return uuid.Nil, NewTaskServiceError("update_task_status", "failed to update status", err)
	}

	s.invalidate(ctx, taskID, log)

	log.Info("task status updated",
		slog.String("task_id", taskID.String()),
		slog.String("status", string(status)),
		slog.String("job_id", jobID.String()))
	return jobID, nil
}

// DeleteTask implements TaskService.DeleteTask.
func (s *taskServiceImpl) DeleteTask(ctx context.Context, userID, taskID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.fetchOwned(ctx, "delete_task", userID, taskID); err != nil {
		return err
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		if store.IsNotFoundError(err) {
			return NewTaskServiceError("delete_task", "task not found", store.ErrTaskNotFound)
		}
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return NewTaskServiceError("delete_task", "failed to delete task", err)
	}

	s.invalidate(ctx, taskID, log)

	log.Info("task deleted", slog.String("task_id", taskID.String()))
	return nil
}

// BulkComplete implements TaskService.BulkComplete.
// Every id must resolve to a task the user owns before anything is
// enqueued; the first failure aborts the whole request so partial batches
// never reach the queue.
func (s *taskServiceImpl) BulkComplete(ctx context.Context, userID uuid.UUID, taskIDs []uuid.UUID) ([]uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(taskIDs) == 0 {
		return nil, NewTaskServiceError("bulk_complete", "at least one task id is required", domain.ErrValidation)
	}

	// Ownership checks are independent reads, so they fan out; the first
	// failure cancels the rest through the group context.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkOwnershipConcurrency)
	for _, id := range taskIDs {
		g.Go(func() error {
			_, err := s.fetchOwned(gctx, "bulk_complete", userID, id)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	jobIDs, err := s.gateway.EnqueueBulkComplete(ctx, taskIDs)
	if err != nil {
		log.Error("failed to enqueue bulk completion",
			slog.String("error", err.Error()),
			slog.Int("task_count", len(taskIDs)))
		return nil, NewTaskServiceError("bulk_complete", "failed to enqueue bulk completion", err)
	}

	// The transitions happen asynchronously in the handler; dropping the
	// entries now means the next read observes at worst one cache TTL of
	// staleness.
	for _, id := range taskIDs {
		s.invalidate(ctx, id, log)
	}

	log.Info("bulk completion enqueued",
		slog.Int("task_count", len(taskIDs)),
		slog.Int("job_count", len(jobIDs)))
	return jobIDs, nil
}

// fetchOwned loads a task and verifies the caller owns it. Not-found and
// ownership failures come back as service errors carrying the matching
// sentinel.
func (s *taskServiceImpl) fetchOwned(ctx context.Context, operation string, userID, taskID uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, NewTaskServiceError(operation, "task not found", store.ErrTaskNotFound)
		}
		return nil, NewTaskServiceError(operation, "failed to retrieve task", err)
	}
	if task.UserID != userID {
		return nil, NewTaskServiceError(operation, "task belongs to another user", ErrNotOwned)
	}
	return task, nil
}

// invalidate drops a task's cache entry after a mutation. Failures are
// logged and swallowed; the entry expires on its TTL regardless.
func (s *taskServiceImpl) invalidate(ctx context.Context, taskID uuid.UUID, log *slog.Logger) {
	if err := s.cache.Delete(ctx, taskCacheKey(taskID)); err != nil {
		log.Warn("failed to invalidate cached task",
			slog.String("task_id", taskID.String()),
			slog.String("error", err.Error()))
	}
}
