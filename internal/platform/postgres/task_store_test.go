package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck-api/internal/domain"
	"github.com/taskdeck/taskdeck-api/internal/store"
)

// mustNewTask builds a valid pending task owned by a fresh user.
func mustNewTask(t *testing.T) *domain.Task {
	t.Helper()

	task, err := domain.NewTask(uuid.New(), "Write quarterly report", "Q3 numbers", domain.TaskPriorityMedium, nil)
	require.NoError(t, err)
	return task
}

// taskRows builds a sqlmock row set in taskColumns order.
func taskRows(tasks ...*domain.Task) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "title", "description", "status", "priority",
		"due_date", "created_at", "updated_at",
	})
	for _, task := range tasks {
		var dueDate interface{}
		if task.DueDate != nil {
			dueDate = *task.DueDate
		}
		rows.AddRow(
			task.ID.String(),
			task.UserID.String(),
			task.Title,
			task.Description,
			string(task.Status),
			string(task.Priority),
			dueDate,
			task.CreatedAt,
			task.UpdatedAt,
		)
	}
	return rows
}

func TestNewPostgresTaskStore(t *testing.T) {
	t.Parallel()

	t.Run("panics on nil db", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			NewPostgresTaskStore(nil, testLogger())
		})
	})

	t.Run("accepts nil logger", func(t *testing.T) {
		t.Parallel()
		db, _ := newMockDB(t)
		assert.NotNil(t, NewPostgresTaskStore(db, nil))
	})
}

func TestPostgresTaskStoreCreate(t *testing.T) {
	t.Parallel()

	t.Run("inserts a valid task", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())
		task := mustNewTask(t)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tasks")).
			WithArgs(
				task.ID, task.UserID, task.Title, task.Description,
				task.Status, task.Priority, task.DueDate,
				task.CreatedAt, task.UpdatedAt,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, taskStore.Create(context.Background(), task))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects invalid task without touching the database", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())
		task := mustNewTask(t)
		task.Title = ""

		err := taskStore.Create(context.Background(), task)
		assert.ErrorIs(t, err, domain.ErrEmptyTaskTitle)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps foreign key violation to invalid entity", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())
		task := mustNewTask(t)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tasks")).
			WillReturnError(&pgconn.PgError{Code: foreignKeyViolationCode})

		err := taskStore.Create(context.Background(), task)
		assert.ErrorIs(t, err, store.ErrInvalidEntity)
	})
}

func TestPostgresTaskStoreGetByID(t *testing.T) {
	t.Parallel()

	t.Run("returns the task with a due date", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())

		due := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Microsecond)
		task, err := domain.NewTask(uuid.New(), "Renew certificates", "", domain.TaskPriorityHigh, &due)
		require.NoError(t, err)

		mock.ExpectQuery(regexp.QuoteMeta("FROM tasks")).
			WithArgs(task.ID).
			WillReturnRows(taskRows(task))

		got, err := taskStore.GetByID(context.Background(), task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, got.ID)
		assert.Equal(t, task.UserID, got.UserID)
		assert.Equal(t, task.Title, got.Title)
		assert.Equal(t, domain.TaskPriorityHigh, got.Priority)
		require.NotNil(t, got.DueDate)
		assert.True(t, got.DueDate.Equal(due))
	})

	t.Run("returns not found for missing task", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())
		id := uuid.New()

		mock.ExpectQuery(regexp.QuoteMeta("FROM tasks")).
			WithArgs(id).
			WillReturnRows(taskRows())

		got, err := taskStore.GetByID(context.Background(), id)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestPostgresTaskStoreList(t *testing.T) {
	t.Parallel()

	t.Run("lists with only the owner filter", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())
		userID := uuid.New()

		first := mustNewTask(t)
		second := mustNewTask(t)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1")).
			WithArgs(userID).
			WillReturnRows(taskRows(first, second))

		tasks, err := taskStore.List(context.Background(), userID, store.TaskFilter{})
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, first.ID, tasks[0].ID)
		assert.Equal(t, second.ID, tasks[1].ID)
	})

	t.Run("binds status, priority, limit, and offset in order", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())
		userID := uuid.New()

		status := domain.TaskStatusPending
		priority := domain.TaskPriorityHigh
		filter := store.TaskFilter{
			Status:   &status,
			Priority: &priority,
			Limit:    20,
			Offset:   40,
		}

		mock.ExpectQuery(regexp.QuoteMeta("LIMIT $4 OFFSET $5")).
			WithArgs(userID, status, priority, 20, 40).
			WillReturnRows(taskRows())

		tasks, err := taskStore.List(context.Background(), userID, filter)
		require.NoError(t, err)
		assert.Empty(t, tasks)
		assert.NotNil(t, tasks, "empty result should be a non-nil slice")
	})
}

func TestPostgresTaskStoreUpdate(t *testing.T) {
	t.Parallel()

	t.Run("updates an existing task", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())
		task := mustNewTask(t)

		mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
			WithArgs(
				task.Title, task.Description, task.Status, task.Priority,
				task.DueDate, task.UpdatedAt, task.ID,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, taskStore.Update(context.Background(), task))
	})

	t.Run("returns not found when no row matches", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())
		task := mustNewTask(t)

		mock.ExpectExec(regexp.QuoteMeta("UPDATE tasks")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := taskStore.Update(context.Background(), task)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestPostgresTaskStoreUpdateStatus(t *testing.T) {
	t.Parallel()

	t.Run("updates the status", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())
		id := uuid.New()

		mock.ExpectExec(regexp.QuoteMeta("SET status = $1")).
			WithArgs(domain.TaskStatusCompleted, sqlmock.AnyArg(), id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, taskStore.UpdateStatus(context.Background(), id, domain.TaskStatusCompleted))
	})

	t.Run("rejects invalid status without touching the database", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())

		err := taskStore.UpdateStatus(context.Background(), uuid.New(), domain.TaskStatus("archived"))
		assert.ErrorIs(t, err, domain.ErrInvalidTaskStatus)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns not found when no row matches", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())

		mock.ExpectExec(regexp.QuoteMeta("SET status = $1")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := taskStore.UpdateStatus(context.Background(), uuid.New(), domain.TaskStatusCompleted)
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestPostgresTaskStoreDelete(t *testing.T) {
	t.Parallel()

	t.Run("deletes an existing task", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())
		id := uuid.New()

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks WHERE id = $1")).
			WithArgs(id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, taskStore.Delete(context.Background(), id))
	})

	t.Run("returns not found when no row matches", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks WHERE id = $1")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := taskStore.Delete(context.Background(), uuid.New())
		assert.ErrorIs(t, err, store.ErrTaskNotFound)
	})
}

func TestPostgresTaskStoreBulkTransition(t *testing.T) {
	t.Parallel()

	t.Run("returns only the tasks that changed", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())

		changedA := mustNewTask(t)
		changedA.Status = domain.TaskStatusCompleted
		changedB := mustNewTask(t)
		changedB.Status = domain.TaskStatusCompleted
		ids := []uuid.UUID{changedA.ID, changedB.ID, uuid.New()}

		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = ANY($1) AND status <> $2")).
			WithArgs(ids, domain.TaskStatusCompleted, sqlmock.AnyArg()).
			WillReturnRows(taskRows(changedA, changedB))

		tasks, err := taskStore.BulkTransition(context.Background(), ids, domain.TaskStatusCompleted)
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, domain.TaskStatusCompleted, tasks[0].Status)
		assert.Equal(t, domain.TaskStatusCompleted, tasks[1].Status)
	})

	t.Run("skips the database entirely for an empty id list", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())

		tasks, err := taskStore.BulkTransition(context.Background(), nil, domain.TaskStatusCompleted)
		require.NoError(t, err)
		assert.Empty(t, tasks)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects invalid target status", func(t *testing.T) {
		t.Parallel()

		db, _ := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())

		_, err := taskStore.BulkTransition(context.Background(), []uuid.UUID{uuid.New()}, domain.TaskStatus("archived"))
		assert.ErrorIs(t, err, domain.ErrInvalidTaskStatus)
	})
}

func TestPostgresTaskStoreListOverdue(t *testing.T) {
	t.Parallel()

	t.Run("binds cutoff, terminal statuses, and limit", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())

		due := time.Now().UTC().Add(-24 * time.Hour)
		task, err := domain.NewTask(uuid.New(), "Chase invoice", "", domain.TaskPriorityLow, &due)
		require.NoError(t, err)

		asOf := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta("ORDER BY due_date ASC")).
			WithArgs(asOf, domain.TaskStatusCompleted, domain.TaskStatusFailed, 25).
			WillReturnRows(taskRows(task))

		tasks, err := taskStore.ListOverdue(context.Background(), asOf, 25)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, task.ID, tasks[0].ID)
	})

	t.Run("applies the default limit when non-positive", func(t *testing.T) {
		t.Parallel()

		db, mock := newMockDB(t)
		taskStore := NewPostgresTaskStore(db, testLogger())

		asOf := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta("ORDER BY due_date ASC")).
			WithArgs(asOf, domain.TaskStatusCompleted, domain.TaskStatusFailed, defaultOverdueLimit).
			WillReturnRows(taskRows())

		_, err := taskStore.ListOverdue(context.Background(), asOf, 0)
		require.NoError(t, err)
	})
}

func TestPostgresTaskStoreWithTx(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	taskStore := NewPostgresTaskStore(db, testLogger())
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM tasks WHERE id = $1")).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	require.NoError(t, taskStore.WithTx(tx).Delete(context.Background(), id))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}
