package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck-api/internal/platform/logger"
	"github.com/taskdeck/taskdeck-api/internal/queue"
	"github.com/taskdeck/taskdeck-api/internal/store"
)

// jobColumns is the column list shared by every query that scans a full
// job row. The seq column is internal ordering state and is never scanned.
const jobColumns = "id, kind, payload, attempt, max_attempts, state, enqueued_at, run_at, last_error, started_at, completed_at"

// PostgresJobStore implements the queue.JobStore interface using a
// PostgreSQL database as the storage backend. Dequeue relies on
// FOR UPDATE SKIP LOCKED so concurrent workers never claim the same job,
// and enqueues can run inside the caller's transaction via WithTx.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the JobStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// Ensure PostgresJobStore implements queue.JobStore interface
var _ queue.JobStore = (*PostgresJobStore)(nil)

// WithTx implements queue.JobStore.WithTx
// It returns a new JobStore instance bound to the provided transaction,
// so an enqueue can share a transaction with an entity write.
func (s *PostgresJobStore) WithTx(tx *sql.Tx) queue.JobStore {
	return &PostgresJobStore{
		db:     tx,
		logger: s.logger,
	}
}

// Enqueue implements queue.JobStore.Enqueue
// It persists a new Pending job.
// Returns validation errors if the job data is invalid.
func (s *PostgresJobStore) Enqueue(ctx context.Context, job *queue.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during enqueue",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return err
	}

	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.Kind,
		[]byte(job.Payload),
		job.Attempt,
		job.MaxAttempts,
		job.State,
		job.EnqueuedAt,
		job.RunAt,
		job.LastError,
		job.StartedAt,
		job.CompletedAt,
	)

	if err != nil {
		log.Error("failed to enqueue job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()),
			slog.String("kind", string(job.Kind)))
		return MapError(err)
	}

	log.Debug("job enqueued",
		slog.String("job_id", job.ID.String()),
		slog.String("kind", string(job.Kind)))
	return nil
}

// EnqueueBulk implements queue.JobStore.EnqueueBulk
// It persists a batch of Pending jobs in a single multi-row INSERT, so
// either every job becomes visible or none does.
func (s *PostgresJobStore) EnqueueBulk(ctx context.Context, jobs []*queue.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(jobs) == 0 {
		return nil
	}

	for _, job := range jobs {
		if err := job.Validate(); err != nil {
			log.Warn("job validation failed during bulk enqueue",
				slog.String("error", err.Error()),
				slog.String("job_id", job.ID.String()))
			return err
		}
	}

	const columnsPerJob = 11
	placeholders := make([]string, 0, len(jobs))
	args := make([]interface{}, 0, len(jobs)*columnsPerJob)
	for i, job := range jobs {
		base := i * columnsPerJob
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
			base+7, base+8, base+9, base+10, base+11,
		))
		args = append(args,
			job.ID,
			job.Kind,
			[]byte(job.Payload),
			job.Attempt,
			job.MaxAttempts,
			job.State,
			job.EnqueuedAt,
			job.RunAt,
			job.LastError,
			job.StartedAt,
			job.CompletedAt,
		)
	}

	query := `INSERT INTO jobs (` + jobColumns + `) VALUES ` + strings.Join(placeholders, ", ")

	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to bulk enqueue jobs",
			slog.String("error", err.Error()),
			slog.Int("count", len(jobs)))
		return MapError(err)
	}

	log.Debug("jobs bulk enqueued", slog.Int("count", len(jobs)))
	return nil
}

// Dequeue implements queue.JobStore.Dequeue
// It claims the oldest visible Pending job, marks it Active, and records
// the claim time and claiming worker. FOR UPDATE SKIP LOCKED guarantees
// no two concurrent calls return the same job.
// Returns queue.ErrNoJobs if no job is eligible.
func (s *PostgresJobStore) Dequeue(ctx context.Context, workerID string) (*queue.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE jobs
		SET state = $1, started_at = now(), worker_id = $2
		WHERE id = (
			SELECT id FROM jobs
			WHERE state = $3 AND run_at <= now()
			ORDER BY seq ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING ` + jobColumns + `
	`

	job, err := scanJob(s.db.QueryRowContext(
		ctx,
		query,
		queue.JobStateActive,
		workerID,
		queue.JobStatePending,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, queue.ErrNoJobs
		}
		log.Error("failed to dequeue job",
			slog.String("error", err.Error()),
			slog.String("worker_id", workerID))
		return nil, err
	}

	log.Debug("job dequeued",
		slog.String("job_id", job.ID.String()),
		slog.String("kind", string(job.Kind)),
		slog.String("worker_id", workerID))
	return job, nil
}

// Ack implements queue.JobStore.Ack
// It marks an Active job Completed.
// Returns store.ErrJobNotFound if the job is not Active.
func (s *PostgresJobStore) Ack(ctx context.Context, jobID uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE jobs
		SET state = $1, completed_at = now(), worker_id = NULL
		WHERE id = $2 AND state = $3
	`

	result, err := s.db.ExecContext(ctx, query, queue.JobStateCompleted, jobID, queue.JobStateActive)
	if err != nil {
		log.Error("failed to ack job",
			slog.String("error", err.Error()),
			slog.String("job_id", jobID.String()))
		return MapError(err)
	}

	return checkJobAffected(result, jobID, log, "ack")
}

// Nack implements queue.JobStore.Nack
// It records a failed execution: the attempt counter is incremented, and
// the job either returns to Pending with a visibility delay of nextDelay
// or, when attempts are exhausted, is marked Failed.
// Returns store.ErrJobNotFound if the job is not Active.
func (s *PostgresJobStore) Nack(ctx context.Context, jobID uuid.UUID, jobErr error, nextDelay time.Duration) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	lastError := ""
	if jobErr != nil {
		lastError = jobErr.Error()
	}
	runAt := time.Now().UTC().Add(nextDelay)

	// A single statement decides between retry and terminal failure so
	// the attempt budget check is atomic with the increment.
	query := `
		UPDATE jobs
		SET attempt = attempt + 1,
		    last_error = $1,
		    state = CASE WHEN attempt + 1 >= max_attempts THEN $2 ELSE $3 END,
		    run_at = CASE WHEN attempt + 1 >= max_attempts THEN run_at ELSE $4 END,
		    completed_at = CASE WHEN attempt + 1 >= max_attempts THEN now() ELSE NULL END,
		    started_at = NULL,
		    worker_id = NULL
		WHERE id = $5 AND state = $6
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		lastError,
		queue.JobStateFailed,
		queue.JobStatePending,
		runAt,
		jobID,
		queue.JobStateActive,
	)
	if err != nil {
		log.Error("failed to nack job",
			slog.String("error", err.Error()),
			slog.String("job_id", jobID.String()))
		return MapError(err)
	}

	return checkJobAffected(result, jobID, log, "nack")
}

// Fail implements queue.JobStore.Fail
// It marks an Active job Failed immediately without consuming retries,
// recording the error. Used for validation failures and unknown kinds.
// Returns store.ErrJobNotFound if the job is not Active.
func (s *PostgresJobStore) Fail(ctx context.Context, jobID uuid.UUID, jobErr error) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	lastError := ""
	if jobErr != nil {
		lastError = jobErr.Error()
	}

	query := `
		UPDATE jobs
		SET state = $1, last_error = $2, completed_at = now(), worker_id = NULL
		WHERE id = $3 AND state = $4
	`

	result, err := s.db.ExecContext(
		ctx,
		query,
		queue.JobStateFailed,
		lastError,
		jobID,
		queue.JobStateActive,
	)
	if err != nil {
		log.Error("failed to mark job failed",
			slog.String("error", err.Error()),
			slog.String("job_id", jobID.String()))
		return MapError(err)
	}

	return checkJobAffected(result, jobID, log, "fail")
}

// RequeueStale implements queue.JobStore.RequeueStale
// It returns Active jobs whose claim is older than olderThan to Pending,
// making jobs abandoned by crashed workers eligible again.
// Returns the number of jobs requeued.
func (s *PostgresJobStore) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cutoff := time.Now().UTC().Add(-olderThan)

	query := `
		UPDATE jobs
		SET state = $1, run_at = now(), started_at = NULL, worker_id = NULL
		WHERE state = $2 AND started_at < $3
	`

	result, err := s.db.ExecContext(ctx, query, queue.JobStatePending, queue.JobStateActive, cutoff)
	if err != nil {
		log.Error("failed to requeue stale jobs",
			slog.String("error", err.Error()))
		return 0, MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()))
		return 0, err
	}

	return int(rowsAffected), nil
}

// Sweep implements queue.JobStore.Sweep
// It removes Completed jobs older than completedTTL (always keeping at
// most completedCap Completed jobs, newest first) and Failed jobs older
// than failedTTL. Returns the number of jobs removed.
func (s *PostgresJobStore) Sweep(
	ctx context.Context,
	completedTTL time.Duration,
	completedCap int,
	failedTTL time.Duration,
) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	removed := 0

	expiredQuery := `
		DELETE FROM jobs
		WHERE state = $1 AND completed_at < $2
	`

	result, err := s.db.ExecContext(ctx, expiredQuery, queue.JobStateCompleted, now.Add(-completedTTL))
	if err != nil {
		log.Error("failed to sweep expired completed jobs",
			slog.String("error", err.Error()))
		return removed, MapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return removed, err
	}
	removed += int(n)

	if completedCap > 0 {
		capQuery := `
			DELETE FROM jobs
			WHERE id IN (
				SELECT id FROM jobs
				WHERE state = $1
				ORDER BY seq DESC
				OFFSET $2
			)
		`

		result, err = s.db.ExecContext(ctx, capQuery, queue.JobStateCompleted, completedCap)
		if err != nil {
			log.Error("failed to sweep completed jobs beyond cap",
				slog.String("error", err.Error()))
			return removed, MapError(err)
		}
		n, err = result.RowsAffected()
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}

	result, err = s.db.ExecContext(ctx, expiredQuery, queue.JobStateFailed, now.Add(-failedTTL))
	if err != nil {
		log.Error("failed to sweep expired failed jobs",
			slog.String("error", err.Error()))
		return removed, MapError(err)
	}
	n, err = result.RowsAffected()
	if err != nil {
		return removed, err
	}
	removed += int(n)

	return removed, nil
}

// CountByState implements queue.JobStore.CountByState
// It returns the number of jobs currently in the given state.
func (s *PostgresJobStore) CountByState(ctx context.Context, state queue.JobState) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT COUNT(*) FROM jobs WHERE state = $1`

	var count int
	if err := s.db.QueryRowContext(ctx, query, state).Scan(&count); err != nil {
		log.Error("failed to count jobs by state",
			slog.String("error", err.Error()),
			slog.String("state", string(state)))
		return 0, err
	}

	return count, nil
}

// scanJob reads one job row in jobColumns order.
func scanJob(row rowScanner) (*queue.Job, error) {
	var job queue.Job
	var kind, state string
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&kind,
		&job.Payload,
		&job.Attempt,
		&job.MaxAttempts,
		&state,
		&job.EnqueuedAt,
		&job.RunAt,
		&job.LastError,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Kind = queue.Kind(kind)
	job.State = queue.JobState(state)
	if startedAt.Valid {
		started := startedAt.Time
		job.StartedAt = &started
	}
	if completedAt.Valid {
		completed := completedAt.Time
		job.CompletedAt = &completed
	}

	return &job, nil
}

// checkJobAffected maps a zero-row UPDATE to store.ErrJobNotFound, which
// covers both unknown IDs and jobs no longer in the Active state.
func checkJobAffected(result sql.Result, jobID uuid.UUID, log *slog.Logger, operation string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()),
			slog.String("job_id", jobID.String()))
		return err
	}

	if rowsAffected == 0 {
		log.Debug("job not active",
			slog.String("job_id", jobID.String()),
			slog.String("operation", operation))
		return store.ErrJobNotFound
	}

	return nil
}
