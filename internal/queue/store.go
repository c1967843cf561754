package queue

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// JobStore is the durable queue holding job records with at-least-once
// delivery. Claim, ack, and nack are mutually exclusive per job: once a
// Dequeue returns a job, no other consumer may act on it until it is
// acked, nacked, or reclaimed as stale.
type JobStore interface {
	// Enqueue persists a new Pending job.
	// Returns validation errors if the job data is invalid.
	Enqueue(ctx context.Context, job *Job) error

	// EnqueueBulk persists a batch of Pending jobs atomically: either
	// every job becomes visible or none does.
	EnqueueBulk(ctx context.Context, jobs []*Job) error

	// Dequeue claims the oldest visible Pending job (run_at elapsed),
	// marks it Active, and records the claim time. No two concurrent
	// calls may return the same job.
	// Returns ErrNoJobs if no job is eligible.
	Dequeue(ctx context.Context, workerID string) (*Job, error)

	// Ack marks an Active job Completed.
	// Returns store.ErrJobNotFound if the job is not Active.
	Ack(ctx context.Context, jobID uuid.UUID) error

	// Nack records a failed execution: it increments attempt, and either
	// returns the job to Pending with a visibility delay of nextDelay, or,
	// when attempts are exhausted, marks it Failed with the error recorded.
	// Returns store.ErrJobNotFound if the job is not Active.
	Nack(ctx context.Context, jobID uuid.UUID, jobErr error, nextDelay time.Duration) error

	// Fail marks an Active job Failed immediately, recording the error.
	// Used for validation failures and unknown kinds, which must not
	// consume retries.
	// Returns store.ErrJobNotFound if the job is not Active.
	Fail(ctx context.Context, jobID uuid.UUID, jobErr error) error

	// RequeueStale returns Active jobs whose claim is older than olderThan
	// to Pending, making crashed executors' jobs eligible again. Returns
	// the number of jobs requeued.
	RequeueStale(ctx context.Context, olderThan time.Duration) (int, error)

	// Sweep removes Completed jobs older than completedTTL (always keeping
	// at most completedCap Completed jobs) and Failed jobs older than
	// failedTTL. Best-effort housekeeping; returns the number removed.
	Sweep(ctx context.Context, completedTTL time.Duration, completedCap int, failedTTL time.Duration) (int, error)

	// CountByState returns the number of jobs currently in the given state.
	CountByState(ctx context.Context, state JobState) (int, error)

	// WithTx returns a JobStore bound to the provided transaction, so an
	// enqueue can share a transaction with an entity write.
	WithTx(tx *sql.Tx) JobStore
}
