package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck-api/internal/domain"
	"github.com/taskdeck/taskdeck-api/internal/store"
)

// enqueueStatusUpdate creates and enqueues a fresh StatusUpdate job,
// returning it for later assertions.
func enqueueStatusUpdate(t *testing.T, s *MemoryJobStore) *Job {
	t.Helper()

	job, err := NewJob(StatusUpdatePayload{TaskID: uuid.New(), Status: domain.TaskStatusCompleted}, 3)
	require.NoError(t, err)
	require.NoError(t, s.Enqueue(context.Background(), job))
	return job
}

func TestMemoryJobStoreEnqueueDequeue(t *testing.T) {
	t.Parallel()

	s := NewMemoryJobStore()
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		_, err := s.Dequeue(ctx, "worker-0")
		assert.ErrorIs(t, err, ErrNoJobs)
	})

	t.Run("claimed job becomes active", func(t *testing.T) {
		job := enqueueStatusUpdate(t, s)

		claimed, err := s.Dequeue(ctx, "worker-0")
		require.NoError(t, err)

		assert.Equal(t, job.ID, claimed.ID)
		assert.Equal(t, JobStateActive, claimed.State)
		require.NotNil(t, claimed.StartedAt)

		// The claim is exclusive: a second dequeue finds nothing.
		_, err = s.Dequeue(ctx, "worker-1")
		assert.ErrorIs(t, err, ErrNoJobs)
	})

	t.Run("invalid job rejected", func(t *testing.T) {
		err := s.Enqueue(ctx, &Job{ID: uuid.New(), State: JobStatePending})
		assert.ErrorIs(t, err, ErrEmptyJobKind)
	})
}

func TestMemoryJobStoreFIFO(t *testing.T) {
	t.Parallel()

	s := NewMemoryJobStore()
	ctx := context.Background()

	first := enqueueStatusUpdate(t, s)
	second := enqueueStatusUpdate(t, s)
	third := enqueueStatusUpdate(t, s)

	for i, want := range []uuid.UUID{first.ID, second.ID, third.ID} {
		claimed, err := s.Dequeue(ctx, "worker-0")
		require.NoError(t, err)
		assert.Equal(t, want, claimed.ID, "dequeue %d should follow enqueue order", i)
	}
}

func TestMemoryJobStoreVisibilityDelay(t *testing.T) {
	t.Parallel()

	s := NewMemoryJobStore()
	ctx := context.Background()

	future, err := NewJob(StatusUpdatePayload{TaskID: uuid.New(), Status: domain.TaskStatusCompleted}, 3)
	require.NoError(t, err)
	future.RunAt = time.Now().UTC().Add(time.Hour)
	require.NoError(t, s.Enqueue(ctx, future))

	// Not yet visible.
	_, err = s.Dequeue(ctx, "worker-0")
	assert.ErrorIs(t, err, ErrNoJobs)

	// A visible job enqueued later is claimed first: visibility beats
	// enqueue order.
	visible := enqueueStatusUpdate(t, s)
	claimed, err := s.Dequeue(ctx, "worker-0")
	require.NoError(t, err)
	assert.Equal(t, visible.ID, claimed.ID)
}

func TestMemoryJobStoreDequeueMutualExclusion(t *testing.T) {
	t.Parallel()

	s := NewMemoryJobStore()
	ctx := context.Background()

	const jobCount = 50
	for i := 0; i < jobCount; i++ {
		enqueueStatusUpdate(t, s)
	}

	var mu sync.Mutex
	claimed := make(map[uuid.UUID]int)

	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := s.Dequeue(ctx, "worker")
				if errors.Is(err, ErrNoJobs) {
					return
				}
				if err != nil {
					t.Errorf("unexpected dequeue error: %v", err)
					return
				}
				mu.Lock()
				claimed[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, jobCount, "every job should be claimed exactly once")
	for id, count := range claimed {
		assert.Equal(t, 1, count, "job %s was claimed %d times", id, count)
	}
}

func TestMemoryJobStoreAck(t *testing.T) {
	t.Parallel()

	s := NewMemoryJobStore()
	ctx := context.Background()

	job := enqueueStatusUpdate(t, s)

	// Ack before claim is invalid.
	assert.ErrorIs(t, s.Ack(ctx, job.ID), store.ErrJobNotFound)

	_, err := s.Dequeue(ctx, "worker-0")
	require.NoError(t, err)
	require.NoError(t, s.Ack(ctx, job.ID))

	stored, err := s.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateCompleted, stored.State)
	require.NotNil(t, stored.CompletedAt)

	// Double ack is invalid.
	assert.ErrorIs(t, s.Ack(ctx, job.ID), store.ErrJobNotFound)

	// Unknown job id.
	assert.ErrorIs(t, s.Ack(ctx, uuid.New()), store.ErrJobNotFound)
}

func TestMemoryJobStoreNackRetries(t *testing.T) {
	t.Parallel()

	s := NewMemoryJobStore()
	ctx := context.Background()

	job := enqueueStatusUpdate(t, s)

	_, err := s.Dequeue(ctx, "worker-0")
	require.NoError(t, err)

	// First failure: back to Pending with the delay applied.
	require.NoError(t, s.Nack(ctx, job.ID, errors.New("transient"), time.Hour))

	stored, err := s.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatePending, stored.State)
	assert.Equal(t, 1, stored.Attempt)
	assert.Equal(t, "transient", stored.LastError)
	assert.Nil(t, stored.StartedAt)

	// The delay hides the job from dequeue.
	_, err = s.Dequeue(ctx, "worker-0")
	assert.ErrorIs(t, err, ErrNoJobs)
}

func TestMemoryJobStoreAttemptNeverExceedsBudget(t *testing.T) {
	t.Parallel()

	s := NewMemoryJobStore()
	ctx := context.Background()

	job := enqueueStatusUpdate(t, s)

	// Drive the job through its whole retry budget with zero delays.
	failures := 0
	for {
		claimed, err := s.Dequeue(ctx, "worker-0")
		if errors.Is(err, ErrNoJobs) {
			break
		}
		require.NoError(t, err)
		require.Equal(t, job.ID, claimed.ID)

		failures++
		require.NoError(t, s.Nack(ctx, claimed.ID, errors.New("still broken"), 0))
	}

	assert.Equal(t, job.MaxAttempts, failures, "job should execute exactly MaxAttempts times")

	stored, err := s.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateFailed, stored.State)
	assert.Equal(t, job.MaxAttempts, stored.Attempt, "attempt must never exceed the budget")
	require.NotNil(t, stored.CompletedAt)
}

func TestMemoryJobStoreNackAtLastAttemptFails(t *testing.T) {
	t.Parallel()

	s := NewMemoryJobStore()
	ctx := context.Background()

	job := enqueueStatusUpdate(t, s)

	// Put the job one failure away from exhaustion.
	s.mu.Lock()
	s.jobs[job.ID].job.Attempt = job.MaxAttempts - 1
	s.mu.Unlock()

	_, err := s.Dequeue(ctx, "worker-0")
	require.NoError(t, err)
	require.NoError(t, s.Nack(ctx, job.ID, errors.New("final straw"), time.Minute))

	stored, err := s.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateFailed, stored.State)
	assert.Equal(t, job.MaxAttempts, stored.Attempt)
	assert.Equal(t, "final straw", stored.LastError)
}

func TestMemoryJobStoreFail(t *testing.T) {
	t.Parallel()

	s := NewMemoryJobStore()
	ctx := context.Background()

	job := enqueueStatusUpdate(t, s)

	_, err := s.Dequeue(ctx, "worker-0")
	require.NoError(t, err)

	require.NoError(t, s.Fail(ctx, job.ID, NewValidationError("missing status")))

	stored, err := s.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateFailed, stored.State)
	assert.Equal(t, 0, stored.Attempt, "immediate failure must not consume retries")
	assert.Contains(t, stored.LastError, "missing status")

	// Failed is terminal.
	assert.ErrorIs(t, s.Fail(ctx, job.ID, errors.New("again")), store.ErrJobNotFound)
}

func TestMemoryJobStoreRequeueStale(t *testing.T) {
	t.Parallel()

	s := NewMemoryJobStore()
	ctx := context.Background()

	stale := enqueueStatusUpdate(t, s)
	fresh := enqueueStatusUpdate(t, s)

	_, err := s.Dequeue(ctx, "worker-0")
	require.NoError(t, err)
	_, err = s.Dequeue(ctx, "worker-1")
	require.NoError(t, err)

	// Age the first claim past the threshold.
	s.mu.Lock()
	s.jobs[stale.ID].claimedAt = time.Now().UTC().Add(-15 * time.Minute)
	s.mu.Unlock()

	requeued, err := s.RequeueStale(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, requeued)

	staleStored, err := s.GetByID(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatePending, staleStored.State)
	assert.Nil(t, staleStored.StartedAt)

	freshStored, err := s.GetByID(fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateActive, freshStored.State, "live claims must not be touched")

	// The requeued job is immediately claimable again.
	reclaimed, err := s.Dequeue(ctx, "worker-2")
	require.NoError(t, err)
	assert.Equal(t, stale.ID, reclaimed.ID)
}

func TestMemoryJobStoreSweep(t *testing.T) {
	t.Parallel()

	s := NewMemoryJobStore()
	ctx := context.Background()

	complete := func(t *testing.T) *Job {
		t.Helper()
		job := enqueueStatusUpdate(t, s)
		_, err := s.Dequeue(ctx, "worker-0")
		require.NoError(t, err)
		require.NoError(t, s.Ack(ctx, job.ID))
		return job
	}

	oldCompleted := complete(t)
	freshCompleted := complete(t)

	failed := enqueueStatusUpdate(t, s)
	_, err := s.Dequeue(ctx, "worker-0")
	require.NoError(t, err)
	require.NoError(t, s.Fail(ctx, failed.ID, errors.New("broken")))

	// Age the first completed job beyond the TTL and the failed job beyond
	// the failed TTL.
	past := time.Now().UTC().Add(-48 * time.Hour)
	s.mu.Lock()
	s.jobs[oldCompleted.ID].job.CompletedAt = &past
	s.jobs[failed.ID].job.CompletedAt = &past
	s.mu.Unlock()

	removed, err := s.Sweep(ctx, time.Hour, 1000, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, err = s.GetByID(oldCompleted.ID)
	assert.ErrorIs(t, err, store.ErrJobNotFound)
	_, err = s.GetByID(failed.ID)
	assert.ErrorIs(t, err, store.ErrJobNotFound)

	// The fresh completed job survives.
	_, err = s.GetByID(freshCompleted.ID)
	assert.NoError(t, err)
}

func TestMemoryJobStoreSweepEnforcesCompletedCap(t *testing.T) {
	t.Parallel()

	s := NewMemoryJobStore()
	ctx := context.Background()

	const total = 8
	const keep = 5

	jobs := make([]*Job, 0, total)
	for i := 0; i < total; i++ {
		job := enqueueStatusUpdate(t, s)
		_, err := s.Dequeue(ctx, "worker-0")
		require.NoError(t, err)
		require.NoError(t, s.Ack(ctx, job.ID))
		jobs = append(jobs, job)
	}

	// Nothing is older than the TTL, so only the cap applies.
	removed, err := s.Sweep(ctx, time.Hour, keep, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, total-keep, removed)

	count, err := s.CountByState(ctx, JobStateCompleted)
	require.NoError(t, err)
	assert.Equal(t, keep, count)

	// The oldest jobs were dropped first.
	for _, job := range jobs[:total-keep] {
		_, err := s.GetByID(job.ID)
		assert.ErrorIs(t, err, store.ErrJobNotFound)
	}
	for _, job := range jobs[total-keep:] {
		_, err := s.GetByID(job.ID)
		assert.NoError(t, err)
	}
}

func TestMemoryJobStoreCountByState(t *testing.T) {
	t.Parallel()

	s := NewMemoryJobStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		enqueueStatusUpdate(t, s)
	}
	_, err := s.Dequeue(ctx, "worker-0")
	require.NoError(t, err)

	pending, err := s.CountByState(ctx, JobStatePending)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	active, err := s.CountByState(ctx, JobStateActive)
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	completed, err := s.CountByState(ctx, JobStateCompleted)
	require.NoError(t, err)
	assert.Equal(t, 0, completed)
}

func TestMemoryJobStoreEnqueueBulk(t *testing.T) {
	t.Parallel()

	s := NewMemoryJobStore()
	ctx := context.Background()

	t.Run("all or nothing", func(t *testing.T) {
		good1, err := NewJob(StatusUpdatePayload{TaskID: uuid.New(), Status: domain.TaskStatusCompleted}, 3)
		require.NoError(t, err)
		good2, err := NewJob(StatusUpdatePayload{TaskID: uuid.New(), Status: domain.TaskStatusCompleted}, 3)
		require.NoError(t, err)
		bad := &Job{ID: uuid.New(), Kind: KindStatusUpdate, State: JobStatePending} // no payload

		err = s.EnqueueBulk(ctx, []*Job{good1, bad, good2})
		assert.ErrorIs(t, err, ErrEmptyJobPayload)

		count, err := s.CountByState(ctx, JobStatePending)
		require.NoError(t, err)
		assert.Equal(t, 0, count, "a failed bulk enqueue must leave the store untouched")
	})

	t.Run("batch visible together", func(t *testing.T) {
		jobs := make([]*Job, 0, 3)
		for i := 0; i < 3; i++ {
			job, err := NewJob(BulkStatusUpdatePayload{TaskIDs: []uuid.UUID{uuid.New()}}, 3)
			require.NoError(t, err)
			jobs = append(jobs, job)
		}

		require.NoError(t, s.EnqueueBulk(ctx, jobs))

		count, err := s.CountByState(ctx, JobStatePending)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})
}

func TestMemoryJobStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	s := NewMemoryJobStore()
	ctx := context.Background()

	job := enqueueStatusUpdate(t, s)

	claimed, err := s.Dequeue(ctx, "worker-0")
	require.NoError(t, err)

	// Mutating the returned job must not leak into the store.
	claimed.State = JobStateCompleted
	claimed.Payload = json.RawMessage(`{"tampered":true}`)

	stored, err := s.GetByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStateActive, stored.State)
	assert.JSONEq(t, string(job.Payload), string(stored.Payload))
}

func TestMemoryJobStoreWithTxReturnsSelf(t *testing.T) {
	t.Parallel()

	s := NewMemoryJobStore()
	assert.Same(t, s, s.WithTx(nil).(*MemoryJobStore))
}
