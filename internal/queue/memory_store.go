package queue

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck-api/internal/store"
)

// MemoryJobStore is a mutex-guarded in-memory JobStore with the same
// lifecycle semantics as the Postgres implementation. It backs the
// "memory" queue backend for development and tests; nothing survives a
// process restart, so at-least-once only holds within one process.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*memoryJob
	seq  uint64
}

// memoryJob pairs the job record with bookkeeping the store needs:
// seq breaks FIFO ties within one clock tick, claimedAt drives stale
// claim recovery.
type memoryJob struct {
	job       Job
	seq       uint64
	claimedAt time.Time
}

var _ JobStore = (*MemoryJobStore)(nil)

// NewMemoryJobStore creates an empty MemoryJobStore.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs: make(map[uuid.UUID]*memoryJob),
	}
}

// Enqueue implements JobStore.
func (s *MemoryJobStore) Enqueue(ctx context.Context, job *Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.insert(job)
	return nil
}

// EnqueueBulk implements JobStore. Validation runs before any insert so
// a bad job in the batch leaves the store untouched.
func (s *MemoryJobStore) EnqueueBulk(ctx context.Context, jobs []*Job) error {
	for _, job := range jobs {
		if err := job.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range jobs {
		s.insert(job)
	}
	return nil
}

// insert stores a copy of the job under the next sequence number.
// Callers must hold the mutex.
func (s *MemoryJobStore) insert(job *Job) {
	s.seq++
	cp := *job
	s.jobs[job.ID] = &memoryJob{job: cp, seq: s.seq}
}

// Dequeue implements JobStore. The oldest visible Pending job is claimed
// under the store mutex, so no two concurrent calls can return the same
// job.
func (s *MemoryJobStore) Dequeue(ctx context.Context, workerID string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	var oldest *memoryJob
	for _, mj := range s.jobs {
		if mj.job.State != JobStatePending {
			continue
		}
		if mj.job.RunAt.After(now) {
			continue
		}
		if oldest == nil || mj.seq < oldest.seq {
			oldest = mj
		}
	}
	if oldest == nil {
		return nil, ErrNoJobs
	}

	oldest.job.State = JobStateActive
	started := now
	oldest.job.StartedAt = &started
	oldest.claimedAt = now

	// Return a copy so callers cannot race with the store's record.
	cp := oldest.job
	return &cp, nil
}

// Ack implements JobStore.
func (s *MemoryJobStore) Ack(ctx context.Context, jobID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mj, ok := s.jobs[jobID]
	if !ok || mj.job.State != JobStateActive {
		return store.ErrJobNotFound
	}

	now := time.Now().UTC()
	mj.job.State = JobStateCompleted
	mj.job.CompletedAt = &now
	return nil
}

// Nack implements JobStore. The attempt counter increments first; the
// job returns to Pending with a visibility delay unless that increment
// exhausted the budget, in which case it is Failed terminally.
func (s *MemoryJobStore) Nack(ctx context.Context, jobID uuid.UUID, jobErr error, nextDelay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mj, ok := s.jobs[jobID]
	if !ok || mj.job.State != JobStateActive {
		return store.ErrJobNotFound
	}

	now := time.Now().UTC()
	mj.job.Attempt++
	if jobErr != nil {
		mj.job.LastError = jobErr.Error()
	}

	if mj.job.Attempt >= mj.job.MaxAttempts {
		mj.job.State = JobStateFailed
		mj.job.CompletedAt = &now
		return nil
	}

	mj.job.State = JobStatePending
	mj.job.RunAt = now.Add(nextDelay)
	mj.job.StartedAt = nil
	mj.claimedAt = time.Time{}
	return nil
}

// Fail implements JobStore.
func (s *MemoryJobStore) Fail(ctx context.Context, jobID uuid.UUID, jobErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mj, ok := s.jobs[jobID]
	if !ok || mj.job.State != JobStateActive {
		return store.ErrJobNotFound
	}

	now := time.Now().UTC()
	mj.job.State = JobStateFailed
	mj.job.CompletedAt = &now
	if jobErr != nil {
		mj.job.LastError = jobErr.Error()
	}
	return nil
}

// RequeueStale implements JobStore.
func (s *MemoryJobStore) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	requeued := 0
	for _, mj := range s.jobs {
		if mj.job.State != JobStateActive {
			continue
		}
		if mj.claimedAt.After(cutoff) {
			continue
		}
		mj.job.State = JobStatePending
		mj.job.RunAt = time.Now().UTC()
		mj.job.StartedAt = nil
		mj.claimedAt = time.Time{}
		requeued++
	}
	return requeued, nil
}

// Sweep implements JobStore.
func (s *MemoryJobStore) Sweep(ctx context.Context, completedTTL time.Duration, completedCap int, failedTTL time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	removed := 0

	var completed []*memoryJob
	for id, mj := range s.jobs {
		switch mj.job.State {
		case JobStateCompleted:
			if mj.job.CompletedAt != nil && mj.job.CompletedAt.Before(now.Add(-completedTTL)) {
				delete(s.jobs, id)
				removed++
				continue
			}
			completed = append(completed, mj)
		case JobStateFailed:
			if mj.job.CompletedAt != nil && mj.job.CompletedAt.Before(now.Add(-failedTTL)) {
				delete(s.jobs, id)
				removed++
			}
		}
	}

	// Enforce the retained-Completed cap, dropping oldest first.
	if completedCap > 0 && len(completed) > completedCap {
		sort.Slice(completed, func(i, j int) bool {
			return completed[i].seq < completed[j].seq
		})
		for _, mj := range completed[:len(completed)-completedCap] {
			delete(s.jobs, mj.job.ID)
			removed++
		}
	}

	return removed, nil
}

// CountByState implements JobStore.
func (s *MemoryJobStore) CountByState(ctx context.Context, state JobState) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, mj := range s.jobs {
		if mj.job.State == state {
			count++
		}
	}
	return count, nil
}

// WithTx implements JobStore. The memory store has no transactions;
// writes apply immediately, so the same instance is returned. Callers
// that need real pairing atomicity must use the Postgres backend.
func (s *MemoryJobStore) WithTx(tx *sql.Tx) JobStore {
	return s
}

// GetByID returns a copy of the stored job, or store.ErrJobNotFound.
// Test and stats helper; not part of the JobStore contract.
func (s *MemoryJobStore) GetByID(id uuid.UUID) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mj, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	cp := mj.job
	return &cp, nil
}
