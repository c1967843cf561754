package queue

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// MockJobStore implements the JobStore interface for testing. Every
// method delegates to a real MemoryJobStore unless the corresponding
// function field overrides it, so tests get full queue semantics by
// default and failure injection when they need it.
type MockJobStore struct {
	Mem *MemoryJobStore

	EnqueueFn      func(ctx context.Context, job *Job) error
	EnqueueBulkFn  func(ctx context.Context, jobs []*Job) error
	DequeueFn      func(ctx context.Context, workerID string) (*Job, error)
	AckFn          func(ctx context.Context, jobID uuid.UUID) error
	NackFn         func(ctx context.Context, jobID uuid.UUID, jobErr error, nextDelay time.Duration) error
	FailFn         func(ctx context.Context, jobID uuid.UUID, jobErr error) error
	RequeueStaleFn func(ctx context.Context, olderThan time.Duration) (int, error)
	SweepFn        func(ctx context.Context, completedTTL time.Duration, completedCap int, failedTTL time.Duration) (int, error)
	CountFn        func(ctx context.Context, state JobState) (int, error)
}

// NewMockJobStore creates a MockJobStore backed by an empty MemoryJobStore.
func NewMockJobStore() *MockJobStore {
	return &MockJobStore{Mem: NewMemoryJobStore()}
}

// Enqueue implements the JobStore interface
func (m *MockJobStore) Enqueue(ctx context.Context, job *Job) error {
	if m.EnqueueFn != nil {
		return m.EnqueueFn(ctx, job)
	}
	return m.Mem.Enqueue(ctx, job)
}

// EnqueueBulk implements the JobStore interface
func (m *MockJobStore) EnqueueBulk(ctx context.Context, jobs []*Job) error {
	if m.EnqueueBulkFn != nil {
		return m.EnqueueBulkFn(ctx, jobs)
	}
	return m.Mem.EnqueueBulk(ctx, jobs)
}

// Dequeue implements the JobStore interface
func (m *MockJobStore) Dequeue(ctx context.Context, workerID string) (*Job, error) {
	if m.DequeueFn != nil {
		return m.DequeueFn(ctx, workerID)
	}
	return m.Mem.Dequeue(ctx, workerID)
}

// Ack implements the JobStore interface
func (m *MockJobStore) Ack(ctx context.Context, jobID uuid.UUID) error {
	if m.AckFn != nil {
		return m.AckFn(ctx, jobID)
	}
	return m.Mem.Ack(ctx, jobID)
}

// Nack implements the JobStore interface
func (m *MockJobStore) Nack(ctx context.Context, jobID uuid.UUID, jobErr error, nextDelay time.Duration) error {
	if m.NackFn != nil {
		return m.NackFn(ctx, jobID, jobErr, nextDelay)
	}
	return m.Mem.Nack(ctx, jobID, jobErr, nextDelay)
}

// Fail implements the JobStore interface
func (m *MockJobStore) Fail(ctx context.Context, jobID uuid.UUID, jobErr error) error {
	if m.FailFn != nil {
		return m.FailFn(ctx, jobID, jobErr)
	}
	return m.Mem.Fail(ctx, jobID, jobErr)
}

// RequeueStale implements the JobStore interface
func (m *MockJobStore) RequeueStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if m.RequeueStaleFn != nil {
		return m.RequeueStaleFn(ctx, olderThan)
	}
	return m.Mem.RequeueStale(ctx, olderThan)
}

// Sweep implements the JobStore interface
func (m *MockJobStore) Sweep(ctx context.Context, completedTTL time.Duration, completedCap int, failedTTL time.Duration) (int, error) {
	if m.SweepFn != nil {
		return m.SweepFn(ctx, completedTTL, completedCap, failedTTL)
	}
	return m.Mem.Sweep(ctx, completedTTL, completedCap, failedTTL)
}

// CountByState implements the JobStore interface
func (m *MockJobStore) CountByState(ctx context.Context, state JobState) (int, error) {
	if m.CountFn != nil {
		return m.CountFn(ctx, state)
	}
	return m.Mem.CountByState(ctx, state)
}

// WithTx implements the JobStore interface for transaction support
func (m *MockJobStore) WithTx(tx *sql.Tx) JobStore {
	// For mock purposes, just return the same mock
	return m
}
