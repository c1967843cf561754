package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck-api/internal/domain"
)

// Kind identifies the handler a job is dispatched to.
type Kind string

// Job kinds
const (
	KindStatusUpdate        Kind = "status_update"
	KindOverdueNotification Kind = "overdue_notification"
	KindBulkStatusUpdate    Kind = "bulk_status_update"
)

// JobState represents the lifecycle state of a job.
type JobState string

// Possible job states
const (
	JobStatePending   JobState = "pending"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// DefaultMaxAttempts is the number of executions a job gets before it is
// marked Failed.
const DefaultMaxAttempts = 3

// Common validation errors for Job
var (
	ErrEmptyJobID       = errors.New("job ID cannot be empty")
	ErrEmptyJobKind     = errors.New("job kind cannot be empty")
	ErrEmptyJobPayload  = errors.New("job payload cannot be empty")
	ErrInvalidJobState  = errors.New("invalid job state")
	ErrNegativeAttempt  = errors.New("job attempt cannot be negative")
	ErrAttemptsExceeded = errors.New("job attempt cannot exceed max attempts")
)

// Job is a durable unit of deferred work. Attempt counts failed
// executions so far; the store increments it on Nack. RunAt is the
// visibility time: a job is eligible for dequeue once RunAt has passed.
type Job struct {
	ID          uuid.UUID       `json:"id"`
	Kind        Kind            `json:"kind"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	State       JobState        `json:"state"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	RunAt       time.Time       `json:"run_at"`
	LastError   string          `json:"last_error,omitempty"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewJob creates a Pending job for the given payload. The payload is
// validated and serialized; the job becomes visible immediately.
// maxAttempts <= 0 selects DefaultMaxAttempts.
func NewJob(payload Payload, maxAttempts int) (*Job, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", payload.Kind(), err)
	}

	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	now := time.Now().UTC()
	return &Job{
		ID:          uuid.New(),
		Kind:        payload.Kind(),
		Payload:     raw,
		MaxAttempts: maxAttempts,
		State:       JobStatePending,
		EnqueuedAt:  now,
		RunAt:       now,
	}, nil
}

// Validate checks if the Job has valid data.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.Kind == "" {
		return ErrEmptyJobKind
	}

	if len(j.Payload) == 0 {
		return ErrEmptyJobPayload
	}

	if !isValidJobState(j.State) {
		return ErrInvalidJobState
	}

	if j.Attempt < 0 {
		return ErrNegativeAttempt
	}

	if j.Attempt > j.MaxAttempts {
		return ErrAttemptsExceeded
	}

	return nil
}

// isValidJobState checks if the given state is a valid JobState.
func isValidJobState(state JobState) bool {
	switch state {
	case JobStatePending, JobStateActive, JobStateCompleted, JobStateFailed:
		return true
	default:
		return false
	}
}

// Payload is the typed content of a job. Each payload knows its kind and
// validates itself before enqueue and again before handling.
type Payload interface {
	Kind() Kind
	Validate() error
}

// StatusUpdatePayload carries a single task status propagation.
type StatusUpdatePayload struct {
	TaskID uuid.UUID         `json:"task_id"`
	Status domain.TaskStatus `json:"status"`
}

// Kind implements Payload.
func (p StatusUpdatePayload) Kind() Kind { return KindStatusUpdate }

// Validate implements Payload. Missing fields are a validation failure,
// never retried.
func (p StatusUpdatePayload) Validate() error {
	if p.TaskID == uuid.Nil {
		return NewValidationError("status update payload missing task id")
	}
	if p.Status == "" {
		return NewValidationError("status update payload missing status")
	}
	if !domain.IsValidTaskStatus(p.Status) {
		return NewValidationError(fmt.Sprintf("status update payload has invalid status %q", p.Status))
	}
	return nil
}

// OverdueNotificationPayload carries the ids of tasks that went overdue.
type OverdueNotificationPayload struct {
	TaskIDs []uuid.UUID `json:"task_ids"`
}

// Kind implements Payload.
func (p OverdueNotificationPayload) Kind() Kind { return KindOverdueNotification }

// Validate implements Payload.
func (p OverdueNotificationPayload) Validate() error {
	if len(p.TaskIDs) == 0 {
		return NewValidationError("overdue notification payload has no task ids")
	}
	return nil
}

// BulkStatusUpdatePayload carries the ids of tasks to mark completed in
// one storage-level bulk transition.
type BulkStatusUpdatePayload struct {
	TaskIDs []uuid.UUID `json:"task_ids"`
}

// Kind implements Payload.
func (p BulkStatusUpdatePayload) Kind() Kind { return KindBulkStatusUpdate }

// Validate implements Payload.
func (p BulkStatusUpdatePayload) Validate() error {
	if len(p.TaskIDs) == 0 {
		return NewValidationError("bulk status update payload has no task ids")
	}
	return nil
}

// DecodePayload deserializes raw payload bytes according to kind. The kind
// switch is exhaustive over all known kinds; anything else is an
// UnknownKindError, which the pool treats as an immediate terminal failure
// since it indicates deploy or version skew rather than a transient fault.
func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	switch kind {
	case KindStatusUpdate:
		var p StatusUpdatePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, NewValidationError(fmt.Sprintf("malformed %s payload: %v", kind, err))
		}
		return p, nil
	case KindOverdueNotification:
		var p OverdueNotificationPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, NewValidationError(fmt.Sprintf("malformed %s payload: %v", kind, err))
		}
		return p, nil
	case KindBulkStatusUpdate:
		var p BulkStatusUpdatePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, NewValidationError(fmt.Sprintf("malformed %s payload: %v", kind, err))
		}
		return p, nil
	default:
		return nil, &UnknownKindError{Kind: kind}
	}
}
