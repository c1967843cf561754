package queue

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck-api/internal/domain"
)

func TestNewJob(t *testing.T) {
	t.Parallel()

	t.Run("valid payload", func(t *testing.T) {
		t.Parallel()

		taskID := uuid.New()
		job, err := NewJob(StatusUpdatePayload{TaskID: taskID, Status: domain.TaskStatusCompleted}, 0)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, job.ID)
		assert.Equal(t, KindStatusUpdate, job.Kind)
		assert.Equal(t, 0, job.Attempt)
		assert.Equal(t, DefaultMaxAttempts, job.MaxAttempts, "maxAttempts <= 0 should select the default")
		assert.Equal(t, JobStatePending, job.State)
		assert.False(t, job.EnqueuedAt.IsZero())
		assert.Equal(t, job.EnqueuedAt, job.RunAt, "new jobs should be visible immediately")
		assert.NoError(t, job.Validate())

		var p StatusUpdatePayload
		require.NoError(t, json.Unmarshal(job.Payload, &p))
		assert.Equal(t, taskID, p.TaskID)
		assert.Equal(t, domain.TaskStatusCompleted, p.Status)
	})

	t.Run("explicit max attempts", func(t *testing.T) {
		t.Parallel()

		job, err := NewJob(OverdueNotificationPayload{TaskIDs: []uuid.UUID{uuid.New()}}, 7)
		require.NoError(t, err)
		assert.Equal(t, 7, job.MaxAttempts)
	})

	t.Run("invalid payload rejected", func(t *testing.T) {
		t.Parallel()

		_, err := NewJob(StatusUpdatePayload{Status: domain.TaskStatusCompleted}, 3)
		assert.Error(t, err)
		assert.True(t, IsValidationError(err), "missing task id should be a validation error")

		_, err = NewJob(BulkStatusUpdatePayload{}, 3)
		assert.Error(t, err)
		assert.True(t, IsValidationError(err), "empty id list should be a validation error")
	})
}

func TestJobValidate(t *testing.T) {
	t.Parallel()

	valid := Job{
		ID:          uuid.New(),
		Kind:        KindStatusUpdate,
		Payload:     json.RawMessage(`{}`),
		Attempt:     1,
		MaxAttempts: 3,
		State:       JobStatePending,
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(j *Job)
		want   error
	}{
		{"empty id", func(j *Job) { j.ID = uuid.Nil }, ErrEmptyJobID},
		{"empty kind", func(j *Job) { j.Kind = "" }, ErrEmptyJobKind},
		{"empty payload", func(j *Job) { j.Payload = nil }, ErrEmptyJobPayload},
		{"invalid state", func(j *Job) { j.State = "paused" }, ErrInvalidJobState},
		{"negative attempt", func(j *Job) { j.Attempt = -1 }, ErrNegativeAttempt},
		{"attempt above budget", func(j *Job) { j.Attempt = 4 }, ErrAttemptsExceeded},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			job := valid
			tc.mutate(&job)
			assert.ErrorIs(t, job.Validate(), tc.want)
		})
	}
}

func TestPayloadValidate(t *testing.T) {
	t.Parallel()

	t.Run("status update", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, StatusUpdatePayload{TaskID: uuid.New(), Status: domain.TaskStatusPending}.Validate())
		assert.True(t, IsValidationError(StatusUpdatePayload{Status: domain.TaskStatusPending}.Validate()))
		assert.True(t, IsValidationError(StatusUpdatePayload{TaskID: uuid.New()}.Validate()))
		assert.True(t, IsValidationError(StatusUpdatePayload{TaskID: uuid.New(), Status: "archived"}.Validate()))
	})

	t.Run("overdue notification", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, OverdueNotificationPayload{TaskIDs: []uuid.UUID{uuid.New()}}.Validate())
		assert.True(t, IsValidationError(OverdueNotificationPayload{}.Validate()))
	})

	t.Run("bulk status update", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, BulkStatusUpdatePayload{TaskIDs: []uuid.UUID{uuid.New()}}.Validate())
		assert.True(t, IsValidationError(BulkStatusUpdatePayload{}.Validate()))
	})
}

func TestDecodePayload(t *testing.T) {
	t.Parallel()

	t.Run("round trips every kind", func(t *testing.T) {
		t.Parallel()

		payloads := []Payload{
			StatusUpdatePayload{TaskID: uuid.New(), Status: domain.TaskStatusInProgress},
			OverdueNotificationPayload{TaskIDs: []uuid.UUID{uuid.New(), uuid.New()}},
			BulkStatusUpdatePayload{TaskIDs: []uuid.UUID{uuid.New()}},
		}

		for _, original := range payloads {
			raw, err := json.Marshal(original)
			require.NoError(t, err)

			decoded, err := DecodePayload(original.Kind(), raw)
			require.NoError(t, err)
			assert.Equal(t, original, decoded)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		t.Parallel()

		_, err := DecodePayload("mystery_kind", []byte(`{}`))
		require.Error(t, err)
		assert.True(t, IsUnknownKindError(err))

		var unknownErr *UnknownKindError
		require.ErrorAs(t, err, &unknownErr)
		assert.Equal(t, Kind("mystery_kind"), unknownErr.Kind)
	})

	t.Run("malformed payload", func(t *testing.T) {
		t.Parallel()

		_, err := DecodePayload(KindStatusUpdate, []byte(`{not json`))
		require.Error(t, err)
		assert.True(t, IsValidationError(err), "malformed bytes should decode to a validation error")
	})
}
