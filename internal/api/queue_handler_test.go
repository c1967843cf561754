package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck-api/internal/domain"
	"github.com/taskdeck/taskdeck-api/internal/queue"
)

func TestQueueHandler_Stats(t *testing.T) {
	t.Parallel()

	t.Run("reports counts per state", func(t *testing.T) {
		ctx := context.Background()
		jobStore := queue.NewMemoryJobStore()

		for i := 0; i < 4; i++ {
			job, err := queue.NewJob(queue.StatusUpdatePayload{
				TaskID: uuid.New(),
				Status: domain.TaskStatusCompleted,
			}, 3)
			require.NoError(t, err)
			require.NoError(t, jobStore.Enqueue(ctx, job))
		}

		// Walk one job to completed, one to failed, leave one active and
		// one pending.
		first, err := jobStore.Dequeue(ctx, "worker-1")
		require.NoError(t, err)
		require.NoError(t, jobStore.Ack(ctx, first.ID))

		second, err := jobStore.Dequeue(ctx, "worker-1")
		require.NoError(t, err)
		require.NoError(t, jobStore.Fail(ctx, second.ID, errors.New("handler exploded")))

		_, err = jobStore.Dequeue(ctx, "worker-1")
		require.NoError(t, err)

		handler := NewQueueHandler(jobStore, testLogger())
		recorder := httptest.NewRecorder()
		handler.Stats(recorder, httptest.NewRequest(http.MethodGet, "/api/queue/stats", nil))

		require.Equal(t, http.StatusOK, recorder.Code)

		var resp QueueStatsResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
		assert.Equal(t, QueueStatsResponse{Pending: 1, Active: 1, Completed: 1, Failed: 1}, resp)
	})

	t.Run("store failure returns 500", func(t *testing.T) {
		jobStore := queue.NewMockJobStore()
		jobStore.CountFn = func(ctx context.Context, state queue.JobState) (int, error) {
			return 0, errors.New("connection refused")
		}

		handler := NewQueueHandler(jobStore, testLogger())
		recorder := httptest.NewRecorder()
		handler.Stats(recorder, httptest.NewRequest(http.MethodGet, "/api/queue/stats", nil))

		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	})
}
