package notify

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck/taskdeck-api/internal/platform/logger"
)

func TestLogNotifierWritesTaskID(t *testing.T) {
	t.Parallel()

	log, buf := logger.GetTestLogger(t)
	notifier := NewLogNotifier(log)

	taskID := uuid.New()
	require.NoError(t, notifier.Notify(context.Background(), taskID))

	logger.AssertLogContains(t, buf, "task overdue notification")
	logger.AssertLogField(t, buf, "task_id", taskID.String())
	logger.AssertLogField(t, buf, "component", "notifier")
}

func TestLogNotifierHonorsCancellation(t *testing.T) {
	t.Parallel()

	log, buf := logger.GetTestLogger(t)
	notifier := NewLogNotifier(log)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := notifier.Notify(ctx, uuid.New())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, buf.String())
}

func TestNewLogNotifierDefaultsLogger(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, NewLogNotifier(nil))
}
