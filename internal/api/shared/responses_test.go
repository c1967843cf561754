package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogs swaps the default slog logger for one writing to a buffer
// and restores the original when the test finishes.
func captureLogs(t *testing.T) *strings.Builder {
	t.Helper()
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	old := slog.Default()
	slog.SetDefault(logger)
	t.Cleanup(func() { slog.SetDefault(old) })
	return &buf
}

func TestRespondWithJSON(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		data         interface{}
		expectedBody string
	}{
		{
			name:   "task payload",
			status: http.StatusOK,
			data: map[string]interface{}{
				"title":    "ship onboarding flow",
				"priority": 3,
			},
		},
		{
			name:         "empty object",
			status:       http.StatusAccepted,
			data:         map[string]interface{}{},
			expectedBody: `{}`,
		},
		{
			name:         "nil data",
			status:       http.StatusOK,
			data:         nil,
			expectedBody: `null`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			w := httptest.NewRecorder()

			RespondWithJSON(w, req, tc.status, tc.data)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			if tc.expectedBody != "" {
				assert.Equal(t, tc.expectedBody+"\n", w.Body.String())
				return
			}

			var response map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "ship onboarding flow", response["title"])
			assert.Equal(t, float64(3), response["priority"])
		})
	}
}

// selfReferential cannot be JSON encoded; encoding/json detects the cycle.
type selfReferential struct {
	Next *selfReferential
}

func TestRespondWithJSONLogsEncodingFailure(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	w := httptest.NewRecorder()

	data := &selfReferential{}
	data.Next = data

	logBuf := captureLogs(t)

	RespondWithJSON(w, req, http.StatusOK, data)

	// Headers were already committed before encoding started.
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, logBuf.String(), "failed to encode JSON response")
}

func TestRespondWithError(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, "aabbccdd00112233")
	req := httptest.NewRequest(http.MethodGet, "/tasks/42", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusBadRequest, "invalid task ID")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "invalid task ID", response.Error)
	assert.Equal(t, "aabbccdd00112233", response.TraceID)
}

func TestRespondWithErrorWithoutTraceID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	w := httptest.NewRecorder()

	RespondWithError(w, req, http.StatusUnauthorized, "authentication required")

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "authentication required", response.Error)
	assert.Empty(t, response.TraceID)
}

func TestRespondWithErrorAndLog(t *testing.T) {
	tests := []struct {
		name             string
		statusCode       int
		message          string
		err              error
		expectedLogLevel string
		elevateLogLevel  bool
	}{
		{
			name:             "server error logs at ERROR",
			statusCode:       http.StatusInternalServerError,
			message:          "failed to create task",
			err:              errors.New("pq: connection reset by peer"),
			expectedLogLevel: "ERROR",
		},
		{
			name:             "client error defaults to DEBUG",
			statusCode:       http.StatusBadRequest,
			message:          "title is required",
			err:              errors.New("validation failed on field Title"),
			expectedLogLevel: "DEBUG",
		},
		{
			name:             "client error elevated to WARN on request",
			statusCode:       http.StatusUnauthorized,
			message:          "invalid credentials",
			err:              errors.New("password mismatch for account"),
			expectedLogLevel: "WARN",
			elevateLogLevel:  true,
		},
		{
			name:             "rate limiting always logs at WARN",
			statusCode:       http.StatusTooManyRequests,
			message:          "too many requests",
			err:              errors.New("token bucket exhausted"),
			expectedLogLevel: "WARN",
		},
		{
			name:             "non-error statuses stay at DEBUG",
			statusCode:       http.StatusMovedPermanently,
			message:          "resource moved",
			err:              errors.New("legacy route"),
			expectedLogLevel: "DEBUG",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.WithValue(context.Background(), TraceIDKey, "aabbccdd00112233")
			req := httptest.NewRequest(http.MethodPost, "/tasks", nil).WithContext(ctx)
			w := httptest.NewRecorder()

			logBuf := captureLogs(t)

			if tc.elevateLogLevel {
				RespondWithErrorAndLog(w, req, tc.statusCode, tc.message, tc.err, WithElevatedLogLevel())
			} else {
				RespondWithErrorAndLog(w, req, tc.statusCode, tc.message, tc.err)
			}

			assert.Equal(t, tc.statusCode, w.Code)

			var response ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tc.message, response.Error)
			assert.Equal(t, "aabbccdd00112233", response.TraceID)

			logOutput := logBuf.String()
			assert.Contains(t, logOutput, tc.expectedLogLevel)
			assert.Contains(t, logOutput, tc.message)
			assert.Contains(t, logOutput, "trace_id=aabbccdd00112233")
			assert.Contains(t, logOutput, "error_type=")
		})
	}
}

func TestWithElevatedLogLevel(t *testing.T) {
	var opts responseOptions
	WithElevatedLogLevel()(&opts)
	assert.True(t, opts.elevateLogLevel)
}
