package shared

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndGetTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx), "fresh context should carry no trace ID")

	ctxWithTrace := SetTraceID(ctx)
	traceID := GetTraceID(ctxWithTrace)
	assert.NotEmpty(t, traceID)
	assert.Len(t, traceID, 32, "trace ID should be 32 hex characters (16 bytes)")

	// The parent context must not have been mutated.
	assert.Empty(t, GetTraceID(ctx))
}

func TestGetTraceIDIgnoresWrongValueType(t *testing.T) {
	ctx := context.WithValue(context.Background(), TraceIDKey, 123)
	assert.Empty(t, GetTraceID(ctx), "non-string context value should read as empty")
}

func TestGenerateTraceID(t *testing.T) {
	traceID := generateTraceID()
	assert.Len(t, traceID, 32)

	_, err := hex.DecodeString(traceID)
	assert.NoError(t, err, "trace ID should be valid hex")

	// Probabilistic uniqueness check across a batch of IDs.
	const iterations = 1000
	seen := make(map[string]bool, iterations)
	for i := 0; i < iterations; i++ {
		id := generateTraceID()
		assert.Len(t, id, 32)
		assert.False(t, seen[id], "generated trace IDs should not repeat")
		seen[id] = true
	}
	assert.Len(t, seen, iterations)
}

// failingReader simulates a broken entropy source.
type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, fmt.Errorf("entropy source unavailable")
}

// traceIDFromReader mirrors generateTraceID but reads from an injectable
// source, since rand.Reader itself cannot be swapped out in tests.
func traceIDFromReader(reader io.Reader) string {
	b := make([]byte, TraceIDLength)
	n, err := reader.Read(b)
	if err != nil || n != TraceIDLength {
		return timeDerivedTraceID()
	}
	return hex.EncodeToString(b)
}

func TestTraceIDFallsBackWhenRandFails(t *testing.T) {
	traceID := traceIDFromReader(failingReader{})

	assert.Len(t, traceID, 32, "fallback ID should keep the standard length")
	_, err := hex.DecodeString(traceID)
	assert.NoError(t, err)
}

func TestTraceIDFallsBackOnShortRead(t *testing.T) {
	// A reader that yields only half the requested bytes.
	short := io.LimitReader(rand.Reader, TraceIDLength/2)

	traceID := traceIDFromReader(short)

	assert.Len(t, traceID, 32)
	_, err := hex.DecodeString(traceID)
	assert.NoError(t, err)
}

func TestTimeDerivedTraceIDUniqueness(t *testing.T) {
	const iterations = 100
	seen := make(map[string]bool, iterations)

	for i := 0; i < iterations; i++ {
		id := timeDerivedTraceID()
		assert.Len(t, id, 32)
		_, err := hex.DecodeString(id)
		require.NoError(t, err)

		// Let the clock advance so the time-based components differ.
		time.Sleep(time.Millisecond)

		assert.False(t, seen[id], "time-derived IDs should not repeat across ticks")
		seen[id] = true
	}
	assert.Len(t, seen, iterations)
}
