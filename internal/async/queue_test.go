package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexvazquez-beep/video-transcriber-backend/internal/common"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func shutdownQueue(t *testing.T, q *Queue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	q.Shutdown(ctx)
}

func TestQueue_RunsTasks(t *testing.T) {
	q := NewQueue(discardLogger(), WithWorkers(2), WithQueueSize(4))
	defer shutdownQueue(t, q)

	done := make(chan string, 1)
	err := q.Enqueue(context.Background(), Task{
		ID:  "t1",
		Run: func(ctx context.Context) { done <- "ran" },
	})
	require.NoError(t, err)

	select {
	case got := <-done:
		assert.Equal(t, "ran", got)
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
}

func TestQueue_RecoversPanicAndReportsFailure(t *testing.T) {
	q := NewQueue(discardLogger(), WithWorkers(1))
	defer shutdownQueue(t, q)

	failed := make(chan string, 1)
	err := q.Enqueue(context.Background(), Task{
		ID:   "boom",
		Run:  func(ctx context.Context) { panic("stage exploded") },
		Fail: func(detail string) { failed <- detail },
	})
	require.NoError(t, err)

	select {
	case detail := <-failed:
		assert.Contains(t, detail, "internal failure")
		assert.Contains(t, detail, "stage exploded")
	case <-time.After(2 * time.Second):
		t.Fatal("Fail was never invoked")
	}

	// The worker must survive the panic and keep serving.
	done := make(chan struct{})
	require.NoError(t, q.Enqueue(context.Background(), Task{
		ID:  "after",
		Run: func(ctx context.Context) { close(done) },
	}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died with the panic")
	}
}

func TestQueue_ShutdownDrainsInFlightTasks(t *testing.T) {
	q := NewQueue(discardLogger(), WithWorkers(1))

	done := make(chan struct{})
	require.NoError(t, q.Enqueue(context.Background(), Task{
		ID: "slow",
		Run: func(ctx context.Context) {
			time.Sleep(50 * time.Millisecond)
			close(done)
		},
	}))

	shutdownQueue(t, q)

	select {
	case <-done:
	default:
		t.Fatal("shutdown returned before the in-flight task finished")
	}
}

func TestQueue_EnqueueAfterShutdownFails(t *testing.T) {
	q := NewQueue(discardLogger(), WithWorkers(1))
	shutdownQueue(t, q)

	err := q.Enqueue(context.Background(), Task{ID: "late", Run: func(ctx context.Context) {}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInternal))
}

func TestQueue_ShutdownTwiceIsSafe(t *testing.T) {
	q := NewQueue(discardLogger(), WithWorkers(1))
	shutdownQueue(t, q)
	shutdownQueue(t, q)
}
