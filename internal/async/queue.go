package async

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alexvazquez-beep/video-transcriber-backend/internal/common"
)

// Task is one unit of background work. Run receives a fresh context: a
// running pipeline is never bound to the request that created it. Fail is
// invoked when Run panics so the failure lands on the owning record instead
// of killing the worker.
type Task struct {
	ID   string
	Run  func(ctx context.Context)
	Fail func(detail string)
}

// Queue is a bounded worker pool for pipeline tasks.
type Queue struct {
	logger  *slog.Logger
	workers int

	ch   chan Task
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*Queue)

func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Task, n)
		}
	}
}

func NewQueue(logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		logger:  logger,
		workers: 4,
		ch:      make(chan Task, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for task := range q.ch {
					q.runTask(workerID, task)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *Queue) runTask(workerID int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("worker panic recovered", "worker_id", workerID, "task_id", task.ID, "panic", r)
			if task.Fail != nil {
				task.Fail(fmt.Sprintf("internal failure: %v", r))
			}
		}
	}()
	task.Run(context.Background())
}

// Enqueue hands a task to the pool. A full queue blocks the caller after a
// warning; a closed queue rejects the task.
func (q *Queue) Enqueue(_ context.Context, task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "task_id", task.ID)
		return common.NewAppError("QUEUE_CLOSED", "queue is shutting down", common.ErrInternal)
	}
	select {
	case q.ch <- task:
		q.logger.Info("queued task", "task_id", task.ID)
	default:
		q.logger.Warn("queue full, applying backpressure", "task_id", task.ID)
		q.ch <- task
	}
	return nil
}

// Shutdown closes intake and waits for in-flight tasks until ctx expires.
func (q *Queue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
