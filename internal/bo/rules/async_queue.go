package rules

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	// ErrQueueNotStarted is returned when enqueueing before Start
	ErrQueueNotStarted = errors.New("queue not started")
	// ErrQueueShutdown is returned when enqueueing after Shutdown
	ErrQueueShutdown = errors.New("queue shutdown")
	// ErrQueueClosed is returned when the queue was stopped while enqueueing
	ErrQueueClosed = errors.New("queue closed")
	// ErrQueueFull is returned when every slot of the queue is taken
	ErrQueueFull = errors.New("queue full")
)

// AsyncTask is a unit of background work
type AsyncTask struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Scheduler accepts background work
type Scheduler interface {
	Enqueue(task AsyncTask) error
}

// AsyncQueue is a bounded worker pool for asynchronous rules
type AsyncQueue struct {
	tasks       chan AsyncTask
	workerCount int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	shutdown    bool
	closed      bool
	mu          sync.Mutex
	sendMu      sync.RWMutex
	logger      *zap.Logger
}

// NewAsyncQueue creates a queue with workerCount workers and room for queueSize pending tasks
func NewAsyncQueue(workerCount, queueSize int, logger *zap.Logger) *AsyncQueue {
	if workerCount <= 0 {
		workerCount = 4
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &AsyncQueue{
		tasks:       make(chan AsyncTask, queueSize),
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Start starts the worker pool
func (q *AsyncQueue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return
	}

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}

	q.started = true
}

// Running reports whether the queue accepts tasks
func (q *AsyncQueue) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.started && !q.shutdown
}

func (q *AsyncQueue) worker(id int) {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case task, ok := <-q.tasks:
			if !ok {
				return
			}
			q.run(id, task)
		}
	}
}

func (q *AsyncQueue) run(id int, task AsyncTask) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("async task panicked",
				zap.Int("worker", id),
				zap.String("task", task.Name),
				zap.Any("panic", r),
			)
		}
	}()

	if err := task.Fn(q.ctx); err != nil {
		q.logger.Debug("async task failed",
			zap.Int("worker", id),
			zap.String("task", task.Name),
			zap.Error(err),
		)
	}
}

// Enqueue adds a task without blocking. It returns ErrQueueFull when the
// queue has no free slot.
func (q *AsyncQueue) Enqueue(task AsyncTask) error {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return ErrQueueNotStarted
	}
	if q.shutdown {
		q.mu.Unlock()
		return ErrQueueShutdown
	}
	q.mu.Unlock()

	// Shutdown closes the channel under the write lock, so a send never hits a closed channel
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()
	if q.closed {
		return ErrQueueShutdown
	}

	if q.ctx.Err() != nil {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		q.logger.Warn("async queue full", zap.String("task", task.Name), zap.Int("capacity", cap(q.tasks)))
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits for queued tasks to finish
func (q *AsyncQueue) Shutdown() {
	q.mu.Lock()
	if !q.started || q.shutdown {
		q.mu.Unlock()
		return
	}
	q.shutdown = true
	q.mu.Unlock()

	q.sendMu.Lock()
	q.closed = true
	close(q.tasks)
	q.sendMu.Unlock()

	q.wg.Wait()
}

// Stop cancels running tasks and returns without draining the queue
func (q *AsyncQueue) Stop() {
	q.cancel()

	q.mu.Lock()
	q.shutdown = true
	q.mu.Unlock()

	q.wg.Wait()
}
