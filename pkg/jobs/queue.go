package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueClosed is returned by Enqueue before Start or after Stop.
var ErrQueueClosed = errors.New("jobs: queue not running")

// ErrQueueFull is returned when the buffer is saturated.
var ErrQueueFull = errors.New("jobs: queue full")

// Task identifies one unit of background work. Attempt counts prior failures.
type Task struct {
	ID      string
	Kind    string
	Attempt int
}

// Handler runs a task. A returned error schedules a retry until MaxRetries is
// reached, after which OnExhausted is called.
type Handler func(ctx context.Context, task Task) error

// Config tunes the worker pool.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
	// OnExhausted receives the last error of a task that ran out of retries.
	OnExhausted func(ctx context.Context, task Task, err error)
}

// Queue dispatches tasks to a fixed pool of goroutines.
type Queue struct {
	name    string
	handler Handler
	cfg     Config
	logger  *zap.Logger

	tasks chan Task

	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	wg      sync.WaitGroup
}

// NewQueue builds a stopped queue.
func NewQueue(name string, handler Handler, cfg Config) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 8
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		tasks:   make(chan Task, cfg.BufferSize),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	q.running = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Stop cancels in-flight work and waits for the workers to return.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	q.wg.Wait()
	q.logger.Info("queue stopped")
}

// Enqueue adds a task without blocking.
func (q *Queue) Enqueue(task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.running {
		return fmt.Errorf("%w: %s", ErrQueueClosed, q.name)
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, q.name)
	}
}

// Len reports the number of buffered tasks.
func (q *Queue) Len() int {
	return len(q.tasks)
}

func (q *Queue) work() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case task := <-q.tasks:
			q.run(task)
		}
	}
}

func (q *Queue) run(task Task) {
	err := q.handler(q.ctx, task)
	if err == nil || q.ctx.Err() != nil {
		return
	}
	task.Attempt++
	if task.Attempt > q.cfg.MaxRetries {
		q.logger.Error("task exhausted retries", zap.String("task_id", task.ID), zap.String("kind", task.Kind), zap.Error(err))
		if q.cfg.OnExhausted != nil {
			q.cfg.OnExhausted(q.ctx, task, err)
		}
		return
	}
	delay := q.cfg.RetryDelay * time.Duration(1<<(task.Attempt-1))
	q.logger.Warn("task failed, retrying",
		zap.String("task_id", task.ID),
		zap.Int("attempt", task.Attempt),
		zap.Duration("delay", delay),
		zap.Error(err),
	)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.Enqueue(task); err != nil {
				q.logger.Error("requeue failed", zap.String("task_id", task.ID), zap.Error(err))
			}
		}
	}()
}
