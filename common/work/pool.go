package work

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidWorkerCount = errors.New("invalid worker count")
	ErrInvalidQueueSize   = errors.New("invalid queue size")
	ErrPoolStopped        = errors.New("worker pool has been stopped")
	ErrTaskTimeout        = errors.New("task execution timeout")
)

// Executor is a unit of work the pool can run.
type Executor[T any] interface {
	ExecutorID() string
	Execute(ctx context.Context) (T, error)
	OnError(error)
	Timeout() time.Duration // 0 means use the pool default
}

// Result carries the outcome of one executed task.
type Result[T any] struct {
	TaskID   string
	Value    T
	Error    error
	Duration time.Duration
}

// IsSuccess returns true if the task completed successfully
func (r *Result[T]) IsSuccess() bool {
	return r.Error == nil
}

// PoolConfig holds configuration for the worker pool
type PoolConfig struct {
	NumWorkers      int
	QueueSize       int
	ResultSize      int
	TaskTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Pool runs submitted tasks on a fixed set of worker goroutines. A pool is
// started once, stopped once, and is not restartable.
type Pool[T any] struct {
	config  PoolConfig
	tasks   chan Executor[T]
	results chan Result[T]
	quit    chan struct{}
	wg      sync.WaitGroup

	inFlight  int64
	completed int64

	started  bool
	stopped  bool
	mu       sync.RWMutex
	stopOnce sync.Once
}

// NewPool creates a pool with the given worker count and task queue size
func NewPool[T any](numWorkers, queueSize int) (*Pool[T], error) {
	return NewPoolWithConfig[T](PoolConfig{
		NumWorkers: numWorkers,
		QueueSize:  queueSize,
	})
}

// NewPoolWithConfig creates a pool with custom configuration
func NewPoolWithConfig[T any](config PoolConfig) (*Pool[T], error) {
	if config.NumWorkers <= 0 {
		return nil, ErrInvalidWorkerCount
	}
	if config.QueueSize < 0 {
		return nil, ErrInvalidQueueSize
	}
	if config.ResultSize <= 0 {
		config.ResultSize = config.NumWorkers * 2
	}
	if config.TaskTimeout <= 0 {
		config.TaskTimeout = 30 * time.Second
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	return &Pool[T]{
		config:  config,
		tasks:   make(chan Executor[T], config.QueueSize),
		results: make(chan Result[T], config.ResultSize),
		quit:    make(chan struct{}),
	}, nil
}

// Start launches the worker goroutines
func (p *Pool[T]) Start(ctx context.Context, poolID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return
	}
	p.started = true

	for i := 0; i < p.config.NumWorkers; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, poolID, i)
	}

	log.Info().
		Str("poolID", poolID).
		Int("numWorkers", p.config.NumWorkers).
		Msg("Worker pool started")
}

// Stop stops accepting tasks and waits for in-flight work, up to the
// shutdown timeout.
func (p *Pool[T]) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.mu.Unlock()

	p.stopOnce.Do(func() {
		close(p.quit)
		close(p.tasks)

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(p.config.ShutdownTimeout):
			log.Warn().Dur("timeout", p.config.ShutdownTimeout).Msg("Worker pool shutdown timeout exceeded")
		}

		close(p.results)
	})
}

// Submit enqueues a task, blocking until there is room or ctx is done
func (p *Pool[T]) Submit(ctx context.Context, task Executor[T]) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.tasks <- task:
		return nil
	case <-p.quit:
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Results returns the channel task outcomes are delivered on. The channel
// is closed after Stop returns.
func (p *Pool[T]) Results() <-chan Result[T] {
	return p.results
}

// InFlight returns the number of tasks currently executing
func (p *Pool[T]) InFlight() int64 {
	return atomic.LoadInt64(&p.inFlight)
}

// Completed returns the number of tasks that finished, successfully or not
func (p *Pool[T]) Completed() int64 {
	return atomic.LoadInt64(&p.completed)
}

func (p *Pool[T]) runWorker(ctx context.Context, poolID string, workerID int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.quit:
			return
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			p.execute(ctx, task, poolID, workerID)
		}
	}
}

func (p *Pool[T]) execute(ctx context.Context, task Executor[T], poolID string, workerID int) {
	atomic.AddInt64(&p.inFlight, 1)
	defer atomic.AddInt64(&p.inFlight, -1)
	defer atomic.AddInt64(&p.completed, 1)

	timeout := p.config.TaskTimeout
	if t := task.Timeout(); t > 0 {
		timeout = t
	}

	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	value, err := task.Execute(taskCtx)
	duration := time.Since(start)

	if err != nil && (errors.Is(err, context.DeadlineExceeded) || taskCtx.Err() == context.DeadlineExceeded) {
		err = ErrTaskTimeout
	}

	if err != nil {
		task.OnError(err)
	}

	result := Result[T]{
		TaskID:   task.ExecutorID(),
		Value:    value,
		Error:    err,
		Duration: duration,
	}

	select {
	case p.results <- result:
	case <-time.After(1 * time.Second):
		log.Warn().
			Str("poolID", poolID).
			Int("workerID", workerID).
			Str("taskID", result.TaskID).
			Msg("Result channel full, dropping result")
	case <-p.quit:
	}
}
