package work

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// task is the functional Executor implementation used by callers that do
// not need their own type.
type task[T any] struct {
	id           string
	run          func(ctx context.Context) (T, error)
	errorHandler func(error)
	timeout      time.Duration
}

// TaskOption configures a task created with NewTask
type TaskOption[T any] func(*task[T])

// WithID sets a custom ID for the task
func WithID[T any](id string) TaskOption[T] {
	return func(t *task[T]) {
		t.id = id
	}
}

// WithErrorHandler sets a handler invoked when the task fails
func WithErrorHandler[T any](handler func(error)) TaskOption[T] {
	return func(t *task[T]) {
		t.errorHandler = handler
	}
}

// WithTimeout overrides the pool default timeout for this task
func WithTimeout[T any](timeout time.Duration) TaskOption[T] {
	return func(t *task[T]) {
		t.timeout = timeout
	}
}

// NewTask wraps a function as an Executor
func NewTask[T any](run func(ctx context.Context) (T, error), options ...TaskOption[T]) Executor[T] {
	t := &task[T]{
		id:  uuid.New().String(),
		run: run,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// SimpleTask wraps a function that only reports completion
func SimpleTask(run func(ctx context.Context) error, options ...TaskOption[struct{}]) Executor[struct{}] {
	return NewTask(func(ctx context.Context) (struct{}, error) {
		return struct{}{}, run(ctx)
	}, options...)
}

func (t *task[T]) ExecutorID() string {
	return t.id
}

func (t *task[T]) Execute(ctx context.Context) (T, error) {
	return t.run(ctx)
}

func (t *task[T]) OnError(err error) {
	if t.errorHandler != nil {
		t.errorHandler(err)
	}
}

func (t *task[T]) Timeout() time.Duration {
	return t.timeout
}
