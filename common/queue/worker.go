package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/llmify/llmstxt-service/common/work"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// ErrFatal marks a handler error whose job must not be retried. The handler
// has already written the terminal status; the worker terminates delivery.
var ErrFatal = errors.New("fatal job error")

// Handler executes one job
type Handler interface {
	Handle(ctx context.Context, msg JobMessage) error
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, msg JobMessage) error

func (f HandlerFunc) Handle(ctx context.Context, msg JobMessage) error {
	return f(ctx, msg)
}

// Worker consumes one queue with a durable pull consumer and runs jobs on a
// bounded pool. Handler errors are retried by the broker up to the queue's
// retry limit; ErrFatal stops delivery immediately.
type Worker struct {
	queue     *Queue
	handler   Handler
	pool      *work.Pool[struct{}]
	exhausted func(ctx context.Context, msg JobMessage, jobErr error)

	consume jetstream.ConsumeContext
}

// NewWorker creates a worker for the queue
func NewWorker(queue *Queue, handler Handler) (*Worker, error) {
	cfg := queue.Config()
	pool, err := work.NewPoolWithConfig[struct{}](work.PoolConfig{
		NumWorkers:  cfg.Concurrency,
		QueueSize:   cfg.Concurrency,
		TaskTimeout: cfg.LockDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("creating pool for %s: %w", cfg.Name, err)
	}

	return &Worker{
		queue:   queue,
		handler: handler,
		pool:    pool,
	}, nil
}

// OnExhausted registers a callback invoked when a job's deliveries run out
// and the message is terminated. Transient failures leave the subject in a
// running state; the callback writes the terminal state the handler never
// got to write.
func (w *Worker) OnExhausted(fn func(ctx context.Context, msg JobMessage, jobErr error)) {
	w.exhausted = fn
}

// Start creates the durable consumer and begins pulling jobs
func (w *Worker) Start(ctx context.Context) error {
	cfg := w.queue.Config()

	consumer, err := w.queue.broker.CreateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
		Durable:       cfg.Name,
		FilterSubject: cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       cfg.LockDuration,
		MaxDeliver:    cfg.RetryLimit + 1,
		BackOff:       cfg.backoffSchedule(),
		MaxAckPending: cfg.Concurrency * 2,
	})
	if err != nil {
		return fmt.Errorf("creating consumer for %s: %w", cfg.Name, err)
	}

	w.pool.Start(ctx, cfg.Name)

	// drain results so the pool never stalls on a full result channel
	go func() {
		for range w.pool.Results() {
		}
	}()

	w.consume, err = consumer.Consume(func(msg jetstream.Msg) {
		task := work.SimpleTask(func(taskCtx context.Context) error {
			w.process(taskCtx, msg)
			return nil
		})
		if err := w.pool.Submit(ctx, task); err != nil {
			log.Warn().Err(err).Str("queue", cfg.Name).Msg("Dropping delivery, pool unavailable")
			_ = msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("starting consume loop for %s: %w", cfg.Name, err)
	}

	log.Info().Str("queue", cfg.Name).Int("concurrency", cfg.Concurrency).Msg("Worker started")
	return nil
}

// Stop halts message delivery, then drains in-flight jobs
func (w *Worker) Stop() {
	if w.consume != nil {
		w.consume.Stop()
	}
	w.pool.Stop()
	log.Info().Str("queue", w.queue.Config().Name).Msg("Worker stopped")
}

func (w *Worker) process(ctx context.Context, msg jetstream.Msg) {
	cfg := w.queue.Config()

	var job JobMessage
	if err := json.Unmarshal(msg.Data(), &job); err != nil {
		log.Error().Err(err).Str("queue", cfg.Name).Msg("Terminating undecodable job")
		_ = msg.Term()
		return
	}

	logger := log.With().Str("queue", cfg.Name).Str("jobID", job.JobID).Logger()

	// A removed job is acked without executing.
	if w.queue.isTombstoned(ctx, job.JobID) {
		logger.Info().Msg("Skipping removed job")
		_ = msg.Ack()
		return
	}

	if err := w.queue.markActive(ctx, job.JobID); err != nil {
		logger.Warn().Err(err).Msg("Failed to mark job active")
	}
	w.queue.events.emit(Event{Queue: cfg.Name, JobID: job.JobID, Type: EventActive})

	err := w.handler.Handle(ctx, job)
	if err == nil {
		if err := w.queue.markCompleted(ctx, job.JobID); err != nil {
			logger.Warn().Err(err).Msg("Failed to mark job completed")
		}
		w.queue.events.emit(Event{Queue: cfg.Name, JobID: job.JobID, Type: EventCompleted})
		_ = msg.Ack()
		logger.Info().Msg("Job completed")
		return
	}

	if errors.Is(err, ErrFatal) {
		if markErr := w.queue.markFailed(ctx, job.JobID); markErr != nil {
			logger.Warn().Err(markErr).Msg("Failed to mark job failed")
		}
		w.queue.events.emit(Event{Queue: cfg.Name, JobID: job.JobID, Type: EventFailed, Error: err.Error()})
		_ = msg.Term()
		logger.Error().Err(err).Msg("Job failed terminally")
		return
	}

	// Transient failure. The broker redelivers with the configured backoff;
	// after the last allowed delivery the job is failed for good.
	meta, metaErr := msg.Metadata()
	if metaErr == nil && int(meta.NumDelivered) >= cfg.RetryLimit+1 {
		if markErr := w.queue.markFailed(ctx, job.JobID); markErr != nil {
			logger.Warn().Err(markErr).Msg("Failed to mark job failed")
		}
		if w.exhausted != nil {
			w.exhausted(ctx, job, err)
		}
		w.queue.events.emit(Event{Queue: cfg.Name, JobID: job.JobID, Type: EventFailed, Error: err.Error()})
		_ = msg.Term()
		logger.Error().Err(err).Uint64("deliveries", meta.NumDelivered).Msg("Job failed after exhausting retries")
		return
	}

	// Put the job back in waiting state for position queries during the
	// backoff window.
	if markErr := w.queue.setState(ctx, job.JobID, StateWaiting, jobStateTTL); markErr != nil {
		logger.Warn().Err(markErr).Msg("Failed to reset job state for retry")
	}
	_ = msg.Nak()
	logger.Warn().Err(err).Msg("Job failed, scheduling retry")
}
