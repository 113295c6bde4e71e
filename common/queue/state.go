package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// Job states tracked in Redis alongside the broker's own delivery state.
// The broker owns delivery; Redis answers "where is my job" queries and
// carries the removal tombstones.
const (
	StateWaiting   = "waiting"
	StateActive    = "active"
	StateCompleted = "completed"
	StateFailed    = "failed"
	StateCancelled = "cancelled"
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrJobNotWaiting = errors.New("job is not in a removable state")
)

// jobStateTTL bounds how long a live job's state key survives without an
// update, so a crashed worker cannot leave state behind forever.
const jobStateTTL = 24 * time.Hour

func (q *Queue) stateKey(jobID string) string {
	return fmt.Sprintf("queue:%s:job:%s", q.config.Name, jobID)
}

func (q *Queue) waitingKey() string {
	return fmt.Sprintf("queue:%s:waiting", q.config.Name)
}

func (q *Queue) tombstoneKey(jobID string) string {
	return fmt.Sprintf("queue:%s:tombstone:%s", q.config.Name, jobID)
}

// State returns the tracked state of a job, or ErrJobNotFound
func (q *Queue) State(ctx context.Context, jobID string) (string, error) {
	state, err := q.redis.Get(ctx, q.stateKey(jobID))
	if err != nil {
		if errors.Is(err, redisv9.Nil) {
			return "", fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return "", fmt.Errorf("reading state of %s: %w", jobID, err)
	}
	return state, nil
}

func (q *Queue) setState(ctx context.Context, jobID, state string, ttl time.Duration) error {
	if err := q.redis.Set(ctx, q.stateKey(jobID), state, ttl); err != nil {
		return fmt.Errorf("setting state %s on %s: %w", state, jobID, err)
	}
	return nil
}

func (q *Queue) isTombstoned(ctx context.Context, jobID string) bool {
	exists, err := q.redis.Exists(ctx, q.tombstoneKey(jobID))
	return err == nil && exists
}

// markActive transitions a job to active and drops it from the waiting set
func (q *Queue) markActive(ctx context.Context, jobID string) error {
	if err := q.redis.ZRem(ctx, q.waitingKey(), jobID); err != nil {
		return fmt.Errorf("removing %s from waiting set: %w", jobID, err)
	}
	return q.setState(ctx, jobID, StateActive, jobStateTTL)
}

// markCompleted records terminal success; the state key expires after the
// RemoveOnComplete window.
func (q *Queue) markCompleted(ctx context.Context, jobID string) error {
	return q.setState(ctx, jobID, StateCompleted, q.config.RemoveOnComplete)
}

// markFailed records terminal failure
func (q *Queue) markFailed(ctx context.Context, jobID string) error {
	return q.setState(ctx, jobID, StateFailed, q.config.RemoveOnFail)
}

// markCancelled records removal before execution
func (q *Queue) markCancelled(ctx context.Context, jobID string) error {
	if err := q.redis.ZRem(ctx, q.waitingKey(), jobID); err != nil {
		return fmt.Errorf("removing %s from waiting set: %w", jobID, err)
	}
	return q.setState(ctx, jobID, StateCancelled, q.config.RemoveOnFail)
}
