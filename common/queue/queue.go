package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/llmify/llmstxt-service/common/messaging"
	"github.com/llmify/llmstxt-service/common/redis"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// JobMessage is the payload carried through the queue
type JobMessage struct {
	JobID     string `json:"job_id"`
	SubjectID int64  `json:"subject_id"`
	RequestID int64  `json:"request_id,omitempty"`
	Hostname  string `json:"hostname"`
	Provider  string `json:"provider"`
}

// Queue is one durable, provider-scoped job queue. Delivery is backed by a
// JetStream work-queue stream; job state and waiting order live in Redis.
type Queue struct {
	config QueueConfig
	broker *messaging.NatsBroker
	redis  *redis.RedisClient
	events *Events
}

// NewQueue creates the queue and ensures its stream exists
func NewQueue(ctx context.Context, cfg QueueConfig, broker *messaging.NatsBroker, rdb *redis.RedisClient, events *Events) (*Queue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	_, err := broker.EnsureStream(ctx, jetstream.StreamConfig{
		Name:       cfg.StreamName,
		Subjects:   []string{cfg.Subject},
		Retention:  jetstream.WorkQueuePolicy,
		Storage:    jetstream.FileStorage,
		Duplicates: cfg.LockDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("ensuring stream for queue %s: %w", cfg.Name, err)
	}

	return &Queue{
		config: cfg,
		broker: broker,
		redis:  rdb,
		events: events,
	}, nil
}

// Config returns the queue configuration
func (q *Queue) Config() QueueConfig {
	return q.config
}

// Enqueue admits a job. Admission is idempotent: while the same job ID is
// waiting or active, further enqueues are silent no-ops and return false.
// A job whose previous run reached a terminal state can be admitted again.
func (q *Queue) Enqueue(ctx context.Context, msg JobMessage) (bool, error) {
	if msg.JobID == "" {
		return false, fmt.Errorf("%w: empty", ErrInvalidJobID)
	}

	current, err := q.redis.Get(ctx, q.stateKey(msg.JobID))
	if err != nil && !errors.Is(err, redisv9.Nil) {
		return false, fmt.Errorf("checking state of %s: %w", msg.JobID, err)
	}
	if current == StateWaiting || current == StateActive {
		log.Debug().Str("jobID", msg.JobID).Str("state", current).Msg("Duplicate enqueue ignored")
		return false, nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return false, fmt.Errorf("encoding job %s: %w", msg.JobID, err)
	}

	natsMsg := &nats.Msg{
		Subject: q.config.Subject,
		Data:    data,
		Header:  nats.Header{},
	}
	// Deterministic message ID lets the server drop duplicates published
	// inside the dedup window, even across service instances.
	natsMsg.Header.Set("Nats-Msg-Id", fmt.Sprintf("%s:%s", q.config.Name, msg.JobID))

	ack, err := q.broker.PublishMsg(ctx, natsMsg)
	if err != nil {
		return false, fmt.Errorf("publishing job %s: %w", msg.JobID, err)
	}
	if ack.Duplicate {
		log.Debug().Str("jobID", msg.JobID).Msg("Broker deduplicated enqueue")
		return false, nil
	}

	// Clear any stale tombstone from an earlier removal of the same ID.
	if err := q.redis.Delete(ctx, q.tombstoneKey(msg.JobID)); err != nil {
		log.Warn().Err(err).Str("jobID", msg.JobID).Msg("Failed to clear tombstone")
	}

	if err := q.setState(ctx, msg.JobID, StateWaiting, jobStateTTL); err != nil {
		return false, err
	}
	if err := q.redis.ZAdd(ctx, q.waitingKey(), float64(time.Now().UnixNano()), msg.JobID); err != nil {
		return false, fmt.Errorf("recording waiting order for %s: %w", msg.JobID, err)
	}

	q.events.emit(Event{Queue: q.config.Name, JobID: msg.JobID, Type: EventWaiting})
	log.Info().Str("queue", q.config.Name).Str("jobID", msg.JobID).Msg("Job enqueued")
	return true, nil
}

// Remove cancels a job before execution. With a non-empty allowedStates the
// removal only proceeds when the current state is one of them; an empty set
// allows any tracked state except active. The worker sees the tombstone and
// acks the message without executing it.
func (q *Queue) Remove(ctx context.Context, jobID string, allowedStates []string) error {
	state, err := q.State(ctx, jobID)
	if err != nil {
		return err
	}

	if len(allowedStates) > 0 {
		if !lo.Contains(allowedStates, state) {
			return fmt.Errorf("%w: %s is %s", ErrJobNotWaiting, jobID, state)
		}
	} else if state == StateActive {
		return fmt.Errorf("%w: %s is already running", ErrJobNotWaiting, jobID)
	}

	if err := q.redis.Set(ctx, q.tombstoneKey(jobID), "1", q.config.RemoveOnFail); err != nil {
		return fmt.Errorf("tombstoning %s: %w", jobID, err)
	}
	if err := q.markCancelled(ctx, jobID); err != nil {
		return err
	}

	q.events.emit(Event{Queue: q.config.Name, JobID: jobID, Type: EventCancelled})
	log.Info().Str("queue", q.config.Name).Str("jobID", jobID).Msg("Job removed")
	return nil
}

// Position returns the 1-indexed place of a waiting job. ok is false when
// the job is not waiting (running, finished, or unknown).
func (q *Queue) Position(ctx context.Context, jobID string) (int64, bool, error) {
	state, err := q.State(ctx, jobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if state != StateWaiting {
		return 0, false, nil
	}

	rank, err := q.redis.ZRank(ctx, q.waitingKey(), jobID)
	if err != nil {
		if errors.Is(err, redisv9.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("ranking %s: %w", jobID, err)
	}
	return rank + 1, true, nil
}
