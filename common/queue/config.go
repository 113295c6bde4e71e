package queue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/llmify/llmstxt-service/common/config"
)

// QueueConfig is the immutable configuration of one job queue. There is one
// queue per LLM provider.
type QueueConfig struct {
	// Name identifies the queue ("generation-anthropic"). Doubles as the
	// durable consumer name.
	Name string
	// StreamName is the JetStream stream backing the queue
	StreamName string
	// Subject jobs are published on
	Subject string
	// Concurrency is the number of jobs one worker processes in parallel
	Concurrency int
	// LockDuration bounds one handler execution; it maps to the consumer
	// AckWait, after which an unacked job is redelivered.
	LockDuration time.Duration
	// StalledInterval is how often the worker checks for stalled state
	StalledInterval time.Duration
	// RetryLimit is the number of redeliveries after the first attempt
	RetryLimit int
	// BackoffDelay is the base delay between redeliveries
	BackoffDelay time.Duration
	// RemoveOnComplete is how long terminal job state stays readable
	RemoveOnComplete time.Duration
	// RemoveOnFail is the same window for failed jobs
	RemoveOnFail time.Duration
}

// ForProvider builds the queue configuration for one provider from the
// service-wide defaults.
func ForProvider(provider string, defaults config.QueueDefaults) QueueConfig {
	name := fmt.Sprintf("generation-%s", provider)
	return QueueConfig{
		Name:             name,
		StreamName:       strings.ToUpper(strings.ReplaceAll(name, "-", "_")),
		Subject:          fmt.Sprintf("jobs.generation.%s", provider),
		Concurrency:      defaults.Concurrency,
		LockDuration:     defaults.LockDuration,
		StalledInterval:  defaults.StalledInterval,
		RetryLimit:       defaults.RetryLimit,
		BackoffDelay:     defaults.BackoffDelay,
		RemoveOnComplete: time.Hour,
		RemoveOnFail:     24 * time.Hour,
	}
}

// Validate checks the configuration is usable
func (c QueueConfig) Validate() error {
	if c.Name == "" || c.StreamName == "" || c.Subject == "" {
		return errors.New("queue name, stream and subject are required")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("queue %s: concurrency must be positive", c.Name)
	}
	if c.LockDuration <= 0 {
		return fmt.Errorf("queue %s: lock duration must be positive", c.Name)
	}
	if c.RetryLimit < 0 {
		return fmt.Errorf("queue %s: retry limit must not be negative", c.Name)
	}
	return nil
}

// backoffSchedule returns the redelivery delays for the consumer. JetStream
// wants one entry per retry.
func (c QueueConfig) backoffSchedule() []time.Duration {
	if c.RetryLimit == 0 {
		return nil
	}
	schedule := make([]time.Duration, c.RetryLimit)
	for i := range schedule {
		schedule[i] = c.BackoffDelay * time.Duration(i+1)
	}
	return schedule
}
