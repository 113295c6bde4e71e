package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/llmify/llmstxt-service/common/config"

	"github.com/rs/zerolog/log"
)

// RetryConfig controls the resilience wrapper around provider calls
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Timeout           time.Duration
}

// RetryConfigFrom derives retry settings from the LLM section of the
// service configuration.
func RetryConfigFrom(cfg config.LLMConfig) RetryConfig {
	return RetryConfig{
		MaxAttempts:       cfg.MaxAttempts,
		InitialDelay:      cfg.InitialDelay,
		MaxDelay:          cfg.MaxDelay,
		BackoffMultiplier: 2.0,
		Timeout:           cfg.CallTimeout,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 2 * time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.BackoffMultiplier <= 1 {
		c.BackoffMultiplier = 2.0
	}
	if c.Timeout <= 0 {
		c.Timeout = 90 * time.Second
	}
	return c
}

// backoff returns the delay before the given retry (attempt is 1-based and
// names the attempt that just failed).
func (c RetryConfig) backoff(attempt int) time.Duration {
	delay := float64(c.InitialDelay) * math.Pow(c.BackoffMultiplier, float64(attempt-1))
	if delay > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	return time.Duration(delay)
}

// Resilient wraps a Provider with per-call timeouts, validation-driven
// retries and exponential backoff. A response that fails validation is not
// trusted to fail the same way twice: the retry prompt carries the previous
// error so the model can correct itself.
type Resilient struct {
	config RetryConfig
}

// NewResilient creates a resilience wrapper
func NewResilient(cfg RetryConfig) *Resilient {
	return &Resilient{config: cfg.withDefaults()}
}

// BatchSummaries summarizes a batch of pages in one provider call
func (r *Resilient) BatchSummaries(ctx context.Context, provider Provider, pages []PageContent) ([]Summary, error) {
	if len(pages) == 0 {
		return nil, nil
	}

	var summaries []Summary
	err := r.completeValidated(ctx, provider, buildBatchPrompt(pages), func(raw string) error {
		parsed, err := ParseSummaries(raw, len(pages))
		if err != nil {
			return err
		}
		summaries = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// SiteDescription generates a one-sentence description of a site
func (r *Resilient) SiteDescription(ctx context.Context, provider Provider, hostname string, samples []PageContent) (string, error) {
	var description string
	err := r.completeValidated(ctx, provider, buildDescriptionPrompt(hostname, samples), func(raw string) error {
		parsed, err := ParseDescription(raw)
		if err != nil {
			return err
		}
		description = parsed
		return nil
	})
	if err != nil {
		return "", err
	}
	return description, nil
}

// completeValidated runs the call-validate-retry loop. validate must leave
// its result in caller state on success.
func (r *Resilient) completeValidated(ctx context.Context, provider Provider, basePrompt string, validate func(raw string) error) error {
	prompt := basePrompt
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := r.config.backoff(attempt - 1)
			log.Warn().
				Str("provider", provider.Name()).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Err(lastErr).
				Msg("Retrying LLM call")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
		raw, err := provider.Complete(callCtx, prompt)
		cancel()

		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrNonRetryable) {
				return fmt.Errorf("LLM call failed: %w", err)
			}
			lastErr = err
			continue
		}

		if err := validate(raw); err != nil {
			lastErr = err
			// Feed the failure back so the next attempt can fix its output.
			prompt = fmt.Sprintf("%s\n\nYour previous response was rejected: %s\nFollow the required format exactly.", basePrompt, err)
			continue
		}

		return nil
	}

	return fmt.Errorf("LLM call failed after %d attempts: %w", r.config.MaxAttempts, lastErr)
}
