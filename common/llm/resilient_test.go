package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/llmify/llmstxt-service/common/config"
)

func configLLMForTest() config.LLMConfig {
	return config.LLMConfig{}
}

// scriptedProvider returns canned responses in order, recording the prompts
// it was called with.
type scriptedProvider struct {
	responses []string
	errs      []error
	prompts   []string
	calls     int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, prompt string) (string, error) {
	i := p.calls
	p.calls++
	p.prompts = append(p.prompts, prompt)
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

// blockingProvider never returns until its context expires
type blockingProvider struct {
	calls int
}

func (p *blockingProvider) Name() string { return "blocking" }

func (p *blockingProvider) Complete(ctx context.Context, prompt string) (string, error) {
	p.calls++
	<-ctx.Done()
	return "", ctx.Err()
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          4 * time.Millisecond,
		BackoffMultiplier: 2.0,
		Timeout:           50 * time.Millisecond,
	}
}

func TestBatchSummariesRecoversFromBadJSON(t *testing.T) {
	provider := &scriptedProvider{
		responses: []string{
			"sorry, no JSON for you",
			`[{"url":"u","title":"t","summary":""}]`,
			`[{"url":"u","title":"t","summary":"valid now"}]`,
		},
	}
	r := NewResilient(fastRetryConfig())

	pages := []PageContent{{URL: "u", Title: "t", Text: "body"}}
	summaries, err := r.BatchSummaries(context.Background(), provider, pages)
	if err != nil {
		t.Fatal(err)
	}

	if provider.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", provider.calls)
	}
	if len(summaries) != 1 || summaries[0].Summary != "valid now" {
		t.Errorf("unexpected summaries: %+v", summaries)
	}

	// Retry prompts carry the previous failure.
	if len(provider.prompts) != 3 {
		t.Fatalf("expected 3 prompts, got %d", len(provider.prompts))
	}
	if !strings.Contains(provider.prompts[1], "previous response was rejected") {
		t.Error("second prompt should mention the rejected response")
	}
	if strings.Contains(provider.prompts[0], "previous response was rejected") {
		t.Error("first prompt must not carry rejection feedback")
	}
}

func TestBatchSummariesFailsAfterMaxAttempts(t *testing.T) {
	provider := &blockingProvider{}
	cfg := fastRetryConfig()
	cfg.Timeout = 10 * time.Millisecond
	r := NewResilient(cfg)

	start := time.Now()
	_, err := r.BatchSummaries(context.Background(), provider, []PageContent{{URL: "u"}})
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected failure when every call times out")
	}
	if provider.calls != cfg.MaxAttempts {
		t.Errorf("expected exactly %d attempts, got %d", cfg.MaxAttempts, provider.calls)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Errorf("error should report the attempt count, got: %v", err)
	}

	// Three timeouts plus backoffs of 1ms and 2ms.
	minElapsed := 3*cfg.Timeout + 3*time.Millisecond
	if elapsed < minElapsed {
		t.Errorf("expected at least %v elapsed (timeouts + backoff), got %v", minElapsed, elapsed)
	}
}

func TestBatchSummariesStopsOnNonRetryableError(t *testing.T) {
	// A 401-style provider error cannot succeed on retry; the wrapper gives
	// up after the first attempt.
	provider := &scriptedProvider{
		errs: []error{
			fmt.Errorf("%w: invalid x-api-key", ErrNonRetryable),
		},
	}
	r := NewResilient(fastRetryConfig())

	_, err := r.BatchSummaries(context.Background(), provider, []PageContent{{URL: "u"}})
	if !errors.Is(err, ErrNonRetryable) {
		t.Fatalf("expected ErrNonRetryable, got %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", provider.calls)
	}
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 503, 529} {
		if !retryableStatus(code) {
			t.Errorf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{400, 401, 403, 404, 422} {
		if retryableStatus(code) {
			t.Errorf("status %d should not be retryable", code)
		}
	}
}

func TestCompleteValidatedStopsOnContextCancel(t *testing.T) {
	provider := &blockingProvider{}
	r := NewResilient(fastRetryConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.BatchSummaries(ctx, provider, []PageContent{{URL: "u"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBatchSummariesEmptyInput(t *testing.T) {
	provider := &scriptedProvider{}
	r := NewResilient(fastRetryConfig())

	summaries, err := r.BatchSummaries(context.Background(), provider, nil)
	if err != nil {
		t.Fatal(err)
	}
	if summaries != nil {
		t.Errorf("expected nil summaries for empty input, got %v", summaries)
	}
	if provider.calls != 0 {
		t.Errorf("expected no provider calls for empty input, got %d", provider.calls)
	}
}

func TestSiteDescription(t *testing.T) {
	provider := &scriptedProvider{
		responses: []string{
			`{"description": ""}`,
			`{"description": "A developer tools site."}`,
		},
	}
	r := NewResilient(fastRetryConfig())

	desc, err := r.SiteDescription(context.Background(), provider, "example.com", []PageContent{{URL: "u", Text: "body"}})
	if err != nil {
		t.Fatal(err)
	}
	if desc != "A developer tools site." {
		t.Errorf("unexpected description %q", desc)
	}
	if provider.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", provider.calls)
	}
}

func TestBackoffSchedule(t *testing.T) {
	cfg := RetryConfig{
		InitialDelay:      2 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // capped
		{6, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := cfg.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestNewProviderUnknown(t *testing.T) {
	if _, err := NewProvider("mystery", configLLMForTest()); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestProviderNames(t *testing.T) {
	names := ProviderNames()
	if len(names) != 2 || names[0] != "anthropic" || names[1] != "gemini" {
		t.Errorf("unexpected provider names: %v", names)
	}
	if !IsSupported("anthropic") || IsSupported("nope") {
		t.Error("IsSupported misclassified a provider id")
	}
}
