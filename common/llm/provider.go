package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/llmify/llmstxt-service/common/config"
)

var (
	ErrUnknownProvider = errors.New("unknown LLM provider")
	ErrEmptyResponse   = errors.New("empty LLM response")
	// ErrNonRetryable wraps provider errors that no amount of retrying can
	// fix (bad request, bad credentials). The retry wrapper gives up on the
	// first occurrence.
	ErrNonRetryable = errors.New("non-retryable provider error")
)

// retryableStatus reports whether an HTTP status from a provider is worth
// another attempt. Timeouts, rate limits and server errors are; client
// errors like 400/401/403 are not.
func retryableStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// Provider is a single LLM backend. Complete sends one prompt and returns
// the raw text response.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

type factory func(cfg config.LLMConfig) (Provider, error)

// providerFactories is the fixed registry of supported backends. Adding a
// provider means adding a factory here.
var providerFactories = map[string]factory{
	ProviderAnthropic: newAnthropicProvider,
	ProviderGemini:    newGeminiProvider,
}

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// NewProvider builds the named provider from configuration
func NewProvider(name string, cfg config.LLMConfig) (Provider, error) {
	build, ok := providerFactories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return build(cfg)
}

// ProviderNames returns the supported provider ids in stable order
func ProviderNames() []string {
	names := make([]string, 0, len(providerFactories))
	for name := range providerFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSupported reports whether the provider id is registered
func IsSupported(name string) bool {
	_, ok := providerFactories[name]
	return ok
}
