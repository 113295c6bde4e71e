package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/llmify/llmstxt-service/common/config"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const anthropicMaxTokens = 4096

type anthropicProvider struct {
	client anthropic.Client
	model  string
}

func newAnthropicProvider(cfg config.LLMConfig) (Provider, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is not set")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(cfg.AnthropicAPIKey),
	)

	return &anthropicProvider{
		client: client,
		model:  cfg.AnthropicModel,
	}, nil
}

func (p *anthropicProvider) Name() string {
	return ProviderAnthropic
}

func (p *anthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) && !retryableStatus(apierr.StatusCode) {
			return "", fmt.Errorf("%w: anthropic completion: %v", ErrNonRetryable, err)
		}
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}
