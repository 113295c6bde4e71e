package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/llmify/llmstxt-service/common/config"

	"google.golang.org/genai"
)

type geminiProvider struct {
	apiKey string
	model  string
}

func newGeminiProvider(cfg config.LLMConfig) (Provider, error) {
	if cfg.GoogleAPIKey == "" {
		return nil, errors.New("GOOGLE_API_KEY is not set")
	}
	return &geminiProvider{
		apiKey: cfg.GoogleAPIKey,
		model:  cfg.GeminiModel,
	}, nil
}

func (p *geminiProvider) Name() string {
	return ProviderGemini
}

func (p *geminiProvider) Complete(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("creating gemini client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{genai.NewPartFromText(prompt)},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, p.model, contents, &genai.GenerateContentConfig{})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && !retryableStatus(apiErr.Code) {
			return "", fmt.Errorf("%w: gemini completion: %v", ErrNonRetryable, err)
		}
		return "", fmt.Errorf("gemini completion: %w", err)
	}

	var text strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					text.WriteString(part.Text)
				}
			}
			if text.Len() > 0 {
				break
			}
		}
	}

	if text.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}
