package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// extractJSON returns the most plausible JSON payload in an LLM response:
// the raw text if it already is JSON, otherwise the contents of the first
// fenced code block.
func extractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if json.Valid([]byte(trimmed)) {
		return trimmed
	}
	if m := fencedBlock.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// ParseSummaries decodes a batch-summary response and validates it against
// the expected page count. Every entry must carry a non-empty summary.
func ParseSummaries(raw string, want int) ([]Summary, error) {
	payload := extractJSON(raw)

	var summaries []Summary
	if err := json.Unmarshal([]byte(payload), &summaries); err != nil {
		// Some models wrap the array in an object.
		var wrapped struct {
			Summaries []Summary `json:"summaries"`
		}
		if err2 := json.Unmarshal([]byte(payload), &wrapped); err2 != nil || wrapped.Summaries == nil {
			return nil, fmt.Errorf("response is not a JSON array of summaries: %w", err)
		}
		summaries = wrapped.Summaries
	}

	if len(summaries) != want {
		return nil, fmt.Errorf("expected %d summaries, got %d", want, len(summaries))
	}
	for i, s := range summaries {
		if strings.TrimSpace(s.Summary) == "" {
			return nil, fmt.Errorf("summary %d is empty", i+1)
		}
	}
	return summaries, nil
}

// ParseDescription decodes a site-description response
func ParseDescription(raw string) (string, error) {
	payload := extractJSON(raw)

	var out struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return "", fmt.Errorf("response is not a JSON description object: %w", err)
	}
	if strings.TrimSpace(out.Description) == "" {
		return "", fmt.Errorf("description is empty")
	}
	return strings.TrimSpace(out.Description), nil
}
