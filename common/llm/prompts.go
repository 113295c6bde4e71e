package llm

import (
	"fmt"
	"strings"
)

// PageContent is the input for one URL in a batch call
type PageContent struct {
	URL   string
	Title string
	Text  string
}

// Summary is one generated page summary
type Summary struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

const batchFormatInstruction = `Respond with ONLY a JSON array, one object per page, in the same order as the input:
[{"url": "...", "title": "...", "summary": "..."}]
Every "summary" must be a non-empty single sentence of at most 30 words. No prose outside the JSON.`

const descriptionFormatInstruction = `Respond with ONLY a JSON object:
{"description": "..."}
The "description" must be a non-empty sentence of at most 40 words. No prose outside the JSON.`

func buildBatchPrompt(pages []PageContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize each of the following %d web pages for a site index.\n\n", len(pages))
	for i, page := range pages {
		fmt.Fprintf(&b, "--- Page %d ---\nURL: %s\nTitle: %s\nContent:\n%s\n\n", i+1, page.URL, page.Title, page.Text)
	}
	b.WriteString(batchFormatInstruction)
	return b.String()
}

func buildDescriptionPrompt(hostname string, samples []PageContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a one-sentence description of the website %s based on these sample pages.\n\n", hostname)
	for _, page := range samples {
		fmt.Fprintf(&b, "URL: %s\nTitle: %s\nExcerpt:\n%s\n\n", page.URL, page.Title, truncate(page.Text, 1000))
	}
	b.WriteString(descriptionFormatInstruction)
	return b.String()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
