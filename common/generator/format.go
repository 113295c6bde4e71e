package generator

import (
	"fmt"
	"strings"

	"github.com/llmify/llmstxt-service/common/urlsource"
)

// Format renders the llms.txt document: the hostname as title, an optional
// blockquoted description, then one line per valid page.
func Format(hostname, description string, entries []UrlSummary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n", urlsource.NormalizeHostname(hostname))

	if description != "" {
		fmt.Fprintf(&b, "\n> %s\n", strings.TrimSpace(description))
	}

	if len(entries) > 0 {
		b.WriteString("\n## Pages\n\n")
		for _, entry := range entries {
			title := strings.TrimSpace(entry.Title)
			if title == "" {
				title = entry.URL
			}
			fmt.Fprintf(&b, "- [%s](%s): %s\n", title, entry.URL, strings.TrimSpace(entry.Summary))
		}
	}

	return b.String()
}
