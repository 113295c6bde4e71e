package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	mdp "github.com/JohannesKaufmann/html-to-markdown/plugin"
	gq "github.com/PuerkitoBio/goquery"
)

const (
	defaultUserAgent = "llmstxt-service/1.0"
	maxBodyBytes     = 8 << 20
	maxTextRunes     = 20000
)

var (
	ErrPageUnavailable = errors.New("page unavailable")
	ErrEmptyContent    = errors.New("no extractable content")
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// Page is the extracted content of one URL
type Page struct {
	URL   string
	Title string
	Text  string
}

// Extractor fetches pages over plain HTTP and reduces their HTML to text.
// It is stateless and safe for concurrent use.
type Extractor struct {
	client    *http.Client
	userAgent string
}

// New creates an extractor with the given fetch timeout
func New(timeout time.Duration) *Extractor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Extractor{
		client:    &http.Client{Timeout: timeout},
		userAgent: defaultUserAgent,
	}
}

// Extract fetches the URL and returns its reduced content
func (e *Extractor) Extract(ctx context.Context, pageURL string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("building request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %s: %v", ErrPageUnavailable, pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("%w: %s returned %d", ErrPageUnavailable, pageURL, resp.StatusCode)
	}

	page, err := e.ExtractFromReader(io.LimitReader(resp.Body, maxBodyBytes), pageURL)
	if err != nil {
		return Page{}, err
	}
	return page, nil
}

// ExtractFromReader reduces an HTML document to its title and main text
func (e *Extractor) ExtractFromReader(r io.Reader, pageURL string) (Page, error) {
	doc, err := gq.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	doc.Find("script, style, noscript, nav, header, footer, iframe, svg").Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	html, err := body.Html()
	if err != nil {
		return Page{}, fmt.Errorf("serializing %s: %w", pageURL, err)
	}

	converter := md.NewConverter("", true, nil)
	converter.Use(mdp.GitHubFlavored())

	text, err := converter.ConvertString(html)
	if err != nil {
		return Page{}, fmt.Errorf("converting %s: %w", pageURL, err)
	}

	text = normalize(text)
	if text == "" {
		return Page{}, fmt.Errorf("%w: %s", ErrEmptyContent, pageURL)
	}

	return Page{
		URL:   pageURL,
		Title: title,
		Text:  text,
	}, nil
}

// normalize collapses runs of blank lines, trims the result and caps its
// length so one oversized page cannot blow up the prompt budget.
func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) > maxTextRunes {
		text = strings.TrimSpace(string(runes[:maxTextRunes]))
	}
	return text
}
