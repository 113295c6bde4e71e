package extractor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>Pricing — Example</title>
  <script>console.log("tracking")</script>
  <style>body { color: red }</style>
</head>
<body>
  <nav><a href="/">Home</a><a href="/pricing">Pricing</a></nav>
  <h1>Pricing</h1>
  <p>Our plans start at <strong>$10</strong> per month.</p>
  <footer>Copyright 2026</footer>
  <noscript>Enable JS</noscript>
</body>
</html>`

func TestExtractFromReader(t *testing.T) {
	e := New(5 * time.Second)

	page, err := e.ExtractFromReader(strings.NewReader(samplePage), "https://example.com/pricing")
	if err != nil {
		t.Fatal(err)
	}

	if page.Title != "Pricing — Example" {
		t.Errorf("expected title from <title>, got %q", page.Title)
	}
	if page.URL != "https://example.com/pricing" {
		t.Errorf("unexpected URL %q", page.URL)
	}
	if !strings.Contains(page.Text, "$10") {
		t.Errorf("expected body text in output, got %q", page.Text)
	}
	for _, stripped := range []string{"console.log", "color: red", "Enable JS", "Copyright 2026"} {
		if strings.Contains(page.Text, stripped) {
			t.Errorf("expected %q to be stripped, text: %q", stripped, page.Text)
		}
	}
}

func TestExtractFromReaderTitleFallback(t *testing.T) {
	e := New(5 * time.Second)

	page, err := e.ExtractFromReader(strings.NewReader(`<html><body><h1>Fallback Heading</h1><p>content</p></body></html>`), "https://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	if page.Title != "Fallback Heading" {
		t.Errorf("expected h1 fallback title, got %q", page.Title)
	}
}

func TestExtractFromReaderEmpty(t *testing.T) {
	e := New(5 * time.Second)

	_, err := e.ExtractFromReader(strings.NewReader(`<html><body><script>only.js()</script></body></html>`), "https://example.com/empty")
	if !errors.Is(err, ErrEmptyContent) {
		t.Errorf("expected ErrEmptyContent, got %v", err)
	}
}

func TestExtract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		w.Write([]byte(samplePage))
	}))
	defer server.Close()

	e := New(5 * time.Second)
	page, err := e.Extract(context.Background(), server.URL+"/pricing")
	if err != nil {
		t.Fatal(err)
	}
	if page.Title == "" || page.Text == "" {
		t.Errorf("expected populated page, got %+v", page)
	}
}

func TestExtractUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	e := New(5 * time.Second)
	_, err := e.Extract(context.Background(), server.URL+"/broken")
	if !errors.Is(err, ErrPageUnavailable) {
		t.Errorf("expected ErrPageUnavailable, got %v", err)
	}
}

func TestNormalizeCapsLength(t *testing.T) {
	long := strings.Repeat("word ", 10000)
	out := normalize(long)
	if len([]rune(out)) > maxTextRunes {
		t.Errorf("expected text capped at %d runes, got %d", maxTextRunes, len([]rune(out)))
	}
}
