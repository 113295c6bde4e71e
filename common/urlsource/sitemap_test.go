package urlsource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func drain(t *testing.T, it Iterator) ([]string, error) {
	t.Helper()
	var urls []string
	for {
		u, done, err := it.Next(context.Background())
		if err != nil {
			return urls, err
		}
		if done {
			return urls, nil
		}
		urls = append(urls, u)
	}
}

func TestStaticSource(t *testing.T) {
	src := NewStaticSource([]string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/a",
	})
	defer src.Close()

	urls, err := drain(t, src)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"https://example.com/a", "https://example.com/b"}
	if len(urls) != len(want) {
		t.Fatalf("expected %d urls, got %d", len(want), len(urls))
	}
	for i := range want {
		if urls[i] != want[i] {
			t.Errorf("url %d: expected %q, got %q", i, want[i], urls[i])
		}
	}

	// Exhausted iterator stays done.
	_, done, err := src.Next(context.Background())
	if err != nil || !done {
		t.Errorf("expected done after exhaustion, got done=%v err=%v", done, err)
	}
}

func TestSitemapSourceURLSet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/</loc></url>
  <url><loc>https://example.com/about</loc></url>
  <url><loc>https://example.com/</loc></url>
</urlset>`))
	}))
	defer server.Close()

	src := NewSitemapSource(server.URL+"/sitemap.xml", 5*time.Second)
	defer src.Close()

	urls, err := drain(t, src)
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected 2 deduplicated urls, got %d: %v", len(urls), urls)
	}
}

func TestSitemapSourceIndex(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>` + server.URL + `/sitemap-a.xml</loc></sitemap>
  <sitemap><loc>` + server.URL + `/sitemap-b.xml</loc></sitemap>
</sitemapindex>`))
	})
	mux.HandleFunc("/sitemap-a.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<urlset><url><loc>https://example.com/a</loc></url></urlset>`))
	})
	mux.HandleFunc("/sitemap-b.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<urlset><url><loc>https://example.com/b</loc></url><url><loc>https://example.com/a</loc></url></urlset>`))
	})

	src := NewSitemapSource(server.URL+"/sitemap.xml", 5*time.Second)
	urls, err := drain(t, src)
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected 2 urls across child sitemaps, got %d: %v", len(urls), urls)
	}
}

func TestSitemapSourceEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"></urlset>`))
	}))
	defer server.Close()

	src := NewSitemapSource(server.URL+"/sitemap.xml", 5*time.Second)
	u, done, err := src.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !done || u != "" {
		t.Errorf("expected immediate done for empty sitemap, got url=%q done=%v", u, done)
	}
}

func TestSitemapSourceMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`this is not xml at all`))
	}))
	defer server.Close()

	src := NewSitemapSource(server.URL+"/sitemap.xml", 5*time.Second)
	_, done, err := src.Next(context.Background())
	if err == nil {
		t.Fatal("expected error for malformed sitemap")
	}
	if !done {
		t.Error("expected done=true on error")
	}

	// The error is sticky.
	_, _, err2 := src.Next(context.Background())
	if err2 == nil {
		t.Error("expected error to persist on subsequent calls")
	}
}

func TestSitemapSourceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	src := NewSitemapSource(server.URL+"/sitemap.xml", 5*time.Second)
	_, _, err := src.Next(context.Background())
	if !errors.Is(err, ErrSitemapUnavailable) {
		t.Errorf("expected ErrSitemapUnavailable, got %v", err)
	}
}

func TestNormalizeHostname(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Example.com", "example.com"},
		{"www.example.com", "example.com"},
		{"https://www.Example.com/path", "example.com"},
		{"http://example.com", "example.com"},
		{"  example.com  ", "example.com"},
	}
	for _, tt := range tests {
		if got := NormalizeHostname(tt.in); got != tt.want {
			t.Errorf("NormalizeHostname(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
