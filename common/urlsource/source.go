package urlsource

import (
	"context"
	"net/url"
	"strings"
)

// Iterator yields page URLs one at a time. Next returns done=true once the
// source is exhausted; after that every call returns done=true. Errors are
// terminal for the iterator.
type Iterator interface {
	Next(ctx context.Context) (u string, done bool, err error)
	Close() error
}

// StaticSource iterates over a fixed, caller-supplied URL list
type StaticSource struct {
	urls []string
	pos  int
}

// NewStaticSource builds an iterator over the given URLs, preserving order
// and dropping duplicates.
func NewStaticSource(urls []string) *StaticSource {
	seen := make(map[string]struct{}, len(urls))
	deduped := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		deduped = append(deduped, u)
	}
	return &StaticSource{urls: deduped}
}

// Next implements Iterator
func (s *StaticSource) Next(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", true, err
	}
	if s.pos >= len(s.urls) {
		return "", true, nil
	}
	u := s.urls[s.pos]
	s.pos++
	return u, false, nil
}

// Close implements Iterator
func (s *StaticSource) Close() error {
	return nil
}

// NormalizeHostname lowercases a hostname and strips a leading "www.".
// Accepts either a bare hostname or a full URL.
func NormalizeHostname(raw string) string {
	host := raw
	if strings.Contains(raw, "://") {
		if parsed, err := url.Parse(raw); err == nil && parsed.Hostname() != "" {
			host = parsed.Hostname()
		}
	}
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimPrefix(host, "www.")
	return strings.TrimSuffix(host, "/")
}
