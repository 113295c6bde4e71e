package urlsource

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultUserAgent = "llmstxt-service/1.0"
	maxSitemapBytes  = 32 << 20
)

var ErrSitemapUnavailable = errors.New("sitemap unavailable")

type sitemapURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []struct {
		Loc string `xml:"loc"`
	} `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []struct {
		Loc string `xml:"loc"`
	} `xml:"sitemap"`
}

// SitemapSource iterates the URLs of a site's sitemap. Sitemap indexes are
// followed one level deep. Fetching is lazy; nothing happens until the
// first Next call.
type SitemapSource struct {
	sitemapURL string
	client     *http.Client

	loaded bool
	urls   []string
	pos    int
	err    error
}

// NewSitemapSource creates a sitemap iterator for the given sitemap URL
func NewSitemapSource(sitemapURL string, timeout time.Duration) *SitemapSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SitemapSource{
		sitemapURL: sitemapURL,
		client:     &http.Client{Timeout: timeout},
	}
}

// Next implements Iterator. The first call fetches and parses the sitemap;
// a fetch or parse failure is returned here and on every later call.
func (s *SitemapSource) Next(ctx context.Context) (string, bool, error) {
	if !s.loaded {
		s.load(ctx)
	}
	if s.err != nil {
		return "", true, s.err
	}
	if s.pos >= len(s.urls) {
		return "", true, nil
	}
	u := s.urls[s.pos]
	s.pos++
	return u, false, nil
}

// Close implements Iterator
func (s *SitemapSource) Close() error {
	return nil
}

// Count fetches the sitemap if needed and returns the total number of URLs
func (s *SitemapSource) Count(ctx context.Context) (int, error) {
	if !s.loaded {
		s.load(ctx)
	}
	if s.err != nil {
		return 0, s.err
	}
	return len(s.urls), nil
}

func (s *SitemapSource) load(ctx context.Context) {
	s.loaded = true

	body, err := s.fetch(ctx, s.sitemapURL)
	if err != nil {
		s.err = err
		return
	}

	seen := make(map[string]struct{})

	// A sitemap document is either a urlset or an index of further
	// sitemaps; try the urlset shape first.
	var urlSet sitemapURLSet
	if err := xml.Unmarshal(body, &urlSet); err == nil && len(urlSet.URLs) > 0 {
		s.appendURLs(urlSet, seen)
		return
	}

	var index sitemapIndex
	if err := xml.Unmarshal(body, &index); err != nil || index.XMLName.Local != "sitemapindex" {
		// Not an index either; distinguish "valid but empty" from garbage.
		var empty sitemapURLSet
		if err := xml.Unmarshal(body, &empty); err == nil && empty.XMLName.Local == "urlset" {
			return
		}
		s.err = fmt.Errorf("parsing sitemap %s: not a urlset or sitemapindex", s.sitemapURL)
		return
	}

	for _, child := range index.Sitemaps {
		if child.Loc == "" {
			continue
		}
		childBody, err := s.fetch(ctx, child.Loc)
		if err != nil {
			log.Warn().Err(err).Str("sitemap", child.Loc).Msg("Skipping unreachable child sitemap")
			continue
		}
		var childSet sitemapURLSet
		if err := xml.Unmarshal(childBody, &childSet); err != nil {
			log.Warn().Err(err).Str("sitemap", child.Loc).Msg("Skipping malformed child sitemap")
			continue
		}
		s.appendURLs(childSet, seen)
	}
}

func (s *SitemapSource) appendURLs(set sitemapURLSet, seen map[string]struct{}) {
	for _, entry := range set.URLs {
		if entry.Loc == "" {
			continue
		}
		if _, ok := seen[entry.Loc]; ok {
			continue
		}
		seen[entry.Loc] = struct{}{}
		s.urls = append(s.urls, entry.Loc)
	}
}

func (s *SitemapSource) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building sitemap request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSitemapUnavailable, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrSitemapUnavailable, rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("reading sitemap %s: %w", rawURL, err)
	}
	return body, nil
}
