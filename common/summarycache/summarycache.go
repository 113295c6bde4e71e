package summarycache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/llmify/llmstxt-service/common/urlsource"

	"github.com/samber/mo"
)

// descriptionField is a reserved hash field holding the site-level
// description alongside the per-URL entries.
const descriptionField = "__site_description__"

// Hasher is the slice of the redis client the cache needs
type Hasher interface {
	HSet(ctx context.Context, key string, values map[string]interface{}) error
	HMGet(ctx context.Context, key string, fields ...string) ([]interface{}, error)
	HGet(ctx context.Context, key, field string) (string, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Entry is one cached page summary
type Entry struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Cache stores generated page summaries per provider and hostname, so a
// re-run of the same site only pays for URLs it has not summarized before.
type Cache struct {
	redis Hasher
	ttl   time.Duration
}

// New creates a summary cache with the given entry TTL
func New(redis Hasher, ttl time.Duration) *Cache {
	return &Cache{redis: redis, ttl: ttl}
}

// Key builds the cache key for one provider + site
func Key(provider, hostname string) string {
	return fmt.Sprintf("summary:%s:%s", provider, urlsource.NormalizeHostname(hostname))
}

// Load reads the cached entries for the given URLs in one round trip.
// Returns the hits keyed by URL and the list of URLs that missed.
func (c *Cache) Load(ctx context.Context, key string, urls []string) (map[string]Entry, []string, error) {
	if len(urls) == 0 {
		return map[string]Entry{}, nil, nil
	}

	values, err := c.redis.HMGet(ctx, key, urls...)
	if err != nil {
		return nil, nil, fmt.Errorf("loading summary cache %s: %w", key, err)
	}

	hits := make(map[string]Entry)
	var misses []string
	for i, raw := range values {
		if raw == nil {
			misses = append(misses, urls[i])
			continue
		}
		str, ok := raw.(string)
		if !ok {
			misses = append(misses, urls[i])
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(str), &entry); err != nil {
			// Treat a corrupt entry as a miss; it will be rewritten.
			misses = append(misses, urls[i])
			continue
		}
		hits[urls[i]] = entry
	}
	return hits, misses, nil
}

// StoreNew writes only newly generated entries and refreshes the hash TTL.
// Existing entries are never rewritten.
func (c *Cache) StoreNew(ctx context.Context, key string, entries map[string]Entry) error {
	if len(entries) == 0 {
		return nil
	}

	values := make(map[string]interface{}, len(entries))
	for url, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encoding cache entry for %s: %w", url, err)
		}
		values[url] = string(data)
	}

	if err := c.redis.HSet(ctx, key, values); err != nil {
		return fmt.Errorf("storing summary cache %s: %w", key, err)
	}
	if err := c.redis.Expire(ctx, key, c.ttl); err != nil {
		return fmt.Errorf("refreshing TTL on %s: %w", key, err)
	}
	return nil
}

// Description returns the cached site description, if any
func (c *Cache) Description(ctx context.Context, key string) mo.Option[string] {
	value, err := c.redis.HGet(ctx, key, descriptionField)
	if err != nil || value == "" {
		return mo.None[string]()
	}
	return mo.Some(value)
}

// StoreDescription caches the site-level description
func (c *Cache) StoreDescription(ctx context.Context, key, description string) error {
	if err := c.redis.HSet(ctx, key, map[string]interface{}{descriptionField: description}); err != nil {
		return fmt.Errorf("storing site description on %s: %w", key, err)
	}
	return c.redis.Expire(ctx, key, c.ttl)
}
