package summarycache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeHasher struct {
	hashes  map[string]map[string]string
	ttls    map[string]time.Duration
	hsetErr error
}

func newFakeHasher() *fakeHasher {
	return &fakeHasher{
		hashes: make(map[string]map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (f *fakeHasher) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	if f.hsetErr != nil {
		return f.hsetErr
	}
	hash, ok := f.hashes[key]
	if !ok {
		hash = make(map[string]string)
		f.hashes[key] = hash
	}
	for field, value := range values {
		hash[field] = value.(string)
	}
	return nil
}

func (f *fakeHasher) HMGet(ctx context.Context, key string, fields ...string) ([]interface{}, error) {
	hash := f.hashes[key]
	out := make([]interface{}, len(fields))
	for i, field := range fields {
		if value, ok := hash[field]; ok {
			out[i] = value
		}
	}
	return out, nil
}

func (f *fakeHasher) HGet(ctx context.Context, key, field string) (string, error) {
	if value, ok := f.hashes[key][field]; ok {
		return value, nil
	}
	return "", errors.New("redis: nil")
}

func (f *fakeHasher) Expire(ctx context.Context, key string, ttl time.Duration) error {
	f.ttls[key] = ttl
	return nil
}

func TestKey(t *testing.T) {
	tests := []struct {
		provider string
		hostname string
		want     string
	}{
		{"anthropic", "Example.com", "summary:anthropic:example.com"},
		{"gemini", "www.example.com", "summary:gemini:example.com"},
		{"anthropic", "https://www.Example.com/x", "summary:anthropic:example.com"},
	}
	for _, tt := range tests {
		if got := Key(tt.provider, tt.hostname); got != tt.want {
			t.Errorf("Key(%q, %q) = %q, want %q", tt.provider, tt.hostname, got, tt.want)
		}
	}
}

func TestLoadHitsAndMisses(t *testing.T) {
	ctx := context.Background()
	redis := newFakeHasher()
	cache := New(redis, time.Hour)
	key := Key("anthropic", "example.com")

	if err := cache.StoreNew(ctx, key, map[string]Entry{
		"https://example.com/a": {Title: "A", Summary: "about a"},
	}); err != nil {
		t.Fatal(err)
	}

	hits, misses, err := cache.Load(ctx, key, []string{
		"https://example.com/a",
		"https://example.com/b",
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if entry := hits["https://example.com/a"]; entry.Title != "A" || entry.Summary != "about a" {
		t.Errorf("unexpected cached entry: %+v", entry)
	}
	if len(misses) != 1 || misses[0] != "https://example.com/b" {
		t.Errorf("expected one miss for /b, got %v", misses)
	}
}

func TestLoadCorruptEntryIsAMiss(t *testing.T) {
	ctx := context.Background()
	redis := newFakeHasher()
	cache := New(redis, time.Hour)
	key := Key("anthropic", "example.com")

	redis.hashes[key] = map[string]string{"https://example.com/a": "{not json"}

	hits, misses, err := cache.Load(ctx, key, []string{"https://example.com/a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("corrupt entry must not count as a hit: %v", hits)
	}
	if len(misses) != 1 {
		t.Errorf("corrupt entry must be reported as a miss, got %v", misses)
	}
}

func TestStoreNewRefreshesTTLAndKeepsExisting(t *testing.T) {
	ctx := context.Background()
	redis := newFakeHasher()
	cache := New(redis, 24*time.Hour)
	key := Key("gemini", "example.com")

	if err := cache.StoreNew(ctx, key, map[string]Entry{
		"https://example.com/a": {Title: "A", Summary: "first"},
	}); err != nil {
		t.Fatal(err)
	}
	original := redis.hashes[key]["https://example.com/a"]

	// A later batch stores only its own new entries; /a is untouched and
	// remains byte-identical.
	if err := cache.StoreNew(ctx, key, map[string]Entry{
		"https://example.com/b": {Title: "B", Summary: "second"},
	}); err != nil {
		t.Fatal(err)
	}

	if redis.hashes[key]["https://example.com/a"] != original {
		t.Error("existing cache entry was rewritten")
	}
	if redis.ttls[key] != 24*time.Hour {
		t.Errorf("expected TTL refresh to 24h, got %v", redis.ttls[key])
	}
}

func TestStoreNewEmptyIsNoop(t *testing.T) {
	ctx := context.Background()
	redis := newFakeHasher()
	redis.hsetErr = errors.New("should not be called")
	cache := New(redis, time.Hour)

	if err := cache.StoreNew(ctx, "k", nil); err != nil {
		t.Errorf("empty StoreNew must be a no-op, got %v", err)
	}
}

func TestDescription(t *testing.T) {
	ctx := context.Background()
	redis := newFakeHasher()
	cache := New(redis, time.Hour)
	key := Key("anthropic", "example.com")

	if opt := cache.Description(ctx, key); opt.IsPresent() {
		t.Error("expected absent description before storing")
	}

	if err := cache.StoreDescription(ctx, key, "An example website."); err != nil {
		t.Fatal(err)
	}

	opt := cache.Description(ctx, key)
	if desc, ok := opt.Get(); !ok || desc != "An example website." {
		t.Errorf("expected stored description, got %v", opt)
	}
}
