package contentstore

import (
	"context"
	"testing"
	"time"

	"github.com/llmify/llmstxt-service/repository"
)

type fakeRow struct {
	content      string
	refCount     int32
	lastAccessed time.Time
}

type holdKey struct {
	generationID int64
	hash         string
}

type fakeQuerier struct {
	rows  map[string]*fakeRow
	holds map[holdKey]bool
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		rows:  make(map[string]*fakeRow),
		holds: make(map[holdKey]bool),
	}
}

func (f *fakeQuerier) UpsertContent(ctx context.Context, arg repository.UpsertContentParams) (int32, error) {
	if row, ok := f.rows[arg.ContentHash]; ok {
		row.refCount++
		row.lastAccessed = time.Now()
		return row.refCount, nil
	}
	f.rows[arg.ContentHash] = &fakeRow{
		content:      arg.RawContent,
		refCount:     1,
		lastAccessed: time.Now(),
	}
	return 1, nil
}

func (f *fakeQuerier) ReleaseContent(ctx context.Context, contentHash string) (int32, error) {
	row, ok := f.rows[contentHash]
	if !ok {
		return 0, nil
	}
	if row.refCount > 0 {
		row.refCount--
	}
	row.lastAccessed = time.Now()
	return row.refCount, nil
}

func (f *fakeQuerier) AddGenerationContent(ctx context.Context, arg repository.AddGenerationContentParams) (bool, error) {
	key := holdKey{generationID: arg.GenerationID, hash: arg.ContentHash}
	if f.holds[key] {
		return false, nil
	}
	f.holds[key] = true
	return true, nil
}

func (f *fakeQuerier) GetGenerationContent(ctx context.Context, generationID int64) ([]string, error) {
	var hashes []string
	for key := range f.holds {
		if key.generationID == generationID {
			hashes = append(hashes, key.hash)
		}
	}
	return hashes, nil
}

func (f *fakeQuerier) DeleteGenerationContent(ctx context.Context, generationID int64) error {
	for key := range f.holds {
		if key.generationID == generationID {
			delete(f.holds, key)
		}
	}
	return nil
}

func (f *fakeQuerier) SweepContent(ctx context.Context, before time.Time, limit int32) (int64, error) {
	var deleted int64
	for hash, row := range f.rows {
		if deleted >= int64(limit) {
			break
		}
		if row.refCount == 0 && row.lastAccessed.Before(before) {
			delete(f.rows, hash)
			deleted++
		}
	}
	return deleted, nil
}

func TestStoreDeduplicates(t *testing.T) {
	ctx := context.Background()
	q := newFakeQuerier()
	store := New(q)

	hash1, ref1, err := store.Store(ctx, "identical page text")
	if err != nil {
		t.Fatal(err)
	}
	if ref1 != 1 {
		t.Errorf("expected refcount 1 on first store, got %d", ref1)
	}

	hash2, ref2, err := store.Store(ctx, "identical page text")
	if err != nil {
		t.Fatal(err)
	}
	if hash2 != hash1 {
		t.Errorf("identical content produced different hashes: %s vs %s", hash1, hash2)
	}
	if ref2 != 2 {
		t.Errorf("expected refcount 2 on second store, got %d", ref2)
	}
	if len(q.rows) != 1 {
		t.Errorf("expected a single stored row, got %d", len(q.rows))
	}

	hash3, _, err := store.Store(ctx, "different text")
	if err != nil {
		t.Fatal(err)
	}
	if hash3 == hash1 {
		t.Error("different content produced the same hash")
	}
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	q := newFakeQuerier()
	store := New(q)

	hash, _, err := store.Store(ctx, "page")
	if err != nil {
		t.Fatal(err)
	}
	_, _, err = store.Store(ctx, "page")
	if err != nil {
		t.Fatal(err)
	}

	// N=2 stores, M=5 releases: refcount bottoms out at zero.
	for i := 0; i < 5; i++ {
		if err := store.Release(ctx, []string{hash}); err != nil {
			t.Fatal(err)
		}
	}

	if got := q.rows[hash].refCount; got != 0 {
		t.Errorf("expected refcount 0 after excess releases, got %d", got)
	}
}

func TestSweepRemovesOnlyUnreferencedOldRows(t *testing.T) {
	ctx := context.Background()
	q := newFakeQuerier()
	store := New(q)

	old := time.Now().Add(-48 * time.Hour)

	q.rows["dead-old"] = &fakeRow{refCount: 0, lastAccessed: old}
	q.rows["live-old"] = &fakeRow{refCount: 2, lastAccessed: old}
	q.rows["dead-new"] = &fakeRow{refCount: 0, lastAccessed: time.Now()}

	deleted, err := store.Sweep(ctx, 24*time.Hour, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 deleted row, got %d", deleted)
	}
	if _, ok := q.rows["dead-old"]; ok {
		t.Error("expected unreferenced old row to be swept")
	}
	if _, ok := q.rows["live-old"]; !ok {
		t.Error("referenced row must survive the sweep")
	}
	if _, ok := q.rows["dead-new"]; !ok {
		t.Error("row inside the retention window must survive the sweep")
	}
}

func TestStoreForCountsEachGenerationOnce(t *testing.T) {
	ctx := context.Background()
	q := newFakeQuerier()
	store := New(q)

	// A retried run re-extracts the same page; the second store is a no-op.
	hash1, err := store.StoreFor(ctx, 1, "identical page text")
	if err != nil {
		t.Fatal(err)
	}
	hash2, err := store.StoreFor(ctx, 1, "identical page text")
	if err != nil {
		t.Fatal(err)
	}
	if hash2 != hash1 {
		t.Errorf("identical content produced different hashes: %s vs %s", hash1, hash2)
	}
	if got := q.rows[hash1].refCount; got != 1 {
		t.Errorf("expected refcount 1 after repeated stores by one generation, got %d", got)
	}

	// A second generation holding the same content adds one reference.
	if _, err := store.StoreFor(ctx, 2, "identical page text"); err != nil {
		t.Fatal(err)
	}
	if got := q.rows[hash1].refCount; got != 2 {
		t.Errorf("expected refcount 2 with two holding generations, got %d", got)
	}
}

func TestReleaseForGivesBackEveryHold(t *testing.T) {
	ctx := context.Background()
	q := newFakeQuerier()
	store := New(q)

	hashA, err := store.StoreFor(ctx, 1, "page a")
	if err != nil {
		t.Fatal(err)
	}
	hashB, err := store.StoreFor(ctx, 1, "page b")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.StoreFor(ctx, 2, "page a"); err != nil {
		t.Fatal(err)
	}

	if err := store.ReleaseFor(ctx, 1); err != nil {
		t.Fatal(err)
	}

	if got := q.rows[hashA].refCount; got != 1 {
		t.Errorf("expected refcount 1 on shared content, got %d", got)
	}
	if got := q.rows[hashB].refCount; got != 0 {
		t.Errorf("expected refcount 0 on exclusive content, got %d", got)
	}
	if len(q.holds) != 1 {
		t.Errorf("expected only generation 2's hold to remain, got %v", q.holds)
	}

	// Releasing again is a no-op: the hold set is gone.
	if err := store.ReleaseFor(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if got := q.rows[hashA].refCount; got != 1 {
		t.Errorf("double release must not decrement again, got %d", got)
	}
}

func TestSweepReclaimsReleasedContent(t *testing.T) {
	ctx := context.Background()
	q := newFakeQuerier()
	store := New(q)

	hash, err := store.StoreFor(ctx, 1, "page")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.ReleaseFor(ctx, 1); err != nil {
		t.Fatal(err)
	}
	q.rows[hash].lastAccessed = time.Now().Add(-48 * time.Hour)

	deleted, err := store.Sweep(ctx, 24*time.Hour, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("expected the released row to be swept, got %d deletions", deleted)
	}
	if _, ok := q.rows[hash]; ok {
		t.Error("released content must be reclaimable by the sweep")
	}
}

func TestHashIsStable(t *testing.T) {
	if Hash("abc") != Hash("abc") {
		t.Error("hash must be deterministic")
	}
	if Hash("abc") == Hash("abd") {
		t.Error("distinct content must hash differently")
	}
	if len(Hash("abc")) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(Hash("abc")))
	}
}
