package contentstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/llmify/llmstxt-service/repository"

	"github.com/rs/zerolog/log"
)

// Querier is the slice of repository the store needs
type Querier interface {
	UpsertContent(ctx context.Context, arg repository.UpsertContentParams) (int32, error)
	ReleaseContent(ctx context.Context, contentHash string) (int32, error)
	SweepContent(ctx context.Context, before time.Time, limit int32) (int64, error)
	AddGenerationContent(ctx context.Context, arg repository.AddGenerationContentParams) (bool, error)
	GetGenerationContent(ctx context.Context, generationID int64) ([]string, error)
	DeleteGenerationContent(ctx context.Context, generationID int64) error
}

// Store deduplicates extracted page content by hash. Identical text from
// different URLs (or different runs) is kept once, with a reference count.
type Store struct {
	querier Querier
}

// New creates a content store over the given querier
func New(querier Querier) *Store {
	return &Store{querier: querier}
}

// Hash returns the hex SHA-256 of normalized content
func Hash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Store inserts the content or increments the refcount of an existing copy.
// Returns the content hash and the refcount after the operation.
func (s *Store) Store(ctx context.Context, content string) (string, int32, error) {
	hash := Hash(content)
	refCount, err := s.querier.UpsertContent(ctx, repository.UpsertContentParams{
		ContentHash: hash,
		RawContent:  content,
	})
	if err != nil {
		return "", 0, fmt.Errorf("storing content %s: %w", hash, err)
	}
	return hash, refCount, nil
}

// StoreFor stores content on behalf of one generation. Each generation
// contributes at most one reference per hash, so re-extracting the same page
// on a retried run never double-counts.
func (s *Store) StoreFor(ctx context.Context, generationID int64, content string) (string, error) {
	hash := Hash(content)
	held, err := s.querier.AddGenerationContent(ctx, repository.AddGenerationContentParams{
		GenerationID: generationID,
		ContentHash:  hash,
	})
	if err != nil {
		return "", fmt.Errorf("recording content hold %s for %d: %w", hash, generationID, err)
	}
	if !held {
		// Already held by this generation; the refcount is unchanged.
		return hash, nil
	}
	if _, err := s.querier.UpsertContent(ctx, repository.UpsertContentParams{
		ContentHash: hash,
		RawContent:  content,
	}); err != nil {
		return "", fmt.Errorf("storing content %s: %w", hash, err)
	}
	return hash, nil
}

// ReleaseFor gives back every reference a generation holds and forgets the
// hold set. Called when a snapshot is torn down; Sweep reclaims the rows
// that reach zero.
func (s *Store) ReleaseFor(ctx context.Context, generationID int64) error {
	hashes, err := s.querier.GetGenerationContent(ctx, generationID)
	if err != nil {
		return fmt.Errorf("loading content holds for %d: %w", generationID, err)
	}
	if err := s.Release(ctx, hashes); err != nil {
		return err
	}
	if err := s.querier.DeleteGenerationContent(ctx, generationID); err != nil {
		return fmt.Errorf("clearing content holds for %d: %w", generationID, err)
	}
	return nil
}

// Release decrements the refcount for each hash, floored at zero. Rows are
// not deleted here; Sweep reclaims them later.
func (s *Store) Release(ctx context.Context, hashes []string) error {
	for _, hash := range hashes {
		if _, err := s.querier.ReleaseContent(ctx, hash); err != nil {
			return fmt.Errorf("releasing content %s: %w", hash, err)
		}
	}
	return nil
}

// Sweep deletes unreferenced content older than the retention window. It
// works in batches and stops when the time budget runs out, so a large
// backlog cannot stall the caller.
func (s *Store) Sweep(ctx context.Context, retention, budget time.Duration) (int64, error) {
	const batchSize = 500

	deadline := time.Now().Add(budget)
	before := time.Now().Add(-retention)

	var total int64
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		deleted, err := s.querier.SweepContent(ctx, before, batchSize)
		if err != nil {
			return total, fmt.Errorf("sweeping content store: %w", err)
		}
		total += deleted
		if deleted < batchSize {
			break
		}
	}

	if total > 0 {
		log.Info().Int64("deleted", total).Msg("Swept unreferenced content")
	}
	return total, nil
}
