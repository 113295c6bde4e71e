package repository

import (
	"context"
	"time"
)

const upsertContent = `
INSERT INTO content_store (content_hash, raw_content, ref_count, first_seen_at, last_accessed_at)
VALUES ($1, $2, 1, now(), now())
ON CONFLICT (content_hash)
DO UPDATE SET ref_count = content_store.ref_count + 1, last_accessed_at = now()
RETURNING ref_count
`

type UpsertContentParams struct {
	ContentHash string
	RawContent  string
}

// UpsertContent inserts a new content row or atomically bumps the refcount
// of an existing one. A single statement, so concurrent workers never lose
// an increment.
func (q *Queries) UpsertContent(ctx context.Context, arg UpsertContentParams) (int32, error) {
	var refCount int32
	err := q.db.QueryRow(ctx, upsertContent, arg.ContentHash, arg.RawContent).Scan(&refCount)
	return refCount, err
}

const releaseContent = `
UPDATE content_store
SET ref_count = GREATEST(ref_count - 1, 0), last_accessed_at = now()
WHERE content_hash = $1
RETURNING ref_count
`

func (q *Queries) ReleaseContent(ctx context.Context, contentHash string) (int32, error) {
	var refCount int32
	err := q.db.QueryRow(ctx, releaseContent, contentHash).Scan(&refCount)
	return refCount, err
}

const getContent = `
SELECT content_hash, raw_content, ref_count, first_seen_at, last_accessed_at
FROM content_store
WHERE content_hash = $1
`

func (q *Queries) GetContent(ctx context.Context, contentHash string) (ContentEntry, error) {
	var e ContentEntry
	err := q.db.QueryRow(ctx, getContent, contentHash).Scan(
		&e.ContentHash,
		&e.RawContent,
		&e.RefCount,
		&e.FirstSeenAt,
		&e.LastAccessedAt,
	)
	return e, err
}

const addGenerationContent = `
INSERT INTO generation_content (generation_id, content_hash)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`

type AddGenerationContentParams struct {
	GenerationID int64
	ContentHash  string
}

// AddGenerationContent records that a generation holds a reference to the
// hash. Returns false when the hold already existed, so the caller knows
// not to bump the refcount again.
func (q *Queries) AddGenerationContent(ctx context.Context, arg AddGenerationContentParams) (bool, error) {
	tag, err := q.db.Exec(ctx, addGenerationContent, arg.GenerationID, arg.ContentHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const getGenerationContent = `
SELECT content_hash FROM generation_content
WHERE generation_id = $1
`

func (q *Queries) GetGenerationContent(ctx context.Context, generationID int64) ([]string, error) {
	rows, err := q.db.Query(ctx, getGenerationContent, generationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	return hashes, rows.Err()
}

const deleteGenerationContent = `
DELETE FROM generation_content
WHERE generation_id = $1
`

func (q *Queries) DeleteGenerationContent(ctx context.Context, generationID int64) error {
	_, err := q.db.Exec(ctx, deleteGenerationContent, generationID)
	return err
}

const sweepContent = `
DELETE FROM content_store
WHERE content_hash IN (
    SELECT content_hash FROM content_store
    WHERE ref_count = 0 AND last_accessed_at < $1
    LIMIT $2
)
`

// SweepContent deletes up to limit unreferenced rows older than before and
// reports how many were removed.
func (q *Queries) SweepContent(ctx context.Context, before time.Time, limit int32) (int64, error) {
	tag, err := q.db.Exec(ctx, sweepContent, before, limit)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
