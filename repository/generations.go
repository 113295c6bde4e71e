package repository

import (
	"context"
)

const createGeneration = `
INSERT INTO generations (request_id, hostname, provider, status)
VALUES ($1, $2, $3, $4)
RETURNING id, request_id, hostname, provider, status, total_units, processed_units,
          output, entry_count, errors, started_at, completed_at, created_at, updated_at
`

type CreateGenerationParams struct {
	RequestID int64
	Hostname  string
	Provider  string
	Status    string
}

func (q *Queries) CreateGeneration(ctx context.Context, arg CreateGenerationParams) (Generation, error) {
	row := q.db.QueryRow(ctx, createGeneration, arg.RequestID, arg.Hostname, arg.Provider, arg.Status)
	return scanGeneration(row)
}

const getGeneration = `
SELECT id, request_id, hostname, provider, status, total_units, processed_units,
       output, entry_count, errors, started_at, completed_at, created_at, updated_at
FROM generations
WHERE id = $1
`

func (q *Queries) GetGeneration(ctx context.Context, id int64) (Generation, error) {
	row := q.db.QueryRow(ctx, getGeneration, id)
	return scanGeneration(row)
}

const updateGenerationStatus = `
UPDATE generations
SET status = $2,
    started_at = CASE WHEN $2 = 'PROCESSING' THEN now() ELSE started_at END,
    completed_at = CASE WHEN $2 IN ('COMPLETED', 'FAILED', 'CANCELLED') THEN now() ELSE completed_at END,
    updated_at = now()
WHERE id = $1
RETURNING status
`

type UpdateGenerationStatusParams struct {
	ID     int64
	Status string
}

// UpdateGenerationStatus is a narrow single-field write; the caller must
// have validated the transition already.
func (q *Queries) UpdateGenerationStatus(ctx context.Context, arg UpdateGenerationStatusParams) (string, error) {
	var status string
	err := q.db.QueryRow(ctx, updateGenerationStatus, arg.ID, arg.Status).Scan(&status)
	return status, err
}

const updateGenerationProgress = `
UPDATE generations
SET processed_units = $2, total_units = $3, updated_at = now()
WHERE id = $1
`

type UpdateGenerationProgressParams struct {
	ID             int64
	ProcessedUnits int32
	TotalUnits     int32
}

func (q *Queries) UpdateGenerationProgress(ctx context.Context, arg UpdateGenerationProgressParams) error {
	_, err := q.db.Exec(ctx, updateGenerationProgress, arg.ID, arg.ProcessedUnits, arg.TotalUnits)
	return err
}

const setGenerationOutput = `
UPDATE generations
SET output = $2, entry_count = $3, updated_at = now()
WHERE id = $1
`

type SetGenerationOutputParams struct {
	ID         int64
	Output     string
	EntryCount int32
}

func (q *Queries) SetGenerationOutput(ctx context.Context, arg SetGenerationOutputParams) error {
	_, err := q.db.Exec(ctx, setGenerationOutput, arg.ID, arg.Output, arg.EntryCount)
	return err
}

const recordGenerationErrors = `
UPDATE generations
SET errors = $2, updated_at = now()
WHERE id = $1
`

type RecordGenerationErrorsParams struct {
	ID     int64
	Errors []string
}

func (q *Queries) RecordGenerationErrors(ctx context.Context, arg RecordGenerationErrorsParams) error {
	_, err := q.db.Exec(ctx, recordGenerationErrors, arg.ID, arg.Errors)
	return err
}

func scanGeneration(row interface{ Scan(dest ...any) error }) (Generation, error) {
	var g Generation
	err := row.Scan(
		&g.ID,
		&g.RequestID,
		&g.Hostname,
		&g.Provider,
		&g.Status,
		&g.TotalUnits,
		&g.ProcessedUnits,
		&g.Output,
		&g.EntryCount,
		&g.Errors,
		&g.StartedAt,
		&g.CompletedAt,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	return g, err
}
