package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const createPipelineLog = `
INSERT INTO pipeline_logs (id, generation_id, event_type, message, details, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`

type CreatePipelineLogParams struct {
	ID           string
	GenerationID pgtype.Int8
	EventType    string
	Message      pgtype.Text
	Details      []byte
	CreatedAt    time.Time
}

func (q *Queries) CreatePipelineLog(ctx context.Context, arg CreatePipelineLogParams) error {
	_, err := q.db.Exec(ctx, createPipelineLog,
		arg.ID, arg.GenerationID, arg.EventType, arg.Message, arg.Details, arg.CreatedAt)
	return err
}
