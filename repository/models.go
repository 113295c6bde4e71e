package repository

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Generation is one llms.txt generation run for a hostname.
type Generation struct {
	ID             int64
	RequestID      int64
	Hostname       string
	Provider       string
	Status         string
	TotalUnits     int32
	ProcessedUnits int32
	Output         pgtype.Text
	EntryCount     pgtype.Int4
	Errors         []string
	StartedAt      pgtype.Timestamptz
	CompletedAt    pgtype.Timestamptz
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Order is the billing-side subject tied to a generation.
type Order struct {
	ID           int64
	GenerationID pgtype.Int8
	Hostname     string
	Provider     string
	AmountCents  int64
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ContentEntry is a content-addressed row of extracted page text.
type ContentEntry struct {
	ContentHash    string
	RawContent     string
	RefCount       int32
	FirstSeenAt    time.Time
	LastAccessedAt time.Time
}

// PipelineLog is a persisted pipeline event.
type PipelineLog struct {
	ID           string
	GenerationID pgtype.Int8
	EventType    string
	Message      pgtype.Text
	Details      []byte
	CreatedAt    time.Time
}
