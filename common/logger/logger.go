package logger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/llmify/llmstxt-service/common/db"
	"github.com/llmify/llmstxt-service/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogEvent is one pipeline event bound for the pipeline_logs table.
type LogEvent struct {
	GenerationID int64
	EventType    string
	Message      string
	Details      interface{}
}

// PipelineLogHook implements zerolog.Hook and mirrors warn-or-worse log
// lines into the database so operators can audit a generation after the
// queue entry is gone.
type PipelineLogHook struct {
	db *db.DB
}

// NewPipelineLogHook creates a new log hook
func NewPipelineLogHook(db *db.DB) *PipelineLogHook {
	return &PipelineLogHook{db: db}
}

// Run implements zerolog.Hook.Run
func (h *PipelineLogHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level < zerolog.WarnLevel {
		return
	}

	event := LogEvent{
		Message:   msg,
		EventType: level.String(),
	}

	// Async so logging never blocks a pipeline stage.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.persist(ctx, event); err != nil {
			log.Error().Err(err).Msg("Failed to persist log via hook")
		}
	}()
}

func (h *PipelineLogHook) persist(ctx context.Context, event LogEvent) error {
	var detailsJSON json.RawMessage
	if event.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(event.Details)
		if err != nil {
			detailsJSON = json.RawMessage("{}")
		}
	} else {
		detailsJSON = json.RawMessage("{}")
	}

	generationID := pgtype.Int8{Int64: event.GenerationID, Valid: event.GenerationID != 0}
	message := pgtype.Text{String: event.Message, Valid: event.Message != ""}

	return h.db.Queries.CreatePipelineLog(ctx, repository.CreatePipelineLogParams{
		ID:           uuid.New().String(),
		GenerationID: generationID,
		EventType:    event.EventType,
		Message:      message,
		Details:      detailsJSON,
		CreatedAt:    time.Now(),
	})
}

// InitializeLogging attaches the database hook to the global logger
func InitializeLogging(db *db.DB) {
	hook := NewPipelineLogHook(db)
	log.Logger = log.Logger.Hook(hook)
}

// LogService records structured pipeline events explicitly, independent of
// log level.
type LogService struct {
	hook *PipelineLogHook
}

// NewLogService creates a new log service
func NewLogService(db *db.DB) *LogService {
	return &LogService{hook: NewPipelineLogHook(db)}
}

// Log persists one pipeline event and echoes it to the console
func (s *LogService) Log(ctx context.Context, event LogEvent) error {
	if err := s.hook.persist(ctx, event); err != nil {
		log.Error().Err(err).Msg("Failed to insert pipeline log")
		return err
	}

	log.Info().
		Int64("generationID", event.GenerationID).
		Str("eventType", event.EventType).
		Str("message", event.Message).
		Interface("details", event.Details).
		Msg("Pipeline event")

	return nil
}

// GenerationQueued logs admission of a generation job
func (s *LogService) GenerationQueued(ctx context.Context, generationID int64, provider string) error {
	return s.Log(ctx, LogEvent{
		GenerationID: generationID,
		EventType:    "generation.queued",
		Message:      "Generation job admitted to queue",
		Details:      map[string]interface{}{"provider": provider},
	})
}

// BatchCompleted logs one processed batch with its progress counters
func (s *LogService) BatchCompleted(ctx context.Context, generationID int64, processed, total int) error {
	return s.Log(ctx, LogEvent{
		GenerationID: generationID,
		EventType:    "generation.batch_completed",
		Message:      "Batch processed",
		Details: map[string]interface{}{
			"processed_units": processed,
			"total_units":     total,
		},
	})
}

// GenerationCompleted logs a finished generation
func (s *LogService) GenerationCompleted(ctx context.Context, generationID int64, entryCount int) error {
	return s.Log(ctx, LogEvent{
		GenerationID: generationID,
		EventType:    "generation.completed",
		Message:      "Generation completed",
		Details:      map[string]interface{}{"entry_count": entryCount},
	})
}

// GenerationFailed logs a failed generation with its aggregated reason
func (s *LogService) GenerationFailed(ctx context.Context, generationID int64, reason string) error {
	return s.Log(ctx, LogEvent{
		GenerationID: generationID,
		EventType:    "generation.failed",
		Message:      reason,
	})
}
