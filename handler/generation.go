package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/llmify/llmstxt-service/common/db"
	"github.com/llmify/llmstxt-service/common/llm"
	"github.com/llmify/llmstxt-service/common/logger"
	"github.com/llmify/llmstxt-service/common/queue"
	"github.com/llmify/llmstxt-service/common/status"
	"github.com/llmify/llmstxt-service/common/urlsource"
	"github.com/llmify/llmstxt-service/common/utils"
	"github.com/llmify/llmstxt-service/repository"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

type GenerationHandler struct {
	db         *db.DB
	registry   *queue.Registry
	logService *logger.LogService
	router     *chi.Mux
}

type createGenerationRequest struct {
	RequestID int64  `json:"request_id"`
	Hostname  string `json:"hostname"`
	Provider  string `json:"provider"`
}

type generationResponse struct {
	ID        int64              `json:"id"`
	JobID     string             `json:"job_id"`
	Hostname  string             `json:"hostname"`
	Provider  string             `json:"provider"`
	Status    string             `json:"status"`
	Position  *int64             `json:"queue_position,omitempty"`
	Progress  generationProgress `json:"progress"`
	Errors    []string           `json:"errors,omitempty"`
	CreatedAt string             `json:"created_at"`
}

type generationProgress struct {
	Processed int32 `json:"processed"`
	Total     int32 `json:"total"`
}

func NewGenerationHandler(db *db.DB, registry *queue.Registry) *GenerationHandler {
	h := &GenerationHandler{
		db:         db,
		registry:   registry,
		logService: logger.NewLogService(db),
	}

	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Get("/{id}/output", h.handleOutput)
	r.Post("/{id}/cancel", h.handleCancel)

	h.router = r
	return h
}

func (h *GenerationHandler) Router() *chi.Mux {
	return h.router
}

func (h *GenerationHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hostname := urlsource.NormalizeHostname(req.Hostname)
	if hostname == "" {
		utils.WriteError(w, http.StatusBadRequest, "hostname is required")
		return
	}
	if !llm.IsSupported(req.Provider) {
		utils.WriteError(w, http.StatusBadRequest, "unsupported provider: "+req.Provider)
		return
	}
	q, ok := h.registry.QueueForProvider(req.Provider)
	if !ok {
		utils.WriteError(w, http.StatusServiceUnavailable, "no queue configured for provider "+req.Provider)
		return
	}

	gen, err := h.db.Queries.CreateGeneration(ctx, repository.CreateGenerationParams{
		RequestID: req.RequestID,
		Hostname:  hostname,
		Provider:  req.Provider,
		Status:    string(status.GenerationCreated),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create generation")
		utils.WriteError(w, http.StatusInternalServerError, "failed to create generation")
		return
	}

	jobID := queue.GenerationJobID(gen.ID)
	admitted, err := q.Enqueue(ctx, queue.JobMessage{
		JobID:     jobID,
		SubjectID: gen.ID,
		RequestID: req.RequestID,
		Hostname:  hostname,
		Provider:  req.Provider,
	})
	if err != nil {
		log.Error().Err(err).Int64("generationID", gen.ID).Msg("Failed to enqueue generation")
		utils.WriteError(w, http.StatusInternalServerError, "failed to enqueue generation")
		return
	}

	if err := status.ValidateGenerationTransition(status.GenerationCreated, status.GenerationQueued); err != nil {
		utils.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := h.db.Queries.UpdateGenerationStatus(ctx, repository.UpdateGenerationStatusParams{
		ID:     gen.ID,
		Status: string(status.GenerationQueued),
	}); err != nil {
		log.Error().Err(err).Int64("generationID", gen.ID).Msg("Failed to mark generation queued")
		utils.WriteError(w, http.StatusInternalServerError, "failed to update generation")
		return
	}
	gen.Status = string(status.GenerationQueued)

	if admitted {
		if err := h.logService.GenerationQueued(ctx, gen.ID, req.Provider); err != nil {
			log.Warn().Err(err).Msg("Failed to record pipeline log")
		}
	}

	utils.WriteJSON(w, http.StatusAccepted, h.toResponse(gen, nil))
}

func (h *GenerationHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	gen, ok := h.loadGeneration(w, r)
	if !ok {
		return
	}

	var position *int64
	if gen.Status == string(status.GenerationQueued) {
		if q, ok := h.registry.QueueForProvider(gen.Provider); ok {
			if pos, waiting, err := q.Position(ctx, queue.GenerationJobID(gen.ID)); err == nil && waiting {
				position = &pos
			}
		}
	}

	utils.WriteJSON(w, http.StatusOK, h.toResponse(gen, position))
}

func (h *GenerationHandler) handleOutput(w http.ResponseWriter, r *http.Request) {
	gen, ok := h.loadGeneration(w, r)
	if !ok {
		return
	}

	if gen.Status != string(status.GenerationCompleted) {
		utils.WriteError(w, http.StatusConflict, "generation is "+gen.Status+", output available once COMPLETED")
		return
	}
	if !gen.Output.Valid {
		utils.WriteError(w, http.StatusNotFound, "generation has no output")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(gen.Output.String))
}

func (h *GenerationHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	gen, ok := h.loadGeneration(w, r)
	if !ok {
		return
	}

	current := status.GenerationStatus(gen.Status)
	if err := status.ValidateGenerationTransition(current, status.GenerationCancelled); err != nil {
		utils.WriteError(w, http.StatusConflict, err.Error())
		return
	}

	// Only waiting jobs are removable; a PROCESSING generation finishes its
	// current run.
	if current == status.GenerationQueued {
		if q, ok := h.registry.QueueForProvider(gen.Provider); ok {
			err := q.Remove(ctx, queue.GenerationJobID(gen.ID), []string{queue.StateWaiting})
			if err != nil && !errors.Is(err, queue.ErrJobNotFound) {
				utils.WriteError(w, http.StatusConflict, err.Error())
				return
			}
		}
	}

	if _, err := h.db.Queries.UpdateGenerationStatus(ctx, repository.UpdateGenerationStatusParams{
		ID:     gen.ID,
		Status: string(status.GenerationCancelled),
	}); err != nil {
		log.Error().Err(err).Int64("generationID", gen.ID).Msg("Failed to cancel generation")
		utils.WriteError(w, http.StatusInternalServerError, "failed to cancel generation")
		return
	}
	gen.Status = string(status.GenerationCancelled)

	utils.WriteJSON(w, http.StatusOK, h.toResponse(gen, nil))
}

func (h *GenerationHandler) loadGeneration(w http.ResponseWriter, r *http.Request) (repository.Generation, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		utils.WriteError(w, http.StatusBadRequest, "invalid generation id")
		return repository.Generation{}, false
	}

	gen, err := h.db.Queries.GetGeneration(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			utils.WriteError(w, http.StatusNotFound, "generation not found")
		} else {
			log.Error().Err(err).Int64("generationID", id).Msg("Failed to load generation")
			utils.WriteError(w, http.StatusInternalServerError, "failed to load generation")
		}
		return repository.Generation{}, false
	}
	return gen, true
}

func (h *GenerationHandler) toResponse(gen repository.Generation, position *int64) generationResponse {
	return generationResponse{
		ID:       gen.ID,
		JobID:    queue.GenerationJobID(gen.ID),
		Hostname: gen.Hostname,
		Provider: gen.Provider,
		Status:   gen.Status,
		Position: position,
		Progress: generationProgress{
			Processed: gen.ProcessedUnits,
			Total:     gen.TotalUnits,
		},
		Errors:    gen.Errors,
		CreatedAt: gen.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
