package handler

import (
	"context"
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

type OrderHandler struct {
	db         *db.DB
	registry   *queue.Registry
	logService *logger.LogService
	router     *chi.Mux
}

type createOrderRequest struct {
	Hostname    string `json:"hostname"`
	Provider    string `json:"provider"`
	AmountCents int64  `json:"amount_cents"`
}

// orderEventRequest is what the payment provider's webhook relay posts. The
// gateway-specific payload is verified upstream; by the time it reaches us it
// is a plain event name.
type orderEventRequest struct {
	Event string `json:"event"`
}

type orderResponse struct {
	ID           int64  `json:"id"`
	GenerationID *int64 `json:"generation_id,omitempty"`
	Hostname     string `json:"hostname"`
	Provider     string `json:"provider"`
	AmountCents  int64  `json:"amount_cents"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

func NewOrderHandler(db *db.DB, registry *queue.Registry) *OrderHandler {
	h := &OrderHandler{
		db:         db,
		registry:   registry,
		logService: logger.NewLogService(db),
	}

	r := chi.NewRouter()
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/events", h.handleEvent)

	h.router = r
	return h
}

func (h *OrderHandler) Router() *chi.Mux {
	return h.router
}

func (h *OrderHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createOrderRequest
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
	if req.AmountCents < 0 {
		utils.WriteError(w, http.StatusBadRequest, "amount_cents must not be negative")
		return
	}

	order, err := h.db.Queries.CreateOrder(ctx, repository.CreateOrderParams{
		Hostname:    hostname,
		Provider:    req.Provider,
		AmountCents: req.AmountCents,
		Status:      string(status.OrderCreated),
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to create order")
		utils.WriteError(w, http.StatusInternalServerError, "failed to create order")
		return
	}

	// Free orders skip payment and go straight onto the queue.
	if req.AmountCents == 0 {
		if err := h.advance(ctx, &order, status.OrderQueued); err != nil {
			utils.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := h.dispatch(ctx, &order); err != nil {
			log.Error().Err(err).Int64("orderID", order.ID).Msg("Failed to dispatch order")
			utils.WriteError(w, http.StatusInternalServerError, "failed to dispatch order")
			return
		}
	} else {
		if err := h.advance(ctx, &order, status.OrderPendingPayment); err != nil {
			utils.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	utils.WriteJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	utils.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

// handleEvent applies one payment-lifecycle event to the order. Events map
// onto status transitions; an event that is not legal from the current
// status is rejected with 409, which also makes replayed webhooks harmless.
func (h *OrderHandler) handleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	order, ok := h.loadOrder(w, r)
	if !ok {
		return
	}

	var req orderEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Event {
	case "paid":
		if err := h.advance(ctx, &order, status.OrderPaid); err != nil {
			utils.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		if err := h.advance(ctx, &order, status.OrderQueued); err != nil {
			utils.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := h.dispatch(ctx, &order); err != nil {
			log.Error().Err(err).Int64("orderID", order.ID).Msg("Failed to dispatch order")
			utils.WriteError(w, http.StatusInternalServerError, "failed to dispatch order")
			return
		}
	case "failed":
		if err := h.advance(ctx, &order, status.OrderPaymentFailed); err != nil {
			utils.WriteError(w, http.StatusConflict, err.Error())
			return
		}
	case "cancelled":
		if err := h.advance(ctx, &order, status.OrderCancelled); err != nil {
			utils.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		if order.GenerationID.Valid {
			h.cancelGeneration(ctx, order.GenerationID.Int64, order.Provider)
		}
	default:
		utils.WriteError(w, http.StatusBadRequest, "unknown event: "+req.Event)
		return
	}

	utils.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

// advance validates and persists one order status transition
func (h *OrderHandler) advance(ctx context.Context, order *repository.Order, to status.OrderStatus) error {
	if err := status.ValidateOrderTransition(status.OrderStatus(order.Status), to); err != nil {
		return err
	}
	if _, err := h.db.Queries.UpdateOrderStatus(ctx, repository.UpdateOrderStatusParams{
		ID:     order.ID,
		Status: string(to),
	}); err != nil {
		return err
	}
	order.Status = string(to)
	return nil
}

// dispatch creates the generation backing a queued order and enqueues its job
func (h *OrderHandler) dispatch(ctx context.Context, order *repository.Order) error {
	q, ok := h.registry.QueueForProvider(order.Provider)
	if !ok {
		return errors.New("no queue configured for provider " + order.Provider)
	}

	gen, err := h.db.Queries.CreateGeneration(ctx, repository.CreateGenerationParams{
		RequestID: order.ID,
		Hostname:  order.Hostname,
		Provider:  order.Provider,
		Status:    string(status.GenerationCreated),
	})
	if err != nil {
		return err
	}
	if err := h.db.Queries.LinkOrderGeneration(ctx, repository.LinkOrderGenerationParams{
		ID:           order.ID,
		GenerationID: gen.ID,
	}); err != nil {
		return err
	}
	order.GenerationID.Int64 = gen.ID
	order.GenerationID.Valid = true

	admitted, err := q.Enqueue(ctx, queue.JobMessage{
		JobID:     queue.GenerationJobID(gen.ID),
		SubjectID: gen.ID,
		RequestID: order.ID,
		Hostname:  order.Hostname,
		Provider:  order.Provider,
	})
	if err != nil {
		return err
	}
	if err := status.ValidateGenerationTransition(status.GenerationCreated, status.GenerationQueued); err != nil {
		return err
	}
	if _, err := h.db.Queries.UpdateGenerationStatus(ctx, repository.UpdateGenerationStatusParams{
		ID:     gen.ID,
		Status: string(status.GenerationQueued),
	}); err != nil {
		return err
	}

	if admitted {
		if err := h.logService.GenerationQueued(ctx, gen.ID, order.Provider); err != nil {
			log.Warn().Err(err).Msg("Failed to record pipeline log")
		}
	}
	return nil
}

// cancelGeneration is best effort; a generation already past QUEUED keeps
// running and the order status alone records the cancellation.
func (h *OrderHandler) cancelGeneration(ctx context.Context, generationID int64, provider string) {
	gen, err := h.db.Queries.GetGeneration(ctx, generationID)
	if err != nil {
		log.Warn().Err(err).Int64("generationID", generationID).Msg("Failed to load generation for cancel")
		return
	}
	current := status.GenerationStatus(gen.Status)
	if err := status.ValidateGenerationTransition(current, status.GenerationCancelled); err != nil {
		return
	}
	if q, ok := h.registry.QueueForProvider(provider); ok {
		if err := q.Remove(ctx, queue.GenerationJobID(generationID), []string{queue.StateWaiting}); err != nil && !errors.Is(err, queue.ErrJobNotFound) {
			log.Warn().Err(err).Int64("generationID", generationID).Msg("Failed to remove queued job")
			return
		}
	}
	if _, err := h.db.Queries.UpdateGenerationStatus(ctx, repository.UpdateGenerationStatusParams{
		ID:     generationID,
		Status: string(status.GenerationCancelled),
	}); err != nil {
		log.Warn().Err(err).Int64("generationID", generationID).Msg("Failed to cancel generation")
	}
}

func (h *OrderHandler) loadOrder(w http.ResponseWriter, r *http.Request) (repository.Order, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		utils.WriteError(w, http.StatusBadRequest, "invalid order id")
		return repository.Order{}, false
	}

	order, err := h.db.Queries.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			utils.WriteError(w, http.StatusNotFound, "order not found")
		} else {
			log.Error().Err(err).Int64("orderID", id).Msg("Failed to load order")
			utils.WriteError(w, http.StatusInternalServerError, "failed to load order")
		}
		return repository.Order{}, false
	}
	return order, true
}

func toOrderResponse(order repository.Order) orderResponse {
	resp := orderResponse{
		ID:          order.ID,
		Hostname:    order.Hostname,
		Provider:    order.Provider,
		AmountCents: order.AmountCents,
		Status:      order.Status,
		CreatedAt:   order.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if order.GenerationID.Valid {
		id := order.GenerationID.Int64
		resp.GenerationID = &id
	}
	return resp
}
