package consolidation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/millstone-erp/millstone-erp/internal/logistics/trips"
	"github.com/millstone-erp/millstone-erp/internal/platform/httpx"
	"github.com/millstone-erp/millstone-erp/internal/shared"
	"github.com/millstone-erp/millstone-erp/jobs"
)

const suggestionsPath = "/logistics/consolidation/suggestions"

// ScanQueue enqueues a background pairing scan over the ready backlog.
type ScanQueue interface {
	EnqueueConsolidationScan(ctx context.Context, payload jobs.ConsolidationScanPayload) (*asynq.TaskInfo, error)
}

// Handler manages consolidation suggestion endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	queue   ScanQueue
}

// NewHandler builds Handler instance. queue may be nil; the scan endpoint
// then responds 503.
func NewHandler(logger *slog.Logger, service *Service, queue ScanQueue) *Handler {
	return &Handler{logger: logger, service: service, queue: queue}
}

// MountRoutes registers suggestion routes. Role gating happens one level up.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/suggestions", h.listSuggestions)
	r.Post("/suggestions/{id}/accept", h.acceptSuggestion)
	r.Post("/suggestions/{id}/reject", h.rejectSuggestion)
	r.Post("/scan", h.enqueueScan)
}

// listSuggestions returns pending suggestions with order figures.
func (h *Handler) listSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.service.ListPending(r.Context())
	if err != nil {
		h.logger.Error("failed to list consolidation suggestions", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

// acceptSuggestion creates the consolidated trip.
func (h *Handler) acceptSuggestion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid suggestion ID", http.StatusBadRequest)
		return
	}

	tripID, err := h.service.Accept(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.flashFailure(w, r, "accept suggestion", err)
		return
	}
	h.redirectWithFlash(w, r, fmt.Sprintf("/logistics/trips/%d", tripID), "success", "Consolidated trip created")
}

// rejectSuggestion dismisses a pending suggestion.
func (h *Handler) rejectSuggestion(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid suggestion ID", http.StatusBadRequest)
		return
	}

	if err := h.service.Reject(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		h.flashFailure(w, r, "reject suggestion", err)
		return
	}
	h.redirectWithFlash(w, r, suggestionsPath, "success", "Suggestion rejected")
}

// enqueueScan queues a scan of the whole ready-to-ship backlog so new
// suggestions appear without waiting for the cron.
func (h *Handler) enqueueScan(w http.ResponseWriter, r *http.Request) {
	if h.queue == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	if _, err := h.queue.EnqueueConsolidationScan(r.Context(), jobs.ConsolidationScanPayload{}); err != nil {
		h.flashFailure(w, r, "queue consolidation scan", err)
		return
	}
	h.redirectWithFlash(w, r, suggestionsPath, "success", "Consolidation scan queued")
}

func (h *Handler) flashFailure(w http.ResponseWriter, r *http.Request, action string, err error) {
	h.logger.Error("failed to "+action, "error", err)
	message := "Something went wrong, please try again"
	if isDomainError(err) {
		message = err.Error()
	}
	h.redirectWithFlash(w, r, suggestionsPath, "error", message)
}

// isDomainError reports whether the failure message is safe to show users.
func isDomainError(err error) bool {
	var pending trips.PendingDeliveriesError
	if errors.As(err, &pending) {
		return true
	}
	for _, known := range []error{
		ErrSuggestionNotFound, ErrSuggestionResolved, ErrNoVehicleAvailable,
		ErrNoDriverAvailable, trips.ErrOrderNotFound, trips.ErrOrderNotReady,
		trips.ErrOrderAlreadyAssigned, trips.ErrCapacityExceeded,
		trips.ErrVehicleInactive, trips.ErrDriverInactive, shared.ErrValidation,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, url, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(kind, message)
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}
