package trips

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/millstone-erp/millstone-erp/internal/platform/httpx"
	"github.com/millstone-erp/millstone-erp/internal/shared"
)

// Handler manages dispatch trip endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers trip routes. Role gating happens one level up.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listTrips)
	r.Get("/{id}", h.showTrip)
	r.Post("/", h.createTrip)
	r.Post("/{id}/orders", h.addOrder)
	r.Post("/{id}/start", h.startTrip)
	r.Post("/{id}/complete", h.completeTrip)
	r.Post("/{id}/cancel", h.cancelTrip)
	r.Post("/{id}/notes", h.updateNotes)
	r.Post("/{id}/orders/{orderID}/delivery", h.updateDelivery)
}

// listTrips returns trips matching the optional filters.
func (h *Handler) listTrips(w http.ResponseWriter, r *http.Request) {
	var filter ListFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := Status(raw)
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("date_from"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateFrom = &t
		}
	}
	if raw := r.URL.Query().Get("date_to"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateTo = &t
		}
	}

	trips, err := h.service.ListTrips(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list trips", "error", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"trips": trips})
}

// showTrip returns one trip with its ordered stops.
func (h *Handler) showTrip(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid trip ID")
		return
	}

	trip, err := h.service.GetTrip(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrTripNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "trip not found")
			return
		}
		h.logger.Error("failed to get trip", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	assignments, err := h.service.ListAssignmentDetails(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list trip assignments", "error", err, "id", id)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"trip": trip, "assignments": assignments})
}

// createTrip handles dispatch form submission.
func (h *Handler) createTrip(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	in := CreateTripInput{
		ScheduledTime: r.FormValue("scheduled_time"),
		Notes:         r.FormValue("notes"),
	}
	for _, raw := range r.Form["order_ids[]"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.redirectWithFlash(w, r, "/logistics/trips", "error", "Invalid order selection")
			return
		}
		in.OrderIDs = append(in.OrderIDs, id)
	}
	var err error
	if in.VehicleID, err = strconv.ParseInt(r.FormValue("vehicle_id"), 10, 64); err != nil {
		h.redirectWithFlash(w, r, "/logistics/trips", "error", "Invalid vehicle")
		return
	}
	if in.DriverID, err = strconv.ParseInt(r.FormValue("driver_id"), 10, 64); err != nil {
		h.redirectWithFlash(w, r, "/logistics/trips", "error", "Invalid driver")
		return
	}
	if in.TripDate, err = time.Parse("2006-01-02", r.FormValue("trip_date")); err != nil {
		h.redirectWithFlash(w, r, "/logistics/trips", "error", "Invalid trip date")
		return
	}

	tripID, err := h.service.CreateTrip(r.Context(), in, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.flashFailure(w, r, "/logistics/trips", "create trip", err)
		return
	}
	h.redirectWithFlash(w, r, tripPath(tripID), "success", "Trip created successfully")
}

// addOrder assigns one more order to an existing trip.
func (h *Handler) addOrder(w http.ResponseWriter, r *http.Request) {
	tripID, err := parseID(r, "id")
	if err != nil {
		http.Error(w, "Invalid trip ID", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	orderID, err := strconv.ParseInt(r.FormValue("order_id"), 10, 64)
	if err != nil {
		h.redirectWithFlash(w, r, tripPath(tripID), "error", "Invalid order selection")
		return
	}

	if err := h.service.AddOrderToTrip(r.Context(), tripID, orderID, shared.ActorFromContext(r.Context())); err != nil {
		h.flashFailure(w, r, tripPath(tripID), "add order to trip", err)
		return
	}
	h.redirectWithFlash(w, r, tripPath(tripID), "success", "Order added to trip")
}

func (h *Handler) startTrip(w http.ResponseWriter, r *http.Request) {
	tripID, err := parseID(r, "id")
	if err != nil {
		http.Error(w, "Invalid trip ID", http.StatusBadRequest)
		return
	}
	if err := h.service.Start(r.Context(), tripID, shared.ActorFromContext(r.Context())); err != nil {
		h.flashFailure(w, r, tripPath(tripID), "start trip", err)
		return
	}
	h.redirectWithFlash(w, r, tripPath(tripID), "success", "Trip started")
}

func (h *Handler) completeTrip(w http.ResponseWriter, r *http.Request) {
	tripID, err := parseID(r, "id")
	if err != nil {
		http.Error(w, "Invalid trip ID", http.StatusBadRequest)
		return
	}
	if err := h.service.Complete(r.Context(), tripID, shared.ActorFromContext(r.Context())); err != nil {
		h.flashFailure(w, r, tripPath(tripID), "complete trip", err)
		return
	}
	h.redirectWithFlash(w, r, tripPath(tripID), "success", "Trip completed")
}

func (h *Handler) cancelTrip(w http.ResponseWriter, r *http.Request) {
	tripID, err := parseID(r, "id")
	if err != nil {
		http.Error(w, "Invalid trip ID", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	actor := shared.ActorFromContext(r.Context())
	if err := h.service.Cancel(r.Context(), tripID, r.FormValue("reason"), actor); err != nil {
		h.flashFailure(w, r, tripPath(tripID), "cancel trip", err)
		return
	}
	h.redirectWithFlash(w, r, tripPath(tripID), "success", "Trip cancelled, orders returned to ready to ship")
}

func (h *Handler) updateNotes(w http.ResponseWriter, r *http.Request) {
	tripID, err := parseID(r, "id")
	if err != nil {
		http.Error(w, "Invalid trip ID", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	actor := shared.ActorFromContext(r.Context())
	if err := h.service.UpdateNotes(r.Context(), tripID, r.FormValue("notes"), actor); err != nil {
		h.flashFailure(w, r, tripPath(tripID), "update trip notes", err)
		return
	}
	h.redirectWithFlash(w, r, tripPath(tripID), "success", "Notes updated")
}

// updateDelivery records per-order delivery progress.
func (h *Handler) updateDelivery(w http.ResponseWriter, r *http.Request) {
	tripID, err := parseID(r, "id")
	if err != nil {
		http.Error(w, "Invalid trip ID", http.StatusBadRequest)
		return
	}
	orderID, err := parseID(r, "orderID")
	if err != nil {
		http.Error(w, "Invalid order ID", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	var notes *string
	if v := r.FormValue("notes"); v != "" {
		notes = &v
	}
	status := DeliveryStatus(r.FormValue("status"))

	actor := shared.ActorFromContext(r.Context())
	if err := h.service.UpdateOrderDelivery(r.Context(), tripID, orderID, status, notes, actor); err != nil {
		h.flashFailure(w, r, tripPath(tripID), "update delivery", err)
		return
	}
	h.redirectWithFlash(w, r, tripPath(tripID), "success", "Delivery status updated")
}

// flashFailure flashes domain failures verbatim and hides everything else
// behind a generic message.
func (h *Handler) flashFailure(w http.ResponseWriter, r *http.Request, url, action string, err error) {
	h.logger.Error("failed to "+action, "error", err)
	message := "Something went wrong, please try again"
	if isDomainError(err) {
		message = err.Error()
	}
	h.redirectWithFlash(w, r, url, "error", message)
}

// isDomainError reports whether the failure message is safe to show users.
func isDomainError(err error) bool {
	var pending PendingDeliveriesError
	if errors.As(err, &pending) {
		return true
	}
	for _, known := range []error{
		ErrTripNotFound, ErrOrderNotFound, ErrVehicleNotFound, ErrDriverNotFound,
		ErrAssignmentNotFound, ErrCapacityExceeded, ErrInvalidTransition,
		ErrOrderNotReady, ErrOrderAlreadyAssigned, ErrVehicleInactive,
		ErrDriverInactive, ErrCancelReasonRequired, shared.ErrValidation,
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

func tripPath(id int64) string {
	return fmt.Sprintf("/logistics/trips/%d", id)
}

func parseID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
