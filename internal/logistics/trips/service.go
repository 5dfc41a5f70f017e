package trips

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/millstone-erp/millstone-erp/internal/accounting/posting"
	"github.com/millstone-erp/millstone-erp/internal/orders"
	"github.com/millstone-erp/millstone-erp/internal/shared"
)

var validate = validator.New()

// InvoicePoster posts the financial effects of one shipped order inside the
// engine's transaction.
type InvoicePoster interface {
	PostInvoice(ctx context.Context, tx posting.TxRepository, in posting.InvoiceInput) (posting.Result, error)
}

// WeightRecalculator refreshes a stored order weight before dispatch.
// Failures are tolerated: the engine logs them and proceeds with the weight
// currently on record.
type WeightRecalculator interface {
	Recalculate(ctx context.Context, orderID int64) error
}

// CreateTripInput describes a new trip and its initial order set.
type CreateTripInput struct {
	OrderIDs      []int64   `validate:"required,min=1,dive,gt=0"`
	VehicleID     int64     `validate:"required,gt=0"`
	DriverID      int64     `validate:"required,gt=0"`
	TripDate      time.Time `validate:"required"`
	ScheduledTime string    `validate:"omitempty,len=5"`
	Notes         string
	// WorkflowComment replaces the default per-order audit comment; the
	// consolidation resolver uses it to carry the savings note.
	WorkflowComment string
}

// Service is the order assignment engine and trip lifecycle state machine.
// Every mutating operation runs in one transaction: either all rows across
// trips, assignments, orders, shipping, accounting and driver state commit,
// or none do.
type Service struct {
	repo    Repository
	poster  InvoicePoster
	weights WeightRecalculator
	audit   shared.AuditPort
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs the trip service.
func NewService(repo Repository, poster InvoicePoster, weights WeightRecalculator, audit shared.AuditPort, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		poster:  poster,
		weights: weights,
		audit:   audit,
		logger:  logger,
		now:     time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateTrip dispatches one or more ready orders on a new trip.
func (s *Service) CreateTrip(ctx context.Context, in CreateTripInput, actor shared.Actor) (int64, error) {
	if err := validate.Struct(in); err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}

	s.refreshWeights(ctx, in.OrderIDs)

	var tripID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := s.CreateInTx(ctx, tx, in, actor)
		if err != nil {
			return err
		}
		tripID = id
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.recordAudit(ctx, actor, "trip.create", tripID, map[string]any{
		"orders":     in.OrderIDs,
		"vehicle_id": in.VehicleID,
		"driver_id":  in.DriverID,
	})
	return tripID, nil
}

// CreateInTx runs trip creation against an already-open transaction. The
// consolidation resolver calls this so suggestion resolution and trip
// creation share one commit.
func (s *Service) CreateInTx(ctx context.Context, tx TxRepository, in CreateTripInput, actor shared.Actor) (int64, error) {
	vehicle, err := tx.GetVehicle(ctx, in.VehicleID)
	if err != nil {
		return 0, err
	}
	if !vehicle.IsActive() {
		return 0, fmt.Errorf("%w: vehicle %s", ErrVehicleInactive, vehicle.PlateNumber)
	}

	driver, err := tx.GetDriverForUpdate(ctx, in.DriverID)
	if err != nil {
		return 0, err
	}
	if !driver.CanDrive() {
		return 0, fmt.Errorf("%w: driver %s", ErrDriverInactive, driver.Name)
	}

	loaded := make([]orders.CreditOrder, 0, len(in.OrderIDs))
	var totalWeight float64
	for _, orderID := range in.OrderIDs {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return 0, err
		}
		if order.Status != orders.StatusReadyToShip {
			return 0, fmt.Errorf("%w: order %s is %s", ErrOrderNotReady, order.OrderNumber, order.Status)
		}
		assigned, err := tx.IsOrderAssigned(ctx, orderID)
		if err != nil {
			return 0, err
		}
		if assigned {
			return 0, fmt.Errorf("%w: order %s", ErrOrderAlreadyAssigned, order.OrderNumber)
		}
		loaded = append(loaded, order)
		totalWeight += order.TotalWeightKg
	}

	// Fail before any write: no trip row exists if the load does not fit.
	if totalWeight > vehicle.CapacityKg {
		return 0, fmt.Errorf("%w: %.2f kg requested, vehicle holds %.2f kg", ErrCapacityExceeded, totalWeight, vehicle.CapacityKg)
	}

	trip := NewTrip(vehicle, driver.ID, in.TripDate, in.ScheduledTime, in.Notes, actor.ID)
	for _, order := range loaded {
		trip.AddOrderWeight(order.TotalWeightKg)
	}

	tripID, err := tx.InsertTrip(ctx, trip)
	if err != nil {
		return 0, fmt.Errorf("insert trip: %w", err)
	}

	for i, order := range loaded {
		if err := s.shipOrderInTx(ctx, tx, tripID, order, i+1, vehicle.ID, driver.ID, in.WorkflowComment, actor); err != nil {
			return 0, err
		}
	}

	if err := tx.SetDriverAvailability(ctx, driver.ID, false, &vehicle.ID); err != nil {
		return 0, fmt.Errorf("mark driver busy: %w", err)
	}

	return tripID, nil
}

// AddOrderToTrip assigns one more ready order to an existing trip.
func (s *Service) AddOrderToTrip(ctx context.Context, tripID, orderID int64, actor shared.Actor) error {
	s.refreshWeights(ctx, []int64{orderID})

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		trip, err := tx.GetTripForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if !trip.Status.AcceptsOrders() {
			return fmt.Errorf("%w: cannot add orders to a %s trip", ErrInvalidTransition, trip.Status)
		}

		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != orders.StatusReadyToShip {
			return fmt.Errorf("%w: order %s is %s", ErrOrderNotReady, order.OrderNumber, order.Status)
		}
		assigned, err := tx.IsOrderAssigned(ctx, orderID)
		if err != nil {
			return err
		}
		if assigned {
			return fmt.Errorf("%w: order %s", ErrOrderAlreadyAssigned, order.OrderNumber)
		}

		if !trip.CanFit(order.TotalWeightKg) {
			return fmt.Errorf("%w: order weighs %.2f kg, only %.2f kg free", ErrCapacityExceeded, order.TotalWeightKg, trip.RemainingCapacityKg)
		}

		existing, err := tx.ListAssignments(ctx, tripID)
		if err != nil {
			return err
		}

		if err := s.shipOrderInTx(ctx, tx, tripID, order, len(existing)+1, trip.VehicleID, trip.DriverID, "", actor); err != nil {
			return err
		}

		trip.AddOrderWeight(order.TotalWeightKg)
		// Adding to a single-order trip always consolidates it.
		trip.TripType = TypeConsolidated
		return tx.UpdateTripTotals(ctx, trip)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actor, "trip.add_order", tripID, map[string]any{"order_id": orderID})
	return nil
}

// shipOrderInTx inserts the assignment, flips the order to shipped, posts
// the invoice and upserts the shipping record for one order.
func (s *Service) shipOrderInTx(ctx context.Context, tx TxRepository, tripID int64, order orders.CreditOrder, sequence int, vehicleID, driverID int64, workflowComment string, actor shared.Actor) error {
	if err := tx.InsertAssignment(ctx, Assignment{
		TripID:             tripID,
		OrderID:            order.ID,
		SequenceNumber:     sequence,
		DestinationAddress: order.DeliveryAddress,
		DeliveryStatus:     DeliveryPending,
	}); err != nil {
		return fmt.Errorf("assign order %s: %w", order.OrderNumber, err)
	}

	if err := tx.SetOrderStatus(ctx, order.ID, orders.StatusShipped); err != nil {
		return fmt.Errorf("ship order %s: %w", order.OrderNumber, err)
	}

	comment := workflowComment
	if comment == "" {
		comment = fmt.Sprintf("Dispatched on trip #%d", tripID)
	}
	if _, err := s.poster.PostInvoice(ctx, tx.Posting(), posting.InvoiceInput{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		CustomerID:      order.CustomerID,
		BranchID:        order.BranchID,
		Amount:          order.TotalAmount,
		Date:            s.now(),
		ActorID:         actor.ID,
		WorkflowComment: comment,
	}); err != nil {
		return fmt.Errorf("post invoice for order %s: %w", order.OrderNumber, err)
	}

	if err := tx.UpsertShippingRecord(ctx, orders.ShippingRecord{
		OrderID:   order.ID,
		TripID:    tripID,
		VehicleID: vehicleID,
		DriverID:  driverID,
		ShippedAt: s.now(),
	}); err != nil {
		return fmt.Errorf("shipping record for order %s: %w", order.OrderNumber, err)
	}
	return nil
}

// Start moves a Scheduled trip to In Progress.
func (s *Service) Start(ctx context.Context, tripID int64, actor shared.Actor) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		trip, err := tx.GetTripForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if !trip.Status.CanStart() {
			return fmt.Errorf("%w: cannot start a %s trip", ErrInvalidTransition, trip.Status)
		}
		startedAt := s.now()
		return tx.SetTripStatus(ctx, tripID, StatusInProgress, &startedAt, nil)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "trip.start", tripID, nil)
	return nil
}

// Complete closes an In Progress trip once every order is delivered and
// frees the driver.
func (s *Service) Complete(ctx context.Context, tripID int64, actor shared.Actor) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		trip, err := tx.GetTripForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if !trip.Status.CanComplete() {
			return fmt.Errorf("%w: cannot complete a %s trip", ErrInvalidTransition, trip.Status)
		}
		pending, err := tx.CountUndelivered(ctx, tripID)
		if err != nil {
			return err
		}
		if pending > 0 {
			return PendingDeliveriesError{Count: pending}
		}
		endedAt := s.now()
		if err := tx.SetTripStatus(ctx, tripID, StatusCompleted, nil, &endedAt); err != nil {
			return err
		}
		return tx.SetDriverAvailability(ctx, trip.DriverID, true, nil)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "trip.complete", tripID, nil)
	return nil
}

// Cancel aborts a Scheduled or In Progress trip: every assignment row is
// deleted, linked orders revert to ready_to_ship and the driver is freed.
// Assignment history is not preserved; reporting relies on audit_logs.
func (s *Service) Cancel(ctx context.Context, tripID int64, reason string, actor shared.Actor) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrCancelReasonRequired
	}

	var reverted []int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		trip, err := tx.GetTripForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if !trip.Status.CanCancel() {
			return fmt.Errorf("%w: cannot cancel a %s trip", ErrInvalidTransition, trip.Status)
		}

		assignments, err := tx.ListAssignments(ctx, tripID)
		if err != nil {
			return err
		}
		if err := tx.DeleteAssignments(ctx, tripID); err != nil {
			return err
		}
		if err := tx.DeleteShippingRecords(ctx, tripID); err != nil {
			return err
		}
		for _, assignment := range assignments {
			if err := tx.SetOrderStatus(ctx, assignment.OrderID, orders.StatusReadyToShip); err != nil {
				return err
			}
			reverted = append(reverted, assignment.OrderID)
		}

		notes := trip.Notes
		if notes != "" {
			notes += "\n"
		}
		notes += "Cancelled: " + reason
		if err := tx.SetTripNotes(ctx, tripID, notes); err != nil {
			return err
		}
		if err := tx.SetTripStatus(ctx, tripID, StatusCancelled, nil, nil); err != nil {
			return err
		}
		return tx.SetDriverAvailability(ctx, trip.DriverID, true, nil)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actor, "trip.cancel", tripID, map[string]any{
		"reason":          reason,
		"reverted_orders": reverted,
	})
	return nil
}

// UpdateOrderDelivery records per-order delivery progress on an In Progress
// trip. Marking an order delivered propagates to the order row, its
// shipping record and its workflow trail.
func (s *Service) UpdateOrderDelivery(ctx context.Context, tripID, orderID int64, status DeliveryStatus, notes *string, actor shared.Actor) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: unknown delivery status %q", shared.ErrValidation, status)
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		trip, err := tx.GetTripForUpdate(ctx, tripID)
		if err != nil {
			return err
		}
		if trip.Status != StatusInProgress {
			return fmt.Errorf("%w: deliveries can only be updated on an In Progress trip", ErrInvalidTransition)
		}
		if _, err := tx.GetAssignment(ctx, tripID, orderID); err != nil {
			return err
		}

		var arrival *time.Time
		if status == DeliveryDelivered {
			at := s.now()
			arrival = &at
		}
		if err := tx.SetAssignmentDelivery(ctx, tripID, orderID, status, arrival, notes); err != nil {
			return err
		}

		if status != DeliveryDelivered {
			return nil
		}
		if err := tx.SetOrderStatus(ctx, orderID, orders.StatusDelivered); err != nil {
			return err
		}
		if err := tx.MarkShippingDelivered(ctx, orderID, *arrival, notes); err != nil {
			return err
		}
		comment := "Delivered"
		if notes != nil && *notes != "" {
			comment = *notes
		}
		return tx.Posting().InsertWorkflowEvent(ctx, orders.WorkflowEvent{
			OrderID:     orderID,
			FromStatus:  orders.StatusShipped,
			ToStatus:    orders.StatusDelivered,
			PerformedBy: actor.ID,
			Comment:     comment,
			CreatedAt:   s.now(),
		})
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actor, "trip.update_delivery", tripID, map[string]any{
		"order_id": orderID,
		"status":   string(status),
	})
	return nil
}

// UpdateNotes replaces the trip's free-text notes.
func (s *Service) UpdateNotes(ctx context.Context, tripID int64, notes string, actor shared.Actor) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetTripForUpdate(ctx, tripID); err != nil {
			return err
		}
		return tx.SetTripNotes(ctx, tripID, notes)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "trip.update_notes", tripID, nil)
	return nil
}

// GetTrip returns one trip.
func (s *Service) GetTrip(ctx context.Context, tripID int64) (Trip, error) {
	return s.repo.GetTrip(ctx, tripID)
}

// ListTrips returns trips matching the filter, newest first.
func (s *Service) ListTrips(ctx context.Context, filter ListFilter) ([]TripSummary, error) {
	return s.repo.ListTrips(ctx, filter)
}

// ListAssignmentDetails returns the trip's stops joined with order data.
func (s *Service) ListAssignmentDetails(ctx context.Context, tripID int64) ([]AssignmentDetail, error) {
	return s.repo.ListAssignmentDetails(ctx, tripID)
}

// refreshWeights calls the weight recalculation routine for each order.
// Best-effort: failures are logged and the stored weight is used as-is.
func (s *Service) refreshWeights(ctx context.Context, orderIDs []int64) {
	if s.weights == nil {
		return
	}
	for _, orderID := range orderIDs {
		if err := s.weights.Recalculate(ctx, orderID); err != nil && s.logger != nil {
			s.logger.Warn("weight recalculation failed, using stored weight",
				slog.Int64("order_id", orderID), slog.Any("error", err))
		}
	}
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, tripID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "trip",
		EntityID: fmt.Sprintf("%d", tripID),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
