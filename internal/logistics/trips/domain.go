package trips

import (
	"time"

	"github.com/millstone-erp/millstone-erp/internal/fleet"
)

// Status is the trip lifecycle. Scheduled is initial; Completed and
// Cancelled are terminal.
type Status string

const (
	StatusScheduled  Status = "Scheduled"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

// CanStart reports whether the trip may move to In Progress.
func (s Status) CanStart() bool {
	return s == StatusScheduled
}

// CanComplete reports whether the trip may move to Completed.
func (s Status) CanComplete() bool {
	return s == StatusInProgress
}

// CanCancel reports whether the trip may move to Cancelled.
func (s Status) CanCancel() bool {
	return s == StatusScheduled || s == StatusInProgress
}

// AcceptsOrders reports whether new orders may still be assigned.
func (s Status) AcceptsOrders() bool {
	return s == StatusScheduled || s == StatusInProgress
}

// TripType distinguishes single-order runs from consolidated ones.
type TripType string

const (
	TypeSingle       TripType = "single"
	TypeConsolidated TripType = "consolidated"
	TypeReturn       TripType = "return"
)

// DeliveryStatus tracks one order within a trip.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryInTransit DeliveryStatus = "in_transit"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// IsValid checks the delivery status value.
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryPending, DeliveryInTransit, DeliveryDelivered, DeliveryFailed:
		return true
	default:
		return false
	}
}

// Trip is a scheduled vehicle run carrying one or more orders. The weight
// columns are denormalised from the vehicle: remaining_capacity_kg equals
// vehicle capacity minus total_weight_kg at all times.
type Trip struct {
	ID                  int64
	VehicleID           int64
	DriverID            int64
	TripDate            time.Time
	ScheduledTime       string
	TripType            TripType
	TotalOrders         int
	TotalWeightKg       float64
	RemainingCapacityKg float64
	Status              Status
	Notes               string
	ActualStartTime     *time.Time
	ActualEndTime       *time.Time
	CreatedBy           int64
	CreatedAt           time.Time
}

// NewTrip builds a Scheduled trip with the vehicle's full capacity free.
func NewTrip(vehicle fleet.Vehicle, driverID int64, tripDate time.Time, scheduledTime, notes string, createdBy int64) Trip {
	return Trip{
		VehicleID:           vehicle.ID,
		DriverID:            driverID,
		TripDate:            tripDate,
		ScheduledTime:       scheduledTime,
		TripType:            TypeSingle,
		Status:              StatusScheduled,
		RemainingCapacityKg: vehicle.CapacityKg,
		Notes:               notes,
		CreatedBy:           createdBy,
	}
}

// VehicleCapacityKg derives the vehicle capacity from the weight invariant.
func (t Trip) VehicleCapacityKg() float64 {
	return t.TotalWeightKg + t.RemainingCapacityKg
}

// CanFit reports whether an order of the given weight fits the remaining
// capacity. Checked before any mutation: no partial weight commit.
func (t Trip) CanFit(weightKg float64) bool {
	return weightKg <= t.RemainingCapacityKg
}

// AddOrderWeight commits one order's weight against the trip, keeping the
// capacity invariant. Callers must check CanFit first.
func (t *Trip) AddOrderWeight(weightKg float64) {
	t.TotalWeightKg += weightKg
	t.RemainingCapacityKg -= weightKg
	t.TotalOrders++
	if t.TotalOrders > 1 {
		t.TripType = TypeConsolidated
	}
}

// Assignment links one order to a trip with its stop sequence.
type Assignment struct {
	TripID             int64
	OrderID            int64
	SequenceNumber     int
	DestinationAddress string
	DeliveryStatus     DeliveryStatus
	ActualArrival      *time.Time
	DeliveryNotes      *string
}

// TripSummary is a trip row joined with vehicle and driver names for lists.
type TripSummary struct {
	Trip
	VehiclePlate string
	DriverName   string
}

// AssignmentDetail is an assignment joined with order data for the trip
// detail screen.
type AssignmentDetail struct {
	Assignment
	OrderNumber   string
	CustomerName  string
	TotalWeightKg float64
	TotalAmount   float64
}
