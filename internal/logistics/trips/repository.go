package trips

import (
	"context"
	"time"

	"github.com/millstone-erp/millstone-erp/internal/accounting/posting"
	"github.com/millstone-erp/millstone-erp/internal/fleet"
	"github.com/millstone-erp/millstone-erp/internal/orders"
)

// Repository encapsulates DB access for the trip core.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetTrip(ctx context.Context, id int64) (Trip, error)
	ListTrips(ctx context.Context, filter ListFilter) ([]TripSummary, error)
	ListAssignmentDetails(ctx context.Context, tripID int64) ([]AssignmentDetail, error)
}

// ListFilter narrows trip listings.
type ListFilter struct {
	Status   *Status
	DateFrom *time.Time
	DateTo   *time.Time
}

// TxRepository exposes every table the trip engine mutates, all bound to a
// single open transaction. ForUpdate reads take row locks so capacity and
// availability decisions survive concurrent dispatch requests.
type TxRepository interface {
	InsertTrip(ctx context.Context, trip Trip) (int64, error)
	GetTripForUpdate(ctx context.Context, id int64) (Trip, error)
	UpdateTripTotals(ctx context.Context, trip Trip) error
	SetTripStatus(ctx context.Context, id int64, status Status, startedAt, endedAt *time.Time) error
	SetTripNotes(ctx context.Context, id int64, notes string) error

	InsertAssignment(ctx context.Context, assignment Assignment) error
	ListAssignments(ctx context.Context, tripID int64) ([]Assignment, error)
	GetAssignment(ctx context.Context, tripID, orderID int64) (Assignment, error)
	SetAssignmentDelivery(ctx context.Context, tripID, orderID int64, status DeliveryStatus, arrival *time.Time, notes *string) error
	CountUndelivered(ctx context.Context, tripID int64) (int, error)
	DeleteAssignments(ctx context.Context, tripID int64) error

	GetOrderForUpdate(ctx context.Context, orderID int64) (orders.CreditOrder, error)
	IsOrderAssigned(ctx context.Context, orderID int64) (bool, error)
	SetOrderStatus(ctx context.Context, orderID int64, status orders.Status) error
	UpsertShippingRecord(ctx context.Context, record orders.ShippingRecord) error
	MarkShippingDelivered(ctx context.Context, orderID int64, deliveredAt time.Time, notes *string) error
	DeleteShippingRecords(ctx context.Context, tripID int64) error

	GetVehicle(ctx context.Context, id int64) (fleet.Vehicle, error)
	GetDriverForUpdate(ctx context.Context, id int64) (fleet.Driver, error)
	SetDriverAvailability(ctx context.Context, driverID int64, available bool, assignedVehicleID *int64) error

	// Posting exposes the accounting view of the same transaction.
	Posting() posting.TxRepository
}
