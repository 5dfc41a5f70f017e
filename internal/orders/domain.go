package orders

import "time"

// Status is the credit order lifecycle slice this service transitions
// through. Earlier states (production, approval) belong to upstream modules.
type Status string

const (
	StatusReadyToShip Status = "ready_to_ship"
	StatusShipped     Status = "shipped"
	StatusDelivered   Status = "delivered"
)

// CreditOrder is a customer order awaiting or undergoing delivery.
// Ownership of the row is shared with the sales module; this service only
// moves status between ready_to_ship, shipped and delivered.
type CreditOrder struct {
	ID              int64
	OrderNumber     string
	CustomerID      int64
	CustomerName    string
	BranchID        *int64
	Status          Status
	TotalAmount     float64
	TotalWeightKg   float64
	DeliveryAddress string
	CreatedAt       time.Time
}

// WorkflowEvent is an append-only audit row for an order status transition.
type WorkflowEvent struct {
	OrderID     int64
	FromStatus  Status
	ToStatus    Status
	PerformedBy int64
	Comment     string
	CreatedAt   time.Time
}

// ShippingRecord ties an order to the trip, vehicle and driver that
// physically carried it (credit_order_shipping).
type ShippingRecord struct {
	OrderID       int64
	TripID        int64
	VehicleID     int64
	DriverID      int64
	ShippedAt     time.Time
	DeliveredAt   *time.Time
	DeliveryNotes *string
}
