package trips

import (
	"errors"
	"fmt"
)

var (
	// ErrTripNotFound indicates the trip does not exist.
	ErrTripNotFound = errors.New("trip not found")
	// ErrOrderNotFound indicates a referenced credit order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrVehicleNotFound indicates the vehicle does not exist.
	ErrVehicleNotFound = errors.New("vehicle not found")
	// ErrDriverNotFound indicates the driver does not exist.
	ErrDriverNotFound = errors.New("driver not found")
	// ErrAssignmentNotFound indicates the order is not linked to the trip.
	ErrAssignmentNotFound = errors.New("order not assigned to trip")

	// ErrCapacityExceeded indicates the requested weight exceeds the
	// remaining vehicle capacity. Raised before any row is written.
	ErrCapacityExceeded = errors.New("vehicle capacity exceeded")
	// ErrInvalidTransition indicates a lifecycle action from a state that
	// forbids it.
	ErrInvalidTransition = errors.New("invalid trip status transition")

	// ErrOrderNotReady indicates an order is not in ready_to_ship status.
	ErrOrderNotReady = errors.New("order is not ready to ship")
	// ErrOrderAlreadyAssigned indicates an order already belongs to an
	// active trip.
	ErrOrderAlreadyAssigned = errors.New("order already assigned to a trip")

	// ErrVehicleInactive indicates the vehicle cannot be dispatched.
	ErrVehicleInactive = errors.New("vehicle is not active")
	// ErrDriverInactive indicates the driver cannot be dispatched.
	ErrDriverInactive = errors.New("driver is not active")

	// ErrCancelReasonRequired indicates a cancellation without a reason.
	ErrCancelReasonRequired = errors.New("cancellation reason is required")
)

// PendingDeliveriesError reports an attempt to complete a trip while some
// orders are still undelivered.
type PendingDeliveriesError struct {
	Count int
}

func (e PendingDeliveriesError) Error() string {
	return fmt.Sprintf("trip has %d undelivered order(s)", e.Count)
}
