package orders

import "context"

// Repository exposes read access to credit orders for dispatch screens.
// Status transitions happen inside trip transactions, not here.
type Repository interface {
	GetOrder(ctx context.Context, id int64) (CreditOrder, error)
	// ListReadyToShip returns orders awaiting trip assignment, excluding
	// any already linked to an active trip.
	ListReadyToShip(ctx context.Context) ([]CreditOrder, error)
}
