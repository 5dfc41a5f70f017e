package fleet

import "context"

// Repository exposes read access to the fleet master data. Mutations to
// driver availability happen inside trip transactions, not here.
type Repository interface {
	GetVehicle(ctx context.Context, id int64) (Vehicle, error)
	ListActiveVehicles(ctx context.Context) ([]Vehicle, error)
	GetDriver(ctx context.Context, id int64) (Driver, error)
	ListAvailableDrivers(ctx context.Context) ([]Driver, error)
}
