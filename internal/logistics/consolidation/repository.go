package consolidation

import (
	"context"

	"github.com/millstone-erp/millstone-erp/internal/fleet"
	"github.com/millstone-erp/millstone-erp/internal/logistics/trips"
)

// Repository encapsulates DB access for suggestion resolution.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	ListPending(ctx context.Context) ([]SuggestionDetail, error)
	GetSuggestion(ctx context.Context, id int64) (Suggestion, error)
	ScanForOrder(ctx context.Context, orderID int64) (int, error)
}

// TxRepository extends the trip engine's transactional surface with the
// suggestion table and fleet selection queries, so accepting a suggestion
// and creating its trip share one commit.
type TxRepository interface {
	trips.TxRepository

	GetSuggestionForUpdate(ctx context.Context, id int64) (Suggestion, error)
	UpdateSuggestionStatus(ctx context.Context, id int64, status SuggestionStatus) error

	// SelectVehicleForWeight returns the smallest active vehicle whose
	// capacity covers the given weight.
	SelectVehicleForWeight(ctx context.Context, weightKg float64) (fleet.Vehicle, error)
	// SelectBestDriver returns the highest-rated available driver.
	SelectBestDriver(ctx context.Context) (fleet.Driver, error)
}
