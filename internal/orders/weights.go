package orders

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WeightService recalculates and persists credit_orders.total_weight_kg via
// the sp_calculate_order_weight database routine. The routine is owned by
// the production module; callers treat failures as non-fatal and proceed
// with whatever weight is currently stored.
type WeightService struct {
	db *pgxpool.Pool
}

// NewWeightService constructs a WeightService.
func NewWeightService(db *pgxpool.Pool) *WeightService {
	return &WeightService{db: db}
}

// Recalculate invokes the stored routine for one order.
func (s *WeightService) Recalculate(ctx context.Context, orderID int64) error {
	if _, err := s.db.Exec(ctx, `SELECT sp_calculate_order_weight($1)`, orderID); err != nil {
		return fmt.Errorf("orders: recalculate weight for order %d: %w", orderID, err)
	}
	return nil
}
