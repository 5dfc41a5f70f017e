package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/millstone-erp/millstone-erp/internal/shared"
)

const orderColumns = `co.id, co.order_number, co.customer_id, c.name, co.branch_id, co.status, co.total_amount, co.total_weight_kg, co.delivery_address, co.created_at`

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed credit order repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) GetOrder(ctx context.Context, id int64) (CreditOrder, error) {
	var o CreditOrder
	err := r.db.QueryRow(ctx, `SELECT `+orderColumns+`
FROM credit_orders co JOIN customers c ON c.id = co.customer_id
WHERE co.id=$1`, id).
		Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.CustomerName, &o.BranchID, &o.Status, &o.TotalAmount, &o.TotalWeightKg, &o.DeliveryAddress, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CreditOrder{}, shared.ErrNotFound
		}
		return CreditOrder{}, err
	}
	return o, nil
}

func (r *repository) ListReadyToShip(ctx context.Context) ([]CreditOrder, error) {
	rows, err := r.db.Query(ctx, `SELECT `+orderColumns+`
FROM credit_orders co JOIN customers c ON c.id = co.customer_id
WHERE co.status='ready_to_ship'
  AND NOT EXISTS (SELECT 1 FROM trip_order_assignments toa WHERE toa.order_id = co.id)
ORDER BY co.created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CreditOrder
	for rows.Next() {
		var o CreditOrder
		if err := rows.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.CustomerName, &o.BranchID, &o.Status, &o.TotalAmount, &o.TotalWeightKg, &o.DeliveryAddress, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
