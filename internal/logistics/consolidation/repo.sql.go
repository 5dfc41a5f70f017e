package consolidation

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/millstone-erp/millstone-erp/internal/fleet"
	"github.com/millstone-erp/millstone-erp/internal/logistics/trips"
	"github.com/millstone-erp/millstone-erp/internal/platform/db"
)

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed suggestion repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const suggestionColumns = `id, order_id_1, order_id_2, distance_km, potential_savings, status, suggested_at`

func scanSuggestion(row pgx.Row) (Suggestion, error) {
	var s Suggestion
	err := row.Scan(&s.ID, &s.OrderID1, &s.OrderID2, &s.DistanceKm, &s.PotentialSavings, &s.Status, &s.SuggestedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Suggestion{}, ErrSuggestionNotFound
		}
		return Suggestion{}, err
	}
	return s, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: trips.NewTxRepository(tx), tx: tx})
	})
}

func (r *repository) ListPending(ctx context.Context) ([]SuggestionDetail, error) {
	rows, err := r.db.Query(ctx, `SELECT cs.id, cs.order_id_1, cs.order_id_2, cs.distance_km, cs.potential_savings, cs.status, cs.suggested_at,
o1.order_number, o2.order_number, o1.total_weight_kg + o2.total_weight_kg
FROM consolidation_suggestions cs
JOIN credit_orders o1 ON o1.id = cs.order_id_1
JOIN credit_orders o2 ON o2.id = cs.order_id_2
WHERE cs.status = 'pending'
ORDER BY cs.potential_savings DESC, cs.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SuggestionDetail
	for rows.Next() {
		var d SuggestionDetail
		if err := rows.Scan(&d.ID, &d.OrderID1, &d.OrderID2, &d.DistanceKm, &d.PotentialSavings, &d.Status, &d.SuggestedAt,
			&d.OrderNumber1, &d.OrderNumber2, &d.CombinedWeightKg); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repository) GetSuggestion(ctx context.Context, id int64) (Suggestion, error) {
	return scanSuggestion(r.db.QueryRow(ctx, `SELECT `+suggestionColumns+` FROM consolidation_suggestions WHERE id=$1`, id))
}

func (r *repository) ScanForOrder(ctx context.Context, orderID int64) (int, error) {
	var created int
	err := r.db.QueryRow(ctx, `SELECT sp_find_consolidation_opportunities($1)`, orderID).Scan(&created)
	return created, err
}

type txRepository struct {
	trips.TxRepository
	tx pgx.Tx
}

func (r *txRepository) GetSuggestionForUpdate(ctx context.Context, id int64) (Suggestion, error) {
	return scanSuggestion(r.tx.QueryRow(ctx, `SELECT `+suggestionColumns+` FROM consolidation_suggestions WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) UpdateSuggestionStatus(ctx context.Context, id int64, status SuggestionStatus) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE consolidation_suggestions SET status=$2 WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSuggestionNotFound
	}
	return nil
}

func (r *txRepository) SelectVehicleForWeight(ctx context.Context, weightKg float64) (fleet.Vehicle, error) {
	var v fleet.Vehicle
	err := r.tx.QueryRow(ctx, `SELECT id, plate_number, vehicle_type, capacity_kg, status, created_at
FROM vehicles WHERE status='active' AND capacity_kg >= $1
ORDER BY capacity_kg ASC, id ASC LIMIT 1`, weightKg).
		Scan(&v.ID, &v.PlateNumber, &v.VehicleType, &v.CapacityKg, &v.Status, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fleet.Vehicle{}, ErrNoVehicleAvailable
		}
		return fleet.Vehicle{}, err
	}
	return v, nil
}

func (r *txRepository) SelectBestDriver(ctx context.Context) (fleet.Driver, error) {
	var d fleet.Driver
	err := r.tx.QueryRow(ctx, `SELECT id, name, phone, license_number, status, is_available, rating, assigned_vehicle_id, created_at
FROM drivers WHERE status='active' AND is_available
ORDER BY rating DESC, id ASC LIMIT 1 FOR UPDATE SKIP LOCKED`).
		Scan(&d.ID, &d.Name, &d.Phone, &d.LicenseNumber, &d.Status, &d.IsAvailable, &d.Rating, &d.AssignedVehicleID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fleet.Driver{}, ErrNoDriverAvailable
		}
		return fleet.Driver{}, err
	}
	return d, nil
}
