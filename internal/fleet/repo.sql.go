package fleet

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/millstone-erp/millstone-erp/internal/shared"
)

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed fleet repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const vehicleColumns = `id, plate_number, vehicle_type, capacity_kg, status, created_at`

func (r *repository) GetVehicle(ctx context.Context, id int64) (Vehicle, error) {
	var v Vehicle
	err := r.db.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id=$1`, id).
		Scan(&v.ID, &v.PlateNumber, &v.VehicleType, &v.CapacityKg, &v.Status, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vehicle{}, shared.ErrNotFound
		}
		return Vehicle{}, err
	}
	return v, nil
}

func (r *repository) ListActiveVehicles(ctx context.Context) ([]Vehicle, error) {
	rows, err := r.db.Query(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE status='active' ORDER BY capacity_kg ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var vehicles []Vehicle
	for rows.Next() {
		var v Vehicle
		if err := rows.Scan(&v.ID, &v.PlateNumber, &v.VehicleType, &v.CapacityKg, &v.Status, &v.CreatedAt); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

const driverColumns = `id, name, phone, license_number, status, is_available, rating, assigned_vehicle_id, created_at`

func (r *repository) GetDriver(ctx context.Context, id int64) (Driver, error) {
	var d Driver
	err := r.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id=$1`, id).
		Scan(&d.ID, &d.Name, &d.Phone, &d.LicenseNumber, &d.Status, &d.IsAvailable, &d.Rating, &d.AssignedVehicleID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Driver{}, shared.ErrNotFound
		}
		return Driver{}, err
	}
	return d, nil
}

func (r *repository) ListAvailableDrivers(ctx context.Context) ([]Driver, error) {
	rows, err := r.db.Query(ctx, `SELECT `+driverColumns+` FROM drivers WHERE status='active' AND is_available ORDER BY rating DESC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var drivers []Driver
	for rows.Next() {
		var d Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Phone, &d.LicenseNumber, &d.Status, &d.IsAvailable, &d.Rating, &d.AssignedVehicleID, &d.CreatedAt); err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}
