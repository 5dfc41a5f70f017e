package trips

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/millstone-erp/millstone-erp/internal/accounting/posting"
	"github.com/millstone-erp/millstone-erp/internal/fleet"
	"github.com/millstone-erp/millstone-erp/internal/orders"
	"github.com/millstone-erp/millstone-erp/internal/platform/db"
)

const uniqueViolation = "23505"

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the PostgreSQL-backed trip repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const tripColumns = `id, vehicle_id, driver_id, trip_date, scheduled_time, trip_type, total_orders, total_weight_kg, remaining_capacity_kg, status, COALESCE(notes, ''), actual_start_time, actual_end_time, created_by, created_at`

func scanTrip(row pgx.Row) (Trip, error) {
	var t Trip
	err := row.Scan(&t.ID, &t.VehicleID, &t.DriverID, &t.TripDate, &t.ScheduledTime, &t.TripType, &t.TotalOrders,
		&t.TotalWeightKg, &t.RemainingCapacityKg, &t.Status, &t.Notes, &t.ActualStartTime, &t.ActualEndTime, &t.CreatedBy, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Trip{}, ErrTripNotFound
		}
		return Trip{}, err
	}
	return t, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

func (r *repository) GetTrip(ctx context.Context, id int64) (Trip, error) {
	return scanTrip(r.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id=$1`, id))
}

func (r *repository) ListTrips(ctx context.Context, filter ListFilter) ([]TripSummary, error) {
	query := `SELECT t.id, t.vehicle_id, t.driver_id, t.trip_date, t.scheduled_time, t.trip_type, t.total_orders,
t.total_weight_kg, t.remaining_capacity_kg, t.status, COALESCE(t.notes, ''), t.actual_start_time, t.actual_end_time,
t.created_by, t.created_at, v.plate_number, d.name
FROM trips t
JOIN vehicles v ON v.id = t.vehicle_id
JOIN drivers d ON d.id = t.driver_id
WHERE 1=1`
	args := []any{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += ` AND t.status = $` + strconv.Itoa(len(args))
	}
	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		query += ` AND t.trip_date >= $` + strconv.Itoa(len(args))
	}
	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		query += ` AND t.trip_date <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY t.trip_date DESC, t.id DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TripSummary
	for rows.Next() {
		var ts TripSummary
		if err := rows.Scan(&ts.ID, &ts.VehicleID, &ts.DriverID, &ts.TripDate, &ts.ScheduledTime, &ts.TripType,
			&ts.TotalOrders, &ts.TotalWeightKg, &ts.RemainingCapacityKg, &ts.Status, &ts.Notes,
			&ts.ActualStartTime, &ts.ActualEndTime, &ts.CreatedBy, &ts.CreatedAt, &ts.VehiclePlate, &ts.DriverName); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (r *repository) ListAssignmentDetails(ctx context.Context, tripID int64) ([]AssignmentDetail, error) {
	rows, err := r.db.Query(ctx, `SELECT toa.trip_id, toa.order_id, toa.sequence_number, toa.destination_address,
toa.delivery_status, toa.actual_arrival, toa.delivery_notes, co.order_number, c.name, co.total_weight_kg, co.total_amount
FROM trip_order_assignments toa
JOIN credit_orders co ON co.id = toa.order_id
JOIN customers c ON c.id = co.customer_id
WHERE toa.trip_id = $1
ORDER BY toa.sequence_number ASC`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AssignmentDetail
	for rows.Next() {
		var d AssignmentDetail
		if err := rows.Scan(&d.TripID, &d.OrderID, &d.SequenceNumber, &d.DestinationAddress, &d.DeliveryStatus,
			&d.ActualArrival, &d.DeliveryNotes, &d.OrderNumber, &d.CustomerName, &d.TotalWeightKg, &d.TotalAmount); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository binds the trip tables to an already-open transaction.
// Callers that widen the engine's transactional surface (suggestion
// resolution) embed the result.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) InsertTrip(ctx context.Context, trip Trip) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO trips (vehicle_id, driver_id, trip_date, scheduled_time, trip_type, total_orders, total_weight_kg, remaining_capacity_kg, status, notes, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`,
		trip.VehicleID, trip.DriverID, trip.TripDate, trip.ScheduledTime, trip.TripType, trip.TotalOrders,
		trip.TotalWeightKg, trip.RemainingCapacityKg, trip.Status, trip.Notes, trip.CreatedBy).
		Scan(&id)
	return id, err
}

func (r *txRepository) GetTripForUpdate(ctx context.Context, id int64) (Trip, error) {
	return scanTrip(r.tx.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) UpdateTripTotals(ctx context.Context, trip Trip) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE trips SET total_orders=$2, total_weight_kg=$3, remaining_capacity_kg=$4, trip_type=$5 WHERE id=$1`,
		trip.ID, trip.TotalOrders, trip.TotalWeightKg, trip.RemainingCapacityKg, trip.TripType)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTripNotFound
	}
	return nil
}

func (r *txRepository) SetTripStatus(ctx context.Context, id int64, status Status, startedAt, endedAt *time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE trips SET status=$2,
actual_start_time = COALESCE($3, actual_start_time),
actual_end_time = COALESCE($4, actual_end_time)
WHERE id=$1`, id, status, startedAt, endedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTripNotFound
	}
	return nil
}

func (r *txRepository) SetTripNotes(ctx context.Context, id int64, notes string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE trips SET notes=$2 WHERE id=$1`, id, notes)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrTripNotFound
	}
	return nil
}

func (r *txRepository) InsertAssignment(ctx context.Context, a Assignment) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO trip_order_assignments (trip_id, order_id, sequence_number, destination_address, delivery_status)
VALUES ($1,$2,$3,$4,$5)`, a.TripID, a.OrderID, a.SequenceNumber, a.DestinationAddress, a.DeliveryStatus)
	if err != nil {
		// uq_trip_order_assignments_order backs the one-active-trip rule
		// against concurrent dispatchers.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrOrderAlreadyAssigned
		}
		return err
	}
	return nil
}

const assignmentColumns = `trip_id, order_id, sequence_number, destination_address, delivery_status, actual_arrival, delivery_notes`

func (r *txRepository) ListAssignments(ctx context.Context, tripID int64) ([]Assignment, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+assignmentColumns+` FROM trip_order_assignments WHERE trip_id=$1 ORDER BY sequence_number ASC`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.TripID, &a.OrderID, &a.SequenceNumber, &a.DestinationAddress, &a.DeliveryStatus, &a.ActualArrival, &a.DeliveryNotes); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *txRepository) GetAssignment(ctx context.Context, tripID, orderID int64) (Assignment, error) {
	var a Assignment
	err := r.tx.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM trip_order_assignments WHERE trip_id=$1 AND order_id=$2`, tripID, orderID).
		Scan(&a.TripID, &a.OrderID, &a.SequenceNumber, &a.DestinationAddress, &a.DeliveryStatus, &a.ActualArrival, &a.DeliveryNotes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Assignment{}, ErrAssignmentNotFound
		}
		return Assignment{}, err
	}
	return a, nil
}

func (r *txRepository) SetAssignmentDelivery(ctx context.Context, tripID, orderID int64, status DeliveryStatus, arrival *time.Time, notes *string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE trip_order_assignments SET delivery_status=$3,
actual_arrival = COALESCE($4, actual_arrival),
delivery_notes = COALESCE($5, delivery_notes)
WHERE trip_id=$1 AND order_id=$2`, tripID, orderID, status, arrival, notes)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAssignmentNotFound
	}
	return nil
}

func (r *txRepository) CountUndelivered(ctx context.Context, tripID int64) (int, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM trip_order_assignments WHERE trip_id=$1 AND delivery_status <> 'delivered'`, tripID).Scan(&count)
	return count, err
}

func (r *txRepository) DeleteAssignments(ctx context.Context, tripID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM trip_order_assignments WHERE trip_id=$1`, tripID)
	return err
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, orderID int64) (orders.CreditOrder, error) {
	var o orders.CreditOrder
	err := r.tx.QueryRow(ctx, `SELECT co.id, co.order_number, co.customer_id, c.name, co.branch_id, co.status, co.total_amount, co.total_weight_kg, co.delivery_address, co.created_at
FROM credit_orders co JOIN customers c ON c.id = co.customer_id
WHERE co.id=$1 FOR UPDATE OF co`, orderID).
		Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.CustomerName, &o.BranchID, &o.Status, &o.TotalAmount, &o.TotalWeightKg, &o.DeliveryAddress, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return orders.CreditOrder{}, ErrOrderNotFound
		}
		return orders.CreditOrder{}, err
	}
	return o, nil
}

func (r *txRepository) IsOrderAssigned(ctx context.Context, orderID int64) (bool, error) {
	var assigned bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trip_order_assignments WHERE order_id=$1)`, orderID).Scan(&assigned)
	return assigned, err
}

func (r *txRepository) SetOrderStatus(ctx context.Context, orderID int64, status orders.Status) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE credit_orders SET status=$2 WHERE id=$1`, orderID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *txRepository) UpsertShippingRecord(ctx context.Context, record orders.ShippingRecord) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO credit_order_shipping (order_id, trip_id, vehicle_id, driver_id, shipped_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (order_id) DO UPDATE SET trip_id=EXCLUDED.trip_id, vehicle_id=EXCLUDED.vehicle_id, driver_id=EXCLUDED.driver_id, shipped_at=EXCLUDED.shipped_at, delivered_at=NULL, delivery_notes=NULL`,
		record.OrderID, record.TripID, record.VehicleID, record.DriverID, record.ShippedAt)
	return err
}

func (r *txRepository) MarkShippingDelivered(ctx context.Context, orderID int64, deliveredAt time.Time, notes *string) error {
	_, err := r.tx.Exec(ctx, `UPDATE credit_order_shipping SET delivered_at=$2, delivery_notes=COALESCE($3, delivery_notes) WHERE order_id=$1`,
		orderID, deliveredAt, notes)
	return err
}

func (r *txRepository) DeleteShippingRecords(ctx context.Context, tripID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM credit_order_shipping WHERE trip_id=$1`, tripID)
	return err
}

func (r *txRepository) GetVehicle(ctx context.Context, id int64) (fleet.Vehicle, error) {
	var v fleet.Vehicle
	err := r.tx.QueryRow(ctx, `SELECT id, plate_number, vehicle_type, capacity_kg, status, created_at FROM vehicles WHERE id=$1`, id).
		Scan(&v.ID, &v.PlateNumber, &v.VehicleType, &v.CapacityKg, &v.Status, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fleet.Vehicle{}, ErrVehicleNotFound
		}
		return fleet.Vehicle{}, err
	}
	return v, nil
}

func (r *txRepository) GetDriverForUpdate(ctx context.Context, id int64) (fleet.Driver, error) {
	var d fleet.Driver
	err := r.tx.QueryRow(ctx, `SELECT id, name, phone, license_number, status, is_available, rating, assigned_vehicle_id, created_at
FROM drivers WHERE id=$1 FOR UPDATE`, id).
		Scan(&d.ID, &d.Name, &d.Phone, &d.LicenseNumber, &d.Status, &d.IsAvailable, &d.Rating, &d.AssignedVehicleID, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fleet.Driver{}, ErrDriverNotFound
		}
		return fleet.Driver{}, err
	}
	return d, nil
}

func (r *txRepository) SetDriverAvailability(ctx context.Context, driverID int64, available bool, assignedVehicleID *int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE drivers SET is_available=$2, assigned_vehicle_id=$3 WHERE id=$1`, driverID, available, assignedVehicleID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDriverNotFound
	}
	return nil
}

func (r *txRepository) Posting() posting.TxRepository {
	return posting.NewTxRepository(r.tx)
}
