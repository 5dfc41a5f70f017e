package fleet

import "time"

// VehicleStatus enumerates vehicle availability for dispatch.
type VehicleStatus string

const (
	VehicleStatusActive   VehicleStatus = "active"
	VehicleStatusInactive VehicleStatus = "inactive"
)

// Vehicle is a payload carrier in the mill's delivery fleet.
type Vehicle struct {
	ID          int64
	PlateNumber string
	VehicleType string
	CapacityKg  float64
	Status      VehicleStatus
	CreatedAt   time.Time
}

// IsActive reports whether the vehicle can be assigned to trips.
func (v Vehicle) IsActive() bool {
	return v.Status == VehicleStatusActive
}

// DriverStatus enumerates driver employment state.
type DriverStatus string

const (
	DriverStatusActive   DriverStatus = "active"
	DriverStatusInactive DriverStatus = "inactive"
)

// Driver operates trips. Availability is owned exclusively by the trip
// lifecycle: set false on assignment, true again on completion or
// cancellation.
type Driver struct {
	ID                int64
	Name              string
	Phone             string
	LicenseNumber     string
	Status            DriverStatus
	IsAvailable       bool
	Rating            float64
	AssignedVehicleID *int64
	CreatedAt         time.Time
}

// CanDrive reports whether the driver may be put on a new trip.
func (d Driver) CanDrive() bool {
	return d.Status == DriverStatusActive
}
