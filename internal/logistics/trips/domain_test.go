package trips

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/millstone-erp/millstone-erp/internal/fleet"
)

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusScheduled.CanStart())
	assert.False(t, StatusInProgress.CanStart())
	assert.False(t, StatusCompleted.CanStart())

	assert.True(t, StatusInProgress.CanComplete())
	assert.False(t, StatusScheduled.CanComplete())

	assert.True(t, StatusScheduled.CanCancel())
	assert.True(t, StatusInProgress.CanCancel())
	assert.False(t, StatusCompleted.CanCancel())
	assert.False(t, StatusCancelled.CanCancel())

	assert.True(t, StatusScheduled.AcceptsOrders())
	assert.True(t, StatusInProgress.AcceptsOrders())
	assert.False(t, StatusCancelled.AcceptsOrders())
}

func TestDeliveryStatusIsValid(t *testing.T) {
	for _, status := range []DeliveryStatus{DeliveryPending, DeliveryInTransit, DeliveryDelivered, DeliveryFailed} {
		assert.True(t, status.IsValid(), string(status))
	}
	assert.False(t, DeliveryStatus("misplaced").IsValid())
	assert.False(t, DeliveryStatus("").IsValid())
}

func TestNewTripStartsWithFullCapacity(t *testing.T) {
	vehicle := fleet.Vehicle{ID: 3, CapacityKg: 1500, Status: fleet.VehicleStatusActive}
	trip := NewTrip(vehicle, 8, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), "09:30", "", 7)

	assert.Equal(t, StatusScheduled, trip.Status)
	assert.Equal(t, TypeSingle, trip.TripType)
	assert.Equal(t, 0, trip.TotalOrders)
	assert.InDelta(t, 1500, trip.RemainingCapacityKg, 0.001)
	assert.InDelta(t, 1500, trip.VehicleCapacityKg(), 0.001)
}

func TestAddOrderWeightKeepsCapacityInvariant(t *testing.T) {
	vehicle := fleet.Vehicle{ID: 3, CapacityKg: 1000}
	trip := NewTrip(vehicle, 8, time.Now(), "", "", 7)

	trip.AddOrderWeight(300)
	assert.Equal(t, TypeSingle, trip.TripType)
	assert.InDelta(t, 700, trip.RemainingCapacityKg, 0.001)

	trip.AddOrderWeight(450)
	assert.Equal(t, TypeConsolidated, trip.TripType)
	assert.Equal(t, 2, trip.TotalOrders)
	assert.InDelta(t, 750, trip.TotalWeightKg, 0.001)
	assert.InDelta(t, 250, trip.RemainingCapacityKg, 0.001)
	assert.InDelta(t, 1000, trip.VehicleCapacityKg(), 0.001)
}

func TestCanFit(t *testing.T) {
	trip := Trip{RemainingCapacityKg: 200}

	assert.True(t, trip.CanFit(200))
	assert.True(t, trip.CanFit(50))
	assert.False(t, trip.CanFit(200.01))
}
