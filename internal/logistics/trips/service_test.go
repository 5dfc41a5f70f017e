package trips

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/millstone-erp/millstone-erp/internal/accounting/posting"
	"github.com/millstone-erp/millstone-erp/internal/fleet"
	"github.com/millstone-erp/millstone-erp/internal/orders"
	"github.com/millstone-erp/millstone-erp/internal/shared"
)

var testClock = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *mockRepository) {
	t.Helper()
	mock := newMockRepository()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(mock, posting.NewPoster(), nil, nil, logger)
	svc.WithNow(func() time.Time { return testClock })
	return svc, mock
}

func seedFleet(mock *mockRepository, capacityKg float64) {
	mock.vehicles[1] = fleet.Vehicle{ID: 1, PlateNumber: "DM-1122", CapacityKg: capacityKg, Status: fleet.VehicleStatusActive}
	mock.drivers[1] = &fleet.Driver{ID: 1, Name: "Rahim", Status: fleet.DriverStatusActive, IsAvailable: true, Rating: 4.5}
}

func seedOrder(mock *mockRepository, id int64, weightKg, amount float64) {
	mock.orders[id] = &orders.CreditOrder{
		ID:              id,
		OrderNumber:     orderNumber(id),
		CustomerID:      100 + id,
		Status:          orders.StatusReadyToShip,
		TotalAmount:     amount,
		TotalWeightKg:   weightKg,
		DeliveryAddress: "Mill road",
	}
}

func orderNumber(id int64) string {
	return "CO-00" + string(rune('0'+id))
}

func testActor() shared.Actor {
	return shared.Actor{ID: 7, Role: "dispatch-srg", DisplayName: "Dispatcher"}
}

func createInput(orderIDs ...int64) CreateTripInput {
	return CreateTripInput{
		OrderIDs:  orderIDs,
		VehicleID: 1,
		DriverID:  1,
		TripDate:  testClock,
	}
}

func TestCreateTripConsolidatesOrders(t *testing.T) {
	svc, mock := newTestService(t)
	seedFleet(mock, 1000)
	seedOrder(mock, 1, 300, 15000)
	seedOrder(mock, 2, 450, 22500)

	tripID, err := svc.CreateTrip(context.Background(), createInput(1, 2), testActor())
	require.NoError(t, err)

	trip := mock.trips[tripID]
	require.NotNil(t, trip)
	assert.Equal(t, StatusScheduled, trip.Status)
	assert.Equal(t, TypeConsolidated, trip.TripType)
	assert.Equal(t, 2, trip.TotalOrders)
	assert.InDelta(t, 750, trip.TotalWeightKg, 0.001)
	assert.InDelta(t, 250, trip.RemainingCapacityKg, 0.001)

	assignments := mock.assignments[tripID]
	require.Len(t, assignments, 2)
	assert.Equal(t, 1, assignments[0].SequenceNumber)
	assert.Equal(t, 2, assignments[1].SequenceNumber)
	assert.Equal(t, DeliveryPending, assignments[0].DeliveryStatus)

	assert.Equal(t, orders.StatusShipped, mock.orders[1].Status)
	assert.Equal(t, orders.StatusShipped, mock.orders[2].Status)
	require.Contains(t, mock.shipping, int64(1))
	require.Contains(t, mock.shipping, int64(2))
	assert.Equal(t, tripID, mock.shipping[1].TripID)

	driver := mock.drivers[1]
	assert.False(t, driver.IsAvailable)
	require.NotNil(t, driver.AssignedVehicleID)
	assert.Equal(t, int64(1), *driver.AssignedVehicleID)
}

func TestCreateTripSingleOrderStaysSingle(t *testing.T) {
	svc, mock := newTestService(t)
	seedFleet(mock, 1000)
	seedOrder(mock, 1, 300, 15000)

	tripID, err := svc.CreateTrip(context.Background(), createInput(1), testActor())
	require.NoError(t, err)

	assert.Equal(t, TypeSingle, mock.trips[tripID].TripType)
	assert.Equal(t, 1, mock.trips[tripID].TotalOrders)
}

func TestCreateTripPostsInvoicePerOrder(t *testing.T) {
	svc, mock := newTestService(t)
	seedFleet(mock, 1000)
	seedOrder(mock, 1, 300, 15000)
	mock.postingTx.initialDue[101] = 1000

	tripID, err := svc.CreateTrip(context.Background(), createInput(1), testActor())
	require.NoError(t, err)

	require.Len(t, mock.postingTx.ledger, 1)
	entry := mock.postingTx.ledger[0]
	assert.Equal(t, int64(101), entry.CustomerID)
	assert.InDelta(t, 15000, entry.Debit, 0.001)
	assert.InDelta(t, 16000, entry.BalanceAfter, 0.001)
	require.NotNil(t, entry.JournalEntryID)

	require.Len(t, mock.postingTx.journals, 1)
	lines := mock.postingTx.lines[*entry.JournalEntryID]
	require.Len(t, lines, 2)
	assert.InDelta(t, 15000, lines[0].Debit, 0.001)
	assert.InDelta(t, 15000, lines[1].Credit, 0.001)

	require.Len(t, mock.postingTx.workflowEvents, 1)
	event := mock.postingTx.workflowEvents[0]
	assert.Equal(t, orders.StatusReadyToShip, event.FromStatus)
	assert.Equal(t, orders.StatusShipped, event.ToStatus)
	assert.Contains(t, event.Comment, "Dispatched on trip")
	_ = tripID
}

func TestCreateTripCapacityExceededLeavesNothingBehind(t *testing.T) {
	svc, mock := newTestService(t)
	seedFleet(mock, 1000)
	seedOrder(mock, 1, 800, 40000)
	seedOrder(mock, 2, 300, 15000)

	_, err := svc.CreateTrip(context.Background(), createInput(1, 2), testActor())
	require.ErrorIs(t, err, ErrCapacityExceeded)

	assert.Empty(t, mock.trips)
	assert.Empty(t, mock.assignments)
	assert.Equal(t, orders.StatusReadyToShip, mock.orders[1].Status)
	assert.Equal(t, orders.StatusReadyToShip, mock.orders[2].Status)
	assert.True(t, mock.drivers[1].IsAvailable)
}

func TestCreateTripRejectsNonReadyOrder(t *testing.T) {
	svc, mock := newTestService(t)
	seedFleet(mock, 1000)
	seedOrder(mock, 1, 300, 15000)
	mock.orders[1].Status = orders.StatusShipped

	_, err := svc.CreateTrip(context.Background(), createInput(1), testActor())
	require.ErrorIs(t, err, ErrOrderNotReady)
}

func TestCreateTripRejectsAssignedOrder(t *testing.T) {
	svc, mock := newTestService(t)
	seedFleet(mock, 1000)
	seedOrder(mock, 1, 300, 15000)
	mock.assignments[99] = []Assignment{{TripID: 99, OrderID: 1, SequenceNumber: 1}}

	_, err := svc.CreateTrip(context.Background(), createInput(1), testActor())
	require.ErrorIs(t, err, ErrOrderAlreadyAssigned)
}

func TestCreateTripRejectsInactiveFleet(t *testing.T) {
	svc, mock := newTestService(t)
	seedFleet(mock, 1000)
	seedOrder(mock, 1, 300, 15000)

	vehicle := mock.vehicles[1]
	vehicle.Status = fleet.VehicleStatusInactive
	mock.vehicles[1] = vehicle
	_, err := svc.CreateTrip(context.Background(), createInput(1), testActor())
	require.ErrorIs(t, err, ErrVehicleInactive)

	vehicle.Status = fleet.VehicleStatusActive
	mock.vehicles[1] = vehicle
	mock.drivers[1].Status = fleet.DriverStatusInactive
	_, err = svc.CreateTrip(context.Background(), createInput(1), testActor())
	require.ErrorIs(t, err, ErrDriverInactive)
}

func TestCreateTripValidatesInput(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateTrip(context.Background(), CreateTripInput{VehicleID: 1, DriverID: 1, TripDate: testClock}, testActor())
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAddOrderToTrip(t *testing.T) {
	svc, mock := newTestService(t)
	seedFleet(mock, 1000)
	seedOrder(mock, 1, 300, 15000)
	seedOrder(mock, 2, 450, 22500)

	tripID, err := svc.CreateTrip(context.Background(), createInput(1), testActor())
	require.NoError(t, err)

	require.NoError(t, svc.AddOrderToTrip(context.Background(), tripID, 2, testActor()))

	trip := mock.trips[tripID]
	assert.Equal(t, TypeConsolidated, trip.TripType)
	assert.Equal(t, 2, trip.TotalOrders)
	assert.InDelta(t, 750, trip.TotalWeightKg, 0.001)

	assignments := mock.assignments[tripID]
	require.Len(t, assignments, 2)
	assert.Equal(t, 2, assignments[1].SequenceNumber)
}

func TestAddOrderToTripCapacityExceeded(t *testing.T) {
	svc, mock := newTestService(t)
	seedFleet(mock, 1000)
	seedOrder(mock, 1, 800, 40000)
	seedOrder(mock, 2, 300, 15000)

	tripID, err := svc.CreateTrip(context.Background(), createInput(1), testActor())
	require.NoError(t, err)

	err = svc.AddOrderToTrip(context.Background(), tripID, 2, testActor())
	require.ErrorIs(t, err, ErrCapacityExceeded)

	trip := mock.trips[tripID]
	assert.Equal(t, 1, trip.TotalOrders)
	assert.InDelta(t, 800, trip.TotalWeightKg, 0.001)
	assert.Equal(t, orders.StatusReadyToShip, mock.orders[2].Status)
}

func TestStartTrip(t *testing.T) {
	svc, mock := newTestService(t)
	seedFleet(mock, 1000)
	seedOrder(mock, 1, 300, 15000)

	tripID, err := svc.CreateTrip(context.Background(), createInput(1), testActor())
	require.NoError(t, err)

	require.NoError(t, svc.Start(context.Background(), tripID, testActor()))
	trip := mock.trips[tripID]
	assert.Equal(t, StatusInProgress, trip.Status)
	require.NotNil(t, trip.ActualStartTime)
	assert.Equal(t, testClock, *trip.ActualStartTime)

	// Starting twice is rejected.
	err = svc.Start(context.Background(), tripID, testActor())
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteRequiresAllDelivered(t *testing.T) {
	svc, mock := newTestService(t)
	seedFleet(mock, 2000)
	seedOrder(mock, 1, 300, 15000)
	seedOrder(mock, 2, 450, 22500)
	seedOrder(mock, 3, 200, 10000)

	tripID, err := svc.CreateTrip(context.Background(), createInput(1, 2, 3), testActor())
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background(), tripID, testActor()))

	require.NoError(t, svc.UpdateOrderDelivery(context.Background(), tripID, 1, DeliveryDelivered, nil, testActor()))
	require.NoError(t, svc.UpdateOrderDelivery(context.Background(), tripID, 2, DeliveryDelivered, nil, testActor()))

	err = svc.Complete(context.Background(), tripID, testActor())
	var pending PendingDeliveriesError
	require.ErrorAs(t, err, &pending)
	assert.Equal(t, 1, pending.Count)
	assert.Equal(t, StatusInProgress, mock.trips[tripID].Status)

	require.NoError(t, svc.UpdateOrderDelivery(context.Background(), tripID, 3, DeliveryDelivered, nil, testActor()))
	require.NoError(t, svc.Complete(context.Background(), tripID, testActor()))

	trip := mock.trips[tripID]
	assert.Equal(t, StatusCompleted, trip.Status)
	require.NotNil(t, trip.ActualEndTime)
	assert.True(t, mock.drivers[1].IsAvailable)
	assert.Nil(t, mock.drivers[1].AssignedVehicleID)
}

func TestCompleteRequiresInProgress(t *testing.T) {
	svc, mock := newTestService(t)
	seedFleet(mock, 1000)
	seedOrder(mock, 1, 300, 15000)

	tripID, err := svc.CreateTrip(context.Background(), createInput(1), testActor())
	require.NoError(t, err)

	err = svc.Complete(context.Background(), tripID, testActor())
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelRevertsOrdersAndFreesDriver(t *testing.T) {
	svc, mock := newTestService(t)
	seedFleet(mock, 1000)
	seedOrder(mock, 1, 300, 15000)
	seedOrder(mock, 2, 450, 22500)

	tripID, err := svc.CreateTrip(context.Background(), createInput(1, 2), testActor())
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), tripID, "vehicle breakdown", testActor()))

	trip := mock.trips[tripID]
	assert.Equal(t, StatusCancelled, trip.Status)
	assert.Contains(t, trip.Notes, "Cancelled: vehicle breakdown")
	assert.Empty(t, mock.assignments[tripID])
	assert.Empty(t, mock.shipping)
	assert.Equal(t, orders.StatusReadyToShip, mock.orders[1].Status)
	assert.Equal(t, orders.StatusReadyToShip, mock.orders[2].Status)
	assert.True(t, mock.drivers[1].IsAvailable)
}

func TestCancelRequiresReason(t *testing.T) {
	svc, mock := newTestService(t)
	seedFleet(mock, 1000)
	seedOrder(mock, 1, 300, 15000)

	tripID, err := svc.CreateTrip(context.Background(), createInput(1), testActor())
	require.NoError(t, err)

	err = svc.Cancel(context.Background(), tripID, "   ", testActor())
	require.ErrorIs(t, err, ErrCancelReasonRequired)
	assert.Equal(t, StatusScheduled, mock.trips[tripID].Status)
}

func TestCancelCompletedTripRejected(t *testing.T) {
	svc, mock := newTestService(t)
	seedFleet(mock, 1000)
	seedOrder(mock, 1, 300, 15000)

	tripID, err := svc.CreateTrip(context.Background(), createInput(1), testActor())
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background(), tripID, testActor()))
	require.NoError(t, svc.UpdateOrderDelivery(context.Background(), tripID, 1, DeliveryDelivered, nil, testActor()))
	require.NoError(t, svc.Complete(context.Background(), tripID, testActor()))

	err = svc.Cancel(context.Background(), tripID, "too late", testActor())
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateOrderDelivery(t *testing.T) {
	svc, mock := newTestService(t)
	seedFleet(mock, 1000)
	seedOrder(mock, 1, 300, 15000)

	tripID, err := svc.CreateTrip(context.Background(), createInput(1), testActor())
	require.NoError(t, err)

	// Delivery updates are only accepted while the trip runs.
	err = svc.UpdateOrderDelivery(context.Background(), tripID, 1, DeliveryInTransit, nil, testActor())
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, svc.Start(context.Background(), tripID, testActor()))
	require.NoError(t, svc.UpdateOrderDelivery(context.Background(), tripID, 1, DeliveryInTransit, nil, testActor()))
	assert.Equal(t, orders.StatusShipped, mock.orders[1].Status)

	notes := "left at gate"
	require.NoError(t, svc.UpdateOrderDelivery(context.Background(), tripID, 1, DeliveryDelivered, &notes, testActor()))

	assignment := mock.assignments[tripID][0]
	assert.Equal(t, DeliveryDelivered, assignment.DeliveryStatus)
	require.NotNil(t, assignment.ActualArrival)
	assert.Equal(t, testClock, *assignment.ActualArrival)

	assert.Equal(t, orders.StatusDelivered, mock.orders[1].Status)
	record := mock.shipping[1]
	require.NotNil(t, record.DeliveredAt)
	assert.Equal(t, &notes, record.DeliveryNotes)

	// Ship + deliver leaves two workflow rows.
	require.Len(t, mock.postingTx.workflowEvents, 2)
	assert.Equal(t, orders.StatusDelivered, mock.postingTx.workflowEvents[1].ToStatus)
	assert.Equal(t, "left at gate", mock.postingTx.workflowEvents[1].Comment)
}

func TestUpdateOrderDeliveryRejectsUnknownStatus(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.UpdateOrderDelivery(context.Background(), 1, 1, DeliveryStatus("lost"), nil, testActor())
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateOrderDeliveryUnknownAssignment(t *testing.T) {
	svc, mock := newTestService(t)
	seedFleet(mock, 1000)
	seedOrder(mock, 1, 300, 15000)
	seedOrder(mock, 2, 100, 5000)

	tripID, err := svc.CreateTrip(context.Background(), createInput(1), testActor())
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background(), tripID, testActor()))

	err = svc.UpdateOrderDelivery(context.Background(), tripID, 2, DeliveryDelivered, nil, testActor())
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}
