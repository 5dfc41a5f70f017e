package trips

import (
	"context"
	"time"

	"github.com/millstone-erp/millstone-erp/internal/accounting/posting"
	"github.com/millstone-erp/millstone-erp/internal/fleet"
	"github.com/millstone-erp/millstone-erp/internal/orders"
)

// mockRepository backs the service tests with in-memory state and error
// injection. WithTx shares state with the non-transactional reads; callers
// relying on capacity or status checks exercise them against the same maps
// a real transaction would lock.
type mockRepository struct {
	trips       map[int64]*Trip
	assignments map[int64][]Assignment
	shipping    map[int64]orders.ShippingRecord
	orders      map[int64]*orders.CreditOrder
	vehicles    map[int64]fleet.Vehicle
	drivers     map[int64]*fleet.Driver
	nextTripID  int64

	postingTx *mockPostingTx

	// Error injection
	txError               error
	insertTripError       error
	insertAssignmentError error
	setOrderStatusError   error
	setDriverError        error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		trips:       make(map[int64]*Trip),
		assignments: make(map[int64][]Assignment),
		shipping:    make(map[int64]orders.ShippingRecord),
		orders:      make(map[int64]*orders.CreditOrder),
		vehicles:    make(map[int64]fleet.Vehicle),
		drivers:     make(map[int64]*fleet.Driver),
		nextTripID:  1,
		postingTx:   newMockPostingTx(),
	}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if m.txError != nil {
		return m.txError
	}
	return fn(ctx, &mockTxRepo{mock: m})
}

func (m *mockRepository) GetTrip(ctx context.Context, id int64) (Trip, error) {
	trip, ok := m.trips[id]
	if !ok {
		return Trip{}, ErrTripNotFound
	}
	return *trip, nil
}

func (m *mockRepository) ListTrips(ctx context.Context, filter ListFilter) ([]TripSummary, error) {
	var out []TripSummary
	for _, trip := range m.trips {
		if filter.Status != nil && trip.Status != *filter.Status {
			continue
		}
		out = append(out, TripSummary{Trip: *trip})
	}
	return out, nil
}

func (m *mockRepository) ListAssignmentDetails(ctx context.Context, tripID int64) ([]AssignmentDetail, error) {
	var out []AssignmentDetail
	for _, a := range m.assignments[tripID] {
		detail := AssignmentDetail{Assignment: a}
		if order, ok := m.orders[a.OrderID]; ok {
			detail.OrderNumber = order.OrderNumber
			detail.CustomerName = order.CustomerName
			detail.TotalWeightKg = order.TotalWeightKg
			detail.TotalAmount = order.TotalAmount
		}
		out = append(out, detail)
	}
	return out, nil
}

type mockTxRepo struct {
	mock *mockRepository
}

func (t *mockTxRepo) InsertTrip(ctx context.Context, trip Trip) (int64, error) {
	if t.mock.insertTripError != nil {
		return 0, t.mock.insertTripError
	}
	id := t.mock.nextTripID
	t.mock.nextTripID++
	trip.ID = id
	t.mock.trips[id] = &trip
	return id, nil
}

func (t *mockTxRepo) GetTripForUpdate(ctx context.Context, id int64) (Trip, error) {
	return t.mock.GetTrip(ctx, id)
}

func (t *mockTxRepo) UpdateTripTotals(ctx context.Context, trip Trip) error {
	stored, ok := t.mock.trips[trip.ID]
	if !ok {
		return ErrTripNotFound
	}
	stored.TotalOrders = trip.TotalOrders
	stored.TotalWeightKg = trip.TotalWeightKg
	stored.RemainingCapacityKg = trip.RemainingCapacityKg
	stored.TripType = trip.TripType
	return nil
}

func (t *mockTxRepo) SetTripStatus(ctx context.Context, id int64, status Status, startedAt, endedAt *time.Time) error {
	trip, ok := t.mock.trips[id]
	if !ok {
		return ErrTripNotFound
	}
	trip.Status = status
	if startedAt != nil {
		trip.ActualStartTime = startedAt
	}
	if endedAt != nil {
		trip.ActualEndTime = endedAt
	}
	return nil
}

func (t *mockTxRepo) SetTripNotes(ctx context.Context, id int64, notes string) error {
	trip, ok := t.mock.trips[id]
	if !ok {
		return ErrTripNotFound
	}
	trip.Notes = notes
	return nil
}

func (t *mockTxRepo) InsertAssignment(ctx context.Context, a Assignment) error {
	if t.mock.insertAssignmentError != nil {
		return t.mock.insertAssignmentError
	}
	for _, lists := range t.mock.assignments {
		for _, existing := range lists {
			if existing.OrderID == a.OrderID {
				return ErrOrderAlreadyAssigned
			}
		}
	}
	t.mock.assignments[a.TripID] = append(t.mock.assignments[a.TripID], a)
	return nil
}

func (t *mockTxRepo) ListAssignments(ctx context.Context, tripID int64) ([]Assignment, error) {
	return append([]Assignment{}, t.mock.assignments[tripID]...), nil
}

func (t *mockTxRepo) GetAssignment(ctx context.Context, tripID, orderID int64) (Assignment, error) {
	for _, a := range t.mock.assignments[tripID] {
		if a.OrderID == orderID {
			return a, nil
		}
	}
	return Assignment{}, ErrAssignmentNotFound
}

func (t *mockTxRepo) SetAssignmentDelivery(ctx context.Context, tripID, orderID int64, status DeliveryStatus, arrival *time.Time, notes *string) error {
	list := t.mock.assignments[tripID]
	for i := range list {
		if list[i].OrderID == orderID {
			list[i].DeliveryStatus = status
			if arrival != nil {
				list[i].ActualArrival = arrival
			}
			if notes != nil {
				list[i].DeliveryNotes = notes
			}
			return nil
		}
	}
	return ErrAssignmentNotFound
}

func (t *mockTxRepo) CountUndelivered(ctx context.Context, tripID int64) (int, error) {
	count := 0
	for _, a := range t.mock.assignments[tripID] {
		if a.DeliveryStatus != DeliveryDelivered {
			count++
		}
	}
	return count, nil
}

func (t *mockTxRepo) DeleteAssignments(ctx context.Context, tripID int64) error {
	delete(t.mock.assignments, tripID)
	return nil
}

func (t *mockTxRepo) GetOrderForUpdate(ctx context.Context, orderID int64) (orders.CreditOrder, error) {
	order, ok := t.mock.orders[orderID]
	if !ok {
		return orders.CreditOrder{}, ErrOrderNotFound
	}
	return *order, nil
}

func (t *mockTxRepo) IsOrderAssigned(ctx context.Context, orderID int64) (bool, error) {
	for _, list := range t.mock.assignments {
		for _, a := range list {
			if a.OrderID == orderID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (t *mockTxRepo) SetOrderStatus(ctx context.Context, orderID int64, status orders.Status) error {
	if t.mock.setOrderStatusError != nil {
		return t.mock.setOrderStatusError
	}
	order, ok := t.mock.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	order.Status = status
	return nil
}

func (t *mockTxRepo) UpsertShippingRecord(ctx context.Context, record orders.ShippingRecord) error {
	t.mock.shipping[record.OrderID] = record
	return nil
}

func (t *mockTxRepo) MarkShippingDelivered(ctx context.Context, orderID int64, deliveredAt time.Time, notes *string) error {
	record, ok := t.mock.shipping[orderID]
	if !ok {
		return nil
	}
	record.DeliveredAt = &deliveredAt
	if notes != nil {
		record.DeliveryNotes = notes
	}
	t.mock.shipping[orderID] = record
	return nil
}

func (t *mockTxRepo) DeleteShippingRecords(ctx context.Context, tripID int64) error {
	for orderID, record := range t.mock.shipping {
		if record.TripID == tripID {
			delete(t.mock.shipping, orderID)
		}
	}
	return nil
}

func (t *mockTxRepo) GetVehicle(ctx context.Context, id int64) (fleet.Vehicle, error) {
	vehicle, ok := t.mock.vehicles[id]
	if !ok {
		return fleet.Vehicle{}, ErrVehicleNotFound
	}
	return vehicle, nil
}

func (t *mockTxRepo) GetDriverForUpdate(ctx context.Context, id int64) (fleet.Driver, error) {
	driver, ok := t.mock.drivers[id]
	if !ok {
		return fleet.Driver{}, ErrDriverNotFound
	}
	return *driver, nil
}

func (t *mockTxRepo) SetDriverAvailability(ctx context.Context, driverID int64, available bool, assignedVehicleID *int64) error {
	if t.mock.setDriverError != nil {
		return t.mock.setDriverError
	}
	driver, ok := t.mock.drivers[driverID]
	if !ok {
		return ErrDriverNotFound
	}
	driver.IsAvailable = available
	driver.AssignedVehicleID = assignedVehicleID
	return nil
}

func (t *mockTxRepo) Posting() posting.TxRepository {
	return t.mock.postingTx
}

// mockPostingTx is a map-backed posting.TxRepository shared by trip and
// poster tests in spirit; each package carries its own copy.
type mockPostingTx struct {
	accounts       map[posting.AccountType]posting.Account
	ledgerBalances map[int64]float64
	initialDue     map[int64]float64
	balances       map[int64]float64
	ledger         []posting.LedgerEntry
	journals       []posting.JournalEntry
	lines          map[int64][]posting.TransactionLine
	workflowEvents []orders.WorkflowEvent
	nextID         int64

	accountError error
	ledgerError  error
}

func newMockPostingTx() *mockPostingTx {
	m := &mockPostingTx{
		accounts:       make(map[posting.AccountType]posting.Account),
		ledgerBalances: make(map[int64]float64),
		initialDue:     make(map[int64]float64),
		balances:       make(map[int64]float64),
		lines:          make(map[int64][]posting.TransactionLine),
		nextID:         1,
	}
	m.accounts[posting.AccountTypeReceivable] = posting.Account{ID: 11, Code: "1200", Type: posting.AccountTypeReceivable}
	m.accounts[posting.AccountTypeRevenue] = posting.Account{ID: 41, Code: "4000", Type: posting.AccountTypeRevenue}
	return m
}

func (m *mockPostingTx) GetAccountByType(ctx context.Context, t posting.AccountType) (posting.Account, error) {
	if m.accountError != nil {
		return posting.Account{}, m.accountError
	}
	account, ok := m.accounts[t]
	if !ok {
		return posting.Account{}, posting.ErrAccountingNotConfigured
	}
	return account, nil
}

func (m *mockPostingTx) GetRevenueAccount(ctx context.Context, branchID *int64) (posting.Account, error) {
	return m.GetAccountByType(ctx, posting.AccountTypeRevenue)
}

func (m *mockPostingTx) LatestCustomerBalance(ctx context.Context, customerID int64) (float64, bool, error) {
	if m.ledgerError != nil {
		return 0, false, m.ledgerError
	}
	balance, ok := m.ledgerBalances[customerID]
	return balance, ok, nil
}

func (m *mockPostingTx) GetCustomerInitialDue(ctx context.Context, customerID int64) (float64, error) {
	return m.initialDue[customerID], nil
}

func (m *mockPostingTx) InsertLedgerEntry(ctx context.Context, entry posting.LedgerEntry) (int64, error) {
	entry.ID = m.nextID
	m.nextID++
	m.ledger = append(m.ledger, entry)
	m.ledgerBalances[entry.CustomerID] = entry.BalanceAfter
	return entry.ID, nil
}

func (m *mockPostingTx) UpdateCustomerBalance(ctx context.Context, customerID int64, balance float64) error {
	m.balances[customerID] = balance
	return nil
}

func (m *mockPostingTx) InsertJournalEntry(ctx context.Context, entry posting.JournalEntry) (int64, error) {
	entry.ID = m.nextID
	m.nextID++
	m.journals = append(m.journals, entry)
	return entry.ID, nil
}

func (m *mockPostingTx) InsertTransactionLines(ctx context.Context, journalEntryID int64, lines []posting.TransactionLine) error {
	m.lines[journalEntryID] = append([]posting.TransactionLine{}, lines...)
	return nil
}

func (m *mockPostingTx) LinkJournalToLedger(ctx context.Context, ledgerEntryID, journalEntryID int64) error {
	for i := range m.ledger {
		if m.ledger[i].ID == ledgerEntryID {
			id := journalEntryID
			m.ledger[i].JournalEntryID = &id
		}
	}
	return nil
}

func (m *mockPostingTx) InsertWorkflowEvent(ctx context.Context, event orders.WorkflowEvent) error {
	m.workflowEvents = append(m.workflowEvents, event)
	return nil
}
