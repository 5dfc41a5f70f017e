package posting

import (
	"time"

	"github.com/google/uuid"
)

// AccountType classifies chart-of-accounts entries the poster needs.
type AccountType string

const (
	AccountTypeReceivable AccountType = "accounts_receivable"
	AccountTypeRevenue    AccountType = "revenue"
)

// Account is a chart-of-accounts row. The receivable account is a singleton
// by type; revenue accounts may be scoped to a branch with a branch-less
// fallback.
type Account struct {
	ID       int64
	Code     string
	Name     string
	Type     AccountType
	BranchID *int64
}

// LedgerEntry is one customer_ledger row. Entries are immutable once
// written except for the journal back-link.
type LedgerEntry struct {
	ID              int64
	CustomerID      int64
	OrderID         int64
	TransactionType string
	TransactionDate time.Time
	Debit           float64
	Credit          float64
	BalanceAfter    float64
	Description     string
	JournalEntryID  *int64
	CreatedBy       int64
	CreatedAt       time.Time
}

// LedgerTypeInvoice marks entries created when an order ships.
const LedgerTypeInvoice = "invoice"

// JournalEntry groups balanced transaction lines.
type JournalEntry struct {
	ID           int64
	EntryDate    time.Time
	SourceModule string
	SourceRef    uuid.UUID
	Memo         string
	PostedBy     int64
	CreatedAt    time.Time
}

// TransactionLine stores a debit or credit amount against an account.
type TransactionLine struct {
	ID             int64
	JournalEntryID int64
	AccountID      int64
	Debit          float64
	Credit         float64
}

// InvoiceInput carries everything needed to post a shipped order.
type InvoiceInput struct {
	OrderID     int64
	OrderNumber string
	CustomerID  int64
	BranchID    *int64
	Amount      float64
	Date        time.Time
	ActorID     int64
	// WorkflowComment is recorded on the order's ready_to_ship -> shipped
	// audit row, including the consolidation savings note when applicable.
	WorkflowComment string
}

// Result reports the rows created by one invoice posting.
type Result struct {
	LedgerEntryID  int64
	JournalEntryID int64
	NewBalance     float64
}
