package posting

import (
	"context"

	"github.com/millstone-erp/millstone-erp/internal/orders"
)

// TxRepository is the posting view of an already-open transaction. The
// poster never begins or commits: it always runs inside the trip engine's
// transaction so financial effects share the caller's all-or-nothing fate.
type TxRepository interface {
	GetAccountByType(ctx context.Context, t AccountType) (Account, error)
	// GetRevenueAccount prefers an account scoped to the branch and falls
	// back to a branch-less revenue account.
	GetRevenueAccount(ctx context.Context, branchID *int64) (Account, error)
	// LatestCustomerBalance returns the most recent balance_after for the
	// customer ordered by (transaction_date, id) descending; found=false
	// when the customer has no ledger rows yet.
	LatestCustomerBalance(ctx context.Context, customerID int64) (balance float64, found bool, err error)
	GetCustomerInitialDue(ctx context.Context, customerID int64) (float64, error)
	InsertLedgerEntry(ctx context.Context, entry LedgerEntry) (int64, error)
	UpdateCustomerBalance(ctx context.Context, customerID int64, balance float64) error
	InsertJournalEntry(ctx context.Context, entry JournalEntry) (int64, error)
	InsertTransactionLines(ctx context.Context, journalEntryID int64, lines []TransactionLine) error
	LinkJournalToLedger(ctx context.Context, ledgerEntryID, journalEntryID int64) error
	InsertWorkflowEvent(ctx context.Context, event orders.WorkflowEvent) error
}
