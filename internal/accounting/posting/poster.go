package posting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/millstone-erp/millstone-erp/internal/orders"
)

var (
	// ErrAccountingNotConfigured indicates a required chart-of-accounts
	// entry is missing. Fatal for the enclosing transaction: an invoice is
	// never posted unbalanced or half-posted.
	ErrAccountingNotConfigured = errors.New("posting: required account not configured")
	// ErrUnbalancedPosting indicates debit and credit lines would not net
	// to zero.
	ErrUnbalancedPosting = errors.New("posting: journal lines do not balance")
)

// SourceModule tags journal entries created by shipment invoicing.
const SourceModule = "logistics.shipping"

// Poster writes the financial side effects of a shipped order: one customer
// ledger entry, one journal entry with a balanced AR-debit/Revenue-credit
// pair, the updated running customer balance, and the order workflow audit
// row.
type Poster struct {
	now func() time.Time
}

// NewPoster constructs a Poster.
func NewPoster() *Poster {
	return &Poster{now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (p *Poster) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// PostInvoice records the invoice for one shipped order inside the caller's
// transaction.
func (p *Poster) PostInvoice(ctx context.Context, tx TxRepository, in InvoiceInput) (Result, error) {
	if in.Amount <= 0 {
		return Result{}, fmt.Errorf("posting: invoice amount must be positive, got %.2f", in.Amount)
	}

	receivable, err := tx.GetAccountByType(ctx, AccountTypeReceivable)
	if err != nil {
		return Result{}, fmt.Errorf("%w: accounts receivable: %v", ErrAccountingNotConfigured, err)
	}
	revenue, err := tx.GetRevenueAccount(ctx, in.BranchID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: revenue: %v", ErrAccountingNotConfigured, err)
	}

	prevBalance, found, err := tx.LatestCustomerBalance(ctx, in.CustomerID)
	if err != nil {
		return Result{}, fmt.Errorf("posting: latest balance: %w", err)
	}
	if !found {
		prevBalance, err = tx.GetCustomerInitialDue(ctx, in.CustomerID)
		if err != nil {
			return Result{}, fmt.Errorf("posting: initial due: %w", err)
		}
	}
	newBalance := prevBalance + in.Amount

	date := in.Date
	if date.IsZero() {
		date = p.now()
	}

	ledgerID, err := tx.InsertLedgerEntry(ctx, LedgerEntry{
		CustomerID:      in.CustomerID,
		OrderID:         in.OrderID,
		TransactionType: LedgerTypeInvoice,
		TransactionDate: date,
		Debit:           in.Amount,
		Credit:          0,
		BalanceAfter:    newBalance,
		Description:     fmt.Sprintf("Invoice for order %s", in.OrderNumber),
		CreatedBy:       in.ActorID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("posting: insert ledger entry: %w", err)
	}

	if err := tx.UpdateCustomerBalance(ctx, in.CustomerID, newBalance); err != nil {
		return Result{}, fmt.Errorf("posting: update customer balance: %w", err)
	}

	lines := []TransactionLine{
		{AccountID: receivable.ID, Debit: in.Amount, Credit: 0},
		{AccountID: revenue.ID, Debit: 0, Credit: in.Amount},
	}
	if err := validateBalanced(lines, in.Amount); err != nil {
		return Result{}, err
	}

	journalID, err := tx.InsertJournalEntry(ctx, JournalEntry{
		EntryDate:    date,
		SourceModule: SourceModule,
		SourceRef:    uuid.New(),
		Memo:         fmt.Sprintf("Shipment invoice, order %s", in.OrderNumber),
		PostedBy:     in.ActorID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("posting: insert journal entry: %w", err)
	}
	if err := tx.InsertTransactionLines(ctx, journalID, lines); err != nil {
		return Result{}, fmt.Errorf("posting: insert lines: %w", err)
	}
	if err := tx.LinkJournalToLedger(ctx, ledgerID, journalID); err != nil {
		return Result{}, fmt.Errorf("posting: link journal: %w", err)
	}

	if err := tx.InsertWorkflowEvent(ctx, orders.WorkflowEvent{
		OrderID:     in.OrderID,
		FromStatus:  orders.StatusReadyToShip,
		ToStatus:    orders.StatusShipped,
		PerformedBy: in.ActorID,
		Comment:     in.WorkflowComment,
		CreatedAt:   p.now(),
	}); err != nil {
		return Result{}, fmt.Errorf("posting: workflow event: %w", err)
	}

	return Result{LedgerEntryID: ledgerID, JournalEntryID: journalID, NewBalance: newBalance}, nil
}

func validateBalanced(lines []TransactionLine, amount float64) error {
	var debits, credits float64
	for _, line := range lines {
		debits += line.Debit
		credits += line.Credit
	}
	if debits != credits || debits != amount {
		return fmt.Errorf("%w: debit %.2f credit %.2f amount %.2f", ErrUnbalancedPosting, debits, credits, amount)
	}
	return nil
}
