package posting

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/millstone-erp/millstone-erp/internal/orders"
)

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction with the posting view.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

func (r *txRepository) GetAccountByType(ctx context.Context, t AccountType) (Account, error) {
	var a Account
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, account_type, branch_id FROM accounts WHERE account_type=$1 LIMIT 1`, t).
		Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.BranchID)
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) GetRevenueAccount(ctx context.Context, branchID *int64) (Account, error) {
	var a Account
	if branchID != nil {
		err := r.tx.QueryRow(ctx, `SELECT id, code, name, account_type, branch_id FROM accounts WHERE account_type=$1 AND branch_id=$2 LIMIT 1`, AccountTypeRevenue, *branchID).
			Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.BranchID)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return Account{}, err
		}
	}
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, account_type, branch_id FROM accounts WHERE account_type=$1 AND branch_id IS NULL LIMIT 1`, AccountTypeRevenue).
		Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.BranchID)
	if err != nil {
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) LatestCustomerBalance(ctx context.Context, customerID int64) (float64, bool, error) {
	var balance float64
	err := r.tx.QueryRow(ctx, `SELECT balance_after FROM customer_ledger WHERE customer_id=$1 ORDER BY transaction_date DESC, id DESC LIMIT 1`, customerID).
		Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return balance, true, nil
}

func (r *txRepository) GetCustomerInitialDue(ctx context.Context, customerID int64) (float64, error) {
	var due float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(initial_due, 0) FROM customers WHERE id=$1`, customerID).Scan(&due)
	if err != nil {
		return 0, err
	}
	return due, nil
}

func (r *txRepository) InsertLedgerEntry(ctx context.Context, entry LedgerEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO customer_ledger (customer_id, order_id, transaction_type, transaction_date, debit, credit, balance_after, description, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		entry.CustomerID, entry.OrderID, entry.TransactionType, entry.TransactionDate, entry.Debit, entry.Credit, entry.BalanceAfter, entry.Description, entry.CreatedBy).
		Scan(&id)
	return id, err
}

func (r *txRepository) UpdateCustomerBalance(ctx context.Context, customerID int64, balance float64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE customers SET current_balance=$2 WHERE id=$1`, customerID, balance)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, entry JournalEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (entry_date, source_module, source_ref, memo, posted_by)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		entry.EntryDate, entry.SourceModule, entry.SourceRef, entry.Memo, entry.PostedBy).
		Scan(&id)
	return id, err
}

func (r *txRepository) InsertTransactionLines(ctx context.Context, journalEntryID int64, lines []TransactionLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO transaction_lines (journal_entry_id, account_id, debit, credit) VALUES ($1,$2,$3,$4)`,
			journalEntryID, line.AccountID, line.Debit, line.Credit); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) LinkJournalToLedger(ctx context.Context, ledgerEntryID, journalEntryID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE customer_ledger SET journal_entry_id=$2 WHERE id=$1`, ledgerEntryID, journalEntryID)
	return err
}

func (r *txRepository) InsertWorkflowEvent(ctx context.Context, event orders.WorkflowEvent) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO credit_order_workflow (order_id, from_status, to_status, performed_by, comment, created_at)
VALUES ($1,$2,$3,$4,$5,COALESCE($6, NOW()))`,
		event.OrderID, event.FromStatus, event.ToStatus, event.PerformedBy, event.Comment, event.CreatedAt)
	return err
}
