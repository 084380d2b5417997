package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fluxo/internal/domain/ledger"
)

// LedgerRepository implements the ledger.Store interface for PostgreSQL.
// All balance mutation runs inside SQL transactions so a crash never
// leaves the account balance inconsistent with the set of completed
// transactions.
type LedgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new PostgreSQL ledger repository.
func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const transactionColumns = `id, user_id, account_id, type, amount, date, description, category, status,
       is_recurring, recurring_interval, next_recurring_date, last_processed, created_at, updated_at`

// GetAccount retrieves an account by its ID.
func (r *LedgerRepository) GetAccount(ctx context.Context, id string) (*ledger.Account, error) {
	query := `
		SELECT id, user_id, name, type, balance, is_default, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	var acc ledger.Account
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&acc.ID, &acc.UserID, &acc.Name, &acc.Type,
		&acc.Balance, &acc.IsDefault, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &acc, nil
}

// GetTransaction retrieves a transaction by its ID.
func (r *LedgerRepository) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

// FindDue returns all transactions eligible for recurring reprocessing.
func (r *LedgerRepository) FindDue(ctx context.Context, now time.Time) ([]*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE is_recurring = TRUE
		  AND status = $1
		  AND (last_processed IS NULL OR next_recurring_date <= $2)
		ORDER BY next_recurring_date NULLS FIRST
	`

	rows, err := r.db.QueryContext(ctx, query, ledger.StatusCompleted, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find due transactions: %w", err)
	}
	defer rows.Close()

	var due []*ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		due = append(due, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate due transactions: %w", err)
	}

	return due, nil
}

// CreateOccurrence materializes one occurrence of a recurring transaction
// in a single database transaction: advance the original under a
// conditional due guard, adjust the balance, insert the occurrence row.
// The guard makes repeated deliveries of the same work item no-ops.
func (r *LedgerRepository) CreateOccurrence(ctx context.Context, p ledger.OccurrenceParams) (*ledger.Transaction, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	// Conditional advance doubles as the idempotency guard: zero rows
	// means another delivery already materialized this occurrence.
	res, err := dbTx.ExecContext(ctx, `
		UPDATE transactions
		SET last_processed = $2, next_recurring_date = $3, updated_at = $2
		WHERE id = $1
		  AND is_recurring = TRUE
		  AND status = $4
		  AND (last_processed IS NULL OR next_recurring_date <= $2)
	`, p.Original.ID, p.Now, p.Next, ledger.StatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to advance recurring transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return nil, ledger.ErrNotDue
	}

	occ := p.Original.Occurrence(p.Now)

	res, err = dbTx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance + $2, updated_at = $3
		WHERE id = $1
	`, occ.AccountID, occ.SignedAmount(), p.Now)
	if err != nil {
		return nil, fmt.Errorf("failed to update account balance: %w", err)
	}
	affected, err = res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return nil, ledger.ErrAccountNotFound
	}

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO transactions
			(id, user_id, account_id, type, amount, date, description, category, status,
			 is_recurring, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $10)
	`, occ.ID, occ.UserID, occ.AccountID, occ.Type, occ.Amount, occ.Date,
		occ.Description, occ.Category, occ.Status, p.Now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert occurrence: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit occurrence: %w", err)
	}

	return occ, nil
}

// FindBudgets returns every budget joined with the owning user's default
// account. Users without a default account are omitted.
func (r *LedgerRepository) FindBudgets(ctx context.Context) ([]*ledger.BudgetWithAccount, error) {
	query := `
		SELECT b.id, b.user_id, b.amount, b.last_alert_sent, b.created_at, b.updated_at,
		       a.id, a.user_id, a.name, a.type, a.balance, a.is_default, a.created_at, a.updated_at
		FROM budgets b
		JOIN accounts a ON a.user_id = b.user_id AND a.is_default = TRUE
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to find budgets: %w", err)
	}
	defer rows.Close()

	var result []*ledger.BudgetWithAccount
	for rows.Next() {
		var b ledger.Budget
		var acc ledger.Account
		var lastAlertSent sql.NullTime

		err := rows.Scan(
			&b.ID, &b.UserID, &b.Amount, &lastAlertSent, &b.CreatedAt, &b.UpdatedAt,
			&acc.ID, &acc.UserID, &acc.Name, &acc.Type, &acc.Balance, &acc.IsDefault,
			&acc.CreatedAt, &acc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		if lastAlertSent.Valid {
			t := lastAlertSent.Time
			b.LastAlertSent = &t
		}

		result = append(result, &ledger.BudgetWithAccount{Budget: &b, Account: &acc})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate budgets: %w", err)
	}

	return result, nil
}

// AggregateExpenses sums completed EXPENSE amounts for the account in
// [from, to).
func (r *LedgerRepository) AggregateExpenses(ctx context.Context, userID, accountID string, from, to time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1 AND account_id = $2
		  AND type = $3 AND status = $4
		  AND date >= $5 AND date < $6
	`

	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, query,
		userID, accountID, ledger.TypeExpense, ledger.StatusCompleted, from, to,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to aggregate expenses: %w", err)
	}

	return total, nil
}

// MarkAlertSent records when a budget alert was last delivered.
func (r *LedgerRepository) MarkAlertSent(ctx context.Context, budgetID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE budgets SET last_alert_sent = $2, updated_at = $2 WHERE id = $1
	`, budgetID, at)
	if err != nil {
		return fmt.Errorf("failed to mark alert sent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ledger.ErrBudgetNotFound
	}
	return nil
}

// ListUserIDs returns the IDs of all users owning at least one account.
func (r *LedgerRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return ids, nil
}

// FindTransactionsInRange returns a user's transactions dated in [from, to).
func (r *LedgerRepository) FindTransactionsInRange(ctx context.Context, userID string, from, to time.Time) ([]*ledger.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1 AND date >= $2 AND date < $3
		ORDER BY date
	`

	rows, err := r.db.QueryContext(ctx, query, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to find transactions: %w", err)
	}
	defer rows.Close()

	var txs []*ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return txs, nil
}

// scanner abstracts *sql.Row(s).Scan so one mapper serves both.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (*ledger.Transaction, error) {
	var tx ledger.Transaction
	var interval sql.NullString
	var nextDate, lastProcessed sql.NullTime

	err := s.Scan(
		&tx.ID, &tx.UserID, &tx.AccountID, &tx.Type, &tx.Amount, &tx.Date,
		&tx.Description, &tx.Category, &tx.Status,
		&tx.IsRecurring, &interval, &nextDate, &lastProcessed,
		&tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if interval.Valid {
		iv := ledger.Interval(interval.String)
		tx.RecurringInterval = &iv
	}
	if nextDate.Valid {
		t := nextDate.Time
		tx.NextRecurringDate = &t
	}
	if lastProcessed.Valid {
		t := lastProcessed.Time
		tx.LastProcessed = &t
	}

	return &tx, nil
}

var _ ledger.Store = (*LedgerRepository)(nil)
