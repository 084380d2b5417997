package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OccurrenceParams carries everything the store needs to materialize one
// occurrence of a recurring transaction in a single atomic unit.
type OccurrenceParams struct {
	// Original is the recurring transaction being re-fired.
	Original *Transaction
	// Now is the occurrence date, also recorded as the original's LastProcessed.
	Now time.Time
	// Next becomes the original's new NextRecurringDate.
	Next time.Time
}

// Store defines the interface for ledger data access.
// This interface is defined in the domain layer, but implemented in the
// infrastructure layer (postgres for production, memory for tests/dev).
type Store interface {
	// GetAccount retrieves an account by its ID.
	GetAccount(ctx context.Context, id string) (*Account, error)

	// GetTransaction retrieves a transaction by its ID.
	GetTransaction(ctx context.Context, id string) (*Transaction, error)

	// FindDue returns all transactions eligible for recurring reprocessing
	// at the given instant: recurring, COMPLETED, and either never processed
	// or with a next recurring date at or before now.
	FindDue(ctx context.Context, now time.Time) ([]*Transaction, error)

	// CreateOccurrence atomically inserts the occurrence transaction,
	// adjusts the account balance by the occurrence's signed amount, and
	// advances the original's LastProcessed/NextRecurringDate. If the
	// original no longer satisfies the due predicate it returns ErrNotDue
	// and leaves the ledger untouched.
	CreateOccurrence(ctx context.Context, p OccurrenceParams) (*Transaction, error)

	// FindBudgets returns every budget paired with the owning user's
	// default account. Users without a default account are omitted.
	FindBudgets(ctx context.Context) ([]*BudgetWithAccount, error)

	// AggregateExpenses sums completed EXPENSE amounts for the account in
	// the half-open range [from, to).
	AggregateExpenses(ctx context.Context, userID, accountID string, from, to time.Time) (decimal.Decimal, error)

	// MarkAlertSent records when a budget alert was last delivered.
	MarkAlertSent(ctx context.Context, budgetID string, at time.Time) error

	// ListUserIDs returns the IDs of all users owning at least one account.
	ListUserIDs(ctx context.Context) ([]string, error)

	// FindTransactionsInRange returns a user's transactions dated within
	// the half-open range [from, to).
	FindTransactionsInRange(ctx context.Context, userID string, from, to time.Time) ([]*Transaction, error)
}
