package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account types
const (
	AccountTypeCurrent = "CURRENT"
	AccountTypeSavings = "SAVINGS"
)

// Transaction types
const (
	TypeIncome  = "INCOME"
	TypeExpense = "EXPENSE"
)

// Transaction statuses
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// Interval is the recurrence interval of a recurring transaction.
type Interval string

const (
	IntervalDaily   Interval = "DAILY"
	IntervalWeekly  Interval = "WEEKLY"
	IntervalMonthly Interval = "MONTHLY"
	IntervalYearly  Interval = "YEARLY"
)

var validIntervals = map[Interval]struct{}{
	IntervalDaily:   {},
	IntervalWeekly:  {},
	IntervalMonthly: {},
	IntervalYearly:  {},
}

var validAccountTypes = map[string]struct{}{
	AccountTypeCurrent: {},
	AccountTypeSavings: {},
}

var validTransactionTypes = map[string]struct{}{
	TypeIncome:  {},
	TypeExpense: {},
}

// Domain errors
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrBudgetNotFound      = errors.New("budget not found")
	// ErrNotDue is returned by CreateOccurrence when the original transaction
	// no longer satisfies the due predicate. Callers treat it as a benign
	// no-op: the occurrence was already materialized by an earlier delivery.
	ErrNotDue = errors.New("transaction is not due")

	ErrInvalidAccountType     = errors.New("invalid account type")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrMissingInterval        = errors.New("recurring transaction requires an interval")
	ErrUnexpectedInterval     = errors.New("non-recurring transaction must not carry recurrence fields")
	ErrInvalidInterval        = errors.New("invalid recurring interval")
)

// Account represents a financial account owned by a single user.
type Account struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	IsDefault bool            `json:"isDefault"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Validate checks the account invariants.
func (a *Account) Validate() error {
	if a.ID == "" {
		return errors.New("account ID is required")
	}
	if a.UserID == "" {
		return errors.New("valid user ID is required")
	}
	if a.Name == "" {
		return errors.New("account name is required")
	}
	if !IsValidAccountType(a.Type) {
		return ErrInvalidAccountType
	}
	return nil
}

// Transaction represents one ledger entry. Amount is always positive; the
// sign applied to the account balance is implied by Type.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	AccountID   string          `json:"accountId"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Status      string          `json:"status"`

	IsRecurring       bool       `json:"isRecurring"`
	RecurringInterval *Interval  `json:"recurringInterval,omitempty"`
	NextRecurringDate *time.Time `json:"nextRecurringDate,omitempty"`
	LastProcessed     *time.Time `json:"lastProcessed,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks the transaction invariants. Recurring transactions must
// carry an interval; non-recurring ones must not carry any recurrence field.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return errors.New("transaction ID is required")
	}
	if t.UserID == "" {
		return errors.New("valid user ID is required")
	}
	if t.AccountID == "" {
		return errors.New("account ID is required")
	}
	if !IsValidTransactionType(t.Type) {
		return ErrInvalidTransactionType
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.IsRecurring {
		if t.RecurringInterval == nil {
			return ErrMissingInterval
		}
		if !IsValidInterval(*t.RecurringInterval) {
			return ErrInvalidInterval
		}
	} else if t.RecurringInterval != nil || t.NextRecurringDate != nil || t.LastProcessed != nil {
		return ErrUnexpectedInterval
	}
	return nil
}

// DueAt reports whether the transaction is eligible for recurring
// reprocessing at the given instant: recurring, completed, and either never
// processed or scheduled at or before now.
func (t *Transaction) DueAt(now time.Time) bool {
	if !t.IsRecurring || t.Status != StatusCompleted || t.RecurringInterval == nil {
		return false
	}
	if t.LastProcessed == nil {
		return true
	}
	return t.NextRecurringDate != nil && !t.NextRecurringDate.After(now)
}

// SignedAmount returns the amount with the sign the transaction applies to
// its account balance: positive for INCOME, negative for EXPENSE.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TypeExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Occurrence builds the materialized instance of a recurring transaction:
// a fresh non-recurring COMPLETED entry dated at the given instant, cloning
// type, amount, category, account and user from the original.
func (t *Transaction) Occurrence(now time.Time) *Transaction {
	return &Transaction{
		ID:          uuid.New().String(),
		UserID:      t.UserID,
		AccountID:   t.AccountID,
		Type:        t.Type,
		Amount:      t.Amount,
		Date:        now,
		Description: t.Description + " (Recurring)",
		Category:    t.Category,
		Status:      StatusCompleted,
		IsRecurring: false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Budget is a single monthly spending limit per user.
type Budget struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Amount        decimal.Decimal `json:"amount"`
	LastAlertSent *time.Time      `json:"lastAlertSent,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// BudgetWithAccount pairs a budget with the owning user's default account.
type BudgetWithAccount struct {
	Budget  *Budget
	Account *Account
}

// IsValidAccountType checks if the provided account type is valid.
func IsValidAccountType(t string) bool {
	_, ok := validAccountTypes[t]
	return ok
}

// IsValidTransactionType checks if the provided transaction type is valid.
func IsValidTransactionType(t string) bool {
	_, ok := validTransactionTypes[t]
	return ok
}

// IsValidInterval checks if the provided recurrence interval is valid.
func IsValidInterval(iv Interval) bool {
	_, ok := validIntervals[iv]
	return ok
}
