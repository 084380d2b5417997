package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fluxo/internal/domain/ledger"
)

func seedStore(balance int64) (*Store, *ledger.Transaction) {
	store := NewStore()
	store.PutAccount(&ledger.Account{
		ID: "acc-1", UserID: "user-1", Name: "Main",
		Type: ledger.AccountTypeCurrent, Balance: decimal.NewFromInt(balance), IsDefault: true,
	})
	iv := ledger.IntervalMonthly
	tx := &ledger.Transaction{
		ID: "tx-1", UserID: "user-1", AccountID: "acc-1",
		Type: ledger.TypeExpense, Amount: decimal.NewFromInt(50),
		Date:   time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		Status: ledger.StatusCompleted, Description: "Rent",
		IsRecurring: true, RecurringInterval: &iv,
	}
	store.PutTransaction(tx)
	return store, tx
}

func TestStoreCreateOccurrence(t *testing.T) {
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	next := now.AddDate(0, 1, 0)
	store, tx := seedStore(1000)

	occ, err := store.CreateOccurrence(context.Background(), ledger.OccurrenceParams{
		Original: tx, Now: now, Next: next,
	})
	if err != nil {
		t.Fatalf("CreateOccurrence() error = %v", err)
	}

	acc, _ := store.GetAccount(context.Background(), "acc-1")
	if want := decimal.NewFromInt(950); !acc.Balance.Equal(want) {
		t.Errorf("balance = %s, want %s", acc.Balance, want)
	}

	orig, _ := store.GetTransaction(context.Background(), "tx-1")
	if orig.LastProcessed == nil || !orig.LastProcessed.Equal(now) {
		t.Errorf("LastProcessed = %v, want %s", orig.LastProcessed, now)
	}
	if orig.NextRecurringDate == nil || !orig.NextRecurringDate.Equal(next) {
		t.Errorf("NextRecurringDate = %v, want %s", orig.NextRecurringDate, next)
	}

	stored, err := store.GetTransaction(context.Background(), occ.ID)
	if err != nil {
		t.Fatalf("occurrence not stored: %v", err)
	}
	if stored.IsRecurring {
		t.Error("stored occurrence must not be recurring")
	}
}

func TestStoreCreateOccurrence_NotDueGuard(t *testing.T) {
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	next := now.AddDate(0, 1, 0)
	store, tx := seedStore(1000)

	if _, err := store.CreateOccurrence(context.Background(), ledger.OccurrenceParams{
		Original: tx, Now: now, Next: next,
	}); err != nil {
		t.Fatalf("first CreateOccurrence() error = %v", err)
	}

	// Second materialization for the same delivery must hit the guard.
	_, err := store.CreateOccurrence(context.Background(), ledger.OccurrenceParams{
		Original: tx, Now: now, Next: next,
	})
	if !errors.Is(err, ledger.ErrNotDue) {
		t.Fatalf("second CreateOccurrence() error = %v, want %v", err, ledger.ErrNotDue)
	}

	acc, _ := store.GetAccount(context.Background(), "acc-1")
	if want := decimal.NewFromInt(950); !acc.Balance.Equal(want) {
		t.Errorf("balance = %s after guarded duplicate, want %s", acc.Balance, want)
	}
}

func TestStoreCreateOccurrence_ConcurrentDuplicates(t *testing.T) {
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	next := now.AddDate(0, 1, 0)
	store, tx := seedStore(1000)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.CreateOccurrence(context.Background(), ledger.OccurrenceParams{
				Original: tx, Now: now, Next: next,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ledger.ErrNotDue):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("%d concurrent materializations succeeded, want exactly 1", succeeded)
	}

	acc, _ := store.GetAccount(context.Background(), "acc-1")
	if want := decimal.NewFromInt(950); !acc.Balance.Equal(want) {
		t.Errorf("balance = %s, want %s (single debit)", acc.Balance, want)
	}
}

func TestStoreCreateOccurrence_MissingRows(t *testing.T) {
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

	t.Run("transaction missing", func(t *testing.T) {
		store, _ := seedStore(1000)
		_, err := store.CreateOccurrence(context.Background(), ledger.OccurrenceParams{
			Original: &ledger.Transaction{ID: "ghost"}, Now: now, Next: now,
		})
		if !errors.Is(err, ledger.ErrTransactionNotFound) {
			t.Errorf("error = %v, want %v", err, ledger.ErrTransactionNotFound)
		}
	})

	t.Run("account missing", func(t *testing.T) {
		store, tx := seedStore(1000)
		tx.AccountID = "ghost-acc"
		store.PutTransaction(tx)
		_, err := store.CreateOccurrence(context.Background(), ledger.OccurrenceParams{
			Original: tx, Now: now, Next: now,
		})
		if !errors.Is(err, ledger.ErrAccountNotFound) {
			t.Errorf("error = %v, want %v", err, ledger.ErrAccountNotFound)
		}
	})
}

func TestStoreAggregateExpenses(t *testing.T) {
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	from := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	store, _ := seedStore(1000)

	put := func(id, txType, status, amount string, date time.Time) {
		store.PutTransaction(&ledger.Transaction{
			ID: id, UserID: "user-1", AccountID: "acc-1",
			Type: txType, Status: status,
			Amount: decimal.RequireFromString(amount), Date: date,
		})
	}

	put("e1", ledger.TypeExpense, ledger.StatusCompleted, "100.50", from.Add(24*time.Hour))
	put("e2", ledger.TypeExpense, ledger.StatusCompleted, "49.50", from.Add(48*time.Hour))
	put("skip-income", ledger.TypeIncome, ledger.StatusCompleted, "1000", from.Add(24*time.Hour))
	put("skip-pending", ledger.TypeExpense, ledger.StatusPending, "77", from.Add(24*time.Hour))
	put("skip-last-month", ledger.TypeExpense, ledger.StatusCompleted, "88", from.Add(-24*time.Hour))

	total, err := store.AggregateExpenses(context.Background(), "user-1", "acc-1", from, now)
	if err != nil {
		t.Fatalf("AggregateExpenses() error = %v", err)
	}
	if want := decimal.RequireFromString("150.00"); !total.Equal(want) {
		t.Errorf("AggregateExpenses() = %s, want %s", total, want)
	}
}

func TestStoreFindBudgets_RequiresDefaultAccount(t *testing.T) {
	store := NewStore()
	store.PutBudget(&ledger.Budget{ID: "b-1", UserID: "user-1", Amount: decimal.NewFromInt(100)})
	store.PutAccount(&ledger.Account{
		ID: "acc-1", UserID: "user-1", Name: "Side",
		Type: ledger.AccountTypeSavings,
	})

	rows, err := store.FindBudgets(context.Background())
	if err != nil {
		t.Fatalf("FindBudgets() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("FindBudgets() returned %d rows without a default account, want 0", len(rows))
	}

	store.PutAccount(&ledger.Account{
		ID: "acc-2", UserID: "user-1", Name: "Main",
		Type: ledger.AccountTypeCurrent, IsDefault: true,
	})
	rows, _ = store.FindBudgets(context.Background())
	if len(rows) != 1 || rows[0].Account.ID != "acc-2" {
		t.Errorf("FindBudgets() = %+v, want the default account pairing", rows)
	}
}

func TestStoreListUserIDs(t *testing.T) {
	store := NewStore()
	for _, acc := range []struct{ id, user string }{
		{"a1", "user-2"}, {"a2", "user-1"}, {"a3", "user-1"},
	} {
		store.PutAccount(&ledger.Account{
			ID: acc.id, UserID: acc.user, Name: "Main", Type: ledger.AccountTypeCurrent,
		})
	}

	ids, err := store.ListUserIDs(context.Background())
	if err != nil {
		t.Fatalf("ListUserIDs() error = %v", err)
	}
	if len(ids) != 2 || ids[0] != "user-1" || ids[1] != "user-2" {
		t.Errorf("ListUserIDs() = %v, want [user-1 user-2]", ids)
	}
}
