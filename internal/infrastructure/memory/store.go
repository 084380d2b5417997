package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fluxo/internal/domain/ledger"
)

// Store implements ledger.Store with in-memory storage. It is safe for
// concurrent use; CreateOccurrence holds the lock for its whole
// read-check-mutate sequence, giving the same all-or-nothing semantics the
// database store gets from SQL transactions. Data is lost on restart, so
// it serves tests and dev mode only.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]*ledger.Account
	transactions map[string]*ledger.Transaction
	budgets      map[string]*ledger.Budget
}

// NewStore creates an empty in-memory ledger store.
func NewStore() *Store {
	return &Store{
		accounts:     make(map[string]*ledger.Account),
		transactions: make(map[string]*ledger.Transaction),
		budgets:      make(map[string]*ledger.Budget),
	}
}

// PutAccount inserts or replaces an account.
func (s *Store) PutAccount(acc *ledger.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *acc
	s.accounts[acc.ID] = &cp
}

// PutTransaction inserts or replaces a transaction.
func (s *Store) PutTransaction(tx *ledger.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tx
	s.transactions[tx.ID] = &cp
}

// PutBudget inserts or replaces a budget.
func (s *Store) PutBudget(b *ledger.Budget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.budgets[b.ID] = &cp
}

// GetAccount implements ledger.Store.
func (s *Store) GetAccount(ctx context.Context, id string) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

// GetTransaction implements ledger.Store.
func (s *Store) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

// FindDue implements ledger.Store.
func (s *Store) FindDue(ctx context.Context, now time.Time) ([]*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*ledger.Transaction
	for _, tx := range s.transactions {
		if tx.DueAt(now) {
			cp := *tx
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	return due, nil
}

// CreateOccurrence implements ledger.Store. The whole mutation happens
// under one lock hold: re-check the due guard, advance the original,
// adjust the balance, insert the occurrence.
func (s *Store) CreateOccurrence(ctx context.Context, p ledger.OccurrenceParams) (*ledger.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orig, ok := s.transactions[p.Original.ID]
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}
	if !orig.DueAt(p.Now) {
		return nil, ledger.ErrNotDue
	}

	acc, ok := s.accounts[orig.AccountID]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}

	occ := orig.Occurrence(p.Now)

	now := p.Now
	next := p.Next
	orig.LastProcessed = &now
	orig.NextRecurringDate = &next
	orig.UpdatedAt = now

	acc.Balance = acc.Balance.Add(occ.SignedAmount())
	acc.UpdatedAt = now

	s.transactions[occ.ID] = occ

	cp := *occ
	return &cp, nil
}

// FindBudgets implements ledger.Store.
func (s *Store) FindBudgets(ctx context.Context) ([]*ledger.BudgetWithAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defaults := make(map[string]*ledger.Account)
	for _, acc := range s.accounts {
		if acc.IsDefault {
			defaults[acc.UserID] = acc
		}
	}

	var result []*ledger.BudgetWithAccount
	for _, b := range s.budgets {
		acc, ok := defaults[b.UserID]
		if !ok {
			continue
		}
		bCp := *b
		aCp := *acc
		result = append(result, &ledger.BudgetWithAccount{Budget: &bCp, Account: &aCp})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Budget.ID < result[j].Budget.ID })
	return result, nil
}

// AggregateExpenses implements ledger.Store.
func (s *Store) AggregateExpenses(ctx context.Context, userID, accountID string, from, to time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, tx := range s.transactions {
		if tx.UserID != userID || tx.AccountID != accountID {
			continue
		}
		if tx.Type != ledger.TypeExpense || tx.Status != ledger.StatusCompleted {
			continue
		}
		if tx.Date.Before(from) || !tx.Date.Before(to) {
			continue
		}
		total = total.Add(tx.Amount)
	}
	return total, nil
}

// MarkAlertSent implements ledger.Store.
func (s *Store) MarkAlertSent(ctx context.Context, budgetID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.budgets[budgetID]
	if !ok {
		return ledger.ErrBudgetNotFound
	}
	t := at
	b.LastAlertSent = &t
	b.UpdatedAt = at
	return nil
}

// ListUserIDs implements ledger.Store.
func (s *Store) ListUserIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var ids []string
	for _, acc := range s.accounts {
		if _, ok := seen[acc.UserID]; ok {
			continue
		}
		seen[acc.UserID] = struct{}{}
		ids = append(ids, acc.UserID)
	}
	sort.Strings(ids)
	return ids, nil
}

// FindTransactionsInRange implements ledger.Store.
func (s *Store) FindTransactionsInRange(ctx context.Context, userID string, from, to time.Time) ([]*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var txs []*ledger.Transaction
	for _, tx := range s.transactions {
		if tx.UserID != userID {
			continue
		}
		if tx.Date.Before(from) || !tx.Date.Before(to) {
			continue
		}
		cp := *tx
		txs = append(txs, &cp)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Date.Before(txs[j].Date) })
	return txs, nil
}

var _ ledger.Store = (*Store)(nil)
