package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fluxo/internal/domain/ledger"
	"fluxo/internal/domain/notification"
)

// DefaultAlertThreshold is the budget usage percentage at which an alert
// fires.
var DefaultAlertThreshold = decimal.NewFromInt(80)

var oneHundred = decimal.NewFromInt(100)

// Evaluator periodically checks every user's current-month spending against
// their budget and sends at most one alert per user per calendar month.
type Evaluator struct {
	store     ledger.Store
	messenger notification.Messenger
	threshold decimal.Decimal
	log       zerolog.Logger
	now       func() time.Time
}

// NewEvaluator creates an evaluator with the given alert threshold
// (percentage of budget used).
func NewEvaluator(store ledger.Store, messenger notification.Messenger, threshold decimal.Decimal, log zerolog.Logger) *Evaluator {
	return &Evaluator{
		store:     store,
		messenger: messenger,
		threshold: threshold,
		log:       log,
		now:       time.Now,
	}
}

// RunPass evaluates every budget once. Errors for one user are logged and
// never abort the pass.
func (e *Evaluator) RunPass(ctx context.Context) error {
	rows, err := e.store.FindBudgets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list budgets: %w", err)
	}

	checked, alerted := 0, 0
	for _, row := range rows {
		checked++
		sent, err := e.evaluate(ctx, row)
		if err != nil {
			e.log.Error().
				Err(err).
				Str("user_id", row.Budget.UserID).
				Msg("Budget evaluation failed")
			continue
		}
		if sent {
			alerted++
		}
	}

	e.log.Info().Int("checked", checked).Int("alerted", alerted).Msg("Budget alert pass complete")
	return nil
}

// evaluate checks one budget against its default account's month-to-date
// expenses and reports whether an alert was sent.
func (e *Evaluator) evaluate(ctx context.Context, row *ledger.BudgetWithAccount) (bool, error) {
	b, acct := row.Budget, row.Account
	if acct == nil || !acct.IsDefault {
		// No default account, so no account owns the budget.
		return false, nil
	}
	if !b.Amount.IsPositive() {
		return false, nil
	}

	now := e.now()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	expenses, err := e.store.AggregateExpenses(ctx, b.UserID, acct.ID, firstOfMonth, now)
	if err != nil {
		return false, fmt.Errorf("failed to aggregate expenses: %w", err)
	}

	percentageUsed := expenses.Div(b.Amount).Mul(oneHundred)
	if percentageUsed.LessThan(e.threshold) {
		return false, nil
	}
	if b.LastAlertSent != nil && sameMonth(*b.LastAlertSent, now) {
		// Already alerted this calendar month.
		return false, nil
	}

	subject, body, err := notification.RenderBudgetAlert(notification.BudgetAlertData{
		AccountName:    acct.Name,
		BudgetAmount:   b.Amount,
		TotalExpenses:  expenses,
		PercentageUsed: percentageUsed,
		Month:          now,
	})
	if err != nil {
		return false, err
	}

	if err := e.messenger.Send(ctx, b.UserID, subject, body); err != nil {
		// LastAlertSent stays unset so the next pass retries delivery.
		return false, fmt.Errorf("failed to send budget alert: %w", err)
	}

	if err := e.store.MarkAlertSent(ctx, b.ID, now); err != nil {
		return true, fmt.Errorf("failed to record alert time: %w", err)
	}

	e.log.Info().
		Str("user_id", b.UserID).
		Str("percentage_used", percentageUsed.StringFixed(1)).
		Msg("Budget alert sent")
	return true, nil
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
