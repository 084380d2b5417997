package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fluxo/internal/domain/ledger"
	"fluxo/internal/domain/notification"
)

// UncategorizedBucket is the catch-all category for expenses with no
// category. Categories are user-defined free-form strings, so the mapping
// is open-keyed.
const UncategorizedBucket = "Uncategorized"

// fallbackInsights stands in when the insight collaborator fails or times
// out. The report is never blocked on that dependency.
var fallbackInsights = []string{
	"Your highest expense category this month might need attention.",
	"Consider setting up a budget for better financial management.",
	"Track your recurring expenses to identify potential savings.",
}

// MonthStats is one user's aggregate for a calendar month.
type MonthStats struct {
	Month        time.Time
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	ByCategory   map[string]decimal.Decimal
	Count        int
}

// InsightGenerator produces short commentary strings for a month's stats.
// Implemented by the Gemini client in the infrastructure layer.
type InsightGenerator interface {
	Generate(ctx context.Context, month time.Time, stats *MonthStats) ([]string, error)
}

// Aggregator builds each user's prior-month report and hands it to the
// messenger, one job per user so users process in parallel on the worker
// pool.
type Aggregator struct {
	store          ledger.Store
	insights       InsightGenerator
	messenger      notification.Messenger
	insightTimeout time.Duration
	log            zerolog.Logger
	now            func() time.Time
}

// NewAggregator creates a monthly report aggregator. insightTimeout bounds
// each insight-generation call.
func NewAggregator(store ledger.Store, insights InsightGenerator, messenger notification.Messenger, insightTimeout time.Duration, log zerolog.Logger) *Aggregator {
	if insightTimeout <= 0 {
		insightTimeout = 30 * time.Second
	}
	return &Aggregator{
		store:          store,
		insights:       insights,
		messenger:      messenger,
		insightTimeout: insightTimeout,
		log:            log,
		now:            time.Now,
	}
}

// Jobs returns one report job per known user.
func (a *Aggregator) Jobs(ctx context.Context) ([]*UserReportJob, error) {
	userIDs, err := a.store.ListUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	jobs := make([]*UserReportJob, 0, len(userIDs))
	for _, id := range userIDs {
		jobs = append(jobs, &UserReportJob{userID: id, agg: a})
	}
	return jobs, nil
}

// ReportFor aggregates one user's prior-month transactions, generates
// insights and sends the report. A user with zero transactions still
// receives an all-zero report.
func (a *Aggregator) ReportFor(ctx context.Context, userID string) error {
	now := a.now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)
	to := from.AddDate(0, 1, 0)

	txs, err := a.store.FindTransactionsInRange(ctx, userID, from, to)
	if err != nil {
		return fmt.Errorf("failed to load transactions for user %s: %w", userID, err)
	}

	stats := Aggregate(from, txs)
	insights := a.generateInsights(ctx, from, stats)

	subject, body, err := notification.RenderMonthlyReport(notification.MonthlyReportData{
		Month:        from,
		TotalIncome:  stats.TotalIncome,
		TotalExpense: stats.TotalExpense,
		ByCategory:   stats.ByCategory,
		Insights:     insights,
	})
	if err != nil {
		return err
	}

	if err := a.messenger.Send(ctx, userID, subject, body); err != nil {
		return fmt.Errorf("failed to send monthly report to user %s: %w", userID, err)
	}

	a.log.Info().
		Str("user_id", userID).
		Int("transactions", stats.Count).
		Str("income", stats.TotalIncome.StringFixed(2)).
		Str("expense", stats.TotalExpense.StringFixed(2)).
		Msg("Monthly report sent")
	return nil
}

// generateInsights invokes the collaborator with a bounded timeout and
// substitutes the fixed fallback list on any failure.
func (a *Aggregator) generateInsights(ctx context.Context, month time.Time, stats *MonthStats) []string {
	ctx, cancel := context.WithTimeout(ctx, a.insightTimeout)
	defer cancel()

	insights, err := a.insights.Generate(ctx, month, stats)
	if err != nil || len(insights) == 0 {
		if err != nil {
			a.log.Warn().Err(err).Msg("Insight generation failed, using fallback")
		}
		return fallbackInsights
	}
	return insights
}

// Aggregate sums a month's transactions: income and expense totals plus
// expenses grouped by category. Unknown categories land in the catch-all
// bucket instead of failing.
func Aggregate(month time.Time, txs []*ledger.Transaction) *MonthStats {
	stats := &MonthStats{
		Month:        month,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		ByCategory:   make(map[string]decimal.Decimal),
		Count:        len(txs),
	}

	for _, tx := range txs {
		switch tx.Type {
		case ledger.TypeIncome:
			stats.TotalIncome = stats.TotalIncome.Add(tx.Amount)
		case ledger.TypeExpense:
			stats.TotalExpense = stats.TotalExpense.Add(tx.Amount)
			category := tx.Category
			if category == "" {
				category = UncategorizedBucket
			}
			stats.ByCategory[category] = stats.ByCategory[category].Add(tx.Amount)
		}
	}

	return stats
}

// UserReportJob generates and sends one user's monthly report. It
// implements the scheduler's Job interface.
type UserReportJob struct {
	userID string
	agg    *Aggregator
}

// Execute runs the report job.
func (j *UserReportJob) Execute(ctx context.Context) error {
	return j.agg.ReportFor(ctx, j.userID)
}

// UserID returns the user the report belongs to.
func (j *UserReportJob) UserID() string {
	return j.userID
}

// Description returns a human-readable description of the job.
func (j *UserReportJob) Description() string {
	return "monthly report"
}
