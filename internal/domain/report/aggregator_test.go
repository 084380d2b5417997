package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fluxo/internal/domain/ledger"
	"fluxo/internal/infrastructure/memory"
)

type mockInsights struct {
	generateFunc func(ctx context.Context, month time.Time, stats *MonthStats) ([]string, error)
	calls        int
}

func (m *mockInsights) Generate(ctx context.Context, month time.Time, stats *MonthStats) ([]string, error) {
	m.calls++
	if m.generateFunc != nil {
		return m.generateFunc(ctx, month, stats)
	}
	return []string{"insight one", "insight two", "insight three"}, nil
}

type sentMessage struct {
	userID  string
	subject string
	body    string
}

type mockMessenger struct {
	sendFunc func(ctx context.Context, userID, subject, body string) error
	sent     []sentMessage
}

func (m *mockMessenger) Send(ctx context.Context, userID, subject, body string) error {
	if m.sendFunc != nil {
		if err := m.sendFunc(ctx, userID, subject, body); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, sentMessage{userID: userID, subject: subject, body: body})
	return nil
}

func expense(id, userID, category, amount string, date time.Time) *ledger.Transaction {
	return &ledger.Transaction{
		ID: id, UserID: userID, AccountID: userID + "-acc",
		Type: ledger.TypeExpense, Amount: decimal.RequireFromString(amount),
		Date: date, Category: category, Status: ledger.StatusCompleted,
	}
}

func income(id, userID, amount string, date time.Time) *ledger.Transaction {
	return &ledger.Transaction{
		ID: id, UserID: userID, AccountID: userID + "-acc",
		Type: ledger.TypeIncome, Amount: decimal.RequireFromString(amount),
		Date: date, Status: ledger.StatusCompleted,
	}
}

func TestAggregate(t *testing.T) {
	month := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	mid := month.AddDate(0, 0, 14)

	txs := []*ledger.Transaction{
		income("i1", "u", "3000", mid),
		income("i2", "u", "150.25", mid),
		expense("e1", "u", "groceries", "420.10", mid),
		expense("e2", "u", "groceries", "79.90", mid),
		expense("e3", "u", "rent", "1200", mid),
		expense("e4", "u", "", "35", mid),
	}

	stats := Aggregate(month, txs)

	if want := decimal.RequireFromString("3150.25"); !stats.TotalIncome.Equal(want) {
		t.Errorf("TotalIncome = %s, want %s", stats.TotalIncome, want)
	}
	if want := decimal.RequireFromString("1735.00"); !stats.TotalExpense.Equal(want) {
		t.Errorf("TotalExpense = %s, want %s", stats.TotalExpense, want)
	}
	if stats.Count != 6 {
		t.Errorf("Count = %d, want 6", stats.Count)
	}

	wantCategories := map[string]string{
		"groceries":         "500.00",
		"rent":              "1200",
		UncategorizedBucket: "35",
	}
	if len(stats.ByCategory) != len(wantCategories) {
		t.Errorf("ByCategory has %d buckets, want %d: %v", len(stats.ByCategory), len(wantCategories), stats.ByCategory)
	}
	for name, amount := range wantCategories {
		if got, ok := stats.ByCategory[name]; !ok || !got.Equal(decimal.RequireFromString(amount)) {
			t.Errorf("ByCategory[%q] = %s, want %s", name, got, amount)
		}
	}
}

func TestAggregatorReportFor_PriorMonthWindow(t *testing.T) {
	now := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	store := memory.NewStore()

	inWindow := time.Date(2024, time.February, 10, 12, 0, 0, 0, time.UTC)
	beforeWindow := time.Date(2024, time.January, 31, 23, 0, 0, 0, time.UTC)
	afterWindow := now // the report month is February; March is excluded

	store.PutTransaction(expense("in", "user-1", "food", "100", inWindow))
	store.PutTransaction(expense("before", "user-1", "food", "999", beforeWindow))
	store.PutTransaction(expense("after", "user-1", "food", "999", afterWindow))

	insights := &mockInsights{}
	m := &mockMessenger{}
	agg := NewAggregator(store, insights, m, time.Second, zerolog.Nop())
	agg.now = func() time.Time { return now }

	if err := agg.ReportFor(context.Background(), "user-1"); err != nil {
		t.Fatalf("ReportFor() error = %v", err)
	}
	if len(m.sent) != 1 {
		t.Fatalf("sent %d reports, want 1", len(m.sent))
	}

	body := m.sent[0].body
	if !strings.Contains(body, "February 2024") {
		t.Errorf("report body missing month: %q", body)
	}
	if !strings.Contains(body, "Total expenses: 100.00") {
		t.Errorf("report should only count the in-window transaction: %q", body)
	}
	if !strings.Contains(body, "insight one") {
		t.Errorf("report body missing generated insight: %q", body)
	}
}

func TestAggregatorReportFor_ZeroTransactions(t *testing.T) {
	now := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
	insights := &mockInsights{}
	m := &mockMessenger{}
	agg := NewAggregator(memory.NewStore(), insights, m, time.Second, zerolog.Nop())
	agg.now = func() time.Time { return now }

	if err := agg.ReportFor(context.Background(), "user-1"); err != nil {
		t.Fatalf("ReportFor() error = %v", err)
	}
	if insights.calls != 1 {
		t.Errorf("insight generator called %d times, want 1 even with no transactions", insights.calls)
	}
	if len(m.sent) != 1 {
		t.Fatalf("sent %d reports, want 1", len(m.sent))
	}
	body := m.sent[0].body
	if !strings.Contains(body, "Total income: 0.00") || !strings.Contains(body, "Total expenses: 0.00") {
		t.Errorf("zero-transaction report should carry zero totals: %q", body)
	}
}

func TestAggregatorReportFor_InsightFailureUsesFallback(t *testing.T) {
	now := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		generateFunc func(ctx context.Context, month time.Time, stats *MonthStats) ([]string, error)
	}{
		{
			"generator error",
			func(ctx context.Context, month time.Time, stats *MonthStats) ([]string, error) {
				return nil, errors.New("model unavailable")
			},
		},
		{
			"empty result",
			func(ctx context.Context, month time.Time, stats *MonthStats) ([]string, error) {
				return nil, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockMessenger{}
			agg := NewAggregator(memory.NewStore(), &mockInsights{generateFunc: tt.generateFunc}, m, time.Second, zerolog.Nop())
			agg.now = func() time.Time { return now }

			if err := agg.ReportFor(context.Background(), "user-1"); err != nil {
				t.Fatalf("ReportFor() error = %v", err)
			}
			body := m.sent[0].body
			for _, insight := range fallbackInsights {
				if !strings.Contains(body, insight) {
					t.Errorf("report body missing fallback insight %q", insight)
				}
			}
		})
	}
}

func TestAggregatorJobs_OnePerUser(t *testing.T) {
	store := memory.NewStore()
	for _, userID := range []string{"user-1", "user-2", "user-3"} {
		store.PutAccount(&ledger.Account{
			ID: userID + "-acc", UserID: userID, Name: "Main",
			Type: ledger.AccountTypeCurrent, Balance: decimal.Zero,
		})
	}

	agg := NewAggregator(store, &mockInsights{}, &mockMessenger{}, time.Second, zerolog.Nop())
	jobs, err := agg.Jobs(context.Background())
	if err != nil {
		t.Fatalf("Jobs() error = %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("Jobs() returned %d jobs, want 3", len(jobs))
	}
	for i, want := range []string{"user-1", "user-2", "user-3"} {
		if jobs[i].UserID() != want {
			t.Errorf("job %d user = %q, want %q", i, jobs[i].UserID(), want)
		}
	}
}
