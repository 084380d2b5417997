package notification

import (
	"fmt"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
)

// BudgetAlertData feeds the budget alert template.
type BudgetAlertData struct {
	AccountName    string
	BudgetAmount   decimal.Decimal
	TotalExpenses  decimal.Decimal
	PercentageUsed decimal.Decimal
	Month          time.Time
}

// MonthlyReportData feeds the monthly report template.
type MonthlyReportData struct {
	Month        time.Time
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	ByCategory   map[string]decimal.Decimal
	Insights     []string
}

var budgetAlertTmpl = template.Must(template.New("budget_alert").Parse(
	`Heads up: you have used {{.Percentage}}% of your monthly budget.

Account: {{.AccountName}}
Budget: {{.Budget}}
Spent so far in {{.Month}}: {{.Spent}}
Remaining: {{.Remaining}}
`))

var monthlyReportTmpl = template.Must(template.New("monthly_report").Parse(
	`Your financial report for {{.Month}}:

Total income: {{.Income}}
Total expenses: {{.Expense}}
Net: {{.Net}}
{{if .Categories}}
Expenses by category:
{{range .Categories}}  - {{.Name}}: {{.Amount}}
{{end}}{{end}}
Insights:
{{range .Insights}}  * {{.}}
{{end}}`))

type budgetAlertView struct {
	AccountName string
	Percentage  string
	Budget      string
	Spent       string
	Remaining   string
	Month       string
}

type categoryLine struct {
	Name   string
	Amount string
}

type monthlyReportView struct {
	Month      string
	Income     string
	Expense    string
	Net        string
	Categories []categoryLine
	Insights   []string
}

// RenderBudgetAlert renders the budget threshold alert message.
func RenderBudgetAlert(data BudgetAlertData) (subject, body string, err error) {
	view := budgetAlertView{
		AccountName: data.AccountName,
		Percentage:  data.PercentageUsed.StringFixed(1),
		Budget:      data.BudgetAmount.StringFixed(2),
		Spent:       data.TotalExpenses.StringFixed(2),
		Remaining:   data.BudgetAmount.Sub(data.TotalExpenses).StringFixed(2),
		Month:       data.Month.Format("January 2006"),
	}

	var b strings.Builder
	if err := budgetAlertTmpl.Execute(&b, view); err != nil {
		return "", "", fmt.Errorf("failed to render budget alert: %w", err)
	}

	subject = fmt.Sprintf("Budget alert: %s%% used", view.Percentage)
	return subject, b.String(), nil
}

// RenderMonthlyReport renders the monthly report message. Categories are
// listed in deterministic order.
func RenderMonthlyReport(data MonthlyReportData) (subject, body string, err error) {
	names := make([]string, 0, len(data.ByCategory))
	for name := range data.ByCategory {
		names = append(names, name)
	}
	sort.Strings(names)

	view := monthlyReportView{
		Month:    data.Month.Format("January 2006"),
		Income:   data.TotalIncome.StringFixed(2),
		Expense:  data.TotalExpense.StringFixed(2),
		Net:      data.TotalIncome.Sub(data.TotalExpense).StringFixed(2),
		Insights: data.Insights,
	}
	for _, name := range names {
		view.Categories = append(view.Categories, categoryLine{Name: name, Amount: data.ByCategory[name].StringFixed(2)})
	}

	var b strings.Builder
	if err := monthlyReportTmpl.Execute(&b, view); err != nil {
		return "", "", fmt.Errorf("failed to render monthly report: %w", err)
	}

	subject = fmt.Sprintf("Your monthly financial report - %s", view.Month)
	return subject, b.String(), nil
}
