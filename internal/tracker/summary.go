package tracker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/danangw/duitku/internal/domain"
)

// Reporter exposes the read side needed for summaries.
type Reporter interface {
	Entries(ctx context.Context, year, month int) ([]domain.Entry, error)
	Positions(ctx context.Context) ([]domain.Position, error)
	Budgets(ctx context.Context) ([]domain.Budget, error)
	SpentByCategory(ctx context.Context, year, month int) (map[string]float64, error)
}

// MonthSummary aggregates one month of ledger activity.
type MonthSummary struct {
	Year     int
	Month    time.Month
	Income   float64
	Expenses float64
	Invested float64
	Budgets  []BudgetStatus
}

// BudgetStatus compares month-to-date spend against one category cap.
type BudgetStatus struct {
	Category string
	Limit    float64
	Spent    float64
}

// Over reports whether the cap is exhausted.
func (b BudgetStatus) Over() bool { return b.Spent > b.Limit }

// Summarize computes the month's totals. Transfers net to zero by
// construction and are excluded; asset rows count as invested capital.
func Summarize(ctx context.Context, r Reporter, year int, month time.Month) (*MonthSummary, error) {
	entries, err := r.Entries(ctx, year, int(month))
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}

	s := &MonthSummary{Year: year, Month: month}
	for _, e := range entries {
		switch e.Kind {
		case domain.EntryIncome:
			s.Income += e.Amount
		case domain.EntryExpense:
			s.Expenses += e.Amount
		case domain.EntryAsset:
			s.Invested += e.Amount
		}
	}

	budgets, err := r.Budgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load budgets: %w", err)
	}
	spent, err := r.SpentByCategory(ctx, year, int(month))
	if err != nil {
		return nil, fmt.Errorf("load spend: %w", err)
	}
	for _, b := range budgets {
		s.Budgets = append(s.Budgets, BudgetStatus{
			Category: b.Category,
			Limit:    b.Amount,
			Spent:    spent[b.Category],
		})
	}
	sort.Slice(s.Budgets, func(i, j int) bool { return s.Budgets[i].Category < s.Budgets[j].Category })

	return s, nil
}

// Render formats the summary as a plain-text report.
func (s *MonthSummary) Render(currency string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summary for %s %d\n", s.Month, s.Year)
	fmt.Fprintf(&b, "Income:   %s %.0f\n", currency, s.Income)
	fmt.Fprintf(&b, "Expenses: %s %.0f\n", currency, s.Expenses)
	fmt.Fprintf(&b, "Invested: %s %.0f\n", currency, s.Invested)
	if len(s.Budgets) > 0 {
		b.WriteString("Budgets:\n")
		for _, bs := range s.Budgets {
			marker := ""
			if bs.Over() {
				marker = " (over)"
			}
			fmt.Fprintf(&b, "  %s: %.0f / %.0f%s\n", bs.Category, bs.Spent, bs.Limit, marker)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
