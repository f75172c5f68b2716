package finance

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SourceSalesProjection = "sales_projection"
	SourceHistory         = "history_average"
)

type ProjectedMonth struct {
	Label        string          `json:"label"` // 2006-01
	Start        time.Time       `json:"start"`
	Income       decimal.Decimal `json:"income"`
	Expense      decimal.Decimal `json:"expense"`
	Net          decimal.Decimal `json:"net"`
	Balance      decimal.Decimal `json:"balance"`
	IncomeSource string          `json:"income_source"`
}

// Project runs a monthly cash forecast for the months following history.
// history holds monthly buckets in ascending order; projections maps a month
// label (2006-01) to projected sales revenue. Income for a month is its
// projected revenue when present, otherwise the historical monthly income
// average; expense is always the historical monthly expense average. Balance
// accumulates from opening.
func Project(history []Bucket, projections map[string]decimal.Decimal, months int, opening decimal.Decimal) []ProjectedMonth {
	if months < 1 {
		return []ProjectedMonth{}
	}

	avgIncome, avgExpense := decimal.Zero, decimal.Zero
	if n := len(history); n > 0 {
		for _, b := range history {
			avgIncome = avgIncome.Add(b.Income)
			avgExpense = avgExpense.Add(b.Expense)
		}
		count := decimal.NewFromInt(int64(n))
		avgIncome = avgIncome.Div(count).Round(2)
		avgExpense = avgExpense.Div(count).Round(2)
	}

	start := projectionStart(history, projections)
	balance := opening
	out := make([]ProjectedMonth, 0, months)
	for i := 0; i < months; i++ {
		m := start.AddDate(0, i, 0)
		lbl := m.Format("2006-01")

		income, source := avgIncome, SourceHistory
		if rev, ok := projections[lbl]; ok {
			income, source = rev, SourceSalesProjection
		}
		net := income.Sub(avgExpense)
		balance = balance.Add(net)

		out = append(out, ProjectedMonth{
			Label:        lbl,
			Start:        m,
			Income:       income,
			Expense:      avgExpense,
			Net:          net,
			Balance:      balance,
			IncomeSource: source,
		})
	}
	return out
}

// The forecast starts the month after the last historical bucket. Without
// history it starts at the earliest projected month, or the current month.
func projectionStart(history []Bucket, projections map[string]decimal.Decimal) time.Time {
	if n := len(history); n > 0 {
		return BucketStart(history[n-1].Start, PeriodMonthly).AddDate(0, 1, 0)
	}
	if len(projections) > 0 {
		labels := make([]string, 0, len(projections))
		for l := range projections {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		if t, err := time.Parse("2006-01", labels[0]); err == nil {
			return t
		}
	}
	return BucketStart(time.Now(), PeriodMonthly)
}
