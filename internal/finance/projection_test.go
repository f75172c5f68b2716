package finance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monthBucket(start time.Time, income, expense string) Bucket {
	b := Bucket{Label: start.Format("2006-01"), Start: start, End: start.AddDate(0, 1, 0), Income: dec(income), Expense: dec(expense)}
	b.Net = b.Income.Sub(b.Expense)
	return b
}

func TestProject(t *testing.T) {
	history := []Bucket{
		monthBucket(date(2025, 1, 1), "1000", "800"),
		monthBucket(date(2025, 2, 1), "2000", "600"),
		monthBucket(date(2025, 3, 1), "3000", "1000"),
	}
	projections := map[string]decimal.Decimal{"2025-05": dec("5000")}

	months := Project(history, projections, 3, dec("500"))
	require.Len(t, months, 3)

	assert.Equal(t, "2025-04", months[0].Label)
	assert.Equal(t, SourceHistory, months[0].IncomeSource)
	assert.Equal(t, "2000", months[0].Income.String())
	assert.Equal(t, "800", months[0].Expense.String())
	assert.Equal(t, "1700", months[0].Balance.String())

	assert.Equal(t, "2025-05", months[1].Label)
	assert.Equal(t, SourceSalesProjection, months[1].IncomeSource)
	assert.Equal(t, "4200", months[1].Net.String())
	assert.Equal(t, "5900", months[1].Balance.String())

	assert.Equal(t, "2025-06", months[2].Label)
	assert.Equal(t, "7100", months[2].Balance.String())
}

func TestProject_NoHistory(t *testing.T) {
	months := Project(nil, map[string]decimal.Decimal{"2026-02": dec("100"), "2026-01": dec("50")}, 2, decimal.Zero)
	require.Len(t, months, 2)
	assert.Equal(t, "2026-01", months[0].Label)
	assert.Equal(t, "50", months[0].Net.String())
	assert.Equal(t, "150", months[1].Balance.String())
}

func TestProject_ZeroMonths(t *testing.T) {
	assert.Empty(t, Project(nil, nil, 0, decimal.Zero))
}
