package dashboard

import (
	"testing"
	"time"

	"gooms-backend/internal/finance"
	"gooms-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCashChart_DailyDefaults(t *testing.T) {
	now := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
	entries := []finance.Entry{
		{Type: models.TransactionIncome, Category: "sales", Amount: decimal.NewFromInt(300), Date: time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)},
		{Type: models.TransactionExpense, Category: "rent", Amount: decimal.NewFromInt(120), Date: time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)},
	}

	resp := BuildCashChart(entries, finance.PeriodDaily, finance.PeriodDaily.DefaultCount(), now)
	require.Len(t, resp.Points, 7)
	assert.Equal(t, "2025-03-06", resp.From)
	assert.Equal(t, "2025-03-12", resp.To)
	assert.Equal(t, "-120", resp.Points[0].Net.String())
	assert.Equal(t, "300", resp.Points[6].Income.String())
	assert.Equal(t, "180", resp.GrandTotals.Net.String())
}

func TestBuildCashChart_Monthly(t *testing.T) {
	now := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	resp := BuildCashChart(nil, finance.PeriodMonthly, 12, now)
	require.Len(t, resp.Points, 12)
	assert.Equal(t, "2024-04", resp.Points[0].Label)
	assert.Equal(t, "2025-03", resp.Points[11].Label)
	assert.True(t, resp.GrandTotals.Income.IsZero())
}
