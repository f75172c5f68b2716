package finance

import (
	"math/rand"
	"testing"
	"time"

	"gooms-backend/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(typ models.TransactionType, category, amount string, date time.Time) Entry {
	return Entry{Type: typ, Category: category, Amount: decimal.RequireFromString(amount), Date: date}
}

func TestSummarize(t *testing.T) {
	d := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	cf := Summarize([]Entry{
		entry(models.TransactionIncome, "sales", "1200.50", d),
		entry(models.TransactionIncome, "sales", "99.50", d),
		entry(models.TransactionIncome, "grants", "500", d),
		entry(models.TransactionExpense, "purchases", "800.10", d),
		entry(models.TransactionExpense, "rent", "1000", d),
	})

	assert.Equal(t, "1800.00", cf.Income.StringFixed(2))
	assert.Equal(t, "1800.10", cf.Expense.StringFixed(2))
	assert.Equal(t, "-0.10", cf.Net.StringFixed(2))
	assert.Equal(t, 5, cf.Count)

	require.Len(t, cf.ByCategory, 4)
	assert.Equal(t, "sales", cf.ByCategory[0].Category)
	assert.Equal(t, 2, cf.ByCategory[0].Count)
	assert.Equal(t, "grants", cf.ByCategory[1].Category)
	assert.Equal(t, "rent", cf.ByCategory[2].Category)
	assert.Equal(t, "purchases", cf.ByCategory[3].Category)
}

func TestSummarize_Empty(t *testing.T) {
	cf := Summarize(nil)
	assert.True(t, cf.Income.IsZero())
	assert.True(t, cf.Expense.IsZero())
	assert.True(t, cf.Net.IsZero())
	assert.NotNil(t, cf.ByCategory)
}

func TestSummarize_NetIsIncomeMinusExpense(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	categories := []string{"sales", "rent", "wages", "purchases", "other"}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for round := 0; round < 200; round++ {
		n := rng.Intn(60)
		entries := make([]Entry, 0, n)
		income, expense := decimal.Zero, decimal.Zero
		for i := 0; i < n; i++ {
			amt := decimal.New(rng.Int63n(10_000_000)+1, -2)
			typ := models.TransactionIncome
			if rng.Intn(2) == 0 {
				typ = models.TransactionExpense
				expense = expense.Add(amt)
			} else {
				income = income.Add(amt)
			}
			entries = append(entries, Entry{
				Type:     typ,
				Category: categories[rng.Intn(len(categories))],
				Amount:   amt,
				Date:     base.AddDate(0, 0, rng.Intn(365)),
			})
		}

		cf := Summarize(entries)
		require.True(t, cf.Income.Equal(income), "round %d income", round)
		require.True(t, cf.Expense.Equal(expense), "round %d expense", round)
		require.True(t, cf.Net.Equal(income.Sub(expense)), "round %d net", round)

		sum := decimal.Zero
		for _, ct := range cf.ByCategory {
			if ct.Type == models.TransactionIncome {
				sum = sum.Add(ct.Amount)
			} else {
				sum = sum.Sub(ct.Amount)
			}
		}
		require.True(t, sum.Equal(cf.Net), "round %d categories", round)
	}
}
