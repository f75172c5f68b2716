package finance

import (
	"sort"
	"time"

	"gooms-backend/internal/models"

	"github.com/shopspring/decimal"
)

// Entry is the part of a ledger line the aggregations need.
type Entry struct {
	Type     models.TransactionType
	Category string
	Amount   decimal.Decimal
	Date     time.Time
}

func EntriesFromTransactions(txs []models.FinancialTransaction) []Entry {
	out := make([]Entry, 0, len(txs))
	for _, t := range txs {
		out = append(out, Entry{Type: t.Type, Category: t.Category, Amount: t.Amount, Date: t.Date})
	}
	return out
}

type CategoryTotal struct {
	Type     models.TransactionType `json:"type"`
	Category string                 `json:"category"`
	Amount   decimal.Decimal        `json:"amount"`
	Count    int                    `json:"count"`
}

type CashFlow struct {
	Income     decimal.Decimal `json:"income"`
	Expense    decimal.Decimal `json:"expense"`
	Net        decimal.Decimal `json:"net"`
	Count      int             `json:"count"`
	ByCategory []CategoryTotal `json:"by_category"`
}

// Summarize totals a set of ledger entries. Net is always exactly
// income - expense. Categories are sorted by type, then amount descending.
func Summarize(entries []Entry) CashFlow {
	cf := CashFlow{Income: decimal.Zero, Expense: decimal.Zero}

	type key struct {
		t models.TransactionType
		c string
	}
	totals := make(map[key]*CategoryTotal)

	for _, e := range entries {
		switch e.Type {
		case models.TransactionIncome:
			cf.Income = cf.Income.Add(e.Amount)
		case models.TransactionExpense:
			cf.Expense = cf.Expense.Add(e.Amount)
		default:
			continue
		}
		cf.Count++

		k := key{e.Type, e.Category}
		ct, ok := totals[k]
		if !ok {
			ct = &CategoryTotal{Type: e.Type, Category: e.Category, Amount: decimal.Zero}
			totals[k] = ct
		}
		ct.Amount = ct.Amount.Add(e.Amount)
		ct.Count++
	}
	cf.Net = cf.Income.Sub(cf.Expense)

	cf.ByCategory = make([]CategoryTotal, 0, len(totals))
	for _, ct := range totals {
		cf.ByCategory = append(cf.ByCategory, *ct)
	}
	sort.Slice(cf.ByCategory, func(i, j int) bool {
		a, b := cf.ByCategory[i], cf.ByCategory[j]
		if a.Type != b.Type {
			return a.Type == models.TransactionIncome
		}
		if !a.Amount.Equal(b.Amount) {
			return a.Amount.GreaterThan(b.Amount)
		}
		return a.Category < b.Category
	})
	return cf
}
