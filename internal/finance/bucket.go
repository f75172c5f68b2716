package finance

import (
	"fmt"
	"time"

	"gooms-backend/internal/models"

	"github.com/shopspring/decimal"
)

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

func ParsePeriod(s string) (Period, bool) {
	switch p := Period(s); p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return p, true
	}
	return "", false
}

// DefaultCount is how many buckets a chart shows when the caller does not say.
func (p Period) DefaultCount() int {
	switch p {
	case PeriodDaily:
		return 7
	case PeriodWeekly:
		return 8
	default:
		return 12
	}
}

type Bucket struct {
	Label   string          `json:"label"`
	Start   time.Time       `json:"start"`
	End     time.Time       `json:"end"` // exclusive
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// BucketStart returns the start of the bucket containing t. Weeks start on
// Monday (ISO 8601).
func BucketStart(t time.Time, p Period) time.Time {
	d := day(t)
	switch p {
	case PeriodWeekly:
		offset := (int(d.Weekday()) + 6) % 7
		return d.AddDate(0, 0, -offset)
	case PeriodMonthly:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return d
	}
}

func next(start time.Time, p Period) time.Time {
	switch p {
	case PeriodWeekly:
		return start.AddDate(0, 0, 7)
	case PeriodMonthly:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

func label(start time.Time, p Period) string {
	switch p {
	case PeriodWeekly:
		y, w := start.ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w)
	case PeriodMonthly:
		return start.Format("2006-01")
	default:
		return start.Format("2006-01-02")
	}
}

// Bucketize groups entries dated between from and to (both days inclusive)
// into consecutive buckets, ascending, with empty buckets zero-filled.
func Bucketize(entries []Entry, p Period, from, to time.Time) []Bucket {
	first := BucketStart(from, p)
	last := BucketStart(to, p)
	if last.Before(first) {
		return []Bucket{}
	}

	var buckets []Bucket
	index := make(map[string]int)
	for s := first; !s.After(last); s = next(s, p) {
		index[label(s, p)] = len(buckets)
		buckets = append(buckets, Bucket{
			Label:   label(s, p),
			Start:   s,
			End:     next(s, p),
			Income:  decimal.Zero,
			Expense: decimal.Zero,
			Net:     decimal.Zero,
		})
	}

	lo, hi := day(from), day(to).AddDate(0, 0, 1)
	for _, e := range entries {
		if e.Date.Before(lo) || !e.Date.Before(hi) {
			continue
		}
		i, ok := index[label(BucketStart(e.Date, p), p)]
		if !ok {
			continue
		}
		switch e.Type {
		case models.TransactionIncome:
			buckets[i].Income = buckets[i].Income.Add(e.Amount)
		case models.TransactionExpense:
			buckets[i].Expense = buckets[i].Expense.Add(e.Amount)
		}
	}
	for i := range buckets {
		buckets[i].Net = buckets[i].Income.Sub(buckets[i].Expense)
	}
	return buckets
}

// LastN returns the range covering the n buckets ending with the one that
// contains now.
func LastN(p Period, n int, now time.Time) (from, to time.Time) {
	if n < 1 {
		n = 1
	}
	end := BucketStart(now, p)
	start := end
	for i := 1; i < n; i++ {
		switch p {
		case PeriodWeekly:
			start = start.AddDate(0, 0, -7)
		case PeriodMonthly:
			start = start.AddDate(0, -1, 0)
		default:
			start = start.AddDate(0, 0, -1)
		}
	}
	return start, day(now)
}
