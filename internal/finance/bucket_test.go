package finance

import (
	"testing"
	"time"

	"gooms-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParsePeriod(t *testing.T) {
	p, ok := ParsePeriod("weekly")
	assert.True(t, ok)
	assert.Equal(t, PeriodWeekly, p)
	assert.Equal(t, 8, p.DefaultCount())
	assert.Equal(t, 7, PeriodDaily.DefaultCount())
	assert.Equal(t, 12, PeriodMonthly.DefaultCount())

	_, ok = ParsePeriod("yearly")
	assert.False(t, ok)
}

func TestBucketStart(t *testing.T) {
	// 2025-03-09 is a Sunday
	sunday := date(2025, 3, 9).Add(15 * time.Hour)
	assert.Equal(t, date(2025, 3, 3), BucketStart(sunday, PeriodWeekly))
	assert.Equal(t, date(2025, 3, 10), BucketStart(date(2025, 3, 10), PeriodWeekly))
	assert.Equal(t, date(2025, 3, 1), BucketStart(sunday, PeriodMonthly))
	assert.Equal(t, date(2025, 3, 9), BucketStart(sunday, PeriodDaily))
}

func TestBucketize_DailyZeroFill(t *testing.T) {
	entries := []Entry{
		entry(models.TransactionIncome, "sales", "100", date(2025, 3, 1)),
		entry(models.TransactionExpense, "rent", "40", date(2025, 3, 1).Add(20*time.Hour)),
		entry(models.TransactionIncome, "sales", "10", date(2025, 3, 3)),
		entry(models.TransactionIncome, "sales", "999", date(2025, 3, 4)),
	}

	buckets := Bucketize(entries, PeriodDaily, date(2025, 3, 1), date(2025, 3, 3))
	require.Len(t, buckets, 3)
	assert.Equal(t, "2025-03-01", buckets[0].Label)
	assert.Equal(t, "60", buckets[0].Net.String())
	assert.Equal(t, "2025-03-02", buckets[1].Label)
	assert.True(t, buckets[1].Income.IsZero())
	assert.True(t, buckets[1].Net.IsZero())
	assert.Equal(t, "10", buckets[2].Income.String())
}

func TestBucketize_WeeklyStartsMonday(t *testing.T) {
	entries := []Entry{
		entry(models.TransactionIncome, "sales", "5", date(2025, 3, 9)),  // Sunday, week 10
		entry(models.TransactionIncome, "sales", "7", date(2025, 3, 10)), // Monday, week 11
	}

	buckets := Bucketize(entries, PeriodWeekly, date(2025, 3, 5), date(2025, 3, 20))
	require.Len(t, buckets, 3)
	assert.Equal(t, "2025-W10", buckets[0].Label)
	assert.Equal(t, date(2025, 3, 3), buckets[0].Start)
	assert.Equal(t, date(2025, 3, 10), buckets[0].End)
	assert.Equal(t, "5", buckets[0].Income.String())
	assert.Equal(t, "2025-W11", buckets[1].Label)
	assert.Equal(t, "7", buckets[1].Income.String())
	assert.Equal(t, "2025-W12", buckets[2].Label)
	assert.True(t, buckets[2].Income.IsZero())
}

func TestBucketize_Monthly(t *testing.T) {
	entries := []Entry{
		entry(models.TransactionExpense, "rent", "1000", date(2024, 12, 31)),
		entry(models.TransactionIncome, "sales", "300", date(2025, 2, 14)),
	}

	buckets := Bucketize(entries, PeriodMonthly, date(2024, 12, 1), date(2025, 2, 28))
	require.Len(t, buckets, 3)
	assert.Equal(t, []string{"2024-12", "2025-01", "2025-02"}, []string{buckets[0].Label, buckets[1].Label, buckets[2].Label})
	assert.Equal(t, "-1000", buckets[0].Net.String())
	assert.True(t, buckets[1].Net.IsZero())
	assert.Equal(t, "300", buckets[2].Net.String())
}

func TestBucketize_InvertedRange(t *testing.T) {
	assert.Empty(t, Bucketize(nil, PeriodDaily, date(2025, 3, 5), date(2025, 3, 1)))
}

func TestLastN(t *testing.T) {
	now := date(2025, 3, 12).Add(10 * time.Hour)

	from, to := LastN(PeriodDaily, 7, now)
	assert.Equal(t, date(2025, 3, 6), from)
	assert.Equal(t, date(2025, 3, 12), to)
	assert.Len(t, Bucketize(nil, PeriodDaily, from, to), 7)

	from, _ = LastN(PeriodWeekly, 8, now)
	assert.Equal(t, date(2025, 1, 20), from)
	assert.Len(t, Bucketize(nil, PeriodWeekly, from, to), 8)

	from, _ = LastN(PeriodMonthly, 12, now)
	assert.Equal(t, date(2024, 4, 1), from)
	assert.Len(t, Bucketize(nil, PeriodMonthly, from, to), 12)
}
