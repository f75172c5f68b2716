package dashboard

import (
	"strconv"
	"time"

	"gooms-backend/internal/database"
	"gooms-backend/internal/finance"
	"gooms-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

const maxChartBuckets = 366

type CashChartGrandTotals struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

type CashChartResponse struct {
	Period      finance.Period       `json:"period"` // daily | weekly | monthly
	From        string               `json:"from"`
	To          string               `json:"to"`
	Points      []finance.Bucket     `json:"points"`
	GrandTotals CashChartGrandTotals `json:"grand_totals"`
}

// BuildCashChart buckets ledger entries for the last count periods ending now.
func BuildCashChart(entries []finance.Entry, period finance.Period, count int, now time.Time) CashChartResponse {
	from, to := finance.LastN(period, count, now)
	points := finance.Bucketize(entries, period, from, to)

	totals := CashChartGrandTotals{Income: decimal.Zero, Expense: decimal.Zero}
	for _, p := range points {
		totals.Income = totals.Income.Add(p.Income)
		totals.Expense = totals.Expense.Add(p.Expense)
	}
	totals.Net = totals.Income.Sub(totals.Expense)

	return CashChartResponse{
		Period:      period,
		From:        from.Format(httpx.DateLayout),
		To:          to.Format(httpx.DateLayout),
		Points:      points,
		GrandTotals: totals,
	}
}

// GET /api/dashboard/cash-chart?period=daily&count=7
func CashChartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		period, ok := finance.ParsePeriod(c.Query("period", string(finance.PeriodDaily)))
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, "period must be daily, weekly or monthly")
		}

		count := period.DefaultCount()
		if raw := c.Query("count"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > maxChartBuckets {
				return fiber.NewError(fiber.StatusBadRequest, "invalid count")
			}
			count = n
		}

		now := time.Now().UTC()
		from, to := finance.LastN(period, count, now)
		entries, err := finance.LoadEntries(database.DB, from, to.AddDate(0, 0, 1))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load cash data")
		}
		return c.JSON(BuildCashChart(entries, period, count, now))
	}
}
