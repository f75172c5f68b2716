package finance

import (
	"strconv"
	"time"

	"gooms-backend/internal/audit"
	"gooms-backend/internal/database"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var transactionSortColumns = map[string]string{
	"date":     "date",
	"amount":   "amount",
	"category": "category",
	"type":     "type",
}

// TransactionsQuery applies the ledger filters: type, category, from/to and
// synced=true|false.
func TransactionsQuery(c *fiber.Ctx, db *gorm.DB) (*gorm.DB, error) {
	q := db.Model(&models.FinancialTransaction{})
	if t := c.Query("type"); t != "" {
		if t != string(models.TransactionIncome) && t != string(models.TransactionExpense) {
			return nil, fiber.NewError(fiber.StatusBadRequest, "type must be income or expense")
		}
		q = q.Where("type = ?", t)
	}
	if cat := c.Query("category"); cat != "" {
		q = q.Where("category = ?", cat)
	}
	if c.Query("from") != "" || c.Query("to") != "" {
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return nil, err
		}
		q = q.Where("date >= ? AND date < ?", from, to)
	}
	switch c.Query("synced") {
	case "":
	case "true":
		q = q.Where("synced_at IS NOT NULL")
	case "false":
		q = q.Where("synced_at IS NULL")
	default:
		return nil, fiber.NewError(fiber.StatusBadRequest, "synced must be true or false")
	}
	return q, nil
}

// GET /api/finance/transactions?type=expense&from=2024-01-01&to=2024-01-31
func ListTransactionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := TransactionsQuery(c, database.DB)
		if err != nil {
			return err
		}
		paging := httpx.ParsePaging(c, transactionSortColumns, "date DESC, id DESC")
		page, err := httpx.FindPage[models.FinancialTransaction](q, paging)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list transactions")
		}
		return c.JSON(page)
	}
}

// POST /api/finance/transactions
func CreateTransactionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body TransactionInput
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		var t *models.FinancialTransaction
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			t, err = CreateTransaction(tx, body, audit.ActorFromCtx(c))
			return err
		})
		if err != nil {
			return httpx.ToFiber(err, "could not create transaction")
		}
		return c.Status(fiber.StatusCreated).JSON(t)
	}
}

// PUT /api/finance/transactions/:id
func UpdateTransactionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body TransactionPatch
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		var t *models.FinancialTransaction
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			t, err = UpdateTransaction(tx, id, body, audit.ActorFromCtx(c))
			return err
		})
		if err != nil {
			return httpx.ToFiber(err, "could not update transaction")
		}
		return c.JSON(t)
	}
}

// DELETE /api/finance/transactions/:id
func DeleteTransactionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			return DeleteTransaction(tx, id, audit.ActorFromCtx(c))
		})
		if err != nil {
			return httpx.ToFiber(err, "could not delete transaction")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// -----------------------------------------------------------------------------
// Reports
// -----------------------------------------------------------------------------

type SummaryResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
	CashFlow
}

// GET /api/finance/summary?from=2024-01-01&to=2024-01-31
func SummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return err
		}
		entries, err := LoadEntries(database.DB, from, to)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load ledger")
		}
		return c.JSON(SummaryResponse{
			From:     from.Format(httpx.DateLayout),
			To:       to.AddDate(0, 0, -1).Format(httpx.DateLayout),
			CashFlow: Summarize(entries),
		})
	}
}

// GET /api/finance/kpis?from=2024-01-01&to=2024-03-31
func KPIHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return err
		}
		in, err := BuildKPIInput(database.DB, from, to)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not compute KPIs")
		}
		return c.JSON(fiber.Map{
			"from": from.Format(httpx.DateLayout),
			"to":   to.AddDate(0, 0, -1).Format(httpx.DateLayout),
			"kpis": ComputeKPIs(in),
		})
	}
}

const (
	defaultProjectionMonths = 6
	maxProjectionMonths     = 36
	defaultHistoryMonths    = 6
)

func boundedQueryInt(c *fiber.Ctx, key string, def, max int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, fiber.NewError(fiber.StatusBadRequest, key+" must be between 1 and "+strconv.Itoa(max))
	}
	return n, nil
}

// GET /api/finance/projection?months=6&history=6
// History is the last N complete months; the forecast starts this month.
func ProjectionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		months, err := boundedQueryInt(c, "months", defaultProjectionMonths, maxProjectionMonths)
		if err != nil {
			return err
		}
		historyMonths, err := boundedQueryInt(c, "history", defaultHistoryMonths, maxProjectionMonths)
		if err != nil {
			return err
		}

		thisMonth := BucketStart(time.Now(), PeriodMonthly)
		histFrom := thisMonth.AddDate(0, -historyMonths, 0)
		entries, err := LoadEntries(database.DB, histFrom, thisMonth)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load ledger")
		}
		history := Bucketize(entries, PeriodMonthly, histFrom, thisMonth.AddDate(0, 0, -1))

		projections, err := ProjectedRevenue(database.DB, thisMonth, months)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load sales projections")
		}
		opening, err := BalanceBefore(database.DB, thisMonth)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not compute opening balance")
		}

		return c.JSON(fiber.Map{
			"opening_balance": opening,
			"history":         history,
			"months":          Project(history, projections, months, opening),
		})
	}
}

// GET /api/finance/monthly?year=2024&month=3
func MonthlySummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		now := time.Now().UTC()
		year, month := now.Year(), int(now.Month())
		if raw := c.Query("year"); raw != "" {
			y, err := strconv.Atoi(raw)
			if err != nil || y < 2000 || y > 2100 {
				return fiber.NewError(fiber.StatusBadRequest, "invalid year")
			}
			year = y
		}
		if raw := c.Query("month"); raw != "" {
			m, err := strconv.Atoi(raw)
			if err != nil || m < 1 || m > 12 {
				return fiber.NewError(fiber.StatusBadRequest, "month must be between 1 and 12")
			}
			month = m
		}

		from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, 0)
		entries, err := LoadEntries(database.DB, from, to)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load ledger")
		}

		return c.JSON(fiber.Map{
			"year":    year,
			"month":   month,
			"summary": Summarize(entries),
			"days":    Bucketize(entries, PeriodDaily, from, to.AddDate(0, 0, -1)),
		})
	}
}
