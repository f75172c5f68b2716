package finance

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gooms-backend/internal/audit"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/inventory"
	"gooms-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Categories written by other flows.
const (
	CategorySales     = "sales"
	CategoryPurchases = "purchases"
)

var (
	ErrTransactionNotFound = httpx.NotFound("transaction not found")
	ErrTransactionSynced   = httpx.Conflict("transaction was already synced to accounting and cannot change")
)

type TransactionInput struct {
	Type        models.TransactionType `json:"type" validate:"required,oneof=income expense"`
	Category    string                 `json:"category" validate:"required,max=100"`
	Amount      decimal.Decimal        `json:"amount" validate:"gt=0"`
	Date        string                 `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Description string                 `json:"description" validate:"max=255"`
	Reference   string                 `json:"reference" validate:"max=100"`
}

type TransactionPatch struct {
	Type        *models.TransactionType `json:"type" validate:"omitempty,oneof=income expense"`
	Category    *string                 `json:"category" validate:"omitempty,max=100"`
	Amount      *decimal.Decimal        `json:"amount"`
	Date        *string                 `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Description *string                 `json:"description" validate:"omitempty,max=255"`
}

func CreateTransaction(tx *gorm.DB, in TransactionInput, actor audit.Actor) (*models.FinancialTransaction, error) {
	date, err := httpx.DateOrToday(in.Date)
	if err != nil {
		return nil, httpx.Invalid("invalid date")
	}
	t := models.FinancialTransaction{
		Type:        in.Type,
		Category:    strings.TrimSpace(in.Category),
		Amount:      in.Amount,
		Date:        date,
		Description: strings.TrimSpace(in.Description),
		Reference:   strings.TrimSpace(in.Reference),
	}
	if err := RecordEntry(tx, &t, actor); err != nil {
		return nil, err
	}
	return &t, nil
}

// RecordEntry validates and stores a ledger line with its audit entry. Sales
// and purchase receipts book their income and expense through here.
func RecordEntry(tx *gorm.DB, t *models.FinancialTransaction, actor audit.Actor) error {
	if t.Type != models.TransactionIncome && t.Type != models.TransactionExpense {
		return httpx.Invalid("type must be income or expense")
	}
	if !t.Amount.IsPositive() {
		return httpx.Invalid("amount must be greater than 0")
	}
	if t.Category == "" {
		return httpx.Invalid("category is required")
	}
	if t.Date.IsZero() {
		t.Date = time.Now().UTC()
	}
	t.Amount = t.Amount.Round(2)
	t.CreatedBy = actor.UserID

	if err := tx.Create(t).Error; err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return actor.Record(tx, audit.EntityFinancialTransaction, t.ID, models.AuditActionCreate,
		fmt.Sprintf("%s %s %s", t.Type, t.Category, t.Amount.StringFixed(2)), nil, t)
}

func loadUnsynced(tx *gorm.DB, id uint) (*models.FinancialTransaction, error) {
	var t models.FinancialTransaction
	if err := tx.First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("load transaction: %w", err)
	}
	if t.SyncedAt != nil {
		return nil, ErrTransactionSynced
	}
	return &t, nil
}

func UpdateTransaction(tx *gorm.DB, id uint, patch TransactionPatch, actor audit.Actor) (*models.FinancialTransaction, error) {
	t, err := loadUnsynced(tx, id)
	if err != nil {
		return nil, err
	}
	before := *t

	if patch.Type != nil {
		t.Type = *patch.Type
	}
	if patch.Category != nil {
		if c := strings.TrimSpace(*patch.Category); c != "" {
			t.Category = c
		}
	}
	if patch.Amount != nil {
		if !patch.Amount.IsPositive() {
			return nil, httpx.Invalid("amount must be greater than 0")
		}
		t.Amount = patch.Amount.Round(2)
	}
	if patch.Date != nil {
		d, err := httpx.ParseDate(*patch.Date)
		if err != nil {
			return nil, httpx.Invalid("invalid date")
		}
		t.Date = d
	}
	if patch.Description != nil {
		t.Description = strings.TrimSpace(*patch.Description)
	}

	if err := tx.Save(t).Error; err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	if err := actor.Record(tx, audit.EntityFinancialTransaction, t.ID, models.AuditActionUpdate,
		fmt.Sprintf("%s %s %s", t.Type, t.Category, t.Amount.StringFixed(2)), before, t); err != nil {
		return nil, err
	}
	return t, nil
}

func DeleteTransaction(tx *gorm.DB, id uint, actor audit.Actor) error {
	t, err := loadUnsynced(tx, id)
	if err != nil {
		return err
	}
	if err := tx.Delete(t).Error; err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return actor.Record(tx, audit.EntityFinancialTransaction, t.ID, models.AuditActionDelete,
		fmt.Sprintf("%s %s %s", t.Type, t.Category, t.Amount.StringFixed(2)), t, nil)
}

// -----------------------------------------------------------------------------
// Aggregation inputs
// -----------------------------------------------------------------------------

// LoadEntries returns ledger entries with from <= date < to.
func LoadEntries(db *gorm.DB, from, to time.Time) ([]Entry, error) {
	var rows []models.FinancialTransaction
	if err := db.Model(&models.FinancialTransaction{}).
		Select("type", "category", "amount", "date").
		Where("date >= ? AND date < ?", from, to).
		Order("date ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return EntriesFromTransactions(rows), nil
}

// BalanceBefore is Σincome - Σexpense of every entry dated before t.
func BalanceBefore(db *gorm.DB, t time.Time) (decimal.Decimal, error) {
	var v decimal.Decimal
	err := db.Model(&models.FinancialTransaction{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE -amount END), 0)", models.TransactionIncome).
		Where("date < ?", t).
		Row().Scan(&v)
	return v, err
}

// SalesTotals returns revenue and cost of goods sold for sales in [from, to).
func SalesTotals(db *gorm.DB, from, to time.Time) (revenue, cogs decimal.Decimal, err error) {
	err = db.Model(&models.Sale{}).
		Select("COALESCE(SUM(total_amount), 0), COALESCE(SUM(quantity * unit_cost), 0)").
		Where("date >= ? AND date < ?", from, to).
		Row().Scan(&revenue, &cogs)
	return revenue, cogs, err
}

// BuildKPIInput gathers everything ComputeKPIs needs for [from, to).
func BuildKPIInput(db *gorm.DB, from, to time.Time) (KPIInput, error) {
	var in KPIInput
	entries, err := LoadEntries(db, from, to)
	if err != nil {
		return in, err
	}
	cf := Summarize(entries)
	in.Income, in.Expense = cf.Income, cf.Expense

	if in.Revenue, in.COGS, err = SalesTotals(db, from, to); err != nil {
		return in, fmt.Errorf("sales totals: %w", err)
	}
	if in.OpeningInventoryValue, err = inventory.StockValueAt(db, from); err != nil {
		return in, fmt.Errorf("opening stock value: %w", err)
	}
	if in.ClosingInventoryValue, err = inventory.StockValueAt(db, to); err != nil {
		return in, fmt.Errorf("closing stock value: %w", err)
	}
	return in, nil
}

// ProjectedRevenue sums sales projections per month label for the months
// starting at from.
func ProjectedRevenue(db *gorm.DB, from time.Time, months int) (map[string]decimal.Decimal, error) {
	type row struct {
		Year    int
		Month   int
		Revenue decimal.Decimal
	}
	start := BucketStart(from, PeriodMonthly)
	end := start.AddDate(0, months, 0)

	var rows []row
	if err := db.Model(&models.SalesProjection{}).
		Select("year, month, SUM(projected_revenue) AS revenue").
		Where("(year * 100 + month) >= ? AND (year * 100 + month) < ?",
			start.Year()*100+int(start.Month()), end.Year()*100+int(end.Month())).
		Group("year, month").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("load sales projections: %w", err)
	}

	out := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		out[fmt.Sprintf("%04d-%02d", r.Year, r.Month)] = r.Revenue
	}
	return out, nil
}
