package dashboard

import (
	"time"

	"gooms-backend/internal/database"
	"gooms-backend/internal/finance"
	"gooms-backend/internal/inventory"
	"gooms-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Overview struct {
	LowStockItems      int64            `json:"low_stock_items"`
	OpenPurchaseOrders int64            `json:"open_purchase_orders"`
	ActiveBatches      int64            `json:"active_batches"`
	StockValue         decimal.Decimal  `json:"stock_value"`
	MonthToDate        finance.CashFlow `json:"month_to_date"`
}

// LoadOverview collects the dashboard counters and the cash flow of the
// current month up to now.
func LoadOverview(db *gorm.DB, now time.Time) (*Overview, error) {
	var o Overview
	var err error

	if o.LowStockItems, err = inventory.CountLowStock(db); err != nil {
		return nil, err
	}
	if err = db.Model(&models.PurchaseOrder{}).
		Where("status IN ?", []models.PurchaseOrderStatus{models.POStatusDraft, models.POStatusOrdered}).
		Count(&o.OpenPurchaseOrders).Error; err != nil {
		return nil, err
	}
	if err = db.Model(&models.ProductionBatch{}).
		Where("status IN ?", []models.BatchStatus{models.BatchPlanned, models.BatchInProgress}).
		Count(&o.ActiveBatches).Error; err != nil {
		return nil, err
	}
	if o.StockValue, err = inventory.StockValue(db); err != nil {
		return nil, err
	}

	monthStart := finance.BucketStart(now, finance.PeriodMonthly)
	entries, err := finance.LoadEntries(db, monthStart, now.Add(time.Nanosecond))
	if err != nil {
		return nil, err
	}
	o.MonthToDate = finance.Summarize(entries)
	return &o, nil
}

// GET /api/dashboard/overview
func OverviewHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		o, err := LoadOverview(database.DB, time.Now().UTC())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not load overview")
		}
		return c.JSON(o)
	}
}
