package export

import (
	"fmt"
	"strconv"
	"time"

	"gooms-backend/internal/finance"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/inventory"
	"gooms-backend/internal/models"
	"gooms-backend/internal/production"
	"gooms-backend/internal/purchasing"
	"gooms-backend/internal/sales"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// MaxRows caps a single export.
const MaxRows = 50000

// Builder loads one resource, honouring the same filters as its list endpoint.
type Builder func(c *fiber.Ctx, db *gorm.DB) (Table, error)

var builders = map[string]Builder{
	"products":        productsTable,
	"stock":           stockTable,
	"movements":       movementsTable,
	"batches":         batchesTable,
	"purchase-orders": ordersTable,
	"sales":           salesTable,
	"transactions":    transactionsTable,
}

func Resources() []string {
	return []string{"products", "stock", "movements", "batches", "purchase-orders", "sales", "transactions"}
}

func BuilderFor(resource string) (Builder, bool) {
	b, ok := builders[resource]
	return b, ok
}

func day(t time.Time) string { return t.Format(httpx.DateLayout) }

func optDay(t *time.Time) string {
	if t == nil {
		return ""
	}
	return day(*t)
}

func id(v uint) string { return strconv.FormatUint(uint64(v), 10) }

func productsTable(c *fiber.Ctx, db *gorm.DB) (Table, error) {
	q := db.Model(&models.Product{})
	if c.Query("active") == "true" {
		q = q.Where("is_active = ?", true)
	}
	var rows []models.Product
	if err := q.Order("sku ASC").Limit(MaxRows).Find(&rows).Error; err != nil {
		return Table{}, fmt.Errorf("load products: %w", err)
	}
	t := Table{Title: "Products", Headers: []string{"ID", "SKU", "Name", "Category", "Unit", "Unit Cost", "Unit Price", "Reorder Level", "Active"}}
	for _, p := range rows {
		t.Rows = append(t.Rows, []string{id(p.ID), p.SKU, p.Name, p.Category, p.Unit,
			p.UnitCost.String(), p.UnitPrice.String(), p.ReorderLevel.String(), strconv.FormatBool(p.IsActive)})
	}
	return t, nil
}

func stockTable(c *fiber.Ctx, db *gorm.DB) (Table, error) {
	productID, err := httpx.QueryID(c, "product_id")
	if err != nil {
		return Table{}, err
	}
	locationID, err := httpx.QueryID(c, "location_id")
	if err != nil {
		return Table{}, err
	}
	var rows []inventory.StockLevelRow
	if err := inventory.StockLevelsQuery(db, productID, locationID, c.Query("low_stock") == "true").
		Order("p.name ASC, l.name ASC").Limit(MaxRows).Scan(&rows).Error; err != nil {
		return Table{}, fmt.Errorf("load stock levels: %w", err)
	}
	t := Table{Title: "Stock", Headers: []string{"SKU", "Product", "Location", "Quantity", "Unit", "Reorder Level", "Unit Cost", "Value", "Low Stock"}}
	for _, r := range rows {
		r.FillDerived()
		t.Rows = append(t.Rows, []string{r.SKU, r.ProductName, r.LocationName, r.Quantity.String(), r.Unit,
			r.ReorderLevel.String(), r.UnitCost.String(), r.Value.StringFixed(2), strconv.FormatBool(r.LowStock)})
	}
	return t, nil
}

func movementsTable(c *fiber.Ctx, db *gorm.DB) (Table, error) {
	q, err := inventory.MovementsQuery(c, db)
	if err != nil {
		return Table{}, err
	}
	var rows []models.StockMovement
	if err := q.Preload("Product").Preload("Location").Order("date ASC, id ASC").Limit(MaxRows).Find(&rows).Error; err != nil {
		return Table{}, fmt.Errorf("load movements: %w", err)
	}
	t := Table{Title: "Movements", Headers: []string{"ID", "Date", "SKU", "Location", "Reason", "Quantity", "Balance", "Reference", "Note"}}
	for _, m := range rows {
		t.Rows = append(t.Rows, []string{id(m.ID), day(m.Date), m.Product.SKU, m.Location.Name, string(m.Reason),
			m.Quantity.String(), m.Balance.String(), m.Reference, m.Note})
	}
	return t, nil
}

func batchesTable(c *fiber.Ctx, db *gorm.DB) (Table, error) {
	q, err := production.BatchesQuery(c, db)
	if err != nil {
		return Table{}, err
	}
	var rows []models.ProductionBatch
	if err := q.Preload("Product").Preload("Location").Order("planned_date ASC, id ASC").Limit(MaxRows).Find(&rows).Error; err != nil {
		return Table{}, fmt.Errorf("load batches: %w", err)
	}
	t := Table{Title: "Batches", Headers: []string{"Batch", "Planned", "SKU", "Location", "Status", "Planned Qty", "Produced Qty", "Yield %", "Completed"}}
	for i := range rows {
		b := &rows[i]
		t.Rows = append(t.Rows, []string{b.BatchNumber, day(b.PlannedDate), b.Product.SKU, b.Location.Name, string(b.Status),
			b.PlannedQuantity.String(), b.ProducedQuantity.String(), production.Yield(b).StringFixed(2), optDay(b.CompletedAt)})
	}
	return t, nil
}

func ordersTable(c *fiber.Ctx, db *gorm.DB) (Table, error) {
	q, err := purchasing.OrdersQuery(c, db)
	if err != nil {
		return Table{}, err
	}
	var rows []models.PurchaseOrder
	if err := q.Preload("Supplier").Preload("Location").Order("order_date ASC, id ASC").Limit(MaxRows).Find(&rows).Error; err != nil {
		return Table{}, fmt.Errorf("load purchase orders: %w", err)
	}
	t := Table{Title: "Purchase Orders", Headers: []string{"Number", "Order Date", "Supplier", "Location", "Status", "Expected", "Received", "Total"}}
	for _, po := range rows {
		t.Rows = append(t.Rows, []string{po.Number, day(po.OrderDate), po.Supplier.Name, po.Location.Name, string(po.Status),
			optDay(po.ExpectedDate), optDay(po.ReceivedAt), po.TotalAmount.StringFixed(2)})
	}
	return t, nil
}

func salesTable(c *fiber.Ctx, db *gorm.DB) (Table, error) {
	q, err := sales.SalesQuery(c, db)
	if err != nil {
		return Table{}, err
	}
	var rows []models.Sale
	if err := q.Preload("Product").Preload("Location").Order("date ASC, id ASC").Limit(MaxRows).Find(&rows).Error; err != nil {
		return Table{}, fmt.Errorf("load sales: %w", err)
	}
	t := Table{Title: "Sales", Headers: []string{"ID", "Date", "SKU", "Location", "Channel", "Customer", "Quantity", "Unit Price", "Total"}}
	for _, s := range rows {
		t.Rows = append(t.Rows, []string{id(s.ID), day(s.Date), s.Product.SKU, s.Location.Name, string(s.Channel), s.Customer,
			s.Quantity.String(), s.UnitPrice.String(), s.TotalAmount.StringFixed(2)})
	}
	return t, nil
}

func transactionsTable(c *fiber.Ctx, db *gorm.DB) (Table, error) {
	q, err := finance.TransactionsQuery(c, db)
	if err != nil {
		return Table{}, err
	}
	var rows []models.FinancialTransaction
	if err := q.Order("date ASC, id ASC").Limit(MaxRows).Find(&rows).Error; err != nil {
		return Table{}, fmt.Errorf("load transactions: %w", err)
	}
	t := Table{Title: "Transactions", Headers: []string{"ID", "Date", "Type", "Category", "Amount", "Description", "Reference", "Synced"}}
	for _, tr := range rows {
		t.Rows = append(t.Rows, []string{id(tr.ID), day(tr.Date), string(tr.Type), tr.Category, tr.Amount.StringFixed(2),
			tr.Description, tr.Reference, optDay(tr.SyncedAt)})
	}
	return t, nil
}
