package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gooms-backend/internal/audit"
	"gooms-backend/internal/events"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInsufficientStock = httpx.Conflict("insufficient stock")
	ErrProductNotFound   = httpx.NotFound("product not found")
	ErrLocationNotFound  = httpx.NotFound("location not found")
	ErrInactiveProduct   = httpx.Conflict("product is inactive")
)

type MovementInput struct {
	ProductID  uint
	LocationID uint
	Quantity   decimal.Decimal // signed: positive adds stock
	Reason     models.MovementReason
	Reference  string
	Note       string
	UserID     uint
	Date       time.Time
}

type MovementResult struct {
	Movement models.StockMovement
	Product  models.Product
	Previous decimal.Decimal
	Level    decimal.Decimal
	// LowStock is set when this movement took the level from above the
	// reorder level to at or below it.
	LowStock bool
}

func validReason(r models.MovementReason) bool {
	switch r {
	case models.MovementAdjustment, models.MovementPurchaseReceipt, models.MovementProductionOutput,
		models.MovementSale, models.MovementWaste, models.MovementTransferIn, models.MovementTransferOut:
		return true
	}
	return false
}

// ApplyMovement is the only write path for stock levels. It locks the
// inventory row, rejects a negative result and appends a StockMovement.
// Must run inside a transaction.
func ApplyMovement(tx *gorm.DB, in MovementInput) (*MovementResult, error) {
	if in.Quantity.IsZero() {
		return nil, httpx.Invalid("quantity must not be zero")
	}
	if !validReason(in.Reason) {
		return nil, httpx.Invalid(fmt.Sprintf("unknown movement reason %q", in.Reason))
	}

	var product models.Product
	if err := tx.First(&product, in.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("load product: %w", err)
	}
	if !product.IsActive && in.Quantity.IsPositive() && in.Reason != models.MovementAdjustment {
		return nil, ErrInactiveProduct
	}

	var location models.Location
	if err := tx.Select("id").First(&location, in.LocationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLocationNotFound
		}
		return nil, fmt.Errorf("load location: %w", err)
	}

	// Make sure the row exists, then lock it.
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.InventoryItem{
		ProductID:  in.ProductID,
		LocationID: in.LocationID,
		Quantity:   decimal.Zero,
	}).Error; err != nil {
		return nil, fmt.Errorf("ensure inventory row: %w", err)
	}

	var item models.InventoryItem
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("product_id = ? AND location_id = ?", in.ProductID, in.LocationID).
		First(&item).Error; err != nil {
		return nil, fmt.Errorf("lock inventory row: %w", err)
	}

	prev := item.Quantity
	next := prev.Add(in.Quantity)
	if next.IsNegative() {
		return nil, fmt.Errorf("%w: %s %s available at location %d, %s requested",
			ErrInsufficientStock, prev.String(), product.Unit, in.LocationID, in.Quantity.Neg().String())
	}

	if err := tx.Model(&item).Update("quantity", next).Error; err != nil {
		return nil, fmt.Errorf("update inventory: %w", err)
	}

	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	mv := models.StockMovement{
		ProductID:  in.ProductID,
		LocationID: in.LocationID,
		Quantity:   in.Quantity,
		Balance:    next,
		Reason:     in.Reason,
		Reference:  in.Reference,
		Note:       strings.TrimSpace(in.Note),
		UserID:     in.UserID,
		Date:       date,
	}
	if err := tx.Create(&mv).Error; err != nil {
		return nil, fmt.Errorf("record movement: %w", err)
	}

	return &MovementResult{
		Movement: mv,
		Product:  product,
		Previous: prev,
		Level:    next,
		LowStock: product.ReorderLevel.IsPositive() &&
			prev.GreaterThan(product.ReorderLevel) &&
			next.LessThanOrEqual(product.ReorderLevel),
	}, nil
}

type TransferInput struct {
	ProductID      uint
	FromLocationID uint
	ToLocationID   uint
	Quantity       decimal.Decimal // positive
	Note           string
	UserID         uint
	Date           time.Time
}

// Transfer moves stock between two locations as a transfer_out/transfer_in pair
// sharing one reference.
func Transfer(tx *gorm.DB, in TransferInput) (out, into *MovementResult, err error) {
	if in.FromLocationID == in.ToLocationID {
		return nil, nil, httpx.Invalid("source and destination must differ")
	}
	if !in.Quantity.IsPositive() {
		return nil, nil, httpx.Invalid("quantity must be greater than 0")
	}

	ref := "TR-" + strings.ToUpper(uuid.NewString()[:8])
	out, err = ApplyMovement(tx, MovementInput{
		ProductID:  in.ProductID,
		LocationID: in.FromLocationID,
		Quantity:   in.Quantity.Neg(),
		Reason:     models.MovementTransferOut,
		Reference:  ref,
		Note:       in.Note,
		UserID:     in.UserID,
		Date:       in.Date,
	})
	if err != nil {
		return nil, nil, err
	}
	into, err = ApplyMovement(tx, MovementInput{
		ProductID:  in.ProductID,
		LocationID: in.ToLocationID,
		Quantity:   in.Quantity,
		Reason:     models.MovementTransferIn,
		Reference:  ref,
		Note:       in.Note,
		UserID:     in.UserID,
		Date:       in.Date,
	})
	if err != nil {
		return nil, nil, err
	}
	return out, into, nil
}

// LowStockEvent builds the inventory.low_stock event for a movement result.
func LowStockEvent(res *MovementResult) events.Event {
	return events.New(events.TypeLowStock, fmt.Sprintf("product:%d", res.Product.ID), lowStockPayload(res))
}

func lowStockPayload(res *MovementResult) map[string]interface{} {
	return map[string]interface{}{
		"product_id":    res.Product.ID,
		"sku":           res.Product.SKU,
		"location_id":   res.Movement.LocationID,
		"level":         res.Level,
		"reorder_level": res.Product.ReorderLevel,
	}
}

// -----------------------------------------------------------------------------
// Products
// -----------------------------------------------------------------------------

type ProductInput struct {
	SKU          string          `json:"sku" validate:"required,max=50"`
	Name         string          `json:"name" validate:"required,max=150"`
	Category     string          `json:"category" validate:"max=100"`
	Unit         string          `json:"unit" validate:"required,max=20"`
	UnitCost     decimal.Decimal `json:"unit_cost" validate:"gte=0"`
	UnitPrice    decimal.Decimal `json:"unit_price" validate:"gte=0"`
	ReorderLevel decimal.Decimal `json:"reorder_level" validate:"gte=0"`
}

type ProductPatch struct {
	SKU          *string          `json:"sku" validate:"omitempty,max=50"`
	Name         *string          `json:"name" validate:"omitempty,max=150"`
	Category     *string          `json:"category" validate:"omitempty,max=100"`
	Unit         *string          `json:"unit" validate:"omitempty,max=20"`
	UnitCost     *decimal.Decimal `json:"unit_cost"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	ReorderLevel *decimal.Decimal `json:"reorder_level"`
	IsActive     *bool            `json:"is_active"`
}

func skuTaken(tx *gorm.DB, sku string, exceptID uint) (bool, error) {
	var count int64
	q := tx.Model(&models.Product{}).Where("sku = ?", sku)
	if exceptID > 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func CreateProduct(tx *gorm.DB, in ProductInput, actor audit.Actor) (*models.Product, error) {
	p := models.Product{
		SKU:          strings.ToUpper(strings.TrimSpace(in.SKU)),
		Name:         strings.TrimSpace(in.Name),
		Category:     strings.TrimSpace(in.Category),
		Unit:         strings.TrimSpace(in.Unit),
		UnitCost:     in.UnitCost,
		UnitPrice:    in.UnitPrice,
		ReorderLevel: in.ReorderLevel,
		IsActive:     true,
	}
	if p.SKU == "" || p.Name == "" || p.Unit == "" {
		return nil, httpx.Invalid("sku, name and unit are required")
	}
	taken, err := skuTaken(tx, p.SKU, 0)
	if err != nil {
		return nil, fmt.Errorf("check sku: %w", err)
	}
	if taken {
		return nil, httpx.Conflict("sku is already in use")
	}

	if err := tx.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	if err := actor.Record(tx, audit.EntityProduct, p.ID, models.AuditActionCreate, "product created: "+p.SKU, nil, p); err != nil {
		return nil, err
	}
	return &p, nil
}

func UpdateProduct(tx *gorm.DB, id uint, patch ProductPatch, actor audit.Actor) (*models.Product, error) {
	var p models.Product
	if err := tx.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("load product: %w", err)
	}
	before := p

	if patch.SKU != nil {
		sku := strings.ToUpper(strings.TrimSpace(*patch.SKU))
		if sku == "" {
			return nil, httpx.Invalid("sku must not be empty")
		}
		taken, err := skuTaken(tx, sku, id)
		if err != nil {
			return nil, fmt.Errorf("check sku: %w", err)
		}
		if taken {
			return nil, httpx.Conflict("sku is already in use")
		}
		p.SKU = sku
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, httpx.Invalid("name must not be empty")
		}
		p.Name = name
	}
	if patch.Category != nil {
		p.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Unit != nil {
		unit := strings.TrimSpace(*patch.Unit)
		if unit == "" {
			return nil, httpx.Invalid("unit must not be empty")
		}
		p.Unit = unit
	}
	for _, v := range []*decimal.Decimal{patch.UnitCost, patch.UnitPrice, patch.ReorderLevel} {
		if v != nil && v.IsNegative() {
			return nil, httpx.Invalid("costs, prices and reorder level must not be negative")
		}
	}
	if patch.UnitCost != nil {
		p.UnitCost = *patch.UnitCost
	}
	if patch.UnitPrice != nil {
		p.UnitPrice = *patch.UnitPrice
	}
	if patch.ReorderLevel != nil {
		p.ReorderLevel = *patch.ReorderLevel
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}

	if err := tx.Save(&p).Error; err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	if err := actor.Record(tx, audit.EntityProduct, p.ID, models.AuditActionUpdate, "product updated: "+p.SKU, before, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProduct removes a product that never moved stock. Products with
// history should be deactivated instead.
func DeleteProduct(tx *gorm.DB, id uint, actor audit.Actor) error {
	var p models.Product
	if err := tx.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return fmt.Errorf("load product: %w", err)
	}

	var used int64
	if err := tx.Model(&models.StockMovement{}).Where("product_id = ?", id).Count(&used).Error; err != nil {
		return fmt.Errorf("check product usage: %w", err)
	}
	if used > 0 {
		return httpx.Conflict("product has stock history, deactivate it instead")
	}

	if err := tx.Where("product_id = ?", id).Delete(&models.InventoryItem{}).Error; err != nil {
		return fmt.Errorf("delete inventory rows: %w", err)
	}
	if err := tx.Delete(&p).Error; err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return actor.Record(tx, audit.EntityProduct, p.ID, models.AuditActionDelete, "product deleted: "+p.SKU, p, nil)
}

// -----------------------------------------------------------------------------
// Valuation
// -----------------------------------------------------------------------------

// StockValue is the value of all stock on hand at unit cost.
func StockValue(db *gorm.DB) (decimal.Decimal, error) {
	var v decimal.Decimal
	err := db.Table("inventory_items AS i").
		Joins("JOIN products p ON p.id = i.product_id").
		Select("COALESCE(SUM(i.quantity * p.unit_cost), 0)").
		Row().Scan(&v)
	return v, err
}

// StockValueAt reconstructs the stock value at t by rolling back every
// movement dated at or after t. Uses current unit costs.
func StockValueAt(db *gorm.DB, t time.Time) (decimal.Decimal, error) {
	current, err := StockValue(db)
	if err != nil {
		return decimal.Zero, err
	}
	var since decimal.Decimal
	if err := db.Table("stock_movements AS m").
		Joins("JOIN products p ON p.id = m.product_id").
		Where("m.date >= ?", t).
		Select("COALESCE(SUM(m.quantity * p.unit_cost), 0)").
		Row().Scan(&since); err != nil {
		return decimal.Zero, err
	}
	return current.Sub(since), nil
}

// CountLowStock counts inventory rows at or below their product's reorder level.
func CountLowStock(db *gorm.DB) (int64, error) {
	var n int64
	err := db.Table("inventory_items AS i").
		Joins("JOIN products p ON p.id = i.product_id").
		Where("p.is_active = ? AND p.reorder_level > 0 AND i.quantity <= p.reorder_level", true).
		Count(&n).Error
	return n, err
}
