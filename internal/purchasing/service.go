package purchasing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gooms-backend/internal/audit"
	"gooms-backend/internal/events"
	"gooms-backend/internal/finance"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/inventory"
	"gooms-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrOrderNotFound     = httpx.NotFound("purchase order not found")
	ErrInvalidTransition = httpx.Conflict("invalid purchase order status transition")
)

var transitions = map[models.PurchaseOrderStatus][]models.PurchaseOrderStatus{
	models.POStatusDraft:   {models.POStatusOrdered, models.POStatusCancelled},
	models.POStatusOrdered: {models.POStatusReceived, models.POStatusCancelled},
}

func CanTransition(from, to models.PurchaseOrderStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OrderNumber formats the public order number, e.g. PO-000042.
func OrderNumber(id uint) string {
	return fmt.Sprintf("PO-%06d", id)
}

// Reference ties receipt movements and the expense entry back to the order.
func Reference(number string) string {
	return "po:" + number
}

type ItemInput struct {
	ProductID uint            `json:"product_id" validate:"required"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost" validate:"gte=0"`
}

type OrderInput struct {
	SupplierID   uint        `json:"supplier_id" validate:"required"`
	LocationID   uint        `json:"location_id" validate:"required"`
	OrderDate    string      `json:"order_date" validate:"omitempty,datetime=2006-01-02"`
	ExpectedDate string      `json:"expected_date" validate:"omitempty,datetime=2006-01-02"`
	Note         string      `json:"note" validate:"max=500"`
	Items        []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// BuildItems computes line totals and the order total.
func BuildItems(in []ItemInput) ([]models.PurchaseOrderItem, decimal.Decimal) {
	items := make([]models.PurchaseOrderItem, 0, len(in))
	total := decimal.Zero
	for _, it := range in {
		line := it.Quantity.Mul(it.UnitCost).Round(2)
		items = append(items, models.PurchaseOrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitCost:  it.UnitCost,
			TotalCost: line,
		})
		total = total.Add(line)
	}
	return items, total
}

func CreateOrder(tx *gorm.DB, in OrderInput, actor audit.Actor) (*models.PurchaseOrder, error) {
	if len(in.Items) == 0 {
		return nil, httpx.Invalid("an order needs at least one item")
	}
	orderDate, err := httpx.DateOrToday(in.OrderDate)
	if err != nil {
		return nil, httpx.Invalid("invalid order_date")
	}
	var expected *time.Time
	if in.ExpectedDate != "" {
		d, err := httpx.ParseDate(in.ExpectedDate)
		if err != nil {
			return nil, httpx.Invalid("invalid expected_date")
		}
		if d.Before(orderDate) {
			return nil, httpx.Invalid("expected_date is before order_date")
		}
		expected = &d
	}

	var supplier models.Supplier
	if err := tx.First(&supplier, in.SupplierID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSupplierNotFound
		}
		return nil, fmt.Errorf("load supplier: %w", err)
	}
	if !supplier.IsActive {
		return nil, httpx.Conflict("supplier is inactive")
	}

	var loc models.Location
	if err := tx.Select("id").First(&loc, in.LocationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.ErrLocationNotFound
		}
		return nil, fmt.Errorf("load location: %w", err)
	}

	ids := make([]uint, 0, len(in.Items))
	seen := make(map[uint]bool, len(in.Items))
	for _, it := range in.Items {
		if !it.Quantity.IsPositive() {
			return nil, httpx.Invalid("item quantity must be greater than 0")
		}
		if it.UnitCost.IsNegative() {
			return nil, httpx.Invalid("item unit_cost must not be negative")
		}
		if seen[it.ProductID] {
			return nil, httpx.Invalid(fmt.Sprintf("product %d appears twice", it.ProductID))
		}
		seen[it.ProductID] = true
		ids = append(ids, it.ProductID)
	}
	var found int64
	if err := tx.Model(&models.Product{}).Where("id IN ?", ids).Count(&found).Error; err != nil {
		return nil, fmt.Errorf("check products: %w", err)
	}
	if int(found) != len(ids) {
		return nil, inventory.ErrProductNotFound
	}

	items, total := BuildItems(in.Items)
	po := models.PurchaseOrder{
		Number:       "tmp-" + uuid.NewString(),
		SupplierID:   in.SupplierID,
		LocationID:   in.LocationID,
		Status:       models.POStatusDraft,
		OrderDate:    orderDate,
		ExpectedDate: expected,
		TotalAmount:  total,
		Note:         strings.TrimSpace(in.Note),
		CreatedBy:    actor.UserID,
		Items:        items,
	}
	if err := tx.Create(&po).Error; err != nil {
		return nil, fmt.Errorf("create purchase order: %w", err)
	}
	po.Number = OrderNumber(po.ID)
	if err := tx.Model(&po).Update("number", po.Number).Error; err != nil {
		return nil, fmt.Errorf("set order number: %w", err)
	}

	if err := actor.Record(tx, audit.EntityPurchaseOrder, po.ID, models.AuditActionCreate,
		fmt.Sprintf("purchase order %s for %s", po.Number, supplier.Name), nil, po); err != nil {
		return nil, err
	}
	po.Supplier = supplier
	return &po, nil
}

func lockOrder(tx *gorm.DB, id uint) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&po, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("load purchase order: %w", err)
	}
	return &po, nil
}

func setStatus(tx *gorm.DB, po *models.PurchaseOrder, to models.PurchaseOrderStatus, extra map[string]interface{}, actor audit.Actor, desc string) error {
	if !CanTransition(po.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, po.Status, to)
	}
	before := *po
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	if err := tx.Model(po).Updates(updates).Error; err != nil {
		return fmt.Errorf("update purchase order: %w", err)
	}
	po.Status = to
	return actor.Record(tx, audit.EntityPurchaseOrder, po.ID, models.AuditActionUpdate, desc, before, po)
}

// SubmitOrder moves a draft to ordered.
func SubmitOrder(tx *gorm.DB, id uint, actor audit.Actor) (*models.PurchaseOrder, error) {
	po, err := lockOrder(tx, id)
	if err != nil {
		return nil, err
	}
	if err := setStatus(tx, po, models.POStatusOrdered, nil, actor, "purchase order submitted: "+po.Number); err != nil {
		return nil, err
	}
	return po, nil
}

func CancelOrder(tx *gorm.DB, id uint, reason string, actor audit.Actor) (*models.PurchaseOrder, error) {
	po, err := lockOrder(tx, id)
	if err != nil {
		return nil, err
	}
	desc := "purchase order cancelled: " + po.Number
	if r := strings.TrimSpace(reason); r != "" {
		desc += " (" + r + ")"
	}
	if err := setStatus(tx, po, models.POStatusCancelled, nil, actor, desc); err != nil {
		return nil, err
	}
	return po, nil
}

// ReceiveOrder books the delivery: a purchase_receipt movement per item at the
// order location and one expense ledger entry for the order total.
func ReceiveOrder(tx *gorm.DB, id uint, actor audit.Actor) (*models.PurchaseOrder, []*inventory.MovementResult, error) {
	po, err := lockOrder(tx, id)
	if err != nil {
		return nil, nil, err
	}
	if !CanTransition(po.Status, models.POStatusReceived) {
		return nil, nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, po.Status, models.POStatusReceived)
	}
	if err := tx.Where("purchase_order_id = ?", po.ID).Order("id ASC").Find(&po.Items).Error; err != nil {
		return nil, nil, fmt.Errorf("load order items: %w", err)
	}

	now := time.Now().UTC()
	ref := Reference(po.Number)
	results := make([]*inventory.MovementResult, 0, len(po.Items))
	for _, it := range po.Items {
		res, err := inventory.ApplyMovement(tx, inventory.MovementInput{
			ProductID:  it.ProductID,
			LocationID: po.LocationID,
			Quantity:   it.Quantity,
			Reason:     models.MovementPurchaseReceipt,
			Reference:  ref,
			UserID:     actor.UserID,
			Date:       now,
		})
		if err != nil {
			return nil, nil, err
		}
		results = append(results, res)
	}

	if po.TotalAmount.IsPositive() {
		if err := finance.RecordEntry(tx, &models.FinancialTransaction{
			Type:        models.TransactionExpense,
			Category:    finance.CategoryPurchases,
			Amount:      po.TotalAmount,
			Date:        now,
			Description: "purchase order " + po.Number,
			Reference:   ref,
		}, actor); err != nil {
			return nil, nil, err
		}
	}

	if err := setStatus(tx, po, models.POStatusReceived, map[string]interface{}{"received_at": now}, actor,
		"purchase order received: "+po.Number); err != nil {
		return nil, nil, err
	}
	po.ReceivedAt = &now
	return po, results, nil
}

func ReceivedEvent(po *models.PurchaseOrder) events.Event {
	items := make([]map[string]interface{}, 0, len(po.Items))
	for _, it := range po.Items {
		items = append(items, map[string]interface{}{"product_id": it.ProductID, "quantity": it.Quantity})
	}
	return events.New(events.TypePurchaseOrderReceived, "po:"+po.Number, map[string]interface{}{
		"purchase_order_id": po.ID,
		"number":            po.Number,
		"supplier_id":       po.SupplierID,
		"location_id":       po.LocationID,
		"total_amount":      po.TotalAmount,
		"items":             items,
	})
}
