package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseOrderStatus string

const (
	POStatusDraft     PurchaseOrderStatus = "draft"
	POStatusOrdered   PurchaseOrderStatus = "ordered"
	POStatusReceived  PurchaseOrderStatus = "received"
	POStatusCancelled PurchaseOrderStatus = "cancelled"
)

// PurchaseOrder: goods ordered from a supplier, delivered to one location.
type PurchaseOrder struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	Number       string              `gorm:"size:40;uniqueIndex" json:"number"`
	SupplierID   uint                `gorm:"index;not null" json:"supplier_id"`
	Supplier     Supplier            `json:"-"`
	LocationID   uint                `gorm:"index;not null" json:"location_id"`
	Location     Location            `json:"-"`
	Status       PurchaseOrderStatus `gorm:"size:20;not null;index" json:"status"`
	OrderDate    time.Time           `gorm:"index;not null" json:"order_date"`
	ExpectedDate *time.Time          `json:"expected_date"`
	ReceivedAt   *time.Time          `json:"received_at"`
	TotalAmount  decimal.Decimal     `gorm:"type:numeric(18,2);not null;default:0" json:"total_amount"`
	Note         string              `gorm:"size:500" json:"note"`
	CreatedBy    uint                `json:"created_by"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`

	Items []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderID;constraint:OnDelete:CASCADE" json:"items"`
}

type PurchaseOrderItem struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	PurchaseOrderID uint            `gorm:"index;not null" json:"purchase_order_id"`
	ProductID       uint            `gorm:"index;not null" json:"product_id"`
	Product         Product         `json:"-"`
	Quantity        decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"quantity"`
	UnitCost        decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"unit_cost"`
	TotalCost       decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total_cost"` // Quantity * UnitCost
}
