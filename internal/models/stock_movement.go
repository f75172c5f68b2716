package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type MovementReason string

const (
	MovementAdjustment       MovementReason = "adjustment"
	MovementPurchaseReceipt  MovementReason = "purchase_receipt"
	MovementProductionOutput MovementReason = "production_output"
	MovementSale             MovementReason = "sale"
	MovementWaste            MovementReason = "waste"
	MovementTransferIn       MovementReason = "transfer_in"
	MovementTransferOut      MovementReason = "transfer_out"
)

// StockMovement is an append-only record of a stock change. Quantity is signed.
type StockMovement struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	ProductID  uint            `gorm:"index;not null" json:"product_id"`
	Product    Product         `json:"-"`
	LocationID uint            `gorm:"index;not null" json:"location_id"`
	Location   Location        `json:"-"`
	Quantity   decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"quantity"`
	Balance    decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"balance"` // level after the movement
	Reason     MovementReason  `gorm:"size:30;not null;index" json:"reason"`
	Reference  string          `gorm:"size:100;index" json:"reference"` // e.g. "PO-12", "B-20250301-4"
	Note       string          `gorm:"size:500" json:"note"`
	UserID     uint            `gorm:"index" json:"user_id"`
	Date       time.Time       `gorm:"index;not null" json:"date"`
	CreatedAt  time.Time       `json:"created_at"`
}
