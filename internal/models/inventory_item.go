package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryItem is the current on-hand quantity of a product at a location.
// It is only written through inventory.ApplyMovement.
type InventoryItem struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	ProductID  uint            `gorm:"not null;uniqueIndex:idx_inventory_product_location" json:"product_id"`
	Product    Product         `json:"-"`
	LocationID uint            `gorm:"not null;uniqueIndex:idx_inventory_product_location;index" json:"location_id"`
	Location   Location        `json:"-"`
	Quantity   decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0" json:"quantity"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
