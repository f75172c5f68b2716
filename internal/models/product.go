package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	SKU          string          `gorm:"size:50;not null;uniqueIndex" json:"sku"`
	Name         string          `gorm:"size:150;not null" json:"name"`
	Category     string          `gorm:"size:100;index" json:"category"`
	Unit         string          `gorm:"size:20;not null" json:"unit"` // kg, unit, case ...
	UnitCost     decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0" json:"unit_cost"`
	UnitPrice    decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0" json:"unit_price"`
	ReorderLevel decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0" json:"reorder_level"`
	IsActive     bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
