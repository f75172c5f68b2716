package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type SalesChannel string

const (
	ChannelRetail    SalesChannel = "retail"
	ChannelWholesale SalesChannel = "wholesale"
	ChannelOnline    SalesChannel = "online"
)

type Sale struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ProductID   uint            `gorm:"index;not null" json:"product_id"`
	Product     Product         `json:"-"`
	LocationID  uint            `gorm:"index;not null" json:"location_id"`
	Location    Location        `json:"-"`
	Quantity    decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"unit_price"`
	UnitCost    decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"unit_cost"` // product cost at sale time, for COGS
	TotalAmount decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"total_amount"`
	Customer    string          `gorm:"size:150" json:"customer"`
	Channel     SalesChannel    `gorm:"size:20;not null" json:"channel"`
	Date        time.Time       `gorm:"index;not null" json:"date"`
	CreatedBy   uint            `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
