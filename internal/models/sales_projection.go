package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesProjection: expected sales of a product in a given month.
type SalesProjection struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	ProductID         uint            `gorm:"not null;uniqueIndex:idx_projection_product_month" json:"product_id"`
	Product           Product         `json:"-"`
	Year              int             `gorm:"not null;uniqueIndex:idx_projection_product_month" json:"year"`
	Month             int             `gorm:"not null;uniqueIndex:idx_projection_product_month" json:"month"` // 1-12
	ProjectedQuantity decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"projected_quantity"`
	ProjectedRevenue  decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"projected_revenue"`
	Note              string          `gorm:"size:255" json:"note"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
