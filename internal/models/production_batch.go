package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BatchStatus string

const (
	BatchPlanned    BatchStatus = "planned"
	BatchInProgress BatchStatus = "in_progress"
	BatchCompleted  BatchStatus = "completed"
	BatchCancelled  BatchStatus = "cancelled"
)

// ProductionBatch: one production run of a finished product at a production location.
type ProductionBatch struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	BatchNumber      string          `gorm:"size:40;uniqueIndex" json:"batch_number"`
	ProductID        uint            `gorm:"index;not null" json:"product_id"`
	Product          Product         `json:"-"`
	LocationID       uint            `gorm:"index;not null" json:"location_id"`
	Location         Location        `json:"-"`
	PlannedQuantity  decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"planned_quantity"`
	ProducedQuantity decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0" json:"produced_quantity"`
	Status           BatchStatus     `gorm:"size:20;not null;index" json:"status"`
	PlannedDate      time.Time       `gorm:"index;not null" json:"planned_date"`
	StartedAt        *time.Time      `json:"started_at"`
	CompletedAt      *time.Time      `json:"completed_at"`
	Note             string          `gorm:"size:500" json:"note"`
	CreatedBy        uint            `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
