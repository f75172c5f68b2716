package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// FinancialTransaction is one ledger line. Amount is always positive, Type gives the direction.
type FinancialTransaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Type        TransactionType `gorm:"size:10;not null;index" json:"type"`
	Category    string          `gorm:"size:100;not null;index" json:"category"`
	Amount      decimal.Decimal `gorm:"type:numeric(18,2);not null" json:"amount"`
	Date        time.Time       `gorm:"index;not null" json:"date"`
	Description string          `gorm:"size:255" json:"description"`
	Reference   string          `gorm:"size:100;index" json:"reference"` // "sale:12", "po:PO-000004"
	CreatedBy   uint            `json:"created_by"`

	// Set once the entry has been pushed to the external accounting system.
	ExternalID string     `gorm:"size:100" json:"external_id"`
	SyncedAt   *time.Time `gorm:"index" json:"synced_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
