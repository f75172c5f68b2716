package models

import "time"

type LocationType string

const (
	LocationWarehouse  LocationType = "warehouse"
	LocationProduction LocationType = "production"
	LocationStore      LocationType = "store"
)

// Location is a physical place that holds stock.
type Location struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"size:100;not null;unique" json:"name"`
	Type      LocationType `gorm:"size:20;not null" json:"type"`
	Address   string       `gorm:"size:255" json:"address"`
	IsActive  bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
