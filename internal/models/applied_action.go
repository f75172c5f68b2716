package models

import "time"

// AppliedAction marks an offline action as applied. It is written in the same
// transaction as the change, so it exists exactly when the change committed.
type AppliedAction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ActionID  string    `gorm:"size:36;not null;uniqueIndex" json:"action_id"`
	Resource  string    `gorm:"size:50;not null" json:"resource"` // table the action targeted
	Type      string    `gorm:"size:20;not null" json:"type"`
	UserID    uint      `gorm:"index" json:"user_id"`
	QueuedAt  time.Time `json:"queued_at"`
	AppliedAt time.Time `json:"applied_at"`
}
