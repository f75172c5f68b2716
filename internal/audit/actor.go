package audit

import (
	"gooms-backend/internal/auth"
	"gooms-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	SourceOnline  = "online"
	SourceOffline = "offline"
)

// Actor is who made a change and through which channel.
type Actor struct {
	UserID uint
	Name   string
	Source string
}

func ActorFromCtx(c *fiber.Ctx) Actor {
	if s := auth.SessionFromCtx(c); s != nil {
		return Actor{UserID: s.UserID, Name: s.Email, Source: SourceOnline}
	}
	return Actor{Name: "system", Source: SourceOnline}
}

// Offline returns a copy of a marked as replayed from an offline queue.
func (a Actor) Offline() Actor {
	a.Source = SourceOffline
	return a
}

// Record writes an audit entry inside tx.
func (a Actor) Record(tx *gorm.DB, entityType string, entityID uint, action models.AuditAction, description string, before, after any) error {
	return WriteLogTx(tx, LogOptions{
		UserID:      a.UserID,
		UserName:    a.Name,
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      action,
		Description: description,
		Before:      before,
		After:       after,
		Source:      a.Source,
	})
}
