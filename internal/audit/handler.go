package audit

import (
	"errors"

	"gooms-backend/internal/database"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/logger"
	"gooms-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	Source      string             `json:"source"`
	Undoable    bool               `json:"undoable"`
	IsUndone    bool               `json:"is_undone"`
	UndoneBy    *uint              `json:"undone_by"`
	UndoneAt    *string            `json:"undone_at"`
}

var sortColumns = map[string]string{
	"created_at":  "created_at",
	"entity_type": "entity_type",
	"user":        "user_name",
}

// GET /api/audit-logs?entity_type=product&entity_id=1&user_id=2&action=update
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.AuditLog{})

		if entityType := c.Query("entity_type"); entityType != "" {
			dbq = dbq.Where("entity_type = ?", entityType)
		}
		if action := c.Query("action"); action != "" {
			dbq = dbq.Where("action = ?", action)
		}
		entityID, err := httpx.QueryID(c, "entity_id")
		if err != nil {
			return err
		}
		if entityID > 0 {
			dbq = dbq.Where("entity_id = ?", entityID)
		}
		userID, err := httpx.QueryID(c, "user_id")
		if err != nil {
			return err
		}
		if userID > 0 {
			dbq = dbq.Where("user_id = ?", userID)
		}

		paging := httpx.ParsePaging(c, sortColumns, "created_at DESC, id DESC")
		page, err := httpx.FindPage[models.AuditLog](dbq, paging)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list audit logs")
		}

		items := make([]AuditLogResponse, 0, len(page.Items))
		for _, l := range page.Items {
			var undoneAt *string
			if l.UndoneAt != nil {
				s := l.UndoneAt.Format("2006-01-02 15:04:05")
				undoneAt = &s
			}
			items = append(items, AuditLogResponse{
				ID:          l.ID,
				CreatedAt:   l.CreatedAt.Format("2006-01-02 15:04:05"),
				UserID:      l.UserID,
				UserName:    l.UserName,
				EntityType:  l.EntityType,
				EntityID:    l.EntityID,
				Action:      l.Action,
				Description: l.Description,
				Source:      l.Source,
				Undoable:    !l.IsUndone && l.Action != models.AuditActionUndo && Undoable(l.EntityType),
				IsUndone:    l.IsUndone,
				UndoneBy:    l.UndoneBy,
				UndoneAt:    undoneAt,
			})
		}

		return c.JSON(httpx.Page[AuditLogResponse]{
			Items:    items,
			Total:    page.Total,
			Page:     page.Page,
			PageSize: page.PageSize,
		})
	}
}

// POST /api/audit-logs/:id/undo
func UndoAuditLogHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		logID, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}

		actor := ActorFromCtx(c)
		if err := UndoLog(logID, actor.UserID, actor.Name); err != nil {
			switch {
			case errors.Is(err, ErrLogNotFound):
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			case errors.Is(err, ErrAlreadyUndone), errors.Is(err, ErrNotUndoable):
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			logger.FromCtx(c).Error("undo audit log", zap.Uint("log_id", logID), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not undo change")
		}

		return c.JSON(fiber.Map{"message": "change undone"})
	}
}
