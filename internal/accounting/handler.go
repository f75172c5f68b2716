package accounting

import (
	"errors"

	"gooms-backend/internal/database"
	"gooms-backend/internal/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// POST /api/accounting/sync
// svc is nil when accounting sync is disabled.
func SyncHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if svc == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "accounting sync is not configured")
		}
		rep, err := svc.Sync(c.UserContext(), database.DB)
		if err != nil {
			if errors.Is(err, ErrSyncRunning) {
				return fiber.NewError(fiber.StatusConflict, err.Error())
			}
			logger.FromCtx(c).Error("accounting sync failed", zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":  "accounting sync failed",
				"report": rep,
			})
		}
		return c.JSON(rep)
	}
}
