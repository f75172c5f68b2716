package export

import (
	"errors"
	"fmt"
	"time"

	"gooms-backend/internal/database"
	"gooms-backend/internal/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GET /api/export/:resource?format=xlsx&store=true&from=2024-01-01&to=2024-01-31
// Without store the file is returned as an attachment. With store=true it is
// uploaded and the object key is returned.
func ExportHandler(uploader Uploader, prefix string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		resource := c.Params("resource")
		build, ok := BuilderFor(resource)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("unknown export resource %q", resource))
		}
		format, err := ParseFormat(c.Query("format"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		store := c.Query("store") == "true"
		if store && uploader == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "export storage is not configured")
		}

		table, err := build(c, database.DB)
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return fe
			}
			logger.FromCtx(c).Error("export build failed", zap.String("resource", resource), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not build export")
		}

		body, contentType, ext, err := Render(format, table)
		if err != nil {
			logger.FromCtx(c).Error("export render failed", zap.String("resource", resource), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "could not render export")
		}

		now := time.Now()
		if store {
			key := ObjectKey(prefix, resource, ext, now)
			if err := uploader.Upload(c.UserContext(), key, contentType, body); err != nil {
				logger.FromCtx(c).Error("export upload failed", zap.String("key", key), zap.Error(err))
				return fiber.NewError(fiber.StatusBadGateway, "could not store export")
			}
			return c.Status(fiber.StatusCreated).JSON(fiber.Map{
				"key":   key,
				"rows":  len(table.Rows),
				"bytes": len(body),
			})
		}

		c.Set(fiber.HeaderContentType, contentType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s-%s.%s"`, resource, now.Format("20060102"), ext))
		return c.Send(body)
	}
}
