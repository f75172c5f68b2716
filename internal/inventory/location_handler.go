package inventory

import (
	"errors"
	"strings"

	"gooms-backend/internal/audit"
	"gooms-backend/internal/database"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type LocationRequest struct {
	Name     string              `json:"name" validate:"required,max=100"`
	Type     models.LocationType `json:"type" validate:"required,oneof=warehouse production store"`
	Address  string              `json:"address" validate:"max=255"`
	IsActive *bool               `json:"is_active"`
}

// GET /api/locations?type=warehouse
func ListLocationsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Location{})
		if t := c.Query("type"); t != "" {
			dbq = dbq.Where("type = ?", t)
		}
		if c.Query("active") == "true" {
			dbq = dbq.Where("is_active = ?", true)
		}

		var locations []models.Location
		if err := dbq.Order("name ASC").Find(&locations).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list locations")
		}
		return c.JSON(locations)
	}
}

// POST /api/locations
func CreateLocationHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LocationRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		loc := models.Location{
			Name:     strings.TrimSpace(body.Name),
			Type:     body.Type,
			Address:  strings.TrimSpace(body.Address),
			IsActive: true,
		}

		var count int64
		database.DB.Model(&models.Location{}).Where("name = ?", loc.Name).Count(&count)
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "a location with this name already exists")
		}

		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&loc).Error; err != nil {
				return err
			}
			return audit.ActorFromCtx(c).Record(tx, audit.EntityLocation, loc.ID, models.AuditActionCreate, "location created: "+loc.Name, nil, loc)
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not create location")
		}
		return c.Status(fiber.StatusCreated).JSON(loc)
	}
}

// PUT /api/locations/:id
func UpdateLocationHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body LocationRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		var loc models.Location
		if err := database.DB.First(&loc, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "location not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not load location")
		}
		before := loc

		loc.Name = strings.TrimSpace(body.Name)
		loc.Type = body.Type
		loc.Address = strings.TrimSpace(body.Address)
		if body.IsActive != nil {
			loc.IsActive = *body.IsActive
		}

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Save(&loc).Error; err != nil {
				return err
			}
			return audit.ActorFromCtx(c).Record(tx, audit.EntityLocation, loc.ID, models.AuditActionUpdate, "location updated: "+loc.Name, before, loc)
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not update location")
		}
		return c.JSON(loc)
	}
}
