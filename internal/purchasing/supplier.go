package purchasing

import (
	"errors"
	"fmt"
	"strings"

	"gooms-backend/internal/audit"
	"gooms-backend/internal/database"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var (
	ErrSupplierNotFound = httpx.NotFound("supplier not found")
	ErrSupplierExists   = httpx.Conflict("a supplier with this name already exists")
	ErrSupplierInUse    = httpx.Conflict("supplier has purchase orders, deactivate it instead")
)

type SupplierRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	ContactName string `json:"contact_name" validate:"max=100"`
	Email       string `json:"email" validate:"omitempty,email,max=100"`
	Phone       string `json:"phone" validate:"max=50"`
	Address     string `json:"address" validate:"max=255"`
	Description string `json:"description" validate:"max=500"`
	IsActive    *bool  `json:"is_active"`
}

func (r SupplierRequest) apply(s *models.Supplier) {
	s.Name = strings.TrimSpace(r.Name)
	s.ContactName = strings.TrimSpace(r.ContactName)
	s.Email = strings.TrimSpace(r.Email)
	s.Phone = strings.TrimSpace(r.Phone)
	s.Address = strings.TrimSpace(r.Address)
	s.Description = strings.TrimSpace(r.Description)
	if r.IsActive != nil {
		s.IsActive = *r.IsActive
	}
}

func nameTaken(tx *gorm.DB, name string, exceptID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.Supplier{}).Where("LOWER(name) = LOWER(?) AND id <> ?", name, exceptID).Count(&count).Error
	return count > 0, err
}

func CreateSupplier(tx *gorm.DB, in SupplierRequest, actor audit.Actor) (*models.Supplier, error) {
	s := models.Supplier{IsActive: true}
	in.apply(&s)

	taken, err := nameTaken(tx, s.Name, 0)
	if err != nil {
		return nil, fmt.Errorf("check supplier name: %w", err)
	}
	if taken {
		return nil, ErrSupplierExists
	}
	if err := tx.Create(&s).Error; err != nil {
		return nil, fmt.Errorf("create supplier: %w", err)
	}
	if err := actor.Record(tx, audit.EntitySupplier, s.ID, models.AuditActionCreate, "supplier created: "+s.Name, nil, s); err != nil {
		return nil, err
	}
	return &s, nil
}

func UpdateSupplier(tx *gorm.DB, id uint, in SupplierRequest, actor audit.Actor) (*models.Supplier, error) {
	var s models.Supplier
	if err := tx.First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSupplierNotFound
		}
		return nil, fmt.Errorf("load supplier: %w", err)
	}
	before := s
	in.apply(&s)

	taken, err := nameTaken(tx, s.Name, s.ID)
	if err != nil {
		return nil, fmt.Errorf("check supplier name: %w", err)
	}
	if taken {
		return nil, ErrSupplierExists
	}
	if err := tx.Save(&s).Error; err != nil {
		return nil, fmt.Errorf("update supplier: %w", err)
	}
	if err := actor.Record(tx, audit.EntitySupplier, s.ID, models.AuditActionUpdate, "supplier updated: "+s.Name, before, s); err != nil {
		return nil, err
	}
	return &s, nil
}

func DeleteSupplier(tx *gorm.DB, id uint, actor audit.Actor) error {
	var s models.Supplier
	if err := tx.First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSupplierNotFound
		}
		return fmt.Errorf("load supplier: %w", err)
	}
	var orders int64
	if err := tx.Model(&models.PurchaseOrder{}).Where("supplier_id = ?", id).Count(&orders).Error; err != nil {
		return fmt.Errorf("count orders: %w", err)
	}
	if orders > 0 {
		return ErrSupplierInUse
	}
	if err := tx.Delete(&s).Error; err != nil {
		return fmt.Errorf("delete supplier: %w", err)
	}
	return actor.Record(tx, audit.EntitySupplier, s.ID, models.AuditActionDelete, "supplier deleted: "+s.Name, s, nil)
}

// GET /api/suppliers?search=mill&active=true
func ListSuppliersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.Supplier{})
		if s := strings.TrimSpace(c.Query("search")); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			q = q.Where("LOWER(name) LIKE ? OR LOWER(contact_name) LIKE ?", like, like)
		}
		if c.Query("active") == "true" {
			q = q.Where("is_active = ?", true)
		}
		var suppliers []models.Supplier
		if err := q.Order("name ASC").Find(&suppliers).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list suppliers")
		}
		return c.JSON(suppliers)
	}
}

// POST /api/suppliers
func CreateSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SupplierRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		var s *models.Supplier
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			s, err = CreateSupplier(tx, body, audit.ActorFromCtx(c))
			return err
		})
		if err != nil {
			return httpx.ToFiber(err, "could not create supplier")
		}
		return c.Status(fiber.StatusCreated).JSON(s)
	}
}

// PUT /api/suppliers/:id
func UpdateSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body SupplierRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		var s *models.Supplier
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			s, err = UpdateSupplier(tx, id, body, audit.ActorFromCtx(c))
			return err
		})
		if err != nil {
			return httpx.ToFiber(err, "could not update supplier")
		}
		return c.JSON(s)
	}
}

// DELETE /api/suppliers/:id
func DeleteSupplierHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			return DeleteSupplier(tx, id, audit.ActorFromCtx(c))
		})
		if err != nil {
			return httpx.ToFiber(err, "could not delete supplier")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
