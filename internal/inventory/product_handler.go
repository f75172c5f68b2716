package inventory

import (
	"errors"

	"gooms-backend/internal/audit"
	"gooms-backend/internal/database"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

var productSortColumns = map[string]string{
	"sku":        "sku",
	"name":       "name",
	"category":   "category",
	"unit_cost":  "unit_cost",
	"unit_price": "unit_price",
	"created_at": "created_at",
}

// GET /api/products?q=flour&category=raw&active=true&sort=name&order=asc&page=1&page_size=50
func ListProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Product{})

		if q := c.Query("q"); q != "" {
			like := "%" + q + "%"
			dbq = dbq.Where("name ILIKE ? OR sku ILIKE ?", like, like)
		}
		if category := c.Query("category"); category != "" {
			dbq = dbq.Where("category = ?", category)
		}
		switch c.Query("active") {
		case "true":
			dbq = dbq.Where("is_active = ?", true)
		case "false":
			dbq = dbq.Where("is_active = ?", false)
		}

		paging := httpx.ParsePaging(c, productSortColumns, "name ASC, id ASC")
		page, err := httpx.FindPage[models.Product](dbq, paging)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list products")
		}
		return c.JSON(page)
	}
}

// GET /api/products/:id
func GetProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var p models.Product
		if err := database.DB.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "product not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not load product")
		}
		return c.JSON(p)
	}
}

// POST /api/products
func CreateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ProductInput
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		var p *models.Product
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			p, err = CreateProduct(tx, body, audit.ActorFromCtx(c))
			return err
		})
		if err != nil {
			return httpx.ToFiber(err, "could not create product")
		}
		return c.Status(fiber.StatusCreated).JSON(p)
	}
}

// PUT /api/products/:id
func UpdateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body ProductPatch
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		var p *models.Product
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			p, err = UpdateProduct(tx, id, body, audit.ActorFromCtx(c))
			return err
		})
		if err != nil {
			return httpx.ToFiber(err, "could not update product")
		}
		return c.JSON(p)
	}
}

// DELETE /api/products/:id
func DeleteProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			return DeleteProduct(tx, id, audit.ActorFromCtx(c))
		})
		if err != nil {
			return httpx.ToFiber(err, "could not delete product")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
