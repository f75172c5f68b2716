package sales

import (
	"errors"
	"strconv"

	"gooms-backend/internal/audit"
	"gooms-backend/internal/database"
	"gooms-backend/internal/events"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/inventory"
	"gooms-backend/internal/logger"
	"gooms-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SaleResponse struct {
	models.Sale
	ProductName string `json:"product_name"`
	SKU         string `json:"sku"`
}

var saleSortColumns = map[string]string{
	"date":         "date",
	"total_amount": "total_amount",
	"quantity":     "quantity",
}

// SalesQuery applies the list filters: product_id, location_id, channel, from/to.
func SalesQuery(c *fiber.Ctx, db *gorm.DB) (*gorm.DB, error) {
	q := db.Model(&models.Sale{})
	productID, err := httpx.QueryID(c, "product_id")
	if err != nil {
		return nil, err
	}
	if productID > 0 {
		q = q.Where("product_id = ?", productID)
	}
	locationID, err := httpx.QueryID(c, "location_id")
	if err != nil {
		return nil, err
	}
	if locationID > 0 {
		q = q.Where("location_id = ?", locationID)
	}
	if ch := c.Query("channel"); ch != "" {
		q = q.Where("channel = ?", ch)
	}
	if c.Query("from") != "" || c.Query("to") != "" {
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return nil, err
		}
		q = q.Where("date >= ? AND date < ?", from, to)
	}
	return q, nil
}

// GET /api/sales?product_id=1&from=2024-01-01&to=2024-01-31
func ListSalesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := SalesQuery(c, database.DB)
		if err != nil {
			return err
		}
		paging := httpx.ParsePaging(c, saleSortColumns, "date DESC, id DESC")
		page, err := httpx.FindPage[models.Sale](q.Preload("Product"), paging)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list sales")
		}

		items := make([]SaleResponse, 0, len(page.Items))
		for _, s := range page.Items {
			items = append(items, SaleResponse{Sale: s, ProductName: s.Product.Name, SKU: s.Product.SKU})
		}
		return c.JSON(httpx.Page[SaleResponse]{Items: items, Total: page.Total, Page: page.Page, PageSize: page.PageSize})
	}
}

// GET /api/sales/:id
func GetSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var s models.Sale
		if err := database.DB.Preload("Product").First(&s, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, ErrSaleNotFound.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not load sale")
		}
		return c.JSON(SaleResponse{Sale: s, ProductName: s.Product.Name, SKU: s.Product.SKU})
	}
}

// POST /api/sales
func CreateSaleHandler(pub events.Publisher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SaleInput
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		var (
			sale *models.Sale
			res  *inventory.MovementResult
		)
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			sale, res, err = RecordSale(tx, body, audit.ActorFromCtx(c))
			return err
		})
		if err != nil {
			return httpx.ToFiber(err, "could not record sale")
		}

		log := logger.FromCtx(c)
		events.Emit(c.UserContext(), pub, log, RecordedEvent(sale))
		if res.LowStock {
			events.Emit(c.UserContext(), pub, log, inventory.LowStockEvent(res))
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"sale":      SaleResponse{Sale: *sale, ProductName: sale.Product.Name, SKU: sale.Product.SKU},
			"level":     res.Level,
			"low_stock": res.LowStock,
		})
	}
}

// -----------------------------------------------------------------------------
// Projections
// -----------------------------------------------------------------------------

// GET /api/sales/projections?year=2024&product_id=3
func ListProjectionsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.SalesProjection{})
		if raw := c.Query("year"); raw != "" {
			year, err := strconv.Atoi(raw)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid year")
			}
			q = q.Where("year = ?", year)
		}
		productID, err := httpx.QueryID(c, "product_id")
		if err != nil {
			return err
		}
		if productID > 0 {
			q = q.Where("product_id = ?", productID)
		}

		var rows []models.SalesProjection
		if err := q.Order("year ASC, month ASC, product_id ASC").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list projections")
		}
		return c.JSON(rows)
	}
}

// PUT /api/sales/projections
func UpsertProjectionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ProjectionInput
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		p, err := UpsertProjection(database.DB, body)
		if err != nil {
			return httpx.ToFiber(err, "could not save projection")
		}
		return c.JSON(p)
	}
}

// DELETE /api/sales/projections/:id
func DeleteProjectionHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		if err := DeleteProjection(database.DB, id); err != nil {
			return httpx.ToFiber(err, "could not delete projection")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
