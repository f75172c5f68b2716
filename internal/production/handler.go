package production

import (
	"errors"

	"gooms-backend/internal/audit"
	"gooms-backend/internal/database"
	"gooms-backend/internal/events"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/inventory"
	"gooms-backend/internal/logger"
	"gooms-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BatchResponse struct {
	models.ProductionBatch
	ProductName  string          `json:"product_name"`
	LocationName string          `json:"location_name"`
	YieldPercent decimal.Decimal `json:"yield_percent"`
}

func toBatchResponse(b *models.ProductionBatch) BatchResponse {
	return BatchResponse{
		ProductionBatch: *b,
		ProductName:     b.Product.Name,
		LocationName:    b.Location.Name,
		YieldPercent:    Yield(b),
	}
}

var batchSortColumns = map[string]string{
	"planned_date": "planned_date",
	"status":       "status",
	"batch_number": "batch_number",
	"created_at":   "created_at",
}

// BatchesQuery applies the list filters: status, product_id, location_id, from/to on planned_date.
func BatchesQuery(c *fiber.Ctx, db *gorm.DB) (*gorm.DB, error) {
	q := db.Model(&models.ProductionBatch{})
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
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
	if c.Query("from") != "" || c.Query("to") != "" {
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return nil, err
		}
		q = q.Where("planned_date >= ? AND planned_date < ?", from, to)
	}
	return q, nil
}

// GET /api/production/batches?status=in_progress&product_id=3
func ListBatchesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := BatchesQuery(c, database.DB)
		if err != nil {
			return err
		}
		paging := httpx.ParsePaging(c, batchSortColumns, "planned_date DESC, id DESC")
		page, err := httpx.FindPage[models.ProductionBatch](q.Preload("Product").Preload("Location"), paging)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list batches")
		}

		items := make([]BatchResponse, 0, len(page.Items))
		for i := range page.Items {
			items = append(items, toBatchResponse(&page.Items[i]))
		}
		return c.JSON(httpx.Page[BatchResponse]{Items: items, Total: page.Total, Page: page.Page, PageSize: page.PageSize})
	}
}

// GET /api/production/batches/:id
func GetBatchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var b models.ProductionBatch
		if err := database.DB.Preload("Product").Preload("Location").First(&b, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "production batch not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not load batch")
		}
		return c.JSON(toBatchResponse(&b))
	}
}

// POST /api/production/batches
func CreateBatchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body BatchInput
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		var b *models.ProductionBatch
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			b, err = CreateBatch(tx, body, audit.ActorFromCtx(c))
			return err
		})
		if err != nil {
			return httpx.ToFiber(err, "could not create batch")
		}
		return c.Status(fiber.StatusCreated).JSON(toBatchResponse(b))
	}
}

// POST /api/production/batches/:id/start
func StartBatchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return changeStatus(c, nil, StatusChange{Status: models.BatchInProgress})
	}
}

type CompleteRequest struct {
	ProducedQuantity decimal.Decimal `json:"produced_quantity" validate:"gt=0"`
}

// POST /api/production/batches/:id/complete
func CompleteBatchHandler(pub events.Publisher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CompleteRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		return changeStatus(c, pub, StatusChange{Status: models.BatchCompleted, ProducedQuantity: body.ProducedQuantity})
	}
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

// POST /api/production/batches/:id/cancel
func CancelBatchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CancelRequest
		if len(c.Body()) > 0 {
			if err := httpx.ParseBody(c, &body); err != nil {
				return err
			}
		}
		return changeStatus(c, nil, StatusChange{Status: models.BatchCancelled, Reason: body.Reason})
	}
}

func changeStatus(c *fiber.Ctx, pub events.Publisher, change StatusChange) error {
	id, err := httpx.ParamID(c, "id")
	if err != nil {
		return err
	}

	var (
		b   *models.ProductionBatch
		res *inventory.MovementResult
	)
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		b, res, err = SetStatus(tx, id, change, audit.ActorFromCtx(c))
		return err
	})
	if err != nil {
		return httpx.ToFiber(err, "could not update batch")
	}

	if b.Status == models.BatchCompleted {
		events.Emit(c.UserContext(), pub, logger.FromCtx(c), CompletedEvent(b))
	}
	resp := fiber.Map{"batch": toBatchResponse(b)}
	if res != nil {
		resp["stock_level"] = res.Level
	}
	return c.JSON(resp)
}
