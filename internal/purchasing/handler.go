package purchasing

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
	"gorm.io/gorm"
)

type OrderResponse struct {
	models.PurchaseOrder
	SupplierName string `json:"supplier_name"`
	LocationName string `json:"location_name"`
}

func toOrderResponse(po *models.PurchaseOrder) OrderResponse {
	return OrderResponse{PurchaseOrder: *po, SupplierName: po.Supplier.Name, LocationName: po.Location.Name}
}

var orderSortColumns = map[string]string{
	"order_date":   "order_date",
	"number":       "number",
	"status":       "status",
	"total_amount": "total_amount",
}

// OrdersQuery applies the list filters: status, supplier_id, location_id, from/to on order_date.
func OrdersQuery(c *fiber.Ctx, db *gorm.DB) (*gorm.DB, error) {
	q := db.Model(&models.PurchaseOrder{})
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	supplierID, err := httpx.QueryID(c, "supplier_id")
	if err != nil {
		return nil, err
	}
	if supplierID > 0 {
		q = q.Where("supplier_id = ?", supplierID)
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
		q = q.Where("order_date >= ? AND order_date < ?", from, to)
	}
	return q, nil
}

// GET /api/purchase-orders?status=ordered&supplier_id=2
func ListOrdersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := OrdersQuery(c, database.DB)
		if err != nil {
			return err
		}
		paging := httpx.ParsePaging(c, orderSortColumns, "order_date DESC, id DESC")
		page, err := httpx.FindPage[models.PurchaseOrder](q.Preload("Supplier").Preload("Location"), paging)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list purchase orders")
		}
		items := make([]OrderResponse, 0, len(page.Items))
		for i := range page.Items {
			items = append(items, toOrderResponse(&page.Items[i]))
		}
		return c.JSON(httpx.Page[OrderResponse]{Items: items, Total: page.Total, Page: page.Page, PageSize: page.PageSize})
	}
}

// GET /api/purchase-orders/:id
func GetOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var po models.PurchaseOrder
		err = database.DB.Preload("Supplier").Preload("Location").
			Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
			Preload("Items.Product").
			First(&po, id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, ErrOrderNotFound.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not load purchase order")
		}
		return c.JSON(toOrderResponse(&po))
	}
}

// POST /api/purchase-orders
func CreateOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body OrderInput
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		var po *models.PurchaseOrder
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			po, err = CreateOrder(tx, body, audit.ActorFromCtx(c))
			return err
		})
		if err != nil {
			return httpx.ToFiber(err, "could not create purchase order")
		}
		return c.Status(fiber.StatusCreated).JSON(toOrderResponse(po))
	}
}

// POST /api/purchase-orders/:id/submit
func SubmitOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var po *models.PurchaseOrder
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			po, err = SubmitOrder(tx, id, audit.ActorFromCtx(c))
			return err
		})
		if err != nil {
			return httpx.ToFiber(err, "could not submit purchase order")
		}
		return c.JSON(po)
	}
}

// POST /api/purchase-orders/:id/receive
func ReceiveOrderHandler(pub events.Publisher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var (
			po      *models.PurchaseOrder
			results []*inventory.MovementResult
		)
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			po, results, err = ReceiveOrder(tx, id, audit.ActorFromCtx(c))
			return err
		})
		if err != nil {
			return httpx.ToFiber(err, "could not receive purchase order")
		}

		events.Emit(c.UserContext(), pub, logger.FromCtx(c), ReceivedEvent(po))
		levels := make([]fiber.Map, 0, len(results))
		for _, r := range results {
			levels = append(levels, fiber.Map{"product_id": r.Product.ID, "level": r.Level})
		}
		return c.JSON(fiber.Map{"purchase_order": po, "stock_levels": levels})
	}
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

// POST /api/purchase-orders/:id/cancel
func CancelOrderHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body CancelRequest
		if len(c.Body()) > 0 {
			if err := httpx.ParseBody(c, &body); err != nil {
				return err
			}
		}
		var po *models.PurchaseOrder
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			po, err = CancelOrder(tx, id, body.Reason, audit.ActorFromCtx(c))
			return err
		})
		if err != nil {
			return httpx.ToFiber(err, "could not cancel purchase order")
		}
		return c.JSON(po)
	}
}
