package inventory

import (
	"time"

	"gooms-backend/internal/audit"
	"gooms-backend/internal/database"
	"gooms-backend/internal/events"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/logger"
	"gooms-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StockLevelRow struct {
	ID           uint            `json:"id"`
	ProductID    uint            `json:"product_id"`
	SKU          string          `json:"sku"`
	ProductName  string          `json:"product_name"`
	Unit         string          `json:"unit"`
	LocationID   uint            `json:"location_id"`
	LocationName string          `json:"location_name"`
	Quantity     decimal.Decimal `json:"quantity"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	Value        decimal.Decimal `json:"value" gorm:"-"`
	LowStock     bool            `json:"low_stock" gorm:"-"`
}

// StockLevelsQuery builds the stock level listing shared by the API and exports.
func StockLevelsQuery(db *gorm.DB, productID, locationID uint, lowOnly bool) *gorm.DB {
	q := db.Table("inventory_items AS i").
		Select(`i.id, i.product_id, p.sku, p.name AS product_name, p.unit,
			i.location_id, l.name AS location_name, i.quantity, p.reorder_level, p.unit_cost`).
		Joins("JOIN products p ON p.id = i.product_id").
		Joins("JOIN locations l ON l.id = i.location_id")
	if productID > 0 {
		q = q.Where("i.product_id = ?", productID)
	}
	if locationID > 0 {
		q = q.Where("i.location_id = ?", locationID)
	}
	if lowOnly {
		q = q.Where("p.reorder_level > 0 AND i.quantity <= p.reorder_level")
	}
	return q
}

// FillDerived sets the computed value and low stock flag.
func (r *StockLevelRow) FillDerived() {
	r.Value = r.Quantity.Mul(r.UnitCost).Round(2)
	r.LowStock = r.ReorderLevel.IsPositive() && r.Quantity.LessThanOrEqual(r.ReorderLevel)
}

// GET /api/inventory/stock?product_id=&location_id=&low_stock=true
func ListStockLevelsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		productID, err := httpx.QueryID(c, "product_id")
		if err != nil {
			return err
		}
		locationID, err := httpx.QueryID(c, "location_id")
		if err != nil {
			return err
		}

		var rows []StockLevelRow
		if err := StockLevelsQuery(database.DB, productID, locationID, c.Query("low_stock") == "true").
			Order("p.name ASC, l.name ASC").
			Scan(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list stock levels")
		}

		total := decimal.Zero
		for i := range rows {
			rows[i].FillDerived()
			total = total.Add(rows[i].Value)
		}
		return c.JSON(fiber.Map{
			"items":       rows,
			"total_value": total,
		})
	}
}

var movementSortColumns = map[string]string{
	"date":     "date",
	"quantity": "quantity",
	"reason":   "reason",
}

// MovementsQuery filters stock movements by the list query parameters.
func MovementsQuery(c *fiber.Ctx, db *gorm.DB) (*gorm.DB, error) {
	q := db.Model(&models.StockMovement{})

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
	if reason := c.Query("reason"); reason != "" {
		q = q.Where("reason = ?", reason)
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

// GET /api/inventory/movements?product_id=&location_id=&reason=&from=&to=
func ListMovementsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := MovementsQuery(c, database.DB)
		if err != nil {
			return err
		}
		paging := httpx.ParsePaging(c, movementSortColumns, "date DESC, id DESC")
		page, err := httpx.FindPage[models.StockMovement](q, paging)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list movements")
		}
		return c.JSON(page)
	}
}

type CreateMovementRequest struct {
	ProductID  uint                  `json:"product_id" validate:"required"`
	LocationID uint                  `json:"location_id" validate:"required"`
	Quantity   decimal.Decimal       `json:"quantity"`
	Reason     models.MovementReason `json:"reason" validate:"required,oneof=adjustment waste"`
	Note       string                `json:"note" validate:"max=500"`
	Date       string                `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// ToInput converts the request into a movement. Waste is entered as a positive
// amount and always reduces stock; adjustments carry their own sign.
func (r CreateMovementRequest) ToInput(userID uint) (MovementInput, error) {
	date, err := httpx.DateOrToday(r.Date)
	if err != nil {
		return MovementInput{}, httpx.Invalid("invalid date")
	}
	qty := r.Quantity
	if r.Reason == models.MovementWaste {
		if !qty.IsPositive() {
			return MovementInput{}, httpx.Invalid("waste quantity must be greater than 0")
		}
		qty = qty.Neg()
	}
	return MovementInput{
		ProductID:  r.ProductID,
		LocationID: r.LocationID,
		Quantity:   qty,
		Reason:     r.Reason,
		Note:       r.Note,
		UserID:     userID,
		Date:       date,
	}, nil
}

// POST /api/inventory/movements
// Manual adjustments and waste. Other reasons are written by their own flows.
func CreateMovementHandler(pub events.Publisher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateMovementRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		actor := audit.ActorFromCtx(c)
		in, err := body.ToInput(actor.UserID)
		if err != nil {
			return httpx.ToFiber(err, "invalid movement")
		}

		var res *MovementResult
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			if res, err = ApplyMovement(tx, in); err != nil {
				return err
			}
			return actor.Record(tx, audit.EntityStockMovement, res.Movement.ID, models.AuditActionCreate,
				string(in.Reason)+" "+res.Product.SKU, nil, res.Movement)
		})
		if err != nil {
			return httpx.ToFiber(err, "could not record movement")
		}

		if res.LowStock {
			events.Emit(c.UserContext(), pub, logger.FromCtx(c), LowStockEvent(res))
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"movement":  res.Movement,
			"level":     res.Level,
			"low_stock": res.LowStock,
		})
	}
}

type TransferRequest struct {
	ProductID      uint            `json:"product_id" validate:"required"`
	FromLocationID uint            `json:"from_location_id" validate:"required"`
	ToLocationID   uint            `json:"to_location_id" validate:"required,nefield=FromLocationID"`
	Quantity       decimal.Decimal `json:"quantity" validate:"gt=0"`
	Note           string          `json:"note" validate:"max=500"`
	Date           string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// POST /api/inventory/transfers
func TransferHandler(pub events.Publisher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body TransferRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		date, err := httpx.DateOrToday(body.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid date")
		}
		actor := audit.ActorFromCtx(c)

		var out, into *MovementResult
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var err error
			out, into, err = Transfer(tx, TransferInput{
				ProductID:      body.ProductID,
				FromLocationID: body.FromLocationID,
				ToLocationID:   body.ToLocationID,
				Quantity:       body.Quantity,
				Note:           body.Note,
				UserID:         actor.UserID,
				Date:           date,
			})
			if err != nil {
				return err
			}
			return actor.Record(tx, audit.EntityStockMovement, out.Movement.ID, models.AuditActionCreate,
				"transfer "+out.Movement.Reference, nil, []models.StockMovement{out.Movement, into.Movement})
		})
		if err != nil {
			return httpx.ToFiber(err, "could not transfer stock")
		}

		if out.LowStock {
			events.Emit(c.UserContext(), pub, logger.FromCtx(c), LowStockEvent(out))
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"reference": out.Movement.Reference,
			"from":      fiber.Map{"location_id": body.FromLocationID, "level": out.Level},
			"to":        fiber.Map{"location_id": body.ToLocationID, "level": into.Level},
			"date":      date.Format(time.DateOnly),
		})
	}
}
