package sales

import (
	"errors"
	"fmt"
	"strings"

	"gooms-backend/internal/audit"
	"gooms-backend/internal/events"
	"gooms-backend/internal/finance"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/inventory"
	"gooms-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSaleNotFound       = httpx.NotFound("sale not found")
	ErrProjectionNotFound = httpx.NotFound("sales projection not found")
)

type SaleInput struct {
	ProductID  uint                `json:"product_id" validate:"required"`
	LocationID uint                `json:"location_id" validate:"required"`
	Quantity   decimal.Decimal     `json:"quantity" validate:"gt=0"`
	UnitPrice  *decimal.Decimal    `json:"unit_price"` // defaults to the product list price
	Customer   string              `json:"customer" validate:"max=150"`
	Channel    models.SalesChannel `json:"channel" validate:"omitempty,oneof=retail wholesale online"`
	Date       string              `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Note       string              `json:"note" validate:"max=255"`
}

// Reference ties the stock movement and ledger line back to the sale.
func Reference(saleID uint) string {
	return fmt.Sprintf("sale:%d", saleID)
}

// RecordSale books a sale: the sale row, a stock decrement at the selling
// location and an income ledger entry. Must run inside a transaction.
func RecordSale(tx *gorm.DB, in SaleInput, actor audit.Actor) (*models.Sale, *inventory.MovementResult, error) {
	if !in.Quantity.IsPositive() {
		return nil, nil, httpx.Invalid("quantity must be greater than 0")
	}
	date, err := httpx.DateOrToday(in.Date)
	if err != nil {
		return nil, nil, httpx.Invalid("invalid date")
	}

	var product models.Product
	if err := tx.First(&product, in.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, inventory.ErrProductNotFound
		}
		return nil, nil, fmt.Errorf("load product: %w", err)
	}
	if !product.IsActive {
		return nil, nil, inventory.ErrInactiveProduct
	}

	price := product.UnitPrice
	if in.UnitPrice != nil {
		if in.UnitPrice.IsNegative() {
			return nil, nil, httpx.Invalid("unit_price must not be negative")
		}
		price = *in.UnitPrice
	}
	channel := in.Channel
	if channel == "" {
		channel = models.ChannelRetail
	}

	sale := models.Sale{
		ProductID:   product.ID,
		LocationID:  in.LocationID,
		Quantity:    in.Quantity,
		UnitPrice:   price,
		UnitCost:    product.UnitCost,
		TotalAmount: in.Quantity.Mul(price).Round(2),
		Customer:    strings.TrimSpace(in.Customer),
		Channel:     channel,
		Date:        date,
		CreatedBy:   actor.UserID,
	}
	if err := tx.Create(&sale).Error; err != nil {
		return nil, nil, fmt.Errorf("create sale: %w", err)
	}

	res, err := inventory.ApplyMovement(tx, inventory.MovementInput{
		ProductID:  sale.ProductID,
		LocationID: sale.LocationID,
		Quantity:   sale.Quantity.Neg(),
		Reason:     models.MovementSale,
		Reference:  Reference(sale.ID),
		Note:       in.Note,
		UserID:     actor.UserID,
		Date:       date,
	})
	if err != nil {
		return nil, nil, err
	}

	if sale.TotalAmount.IsPositive() {
		if err := finance.RecordEntry(tx, &models.FinancialTransaction{
			Type:        models.TransactionIncome,
			Category:    finance.CategorySales,
			Amount:      sale.TotalAmount,
			Date:        date,
			Description: fmt.Sprintf("%s x %s %s", product.Name, sale.Quantity.String(), product.Unit),
			Reference:   Reference(sale.ID),
		}, actor); err != nil {
			return nil, nil, err
		}
	}

	if err := actor.Record(tx, audit.EntitySale, sale.ID, models.AuditActionCreate,
		fmt.Sprintf("sale of %s %s %s", sale.Quantity.String(), product.Unit, product.SKU), nil, sale); err != nil {
		return nil, nil, err
	}
	sale.Product = product
	return &sale, res, nil
}

func RecordedEvent(s *models.Sale) events.Event {
	return events.New(events.TypeSaleRecorded, fmt.Sprintf("sale:%d", s.ID), map[string]interface{}{
		"sale_id":      s.ID,
		"product_id":   s.ProductID,
		"location_id":  s.LocationID,
		"quantity":     s.Quantity,
		"total_amount": s.TotalAmount,
		"channel":      s.Channel,
		"date":         s.Date.Format(httpx.DateLayout),
	})
}

// -----------------------------------------------------------------------------
// Projections
// -----------------------------------------------------------------------------

type ProjectionInput struct {
	ProductID         uint             `json:"product_id" validate:"required"`
	Year              int              `json:"year" validate:"required,gte=2000,lte=2100"`
	Month             int              `json:"month" validate:"required,gte=1,lte=12"`
	ProjectedQuantity decimal.Decimal  `json:"projected_quantity" validate:"gte=0"`
	ProjectedRevenue  *decimal.Decimal `json:"projected_revenue"` // defaults to quantity x list price
	Note              string           `json:"note" validate:"max=255"`
}

// UpsertProjection creates or replaces the projection for a product and month.
func UpsertProjection(tx *gorm.DB, in ProjectionInput) (*models.SalesProjection, error) {
	var product models.Product
	if err := tx.Select("id", "unit_price").First(&product, in.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.ErrProductNotFound
		}
		return nil, fmt.Errorf("load product: %w", err)
	}

	revenue := in.ProjectedQuantity.Mul(product.UnitPrice).Round(2)
	if in.ProjectedRevenue != nil {
		if in.ProjectedRevenue.IsNegative() {
			return nil, httpx.Invalid("projected_revenue must not be negative")
		}
		revenue = in.ProjectedRevenue.Round(2)
	}

	p := models.SalesProjection{
		ProductID:         in.ProductID,
		Year:              in.Year,
		Month:             in.Month,
		ProjectedQuantity: in.ProjectedQuantity,
		ProjectedRevenue:  revenue,
		Note:              strings.TrimSpace(in.Note),
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "year"}, {Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{"projected_quantity", "projected_revenue", "note", "updated_at"}),
	}).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("upsert projection: %w", err)
	}
	return &p, nil
}

func DeleteProjection(tx *gorm.DB, id uint) error {
	res := tx.Delete(&models.SalesProjection{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete projection: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrProjectionNotFound
	}
	return nil
}
