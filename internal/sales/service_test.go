package sales

import (
	"errors"
	"testing"
	"time"

	"gooms-backend/internal/audit"
	"gooms-backend/internal/database"
	"gooms-backend/internal/database/dbtest"
	"gooms-backend/internal/inventory"
	"gooms-backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seller = audit.Actor{UserID: 6, Name: "sales@example.com", Source: audit.SourceOnline}

func productRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "sku", "name", "unit", "unit_cost", "unit_price", "reorder_level", "is_active"}).
		AddRow(1, "JAM-250", "Strawberry jam 250g", "jar", "1.20", "3.50", "20", true)
}

func expectStockDecrement(mock sqlmock.Sqlmock, level string) {
	mock.ExpectQuery(`SELECT \* FROM "products" WHERE "products"."id" = \$1`).
		WithArgs(1, 1).
		WillReturnRows(productRows())
	mock.ExpectQuery(`SELECT "id" FROM "locations"`).
		WithArgs(3, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectQuery(`INSERT INTO "inventory_items"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT \* FROM "inventory_items" .* FOR UPDATE`).
		WithArgs(1, 3, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "location_id", "quantity"}).AddRow(9, 1, 3, level))
}

func TestRecordSale(t *testing.T) {
	mock := dbtest.Mock(t)

	mock.ExpectQuery(`SELECT \* FROM "products" WHERE "products"."id" = \$1`).
		WithArgs(1, 1).
		WillReturnRows(productRows())
	mock.ExpectQuery(`INSERT INTO "sales"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(12))
	expectStockDecrement(mock, "25")
	mock.ExpectExec(`UPDATE "inventory_items" SET "quantity"=\$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "stock_movements"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(80))
	mock.ExpectQuery(`INSERT INTO "financial_transactions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(30))
	mock.ExpectQuery(`INSERT INTO "audit_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO "audit_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	sale, res, err := RecordSale(database.DB, SaleInput{
		ProductID:  1,
		LocationID: 3,
		Quantity:   decimal.NewFromInt(6),
		Customer:   "Corner Deli",
		Date:       "2025-03-04",
	}, seller)
	require.NoError(t, err)

	assert.Equal(t, uint(12), sale.ID)
	assert.Equal(t, "21.00", sale.TotalAmount.StringFixed(2))
	assert.Equal(t, "1.2", sale.UnitCost.String())
	assert.Equal(t, models.ChannelRetail, sale.Channel)
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), sale.Date)
	assert.Equal(t, "sale:12", res.Movement.Reference)
	assert.Equal(t, "19", res.Level.String())
	assert.True(t, res.LowStock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSale_InsufficientStock(t *testing.T) {
	mock := dbtest.Mock(t)

	mock.ExpectQuery(`SELECT \* FROM "products"`).
		WithArgs(1, 1).
		WillReturnRows(productRows())
	mock.ExpectQuery(`INSERT INTO "sales"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(13))
	expectStockDecrement(mock, "2")

	_, _, err := RecordSale(database.DB, SaleInput{ProductID: 1, LocationID: 3, Quantity: decimal.NewFromInt(5)}, seller)
	require.Error(t, err)
	assert.True(t, errors.Is(err, inventory.ErrInsufficientStock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSale_UnknownProduct(t *testing.T) {
	mock := dbtest.Mock(t)
	mock.ExpectQuery(`SELECT \* FROM "products"`).
		WithArgs(44, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, _, err := RecordSale(database.DB, SaleInput{ProductID: 44, LocationID: 3, Quantity: decimal.NewFromInt(1)}, seller)
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
}

func TestUpsertProjection_DefaultsRevenueToListPrice(t *testing.T) {
	mock := dbtest.Mock(t)
	mock.ExpectQuery(`SELECT "id","unit_price" FROM "products"`).
		WithArgs(1, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "unit_price"}).AddRow(1, "3.50"))
	mock.ExpectQuery(`INSERT INTO "sales_projections" .* ON CONFLICT \("product_id","year","month"\) DO UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))

	p, err := UpsertProjection(database.DB, ProjectionInput{
		ProductID:         1,
		Year:              2025,
		Month:             5,
		ProjectedQuantity: decimal.NewFromInt(400),
	})
	require.NoError(t, err)
	assert.Equal(t, "1400", p.ProjectedRevenue.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProjection_NotFound(t *testing.T) {
	mock := dbtest.Mock(t)
	mock.ExpectExec(`DELETE FROM "sales_projections"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, DeleteProjection(database.DB, 8), ErrProjectionNotFound)
}
