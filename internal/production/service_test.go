package production

import (
	"testing"
	"time"

	"gooms-backend/internal/audit"
	"gooms-backend/internal/database"
	"gooms-backend/internal/database/dbtest"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	all := []models.BatchStatus{models.BatchPlanned, models.BatchInProgress, models.BatchCompleted, models.BatchCancelled}
	allowed := map[[2]models.BatchStatus]bool{
		{models.BatchPlanned, models.BatchInProgress}:   true,
		{models.BatchPlanned, models.BatchCancelled}:    true,
		{models.BatchInProgress, models.BatchCompleted}: true,
		{models.BatchInProgress, models.BatchCancelled}: true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]models.BatchStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestBatchNumber(t *testing.T) {
	assert.Equal(t, "B-20250301-42", BatchNumber(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 42))
}

func TestYield(t *testing.T) {
	b := &models.ProductionBatch{PlannedQuantity: decimal.NewFromInt(200), ProducedQuantity: decimal.NewFromInt(190)}
	assert.Equal(t, "95", Yield(b).String())
	assert.True(t, Yield(&models.ProductionBatch{}).IsZero())
}

func batchRow(status models.BatchStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "batch_number", "product_id", "location_id", "planned_quantity", "produced_quantity", "status"}).
		AddRow(4, "B-20250301-4", 1, 2, "100", "0", string(status))
}

func TestStartBatch(t *testing.T) {
	mock := dbtest.Mock(t)
	mock.ExpectQuery(`SELECT \* FROM "production_batches" WHERE "production_batches"."id" = \$1 .* FOR UPDATE`).
		WithArgs(4, 1).
		WillReturnRows(batchRow(models.BatchPlanned))
	mock.ExpectExec(`UPDATE "production_batches" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "audit_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	b, err := StartBatch(database.DB, 4, audit.Actor{UserID: 3, Name: "ops@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.BatchInProgress, b.Status)
	assert.NotNil(t, b.StartedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteBatch_RequiresInProgress(t *testing.T) {
	mock := dbtest.Mock(t)
	mock.ExpectQuery(`SELECT \* FROM "production_batches"`).
		WillReturnRows(batchRow(models.BatchPlanned))

	_, _, err := CompleteBatch(database.DB, 4, decimal.NewFromInt(90), audit.Actor{})
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, fiber.StatusConflict, httpx.Status(err))
	assert.Contains(t, err.Error(), "planned -> completed")
}

func TestCancelBatch_FromCompletedFails(t *testing.T) {
	mock := dbtest.Mock(t)
	mock.ExpectQuery(`SELECT \* FROM "production_batches"`).
		WillReturnRows(batchRow(models.BatchCompleted))

	_, err := CancelBatch(database.DB, 4, "machine broke", audit.Actor{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSetStatus_Unknown(t *testing.T) {
	dbtest.Mock(t)
	_, _, err := SetStatus(database.DB, 4, StatusChange{Status: models.BatchPlanned}, audit.Actor{})
	assert.ErrorIs(t, err, httpx.ErrInvalid)
}

func TestCompleteBatch_RejectsZeroQuantity(t *testing.T) {
	dbtest.Mock(t)
	_, _, err := CompleteBatch(database.DB, 4, decimal.Zero, audit.Actor{})
	assert.ErrorIs(t, err, httpx.ErrInvalid)
}
