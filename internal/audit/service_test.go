package audit

import (
	"testing"

	"gooms-backend/internal/database/dbtest"
	"gooms-backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToJSON(t *testing.T) {
	assert.Equal(t, "null", toJSON(nil))
	assert.Equal(t, `{"a":1}`, toJSON(map[string]int{"a": 1}))
}

func TestWriteLog(t *testing.T) {
	mock := dbtest.Mock(t)
	mock.ExpectQuery(`INSERT INTO "audit_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	err := WriteLog(LogOptions{
		UserID:     2,
		UserName:   "fin@example.com",
		EntityType: EntityFinancialTransaction,
		EntityID:   5,
		Action:     models.AuditActionCreate,
		After:      map[string]string{"category": "rent"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func auditRow(id uint, entityType string, action models.AuditAction, undone bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "entity_type", "entity_id", "action", "description", "before_data", "after_data", "is_undone"}).
		AddRow(id, entityType, 3, string(action), "create product", "null", `{"id":3}`, undone)
}

func TestUndoLog_CreateDeletesEntity(t *testing.T) {
	mock := dbtest.Mock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "audit_logs" WHERE "audit_logs"."id" = \$1`).
		WithArgs(7, 1).
		WillReturnRows(auditRow(7, EntityProduct, models.AuditActionCreate, false))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "stock_movements" WHERE product_id = \$1`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM "inventory_items" WHERE product_id = \$1`).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM "products" WHERE "products"."id" = \$1`).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "audit_logs" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "audit_logs"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(8))
	mock.ExpectCommit()

	require.NoError(t, UndoLog(7, 1, "admin@example.com"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUndoLog_CreatedProductWithStockHistory(t *testing.T) {
	mock := dbtest.Mock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "audit_logs"`).
		WithArgs(7, 1).
		WillReturnRows(auditRow(7, EntityProduct, models.AuditActionCreate, false))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "stock_movements" WHERE product_id = \$1`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := UndoLog(7, 1, "admin@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotUndoable)
	assert.Contains(t, err.Error(), "stock history")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUndoLog_AlreadyUndone(t *testing.T) {
	mock := dbtest.Mock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "audit_logs"`).
		WillReturnRows(auditRow(7, EntityProduct, models.AuditActionCreate, true))
	mock.ExpectRollback()

	assert.ErrorIs(t, UndoLog(7, 1, "admin@example.com"), ErrAlreadyUndone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUndoLog_UnsupportedEntity(t *testing.T) {
	mock := dbtest.Mock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "audit_logs"`).
		WillReturnRows(auditRow(9, EntityStockMovement, models.AuditActionCreate, false))
	mock.ExpectRollback()

	assert.ErrorIs(t, UndoLog(9, 1, "admin@example.com"), ErrNotUndoable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUndoable(t *testing.T) {
	assert.True(t, Undoable(EntityFinancialTransaction))
	assert.True(t, Undoable(EntitySupplier))
	assert.False(t, Undoable(EntityStockMovement))
}
