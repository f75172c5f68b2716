package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gooms-backend/internal/database"
	"gooms-backend/internal/models"

	"gorm.io/gorm"
)

const (
	EntityFinancialTransaction = "financial_transaction"
	EntityProduct              = "product"
	EntitySupplier             = "supplier"
	EntityLocation             = "location"
	EntityProductionBatch      = "production_batch"
	EntityPurchaseOrder        = "purchase_order"
	EntitySale                 = "sale"
	EntityStockMovement        = "stock_movement"
	EntitySalesProjection      = "sales_projection"
)

var (
	ErrLogNotFound   = errors.New("audit log not found")
	ErrAlreadyUndone = errors.New("this change has already been undone")
	ErrNotUndoable   = errors.New("this change cannot be undone")
)

type LogOptions struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
	Source      string // "online" when empty
}

// WriteLog records a change outside of any transaction.
func WriteLog(opts LogOptions) error {
	return WriteLogTx(database.DB, opts)
}

// WriteLogTx records a change with the given handle, so it commits or rolls
// back together with the change itself.
func WriteLogTx(tx *gorm.DB, opts LogOptions) error {
	source := opts.Source
	if source == "" {
		source = SourceOnline
	}

	entry := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  toJSON(opts.Before),
		AfterData:   toJSON(opts.After),
		Source:      source,
	}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// jsonb columns need a valid document, so absent data is stored as null.
func toJSON(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// UndoLog reverts one logged change: create -> delete, update -> restore the
// before image, delete -> recreate from the before image. The log is marked
// undone and a new undo entry is written, all in one transaction.
func UndoLog(logID, userID uint, userName string) error {
	return database.DB.Transaction(func(tx *gorm.DB) error {
		var entry models.AuditLog
		if err := tx.First(&entry, logID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLogNotFound
			}
			return fmt.Errorf("load audit log: %w", err)
		}
		if entry.IsUndone {
			return ErrAlreadyUndone
		}

		h, ok := handlers[entry.EntityType]
		if !ok {
			return ErrNotUndoable
		}

		var err error
		switch entry.Action {
		case models.AuditActionCreate:
			err = h.remove(tx, entry.EntityID)
		case models.AuditActionUpdate:
			err = h.restore(tx, entry.EntityID, entry.BeforeData)
		case models.AuditActionDelete:
			err = h.recreate(tx, entry.BeforeData)
		default:
			return ErrNotUndoable
		}
		if err != nil {
			return err
		}

		now := time.Now()
		if err := tx.Model(&entry).Updates(map[string]interface{}{
			"is_undone": true,
			"undone_by": userID,
			"undone_at": now,
		}).Error; err != nil {
			return fmt.Errorf("mark audit log undone: %w", err)
		}

		return WriteLogTx(tx, LogOptions{
			UserID:      userID,
			UserName:    userName,
			EntityType:  entry.EntityType,
			EntityID:    entry.EntityID,
			Action:      models.AuditActionUndo,
			Description: "undo: " + entry.Description,
			Before:      json.RawMessage(entry.AfterData),
			After:       json.RawMessage(entry.BeforeData),
		})
	})
}

// -----------------------------------------------------------------------------
// Per-entity undo
// -----------------------------------------------------------------------------

type entityHandler struct {
	remove   func(tx *gorm.DB, id uint) error
	restore  func(tx *gorm.DB, id uint, data string) error
	recreate func(tx *gorm.DB, data string) error
}

var handlers = map[string]entityHandler{
	EntityFinancialTransaction: {
		remove: func(tx *gorm.DB, id uint) error {
			if err := ensureNotSynced(tx, id); err != nil {
				return err
			}
			return tx.Delete(&models.FinancialTransaction{}, id).Error
		},
		restore: func(tx *gorm.DB, id uint, data string) error {
			if err := ensureNotSynced(tx, id); err != nil {
				return err
			}
			var t models.FinancialTransaction
			if err := json.Unmarshal([]byte(data), &t); err != nil {
				return fmt.Errorf("decode transaction: %w", err)
			}
			return tx.Model(&models.FinancialTransaction{}).Where("id = ?", id).Updates(map[string]interface{}{
				"type":        t.Type,
				"category":    t.Category,
				"amount":      t.Amount,
				"date":        t.Date,
				"description": t.Description,
				"reference":   t.Reference,
			}).Error
		},
		recreate: func(tx *gorm.DB, data string) error {
			var t models.FinancialTransaction
			if err := json.Unmarshal([]byte(data), &t); err != nil {
				return fmt.Errorf("decode transaction: %w", err)
			}
			t.SyncedAt, t.ExternalID = nil, ""
			return tx.Create(&t).Error
		},
	},
	EntityProduct: {
		remove: func(tx *gorm.DB, id uint) error {
			if err := ensureUnused(tx, &models.StockMovement{}, "product_id", id, "product has stock history, deactivate it instead"); err != nil {
				return err
			}
			if err := tx.Where("product_id = ?", id).Delete(&models.InventoryItem{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.Product{}, id).Error
		},
		restore: func(tx *gorm.DB, id uint, data string) error {
			var p models.Product
			if err := json.Unmarshal([]byte(data), &p); err != nil {
				return fmt.Errorf("decode product: %w", err)
			}
			return tx.Model(&models.Product{}).Where("id = ?", id).Updates(map[string]interface{}{
				"sku":           p.SKU,
				"name":          p.Name,
				"category":      p.Category,
				"unit":          p.Unit,
				"unit_cost":     p.UnitCost,
				"unit_price":    p.UnitPrice,
				"reorder_level": p.ReorderLevel,
				"is_active":     p.IsActive,
			}).Error
		},
		recreate: func(tx *gorm.DB, data string) error {
			var p models.Product
			if err := json.Unmarshal([]byte(data), &p); err != nil {
				return fmt.Errorf("decode product: %w", err)
			}
			return tx.Create(&p).Error
		},
	},
	EntitySupplier: {
		remove: func(tx *gorm.DB, id uint) error {
			if err := ensureUnused(tx, &models.PurchaseOrder{}, "supplier_id", id, "supplier has purchase orders"); err != nil {
				return err
			}
			return tx.Delete(&models.Supplier{}, id).Error
		},
		restore: func(tx *gorm.DB, id uint, data string) error {
			var s models.Supplier
			if err := json.Unmarshal([]byte(data), &s); err != nil {
				return fmt.Errorf("decode supplier: %w", err)
			}
			return tx.Model(&models.Supplier{}).Where("id = ?", id).Updates(map[string]interface{}{
				"name":         s.Name,
				"contact_name": s.ContactName,
				"email":        s.Email,
				"phone":        s.Phone,
				"address":      s.Address,
				"description":  s.Description,
				"is_active":    s.IsActive,
			}).Error
		},
		recreate: func(tx *gorm.DB, data string) error {
			var s models.Supplier
			if err := json.Unmarshal([]byte(data), &s); err != nil {
				return fmt.Errorf("decode supplier: %w", err)
			}
			return tx.Create(&s).Error
		},
	},
}

// Entries already pushed to the accounting system must be corrected there.
func ensureNotSynced(tx *gorm.DB, id uint) error {
	var t models.FinancialTransaction
	if err := tx.Select("id", "synced_at").First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotUndoable
		}
		return err
	}
	if t.SyncedAt != nil {
		return fmt.Errorf("%w: transaction was already synced to accounting", ErrNotUndoable)
	}
	return nil
}

// Undoable reports whether changes to entityType can be undone.
func Undoable(entityType string) bool {
	_, ok := handlers[entityType]
	return ok
}

// ensureUnused refuses to remove a row that other records still point at.
func ensureUnused(tx *gorm.DB, model interface{}, column string, id uint, reason string) error {
	var n int64
	if err := tx.Model(model).Where(column+" = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("check usage: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("%w: %s", ErrNotUndoable, reason)
	}
	return nil
}
