package production

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gooms-backend/internal/audit"
	"gooms-backend/internal/events"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/inventory"
	"gooms-backend/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrBatchNotFound     = httpx.NotFound("production batch not found")
	ErrInvalidTransition = httpx.Conflict("invalid status transition")
)

// transitions lists the statuses reachable from each status.
var transitions = map[models.BatchStatus][]models.BatchStatus{
	models.BatchPlanned:    {models.BatchInProgress, models.BatchCancelled},
	models.BatchInProgress: {models.BatchCompleted, models.BatchCancelled},
}

func CanTransition(from, to models.BatchStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// BatchNumber formats the public batch identifier, e.g. B-20250301-42.
func BatchNumber(planned time.Time, id uint) string {
	return fmt.Sprintf("B-%s-%d", planned.Format("20060102"), id)
}

type BatchInput struct {
	ProductID       uint            `json:"product_id" validate:"required"`
	LocationID      uint            `json:"location_id" validate:"required"`
	PlannedQuantity decimal.Decimal `json:"planned_quantity" validate:"gt=0"`
	PlannedDate     string          `json:"planned_date" validate:"omitempty,datetime=2006-01-02"`
	Note            string          `json:"note" validate:"max=500"`
}

func CreateBatch(tx *gorm.DB, in BatchInput, actor audit.Actor) (*models.ProductionBatch, error) {
	if !in.PlannedQuantity.IsPositive() {
		return nil, httpx.Invalid("planned_quantity must be greater than 0")
	}
	planned, err := httpx.DateOrToday(in.PlannedDate)
	if err != nil {
		return nil, httpx.Invalid("invalid planned_date")
	}

	var product models.Product
	if err := tx.Select("id", "is_active").First(&product, in.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.ErrProductNotFound
		}
		return nil, fmt.Errorf("load product: %w", err)
	}
	if !product.IsActive {
		return nil, inventory.ErrInactiveProduct
	}

	var loc models.Location
	if err := tx.First(&loc, in.LocationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, inventory.ErrLocationNotFound
		}
		return nil, fmt.Errorf("load location: %w", err)
	}
	if loc.Type != models.LocationProduction {
		return nil, httpx.Invalid("batches must be planned at a production location")
	}

	b := models.ProductionBatch{
		ProductID:        in.ProductID,
		LocationID:       in.LocationID,
		PlannedQuantity:  in.PlannedQuantity,
		ProducedQuantity: decimal.Zero,
		Status:           models.BatchPlanned,
		PlannedDate:      planned,
		Note:             strings.TrimSpace(in.Note),
		CreatedBy:        actor.UserID,
	}
	if err := tx.Create(&b).Error; err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	b.BatchNumber = BatchNumber(planned, b.ID)
	if err := tx.Model(&b).Update("batch_number", b.BatchNumber).Error; err != nil {
		return nil, fmt.Errorf("set batch number: %w", err)
	}

	if err := actor.Record(tx, audit.EntityProductionBatch, b.ID, models.AuditActionCreate, "batch planned: "+b.BatchNumber, nil, b); err != nil {
		return nil, err
	}
	return &b, nil
}

func lockBatch(tx *gorm.DB, id uint) (*models.ProductionBatch, error) {
	var b models.ProductionBatch
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("load batch: %w", err)
	}
	return &b, nil
}

func invalidTransition(from, to models.BatchStatus) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func StartBatch(tx *gorm.DB, id uint, actor audit.Actor) (*models.ProductionBatch, error) {
	b, err := lockBatch(tx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, models.BatchInProgress) {
		return nil, invalidTransition(b.Status, models.BatchInProgress)
	}
	before := *b

	now := time.Now().UTC()
	b.Status = models.BatchInProgress
	b.StartedAt = &now
	if err := tx.Model(b).Updates(map[string]interface{}{
		"status":     b.Status,
		"started_at": now,
	}).Error; err != nil {
		return nil, fmt.Errorf("start batch: %w", err)
	}
	if err := actor.Record(tx, audit.EntityProductionBatch, b.ID, models.AuditActionUpdate, "batch started: "+b.BatchNumber, before, b); err != nil {
		return nil, err
	}
	return b, nil
}

// CompleteBatch closes an in-progress batch and books the produced quantity
// into stock at the batch location.
func CompleteBatch(tx *gorm.DB, id uint, produced decimal.Decimal, actor audit.Actor) (*models.ProductionBatch, *inventory.MovementResult, error) {
	if !produced.IsPositive() {
		return nil, nil, httpx.Invalid("produced_quantity must be greater than 0")
	}
	b, err := lockBatch(tx, id)
	if err != nil {
		return nil, nil, err
	}
	if !CanTransition(b.Status, models.BatchCompleted) {
		return nil, nil, invalidTransition(b.Status, models.BatchCompleted)
	}
	before := *b

	now := time.Now().UTC()
	b.Status = models.BatchCompleted
	b.ProducedQuantity = produced
	b.CompletedAt = &now
	if err := tx.Model(b).Updates(map[string]interface{}{
		"status":            b.Status,
		"produced_quantity": produced,
		"completed_at":      now,
	}).Error; err != nil {
		return nil, nil, fmt.Errorf("complete batch: %w", err)
	}

	res, err := inventory.ApplyMovement(tx, inventory.MovementInput{
		ProductID:  b.ProductID,
		LocationID: b.LocationID,
		Quantity:   produced,
		Reason:     models.MovementProductionOutput,
		Reference:  b.BatchNumber,
		UserID:     actor.UserID,
		Date:       now,
	})
	if err != nil {
		return nil, nil, err
	}

	if err := actor.Record(tx, audit.EntityProductionBatch, b.ID, models.AuditActionUpdate, "batch completed: "+b.BatchNumber, before, b); err != nil {
		return nil, nil, err
	}
	return b, res, nil
}

func CancelBatch(tx *gorm.DB, id uint, reason string, actor audit.Actor) (*models.ProductionBatch, error) {
	b, err := lockBatch(tx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(b.Status, models.BatchCancelled) {
		return nil, invalidTransition(b.Status, models.BatchCancelled)
	}
	before := *b

	b.Status = models.BatchCancelled
	updates := map[string]interface{}{"status": b.Status}
	if reason = strings.TrimSpace(reason); reason != "" {
		b.Note = strings.TrimSpace(b.Note + "\ncancelled: " + reason)
		updates["note"] = b.Note
	}
	if err := tx.Model(b).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("cancel batch: %w", err)
	}
	if err := actor.Record(tx, audit.EntityProductionBatch, b.ID, models.AuditActionUpdate, "batch cancelled: "+b.BatchNumber, before, b); err != nil {
		return nil, err
	}
	return b, nil
}

// StatusChange moves a batch to the requested status through the matching
// transition. Used by clients that only send the target status.
type StatusChange struct {
	Status           models.BatchStatus `json:"status" validate:"required,oneof=in_progress completed cancelled"`
	ProducedQuantity decimal.Decimal    `json:"produced_quantity"`
	Reason           string             `json:"reason" validate:"max=255"`
}

func SetStatus(tx *gorm.DB, id uint, change StatusChange, actor audit.Actor) (*models.ProductionBatch, *inventory.MovementResult, error) {
	switch change.Status {
	case models.BatchInProgress:
		b, err := StartBatch(tx, id, actor)
		return b, nil, err
	case models.BatchCompleted:
		return CompleteBatch(tx, id, change.ProducedQuantity, actor)
	case models.BatchCancelled:
		b, err := CancelBatch(tx, id, change.Reason, actor)
		return b, nil, err
	default:
		return nil, nil, httpx.Invalid(fmt.Sprintf("cannot set status %q", change.Status))
	}
}

// CompletedEvent builds the batch.completed event.
func CompletedEvent(b *models.ProductionBatch) events.Event {
	return events.New(events.TypeBatchCompleted, fmt.Sprintf("batch:%d", b.ID), map[string]interface{}{
		"batch_id":          b.ID,
		"batch_number":      b.BatchNumber,
		"product_id":        b.ProductID,
		"location_id":       b.LocationID,
		"planned_quantity":  b.PlannedQuantity,
		"produced_quantity": b.ProducedQuantity,
	})
}

// Yield is produced / planned as a percentage, rounded to 2 places.
func Yield(b *models.ProductionBatch) decimal.Decimal {
	if !b.PlannedQuantity.IsPositive() {
		return decimal.Zero
	}
	return b.ProducedQuantity.Div(b.PlannedQuantity).Mul(decimal.NewFromInt(100)).Round(2)
}
