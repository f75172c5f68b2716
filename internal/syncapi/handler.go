package syncapi

import (
	"errors"
	"fmt"
	"time"

	"gooms-backend/internal/audit"
	"gooms-backend/internal/auth"
	"gooms-backend/internal/database"
	"gooms-backend/internal/events"
	"gooms-backend/internal/httpx"
	"gooms-backend/internal/logger"
	"gooms-backend/internal/metrics"
	"gooms-backend/internal/models"
	"gooms-backend/internal/offline"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAlreadyApplied is returned inside the apply transaction when the action
// id is already in applied_actions.
var ErrAlreadyApplied = errors.New("action already applied")

type Handler struct {
	cache   Cache
	ttl     time.Duration
	pub     events.Publisher
	metrics *metrics.Metrics
}

func NewHandler(cache Cache, ttl time.Duration, pub events.Publisher, m *metrics.Metrics) *Handler {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Handler{cache: cache, ttl: ttl, pub: pub, metrics: m}
}

// markApplied inserts the applied_actions row for a. Concurrent replays of
// the same id block on the unique index until the first one commits or rolls
// back, so at most one of them applies the change.
func markApplied(tx *gorm.DB, a offline.Action, userID uint) error {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.AppliedAction{
		ActionID:  a.ID,
		Resource:  a.Table,
		Type:      string(a.Type),
		UserID:    userID,
		QueuedAt:  a.Timestamp,
		AppliedAt: time.Now().UTC(),
	})
	if res.Error != nil {
		return fmt.Errorf("record applied action: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyApplied
	}
	return nil
}

type ApplyResponse struct {
	ActionID string             `json:"action_id"`
	Table    string             `json:"table"`
	Type     offline.ActionType `json:"type"`
	Result   interface{}        `json:"result"`
}

// applyStatus maps a service error for the agent. Domain conflicts such as
// insufficient stock become 422, because the agent reads 409 as "already
// applied" and would drop the action as synced.
func applyStatus(err error) int {
	if errors.Is(err, httpx.ErrConflict) {
		return fiber.StatusUnprocessableEntity
	}
	return httpx.Status(err)
}

// POST /api/sync/actions
// Applies one action from the offline queue. Replays of an action whose
// applied_actions row committed get 409.
func (h *Handler) Apply() fiber.Handler {
	return func(c *fiber.Ctx) error {
		log := logger.FromCtx(c)

		var a offline.Action
		if err := c.BodyParser(&a); err != nil {
			h.metrics.SyncAction("unknown", metrics.OutcomeRejected)
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := a.Validate(); err != nil {
			h.metrics.SyncAction("unknown", metrics.OutcomeRejected)
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		r, ok := lookup(a.Table, a.Type)
		if !ok {
			h.metrics.SyncAction("unknown", metrics.OutcomeRejected)
			return fiber.NewError(fiber.StatusBadRequest, "unsupported action "+string(a.Type)+" on "+a.Table)
		}

		if d := auth.Decide(auth.SessionFromCtx(c), r.roles...); !d.Allowed {
			h.metrics.SyncAction(a.Table, metrics.OutcomeForbidden)
			return auth.Deny(c, d)
		}

		ctx := c.UserContext()
		if seen, err := h.cache.Seen(ctx, a.ID); err != nil {
			log.Warn("applied action cache lookup failed", zap.String("action_id", a.ID), zap.Error(err))
		} else if seen {
			h.metrics.SyncAction(a.Table, metrics.OutcomeDuplicate)
			return fiber.NewError(fiber.StatusConflict, ErrAlreadyApplied.Error())
		}

		actor := audit.ActorFromCtx(c).Offline()
		var applied *Applied
		err := database.DB.Transaction(func(tx *gorm.DB) error {
			if err := markApplied(tx, a, actor.UserID); err != nil {
				return err
			}
			var err error
			applied, err = r.apply(tx, a, actor)
			return err
		})
		if errors.Is(err, ErrAlreadyApplied) {
			h.remember(c, a.ID)
			h.metrics.SyncAction(a.Table, metrics.OutcomeDuplicate)
			return fiber.NewError(fiber.StatusConflict, ErrAlreadyApplied.Error())
		}
		if err != nil {
			status := applyStatus(err)
			if status >= fiber.StatusInternalServerError {
				log.Error("apply offline action failed",
					zap.String("action_id", a.ID),
					zap.String("table", a.Table),
					zap.Error(err),
				)
				h.metrics.SyncAction(a.Table, metrics.OutcomeError)
				return fiber.NewError(status, "could not apply action")
			}
			h.metrics.SyncAction(a.Table, metrics.OutcomeRejected)
			return fiber.NewError(status, err.Error())
		}

		h.remember(c, a.ID)
		for _, ev := range applied.Events {
			events.Emit(ctx, h.pub, log, ev)
		}
		h.metrics.SyncAction(a.Table, metrics.OutcomeApplied)
		log.Info("offline action applied",
			zap.String("action_id", a.ID),
			zap.String("table", a.Table),
			zap.String("type", string(a.Type)),
			zap.Time("queued_at", a.Timestamp),
		)

		return c.Status(fiber.StatusCreated).JSON(ApplyResponse{
			ActionID: a.ID,
			Table:    a.Table,
			Type:     a.Type,
			Result:   applied.Result,
		})
	}
}

func (h *Handler) remember(c *fiber.Ctx, id string) {
	if err := h.cache.Remember(c.UserContext(), id, h.ttl); err != nil {
		logger.FromCtx(c).Warn("remember applied action failed", zap.String("action_id", id), zap.Error(err))
	}
}
