package accounting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gooms-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrSyncRunning = errors.New("accounting sync already running")

const defaultBatchSize = 50

type Report struct {
	Attempted int      `json:"attempted"`
	Synced    int      `json:"synced"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Service pushes unsynced ledger entries. One sync runs at a time.
type Service struct {
	pusher    Pusher
	batchSize int
	log       *zap.Logger
	mu        sync.Mutex
}

func NewService(pusher Pusher, batchSize int, log *zap.Logger) *Service {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{pusher: pusher, batchSize: batchSize, log: log}
}

// Sync walks entries with synced_at IS NULL in id order, batch by batch.
// Entries the remote side rejects stay unsynced and are retried next run.
func (s *Service) Sync(ctx context.Context, db *gorm.DB) (Report, error) {
	var rep Report
	if !s.mu.TryLock() {
		return rep, ErrSyncRunning
	}
	defer s.mu.Unlock()

	var lastID uint
	for {
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		var batch []models.FinancialTransaction
		if err := db.Where("synced_at IS NULL AND id > ?", lastID).
			Order("id ASC").
			Limit(s.batchSize).
			Find(&batch).Error; err != nil {
			return rep, fmt.Errorf("load unsynced transactions: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		lastID = batch[len(batch)-1].ID

		entries := make([]Entry, 0, len(batch))
		for _, t := range batch {
			entries = append(entries, EntryFrom(t))
		}
		rep.Attempted += len(entries)

		results, err := s.pusher.PushTransactions(ctx, entries)
		if err != nil {
			rep.Failed += len(entries)
			return rep, err
		}

		byID := make(map[uint]Result, len(results))
		for _, r := range results {
			byID[r.LocalID] = r
		}
		now := time.Now().UTC()
		for _, e := range entries {
			r, ok := byID[e.LocalID]
			if !ok || r.ExternalID == "" {
				rep.Failed++
				msg := fmt.Sprintf("transaction %d: no result", e.LocalID)
				if ok && r.Error != "" {
					msg = fmt.Sprintf("transaction %d: %s", e.LocalID, r.Error)
				}
				rep.Errors = append(rep.Errors, msg)
				continue
			}
			if err := db.Model(&models.FinancialTransaction{}).
				Where("id = ? AND synced_at IS NULL", e.LocalID).
				Updates(map[string]interface{}{"external_id": r.ExternalID, "synced_at": now}).Error; err != nil {
				return rep, fmt.Errorf("mark transaction %d synced: %w", e.LocalID, err)
			}
			rep.Synced++
		}

		if len(batch) < s.batchSize {
			break
		}
	}

	s.log.Info("accounting sync finished",
		zap.Int("attempted", rep.Attempted),
		zap.Int("synced", rep.Synced),
		zap.Int("failed", rep.Failed),
	)
	return rep, nil
}
