// Package offline keeps a local queue of mutations made while the server is
// unreachable and replays them in order once it is back.
package offline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ActionType string

const (
	ActionCreate ActionType = "create"
	ActionUpdate ActionType = "update"
	ActionDelete ActionType = "delete"
)

func (t ActionType) Valid() bool {
	switch t {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

type Status string

const (
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
	StatusSynced  Status = "synced"
)

// Action is one queued mutation. The JSON form is also the body replayed to
// the server.
type Action struct {
	ID        string          `json:"id"`
	Type      ActionType      `json:"type"`
	Table     string          `json:"table"`
	RecordID  string          `json:"record_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`

	Seq           int64      `json:"-"`
	Retries       int        `json:"retries"`
	Status        Status     `json:"status"`
	LastError     string     `json:"last_error,omitempty"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	SyncedAt      *time.Time `json:"synced_at,omitempty"`
}

var ErrInvalidAction = errors.New("invalid offline action")

// NewAction builds a pending action with a fresh id and the current time.
func NewAction(typ ActionType, table, recordID string, payload any) (Action, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Action{}, fmt.Errorf("encode payload: %w", err)
		}
		raw = b
	}
	a := Action{
		ID:        uuid.NewString(),
		Type:      typ,
		Table:     strings.TrimSpace(table),
		RecordID:  strings.TrimSpace(recordID),
		Payload:   raw,
		Timestamp: time.Now().UTC(),
		Status:    StatusPending,
	}
	return a, a.Validate()
}

func (a Action) Validate() error {
	if _, err := uuid.Parse(a.ID); err != nil {
		return fmt.Errorf("%w: id must be a uuid", ErrInvalidAction)
	}
	if !a.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
	}
	if a.Table == "" {
		return fmt.Errorf("%w: table is required", ErrInvalidAction)
	}
	if (a.Type == ActionUpdate || a.Type == ActionDelete) && a.RecordID == "" {
		return fmt.Errorf("%w: %s needs a record_id", ErrInvalidAction, a.Type)
	}
	if a.Type != ActionDelete && len(a.Payload) == 0 {
		return fmt.Errorf("%w: %s needs a payload", ErrInvalidAction, a.Type)
	}
	if len(a.Payload) > 0 && !json.Valid(a.Payload) {
		return fmt.Errorf("%w: payload is not valid JSON", ErrInvalidAction)
	}
	return nil
}

const (
	DefaultMaxRetries  = 3
	DefaultBaseBackoff = 2 * time.Second
	maxBackoff         = time.Hour
)

// Backoff is the wait after the given number of failed attempts: base, 2*base,
// 4*base ... capped at one hour.
func Backoff(base time.Duration, retries int) time.Duration {
	if retries < 1 {
		return 0
	}
	d := base
	for i := 1; i < retries; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}
