package offline

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestAction(t *testing.T, table string, ts time.Time) *Action {
	t.Helper()
	a, err := NewAction(ActionCreate, table, "", map[string]string{"k": "v"})
	require.NoError(t, err)
	a.Timestamp = ts
	return &a
}

func TestAction_Validate(t *testing.T) {
	a, err := NewAction(ActionCreate, "sales", "", map[string]int{"quantity": 2})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, a.Status)

	_, err = NewAction("upsert", "sales", "", map[string]int{})
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = NewAction(ActionUpdate, "products", "", map[string]int{})
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = NewAction(ActionCreate, "", "", map[string]int{})
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = NewAction(ActionDelete, "financial_transactions", "12", nil)
	assert.NoError(t, err)

	bad := a
	bad.Payload = json.RawMessage(`{"broken"`)
	assert.ErrorIs(t, bad.Validate(), ErrInvalidAction)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff(2*time.Second, 0))
	assert.Equal(t, 2*time.Second, Backoff(2*time.Second, 1))
	assert.Equal(t, 4*time.Second, Backoff(2*time.Second, 2))
	assert.Equal(t, 8*time.Second, Backoff(2*time.Second, 3))
	assert.Equal(t, time.Hour, Backoff(2*time.Second, 40))
}

func TestStore_PendingOrder(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	// same timestamp for b and c: insertion order decides
	a := newTestAction(t, "a", base.Add(2*time.Minute))
	b := newTestAction(t, "b", base)
	c := newTestAction(t, "c", base)
	for _, act := range []*Action{a, b, c} {
		require.NoError(t, s.Add(ctx, act))
	}

	pending, err := s.Pending(ctx, base.Add(time.Hour), false)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{pending[0].Table, pending[1].Table, pending[2].Table})
	assert.Equal(t, base, pending[0].Timestamp)
	assert.JSONEq(t, `{"k":"v"}`, string(pending[0].Payload))
}

func TestStore_RecordFailure(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	a := newTestAction(t, "sales", now)
	require.NoError(t, s.Add(ctx, a))

	got, err := s.RecordFailure(ctx, a.ID, "timeout", false, 3, 2*time.Second, now)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Retries)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, now.Add(2*time.Second), got.NextAttemptAt)

	// not due yet unless forced
	due, err := s.Pending(ctx, now.Add(time.Second), false)
	require.NoError(t, err)
	assert.Empty(t, due)
	due, err = s.Pending(ctx, now.Add(time.Second), true)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	got, err = s.RecordFailure(ctx, a.ID, "timeout", false, 3, 2*time.Second, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(4*time.Second), got.NextAttemptAt)

	got, err = s.RecordFailure(ctx, a.ID, "still down", false, 3, 2*time.Second, now)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Retries)
	assert.Equal(t, StatusFailed, got.Status)

	due, err = s.Pending(ctx, now.Add(24*time.Hour), true)
	require.NoError(t, err)
	assert.Empty(t, due, "failed actions are never replayed automatically")

	stored, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "still down", stored.LastError)
}

func TestStore_PermanentFailure(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	a := newTestAction(t, "sales", time.Now())
	require.NoError(t, s.Add(ctx, a))

	got, err := s.RecordFailure(ctx, a.ID, "bad payload", true, 3, time.Second, time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, 1, got.Retries)
}

func TestStore_ResetPurgeStats(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	done := newTestAction(t, "sales", now)
	broken := newTestAction(t, "products", now)
	waiting := newTestAction(t, "stock_movements", now)
	for _, act := range []*Action{done, broken, waiting} {
		require.NoError(t, s.Add(ctx, act))
	}
	require.NoError(t, s.MarkSynced(ctx, done.ID, now))
	_, err := s.RecordFailure(ctx, broken.ID, "x", true, 3, time.Second, now)
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Pending: 1, Failed: 1, Synced: 1}, st)

	n, err := s.ResetFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	reset, err := s.Get(ctx, broken.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, reset.Status)
	assert.Equal(t, 0, reset.Retries)

	n, err = s.PurgeSynced(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = s.Get(ctx, done.ID)
	assert.ErrorIs(t, err, ErrActionNotFound)

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_MarkSyncedUnknown(t *testing.T) {
	s := openTestStore(t)
	assert.ErrorIs(t, s.MarkSynced(context.Background(), "nope", time.Now()), ErrActionNotFound)
}
