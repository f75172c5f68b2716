package offline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recorder remembers the tables it was asked to replay and fails the ones
// listed in failing.
type recorder struct {
	mu      sync.Mutex
	calls   []string
	failing map[string]error
}

func (r *recorder) Execute(_ context.Context, a Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, a.Table)
	return r.failing[a.Table]
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func seed(t *testing.T, s *Store, start time.Time, tables ...string) {
	t.Helper()
	for i, table := range tables {
		require.NoError(t, s.Add(context.Background(), newTestAction(t, table, start.Add(time.Duration(i)*time.Second))))
	}
}

func TestSyncer_ReplaysInInsertionOrder(t *testing.T) {
	s := openTestStore(t)
	clk := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	seed(t, s, clk.now.Add(-time.Hour), "first", "second", "third", "fourth")

	exec := &recorder{}
	syncer := NewSyncer(s, exec, Options{Now: clk.Now})

	res, err := syncer.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, Result{Attempted: 4, Synced: 4}, res)
	assert.Equal(t, []string{"first", "second", "third", "fourth"}, exec.Calls())

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, st.Synced)
}

func TestSyncer_StopsAfterThreeFailures(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	clk := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	seed(t, s, clk.now.Add(-time.Minute), "flaky", "ok")

	exec := &recorder{failing: map[string]error{"flaky": errors.New("503 service unavailable")}}
	syncer := NewSyncer(s, exec, Options{MaxRetries: 3, BaseBackoff: 2 * time.Second, Now: clk.Now})

	// attempt 1: the failure does not stop the batch
	res, err := syncer.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, Result{Attempted: 2, Synced: 1, Retrying: 1}, res)

	// still inside the 2s backoff
	res, err = syncer.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Attempted)

	clk.Advance(2 * time.Second)
	res, err = syncer.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, Result{Attempted: 1, Retrying: 1}, res)

	clk.Advance(4 * time.Second)
	res, err = syncer.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, Result{Attempted: 1, Failed: 1}, res)

	// no more automatic attempts, forced or not
	clk.Advance(time.Hour)
	res, err = syncer.Sync(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Attempted)

	assert.Equal(t, []string{"flaky", "ok", "flaky", "flaky"}, exec.Calls())

	failed, err := s.List(ctx, StatusFailed, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 3, failed[0].Retries)
	assert.Equal(t, "503 service unavailable", failed[0].LastError)
}

func TestSyncer_ForceIgnoresBackoff(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	clk := &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	seed(t, s, clk.now, "flaky")

	exec := &recorder{failing: map[string]error{"flaky": errors.New("down")}}
	syncer := NewSyncer(s, exec, Options{Now: clk.Now})

	_, err := syncer.Sync(ctx, false)
	require.NoError(t, err)
	res, err := syncer.Sync(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempted)
}

func TestSyncer_PermanentErrorFailsAtOnce(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, time.Now().Add(-time.Minute), "rejected")

	exec := &recorder{failing: map[string]error{"rejected": Permanent(errors.New("400 invalid payload"))}}
	var seen []Action
	syncer := NewSyncer(s, exec, Options{OnResult: func(a Action, _ error) { seen = append(seen, a) }})

	res, err := syncer.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, Result{Attempted: 1, Failed: 1}, res)
	require.Len(t, seen, 1)
	assert.Equal(t, StatusFailed, seen[0].Status)
}

func TestSyncer_OfflineDoesNothing(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, time.Now().Add(-time.Minute), "sales")

	exec := &recorder{}
	syncer := NewSyncer(s, exec, Options{Probe: ProbeFunc(func(context.Context) bool { return false })})

	res, err := syncer.Sync(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, res.Offline)
	assert.Empty(t, exec.Calls())
}

func TestSyncer_StartStop(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, time.Now().Add(-time.Minute), "sales")

	exec := &recorder{}
	syncer := NewSyncer(s, exec, Options{})
	syncer.Start(context.Background(), 10*time.Millisecond)

	assert.Eventually(t, func() bool { return len(exec.Calls()) == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, syncer.Stop(ctx))
}

func TestSyncer_UnauthorizedStopsWithoutChargingRetry(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seed(t, s, time.Now().Add(-time.Minute), "sales", "stock_movements")

	exec := &recorder{failing: map[string]error{"sales": fmt.Errorf("%w: token expired", ErrUnauthorized)}}
	syncer := NewSyncer(s, exec, Options{})

	res, err := syncer.Sync(ctx, false)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, Result{}, res)
	assert.Equal(t, []string{"sales"}, exec.Calls())

	pending, err := s.List(ctx, StatusPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, a := range pending {
		assert.Zero(t, a.Retries)
		assert.Empty(t, a.LastError)
	}

	delete(exec.failing, "sales")
	res, err = syncer.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synced)
}

func TestSyncer_StartTwiceRunsOneLoop(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, time.Now().Add(-time.Minute), "sales")

	exec := &recorder{}
	syncer := NewSyncer(s, exec, Options{})
	syncer.Start(context.Background(), time.Hour)
	syncer.Start(context.Background(), time.Hour)

	assert.Eventually(t, func() bool { return len(exec.Calls()) == 1 }, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, syncer.Stop(ctx))
	assert.Len(t, exec.Calls(), 1)

	seed(t, s, time.Now().Add(-time.Minute), "expenses")
	syncer.Start(context.Background(), time.Hour)
	assert.Eventually(t, func() bool { return len(exec.Calls()) == 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, syncer.Stop(ctx))
}
