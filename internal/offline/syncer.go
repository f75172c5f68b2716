package offline

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Queue is the part of Store the syncer needs.
type Queue interface {
	Pending(ctx context.Context, now time.Time, force bool) ([]Action, error)
	MarkSynced(ctx context.Context, id string, at time.Time) error
	RecordFailure(ctx context.Context, id, msg string, permanent bool, maxRetries int, base time.Duration, now time.Time) (Action, error)
}

// Executor replays one action against the server. A nil error means the
// server has the change.
type Executor interface {
	Execute(ctx context.Context, a Action) error
}

// Prober reports whether the server is reachable.
type Prober interface {
	Online(ctx context.Context) bool
}

type ProbeFunc func(ctx context.Context) bool

func (f ProbeFunc) Online(ctx context.Context) bool { return f(ctx) }

// PermanentError marks a failure that no retry can fix, such as a rejected
// payload.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// ErrUnauthorized means the server rejected the agent token. Sync stops the
// batch without charging a retry; the token must be replaced before the
// next run.
var ErrUnauthorized = errors.New("server rejected the agent token")

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

type Options struct {
	MaxRetries  int
	BaseBackoff time.Duration
	Probe       Prober // nil means always online
	Logger      *zap.Logger
	Now         func() time.Time
	// OnResult is called after every attempt, with the action as stored.
	OnResult func(a Action, err error)
}

type Result struct {
	Offline   bool `json:"offline"`
	Attempted int  `json:"attempted"`
	Synced    int  `json:"synced"`
	Retrying  int  `json:"retrying"`
	Failed    int  `json:"failed"`
}

// Syncer drains the queue. Only one Sync runs at a time.
type Syncer struct {
	queue Queue
	exec  Executor
	opts  Options

	mu sync.Mutex

	runMu   sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewSyncer(queue Queue, exec Executor, opts Options) *Syncer {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = DefaultBaseBackoff
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Syncer{queue: queue, exec: exec, opts: opts}
}

// Sync replays due actions in queue order. Nothing happens when the probe
// says the server is offline. A failed action never stops the batch, except
// ErrUnauthorized which stops it and leaves the action untouched. Force
// ignores backoff for pending actions.
func (s *Syncer) Sync(ctx context.Context, force bool) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res Result
	if s.opts.Probe != nil && !s.opts.Probe.Online(ctx) {
		res.Offline = true
		return res, nil
	}

	actions, err := s.queue.Pending(ctx, s.opts.Now(), force)
	if err != nil {
		return res, err
	}

	log := s.opts.Logger
	for _, a := range actions {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Attempted++

		execErr := s.exec.Execute(ctx, a)
		if execErr == nil {
			if err := s.queue.MarkSynced(ctx, a.ID, s.opts.Now()); err != nil {
				return res, err
			}
			res.Synced++
			a.Status = StatusSynced
			s.report(a, nil)
			continue
		}
		if errors.Is(execErr, ErrUnauthorized) {
			res.Attempted--
			log.Warn("offline sync stopped, agent token rejected",
				zap.String("action_id", a.ID),
				zap.Error(execErr),
			)
			return res, execErr
		}

		stored, err := s.queue.RecordFailure(ctx, a.ID, execErr.Error(), IsPermanent(execErr),
			s.opts.MaxRetries, s.opts.BaseBackoff, s.opts.Now())
		if err != nil {
			return res, err
		}
		if stored.Status == StatusFailed {
			res.Failed++
			log.Warn("offline action failed permanently",
				zap.String("action_id", a.ID),
				zap.String("table", a.Table),
				zap.String("type", string(a.Type)),
				zap.Int("retries", stored.Retries),
				zap.Error(execErr),
			)
		} else {
			res.Retrying++
			log.Info("offline action will be retried",
				zap.String("action_id", a.ID),
				zap.Int("retries", stored.Retries),
				zap.Time("next_attempt_at", stored.NextAttemptAt),
				zap.Error(execErr),
			)
		}
		s.report(stored, execErr)
	}

	if res.Attempted > 0 {
		log.Info("offline sync finished",
			zap.Int("attempted", res.Attempted),
			zap.Int("synced", res.Synced),
			zap.Int("retrying", res.Retrying),
			zap.Int("failed", res.Failed),
		)
	}
	return res, nil
}

func (s *Syncer) report(a Action, err error) {
	if s.opts.OnResult != nil {
		s.opts.OnResult(a, err)
	}
}

// Run syncs once immediately and then every interval until ctx is done.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sync(ctx, false); err != nil && !errors.Is(err, context.Canceled) {
			s.opts.Logger.Error("offline sync failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Start runs the sync loop in the background. Calling it again before Stop
// does nothing.
func (s *Syncer) Start(ctx context.Context, interval time.Duration) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.started {
		s.opts.Logger.Warn("offline syncer already running")
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx, interval)
	}()
	s.opts.Logger.Info("offline syncer started", zap.Duration("interval", interval))
}

// Stop cancels the loop and waits for the current sync to end, or for ctx.
func (s *Syncer) Stop(ctx context.Context) error {
	s.runMu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.started = false
	s.runMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.opts.Logger.Info("offline syncer stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
