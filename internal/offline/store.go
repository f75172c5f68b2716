package offline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var ErrActionNotFound = errors.New("offline action not found")

const schema = `
CREATE TABLE IF NOT EXISTS offline_actions (
	seq             INTEGER PRIMARY KEY AUTOINCREMENT,
	id              TEXT    NOT NULL UNIQUE,
	type            TEXT    NOT NULL,
	table_name      TEXT    NOT NULL,
	record_id       TEXT    NOT NULL DEFAULT '',
	payload         TEXT,
	timestamp       INTEGER NOT NULL,
	retries         INTEGER NOT NULL DEFAULT 0,
	status          TEXT    NOT NULL DEFAULT 'pending',
	last_error      TEXT    NOT NULL DEFAULT '',
	next_attempt_at INTEGER NOT NULL DEFAULT 0,
	synced_at       INTEGER
);
CREATE INDEX IF NOT EXISTS idx_offline_actions_queue ON offline_actions(status, timestamp, seq);
`

// Store is the SQLite-backed queue. Times are stored as unix nanoseconds.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the queue database at path.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open queue db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate queue db: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// Add appends an action. Missing id and timestamp are filled in.
func (s *Store) Add(ctx context.Context, a *Action) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	a.Status = StatusPending
	a.Retries = 0
	a.LastError = ""
	if err := a.Validate(); err != nil {
		return err
	}

	var payload interface{}
	if len(a.Payload) > 0 {
		payload = string(a.Payload)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO offline_actions (id, type, table_name, record_id, payload, timestamp, status, next_attempt_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		a.ID, string(a.Type), a.Table, a.RecordID, payload, nanos(a.Timestamp), string(StatusPending))
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	if a.Seq, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

const selectColumns = `seq, id, type, table_name, record_id, payload, timestamp, retries, status, last_error, next_attempt_at, synced_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAction(r rowScanner) (Action, error) {
	var (
		a           Action
		typ, status string
		payload     sql.NullString
		ts, next    int64
		synced      sql.NullInt64
	)
	if err := r.Scan(&a.Seq, &a.ID, &typ, &a.Table, &a.RecordID, &payload, &ts, &a.Retries, &status, &a.LastError, &next, &synced); err != nil {
		return Action{}, err
	}
	a.Type = ActionType(typ)
	a.Status = Status(status)
	if payload.Valid {
		a.Payload = []byte(payload.String)
	}
	a.Timestamp = fromNanos(ts)
	a.NextAttemptAt = fromNanos(next)
	if synced.Valid {
		t := fromNanos(synced.Int64)
		a.SyncedAt = &t
	}
	return a, nil
}

func (s *Store) query(ctx context.Context, q string, args ...interface{}) ([]Action, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (Action, error) {
	a, err := scanAction(s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM offline_actions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Action{}, ErrActionNotFound
	}
	return a, err
}

// Pending returns the actions due for replay, oldest first (timestamp, then
// insertion order). force ignores the backoff schedule but never includes
// failed actions.
func (s *Store) Pending(ctx context.Context, now time.Time, force bool) ([]Action, error) {
	q := `SELECT ` + selectColumns + ` FROM offline_actions WHERE status = ?`
	args := []interface{}{string(StatusPending)}
	if !force {
		q += ` AND next_attempt_at <= ?`
		args = append(args, nanos(now))
	}
	q += ` ORDER BY timestamp ASC, seq ASC`

	out, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("load pending actions: %w", err)
	}
	return out, nil
}

// List returns actions in queue order, optionally filtered by status.
// limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, status Status, limit int) ([]Action, error) {
	q := `SELECT ` + selectColumns + ` FROM offline_actions`
	var args []interface{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY timestamp ASC, seq ASC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	out, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	return out, nil
}

func (s *Store) MarkSynced(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE offline_actions SET status = ?, synced_at = ?, last_error = '' WHERE id = ?`,
		string(StatusSynced), nanos(at), id)
	if err != nil {
		return fmt.Errorf("mark action synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrActionNotFound
	}
	return nil
}

// RecordFailure counts a failed attempt. The action is rescheduled with
// exponential backoff, or marked failed once retries reach maxRetries. A
// permanent failure is marked failed at once.
func (s *Store) RecordFailure(ctx context.Context, id, msg string, permanent bool, maxRetries int, base time.Duration, now time.Time) (Action, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Action{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	a, err := scanAction(tx.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM offline_actions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Action{}, ErrActionNotFound
	}
	if err != nil {
		return Action{}, fmt.Errorf("load action: %w", err)
	}

	a.Retries++
	a.LastError = msg
	if permanent || a.Retries >= maxRetries {
		a.Status = StatusFailed
		a.NextAttemptAt = time.Time{}
	} else {
		a.Status = StatusPending
		a.NextAttemptAt = now.Add(Backoff(base, a.Retries)).UTC()
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE offline_actions SET retries = ?, status = ?, last_error = ?, next_attempt_at = ? WHERE id = ?`,
		a.Retries, string(a.Status), a.LastError, nanos(a.NextAttemptAt), id); err != nil {
		return Action{}, fmt.Errorf("record failure: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Action{}, fmt.Errorf("commit: %w", err)
	}
	return a, nil
}

// ResetFailed puts every failed action back in the queue with a fresh retry
// budget. Only an explicit operator call does this.
func (s *Store) ResetFailed(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE offline_actions SET status = ?, retries = 0, last_error = '', next_attempt_at = 0 WHERE status = ?`,
		string(StatusPending), string(StatusFailed))
	if err != nil {
		return 0, fmt.Errorf("reset failed actions: %w", err)
	}
	return res.RowsAffected()
}

// PurgeSynced deletes synced actions older than before.
func (s *Store) PurgeSynced(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM offline_actions WHERE status = ? AND synced_at < ?`,
		string(StatusSynced), nanos(before))
	if err != nil {
		return 0, fmt.Errorf("purge synced actions: %w", err)
	}
	return res.RowsAffected()
}

type Stats struct {
	Pending int `json:"pending" yaml:"pending"`
	Failed  int `json:"failed" yaml:"failed"`
	Synced  int `json:"synced" yaml:"synced"`
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM offline_actions GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var st Stats
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return Stats{}, err
		}
		switch Status(status) {
		case StatusPending:
			st.Pending = n
		case StatusFailed:
			st.Failed = n
		case StatusSynced:
			st.Synced = n
		}
	}
	return st, rows.Err()
}
