package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxPendingPerSession caps queued system events per session; the oldest are dropped.
const MaxPendingPerSession = 20

var ErrEmptyText = errors.New("system event text is empty")

// SystemEvent is a short text notice waiting for the next turn of a session.
type SystemEvent struct {
	ID         string
	SessionKey string
	Text       string
	CreatedAt  time.Time
}

// SystemQueue is the SQLite-backed, per-session, append-only system event queue.
type SystemQueue struct {
	db *sql.DB
}

func NewSystemQueue(db *sql.DB) *SystemQueue {
	return &SystemQueue{db: db}
}

// Enqueue appends text to the session's pending events. A text identical to
// the session's most recent pending event is skipped.
func (q *SystemQueue) Enqueue(ctx context.Context, text, sessionKey string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	if sessionKey == "" {
		return fmt.Errorf("session key is empty")
	}

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var last string
	err = tx.QueryRowContext(ctx, `
SELECT text FROM system_events
WHERE session_key = ?
ORDER BY seq DESC
LIMIT 1;
`, sessionKey).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read last system event: %w", err)
	}
	if err == nil && last == text {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, `
INSERT INTO system_events(id, session_key, text, created_at)
VALUES(?, ?, ?, ?);
`, uuid.NewString(), sessionKey, text, now); err != nil {
		return fmt.Errorf("insert system event: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
DELETE FROM system_events
WHERE session_key = ? AND seq NOT IN (
  SELECT seq FROM system_events WHERE session_key = ? ORDER BY seq DESC LIMIT ?
);
`, sessionKey, sessionKey, MaxPendingPerSession); err != nil {
		return fmt.Errorf("trim system events: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Peek returns the session's pending events oldest-first without removing them.
func (q *SystemQueue) Peek(ctx context.Context, sessionKey string) ([]SystemEvent, error) {
	return q.list(ctx, q.db, sessionKey)
}

// Drain returns and removes the session's pending events, oldest-first.
func (q *SystemQueue) Drain(ctx context.Context, sessionKey string) ([]SystemEvent, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	out, err := q.list(ctx, tx, sessionKey)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM system_events WHERE session_key = ?;`, sessionKey); err != nil {
		return nil, fmt.Errorf("delete drained system events: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return out, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (q *SystemQueue) list(ctx context.Context, db querier, sessionKey string) ([]SystemEvent, error) {
	rows, err := db.QueryContext(ctx, `
SELECT id, session_key, text, created_at
FROM system_events
WHERE session_key = ?
ORDER BY seq ASC;
`, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("query system events: %w", err)
	}
	defer rows.Close()

	out := []SystemEvent{}
	for rows.Next() {
		var (
			ev         SystemEvent
			createdAtS string
		)
		if err := rows.Scan(&ev.ID, &ev.SessionKey, &ev.Text, &createdAtS); err != nil {
			return nil, fmt.Errorf("scan system event: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
			ev.CreatedAt = t
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate system events: %w", err)
	}
	return out, nil
}
