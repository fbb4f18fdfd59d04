// Package tracestore persists simulation execution traces in SQLite.
//
// Each completed run is stored under a generated run ID together with an
// optional label, allowing traces to be reloaded later for comparison,
// regression checks, or offline rendering. The store is an external
// collaborator of the simulator: it only consumes the [simloop.Trace]
// returned by a run and never reaches into the scheduler.
package tracestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/go-simloop"
	_ "github.com/mattn/go-sqlite3"
)

// ErrRunNotFound is returned when loading a run ID that does not exist.
var ErrRunNotFound = errors.New("tracestore: run not found")

// Store is a SQLite-backed trace archive.
type Store struct {
	db *sql.DB
}

// RunInfo summarizes one stored run.
type RunInfo struct {
	CreatedAt time.Time
	ID        string
	Label     string
	Events    int
}

// Open opens (creating if necessary) the trace database at path and
// initializes the schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("tracestore: failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tracestore: failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tracestore: failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trace_events (
		run_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		queue TEXT NOT NULL,
		callback_id INTEGER NOT NULL,
		PRIMARY KEY (run_id, idx)
	);

	CREATE INDEX IF NOT EXISTS idx_trace_events_run_id ON trace_events(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores a trace under a fresh run ID and returns that ID. The
// label is free-form and may be empty.
func (s *Store) SaveRun(ctx context.Context, label string, trace simloop.Trace) (string, error) {
	id := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("tracestore: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, label, created_at) VALUES (?, ?, ?)`,
		id, label, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("tracestore: failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO trace_events (run_id, idx, tick, queue, callback_id) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return "", fmt.Errorf("tracestore: failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, e := range trace {
		if _, err := stmt.ExecContext(ctx, id, i, int64(e.Tick), e.Queue.String(), int64(e.CallbackID)); err != nil {
			return "", fmt.Errorf("tracestore: failed to insert event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("tracestore: failed to commit: %w", err)
	}

	return id, nil
}

// Run reloads the trace stored under id. Fails with [ErrRunNotFound] for
// unknown IDs.
func (s *Store) Run(ctx context.Context, id string) (simloop.Trace, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("tracestore: failed to query run: %w", err)
	}
	if exists == 0 {
		return nil, ErrRunNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT tick, queue, callback_id FROM trace_events WHERE run_id = ? ORDER BY idx`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("tracestore: failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var trace simloop.Trace
	for rows.Next() {
		var (
			tick       int64
			queue      string
			callbackID int64
		)
		if err := rows.Scan(&tick, &queue, &callbackID); err != nil {
			return nil, fmt.Errorf("tracestore: failed to scan event: %w", err)
		}
		name, err := queueByName(queue)
		if err != nil {
			return nil, err
		}
		trace = append(trace, simloop.TraceEvent{
			Tick:       simloop.Tick(tick),
			Queue:      name,
			CallbackID: uint64(callbackID),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tracestore: failed to iterate events: %w", err)
	}

	return trace, nil
}

// Runs lists stored runs, most recent first.
func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.label, r.created_at, COUNT(e.run_id)
		FROM runs r
		LEFT JOIN trace_events e ON e.run_id = r.id
		GROUP BY r.id
		ORDER BY r.created_at DESC, r.id
	`)
	if err != nil {
		return nil, fmt.Errorf("tracestore: failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var infos []RunInfo
	for rows.Next() {
		var (
			info      RunInfo
			createdAt int64
		)
		if err := rows.Scan(&info.ID, &info.Label, &createdAt, &info.Events); err != nil {
			return nil, fmt.Errorf("tracestore: failed to scan run: %w", err)
		}
		info.CreatedAt = time.Unix(createdAt, 0)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tracestore: failed to iterate runs: %w", err)
	}

	return infos, nil
}

// DeleteRun removes a stored run and its events. Fails with
// [ErrRunNotFound] for unknown IDs.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("tracestore: failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("tracestore: failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrRunNotFound
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM trace_events WHERE run_id = ?`, id)
	if err != nil {
		return fmt.Errorf("tracestore: failed to delete events: %w", err)
	}
	return nil
}

// queueByName maps a stored queue name back to its [simloop.QueueName].
func queueByName(name string) (simloop.QueueName, error) {
	for _, q := range []simloop.QueueName{
		simloop.QueueImmediate,
		simloop.QueueMicrotask,
		simloop.QueueTimer,
		simloop.QueueIO,
		simloop.QueueCheck,
	} {
		if q.String() == name {
			return q, nil
		}
	}
	return 0, fmt.Errorf("tracestore: unknown queue %q", name)
}
