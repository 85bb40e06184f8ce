// Package sqlstore implements storage.Driver on top of database/sql. The
// sqlite and postgres packages open their connections and hand them to
// New with the matching Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/papercomputeco/runstream/pkg/storage"
	"github.com/papercomputeco/runstream/pkg/stream"
)

// Dialect captures the differences between SQL backends.
type Dialect struct {
	// Name is used in error messages.
	Name string

	// TimestampType is the column type for timestamps.
	TimestampType string

	// Numbered reports whether placeholders are "$1", "$2", ... instead of "?".
	Numbered bool
}

var (
	SQLite = Dialect{
		Name:          "sqlite",
		TimestampType: "TIMESTAMP",
	}

	Postgres = Dialect{
		Name:          "postgres",
		TimestampType: "TIMESTAMPTZ",
		Numbered:      true,
	}
)

// rebind rewrites "?" placeholders for dialects that number them.
func (d Dialect) rebind(query string) string {
	if !d.Numbered {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id           TEXT PRIMARY KEY,
			source       TEXT NOT NULL,
			started_at   ` + d.TimestampType + ` NOT NULL,
			ended_at     ` + d.TimestampType + ` NULL,
			line_count   INTEGER NOT NULL DEFAULT 0,
			event_count  INTEGER NOT NULL DEFAULT 0,
			parse_errors INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS session_lines (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			idx        INTEGER NOT NULL,
			text       TEXT NOT NULL,
			PRIMARY KEY (session_id, idx)
		)`,
		`CREATE TABLE IF NOT EXISTS session_events (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			idx        INTEGER NOT NULL,
			kind       TEXT NOT NULL,
			payload    TEXT NOT NULL,
			PRIMARY KEY (session_id, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS sessions_started_at ON sessions (started_at)`,
	}
}

// Driver implements storage.Driver over a *sql.DB.
type Driver struct {
	DB      *sql.DB
	dialect Dialect
}

// New creates the schema if needed and returns a Driver. The Driver takes
// ownership of db.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Driver, error) {
	for _, stmt := range dialect.schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create %s schema: %w", dialect.Name, err)
		}
	}

	return &Driver{DB: db, dialect: dialect}, nil
}

func (d *Driver) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.DB.ExecContext(ctx, d.dialect.rebind(query), args...)
}

func (d *Driver) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.DB.QueryContext(ctx, d.dialect.rebind(query), args...)
}

// CreateSession stores a new session.
func (d *Driver) CreateSession(ctx context.Context, session *storage.Session) error {
	if session == nil {
		return errors.New("cannot store nil session")
	}

	var ended any
	if session.EndedAt != nil {
		ended = session.EndedAt.UTC()
	}

	_, err := d.exec(ctx,
		`INSERT INTO sessions (id, source, started_at, ended_at, line_count, event_count, parse_errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Source, session.StartedAt.UTC(), ended,
		session.LineCount, session.EventCount, session.ParseErrors,
	)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// AppendLine records a raw line.
func (d *Driver) AppendLine(ctx context.Context, line *storage.Line) error {
	if line == nil {
		return errors.New("cannot store nil line")
	}

	if err := d.ensureSession(ctx, line.SessionID); err != nil {
		return err
	}

	_, err := d.exec(ctx,
		`INSERT INTO session_lines (session_id, idx, text) VALUES (?, ?, ?)`,
		line.SessionID, line.Index, line.Text,
	)
	if err != nil {
		return fmt.Errorf("appending line: %w", err)
	}
	return nil
}

// AppendRecord records a decoded event.
func (d *Driver) AppendRecord(ctx context.Context, record *storage.Record) error {
	if record == nil {
		return errors.New("cannot store nil record")
	}

	if err := d.ensureSession(ctx, record.SessionID); err != nil {
		return err
	}

	_, err := d.exec(ctx,
		`INSERT INTO session_events (session_id, idx, kind, payload) VALUES (?, ?, ?, ?)`,
		record.SessionID, record.Index, string(record.Kind), string(record.Payload),
	)
	if err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// CompleteSession stores the final counters of a session.
func (d *Driver) CompleteSession(ctx context.Context, id string, summary storage.Completion) error {
	res, err := d.exec(ctx,
		`UPDATE sessions SET ended_at = ?, line_count = ?, event_count = ?, parse_errors = ? WHERE id = ?`,
		summary.EndedAt.UTC(), summary.LineCount, summary.EventCount, summary.ParseErrors, id,
	)
	if err != nil {
		return fmt.Errorf("completing session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("completing session: %w", err)
	}
	if n == 0 {
		return storage.NotFoundError{ID: id}
	}
	return nil
}

// GetSession retrieves a session by its ID.
func (d *Driver) GetSession(ctx context.Context, id string) (*storage.Session, error) {
	rows, err := d.query(ctx,
		`SELECT id, source, started_at, ended_at, line_count, event_count, parse_errors
		 FROM sessions WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	defer rows.Close()

	sessions, err := scanSessions(rows)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, storage.NotFoundError{ID: id}
	}
	return sessions[0], nil
}

// ListSessions returns sessions, newest first.
func (d *Driver) ListSessions(ctx context.Context, limit int) ([]*storage.Session, error) {
	q := `SELECT id, source, started_at, ended_at, line_count, event_count, parse_errors
		  FROM sessions ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// Lines returns the raw lines of a session in index order.
func (d *Driver) Lines(ctx context.Context, id string) ([]*storage.Line, error) {
	if err := d.ensureSession(ctx, id); err != nil {
		return nil, err
	}

	rows, err := d.query(ctx,
		`SELECT session_id, idx, text FROM session_lines WHERE session_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("querying lines: %w", err)
	}
	defer rows.Close()

	var lines []*storage.Line
	for rows.Next() {
		line := &storage.Line{}
		if err := rows.Scan(&line.SessionID, &line.Index, &line.Text); err != nil {
			return nil, fmt.Errorf("scanning line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Records returns the decoded events of a session in index order.
func (d *Driver) Records(ctx context.Context, id string) ([]*storage.Record, error) {
	if err := d.ensureSession(ctx, id); err != nil {
		return nil, err
	}

	rows, err := d.query(ctx,
		`SELECT session_id, idx, kind, payload FROM session_events WHERE session_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var records []*storage.Record
	for rows.Next() {
		var (
			record  storage.Record
			kind    string
			payload string
		)
		if err := rows.Scan(&record.SessionID, &record.Index, &kind, &payload); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		record.Kind = stream.Kind(kind)
		record.Payload = json.RawMessage(payload)
		records = append(records, &record)
	}
	return records, rows.Err()
}

// Close closes the database.
func (d *Driver) Close() error {
	return d.DB.Close()
}

func (d *Driver) ensureSession(ctx context.Context, id string) error {
	rows, err := d.query(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("querying session: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return storage.NotFoundError{ID: id}
	}
	return nil
}

func scanSessions(rows *sql.Rows) ([]*storage.Session, error) {
	var sessions []*storage.Session
	for rows.Next() {
		var (
			s     storage.Session
			ended sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.Source, &s.StartedAt, &ended, &s.LineCount, &s.EventCount, &s.ParseErrors); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if ended.Valid {
			t := ended.Time
			s.EndedAt = &t
		}
		sessions = append(sessions, &s)
	}
	return sessions, rows.Err()
}
