// Package sqlite provides a SQLite-backed audit store for validation
// rejections. Suitable for single-node deployments that want queryable
// history without external infrastructure.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/param-gate/paramgate/internal/domain/audit"
)

// schemaDDL creates the rejections table. Errors are stored as a JSON
// object keyed by field name.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS rejections (
	id      TEXT PRIMARY KEY,
	time    INTEGER NOT NULL,
	action  TEXT NOT NULL,
	method  TEXT NOT NULL,
	path    TEXT NOT NULL,
	status  INTEGER NOT NULL,
	errors  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS rejections_time_idx ON rejections (time DESC);
`

// AuditStore implements audit.Store on a SQLite database file.
type AuditStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewAuditStore opens (creating if needed) the database at path and
// ensures the schema exists. Use ":memory:" for an ephemeral store.
func NewAuditStore(path string, logger *slog.Logger) (*AuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY churn under concurrent appends.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}

	return &AuditStore{db: db, logger: logger}, nil
}

// Append stores the entries in one transaction.
func (s *AuditStore) Append(ctx context.Context, entries ...audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning audit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO rejections (id, time, action, method, path, status, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing audit insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		errsJSON, err := json.Marshal(e.Errors)
		if err != nil {
			return fmt.Errorf("encoding errors for entry %s: %w", e.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.Time.UnixNano(), e.Action, e.Method, e.Path, e.Status, string(errsJSON),
		); err != nil {
			return fmt.Errorf("inserting entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing audit transaction: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *AuditStore) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, time, action, method, path, status, errors
		 FROM rejections ORDER BY time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying rejections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var ts int64
		var errsJSON string
		if err := rows.Scan(&e.ID, &ts, &e.Action, &e.Method, &e.Path, &e.Status, &errsJSON); err != nil {
			return nil, fmt.Errorf("scanning rejection row: %w", err)
		}
		e.Time = time.Unix(0, ts).UTC()
		if err := json.Unmarshal([]byte(errsJSON), &e.Errors); err != nil {
			// A corrupt row should not hide the rest of the history.
			s.logger.Warn("skipping corrupt audit row", "id", e.ID, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rejections: %w", err)
	}
	return entries, nil
}

// Close closes the underlying database.
func (s *AuditStore) Close() error {
	return s.db.Close()
}

// Compile-time check that AuditStore implements audit.Store.
var _ audit.Store = (*AuditStore)(nil)
