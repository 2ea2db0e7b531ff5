package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/quillforge/quill/internal/schema"

	_ "github.com/tursodatabase/go-libsql"
)

// LibSQL is the shared networked store, backed by a libsql database (for
// example a Turso instance) reached over the network. It implements Remote.
//
// The remote schema mirrors records/snapshots including the sync_version and
// device_id columns the LWW comparison needs for cross-device tie-breaking,
// but carries no last_synced_at: that watermark is local-only bookkeeping.
type LibSQL struct {
	conn *sql.DB
	url  string
}

var _ Remote = (*LibSQL)(nil)

// OpenRemote creates a remote store handle for the given libsql URL
// (e.g. libsql://mydb.turso.io). If authToken is non-empty it is attached as
// the authToken query parameter.
//
// No connection is attempted here: the remote store may well be unreachable
// at startup, and reachability is the connection monitor's job, not the
// constructor's.
func OpenRemote(dbURL, authToken string) (*LibSQL, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("remote url is required")
	}

	connStr := dbURL
	if authToken != "" {
		u, err := url.Parse(dbURL)
		if err != nil {
			return nil, fmt.Errorf("invalid remote url: %w", err)
		}
		q := u.Query()
		q.Set("authToken", authToken)
		u.RawQuery = q.Encode()
		connStr = u.String()
	}

	conn, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &LibSQL{conn: conn, url: dbURL}, nil
}

// NewRemoteWithDB wraps an existing connection as a remote store. Tests use
// this to exercise the remote query surface against an embedded database.
func NewRemoteWithDB(conn *sql.DB) *LibSQL {
	return &LibSQL{conn: conn}
}

// RawDB returns the underlying sql.DB connection.
func (r *LibSQL) RawDB() *sql.DB {
	return r.conn
}

// Close closes the remote connection.
func (r *LibSQL) Close() error {
	if r.conn == nil {
		return nil
	}
	if err := r.conn.Close(); err != nil {
		return fmt.Errorf("failed to close remote database: %w", err)
	}
	r.conn = nil
	return nil
}

// Ping issues the cheapest possible read. The connection monitor wraps this
// in a short timeout to classify the store as reachable or unreachable.
func (r *LibSQL) Ping(ctx context.Context) error {
	var one int
	if err := r.conn.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("remote probe failed: %w", err)
	}
	return nil
}

// InitSchema creates the remote schema if it doesn't exist. Idempotent.
// Run once per shared database, typically from `quill init --remote`.
func (r *LibSQL) InitSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		prompt TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',  -- JSON array
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT,
		sync_version INTEGER NOT NULL DEFAULT 1,
		device_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY,
		record_id INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		prompt TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',  -- JSON array
		changes_only TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		sync_version INTEGER NOT NULL DEFAULT 1,
		device_id TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (record_id) REFERENCES records(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_records_updated ON records(updated_at);
	CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at);
	CREATE INDEX IF NOT EXISTS idx_snapshots_record ON snapshots(record_id);
	`

	if _, err := r.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize remote schema: %w", err)
	}

	return nil
}

// GetRecord fetches a record by id. Returns ErrNotFound if absent.
func (r *LibSQL) GetRecord(ctx context.Context, id int64) (*schema.Record, error) {
	row := r.conn.QueryRowContext(ctx, `
	SELECT id, title, content, prompt, tags,
	       created_at, updated_at, deleted_at,
	       sync_version, device_id, NULL
	FROM records WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get remote record %d: %w", id, err)
	}
	return rec, nil
}

// PutRecord inserts the record, or overwrites every field except id and
// created_at if the id already exists. Callers decide whether the write
// should happen; the store does no comparison of its own.
func (r *LibSQL) PutRecord(ctx context.Context, rec *schema.Record) error {
	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
	INSERT INTO records (
		id, title, content, prompt, tags,
		created_at, updated_at, deleted_at,
		sync_version, device_id
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		content = excluded.content,
		prompt = excluded.prompt,
		tags = excluded.tags,
		updated_at = excluded.updated_at,
		deleted_at = excluded.deleted_at,
		sync_version = excluded.sync_version,
		device_id = excluded.device_id
	`

	_, err = r.conn.ExecContext(ctx, query,
		rec.ID,
		rec.Title,
		rec.Content,
		rec.Prompt,
		string(tagsJSON),
		schema.FormatTime(rec.CreatedAt),
		schema.FormatTime(rec.UpdatedAt),
		timeToNullString(rec.DeletedAt),
		rec.SyncVersion,
		rec.DeviceID,
	)
	if err != nil {
		return fmt.Errorf("failed to put remote record %d: %w", rec.ID, err)
	}

	return nil
}

// HasRecord reports whether a record with the given id exists. The snapshot
// push path uses this as the referential-integrity guard before inserting a
// snapshot whose parent may not have arrived yet.
func (r *LibSQL) HasRecord(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.conn.QueryRowContext(ctx,
		`SELECT 1 FROM records WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check remote record %d: %w", id, err)
	}
	return true, nil
}

// RecentRecords returns up to limit records, most recently modified first.
func (r *LibSQL) RecentRecords(ctx context.Context, limit int) ([]*schema.Record, error) {
	rows, err := r.conn.QueryContext(ctx, `
	SELECT id, title, content, prompt, tags,
	       created_at, updated_at, deleted_at,
	       sync_version, device_id, NULL
	FROM records
	ORDER BY updated_at DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent remote records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// HasSnapshot reports whether a snapshot with the given id exists.
func (r *LibSQL) HasSnapshot(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.conn.QueryRowContext(ctx,
		`SELECT 1 FROM snapshots WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check remote snapshot %d: %w", id, err)
	}
	return true, nil
}

// InsertSnapshot inserts a snapshot. Never updates: snapshots are immutable
// and a duplicate id is a constraint error.
func (r *LibSQL) InsertSnapshot(ctx context.Context, snap *schema.Snapshot) error {
	tagsJSON, err := json.Marshal(snap.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
	INSERT INTO snapshots (
		id, record_id, title, content, prompt, tags, changes_only,
		created_at, sync_version, device_id
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.conn.ExecContext(ctx, query,
		snap.ID,
		snap.RecordID,
		snap.Title,
		snap.Content,
		snap.Prompt,
		string(tagsJSON),
		snap.ChangesOnly,
		schema.FormatTime(snap.CreatedAt),
		snap.SyncVersion,
		snap.DeviceID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert remote snapshot %d: %w", snap.ID, err)
	}

	return nil
}

// RecentSnapshots returns up to limit snapshots, most recently created first.
func (r *LibSQL) RecentSnapshots(ctx context.Context, limit int) ([]*schema.Snapshot, error) {
	rows, err := r.conn.QueryContext(ctx, `
	SELECT id, record_id, title, content, prompt, tags, changes_only,
	       created_at, sync_version, device_id, NULL
	FROM snapshots
	ORDER BY created_at DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent remote snapshots: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}
