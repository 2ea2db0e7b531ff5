package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quillforge/quill/internal/schema"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Local wraps the embedded SQLite database holding this device's working
// copy. It is always available and accessed synchronously by both
// collaborators (document writes) and the sync engine (bookkeeping writes).
//
// Ownership contract: the engine exclusively owns last_synced_at transitions
// (MarkRecordSynced, MarkSnapshotSynced, ApplyRemoteRecord, InsertRemote*);
// collaborators exclusively own every other field mutation (CreateRecord,
// UpdateRecord, SoftDeleteRecord, CreateSnapshot).
type Local struct {
	conn *sql.DB
	path string
}

// Open creates a local store connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it is created; call InitSchema afterwards.
//
// The caller MUST call Close() when done to ensure proper cleanup.
//
// Example:
//
//	local, err := store.OpenLocal(".quill/quill.db")
//	if err != nil {
//	    return err
//	}
//	defer local.Close()
func OpenLocal(path string) (*Local, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	l := &Local{conn: conn, path: path}

	// Enable WAL mode for concurrent reads
	if _, err := l.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := l.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := l.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return l, nil
}

// RawDB returns the underlying sql.DB connection.
func (l *Local) RawDB() *sql.DB {
	return l.conn
}

// Path returns the filesystem path of the database file.
func (l *Local) Path() string {
	return l.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (l *Local) Close() error {
	if l.conn == nil {
		return nil
	}

	if _, err := l.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := l.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	l.conn = nil
	return nil
}

// InitSchema creates the local schema if it doesn't exist. Idempotent.
//
// Snapshots cascade on permanent record deletion; soft deletes only set
// deleted_at and leave snapshots untouched.
func (l *Local) InitSchema(ctx context.Context) error {
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
		device_id TEXT NOT NULL DEFAULT '',
		last_synced_at TEXT
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
		last_synced_at TEXT,
		FOREIGN KEY (record_id) REFERENCES records(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS sync_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation TEXT NOT NULL,
		table_name TEXT NOT NULL,
		record_id INTEGER NOT NULL,
		data TEXT NOT NULL,
		created_at TEXT NOT NULL,
		retries INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		UNIQUE (table_name, record_id)
	);

	-- Dirty scans: last_synced_at IS NULL OR updated_at > last_synced_at
	CREATE INDEX IF NOT EXISTS idx_records_dirty ON records(last_synced_at, updated_at);
	CREATE INDEX IF NOT EXISTS idx_records_updated ON records(updated_at);
	CREATE INDEX IF NOT EXISTS idx_snapshots_record ON snapshots(record_id);
	CREATE INDEX IF NOT EXISTS idx_snapshots_dirty ON snapshots(last_synced_at);
	CREATE INDEX IF NOT EXISTS idx_queue_created ON sync_queue(created_at);
	`

	if _, err := l.conn.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// ===== Collaborator writes =====

// CreateRecord inserts a new record. If rec.ID is zero, SQLite assigns the
// next rowid and the assigned id is written back to rec. Zero timestamps
// default to now; a zero sync_version defaults to 1.
func (l *Local) CreateRecord(ctx context.Context, rec *schema.Record) error {
	if rec.Title == "" {
		return fmt.Errorf("title is required")
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}
	if rec.SyncVersion < 1 {
		rec.SyncVersion = 1
	}

	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
	INSERT INTO records (
		id, title, content, prompt, tags,
		created_at, updated_at, deleted_at,
		sync_version, device_id, last_synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`

	res, err := l.conn.ExecContext(ctx, query,
		nullID(rec.ID),
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
		return fmt.Errorf("failed to create record: %w", err)
	}

	if rec.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read assigned record id: %w", err)
		}
		rec.ID = id
	}

	return nil
}

// UpdateRecord applies a collaborator mutation to an existing record:
// overwrites the content fields, bumps sync_version, and sets updated_at.
// last_synced_at is left alone so the record becomes dirty.
func (l *Local) UpdateRecord(ctx context.Context, rec *schema.Record) error {
	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	rec.UpdatedAt = time.Now().UTC()
	rec.SyncVersion++

	query := `
	UPDATE records SET
		title = ?, content = ?, prompt = ?, tags = ?,
		updated_at = ?, deleted_at = ?, sync_version = ?, device_id = ?
	WHERE id = ?
	`

	res, err := l.conn.ExecContext(ctx, query,
		rec.Title,
		rec.Content,
		rec.Prompt,
		string(tagsJSON),
		schema.FormatTime(rec.UpdatedAt),
		timeToNullString(rec.DeletedAt),
		rec.SyncVersion,
		rec.DeviceID,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update record %d: %w", rec.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of record %d: %w", rec.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// SoftDeleteRecord marks a record deleted. The row stays in place so the
// deletion replicates to the remote store like any other mutation.
func (l *Local) SoftDeleteRecord(ctx context.Context, id int64) error {
	now := time.Now().UTC()

	query := `
	UPDATE records SET
		deleted_at = ?, updated_at = ?, sync_version = sync_version + 1
	WHERE id = ? AND deleted_at IS NULL
	`

	res, err := l.conn.ExecContext(ctx, query,
		schema.FormatTime(now), schema.FormatTime(now), id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete record %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check soft-delete of record %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteRecordPermanently removes a record and, via the foreign-key cascade,
// every snapshot that references it. This is the only destructive path;
// normal deletion is the soft delete above.
func (l *Local) DeleteRecordPermanently(ctx context.Context, id int64) error {
	if _, err := l.conn.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete record %d: %w", id, err)
	}
	return nil
}

// CreateSnapshot inserts a new snapshot. If snap.ID is zero, SQLite assigns
// the next rowid and the assigned id is written back to snap.
func (l *Local) CreateSnapshot(ctx context.Context, snap *schema.Snapshot) error {
	if snap.RecordID == 0 {
		return fmt.Errorf("record_id is required")
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	if snap.SyncVersion < 1 {
		snap.SyncVersion = 1
	}

	tagsJSON, err := json.Marshal(snap.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
	INSERT INTO snapshots (
		id, record_id, title, content, prompt, tags, changes_only,
		created_at, sync_version, device_id, last_synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`

	res, err := l.conn.ExecContext(ctx, query,
		nullID(snap.ID),
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
		return fmt.Errorf("failed to create snapshot: %w", err)
	}

	if snap.ID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read assigned snapshot id: %w", err)
		}
		snap.ID = id
	}

	return nil
}

// ===== Reads =====

// GetRecord retrieves a record by id. Returns ErrNotFound if absent.
func (l *Local) GetRecord(ctx context.Context, id int64) (*schema.Record, error) {
	row := l.conn.QueryRowContext(ctx, `
	SELECT id, title, content, prompt, tags,
	       created_at, updated_at, deleted_at,
	       sync_version, device_id, last_synced_at
	FROM records WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %d: %w", id, err)
	}
	return rec, nil
}

// GetSnapshot retrieves a snapshot by id. Returns ErrNotFound if absent.
func (l *Local) GetSnapshot(ctx context.Context, id int64) (*schema.Snapshot, error) {
	row := l.conn.QueryRowContext(ctx, `
	SELECT id, record_id, title, content, prompt, tags, changes_only,
	       created_at, sync_version, device_id, last_synced_at
	FROM snapshots WHERE id = ?
	`, id)

	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %d: %w", id, err)
	}
	return snap, nil
}

// HasSnapshot reports whether a snapshot with the given id exists.
func (l *Local) HasSnapshot(ctx context.Context, id int64) (bool, error) {
	var one int
	err := l.conn.QueryRowContext(ctx,
		`SELECT 1 FROM snapshots WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check snapshot %d: %w", id, err)
	}
	return true, nil
}

// DirtyRecords returns records with unpushed changes, oldest change first.
func (l *Local) DirtyRecords(ctx context.Context) ([]*schema.Record, error) {
	rows, err := l.conn.QueryContext(ctx, `
	SELECT id, title, content, prompt, tags,
	       created_at, updated_at, deleted_at,
	       sync_version, device_id, last_synced_at
	FROM records
	WHERE last_synced_at IS NULL OR updated_at > last_synced_at
	ORDER BY updated_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dirty records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// DirtySnapshots returns snapshots that have never been pushed, oldest first.
// Records are always pushed before snapshots, so ordering snapshots by
// created_at keeps parent-then-child causality within the queue-free path.
func (l *Local) DirtySnapshots(ctx context.Context) ([]*schema.Snapshot, error) {
	rows, err := l.conn.QueryContext(ctx, `
	SELECT id, record_id, title, content, prompt, tags, changes_only,
	       created_at, sync_version, device_id, last_synced_at
	FROM snapshots
	WHERE last_synced_at IS NULL
	ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dirty snapshots: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// RecordCount returns the total number of records.
func (l *Local) RecordCount(ctx context.Context) (int, error) {
	var count int
	if err := l.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// SnapshotCount returns the total number of snapshots.
func (l *Local) SnapshotCount(ctx context.Context) (int, error) {
	var count int
	if err := l.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// DirtyRecordCount returns the number of records with unpushed changes.
func (l *Local) DirtyRecordCount(ctx context.Context) (int, error) {
	var count int
	err := l.conn.QueryRowContext(ctx, `
	SELECT COUNT(*) FROM records
	WHERE last_synced_at IS NULL OR updated_at > last_synced_at
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count dirty records: %w", err)
	}
	return count, nil
}

// ===== Engine writes (sync bookkeeping) =====

// MarkRecordSynced stamps last_synced_at after a successful push or pull.
// Only the sync engine calls this.
func (l *Local) MarkRecordSynced(ctx context.Context, id int64, at time.Time) error {
	_, err := l.conn.ExecContext(ctx,
		`UPDATE records SET last_synced_at = ? WHERE id = ?`,
		schema.FormatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to mark record %d synced: %w", id, err)
	}
	return nil
}

// MarkSnapshotSynced stamps last_synced_at on a snapshot after its one and
// only successful push.
func (l *Local) MarkSnapshotSynced(ctx context.Context, id int64, at time.Time) error {
	_, err := l.conn.ExecContext(ctx,
		`UPDATE snapshots SET last_synced_at = ? WHERE id = ?`,
		schema.FormatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to mark snapshot %d synced: %w", id, err)
	}
	return nil
}

// ApplyRemoteRecord overwrites the local copy with a remote record that won
// the pull comparison. The true author fields id and created_at are never
// touched; everything else, including deleted_at, follows the remote copy.
func (l *Local) ApplyRemoteRecord(ctx context.Context, rec *schema.Record, syncedAt time.Time) error {
	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
	UPDATE records SET
		title = ?, content = ?, prompt = ?, tags = ?,
		updated_at = ?, deleted_at = ?,
		sync_version = ?, device_id = ?, last_synced_at = ?
	WHERE id = ?
	`

	res, err := l.conn.ExecContext(ctx, query,
		rec.Title,
		rec.Content,
		rec.Prompt,
		string(tagsJSON),
		schema.FormatTime(rec.UpdatedAt),
		timeToNullString(rec.DeletedAt),
		rec.SyncVersion,
		rec.DeviceID,
		schema.FormatTime(syncedAt),
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to apply remote record %d: %w", rec.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check apply of record %d: %w", rec.ID, err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// InsertRemoteRecord inserts a record pulled from the remote store,
// preserving its id and created_at so the record keeps one identity across
// stores. last_synced_at is stamped immediately: the row matches the remote
// copy by construction.
func (l *Local) InsertRemoteRecord(ctx context.Context, rec *schema.Record, syncedAt time.Time) error {
	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
	INSERT INTO records (
		id, title, content, prompt, tags,
		created_at, updated_at, deleted_at,
		sync_version, device_id, last_synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = l.conn.ExecContext(ctx, query,
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
		schema.FormatTime(syncedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert remote record %d: %w", rec.ID, err)
	}

	return nil
}

// InsertRemoteSnapshot inserts a snapshot pulled from the remote store,
// preserving its id. Pulled snapshots are synced by construction.
func (l *Local) InsertRemoteSnapshot(ctx context.Context, snap *schema.Snapshot, syncedAt time.Time) error {
	tagsJSON, err := json.Marshal(snap.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `
	INSERT INTO snapshots (
		id, record_id, title, content, prompt, tags, changes_only,
		created_at, sync_version, device_id, last_synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = l.conn.ExecContext(ctx, query,
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
		schema.FormatTime(syncedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert remote snapshot %d: %w", snap.ID, err)
	}

	return nil
}

// ===== Metadata =====

// GetMeta reads a sync_metadata value. Returns ErrNotFound if the key is
// absent.
func (l *Local) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := l.conn.QueryRowContext(ctx,
		`SELECT value FROM sync_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata %q: %w", key, err)
	}
	return value, nil
}

// SetMeta writes a sync_metadata value, overwriting any previous one.
func (l *Local) SetMeta(ctx context.Context, key, value string) error {
	_, err := l.conn.ExecContext(ctx, `
	INSERT INTO sync_metadata (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata %q: %w", key, err)
	}
	return nil
}

// SetMetaIfAbsent persists value under key unless the key already exists,
// and returns whichever value ended up stored. Concurrent callers racing on
// the same key all observe the single winning value, which makes first-run
// initialization (like the device id) idempotent.
func (l *Local) SetMetaIfAbsent(ctx context.Context, key, value string) (string, error) {
	if _, err := l.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO sync_metadata (key, value) VALUES (?, ?)`,
		key, value); err != nil {
		return "", fmt.Errorf("failed to initialize metadata %q: %w", key, err)
	}
	return l.GetMeta(ctx, key)
}

// ===== Retry queue =====

// Enqueue appends a failed push operation to the durable retry queue.
// The queue holds at most one entry per (table, record): re-enqueueing an
// already-queued row refreshes its payload and last error but keeps the
// existing entry's retry count and queue position, so the retry ceiling is
// still reached and the queue cannot grow a duplicate per failed cycle.
// A zero CreatedAt defaults to now; the stored queue id is written back.
func (l *Local) Enqueue(ctx context.Context, entry *schema.QueueEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := l.conn.ExecContext(ctx, `
	INSERT INTO sync_queue (operation, table_name, record_id, data, created_at, retries, last_error)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(table_name, record_id) DO UPDATE SET
		operation = excluded.operation,
		data = excluded.data,
		last_error = excluded.last_error
	`,
		entry.Operation,
		entry.TableName,
		entry.RecordID,
		string(entry.Data),
		schema.FormatTime(entry.CreatedAt),
		entry.Retries,
		entry.LastError,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s %s/%d: %w",
			entry.Operation, entry.TableName, entry.RecordID, err)
	}

	err = l.conn.QueryRowContext(ctx,
		`SELECT id FROM sync_queue WHERE table_name = ? AND record_id = ?`,
		entry.TableName, entry.RecordID).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to read assigned queue id: %w", err)
	}

	return nil
}

// OldestQueueEntries returns up to limit entries in replay order: FIFO by
// created_at, then by id for entries enqueued within the same instant.
func (l *Local) OldestQueueEntries(ctx context.Context, limit int) ([]*schema.QueueEntry, error) {
	rows, err := l.conn.QueryContext(ctx, `
	SELECT id, operation, table_name, record_id, data, created_at, retries, last_error
	FROM sync_queue
	ORDER BY created_at ASC, id ASC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query retry queue: %w", err)
	}
	defer rows.Close()

	var entries []*schema.QueueEntry
	for rows.Next() {
		var entry schema.QueueEntry
		var data, createdAt string

		if err := rows.Scan(
			&entry.ID,
			&entry.Operation,
			&entry.TableName,
			&entry.RecordID,
			&data,
			&createdAt,
			&entry.Retries,
			&entry.LastError,
		); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}

		entry.Data = []byte(data)
		if t, err := schema.ParseTime(createdAt); err == nil {
			entry.CreatedAt = t
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue entries: %w", err)
	}

	return entries, nil
}

// DeleteQueueEntry removes a queue entry, either because its replay
// succeeded or because it exceeded the retry ceiling.
func (l *Local) DeleteQueueEntry(ctx context.Context, id int64) error {
	if _, err := l.conn.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete queue entry %d: %w", id, err)
	}
	return nil
}

// BumpQueueRetry increments an entry's retry counter and records the error
// from its latest failed replay.
func (l *Local) BumpQueueRetry(ctx context.Context, id int64, lastError string) error {
	_, err := l.conn.ExecContext(ctx,
		`UPDATE sync_queue SET retries = retries + 1, last_error = ? WHERE id = ?`,
		lastError, id)
	if err != nil {
		return fmt.Errorf("failed to bump retries for queue entry %d: %w", id, err)
	}
	return nil
}

// QueueDepth returns the number of pending retry-queue entries.
func (l *Local) QueueDepth(ctx context.Context) (int, error) {
	var count int
	if err := l.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count queue entries: %w", err)
	}
	return count, nil
}

// nullID maps a zero id to NULL so INTEGER PRIMARY KEY assigns the next
// rowid, while explicit ids pass through unchanged.
func nullID(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}
