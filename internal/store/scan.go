package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quillforge/quill/internal/schema"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans one full record row in canonical column order:
// id, title, content, prompt, tags, created_at, updated_at, deleted_at,
// sync_version, device_id, last_synced_at.
func scanRecord(row rowScanner) (*schema.Record, error) {
	var rec schema.Record
	var tagsJSON string
	var createdAt, updatedAt string
	var deletedAt, lastSyncedAt sql.NullString

	err := row.Scan(
		&rec.ID,
		&rec.Title,
		&rec.Content,
		&rec.Prompt,
		&tagsJSON,
		&createdAt,
		&updatedAt,
		&deletedAt,
		&rec.SyncVersion,
		&rec.DeviceID,
		&lastSyncedAt,
	)
	if err != nil {
		return nil, err
	}

	if t, err := schema.ParseTime(createdAt); err == nil {
		rec.CreatedAt = t
	}
	if t, err := schema.ParseTime(updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	rec.DeletedAt = nullStringToTime(deletedAt)
	rec.LastSyncedAt = nullStringToTime(lastSyncedAt)

	if err := unmarshalTags(tagsJSON, &rec.Tags); err != nil {
		return nil, err
	}

	return &rec, nil
}

// scanRecords drains a result set of record rows.
func scanRecords(rows *sql.Rows) ([]*schema.Record, error) {
	var records []*schema.Record

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// scanSnapshot scans one full snapshot row in canonical column order:
// id, record_id, title, content, prompt, tags, changes_only, created_at,
// sync_version, device_id, last_synced_at.
func scanSnapshot(row rowScanner) (*schema.Snapshot, error) {
	var snap schema.Snapshot
	var tagsJSON string
	var createdAt string
	var lastSyncedAt sql.NullString

	err := row.Scan(
		&snap.ID,
		&snap.RecordID,
		&snap.Title,
		&snap.Content,
		&snap.Prompt,
		&tagsJSON,
		&snap.ChangesOnly,
		&createdAt,
		&snap.SyncVersion,
		&snap.DeviceID,
		&lastSyncedAt,
	)
	if err != nil {
		return nil, err
	}

	if t, err := schema.ParseTime(createdAt); err == nil {
		snap.CreatedAt = t
	}
	snap.LastSyncedAt = nullStringToTime(lastSyncedAt)

	if err := unmarshalTags(tagsJSON, &snap.Tags); err != nil {
		return nil, err
	}

	return &snap, nil
}

// scanSnapshots drains a result set of snapshot rows.
func scanSnapshots(rows *sql.Rows) ([]*schema.Snapshot, error) {
	var snaps []*schema.Snapshot

	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snaps, nil
}

func unmarshalTags(tagsJSON string, out *[]string) error {
	if tagsJSON == "" || tagsJSON == "null" {
		*out = []string{}
		return nil
	}
	if err := json.Unmarshal([]byte(tagsJSON), out); err != nil {
		return fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	if *out == nil {
		*out = []string{}
	}
	return nil
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: schema.FormatTime(*t), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := schema.ParseTime(ns.String)
	if err != nil {
		return nil
	}
	return &t
}
