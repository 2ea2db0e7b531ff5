package schema

import (
	"fmt"
	"time"
)

// Snapshot is an immutable capture of a Record's state at a point in time.
// Snapshots are append-only: once created they are never mutated, and the
// engine only ever inserts them (never updates) on either side.
//
// A snapshot may reference a parent record that does not yet exist on the
// remote store. It stays push-ineligible until the parent is confirmed
// remote-present.
type Snapshot struct {
	ID       int64 `json:"id"`
	RecordID int64 `json:"record_id"`

	// Copied document fields, frozen at capture time.
	Title   string   `json:"title"`
	Content string   `json:"content,omitempty"`
	Prompt  string   `json:"prompt,omitempty"`
	Tags    []string `json:"tags,omitempty"`

	// ChangesOnly is a human-readable summary of what changed since the
	// previous snapshot.
	ChangesOnly string `json:"changes_only,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	SyncVersion  int64      `json:"sync_version"`
	DeviceID     string     `json:"device_id,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"` // engine-owned
}

// Validate checks that the Snapshot carries the fields replication depends on.
func (s *Snapshot) Validate() error {
	if s.ID == 0 {
		return fmt.Errorf("id is required")
	}
	if s.RecordID == 0 {
		return fmt.Errorf("record_id is required")
	}
	if s.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	return nil
}

// Dirty reports whether the snapshot still needs to be pushed. Snapshots are
// immutable, so a single successful push settles them forever.
func (s *Snapshot) Dirty() bool {
	return s.LastSyncedAt == nil
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	out := *s
	if s.Tags != nil {
		out.Tags = append([]string(nil), s.Tags...)
	}
	if s.LastSyncedAt != nil {
		t := *s.LastSyncedAt
		out.LastSyncedAt = &t
	}
	return &out
}
