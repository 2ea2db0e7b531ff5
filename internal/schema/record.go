package schema

import (
	"fmt"
	"time"
)

// TimeLayout is the canonical storage format for timestamps: fixed-width
// nanosecond precision, always rendered in UTC. Fixed width means stored
// values compare lexicographically in the same order as the instants they
// encode, which the dirty-record queries rely on.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t in the canonical storage format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a timestamp in the canonical storage format.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// Record represents a document as replicated between the local and remote
// stores. The id is assigned by whichever store creates the record first and
// is reused verbatim on the other side, so a record keeps a single identity
// across stores.
type Record struct {
	// ===== Identity =====
	ID int64 `json:"id"`

	// ===== Document Content =====
	Title   string   `json:"title"`
	Content string   `json:"content,omitempty"`
	Prompt  string   `json:"prompt,omitempty"`
	Tags    []string `json:"tags,omitempty"`

	// ===== Lifecycle Timestamps =====
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"` // soft-delete marker

	// ===== Sync Bookkeeping (conflict resolution) =====
	SyncVersion  int64      `json:"sync_version"`
	DeviceID     string     `json:"device_id,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"` // engine-owned
}

// Validate checks that the Record carries the fields replication depends on.
func (r *Record) Validate() error {
	if r.ID == 0 {
		return fmt.Errorf("id is required")
	}
	if r.Title == "" {
		return fmt.Errorf("title is required")
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if r.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	if r.SyncVersion < 1 {
		return fmt.Errorf("sync_version must be at least 1 (got %d)", r.SyncVersion)
	}
	return nil
}

// Dirty reports whether the record has local changes that have not been
// pushed: last_synced_at unset, or updated_at newer than last_synced_at.
func (r *Record) Dirty() bool {
	return r.LastSyncedAt == nil || r.UpdatedAt.After(*r.LastSyncedAt)
}

// Deleted reports whether the record is soft-deleted.
func (r *Record) Deleted() bool {
	return r.DeletedAt != nil
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	out := *r
	if r.Tags != nil {
		out.Tags = append([]string(nil), r.Tags...)
	}
	if r.DeletedAt != nil {
		t := *r.DeletedAt
		out.DeletedAt = &t
	}
	if r.LastSyncedAt != nil {
		t := *r.LastSyncedAt
		out.LastSyncedAt = &t
	}
	return &out
}
