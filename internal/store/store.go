// Package store provides the two document stores the replication engine
// moves data between.
//
// # Architecture
//
// There is one store implementation per store kind, selected at construction
// time; call sites never branch on what kind of store they hold:
//
//   - Local: the embedded, always-available SQLite database holding the
//     authoritative working copy for this device, plus the engine's durable
//     bookkeeping (sync_metadata, sync_queue). Opened with the ncruces
//     go-sqlite3 driver in WAL mode.
//   - LibSQL: the shared, possibly-unreachable networked libsql database the
//     devices rendezvous through. It implements the Remote interface.
//
// Both stores carry the same records/snapshots column shape; the remote side
// simply omits last_synced_at, which is local-only bookkeeping.
//
// # Error handling
//
// Absence is reported as ErrNotFound so callers can distinguish "row missing"
// from "store broken". Everything else is a wrapped driver error.
package store

import (
	"context"
	"errors"

	"github.com/quillforge/quill/internal/schema"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Remote is the replication-facing surface of the shared networked store.
//
// The engine only ever needs these operations against the remote side:
// a cheap reachability probe, point reads and upserts of records,
// insert-only snapshot writes, and bounded recently-modified windows for
// the pull phases. All calls take a context because every one of them may
// cross the network.
type Remote interface {
	// Ping issues a cheap read against the store. The connection monitor
	// uses it with a short timeout to classify the store as reachable.
	Ping(ctx context.Context) error

	// GetRecord fetches a record by id. Returns ErrNotFound if absent.
	GetRecord(ctx context.Context, id int64) (*schema.Record, error)

	// PutRecord inserts the record, or overwrites every field except id and
	// created_at if a row with the same id already exists.
	PutRecord(ctx context.Context, rec *schema.Record) error

	// HasRecord reports whether a record with the given id exists.
	HasRecord(ctx context.Context, id int64) (bool, error)

	// RecentRecords returns up to limit records ordered by updated_at
	// descending (the most recently modified window).
	RecentRecords(ctx context.Context, limit int) ([]*schema.Record, error)

	// HasSnapshot reports whether a snapshot with the given id exists.
	HasSnapshot(ctx context.Context, id int64) (bool, error)

	// InsertSnapshot inserts a snapshot. Snapshots are never updated; a
	// duplicate insert is a constraint error for the caller to absorb.
	InsertSnapshot(ctx context.Context, snap *schema.Snapshot) error

	// RecentSnapshots returns up to limit snapshots ordered by created_at
	// descending.
	RecentSnapshots(ctx context.Context, limit int) ([]*schema.Snapshot, error)

	// Close releases the underlying connection.
	Close() error
}
