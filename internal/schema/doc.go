// Package schema defines the data structures replicated between the local
// and remote document stores.
//
// # Overview
//
// Three kinds of rows move through the replication engine:
//
//   - Record: a mutable document (title, content, prompt, tags) carrying the
//     sync bookkeeping fields used for conflict resolution.
//   - Snapshot: an immutable, append-only capture of a Record's state at a
//     point in time. Snapshots are inserted exactly once and never updated.
//   - QueueEntry: a durable retry-queue row holding a serialized push
//     operation that failed against the remote store.
//
// # Conflict resolution fields
//
// Records are flat, last-write-wins friendly structures. Every local
// mutation bumps sync_version and updated_at; the engine compares those two
// fields (timestamp first, then version) to pick a winner when both sides
// changed the same record. device_id identifies the writer that last touched
// the record and only matters as a final tie-break.
//
// # Dirtiness
//
// A record is dirty (eligible for push) iff last_synced_at is unset or
// updated_at is newer than last_synced_at. Only the sync engine ever writes
// last_synced_at; collaborators own every other field.
//
// # Timestamps
//
// All timestamps are stored as fixed-width UTC strings (see TimeLayout) so
// that lexicographic comparison in SQL matches chronological order.
package schema
