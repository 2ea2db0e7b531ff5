package schema

import "time"

// Queue operation and table names. A queue entry records which push
// operation failed and against which table, so the drain path can replay it
// through the same logic used for live rows.
const (
	OpUpsert = "upsert" // record push (insert-or-overwrite by LWW)
	OpInsert = "insert" // snapshot push (insert-only)

	TableRecords   = "records"
	TableSnapshots = "snapshots"
)

// QueueEntry is a durable retry-queue row: one push operation that failed
// against the remote store, kept so failures are retried instead of dropped.
//
// Entries are replayed oldest-first (FIFO by created_at) to preserve the
// causal ordering of dependent writes, e.g. a record before its snapshots.
// An entry is deleted on successful replay, or deleted with a logged warning
// once its retry count exceeds the configured ceiling.
type QueueEntry struct {
	ID        int64
	Operation string
	TableName string
	RecordID  int64
	Data      []byte // serialized Record or Snapshot
	CreatedAt time.Time
	Retries   int
	LastError string
}
