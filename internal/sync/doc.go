// Package sync implements the replication engine that keeps the local and
// remote document stores eventually consistent.
//
// # Overview
//
// Collaborators edit records in the local store; other devices edit their
// own local stores and rendezvous through the shared remote store. The
// engine decides, for every record, which side currently holds the truth,
// propagates writes in both directions, resolves conflicting concurrent
// edits deterministically, and survives partial or total network failure
// without losing or duplicating data.
//
// # The cycle
//
// One sync cycle is a fixed sequence of phases:
//
//	Idle → Probing → DrainingQueue → PushingRecords → PushingSnapshots
//	     → PullingRecords → PullingSnapshots → Idle
//
// A single-flight guard keeps at most one cycle active; a cycle requested
// while one is running is a no-op (the next timer tick or trigger runs it).
// If the probe classifies the remote store as unreachable, the cycle returns
// to idle immediately and everything is retried on the next tick.
//
// Records always move before their dependent snapshots, in both directions,
// which preserves referential integrity without any two-phase commit.
//
// # Conflict resolution
//
// The single source of conflict resolution in the system is last-write-wins
// by updated_at, with sync_version as the tie-break. Whole records win;
// fields are never merged. On a full tie during pull the rendezvous copy is
// adopted unless it is this device's own write echoed back.
//
// # Failure handling
//
// Per-record remote failures during push are enqueued to the durable retry
// queue and never abort the rest of the batch; pull failures are logged.
// The queue holds at most one entry per row, so a record the remote store
// keeps rejecting refreshes its single entry instead of accumulating
// duplicates.
// Local storage failures abort only the current phase. Retry-queue entries
// that exceed the retry ceiling are dropped with a logged warning: a
// tolerated, observable data-loss path. Nothing in a cycle is allowed to
// panic out and take the host process down.
//
// # Usage
//
//	engine, err := sync.New(local, remote, deviceID, nil)
//	if err != nil {
//	    return err
//	}
//	if err := engine.Start(ctx); err != nil {
//	    return err
//	}
//	defer engine.Stop()
//
//	// After a collaborator write:
//	engine.TriggerSync()
package sync
