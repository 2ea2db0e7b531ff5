package sync

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/quillforge/quill/internal/schema"
	"github.com/quillforge/quill/internal/store"
)

// errParentMissing marks a snapshot whose parent record has not arrived on
// the remote store yet. The snapshot stays dirty and is implicitly retried
// on a later cycle; this is the referential-integrity guard, not a failure.
var errParentMissing = errors.New("parent record not present remotely")

// pushRecords pushes every dirty record, local → remote. A per-record remote
// failure is enqueued to the retry queue and never aborts the remaining
// batch. A local storage failure aborts this phase only.
func (e *Engine) pushRecords(ctx context.Context) {
	records, err := e.local.DirtyRecords(ctx)
	if err != nil {
		e.logger.Printf("ERROR: push-records phase aborted: %v", err)
		return
	}

	for _, rec := range records {
		if err := e.pushRecord(ctx, rec); err != nil {
			e.enqueueFailedPush(ctx, schema.OpUpsert, schema.TableRecords, rec.ID, rec, err)
		}
	}
}

// pushRecord pushes one record. The decision tree:
//
//   - absent remotely → insert with the same id, mark local synced
//   - local strictly wins (updated_at, then sync_version) → overwrite
//     remote, mark local synced
//   - local does not win → do nothing; the pull phase corrects the local
//     copy if needed
//
// Any remote error is returned for the caller to enqueue; the record is not
// marked synced.
func (e *Engine) pushRecord(ctx context.Context, rec *schema.Record) error {
	remoteRec, err := e.remote.GetRecord(ctx, rec.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if err := e.remote.PutRecord(ctx, rec); err != nil {
			return err
		}

	case err != nil:
		return err

	default:
		if !wins(rec, remoteRec) {
			return nil
		}
		if err := e.remote.PutRecord(ctx, rec); err != nil {
			return err
		}
	}

	// A bookkeeping failure is local-only: logged, never queued. The record
	// stays dirty and the next cycle re-pushes it harmlessly.
	if err := e.local.MarkRecordSynced(ctx, rec.ID, time.Now().UTC()); err != nil {
		e.logger.Printf("ERROR: record %d pushed but not marked synced: %v", rec.ID, err)
	}
	return nil
}

// pushSnapshots pushes every dirty snapshot, insert-only. Snapshots whose
// parent record is not yet remote-present are skipped and stay dirty.
func (e *Engine) pushSnapshots(ctx context.Context) {
	snaps, err := e.local.DirtySnapshots(ctx)
	if err != nil {
		e.logger.Printf("ERROR: push-snapshots phase aborted: %v", err)
		return
	}

	for _, snap := range snaps {
		err := e.pushSnapshot(ctx, snap)
		if errors.Is(err, errParentMissing) {
			e.logger.Printf("Snapshot %d waits for record %d to reach the remote store", snap.ID, snap.RecordID)
			continue
		}
		if err != nil {
			e.enqueueFailedPush(ctx, schema.OpInsert, schema.TableSnapshots, snap.ID, snap, err)
		}
	}
}

// pushSnapshot pushes one snapshot: verify the parent record exists
// remotely, insert if the snapshot id is absent, and never update an
// existing one. Present-or-inserted both settle the snapshot for good.
func (e *Engine) pushSnapshot(ctx context.Context, snap *schema.Snapshot) error {
	hasParent, err := e.remote.HasRecord(ctx, snap.RecordID)
	if err != nil {
		return err
	}
	if !hasParent {
		return errParentMissing
	}

	exists, err := e.remote.HasSnapshot(ctx, snap.ID)
	if err != nil {
		return err
	}
	if !exists {
		if err := e.remote.InsertSnapshot(ctx, snap); err != nil {
			return err
		}
	}

	if err := e.local.MarkSnapshotSynced(ctx, snap.ID, time.Now().UTC()); err != nil {
		e.logger.Printf("ERROR: snapshot %d pushed but not marked synced: %v", snap.ID, err)
	}
	return nil
}

// enqueueFailedPush parks a failed push on the durable retry queue so it is
// retried instead of dropped. If even enqueueing fails (local storage
// error), the failure is logged; the row is still dirty and the next cycle
// retries it from the live push path.
func (e *Engine) enqueueFailedPush(ctx context.Context, op, table string, id int64, payload interface{}, cause error) {
	e.logger.Printf("Push of %s/%d failed, queueing for retry: %v", table, id, cause)

	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.Printf("ERROR: failed to serialize %s/%d for retry queue: %v", table, id, err)
		return
	}

	entry := &schema.QueueEntry{
		Operation: op,
		TableName: table,
		RecordID:  id,
		Data:      data,
		LastError: cause.Error(),
	}
	if err := e.local.Enqueue(ctx, entry); err != nil {
		e.logger.Printf("ERROR: failed to enqueue %s/%d: %v", table, id, err)
	}
}
