package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quillforge/quill/internal/schema"
	"github.com/quillforge/quill/internal/store"
)

// drainQueue replays up to QueueBatch retry-queue entries, oldest first,
// through the same push logic used for live rows. An entry is deleted on
// successful replay; a failed replay bumps its retry counter, and an entry
// that exceeds the retry ceiling is dropped with a warning. The drop is a
// tolerated data-loss path and must stay loud: operators find it in the log,
// not silently missing rows.
func (e *Engine) drainQueue(ctx context.Context) {
	entries, err := e.local.OldestQueueEntries(ctx, e.config.QueueBatch)
	if err != nil {
		e.logger.Printf("ERROR: drain-queue phase aborted: %v", err)
		return
	}

	for _, entry := range entries {
		err := e.replayEntry(ctx, entry)
		if errors.Is(err, errParentMissing) {
			// Referential guard, not a failure; leave the entry untouched
			// so it replays after its parent record lands.
			continue
		}
		if err != nil {
			if entry.Retries+1 > e.config.RetryCeiling {
				e.logger.Printf("WARNING: dropping queue entry %d (%s %s/%d) after %d failed attempts, data may be lost: %v",
					entry.ID, entry.Operation, entry.TableName, entry.RecordID, entry.Retries+1, err)
				if derr := e.local.DeleteQueueEntry(ctx, entry.ID); derr != nil {
					e.logger.Printf("ERROR: failed to drop exhausted queue entry %d: %v", entry.ID, derr)
				}
				continue
			}

			if berr := e.local.BumpQueueRetry(ctx, entry.ID, err.Error()); berr != nil {
				e.logger.Printf("ERROR: failed to bump retries for queue entry %d: %v", entry.ID, berr)
			}
			continue
		}

		if err := e.local.DeleteQueueEntry(ctx, entry.ID); err != nil {
			e.logger.Printf("ERROR: failed to delete replayed queue entry %d: %v", entry.ID, err)
		}
	}
}

// replayEntry replays one queue entry through the live push path so queued
// writes obey exactly the same LWW and referential rules as fresh ones.
func (e *Engine) replayEntry(ctx context.Context, entry *schema.QueueEntry) error {
	switch entry.TableName {
	case schema.TableRecords:
		var queued schema.Record
		if err := json.Unmarshal(entry.Data, &queued); err != nil {
			return fmt.Errorf("corrupt queue data: %w", err)
		}

		// The local row may have moved on since the entry was enqueued;
		// its current state supersedes the queued one causally, and pushing
		// it keeps MarkRecordSynced honest. The queued payload is only used
		// when the row was permanently deleted in the meantime.
		rec := &queued
		if cur, err := e.local.GetRecord(ctx, queued.ID); err == nil {
			rec = cur
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		return e.pushRecord(ctx, rec)

	case schema.TableSnapshots:
		var snap schema.Snapshot
		if err := json.Unmarshal(entry.Data, &snap); err != nil {
			return fmt.Errorf("corrupt queue data: %w", err)
		}
		// Snapshots are immutable, so the queued payload is always current.
		return e.pushSnapshot(ctx, &snap)

	default:
		return fmt.Errorf("unknown queue table %q", entry.TableName)
	}
}
