package sync

import (
	"context"
	"errors"
	"time"

	"github.com/quillforge/quill/internal/store"
)

// pullRecords applies remote changes, remote → local, bounded to the most
// recently modified window. The comparison is the same LWW rule as push with
// the roles reversed. Per-record failures are logged (never queued; the
// remote copy is still there to pull next cycle) and don't abort the batch.
func (e *Engine) pullRecords(ctx context.Context) {
	remoteRecs, err := e.remote.RecentRecords(ctx, e.config.PullWindow)
	if err != nil {
		e.logger.Printf("ERROR: pull-records phase aborted: %v", err)
		return
	}

	now := time.Now().UTC()

	for _, rr := range remoteRecs {
		localRec, err := e.local.GetRecord(ctx, rr.ID)
		if errors.Is(err, store.ErrNotFound) {
			// No local counterpart: adopt the remote record verbatim,
			// keeping its id and created_at.
			if err := e.local.InsertRemoteRecord(ctx, rr, now); err != nil {
				e.logger.Printf("ERROR: failed to insert pulled record %d: %v", rr.ID, err)
				continue
			}
			e.notifyRecordUpdated(rr.ID)
			continue
		}
		if err != nil {
			e.logger.Printf("ERROR: failed to read local record %d during pull: %v", rr.ID, err)
			continue
		}

		if !remoteWins(rr, localRec) {
			continue
		}

		// Overwrite the local fields (never id/created_at), stamp the
		// watermark, and tell collaborators their cached view is stale.
		if err := e.local.ApplyRemoteRecord(ctx, rr, now); err != nil {
			e.logger.Printf("ERROR: failed to apply pulled record %d: %v", rr.ID, err)
			continue
		}
		e.notifyRecordUpdated(rr.ID)
	}
}

// pullSnapshots adopts remote snapshots, insert-only. A snapshot already
// present locally by id is never touched again.
func (e *Engine) pullSnapshots(ctx context.Context) {
	remoteSnaps, err := e.remote.RecentSnapshots(ctx, e.config.PullWindow)
	if err != nil {
		e.logger.Printf("ERROR: pull-snapshots phase aborted: %v", err)
		return
	}

	now := time.Now().UTC()

	for _, snap := range remoteSnaps {
		exists, err := e.local.HasSnapshot(ctx, snap.ID)
		if err != nil {
			e.logger.Printf("ERROR: failed to check local snapshot %d during pull: %v", snap.ID, err)
			continue
		}
		if exists {
			continue
		}

		// The parent may be outside the pull window and absent locally; the
		// foreign key rejects the insert and the snapshot is retried on a
		// later cycle, after its record has been pulled.
		if err := e.local.InsertRemoteSnapshot(ctx, snap, now); err != nil {
			e.logger.Printf("ERROR: failed to insert pulled snapshot %d: %v", snap.ID, err)
			continue
		}
	}
}
