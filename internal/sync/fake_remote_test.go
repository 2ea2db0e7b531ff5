package sync

import (
	"context"
	"sort"
	stdsync "sync"

	"github.com/quillforge/quill/internal/schema"
	"github.com/quillforge/quill/internal/store"
)

// fakeRemote is an in-memory store.Remote with injectable failures, used to
// exercise the engine's unreachable, partial-failure, and retry paths without
// a network.
type fakeRemote struct {
	mu        stdsync.Mutex
	records   map[int64]*schema.Record
	snapshots map[int64]*schema.Snapshot

	pingErr       error
	getErr        error
	putErr        error
	insertSnapErr error
}

var _ store.Remote = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		records:   make(map[int64]*schema.Record),
		snapshots: make(map[int64]*schema.Snapshot),
	}
}

func (f *fakeRemote) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeRemote) GetRecord(ctx context.Context, id int64) (*schema.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec.Clone(), nil
}

func (f *fakeRemote) PutRecord(ctx context.Context, rec *schema.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.putErr != nil {
		return f.putErr
	}

	stored := rec.Clone()
	stored.LastSyncedAt = nil
	if existing, ok := f.records[rec.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	f.records[rec.ID] = stored
	return nil
}

func (f *fakeRemote) HasRecord(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return false, f.getErr
	}
	_, ok := f.records[id]
	return ok, nil
}

func (f *fakeRemote) RecentRecords(ctx context.Context, limit int) ([]*schema.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}

	recs := make([]*schema.Record, 0, len(f.records))
	for _, rec := range f.records {
		recs = append(recs, rec.Clone())
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].UpdatedAt.Equal(recs[j].UpdatedAt) {
			return recs[i].UpdatedAt.After(recs[j].UpdatedAt)
		}
		return recs[i].ID > recs[j].ID
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (f *fakeRemote) HasSnapshot(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return false, f.getErr
	}
	_, ok := f.snapshots[id]
	return ok, nil
}

func (f *fakeRemote) InsertSnapshot(ctx context.Context, snap *schema.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.insertSnapErr != nil {
		return f.insertSnapErr
	}

	stored := snap.Clone()
	stored.LastSyncedAt = nil
	f.snapshots[snap.ID] = stored
	return nil
}

func (f *fakeRemote) RecentSnapshots(ctx context.Context, limit int) ([]*schema.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}

	snaps := make([]*schema.Snapshot, 0, len(f.snapshots))
	for _, snap := range f.snapshots {
		snaps = append(snaps, snap.Clone())
	}
	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
		}
		return snaps[i].ID > snaps[j].ID
	})
	if len(snaps) > limit {
		snaps = snaps[:limit]
	}
	return snaps, nil
}

func (f *fakeRemote) Close() error {
	return nil
}

func (f *fakeRemote) setPingErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

func (f *fakeRemote) setPutErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putErr = err
}

func (f *fakeRemote) record(id int64) *schema.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[id]; ok {
		return rec.Clone()
	}
	return nil
}

func (f *fakeRemote) snapshotCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.snapshots)
}
