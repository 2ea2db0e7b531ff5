package sync

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quillforge/quill/internal/schema"
	"github.com/quillforge/quill/internal/store"
)

const testDeviceID = "dev-local"

// testConfig returns a config suited to tests that drive cycles explicitly.
func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Interval = time.Hour
	cfg.Debounce = 10 * time.Millisecond
	cfg.ProbeTimeout = time.Second
	cfg.Logger = log.New(os.Stderr, "[test] ", 0)
	return cfg
}

// setupEngine creates an engine over a temporary local store and the given
// remote.
func setupEngine(t *testing.T, remote store.Remote, cfg *Config) (*Engine, *store.Local) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "quill.db")

	local, err := store.OpenLocal(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = local.Close() })

	if err := local.InitSchema(context.Background()); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	if cfg == nil {
		cfg = testConfig()
	}

	engine, err := New(local, remote, testDeviceID, cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	return engine, local
}

// createLocalRecord inserts a record stamped with this device's id.
func createLocalRecord(t *testing.T, local *store.Local, title string, updatedAt time.Time) *schema.Record {
	t.Helper()

	rec := &schema.Record{
		Title:     title,
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
		DeviceID:  testDeviceID,
	}
	if err := local.CreateRecord(context.Background(), rec); err != nil {
		t.Fatalf("failed to create record: %v", err)
	}
	return rec
}

func TestNewValidation(t *testing.T) {
	fake := newFakeRemote()
	_, local := setupEngine(t, fake, nil)

	if _, err := New(nil, fake, testDeviceID, nil); err == nil {
		t.Error("expected error for nil local store")
	}
	if _, err := New(local, nil, testDeviceID, nil); err == nil {
		t.Error("expected error for nil remote store")
	}
	if _, err := New(local, fake, "", nil); err == nil {
		t.Error("expected error for empty device id")
	}
}

func TestNewClampsNonPositiveConfig(t *testing.T) {
	fake := newFakeRemote()
	cfg := &Config{Logger: log.New(os.Stderr, "[test] ", 0)}
	engine, _ := setupEngine(t, fake, cfg)
	ctx := context.Background()

	defaults := DefaultConfig()
	if engine.config.Interval != defaults.Interval {
		t.Errorf("expected interval defaulted to %v, got %v", defaults.Interval, engine.config.Interval)
	}
	if engine.config.ProbeTimeout != defaults.ProbeTimeout {
		t.Errorf("expected probe timeout defaulted to %v, got %v", defaults.ProbeTimeout, engine.config.ProbeTimeout)
	}
	if engine.config.PullWindow != defaults.PullWindow {
		t.Errorf("expected pull window defaulted to %d, got %d", defaults.PullWindow, engine.config.PullWindow)
	}
	if engine.config.QueueBatch != defaults.QueueBatch {
		t.Errorf("expected queue batch defaulted to %d, got %d", defaults.QueueBatch, engine.config.QueueBatch)
	}
	if engine.config.RetryCeiling != defaults.RetryCeiling {
		t.Errorf("expected retry ceiling defaulted to %d, got %d", defaults.RetryCeiling, engine.config.RetryCeiling)
	}
	if engine.monitor.logCeiling != defaults.FailureLogCeiling {
		t.Errorf("expected failure-log ceiling defaulted to %d, got %d", defaults.FailureLogCeiling, engine.monitor.logCeiling)
	}
	if cfg.Interval != 0 {
		t.Error("the caller's config struct must not be mutated")
	}

	// The run loop must start on the defaulted interval.
	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	engine.Stop()

	// Failing probes well past the ceiling exercise the log-thinning
	// arithmetic on the defaulted values.
	fake.setPingErr(errors.New("network is down"))
	cycles := defaults.FailureLogCeiling + 2
	for i := 0; i < cycles; i++ {
		if err := engine.SyncNow(ctx); err != nil {
			t.Fatalf("SyncNow %d failed: %v", i+1, err)
		}
	}
	if got := engine.Status().ConsecutiveFailures; got != cycles {
		t.Errorf("expected %d consecutive failures, got %d", cycles, got)
	}
}

func TestCyclePushesDirtyRecords(t *testing.T) {
	fake := newFakeRemote()
	engine, local := setupEngine(t, fake, nil)
	ctx := context.Background()

	rec := createLocalRecord(t, local, "Chapter one", time.Now().UTC())

	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	pushed := fake.record(rec.ID)
	if pushed == nil {
		t.Fatal("expected record on the remote store")
	}
	if pushed.Title != "Chapter one" {
		t.Errorf("expected title %q, got %q", "Chapter one", pushed.Title)
	}

	got, err := local.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.Dirty() {
		t.Error("pushed record should not be dirty")
	}

	status := engine.Status()
	if !status.Reachable {
		t.Error("expected reachable status after successful cycle")
	}
	if status.LastSyncTime.IsZero() {
		t.Error("expected last sync time to be set")
	}
}

func TestCyclePushesSnapshotsAfterRecords(t *testing.T) {
	fake := newFakeRemote()
	engine, local := setupEngine(t, fake, nil)
	ctx := context.Background()

	rec := createLocalRecord(t, local, "Chapter one", time.Now().UTC())

	snap := &schema.Snapshot{RecordID: rec.ID, Title: rec.Title, Content: "v1", DeviceID: testDeviceID}
	if err := local.CreateSnapshot(ctx, snap); err != nil {
		t.Fatalf("CreateSnapshot failed: %v", err)
	}

	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	if fake.record(rec.ID) == nil {
		t.Fatal("expected record on the remote store")
	}
	if fake.snapshotCount() != 1 {
		t.Fatalf("expected 1 remote snapshot, got %d", fake.snapshotCount())
	}

	dirty, err := local.DirtySnapshots(ctx)
	if err != nil {
		t.Fatalf("DirtySnapshots failed: %v", err)
	}
	if len(dirty) != 0 {
		t.Errorf("expected no dirty snapshots after push, got %d", len(dirty))
	}
}

func TestLocalNewerWinsPush(t *testing.T) {
	fake := newFakeRemote()
	engine, local := setupEngine(t, fake, nil)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	rec := createLocalRecord(t, local, "Local edit", base.Add(time.Minute))

	stale := rec.Clone()
	stale.Title = "Stale remote copy"
	stale.UpdatedAt = base
	stale.DeviceID = "dev-other"
	if err := fake.PutRecord(ctx, stale); err != nil {
		t.Fatalf("seeding remote failed: %v", err)
	}

	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	pushed := fake.record(rec.ID)
	if pushed.Title != "Local edit" {
		t.Errorf("expected local copy to overwrite remote, got %q", pushed.Title)
	}

	got, err := local.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.Title != "Local edit" {
		t.Errorf("local copy must survive, got %q", got.Title)
	}
	if got.Dirty() {
		t.Error("record should be marked synced after winning push")
	}
}

func TestRemoteNewerWinsPull(t *testing.T) {
	fake := newFakeRemote()
	engine, local := setupEngine(t, fake, nil)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	rec := createLocalRecord(t, local, "Local edit", base)

	newer := rec.Clone()
	newer.Title = "Remote edit"
	newer.UpdatedAt = base.Add(time.Minute)
	newer.SyncVersion = rec.SyncVersion + 1
	newer.DeviceID = "dev-other"
	if err := fake.PutRecord(ctx, newer); err != nil {
		t.Fatalf("seeding remote failed: %v", err)
	}

	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	// The stale local copy must not have clobbered the remote one.
	if got := fake.record(rec.ID); got.Title != "Remote edit" {
		t.Errorf("remote copy was overwritten by a losing push: %q", got.Title)
	}

	got, err := local.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.Title != "Remote edit" {
		t.Errorf("expected remote copy applied locally, got %q", got.Title)
	}
	if got.DeviceID != "dev-other" {
		t.Errorf("expected remote device id, got %q", got.DeviceID)
	}
	if got.Dirty() {
		t.Error("applied record should not be dirty")
	}
}

func TestSyncVersionBreaksTimestampTies(t *testing.T) {
	fake := newFakeRemote()
	engine, local := setupEngine(t, fake, nil)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := createLocalRecord(t, local, "Version three", at)

	// Same instant, lower version: local must win on push.
	remoteCopy := rec.Clone()
	remoteCopy.Title = "Version two"
	remoteCopy.SyncVersion = rec.SyncVersion
	remoteCopy.DeviceID = "dev-other"
	if err := fake.PutRecord(ctx, remoteCopy); err != nil {
		t.Fatalf("seeding remote failed: %v", err)
	}

	// Pin the local row to the same instant with a higher version, still
	// dirty, so only sync_version separates the two copies.
	if err := local.ApplyRemoteRecord(ctx, &schema.Record{
		ID: rec.ID, Title: "Version three", CreatedAt: rec.CreatedAt,
		UpdatedAt: at, SyncVersion: 2, DeviceID: testDeviceID,
	}, at); err != nil {
		t.Fatalf("pinning record failed: %v", err)
	}
	if err := local.MarkRecordSynced(ctx, rec.ID, at.Add(-time.Minute)); err != nil {
		t.Fatalf("MarkRecordSynced failed: %v", err)
	}

	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	if got := fake.record(rec.ID); got.SyncVersion != 2 || got.Title != "Version three" {
		t.Errorf("expected higher sync_version to win the tie, got version %d title %q",
			got.SyncVersion, got.Title)
	}
}

func TestSnapshotWaitsForRemoteParent(t *testing.T) {
	fake := newFakeRemote()
	engine, local := setupEngine(t, fake, nil)
	ctx := context.Background()

	rec := createLocalRecord(t, local, "Parent", time.Now().UTC())

	// The parent looks synced locally but never reached the remote store.
	if err := local.MarkRecordSynced(ctx, rec.ID, time.Now().UTC()); err != nil {
		t.Fatalf("MarkRecordSynced failed: %v", err)
	}

	snap := &schema.Snapshot{RecordID: rec.ID, Title: rec.Title, DeviceID: testDeviceID}
	if err := local.CreateSnapshot(ctx, snap); err != nil {
		t.Fatalf("CreateSnapshot failed: %v", err)
	}

	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	if fake.snapshotCount() != 0 {
		t.Fatal("snapshot must not be pushed before its parent record")
	}

	// The guard is not a failure: nothing may land on the retry queue.
	depth, err := local.QueueDepth(ctx)
	if err != nil {
		t.Fatalf("QueueDepth failed: %v", err)
	}
	if depth != 0 {
		t.Errorf("expected empty retry queue, got depth %d", depth)
	}

	dirty, err := local.DirtySnapshots(ctx)
	if err != nil {
		t.Fatalf("DirtySnapshots failed: %v", err)
	}
	if len(dirty) != 1 {
		t.Fatalf("snapshot must stay dirty while waiting, got %d dirty", len(dirty))
	}

	// Once the parent lands remotely, the next cycle settles the snapshot.
	parent, err := local.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if err := fake.PutRecord(ctx, parent); err != nil {
		t.Fatalf("seeding remote failed: %v", err)
	}

	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	if fake.snapshotCount() != 1 {
		t.Error("expected snapshot pushed after its parent arrived")
	}
}

func TestFailedPushQueuesAndRecovers(t *testing.T) {
	fake := newFakeRemote()
	engine, local := setupEngine(t, fake, nil)
	ctx := context.Background()

	rec := createLocalRecord(t, local, "Flaky push", time.Now().UTC())

	fake.setPutErr(errors.New("write refused"))
	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	depth, err := local.QueueDepth(ctx)
	if err != nil {
		t.Fatalf("QueueDepth failed: %v", err)
	}
	if depth != 1 {
		t.Fatalf("expected the failed push queued, got depth %d", depth)
	}

	fake.setPutErr(nil)
	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	if fake.record(rec.ID) == nil {
		t.Error("expected queued push replayed to the remote store")
	}

	depth, err = local.QueueDepth(ctx)
	if err != nil {
		t.Fatalf("QueueDepth failed: %v", err)
	}
	if depth != 0 {
		t.Errorf("expected queue drained after replay, got depth %d", depth)
	}

	got, err := local.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.Dirty() {
		t.Error("record should be marked synced after the replay")
	}
}

func TestQueueReplayUsesFreshestLocalRow(t *testing.T) {
	fake := newFakeRemote()
	engine, local := setupEngine(t, fake, nil)
	ctx := context.Background()

	rec := createLocalRecord(t, local, "First wording", time.Now().UTC())

	fake.setPutErr(errors.New("write refused"))
	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	// The row moves on while its push sits on the queue.
	cur, err := local.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	cur.Title = "Second wording"
	if err := local.UpdateRecord(ctx, cur); err != nil {
		t.Fatalf("UpdateRecord failed: %v", err)
	}

	fake.setPutErr(nil)
	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	if got := fake.record(rec.ID); got.Title != "Second wording" {
		t.Errorf("replay must push the current row, got %q", got.Title)
	}
}

func TestRepeatedPushFailureKeepsOneQueueEntry(t *testing.T) {
	fake := newFakeRemote()
	engine, local := setupEngine(t, fake, nil)
	ctx := context.Background()

	rec := createLocalRecord(t, local, "Rejected upstream", time.Now().UTC())

	// The record stays dirty across cycles while the remote rejects it, so
	// both the queue replay and the live push fail every cycle. The queue
	// must keep exactly one entry for the row, with its retry count intact.
	fake.setPutErr(errors.New("write refused"))
	for i := 0; i < 3; i++ {
		if err := engine.SyncNow(ctx); err != nil {
			t.Fatalf("SyncNow %d failed: %v", i+1, err)
		}
		depth, err := local.QueueDepth(ctx)
		if err != nil {
			t.Fatalf("QueueDepth failed: %v", err)
		}
		if depth != 1 {
			t.Fatalf("after cycle %d: expected a single queue entry, got depth %d", i+1, depth)
		}
	}

	entries, err := local.OldestQueueEntries(ctx, 10)
	if err != nil {
		t.Fatalf("OldestQueueEntries failed: %v", err)
	}
	if entries[0].Retries != 2 {
		t.Errorf("expected 2 failed replays recorded, got %d", entries[0].Retries)
	}

	fake.setPutErr(nil)
	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}
	if fake.record(rec.ID) == nil {
		t.Error("expected the record pushed once the remote accepts writes")
	}
	depth, err := local.QueueDepth(ctx)
	if err != nil {
		t.Fatalf("QueueDepth failed: %v", err)
	}
	if depth != 0 {
		t.Errorf("expected queue drained after recovery, got depth %d", depth)
	}
}

func TestQueueEntryDroppedAfterRetryCeiling(t *testing.T) {
	fake := newFakeRemote()
	cfg := testConfig()
	cfg.RetryCeiling = 2

	engine, local := setupEngine(t, fake, cfg)
	ctx := context.Background()

	// A queued push whose local row is gone: the replay can only use the
	// queued payload, and the remote rejects it permanently.
	now := time.Now().UTC()
	payload, err := json.Marshal(&schema.Record{
		ID: 99, Title: "Orphaned", CreatedAt: now, UpdatedAt: now,
		SyncVersion: 1, DeviceID: testDeviceID,
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if err := local.Enqueue(ctx, &schema.QueueEntry{
		Operation: schema.OpUpsert,
		TableName: schema.TableRecords,
		RecordID:  99,
		Data:      payload,
	}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	fake.setPutErr(errors.New("permanent rejection"))

	wantDepths := []int{1, 1, 0}
	for i, want := range wantDepths {
		if err := engine.SyncNow(ctx); err != nil {
			t.Fatalf("SyncNow %d failed: %v", i+1, err)
		}
		depth, err := local.QueueDepth(ctx)
		if err != nil {
			t.Fatalf("QueueDepth failed: %v", err)
		}
		if depth != want {
			t.Fatalf("after cycle %d: expected depth %d, got %d", i+1, want, depth)
		}
	}

	if fake.record(99) != nil {
		t.Error("rejected record must not appear on the remote store")
	}
}

func TestUnreachableRemoteSkipsCycle(t *testing.T) {
	fake := newFakeRemote()
	engine, local := setupEngine(t, fake, nil)
	ctx := context.Background()

	rec := createLocalRecord(t, local, "Written offline", time.Now().UTC())

	fake.setPingErr(errors.New("network is down"))
	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	status := engine.Status()
	if status.Reachable {
		t.Error("expected unreachable status")
	}
	if status.ConsecutiveFailures != 1 {
		t.Errorf("expected 1 consecutive failure, got %d", status.ConsecutiveFailures)
	}
	if !status.LastSyncTime.IsZero() {
		t.Error("a skipped cycle must not count as a sync")
	}
	if fake.record(rec.ID) != nil {
		t.Error("nothing may be pushed while unreachable")
	}

	// Reconnect: the next cycle converges without losing the offline edit.
	fake.setPingErr(nil)
	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	status = engine.Status()
	if !status.Reachable || status.ConsecutiveFailures != 0 {
		t.Errorf("expected recovery, got %+v", status)
	}
	if fake.record(rec.ID) == nil {
		t.Error("expected offline edit pushed after reconnect")
	}
}

func TestSoftDeletePropagatesFromRemote(t *testing.T) {
	fake := newFakeRemote()
	engine, local := setupEngine(t, fake, nil)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	rec := createLocalRecord(t, local, "To be deleted elsewhere", base)
	if err := local.MarkRecordSynced(ctx, rec.ID, base); err != nil {
		t.Fatalf("MarkRecordSynced failed: %v", err)
	}

	deletedAt := base.Add(time.Minute)
	remoteCopy := rec.Clone()
	remoteCopy.UpdatedAt = deletedAt
	remoteCopy.DeletedAt = &deletedAt
	remoteCopy.SyncVersion = rec.SyncVersion + 1
	remoteCopy.DeviceID = "dev-other"
	if err := fake.PutRecord(ctx, remoteCopy); err != nil {
		t.Fatalf("seeding remote failed: %v", err)
	}

	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	got, err := local.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if !got.Deleted() {
		t.Error("expected soft delete to propagate from the remote store")
	}
	if got.Dirty() {
		t.Error("propagated delete should not be dirty")
	}
}

func TestPullInsertsUnknownRecordsAndNotifies(t *testing.T) {
	fake := newFakeRemote()
	engine, local := setupEngine(t, fake, nil)
	ctx := context.Background()

	var notified []int64
	unsubscribe := engine.Subscribe(func(id int64) {
		notified = append(notified, id)
	})
	defer unsubscribe()

	now := time.Now().UTC()
	if err := fake.PutRecord(ctx, &schema.Record{
		ID: 42, Title: "Written elsewhere", CreatedAt: now, UpdatedAt: now,
		SyncVersion: 1, DeviceID: "dev-other",
	}); err != nil {
		t.Fatalf("seeding remote failed: %v", err)
	}

	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	got, err := local.GetRecord(ctx, 42)
	if err != nil {
		t.Fatalf("expected record 42 pulled, got %v", err)
	}
	if got.Title != "Written elsewhere" {
		t.Errorf("unexpected title %q", got.Title)
	}
	if got.Dirty() {
		t.Error("pulled record should not be dirty")
	}

	if len(notified) != 1 || notified[0] != 42 {
		t.Errorf("expected one notification for record 42, got %v", notified)
	}
}

func TestEchoedWriteNotReapplied(t *testing.T) {
	fake := newFakeRemote()
	engine, local := setupEngine(t, fake, nil)
	ctx := context.Background()

	createLocalRecord(t, local, "Mine", time.Now().UTC())
	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	var notified []int64
	unsubscribe := engine.Subscribe(func(id int64) {
		notified = append(notified, id)
	})
	defer unsubscribe()

	// The remote copy is our own write echoed back; a second cycle must not
	// churn it.
	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("second SyncNow failed: %v", err)
	}

	if len(notified) != 0 {
		t.Errorf("expected no notifications for an echoed write, got %v", notified)
	}

	dirty, err := local.DirtyRecordCount(ctx)
	if err != nil {
		t.Fatalf("DirtyRecordCount failed: %v", err)
	}
	if dirty != 0 {
		t.Errorf("expected no dirty records, got %d", dirty)
	}
}

func TestPullSnapshotsInsertOnce(t *testing.T) {
	fake := newFakeRemote()
	engine, local := setupEngine(t, fake, nil)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := fake.PutRecord(ctx, &schema.Record{
		ID: 7, Title: "Parent", CreatedAt: now, UpdatedAt: now,
		SyncVersion: 1, DeviceID: "dev-other",
	}); err != nil {
		t.Fatalf("seeding remote failed: %v", err)
	}
	if err := fake.InsertSnapshot(ctx, &schema.Snapshot{
		ID: 70, RecordID: 7, Title: "Parent", CreatedAt: now,
		SyncVersion: 1, DeviceID: "dev-other",
	}); err != nil {
		t.Fatalf("seeding remote failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := engine.SyncNow(ctx); err != nil {
			t.Fatalf("SyncNow failed: %v", err)
		}
	}

	count, err := local.SnapshotCount(ctx)
	if err != nil {
		t.Fatalf("SnapshotCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one pulled snapshot, got %d", count)
	}
}

func TestSyncNowSingleFlight(t *testing.T) {
	fake := newFakeRemote()
	engine, _ := setupEngine(t, fake, nil)

	engine.inCycle.Store(true)
	defer engine.inCycle.Store(false)

	if err := engine.SyncNow(context.Background()); !errors.Is(err, ErrCycleInProgress) {
		t.Errorf("expected ErrCycleInProgress, got %v", err)
	}
}

func TestStartTriggerStop(t *testing.T) {
	fake := newFakeRemote()
	engine, local := setupEngine(t, fake, nil)
	ctx := context.Background()

	rec := createLocalRecord(t, local, "Triggered", time.Now().UTC())

	if err := engine.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := engine.Start(ctx); err == nil {
		t.Error("expected second Start to fail")
	}

	engine.TriggerSync()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !engine.Status().LastSyncTime.IsZero() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	engine.Stop()
	engine.Stop() // idempotent

	if engine.Status().LastSyncTime.IsZero() {
		t.Fatal("expected a triggered cycle to complete before the deadline")
	}
	if fake.record(rec.ID) == nil {
		t.Error("expected the triggered cycle to push the record")
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	fake := newFakeRemote()
	engine, _ := setupEngine(t, fake, nil)
	ctx := context.Background()

	var notified []int64
	unsubscribe := engine.Subscribe(func(id int64) {
		notified = append(notified, id)
	})
	unsubscribe()

	now := time.Now().UTC()
	if err := fake.PutRecord(ctx, &schema.Record{
		ID: 5, Title: "Quiet", CreatedAt: now, UpdatedAt: now,
		SyncVersion: 1, DeviceID: "dev-other",
	}); err != nil {
		t.Fatalf("seeding remote failed: %v", err)
	}

	if err := engine.SyncNow(ctx); err != nil {
		t.Fatalf("SyncNow failed: %v", err)
	}

	if len(notified) != 0 {
		t.Errorf("expected no notifications after unsubscribe, got %v", notified)
	}
}
