package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setupWatcher(t *testing.T) (*DBWatcher, string) {
	t.Helper()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "quill.db")
	if err := os.WriteFile(dbPath, []byte("seed"), 0644); err != nil {
		t.Fatalf("failed to seed database file: %v", err)
	}

	w, err := NewDBWatcher(dbPath)
	if err != nil {
		t.Fatalf("NewDBWatcher failed: %v", err)
	}

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	return w, dbPath
}

func waitForEvent(t *testing.T, w *DBWatcher) bool {
	t.Helper()

	select {
	case _, ok := <-w.Events():
		return ok
	case <-time.After(2 * time.Second):
		return false
	}
}

func TestWatcherSignalsDatabaseWrite(t *testing.T) {
	w, dbPath := setupWatcher(t)

	if err := os.WriteFile(dbPath, []byte("changed"), 0644); err != nil {
		t.Fatalf("failed to write database file: %v", err)
	}

	if !waitForEvent(t, w) {
		t.Fatal("expected an event for a database write")
	}
}

func TestWatcherSignalsWALWrite(t *testing.T) {
	w, dbPath := setupWatcher(t)

	if err := os.WriteFile(dbPath+"-wal", []byte("wal"), 0644); err != nil {
		t.Fatalf("failed to write wal file: %v", err)
	}

	if !waitForEvent(t, w) {
		t.Fatal("expected an event for a WAL sibling write")
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	w, dbPath := setupWatcher(t)

	other := filepath.Join(filepath.Dir(dbPath), "notes.txt")
	if err := os.WriteFile(other, []byte("unrelated"), 0644); err != nil {
		t.Fatalf("failed to write unrelated file: %v", err)
	}

	select {
	case <-w.Events():
		t.Fatal("unrelated file write must not signal")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherLifecycle(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "quill.db")

	w, err := NewDBWatcher(dbPath)
	if err != nil {
		t.Fatalf("NewDBWatcher failed: %v", err)
	}

	if w.IsRunning() {
		t.Error("watcher should not run before Start")
	}

	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !w.IsRunning() {
		t.Error("watcher should report running after Start")
	}
	if err := w.Start(); err == nil {
		t.Error("expected second Start to fail")
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if w.IsRunning() {
		t.Error("watcher should not report running after Stop")
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}

	// Channels close on Stop so daemon select loops can exit.
	if _, ok := <-w.Events(); ok {
		t.Error("expected events channel closed after Stop")
	}
}
