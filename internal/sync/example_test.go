package sync_test

import (
	"context"
	"fmt"
	"log"

	"github.com/quillforge/quill/internal/device"
	"github.com/quillforge/quill/internal/store"
	"github.com/quillforge/quill/internal/sync"
)

// This example demonstrates basic usage of the sync package.
// Note: This is for documentation only and won't run as a test.
func ExampleNew() {
	ctx := context.Background()

	// Open both stores
	local, err := store.OpenLocal(".quill/quill.db")
	if err != nil {
		log.Fatal(err)
	}
	defer local.Close()

	if err := local.InitSchema(ctx); err != nil {
		log.Fatal(err)
	}

	remote, err := store.OpenRemote("libsql://mydb.turso.io", "auth-token")
	if err != nil {
		log.Fatal(err)
	}
	defer remote.Close()

	// Identify this writer
	deviceID, err := device.EnsureID(ctx, local)
	if err != nil {
		log.Fatal(err)
	}

	// Create the engine and run one cycle
	engine, err := sync.New(local, remote, deviceID, nil)
	if err != nil {
		log.Fatal(err)
	}

	if err := engine.SyncNow(ctx); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Sync complete")
}

// This example demonstrates running the engine in the background.
func ExampleEngine_Start() {
	ctx := context.Background()

	local, err := store.OpenLocal(".quill/quill.db")
	if err != nil {
		log.Fatal(err)
	}
	defer local.Close()

	remote, err := store.OpenRemote("libsql://mydb.turso.io", "auth-token")
	if err != nil {
		log.Fatal(err)
	}
	defer remote.Close()

	engine, err := sync.New(local, remote, "my-device-id", nil)
	if err != nil {
		log.Fatal(err)
	}

	// Refresh views when pulls change local records
	unsubscribe := engine.Subscribe(func(id int64) {
		fmt.Printf("record %d changed\n", id)
	})
	defer unsubscribe()

	if err := engine.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer engine.Stop()

	// Wake the engine after a burst of local writes
	engine.TriggerSync()
}
