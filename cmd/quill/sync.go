package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quillforge/quill/internal/device"
	"github.com/quillforge/quill/internal/logging"
	"github.com/quillforge/quill/internal/sync"
	"github.com/quillforge/quill/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Run one sync cycle now",
	Long: `Run one full sync cycle synchronously:

  1. Probe the shared store
  2. Drain the retry queue
  3. Push dirty records, then dirty snapshots
  4. Pull recent remote records, then snapshots

If the shared store is unreachable the cycle ends at the probe; local edits
stay queued up as dirty rows and nothing is lost.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()

		local := openLocal(cfg)
		defer local.Close()

		remote := openRemote(cfg)
		defer remote.Close()

		deviceID, err := device.EnsureID(ctx, local)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading device identity: %v\n", err)
			os.Exit(1)
		}

		logger := logging.New("[sync] ", logging.Options{})
		engine, err := sync.New(local, remote, deviceID, cfg.EngineConfig(logger))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating engine: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Syncing with %s...\n", ui.RenderAccent("⇅"), cfg.Remote.URL)
		start := time.Now()

		if err := engine.SyncNow(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		status := engine.Status()
		if !status.Reachable {
			fmt.Printf("%s Remote store unreachable; cycle skipped (local edits kept)\n", ui.RenderWarning("!"))
			os.Exit(2)
		}

		dirty, err := local.DirtyRecordCount(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting dirty records: %v\n", err)
			os.Exit(1)
		}
		depth, err := local.QueueDepth(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading queue depth: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Sync complete in %v (%d dirty, %d queued)\n",
			ui.RenderSuccess("✓"), time.Since(start).Round(time.Millisecond), dirty, depth)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
