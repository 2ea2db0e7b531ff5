package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/quillforge/quill/internal/device"
	"github.com/quillforge/quill/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show replication state for this device",
	Long: `Show the local replication state: device identity, record and
snapshot counts, how many rows still need pushing, the retry-queue depth,
and a one-shot reachability probe of the shared store.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()

		local := openLocal(cfg)
		defer local.Close()

		deviceID, err := device.EnsureID(ctx, local)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading device identity: %v\n", err)
			os.Exit(1)
		}

		records, err := local.RecordCount(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting records: %v\n", err)
			os.Exit(1)
		}
		snapshots, err := local.SnapshotCount(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error counting snapshots: %v\n", err)
			os.Exit(1)
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

		fmt.Printf("%s\n", ui.RenderAccent("quill status"))
		fmt.Printf("  device:    %s\n", deviceID)
		fmt.Printf("  database:  %s\n", cfg.DBPath)
		fmt.Printf("  records:   %d (%d dirty)\n", records, dirty)
		fmt.Printf("  snapshots: %d\n", snapshots)
		fmt.Printf("  queued:    %d\n", depth)

		if cfg.Remote.URL == "" {
			fmt.Printf("  remote:    %s\n", ui.RenderMuted("not configured"))
			return
		}

		remote := openRemote(cfg)
		defer remote.Close()

		probeCtx, cancel := context.WithTimeout(ctx, cfg.Sync.ProbeTimeout)
		defer cancel()

		start := time.Now()
		if err := remote.Ping(probeCtx); err != nil {
			fmt.Printf("  remote:    %s (%v)\n", ui.RenderError("unreachable"), err)
			return
		}
		fmt.Printf("  remote:    %s (%v)\n", ui.RenderSuccess("reachable"),
			time.Since(start).Round(time.Millisecond))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
