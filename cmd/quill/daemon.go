package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quillforge/quill/internal/daemon"
	"github.com/quillforge/quill/internal/device"
	"github.com/quillforge/quill/internal/logging"
	"github.com/quillforge/quill/internal/sync"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the sync engine in the background until interrupted",
	Long: `Run the sync engine as a long-lived process.

The daemon syncs on a fixed timer and additionally watches the local
database file, so edits made by other processes on this device trigger a
debounced cycle immediately. Stop it with SIGINT or SIGTERM; an in-flight
cycle always finishes before the process exits.

With log.file configured, output is rotated by size and age.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		local := openLocal(cfg)
		defer local.Close()

		remote := openRemote(cfg)
		defer remote.Close()

		deviceID, err := device.EnsureID(context.Background(), local)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading device identity: %v\n", err)
			os.Exit(1)
		}

		logOpts := logging.Options{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
		}

		engine, err := sync.New(local, remote, deviceID, cfg.EngineConfig(logging.New("[sync] ", logOpts)))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating engine: %v\n", err)
			os.Exit(1)
		}

		d, err := daemon.New(engine, local, &daemon.Config{
			Logger: logging.New("[daemon] ", logOpts),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating daemon: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := d.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
