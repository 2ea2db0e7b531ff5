package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillforge/quill/internal/device"
	"github.com/quillforge/quill/internal/ui"
)

var initRemote bool

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "sync",
	Short:   "Create the local database, schema, and device identity",
	Long: `Initialize this device for replication.

This creates the local SQLite database and its schema if needed, and
generates the device identity on first run. The identity is a random
identifier persisted once and reused forever; it distinguishes this writer
when two devices touch the same record.

With --remote, the shared database's schema is created too. Run that once
per shared database.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()

		local := openLocal(cfg)
		defer local.Close()

		deviceID, err := device.EnsureID(ctx, local)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating device identity: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Local database ready at %s\n", ui.RenderSuccess("✓"), cfg.DBPath)
		fmt.Printf("%s Device id %s\n", ui.RenderSuccess("✓"), ui.RenderAccent(deviceID))

		if initRemote {
			remote := openRemote(cfg)
			defer remote.Close()

			if err := remote.InitSchema(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "Error initializing remote schema: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s Remote schema ready at %s\n", ui.RenderSuccess("✓"), cfg.Remote.URL)
		}
	},
}

func init() {
	initCmd.Flags().BoolVar(&initRemote, "remote", false, "also create the shared database schema")
	rootCmd.AddCommand(initCmd)
}
