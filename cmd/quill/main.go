// Command quill keeps a local document database and a shared networked
// database eventually consistent, so documents follow the user between
// devices and survive the network store being unreachable.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillforge/quill/internal/config"
	"github.com/quillforge/quill/internal/store"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Document replication between a local and a shared store",
	Long: `quill replicates documents between this device's local SQLite database
and a shared libsql database, in both directions.

Edits stay usable offline: writes land locally first, and the sync engine
pushes them out and pulls remote changes in whenever the shared store is
reachable. Conflicting concurrent edits resolve deterministically by
last-write-wins with a write-counter tie-break.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default quill.yaml in . or $HOME/.config/quill)")
	rootCmd.AddGroup(&cobra.Group{ID: "sync", Title: "Sync Commands:"})
}

// loadConfig reads configuration honoring the --config flag.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// openLocal opens the local store and initializes its schema.
func openLocal(cfg *config.Config) *store.Local {
	local, err := store.OpenLocal(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening local database: %v\n", err)
		os.Exit(1)
	}

	if err := local.InitSchema(context.Background()); err != nil {
		_ = local.Close()
		fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
		os.Exit(1)
	}

	return local
}

// openRemote opens a handle on the shared store. This never dials; the
// engine's probe decides reachability.
func openRemote(cfg *config.Config) *store.LibSQL {
	if cfg.Remote.URL == "" {
		fmt.Fprintf(os.Stderr, "Error: remote.url is not configured (set it in quill.yaml or QUILL_REMOTE_URL)\n")
		os.Exit(1)
	}

	remote, err := store.OpenRemote(cfg.Remote.URL, cfg.Remote.AuthToken)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening remote database: %v\n", err)
		os.Exit(1)
	}

	return remote
}
