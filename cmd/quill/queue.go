package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quillforge/quill/internal/ui"
)

var queueLimit int

var queueCmd = &cobra.Command{
	Use:     "queue",
	GroupID: "sync",
	Short:   "List pushes waiting in the retry queue",
	Long: `List the retry queue: pushes that failed against the shared store and
are waiting to be replayed. The queue drains automatically at the start of
every sync cycle; an empty listing means nothing is pending.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := loadConfig()

		local := openLocal(cfg)
		defer local.Close()

		entries, err := local.OldestQueueEntries(ctx, queueLimit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading queue: %v\n", err)
			os.Exit(1)
		}

		if len(entries) == 0 {
			fmt.Printf("%s\n", ui.RenderMuted("retry queue is empty"))
			return
		}

		fmt.Printf("%s (%d pending, oldest first)\n", ui.RenderAccent("retry queue"), len(entries))
		for _, entry := range entries {
			line := fmt.Sprintf("  #%-4d %-6s %s/%d  retries=%d  queued %s",
				entry.ID, entry.Operation, entry.TableName, entry.RecordID,
				entry.Retries, entry.CreatedAt.Format("2006-01-02 15:04:05"))
			if entry.Retries >= cfg.Sync.RetryCeiling {
				fmt.Printf("%s\n", ui.RenderWarning(line))
			} else {
				fmt.Println(line)
			}
			if entry.LastError != "" {
				fmt.Printf("        %s\n", ui.RenderMuted(entry.LastError))
			}
		}
	},
}

func init() {
	queueCmd.Flags().IntVar(&queueLimit, "limit", 50, "maximum entries to list")
	rootCmd.AddCommand(queueCmd)
}
