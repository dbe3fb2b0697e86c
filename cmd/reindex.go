package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"argus/bootstrap"
)

// newReindexCmd creates the 'reindex' subcommand.
func newReindexCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild canonical fields and vectors for the whole corpus",
		Long: `Recompute every stored rule's canonical form, fingerprint and section
vectors. Progress is checkpointed per batch: an interrupted run resumes where
it stopped. Use --force to clear the checkpoint and reprocess everything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			app, err := bootstrap.NewApp(ctx)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			stop := startSpinner("Reindexing corpus...")
			stats, err := app.Reindex.Run(ctx, force)
			stop()
			if err != nil {
				return fmt.Errorf("reindex failed: %w", err)
			}

			if outputJSON {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(stats)
			}

			successColor.Println("Reindex complete")
			infoColor.Printf("  processed: %d\n", stats.Processed)
			infoColor.Printf("  updated:   %d\n", stats.Updated)
			infoColor.Printf("  skipped:   %d\n", stats.Skipped)
			if stats.Failed > 0 {
				warningColor.Printf("  failed:    %d\n", stats.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Clear the checkpoint and reprocess every rule")
	return cmd
}
