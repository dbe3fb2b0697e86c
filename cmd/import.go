package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"argus/bootstrap"
)

// newImportCmd creates the 'import' subcommand.
func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <directory>",
		Short: "Import SIGMA rule files into the corpus",
		Long: `Walk a directory of SIGMA YAML files and import every parseable rule with
its canonical fields and section vectors precomputed. Unparseable files are
skipped with a warning.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			if err := validateFilePath(args[0]); err != nil {
				return err
			}

			app, err := bootstrap.NewApp(ctx)
			if err != nil {
				return err
			}
			defer app.Shutdown()

			stop := startSpinner(fmt.Sprintf("Importing rules from %s...", args[0]))
			stats, err := app.Import.ImportDirectory(ctx, args[0])
			stop()
			if err != nil {
				return err
			}

			if outputJSON {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(stats)
			}

			successColor.Printf("Imported %d rules\n", stats.Imported)
			if stats.Failed > 0 {
				warningColor.Printf("Failed to import %d rules (see logs)\n", stats.Failed)
			}
			return nil
		},
	}
}
