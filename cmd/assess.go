package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"argus/bootstrap"
	"argus/sigma"
)

// newAssessCmd creates the 'assess' subcommand.
func newAssessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assess <rule-file>",
		Short: "Assess a proposed rule's novelty against the corpus",
		Long: `Canonicalize a SIGMA rule file and classify it as DUPLICATE, SIMILAR or
NOVEL against the stored corpus, with per-candidate similarity breakdowns.`,
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

			rule, err := sigma.NewParser(app.Sugar).ParseFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to parse rule: %w", err)
			}

			stop := startSpinner("Assessing rule against corpus...")
			result, err := app.Assessment.AssessRule(ctx, rule)
			stop()
			if err != nil {
				return err
			}

			if outputJSON {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(result)
			}
			renderAssessment(rule.Title, result)
			return nil
		},
	}
}
