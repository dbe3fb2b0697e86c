package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"argus/bootstrap"
	"argus/service"
	"argus/sigma"
)

// newMatchCmd creates the 'match' subcommand.
func newMatchCmd() *cobra.Command {
	var behaviors []string
	var behaviorsFile string

	cmd := &cobra.Command{
		Use:   "match <rule-file>",
		Short: "Check how well the corpus covers observed behaviors",
		Long: `Match a rule drafted from an intelligence article, plus the article's
behavior indicators, against the corpus. Each candidate is classified as
covered, extend or new.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			if err := validateFilePath(args[0]); err != nil {
				return err
			}

			allBehaviors, err := collectBehaviors(behaviors, behaviorsFile)
			if err != nil {
				return err
			}
			if len(allBehaviors) == 0 {
				warningColor.Fprintln(os.Stderr, "No behaviors given; coverage will rely on similarity only")
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

			stop := startSpinner("Matching behaviors against corpus...")
			results, err := app.Match.MatchCoverage(ctx, &service.MatchRequest{
				Rule:      rule,
				Behaviors: allBehaviors,
			})
			stop()
			if err != nil {
				return err
			}

			if outputJSON {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(results)
			}
			renderCoverage(results)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&behaviors, "behavior", "b", nil, "Behavior indicator (repeatable)")
	cmd.Flags().StringVar(&behaviorsFile, "behaviors-file", "", "File with one behavior indicator per line")
	return cmd
}

// collectBehaviors merges flag-provided behaviors with a behaviors file.
func collectBehaviors(flags []string, file string) ([]string, error) {
	behaviors := append([]string(nil), flags...)
	if file == "" {
		return behaviors, nil
	}

	if err := validateFilePath(file); err != nil {
		return nil, err
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open behaviors file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			behaviors = append(behaviors, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read behaviors file: %w", err)
	}
	return behaviors, nil
}
