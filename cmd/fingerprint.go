package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"argus/canonical"
	"argus/sigma"
)

// newFingerprintCmd creates the 'fingerprint' subcommand. It needs no
// storage: canonicalization is a pure function of the rule file.
func newFingerprintCmd() *cobra.Command {
	var showCanonical bool

	cmd := &cobra.Command{
		Use:   "fingerprint <rule-file>",
		Short: "Print a rule's canonical fingerprint",
		Long: `Canonicalize a SIGMA rule file and print its exact hash, logsource key and
canonical text. Two rule files with logically equivalent detections produce
identical hashes regardless of formatting, key order or macro usage.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFilePath(args[0]); err != nil {
				return err
			}

			rule, err := sigma.NewParser(zap.NewNop().Sugar()).ParseFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to parse rule: %w", err)
			}

			canon, err := canonical.Canonicalize(rule.Logsource, rule.Detection)
			if err != nil {
				return fmt.Errorf("failed to canonicalize rule: %w", err)
			}
			fingerprint, err := canonical.NewFingerprint(canon)
			if err != nil {
				return err
			}

			if outputJSON {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(fingerprint)
			}

			headerColor.Printf("Fingerprint: %s\n", rule.Title)
			infoColor.Printf("  exact_hash:    %s\n", fingerprint.ExactHash)
			infoColor.Printf("  logsource_key: %s\n", fingerprint.LogsourceKey)
			if showCanonical {
				fmt.Println()
				fmt.Print(fingerprint.CanonicalText)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showCanonical, "canonical", false, "Print the full canonical text")
	return cmd
}
