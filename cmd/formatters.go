package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"argus/assess"
)

// renderAssessment displays a novelty assessment with its candidate table.
func renderAssessment(title string, result *assess.NoveltyAssessment) {
	headerColor.Println("NOVELTY ASSESSMENT")
	headerColor.Println(strings.Repeat("=", 100))
	printField("Rule", title)
	printField("Label", formatNoveltyLabel(result.Label))
	printField("Score", fmt.Sprintf("%.4f", result.Score))
	printField("Logsource Key", result.LogsourceKey)
	printField("Exact Hash", shortHash(result.ExactHash))
	fmt.Println()

	if len(result.TopMatches) == 0 {
		warningColor.Println("No candidates share this rule's logsource key")
		return
	}

	headerColor.Println("TOP MATCHES")
	fmt.Printf("%-38s %-26s %8s %8s %8s %9s\n",
		"Rule ID", "Title", "Jaccard", "Shape", "Cosine", "Weighted")
	fmt.Println(strings.Repeat("-", 100))
	for _, match := range result.TopMatches {
		fmt.Printf("%-38s %-26s %8.4f %8.4f %8.4f %9.4f\n",
			truncate(match.RuleID, 37),
			truncate(match.Title, 25),
			match.AtomJaccard, match.LogicShape, match.Cosine, match.Weighted)
	}
	fmt.Println(strings.Repeat("=", 100))

	if explain := result.TopMatches[0].Explain; explain != nil && !quiet {
		fmt.Println()
		renderExplanation(result.TopMatches[0].RuleID, explain)
	}
}

// renderExplanation displays the atom diff against the closest match.
func renderExplanation(ruleID string, explain *assess.Explanation) {
	headerColor.Printf("DIFF AGAINST %s\n", truncate(ruleID, 60))
	printAtomList("shared", successColor, explain.SharedAtoms)
	printAtomList("added", infoColor, explain.AddedAtoms)
	printAtomList("removed", warningColor, explain.RemovedAtoms)
	printAtomList("filter diff", errorColor, explain.FilterDifferences)
}

func printAtomList(label string, c *color.Color, atoms []string) {
	if len(atoms) == 0 {
		return
	}
	c.Printf("  %s (%d):\n", label, len(atoms))
	for _, atom := range atoms {
		fmt.Printf("    %s\n", atom)
	}
}

// renderCoverage displays coverage decisions as a table.
func renderCoverage(results []assess.CoverageResult) {
	if len(results) == 0 {
		warningColor.Println("No candidate rules found")
		return
	}

	headerColor.Println("COVERAGE")
	headerColor.Println(strings.Repeat("=", 110))
	fmt.Printf("%-38s %-10s %10s %8s  %s\n",
		"Rule ID", "Status", "Similarity", "Overlap", "Reasoning")
	fmt.Println(strings.Repeat("-", 110))
	for _, result := range results {
		fmt.Printf("%-38s %-10s %10.4f %8.4f  %s\n",
			truncate(result.RuleID, 37),
			formatCoverageLabel(result.Label),
			result.Similarity,
			result.OverlapRatio,
			result.Reasoning)
	}
	fmt.Println(strings.Repeat("=", 110))
}

func formatNoveltyLabel(label string) string {
	switch label {
	case assess.NoveltyDuplicate:
		return errorColor.Sprint(label)
	case assess.NoveltySimilar:
		return warningColor.Sprint(label)
	default:
		return successColor.Sprint(label)
	}
}

func formatCoverageLabel(label string) string {
	switch label {
	case assess.CoverageCovered:
		return successColor.Sprint(label)
	case assess.CoverageExtend:
		return warningColor.Sprint(label)
	default:
		return infoColor.Sprint(label)
	}
}

func printField(name, value string) {
	fmt.Printf("  %-14s %s\n", name+":", value)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func shortHash(hash string) string {
	if len(hash) > 16 {
		return hash[:16] + "..."
	}
	return hash
}
