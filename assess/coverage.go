package assess

import (
	"strings"

	"argus/canonical"
)

// Coverage decision thresholds.
const (
	coveredSimilarityThreshold = 0.85
	coveredOverlapThreshold    = 0.70
	extendSimilarityThreshold  = 0.70
	extendOverlapThreshold     = 0.30
)

// titleStopwords are words too generic to discriminate between behaviors.
var titleStopwords = map[string]bool{
	"detection": true,
	"detected":  true,
	"detects":   true,
	"potential": true,
	"suspicious": true,
	"possible":  true,
	"activity":  true,
	"with":      true,
	"from":      true,
	"this":      true,
	"that":      true,
	"rule":      true,
	"via":       true,
	"use":       true,
	"using":     true,
	"usage":     true,
}

const minPatternWordLength = 4

// RulePatterns extracts the lexical patterns of a rule for behavior matching:
// every positive-atom value plus the significant words of the title, all
// lower-cased and deduplicated.
func RulePatterns(rule *canonical.CanonicalRule, title string) []string {
	seen := make(map[string]bool)
	var patterns []string

	add := func(p string) {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			return
		}
		seen[p] = true
		patterns = append(patterns, p)
	}

	if rule != nil {
		for _, atom := range rule.PositiveAtoms() {
			add(atom.Value)
		}
	}

	for _, word := range strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '.' || r == '_' || r == '-')
	}) {
		if len(word) >= minPatternWordLength && !titleStopwords[word] {
			add(word)
		}
	}

	return patterns
}

// BehaviorOverlap computes the fraction of behavior indicators matched by a
// rule's lexical patterns. A behavior matches when it contains a pattern or a
// pattern contains it, case-insensitively. Returns the ratio plus the matched
// and unmatched behavior lists for explanation.
func BehaviorOverlap(behaviors, patterns []string) (ratio float64, matched, unmatched []string) {
	if len(behaviors) == 0 {
		return 0, nil, nil
	}

	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			lowered = append(lowered, p)
		}
	}

	for _, behavior := range behaviors {
		b := strings.ToLower(strings.TrimSpace(behavior))
		if b == "" {
			continue
		}
		if behaviorMatches(b, lowered) {
			matched = append(matched, behavior)
		} else {
			unmatched = append(unmatched, behavior)
		}
	}

	total := len(matched) + len(unmatched)
	if total == 0 {
		return 0, nil, nil
	}
	return float64(len(matched)) / float64(total), matched, unmatched
}

func behaviorMatches(behavior string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(behavior, p) || strings.Contains(p, behavior) {
			return true
		}
	}
	return false
}

// ClassifyCoverage labels how a candidate rule relates to an article's
// behaviors given its weighted similarity and behavior overlap ratio.
func ClassifyCoverage(similarity, overlap float64) string {
	switch {
	case similarity >= coveredSimilarityThreshold && overlap >= coveredOverlapThreshold:
		return CoverageCovered
	case similarity >= extendSimilarityThreshold && overlap >= extendOverlapThreshold:
		return CoverageExtend
	default:
		return CoverageNew
	}
}
