package assess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argus/canonical"
)

func coverageRule(t *testing.T, detection map[string]interface{}) *canonical.CanonicalRule {
	t.Helper()
	rule, err := canonical.Canonicalize(map[string]interface{}{
		"product": "windows", "category": "process_creation",
	}, detection)
	require.NoError(t, err)
	return rule
}

// TestRulePatterns tests lexical pattern extraction from atom values and
// significant title words.
func TestRulePatterns(t *testing.T) {
	rule := coverageRule(t, map[string]interface{}{
		"selection": map[string]interface{}{
			"Image|endswith":       "\\powershell.exe",
			"CommandLine|contains": []interface{}{"-enc", "DownloadString"},
		},
		"filter":    map[string]interface{}{"User": "SYSTEM"},
		"condition": "selection and not filter",
	})

	patterns := RulePatterns(rule, "Suspicious PowerShell Encoded Command")

	assert.Contains(t, patterns, "\\powershell.exe")
	assert.Contains(t, patterns, "-enc")
	assert.Contains(t, patterns, "downloadstring", "atom values are lower-cased")
	assert.Contains(t, patterns, "encoded")
	assert.Contains(t, patterns, "command")
	assert.NotContains(t, patterns, "suspicious", "stopwords are dropped")
	assert.NotContains(t, patterns, "system", "filter-side values are excluded")
}

// TestRulePatterns_Deduplicated tests that repeated values collapse.
func TestRulePatterns_Deduplicated(t *testing.T) {
	rule := coverageRule(t, map[string]interface{}{
		"selection": map[string]interface{}{"Image|endswith": "rundll32"},
		"condition": "selection",
	})

	patterns := RulePatterns(rule, "Rundll32 rundll32")
	count := 0
	for _, p := range patterns {
		if p == "rundll32" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

// TestBehaviorOverlap tests bidirectional substring matching and the ratio.
func TestBehaviorOverlap(t *testing.T) {
	behaviors := []string{"powershell -enc", "rundll32 execution", "lsass dump"}
	patterns := []string{"-enc", "rundll32", "\\winword.exe"}

	ratio, matched, unmatched := BehaviorOverlap(behaviors, patterns)

	assert.InDelta(t, 2.0/3.0, ratio, 1e-9)
	assert.Equal(t, []string{"powershell -enc", "rundll32 execution"}, matched)
	assert.Equal(t, []string{"lsass dump"}, unmatched)
}

// TestBehaviorOverlap_PatternContainsBehavior tests the reverse containment
// direction: a short behavior indicator inside a long atom value.
func TestBehaviorOverlap_PatternContainsBehavior(t *testing.T) {
	ratio, matched, _ := BehaviorOverlap(
		[]string{"mimikatz"},
		[]string{"c:\\tools\\mimikatz.exe"},
	)
	assert.Equal(t, 1.0, ratio)
	assert.Equal(t, []string{"mimikatz"}, matched)
}

// TestBehaviorOverlap_Empty tests degenerate inputs.
func TestBehaviorOverlap_Empty(t *testing.T) {
	ratio, matched, unmatched := BehaviorOverlap(nil, []string{"x"})
	assert.Equal(t, 0.0, ratio)
	assert.Nil(t, matched)
	assert.Nil(t, unmatched)

	ratio, _, unmatched = BehaviorOverlap([]string{"behavior"}, nil)
	assert.Equal(t, 0.0, ratio)
	assert.Equal(t, []string{"behavior"}, unmatched)
}

// TestClassifyCoverage tests the threshold ladder.
func TestClassifyCoverage(t *testing.T) {
	cases := []struct {
		similarity float64
		overlap    float64
		want       string
	}{
		{0.90, 0.80, CoverageCovered},
		{0.85, 0.70, CoverageCovered},
		{0.90, 0.50, CoverageExtend},
		{0.75, 0.40, CoverageExtend},
		{0.70, 0.30, CoverageExtend},
		{0.75, 0.10, CoverageNew},
		{0.50, 0.90, CoverageNew},
		{0.0, 0.0, CoverageNew},
	}
	for _, tc := range cases {
		got := ClassifyCoverage(tc.similarity, tc.overlap)
		assert.Equal(t, tc.want, got, "similarity=%v overlap=%v", tc.similarity, tc.overlap)
	}
}
