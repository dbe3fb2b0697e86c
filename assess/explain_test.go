package assess

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestExplain_Diff tests the shared/added/removed split over positive atoms
// and the filter diff over negative atoms.
func TestExplain_Diff(t *testing.T) {
	proposed := coverageRule(t, map[string]interface{}{
		"selection": map[string]interface{}{
			"Image|endswith":       "\\cmd.exe",
			"CommandLine|contains": "/c",
		},
		"filter":    map[string]interface{}{"User": "SYSTEM"},
		"condition": "selection and not filter",
	})
	candidate := coverageRule(t, map[string]interface{}{
		"selection": map[string]interface{}{
			"Image|endswith": "\\cmd.exe",
			"ParentImage":    "\\explorer.exe",
		},
		"condition": "selection",
	})

	expl := Explain(proposed, candidate)

	assert.Equal(t, []string{"Image|endswith:\\cmd.exe"}, expl.SharedAtoms)
	assert.Equal(t, []string{"CommandLine|contains:/c"}, expl.AddedAtoms)
	assert.Equal(t, []string{"ParentImage:\\explorer.exe"}, expl.RemovedAtoms)
	assert.Equal(t, []string{"User:SYSTEM"}, expl.FilterDifferences,
		"filter present on one side only is a difference")
}

// TestExplain_IdenticalRules tests that identical rules diff to shared only.
func TestExplain_IdenticalRules(t *testing.T) {
	detection := map[string]interface{}{
		"selection": map[string]interface{}{"EventID": 4688},
		"condition": "selection",
	}
	a := coverageRule(t, detection)
	b := coverageRule(t, detection)

	expl := Explain(a, b)
	assert.Equal(t, []string{"EventID:4688"}, expl.SharedAtoms)
	assert.Empty(t, expl.AddedAtoms)
	assert.Empty(t, expl.RemovedAtoms)
	assert.Empty(t, expl.FilterDifferences)
}

// TestExplain_NilCandidate tests that a missing side degrades to all-added.
func TestExplain_NilCandidate(t *testing.T) {
	proposed := coverageRule(t, map[string]interface{}{
		"selection": map[string]interface{}{"Image": "x"},
		"condition": "selection",
	})

	expl := Explain(proposed, nil)
	assert.Equal(t, []string{"Image:x"}, expl.AddedAtoms)
	assert.Empty(t, expl.SharedAtoms)
	assert.Empty(t, expl.RemovedAtoms)
}
