package assess

import (
	"sort"

	"argus/canonical"
)

// Explanation diffs a proposed rule against one candidate for human review.
// Shared, Added and Removed cover positive atoms; FilterDifferences lists
// negative atoms present on exactly one side.
type Explanation struct {
	SharedAtoms       []string `json:"shared_atoms"`
	AddedAtoms        []string `json:"added_atoms"`
	RemovedAtoms      []string `json:"removed_atoms"`
	FilterDifferences []string `json:"filter_differences,omitempty"`
}

// Explain diffs the proposed rule's atoms against a candidate's. Added means
// present in the proposal but not the candidate; Removed the reverse.
func Explain(proposed, candidate *canonical.CanonicalRule) *Explanation {
	proposedPos := atomKeySet(positiveAtoms(proposed))
	candidatePos := atomKeySet(positiveAtoms(candidate))

	expl := &Explanation{
		SharedAtoms:  []string{},
		AddedAtoms:   []string{},
		RemovedAtoms: []string{},
	}
	for key := range proposedPos {
		if candidatePos[key] {
			expl.SharedAtoms = append(expl.SharedAtoms, key)
		} else {
			expl.AddedAtoms = append(expl.AddedAtoms, key)
		}
	}
	for key := range candidatePos {
		if !proposedPos[key] {
			expl.RemovedAtoms = append(expl.RemovedAtoms, key)
		}
	}

	proposedNeg := atomKeySet(negativeAtoms(proposed))
	candidateNeg := atomKeySet(negativeAtoms(candidate))
	for key := range proposedNeg {
		if !candidateNeg[key] {
			expl.FilterDifferences = append(expl.FilterDifferences, key)
		}
	}
	for key := range candidateNeg {
		if !proposedNeg[key] {
			expl.FilterDifferences = append(expl.FilterDifferences, key)
		}
	}

	sort.Strings(expl.SharedAtoms)
	sort.Strings(expl.AddedAtoms)
	sort.Strings(expl.RemovedAtoms)
	sort.Strings(expl.FilterDifferences)
	return expl
}

func positiveAtoms(rule *canonical.CanonicalRule) []canonical.Atom {
	if rule == nil {
		return nil
	}
	return rule.PositiveAtoms()
}

func negativeAtoms(rule *canonical.CanonicalRule) []canonical.Atom {
	if rule == nil {
		return nil
	}
	return rule.NegativeAtoms()
}
