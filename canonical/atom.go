package canonical

import (
	"sort"
	"strings"
)

// Value type tags persisted with each atom.
const (
	ValueTypeString = "string"
	ValueTypeInt    = "int"
	ValueTypeFloat  = "float"
	ValueTypeBool   = "bool"
)

// Atom polarity. Negative atoms come from selections referenced under NOT in
// the condition; they are tracked for explainability but excluded from the
// primary Jaccard computation.
const (
	PolarityPositive = "positive"
	PolarityNegative = "negative"
)

// Atom is one irreducible field/modifier/value predicate extracted from a
// detection block. List-valued predicates are exploded into one Atom per
// element before canonicalization.
// Fields are declared in lexicographic tag order so the standard JSON
// encoding already has sorted keys, which the exact hash relies on.
type Atom struct {
	Field     string   `json:"field"`
	Ops       []string `json:"ops"`
	Polarity  string   `json:"polarity"`
	Value     string   `json:"value"`
	ValueType string   `json:"value_type"`
}

// Key returns the identity of the atom for set purposes: field, sorted
// modifiers and value. Polarity and value type are deliberately excluded so
// that a negated copy of a predicate compares equal to its positive twin.
func (a Atom) Key() string {
	ops := make([]string, len(a.Ops))
	copy(ops, a.Ops)
	sort.Strings(ops)

	var sb strings.Builder
	sb.WriteString(a.Field)
	for _, op := range ops {
		sb.WriteByte('|')
		sb.WriteString(op)
	}
	sb.WriteByte(':')
	sb.WriteString(a.Value)
	return sb.String()
}

// DisplayKey renders the atom for canonical text output. Negative atoms are
// wrapped in NOT(...).
func (a Atom) DisplayKey() string {
	key := a.Key()
	if a.Polarity == PolarityNegative {
		return "NOT(" + key + ")"
	}
	return key
}

// sortAtoms orders atoms by key, breaking ties on polarity. The result is the
// canonical atom order for the rule.
func sortAtoms(atoms []Atom) {
	sort.Slice(atoms, func(i, j int) bool {
		ki, kj := atoms[i].Key(), atoms[j].Key()
		if ki != kj {
			return ki < kj
		}
		return atoms[i].Polarity < atoms[j].Polarity
	})
}
