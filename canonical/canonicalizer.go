package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Version of the canonical form. Bump when the serialization contract
// changes; persisted canonical fields are rebuilt on mismatch.
const Version = 1

// Logsource is the normalized telemetry selector of a canonical rule.
// Product and category are lowercased and trimmed; the SIGMA "service" field
// is deliberately ignored because it fragments the candidate space without
// adding selectivity.
type Logsource struct {
	Product  string `json:"product"`
	Category string `json:"category"`
}

// Key returns the "product|category" gate key used for novelty candidate
// retrieval. Empty components still produce a valid, low-selectivity key.
func (l Logsource) Key() string {
	return l.Product + "|" + l.Category
}

// Detection is the canonical detection block: a sorted atom list plus an
// atom-indexed, normalized logic tree.
type Detection struct {
	Atoms []Atom     `json:"atoms"`
	Logic *LogicNode `json:"logic"`
}

// CanonicalRule is the deterministic, order-independent representation of a
// rule's meaning. Two rules with logically equivalent detection serialize
// byte-identically regardless of key ordering, parenthesization or macro
// usage in the source YAML.
type CanonicalRule struct {
	Version   int       `json:"version"`
	Logsource Logsource `json:"logsource"`
	Detection Detection `json:"detection"`
}

// NormalizeLogsource builds the canonical logsource from a raw logsource
// mapping. Missing or non-mapping input yields an empty (but valid)
// logsource.
func NormalizeLogsource(logsource map[string]interface{}) Logsource {
	out := Logsource{}
	if logsource == nil {
		return out
	}
	if v, ok := logsource["product"]; ok {
		out.Product = normalizeLogsourceComponent(v)
	}
	if v, ok := logsource["category"]; ok {
		out.Category = normalizeLogsourceComponent(v)
	}
	return out
}

func normalizeLogsourceComponent(v interface{}) string {
	s, _ := v.(string)
	return strings.ToLower(strings.TrimSpace(s))
}

// LogsourceKeyValid reports whether a logsource key can gate novelty
// candidate retrieval. An empty key or the degenerate "|" key (both
// components empty) fails closed: retrieval returns no candidates rather than
// scanning the whole corpus.
func LogsourceKeyValid(key string) bool {
	trimmed := strings.TrimSpace(key)
	return trimmed != "" && trimmed != "|"
}

// Canonicalize derives the canonical form of a rule from its raw logsource
// and detection mappings. It never fails on malformed input: a detection
// block that yields no atoms produces a canonical rule with an empty
// detection, which downstream classifiers treat as maximally non-matching.
func Canonicalize(logsource, detection map[string]interface{}) (*CanonicalRule, error) {
	rule := &CanonicalRule{
		Version:   Version,
		Logsource: NormalizeLogsource(logsource),
	}

	selections := AtomizeDetection(detection)
	if len(selections) == 0 {
		return rule, nil
	}

	selectionNames := detectionSelectionNames(detection)
	condition := ConditionString(detection)
	if condition == "" {
		// Rules without a condition are rare but appear in stored corpora;
		// the accepted reading is the conjunction of all selections.
		condition = "all of them"
	}

	parser := NewConditionParser(selectionNames)
	selectionTree, err := parser.Parse(condition)
	if err != nil {
		return nil, fmt.Errorf("condition %q: %w", condition, err)
	}
	selectionTree = Normalize(selectionTree)

	negated := negatedSelections(selectionTree)
	atoms, indexBySelection := buildAtomIndex(selections, negated)

	indexed := indexLogic(selectionTree, indexBySelection)
	rule.Detection = Detection{
		Atoms: atoms,
		Logic: Normalize(indexed),
	}
	return rule, nil
}

// detectionSelectionNames returns every non-condition key of the detection
// block, including selections that atomize to nothing, so the condition
// parser can resolve all references.
func detectionSelectionNames(detection map[string]interface{}) []string {
	names := make([]string, 0, len(detection))
	for name := range detection {
		if name != conditionKey {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// negatedSelections walks the normalized selection tree and returns the set
// of selection names that appear under an odd number of NOT operators. A
// selection referenced both plainly and negated counts as negated, keeping
// its atoms out of the positive Jaccard set.
func negatedSelections(node *LogicNode) map[string]bool {
	negated := make(map[string]bool)
	var walk func(n *LogicNode, notDepth int)
	walk = func(n *LogicNode, notDepth int) {
		if n == nil {
			return
		}
		switch n.Op {
		case OpSelection:
			if notDepth%2 == 1 {
				negated[n.Selection] = true
			}
		case OpNot:
			walk(n.Children[0], notDepth+1)
		default:
			for _, c := range n.Children {
				walk(c, notDepth)
			}
		}
	}
	walk(node, 0)
	return negated
}

// buildAtomIndex assembles the global sorted atom list and the mapping from
// selection name to atom indices. Atoms identical in key and polarity are
// shared between selections.
func buildAtomIndex(selections []SelectionAtoms, negated map[string]bool) ([]Atom, map[string][]int) {
	type atomIdentity struct {
		key      string
		polarity string
	}

	var atoms []Atom
	seen := make(map[atomIdentity]bool)
	for _, sel := range selections {
		polarity := PolarityPositive
		if negated[sel.Name] {
			polarity = PolarityNegative
		}
		for _, atom := range sel.Atoms {
			atom.Polarity = polarity
			id := atomIdentity{key: atom.Key(), polarity: polarity}
			if seen[id] {
				continue
			}
			seen[id] = true
			atoms = append(atoms, atom)
		}
	}

	sortAtoms(atoms)

	indexByIdentity := make(map[atomIdentity]int, len(atoms))
	for i, atom := range atoms {
		indexByIdentity[atomIdentity{key: atom.Key(), polarity: atom.Polarity}] = i
	}

	indexBySelection := make(map[string][]int, len(selections))
	for _, sel := range selections {
		polarity := PolarityPositive
		if negated[sel.Name] {
			polarity = PolarityNegative
		}
		indexSet := make(map[int]bool)
		for _, atom := range sel.Atoms {
			atom.Polarity = polarity
			indexSet[indexByIdentity[atomIdentity{key: atom.Key(), polarity: polarity}]] = true
		}
		indices := make([]int, 0, len(indexSet))
		for idx := range indexSet {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		indexBySelection[sel.Name] = indices
	}

	return atoms, indexBySelection
}

// indexLogic rewrites selection references into atom references. A selection
// owning several atoms becomes a local OR over its atom indices ("any value
// in this list matches"); a selection that atomized to nothing disappears,
// and operators left without children collapse upward.
func indexLogic(node *LogicNode, indexBySelection map[string][]int) *LogicNode {
	if node == nil {
		return nil
	}
	switch node.Op {
	case OpSelection:
		indices := indexBySelection[node.Selection]
		switch len(indices) {
		case 0:
			return nil
		case 1:
			return NewAtomRef(indices[0])
		default:
			refs := make([]*LogicNode, len(indices))
			for i, idx := range indices {
				refs[i] = NewAtomRef(idx)
			}
			return NewOr(refs...)
		}
	case OpNot:
		child := indexLogic(node.Children[0], indexBySelection)
		if child == nil {
			return nil
		}
		return NewNot(child)
	case OpAnd, OpOr:
		var children []*LogicNode
		for _, c := range node.Children {
			if ic := indexLogic(c, indexBySelection); ic != nil {
				children = append(children, ic)
			}
		}
		switch len(children) {
		case 0:
			return nil
		case 1:
			return children[0]
		default:
			return &LogicNode{Op: node.Op, Children: children}
		}
	default:
		return nil
	}
}

// MarshalJSON emits the canonical document with sorted keys and no
// insignificant whitespace. This byte layout is hashed by ExactHash and must
// stay stable across releases of the same canonical version.
func (r *CanonicalRule) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"detection":{"atoms":`)

	if r.Detection.Atoms == nil {
		buf.WriteString("[]")
	} else {
		atomsJSON, err := json.Marshal(r.Detection.Atoms)
		if err != nil {
			return nil, err
		}
		buf.Write(atomsJSON)
	}

	buf.WriteString(`,"logic":`)
	if r.Detection.Logic == nil {
		buf.WriteString("null")
	} else {
		logicJSON, err := r.Detection.Logic.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(logicJSON)
	}

	category, err := json.Marshal(r.Logsource.Category)
	if err != nil {
		return nil, err
	}
	product, err := json.Marshal(r.Logsource.Product)
	if err != nil {
		return nil, err
	}

	buf.WriteString(`},"logsource":{"category":`)
	buf.Write(category)
	buf.WriteString(`,"product":`)
	buf.Write(product)
	fmt.Fprintf(&buf, `},"version":%d}`, r.Version)

	return buf.Bytes(), nil
}

// UnmarshalJSON restores a canonical rule written by MarshalJSON.
func (r *CanonicalRule) UnmarshalJSON(data []byte) error {
	var raw struct {
		Version   int `json:"version"`
		Logsource struct {
			Product  string `json:"product"`
			Category string `json:"category"`
		} `json:"logsource"`
		Detection struct {
			Atoms []Atom     `json:"atoms"`
			Logic *LogicNode `json:"logic"`
		} `json:"detection"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Version = raw.Version
	r.Logsource = Logsource{Product: raw.Logsource.Product, Category: raw.Logsource.Category}
	r.Detection = Detection{Atoms: raw.Detection.Atoms, Logic: raw.Detection.Logic}
	return nil
}

// PositiveAtoms returns the atoms participating in the primary Jaccard set.
func (r *CanonicalRule) PositiveAtoms() []Atom {
	var out []Atom
	for _, atom := range r.Detection.Atoms {
		if atom.Polarity == PolarityPositive {
			out = append(out, atom)
		}
	}
	return out
}

// NegativeAtoms returns the filter-side atoms.
func (r *CanonicalRule) NegativeAtoms() []Atom {
	var out []Atom
	for _, atom := range r.Detection.Atoms {
		if atom.Polarity == PolarityNegative {
			out = append(out, atom)
		}
	}
	return out
}
