package canonical

import (
	"sort"
	"strings"
)

// conditionKey is the detection-block key holding the condition expression
// rather than a selection.
const conditionKey = "condition"

// SelectionAtoms holds the atoms extracted from one named selection of a
// detection block, in deterministic order.
type SelectionAtoms struct {
	Name  string
	Atoms []Atom
}

// AtomizeDetection flattens a detection block into per-selection atom lists.
//
// Every `field|modifier1|modifier2: value` entry becomes one atom per scalar
// value: list-valued predicates are exploded element by element, never kept as
// compound values, so differently grouped but equivalent value lists produce
// equal atom sets. Selections that are not mappings (or lists of mappings)
// contribute nothing; a malformed detection block yields an empty result
// rather than an error.
//
// Atoms are created with positive polarity. Polarity is resolved later from
// the normalized condition tree (see applyPolarity), not from lexical
// inspection of the condition string.
func AtomizeDetection(detection map[string]interface{}) []SelectionAtoms {
	if len(detection) == 0 {
		return nil
	}

	names := make([]string, 0, len(detection))
	for name := range detection {
		if name == conditionKey {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var result []SelectionAtoms
	for _, name := range names {
		atoms := atomizeSelection(FromInterface(detection[name]))
		if len(atoms) == 0 {
			continue
		}
		result = append(result, SelectionAtoms{Name: name, Atoms: atoms})
	}
	return result
}

// atomizeSelection extracts atoms from one selection value. A selection is
// normally a field mapping; a list of field mappings contributes the atoms of
// every element. Anything else is ignored.
func atomizeSelection(value Value) []Atom {
	switch value.Kind {
	case KindMap:
		return atomizeFieldMap(value)
	case KindList:
		var atoms []Atom
		for _, element := range value.List {
			if element.Kind == KindMap {
				atoms = append(atoms, atomizeFieldMap(element)...)
			}
		}
		return atoms
	default:
		return nil
	}
}

// atomizeFieldMap explodes a field-predicate mapping into atoms. Field keys
// are processed in sorted order; list values keep their listed order here and
// are globally re-sorted during canonicalization.
func atomizeFieldMap(m Value) []Atom {
	var atoms []Atom
	for _, rawField := range m.SortedMapKeys() {
		field, ops := splitFieldModifiers(rawField)
		value := m.Map[rawField]

		switch {
		case value.Kind == KindList:
			for _, element := range value.List {
				if atom, ok := scalarAtom(field, ops, element); ok {
					atoms = append(atoms, atom)
				}
			}
		case value.IsScalar():
			if atom, ok := scalarAtom(field, ops, value); ok {
				atoms = append(atoms, atom)
			}
		}
	}
	return atoms
}

// scalarAtom builds an atom from a scalar value. Null values (explicit YAML
// nulls meaning "field absent") produce an atom with an empty value so that
// the predicate still participates in the canonical form.
func scalarAtom(field string, ops []string, value Value) (Atom, bool) {
	if !value.IsScalar() {
		return Atom{}, false
	}
	text, valueType := value.ScalarText()
	opsCopy := make([]string, len(ops))
	copy(opsCopy, ops)
	return Atom{
		Field:     field,
		Ops:       opsCopy,
		Value:     text,
		ValueType: valueType,
		Polarity:  PolarityPositive,
	}, true
}

// splitFieldModifiers separates "CommandLine|contains|all" into the base
// field and its ordered modifier list.
func splitFieldModifiers(raw string) (string, []string) {
	parts := strings.Split(raw, "|")
	field := strings.TrimSpace(parts[0])
	var ops []string
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p != "" {
			ops = append(ops, p)
		}
	}
	return field, ops
}

// ConditionString extracts the condition expression from a detection block.
// Multiple conditions (a YAML list) are joined with OR, mirroring how
// multi-condition rules are evaluated.
func ConditionString(detection map[string]interface{}) string {
	raw, ok := detection[conditionKey]
	if !ok {
		return ""
	}
	value := FromInterface(raw)
	switch value.Kind {
	case KindString:
		return value.Str
	case KindList:
		var parts []string
		for _, element := range value.List {
			if element.Kind == KindString && strings.TrimSpace(element.Str) != "" {
				parts = append(parts, "("+element.Str+")")
			}
		}
		return strings.Join(parts, " or ")
	default:
		return ""
	}
}
