package canonical

import (
	"fmt"
	"sort"
	"strconv"
)

// ValueKind identifies the concrete shape of a detection value after decoding.
type ValueKind int

const (
	// KindNull represents an absent or nil value
	KindNull ValueKind = iota
	// KindString represents a string scalar
	KindString
	// KindInt represents an integer scalar
	KindInt
	// KindFloat represents a floating point scalar
	KindFloat
	// KindBool represents a boolean scalar
	KindBool
	// KindList represents an ordered list of values
	KindList
	// KindMap represents a string-keyed mapping
	KindMap
)

// Value is a tagged representation of an arbitrary YAML/JSON detection value.
// Converting to Value once, at the boundary, removes the need for type
// switches on interface{} throughout the atomizer and canonicalizer.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	List  []Value
	Map   map[string]Value
}

// FromInterface converts a decoded YAML/JSON value into a tagged Value.
// Unknown types are rendered through fmt and treated as strings so that a
// malformed rule degrades instead of failing.
func FromInterface(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Value{Kind: KindNull}
	case string:
		return Value{Kind: KindString, Str: t}
	case bool:
		return Value{Kind: KindBool, Bool: t}
	case int:
		return Value{Kind: KindInt, Int: int64(t)}
	case int32:
		return Value{Kind: KindInt, Int: int64(t)}
	case int64:
		return Value{Kind: KindInt, Int: t}
	case uint64:
		return Value{Kind: KindInt, Int: int64(t)}
	case float32:
		return Value{Kind: KindFloat, Float: float64(t)}
	case float64:
		// YAML decoders deliver whole numbers as float64 in some paths.
		// Keep them as floats: the textual form below distinguishes them.
		return Value{Kind: KindFloat, Float: t}
	case []interface{}:
		list := make([]Value, 0, len(t))
		for _, item := range t {
			list = append(list, FromInterface(item))
		}
		return Value{Kind: KindList, List: list}
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = FromInterface(item)
		}
		return Value{Kind: KindMap, Map: m}
	case map[interface{}]interface{}:
		// Legacy yaml.v2 style maps show up in stored rule blobs.
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[fmt.Sprintf("%v", k)] = FromInterface(item)
		}
		return Value{Kind: KindMap, Map: m}
	default:
		return Value{Kind: KindString, Str: fmt.Sprintf("%v", t)}
	}
}

// IsScalar reports whether the value is a leaf usable as an atom value.
func (v Value) IsScalar() bool {
	switch v.Kind {
	case KindString, KindInt, KindFloat, KindBool, KindNull:
		return true
	default:
		return false
	}
}

// ScalarText returns the canonical textual rendering of a scalar value along
// with its value type tag. Floats that are whole numbers render without a
// trailing ".0" so that YAML decoder differences cannot change the canonical
// form.
func (v Value) ScalarText() (text string, valueType string) {
	switch v.Kind {
	case KindString:
		return v.Str, ValueTypeString
	case KindInt:
		return strconv.FormatInt(v.Int, 10), ValueTypeInt
	case KindFloat:
		if v.Float == float64(int64(v.Float)) {
			return strconv.FormatInt(int64(v.Float), 10), ValueTypeInt
		}
		return strconv.FormatFloat(v.Float, 'g', -1, 64), ValueTypeFloat
	case KindBool:
		return strconv.FormatBool(v.Bool), ValueTypeBool
	default:
		return "", ValueTypeString
	}
}

// SortedMapKeys returns the map keys in lexicographic order. Returns nil for
// non-map values.
func (v Value) SortedMapKeys() []string {
	if v.Kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.Map))
	for k := range v.Map {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
