package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LogicOp is the node kind tag for a LogicNode.
type LogicOp string

const (
	// OpSelection references a detection block by name. Selection nodes only
	// exist between condition parsing and atom indexing; a CanonicalRule never
	// contains them.
	OpSelection LogicOp = "selection"
	// OpAtom references an atom by index into the rule's canonical atom list.
	OpAtom LogicOp = "atom"
	// OpAnd is an n-ary (pre-normalization) or binary (post-normalization)
	// conjunction.
	OpAnd LogicOp = "and"
	// OpOr is an n-ary or binary disjunction.
	OpOr LogicOp = "or"
	// OpNot negates its single child.
	OpNot LogicOp = "not"
)

// LogicNode is a node in a rule's boolean condition tree. The same type is
// used for the selection-level tree produced by the condition parser and for
// the atom-indexed tree stored in a CanonicalRule.
type LogicNode struct {
	Op LogicOp
	// Selection is the referenced block name (OpSelection only).
	Selection string
	// Index is the referenced atom position (OpAtom only).
	Index int
	// Children holds operands for OpAnd/OpOr (len >= 2 after normalization)
	// and exactly one operand for OpNot.
	Children []*LogicNode
}

// NewSelection returns a selection reference node.
func NewSelection(name string) *LogicNode {
	return &LogicNode{Op: OpSelection, Selection: name}
}

// NewAtomRef returns an atom reference node.
func NewAtomRef(index int) *LogicNode {
	return &LogicNode{Op: OpAtom, Index: index}
}

// NewAnd returns a conjunction over the given children.
func NewAnd(children ...*LogicNode) *LogicNode {
	return &LogicNode{Op: OpAnd, Children: children}
}

// NewOr returns a disjunction over the given children.
func NewOr(children ...*LogicNode) *LogicNode {
	return &LogicNode{Op: OpOr, Children: children}
}

// NewNot returns a negation of the given child.
func NewNot(child *LogicNode) *LogicNode {
	return &LogicNode{Op: OpNot, Children: []*LogicNode{child}}
}

// CanonicalKey returns a deterministic serialization of the subtree. Two
// subtrees have equal keys iff they are structurally identical, so the key
// doubles as the sort key that collapses commutative rewrites during
// normalization and as the logic-expression line in the canonical text.
func (n *LogicNode) CanonicalKey() string {
	if n == nil {
		return ""
	}
	switch n.Op {
	case OpAtom:
		return "ATOM[" + strconv.Itoa(n.Index) + "]"
	case OpSelection:
		return "SEL[" + n.Selection + "]"
	case OpNot:
		if len(n.Children) != 1 {
			return "NOT(?)"
		}
		return "NOT(" + n.Children[0].CanonicalKey() + ")"
	case OpAnd, OpOr:
		keys := make([]string, len(n.Children))
		for i, c := range n.Children {
			keys[i] = c.CanonicalKey()
		}
		name := "AND"
		if n.Op == OpOr {
			name = "OR"
		}
		return name + "(" + strings.Join(keys, ",") + ")"
	default:
		return "?"
	}
}

// Depth returns the height of the tree. Leaves have depth 1.
func (n *LogicNode) Depth() int {
	if n == nil {
		return 0
	}
	max := 0
	for _, c := range n.Children {
		if d := c.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// OperatorCount returns the number of AND/OR/NOT nodes in the tree.
func (n *LogicNode) OperatorCount() int {
	if n == nil {
		return 0
	}
	count := 0
	if n.Op == OpAnd || n.Op == OpOr || n.Op == OpNot {
		count = 1
	}
	for _, c := range n.Children {
		count += c.OperatorCount()
	}
	return count
}

// Clone returns a deep copy of the subtree.
func (n *LogicNode) Clone() *LogicNode {
	if n == nil {
		return nil
	}
	out := &LogicNode{Op: n.Op, Selection: n.Selection, Index: n.Index}
	if n.Children != nil {
		out.Children = make([]*LogicNode, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// MarshalJSON emits a deterministic, compact JSON encoding with keys in
// lexicographic order. The encoding feeds the exact hash, so its byte layout
// is part of the fingerprint contract.
func (n *LogicNode) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *LogicNode) writeJSON(buf *bytes.Buffer) error {
	if n == nil {
		buf.WriteString("null")
		return nil
	}
	switch n.Op {
	case OpAtom:
		fmt.Fprintf(buf, `{"index":%d,"op":"atom"}`, n.Index)
	case OpSelection:
		return fmt.Errorf("selection node %q cannot be serialized: canonical logic must be atom-indexed", n.Selection)
	case OpNot:
		if len(n.Children) != 1 {
			return fmt.Errorf("not node must have exactly one child, got %d", len(n.Children))
		}
		buf.WriteString(`{"child":`)
		if err := n.Children[0].writeJSON(buf); err != nil {
			return err
		}
		buf.WriteString(`,"op":"not"}`)
	case OpAnd, OpOr:
		buf.WriteString(`{"children":[`)
		for i, c := range n.Children {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := c.writeJSON(buf); err != nil {
				return err
			}
		}
		fmt.Fprintf(buf, `],"op":"%s"}`, n.Op)
	default:
		return fmt.Errorf("unknown logic op %q", n.Op)
	}
	return nil
}

// UnmarshalJSON restores a node written by MarshalJSON.
func (n *LogicNode) UnmarshalJSON(data []byte) error {
	var raw struct {
		Op       LogicOp      `json:"op"`
		Index    int          `json:"index"`
		Child    *LogicNode   `json:"child"`
		Children []*LogicNode `json:"children"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.Op = raw.Op
	n.Index = raw.Index
	switch raw.Op {
	case OpNot:
		if raw.Child == nil {
			return fmt.Errorf("not node missing child")
		}
		n.Children = []*LogicNode{raw.Child}
	case OpAnd, OpOr:
		if len(raw.Children) == 0 {
			return fmt.Errorf("%s node missing children", raw.Op)
		}
		n.Children = raw.Children
	case OpAtom:
	default:
		return fmt.Errorf("unknown logic op %q", raw.Op)
	}
	return nil
}
