package canonical

import "sort"

// Normalize rewrites a logic tree into its canonical shape:
//
//  1. Nested same-operator AND/OR chains are flattened into one n-ary
//     operand list.
//  2. Operands are sorted by their canonical subtree key, so commutative
//     rewrites of the same condition collapse to one representation.
//  3. The sorted n-ary list is rebuilt as a balanced binary tree. The binary
//     shape is an implementation convenience; what the canonical form
//     guarantees is the sorted multiset of operands at each operator boundary.
//
// Normalize is idempotent: flattening a balanced rebuild of a sorted list
// yields the same sorted list. The input tree is not modified.
func Normalize(node *LogicNode) *LogicNode {
	if node == nil {
		return nil
	}

	switch node.Op {
	case OpAtom, OpSelection:
		return node.Clone()

	case OpNot:
		if len(node.Children) != 1 {
			return node.Clone()
		}
		return NewNot(Normalize(node.Children[0]))

	case OpAnd, OpOr:
		operands := flattenOperator(node, node.Op)
		for i, c := range operands {
			operands[i] = Normalize(c)
		}
		sort.Slice(operands, func(i, j int) bool {
			return operands[i].CanonicalKey() < operands[j].CanonicalKey()
		})
		return rebalance(node.Op, operands)

	default:
		return node.Clone()
	}
}

// flattenOperator collects the operands of a maximal same-operator region.
// AND(AND(a,b),c) flattens to [a,b,c]; operators of the other kind are
// boundaries and stay intact.
func flattenOperator(node *LogicNode, op LogicOp) []*LogicNode {
	if node.Op != op {
		return []*LogicNode{node}
	}
	var operands []*LogicNode
	for _, c := range node.Children {
		operands = append(operands, flattenOperator(c, op)...)
	}
	return operands
}

// rebalance rebuilds a sorted operand list as a balanced binary tree by
// splitting at the midpoint and recursing.
func rebalance(op LogicOp, operands []*LogicNode) *LogicNode {
	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	case 2:
		return &LogicNode{Op: op, Children: []*LogicNode{operands[0], operands[1]}}
	default:
		mid := len(operands) / 2
		left := rebalance(op, operands[:mid])
		right := rebalance(op, operands[mid:])
		return &LogicNode{Op: op, Children: []*LogicNode{left, right}}
	}
}
