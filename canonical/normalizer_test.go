package canonical

import "testing"

// TestNormalize_CommutativeCollapse verifies that operand order does not
// affect the canonical key: "(a or b) and c" and "c and (b or a)" normalize
// identically.
func TestNormalize_CommutativeCollapse(t *testing.T) {
	parser := NewConditionParser([]string{"a", "b", "c"})

	first, err := parser.Parse("(a or b) and c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := parser.Parse("c and (b or a)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	firstKey := Normalize(first).CanonicalKey()
	secondKey := Normalize(second).CanonicalKey()
	if firstKey != secondKey {
		t.Errorf("expected identical canonical keys, got %s vs %s", firstKey, secondKey)
	}
}

// TestNormalize_FlattensNestedSameOperator verifies that "(a and b) and
// (c and d)" flattens to one sorted operand multiset before rebalancing.
func TestNormalize_FlattensNestedSameOperator(t *testing.T) {
	parser := NewConditionParser([]string{"a", "b", "c", "d"})

	nested, err := parser.Parse("(d and c) and (b and a)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	flat, err := parser.Parse("a and b and c and d")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := Normalize(nested).CanonicalKey(), Normalize(flat).CanonicalKey(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

// TestNormalize_Idempotent verifies normalize(normalize(x)) == normalize(x).
func TestNormalize_Idempotent(t *testing.T) {
	parser := NewConditionParser([]string{"a", "b", "c", "d", "e"})

	node, err := parser.Parse("(e or d) and not (c and (b or a))")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	once := Normalize(node)
	twice := Normalize(once)
	if once.CanonicalKey() != twice.CanonicalKey() {
		t.Errorf("normalization not idempotent: %s vs %s", once.CanonicalKey(), twice.CanonicalKey())
	}
}

// TestNormalize_NotOperandNormalized verifies that the operand of a NOT node
// is normalized recursively.
func TestNormalize_NotOperandNormalized(t *testing.T) {
	parser := NewConditionParser([]string{"a", "b"})

	node, err := parser.Parse("not (b or a)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "NOT(OR(SEL[a],SEL[b]))"
	if got := Normalize(node).CanonicalKey(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

// TestNormalize_RebalanceShape verifies that a five-operand OR rebuilds as a
// balanced binary tree rather than a left-leaning chain.
func TestNormalize_RebalanceShape(t *testing.T) {
	parser := NewConditionParser([]string{"a", "b", "c", "d", "e"})

	node, err := parser.Parse("a or b or c or d or e")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	normalized := Normalize(node)
	if depth := normalized.Depth(); depth != 4 {
		t.Errorf("expected balanced depth 4 for 5 operands, got %d", depth)
	}
	// Left-associative parse depth would be 5.
	if depth := node.Depth(); depth != 5 {
		t.Errorf("expected raw parse depth 5, got %d", depth)
	}
}

// TestNormalize_DoesNotMutateInput verifies that normalization leaves the
// input tree untouched.
func TestNormalize_DoesNotMutateInput(t *testing.T) {
	parser := NewConditionParser([]string{"a", "b"})

	node, err := parser.Parse("b or a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := node.CanonicalKey()

	_ = Normalize(node)
	if after := node.CanonicalKey(); after != before {
		t.Errorf("input mutated: %s became %s", before, after)
	}
}
