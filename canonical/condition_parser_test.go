package canonical

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestTokenize_Keywords verifies case-insensitive keyword lexing with word
// boundaries: "notepad" must lex as an identifier, not NOT + "epad".
func TestTokenize_Keywords(t *testing.T) {
	tokens, err := tokenizeCondition("selection AND notepad Or not filter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	types := []tokenType{tokenIdentifier, tokenAnd, tokenIdentifier, tokenOr, tokenNot, tokenIdentifier, tokenEOF}
	if len(tokens) != len(types) {
		t.Fatalf("expected %d tokens, got %d: %v", len(types), len(tokens), tokens)
	}
	for i, want := range types {
		if tokens[i].Type != want {
			t.Errorf("token %d: expected type %d, got %d (%q)", i, want, tokens[i].Type, tokens[i].Value)
		}
	}
}

// TestTokenize_SymbolAliases verifies that &, |, ! lex as AND, OR, NOT.
func TestTokenize_SymbolAliases(t *testing.T) {
	tokens, err := tokenizeCondition("a & b | !c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	types := []tokenType{tokenIdentifier, tokenAnd, tokenIdentifier, tokenOr, tokenNot, tokenIdentifier, tokenEOF}
	for i, want := range types {
		if tokens[i].Type != want {
			t.Errorf("token %d: expected type %d, got %d (%q)", i, want, tokens[i].Type, tokens[i].Value)
		}
	}
}

// TestTokenize_InvalidCharacter verifies that an unknown character produces a
// TokenizationError with position information.
func TestTokenize_InvalidCharacter(t *testing.T) {
	_, err := tokenizeCondition("selection @ filter")
	if err == nil {
		t.Fatal("expected error for invalid character, got nil")
	}

	var tokErr *TokenizationError
	if !errors.As(err, &tokErr) {
		t.Fatalf("expected TokenizationError, got %T: %v", err, err)
	}
	if tokErr.InvalidChar != '@' {
		t.Errorf("expected invalid char '@', got %q", tokErr.InvalidChar)
	}
	if tokErr.Position != 10 {
		t.Errorf("expected position 10, got %d", tokErr.Position)
	}
}

// TestParse_Precedence verifies that AND binds tighter than OR: the root of
// "a or b and c" must be an OR whose right child is an AND.
func TestParse_Precedence(t *testing.T) {
	parser := NewConditionParser([]string{"a", "b", "c"})
	node, err := parser.Parse("a or b and c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if node.Op != OpOr {
		t.Fatalf("expected OR at root, got %s", node.Op)
	}
	if node.Children[1].Op != OpAnd {
		t.Errorf("expected AND as right child, got %s", node.Children[1].Op)
	}
}

// TestParse_Parentheses verifies that parentheses override precedence.
func TestParse_Parentheses(t *testing.T) {
	parser := NewConditionParser([]string{"a", "b", "c"})
	node, err := parser.Parse("(a or b) and c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if node.Op != OpAnd {
		t.Fatalf("expected AND at root, got %s", node.Op)
	}
	if node.Children[0].Op != OpOr {
		t.Errorf("expected OR as left child, got %s", node.Children[0].Op)
	}
}

// TestParse_NestedNot verifies that "not not a" parses as NOT(NOT(a)).
func TestParse_NestedNot(t *testing.T) {
	parser := NewConditionParser([]string{"a"})
	node, err := parser.Parse("not not a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if node.Op != OpNot || node.Children[0].Op != OpNot {
		t.Fatalf("expected NOT(NOT(a)), got %s", node.CanonicalKey())
	}
	if node.Children[0].Children[0].Selection != "a" {
		t.Errorf("expected innermost selection 'a', got %q", node.Children[0].Children[0].Selection)
	}
}

// TestParse_UnmatchedParen verifies a ParseError for a missing closing
// parenthesis.
func TestParse_UnmatchedParen(t *testing.T) {
	parser := NewConditionParser([]string{"a", "b"})
	_, err := parser.Parse("(a or b")
	if err == nil {
		t.Fatal("expected error for unmatched parenthesis, got nil")
	}

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %T: %v", err, err)
	}
	if !strings.Contains(parseErr.Expected, "closing parenthesis") {
		t.Errorf("expected message about closing parenthesis, got: %v", parseErr)
	}
}

// TestParse_TrailingTokens verifies that leftover tokens after a complete
// expression are rejected.
func TestParse_TrailingTokens(t *testing.T) {
	parser := NewConditionParser([]string{"a", "b"})
	_, err := parser.Parse("a b")
	if err == nil {
		t.Fatal("expected error for trailing tokens, got nil")
	}
}

// TestParse_OneOfWildcard verifies that "1 of selection_*" expands into an OR
// over the lexicographically sorted matched selections.
func TestParse_OneOfWildcard(t *testing.T) {
	parser := NewConditionParser([]string{"selection_win", "selection_linux", "filter"})
	node, err := parser.Parse("1 of selection_*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "OR(SEL[selection_linux],SEL[selection_win])"
	if got := node.CanonicalKey(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

// TestParse_AllOfThem verifies that "all of them" expands into an AND over
// every selection.
func TestParse_AllOfThem(t *testing.T) {
	parser := NewConditionParser([]string{"sel_b", "sel_a"})
	node, err := parser.Parse("all of them")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "AND(SEL[sel_a],SEL[sel_b])"
	if got := node.CanonicalKey(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

// TestParse_MacroSingleMatch verifies that a macro pattern matching exactly
// one selection degenerates to a bare reference.
func TestParse_MacroSingleMatch(t *testing.T) {
	parser := NewConditionParser([]string{"selection", "filter"})
	node, err := parser.Parse("1 of selection*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if node.Op != OpSelection || node.Selection != "selection" {
		t.Errorf("expected bare selection reference, got %s", node.CanonicalKey())
	}
}

// TestParse_MacroNoMatch verifies that a pattern matching no selections is a
// MacroError.
func TestParse_MacroNoMatch(t *testing.T) {
	parser := NewConditionParser([]string{"selection"})
	_, err := parser.Parse("1 of missing_*")
	if err == nil {
		t.Fatal("expected error for unmatched macro pattern, got nil")
	}

	var macroErr *MacroError
	if !errors.As(err, &macroErr) {
		t.Fatalf("expected MacroError, got %T: %v", err, err)
	}
	if macroErr.Pattern != "missing_*" {
		t.Errorf("expected pattern 'missing_*', got %q", macroErr.Pattern)
	}
}

// TestParse_CountedMacro verifies that "2 of sel_*" over three selections
// expands into an OR of AND pairs.
func TestParse_CountedMacro(t *testing.T) {
	parser := NewConditionParser([]string{"sel_a", "sel_b", "sel_c"})
	node, err := parser.Parse("2 of sel_*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if node.Op != OpOr {
		t.Fatalf("expected OR at root, got %s", node.Op)
	}
	if len(node.Children) != 3 {
		t.Fatalf("expected 3 pair combinations, got %d", len(node.Children))
	}
	for _, child := range node.Children {
		if child.Op != OpAnd || len(child.Children) != 2 {
			t.Errorf("expected AND pair, got %s", child.CanonicalKey())
		}
	}
}

// TestParse_CountedMacroSaturated verifies that "3 of sel_*" over exactly
// three selections is equivalent to "all of".
func TestParse_CountedMacroSaturated(t *testing.T) {
	parser := NewConditionParser([]string{"sel_a", "sel_b", "sel_c"})
	node, err := parser.Parse("3 of sel_*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "AND(SEL[sel_a],SEL[sel_b],SEL[sel_c])"
	if got := node.CanonicalKey(); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

// TestParse_CountedMacroOverCap verifies that a counted macro whose exact
// expansion exceeds the combination bound degrades to at-least-one semantics.
// "5 of sel_*" over ten selections has 252 exact combinations.
func TestParse_CountedMacroOverCap(t *testing.T) {
	selections := make([]string, 10)
	for i := range selections {
		selections[i] = fmt.Sprintf("sel_%02d", i)
	}
	parser := NewConditionParser(selections)

	node, err := parser.Parse("5 of sel_*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if node.Op != OpOr {
		t.Fatalf("expected OR at root, got %s", node.Op)
	}
	if len(node.Children) != 10 {
		t.Fatalf("expected 10 bare references, got %d", len(node.Children))
	}
	for _, child := range node.Children {
		if child.Op != OpSelection {
			t.Errorf("expected bare selection reference, got %s", child.CanonicalKey())
		}
	}
}

// TestMatchSelectionPattern_MiddleWildcard verifies in-order segment matching
// for patterns with interior wildcards.
func TestMatchSelectionPattern_MiddleWildcard(t *testing.T) {
	selections := []string{"sel_windows_registry", "sel_registry_windows", "other"}
	matched := matchSelectionPattern("sel*windows*registry", selections)

	if len(matched) != 1 || matched[0] != "sel_windows_registry" {
		t.Errorf("expected [sel_windows_registry], got %v", matched)
	}
}

// TestParse_EmptyCondition verifies that a blank expression is rejected.
func TestParse_EmptyCondition(t *testing.T) {
	parser := NewConditionParser([]string{"a"})
	if _, err := parser.Parse("   "); err == nil {
		t.Fatal("expected error for empty condition, got nil")
	}
}
