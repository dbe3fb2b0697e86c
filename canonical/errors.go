package canonical

import (
	"fmt"
	"strings"
)

// TokenizationError reports an invalid character in a condition expression.
type TokenizationError struct {
	Position    int
	InvalidChar rune
	Context     string
}

func (e *TokenizationError) Error() string {
	return fmt.Sprintf("invalid character %q at position %d (near %q)",
		e.InvalidChar, e.Position, e.Context)
}

// ParseError reports a syntax error in a condition expression.
type ParseError struct {
	Position   int
	TokenValue string
	Expected   string
	Context    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: got %q, expected %s (%s)",
		e.Position, e.TokenValue, e.Expected, e.Context)
}

// MacroError reports a `1 of` / `all of` expansion failure, typically a
// pattern that matches no selection keys.
type MacroError struct {
	Pattern             string
	Position            int
	Reason              string
	AvailableSelections []string
}

func (e *MacroError) Error() string {
	return fmt.Sprintf("macro pattern %q at position %d %s (available selections: %s)",
		e.Pattern, e.Position, e.Reason, strings.Join(e.AvailableSelections, ", "))
}
