package canonical

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// tokenType identifies a lexical token in a condition expression.
type tokenType int

const (
	tokenEOF tokenType = iota
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
	tokenOf
	tokenAll
	tokenAny
	tokenOne
	tokenThem
	tokenNumber
	tokenIdentifier
)

// token is a single lexical token with its source position for error
// reporting.
type token struct {
	Type     tokenType
	Value    string
	Position int
}

type tokenPattern struct {
	Type    tokenType
	Pattern *regexp.Regexp
}

var (
	// Keyword patterns must precede the identifier pattern so that "and" is
	// never lexed as an identifier. Word boundaries prevent "notepad" from
	// matching "not".
	conditionTokenPatterns = []tokenPattern{
		{tokenAnd, regexp.MustCompile(`^(?i)\band\b`)},
		{tokenOr, regexp.MustCompile(`^(?i)\bor\b`)},
		{tokenNot, regexp.MustCompile(`^(?i)\bnot\b`)},
		{tokenOf, regexp.MustCompile(`^(?i)\bof\b`)},
		{tokenAll, regexp.MustCompile(`^(?i)\ball\b`)},
		{tokenAny, regexp.MustCompile(`^(?i)\bany\b`)},
		{tokenOne, regexp.MustCompile(`^(?i)\bone\b`)},
		{tokenThem, regexp.MustCompile(`^(?i)\bthem\b`)},
		{tokenNumber, regexp.MustCompile(`^\d+`)},
		{tokenLParen, regexp.MustCompile(`^\(`)},
		{tokenRParen, regexp.MustCompile(`^\)`)},
		// Symbolic operator aliases.
		{tokenAnd, regexp.MustCompile(`^&&?`)},
		{tokenOr, regexp.MustCompile(`^\|\|?`)},
		{tokenNot, regexp.MustCompile(`^!`)},
		{tokenIdentifier, regexp.MustCompile(`^[a-zA-Z0-9_*]+`)},
	}

	conditionWhitespace = regexp.MustCompile(`^\s+`)
)

// tokenizeCondition converts a condition expression into tokens, ending with
// an EOF token.
func tokenizeCondition(expression string) ([]token, error) {
	var tokens []token
	position := 0

	for position < len(expression) {
		if match := conditionWhitespace.FindString(expression[position:]); match != "" {
			position += len(match)
			continue
		}

		matched := false
		for _, pattern := range conditionTokenPatterns {
			if match := pattern.Pattern.FindString(expression[position:]); match != "" {
				tokens = append(tokens, token{Type: pattern.Type, Value: match, Position: position})
				position += len(match)
				matched = true
				break
			}
		}

		if !matched {
			start := position - 20
			if start < 0 {
				start = 0
			}
			end := position + 20
			if end > len(expression) {
				end = len(expression)
			}
			return nil, &TokenizationError{
				Position:    position,
				InvalidChar: rune(expression[position]),
				Context:     expression[start:end],
			}
		}
	}

	tokens = append(tokens, token{Type: tokenEOF, Position: position})
	return tokens, nil
}

// maxMacroCombinations bounds `N of` subset expansion. Beyond the bound the
// macro degrades to at-least-one semantics, matching how the counted form is
// evaluated elsewhere.
const maxMacroCombinations = 64

// ConditionParser parses SIGMA condition expressions into selection-level
// LogicNode trees. Macro expressions (`1 of`, `all of`, `any of`, `N of`,
// `... of them`) are expanded against the rule's actual selection keys during
// parsing, so the resulting tree contains only selection references and
// boolean operators.
//
// Operator precedence, highest to lowest: NOT, AND, OR. Binary operators are
// left-associative; parentheses override grouping.
type ConditionParser struct {
	tokens     []token
	position   int
	selections []string
}

// NewConditionParser creates a parser bound to the given selection keys. The
// keys are copied and sorted so macro expansion is deterministic regardless of
// map iteration order at the call site.
func NewConditionParser(selections []string) *ConditionParser {
	sorted := make([]string, len(selections))
	copy(sorted, selections)
	sort.Strings(sorted)
	return &ConditionParser{selections: sorted}
}

// Parse parses a condition expression into a selection-level logic tree.
func (p *ConditionParser) Parse(expression string) (*LogicNode, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, &ParseError{Position: 0, Expected: "condition expression", Context: "empty condition"}
	}

	tokens, err := tokenizeCondition(expression)
	if err != nil {
		return nil, err
	}

	p.tokens = tokens
	p.position = 0

	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.peek().Type != tokenEOF {
		cur := p.peek()
		return nil, &ParseError{
			Position:   cur.Position,
			TokenValue: cur.Value,
			Expected:   "end of expression",
			Context:    "unexpected tokens after complete expression",
		}
	}

	return node, nil
}

func (p *ConditionParser) parseOr() (*LogicNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.peek().Type == tokenOr {
		orToken := p.consume()
		right, err := p.parseAnd()
		if err != nil {
			return nil, &ParseError{
				Position:   orToken.Position,
				TokenValue: orToken.Value,
				Expected:   "expression after OR",
				Context:    err.Error(),
			}
		}
		left = NewOr(left, right)
	}

	return left, nil
}

func (p *ConditionParser) parseAnd() (*LogicNode, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.peek().Type == tokenAnd {
		andToken := p.consume()
		right, err := p.parseNot()
		if err != nil {
			return nil, &ParseError{
				Position:   andToken.Position,
				TokenValue: andToken.Value,
				Expected:   "expression after AND",
				Context:    err.Error(),
			}
		}
		left = NewAnd(left, right)
	}

	return left, nil
}

func (p *ConditionParser) parseNot() (*LogicNode, error) {
	if p.peek().Type == tokenNot {
		notToken := p.consume()
		child, err := p.parseNot()
		if err != nil {
			return nil, &ParseError{
				Position:   notToken.Position,
				TokenValue: notToken.Value,
				Expected:   "expression after NOT",
				Context:    err.Error(),
			}
		}
		return NewNot(child), nil
	}
	return p.parsePrimary()
}

func (p *ConditionParser) parsePrimary() (*LogicNode, error) {
	current := p.peek()

	switch current.Type {
	case tokenLParen:
		p.consume()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		closing := p.peek()
		if closing.Type != tokenRParen {
			return nil, &ParseError{
				Position:   closing.Position,
				TokenValue: closing.Value,
				Expected:   "closing parenthesis",
				Context:    "unmatched opening parenthesis at position " + strconv.Itoa(current.Position),
			}
		}
		p.consume()
		return expr, nil

	case tokenIdentifier:
		p.consume()
		return NewSelection(current.Value), nil

	case tokenAll, tokenAny, tokenOne, tokenNumber:
		if p.peekAhead(1).Type == tokenOf {
			return p.parseMacro()
		}
		return nil, &ParseError{
			Position:   current.Position,
			TokenValue: current.Value,
			Expected:   "'of' after quantifier",
			Context:    "bare quantifier outside macro expression",
		}

	case tokenEOF:
		return nil, &ParseError{
			Position: current.Position,
			Expected: "identifier or expression",
			Context:  "unexpected end of expression",
		}

	default:
		return nil, &ParseError{
			Position:   current.Position,
			TokenValue: current.Value,
			Expected:   "identifier or expression",
			Context:    "unexpected token",
		}
	}
}

// parseMacro handles `all of X`, `any of X`, `one of X`, and `N of X`, where X
// is `them` or a selection pattern with optional `*` wildcards. The macro is
// expanded immediately into explicit boolean structure over the matched
// selections, sorted lexicographically for determinism.
func (p *ConditionParser) parseMacro() (*LogicNode, error) {
	quantifier := p.consume()

	count := 0
	switch quantifier.Type {
	case tokenAll:
		count = -1 // all
	case tokenAny, tokenOne:
		count = 1
	case tokenNumber:
		n, err := strconv.Atoi(quantifier.Value)
		if err != nil || n < 1 {
			return nil, &ParseError{
				Position:   quantifier.Position,
				TokenValue: quantifier.Value,
				Expected:   "positive macro quantifier",
				Context:    "invalid numeric quantifier",
			}
		}
		count = n
	}

	ofToken := p.peek()
	if ofToken.Type != tokenOf {
		return nil, &ParseError{
			Position:   ofToken.Position,
			TokenValue: ofToken.Value,
			Expected:   "'of' keyword",
			Context:    "macro quantifier not followed by 'of'",
		}
	}
	p.consume()

	target := p.peek()
	var pattern string
	switch target.Type {
	case tokenThem:
		pattern = "them"
	case tokenIdentifier:
		pattern = target.Value
	default:
		return nil, &ParseError{
			Position:   target.Position,
			TokenValue: target.Value,
			Expected:   "'them' or selection pattern",
			Context:    "macro target missing",
		}
	}
	p.consume()

	matched := matchSelectionPattern(pattern, p.selections)
	if len(matched) == 0 {
		return nil, &MacroError{
			Pattern:             pattern,
			Position:            target.Position,
			Reason:              "matched no selections",
			AvailableSelections: p.selections,
		}
	}

	return expandMacro(count, matched), nil
}

// expandMacro builds the boolean expansion of a macro over matched selections.
// count == -1 means "all of"; count == 1 means "1 of"/"any of". A single
// matched selection degenerates to a bare reference.
func expandMacro(count int, matched []string) *LogicNode {
	if len(matched) == 1 {
		return NewSelection(matched[0])
	}

	refs := make([]*LogicNode, len(matched))
	for i, name := range matched {
		refs[i] = NewSelection(name)
	}

	switch {
	case count == -1 || count >= len(matched):
		return NewAnd(refs...)
	case count <= 1:
		return NewOr(refs...)
	default:
		combos := kSubsets(len(matched), count)
		if combos == nil || len(combos) > maxMacroCombinations {
			// Exact counted expansion is combinatorial; beyond the bound the
			// macro keeps at-least-one semantics.
			return NewOr(refs...)
		}
		groups := make([]*LogicNode, 0, len(combos))
		for _, combo := range combos {
			members := make([]*LogicNode, len(combo))
			for i, idx := range combo {
				members[i] = NewSelection(matched[idx])
			}
			groups = append(groups, NewAnd(members...))
		}
		return NewOr(groups...)
	}
}

// kSubsets enumerates all k-element index subsets of [0,n). Returns nil when
// the subset count exceeds maxMacroCombinations to avoid wasted work.
func kSubsets(n, k int) [][]int {
	var result [][]int
	combo := make([]int, k)
	var walk func(start, depth int) bool
	walk = func(start, depth int) bool {
		if depth == k {
			out := make([]int, k)
			copy(out, combo)
			result = append(result, out)
			return len(result) <= maxMacroCombinations
		}
		for i := start; i < n; i++ {
			combo[depth] = i
			if !walk(i+1, depth+1) {
				return false
			}
		}
		return true
	}
	if !walk(0, 0) {
		return nil
	}
	return result
}

// matchSelectionPattern resolves a macro target against selection keys.
// "them" matches every selection; patterns may contain `*` wildcards at any
// position. Matching uses segment scanning rather than regexes so that hostile
// patterns cannot cause pathological runtimes.
func matchSelectionPattern(pattern string, selections []string) []string {
	if strings.EqualFold(pattern, "them") {
		out := make([]string, len(selections))
		copy(out, selections)
		return out
	}

	if !strings.Contains(pattern, "*") {
		for _, name := range selections {
			if name == pattern {
				return []string{name}
			}
		}
		return nil
	}

	segments := strings.Split(pattern, "*")
	var matched []string
	for _, name := range selections {
		if matchesSegments(name, segments) {
			matched = append(matched, name)
		}
	}
	return matched
}

// matchesSegments checks a name against pattern segments split on `*`. The
// first segment anchors as a prefix, the last as a suffix, and middle segments
// must appear in order between them.
func matchesSegments(name string, segments []string) bool {
	if len(segments) == 0 {
		return false
	}
	if len(segments) == 1 {
		return name == segments[0]
	}

	position := 0
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		switch {
		case i == 0:
			if !strings.HasPrefix(name, segment) {
				return false
			}
			position = len(segment)
		case i == len(segments)-1:
			if !strings.HasSuffix(name, segment) {
				return false
			}
			if strings.LastIndex(name, segment) < position {
				return false
			}
		default:
			idx := strings.Index(name[position:], segment)
			if idx == -1 {
				return false
			}
			position += idx + len(segment)
		}
	}
	return true
}

func (p *ConditionParser) peek() token {
	if p.position >= len(p.tokens) {
		return token{Type: tokenEOF}
	}
	return p.tokens[p.position]
}

func (p *ConditionParser) peekAhead(offset int) token {
	idx := p.position + offset
	if idx >= len(p.tokens) {
		return token{Type: tokenEOF}
	}
	return p.tokens[idx]
}

func (p *ConditionParser) consume() token {
	t := p.peek()
	if p.position < len(p.tokens) {
		p.position++
	}
	return t
}
