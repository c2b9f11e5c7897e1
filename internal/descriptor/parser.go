package descriptor

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/roach88/webstorage/internal/ir"
	"github.com/roach88/webstorage/internal/queryir"
)

// Verb is the statement type, the first token of a descriptor.
type Verb string

const (
	VerbQuery      Verb = "QUERY"
	VerbQueryCount Verb = "QUERY-COUNT"
	VerbAdd        Verb = "ADD"
	VerbReplace    Verb = "REPLACE"
	VerbUpdate     Verb = "UPDATE"
	VerbRemove     Verb = "REMOVE"
)

// IsQuery reports whether the statement returns records through a cursor.
func (v Verb) IsQuery() bool {
	return v == VerbQuery || v == VerbQueryCount
}

const (
	kwSet   = "SET"
	kwWhere = "WHERE"
	kwSort  = "SORT"
	kwLimit = "LIMIT"
	kwAsc   = "ASC"
	kwDsc   = "DSC"
	kwAnd   = "AND"
	kwOr    = "OR"
	kwNot   = "NOT"
	kwIn    = "IN"
)

// Term is a value slot in a descriptor: either a literal or a placeholder.
type Term struct {
	// Placeholder is true when the value is supplied at bind time.
	Placeholder bool
	// Index is the placeholder position (zero-based); unused for literals.
	Index int
	// Literal is the parsed constant; unused for placeholders.
	Literal queryir.LiteralExpression
}

// Condition is a node of an unbound WHERE clause.
type Condition interface {
	conditionNode()
}

// Comparison is 'key' <op> term.
type Comparison struct {
	Key      string
	Operator queryir.BinaryComparisonOperator
	Value    Term
}

// Membership is 'key' IN ?s[ or 'key' NOT IN ?s[.
type Membership struct {
	Key      string
	Operator queryir.BinarySetMembershipOperator
	Values   Term
}

// Logical is left AND|OR right.
type Logical struct {
	Left     Condition
	Operator queryir.BinaryLogicalOperator
	Right    Condition
}

// Negation is NOT operand.
type Negation struct {
	Operand Condition
}

func (Comparison) conditionNode() {}
func (Membership) conditionNode() {}
func (Logical) conditionNode()    {}
func (Negation) conditionNode()   {}

// SortKey orders query results by one field.
type SortKey struct {
	Key        string
	Descending bool
}

// SetItem assigns a term to a field in ADD, REPLACE and UPDATE.
type SetItem struct {
	Key   string
	Value Term
}

// Statement is a parsed, unbound descriptor.
type Statement struct {
	Descriptor ir.StatementDescriptor
	Verb       Verb
	Category   string
	Set        []SetItem
	Where      Condition // nil when the descriptor has no WHERE clause
	Sort       []SortKey
	Limit      *Term
	// Params lists placeholder types in order of appearance.
	Params []queryir.ValueType
}

// NumFreeVariables returns the number of placeholders to bind.
func (s *Statement) NumFreeVariables() int {
	return len(s.Params)
}

// Parse parses a descriptor's text and checks that it names the
// descriptor's own category.
func Parse(desc ir.StatementDescriptor) (*Statement, error) {
	stmt, err := ParseText(desc.Text)
	if err != nil {
		return nil, err
	}
	if stmt.Category != desc.Category.Name {
		return nil, &ParseError{
			Descriptor: desc.Text,
			Offset:     -1,
			Message:    fmt.Sprintf("statement names category %q but descriptor is bound to %q", stmt.Category, desc.Category.Name),
		}
	}
	stmt.Descriptor = desc
	return stmt, nil
}

// ParseText parses descriptor text without a category binding.
func ParseText(text string) (*Statement, error) {
	toks, lerr := lex(text)
	if lerr != nil {
		return nil, lerr
	}
	p := &parser{src: text, toks: toks}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if err := p.checkSemantics(stmt); err != nil {
		return nil, err
	}
	return stmt, nil
}

type parser struct {
	src    string
	toks   []token
	pos    int
	params []queryir.ValueType
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) peekKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokWord && t.text == kw
}

func (p *parser) errorf(t token, format string, args ...any) *ParseError {
	return &ParseError{Descriptor: p.src, Offset: t.offset, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) parseStatement() (*Statement, error) {
	t := p.next()
	var verb Verb
	switch Verb(t.text) {
	case VerbQuery, VerbQueryCount, VerbAdd, VerbReplace, VerbUpdate, VerbRemove:
		if t.kind != tokWord {
			return nil, p.errorf(t, "expected statement type")
		}
		verb = Verb(t.text)
	default:
		return nil, p.errorf(t, "unknown statement type %q, expected one of QUERY, QUERY-COUNT, ADD, REPLACE, UPDATE, REMOVE", t.text)
	}

	t = p.next()
	if t.kind != tokWord {
		return nil, p.errorf(t, "expected category name after %s", verb)
	}
	stmt := &Statement{Verb: verb, Category: t.text}

	var err error
	if p.peekKeyword(kwSet) {
		p.next()
		if stmt.Set, err = p.parseSetList(); err != nil {
			return nil, err
		}
	}
	if p.peekKeyword(kwWhere) {
		p.next()
		if stmt.Where, err = p.parseOr(); err != nil {
			return nil, err
		}
	}
	if p.peekKeyword(kwSort) {
		p.next()
		if stmt.Sort, err = p.parseSortList(); err != nil {
			return nil, err
		}
	}
	if p.peekKeyword(kwLimit) {
		p.next()
		if stmt.Limit, err = p.parseLimit(); err != nil {
			return nil, err
		}
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected token %q, expected one of SET, WHERE, SORT, LIMIT", t.text)
	}
	stmt.Params = p.params
	return stmt, nil
}

func (p *parser) parseSetList() ([]SetItem, error) {
	var items []SetItem
	seen := make(map[string]bool)
	for {
		key, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		if seen[key.text] {
			return nil, p.errorf(key, "duplicate key %q in SET", key.text)
		}
		seen[key.text] = true
		if t := p.next(); t.kind != tokOperator || t.text != "=" {
			return nil, p.errorf(t, "expected '=' after SET key")
		}
		term, err := p.parseTerm(true)
		if err != nil {
			return nil, err
		}
		items = append(items, SetItem{Key: key.text, Value: term})
		if p.peek().kind != tokComma {
			return items, nil
		}
		p.next()
	}
}

func (p *parser) parseOr() (Condition, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peekKeyword(kwOr) {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Logical{Left: left, Operator: queryir.Or, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Condition, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peekKeyword(kwAnd) {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = Logical{Left: left, Operator: queryir.And, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Condition, error) {
	if p.peekKeyword(kwNot) {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Negation{Operand: operand}, nil
	}
	return p.parsePredicate()
}

var comparisonOperators = map[string]queryir.BinaryComparisonOperator{
	"=":  queryir.Equals,
	"!=": queryir.NotEqualTo,
	"<":  queryir.LessThan,
	"<=": queryir.LessThanOrEqual,
	">":  queryir.GreaterThan,
	">=": queryir.GreaterThanOrEqual,
}

func (p *parser) parsePredicate() (Condition, error) {
	key, err := p.parseKey()
	if err != nil {
		return nil, err
	}

	membership := queryir.BinarySetMembershipOperator("")
	if p.peekKeyword(kwNot) {
		p.next()
		if !p.peekKeyword(kwIn) {
			return nil, p.errorf(p.peek(), "expected IN after NOT")
		}
		membership = queryir.NotIn
	}
	if p.peekKeyword(kwIn) {
		p.next()
		if membership == "" {
			membership = queryir.In
		}
		t := p.peek()
		term, err := p.parseTerm(true)
		if err != nil {
			return nil, err
		}
		if !term.Placeholder || p.params[term.Index] != queryir.TypeStringList {
			return nil, p.errorf(t, "IN requires a ?s[ placeholder")
		}
		return Membership{Key: key.text, Operator: membership, Values: term}, nil
	}

	t := p.next()
	op, ok := comparisonOperators[t.text]
	if t.kind != tokOperator || !ok {
		return nil, p.errorf(t, "expected comparison operator after %q", key.text)
	}
	term, err := p.parseTerm(false)
	if err != nil {
		return nil, err
	}
	return Comparison{Key: key.text, Operator: op, Value: term}, nil
}

func (p *parser) parseSortList() ([]SortKey, error) {
	var keys []SortKey
	for {
		key, err := p.parseKey()
		if err != nil {
			return nil, err
		}
		t := p.next()
		switch {
		case t.kind == tokWord && t.text == kwAsc:
			keys = append(keys, SortKey{Key: key.text})
		case t.kind == tokWord && t.text == kwDsc:
			keys = append(keys, SortKey{Key: key.text, Descending: true})
		default:
			return nil, p.errorf(t, "expected ASC or DSC after sort key")
		}
		if p.peek().kind != tokComma {
			return keys, nil
		}
		p.next()
	}
}

func (p *parser) parseLimit() (*Term, error) {
	t := p.peek()
	term, err := p.parseTerm(false)
	if err != nil {
		return nil, err
	}
	if term.Placeholder {
		if p.params[term.Index] != queryir.TypeInt {
			return nil, p.errorf(t, "LIMIT only accepts ?i placeholders")
		}
		return &term, nil
	}
	n, ok := term.Literal.Value.(ir.Int)
	if term.Literal.Type != queryir.TypeInt || !ok {
		return nil, p.errorf(t, "invalid LIMIT %q, not an integer", t.text)
	}
	if n < 0 {
		return nil, p.errorf(t, "LIMIT must not be negative")
	}
	return &term, nil
}

func (p *parser) parseKey() (token, error) {
	t := p.next()
	if t.kind != tokString {
		return t, p.errorf(t, "expected quoted key, got %q (example: 'agentId')", t.text)
	}
	if t.text == "" {
		return t, p.errorf(t, "empty key")
	}
	return t, nil
}

var numberPattern = regexp.MustCompile(`^-?[0-9]+[lL]?$`)

// parseTerm parses a literal or placeholder. List placeholders are only
// accepted where allowList is set.
func (p *parser) parseTerm(allowList bool) (Term, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return Term{Literal: queryir.StringLiteral(t.text)}, nil

	case tokPlaceholder:
		var vt queryir.ValueType
		switch t.text {
		case "s":
			vt = queryir.TypeString
		case "i":
			vt = queryir.TypeInt
		case "l":
			vt = queryir.TypeLong
		case "b":
			vt = queryir.TypeBoolean
		case "s[":
			vt = queryir.TypeStringList
		default:
			return Term{}, p.errorf(t, "unknown type of free parameter: '?%s'", t.text)
		}
		if vt == queryir.TypeStringList && !allowList {
			return Term{}, p.errorf(t, "list placeholder not allowed in this context")
		}
		p.params = append(p.params, vt)
		return Term{Placeholder: true, Index: len(p.params) - 1}, nil

	case tokWord:
		switch t.text {
		case "true":
			return Term{Literal: queryir.BoolLiteral(true)}, nil
		case "false":
			return Term{Literal: queryir.BoolLiteral(false)}, nil
		}
		if !numberPattern.MatchString(t.text) {
			return Term{}, p.errorf(t, "illegal term %q", t.text)
		}
		last := t.text[len(t.text)-1]
		if last == 'l' || last == 'L' {
			n, err := strconv.ParseInt(t.text[:len(t.text)-1], 10, 64)
			if err != nil {
				return Term{}, p.errorf(t, "invalid long %q", t.text)
			}
			return Term{Literal: queryir.LongLiteral(n)}, nil
		}
		n, err := strconv.ParseInt(t.text, 10, 32)
		if err != nil || n < math.MinInt32 || n > math.MaxInt32 {
			return Term{}, p.errorf(t, "invalid int %q (use an 'l' suffix for long values)", t.text)
		}
		return Term{Literal: queryir.IntLiteral(int32(n))}, nil

	default:
		return Term{}, p.errorf(t, "expected a value, got %q", t.text)
	}
}

// checkSemantics enforces which clauses each statement type may carry.
func (p *parser) checkSemantics(s *Statement) error {
	fail := func(msg string) error {
		return &ParseError{Descriptor: p.src, Offset: -1, Message: msg}
	}
	switch s.Verb {
	case VerbAdd:
		if s.Where != nil {
			return fail("WHERE clause not allowed for ADD")
		}
		if len(s.Set) == 0 {
			return fail("SET list required for ADD")
		}
	case VerbReplace, VerbUpdate:
		if s.Where == nil {
			return fail(fmt.Sprintf("WHERE clause required for %s", s.Verb))
		}
		if len(s.Set) == 0 {
			return fail(fmt.Sprintf("SET list required for %s", s.Verb))
		}
	case VerbRemove:
		if len(s.Set) > 0 {
			return fail("SET not allowed for REMOVE")
		}
	case VerbQuery, VerbQueryCount:
		if len(s.Set) > 0 {
			return fail("SET not allowed for QUERY/QUERY-COUNT")
		}
	}
	if s.Verb != VerbQuery && (len(s.Sort) > 0 || s.Limit != nil) {
		return fail("LIMIT/SORT only allowed for QUERY")
	}
	return nil
}
