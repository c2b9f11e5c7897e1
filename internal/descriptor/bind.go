package descriptor

import (
	"fmt"

	"github.com/roach88/webstorage/internal/ir"
	"github.com/roach88/webstorage/internal/queryir"
)

// Assignment is a bound SET item.
type Assignment struct {
	Key   string
	Value queryir.LiteralExpression
}

// Bound is a statement with every placeholder replaced by a value.
type Bound struct {
	Verb     Verb
	Category string
	Set      []Assignment
	// Where is nil when every record of the category matches.
	Where queryir.Expression
	Sort  []SortKey
	// Limit of 0 means no limit.
	Limit int
}

// Bind substitutes params for the statement's placeholders.
//
// Each parameter's type must equal the placeholder's declared type; no
// conversions are applied. A string[] parameter bound to an IN placeholder
// becomes a queryir.LiteralSetExpression.
func (s *Statement) Bind(params []queryir.LiteralExpression) (*Bound, error) {
	if len(params) != len(s.Params) {
		return nil, &ParameterError{
			Index:  -1,
			Reason: fmt.Sprintf("expected %d parameters, got %d", len(s.Params), len(params)),
		}
	}
	for i, param := range params {
		if param.Type != s.Params[i] {
			return nil, &ParameterError{
				Index:  i,
				Reason: fmt.Sprintf("expected type %s, got %s", s.Params[i], param.Type),
			}
		}
		if err := param.Check(); err != nil {
			return nil, &ParameterError{Index: i, Reason: err.Error()}
		}
	}

	b := &Bound{
		Verb:     s.Verb,
		Category: s.Category,
		Sort:     s.Sort,
	}
	for _, item := range s.Set {
		b.Set = append(b.Set, Assignment{Key: item.Key, Value: resolve(item.Value, params)})
	}
	if s.Where != nil {
		b.Where = bindCondition(s.Where, params)
	}
	if s.Limit != nil {
		lit := resolve(*s.Limit, params)
		n := int(lit.Value.(ir.Int))
		if n < 0 {
			return nil, &ParameterError{Index: s.Limit.Index, Reason: "LIMIT must not be negative"}
		}
		b.Limit = n
	}
	return b, nil
}

func resolve(t Term, params []queryir.LiteralExpression) queryir.LiteralExpression {
	if t.Placeholder {
		return params[t.Index]
	}
	return t.Literal
}

func bindCondition(c Condition, params []queryir.LiteralExpression) queryir.Expression {
	switch cond := c.(type) {
	case Comparison:
		return queryir.Compare(cond.Key, cond.Operator, resolve(cond.Value, params))
	case Membership:
		list := resolve(cond.Values, params)
		arr, _ := list.Value.(ir.Array)
		set := queryir.LiteralSetExpression{Type: queryir.TypeString}
		if len(arr) > 0 {
			set.Values = []ir.Value(arr)
		}
		return queryir.Member(cond.Key, cond.Operator, set)
	case Logical:
		return queryir.BinaryLogicalExpression{
			Left:     bindCondition(cond.Left, params),
			Operator: cond.Operator,
			Right:    bindCondition(cond.Right, params),
		}
	case Negation:
		return queryir.Negate(bindCondition(cond.Operand, params))
	default:
		panic(fmt.Sprintf("descriptor: unknown condition type %T", c))
	}
}
