package queryir

import (
	"fmt"

	"github.com/roach88/webstorage/internal/ir"
)

// Validate checks that an expression tree is well formed:
//
//  1. Comparison and set-membership left operands are key literals
//  2. Comparison right operands are non-key scalar literals
//  3. Set-membership right operands are homogeneous scalar sets
//  4. Logical operands are conditions, never bare literals
//  5. Every operator belongs to the family of its node
//
// All problems are collected, not just the first. Validate is a pure
// function with no side effects.
func Validate(expr Expression) error {
	v := &validator{}
	v.validateCondition(expr, "$")
	if len(v.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: v.problems}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(path, format string, args ...any) {
	v.problems = append(v.problems, path+": "+fmt.Sprintf(format, args...))
}

// validateCondition validates a node that must evaluate to true or false.
func (v *validator) validateCondition(expr Expression, path string) {
	switch e := expr.(type) {
	case nil:
		v.addProblem(path, "nil expression")
	case BinaryComparisonExpression:
		v.checkOperator(e.Operator, path)
		v.validateKey(e.Left, path+".left")
		v.validateComparand(e.Right, path+".right")
	case BinarySetMembershipExpression:
		v.checkOperator(e.Operator, path)
		v.validateKey(e.Left, path+".left")
		v.validateSet(e.Right, path+".right")
	case BinaryLogicalExpression:
		v.checkOperator(e.Operator, path)
		v.validateCondition(e.Left, path+".left")
		v.validateCondition(e.Right, path+".right")
	case UnaryLogicalExpression:
		v.checkOperator(e.Operator, path)
		v.validateCondition(e.Operand, path+".operand")
	case LiteralExpression, LiteralSetExpression:
		v.addProblem(path, "%s is not a condition", expr.Kind())
	default:
		v.addProblem(path, "unknown expression type %T", expr)
	}
}

func (v *validator) checkOperator(op Operator, path string) {
	if _, err := ParseOperator(string(op.Family()), op.Name()); err != nil {
		v.addProblem(path, "%v", err)
	}
}

func (v *validator) validateKey(expr Expression, path string) {
	lit, ok := expr.(LiteralExpression)
	if !ok || !lit.IsKey() {
		v.addProblem(path, "left operand must be a key literal")
		return
	}
	if err := checkLiteral(TypeKey, lit.Value); err != nil {
		v.addProblem(path, "%v", err)
		return
	}
	if lit.Value.(ir.String) == "" {
		v.addProblem(path, "empty key")
	}
}

func (v *validator) validateComparand(expr Expression, path string) {
	lit, ok := expr.(LiteralExpression)
	if !ok {
		v.addProblem(path, "right operand must be a literal")
		return
	}
	if lit.IsKey() {
		v.addProblem(path, "right operand must not be a key")
		return
	}
	if !lit.Type.IsScalar() {
		v.addProblem(path, "cannot compare against %s", lit.Type)
		return
	}
	if err := checkLiteral(lit.Type, lit.Value); err != nil {
		v.addProblem(path, "%v", err)
	}
}

func (v *validator) validateSet(expr Expression, path string) {
	set, ok := expr.(LiteralSetExpression)
	if !ok {
		v.addProblem(path, "right operand must be a literal set")
		return
	}
	if !set.Type.IsScalar() {
		v.addProblem(path, "set of %s is not allowed", set.Type)
		return
	}
	for i, val := range set.Values {
		if err := checkLiteral(set.Type, val); err != nil {
			v.addProblem(fmt.Sprintf("%s[%d]", path, i), "%v", err)
		}
	}
}
