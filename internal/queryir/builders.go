package queryir

import "github.com/roach88/webstorage/internal/ir"

// Key returns a literal naming a record field.
func Key(name string) LiteralExpression {
	return LiteralExpression{Type: TypeKey, Value: ir.String(name)}
}

// StringLiteral returns a string literal.
func StringLiteral(s string) LiteralExpression {
	return LiteralExpression{Type: TypeString, Value: ir.String(s)}
}

// IntLiteral returns a 32-bit int literal.
func IntLiteral(i int32) LiteralExpression {
	return LiteralExpression{Type: TypeInt, Value: ir.Int(i)}
}

// LongLiteral returns a 64-bit long literal.
func LongLiteral(l int64) LiteralExpression {
	return LiteralExpression{Type: TypeLong, Value: ir.Int(l)}
}

// BoolLiteral returns a boolean literal.
func BoolLiteral(b bool) LiteralExpression {
	return LiteralExpression{Type: TypeBoolean, Value: ir.Bool(b)}
}

// StringListLiteral returns a string[] literal.
func StringListLiteral(ss ...string) LiteralExpression {
	arr := make(ir.Array, len(ss))
	for i, s := range ss {
		arr[i] = ir.String(s)
	}
	return LiteralExpression{Type: TypeStringList, Value: arr}
}

// StringSet returns a set of string literals for IN / NOT_IN.
func StringSet(ss ...string) LiteralSetExpression {
	if len(ss) == 0 {
		return LiteralSetExpression{Type: TypeString}
	}
	values := make([]ir.Value, len(ss))
	for i, s := range ss {
		values[i] = ir.String(s)
	}
	return LiteralSetExpression{Type: TypeString, Values: values}
}

// Compare builds 'key' <op> value.
func Compare(key string, op BinaryComparisonOperator, value LiteralExpression) BinaryComparisonExpression {
	return BinaryComparisonExpression{Left: Key(key), Operator: op, Right: value}
}

// Member builds 'key' IN set or 'key' NOT_IN set.
func Member(key string, op BinarySetMembershipOperator, set LiteralSetExpression) BinarySetMembershipExpression {
	return BinarySetMembershipExpression{Left: Key(key), Operator: op, Right: set}
}

// Conjunction builds left AND right.
func Conjunction(left, right Expression) BinaryLogicalExpression {
	return BinaryLogicalExpression{Left: left, Operator: And, Right: right}
}

// Disjunction builds left OR right.
func Disjunction(left, right Expression) BinaryLogicalExpression {
	return BinaryLogicalExpression{Left: left, Operator: Or, Right: right}
}

// Negate builds NOT operand.
func Negate(operand Expression) UnaryLogicalExpression {
	return UnaryLogicalExpression{Operator: Not, Operand: operand}
}
