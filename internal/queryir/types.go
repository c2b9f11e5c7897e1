package queryir

import "github.com/roach88/webstorage/internal/ir"

// Expression is a node of a where-clause tree.
//
// This is a sealed interface - only types in this package implement it.
// The marker method enables exhaustive type switches in the codec and in
// backend compilers.
type Expression interface {
	expressionNode()
	// Kind returns the wire discriminator of the node.
	Kind() Kind
}

// Kind is the wire discriminator of an Expression.
type Kind string

const (
	KindLiteral             Kind = "Literal"
	KindLiteralSet          Kind = "LiteralSet"
	KindBinaryComparison    Kind = "BinaryComparison"
	KindBinarySetMembership Kind = "BinarySetMembership"
	KindBinaryLogical       Kind = "BinaryLogical"
	KindUnaryLogical        Kind = "UnaryLogical"
)

// ValueType is the whitelist of literal value types.
type ValueType string

const (
	TypeInt        ValueType = "int"
	TypeLong       ValueType = "long"
	TypeString     ValueType = "string"
	TypeStringList ValueType = "string[]"
	TypeBoolean    ValueType = "boolean"
	// TypeKey marks a literal naming a record field.
	TypeKey ValueType = "key"
)

// IsScalar reports whether values of t may appear in a LiteralSetExpression.
func (t ValueType) IsScalar() bool {
	switch t {
	case TypeInt, TypeLong, TypeString, TypeBoolean:
		return true
	default:
		return false
	}
}

func (t ValueType) valid() bool {
	return t.IsScalar() || t == TypeStringList || t == TypeKey
}

// LiteralExpression is a typed constant.
//
// Value representation per type:
//
//	int, long   ir.Int
//	string, key ir.String
//	boolean     ir.Bool
//	string[]    ir.Array of ir.String
type LiteralExpression struct {
	Type  ValueType
	Value ir.Value
}

func (LiteralExpression) expressionNode() {}

// Kind implements Expression.
func (LiteralExpression) Kind() Kind { return KindLiteral }

// IsKey reports whether the literal names a record field.
func (l LiteralExpression) IsKey() bool { return l.Type == TypeKey }

// Check reports whether Value is a valid representation of Type.
func (l LiteralExpression) Check() error { return checkLiteral(l.Type, l.Value) }

// LiteralSetExpression is a homogeneous set of scalar literals of Type.
// The empty set has nil Values.
type LiteralSetExpression struct {
	Type   ValueType
	Values []ir.Value
}

func (LiteralSetExpression) expressionNode() {}

// Kind implements Expression.
func (LiteralSetExpression) Kind() Kind { return KindLiteralSet }

// BinaryComparisonExpression compares a key against a literal.
//
// Semantics:
//
//	<left key> <operator> <right literal>
type BinaryComparisonExpression struct {
	Left     Expression
	Operator BinaryComparisonOperator
	Right    Expression
}

func (BinaryComparisonExpression) expressionNode() {}

// Kind implements Expression.
func (BinaryComparisonExpression) Kind() Kind { return KindBinaryComparison }

// BinarySetMembershipExpression tests a key against a literal set.
type BinarySetMembershipExpression struct {
	Left     Expression
	Operator BinarySetMembershipOperator
	Right    Expression
}

func (BinarySetMembershipExpression) expressionNode() {}

// Kind implements Expression.
func (BinarySetMembershipExpression) Kind() Kind { return KindBinarySetMembership }

// BinaryLogicalExpression combines two boolean-valued expressions.
type BinaryLogicalExpression struct {
	Left     Expression
	Operator BinaryLogicalOperator
	Right    Expression
}

func (BinaryLogicalExpression) expressionNode() {}

// Kind implements Expression.
func (BinaryLogicalExpression) Kind() Kind { return KindBinaryLogical }

// UnaryLogicalExpression negates a boolean-valued expression.
type UnaryLogicalExpression struct {
	Operator UnaryLogicalOperator
	Operand  Expression
}

func (UnaryLogicalExpression) expressionNode() {}

// Kind implements Expression.
func (UnaryLogicalExpression) Kind() Kind { return KindUnaryLogical }
