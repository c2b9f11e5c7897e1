// Package queryir defines the expression tree carried by bound statements
// and the wire codec that moves it between client and endpoint.
//
// EXPRESSION TREE:
//
// Expression is a sealed interface. The closed set of variants is:
//
//	LiteralExpression              typed scalar (or key / string list)
//	LiteralSetExpression           homogeneous set of scalars (IN operand)
//	BinaryComparisonExpression     'key' <op> literal
//	BinarySetMembershipExpression  'key' IN|NOT_IN set
//	BinaryLogicalExpression        expr AND|OR expr
//	UnaryLogicalExpression         NOT expr
//
// Operators are grouped into families. A family is only valid for the node
// kind that owns it: a comparison node cannot carry AND, a logical node
// cannot carry LESS_THAN.
//
// WIRE FORMAT:
//
// Every node is a JSON object with a "kind" discriminator:
//
//	{"kind":"BinaryComparison",
//	 "operator":{"family":"BinaryComparisonOperator","name":"EQUALS"},
//	 "left":{"kind":"Literal","value_type":"key","value":"agentId"},
//	 "right":{"kind":"Literal","value_type":"string","value":"a-1"}}
//
// Decode dispatches on "kind", "family" and "value_type" through fixed
// switches. Nothing outside those switches is ever instantiated, so a
// payload naming an unknown variant fails with a typed error instead of
// reaching arbitrary code.
//
// VALUE TYPES:
//
// Literal values are restricted to int (32-bit), long (64-bit), string,
// string[] and boolean, plus key for record field names. Values are held as
// ir.Value so the SQL compiler can bind them without conversion. There are
// no floats.
package queryir
