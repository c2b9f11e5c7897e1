package queryir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/webstorage/internal/ir"
)

var comparisonSymbols = map[BinaryComparisonOperator]string{
	Equals:             "=",
	NotEqualTo:         "!=",
	LessThan:           "<",
	LessThanOrEqual:    "<=",
	GreaterThan:        ">",
	GreaterThanOrEqual: ">=",
}

// Format renders an expression in the descriptor surface syntax, with
// bound values in place of placeholders. Used for explain output and logs.
//
//	('a' = "x" AND NOT ('n' > 3l))
func Format(expr Expression) string {
	var sb strings.Builder
	format(&sb, expr)
	return sb.String()
}

func format(sb *strings.Builder, expr Expression) {
	switch e := expr.(type) {
	case nil:
		sb.WriteString("<nil>")
	case LiteralExpression:
		formatLiteral(sb, e.Type, e.Value)
	case LiteralSetExpression:
		sb.WriteByte('[')
		for i, v := range e.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatLiteral(sb, e.Type, v)
		}
		sb.WriteByte(']')
	case BinaryComparisonExpression:
		format(sb, e.Left)
		sym, ok := comparisonSymbols[e.Operator]
		if !ok {
			sym = string(e.Operator)
		}
		sb.WriteString(" " + sym + " ")
		format(sb, e.Right)
	case BinarySetMembershipExpression:
		format(sb, e.Left)
		if e.Operator == NotIn {
			sb.WriteString(" NOT IN ")
		} else {
			sb.WriteString(" IN ")
		}
		format(sb, e.Right)
	case BinaryLogicalExpression:
		sb.WriteByte('(')
		format(sb, e.Left)
		sb.WriteString(" " + string(e.Operator) + " ")
		format(sb, e.Right)
		sb.WriteByte(')')
	case UnaryLogicalExpression:
		sb.WriteString(string(e.Operator) + " (")
		format(sb, e.Operand)
		sb.WriteByte(')')
	default:
		fmt.Fprintf(sb, "<%T>", expr)
	}
}

func formatLiteral(sb *strings.Builder, t ValueType, v ir.Value) {
	switch val := v.(type) {
	case ir.String:
		if t == TypeKey {
			sb.WriteString("'" + string(val) + "'")
			return
		}
		sb.WriteString(strconv.Quote(string(val)))
	case ir.Int:
		sb.WriteString(strconv.FormatInt(int64(val), 10))
		if t == TypeLong {
			sb.WriteByte('l')
		}
	case ir.Bool:
		sb.WriteString(strconv.FormatBool(bool(val)))
	case ir.Array:
		sb.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				sb.WriteString(", ")
			}
			formatLiteral(sb, TypeString, elem)
		}
		sb.WriteByte(']')
	default:
		fmt.Fprintf(sb, "<%T>", v)
	}
}
