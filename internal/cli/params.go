package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/webstorage/internal/ir"
	"github.com/roach88/webstorage/internal/queryir"
)

// ParseParam parses a --param value of the form type:value, where type is
// a placeholder letter of the descriptor grammar:
//
//	s:text   i:42   l:1700000000000   b:true   s[:a,b,c
//
// An empty s[ value is the empty list.
func ParseParam(raw string) (queryir.LiteralExpression, error) {
	kind, value, ok := strings.Cut(raw, ":")
	if !ok {
		return queryir.LiteralExpression{}, fmt.Errorf("parameter %q: expected type:value", raw)
	}
	switch kind {
	case "s":
		return queryir.StringLiteral(value), nil
	case "i":
		n, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return queryir.LiteralExpression{}, fmt.Errorf("parameter %q: not a 32-bit integer", raw)
		}
		return queryir.IntLiteral(int32(n)), nil
	case "l":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return queryir.LiteralExpression{}, fmt.Errorf("parameter %q: not a 64-bit integer", raw)
		}
		return queryir.LongLiteral(n), nil
	case "b":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return queryir.LiteralExpression{}, fmt.Errorf("parameter %q: not a boolean", raw)
		}
		return queryir.BoolLiteral(b), nil
	case "s[":
		if value == "" {
			return queryir.StringListLiteral(), nil
		}
		return queryir.StringListLiteral(strings.Split(value, ",")...), nil
	default:
		return queryir.LiteralExpression{}, fmt.Errorf("parameter %q: unknown type %q, want one of s, i, l, b, s[", raw, kind)
	}
}

// ParseParams parses every --param value in order.
func ParseParams(raw []string) ([]queryir.LiteralExpression, error) {
	out := make([]queryir.LiteralExpression, len(raw))
	for i, r := range raw {
		lit, err := ParseParam(r)
		if err != nil {
			return nil, err
		}
		out[i] = lit
	}
	return out, nil
}

// categoryOf takes the category name from the second word of the
// descriptor text without parsing the rest, so that trust is still decided
// by the endpoint.
func categoryOf(text, dataClass string) (ir.Category, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ir.Category{}, fmt.Errorf("descriptor %q names no category", text)
	}
	return ir.Category{Name: fields[1], DataClass: dataClass}, nil
}
