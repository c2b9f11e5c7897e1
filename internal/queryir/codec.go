package queryir

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/roach88/webstorage/internal/ir"
)

// wireNode is the JSON shape shared by every expression kind.
// Field order here is the field order on the wire.
type wireNode struct {
	Kind      Kind            `json:"kind"`
	Operator  *wireOperator   `json:"operator,omitempty"`
	Left      json.RawMessage `json:"left,omitempty"`
	Right     json.RawMessage `json:"right,omitempty"`
	Operand   json.RawMessage `json:"operand,omitempty"`
	ValueType ValueType       `json:"value_type,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
}

type wireOperator struct {
	Family string `json:"family"`
	Name   string `json:"name"`
}

// Encode serializes an expression tree to its JSON wire form.
func Encode(expr Expression) ([]byte, error) {
	return encodeAt(expr, "$")
}

// Decode reconstructs an expression tree from its JSON wire form.
//
// Errors:
//   - *UnknownExpressionError for an unrecognised "kind"
//   - *UnknownOperatorError for an unrecognised or misplaced operator
//   - *UnsupportedValueTypeError for a literal outside the type whitelist
//   - *MalformedExpressionError for anything structurally broken
func Decode(data []byte) (Expression, error) {
	return decodeAt(data, "$")
}

// EncodeLiteral serializes a single literal. Bound statement parameters use
// this form on the wire.
func EncodeLiteral(lit LiteralExpression) ([]byte, error) {
	return encodeAt(lit, "$")
}

// DecodeLiteral decodes a single literal, rejecting every other kind.
func DecodeLiteral(data []byte) (LiteralExpression, error) {
	expr, err := decodeAt(data, "$")
	if err != nil {
		return LiteralExpression{}, err
	}
	lit, ok := expr.(LiteralExpression)
	if !ok {
		return LiteralExpression{}, &MalformedExpressionError{
			Path:   "$",
			Reason: fmt.Sprintf("expected %s, got %s", KindLiteral, expr.Kind()),
		}
	}
	return lit, nil
}

func encodeAt(expr Expression, path string) ([]byte, error) {
	var node wireNode
	switch e := expr.(type) {
	case nil:
		return nil, &MalformedExpressionError{Path: path, Reason: "nil expression"}
	case LiteralExpression:
		raw, err := encodeValue(e.Type, e.Value)
		if err != nil {
			return nil, err
		}
		node = wireNode{Kind: KindLiteral, ValueType: e.Type, Value: raw}
	case LiteralSetExpression:
		raw, err := encodeSet(e)
		if err != nil {
			return nil, err
		}
		node = wireNode{Kind: KindLiteralSet, ValueType: e.Type, Value: raw}
	case BinaryComparisonExpression:
		n, err := encodeBinary(KindBinaryComparison, e.Operator, e.Left, e.Right, path)
		if err != nil {
			return nil, err
		}
		node = n
	case BinarySetMembershipExpression:
		n, err := encodeBinary(KindBinarySetMembership, e.Operator, e.Left, e.Right, path)
		if err != nil {
			return nil, err
		}
		node = n
	case BinaryLogicalExpression:
		n, err := encodeBinary(KindBinaryLogical, e.Operator, e.Left, e.Right, path)
		if err != nil {
			return nil, err
		}
		node = n
	case UnaryLogicalExpression:
		op, err := encodeOperator(e.Operator)
		if err != nil {
			return nil, err
		}
		operand, err := encodeAt(e.Operand, path+".operand")
		if err != nil {
			return nil, err
		}
		node = wireNode{Kind: KindUnaryLogical, Operator: op, Operand: operand}
	default:
		return nil, &UnknownExpressionError{Kind: fmt.Sprintf("%T", expr)}
	}
	return json.Marshal(node)
}

func encodeBinary(kind Kind, op Operator, left, right Expression, path string) (wireNode, error) {
	wop, err := encodeOperator(op)
	if err != nil {
		return wireNode{}, err
	}
	l, err := encodeAt(left, path+".left")
	if err != nil {
		return wireNode{}, err
	}
	r, err := encodeAt(right, path+".right")
	if err != nil {
		return wireNode{}, err
	}
	return wireNode{Kind: kind, Operator: wop, Left: l, Right: r}, nil
}

func encodeOperator(op Operator) (*wireOperator, error) {
	// Round-trip through ParseOperator so a zero or forged constant
	// never reaches the wire.
	if _, err := ParseOperator(string(op.Family()), op.Name()); err != nil {
		return nil, err
	}
	return &wireOperator{Family: string(op.Family()), Name: op.Name()}, nil
}

func encodeValue(t ValueType, v ir.Value) (json.RawMessage, error) {
	if err := checkLiteral(t, v); err != nil {
		return nil, err
	}
	return ir.MarshalValue(v)
}

func encodeSet(set LiteralSetExpression) (json.RawMessage, error) {
	if !set.Type.IsScalar() {
		return nil, &UnsupportedValueTypeError{Type: string(set.Type), Reason: "set elements must be scalar"}
	}
	arr := make(ir.Array, len(set.Values))
	for i, v := range set.Values {
		if err := checkLiteral(set.Type, v); err != nil {
			return nil, err
		}
		arr[i] = v
	}
	return ir.MarshalValue(arr)
}

func decodeAt(data []byte, path string) (Expression, error) {
	if isAbsent(data) {
		return nil, &MalformedExpressionError{Path: path, Reason: "missing expression"}
	}
	var node wireNode
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, &MalformedExpressionError{Path: path, Reason: "invalid JSON", Err: err}
	}

	switch node.Kind {
	case KindLiteral:
		v, err := decodeValue(node.ValueType, node.Value, path)
		if err != nil {
			return nil, err
		}
		return LiteralExpression{Type: node.ValueType, Value: v}, nil

	case KindLiteralSet:
		return decodeSet(node, path)

	case KindBinaryComparison:
		op, err := decodeOperator(node, FamilyBinaryComparison, path)
		if err != nil {
			return nil, err
		}
		left, right, err := decodeChildren(node, path)
		if err != nil {
			return nil, err
		}
		return BinaryComparisonExpression{Left: left, Operator: op.(BinaryComparisonOperator), Right: right}, nil

	case KindBinarySetMembership:
		op, err := decodeOperator(node, FamilyBinarySetMembership, path)
		if err != nil {
			return nil, err
		}
		left, right, err := decodeChildren(node, path)
		if err != nil {
			return nil, err
		}
		return BinarySetMembershipExpression{Left: left, Operator: op.(BinarySetMembershipOperator), Right: right}, nil

	case KindBinaryLogical:
		op, err := decodeOperator(node, FamilyBinaryLogical, path)
		if err != nil {
			return nil, err
		}
		left, right, err := decodeChildren(node, path)
		if err != nil {
			return nil, err
		}
		return BinaryLogicalExpression{Left: left, Operator: op.(BinaryLogicalOperator), Right: right}, nil

	case KindUnaryLogical:
		op, err := decodeOperator(node, FamilyUnaryLogical, path)
		if err != nil {
			return nil, err
		}
		operand, err := decodeAt(node.Operand, path+".operand")
		if err != nil {
			return nil, err
		}
		return UnaryLogicalExpression{Operator: op.(UnaryLogicalOperator), Operand: operand}, nil

	default:
		return nil, &UnknownExpressionError{Kind: string(node.Kind)}
	}
}

func decodeChildren(node wireNode, path string) (Expression, Expression, error) {
	left, err := decodeAt(node.Left, path+".left")
	if err != nil {
		return nil, nil, err
	}
	right, err := decodeAt(node.Right, path+".right")
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func decodeOperator(node wireNode, want Family, path string) (Operator, error) {
	if node.Operator == nil {
		return nil, &MalformedExpressionError{Path: path, Reason: "missing operator"}
	}
	op, err := ParseOperator(node.Operator.Family, node.Operator.Name)
	if err != nil {
		return nil, err
	}
	if op.Family() != want {
		return nil, &UnknownOperatorError{
			Family: node.Operator.Family,
			Name:   node.Operator.Name,
			Kind:   string(node.Kind),
		}
	}
	return op, nil
}

func decodeValue(t ValueType, raw json.RawMessage, path string) (ir.Value, error) {
	if !t.valid() {
		return nil, &UnsupportedValueTypeError{Type: string(t)}
	}
	if isAbsent(raw) {
		return nil, &MalformedExpressionError{Path: path, Reason: "missing literal value"}
	}
	v, err := ir.UnmarshalValue(raw)
	if err != nil {
		return nil, &UnsupportedValueTypeError{Type: string(t), Reason: err.Error()}
	}
	if err := checkLiteral(t, v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeSet(node wireNode, path string) (Expression, error) {
	if !node.ValueType.IsScalar() {
		return nil, &UnsupportedValueTypeError{Type: string(node.ValueType), Reason: "set elements must be scalar"}
	}
	if isAbsent(node.Value) {
		return nil, &MalformedExpressionError{Path: path, Reason: "missing set values"}
	}
	v, err := ir.UnmarshalValue(node.Value)
	if err != nil {
		return nil, &UnsupportedValueTypeError{Type: string(node.ValueType), Reason: err.Error()}
	}
	arr, ok := v.(ir.Array)
	if !ok {
		return nil, &MalformedExpressionError{Path: path, Reason: "set value must be a JSON array"}
	}
	if len(arr) == 0 {
		return LiteralSetExpression{Type: node.ValueType}, nil
	}
	values := make([]ir.Value, len(arr))
	for i, elem := range arr {
		if err := checkLiteral(node.ValueType, elem); err != nil {
			return nil, err
		}
		values[i] = elem
	}
	return LiteralSetExpression{Type: node.ValueType, Values: values}, nil
}

// checkLiteral verifies that v is the representation of a literal of type t.
func checkLiteral(t ValueType, v ir.Value) error {
	mismatch := func() error {
		return &UnsupportedValueTypeError{Type: string(t), Reason: fmt.Sprintf("value %T does not match type", v)}
	}
	switch t {
	case TypeInt:
		n, ok := v.(ir.Int)
		if !ok {
			return mismatch()
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return &UnsupportedValueTypeError{Type: string(t), Reason: fmt.Sprintf("%d overflows int", n)}
		}
	case TypeLong:
		if _, ok := v.(ir.Int); !ok {
			return mismatch()
		}
	case TypeString, TypeKey:
		if _, ok := v.(ir.String); !ok {
			return mismatch()
		}
	case TypeBoolean:
		if _, ok := v.(ir.Bool); !ok {
			return mismatch()
		}
	case TypeStringList:
		arr, ok := v.(ir.Array)
		if !ok {
			return mismatch()
		}
		for i, elem := range arr {
			if _, ok := elem.(ir.String); !ok {
				return &UnsupportedValueTypeError{Type: string(t), Reason: fmt.Sprintf("element %d is %T", i, elem)}
			}
		}
	default:
		return &UnsupportedValueTypeError{Type: string(t)}
	}
	return nil
}

func isAbsent(raw []byte) bool {
	return len(raw) == 0 || string(raw) == "null"
}
