package queryir

import (
	"errors"
	"fmt"
	"strings"
)

// UnknownExpressionError reports a wire node whose kind is not one of the
// closed set of expression variants.
type UnknownExpressionError struct {
	Kind string
}

func (e *UnknownExpressionError) Error() string {
	return fmt.Sprintf("unknown expression kind %q", e.Kind)
}

// UnsupportedValueTypeError reports a literal whose value type is not on
// the whitelist, or whose value does not fit the declared type.
type UnsupportedValueTypeError struct {
	Type   string
	Reason string
}

func (e *UnsupportedValueTypeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported literal value type %q: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("unsupported literal value type %q", e.Type)
}

// UnknownOperatorError reports an unrecognised operator family or constant,
// or a family that is not valid for the node kind carrying it.
type UnknownOperatorError struct {
	Family string
	Name   string
	// Kind is set when the operator is known but not allowed for the node.
	Kind string
}

func (e *UnknownOperatorError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("operator %s.%s is not valid for %s expressions", e.Family, e.Name, e.Kind)
	}
	return fmt.Sprintf("unknown operator %s.%s", e.Family, e.Name)
}

// MalformedExpressionError reports a wire node that is structurally broken:
// invalid JSON, a missing child, or an operand of the wrong shape.
type MalformedExpressionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MalformedExpressionError) Error() string {
	msg := fmt.Sprintf("malformed expression at %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedExpressionError) Unwrap() error {
	return e.Err
}

// ValidationError lists every structural problem Validate found.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid expression: " + strings.Join(e.Problems, "; ")
}

// IsUnknownExpression reports whether err is an UnknownExpressionError.
func IsUnknownExpression(err error) bool {
	var target *UnknownExpressionError
	return errors.As(err, &target)
}

// IsUnsupportedValueType reports whether err is an UnsupportedValueTypeError.
func IsUnsupportedValueType(err error) bool {
	var target *UnsupportedValueTypeError
	return errors.As(err, &target)
}

// IsUnknownOperator reports whether err is an UnknownOperatorError.
func IsUnknownOperator(err error) bool {
	var target *UnknownOperatorError
	return errors.As(err, &target)
}
