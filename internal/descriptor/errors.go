package descriptor

import (
	"errors"
	"fmt"
)

// ParseError reports descriptor text that is malformed relative to the
// grammar, or that names a different category than its descriptor.
type ParseError struct {
	Descriptor string
	// Offset is the byte offset of the offending token, or -1 when the
	// problem concerns the statement as a whole.
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("descriptor parse failed at offset %d: %s (descriptor: %q)", e.Offset, e.Message, e.Descriptor)
	}
	return fmt.Sprintf("descriptor parse failed: %s (descriptor: %q)", e.Message, e.Descriptor)
}

// IllegalDescriptorError reports a descriptor whose text is not in the
// trusted set. The text is included verbatim for auditing.
type IllegalDescriptorError struct {
	Descriptor string
	Digest     string
}

func (e *IllegalDescriptorError) Error() string {
	return fmt.Sprintf("illegal statement descriptor, not in the trusted set: %q", e.Descriptor)
}

// ParameterError reports bound parameters that do not match the
// placeholders of a statement.
type ParameterError struct {
	// Index is the zero-based placeholder index, or -1 for a count mismatch.
	Index  int
	Reason string
}

func (e *ParameterError) Error() string {
	if e.Index < 0 {
		return "parameter binding failed: " + e.Reason
	}
	return fmt.Sprintf("parameter %d: %s", e.Index, e.Reason)
}

// IsParseError reports whether err is a ParseError.
// Uses errors.As to handle wrapped errors.
func IsParseError(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// IsIllegalDescriptor reports whether err is an IllegalDescriptorError.
// Uses errors.As to handle wrapped errors.
func IsIllegalDescriptor(err error) bool {
	var target *IllegalDescriptorError
	return errors.As(err, &target)
}

// IsParameterError reports whether err is a ParameterError.
func IsParameterError(err error) bool {
	var target *ParameterError
	return errors.As(err, &target)
}
