package client

import (
	"errors"
	"fmt"

	"github.com/roach88/webstorage/internal/ir"
)

// PrepareError reports a preparation failure other than an untrusted or
// malformed descriptor, which surface as *descriptor.IllegalDescriptorError
// and *descriptor.ParseError.
type PrepareError struct {
	Descriptor string
	Code       ir.PrepareCode
	Message    string
}

func (e *PrepareError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("prepare %q: %s: %s", e.Descriptor, e.Code, e.Message)
	}
	return fmt.Sprintf("prepare %q: %s", e.Descriptor, e.Code)
}

// WriteError reports a write statement the endpoint did not execute.
type WriteError struct {
	Descriptor string
	Code       ir.ResponseCode
	Message    string
}

func (e *WriteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("execute %q: %s: %s", e.Descriptor, e.Code, e.Message)
	}
	return fmt.Sprintf("execute %q: %s", e.Descriptor, e.Code)
}

// QueryError reports a query the endpoint did not execute.
type QueryError struct {
	Descriptor string
	Code       ir.ResponseCode
	Message    string
}

func (e *QueryError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("query %q: %s: %s", e.Descriptor, e.Code, e.Message)
	}
	return fmt.Sprintf("query %q: %s", e.Descriptor, e.Code)
}

// ResponseCode extracts the endpoint response code carried by err, or
// returns false if err carries none.
func ResponseCode(err error) (ir.ResponseCode, bool) {
	var we *WriteError
	if errors.As(err, &we) {
		return we.Code, true
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code, true
	}
	return 0, false
}
