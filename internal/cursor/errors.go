package cursor

import (
	"errors"
	"fmt"

	"github.com/roach88/webstorage/internal/ir"
)

// ErrNoSuchElement is returned by Next when the cursor is exhausted.
var ErrNoSuchElement = errors.New("cursor: no more elements")

// ExpiredError reports a get-more call for a cursor the endpoint no longer
// holds, usually because it was idle longer than the endpoint's timeout.
type ExpiredError struct {
	CursorID int32
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("[get-more] Failed to get more results for cursorId: %d. "+
		"This may be caused because the cursor timed out. "+
		"Resubmitting the original query might be an approach to fix it. "+
		"See server logs for more details.", e.CursorID)
}

// FetchError reports any other get-more failure: a non-success response
// code, or a transport failure carried in Err.
type FetchError struct {
	CursorID int32
	Code     ir.ResponseCode
	Err      error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("[get-more] Failed to get more results for cursorId: %d. See server logs for details.", e.CursorID)
	if e.Err != nil {
		return msg + " Cause: " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// InvalidArgumentError reports a caller bug such as a non-positive batch
// size.
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string {
	return e.Message
}

// IsExpired reports whether err is or wraps an *ExpiredError.
func IsExpired(err error) bool {
	var ee *ExpiredError
	return errors.As(err, &ee)
}

// IsFetchError reports whether err is or wraps a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// IsInvalidArgument reports whether err is or wraps an *InvalidArgumentError.
func IsInvalidArgument(err error) bool {
	var ie *InvalidArgumentError
	return errors.As(err, &ie)
}
