package endpoint

import (
	"errors"
	"fmt"
)

// ExhaustedError reports that an id space ran out.
type ExhaustedError struct {
	What string
}

func (e *ExhaustedError) Error() string {
	if e.What == "statements" {
		return "Too many different statements!"
	}
	return fmt.Sprintf("too many different %s", e.What)
}

// IsExhausted reports whether err is or wraps an *ExhaustedError.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}
