package codec

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrToolUnavailable  = errors.New("tool unavailable")
	ErrSpawnFailed      = errors.New("spawn failed")
	ErrExitNonZero      = errors.New("subprocess exited non-zero")
	ErrConversionFailed = errors.New("conversion failed")
)

// Error is returned by every gateway operation that fails. Details carries the
// diagnostic text captured from the subprocess, if any.
type Error struct {
	Op      string // encode, decode, decode-chunk, convert
	Kind    error
	Details string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(op string, kind error, details string, err error) *Error {
	return &Error{Op: op, Kind: kind, Details: details, Err: err}
}

// Details returns the captured diagnostic text of a gateway error, or "".
func Details(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Details
	}
	return ""
}
