package generator

import (
	"errors"
	"fmt"
)

// ErrGeneration marks every failure to obtain valid content from the model.
var ErrGeneration = errors.New("content generation failed")

// Error describes one generation failure. Field names the first offending
// part of the response when the failure was a validation problem.
type Error struct {
	Op      string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrGeneration}
	}
	return []error{ErrGeneration, e.Err}
}

func invalid(op, field, format string, args ...any) *Error {
	return &Error{Op: op, Field: field, Message: fmt.Sprintf(format, args...)}
}
