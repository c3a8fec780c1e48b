package tool

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidDescriptor is returned when a descriptor is missing required metadata
	ErrInvalidDescriptor = errors.New("invalid tool descriptor")

	// ErrMissingArgument is returned by handlers when a required value has no default
	ErrMissingArgument = errors.New("missing required argument")
)

// ErrorMessage is the message every recovered Knock API failure carries
const ErrorMessage = "An error occurred with the call to the Knock API."

// ErrorResult is the value returned to the agent when a handler fails
type ErrorResult struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// ValidationError lists the schema violations found in a tool input
type ValidationError struct {
	Method string
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid arguments for " + e.Method + ": " + strings.Join(e.Issues, "; ")
}

// IsErrorResult reports whether a tool output is a recovered failure
func IsErrorResult(v interface{}) bool {
	switch v.(type) {
	case ErrorResult, *ErrorResult:
		return true
	}
	return false
}
