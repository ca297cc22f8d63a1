package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a routine error code.
type ErrorCode string

const (
	ErrInvalidRequest         ErrorCode = "INVALID_REQUEST"         // 400
	ErrNotFound               ErrorCode = "NOT_FOUND"               // 404
	ErrDuplicateName          ErrorCode = "DUPLICATE_NAME"          // 409
	ErrInvalidIntent          ErrorCode = "INVALID_INTENT"          // 422
	ErrEmptyRoutine           ErrorCode = "EMPTY_ROUTINE"           // 422
	ErrInterpreterUnavailable ErrorCode = "INTERPRETER_UNAVAILABLE" // 502
	ErrInternal               ErrorCode = "INTERNAL"                // 500
)

// RoutineError represents a structured error with code, status, and details.
type RoutineError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *RoutineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *RoutineError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *RoutineError {
	return &RoutineError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a routine cannot be found.
func NewNotFound(name string) *RoutineError {
	return &RoutineError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("routine not found: %s", name),
		Details: map[string]any{"name": name},
	}
}

// NewDuplicateName creates a 409 error when a nickname is already taken by another routine.
func NewDuplicateName(name string) *RoutineError {
	return &RoutineError{
		Code:    ErrDuplicateName,
		Status:  409,
		Message: "There already is a routine with this name",
		Details: map[string]any{"name": name},
	}
}

// NewInvalidIntent creates a 422 error for a line that did not interpret into a command.
// position is 1-based over the non-blank lines of the draft.
func NewInvalidIntent(position int, line string) *RoutineError {
	return &RoutineError{
		Code:    ErrInvalidIntent,
		Status:  422,
		Message: fmt.Sprintf("The intent number %d is not a valid intent", position),
		Details: map[string]any{"position": position, "line": line},
	}
}

// NewEmptyRoutine creates a 422 error for a draft with no commands.
func NewEmptyRoutine() *RoutineError {
	return &RoutineError{
		Code:    ErrEmptyRoutine,
		Status:  422,
		Message: "No actions added for this routine",
	}
}

// NewInterpreterUnavailable creates a 502 error when the interpreter could not be reached.
func NewInterpreterUnavailable(err error) *RoutineError {
	msg := "interpreter unavailable"
	if err != nil {
		msg = fmt.Sprintf("interpreter unavailable: %v", err)
	}
	return &RoutineError{
		Code:    ErrInterpreterUnavailable,
		Status:  502,
		Message: msg,
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *RoutineError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &RoutineError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// As returns the RoutineError in err's chain, if any.
func As(err error) (*RoutineError, bool) {
	var rErr *RoutineError
	if stderrors.As(err, &rErr) {
		return rErr, true
	}
	return nil, false
}

// Is checks if an error (or anything it wraps) is a RoutineError with the given code.
func Is(err error, code ErrorCode) bool {
	if rErr, ok := As(err); ok {
		return rErr.Code == code
	}
	return false
}
