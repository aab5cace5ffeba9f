package errors

import "fmt"

// ErrorCode represents a coach error code.
type ErrorCode string

const (
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"       // 400
	ErrNotFound             ErrorCode = "NOT_FOUND"             // 404
	ErrSessionEnded         ErrorCode = "SESSION_ENDED"         // 409
	ErrConfigInvalid        ErrorCode = "CONFIG_INVALID"        // 422
	ErrWorkspaceUnavailable ErrorCode = "WORKSPACE_UNAVAILABLE" // 424
	ErrTransportFailed      ErrorCode = "TRANSPORT_FAILED"      // 502
	ErrInternal             ErrorCode = "INTERNAL"              // 500
)

// CoachError represents a structured error with code, status, and details.
type CoachError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *CoachError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *CoachError) Unwrap() error {
	return e.Cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *CoachError {
	return &CoachError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for an unknown session or transcript.
func NewNotFound(kind, identifier string) *CoachError {
	return &CoachError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewSessionEnded creates a 409 error when input arrives for a terminated session.
func NewSessionEnded(id string) *CoachError {
	return &CoachError{
		Code:    ErrSessionEnded,
		Status:  409,
		Message: fmt.Sprintf("session %s has ended", id),
		Details: map[string]any{"session_id": id},
	}
}

// NewConfigInvalid creates a 422 error for a configuration value that cannot be used.
func NewConfigInvalid(field, reason string) *CoachError {
	return &CoachError{
		Code:    ErrConfigInvalid,
		Status:  422,
		Message: fmt.Sprintf("invalid config %s: %s", field, reason),
		Details: map[string]any{"field": field},
	}
}

// NewWorkspaceUnavailable creates a 424 error when a workspace root cannot be used at all.
func NewWorkspaceUnavailable(path string, err error) *CoachError {
	msg := fmt.Sprintf("workspace unavailable: %s", path)
	if err != nil {
		msg = fmt.Sprintf("%s (%v)", msg, err)
	}
	return &CoachError{
		Code:    ErrWorkspaceUnavailable,
		Status:  424,
		Message: msg,
		Details: map[string]any{"path": path},
		Cause:   err,
	}
}

// NewTransportFailed creates a 502 error when the model call fails.
func NewTransportFailed(provider string, err error) *CoachError {
	msg := "model call failed"
	if err != nil {
		msg = fmt.Sprintf("model call failed: %v", err)
	}
	return &CoachError{
		Code:    ErrTransportFailed,
		Status:  502,
		Message: msg,
		Details: map[string]any{"provider": provider},
		Cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *CoachError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CoachError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Cause:   err,
	}
}

// Is checks if an error is a CoachError with the given code.
// Wrapped errors are unwrapped until a CoachError is found.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		if cErr, ok := err.(*CoachError); ok {
			return cErr.Code == code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
