package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Vestige error code.
type ErrorCode string

const (
	ErrInvalidYear      ErrorCode = "INVALID_YEAR"      // 400
	ErrInvalidRequest   ErrorCode = "INVALID_REQUEST"   // 400
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 404
	ErrAborted          ErrorCode = "ABORTED"           // 499
	ErrUpstream         ErrorCode = "UPSTREAM"          // status of the upstream response
	ErrSchemaMismatch   ErrorCode = "SCHEMA_MISMATCH"   // 502
	ErrGenerationFailed ErrorCode = "GENERATION_FAILED" // 502
	ErrNetwork          ErrorCode = "NETWORK"           // 502
	ErrTimeout          ErrorCode = "TIMEOUT"           // 504
	ErrInternal         ErrorCode = "INTERNAL"          // 500
)

// VestigeError represents a structured error with code, status, and details.
type VestigeError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *VestigeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *VestigeError) Unwrap() error {
	return e.Err
}

// NewInvalidYear creates a 400 error for a year outside the supported range.
func NewInvalidYear(year, min, max int) *VestigeError {
	return &VestigeError{
		Code:    ErrInvalidYear,
		Status:  400,
		Message: fmt.Sprintf("year must be between %d and %d, got %d", min, max, year),
		Details: map[string]any{"year": year, "min": min, "max": max},
	}
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *VestigeError {
	return &VestigeError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing archive entry or blob.
func NewNotFound(identifier string) *VestigeError {
	return &VestigeError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewAborted wraps a cancellation caused by a newer request or shutdown.
func NewAborted(err error) *VestigeError {
	return &VestigeError{
		Code:    ErrAborted,
		Status:  499,
		Message: "operation aborted",
		Err:     err,
	}
}

// NewUpstream creates an error from a backend error envelope.
func NewUpstream(status int, code, message string) *VestigeError {
	return &VestigeError{
		Code:    ErrUpstream,
		Status:  status,
		Message: message,
		Details: map[string]any{"code": code},
	}
}

// NewSchemaMismatch creates a 502 error for a response that failed validation.
func NewSchemaMismatch(what string, err error) *VestigeError {
	return &VestigeError{
		Code:    ErrSchemaMismatch,
		Status:  502,
		Message: fmt.Sprintf("invalid %s: %v", what, err),
		Err:     err,
	}
}

// NewGenerationFailed creates a 502 error for a forge task that ended in failure.
func NewGenerationFailed(taskID, msg string) *VestigeError {
	if msg == "" {
		msg = "forge task failed"
	}
	return &VestigeError{
		Code:    ErrGenerationFailed,
		Status:  502,
		Message: msg,
		Details: map[string]any{"task_id": taskID},
	}
}

// NewNetwork wraps a transport-level failure.
func NewNetwork(err error) *VestigeError {
	return &VestigeError{
		Code:    ErrNetwork,
		Status:  502,
		Message: err.Error(),
		Err:     err,
	}
}

// NewTimeout creates a 504 error for a call or poll loop that ran out of time.
func NewTimeout(msg string) *VestigeError {
	return &VestigeError{
		Code:    ErrTimeout,
		Status:  504,
		Message: msg,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *VestigeError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &VestigeError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Err:     err,
	}
}

// Is checks if an error is a VestigeError with the given code.
func Is(err error, code ErrorCode) bool {
	var vErr *VestigeError
	if stderrors.As(err, &vErr) {
		return vErr.Code == code
	}
	return false
}

// IsAborted reports whether err came from cancellation rather than a failure.
func IsAborted(err error) bool {
	if err == nil {
		return false
	}
	return Is(err, ErrAborted) || stderrors.Is(err, context.Canceled)
}

// IsRecoverable reports whether err belongs to the class that degrades to
// mock data: transport, timeout, upstream, schema and generation failures.
func IsRecoverable(err error) bool {
	if err == nil || IsAborted(err) {
		return false
	}
	var vErr *VestigeError
	if !stderrors.As(err, &vErr) {
		// Unclassified errors come from below the orchestrator boundary.
		return true
	}
	switch vErr.Code {
	case ErrNetwork, ErrTimeout, ErrUpstream, ErrSchemaMismatch, ErrGenerationFailed, ErrInternal:
		return true
	}
	return false
}
