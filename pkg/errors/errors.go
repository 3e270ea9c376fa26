package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Domain errors
	ErrorTypeValidation    ErrorType = "VALIDATION"
	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeSelfReference ErrorType = "SELF_REFERENCE"
	ErrorTypeConflict      ErrorType = "CONFLICT"
	ErrorTypeUnauthorized  ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden     ErrorType = "FORBIDDEN"

	// Application errors
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"

	// Infrastructure errors
	ErrorTypeDatabase ErrorType = "DATABASE"
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// Codes narrow an ErrorType for clients that branch on the exact cause.
const (
	CodeSelfFollow       = "SELF_FOLLOW"
	CodeNotPostOwner     = "NOT_POST_OWNER"
	CodeConcurrentFollow = "CONCURRENT_FOLLOW"
	CodeConcurrentLike   = "CONCURRENT_LIKE"
	CodeRouteNotFound    = "ROUTE_NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// AppError is the error type returned across layer boundaries.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := ""
	for {
		frame, more := frames.Next()
		stack += fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return stack
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		StackTrace: captureStackTrace(),
	}
}

// NewNotFoundError creates a not found error for the named resource.
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		StackTrace: captureStackTrace(),
	}
}

// NewSelfReferenceError is returned when a user tries to act on themselves
// where that is not allowed, e.g. following their own account.
func NewSelfReferenceError(action string) *AppError {
	return &AppError{
		Type:       ErrorTypeSelfReference,
		Message:    fmt.Sprintf("you can't %s yourself", action),
		HTTPStatus: http.StatusBadRequest,
		StackTrace: captureStackTrace(),
	}
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
		StackTrace: captureStackTrace(),
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
		StackTrace: captureStackTrace(),
	}
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return &AppError{
		Type:       ErrorTypeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
		StackTrace: captureStackTrace(),
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		StackTrace: captureStackTrace(),
	}
}

// NewUnavailableError creates a service unavailable error
func NewUnavailableError(service string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnavailable,
		Message:    fmt.Sprintf("service '%s' is unavailable", service),
		HTTPStatus: http.StatusServiceUnavailable,
		StackTrace: captureStackTrace(),
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeDatabase,
		Message:    fmt.Sprintf("database operation '%s' failed", operation),
		Cause:      err,
		HTTPStatus: http.StatusInternalServerError,
		StackTrace: captureStackTrace(),
	}
}

// NewExternalError creates an external service error
func NewExternalError(service string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Message:    fmt.Sprintf("external service '%s' error", service),
		Cause:      err,
		HTTPStatus: http.StatusBadGateway,
		StackTrace: captureStackTrace(),
	}
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

func IsNotFound(err error) bool      { return IsType(err, ErrorTypeNotFound) }
func IsValidation(err error) bool    { return IsType(err, ErrorTypeValidation) }
func IsSelfReference(err error) bool { return IsType(err, ErrorTypeSelfReference) }
func IsConflict(err error) bool      { return IsType(err, ErrorTypeConflict) }
func IsForbidden(err error) bool     { return IsType(err, ErrorTypeForbidden) }
func IsUnauthorized(err error) bool  { return IsType(err, ErrorTypeUnauthorized) }

// Wrap wraps an error with additional context. AppErrors keep their type.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}
