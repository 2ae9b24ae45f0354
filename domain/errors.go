package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeDependency   ErrorCode = "DEPENDENCY"
	ErrCodeInternal     ErrorCode = "INTERNAL"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on code and message so wrapped copies of the sentinels below
// still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain errors.
var (
	ErrUserNotFound     = NewError(ErrCodeNotFound, "user not found")
	ErrAssigneeNotFound = NewError(ErrCodeNotFound, "assignee not found")
	ErrTaskNotFound     = NewError(ErrCodeNotFound, "task not found")

	ErrUnauthorized       = NewError(ErrCodeUnauthorized, "user not authenticated")
	ErrInvalidCredentials = NewError(ErrCodeUnauthorized, "invalid email or password")

	ErrInvalidPayload    = NewError(ErrCodeInvalid, "invalid payload")
	ErrMissingFields     = NewError(ErrCodeInvalid, "please fill in all fields")
	ErrMissingDepartment = NewError(ErrCodeInvalid, "user department is missing")
	ErrInvalidID         = NewError(ErrCodeInvalid, "invalid id format")
	ErrInvalidStatus     = NewError(ErrCodeInvalid, "invalid status")
	ErrInvalidPriority   = NewError(ErrCodeInvalid, "invalid priority")
	ErrInvalidRole       = NewError(ErrCodeInvalid, "invalid role")
	ErrStatusUpdate      = NewError(ErrCodeInvalid, "invalid status update")
	ErrInvalidTransition = NewError(ErrCodeInvalid, "invalid status transition")
	ErrUnsupportedFile   = NewError(ErrCodeInvalid, "only images and documents are allowed")
	ErrTooManyFiles      = NewError(ErrCodeInvalid, "too many documents")
	ErrInvalidDueDate    = NewError(ErrCodeInvalid, "invalid due date")
	ErrInvalidPagination = NewError(ErrCodeInvalid, "invalid pagination")
	ErrPasswordTooLong   = NewError(ErrCodeInvalid, "password must be at most 72 bytes")
	ErrUserExists        = NewError(ErrCodeInvalid, "user already exists")

	ErrRequestApproval = NewError(ErrCodeForbidden, "only the task creator or assignee can request approval")
	ErrApprove         = NewError(ErrCodeForbidden, "only a supervisor can approve this task")
	ErrDeleteForbidden = NewError(ErrCodeForbidden, "user not authorized to delete this task")

	ErrVersionConflict = NewError(ErrCodeConflict, "task was modified concurrently")
	ErrRequestInFlight = NewError(ErrCodeConflict, "request with this idempotency key is in progress")

	ErrUploadFailed = NewError(ErrCodeDependency, "document upload failed")
	ErrNotifyFailed = NewError(ErrCodeDependency, "notification failed")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}
