package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error type for metadata operations.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the conversation does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeStorageUnavailable indicates the document store read or write failed.
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	// ErrCodeVersionConflict indicates an optimistic-concurrency write lost.
	ErrCodeVersionConflict ErrorCode = "VERSION_CONFLICT"
	// ErrCodeConflictRetriesExhausted indicates repeated merge retries all lost.
	ErrCodeConflictRetriesExhausted ErrorCode = "CONFLICT_RETRIES_EXHAUSTED"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// MetadataError represents a structured error for metadata operations.
type MetadataError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *MetadataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *MetadataError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *MetadataError) WithContext(key string, value interface{}) *MetadataError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *MetadataError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// NotFound creates a not found error.
func NotFound(msg string) *MetadataError {
	return &MetadataError{Code: ErrCodeNotFound, Message: msg}
}

// StorageUnavailable creates a storage unavailable error.
func StorageUnavailable(msg string, cause error) *MetadataError {
	return &MetadataError{Code: ErrCodeStorageUnavailable, Message: msg, Cause: cause}
}

// VersionConflict creates a version conflict error.
func VersionConflict(msg string) *MetadataError {
	return &MetadataError{Code: ErrCodeVersionConflict, Message: msg}
}

// ConflictRetriesExhausted creates an error for a merge that kept losing races.
func ConflictRetriesExhausted(msg string, cause error) *MetadataError {
	return &MetadataError{Code: ErrCodeConflictRetriesExhausted, Message: msg, Cause: cause}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *MetadataError {
	return &MetadataError{Code: ErrCodeInvalidArgument, Message: msg}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *MetadataError {
	return &MetadataError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	var metaErr *MetadataError
	if errors.As(err, &metaErr) {
		return metaErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns an empty code for errors produced outside this package.
func GetCodeFromError(err error) ErrorCode {
	var metaErr *MetadataError
	if errors.As(err, &metaErr) {
		return metaErr.Code
	}
	return ""
}
