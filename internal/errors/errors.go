package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// TransportFailure indicates the engine call failed (network or in-process)
	TransportFailure ErrorCode = "TRANSPORT_FAILURE"
	// FileReadFailure indicates a document or definition file could not be read
	FileReadFailure ErrorCode = "FILE_READ_FAILURE"
	// NotImplemented indicates a transport without a concrete query implementation
	NotImplemented ErrorCode = "NOT_IMPLEMENTED"
	// EngineNotReady indicates the engine has not finished initializing
	EngineNotReady ErrorCode = "ENGINE_NOT_READY"
	// Timeout indicates the query timed out or was cancelled
	Timeout ErrorCode = "TIMEOUT"
	// StaleResponse indicates a reply arrived for a document state that has moved on
	StaleResponse ErrorCode = "STALE_RESPONSE"
	// DocumentNotFound indicates no document is registered under the name
	DocumentNotFound ErrorCode = "DOCUMENT_NOT_FOUND"
	// DuplicateDocument indicates a name is already registered
	DuplicateDocument ErrorCode = "DUPLICATE_DOCUMENT"
	// InvalidQuery indicates a query that cannot be built
	InvalidQuery ErrorCode = "INVALID_QUERY"
	// InvalidName indicates a file name the component does not serve
	InvalidName ErrorCode = "INVALID_NAME"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// HintError represents an error with a stable code and an optional cause
type HintError struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	cause   error       // Underlying error (not exported to JSON)
}

// New creates a new HintError
func New(code ErrorCode, message string, cause error) *HintError {
	return &HintError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Newf creates a new HintError with a formatted message and no cause
func Newf(code ErrorCode, format string, args ...interface{}) *HintError {
	return &HintError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface
func (e *HintError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *HintError) Unwrap() error {
	return e.cause
}

// Is matches another HintError by code, so sentinel values work with errors.Is
func (e *HintError) Is(target error) bool {
	t, ok := target.(*HintError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails adds details to the error
func (e *HintError) WithDetails(details interface{}) *HintError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first HintError in err's chain, or "" if none
func CodeOf(err error) ErrorCode {
	var he *HintError
	if stderrors.As(err, &he) {
		return he.Code
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
