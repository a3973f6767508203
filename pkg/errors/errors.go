package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// ErrorType represents the failure classes the supervisor distinguishes
type ErrorType string

const (
	ErrorTypeTransient     ErrorType = "transient"
	ErrorTypeExtraction    ErrorType = "extraction"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeResource      ErrorType = "resource"
	ErrorTypeCancelled     ErrorType = "cancelled"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// Error is a classified crawl error
type Error struct {
	Type    ErrorType
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s error in %s: %s", e.Type, e.Op, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(t ErrorType, op, message string) *Error {
	return &Error{Type: t, Op: op, Message: message}
}

// Wrap classifies an existing error. A nil err yields nil.
func Wrap(t ErrorType, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Type: t, Op: op, Err: err}
}

// Configuration builds a fatal configuration error
func Configuration(op, format string, args ...interface{}) *Error {
	return New(ErrorTypeConfiguration, op, fmt.Sprintf(format, args...))
}

// Extraction builds an extraction error
func Extraction(op, format string, args ...interface{}) *Error {
	return New(ErrorTypeExtraction, op, fmt.Sprintf(format, args...))
}

// Resource builds a fatal resource exhaustion error
func Resource(op, format string, args ...interface{}) *Error {
	return New(ErrorTypeResource, op, fmt.Sprintf(format, args...))
}

// timeout matches errors that report an expired wait, such as source.Timeout.
type timeout interface {
	Timeout() bool
}

// Classify returns the type of err. An explicitly classified *Error keeps
// its type even when it wraps context.Canceled; a bare cancellation is
// reported as cancelled. Whether the run was actually stopped is decided by
// the caller's own context, not by this type.
func Classify(err error) ErrorType {
	if err == nil {
		return ""
	}

	var crawlErr *Error
	if stderrors.As(err, &crawlErr) {
		return crawlErr.Type
	}

	if stderrors.Is(err, context.Canceled) {
		return ErrorTypeCancelled
	}

	var t timeout
	if stderrors.As(err, &t) && t.Timeout() {
		return ErrorTypeTransient
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeTransient
	}

	return ErrorTypeUnknown
}

// IsRetryable checks if an error type should trigger a restart
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransient, ErrorTypeExtraction, ErrorTypeStorage, ErrorTypeUnknown:
		return true
	case ErrorTypeConfiguration, ErrorTypeResource, ErrorTypeCancelled:
		return false
	default:
		return false
	}
}

// IsFatal reports error types that stop the supervisor regardless of the
// remaining restart budget.
func IsFatal(errorType ErrorType) bool {
	return errorType == ErrorTypeConfiguration || errorType == ErrorTypeResource
}
