// Package errors provides structured error types for the Stratalake pipeline.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline component.
type ErrorCategory string

const (
	ErrCategorySource     ErrorCategory = "SOURCE"
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryParse      ErrorCategory = "PARSE"
	ErrCategoryRaw        ErrorCategory = "RAW"
	ErrCategoryTransform  ErrorCategory = "TRANSFORM"
	ErrCategoryExport     ErrorCategory = "EXPORT"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Source codes
	CodeReceiveFailed = "RECEIVE_FAILED"
	CodeDeleteFailed  = "DELETE_FAILED"
	CodeQueueNotFound = "QUEUE_NOT_FOUND"

	// Validation codes
	CodeInvalidMessage = "INVALID_MESSAGE"
	CodeMissingField   = "MISSING_FIELD"

	// Parse codes
	CodeMalformedNestedText = "MALFORMED_NESTED_TEXT"

	// Raw codes
	CodeWriteFailed = "WRITE_FAILED"
	CodeStageFailed = "STAGE_FAILED"

	// Transform codes
	CodeScriptNotFound  = "SCRIPT_NOT_FOUND"
	CodeStatementFailed = "STATEMENT_FAILED"

	// Export codes
	CodeSnapshotFailed = "SNAPSHOT_FAILED"
	CodeMirrorFailed   = "MIRROR_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// PipelineError is the structured error type used throughout the system.
type PipelineError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PipelineError.
func New(category ErrorCategory, code, message string) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new PipelineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *PipelineError) WithDetails(details map[string]interface{}) *PipelineError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCategory(err error) ErrorCategory {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Source-access and
// mirror-upload failures resolve on their own once the remote side recovers;
// everything else needs operator attention or a fresh batch.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategorySource && code == CodeReceiveFailed:
		return true
	case category == ErrCategorySource && code == CodeDeleteFailed:
		return true
	case category == ErrCategoryExport && code == CodeMirrorFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewSourceError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategorySource, code, message, cause)
}

func NewValidationError(code, message string) *PipelineError {
	return New(ErrCategoryValidation, code, message)
}

func NewParseError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryParse, CodeMalformedNestedText, message, cause)
}

func NewRawError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryRaw, code, message, cause)
}

func NewTransformError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryTransform, code, message, cause)
}

func NewExportError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryExport, code, message, cause)
}

func NewInternalError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
