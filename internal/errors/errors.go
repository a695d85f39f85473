// Package errors provides a lightweight structured error type (PublishError)
// for category-based classification in the pipeline, HTTP handlers and CLI.
package errors

import (
	stdErrors "errors"
	"fmt"
)

// ErrorCategory classifies a PublishError for exit codes, HTTP status and logs.
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryAuth       ErrorCategory = "auth"

	// External system integration errors
	CategoryNetwork ErrorCategory = "network"
	CategoryGit     ErrorCategory = "git"

	// Pipeline stage errors
	CategoryToolchain ErrorCategory = "toolchain"
	CategoryRuntime   ErrorCategory = "runtime"
	CategoryRender    ErrorCategory = "render"
	CategoryPublish   ErrorCategory = "publish"

	// Infrastructure errors
	CategoryDaemon   ErrorCategory = "daemon"
	CategoryStorage  ErrorCategory = "storage"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Aborts the run
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// PublishError is a structured error with category, severity, and context
type PublishError struct {
	Category ErrorCategory `json:"category"`
	Severity ErrorSeverity `json:"severity"`
	Message  string        `json:"message"`
	Cause    error         `json:"cause,omitempty"`
	Context  ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for PublishError
type ContextFields map[string]any

// Error implements the error interface
func (e *PublishError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *PublishError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *PublishError) WithContext(key string, value any) *PublishError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new PublishError
func New(category ErrorCategory, severity ErrorSeverity, message string) *PublishError {
	return &PublishError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new PublishError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *PublishError {
	return &PublishError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// AsPublishError unwraps err looking for a PublishError anywhere in the
// chain. Stage errors wrap the underlying PublishError, so callers that map
// categories must go through here rather than type-assert directly.
func AsPublishError(err error) (*PublishError, bool) {
	var pe *PublishError
	if stdErrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if pe, ok := AsPublishError(err); ok {
		return pe.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a PublishError
func GetCategory(err error) ErrorCategory {
	if pe, ok := AsPublishError(err); ok {
		return pe.Category
	}
	return CategoryInternal
}

// GetSeverity extracts the severity from an error, or returns SeverityError if not a PublishError
func GetSeverity(err error) ErrorSeverity {
	if pe, ok := AsPublishError(err); ok {
		return pe.Severity
	}
	return SeverityError
}
