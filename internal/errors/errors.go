package errors

import (
	"fmt"
)

// JaccError is the structured error type for the retrieval core.
// It carries the context the surrounding service layer needs for
// logging, surfacing, and retry decisions.
type JaccError struct {
	// Code is the unique error code (e.g., "ERR_304_COMPLETION_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Provider, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *JaccError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *JaccError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so errors.Is works across wrapping.
func (e *JaccError) Is(target error) bool {
	if t, ok := target.(*JaccError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *JaccError) WithDetail(key, value string) *JaccError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new JaccError with the given code and message.
// Category, severity, and the retryable flag are derived from the code.
func New(code string, message string, cause error) *JaccError {
	return &JaccError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a JaccError from an existing error.
func Wrap(code string, err error) *JaccError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ProviderError creates a provider-related error. Provider errors are
// recoverable; callers substitute fallbacks.
func ProviderError(message string, cause error) *JaccError {
	return New(ErrCodeProviderUnavailable, message, cause)
}

// SynthesisError creates the one fatal error class of the pipeline:
// the final answer synthesis failed with no fallback answer source.
func SynthesisError(cause error) *JaccError {
	return New(ErrCodeSynthesisFailed, "multi-agent search workflow failed", cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *JaccError {
	return New(ErrCodeInvalidInput, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if je, ok := err.(*JaccError); ok {
		return je.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if je, ok := err.(*JaccError); ok {
		return je.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a JaccError.
// Returns empty string for other error types.
func GetCode(err error) string {
	if je, ok := err.(*JaccError); ok {
		return je.Code
	}
	return ""
}
