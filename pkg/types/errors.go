package types

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every search component
var (
	ErrValidation      = errors.New("validation failed")
	ErrFeatureDisabled = errors.New("feature disabled")
	ErrIndexingFailure = errors.New("indexing failure")
	ErrQueryExecution  = errors.New("search could not be completed")
)

// ValidationError describes malformed query, filter, pagination or entry input
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError with a formatted message
func NewValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// FeatureDisabledError reports a feature switched off by configuration
type FeatureDisabledError struct {
	Feature string
}

func (e *FeatureDisabledError) Error() string {
	return fmt.Sprintf("%s is disabled", e.Feature)
}

func (e *FeatureDisabledError) Unwrap() error { return ErrFeatureDisabled }

// QueryExecutionError wraps a store failure or timeout. Error() is safe to show
// to callers; Detail() carries the underlying cause for server-side logs.
type QueryExecutionError struct {
	Op  string
	Err error
}

func (e *QueryExecutionError) Error() string { return ErrQueryExecution.Error() }

// Detail returns the unsanitized description
func (e *QueryExecutionError) Detail() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *QueryExecutionError) Unwrap() []error { return []error{ErrQueryExecution, e.Err} }

// IndexingError records a failed upsert or removal of a single entry
type IndexingError struct {
	Op         string
	SourceType SourceKind
	SourceID   string
	Err        error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("%s %s:%s: %v", e.Op, e.SourceType, e.SourceID, e.Err)
}

func (e *IndexingError) Unwrap() []error { return []error{ErrIndexingFailure, e.Err} }
