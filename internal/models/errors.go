package models

import "errors"

// ErrorType identifies the category of error that occurred.
type ErrorType string

const (
	// Repository cache
	ErrRepoCloneFailed  ErrorType = "repo_clone_failed"
	ErrRepoCacheMissing ErrorType = "repo_cache_missing"

	// Workspace preparation
	ErrWorkspaceFailed ErrorType = "workspace_failed"
	ErrCopyFailed      ErrorType = "copy_failed"

	// Version derivation
	ErrCheckoutFailed      ErrorType = "checkout_failed"
	ErrDescribeFailed      ErrorType = "describe_failed"
	ErrVersionUnrecognized ErrorType = "version_unrecognized"

	ErrTaskTimeout ErrorType = "task_timeout"

	// Catch-all
	ErrInternalError ErrorType = "internal_error"
)

// ExtractionError is the failure of a single task. It never aborts a run.
type ExtractionError struct {
	Type       ErrorType
	InstanceID string
	Err        error
}

func (e *ExtractionError) Error() string {
	return string(e.Type) + ": " + e.InstanceID + ": " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ErrorTypeOf returns the category of err, or ErrInternalError when err
// is not an ExtractionError.
func ErrorTypeOf(err error) ErrorType {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		return ee.Type
	}
	return ErrInternalError
}
