// Package errors provides standardized error handling for the audit pipeline.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Oracle transport failures are not errors here: the gateway folds them
// into the result union and analyses count them. These codes cover the
// infrastructure around the pipeline.
const (
	ErrCodeDatasetLoadFailed ErrorCode = "DATASET_LOAD_FAILED"

	ErrCodeSurrogateFitFailed ErrorCode = "SURROGATE_FIT_FAILED"

	ErrCodeCacheUnavailable     ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeCollectorWriteFailed ErrorCode = "COLLECTOR_WRITE_FAILED"
	ErrCodeArchiveWriteFailed   ErrorCode = "ARCHIVE_WRITE_FAILED"

	ErrCodeAnalysisFailed ErrorCode = "ANALYSIS_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewDatasetLoadError marks a failure to read the profile dataset. This is
// the one error class allowed to abort a whole analysis run.
func NewDatasetLoadError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatasetLoadFailed,
		Message:   "Could not load profile dataset",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSurrogateFitError marks a degenerate local regression.
func NewSurrogateFitError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSurrogateFitFailed,
		Message:   "Local surrogate model could not be fit",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCollectorWriteError marks a failed write to the response collector.
func NewCollectorWriteError(details string, err error) *StandardError {
	if err != nil {
		details = fmt.Sprintf("%s: %v", details, err)
	}
	return &StandardError{
		Code:      ErrCodeCollectorWriteFailed,
		Message:   "Could not persist oracle response",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewArchiveWriteError marks a failed result-archive index operation.
func NewArchiveWriteError(details string, err error) *StandardError {
	if err != nil {
		details = fmt.Sprintf("%s: %v", details, err)
	}
	return &StandardError{
		Code:      ErrCodeArchiveWriteFailed,
		Message:   "Could not archive audit results",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError marks a cache the gateway decided to bypass.
func NewCacheUnavailableError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Response cache unavailable",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAnalysisError wraps an unexpected failure of a whole analysis run.
func NewAnalysisError(analysis string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAnalysisFailed,
		Message:   fmt.Sprintf("%s analysis failed", analysis),
		Details:   err.Error(),
		Retryable: false,
		Metadata:  map[string]interface{}{"analysis": analysis},
		Timestamp: time.Now().UTC(),
	}
}

// ErrorResult converts any error into the structured {error: ...} result map
// engines return instead of raising.
func ErrorResult(err error) map[string]interface{} {
	if stdErr, ok := err.(*StandardError); ok {
		return map[string]interface{}{
			"error":      stdErr.Message,
			"error_code": string(stdErr.Code),
			"details":    stdErr.Details,
		}
	}
	return map[string]interface{}{"error": err.Error()}
}
