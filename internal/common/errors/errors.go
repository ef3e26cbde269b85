// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidation          ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidJobVariables ErrorCode = "INVALID_JOB_VARIABLES"

	ErrCodeRecordNotFound      ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeConstraintViolation ErrorCode = "CONSTRAINT_VIOLATION"
	ErrCodeVerificationFailed  ErrorCode = "VERIFICATION_FAILED"
	ErrCodeDeletionUnverified  ErrorCode = "DELETION_UNVERIFIED"
	ErrCodeSchemaMismatch      ErrorCode = "SCHEMA_MISMATCH"

	ErrCodeStoreOperationFailed ErrorCode = "STORE_OPERATION_FAILED"
	ErrCodeStoreTimeout         ErrorCode = "STORE_TIMEOUT"
	ErrCodeCandidateFetchFailed ErrorCode = "CANDIDATE_FETCH_FAILED"
	ErrCodePreferencesFailed    ErrorCode = "PREFERENCES_FAILED"

	ErrCodeActorResolutionFailed ErrorCode = "ACTOR_RESOLUTION_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Operational reports whether the error points at a backend problem rather than caller input.
func (e *StandardError) Operational() bool {
	switch e.Code {
	case ErrCodeValidation, ErrCodeInvalidJobVariables, ErrCodeRecordNotFound:
		return false
	default:
		return true
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newStandardError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewValidationError creates a non-retryable input error.
func NewValidationError(field string, err error) *StandardError {
	e := newStandardError(ErrCodeValidation, "Invalid search or weight input", err.Error(), false, err)
	e.Metadata = map[string]interface{}{"field": field}
	return e
}

// NewInvalidJobVariablesError creates a non-retryable job payload error.
func NewInvalidJobVariablesError(details string) *StandardError {
	return newStandardError(ErrCodeInvalidJobVariables, "Job variables do not match the task schema", details, false, nil)
}

// NewRecordNotFoundError creates a non-retryable missing-record error.
func NewRecordNotFoundError(table, id string, cause error) *StandardError {
	e := newStandardError(ErrCodeRecordNotFound, "Record not found",
		fmt.Sprintf("table: %s, id: %s", table, id), false, cause)
	e.Metadata = map[string]interface{}{"table": table, "recordId": id}
	return e
}

// NewConstraintViolationError carries the schema fix verbatim so callers can show it.
func NewConstraintViolationError(table, constraint string, cause error) *StandardError {
	e := newStandardError(ErrCodeConstraintViolation, "Delete rejected by a referential constraint",
		cause.Error(), false, cause)
	e.Metadata = map[string]interface{}{"table": table, "constraint": constraint}
	return e
}

// NewVerificationFailedError signals that the store reported a delete that did not happen.
func NewVerificationFailedError(table, id string, cause error) *StandardError {
	e := newStandardError(ErrCodeVerificationFailed, "Record still present after a successful delete",
		fmt.Sprintf("table: %s, id: %s", table, id), false, cause)
	e.Metadata = map[string]interface{}{"table": table, "recordId": id}
	return e
}

// NewDeletionUnverifiedError is thrown, never retried, when a delete may or may
// not have been applied. Someone has to look at the record before retrying.
func NewDeletionUnverifiedError(table, id string, cause error) *StandardError {
	e := newStandardError(ErrCodeDeletionUnverified, "Deletion outcome could not be verified",
		fmt.Sprintf("table: %s, id: %s, error: %v", table, id, cause), false, cause)
	e.Metadata = map[string]interface{}{"table": table, "recordId": id}
	return e
}

// NewSchemaMismatchError creates a non-retryable schema contract error.
func NewSchemaMismatchError(cause error) *StandardError {
	return newStandardError(ErrCodeSchemaMismatch, "Database schema does not match the expected contract", cause.Error(), false, cause)
}

// NewStoreOperationFailedError creates a retryable store error.
func NewStoreOperationFailedError(operation string, cause error) *StandardError {
	return newStandardError(ErrCodeStoreOperationFailed, "Record store operation failed",
		fmt.Sprintf("operation: %s, error: %s", operation, cause.Error()), true, cause)
}

// NewStoreTimeoutError creates a retryable store timeout error.
func NewStoreTimeoutError(operation string) *StandardError {
	return newStandardError(ErrCodeStoreTimeout, "Record store timeout",
		fmt.Sprintf("operation: %s", operation), true, nil)
}

// NewCandidateFetchFailedError creates a retryable candidate retrieval error.
func NewCandidateFetchFailedError(source string, cause error) *StandardError {
	return newStandardError(ErrCodeCandidateFetchFailed, "Failed to load tutor candidates",
		fmt.Sprintf("source: %s, error: %s", source, cause.Error()), true, cause)
}

// NewPreferencesFailedError creates a retryable preference store error.
func NewPreferencesFailedError(cause error) *StandardError {
	return newStandardError(ErrCodePreferencesFailed, "Weight preference store error", cause.Error(), true, cause)
}

// NewActorResolutionFailedError creates a non-retryable identity error.
func NewActorResolutionFailedError(cause error) *StandardError {
	return newStandardError(ErrCodeActorResolutionFailed, "Could not resolve the confirming actor", cause.Error(), false, cause)
}

// NewInternalError wraps anything unexpected.
func NewInternalError(cause error) *StandardError {
	return newStandardError(ErrCodeInternal, "Unexpected error", cause.Error(), false, cause)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStoreOperationFailed,
		ErrCodeCandidateFetchFailed,
		ErrCodePreferencesFailed:
		return 3
	case ErrCodeStoreTimeout:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.Contains(codeStr, "CONSTRAINT") || strings.Contains(codeStr, "SCHEMA") || strings.Contains(codeStr, "VERIFICATION") || strings.Contains(codeStr, "UNVERIFIED"):
		return "SCHEMA/CONSISTENCY"
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "CANDIDATE") || strings.Contains(codeStr, "PREFERENCES"):
		return "DATABASE"
	case strings.Contains(codeStr, "ACTOR"):
		return "AUTH"
	default:
		return "OTHER"
	}
}
