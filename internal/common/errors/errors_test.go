package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError_CarriesMetadata(t *testing.T) {
	stdErr := NewRecordNotFoundError("users", "u-1", nil)
	bpmnErr := ConvertToBPMNError(stdErr)

	assert.Equal(t, "RECORD_NOT_FOUND", bpmnErr.Code)
	assert.False(t, bpmnErr.Retryable)
	assert.Equal(t, 0, bpmnErr.Retries)

	vars := bpmnErr.ToErrorVariables()
	assert.Equal(t, "users", vars["table"])
	assert.Equal(t, "u-1", vars["recordId"])
	assert.Equal(t, "RECORD_NOT_FOUND", vars["errorCode"])
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		remaining   int32
		wantThrow   bool
		wantRetries int
	}{
		{"validation throws", NewValidationError("weights", stderrors.New("negative")), 3, true, 0},
		{"store failure retries", NewStoreOperationFailedError("select", stderrors.New("conn reset")), 5, false, 3},
		{"store failure caps at remaining", NewStoreOperationFailedError("select", stderrors.New("conn reset")), 2, false, 1},
		{"store failure with no retries left throws", NewStoreOperationFailedError("select", stderrors.New("x")), 0, true, 0},
		{"plain error is internal", stderrors.New("boom"), 3, true, 0},
		{"unverified deletion throws", NewDeletionUnverifiedError("users", "u-1", stderrors.New("conn reset")), 5, true, 0},
		{"wrapped standard error", fmt.Errorf("ctx: %w", NewStoreTimeoutError("count")), 3, false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Decide(tt.err, tt.remaining)
			assert.Equal(t, tt.wantThrow, out.Throw)
			assert.Equal(t, tt.wantRetries, out.Retries)
			require.NotNil(t, out.Error)
		})
	}
}

func TestNormalize_Unwraps(t *testing.T) {
	cause := stderrors.New("fk")
	stdErr := NewConstraintViolationError("user_documents", "fk_docs_user", cause)

	assert.Same(t, stdErr, Normalize(fmt.Errorf("deleting: %w", stdErr)))
	assert.ErrorIs(t, stdErr, cause)
	assert.True(t, stdErr.Operational())
	assert.False(t, NewValidationError("id", stderrors.New("empty")).Operational())
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidation))
	assert.Equal(t, "NOT_FOUND", GetErrorCategory(ErrCodeRecordNotFound))
	assert.Equal(t, "SCHEMA/CONSISTENCY", GetErrorCategory(ErrCodeVerificationFailed))
	assert.Equal(t, "SCHEMA/CONSISTENCY", GetErrorCategory(ErrCodeDeletionUnverified))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeStoreOperationFailed))
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodeActorResolutionFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}
