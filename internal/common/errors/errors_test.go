package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_PreservesStandardErrorInChain(t *testing.T) {
	base := NewNoPlannerError("query.unknown")
	wrapped := fmt.Errorf("plan turn: %w", base)

	got := Normalize(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, ErrCodeNoPlanner, got.Code)
	assert.False(t, got.Retryable)
}

func TestNormalize_WrapsPlainError(t *testing.T) {
	got := Normalize(New("boom"))
	assert.Equal(t, ErrCodeInternal, got.Code)
	assert.Equal(t, "boom", got.Details)
	assert.Nil(t, Normalize(nil))
}

func TestStandardError_UnwrapsCause(t *testing.T) {
	cause := New("connection refused")
	err := NewQueryExecutionError("entity_details", cause)
	assert.True(t, Is(err, cause))
}

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected string
	}{
		{ErrCodeNoPlanner, "CONFIGURATION"},
		{ErrCodeStoreNotConfigured, "CONFIGURATION"},
		{ErrCodeQueryTimeout, "DATABASE"},
		{ErrCodeSearchQueryFailed, "SEARCH"},
		{ErrCodeInferencePattern, "INTELLIGENCE"},
		{ErrCodeUnknownSourceType, "INTELLIGENCE"},
		{ErrCodeEnrichmentTimeout, "AI"},
		{ErrCodeIngestFailed, "INGESTION"},
		{ErrCodeInputValidation, "VALIDATION"},
		{ErrCodeInternal, "OTHER"},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorCategory(tt.code))
		})
	}
}

func TestConvertToBPMNError(t *testing.T) {
	retryable := NewQueryExecutionError("q", New("x")).WithMetadata("queryName", "q")
	bpmn := ConvertToBPMNError(retryable)
	assert.Equal(t, "QUERY_EXECUTION_FAILED", bpmn.Code)
	assert.Equal(t, 3, bpmn.Retries)
	assert.Equal(t, "q", bpmn.ErrorVariables["queryName"])

	business := NewUnknownPatternError("nope")
	assert.Equal(t, 0, ConvertToBPMNError(business).Retries)

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "QUERY_EXECUTION_FAILED", vars["errorCode"])
	assert.Equal(t, "DATABASE", vars["errorCategory"])
}
