package errors

import (
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeConfiguration      ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeStoreNotConfigured ErrorCode = "STORE_NOT_CONFIGURED"
	ErrCodeNoPlanner          ErrorCode = "NO_PLANNER_FOR_INTENT"
	ErrCodeInputValidation    ErrorCode = "INPUT_VALIDATION_FAILED"
	ErrCodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecution     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout       ErrorCode = "QUERY_TIMEOUT"
	ErrCodeSearchQueryFailed  ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeInferencePattern   ErrorCode = "INFERENCE_PATTERN_FAILED"
	ErrCodeUnknownPattern     ErrorCode = "UNKNOWN_INFERENCE_PATTERN"
	ErrCodeUnknownSourceType  ErrorCode = "UNKNOWN_SOURCE_TYPE"
	ErrCodeNoSources          ErrorCode = "NO_SOURCES"
	ErrCodeEnrichmentFailed   ErrorCode = "ENRICHMENT_FAILED"
	ErrCodeEnrichmentTimeout  ErrorCode = "ENRICHMENT_TIMEOUT"
	ErrCodeIngestFailed       ErrorCode = "INGEST_FAILED"
	ErrCodeExternalService    ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout            ErrorCode = "TIMEOUT_ERROR"
	ErrCodeResourceNotFound   ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeBusinessRule       ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeAuthentication     ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

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
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key to the error and returns it for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithCause sets the wrapped error so errors.Is matches package sentinels.
func (e *StandardError) WithCause(err error) *StandardError {
	e.cause = err
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

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

func NewConfigurationError(details string) *StandardError {
	return newError(ErrCodeConfiguration, "Invalid or missing configuration", details, false, nil)
}

func NewStoreNotConfiguredError(component string) *StandardError {
	return newError(ErrCodeStoreNotConfigured, "Graph store is not configured", fmt.Sprintf("component: %s", component), false, nil)
}

func NewNoPlannerError(intent string) *StandardError {
	return newError(ErrCodeNoPlanner, "No planner for intent", fmt.Sprintf("intent: %s", intent), false, nil)
}

func NewInputValidationError(details string) *StandardError {
	return newError(ErrCodeInputValidation, "Input validation failed", details, false, nil)
}

func NewDatabaseConnectionError(store string, err error) *StandardError {
	return newError(ErrCodeDatabaseConnection, fmt.Sprintf("%s connection error", store), err.Error(), true, err)
}

func NewQueryExecutionError(queryName string, err error) *StandardError {
	return newError(ErrCodeQueryExecution, "Graph query execution error",
		fmt.Sprintf("query: %s, error: %s", queryName, err.Error()), true, err)
}

func NewQueryTimeoutError(queryName string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Graph query timeout", fmt.Sprintf("query: %s", queryName), true, nil)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true, err)
}

func NewInferencePatternError(pattern string, err error) *StandardError {
	return newError(ErrCodeInferencePattern, "Inference pattern failed",
		fmt.Sprintf("pattern: %s, error: %s", pattern, err.Error()), true, err)
}

func NewUnknownPatternError(pattern string) *StandardError {
	return newError(ErrCodeUnknownPattern, "Unknown inference pattern", fmt.Sprintf("pattern: %s", pattern), false, nil)
}

func NewUnknownSourceTypeError(sourceType string) *StandardError {
	return newError(ErrCodeUnknownSourceType, "Unknown source type", fmt.Sprintf("sourceType: %s", sourceType), false, nil)
}

func NewNoSourcesError(details string) *StandardError {
	return newError(ErrCodeNoSources, "At least one source is required", details, false, nil)
}

func NewEnrichmentFailedError(err error) *StandardError {
	return newError(ErrCodeEnrichmentFailed, "Enrichment API error", err.Error(), true, err)
}

func NewEnrichmentTimeoutError() *StandardError {
	return newError(ErrCodeEnrichmentTimeout, "Enrichment API timeout", "call exceeded timeout threshold", false, nil)
}

func NewIngestFailedError(file string, err error) *StandardError {
	return newError(ErrCodeIngestFailed, "Ingestion failed", fmt.Sprintf("file: %s, error: %s", file, err.Error()), false, err)
}

func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRule, message, details, false, nil)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true, err)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("Resource not found in %s", service), details, false, nil)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false, nil)
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnection,
		ErrCodeQueryExecution,
		ErrCodeSearchQueryFailed,
		ErrCodeExternalService,
		ErrCodeEnrichmentFailed:
		return 3
	case ErrCodeQueryTimeout,
		ErrCodeTimeout,
		ErrCodeInferencePattern:
		return 2
	default:
		return 0
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"errorCategory":     GetErrorCategory(stdErr.Code),
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

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CONFIGURATION") || strings.Contains(codeStr, "NOT_CONFIGURED") || strings.Contains(codeStr, "PLANNER"):
		return "CONFIGURATION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "INFERENCE") || strings.Contains(codeStr, "SOURCE"):
		return "INTELLIGENCE"
	case strings.Contains(codeStr, "ENRICHMENT"):
		return "AI"
	case strings.Contains(codeStr, "INGEST"):
		return "INGESTION"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// Normalize converts any error into a StandardError, preserving StandardErrors found in the chain.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}
