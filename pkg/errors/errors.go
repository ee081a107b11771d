package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

const (
	CodeExtError      = "EXT_ERROR"
	CodeAPIError      = "API_ERROR"
	CodeValidation    = "VALIDATION_ERROR"
	CodeCache         = "CACHE_ERROR"
	CodeService       = "SERVICE_ERROR"
	CodeDataIntegrity = "DATA_INTEGRITY_ERROR"
)

// ExtError is the common shape of every error raised by the extension
// services. The typed errors below embed it.
type ExtError struct {
	Message    string
	Code       string
	StatusCode int
	Context    map[string]any
	Cause      error
}

func base(code string, status int, message string, context map[string]any, cause error) *ExtError {
	return &ExtError{
		Message:    message,
		Code:       code,
		StatusCode: status,
		Context:    context,
		Cause:      cause,
	}
}

func (e *ExtError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ExtError) Unwrap() error { return e.Cause }

func NewExtError(message, code string, statusCode int, context map[string]any) *ExtError {
	return base(code, statusCode, message, context, nil)
}

// StatusOf returns the status code of the first ExtError in err's chain, or
// 0 when there is none.
func StatusOf(err error) int {
	var ext interface{ status() int }
	if stderrors.As(err, &ext) {
		return ext.status()
	}
	return 0
}

// CodeOf returns the error code of the first ExtError in err's chain.
func CodeOf(err error) string {
	var ext interface{ code() string }
	if stderrors.As(err, &ext) {
		return ext.code()
	}
	return ""
}

func (e *ExtError) status() int  { return e.StatusCode }
func (e *ExtError) code() string { return e.Code }

// APIError is a failed call to the host or a remote service.
type APIError struct {
	*ExtError
}

func NewAPIError(message string, statusCode int, context map[string]any) *APIError {
	return &APIError{ExtError: base(CodeAPIError, statusCode, message, context, nil)}
}

// WithCause attaches cause and keeps the APIError type.
func (e *APIError) WithCause(cause error) *APIError {
	e.Cause = cause
	return e
}

type ValidationError struct {
	*ExtError
	Field string
	Value any
}

func NewValidationError(message, field string, value any) *ValidationError {
	return &ValidationError{
		ExtError: base(CodeValidation, http.StatusBadRequest, message,
			map[string]any{"field": field, "value": value}, nil),
		Field: field,
		Value: value,
	}
}

type CacheError struct {
	*ExtError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		ExtError: base(CodeCache, http.StatusInternalServerError, message,
			map[string]any{"operation": operation, "key": key}, cause),
		Operation: operation,
		Key:       key,
	}
}

// ServiceError means a dependency is unavailable, usually because its
// circuit breaker is open or every provider failed.
type ServiceError struct {
	*ExtError
	Service   string
	Operation string
}

func NewServiceError(message, service, operation string, cause error) *ServiceError {
	return &ServiceError{
		ExtError: base(CodeService, http.StatusServiceUnavailable, message,
			map[string]any{"service": service, "operation": operation}, cause),
		Service:   service,
		Operation: operation,
	}
}

// DataIntegrityError reports a persisted or imported document that cannot be
// applied. The dataset it targeted is left untouched.
type DataIntegrityError struct {
	*ExtError
	Source string
}

func NewDataIntegrityError(message, source string, cause error) *DataIntegrityError {
	return &DataIntegrityError{
		ExtError: base(CodeDataIntegrity, http.StatusUnprocessableEntity, message,
			map[string]any{"source": source}, cause),
		Source: source,
	}
}
