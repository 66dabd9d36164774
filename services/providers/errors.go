package providers

import (
	"context"
	"errors"
	"net/http"
)

// ErrorCode is the machine-readable subtype of an error-status result
type ErrorCode string

const (
	ErrCodeTimeout             ErrorCode = "timeout"
	ErrCodeProviderUnavailable ErrorCode = "provider_unavailable"
	ErrCodeRateLimited         ErrorCode = "rate_limited"
	ErrCodeAuthFailed          ErrorCode = "auth_failed"
	ErrCodeBadRequest          ErrorCode = "bad_request"
	ErrCodeProviderError       ErrorCode = "provider_error"
	ErrCodeInvalidResponse     ErrorCode = "invalid_response"
	ErrCodeTransport           ErrorCode = "transport"
	ErrCodeInternal            ErrorCode = "internal"
)

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code ErrorCode

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// BilledCost is what the provider charged before the call failed
	BilledCost float64

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider string, code ErrorCode, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// WithBilledCost records a cost the provider charged for a failed call
func (e *ProviderError) WithBilledCost(cost float64) *ProviderError {
	e.BilledCost = cost
	return e
}

// AsProviderError unwraps err into a *ProviderError
func AsProviderError(err error) (*ProviderError, bool) {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if provErr, ok := AsProviderError(err); ok {
		return provErr.Retryable
	}
	return false
}

// ClassifyHTTPStatus maps a non-2xx provider status to an error code and
// whether the call may be retried. Every adapter uses this classification.
func ClassifyHTTPStatus(status int) (ErrorCode, bool) {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrCodeAuthFailed, false
	case status == http.StatusRequestTimeout:
		return ErrCodeTimeout, true
	case status == http.StatusTooEarly:
		return ErrCodeProviderError, true
	case status == http.StatusTooManyRequests:
		return ErrCodeRateLimited, true
	case status >= 500:
		return ErrCodeProviderError, true
	case status >= 400:
		return ErrCodeBadRequest, false
	default:
		return ErrCodeInvalidResponse, false
	}
}

// ClassifyTransportError maps an error from http.Client.Do. Errors caused by the
// adapter's own deadline are terminal timeouts; other transport failures are retried.
func ClassifyTransportError(ctx context.Context, err error) (ErrorCode, bool) {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout, false
	}
	if errors.Is(err, context.Canceled) {
		return ErrCodeTransport, false
	}
	return ErrCodeTransport, true
}
