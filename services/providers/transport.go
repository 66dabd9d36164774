package providers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// maxResponseBytes caps how much of a provider response body is read
const maxResponseBytes = 8 << 20

// HTTPRequest describes one outbound provider call. The body is replayed on every attempt.
type HTTPRequest struct {
	Method string
	URL    string
	Body   []byte
	Header http.Header

	// CheckBody inspects a 2xx body for errors the provider reports in-band.
	// A retryable error is retried like a failed HTTP status.
	CheckBody func(body []byte) *ProviderError
}

// HTTPClient executes provider calls with the shared retry classification
type HTTPClient struct {
	provider   string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewHTTPClient creates a retrying client for one provider. A nil client uses a
// plain http.Client; deadlines come from the caller's context.
func NewHTTPClient(provider string, cfg ProviderConfig, client *http.Client, logger *zap.Logger) *HTTPClient {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &HTTPClient{
		provider:   provider,
		client:     client,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

// Do sends the request, retrying retryable failures sequentially.
// On success it returns the response body and status code.
func (c *HTTPClient) Do(ctx context.Context, req HTTPRequest) ([]byte, int, error) {
	var lastErr *ProviderError

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.wait(ctx, c.retryDelay*time.Duration(attempt)); err != nil {
				return nil, 0, NewProviderError(c.provider, ErrCodeTimeout, "request timed out while waiting to retry", 0, false, lastErr)
			}
		}

		body, status, err := c.attempt(ctx, req)
		if err == nil && req.CheckBody != nil {
			err = req.CheckBody(body)
		}
		if err == nil {
			return body, status, nil
		}

		lastErr = err
		if !err.Retryable {
			return nil, status, err
		}

		c.logger.Warn("Provider call failed, retrying",
			zap.String("provider", c.provider),
			zap.Int("attempt", attempt+1),
			zap.Int("status_code", status),
			zap.String("error_code", string(err.Code)),
			zap.Error(err),
		)
	}

	return nil, lastErr.StatusCode, lastErr
}

func (c *HTTPClient) attempt(ctx context.Context, req HTTPRequest) ([]byte, int, *ProviderError) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return nil, 0, NewProviderError(c.provider, ErrCodeInternal, "failed to create request", 0, false, err)
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		code, retryable := ClassifyTransportError(ctx, err)
		message := "HTTP request failed"
		if code == ErrCodeTimeout {
			message = "request timed out"
		}
		return nil, 0, NewProviderError(c.provider, code, message, 0, retryable, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		code, retryable := ClassifyTransportError(ctx, err)
		return nil, httpResp.StatusCode, NewProviderError(c.provider, code, "failed to read response", httpResp.StatusCode, retryable, err)
	}

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		return respBody, httpResp.StatusCode, nil
	}

	code, retryable := ClassifyHTTPStatus(httpResp.StatusCode)
	message := fmt.Sprintf("%s returned %d: %s", c.provider, httpResp.StatusCode, ErrorMessage(respBody))
	return nil, httpResp.StatusCode, NewProviderError(c.provider, code, message, httpResp.StatusCode, retryable, nil)
}

func (c *HTTPClient) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrorMessage extracts a human-readable message from a provider error body
func ErrorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "error", "message", "detail", "status_message"} {
			if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty response body"
	}
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	return text
}

// TimeoutError wraps a deadline hit inside an adapter
func TimeoutError(provider string, timeout time.Duration, cause error) *ProviderError {
	return NewProviderError(provider, ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", provider, timeout), 0, false, cause)
}

// InvalidResponseError reports a response body the adapter could not normalize
func InvalidResponseError(provider string, message string, cause error) *ProviderError {
	return NewProviderError(provider, ErrCodeInvalidResponse, message, http.StatusOK, false, cause)
}
