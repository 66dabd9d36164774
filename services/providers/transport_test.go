package providers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testClient(maxRetries int) *HTTPClient {
	return NewHTTPClient("test", ProviderConfig{MaxRetries: maxRetries, RetryDelay: time.Millisecond}, nil, zap.NewNop())
}

func TestClassifyHTTPStatus(t *testing.T) {
	tests := []struct {
		status    int
		code      ErrorCode
		retryable bool
	}{
		{401, ErrCodeAuthFailed, false},
		{403, ErrCodeAuthFailed, false},
		{400, ErrCodeBadRequest, false},
		{404, ErrCodeBadRequest, false},
		{422, ErrCodeBadRequest, false},
		{408, ErrCodeTimeout, true},
		{425, ErrCodeProviderError, true},
		{429, ErrCodeRateLimited, true},
		{500, ErrCodeProviderError, true},
		{503, ErrCodeProviderError, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			code, retryable := ClassifyHTTPStatus(tt.status)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.retryable, retryable)
		})
	}
}

func TestHTTPClient_RetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"q":1}`, string(body))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	body, status, err := testClient(3).Do(context.Background(), HTTPRequest{URL: server.URL, Body: []byte(`{"q":1}`)})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClient_TerminalStatusIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	_, status, err := testClient(3).Do(context.Background(), HTTPRequest{URL: server.URL, Body: []byte(`{}`)})

	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, int32(1), calls.Load())

	provErr, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeAuthFailed, provErr.Code)
	assert.False(t, provErr.Retryable)
	assert.Contains(t, provErr.Message, "Incorrect API key provided")
}

func TestHTTPClient_ExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer server.Close()

	_, _, err := testClient(2).Do(context.Background(), HTTPRequest{URL: server.URL})

	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	provErr, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeRateLimited, provErr.Code)
	assert.True(t, IsRetryable(err))
}

func TestHTTPClient_CheckBody(t *testing.T) {
	inBand := func(body []byte) *ProviderError {
		switch string(body) {
		case `{"status":"busy"}`:
			return NewProviderError("test", ErrCodeProviderError, "busy", http.StatusOK, true, nil)
		case `{"status":"denied"}`:
			return NewProviderError("test", ErrCodeAuthFailed, "denied", http.StatusOK, false, nil)
		}
		return nil
	}

	tests := []struct {
		name      string
		bodies    []string
		wantErr   ErrorCode
		wantCalls int32
	}{
		{name: "retryable in-band error then success", bodies: []string{`{"status":"busy"}`, `{"status":"ok"}`}, wantCalls: 2},
		{name: "terminal in-band error", bodies: []string{`{"status":"denied"}`, `{"status":"ok"}`}, wantErr: ErrCodeAuthFailed, wantCalls: 1},
		{name: "retryable in-band error exhausts retries", bodies: []string{`{"status":"busy"}`, `{"status":"busy"}`, `{"status":"busy"}`}, wantErr: ErrCodeProviderError, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				w.Write([]byte(tt.bodies[n-1]))
			}))
			defer server.Close()

			body, _, err := testClient(1).Do(context.Background(), HTTPRequest{URL: server.URL, CheckBody: inBand})

			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr != "" {
				provErr, ok := AsProviderError(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantErr, provErr.Code)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, `{"status":"ok"}`, string(body))
		})
	}
}

func TestHTTPClient_DeadlineIsTerminalTimeout(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := testClient(3).Do(ctx, HTTPRequest{URL: server.URL, Body: []byte(`{}`)})

	require.Error(t, err)
	provErr, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeTimeout, provErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClient_TransportErrorIsRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, _, err := testClient(1).Do(context.Background(), HTTPRequest{URL: url, Body: []byte(`{}`)})

	require.Error(t, err)
	provErr, ok := AsProviderError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeTransport, provErr.Code)
	assert.True(t, provErr.Retryable)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "bad key", ErrorMessage([]byte(`{"error":{"message":"bad key"}}`)))
	assert.Equal(t, "plain", ErrorMessage([]byte(`{"error":"plain"}`)))
	assert.Equal(t, "Invalid Field", ErrorMessage([]byte(`{"status_code":40501,"status_message":"Invalid Field"}`)))
	assert.Equal(t, "upstream down", ErrorMessage([]byte("upstream down")))
	assert.Equal(t, "empty response body", ErrorMessage(nil))
}
