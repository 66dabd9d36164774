package perplexity

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
	"github.com/tidwall/gjson"
	"go.uber.org/zap/zaptest"

	"github.com/ai-search-guru/getcito/internal/tokens"
	"github.com/ai-search-guru/getcito/services/providers"
)

const sonarResponse = `{
	"id": "8a1b",
	"model": "sonar",
	"created": 1739872114,
	"usage": {"prompt_tokens": 12, "completion_tokens": 188, "total_tokens": 200},
	"citations": ["https://acme.example/review", "https://news.example/crm", "https://acme.example/review"],
	"search_results": [
		{"title": "Acme CRM review", "url": "https://acme.example/review", "date": "2025-03-01"},
		{"title": "Top CRMs in 2025", "url": "https://news.example/crm"}
	],
	"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Acme CRM is frequently recommended [1][2]."}}]
}`

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	return NewAdapter(Config{
		ProviderConfig: providers.ProviderConfig{
			APIKey:     "pplx-test",
			BaseURL:    baseURL,
			Timeout:    2 * time.Second,
			MaxRetries: 1,
			RetryDelay: time.Millisecond,
		},
		SearchRecencyFilter: "month",
	}, nil, zaptest.NewLogger(t))
}

func TestAdapter_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer pplx-test", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "sonar", gjson.GetBytes(body, "model").String())
		assert.Equal(t, "month", gjson.GetBytes(body, "search_recency_filter").String())
		assert.Equal(t, "best CRM", gjson.GetBytes(body, "messages.0.content").String())

		w.Write([]byte(sonarResponse))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)
	result := adapter.Execute(context.Background(), providers.NewAPIRequest("best CRM", "u1", nil, ""))

	require.True(t, result.IsSuccess(), result.Error)
	data, ok := result.Data.(*providers.SearchAnswerData)
	require.True(t, ok)

	assert.Equal(t, "Acme CRM is frequently recommended [1][2].", data.Text())
	require.Len(t, data.Citations, 2)
	assert.Equal(t, providers.Citation{URL: "https://acme.example/review", Title: "Acme CRM review"}, data.Citations[0])
	require.Len(t, data.SearchResults, 2)
	assert.Equal(t, "2025-03-01", data.SearchResults[0].Date)
	assert.Equal(t, 200, data.Usage.TotalTokens)
	// 12*1/1M + 188*1/1M + 0.005
	assert.InDelta(t, 0.0052, result.Cost, 1e-12)
}

func TestAdapter_ReportedCostWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"sonar-pro","usage":{"prompt_tokens":10,"completion_tokens":10,"total_tokens":20,"cost":{"total_cost":0.0091}},"choices":[{"message":{"role":"assistant","content":"answer"}}]}`))
	}))
	defer server.Close()

	result := newTestAdapter(t, server.URL).Execute(context.Background(), providers.NewAPIRequest("q", "u1", nil, ""))

	require.True(t, result.IsSuccess(), result.Error)
	assert.Equal(t, 0.0091, result.Cost)
	assert.Empty(t, result.Data.(*providers.SearchAnswerData).Citations)
}

func TestAdapter_EstimatesUsageFromAllMessages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"sonar","choices":[{"message":{"role":"assistant","content":"Acme CRM."}}]}`))
	}))
	defer server.Close()

	req := providers.NewAPIRequest("best CRM", "u1", nil, "")
	req.Options.Messages = []providers.Message{
		{Role: "system", Content: "You compare software vendors for small sales teams."},
		{Role: "user", Content: "Which CRM do founders recommend for a five person startup?"},
	}

	result := newTestAdapter(t, server.URL).Execute(context.Background(), req)

	require.True(t, result.IsSuccess(), result.Error)
	usage := result.Data.(*providers.SearchAnswerData).Usage
	assert.True(t, usage.Estimated)

	counter := tokens.NewCounter()
	assert.Equal(t, counter.CountAll("sonar", req.PromptTexts()...), usage.PromptTokens)
	assert.Greater(t, usage.PromptTokens, counter.Count("sonar", req.Prompt))
	assert.Equal(t, usage.PromptTokens+usage.CompletionTokens, usage.TotalTokens)
}

func TestAdapter_Errors(t *testing.T) {
	t.Run("bad request is terminal", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"Invalid model 'sonar-xl'","type":"invalid_model","code":400}}`))
		}))
		defer server.Close()

		result := newTestAdapter(t, server.URL).Execute(context.Background(), providers.NewAPIRequest("q", "u1", nil, ""))

		assert.Equal(t, providers.StatusError, result.Status)
		assert.Equal(t, providers.ErrCodeBadRequest, result.ErrorCode)
		assert.Contains(t, result.Error, "Invalid model")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("no choices without usage costs nothing", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"model":"sonar","choices":[]}`))
		}))
		defer server.Close()

		result := newTestAdapter(t, server.URL).Execute(context.Background(), providers.NewAPIRequest("q", "u1", nil, ""))

		assert.Equal(t, providers.ErrCodeInvalidResponse, result.ErrorCode)
		assert.Zero(t, result.Cost)
	})
}

func TestAdapter_Status(t *testing.T) {
	adapter := NewAdapter(Config{}, nil, nil)

	assert.False(t, adapter.Available())
	status := adapter.Status()
	assert.Equal(t, defaultBaseURL, status.BaseURL)
	assert.Equal(t, providers.FamilyWebSearchChat, status.Family)
	assert.True(t, status.WebSearch)
}

func TestBuildCitations(t *testing.T) {
	results := []SearchResult{{Title: "A", URL: "https://a.example"}, {Title: "B", URL: "https://b.example"}}

	fromResults := buildCitations(nil, results)
	require.Len(t, fromResults, 2)
	assert.Equal(t, "B", fromResults[1].Title)

	fromURLs := buildCitations([]string{"https://c.example", "", "https://a.example"}, results)
	require.Len(t, fromURLs, 2)
	assert.Equal(t, "", fromURLs[0].Title)
	assert.Equal(t, "A", fromURLs[1].Title)
}
