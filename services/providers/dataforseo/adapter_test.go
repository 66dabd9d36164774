package dataforseo

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap/zaptest"

	"github.com/ai-search-guru/getcito/services/providers"
)

const serpResponse = `{
	"version": "0.1.20250101",
	"status_code": 20000,
	"status_message": "Ok.",
	"cost": 0.003,
	"tasks_count": 1,
	"tasks_error": 0,
	"tasks": [{
		"id": "01181019-1535-0139-0000-2a9e5f5b0c5d",
		"status_code": 20000,
		"status_message": "Ok.",
		"cost": 0.003,
		"result_count": 1,
		"result": [{
			"keyword": "best crm software",
			"type": "organic",
			"se_domain": "google.com",
			"language_code": "en",
			"items_count": 6,
			"items": [
				{"type": "ai_overview", "items": [
					{"type": "ai_overview_element", "title": "Top picks", "text": "Acme CRM and HubSpot are popular.", "references": [
						{"type": "ai_overview_reference", "source": "Acme", "url": "https://acme.example", "title": "Acme CRM"}
					]}
				], "references": [
					{"type": "ai_overview_reference", "source": "Acme", "url": "https://acme.example", "title": "Acme CRM"},
					{"type": "ai_overview_reference", "source": "Review Site", "url": "https://review.example"}
				]},
				{"type": "organic", "rank_group": 1, "rank_absolute": 2, "domain": "acme.example", "title": "Acme CRM", "url": "https://acme.example", "description": "The CRM for small teams."},
				{"type": "people_also_ask", "items": [
					{"type": "people_also_ask_element", "title": "What is the easiest CRM?", "expanded_element": [
						{"type": "people_also_ask_expanded_element", "url": "https://faq.example", "description": "Acme is often cited."}
					]},
					{"type": "people_also_ask_element", "title": "Is HubSpot free?"}
				]},
				{"type": "organic", "rank_group": 2, "rank_absolute": 3, "domain": "hubspot.example", "title": "HubSpot", "url": "https://hubspot.example"},
				{"type": "related_searches", "items": ["crm for startups", "free crm"]},
				{"type": "video", "title": "ignored"}
			]
		}]
	}]
}`

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	return NewAdapter(Config{
		ProviderConfig: providers.ProviderConfig{
			BaseURL:    baseURL,
			Timeout:    2 * time.Second,
			MaxRetries: 1,
			RetryDelay: time.Millisecond,
		},
		Login:    "user@example.com",
		Password: "secret",
	}, nil, zaptest.NewLogger(t))
}

func TestAdapter_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, serpPath, r.URL.Path)
		login, password, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user@example.com", login)
		assert.Equal(t, "secret", password)

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "best crm software", gjson.GetBytes(body, "0.keyword").String())
		assert.Equal(t, "United Kingdom", gjson.GetBytes(body, "0.location_name").String())
		assert.Equal(t, "en", gjson.GetBytes(body, "0.language_code").String())
		assert.Equal(t, "mobile", gjson.GetBytes(body, "0.device").String())

		w.Write([]byte(serpResponse))
	}))
	defer server.Close()

	req := providers.NewAPIRequest("Which CRM should I use?", "u1", nil, "")
	req.Search = providers.SearchParams{Keyword: "best crm software", Location: "United Kingdom", Device: "mobile"}

	result := newTestAdapter(t, server.URL).Execute(context.Background(), req)

	require.True(t, result.IsSuccess(), result.Error)
	assert.Equal(t, 0.003, result.Cost)

	data, ok := result.Data.(*providers.SERPData)
	require.True(t, ok)
	assert.Equal(t, "best crm software", data.Keyword)
	assert.Equal(t, "United Kingdom", data.Location)

	require.Len(t, data.OrganicResults, 2)
	assert.Equal(t, providers.OrganicResult{Rank: 1, Title: "Acme CRM", URL: "https://acme.example", Domain: "acme.example", Description: "The CRM for small teams."}, data.OrganicResults[0])
	assert.Equal(t, 2, data.OrganicCount)

	require.Len(t, data.PeopleAlsoAsk, 2)
	assert.Equal(t, "Acme is often cited.", data.PeopleAlsoAsk[0].Answer)
	assert.Equal(t, "https://faq.example", data.PeopleAlsoAsk[0].URL)
	assert.Empty(t, data.PeopleAlsoAsk[1].Answer)
	assert.Equal(t, 2, data.PeopleAlsoAskCount)

	assert.Equal(t, []string{"crm for startups", "free crm"}, data.RelatedSearches)
	assert.Equal(t, 2, data.RelatedSearchesCount)

	require.NotNil(t, data.AIOverview)
	assert.True(t, data.HasAIOverview)
	assert.Equal(t, "Acme CRM and HubSpot are popular.", data.AIOverview.Text)
	require.Len(t, data.AIOverview.References, 2)
	assert.Equal(t, "Review Site", data.AIOverview.References[1].Title)

	assert.Equal(t, 6, data.ItemsCount)
	assert.Equal(t, "Acme CRM and HubSpot are popular.", data.Text())
}

func TestAdapter_KeywordFallsBackToPrompt(t *testing.T) {
	adapter := NewAdapter(Config{ProviderConfig: providers.ProviderConfig{APIKey: "login:pass"}}, nil, nil)

	task := adapter.Task(providers.NewAPIRequest("  best crm  ", "u1", nil, ""))
	assert.Equal(t, "best crm", task.Keyword)
	assert.Equal(t, defaultLocation, task.LocationName)
	assert.Equal(t, defaultDevice, task.Device)
	assert.Equal(t, defaultDepth, task.Depth)

	assert.True(t, adapter.Available())
	assert.Equal(t, "login", adapter.config.Login)
}

func TestAdapter_FlatRateWhenCostMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status_code":20000,"tasks":[{"status_code":20000,"result":[{"keyword":"k","items":[]}]}]}`))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)
	adapter.config.FlatRate = decimal.RequireFromString("0.0015")

	result := adapter.Execute(context.Background(), providers.NewAPIRequest("k", "u1", nil, ""))

	require.True(t, result.IsSuccess(), result.Error)
	assert.Equal(t, 0.0015, result.Cost)
	assert.Equal(t, 0, result.Data.(*providers.SERPData).ItemsCount)
}

func TestAdapter_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCode  providers.ErrorCode
		wantCost  float64
		wantCalls int32
	}{
		{
			name:      "envelope auth error",
			body:      `{"status_code":40100,"status_message":"You are not authorized to access this resource.","tasks":[]}`,
			wantCode:  providers.ErrCodeAuthFailed,
			wantCalls: 1,
		},
		{
			name:      "envelope internal error is retried",
			body:      `{"status_code":50000,"status_message":"Internal Error.","tasks":[]}`,
			wantCode:  providers.ErrCodeProviderError,
			wantCalls: 2,
		},
		{
			name:      "task error with reported cost",
			body:      `{"status_code":20000,"tasks":[{"status_code":40501,"status_message":"Invalid Field: 'location_name'.","cost":0.001}]}`,
			wantCode:  providers.ErrCodeBadRequest,
			wantCost:  0.001,
			wantCalls: 1,
		},
		{
			name:      "task server error without cost is retried",
			body:      `{"status_code":20000,"tasks":[{"status_code":50000,"status_message":"Internal Error.","cost":0}]}`,
			wantCode:  providers.ErrCodeProviderError,
			wantCalls: 2,
		},
		{
			name:      "no tasks",
			body:      `{"status_code":20000,"tasks":[]}`,
			wantCode:  providers.ErrCodeInvalidResponse,
			wantCalls: 1,
		},
		{
			name:      "not json",
			body:      `<html>gateway</html>`,
			wantCode:  providers.ErrCodeInvalidResponse,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			result := newTestAdapter(t, server.URL).Execute(context.Background(), providers.NewAPIRequest("k", "u1", nil, ""))

			assert.Equal(t, providers.StatusError, result.Status)
			assert.Equal(t, tt.wantCode, result.ErrorCode)
			assert.Equal(t, tt.wantCost, result.Cost)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestAdapter_RetriesTransientStatusCode(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte(`{"status_code":50000,"status_message":"Internal Error.","tasks":[]}`))
			return
		}
		w.Write([]byte(serpResponse))
	}))
	defer server.Close()

	result := newTestAdapter(t, server.URL).Execute(context.Background(), providers.NewAPIRequest("best crm software", "u1", nil, ""))

	require.True(t, result.IsSuccess(), result.Error)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0.003, result.Cost)
}

func TestAdapter_Unavailable(t *testing.T) {
	adapter := NewAdapter(Config{Login: "only-login"}, nil, nil)
	assert.False(t, adapter.Available())
	assert.Equal(t, providers.FamilySearchEngine, adapter.Status().Family)
}
