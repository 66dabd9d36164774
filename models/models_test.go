package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ai-search-guru/getcito/services/providers"
)

func aggregated(req *providers.APIRequest, results ...*providers.ProviderResult) *providers.AggregatedResponse {
	resp := &providers.AggregatedResponse{
		RequestID:      req.ID,
		Results:        results,
		AggregatedData: map[string]providers.ProviderData{},
		CompletedAt:    req.CreatedAt.Add(time.Second),
	}
	for _, r := range results {
		resp.TotalCost += r.Cost
		if r.IsSuccess() {
			resp.AggregatedData[r.ProviderID] = r.Data
		}
	}
	return resp
}

func TestNewQueryRecord(t *testing.T) {
	req := providers.NewAPIRequest("best crm for startups", "user-1", []string{"openai", "perplexity"}, providers.PriorityHigh)
	req.Metadata = map[string]string{"userAgent": "test"}

	ok := providers.SuccessResult("openai", &providers.ChatData{Content: "Acme"}, 120*time.Millisecond, 0.002)
	failed := providers.ErrorResult("perplexity", errors.New("boom"), 40*time.Millisecond)

	tests := []struct {
		name       string
		results    []*providers.ProviderResult
		wantStatus QueryStatus
		wantOK     int
		wantErr    int
	}{
		{name: "all succeeded", results: []*providers.ProviderResult{ok}, wantStatus: QueryStatusCompleted, wantOK: 1},
		{name: "mixed", results: []*providers.ProviderResult{ok, failed}, wantStatus: QueryStatusPartial, wantOK: 1, wantErr: 1},
		{name: "all failed", results: []*providers.ProviderResult{failed}, wantStatus: QueryStatusFailed, wantErr: 1},
		{name: "no results", results: nil, wantStatus: QueryStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := aggregated(req, tt.results...)
			record := NewQueryRecord(req, resp)

			assert.Equal(t, req.ID, record.RequestID)
			assert.Equal(t, "user-1", record.UserID)
			assert.Equal(t, "high", record.Priority)
			assert.Equal(t, req.Metadata, record.Metadata)
			assert.Equal(t, tt.wantStatus, record.Status)
			assert.Equal(t, tt.wantOK, record.SuccessCount)
			assert.Equal(t, tt.wantErr, record.ErrorCount)
			assert.Equal(t, resp.TotalCost, record.TotalCost)
			assert.Len(t, record.Providers, len(tt.results))
			assert.Equal(t, resp.CompletedAt, record.CompletedAt)
		})
	}
}

func TestQueryRecord_CollectionName(t *testing.T) {
	assert.Equal(t, "queries", QueryRecord{}.CollectionName())
}
