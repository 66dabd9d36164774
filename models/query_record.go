package models

import (
	"time"

	"github.com/ai-search-guru/getcito/services/providers"
)

// QueryStatus summarizes how a fan-out went across its providers
type QueryStatus string

const (
	QueryStatusCompleted QueryStatus = "completed" // every provider succeeded
	QueryStatusPartial   QueryStatus = "partial"
	QueryStatusFailed    QueryStatus = "failed" // no provider succeeded
)

// QueryRecord is the stored form of one brand-monitoring query and its results
type QueryRecord struct {
	RequestID string            `json:"request_id"`
	UserID    string            `json:"user_id"`
	Prompt    string            `json:"prompt"`
	Providers []string          `json:"providers"`
	Priority  string            `json:"priority"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Status    QueryStatus       `json:"status"`

	// Summary
	SuccessCount int     `json:"success_count"`
	ErrorCount   int     `json:"error_count"`
	TotalCost    float64 `json:"total_cost"`

	Response *providers.AggregatedResponse `json:"response"`

	// Timestamps
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewQueryRecord builds a record from a request and its aggregated response
func NewQueryRecord(req *providers.APIRequest, resp *providers.AggregatedResponse) *QueryRecord {
	record := &QueryRecord{
		RequestID:   req.ID,
		UserID:      req.UserID,
		Prompt:      req.Prompt,
		Priority:    string(req.Priority),
		Metadata:    req.Metadata,
		Response:    resp,
		CreatedAt:   req.CreatedAt,
		CompletedAt: resp.CompletedAt,
		TotalCost:   resp.TotalCost,
		Providers:   make([]string, 0, len(resp.Results)),
	}

	for _, result := range resp.Results {
		record.Providers = append(record.Providers, result.ProviderID)
	}
	record.SuccessCount = resp.SuccessCount()
	record.ErrorCount = len(resp.Results) - record.SuccessCount

	switch {
	case record.ErrorCount == 0 && record.SuccessCount > 0:
		record.Status = QueryStatusCompleted
	case record.SuccessCount == 0:
		record.Status = QueryStatusFailed
	default:
		record.Status = QueryStatusPartial
	}

	return record
}

// CollectionName returns the document store collection for query records
func (QueryRecord) CollectionName() string {
	return "queries"
}
