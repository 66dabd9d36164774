package providers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority is advisory and does not affect scheduling
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority validates a priority string. An empty string means medium.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PriorityMedium, nil
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", fmt.Errorf("invalid priority %q", s)
	}
}

// GenerationOptions are optional per-request overrides for LLM adapters
type GenerationOptions struct {
	Model        string    `json:"model,omitempty"`
	Temperature  *float64  `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens    int       `json:"maxTokens,omitempty" validate:"gte=0"`
	WebSearch    *bool     `json:"webSearch,omitempty"`
	SystemPrompt string    `json:"systemPrompt,omitempty"`
	Messages     []Message `json:"messages,omitempty" validate:"omitempty,dive"`
}

// SearchParams shape the request for search-engine-results providers
type SearchParams struct {
	Keyword  string `json:"keyword,omitempty"`
	Location string `json:"location,omitempty"`
	Language string `json:"language,omitempty"`
	Device   string `json:"device,omitempty"`
	Depth    int    `json:"depth,omitempty" validate:"gte=0,lte=700"`
}

// APIRequest is one logical query. It is built once and not modified after dispatch.
type APIRequest struct {
	ID        string            `json:"id"`
	Prompt    string            `json:"prompt"`
	Providers []string          `json:"providers,omitempty"`
	Priority  Priority          `json:"priority"`
	UserID    string            `json:"userId"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Options   GenerationOptions `json:"options"`
	Search    SearchParams      `json:"search"`
	CreatedAt time.Time         `json:"createdAt"`
}

// NewAPIRequest creates a request with a fresh id and timestamp
func NewAPIRequest(prompt, userID string, providerIDs []string, priority Priority) *APIRequest {
	if priority == "" {
		priority = PriorityMedium
	}
	return &APIRequest{
		ID:        uuid.New().String(),
		Prompt:    prompt,
		Providers: providerIDs,
		Priority:  priority,
		UserID:    userID,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now().UTC(),
	}
}

// Messages returns the conversation to send to chat providers.
// Explicit messages win over the prompt.
func (r *APIRequest) Messages() []Message {
	if len(r.Options.Messages) > 0 {
		msgs := make([]Message, len(r.Options.Messages))
		copy(msgs, r.Options.Messages)
		return msgs
	}

	msgs := make([]Message, 0, 2)
	if r.Options.SystemPrompt != "" {
		msgs = append(msgs, Message{Role: "system", Content: r.Options.SystemPrompt})
	}
	return append(msgs, Message{Role: "user", Content: r.Prompt})
}

// PromptTexts returns the content of every message sent to chat providers
func (r *APIRequest) PromptTexts() []string {
	msgs := r.Messages()
	texts := make([]string, len(msgs))
	for i, m := range msgs {
		texts[i] = m.Content
	}
	return texts
}

// ResultStatus is the outcome of one provider call
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusError   ResultStatus = "error"
)

// ProviderResult is the outcome of one adapter execution for one request
type ProviderResult struct {
	ProviderID   string       `json:"providerId"`
	Status       ResultStatus `json:"status"`
	Data         ProviderData `json:"data,omitempty"`
	Error        string       `json:"error,omitempty"`
	ErrorCode    ErrorCode    `json:"errorCode,omitempty"`
	ResponseTime int64        `json:"responseTime"`
	Cost         float64      `json:"cost"`
}

// SuccessResult builds a success result
func SuccessResult(providerID string, data ProviderData, elapsed time.Duration, cost float64) *ProviderResult {
	return &ProviderResult{
		ProviderID:   providerID,
		Status:       StatusSuccess,
		Data:         data,
		ResponseTime: elapsed.Milliseconds(),
		Cost:         cost,
	}
}

// ErrorResult converts err into an error-status result. A *ProviderError
// contributes its code and any cost the provider billed before failing.
func ErrorResult(providerID string, err error, elapsed time.Duration) *ProviderResult {
	result := &ProviderResult{
		ProviderID:   providerID,
		Status:       StatusError,
		ErrorCode:    ErrCodeInternal,
		ResponseTime: elapsed.Milliseconds(),
	}
	if err == nil {
		result.Error = "unknown error"
		return result
	}

	result.Error = err.Error()
	if provErr, ok := AsProviderError(err); ok {
		result.ErrorCode = provErr.Code
		result.Cost = provErr.BilledCost
	}
	return result
}

// IsSuccess reports whether the provider call succeeded
func (r *ProviderResult) IsSuccess() bool {
	return r != nil && r.Status == StatusSuccess
}

// UnmarshalJSON decodes the data variant using its type discriminator
func (r *ProviderResult) UnmarshalJSON(b []byte) error {
	type alias ProviderResult
	aux := struct {
		*alias
		Data json.RawMessage `json:"data,omitempty"`
	}{alias: (*alias)(r)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	if len(aux.Data) == 0 || string(aux.Data) == "null" {
		r.Data = nil
		return nil
	}

	data, err := DecodeProviderData(aux.Data)
	if err != nil {
		return err
	}
	r.Data = data
	return nil
}

// AggregatedResponse is the manager's output for one request
type AggregatedResponse struct {
	RequestID      string                  `json:"requestId"`
	Results        []*ProviderResult       `json:"results"`
	AggregatedData map[string]ProviderData `json:"aggregatedData"`
	TotalCost      float64                 `json:"totalCost"`
	CompletedAt    time.Time               `json:"completedAt"`
}

// SuccessCount returns the number of successful results
func (a *AggregatedResponse) SuccessCount() int {
	n := 0
	for _, r := range a.Results {
		if r.IsSuccess() {
			n++
		}
	}
	return n
}

// UnmarshalJSON decodes aggregated data variants using their type discriminator
func (a *AggregatedResponse) UnmarshalJSON(b []byte) error {
	type alias AggregatedResponse
	aux := struct {
		*alias
		AggregatedData map[string]json.RawMessage `json:"aggregatedData"`
	}{alias: (*alias)(a)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	a.AggregatedData = make(map[string]ProviderData, len(aux.AggregatedData))
	for id, raw := range aux.AggregatedData {
		data, err := DecodeProviderData(raw)
		if err != nil {
			return fmt.Errorf("aggregatedData[%s]: %w", id, err)
		}
		a.AggregatedData[id] = data
	}
	return nil
}
