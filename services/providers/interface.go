package providers

import (
	"context"
	"time"
)

// Provider represents one external AI or search API behind a uniform execute contract
type Provider interface {
	// ID returns the provider id (e.g., "openai", "perplexity", "dataforseo")
	ID() string

	// Kind returns the provider kind
	Kind() Kind

	// Available reports whether the credentials needed to call the provider are present
	Available() bool

	// Status returns a configuration snapshot. It never touches the network.
	Status() ProviderStatus

	// Execute runs the request against the provider. Failures are returned as an
	// error-status result; the returned result is never nil.
	Execute(ctx context.Context, req *APIRequest) *ProviderResult
}

// Message represents a single message in a conversation
type Message struct {
	// Role can be "system", "user", or "assistant"
	Role string `json:"role" validate:"required,oneof=system user assistant"`

	// Content is the message text
	Content string `json:"content" validate:"required"`
}

// Usage represents token usage statistics
type Usage struct {
	// PromptTokens used in the request
	PromptTokens int `json:"promptTokens"`

	// CompletionTokens used in the response
	CompletionTokens int `json:"completionTokens"`

	// TotalTokens is the sum of prompt and completion tokens
	TotalTokens int `json:"totalTokens"`

	// Estimated is true when the counts come from a local tokenizer instead of the provider
	Estimated bool `json:"estimated,omitempty"`
}

// IsZero reports whether no tokens were recorded
func (u Usage) IsZero() bool {
	return u.PromptTokens == 0 && u.CompletionTokens == 0 && u.TotalTokens == 0
}

// ProviderStatus is the configuration-health snapshot returned by GET /query
type ProviderStatus struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Kind         Kind   `json:"kind"`
	Family       Family `json:"family"`
	Available    bool   `json:"available"`
	BaseURL      string `json:"baseUrl"`
	DefaultModel string `json:"defaultModel,omitempty"`
	WebSearch    bool   `json:"webSearch,omitempty"`
	TimeoutMs    int64  `json:"timeoutMs"`
	MaxRetries   int    `json:"maxRetries"`
	Reason       string `json:"reason,omitempty"`
}

// ProviderConfig holds common configuration for providers
type ProviderConfig struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// DefaultModel is used when the request does not name one
	DefaultModel string

	// MaxTokens is the default completion limit
	MaxTokens int

	// Temperature is the default sampling temperature
	Temperature float64

	// Timeout for one Execute call, retries included
	Timeout time.Duration

	// MaxRetries for failed requests
	MaxRetries int

	// RetryDelay between retries, multiplied by the attempt number
	RetryDelay time.Duration

	// Additional headers
	Headers map[string]string
}

// DefaultProviderConfig returns a sensible default configuration
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		RetryDelay:  1 * time.Second,
		MaxTokens:   1000,
		Temperature: 0.7,
		Headers:     make(map[string]string),
	}
}

// WithDefaults fills zero fields from DefaultProviderConfig and sets the base URL
func (c ProviderConfig) WithDefaults(baseURL, model string) ProviderConfig {
	defaults := DefaultProviderConfig()
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	if c.DefaultModel == "" {
		c.DefaultModel = model
	}
	if c.Timeout <= 0 {
		c.Timeout = defaults.Timeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaults.RetryDelay
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = defaults.MaxTokens
	}
	if c.Headers == nil {
		c.Headers = make(map[string]string)
	}
	return c
}

// BaseStatus builds the status fields shared by every adapter
func BaseStatus(kind Kind, cfg ProviderConfig, available bool) ProviderStatus {
	status := ProviderStatus{
		ID:           kind.String(),
		Name:         kind.DisplayName(),
		Kind:         kind,
		Family:       kind.Family(),
		Available:    available,
		BaseURL:      cfg.BaseURL,
		DefaultModel: cfg.DefaultModel,
		TimeoutMs:    cfg.Timeout.Milliseconds(),
		MaxRetries:   cfg.MaxRetries,
	}
	if !available {
		status.Reason = "missing API credentials"
	}
	return status
}
