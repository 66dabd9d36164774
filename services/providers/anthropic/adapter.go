// Package anthropic adapts the Anthropic Messages API as a secondary answer engine.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ai-search-guru/getcito/internal/tokens"
	"github.com/ai-search-guru/getcito/services/providers"
)

const (
	defaultBaseURL    = "https://api.anthropic.com"
	defaultModel      = "claude-3-5-haiku-latest"
	defaultAPIVersion = "2023-06-01"
)

// Config configures the Anthropic adapter
type Config struct {
	providers.ProviderConfig

	// APIVersion is sent as the anthropic-version header
	APIVersion string
}

// Adapter implements the Provider interface for Anthropic
type Adapter struct {
	config  Config
	client  *providers.HTTPClient
	prices  *providers.PriceTable
	counter *tokens.Counter
	logger  *zap.Logger
}

// NewAdapter creates a new Anthropic adapter. httpClient may be nil.
func NewAdapter(config Config, httpClient *http.Client, logger *zap.Logger) *Adapter {
	config.ProviderConfig = config.ProviderConfig.WithDefaults(defaultBaseURL, defaultModel)
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.APIVersion == "" {
		config.APIVersion = defaultAPIVersion
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Adapter{
		config:  config,
		client:  providers.NewHTTPClient(providers.KindAnthropic.String(), config.ProviderConfig, httpClient, logger),
		prices:  PriceTable(),
		counter: tokens.NewCounter(),
		logger:  logger,
	}
}

func (a *Adapter) ID() string { return providers.KindAnthropic.String() }

func (a *Adapter) Kind() providers.Kind { return providers.KindAnthropic }

func (a *Adapter) Available() bool { return a.config.APIKey != "" }

func (a *Adapter) Status() providers.ProviderStatus {
	return providers.BaseStatus(a.Kind(), a.config.ProviderConfig, a.Available())
}

// Execute sends the request to POST /v1/messages
func (a *Adapter) Execute(ctx context.Context, req *providers.APIRequest) *providers.ProviderResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	data, cost, err := a.execute(ctx, req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = providers.TimeoutError(a.ID(), a.config.Timeout, err)
		}
		return providers.ErrorResult(a.ID(), err, time.Since(start))
	}

	a.logger.Debug("Anthropic request completed",
		zap.String("request_id", req.ID),
		zap.String("model", data.Model),
		zap.Int("total_tokens", data.Usage.TotalTokens),
		zap.Float64("cost", cost),
	)

	return providers.SuccessResult(a.ID(), data, time.Since(start), cost)
}

func (a *Adapter) execute(ctx context.Context, req *providers.APIRequest) (*providers.ChatData, float64, error) {
	model := a.config.DefaultModel
	if req.Options.Model != "" {
		model = req.Options.Model
	}

	reqBody, err := json.Marshal(a.buildRequest(req, model))
	if err != nil {
		return nil, 0, providers.NewProviderError(a.ID(), providers.ErrCodeInternal, "failed to marshal request", 0, false, err)
	}

	header := http.Header{}
	header.Set("x-api-key", a.config.APIKey)
	header.Set("anthropic-version", a.config.APIVersion)
	for k, v := range a.config.Headers {
		header.Set(k, v)
	}

	respBody, _, err := a.client.Do(ctx, providers.HTTPRequest{
		Method: http.MethodPost,
		URL:    a.config.BaseURL + "/v1/messages",
		Body:   reqBody,
		Header: header,
	})
	if err != nil {
		return nil, 0, err
	}

	var resp MessagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, 0, providers.InvalidResponseError(a.ID(), "failed to unmarshal response", err)
	}
	if resp.Model != "" {
		model = resp.Model
	}

	usage := providers.Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}
	billed := !usage.IsZero()

	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	content := strings.Join(parts, "\n")

	if strings.TrimSpace(content) == "" {
		provErr := providers.InvalidResponseError(a.ID(), "response contained no text content", nil)
		if billed {
			provErr.WithBilledCost(a.prices.Cost(model, usage))
		}
		return nil, 0, provErr
	}

	if !billed {
		prompt := a.counter.CountAll(model, req.PromptTexts()...)
		out := a.counter.Count(model, content)
		usage = providers.Usage{PromptTokens: prompt, CompletionTokens: out, TotalTokens: prompt + out, Estimated: true}
	}

	data := &providers.ChatData{
		Content:      content,
		Model:        model,
		FinishReason: resp.StopReason,
		Usage:        usage,
	}
	return data, a.prices.Cost(model, usage), nil
}

// buildRequest moves system messages into the top-level system field
func (a *Adapter) buildRequest(req *providers.APIRequest, model string) *MessagesRequest {
	r := &MessagesRequest{
		Model:     model,
		MaxTokens: a.config.MaxTokens,
	}
	if req.Options.MaxTokens > 0 {
		r.MaxTokens = req.Options.MaxTokens
	}

	var system []string
	for _, m := range req.Messages() {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		r.Messages = append(r.Messages, Message{Role: m.Role, Content: m.Content})
	}
	r.System = strings.Join(system, "\n\n")

	// Anthropic accepts temperature in [0, 1]
	temperature := a.config.Temperature
	if req.Options.Temperature != nil {
		temperature = *req.Options.Temperature
	}
	if temperature > 1 {
		temperature = 1
	}
	r.Temperature = &temperature

	if req.UserID != "" {
		r.Metadata = &Metadata{UserID: req.UserID}
	}
	return r
}

type MessagesRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	System      string    `json:"system,omitempty"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
	Metadata    *Metadata `json:"metadata,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Metadata struct {
	UserID string `json:"user_id"`
}

type MessagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Model      string         `json:"model"`
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      MessagesUsage  `json:"usage"`
}

type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type MessagesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// PriceTable returns Anthropic list prices in USD per million tokens
func PriceTable() *providers.PriceTable {
	return providers.NewPriceTable(map[string]providers.ModelPrice{
		"claude-3-5-haiku":  providers.NewModelPrice("0.80", "4", "0"),
		"claude-3-haiku":    providers.NewModelPrice("0.25", "1.25", "0"),
		"claude-3-5-sonnet": providers.NewModelPrice("3", "15", "0"),
		"claude-3-7-sonnet": providers.NewModelPrice("3", "15", "0"),
		"claude-sonnet-4":   providers.NewModelPrice("3", "15", "0"),
		"claude-3-opus":     providers.NewModelPrice("15", "75", "0"),
		"claude-opus-4":     providers.NewModelPrice("15", "75", "0"),
	}, "claude-3-5-haiku")
}
