package openai

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
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
)

// Config configures the OpenAI adapter
type Config struct {
	providers.ProviderConfig

	// Organization is sent as the OpenAI-Organization header when set
	Organization string

	// WebSearch routes requests through the Responses API with the web search tool
	WebSearch bool

	// SearchContextSize is low, medium or high
	SearchContextSize string
}

// Adapter implements the Provider interface for OpenAI
type Adapter struct {
	config  Config
	client  *providers.HTTPClient
	prices  *providers.PriceTable
	counter *tokens.Counter
	logger  *zap.Logger
}

// NewAdapter creates a new OpenAI adapter. httpClient may be nil.
func NewAdapter(config Config, httpClient *http.Client, logger *zap.Logger) *Adapter {
	config.ProviderConfig = config.ProviderConfig.WithDefaults(defaultBaseURL, defaultModel)
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.SearchContextSize == "" {
		config.SearchContextSize = "medium"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Adapter{
		config:  config,
		client:  providers.NewHTTPClient(providers.KindOpenAI.String(), config.ProviderConfig, httpClient, logger),
		prices:  PriceTable(),
		counter: tokens.NewCounter(),
		logger:  logger,
	}
}

// ID returns the provider id
func (a *Adapter) ID() string {
	return providers.KindOpenAI.String()
}

// Kind returns the provider kind
func (a *Adapter) Kind() providers.Kind {
	return providers.KindOpenAI
}

// Available reports whether an API key is configured
func (a *Adapter) Available() bool {
	return a.config.APIKey != ""
}

// Status returns a configuration snapshot
func (a *Adapter) Status() providers.ProviderStatus {
	status := providers.BaseStatus(a.Kind(), a.config.ProviderConfig, a.Available())
	status.WebSearch = a.config.WebSearch
	return status
}

// Execute performs a chat completion, or a web-search response when enabled
func (a *Adapter) Execute(ctx context.Context, req *providers.APIRequest) *providers.ProviderResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	var (
		data *providers.ChatData
		cost float64
		err  error
	)
	if a.webSearch(req) {
		data, cost, err = a.respond(ctx, req)
	} else {
		data, cost, err = a.chatCompletion(ctx, req)
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = providers.TimeoutError(a.ID(), a.config.Timeout, err)
		}
		return providers.ErrorResult(a.ID(), err, time.Since(start))
	}

	a.logger.Debug("OpenAI request completed",
		zap.String("request_id", req.ID),
		zap.String("model", data.Model),
		zap.Bool("web_search", data.WebSearch),
		zap.Int("total_tokens", data.Usage.TotalTokens),
		zap.Float64("cost", cost),
	)

	return providers.SuccessResult(a.ID(), data, time.Since(start), cost)
}

func (a *Adapter) webSearch(req *providers.APIRequest) bool {
	if req.Options.WebSearch != nil {
		return *req.Options.WebSearch
	}
	return a.config.WebSearch
}

func (a *Adapter) model(req *providers.APIRequest) string {
	if req.Options.Model != "" {
		return req.Options.Model
	}
	return a.config.DefaultModel
}

func (a *Adapter) maxTokens(req *providers.APIRequest) int {
	if req.Options.MaxTokens > 0 {
		return req.Options.MaxTokens
	}
	return a.config.MaxTokens
}

func (a *Adapter) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+a.config.APIKey)
	if a.config.Organization != "" {
		h.Set("OpenAI-Organization", a.config.Organization)
	}
	for k, v := range a.config.Headers {
		h.Set(k, v)
	}
	return h
}

// chatCompletion calls POST /chat/completions
func (a *Adapter) chatCompletion(ctx context.Context, req *providers.APIRequest) (*providers.ChatData, float64, error) {
	model := a.model(req)
	openaiReq := a.buildChatRequest(req, model)

	reqBody, err := json.Marshal(openaiReq)
	if err != nil {
		return nil, 0, providers.NewProviderError(a.ID(), providers.ErrCodeInternal, "failed to marshal request", 0, false, err)
	}

	respBody, _, err := a.client.Do(ctx, providers.HTTPRequest{
		Method: http.MethodPost,
		URL:    a.config.BaseURL + "/chat/completions",
		Body:   reqBody,
		Header: a.headers(),
	})
	if err != nil {
		return nil, 0, err
	}

	var openaiResp ChatCompletionResponse
	if err := json.Unmarshal(respBody, &openaiResp); err != nil {
		return nil, 0, providers.InvalidResponseError(a.ID(), "failed to unmarshal response", err)
	}

	if openaiResp.Model != "" {
		model = openaiResp.Model
	}
	usage := openaiResp.Usage.toUsage()
	billed := !usage.IsZero()

	if len(openaiResp.Choices) == 0 || strings.TrimSpace(openaiResp.Choices[0].Message.Content) == "" {
		provErr := providers.InvalidResponseError(a.ID(), "response contained no content", nil)
		if billed {
			provErr.WithBilledCost(a.prices.Cost(model, usage))
		}
		return nil, 0, provErr
	}

	choice := openaiResp.Choices[0]
	if !billed {
		usage = a.estimateUsage(model, req, choice.Message.Content)
	}

	data := &providers.ChatData{
		Content:      choice.Message.Content,
		Model:        model,
		FinishReason: choice.FinishReason,
		Usage:        usage,
	}
	return data, a.prices.Cost(model, usage), nil
}

func (a *Adapter) buildChatRequest(req *providers.APIRequest, model string) *ChatCompletionRequest {
	msgs := req.Messages()
	openaiReq := &ChatCompletionRequest{
		Model:    model,
		Messages: make([]ChatMessage, len(msgs)),
	}
	for i, msg := range msgs {
		openaiReq.Messages[i] = ChatMessage{Role: msg.Role, Content: msg.Content}
	}

	maxTokens := a.maxTokens(req)
	openaiReq.MaxTokens = &maxTokens

	temperature := a.config.Temperature
	if req.Options.Temperature != nil {
		temperature = *req.Options.Temperature
	}
	openaiReq.Temperature = &temperature

	if req.UserID != "" {
		openaiReq.User = req.UserID
	}
	return openaiReq
}

// estimateUsage counts tokens locally when the response carries no usage block
func (a *Adapter) estimateUsage(model string, req *providers.APIRequest, completion string) providers.Usage {
	prompt := a.counter.CountAll(model, req.PromptTexts()...)
	out := a.counter.Count(model, completion)
	return providers.Usage{
		PromptTokens:     prompt,
		CompletionTokens: out,
		TotalTokens:      prompt + out,
		Estimated:        true,
	}
}
