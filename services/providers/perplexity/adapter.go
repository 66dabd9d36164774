// Package perplexity adapts the Perplexity web-search-augmented chat API.
package perplexity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/ai-search-guru/getcito/internal/tokens"
	"github.com/ai-search-guru/getcito/services/providers"
)

const (
	defaultBaseURL = "https://api.perplexity.ai"
	defaultModel   = "sonar"
)

// Config configures the Perplexity adapter
type Config struct {
	providers.ProviderConfig

	// SearchRecencyFilter limits sources to a time window (day, week, month, year)
	SearchRecencyFilter string

	// SearchDomainFilter restricts or excludes (prefix "-") source domains
	SearchDomainFilter []string
}

// Adapter implements the Provider interface for Perplexity
type Adapter struct {
	config  Config
	client  *providers.HTTPClient
	prices  *providers.PriceTable
	counter *tokens.Counter
	logger  *zap.Logger
}

// NewAdapter creates a new Perplexity adapter. httpClient may be nil.
func NewAdapter(config Config, httpClient *http.Client, logger *zap.Logger) *Adapter {
	config.ProviderConfig = config.ProviderConfig.WithDefaults(defaultBaseURL, defaultModel)
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Adapter{
		config:  config,
		client:  providers.NewHTTPClient(providers.KindPerplexity.String(), config.ProviderConfig, httpClient, logger),
		prices:  PriceTable(),
		counter: tokens.NewCounter(),
		logger:  logger,
	}
}

func (a *Adapter) ID() string { return providers.KindPerplexity.String() }

func (a *Adapter) Kind() providers.Kind { return providers.KindPerplexity }

func (a *Adapter) Available() bool { return a.config.APIKey != "" }

func (a *Adapter) Status() providers.ProviderStatus {
	status := providers.BaseStatus(a.Kind(), a.config.ProviderConfig, a.Available())
	status.WebSearch = true
	return status
}

// Execute runs a web-search-augmented chat completion
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

	a.logger.Debug("Perplexity request completed",
		zap.String("request_id", req.ID),
		zap.String("model", data.Model),
		zap.Int("citations", len(data.Citations)),
		zap.Float64("cost", cost),
	)

	return providers.SuccessResult(a.ID(), data, time.Since(start), cost)
}

func (a *Adapter) execute(ctx context.Context, req *providers.APIRequest) (*providers.SearchAnswerData, float64, error) {
	model := a.config.DefaultModel
	if req.Options.Model != "" {
		model = req.Options.Model
	}

	reqBody, err := json.Marshal(a.buildRequest(req, model))
	if err != nil {
		return nil, 0, providers.NewProviderError(a.ID(), providers.ErrCodeInternal, "failed to marshal request", 0, false, err)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+a.config.APIKey)
	for k, v := range a.config.Headers {
		header.Set(k, v)
	}

	respBody, _, err := a.client.Do(ctx, providers.HTTPRequest{
		Method: http.MethodPost,
		URL:    a.config.BaseURL + "/chat/completions",
		Body:   reqBody,
		Header: header,
	})
	if err != nil {
		return nil, 0, err
	}

	var resp ChatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, 0, providers.InvalidResponseError(a.ID(), "failed to unmarshal response", err)
	}
	if resp.Model != "" {
		model = resp.Model
	}

	usage := providers.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	billed := !usage.IsZero()
	cost := func(u providers.Usage) float64 {
		// newer responses report the charged amount directly
		if reported := gjson.GetBytes(respBody, "usage.cost.total_cost"); reported.Exists() {
			return reported.Float()
		}
		return a.prices.Cost(model, u)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		provErr := providers.InvalidResponseError(a.ID(), "response contained no content", nil)
		if billed {
			provErr.WithBilledCost(cost(usage))
		}
		return nil, 0, provErr
	}

	content := resp.Choices[0].Message.Content
	if !billed {
		prompt := a.counter.CountAll(model, req.PromptTexts()...)
		out := a.counter.Count(model, content)
		usage = providers.Usage{PromptTokens: prompt, CompletionTokens: out, TotalTokens: prompt + out, Estimated: true}
	}

	data := &providers.SearchAnswerData{
		Content:       content,
		Model:         model,
		Usage:         usage,
		Citations:     buildCitations(resp.Citations, resp.SearchResults),
		SearchResults: make([]providers.SearchSource, 0, len(resp.SearchResults)),
	}
	for _, sr := range resp.SearchResults {
		data.SearchResults = append(data.SearchResults, providers.SearchSource{Title: sr.Title, URL: sr.URL, Date: sr.Date})
	}

	return data, cost(usage), nil
}

func (a *Adapter) buildRequest(req *providers.APIRequest, model string) *ChatRequest {
	msgs := req.Messages()
	r := &ChatRequest{
		Model:               model,
		Messages:            make([]Message, len(msgs)),
		MaxTokens:           a.config.MaxTokens,
		SearchRecencyFilter: a.config.SearchRecencyFilter,
		SearchDomainFilter:  a.config.SearchDomainFilter,
	}
	for i, m := range msgs {
		r.Messages[i] = Message{Role: m.Role, Content: m.Content}
	}
	if req.Options.MaxTokens > 0 {
		r.MaxTokens = req.Options.MaxTokens
	}

	temperature := a.config.Temperature
	if req.Options.Temperature != nil {
		temperature = *req.Options.Temperature
	}
	r.Temperature = &temperature
	return r
}

// buildCitations pairs the citation URL list with search result titles.
// Responses without a citations list fall back to the search results.
func buildCitations(urls []string, results []SearchResult) []providers.Citation {
	titles := make(map[string]string, len(results))
	for _, r := range results {
		titles[r.URL] = r.Title
	}

	if len(urls) == 0 {
		for _, r := range results {
			urls = append(urls, r.URL)
		}
	}

	seen := make(map[string]bool, len(urls))
	citations := make([]providers.Citation, 0, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		citations = append(citations, providers.Citation{URL: u, Title: titles[u]})
	}
	return citations
}
