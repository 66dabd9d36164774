// Package dataforseo adapts the DataForSEO Google organic SERP API.
package dataforseo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/ai-search-guru/getcito/services/providers"
)

const (
	defaultBaseURL  = "https://api.dataforseo.com"
	serpPath        = "/v3/serp/google/organic/live/advanced"
	statusOK        = 20000
	defaultLocation = "United States"
	defaultLanguage = "en"
	defaultDevice   = "desktop"
	defaultDepth    = 10
)

var defaultFlatRate = decimal.RequireFromString("0.002")

// Config configures the DataForSEO adapter
type Config struct {
	providers.ProviderConfig

	// Login and Password are the API credentials. APIKey may carry "login:password" instead.
	Login    string
	Password string

	Location string
	Language string
	Device   string
	Depth    int

	// FlatRate is charged per call when the response does not report its cost
	FlatRate decimal.Decimal
}

// Adapter implements the Provider interface for DataForSEO
type Adapter struct {
	config Config
	client *providers.HTTPClient
	logger *zap.Logger
}

// NewAdapter creates a new DataForSEO adapter. httpClient may be nil.
func NewAdapter(config Config, httpClient *http.Client, logger *zap.Logger) *Adapter {
	config.ProviderConfig = config.ProviderConfig.WithDefaults(defaultBaseURL, "")
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Login == "" && config.Password == "" && config.APIKey != "" {
		config.Login, config.Password, _ = strings.Cut(config.APIKey, ":")
	}
	if config.Location == "" {
		config.Location = defaultLocation
	}
	if config.Language == "" {
		config.Language = defaultLanguage
	}
	if config.Device == "" {
		config.Device = defaultDevice
	}
	if config.Depth <= 0 {
		config.Depth = defaultDepth
	}
	if config.FlatRate.IsZero() {
		config.FlatRate = defaultFlatRate
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Adapter{
		config: config,
		client: providers.NewHTTPClient(providers.KindDataForSEO.String(), config.ProviderConfig, httpClient, logger),
		logger: logger,
	}
}

func (a *Adapter) ID() string { return providers.KindDataForSEO.String() }

func (a *Adapter) Kind() providers.Kind { return providers.KindDataForSEO }

// Available reports whether both login and password are configured
func (a *Adapter) Available() bool {
	return a.config.Login != "" && a.config.Password != ""
}

func (a *Adapter) Status() providers.ProviderStatus {
	return providers.BaseStatus(a.Kind(), a.config.ProviderConfig, a.Available())
}

// Execute fetches the live organic SERP for the request keyword
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

	a.logger.Debug("DataForSEO request completed",
		zap.String("request_id", req.ID),
		zap.String("keyword", data.Keyword),
		zap.Int("items", data.ItemsCount),
		zap.Float64("cost", cost),
	)

	return providers.SuccessResult(a.ID(), data, time.Since(start), cost)
}

// Task builds the SERP task for a request. An empty keyword falls back to the prompt.
func (a *Adapter) Task(req *providers.APIRequest) SERPTask {
	task := SERPTask{
		Keyword:      strings.TrimSpace(req.Search.Keyword),
		LocationName: a.config.Location,
		LanguageCode: a.config.Language,
		Device:       a.config.Device,
		Depth:        a.config.Depth,
	}
	if task.Keyword == "" {
		task.Keyword = strings.TrimSpace(req.Prompt)
	}
	if req.Search.Location != "" {
		task.LocationName = req.Search.Location
	}
	if req.Search.Language != "" {
		task.LanguageCode = req.Search.Language
	}
	if req.Search.Device != "" {
		task.Device = req.Search.Device
	}
	if req.Search.Depth > 0 {
		task.Depth = req.Search.Depth
	}
	return task
}

func (a *Adapter) execute(ctx context.Context, req *providers.APIRequest) (*providers.SERPData, float64, error) {
	task := a.Task(req)
	if task.Keyword == "" {
		return nil, 0, providers.NewProviderError(a.ID(), providers.ErrCodeBadRequest, "keyword is required", 0, false, nil)
	}

	reqBody, err := json.Marshal([]SERPTask{task})
	if err != nil {
		return nil, 0, providers.NewProviderError(a.ID(), providers.ErrCodeInternal, "failed to marshal request", 0, false, err)
	}

	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(a.config.Login+":"+a.config.Password)))
	for k, v := range a.config.Headers {
		header.Set(k, v)
	}

	respBody, _, err := a.client.Do(ctx, providers.HTTPRequest{
		Method: http.MethodPost,
		URL:    a.config.BaseURL + serpPath,
		Body:      reqBody,
		Header:    header,
		CheckBody: a.checkStatus,
	})
	if err != nil {
		return nil, 0, err
	}

	if !gjson.ValidBytes(respBody) {
		return nil, 0, providers.InvalidResponseError(a.ID(), "response is not valid JSON", nil)
	}
	return a.parse(gjson.ParseBytes(respBody), task)
}

// checkStatus reports non-20000 envelope or task status codes so the transport
// can retry the transient ones
func (a *Adapter) checkStatus(body []byte) *providers.ProviderError {
	if !gjson.ValidBytes(body) {
		return nil
	}
	resp := gjson.ParseBytes(body)
	if code := int(resp.Get("status_code").Int()); code != statusOK {
		return a.statusError(code, resp.Get("status_message").String(), 0)
	}
	task := resp.Get("tasks.0")
	if !task.Exists() {
		return nil
	}
	if code := int(task.Get("status_code").Int()); code != statusOK {
		var billed float64
		if task.Get("cost").Float() > 0 {
			billed = a.cost(resp, task)
		}
		return a.statusError(code, task.Get("status_message").String(), billed)
	}
	return nil
}

// parse normalizes the response envelope. Non-20000 status codes at the top or
// task level are provider-reported errors, classified like HTTP statuses.
func (a *Adapter) parse(resp gjson.Result, task SERPTask) (*providers.SERPData, float64, error) {
	if code := int(resp.Get("status_code").Int()); code != statusOK {
		return nil, 0, a.statusError(code, resp.Get("status_message").String(), 0)
	}

	taskResult := resp.Get("tasks.0")
	if !taskResult.Exists() {
		return nil, 0, providers.InvalidResponseError(a.ID(), "response contained no tasks", nil)
	}

	cost := a.cost(resp, taskResult)

	// failed tasks only carry a cost when DataForSEO reports one
	var billed float64
	if taskResult.Get("cost").Float() > 0 {
		billed = cost
	}
	if code := int(taskResult.Get("status_code").Int()); code != statusOK {
		return nil, 0, a.statusError(code, taskResult.Get("status_message").String(), billed)
	}

	result := taskResult.Get("result.0")
	if !result.Exists() {
		return nil, 0, providers.InvalidResponseError(a.ID(), "task contained no result", nil).WithBilledCost(billed)
	}

	data := &providers.SERPData{
		Keyword:         firstNonEmpty(result.Get("keyword").String(), task.Keyword),
		Location:        task.LocationName,
		Language:        firstNonEmpty(result.Get("language_code").String(), task.LanguageCode),
		Device:          task.Device,
		OrganicResults:  []providers.OrganicResult{},
		PeopleAlsoAsk:   []providers.PeopleAlsoAskItem{},
		RelatedSearches: []string{},
	}

	items := result.Get("items")
	items.ForEach(func(_, item gjson.Result) bool {
		switch item.Get("type").String() {
		case "organic":
			data.OrganicResults = append(data.OrganicResults, parseOrganic(item))
		case "people_also_ask":
			data.PeopleAlsoAsk = append(data.PeopleAlsoAsk, parsePeopleAlsoAsk(item)...)
		case "related_searches":
			item.Get("items").ForEach(func(_, s gjson.Result) bool {
				if s.String() != "" {
					data.RelatedSearches = append(data.RelatedSearches, s.String())
				}
				return true
			})
		case "ai_overview":
			if overview := parseAIOverview(item); overview != nil {
				data.AIOverview = overview
			}
		}
		return true
	})

	data.UpdateCounts()
	data.ItemsCount = len(items.Array())
	if n := int(result.Get("items_count").Int()); n > 0 {
		data.ItemsCount = n
	}

	return data, cost, nil
}

// cost prefers the task cost, then the envelope cost, then the flat rate
func (a *Adapter) cost(resp, task gjson.Result) float64 {
	for _, v := range []gjson.Result{task.Get("cost"), resp.Get("cost")} {
		if v.Exists() && v.Float() > 0 {
			return v.Float()
		}
	}
	return a.config.FlatRate.InexactFloat64()
}

func (a *Adapter) statusError(code int, message string, billed float64) *providers.ProviderError {
	errCode, retryable := providers.ClassifyHTTPStatus(code / 100)
	if message == "" {
		message = "unknown error"
	}
	return providers.NewProviderError(a.ID(), errCode, fmt.Sprintf("dataforseo status %d: %s", code, message), http.StatusOK, retryable, nil).
		WithBilledCost(billed)
}

func parseOrganic(item gjson.Result) providers.OrganicResult {
	rank := int(item.Get("rank_group").Int())
	if rank == 0 {
		rank = int(item.Get("rank_absolute").Int())
	}
	return providers.OrganicResult{
		Rank:        rank,
		Title:       item.Get("title").String(),
		URL:         item.Get("url").String(),
		Domain:      item.Get("domain").String(),
		Description: item.Get("description").String(),
	}
}

func parsePeopleAlsoAsk(item gjson.Result) []providers.PeopleAlsoAskItem {
	var out []providers.PeopleAlsoAskItem
	item.Get("items").ForEach(func(_, el gjson.Result) bool {
		q := providers.PeopleAlsoAskItem{Question: el.Get("title").String()}
		if expanded := el.Get("expanded_element.0"); expanded.Exists() {
			q.Answer = firstNonEmpty(expanded.Get("description").String(), expanded.Get("text").String())
			q.URL = expanded.Get("url").String()
		}
		if q.Question != "" {
			out = append(out, q)
		}
		return true
	})
	return out
}

func parseAIOverview(item gjson.Result) *providers.AIOverview {
	var (
		texts []string
		refs  []providers.Citation
		seen  = make(map[string]bool)
	)
	addRefs := func(list gjson.Result) {
		list.ForEach(func(_, ref gjson.Result) bool {
			url := ref.Get("url").String()
			if url != "" && !seen[url] {
				seen[url] = true
				refs = append(refs, providers.Citation{URL: url, Title: firstNonEmpty(ref.Get("title").String(), ref.Get("source").String())})
			}
			return true
		})
	}

	item.Get("items").ForEach(func(_, el gjson.Result) bool {
		if text := firstNonEmpty(el.Get("text").String(), el.Get("markdown").String()); text != "" {
			texts = append(texts, text)
		}
		addRefs(el.Get("references"))
		return true
	})
	addRefs(item.Get("references"))

	if text := item.Get("text").String(); len(texts) == 0 && text != "" {
		texts = append(texts, text)
	}
	if len(texts) == 0 && len(refs) == 0 {
		return nil
	}
	return &providers.AIOverview{Text: strings.Join(texts, "\n"), References: refs}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// SERPTask is one task in the live/advanced request array
type SERPTask struct {
	Keyword      string `json:"keyword"`
	LocationName string `json:"location_name"`
	LanguageCode string `json:"language_code"`
	Device       string `json:"device"`
	Depth        int    `json:"depth,omitempty"`
}
