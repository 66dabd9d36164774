package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/ai-search-guru/getcito/services/providers"
)

// webSearchCallPrice is billed per web_search_call in a response
var webSearchCallPrice = decimal.RequireFromString("0.025")

// respond calls POST /responses with the web search tool and keeps url_citation annotations
func (a *Adapter) respond(ctx context.Context, req *providers.APIRequest) (*providers.ChatData, float64, error) {
	model := a.model(req)

	reqBody, err := json.Marshal(a.buildResponsesRequest(req, model))
	if err != nil {
		return nil, 0, providers.NewProviderError(a.ID(), providers.ErrCodeInternal, "failed to marshal request", 0, false, err)
	}

	respBody, _, err := a.client.Do(ctx, providers.HTTPRequest{
		Method: http.MethodPost,
		URL:    a.config.BaseURL + "/responses",
		Body:   reqBody,
		Header: a.headers(),
	})
	if err != nil {
		return nil, 0, err
	}

	if !gjson.ValidBytes(respBody) {
		return nil, 0, providers.InvalidResponseError(a.ID(), "response is not valid JSON", nil)
	}
	resp := gjson.ParseBytes(respBody)

	if m := resp.Get("model").String(); m != "" {
		model = m
	}
	usage := providers.Usage{
		PromptTokens:     int(resp.Get("usage.input_tokens").Int()),
		CompletionTokens: int(resp.Get("usage.output_tokens").Int()),
		TotalTokens:      int(resp.Get("usage.total_tokens").Int()),
	}
	searchCalls := len(resp.Get(`output.#(type=="web_search_call")#`).Array())
	cost := func(u providers.Usage) float64 {
		price, ok := a.prices.Lookup(model)
		total := webSearchCallPrice.Mul(decimal.NewFromInt(int64(searchCalls)))
		if ok {
			total = total.Add(price.Cost(u))
		}
		return total.InexactFloat64()
	}

	if status := resp.Get("status").String(); status == "failed" {
		msg := resp.Get("error.message").String()
		if msg == "" {
			msg = "response failed"
		}
		provErr := providers.NewProviderError(a.ID(), providers.ErrCodeProviderError, msg, http.StatusOK, false, nil)
		if !usage.IsZero() {
			provErr.WithBilledCost(cost(usage))
		}
		return nil, 0, provErr
	}

	content, citations := extractOutputText(resp)
	if strings.TrimSpace(content) == "" {
		provErr := providers.InvalidResponseError(a.ID(), "response contained no output text", nil)
		if !usage.IsZero() {
			provErr.WithBilledCost(cost(usage))
		}
		return nil, 0, provErr
	}

	if usage.IsZero() {
		usage = a.estimateUsage(model, req, content)
	}

	data := &providers.ChatData{
		Content:      content,
		Model:        model,
		FinishReason: resp.Get("status").String(),
		Usage:        usage,
		Citations:    citations,
		WebSearch:    true,
	}
	return data, cost(usage), nil
}

func (a *Adapter) buildResponsesRequest(req *providers.APIRequest, model string) *ResponsesRequest {
	r := &ResponsesRequest{
		Model:           model,
		Tools:           []ResponsesTool{{Type: "web_search_preview", SearchContextSize: a.config.SearchContextSize}},
		MaxOutputTokens: a.maxTokens(req),
		User:            req.UserID,
	}

	if len(req.Options.Messages) > 0 {
		msgs := make([]ChatMessage, len(req.Options.Messages))
		for i, m := range req.Options.Messages {
			msgs[i] = ChatMessage{Role: m.Role, Content: m.Content}
		}
		r.Input = msgs
	} else {
		r.Input = req.Prompt
		r.Instructions = req.Options.SystemPrompt
	}

	if req.Options.Temperature != nil {
		r.Temperature = req.Options.Temperature
	}
	return r
}

// extractOutputText joins every output_text part of the message items and
// collects their url_citation annotations, de-duplicated by URL
func extractOutputText(resp gjson.Result) (string, []providers.Citation) {
	var (
		parts     []string
		citations []providers.Citation
		seen      = make(map[string]bool)
	)

	resp.Get(`output.#(type=="message")#.content`).ForEach(func(_, contents gjson.Result) bool {
		contents.ForEach(func(_, part gjson.Result) bool {
			if part.Get("type").String() != "output_text" {
				return true
			}
			parts = append(parts, part.Get("text").String())

			part.Get("annotations").ForEach(func(_, ann gjson.Result) bool {
				url := ann.Get("url").String()
				if ann.Get("type").String() != "url_citation" || url == "" || seen[url] {
					return true
				}
				seen[url] = true
				citations = append(citations, providers.Citation{
					URL:        url,
					Title:      ann.Get("title").String(),
					StartIndex: int(ann.Get("start_index").Int()),
					EndIndex:   int(ann.Get("end_index").Int()),
				})
				return true
			})
			return true
		})
		return true
	})

	return strings.Join(parts, "\n"), citations
}
