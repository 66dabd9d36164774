package providers

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var tokensPerMillion = decimal.NewFromInt(1_000_000)

// ModelPrice is the USD price of one model per million input and output tokens,
// plus an optional fixed fee per request (web search calls bill one).
type ModelPrice struct {
	InputPerMillion  decimal.Decimal
	OutputPerMillion decimal.Decimal
	PerRequest       decimal.Decimal
}

// NewModelPrice parses decimal price strings. It panics on malformed input,
// so it is only meant for static tables.
func NewModelPrice(inputPerMillion, outputPerMillion, perRequest string) ModelPrice {
	return ModelPrice{
		InputPerMillion:  decimal.RequireFromString(inputPerMillion),
		OutputPerMillion: decimal.RequireFromString(outputPerMillion),
		PerRequest:       decimal.RequireFromString(perRequest),
	}
}

// Cost computes the price of the given usage
func (p ModelPrice) Cost(usage Usage) decimal.Decimal {
	input := p.InputPerMillion.Mul(decimal.NewFromInt(int64(usage.PromptTokens))).Div(tokensPerMillion)
	output := p.OutputPerMillion.Mul(decimal.NewFromInt(int64(usage.CompletionTokens))).Div(tokensPerMillion)
	return input.Add(output).Add(p.PerRequest)
}

// PriceTable maps model names to prices. Lookups match exactly first and then by
// the longest registered prefix, so dated snapshots ("gpt-4o-2024-08-06") resolve.
type PriceTable struct {
	prices   map[string]ModelPrice
	prefixes []string
	fallback string
}

// NewPriceTable creates a price table. fallback names the entry used for unknown models.
func NewPriceTable(prices map[string]ModelPrice, fallback string) *PriceTable {
	prefixes := make([]string, 0, len(prices))
	for model := range prices {
		prefixes = append(prefixes, model)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		return len(prefixes[i]) > len(prefixes[j])
	})

	return &PriceTable{
		prices:   prices,
		prefixes: prefixes,
		fallback: fallback,
	}
}

// Lookup returns the price for model
func (t *PriceTable) Lookup(model string) (ModelPrice, bool) {
	model = strings.ToLower(model)
	if price, ok := t.prices[model]; ok {
		return price, true
	}
	for _, prefix := range t.prefixes {
		if strings.HasPrefix(model, prefix) {
			return t.prices[prefix], true
		}
	}
	price, ok := t.prices[t.fallback]
	return price, ok
}

// Cost returns the USD cost of usage on model. Unknown models without a fallback cost 0.
func (t *PriceTable) Cost(model string, usage Usage) float64 {
	price, ok := t.Lookup(model)
	if !ok {
		return 0
	}
	return price.Cost(usage).InexactFloat64()
}
