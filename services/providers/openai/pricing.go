package openai

import "github.com/ai-search-guru/getcito/services/providers"

// PriceTable returns OpenAI list prices in USD per million tokens
func PriceTable() *providers.PriceTable {
	return providers.NewPriceTable(map[string]providers.ModelPrice{
		"gpt-4o":        providers.NewModelPrice("2.50", "10.00", "0"),
		"gpt-4o-mini":   providers.NewModelPrice("0.15", "0.60", "0"),
		"gpt-4.1":       providers.NewModelPrice("2.00", "8.00", "0"),
		"gpt-4.1-mini":  providers.NewModelPrice("0.40", "1.60", "0"),
		"gpt-4.1-nano":  providers.NewModelPrice("0.10", "0.40", "0"),
		"gpt-4-turbo":   providers.NewModelPrice("10.00", "30.00", "0"),
		"gpt-4":         providers.NewModelPrice("30.00", "60.00", "0"),
		"gpt-3.5-turbo": providers.NewModelPrice("0.50", "1.50", "0"),
		"o3-mini":       providers.NewModelPrice("1.10", "4.40", "0"),
	}, defaultModel)
}
