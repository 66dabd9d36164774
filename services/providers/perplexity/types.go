package perplexity

import "github.com/ai-search-guru/getcito/services/providers"

type ChatRequest struct {
	Model               string    `json:"model"`
	Messages            []Message `json:"messages"`
	MaxTokens           int       `json:"max_tokens,omitempty"`
	Temperature         *float64  `json:"temperature,omitempty"`
	SearchRecencyFilter string    `json:"search_recency_filter,omitempty"`
	SearchDomainFilter  []string  `json:"search_domain_filter,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	ID            string         `json:"id"`
	Model         string         `json:"model"`
	Created       int64          `json:"created"`
	Choices       []Choice       `json:"choices"`
	Usage         Usage          `json:"usage"`
	Citations     []string       `json:"citations"`
	SearchResults []SearchResult `json:"search_results"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Date  string `json:"date,omitempty"`
}

// PriceTable returns Perplexity prices in USD per million tokens plus the
// per-request search fee at the default context size
func PriceTable() *providers.PriceTable {
	return providers.NewPriceTable(map[string]providers.ModelPrice{
		"sonar":               providers.NewModelPrice("1", "1", "0.005"),
		"sonar-pro":           providers.NewModelPrice("3", "15", "0.006"),
		"sonar-reasoning":     providers.NewModelPrice("1", "5", "0.005"),
		"sonar-reasoning-pro": providers.NewModelPrice("2", "8", "0.006"),
		"sonar-deep-research": providers.NewModelPrice("2", "8", "0.005"),
	}, defaultModel)
}
