package providers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPriceTable(t *testing.T) {
	table := NewPriceTable(map[string]ModelPrice{
		"gpt-4o":      NewModelPrice("2.50", "10.00", "0"),
		"gpt-4o-mini": NewModelPrice("0.15", "0.60", "0"),
		"sonar":       NewModelPrice("1", "1", "0.005"),
	}, "gpt-4o-mini")

	usage := Usage{PromptTokens: 1_000_000, CompletionTokens: 500_000}

	t.Run("exact match", func(t *testing.T) {
		assert.Equal(t, 7.5, table.Cost("gpt-4o", usage))
	})

	t.Run("longest prefix wins", func(t *testing.T) {
		price, ok := table.Lookup("gpt-4o-mini-2024-07-18")
		assert.True(t, ok)
		assert.True(t, price.InputPerMillion.Equal(decimal.RequireFromString("0.15")))
	})

	t.Run("per request fee", func(t *testing.T) {
		assert.Equal(t, 0.005+0.00002, table.Cost("sonar", Usage{PromptTokens: 10, CompletionTokens: 10}))
	})

	t.Run("unknown model uses fallback", func(t *testing.T) {
		assert.Equal(t, table.Cost("gpt-4o-mini", usage), table.Cost("some-new-model", usage))
	})

	t.Run("no fallback costs zero", func(t *testing.T) {
		empty := NewPriceTable(map[string]ModelPrice{}, "")
		assert.Zero(t, empty.Cost("gpt-4o", usage))
	})
}

func TestModelPrice_CostIsExact(t *testing.T) {
	price := NewModelPrice("0.15", "0.60", "0")
	cost := price.Cost(Usage{PromptTokens: 3, CompletionTokens: 7})

	// 3*0.15/1e6 + 7*0.60/1e6
	assert.True(t, cost.Equal(decimal.RequireFromString("0.00000465")))
}
