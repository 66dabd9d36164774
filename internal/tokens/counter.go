// Package tokens estimates token counts for providers that do not report usage.
package tokens

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens with tiktoken encodings. Codecs are loaded lazily and cached.
type Counter struct {
	mu     sync.RWMutex
	codecs map[tokenizer.Encoding]tokenizer.Codec
}

// NewCounter creates a new token counter
func NewCounter() *Counter {
	return &Counter{
		codecs: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

// Count returns the number of tokens text encodes to for model.
// It falls back to a 4-characters-per-token estimate when no codec can be loaded.
func (c *Counter) Count(model, text string) int {
	if text == "" {
		return 0
	}

	codec, err := c.codec(EncodingFor(model))
	if err != nil {
		return approximate(text)
	}

	ids, _, err := codec.Encode(text)
	if err != nil {
		return approximate(text)
	}
	return len(ids)
}

// CountAll sums the token counts of several texts
func (c *Counter) CountAll(model string, texts ...string) int {
	total := 0
	for _, text := range texts {
		total += c.Count(model, text)
	}
	return total
}

func (c *Counter) codec(encoding tokenizer.Encoding) (tokenizer.Codec, error) {
	c.mu.RLock()
	if cached, ok := c.codecs[encoding]; ok {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.codecs[encoding] = codec
	c.mu.Unlock()

	return codec, nil
}

// EncodingFor maps a model name to the closest tiktoken encoding.
// Non-OpenAI models (claude, sonar) get cl100k_base, which is close enough for estimates.
func EncodingFor(model string) tokenizer.Encoding {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	default:
		return tokenizer.Cl100kBase
	}
}

func approximate(text string) int {
	n := len(text) / 4
	if n == 0 {
		return 1
	}
	return n
}
