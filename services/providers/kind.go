package providers

import "strings"

// Kind identifies one of the provider families the manager can dispatch to.
// The set is closed: adding a provider means adding a Kind and an adapter.
type Kind string

const (
	// KindOpenAI is the chat-completion provider, optionally web-search augmented
	KindOpenAI Kind = "openai"

	// KindPerplexity is the web-search-augmented answer engine
	KindPerplexity Kind = "perplexity"

	// KindDataForSEO is the search-engine-results provider
	KindDataForSEO Kind = "dataforseo"

	// KindAnthropic is the secondary chat-completion answer engine
	KindAnthropic Kind = "anthropic"
)

// Family groups kinds by the shape of request they accept and data they return
type Family string

const (
	FamilyChat          Family = "chat"
	FamilyWebSearchChat Family = "web_search_chat"
	FamilySearchEngine  Family = "search_engine"
)

var knownKinds = []Kind{KindOpenAI, KindPerplexity, KindDataForSEO, KindAnthropic}

// AllKinds returns every known provider kind in canonical order
func AllKinds() []Kind {
	kinds := make([]Kind, len(knownKinds))
	copy(kinds, knownKinds)
	return kinds
}

// ParseKind maps a provider id to its Kind. Matching is case-insensitive.
func ParseKind(id string) (Kind, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(id)))
	for _, k := range knownKinds {
		if k == normalized {
			return k, true
		}
	}
	return "", false
}

// String returns the provider id
func (k Kind) String() string {
	return string(k)
}

// Family returns the provider family of the kind
func (k Kind) Family() Family {
	switch k {
	case KindPerplexity:
		return FamilyWebSearchChat
	case KindDataForSEO:
		return FamilySearchEngine
	default:
		return FamilyChat
	}
}

// DisplayName returns a human-readable provider name
func (k Kind) DisplayName() string {
	switch k {
	case KindOpenAI:
		return "ChatGPT"
	case KindPerplexity:
		return "Perplexity"
	case KindDataForSEO:
		return "Google Search (DataForSEO)"
	case KindAnthropic:
		return "Claude"
	default:
		return string(k)
	}
}
