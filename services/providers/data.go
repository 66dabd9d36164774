package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// DataType discriminates ProviderData variants on the wire
type DataType string

const (
	DataTypeChat         DataType = "chat"
	DataTypeSearchAnswer DataType = "search_answer"
	DataTypeSERP         DataType = "serp"
)

// ProviderData is the normalized payload of a successful provider call.
// Implementations are *ChatData, *SearchAnswerData and *SERPData.
type ProviderData interface {
	// Type returns the variant discriminator
	Type() DataType

	// Text returns the textual response
	Text() string

	// Metadata returns response metadata (model, usage, counts)
	Metadata() map[string]any
}

// Citation is a source a provider attached to a generated answer
type Citation struct {
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	StartIndex int    `json:"startIndex,omitempty"`
	EndIndex   int    `json:"endIndex,omitempty"`
}

// ChatData is returned by chat-completion providers
type ChatData struct {
	Content      string     `json:"content"`
	Model        string     `json:"model"`
	FinishReason string     `json:"finishReason,omitempty"`
	Usage        Usage      `json:"usage"`
	Citations    []Citation `json:"citations,omitempty"`
	WebSearch    bool       `json:"webSearch"`
}

func (d *ChatData) Type() DataType { return DataTypeChat }

func (d *ChatData) Text() string { return d.Content }

func (d *ChatData) Metadata() map[string]any {
	return map[string]any{
		"model":         d.Model,
		"finishReason":  d.FinishReason,
		"usage":         d.Usage,
		"webSearch":     d.WebSearch,
		"citationCount": len(d.Citations),
	}
}

// MarshalJSON adds the type discriminator
func (d ChatData) MarshalJSON() ([]byte, error) {
	type alias ChatData
	return json.Marshal(struct {
		Type DataType `json:"type"`
		alias
	}{DataTypeChat, alias(d)})
}

// SearchSource is one search result a web-search provider consulted
type SearchSource struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url"`
	Date  string `json:"date,omitempty"`
}

// SearchAnswerData is returned by web-search-augmented chat providers
type SearchAnswerData struct {
	Content       string         `json:"content"`
	Model         string         `json:"model"`
	Usage         Usage          `json:"usage"`
	Citations     []Citation     `json:"citations,omitempty"`
	SearchResults []SearchSource `json:"searchResults,omitempty"`
}

func (d *SearchAnswerData) Type() DataType { return DataTypeSearchAnswer }

func (d *SearchAnswerData) Text() string { return d.Content }

func (d *SearchAnswerData) Metadata() map[string]any {
	return map[string]any{
		"model":             d.Model,
		"usage":             d.Usage,
		"citationCount":     len(d.Citations),
		"searchResultCount": len(d.SearchResults),
	}
}

// MarshalJSON adds the type discriminator
func (d SearchAnswerData) MarshalJSON() ([]byte, error) {
	type alias SearchAnswerData
	return json.Marshal(struct {
		Type DataType `json:"type"`
		alias
	}{DataTypeSearchAnswer, alias(d)})
}

// OrganicResult is one organic search listing
type OrganicResult struct {
	Rank        int    `json:"rank"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Domain      string `json:"domain,omitempty"`
	Description string `json:"description,omitempty"`
}

// PeopleAlsoAskItem is one "people also ask" entry
type PeopleAlsoAskItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	URL      string `json:"url,omitempty"`
}

// AIOverview is the AI-generated summary block some result pages carry
type AIOverview struct {
	Text       string     `json:"text"`
	References []Citation `json:"references,omitempty"`
}

// SERPData is returned by search-engine-results providers
type SERPData struct {
	Keyword              string              `json:"keyword"`
	Location             string              `json:"location,omitempty"`
	Language             string              `json:"language,omitempty"`
	Device               string              `json:"device,omitempty"`
	OrganicResults       []OrganicResult     `json:"organicResults"`
	PeopleAlsoAsk        []PeopleAlsoAskItem `json:"peopleAlsoAsk"`
	RelatedSearches      []string            `json:"relatedSearches"`
	AIOverview           *AIOverview         `json:"aiOverview,omitempty"`
	OrganicCount         int                 `json:"organicCount"`
	PeopleAlsoAskCount   int                 `json:"peopleAlsoAskCount"`
	RelatedSearchesCount int                 `json:"relatedSearchesCount"`
	HasAIOverview        bool                `json:"hasAiOverview"`
	ItemsCount           int                 `json:"itemsCount"`
}

func (d *SERPData) Type() DataType { return DataTypeSERP }

// Text returns the AI overview when present, otherwise a listing of the organic titles
func (d *SERPData) Text() string {
	if d.AIOverview != nil && d.AIOverview.Text != "" {
		return d.AIOverview.Text
	}
	var b strings.Builder
	for _, r := range d.OrganicResults {
		fmt.Fprintf(&b, "%d. %s - %s\n", r.Rank, r.Title, r.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (d *SERPData) Metadata() map[string]any {
	return map[string]any{
		"keyword":              d.Keyword,
		"location":             d.Location,
		"language":             d.Language,
		"device":               d.Device,
		"organicCount":         d.OrganicCount,
		"peopleAlsoAskCount":   d.PeopleAlsoAskCount,
		"relatedSearchesCount": d.RelatedSearchesCount,
		"hasAiOverview":        d.HasAIOverview,
		"itemsCount":           d.ItemsCount,
	}
}

// UpdateCounts recomputes the count fields from the typed sub-fields
func (d *SERPData) UpdateCounts() {
	d.OrganicCount = len(d.OrganicResults)
	d.PeopleAlsoAskCount = len(d.PeopleAlsoAsk)
	d.RelatedSearchesCount = len(d.RelatedSearches)
	d.HasAIOverview = d.AIOverview != nil
}

// MarshalJSON adds the type discriminator
func (d SERPData) MarshalJSON() ([]byte, error) {
	type alias SERPData
	return json.Marshal(struct {
		Type DataType `json:"type"`
		alias
	}{DataTypeSERP, alias(d)})
}

// DecodeProviderData decodes a serialized variant using its "type" field
func DecodeProviderData(raw []byte) (ProviderData, error) {
	var data ProviderData
	switch t := DataType(gjson.GetBytes(raw, "type").String()); t {
	case DataTypeChat:
		data = &ChatData{}
	case DataTypeSearchAnswer:
		data = &SearchAnswerData{}
	case DataTypeSERP:
		data = &SERPData{}
	default:
		return nil, fmt.Errorf("unknown provider data type %q", t)
	}

	if err := json.Unmarshal(raw, data); err != nil {
		return nil, err
	}
	return data, nil
}
