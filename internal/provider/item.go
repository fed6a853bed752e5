package provider

import "encoding/json"

// ResultBatch is one task result returned by the provider. A single request
// may yield several batches.
type ResultBatch struct {
	Items []Item `json:"items"`
}

// Item is a single raw result object. The provider returns several shapes
// for the same logical fields, so every accessor walks an ordered list of
// candidate paths and falls back to a default instead of failing.
type Item map[string]any

// Keyword resolves the keyword string, checking keyword_data.keyword then a
// flat keyword field. The second return is false when neither is present.
func (it Item) Keyword() (string, bool) {
	for _, path := range [][]string{
		{"keyword_data", "keyword"},
		{"keyword"},
	} {
		if val, ok := it.dig(path...); ok {
			if s, ok := val.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// SearchVolume returns the monthly search volume metric, defaulting to 0.
func (it Item) SearchVolume() int64 {
	return int64(it.metric("search_volume"))
}

// CPC returns the cost-per-click metric, defaulting to 0.
func (it Item) CPC() float64 {
	return it.metric("cpc")
}

// Competition returns the competition metric, defaulting to 0.
func (it Item) Competition() float64 {
	return it.metric("competition")
}

// Difficulty returns the keyword difficulty, checking
// keyword_data.keyword_properties.keyword_difficulty then
// ranked_serp_element.keyword_difficulty, defaulting to 0.
func (it Item) Difficulty() int {
	for _, path := range [][]string{
		{"keyword_data", "keyword_properties", "keyword_difficulty"},
		{"ranked_serp_element", "keyword_difficulty"},
	} {
		if val, ok := it.dig(path...); ok {
			if f, ok := asFloat(val); ok {
				return int(f)
			}
		}
	}
	return 0
}

// SERPPosition returns the absolute SERP position from
// ranked_serp_element.serp_item, or nil when absent.
func (it Item) SERPPosition() *int {
	for _, path := range [][]string{
		{"ranked_serp_element", "serp_item", "rank_absolute"},
		{"ranked_serp_element", "serp_item", "rank_group"},
	} {
		if val, ok := it.dig(path...); ok {
			if f, ok := asFloat(val); ok {
				pos := int(f)
				return &pos
			}
		}
	}
	return nil
}

// SERPURL returns the ranking URL from ranked_serp_element.serp_item, or nil.
func (it Item) SERPURL() *string {
	return it.serpString("url")
}

// SERPDomain returns the ranking domain from ranked_serp_element.serp_item, or nil.
func (it Item) SERPDomain() *string {
	return it.serpString("domain")
}

// metric resolves a numeric metric, checking keyword_data.keyword_info.<name>
// then a flat sibling field of the same name, defaulting to 0.
func (it Item) metric(name string) float64 {
	for _, path := range [][]string{
		{"keyword_data", "keyword_info", name},
		{name},
	} {
		if val, ok := it.dig(path...); ok {
			if f, ok := asFloat(val); ok {
				return f
			}
		}
	}
	return 0
}

func (it Item) serpString(field string) *string {
	if val, ok := it.dig("ranked_serp_element", "serp_item", field); ok {
		if s, ok := val.(string); ok && s != "" {
			return &s
		}
	}
	return nil
}

// dig walks nested map[string]any objects along the given path.
func (it Item) dig(path ...string) (any, bool) {
	var cur any = map[string]any(it)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func asFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
