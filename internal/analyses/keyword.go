package analyses

import "time"

const (
	KeywordTypeRanked     = "ranked"
	KeywordTypeSuggestion = "suggestion"
)

// Keyword is one normalized keyword record tied to an Analysis. Records are
// bulk-inserted once at the end of a successful run and never mutated.
type Keyword struct {
	ID           string    `json:"id"`
	AnalysisID   string    `json:"analysisId"`
	Keyword      string    `json:"keyword"`
	Type         string    `json:"type"`
	SearchVolume int64     `json:"searchVolume"`
	CPC          float64   `json:"cpc"`
	Competition  float64   `json:"competition"`
	Difficulty   int       `json:"difficulty"`
	Position     *int      `json:"position,omitempty"`
	URL          *string   `json:"url,omitempty"`
	Domain       *string   `json:"domain,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
