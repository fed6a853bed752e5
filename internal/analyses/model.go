package analyses

import (
	"encoding/json"
	"time"

	"keyword-backend/internal/extract"
)

// Analysis represents one keyword-analysis job for a website.
type Analysis struct {
	ID                string            `json:"id"`
	OwnerID           string            `json:"ownerId"`
	WebsiteID         string            `json:"websiteId"`
	Status            string            `json:"status"`
	Progress          int               `json:"progress"`
	Country           string            `json:"country"`
	Language          string            `json:"language"`
	Limit             int               `json:"limit"`
	RankedPayload     json.RawMessage   `json:"-"`
	SuggestionPayload json.RawMessage   `json:"-"`
	HTMLKey           string            `json:"-"`
	PageMeta          *extract.PageMeta `json:"pageMeta,omitempty"`
	KeywordCount      int               `json:"keywordCount"`
	EstimatedCost     float64           `json:"estimatedCost"`
	ErrorMessage      *string           `json:"errorMessage,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	StartedAt         *time.Time        `json:"startedAt,omitempty"`
	CompletedAt       *time.Time        `json:"completedAt,omitempty"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// Terminal reports whether the analysis has reached a final state.
func (a Analysis) Terminal() bool {
	return isTerminalStatus(a.Status)
}

func isTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}
