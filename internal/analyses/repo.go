package analyses

import (
	"context"
	"encoding/json"
	"time"

	"keyword-backend/internal/extract"
)

// Finalization carries everything written by the single terminal transition
// of a job. Progress moves to 100 only when Status is completed; failed and
// cancelled records keep their last checkpoint.
type Finalization struct {
	Status            string
	ErrorMessage      *string
	RankedPayload     json.RawMessage
	SuggestionPayload json.RawMessage
	HTMLKey           string
	PageMeta          *extract.PageMeta
	KeywordCount      int
	EstimatedCost     float64
	CompletedAt       time.Time
}

// Repo defines persistence operations for analyses and their keyword records.
//
// UpdateProgress and Finalize are refused with ErrTerminal once the record
// has reached a terminal state: a cancellation must win over a late-arriving
// write from the background job.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	// GetByID is unscoped and intended for the job pipeline itself.
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	// GetForOwner enforces tenant isolation: a record belonging to another
	// owner is indistinguishable from a missing one (ErrNotFound).
	GetForOwner(ctx context.Context, analysisID, ownerID string) (Analysis, error)
	// UpdateProgress advances progress; a nil status leaves status unchanged.
	UpdateProgress(ctx context.Context, analysisID string, progress int, status *string) error
	Finalize(ctx context.Context, analysisID string, fin Finalization) error
	// Cancel transitions pending/processing to cancelled. Terminal records
	// yield ErrNotCancellable; unknown or foreign records yield ErrNotFound.
	Cancel(ctx context.Context, analysisID, ownerID string) error
	BulkInsertKeywords(ctx context.Context, analysisID string, keywords []Keyword) error
	ListKeywords(ctx context.Context, analysisID string) ([]Keyword, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Analysis, error)
	CountCreatedSince(ctx context.Context, ownerID string, since time.Time) (int, error)
	ListStaleProcessing(ctx context.Context, olderThan time.Time) ([]Analysis, error)
}
