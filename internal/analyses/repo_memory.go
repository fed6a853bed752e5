package analyses

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu       sync.RWMutex
	byID     map[string]Analysis
	byOwner  map[string][]string
	keywords map[string][]Keyword
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:     make(map[string]Analysis),
		byOwner:  make(map[string][]string),
		keywords: make(map[string][]Keyword),
	}
}

// Create stores the analysis.
func (r *MemoryRepo) Create(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[analysis.ID] = analysis
	r.byOwner[analysis.OwnerID] = append(r.byOwner[analysis.OwnerID], analysis.ID)
	return nil
}

// GetByID returns an analysis by its ID without owner scoping.
func (r *MemoryRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// GetForOwner returns an analysis only when it belongs to the given owner.
func (r *MemoryRepo) GetForOwner(ctx context.Context, analysisID, ownerID string) (Analysis, error) {
	analysis, err := r.GetByID(ctx, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	if analysis.OwnerID != ownerID {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

// UpdateProgress advances progress and optionally status for a non-terminal analysis.
func (r *MemoryRepo) UpdateProgress(ctx context.Context, analysisID string, progress int, status *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	if analysis.Terminal() {
		return ErrTerminal
	}
	analysis.Progress = progress
	if status != nil {
		analysis.Status = *status
		if *status == StatusProcessing && analysis.StartedAt == nil {
			now := time.Now().UTC()
			analysis.StartedAt = &now
		}
	}
	analysis.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = analysis
	return nil
}

// Finalize applies the terminal transition for a non-terminal analysis.
func (r *MemoryRepo) Finalize(ctx context.Context, analysisID string, fin Finalization) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok {
		return ErrNotFound
	}
	if analysis.Terminal() {
		return ErrTerminal
	}
	analysis.Status = fin.Status
	if fin.Status == StatusCompleted {
		analysis.Progress = 100
	}
	if fin.ErrorMessage != nil {
		analysis.ErrorMessage = fin.ErrorMessage
	}
	if len(fin.RankedPayload) > 0 {
		analysis.RankedPayload = fin.RankedPayload
	}
	if len(fin.SuggestionPayload) > 0 {
		analysis.SuggestionPayload = fin.SuggestionPayload
	}
	if fin.HTMLKey != "" {
		analysis.HTMLKey = fin.HTMLKey
	}
	if fin.PageMeta != nil {
		analysis.PageMeta = fin.PageMeta
	}
	analysis.KeywordCount = fin.KeywordCount
	analysis.EstimatedCost = fin.EstimatedCost
	completedAt := fin.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}
	analysis.CompletedAt = &completedAt
	analysis.UpdatedAt = time.Now().UTC()
	r.byID[analysisID] = analysis
	return nil
}

// Cancel transitions a pending/processing analysis to cancelled.
func (r *MemoryRepo) Cancel(ctx context.Context, analysisID, ownerID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.byID[analysisID]
	if !ok || analysis.OwnerID != ownerID {
		return ErrNotFound
	}
	if analysis.Terminal() {
		return ErrNotCancellable
	}
	now := time.Now().UTC()
	analysis.Status = StatusCancelled
	analysis.CompletedAt = &now
	analysis.UpdatedAt = now
	r.byID[analysisID] = analysis
	return nil
}

// BulkInsertKeywords stores keyword records for an analysis.
func (r *MemoryRepo) BulkInsertKeywords(ctx context.Context, analysisID string, keywords []Keyword) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(keywords) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[analysisID]; !ok {
		return ErrNotFound
	}
	r.keywords[analysisID] = append(r.keywords[analysisID], keywords...)
	return nil
}

// ListKeywords returns the keyword records for an analysis in insert order.
func (r *MemoryRepo) ListKeywords(ctx context.Context, analysisID string) ([]Keyword, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored := r.keywords[analysisID]
	out := make([]Keyword, len(stored))
	copy(out, stored)
	return out, nil
}

// ListByOwner returns analyses for an owner, newest first, with limit/offset.
func (r *MemoryRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 20
	}

	r.mu.RLock()
	ids := r.byOwner[ownerID]
	analyses := make([]Analysis, 0, len(ids))
	for _, id := range ids {
		analyses = append(analyses, r.byID[id])
	}
	r.mu.RUnlock()

	sort.Slice(analyses, func(i, j int) bool {
		return analyses[i].CreatedAt.After(analyses[j].CreatedAt)
	})

	if offset >= len(analyses) {
		return []Analysis{}, nil
	}
	end := len(analyses)
	if offset+limit < end {
		end = offset + limit
	}
	return analyses[offset:end], nil
}

// CountCreatedSince counts analyses created by an owner on/after the given instant.
func (r *MemoryRepo) CountCreatedSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, id := range r.byOwner[ownerID] {
		if !r.byID[id].CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// ClaimGuest reassigns a guest's analyses to an authenticated owner and
// returns the number of migrated records.
func (r *MemoryRepo) ClaimGuest(ctx context.Context, guestOwnerID, newOwnerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.byOwner[guestOwnerID]
	for _, id := range ids {
		analysis := r.byID[id]
		analysis.OwnerID = newOwnerID
		r.byID[id] = analysis
	}
	r.byOwner[newOwnerID] = append(r.byOwner[newOwnerID], ids...)
	delete(r.byOwner, guestOwnerID)
	return len(ids), nil
}

// DeleteByOwner removes an owner's analyses and their keyword records.
func (r *MemoryRepo) DeleteByOwner(ctx context.Context, ownerID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.byOwner[ownerID]
	for _, id := range ids {
		delete(r.byID, id)
		delete(r.keywords, id)
	}
	delete(r.byOwner, ownerID)
	return len(ids), nil
}

// ListStaleProcessing returns processing analyses started before the given instant.
func (r *MemoryRepo) ListStaleProcessing(ctx context.Context, olderThan time.Time) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stale []Analysis
	for _, analysis := range r.byID {
		if analysis.Status != StatusProcessing {
			continue
		}
		if analysis.StartedAt != nil && analysis.StartedAt.Before(olderThan) {
			stale = append(stale, analysis)
		}
	}
	return stale, nil
}

var _ Repo = (*MemoryRepo)(nil)
