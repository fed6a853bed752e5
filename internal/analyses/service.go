package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"keyword-backend/internal/extract"
	"keyword-backend/internal/provider"
	"keyword-backend/internal/queue"
	"keyword-backend/internal/shared/metrics"
	"keyword-backend/internal/shared/storage/object"
	"keyword-backend/internal/shared/telemetry"
	"keyword-backend/internal/usage"
	"keyword-backend/internal/websites"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

// Progress checkpoints written between pipeline stages. The final jump to
// 100 happens inside Finalize and only for completed records.
const (
	progressDispatched = 10
	progressPageDone   = 20
	progressRankedDone = 40
	progressIdeasDone  = 60
	progressNormalized = 80
)

const (
	costPerProviderCall = 0.01
	costPerItem         = 0.0001
)

// errHalted is returned by checkpoint writes that lost to a concurrent
// terminal transition. The job stops quietly; nothing is marked failed.
var errHalted = errors.New("analysis halted")

// Service contains business logic for keyword analyses.
type Service struct {
	Repo     Repo
	Usage    *usage.Service
	Websites websites.Repo
	Provider provider.Client
	Store    object.ObjectStore
	JobQueue queue.Client
}

// Start validates the request, checks the owner's monthly quota, persists a
// pending analysis and dispatches the background job. The returned record is
// always in the pending state; callers poll for progress.
func (s *Service) Start(ctx context.Context, ownerID, websiteID string, params Params) (Analysis, error) {
	if ownerID == "" || websiteID == "" {
		return Analysis{}, fmt.Errorf("%w: ownerID and websiteID are required", ErrValidation)
	}
	params, err := validateParams(params)
	if err != nil {
		return Analysis{}, err
	}

	if _, err := s.Websites.GetByID(ctx, websiteID, ownerID); err != nil {
		if errors.Is(err, websites.ErrNotFound) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}

	if s.Usage != nil {
		adm, err := s.Usage.CheckAdmission(ctx, ownerID)
		if err != nil {
			return Analysis{}, err
		}
		if !adm.Allowed {
			return Analysis{}, usage.ErrLimitReached
		}
	}

	analysis := Analysis{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		WebsiteID: websiteID,
		Status:    StatusPending,
		Progress:  0,
		Country:   params.Country,
		Language:  params.Language,
		Limit:     params.Limit,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.Repo.Create(ctx, analysis); err != nil {
		return Analysis{}, err
	}

	s.dispatch(ctx, analysis.ID)

	return analysis, nil
}

// dispatch hands the job to the queue when one is configured, otherwise runs
// it in-process. A queue send failure falls back to in-process so the record
// never sits pending forever.
func (s *Service) dispatch(ctx context.Context, analysisID string) {
	if s.JobQueue != nil {
		msg := queue.Message{
			AnalysisID: analysisID,
			RequestID:  requestIDFromContext(ctx),
			EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
			Version:    1,
		}
		err := s.JobQueue.Send(ctx, msg)
		if err == nil {
			return
		}
		telemetry.Error("analysis.enqueue_failed", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysisID,
			"error":       err.Error(),
		})
	}
	go s.processAsync(backgroundWithRequestID(ctx), analysisID)
}

// Get returns an analysis belonging to ownerID.
func (s *Service) Get(ctx context.Context, analysisID, ownerID string) (Analysis, error) {
	if analysisID == "" || ownerID == "" {
		return Analysis{}, fmt.Errorf("%w: analysisID and ownerID are required", ErrValidation)
	}
	return s.Repo.GetForOwner(ctx, analysisID, ownerID)
}

// List returns the owner's analyses ordered newest-first.
func (s *Service) List(ctx context.Context, ownerID string, limit, offset int) ([]Analysis, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: ownerID is required", ErrValidation)
	}
	return s.Repo.ListByOwner(ctx, ownerID, limit, offset)
}

// Results returns the stored keyword rows and an aggregate summary for a
// completed analysis.
func (s *Service) Results(ctx context.Context, analysisID, ownerID string) ([]Keyword, ResultSummary, error) {
	analysis, err := s.Repo.GetForOwner(ctx, analysisID, ownerID)
	if err != nil {
		return nil, ResultSummary{}, err
	}
	if analysis.Status != StatusCompleted {
		return nil, ResultSummary{}, nil
	}
	keywords, err := s.Repo.ListKeywords(ctx, analysisID)
	if err != nil {
		return nil, ResultSummary{}, err
	}
	return keywords, buildSummary(keywords), nil
}

// Cancel requests cancellation of a pending or processing analysis. The
// background job observes the terminal state at its next checkpoint write
// and stops.
func (s *Service) Cancel(ctx context.Context, analysisID, ownerID string) error {
	if analysisID == "" || ownerID == "" {
		return fmt.Errorf("%w: analysisID and ownerID are required", ErrValidation)
	}
	if err := s.Repo.Cancel(ctx, analysisID, ownerID); err != nil {
		return err
	}
	metrics.IncAnalysisCancelled()
	telemetry.Info("analysis.status", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"owner_id":    ownerID,
		"analysis_id": analysisID,
		"status":      StatusCancelled,
	})
	return nil
}

// ProcessAnalysis runs the full pipeline for a queued analysis. Queue
// consumers call this directly; the in-process fallback goes through
// processAsync.
func (s *Service) ProcessAnalysis(ctx context.Context, analysisID string) error {
	return s.run(ctx, analysisID)
}

func (s *Service) processAsync(ctx context.Context, analysisID string) {
	_ = s.run(ctx, analysisID)
}

func (s *Service) run(ctx context.Context, analysisID string) error {
	startedAt := time.Now().UTC()
	defer func() {
		if r := recover(); r != nil {
			s.failAnalysis(ctx, analysisID, "", fmt.Errorf("panic: %v", r), &startedAt)
		}
	}()

	status := StatusProcessing
	if err := s.Repo.UpdateProgress(ctx, analysisID, progressDispatched, &status); err != nil {
		if errors.Is(err, ErrTerminal) {
			s.logHalted(ctx, analysisID, "pre-start")
			return nil
		}
		s.failAnalysis(ctx, analysisID, "", fmt.Errorf("set processing failed: %w", err), &startedAt)
		return err
	}

	analysis, err := s.Repo.GetByID(ctx, analysisID)
	if err != nil {
		s.failAnalysis(ctx, analysisID, "", fmt.Errorf("analysis lookup: %w", err), &startedAt)
		return err
	}
	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"owner_id":          analysis.OwnerID,
		"website_id":        analysis.WebsiteID,
		"analysis_id":       analysis.ID,
		"status":            StatusProcessing,
		"status_transition": "pending->processing",
	})

	if s.Websites == nil || s.Provider == nil {
		err := errors.New("missing provider dependencies")
		s.failAnalysis(ctx, analysisID, analysis.OwnerID, err, &startedAt)
		return err
	}

	site, err := s.Websites.GetByID(ctx, analysis.WebsiteID, analysis.OwnerID)
	if err != nil {
		err = fmt.Errorf("website lookup id=%s: %w", analysis.WebsiteID, err)
		s.failAnalysis(ctx, analysisID, analysis.OwnerID, err, &startedAt)
		return err
	}

	// Stage 1: page fetch. A failure here is tolerated; the analysis
	// proceeds without page metadata.
	htmlKey, pageMeta := s.fetchPage(ctx, analysis, site.URL)
	if err := s.checkpoint(ctx, analysis, progressPageDone, &startedAt); err != nil {
		return ignoreHalted(err)
	}

	// Stage 2: ranked keywords. This is the core dataset; a failure is fatal.
	ranked, err := s.Provider.FetchRankedKeywords(ctx, site.Domain, analysis.Country, analysis.Limit)
	if err != nil {
		err = fmt.Errorf("fetch ranked keywords: %w", err)
		s.failAnalysis(ctx, analysisID, analysis.OwnerID, err, &startedAt)
		return err
	}
	if err := s.checkpoint(ctx, analysis, progressRankedDone, &startedAt); err != nil {
		return ignoreHalted(err)
	}

	// Stage 3: suggestions seeded from the ranked set. Skipped when the
	// ranked set produced no usable seeds.
	var suggested []provider.ResultBatch
	if seeds := seedKeywords(ranked); len(seeds) > 0 {
		suggested, err = s.Provider.FetchKeywordSuggestions(ctx, seeds, analysis.Country, analysis.Limit)
		if err != nil {
			err = fmt.Errorf("fetch keyword suggestions: %w", err)
			s.failAnalysis(ctx, analysisID, analysis.OwnerID, err, &startedAt)
			return err
		}
	}
	if err := s.checkpoint(ctx, analysis, progressIdeasDone, &startedAt); err != nil {
		return ignoreHalted(err)
	}

	keywords := normalizeKeywords(analysis.ID, ranked, suggested)
	if err := s.checkpoint(ctx, analysis, progressNormalized, &startedAt); err != nil {
		return ignoreHalted(err)
	}

	if len(keywords) > 0 {
		if err := s.Repo.BulkInsertKeywords(ctx, analysis.ID, keywords); err != nil {
			err = fmt.Errorf("storage: insert keywords: %w", err)
			s.failAnalysis(ctx, analysisID, analysis.OwnerID, err, &startedAt)
			return err
		}
	}

	rankedPayload, err := json.Marshal(ranked)
	if err != nil {
		err = fmt.Errorf("storage: marshal ranked payload: %w", err)
		s.failAnalysis(ctx, analysisID, analysis.OwnerID, err, &startedAt)
		return err
	}
	var suggestionPayload json.RawMessage
	if len(suggested) > 0 {
		suggestionPayload, err = json.Marshal(suggested)
		if err != nil {
			err = fmt.Errorf("storage: marshal suggestion payload: %w", err)
			s.failAnalysis(ctx, analysisID, analysis.OwnerID, err, &startedAt)
			return err
		}
	}

	completedAt := time.Now().UTC()
	fin := Finalization{
		Status:            StatusCompleted,
		RankedPayload:     rankedPayload,
		SuggestionPayload: suggestionPayload,
		HTMLKey:           htmlKey,
		PageMeta:          pageMeta,
		KeywordCount:      len(keywords),
		EstimatedCost:     estimateCost(ranked, suggested),
		CompletedAt:       completedAt,
	}
	if err := s.Repo.Finalize(ctx, analysis.ID, fin); err != nil {
		if errors.Is(err, ErrTerminal) {
			s.logHalted(ctx, analysisID, "finalize")
			return nil
		}
		err = fmt.Errorf("storage: finalize failed: %w", err)
		s.failAnalysis(ctx, analysisID, analysis.OwnerID, err, &startedAt)
		return err
	}

	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(durationMs(&startedAt, &completedAt))
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"owner_id":          analysis.OwnerID,
		"website_id":        analysis.WebsiteID,
		"analysis_id":       analysis.ID,
		"status":            StatusCompleted,
		"status_transition": "processing->completed",
		"keyword_count":     len(keywords),
		"duration_ms":       durationMs(&startedAt, &completedAt),
	})
	return nil
}

// fetchPage retrieves the website HTML, snapshots it to object storage and
// extracts page metadata. Every failure inside this stage is non-fatal.
func (s *Service) fetchPage(ctx context.Context, analysis Analysis, pageURL string) (string, *extract.PageMeta) {
	html, err := s.Provider.FetchPageHTML(ctx, pageURL)
	if err != nil {
		telemetry.Info("analysis.page_fetch_skipped", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysis.ID,
			"error":       sanitizeError(err),
		})
		return "", nil
	}

	var htmlKey string
	if s.Store != nil {
		key, _, _, err := s.Store.Save(ctx, analysis.OwnerID, analysis.ID+".html", strings.NewReader(html))
		if err != nil {
			telemetry.Error("analysis.page_snapshot_failed", map[string]any{
				"request_id":  requestIDFromContext(ctx),
				"analysis_id": analysis.ID,
				"error":       err.Error(),
			})
		} else {
			htmlKey = key
		}
	}

	meta, err := extract.Page(html)
	if err != nil {
		telemetry.Info("analysis.page_extract_skipped", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": analysis.ID,
			"error":       sanitizeError(err),
		})
		return htmlKey, nil
	}
	return htmlKey, &meta
}

// checkpoint advances progress between stages. It doubles as the
// cancellation check: a terminal record rejects the write with ErrTerminal,
// which is surfaced as errHalted so the caller stops without failing the job.
func (s *Service) checkpoint(ctx context.Context, analysis Analysis, progress int, startedAt *time.Time) error {
	err := s.Repo.UpdateProgress(ctx, analysis.ID, progress, nil)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTerminal) {
		s.logHalted(ctx, analysis.ID, fmt.Sprintf("progress=%d", progress))
		return errHalted
	}
	err = fmt.Errorf("storage: progress update failed: %w", err)
	s.failAnalysis(ctx, analysis.ID, analysis.OwnerID, err, startedAt)
	return err
}

func ignoreHalted(err error) error {
	if errors.Is(err, errHalted) {
		return nil
	}
	return err
}

func (s *Service) logHalted(ctx context.Context, analysisID, stage string) {
	telemetry.Info("analysis.halted", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": analysisID,
		"stage":       stage,
	})
}

func (s *Service) failAnalysis(ctx context.Context, analysisID, ownerID string, err error, startedAt *time.Time) {
	code := classifyFailure(err)
	msg := sanitizeError(err)
	if msg != "" {
		msg = code + ": " + msg
	} else {
		msg = code
	}
	completedAt := time.Now().UTC()
	fin := Finalization{
		Status:       StatusFailed,
		ErrorMessage: &msg,
		CompletedAt:  completedAt,
	}
	if updateErr := s.Repo.Finalize(context.Background(), analysisID, fin); updateErr != nil {
		if errors.Is(updateErr, ErrTerminal) {
			s.logHalted(ctx, analysisID, "fail-write")
			return
		}
		fmt.Printf("failAnalysis: update failed id=%s err=%v orig=%v\n", analysisID, updateErr, err)
	}
	metrics.IncAnalysisFailed()
	if startedAt != nil {
		metrics.ObserveAnalysisDurationMs(durationMs(startedAt, &completedAt))
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"owner_id":          ownerID,
		"analysis_id":       analysisID,
		"status":            StatusFailed,
		"status_transition": "processing->failed",
		"error_code":        code,
		"duration_ms":       durationMs(startedAt, &completedAt),
	})
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

// estimateCost approximates the provider spend for one analysis: a flat cost
// per upstream call plus a per-row cost for every returned item.
func estimateCost(batchGroups ...[]provider.ResultBatch) float64 {
	var calls, items int
	for _, group := range batchGroups {
		for _, batch := range group {
			calls++
			items += len(batch.Items)
		}
	}
	return float64(calls)*costPerProviderCall + float64(items)*costPerItem
}

func classifyFailure(err error) string {
	if err == nil {
		return ErrorCodeInternal
	}
	if errors.Is(err, provider.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorCodeProviderTimeout
	}
	var provErr *provider.Error
	if errors.As(err, &provErr) || errors.Is(err, provider.ErrNotConfigured) {
		return ErrorCodeProvider
	}
	if errors.Is(err, ErrValidation) {
		return ErrorCodeValidation
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "fetch ranked") || strings.Contains(msg, "fetch keyword") {
		return ErrorCodeProvider
	}
	if strings.Contains(msg, "storage") || strings.Contains(msg, "lookup") || strings.Contains(msg, "set processing") {
		return ErrorCodeStorage
	}
	return ErrorCodeInternal
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
