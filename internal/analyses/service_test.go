package analyses

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"keyword-backend/internal/provider"
	"keyword-backend/internal/queue"
	"keyword-backend/internal/shared/storage/object/local"
	"keyword-backend/internal/usage"
	"keyword-backend/internal/websites"
)

// fakeQueue captures dispatched jobs so tests drive ProcessAnalysis themselves.
type fakeQueue struct {
	mu   sync.Mutex
	msgs []queue.Message
}

func (q *fakeQueue) Send(ctx context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return nil
}

type fakeProvider struct {
	html      string
	htmlErr   error
	ranked    []provider.ResultBatch
	rankedErr error
	ideas     []provider.ResultBatch
	ideasErr  error
	seedsSeen []string
	onRanked  func()
	onIdeas   func()
}

func (f *fakeProvider) FetchPageHTML(ctx context.Context, url string) (string, error) {
	return f.html, f.htmlErr
}

func (f *fakeProvider) FetchRankedKeywords(ctx context.Context, domain, country string, limit int) ([]provider.ResultBatch, error) {
	if f.onRanked != nil {
		f.onRanked()
	}
	return f.ranked, f.rankedErr
}

func (f *fakeProvider) FetchKeywordSuggestions(ctx context.Context, seeds []string, country string, limit int) ([]provider.ResultBatch, error) {
	f.seedsSeen = seeds
	if f.onIdeas != nil {
		f.onIdeas()
	}
	return f.ideas, f.ideasErr
}

func batchOf(keywords ...string) provider.ResultBatch {
	items := make([]provider.Item, 0, len(keywords))
	for _, kw := range keywords {
		items = append(items, provider.Item{
			"keyword":       kw,
			"search_volume": float64(100),
			"cpc":           0.5,
			"competition":   0.3,
		})
	}
	return provider.ResultBatch{Items: items}
}

func setupService(t *testing.T, p provider.Client) (*Service, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	sites := websites.NewMemoryRepo()
	site := websites.Website{
		ID:        "site-1",
		OwnerID:   "user-1",
		URL:       "https://example.com",
		Domain:    "example.com",
		CreatedAt: time.Now().UTC(),
	}
	if err := sites.Create(context.Background(), site); err != nil {
		t.Fatalf("create website: %v", err)
	}
	svc := &Service{
		Repo:     repo,
		Websites: sites,
		Provider: p,
		Store:    local.New(t.TempDir()),
		JobQueue: &fakeQueue{},
	}
	return svc, repo
}

func startAndRun(t *testing.T, svc *Service) Analysis {
	t.Helper()
	analysis, err := svc.Start(context.Background(), "user-1", "site-1", Params{Country: "US"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if analysis.Status != StatusPending {
		t.Fatalf("expected pending after start, got %s", analysis.Status)
	}
	if err := svc.ProcessAnalysis(context.Background(), analysis.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	return analysis
}

func TestPipelineCompletes(t *testing.T) {
	p := &fakeProvider{
		html:   "<html><head><title>Shop</title></head><body><h1>Shop</h1><p>buy things online</p></body></html>",
		ranked: []provider.ResultBatch{batchOf("buy shoes", "running shoes")},
		ideas:  []provider.ResultBatch{batchOf("best running shoes")},
	}
	svc, repo := setupService(t, p)
	analysis := startAndRun(t, svc)

	got, err := repo.GetByID(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", got.Status, got.ErrorMessage)
	}
	if got.Progress != 100 {
		t.Fatalf("expected progress 100, got %d", got.Progress)
	}
	if got.KeywordCount != 3 {
		t.Fatalf("expected 3 keywords, got %d", got.KeywordCount)
	}
	if got.PageMeta == nil || got.PageMeta.Title != "Shop" {
		t.Fatalf("expected page meta with title, got %+v", got.PageMeta)
	}
	if got.HTMLKey == "" {
		t.Fatal("expected html snapshot key")
	}
	if len(got.RankedPayload) == 0 || len(got.SuggestionPayload) == 0 {
		t.Fatal("expected raw payloads to be stored")
	}
	if got.CompletedAt == nil || got.StartedAt == nil {
		t.Fatal("expected started/completed timestamps")
	}

	keywords, err := repo.ListKeywords(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("list keywords: %v", err)
	}
	if len(keywords) != 3 {
		t.Fatalf("expected 3 keyword rows, got %d", len(keywords))
	}
	if keywords[0].Type != KeywordTypeRanked || keywords[2].Type != KeywordTypeSuggestion {
		t.Fatalf("expected ranked rows before suggestions, got %s..%s", keywords[0].Type, keywords[2].Type)
	}
	if p.seedsSeen[0] != "buy shoes" {
		t.Fatalf("expected ranked keywords as seeds, got %v", p.seedsSeen)
	}
}

func TestPipelineDefaultsMissingMetrics(t *testing.T) {
	ranked := provider.ResultBatch{Items: []provider.Item{
		{"keyword": "chaussures", "search_volume": float64(900), "cpc": 1.2, "competition": 0.6},
		{"keyword": "baskets", "search_volume": float64(400)},
	}}
	p := &fakeProvider{
		ranked: []provider.ResultBatch{ranked},
		ideas:  []provider.ResultBatch{batchOf("chaussures de course")},
	}
	svc, repo := setupService(t, p)

	analysis, err := svc.Start(context.Background(), "user-1", "site-1", Params{Country: "FR", Language: "fr"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.ProcessAnalysis(context.Background(), analysis.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := repo.GetByID(context.Background(), analysis.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", got.Status, got.ErrorMessage)
	}
	if got.KeywordCount != 3 {
		t.Fatalf("expected 3 keywords, got %d", got.KeywordCount)
	}

	keywords, err := repo.ListKeywords(context.Background(), analysis.ID)
	if err != nil {
		t.Fatalf("list keywords: %v", err)
	}
	var sparse *Keyword
	for i := range keywords {
		if keywords[i].Keyword == "baskets" {
			sparse = &keywords[i]
		}
	}
	if sparse == nil {
		t.Fatalf("expected the cpc-less item to persist, got %+v", keywords)
	}
	if sparse.CPC != 0 || sparse.Competition != 0 {
		t.Fatalf("expected missing metrics to default to zero, got cpc=%v competition=%v", sparse.CPC, sparse.Competition)
	}
	if sparse.SearchVolume != 400 {
		t.Fatalf("expected present metrics kept, got volume %d", sparse.SearchVolume)
	}
}

func TestPageFetchFailureIsTolerated(t *testing.T) {
	p := &fakeProvider{
		htmlErr: errors.New("fetch blocked"),
		ranked:  []provider.ResultBatch{batchOf("buy shoes")},
	}
	svc, repo := setupService(t, p)
	analysis := startAndRun(t, svc)

	got, _ := repo.GetByID(context.Background(), analysis.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed despite page failure, got %s", got.Status)
	}
	if got.PageMeta != nil || got.HTMLKey != "" {
		t.Fatal("expected no page artifacts when fetch fails")
	}
}

func TestRankedFetchFailureFailsAnalysis(t *testing.T) {
	p := &fakeProvider{rankedErr: &provider.Error{StatusCode: 40200, Message: "payment required"}}
	svc, repo := setupService(t, p)

	analysis, err := svc.Start(context.Background(), "user-1", "site-1", Params{Country: "US"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.ProcessAnalysis(context.Background(), analysis.ID); err == nil {
		t.Fatal("expected process error")
	}

	got, _ := repo.GetByID(context.Background(), analysis.ID)
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Progress != progressPageDone {
		t.Fatalf("expected progress frozen at %d, got %d", progressPageDone, got.Progress)
	}
	if got.ErrorMessage == nil {
		t.Fatal("expected error message")
	}
	if code := *got.ErrorMessage; code[:len(ErrorCodeProvider)] != ErrorCodeProvider {
		t.Fatalf("expected %s prefix, got %q", ErrorCodeProvider, code)
	}
}

func TestProviderTimeoutClassified(t *testing.T) {
	p := &fakeProvider{rankedErr: provider.ErrTimeout}
	svc, repo := setupService(t, p)

	analysis, _ := svc.Start(context.Background(), "user-1", "site-1", Params{Country: "US"})
	_ = svc.ProcessAnalysis(context.Background(), analysis.ID)

	got, _ := repo.GetByID(context.Background(), analysis.ID)
	if got.ErrorMessage == nil || (*got.ErrorMessage)[:len(ErrorCodeProviderTimeout)] != ErrorCodeProviderTimeout {
		t.Fatalf("expected timeout code, got %v", got.ErrorMessage)
	}
}

func TestSuggestionFailureFailsAnalysis(t *testing.T) {
	p := &fakeProvider{
		ranked:   []provider.ResultBatch{batchOf("buy shoes")},
		ideasErr: provider.ErrTimeout,
	}
	svc, repo := setupService(t, p)

	analysis, _ := svc.Start(context.Background(), "user-1", "site-1", Params{Country: "US"})
	_ = svc.ProcessAnalysis(context.Background(), analysis.ID)

	got, _ := repo.GetByID(context.Background(), analysis.ID)
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Progress != progressRankedDone {
		t.Fatalf("expected progress frozen at %d, got %d", progressRankedDone, got.Progress)
	}
}

func TestCancelBeforeStartHaltsJob(t *testing.T) {
	p := &fakeProvider{ranked: []provider.ResultBatch{batchOf("buy shoes")}}
	svc, repo := setupService(t, p)

	analysis, err := svc.Start(context.Background(), "user-1", "site-1", Params{Country: "US"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.Cancel(context.Background(), analysis.ID, "user-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := svc.ProcessAnalysis(context.Background(), analysis.ID); err != nil {
		t.Fatalf("process after cancel should halt quietly, got %v", err)
	}

	got, _ := repo.GetByID(context.Background(), analysis.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("cancelled must win, got %s", got.Status)
	}
}

func TestCancelDuringRunHaltsAtNextCheckpoint(t *testing.T) {
	svc, repo := setupService(t, nil)
	p := &fakeProvider{ranked: []provider.ResultBatch{batchOf("buy shoes")}}
	var analysisID string
	p.onRanked = func() {
		if err := repo.Cancel(context.Background(), analysisID, "user-1"); err != nil {
			t.Errorf("cancel mid-run: %v", err)
		}
	}
	svc.Provider = p

	analysis, err := svc.Start(context.Background(), "user-1", "site-1", Params{Country: "US"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	analysisID = analysis.ID
	if err := svc.ProcessAnalysis(context.Background(), analysis.ID); err != nil {
		t.Fatalf("process should halt quietly, got %v", err)
	}

	got, _ := repo.GetByID(context.Background(), analysis.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("cancelled must win over late writes, got %s", got.Status)
	}
	keywords, _ := repo.ListKeywords(context.Background(), analysis.ID)
	if len(keywords) != 0 {
		t.Fatalf("expected no keyword rows after cancellation, got %d", len(keywords))
	}
}

func TestCancelCompletedReturnsNotCancellable(t *testing.T) {
	p := &fakeProvider{ranked: []provider.ResultBatch{batchOf("buy shoes")}}
	svc, _ := setupService(t, p)
	analysis := startAndRun(t, svc)

	if err := svc.Cancel(context.Background(), analysis.ID, "user-1"); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("expected ErrNotCancellable, got %v", err)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	p := &fakeProvider{
		html:   "<html><body><h1>hi</h1></body></html>",
		ranked: []provider.ResultBatch{batchOf("buy shoes")},
		ideas:  []provider.ResultBatch{batchOf("best shoes")},
	}
	svc, repo := setupService(t, p)
	rec := &recordingRepo{Repo: repo}
	svc.Repo = rec

	startAndRun(t, svc)

	last := -1
	for _, progress := range rec.progress() {
		if progress < last {
			t.Fatalf("progress regressed: %v", rec.progress())
		}
		last = progress
	}
	if last != progressNormalized {
		t.Fatalf("expected last checkpoint %d, got %d", progressNormalized, last)
	}
}

type recordingRepo struct {
	Repo
	mu     sync.Mutex
	writes []int
}

func (r *recordingRepo) UpdateProgress(ctx context.Context, analysisID string, progress int, status *string) error {
	r.mu.Lock()
	r.writes = append(r.writes, progress)
	r.mu.Unlock()
	return r.Repo.UpdateProgress(ctx, analysisID, progress, status)
}

func (r *recordingRepo) progress() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.writes...)
}

type fixedPlan struct{ plan string }

func (f fixedPlan) PlanFor(ctx context.Context, ownerID string) (string, error) {
	return f.plan, nil
}

func TestStartDeniedWhenQuotaExhausted(t *testing.T) {
	p := &fakeProvider{ranked: []provider.ResultBatch{batchOf("buy shoes")}}
	svc, repo := setupService(t, p)
	svc.Usage = usage.NewService(fixedPlan{plan: "starter"}, repo)

	for i := 0; i < 5; i++ {
		if _, err := svc.Start(context.Background(), "user-1", "site-1", Params{Country: "US"}); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}
	if _, err := svc.Start(context.Background(), "user-1", "site-1", Params{Country: "US"}); !errors.Is(err, usage.ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached on 6th start, got %v", err)
	}
}

func TestStartEnqueuesJob(t *testing.T) {
	svc, _ := setupService(t, &fakeProvider{})
	q := svc.JobQueue.(*fakeQueue)

	analysis, err := svc.Start(context.Background(), "user-1", "site-1", Params{Country: "US"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(q.msgs) != 1 {
		t.Fatalf("expected 1 queued message, got %d", len(q.msgs))
	}
	if q.msgs[0].AnalysisID != analysis.ID || q.msgs[0].Version != 1 {
		t.Fatalf("unexpected message %+v", q.msgs[0])
	}
}

func TestStartRejectsUnknownWebsite(t *testing.T) {
	svc, _ := setupService(t, &fakeProvider{})
	if _, err := svc.Start(context.Background(), "user-1", "missing", Params{Country: "US"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// Foreign websites look exactly like missing ones.
	if _, err := svc.Start(context.Background(), "user-2", "site-1", Params{Country: "US"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign website, got %v", err)
	}
}

func TestStartRejectsInvalidParams(t *testing.T) {
	svc, _ := setupService(t, &fakeProvider{})
	if _, err := svc.Start(context.Background(), "user-1", "site-1", Params{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for missing country, got %v", err)
	}
	if _, err := svc.Start(context.Background(), "user-1", "site-1", Params{Country: "US", Limit: 5000}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for oversize limit, got %v", err)
	}
}

func TestReconcileStaleMarksAbandonedJobs(t *testing.T) {
	svc, repo := setupService(t, &fakeProvider{})

	started := time.Now().UTC().Add(-time.Hour)
	old := Analysis{
		ID:        "stale-1",
		OwnerID:   "user-1",
		WebsiteID: "site-1",
		Status:    StatusProcessing,
		Progress:  progressRankedDone,
		Country:   "US",
		CreatedAt: started,
		StartedAt: &started,
	}
	if err := repo.Create(context.Background(), old); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := svc.ReconcileStale(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reconciled, got %d", n)
	}
	got, _ := repo.GetByID(context.Background(), old.ID)
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
}

func TestEstimateCost(t *testing.T) {
	ranked := []provider.ResultBatch{batchOf("a", "b"), batchOf("c")}
	ideas := []provider.ResultBatch{batchOf("d")}
	got := estimateCost(ranked, ideas)
	want := 3*costPerProviderCall + 4*costPerItem
	if got != want {
		t.Fatalf("estimateCost = %v, want %v", got, want)
	}
	if estimateCost(nil, nil) != 0 {
		t.Fatalf("expected zero cost for no calls")
	}
}
