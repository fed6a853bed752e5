package analyses

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"keyword-backend/internal/provider"
	"keyword-backend/internal/shared/server/middleware"
	local "keyword-backend/internal/shared/storage/object/local"
	"keyword-backend/internal/websites"
)

const testOwnerID = "guest:test-guest"

func setupAnalysisRouter(t *testing.T, p provider.Client) (*gin.Engine, *Service, *MemoryRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := NewMemoryRepo()
	sites := websites.NewMemoryRepo()
	site := websites.Website{
		ID:        "site-1",
		OwnerID:   testOwnerID,
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
	handler := NewHandler(svc)

	router := gin.New()
	router.Use(middleware.Auth("dev"))
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	return router, svc, repo
}

func addGuestHeader(req *http.Request) {
	req.Header.Set("X-Guest-Id", "test-guest")
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestStartAnalysisAccepted(t *testing.T) {
	router, _, repo := setupAnalysisRouter(t, &fakeProvider{})

	resp := postJSON(t, router, "/api/v1/websites/site-1/analyses", map[string]any{"country": "US"})
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}

	var created struct {
		AnalysisID string `json:"analysisId"`
		Status     string `json:"status"`
		Progress   int    `json:"progress"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.AnalysisID == "" {
		t.Fatal("expected analysisId")
	}
	if created.Status != StatusPending || created.Progress != 0 {
		t.Fatalf("expected pending/0, got %s/%d", created.Status, created.Progress)
	}

	analysis, err := repo.GetByID(context.Background(), created.AnalysisID)
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if analysis.Country != "US" || analysis.Language != "en" || analysis.Limit != 100 {
		t.Fatalf("expected defaults applied, got %+v", analysis)
	}
}

func TestStartAnalysisRejectsBadCountry(t *testing.T) {
	router, _, _ := setupAnalysisRouter(t, &fakeProvider{})

	resp := postJSON(t, router, "/api/v1/websites/site-1/analyses", map[string]any{"country": "XX"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestStartAnalysisUnknownWebsite(t *testing.T) {
	router, _, _ := setupAnalysisRouter(t, &fakeProvider{})

	resp := postJSON(t, router, "/api/v1/websites/nope/analyses", map[string]any{"country": "US"})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestGetAnalysisCompletedIncludesResults(t *testing.T) {
	p := &fakeProvider{
		html:   "<html><head><title>Shop</title></head><body><h1>Shop</h1></body></html>",
		ranked: []provider.ResultBatch{batchOf("buy shoes")},
		ideas:  []provider.ResultBatch{batchOf("best shoes")},
	}
	router, svc, _ := setupAnalysisRouter(t, p)

	resp := postJSON(t, router, "/api/v1/websites/site-1/analyses", map[string]any{"country": "US"})
	var created struct {
		AnalysisID string `json:"analysisId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := svc.ProcessAnalysis(context.Background(), created.AnalysisID); err != nil {
		t.Fatalf("process: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/"+created.AnalysisID, nil)
	addGuestHeader(req)
	get := httptest.NewRecorder()
	router.ServeHTTP(get, req)
	if get.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", get.Code, get.Body.String())
	}

	var body struct {
		Status   string `json:"status"`
		Progress int    `json:"progress"`
		Keywords []struct {
			Keyword string `json:"keyword"`
			Type    string `json:"type"`
		} `json:"keywords"`
		Summary struct {
			TotalKeywords int `json:"totalKeywords"`
		} `json:"summary"`
		PageMeta *struct {
			Title string `json:"title"`
		} `json:"pageMeta"`
	}
	if err := json.NewDecoder(get.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != StatusCompleted || body.Progress != 100 {
		t.Fatalf("expected completed/100, got %s/%d", body.Status, body.Progress)
	}
	if len(body.Keywords) != 2 {
		t.Fatalf("expected 2 keywords, got %d", len(body.Keywords))
	}
	if body.Summary.TotalKeywords != 2 {
		t.Fatalf("expected summary total 2, got %d", body.Summary.TotalKeywords)
	}
	if body.PageMeta == nil || body.PageMeta.Title != "Shop" {
		t.Fatalf("expected page meta, got %+v", body.PageMeta)
	}
}

func TestGetAnalysisHidesForeignRecords(t *testing.T) {
	router, svc, _ := setupAnalysisRouter(t, &fakeProvider{})

	analysis, err := svc.Start(context.Background(), "someone-else", "site-other", Params{Country: "US"})
	if err == nil {
		// someone-else does not own site-other; Start must refuse.
		t.Fatalf("expected start to fail, got %+v", analysis)
	}

	// Seed a record owned by another user directly.
	foreign := Analysis{
		ID:        "foreign-1",
		OwnerID:   "someone-else",
		WebsiteID: "site-other",
		Status:    StatusPending,
		Country:   "US",
		CreatedAt: time.Now().UTC(),
	}
	if err := svc.Repo.Create(context.Background(), foreign); err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/foreign-1", nil)
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign analysis, got %d", resp.Code)
	}
}

func TestGetAnalysisPollLimit(t *testing.T) {
	router, svc, _ := setupAnalysisRouter(t, &fakeProvider{})

	analysis := Analysis{
		ID:        "poll-1",
		OwnerID:   testOwnerID,
		WebsiteID: "site-1",
		Status:    StatusPending,
		Country:   "US",
		CreatedAt: time.Now().UTC(),
	}
	if err := svc.Repo.Create(context.Background(), analysis); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses/poll-1", nil)
		addGuestHeader(req)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != want {
			t.Fatalf("poll %d: expected %d, got %d", i, want, resp.Code)
		}
		if want == http.StatusTooManyRequests && resp.Header().Get("Retry-After") == "" {
			t.Fatal("expected Retry-After header")
		}
	}
}

func TestCancelAnalysis(t *testing.T) {
	router, svc, repo := setupAnalysisRouter(t, &fakeProvider{})

	analysis, err := svc.Start(context.Background(), testOwnerID, "site-1", Params{Country: "US"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	resp := postJSON(t, router, "/api/v1/analyses/"+analysis.ID+"/cancel", map[string]any{})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	got, _ := repo.GetByID(context.Background(), analysis.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", got.Status)
	}

	again := postJSON(t, router, "/api/v1/analyses/"+analysis.ID+"/cancel", map[string]any{})
	if again.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second cancel, got %d", again.Code)
	}
}

func TestListAnalysesRequiresLogin(t *testing.T) {
	router, _, _ := setupAnalysisRouter(t, &fakeProvider{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil)
	addGuestHeader(req)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for guest history, got %d", resp.Code)
	}
}
