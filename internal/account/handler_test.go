package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"keyword-backend/internal/analyses"
	"keyword-backend/internal/websites"
)

func setupAccountRouter(t *testing.T) (*gin.Engine, *websites.MemoryRepo, *analyses.MemoryRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	siteRepo := websites.NewMemoryRepo()
	analysisRepo := analyses.NewMemoryRepo()
	handler := NewHandler(NewService(siteRepo, analysisRepo))

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", "user-1")
		c.Set("isGuest", false)
		c.Next()
	})
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	return router, siteRepo, analysisRepo
}

func seedOwner(t *testing.T, siteRepo *websites.MemoryRepo, analysisRepo *analyses.MemoryRepo, ownerID string) {
	t.Helper()
	site := websites.Website{
		ID:        "site-" + ownerID,
		OwnerID:   ownerID,
		URL:       "https://example.com",
		Domain:    "example.com",
		CreatedAt: time.Now().UTC(),
	}
	if err := siteRepo.Create(context.Background(), site); err != nil {
		t.Fatalf("create website: %v", err)
	}
	analysis := analyses.Analysis{
		ID:        "analysis-" + ownerID,
		OwnerID:   ownerID,
		WebsiteID: site.ID,
		Status:    analyses.StatusCompleted,
		Country:   "US",
		CreatedAt: time.Now().UTC(),
	}
	if err := analysisRepo.Create(context.Background(), analysis); err != nil {
		t.Fatalf("create analysis: %v", err)
	}
}

func TestClaimGuestMigratesData(t *testing.T) {
	router, siteRepo, analysisRepo := setupAccountRouter(t)

	guestID := "11111111-1111-1111-1111-111111111111"
	guestUserID := "guest:" + guestID
	seedOwner(t, siteRepo, analysisRepo, guestUserID)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/account/claim-guest", nil)
	req.Header.Set("X-Guest-Id", guestID)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var result ClaimResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.MigratedWebsites != 1 || result.MigratedAnalyses != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	if _, err := siteRepo.GetByID(context.Background(), "site-"+guestUserID, "user-1"); err != nil {
		t.Fatalf("expected migrated website owned by user-1, got %v", err)
	}
	if _, err := analysisRepo.GetForOwner(context.Background(), "analysis-"+guestUserID, "user-1"); err != nil {
		t.Fatalf("expected migrated analysis owned by user-1, got %v", err)
	}
}

func TestClaimGuestRejectsBadGuestID(t *testing.T) {
	router, _, _ := setupAccountRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/account/claim-guest", nil)
	req.Header.Set("X-Guest-Id", "not-a-uuid")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestDeleteAccountRemovesOwnedData(t *testing.T) {
	router, siteRepo, analysisRepo := setupAccountRouter(t)
	seedOwner(t, siteRepo, analysisRepo, "user-1")

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/account", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var result DeleteResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.DeletedWebsites != 1 || result.DeletedAnalyses != 1 {
		t.Fatalf("unexpected result %+v", result)
	}

	sites, err := siteRepo.ListByOwner(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("list websites: %v", err)
	}
	if len(sites) != 0 {
		t.Fatalf("expected no websites left, got %d", len(sites))
	}
	if _, err := analysisRepo.GetForOwner(context.Background(), "analysis-user-1", "user-1"); err == nil {
		t.Fatal("expected analysis to be deleted")
	}
}
