package analyses

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func seedProcessingAnalysis(t *testing.T, repo *MemoryRepo, id string) {
	t.Helper()
	analysis := Analysis{
		ID:        id,
		OwnerID:   "user-1",
		WebsiteID: "site-1",
		Status:    StatusPending,
		Country:   "US",
		Language:  "en",
		Limit:     100,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), analysis); err != nil {
		t.Fatalf("create: %v", err)
	}
	processing := StatusProcessing
	if err := repo.UpdateProgress(context.Background(), id, progressIdeasDone, &processing); err != nil {
		t.Fatalf("set processing: %v", err)
	}
}

func TestMemoryRepoFinalizeAfterCancelIsRejected(t *testing.T) {
	repo := NewMemoryRepo()
	seedProcessingAnalysis(t, repo, "analysis-1")

	if err := repo.Cancel(context.Background(), "analysis-1", "user-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	err := repo.Finalize(context.Background(), "analysis-1", Finalization{
		Status:       StatusCompleted,
		KeywordCount: 3,
		CompletedAt:  time.Now().UTC(),
	})
	if !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal for late completion, got %v", err)
	}

	got, err := repo.GetByID(context.Background(), "analysis-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Fatalf("cancelled must win over late completion, got %s", got.Status)
	}
	if got.Progress != progressIdeasDone {
		t.Fatalf("expected progress frozen at %d, got %d", progressIdeasDone, got.Progress)
	}
	if got.KeywordCount != 0 {
		t.Fatalf("expected no finalization fields applied, got count %d", got.KeywordCount)
	}
}

func TestMemoryRepoUpdateProgressAfterCancelIsRejected(t *testing.T) {
	repo := NewMemoryRepo()
	seedProcessingAnalysis(t, repo, "analysis-1")

	if err := repo.Cancel(context.Background(), "analysis-1", "user-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if err := repo.UpdateProgress(context.Background(), "analysis-1", progressNormalized, nil); !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
}

func TestMemoryRepoListByOwnerDefaultLimit(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Now().UTC()
	for i := 0; i < 25; i++ {
		analysis := Analysis{
			ID:        fmt.Sprintf("analysis-%d", i),
			OwnerID:   "user-1",
			WebsiteID: "site-1",
			Status:    StatusPending,
			Country:   "US",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.Create(context.Background(), analysis); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	got, err := repo.ListByOwner(context.Background(), "user-1", 0, 0)
	if err != nil {
		t.Fatalf("ListByOwner: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("expected default page of 20, got %d", len(got))
	}
	if got[0].ID != "analysis-24" {
		t.Fatalf("expected newest first, got %s", got[0].ID)
	}
}
