package account

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"keyword-backend/internal/analyses"
	"keyword-backend/internal/websites"
)

type Service struct {
	WebsiteRepo  websites.Repo
	AnalysisRepo analyses.Repo
}

type ClaimResult struct {
	MigratedWebsites int `json:"migratedWebsites"`
	MigratedAnalyses int `json:"migratedAnalyses"`
}

type DeleteResult struct {
	DeletedWebsites int `json:"deletedWebsites"`
	DeletedAnalyses int `json:"deletedAnalyses"`
}

func NewService(websiteRepo websites.Repo, analysisRepo analyses.Repo) *Service {
	return &Service{WebsiteRepo: websiteRepo, AnalysisRepo: analysisRepo}
}

// ClaimGuest migrates a guest's websites and analyses to the authenticated
// user. Against Postgres both updates run in one transaction.
func (s *Service) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (ClaimResult, error) {
	if strings.TrimSpace(guestUserID) == "" || strings.TrimSpace(authedUserID) == "" {
		return ClaimResult{}, errors.New("guestUserID and authedUserID are required")
	}

	if db := s.pgDB(); db != nil {
		return claimWithTx(ctx, db, guestUserID, authedUserID)
	}

	siteCount, err := claimOwned(ctx, s.WebsiteRepo, guestUserID, authedUserID)
	if err != nil {
		return ClaimResult{}, err
	}
	analysisCount, err := claimOwned(ctx, s.AnalysisRepo, guestUserID, authedUserID)
	if err != nil {
		return ClaimResult{}, err
	}
	return ClaimResult{MigratedWebsites: siteCount, MigratedAnalyses: analysisCount}, nil
}

// DeleteAccount removes every record the user owns: keyword rows, analyses,
// websites and the user row itself.
func (s *Service) DeleteAccount(ctx context.Context, userID string) (DeleteResult, error) {
	if strings.TrimSpace(userID) == "" {
		return DeleteResult{}, errors.New("userID is required")
	}

	if db := s.pgDB(); db != nil {
		return deleteWithTx(ctx, db, userID)
	}

	analysisCount := 0
	if purger, ok := s.AnalysisRepo.(ownerPurger); ok {
		n, err := purger.DeleteByOwner(ctx, userID)
		if err != nil {
			return DeleteResult{}, err
		}
		analysisCount = n
	}
	sites, err := s.WebsiteRepo.ListByOwner(ctx, userID)
	if err != nil {
		return DeleteResult{}, err
	}
	if err := s.WebsiteRepo.DeleteByOwner(ctx, userID); err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{DeletedWebsites: len(sites), DeletedAnalyses: analysisCount}, nil
}

// pgDB returns the shared database handle when both repos are the Postgres
// implementations, enabling transactional claims and deletes.
func (s *Service) pgDB() *sql.DB {
	sitePG, ok := s.WebsiteRepo.(*websites.PGRepo)
	if !ok || sitePG == nil || sitePG.DB == nil {
		return nil
	}
	analysisPG, ok := s.AnalysisRepo.(*analyses.PGRepo)
	if !ok || analysisPG == nil || analysisPG.DB == nil {
		return nil
	}
	return sitePG.DB
}

func claimWithTx(ctx context.Context, db *sql.DB, guestUserID, authedUserID string) (ClaimResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ClaimResult{}, err
	}
	defer tx.Rollback()

	siteRes, err := tx.ExecContext(ctx, `UPDATE websites SET owner_id = $1 WHERE owner_id = $2`, authedUserID, guestUserID)
	if err != nil {
		return ClaimResult{}, err
	}
	siteCount, _ := siteRes.RowsAffected()

	analysisRes, err := tx.ExecContext(ctx, `UPDATE analyses SET owner_id = $1 WHERE owner_id = $2`, authedUserID, guestUserID)
	if err != nil {
		return ClaimResult{}, err
	}
	analysisCount, _ := analysisRes.RowsAffected()

	if err := tx.Commit(); err != nil {
		return ClaimResult{}, err
	}
	return ClaimResult{MigratedWebsites: int(siteCount), MigratedAnalyses: int(analysisCount)}, nil
}

func deleteWithTx(ctx context.Context, db *sql.DB, userID string) (DeleteResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return DeleteResult{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
DELETE FROM analysis_keywords
WHERE analysis_id IN (SELECT id FROM analyses WHERE owner_id = $1)`, userID); err != nil {
		return DeleteResult{}, err
	}

	analysisRes, err := tx.ExecContext(ctx, `DELETE FROM analyses WHERE owner_id = $1`, userID)
	if err != nil {
		return DeleteResult{}, err
	}
	analysisCount, _ := analysisRes.RowsAffected()

	siteRes, err := tx.ExecContext(ctx, `DELETE FROM websites WHERE owner_id = $1`, userID)
	if err != nil {
		return DeleteResult{}, err
	}
	siteCount, _ := siteRes.RowsAffected()

	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID); err != nil {
		return DeleteResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{DeletedWebsites: int(siteCount), DeletedAnalyses: int(analysisCount)}, nil
}

type guestClaimer interface {
	ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (int, error)
}

type ownerPurger interface {
	DeleteByOwner(ctx context.Context, ownerID string) (int, error)
}

func claimOwned(ctx context.Context, repo any, guestUserID, authedUserID string) (int, error) {
	claimer, ok := repo.(guestClaimer)
	if !ok {
		return 0, errors.New("repo does not support claim")
	}
	return claimer.ClaimGuest(ctx, guestUserID, authedUserID)
}
