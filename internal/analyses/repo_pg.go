package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"keyword-backend/internal/extract"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const analysisColumns = `
id, owner_id, website_id, status, progress, country, language, result_limit,
ranked_payload, suggestion_payload, html_key, page_meta, keyword_count,
estimated_cost, error_message, created_at, started_at, completed_at, updated_at`

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (
	id, owner_id, website_id, status, progress, country, language, result_limit,
	keyword_count, estimated_cost, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`
	_, err := r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.OwnerID,
		analysis.WebsiteID,
		analysis.Status,
		analysis.Progress,
		analysis.Country,
		analysis.Language,
		analysis.Limit,
		analysis.KeywordCount,
		analysis.EstimatedCost,
		analysis.CreatedAt,
	)
	return err
}

// GetByID returns an analysis by ID without owner scoping.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1 LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, analysisID))
}

// GetForOwner returns an analysis only when it belongs to the given owner.
// A foreign record scans as no row at all, never as a distinct error.
func (r *PGRepo) GetForOwner(ctx context.Context, analysisID, ownerID string) (Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1 AND owner_id = $2 LIMIT 1`
	return r.scanOne(r.DB.QueryRowContext(ctx, query, analysisID, ownerID))
}

// UpdateProgress advances progress and optionally status; terminal records are refused.
func (r *PGRepo) UpdateProgress(ctx context.Context, analysisID string, progress int, status *string) error {
	const query = `
UPDATE analyses
SET progress = $1,
    status = COALESCE($2::text, status),
    started_at = CASE
        WHEN $2::text = 'processing' AND started_at IS NULL THEN now()
        ELSE started_at
    END,
    updated_at = now()
WHERE id = $3 AND status IN ('pending', 'processing')`
	res, err := r.DB.ExecContext(ctx, query, progress, status, analysisID)
	if err != nil {
		return err
	}
	return r.checkGuardedWrite(ctx, res, analysisID)
}

// Finalize applies the one-shot terminal transition; terminal records are refused.
func (r *PGRepo) Finalize(ctx context.Context, analysisID string, fin Finalization) error {
	pageMeta, err := marshalNullable(fin.PageMeta)
	if err != nil {
		return err
	}
	const query = `
UPDATE analyses
SET status = $1,
    progress = CASE WHEN $1 = 'completed' THEN 100 ELSE progress END,
    error_message = COALESCE($2::text, error_message),
    ranked_payload = COALESCE($3::jsonb, ranked_payload),
    suggestion_payload = COALESCE($4::jsonb, suggestion_payload),
    html_key = CASE WHEN $5::text <> '' THEN $5::text ELSE html_key END,
    page_meta = COALESCE($6::jsonb, page_meta),
    keyword_count = $7,
    estimated_cost = $8,
    completed_at = $9,
    updated_at = now()
WHERE id = $10 AND status IN ('pending', 'processing')`
	res, err := r.DB.ExecContext(ctx, query,
		fin.Status,
		fin.ErrorMessage,
		nullableJSON(fin.RankedPayload),
		nullableJSON(fin.SuggestionPayload),
		fin.HTMLKey,
		pageMeta,
		fin.KeywordCount,
		fin.EstimatedCost,
		fin.CompletedAt,
		analysisID,
	)
	if err != nil {
		return err
	}
	return r.checkGuardedWrite(ctx, res, analysisID)
}

// Cancel transitions a pending/processing analysis to cancelled.
func (r *PGRepo) Cancel(ctx context.Context, analysisID, ownerID string) error {
	const query = `
UPDATE analyses
SET status = 'cancelled', completed_at = now(), updated_at = now()
WHERE id = $1 AND owner_id = $2 AND status IN ('pending', 'processing')`
	res, err := r.DB.ExecContext(ctx, query, analysisID, ownerID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	if _, err := r.GetForOwner(ctx, analysisID, ownerID); err != nil {
		return err
	}
	return ErrNotCancellable
}

// BulkInsertKeywords inserts keyword records in one multi-row statement.
func (r *PGRepo) BulkInsertKeywords(ctx context.Context, analysisID string, keywords []Keyword) error {
	if len(keywords) == 0 {
		return nil
	}
	var (
		sb   strings.Builder
		args = make([]any, 0, len(keywords)*11)
	)
	sb.WriteString(`
INSERT INTO analysis_keywords (
	id, analysis_id, keyword, type, search_volume, cpc, competition,
	difficulty, position, url, domain, created_at
) VALUES `)
	for i, kw := range keywords {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 12
		sb.WriteString("(")
		for j := 1; j <= 12; j++ {
			if j > 1 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "$%d", base+j)
		}
		sb.WriteString(")")
		args = append(args,
			kw.ID,
			analysisID,
			kw.Keyword,
			kw.Type,
			kw.SearchVolume,
			kw.CPC,
			kw.Competition,
			kw.Difficulty,
			kw.Position,
			kw.URL,
			kw.Domain,
			kw.CreatedAt,
		)
	}
	_, err := r.DB.ExecContext(ctx, sb.String(), args...)
	return err
}

// ListKeywords returns keyword records for an analysis, ranked records first,
// preserving insert order within each type.
func (r *PGRepo) ListKeywords(ctx context.Context, analysisID string) ([]Keyword, error) {
	const query = `
SELECT id, analysis_id, keyword, type, search_volume, cpc, competition,
       difficulty, position, url, domain, created_at
FROM analysis_keywords
WHERE analysis_id = $1
ORDER BY CASE type WHEN 'ranked' THEN 0 ELSE 1 END, created_at, id`
	rows, err := r.DB.QueryContext(ctx, query, analysisID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keywords []Keyword
	for rows.Next() {
		var (
			kw       Keyword
			position sql.NullInt64
			url      sql.NullString
			domain   sql.NullString
		)
		if err := rows.Scan(
			&kw.ID,
			&kw.AnalysisID,
			&kw.Keyword,
			&kw.Type,
			&kw.SearchVolume,
			&kw.CPC,
			&kw.Competition,
			&kw.Difficulty,
			&position,
			&url,
			&domain,
			&kw.CreatedAt,
		); err != nil {
			return nil, err
		}
		if position.Valid {
			pos := int(position.Int64)
			kw.Position = &pos
		}
		if url.Valid {
			kw.URL = &url.String
		}
		if domain.Valid {
			kw.Domain = &domain.String
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}

// ListByOwner returns analyses for an owner ordered newest-first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT ` + analysisColumns + `
FROM analyses
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []Analysis
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, analysis)
	}
	return analyses, rows.Err()
}

// CountCreatedSince counts analyses created by an owner on/after the given instant.
func (r *PGRepo) CountCreatedSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM analyses WHERE owner_id = $1 AND created_at >= $2`
	var count int
	if err := r.DB.QueryRowContext(ctx, query, ownerID, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListStaleProcessing returns processing analyses started before the given instant.
func (r *PGRepo) ListStaleProcessing(ctx context.Context, olderThan time.Time) ([]Analysis, error) {
	query := `SELECT ` + analysisColumns + `
FROM analyses
WHERE status = 'processing' AND started_at IS NOT NULL AND started_at < $1`
	rows, err := r.DB.QueryContext(ctx, query, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []Analysis
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, analysis)
	}
	return analyses, rows.Err()
}

// checkGuardedWrite maps a zero-row guarded UPDATE to ErrNotFound or ErrTerminal.
func (r *PGRepo) checkGuardedWrite(ctx context.Context, res sql.Result, analysisID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, analysisID); err != nil {
		return err
	}
	return ErrTerminal
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PGRepo) scanOne(row *sql.Row) (Analysis, error) {
	analysis, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	return analysis, nil
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var (
		a                 Analysis
		rankedPayload     sql.NullString
		suggestionPayload sql.NullString
		htmlKey           sql.NullString
		pageMeta          sql.NullString
		errorMessage      sql.NullString
		startedAt         sql.NullTime
		completedAt       sql.NullTime
	)
	if err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.WebsiteID,
		&a.Status,
		&a.Progress,
		&a.Country,
		&a.Language,
		&a.Limit,
		&rankedPayload,
		&suggestionPayload,
		&htmlKey,
		&pageMeta,
		&a.KeywordCount,
		&a.EstimatedCost,
		&errorMessage,
		&a.CreatedAt,
		&startedAt,
		&completedAt,
		&a.UpdatedAt,
	); err != nil {
		return Analysis{}, err
	}
	if rankedPayload.Valid {
		a.RankedPayload = json.RawMessage(rankedPayload.String)
	}
	if suggestionPayload.Valid {
		a.SuggestionPayload = json.RawMessage(suggestionPayload.String)
	}
	if htmlKey.Valid {
		a.HTMLKey = htmlKey.String
	}
	if pageMeta.Valid {
		var meta extract.PageMeta
		if err := json.Unmarshal([]byte(pageMeta.String), &meta); err == nil {
			a.PageMeta = &meta
		}
	}
	if errorMessage.Valid {
		a.ErrorMessage = &errorMessage.String
	}
	if startedAt.Valid {
		a.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return a, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func marshalNullable(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if meta, ok := v.(*extract.PageMeta); ok && meta == nil {
		return nil, nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

var _ Repo = (*PGRepo)(nil)
