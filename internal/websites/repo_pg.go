package websites

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new website.
func (r *PGRepo) Create(ctx context.Context, site Website) error {
	const query = `
INSERT INTO websites (id, owner_id, url, domain, name, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	var name sql.NullString
	if site.Name != "" {
		name = sql.NullString{String: site.Name, Valid: true}
	}
	_, err := r.DB.ExecContext(ctx, query,
		site.ID,
		site.OwnerID,
		site.URL,
		site.Domain,
		name,
		site.CreatedAt,
	)
	return err
}

// GetByID returns a website only when it belongs to the given owner.
func (r *PGRepo) GetByID(ctx context.Context, websiteID, ownerID string) (Website, error) {
	const query = `
SELECT id, owner_id, url, domain, name, created_at
FROM websites
WHERE id = $1 AND owner_id = $2
LIMIT 1`
	var site Website
	var name sql.NullString
	err := r.DB.QueryRowContext(ctx, query, websiteID, ownerID).Scan(
		&site.ID,
		&site.OwnerID,
		&site.URL,
		&site.Domain,
		&name,
		&site.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Website{}, ErrNotFound
		}
		return Website{}, err
	}
	if name.Valid {
		site.Name = name.String
	}
	return site, nil
}

// ListByOwner returns an owner's websites, newest first.
func (r *PGRepo) ListByOwner(ctx context.Context, ownerID string) ([]Website, error) {
	const query = `
SELECT id, owner_id, url, domain, name, created_at
FROM websites
WHERE owner_id = $1
ORDER BY created_at DESC`
	rows, err := r.DB.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []Website
	for rows.Next() {
		var site Website
		var name sql.NullString
		if err := rows.Scan(&site.ID, &site.OwnerID, &site.URL, &site.Domain, &name, &site.CreatedAt); err != nil {
			return nil, err
		}
		if name.Valid {
			site.Name = name.String
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// Delete removes a website owned by the given owner.
func (r *PGRepo) Delete(ctx context.Context, websiteID, ownerID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM websites WHERE id = $1 AND owner_id = $2`, websiteID, ownerID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByOwner removes all websites for an owner.
func (r *PGRepo) DeleteByOwner(ctx context.Context, ownerID string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM websites WHERE owner_id = $1`, ownerID)
	return err
}

var _ Repo = (*PGRepo)(nil)
