package websites

import (
	"context"
	"errors"
)

// ErrNotFound covers both missing and foreign-owned websites.
var ErrNotFound = errors.New("not found")

// ErrInvalidInput indicates a malformed website payload.
var ErrInvalidInput = errors.New("invalid input")

// Repo defines persistence operations for websites.
type Repo interface {
	Create(ctx context.Context, site Website) error
	GetByID(ctx context.Context, websiteID, ownerID string) (Website, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Website, error)
	Delete(ctx context.Context, websiteID, ownerID string) error
	DeleteByOwner(ctx context.Context, ownerID string) error
}
