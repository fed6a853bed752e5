package websites

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service contains business logic for websites.
type Service struct {
	Repo Repo
}

// Register validates and stores a new analysis target for an owner.
func (s *Service) Register(ctx context.Context, ownerID, rawURL, name string) (Website, error) {
	if ownerID == "" {
		return Website{}, errors.New("ownerID is required")
	}
	parsed, err := ParseTargetURL(rawURL)
	if err != nil {
		return Website{}, err
	}

	site := Website{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		URL:       parsed.String(),
		Domain:    Domain(parsed),
		Name:      strings.TrimSpace(name),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, site); err != nil {
		return Website{}, err
	}
	return site, nil
}

// Get returns an owner's website by ID.
func (s *Service) Get(ctx context.Context, websiteID, ownerID string) (Website, error) {
	if websiteID == "" || ownerID == "" {
		return Website{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, websiteID, ownerID)
}

// List returns an owner's websites, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]Website, error) {
	if ownerID == "" {
		return nil, errors.New("ownerID is required")
	}
	return s.Repo.ListByOwner(ctx, ownerID)
}

// Delete removes an owner's website.
func (s *Service) Delete(ctx context.Context, websiteID, ownerID string) error {
	if websiteID == "" || ownerID == "" {
		return ErrNotFound
	}
	return s.Repo.Delete(ctx, websiteID, ownerID)
}

// ParseTargetURL checks that a website URL is absolute http(s) with a host.
func ParseTargetURL(raw string) (*url.URL, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url: %v", ErrInvalidInput, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: url scheme must be http or https", ErrInvalidInput)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("%w: url host is required", ErrInvalidInput)
	}
	return parsed, nil
}

// Domain strips a leading www. from the URL host.
func Domain(parsed *url.URL) string {
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}
