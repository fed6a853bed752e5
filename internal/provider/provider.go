package provider

import (
	"context"
	"errors"
	"fmt"
)

// MaxSuggestionSeeds is the hard cap on seed keywords per suggestion request.
const MaxSuggestionSeeds = 200

// Client abstracts the external keyword-data and page-fetch service.
type Client interface {
	FetchPageHTML(ctx context.Context, url string) (string, error)
	FetchRankedKeywords(ctx context.Context, domain, country string, limit int) ([]ResultBatch, error)
	FetchKeywordSuggestions(ctx context.Context, seeds []string, country string, limit int) ([]ResultBatch, error)
}

// ErrTimeout indicates the upstream did not respond within the call's bounded timeout.
var ErrTimeout = errors.New("provider request timeout")

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("keyword data provider not configured")

// Error indicates a non-success response from the upstream provider.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider error: status %d: %s", e.StatusCode, e.Message)
}

// PlaceholderClient is a stub implementation used when no provider credentials are configured.
type PlaceholderClient struct{}

// FetchPageHTML returns ErrNotConfigured.
func (PlaceholderClient) FetchPageHTML(ctx context.Context, url string) (string, error) {
	_ = ctx
	_ = url
	return "", ErrNotConfigured
}

// FetchRankedKeywords returns ErrNotConfigured.
func (PlaceholderClient) FetchRankedKeywords(ctx context.Context, domain, country string, limit int) ([]ResultBatch, error) {
	_ = ctx
	_ = domain
	_ = country
	_ = limit
	return nil, ErrNotConfigured
}

// FetchKeywordSuggestions returns ErrNotConfigured.
func (PlaceholderClient) FetchKeywordSuggestions(ctx context.Context, seeds []string, country string, limit int) ([]ResultBatch, error) {
	_ = ctx
	_ = seeds
	_ = country
	_ = limit
	return nil, ErrNotConfigured
}

var _ Client = PlaceholderClient{}
