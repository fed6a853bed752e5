package dataforseo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"keyword-backend/internal/provider"
)

const (
	defaultBaseURL      = "https://api.dataforseo.com"
	rankedKeywordsPath  = "/v3/dataforseo_labs/google/ranked_keywords/live"
	keywordIdeasPath    = "/v3/dataforseo_labs/google/keyword_ideas/live"
	statusOK            = 20000
	defaultLanguageCode = "en"
)

// Client implements provider.Client against the DataForSEO Labs API.
type Client struct {
	login      string
	password   string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a DataForSEO client.
func NewClient(login, password string) (*Client, error) {
	if strings.TrimSpace(login) == "" || strings.TrimSpace(password) == "" {
		return nil, fmt.Errorf("DATAFORSEO_LOGIN and DATAFORSEO_PASSWORD are required")
	}
	timeout := 30 * time.Second
	if raw := strings.TrimSpace(os.Getenv("DATAFORSEO_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	baseURL := strings.TrimSpace(os.Getenv("DATAFORSEO_BASE_URL"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		login:    login,
		password: password,
		baseURL:  strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// FetchPageHTML downloads the raw HTML of the given URL with the client's bounded timeout.
func (c *Client) FetchPageHTML(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "keyword-backend/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &provider.Error{StatusCode: resp.StatusCode, Message: "page fetch failed"}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchRankedKeywords returns keywords the domain currently ranks for.
func (c *Client) FetchRankedKeywords(ctx context.Context, domain, country string, limit int) ([]provider.ResultBatch, error) {
	task := map[string]any{
		"target":        domain,
		"location_name": locationName(country),
		"language_code": defaultLanguageCode,
		"limit":         limit,
	}
	return c.post(ctx, rankedKeywordsPath, []map[string]any{task})
}

// FetchKeywordSuggestions returns keyword ideas related to the seed list.
func (c *Client) FetchKeywordSuggestions(ctx context.Context, seeds []string, country string, limit int) ([]provider.ResultBatch, error) {
	if len(seeds) >= provider.MaxSuggestionSeeds {
		seeds = seeds[:provider.MaxSuggestionSeeds-1]
	}
	task := map[string]any{
		"keywords":      seeds,
		"location_name": locationName(country),
		"language_code": defaultLanguageCode,
		"limit":         limit,
	}
	return c.post(ctx, keywordIdeasPath, []map[string]any{task})
}

type apiResponse struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Tasks         []struct {
		StatusCode    int                    `json:"status_code"`
		StatusMessage string                 `json:"status_message"`
		Result        []provider.ResultBatch `json:"result"`
	} `json:"tasks"`
}

func (c *Client) post(ctx context.Context, path string, tasks []map[string]any) ([]provider.ResultBatch, error) {
	payload, err := json.Marshal(tasks)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Basic "+basicAuth(c.login, c.password))
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(truncate(string(body), 200))}
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("provider response parse: %w", err)
	}
	if parsed.StatusCode != statusOK {
		return nil, &provider.Error{StatusCode: parsed.StatusCode, Message: parsed.StatusMessage}
	}

	var batches []provider.ResultBatch
	for _, task := range parsed.Tasks {
		if task.StatusCode != statusOK {
			return nil, &provider.Error{StatusCode: task.StatusCode, Message: task.StatusMessage}
		}
		batches = append(batches, task.Result...)
	}
	return batches, nil
}

func mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
		return fmt.Errorf("%w: %v", provider.ErrTimeout, err)
	}
	return err
}

func basicAuth(login, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(login + ":" + password))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// locationName maps a 2-letter country code to the provider's location name.
// Unknown codes fall back to United States, which the provider accepts.
func locationName(country string) string {
	if name, ok := locationNames[strings.ToUpper(strings.TrimSpace(country))]; ok {
		return name
	}
	return "United States"
}

var locationNames = map[string]string{
	"US": "United States",
	"GB": "United Kingdom",
	"FR": "France",
	"DE": "Germany",
	"ES": "Spain",
	"IT": "Italy",
	"NL": "Netherlands",
	"BE": "Belgium",
	"CH": "Switzerland",
	"CA": "Canada",
	"AU": "Australia",
	"BR": "Brazil",
	"PT": "Portugal",
	"PL": "Poland",
	"SE": "Sweden",
	"NO": "Norway",
	"DK": "Denmark",
	"FI": "Finland",
	"IE": "Ireland",
	"AT": "Austria",
	"JP": "Japan",
	"IN": "India",
	"MX": "Mexico",
}

var _ provider.Client = (*Client)(nil)
