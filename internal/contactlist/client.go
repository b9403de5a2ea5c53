// Package contactlist is the client of the external list-management
// provider. It implements the resolver's ContactListProvider.
package contactlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/httpretry"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
)

// ErrListNotFound is returned for an unknown list id.
var ErrListNotFound = errors.New("contact list not found")

// maxPages bounds a single list download.
const maxPages = 1000

// Config holds the provider settings.
type Config struct {
	BaseURL    string
	APIKey     string
	PageSize   int
	Timeout    time.Duration
	MaxRetries int
}

// Client is the contact-list provider API client
type Client struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient httpretry.HTTPDoer
}

// NewClient creates a provider client with retries on transient failures.
func NewClient(cfg Config) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: cfg.Timeout,
		}, cfg.MaxRetries),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing)
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

type listsResponse struct {
	Data []domain.ContactList `json:"data"`
}

type contactsResponse struct {
	Data    []domain.Contact `json:"data"`
	Page    int              `json:"page"`
	Total   int              `json:"total"`
	HasMore *bool            `json:"has_more,omitempty"`
}

// Lists returns the lists available at the provider.
func (c *Client) Lists(ctx context.Context) ([]domain.ContactList, error) {
	var resp listsResponse
	if err := c.get(ctx, "/lists", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ListContacts downloads every contact of a list, page by page.
func (c *Client) ListContacts(ctx context.Context, listID string) ([]domain.Contact, error) {
	var all []domain.Contact
	endpoint := "/lists/" + url.PathEscape(listID) + "/contacts"

	for page := 1; page <= maxPages; page++ {
		params := url.Values{}
		params.Set("page", strconv.Itoa(page))
		params.Set("limit", strconv.Itoa(c.pageSize))

		var resp contactsResponse
		if err := c.get(ctx, endpoint, params, &resp); err != nil {
			return nil, fmt.Errorf("list %s page %d: %w", listID, page, err)
		}
		all = append(all, resp.Data...)

		more := len(resp.Data) == c.pageSize
		if resp.HasMore != nil {
			more = *resp.HasMore
		}
		if resp.Total > 0 && len(all) >= resp.Total {
			more = false
		}
		if !more || len(resp.Data) == 0 {
			break
		}
	}

	logger.Debug("[ContactList] list downloaded", "list_id", listID, "contacts", len(all))
	return all, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrListNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
