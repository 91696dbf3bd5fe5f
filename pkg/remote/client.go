// Package remote implements the HTTP client for the clinic CRM API.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clinicware/clinic-sync/pkg/loader"
	"github.com/clinicware/clinic-sync/pkg/record"
)

// DefaultTimeout bounds a single API request.
const DefaultTimeout = 30 * time.Second

// Client talks to the clinic CRM REST API.
type Client struct {
	baseURL  string
	apiToken string
	client   *http.Client
}

// NewClient creates a client for the CRM API at baseURL. The token is
// optional; when set it is sent as a bearer token. A zero timeout uses
// DefaultTimeout.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: token,
		client:   &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchRecords GETs the record collection for a kind and returns the
// decoded JSON body verbatim. Envelope unwrapping is the loader's job;
// the client only reports transport and decoding failures.
func (c *Client) FetchRecords(ctx context.Context, kind record.Kind) (interface{}, error) {
	url := fmt.Sprintf("%s/api/v1/%s", c.baseURL, kind)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return result, nil
}

// Fetcher adapts the client to a loader.FetchFunc for one kind. A nil
// client yields a nil FetchFunc, which the loader treats as
// remote-unavailable.
func (c *Client) Fetcher(kind record.Kind) loader.FetchFunc {
	if c == nil {
		return nil
	}
	return func(ctx context.Context) (interface{}, error) {
		return c.FetchRecords(ctx, kind)
	}
}
