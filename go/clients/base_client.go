package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

type BaseClient struct {
	baseURL string
	client  *http.Client

	mu      sync.RWMutex
	headers map[string]string
}

func NewBaseClient(baseURL string) *BaseClient {
	return &BaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: map[string]string{
			"Accept": "application/json",
		},
	}
}

func (c *BaseClient) BaseURL() string {
	return c.baseURL
}

func (c *BaseClient) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers[key] = value
}

func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// MakeRequest sends body as JSON (when non-nil) and returns the raw response body.
// endpoint is joined to the base URL unless it is already absolute.
// Transport failures are wrapped in ErrTransport, non-2xx responses become *APIError.
func (c *BaseClient) MakeRequest(ctx context.Context, method, endpoint string, body any, extra map[string]string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(endpoint), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.mu.RLock()
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	c.mu.RUnlock()
	for key, value := range extra {
		req.Header.Set(key, value)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, endpoint, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(method, endpoint, resp.StatusCode, responseBody)
	}

	return responseBody, nil
}

func (c *BaseClient) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return c.baseURL + endpoint
}

// DoJSON is MakeRequest followed by decoding into out (skipped when out is nil or the body is empty).
func (c *BaseClient) DoJSON(ctx context.Context, method, endpoint string, body, out any, extra map[string]string) error {
	responseBody, err := c.MakeRequest(ctx, method, endpoint, body, extra)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(responseBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(responseBody))
	}
	return nil
}

func (c *BaseClient) Get(ctx context.Context, endpoint string, out any) error {
	return c.DoJSON(ctx, http.MethodGet, endpoint, nil, out, nil)
}

func (c *BaseClient) Post(ctx context.Context, endpoint string, body, out any) error {
	return c.DoJSON(ctx, http.MethodPost, endpoint, body, out, nil)
}

func (c *BaseClient) Patch(ctx context.Context, endpoint string, body, out any) error {
	return c.DoJSON(ctx, http.MethodPatch, endpoint, body, out, nil)
}

func (c *BaseClient) Delete(ctx context.Context, endpoint string) error {
	return c.DoJSON(ctx, http.MethodDelete, endpoint, nil, nil, nil)
}
