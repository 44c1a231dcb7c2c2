package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIClient wraps an http.Client and a base URL to call the rigwatch REST API.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIClient creates a new APIClient targeting the given base URL.
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// doGet performs an HTTP GET and returns the response body as raw JSON.
func (c *APIClient) doGet(path string) (json.RawMessage, error) {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from GET %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s returned HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.RawMessage(body), nil
}

// doPost performs an HTTP POST with a JSON body and returns the response body as raw JSON.
func (c *APIClient) doPost(path string, payload interface{}) (json.RawMessage, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling POST body for %s: %w", path, err)
		}
		reqBody = bytes.NewReader(data)
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", reqBody)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from POST %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("POST %s returned HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.RawMessage(body), nil
}

// withQuery appends the non-empty values as a query string.
func withQuery(path string, kv ...string) string {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			q.Set(kv[i], kv[i+1])
		}
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// ── Fleet ────────────────────────────────────────────────────────────────

// GetFleetSummary calls GET /api/v1/fleet/summary.
func (c *APIClient) GetFleetSummary() (json.RawMessage, error) {
	return c.doGet("/api/v1/fleet/summary")
}

// ListInstances calls GET /api/v1/fleet/instances.
func (c *APIClient) ListInstances(sort, order string) (json.RawMessage, error) {
	return c.doGet(withQuery("/api/v1/fleet/instances", "sort", sort, "order", order))
}

// GetInstance calls GET /api/v1/fleet/instances/{id}.
func (c *APIClient) GetInstance(id string) (json.RawMessage, error) {
	return c.doGet("/api/v1/fleet/instances/" + url.PathEscape(id))
}

// ListOutliers calls GET /api/v1/fleet/outliers.
func (c *APIClient) ListOutliers() (json.RawMessage, error) {
	return c.doGet("/api/v1/fleet/outliers")
}

// ListHardwareClasses calls GET /api/v1/fleet/classes.
func (c *APIClient) ListHardwareClasses() (json.RawMessage, error) {
	return c.doGet("/api/v1/fleet/classes")
}

// GetRunway calls GET /api/v1/fleet/runway.
func (c *APIClient) GetRunway() (json.RawMessage, error) {
	return c.doGet("/api/v1/fleet/runway")
}

// ListIssues calls GET /api/v1/fleet/issues.
func (c *APIClient) ListIssues(kind string) (json.RawMessage, error) {
	return c.doGet(withQuery("/api/v1/fleet/issues", "kind", kind))
}

// GetCycleHistory calls GET /api/v1/fleet/history.
func (c *APIClient) GetCycleHistory() (json.RawMessage, error) {
	return c.doGet("/api/v1/fleet/history")
}

// ListTrippedBreakers calls GET /api/v1/fleet/breakers.
func (c *APIClient) ListTrippedBreakers() (json.RawMessage, error) {
	return c.doGet("/api/v1/fleet/breakers")
}

// RefreshFleet calls POST /api/v1/fleet/refresh.
func (c *APIClient) RefreshFleet() (json.RawMessage, error) {
	return c.doPost("/api/v1/fleet/refresh", nil)
}

// ── Config ───────────────────────────────────────────────────────────────

// GetConfig calls GET /api/v1/config.
func (c *APIClient) GetConfig() (json.RawMessage, error) {
	return c.doGet("/api/v1/config")
}
