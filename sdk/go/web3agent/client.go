// Package web3agent provides a thin HTTP client for the Web3Agent REST API.
package web3agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. It is intentionally short to avoid hanging network calls.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the Web3Agent REST API.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
}

// AnalysisSubmission represents the payload required to create a new analysis.
type AnalysisSubmission struct {
	ID        string         `json:"id,omitempty"`
	Operation string         `json:"operation"`
	Goal      string         `json:"goal,omitempty"`
	Target    string         `json:"target,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
}

// MemberFinding is one society member's contribution to an analysis.
type MemberFinding struct {
	Role  string `json:"role"`
	Reply string `json:"reply"`
	Error string `json:"error,omitempty"`
}

// AnalysisResult carries the merged outcome of a completed analysis.
type AnalysisResult struct {
	Summary      string          `json:"summary"`
	Coordination string          `json:"coordination"`
	Network      string          `json:"network"`
	Members      []MemberFinding `json:"members,omitempty"`
}

// Analysis mirrors the server-side task record.
type Analysis struct {
	ID         string          `json:"id"`
	Operation  string          `json:"operation"`
	Goal       string          `json:"goal"`
	Target     string          `json:"target"`
	Params     map[string]any  `json:"params,omitempty"`
	Status     string          `json:"status"`
	Attempts   int             `json:"attempts"`
	MaxRetries int             `json:"max_retries"`
	LastError  string          `json:"last_error,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Result     *AnalysisResult `json:"result,omitempty"`
	CreatedAt  int64           `json:"created_at"`
	UpdatedAt  int64           `json:"updated_at"`
}

// Stats aggregates analysis counts by status.
type Stats struct {
	Total           int   `json:"total"`
	Pending         int   `json:"pending"`
	Running         int   `json:"running"`
	Succeeded       int   `json:"succeeded"`
	Failed          int   `json:"failed"`
	OldestUpdatedAt int64 `json:"oldest_updated_at,omitempty"`
	NewestUpdatedAt int64 `json:"newest_updated_at,omitempty"`
}

// ListOptions filters the analyses listing.
type ListOptions struct {
	Limit      int
	Offset     int
	Statuses   []string
	Operations []string
	Query      string
	Ascending  bool
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("web3agent api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the Web3Agent API. apiKey may be empty
// when the server runs without authentication. When httpClient is nil, a
// default client with a sensible timeout is used.
func NewClient(rawURL, apiKey string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, apiKey: apiKey, httpClient: httpClient}, nil
}

// SubmitAnalysis creates a new analysis task.
func (c *Client) SubmitAnalysis(ctx context.Context, submission AnalysisSubmission) (*Analysis, error) {
	var created Analysis
	if err := c.post(ctx, "/api/v1/analyses", submission, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetAnalysis fetches an analysis by identifier.
func (c *Client) GetAnalysis(ctx context.Context, id string) (*Analysis, error) {
	var detail Analysis
	if err := c.get(ctx, "/api/v1/analyses/"+url.PathEscape(id), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListAnalyses fetches analyses matching the given filters.
func (c *Client) ListAnalyses(ctx context.Context, opts ListOptions) ([]*Analysis, error) {
	var payload struct {
		Tasks []*Analysis `json:"tasks"`
	}
	endpoint := "/api/v1/analyses"
	if query := opts.encode(); query != "" {
		endpoint += "?" + query
	}
	if err := c.get(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	return payload.Tasks, nil
}

// GetStats fetches aggregate counters for analyses matching the filters.
func (c *Client) GetStats(ctx context.Context, opts ListOptions) (Stats, error) {
	var stats Stats
	endpoint := "/api/v1/analyses/stats"
	if query := opts.encode(); query != "" {
		endpoint += "?" + query
	}
	if err := c.get(ctx, endpoint, &stats); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// ExecuteTool invokes a single tool directly and returns its raw result map.
func (c *Client) ExecuteTool(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	var result map[string]any
	if params == nil {
		params = map[string]any{}
	}
	if err := c.post(ctx, "/api/v1/tools/"+url.PathEscape(name), params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListTools returns the registered tool names.
func (c *Client) ListTools(ctx context.Context) ([]string, error) {
	var payload struct {
		Tools []string `json:"tools"`
	}
	if err := c.get(ctx, "/api/v1/tools", &payload); err != nil {
		return nil, err
	}
	return payload.Tools, nil
}

// WaitForAnalysis polls an analysis until it reaches a terminal status.
func (c *Client) WaitForAnalysis(ctx context.Context, id string, interval time.Duration) (*Analysis, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		detail, err := c.GetAnalysis(ctx, id)
		if err != nil {
			return nil, err
		}
		if detail.Status == "succeeded" || detail.Status == "failed" {
			return detail, nil
		}
		select {
		case <-ctx.Done():
			return detail, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (o ListOptions) encode() string {
	values := url.Values{}
	if o.Limit > 0 {
		values.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		values.Set("offset", strconv.Itoa(o.Offset))
	}
	if len(o.Statuses) > 0 {
		values.Set("status", strings.Join(o.Statuses, ","))
	}
	if len(o.Operations) > 0 {
		values.Set("operation", strings.Join(o.Operations, ","))
	}
	if o.Query != "" {
		values.Set("q", o.Query)
	}
	if o.Ascending {
		values.Set("order", "asc")
	}
	return values.Encode()
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	parts := strings.SplitN(endpoint, "?", 2)
	rel := &url.URL{Path: path.Join(c.baseURL.Path, parts[0])}
	if len(parts) == 2 {
		rel.RawQuery = parts[1]
	}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		var failure struct {
			Error string `json:"error"`
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &failure)
		}
		apiErr.Message = failure.Error
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
