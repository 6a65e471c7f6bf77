package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hubcredo/pkg/api"
)

// Client handles API calls to the hubcredo backend.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a new client with the given base URL and token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// do sends a JSON request and decodes the JSON response into out.
// Any status other than the expected ones becomes an *APIError.
func (c *Client) do(method, path string, body, out any, expected ...int) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if c.Token != "" {
		httpReq.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	}
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if !statusIn(resp.StatusCode, expected) {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// withoutTimeout returns a copy of c whose HTTP client never times out.
func (c *Client) withoutTimeout() *Client {
	hc := *c.HTTPClient
	hc.Timeout = 0
	cp := *c
	cp.HTTPClient = &hc
	return &cp
}

func statusIn(code int, expected []int) bool {
	if len(expected) == 0 {
		return code == http.StatusOK
	}
	for _, want := range expected {
		if code == want {
			return true
		}
	}
	return false
}

// errorMessage prefers the "error" field of an api.ErrorResponse body.
func errorMessage(body []byte) string {
	var apiErr api.ErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != "" {
		return apiErr.Error
	}
	return strings.TrimSpace(string(body))
}

// Register sends POST /api/auth/register. No token is needed.
func (c *Client) Register(req api.RegisterRequest) (*api.RegisterResponse, error) {
	var result api.RegisterResponse
	if err := c.do(http.MethodPost, "/api/auth/register", req, &result, http.StatusCreated); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartLoop sends POST /api/loop/start.
func (c *Client) StartLoop(cycles int) (*api.StartLoopResponse, error) {
	var result api.StartLoopResponse
	req := api.StartLoopRequest{Cycles: &cycles}
	if err := c.do(http.MethodPost, "/api/loop/start", req, &result, http.StatusAccepted); err != nil {
		return nil, err
	}
	return &result, nil
}

// StopLoop sends POST /api/loop/stop.
func (c *Client) StopLoop(loopID string) (*api.StopLoopResponse, error) {
	var result api.StopLoopResponse
	if err := c.do(http.MethodPost, "/api/loop/stop", api.StopLoopRequest{LoopID: loopID}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetLoop sends GET /api/loop/status/{id}.
func (c *Client) GetLoop(loopID string) (*api.Loop, error) {
	var result api.Loop
	if err := c.do(http.MethodGet, "/api/loop/status/"+url.PathEscape(loopID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListLoops sends GET /api/loop/all, or /api/loop/active when activeOnly is set.
func (c *Client) ListLoops(activeOnly bool) (*api.LoopListResponse, error) {
	path := "/api/loop/all"
	if activeOnly {
		path = "/api/loop/active"
	}
	var result api.LoopListResponse
	if err := c.do(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunAutomation sends POST /api/automation/start-loop and waits for the batch.
// The server answers only once every cycle has run, which with slow webhooks
// takes minutes, so the client timeout does not apply to this call.
func (c *Client) RunAutomation(cycles int) (*api.RunAutomationResponse, error) {
	var result api.RunAutomationResponse
	req := api.RunAutomationRequest{Cycles: &cycles}
	if err := c.withoutTimeout().do(http.MethodPost, "/api/automation/start-loop", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListLogs sends GET /api/automation/logs.
func (c *Client) ListLogs(page, limit int) (*api.AutomationLogsResponse, error) {
	path := fmt.Sprintf("/api/automation/logs?page=%d&limit=%d", page, limit)
	var result api.AutomationLogsResponse
	if err := c.do(http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Stats sends GET /api/analytics/stats.
func (c *Client) Stats() (*api.StatsResponse, error) {
	var result api.StatsResponse
	if err := c.do(http.MethodGet, "/api/analytics/stats", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UserStats sends GET /api/analytics/user-stats.
func (c *Client) UserStats() (*api.UserStatsResponse, error) {
	var result api.UserStatsResponse
	if err := c.do(http.MethodGet, "/api/analytics/user-stats", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
