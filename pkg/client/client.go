package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kurihiro0119/github-issue-insights/internal/domain"
)

// Client is the API client for github-issue-insights
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError is a non-200 reply from the server
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error: %d %s - %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("API error: %d - %s", e.Status, e.Message)
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetRuns lists recent runs; an empty task lists every task
func (c *Client) GetRuns(ctx context.Context, task string, limit int) ([]*domain.Run, error) {
	params := url.Values{}
	if task != "" {
		params.Set("task", task)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var response struct {
		Data []*domain.Run `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/runs", params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetRun retrieves one run with its batch history
func (c *Client) GetRun(ctx context.Context, id string) (*domain.RunDetail, error) {
	var response struct {
		Data *domain.RunDetail `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(id), nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetInsightDigest retrieves insights ranked across the newest batches
func (c *Client) GetInsightDigest(ctx context.Context, batches, top int) (*domain.InsightDigest, error) {
	params := url.Values{}
	if batches > 0 {
		params.Set("limit", strconv.Itoa(batches))
	}
	if top > 0 {
		params.Set("top", strconv.Itoa(top))
	}

	var response struct {
		Data *domain.InsightDigest `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/insights/digest", params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck(ctx context.Context) error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/health", nil, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
