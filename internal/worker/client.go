package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/me/slaq/pkg/model"
)

// Client communicates with the slaq server API on behalf of a worker.
type Client struct {
	baseURL    string
	tenantID   string // optional; restricts claims to one tenant
	httpClient *http.Client
}

// NewClient creates a new worker API client with connection pooling.
// tenantID may be empty to let the server's fairness selector pick.
func NewClient(baseURL, tenantID string) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Client{
		baseURL:  baseURL,
		tenantID: tenantID,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// Next claims the next eligible task. Returns nil if no work is
// available (204).
func (c *Client) Next(ctx context.Context) (*model.PipelineTask, error) {
	body, err := json.Marshal(model.DequeueRequest{TenantID: c.tenantID})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/tasks/next", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("next: %w", err)
	}

	if resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("next: HTTP %d: %s", resp.StatusCode, respBody)
	}

	var task model.PipelineTask
	if err := decodeResponseData(resp, &task); err != nil {
		return nil, fmt.Errorf("next: %w", err)
	}
	return &task, nil
}

// Succeed reports successful completion of a claimed task.
func (c *Client) Succeed(ctx context.Context, taskID string, actualCost float64) error {
	body, err := json.Marshal(model.CompleteRequest{ActualCost: actualCost})
	if err != nil {
		return err
	}
	if _, err := c.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/api/v1/tasks/%s/succeed", taskID), body); err != nil {
		return fmt.Errorf("succeed: %w", err)
	}
	return nil
}

// Fail reports an execution failure. The server decides whether the
// task is retried or terminally failed.
func (c *Client) Fail(ctx context.Context, taskID string, errMsg string) error {
	body, err := json.Marshal(model.FailRequest{Error: errMsg})
	if err != nil {
		return err
	}
	if _, err := c.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/api/v1/tasks/%s/fail", taskID), body); err != nil {
		return fmt.Errorf("fail: %w", err)
	}
	return nil
}

// doRequest executes an HTTP request and returns the response.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody)
	}

	return resp, nil
}

// decodeResponseData extracts the data field from the API response envelope.
func decodeResponseData(resp *http.Response, dest any) error {
	defer resp.Body.Close()

	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *model.APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}

	return json.Unmarshal(envelope.Data, dest)
}
