// Package parallelapi implements the remote task-group capability over
// the Parallel task-execution HTTP API. It is the only package that
// knows the wire shapes; the coordinator sees it solely through
// batch.GroupClient.
package parallelapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/bulkrun/bulkrun/internal/batch"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.parallel.ai"

// betaHeader opts the requests into the task-group beta surface.
const betaHeader = "task-group-2025-02-14"

// Config holds the settings for the API client.
type Config struct {
	// APIKey authenticates every request.
	APIKey string

	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// MaxRetries caps the in-client retries for transient failures
	// (network errors, 429 and 5xx responses). The coordinator's outer
	// loops remain the recovery mechanism for anything past that.
	MaxRetries uint64
}

// Client is the HTTP implementation of batch.GroupClient.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// compile-time interface check
var _ batch.GroupClient = (*Client)(nil)

// NewClient creates a client from config. The API key is required.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key cannot be empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// CreateGroup implements batch.GroupClient.
func (c *Client) CreateGroup(ctx context.Context) (string, error) {
	var resp struct {
		TaskGroupID string `json:"taskgroup_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1beta/tasks/groups", struct{}{}, &resp); err != nil {
		return "", fmt.Errorf("failed to create task group: %w", err)
	}
	if resp.TaskGroupID == "" {
		return "", errors.New("create task group response has no taskgroup_id")
	}
	return resp.TaskGroupID, nil
}

// AddRuns implements batch.GroupClient. The API returns run ids in the
// order the inputs were given.
func (c *Client) AddRuns(ctx context.Context, groupID string, inputs []batch.RunInput) ([]string, error) {
	body := struct {
		Inputs []batch.RunInput `json:"inputs"`
	}{Inputs: inputs}
	var resp struct {
		RunIDs []string `json:"run_ids"`
	}
	path := fmt.Sprintf("/v1beta/tasks/groups/%s/runs", groupID)
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, fmt.Errorf("failed to add runs to group %s: %w", groupID, err)
	}
	return resp.RunIDs, nil
}

// GroupStatus implements batch.GroupClient.
func (c *Client) GroupStatus(ctx context.Context, groupID string) (batch.GroupStatus, error) {
	var resp struct {
		Status struct {
			IsActive bool `json:"is_active"`
		} `json:"status"`
	}
	path := fmt.Sprintf("/v1beta/tasks/groups/%s", groupID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return batch.GroupStatus{}, fmt.Errorf("failed to get status of group %s: %w", groupID, err)
	}
	return batch.GroupStatus{IsActive: resp.Status.IsActive}, nil
}

// RunResult implements batch.GroupClient. A non-2xx response surfaces
// as an error; once the owning group is finished that means the run
// failed remotely.
func (c *Client) RunResult(ctx context.Context, runID string) (*batch.RunOutput, error) {
	var resp struct {
		Output struct {
			Type    string         `json:"type"`
			Content map[string]any `json:"content"`
		} `json:"output"`
	}
	path := fmt.Sprintf("/v1/tasks/runs/%s/result", runID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get result of run %s: %w", runID, err)
	}
	return &batch.RunOutput{Type: resp.Output.Type, Content: resp.Output.Content}, nil
}

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api responded with status %d: %s", e.StatusCode, e.Body)
}

// do sends one JSON request with retries for transient failures. Each
// attempt carries a fresh request id so server-side logs can tell
// retries apart.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	operation := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("x-api-key", c.cfg.APIKey)
		req.Header.Set("parallel-beta", betaHeader)
		req.Header.Set("X-Request-ID", uuid.NewString())
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			c.logger.Warn("request failed, will retry",
				"method", method,
				"path", path,
				"error", err)
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			c.logger.Warn("retryable api response",
				"method", method,
				"path", path,
				"status", resp.StatusCode)
			return &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(&APIError{StatusCode: resp.StatusCode, Body: string(data)})
		}
		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
			}
		}
		return nil
	}

	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.cfg.MaxRetries)
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}
