// Package client provides an HTTP client for the energy report API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hawky-4s-/energy-report-dashboard/pkg/types"
)

// Endpoint names used for logging and metrics.
const (
	EndpointMeters = "meters"
	EndpointReport = "report"
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client is an HTTP client for the energy report API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
// Zero means every fetch is a single request.
func WithMaxRetries(retries int) Option {
	return func(c *Client) {
		c.maxRetries = retries
	}
}

// New creates a new energy report API client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the API origin the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchMeters fetches the list of known meter identifiers, in API order.
func (c *Client) FetchMeters(ctx context.Context) ([]types.MeterID, error) {
	u, err := c.endpoint("/api/meters", nil)
	if err != nil {
		return nil, err
	}

	var meters []types.MeterID
	if err := c.getJSON(ctx, u, &meters); err != nil {
		return nil, err
	}
	if meters == nil {
		// a JSON null is treated as an empty list
		meters = []types.MeterID{}
	}
	return meters, nil
}

// FetchReport fetches the hourly report for the given meter.
// The meter id is passed through verbatim.
func (c *Client) FetchReport(ctx context.Context, meterID types.MeterID) (*types.Report, error) {
	q := url.Values{}
	q.Set("meterId", string(meterID))
	u, err := c.endpoint("/api/report", q)
	if err != nil {
		return nil, err
	}

	var report types.Report
	if err := c.getJSON(ctx, u, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Ping checks if the energy report API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	u, err := c.endpoint("/api/meters", nil)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Debug("HTTP request failed",
			"method", req.Method,
			"url", u,
			"error", err,
		)
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if !isSuccess(resp.StatusCode) {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) endpoint(path string, q url.Values) (string, error) {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if len(q) == 0 {
		return endpoint, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// getJSON performs a GET with retry support and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s...
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			slog.Warn("retrying energy report API request",
				"url", url,
				"attempt", attempt,
				"max_retries", c.maxRetries,
				"backoff", backoff.String(),
				"last_error", lastErr.Error(),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		err := c.doGet(ctx, url, out)
		if err == nil {
			return nil
		}
		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if c.maxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

func (c *Client) doGet(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	slog.Debug("sending HTTP request",
		"method", req.Method,
		"url", url,
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Debug("HTTP request failed",
			"method", req.Method,
			"url", url,
			"error", err,
		)
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	bodyPreview := string(body)
	if len(bodyPreview) > 500 {
		bodyPreview = bodyPreview[:500] + "... (truncated)"
	}
	slog.Debug("received HTTP response",
		"status_code", resp.StatusCode,
		"status", resp.Status,
		"content_length", resp.ContentLength,
		"body_preview", bodyPreview,
	)

	if !isSuccess(resp.StatusCode) {
		return &StatusError{StatusCode: resp.StatusCode, Body: bodyPreview}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
