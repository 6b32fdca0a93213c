// Package openrouter is the HTTP client for the remote reasoning backend.
// The orchestration core never touches this package directly; it is consumed
// through the agent handle in internal/agents.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

const maxRetries = 3

// ErrTransport wraps network-level failures so callers can distinguish them
// from malformed-output conditions.
var ErrTransport = errors.New("openrouter: transport failure")

// Client is an OpenRouter API client with bounded retry for transient
// failures.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	backoffFunc func(attempt int) time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithBackoff replaces the retry backoff schedule (used by tests).
func WithBackoff(f func(attempt int) time.Duration) Option {
	return func(c *Client) { c.backoffFunc = f }
}

// NewClient creates a Client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{},
		apiKey:      apiKey,
		baseURL:     defaultBaseURL,
		backoffFunc: defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// ChatCompletion sends a chat completion request, retrying on 429 and 5xx.
func (c *Client) ChatCompletion(ctx context.Context, model string, messages []Message) (*ChatResponse, error) {
	body, err := json.Marshal(ChatRequest{Model: model, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}

	resp, err := c.doWithRetry(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		c.setHeaders(req)
		return c.httpClient.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("openrouter: decoding response: %w", err)
	}
	return &chatResp, nil
}

// ListModels retrieves available models.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("openrouter: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openrouter: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var modelsResp ModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&modelsResp); err != nil {
		return nil, fmt.Errorf("openrouter: decoding models: %w", err)
	}
	return modelsResp.Data, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

func isRetryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= 500
}

func (c *Client) doWithRetry(ctx context.Context, do func(context.Context) (*http.Response, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.backoffFunc(attempt-1)); err != nil {
				return nil, err
			}
		}

		resp, err := do(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransport, err)
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if !isRetryable(resp.StatusCode) {
			return nil, fmt.Errorf("openrouter: unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		// Respect Retry-After on 429, on top of the backoff schedule.
		if resp.StatusCode == http.StatusTooManyRequests {
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				delay := time.Duration(secs) * time.Second
				// A zero backoff schedule signals test mode; skip the wait.
				if delay > 0 && c.backoffFunc(0) > 0 {
					if err := sleep(ctx, delay); err != nil {
						return nil, err
					}
				}
			}
		}

		lastErr = fmt.Errorf("openrouter: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil, lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
