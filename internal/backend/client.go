// Package backend is the HTTP client for the automation backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Veraticus/jobdeck/internal/common"
	"github.com/Veraticus/jobdeck/internal/model"
)

// DefaultTimeout bounds every request so a hung backend surfaces as a failure.
const DefaultTimeout = 15 * time.Second

// Client talks to the automation backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient creates a client for the backend rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: backend url", common.ErrMissingConfig)
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: backend url %q", common.ErrInvalidConfig, baseURL)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Method     string
	Path       string
	Body       string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: %d - %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else if method == http.MethodPost {
		reader = bytes.NewReader([]byte("{}"))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	slog.Debug("Backend request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %s %s: %w", common.ErrBackendUnavailable, method, path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Debug("Failed to close response body", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := &HTTPError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
		if resp.StatusCode >= 500 {
			return &common.RetryableError{Err: httpErr, Retryable: true}
		}
		return httpErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

// actionResponse is the generic {status, message, errors} shape returned by mutating endpoints.
type actionResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}

func (r actionResponse) accepted() bool {
	switch strings.ToLower(r.Status) {
	case "started", "success", "stop_requested", "ok":
		return true
	}
	return false
}

func (r actionResponse) acceptance() model.Acceptance {
	if r.accepted() {
		return model.Acceptance{Accepted: true, Message: r.Message}
	}
	reasons := r.Errors
	if len(reasons) == 0 && r.Message != "" {
		reasons = []string{r.Message}
	}
	if len(reasons) == 0 {
		reasons = []string{fmt.Sprintf("unexpected response status %q", r.Status)}
	}
	return model.Acceptance{Accepted: false, Message: r.Message, Reasons: reasons}
}

func (r actionResponse) err() error {
	if a := r.acceptance(); !a.Accepted {
		return &common.RejectedError{Reasons: a.Reasons}
	}
	return nil
}

// statusResponse is the polled job status shape. Unknown fields are ignored.
type statusResponse struct {
	CurrentEmail *string        `json:"current_email"`
	Status       string         `json:"status"`
	Message      string         `json:"message"`
	Messages     []wireLogEntry `json:"messages"`
	Total        int            `json:"total"`
	Completed    int            `json:"completed"`
	Successful   int            `json:"successful"`
	Failed       int            `json:"failed"`
}

type wireLogEntry struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

func (s statusResponse) snapshot() model.ProgressSnapshot {
	snap := model.ProgressSnapshot{
		Status:       model.NormalizeStatus(s.Status),
		Message:      s.Message,
		Total:        s.Total,
		Completed:    s.Completed,
		SuccessCount: s.Successful,
		FailCount:    s.Failed,
	}
	if s.CurrentEmail != nil {
		snap.CurrentEntity = *s.CurrentEmail
	}
	if len(s.Messages) > 0 {
		snap.Messages = make([]model.LogEntry, len(s.Messages))
		for i, m := range s.Messages {
			snap.Messages[i] = model.LogEntry{Text: m.Text, Level: model.ParseLevel(m.Type)}
		}
	}
	return snap
}
