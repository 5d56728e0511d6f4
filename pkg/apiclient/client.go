// Package apiclient is a thin JSON client for the StudyHub HTTP API. Every
// response is decoded from the {success, data, error} envelope.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNetwork wraps transport failures (DNS, refused connections, timeouts).
	ErrNetwork = errors.New("network unavailable")
	// ErrMalformedResponse is returned when a 2xx body is not a valid envelope.
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is a non-success API response.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

// TokenFunc returns the bearer token for the current user, or "" when anonymous.
type TokenFunc func(ctx context.Context) (string, error)

// Client performs envelope-aware JSON requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenFunc
	maxRetries int
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithToken(fn TokenFunc) Option {
	return func(c *Client) { c.token = fn }
}

// WithMaxRetries sets how many times a 429 response is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: 2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, body any) error {
	return c.Do(ctx, http.MethodDelete, path, body, nil)
}

// Do sends the request and decodes the envelope's data into out (when non-nil).
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	for attempt := 0; ; attempt++ {
		status, respBody, header, err := c.roundTrip(ctx, method, path, payload)
		if err != nil {
			return err
		}

		if status == http.StatusTooManyRequests && attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryAfter(header, attempt)):
				continue
			}
		}

		return decode(status, respBody, out)
	}
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte) (int, []byte, http.Header, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("resolving credentials: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: reading response: %v", ErrNetwork, err)
	}
	return resp.StatusCode, respBody, resp.Header, nil
}

func decode(status int, body []byte, out any) error {
	var env envelope
	parseErr := json.Unmarshal(body, &env)

	if status < 200 || status >= 300 {
		msg := fmt.Sprintf("Request failed with status %d", status)
		if parseErr == nil && strings.TrimSpace(env.Error) != "" {
			msg = env.Error
		}
		return &StatusError{Status: status, Code: env.Code, Message: msg}
	}

	if parseErr != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, parseErr)
	}
	if env.Success == nil {
		return fmt.Errorf("%w: missing success flag", ErrMalformedResponse)
	}
	if !*env.Success {
		msg := env.Error
		if strings.TrimSpace(msg) == "" {
			msg = fmt.Sprintf("Request failed with status %d", status)
		}
		return &StatusError{Status: status, Code: env.Code, Message: msg}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func retryAfter(h http.Header, attempt int) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Duration(1<<attempt) * 250 * time.Millisecond
}
