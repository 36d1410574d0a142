package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultTimeout    = 8 * time.Second
	idempotencyHeader = "Idempotency-Key"
	maxErrorBody      = 4 << 10
)

// ErrMissingBaseURL is returned when the client has no API endpoint configured.
var ErrMissingBaseURL = errors.New("apiclient: base url is required")

// TokenSource returns the bearer token for the signed-in user. An empty token sends the request
// anonymously.
type TokenSource func(ctx context.Context) (string, error)

// Client issues storefront and back-office calls against the API service.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
	logger  *zap.Logger
}

// Option customises the Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTokenSource attaches a bearer token to every request.
func WithTokenSource(src TokenSource) Option {
	return func(c *Client) {
		c.token = src
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs an API client rooted at baseURL (for example https://api.example.com/api/v1).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// APIError is a non-2xx response decoded from the API error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *APIError) Error() string {
	if e == nil {
		return "apiclient: <nil>"
	}
	if e.Code == "" {
		return fmt.Sprintf("apiclient: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("apiclient: status %d %s: %s", e.Status, e.Code, e.Message)
}

type requestOptions struct {
	idempotencyKey string
	query          url.Values
	header         *http.Header
}

func (c *Client) do(ctx context.Context, method string, segments []string, body, out any, ro requestOptions) error {
	if c == nil || c.baseURL == "" {
		return ErrMissingBaseURL
	}
	endpoint, err := url.JoinPath(c.baseURL, segments...)
	if err != nil {
		return err
	}
	if len(ro.query) > 0 {
		endpoint += "?" + ro.query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ro.idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, ro.idempotencyKey)
	}
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("apiclient: token: %w", err)
		}
		if token = strings.TrimSpace(token); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", zap.String("method", method), zap.String("url", endpoint), zap.Error(err))
		return err
	}
	defer resp.Body.Close()
	c.logger.Debug("api request",
		zap.String("method", method),
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(started)),
	)

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if ro.header != nil {
		*ro.header = resp.Header.Clone()
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}

	var envelope map[string]any
	if err := json.Unmarshal(raw, &envelope); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}
	for key, value := range envelope {
		switch key {
		case "error":
			apiErr.Code, _ = value.(string)
		case "message":
			apiErr.Message, _ = value.(string)
		case "status", "request_id", "trace_id":
		default:
			if apiErr.Details == nil {
				apiErr.Details = make(map[string]any)
			}
			apiErr.Details[key] = value
		}
	}
	return apiErr
}

func ensureIdempotencyKey(key string) string {
	if key = strings.TrimSpace(key); key != "" {
		return key
	}
	return uuid.NewString()
}
