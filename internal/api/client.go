// Package api is a client for the Binance Chain DEX HTTP API.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Klingon-tech/bnbchain-kit/internal/log"
)

// Errors returned by the client.
var (
	ErrRateLimited           = errors.New("rate limited")
	ErrAccountNotFound       = errors.New("account not found")
	ErrNoTransactionReturned = errors.New("broadcast returned no transaction")
	ErrWrongTransaction      = errors.New("broadcast rejected transaction")
)

// Error is a non-2xx response from the API.
type Error struct {
	StatusCode int
	Code       int64
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: http %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: http %d: code %d: %s", e.StatusCode, e.Code, e.Message)
}

// DefaultBackoff is the delay schedule for retrying rate-limited requests.
var DefaultBackoff = []time.Duration{1 * time.Second, 3 * time.Second}

// Client is a DEX API HTTP client.
type Client struct {
	endpoint string
	http     *http.Client
	backoff  []time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBackoff replaces the rate-limit retry schedule.
func WithBackoff(delays ...time.Duration) Option {
	return func(c *Client) { c.backoff = delays }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a client for endpoint (e.g. https://dex.binance.org).
func New(endpoint string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
		backoff:  DefaultBackoff,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Endpoint returns the API base URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Host returns the host part of the endpoint.
func (c *Client) Host() string {
	u, err := url.Parse(c.endpoint)
	if err != nil || u.Host == "" {
		return c.endpoint
	}
	return u.Host
}

func (c *Client) url(path string, query url.Values) string {
	u := c.endpoint + "/api/v1/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do sends a request, retrying on HTTP 429 according to the backoff
// schedule, and returns the parsed body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, contentType string) (gjson.Result, error) {
	logger := log.API.With().Str("method", method).Str("path", path).Logger()

	for attempt := 0; ; attempt++ {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), rd)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("build request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("http request: %w", err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return gjson.Result{}, fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt >= len(c.backoff) {
				return gjson.Result{}, fmt.Errorf("%s %s: %w", method, path, ErrRateLimited)
			}
			delay := c.backoff[attempt]
			logger.Debug().Int("attempt", attempt+1).Dur("delay", delay).Msg("Rate limited, retrying")
			select {
			case <-ctx.Done():
				return gjson.Result{}, ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &Error{StatusCode: resp.StatusCode}
			if gjson.ValidBytes(data) {
				r := gjson.ParseBytes(data)
				apiErr.Code = r.Get("code").Int()
				apiErr.Message = r.Get("message").String()
			} else {
				apiErr.Message = strings.TrimSpace(string(data))
			}
			return gjson.Result{}, apiErr
		}

		if !gjson.ValidBytes(data) {
			return gjson.Result{}, fmt.Errorf("%s %s: invalid json response", method, path)
		}
		return gjson.ParseBytes(data), nil
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (gjson.Result, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, "")
}
