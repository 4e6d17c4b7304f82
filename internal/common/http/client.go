// Package http wraps net/http with the headers and helpers shared by the
// outbound service clients.
package http

import (
	"context"
	"net/http"
	"time"
)

const DefaultUserAgent = "pm-intelligence/1.0"

type Client struct {
	httpClient *http.Client
	userAgent  string
	headers    map[string]string
}

type Option func(*Client)

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithHeader sets a header on every request that does not already carry it.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: DefaultUserAgent,
		headers:   map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.decorate(req)
	return c.httpClient.Do(req)
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	c.decorate(req)
	return c.httpClient.Do(req)
}

func (c *Client) decorate(req *http.Request) {
	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
}

// Retryable reports whether a response status is worth another attempt.
func Retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}
