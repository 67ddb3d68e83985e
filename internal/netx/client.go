package netx

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Client wraps an http.Client with retry behavior for transient failures.
//
// Do applies the configured RetryPolicy; GetStream performs exactly one
// attempt so callers running probe-style searches control retries themselves.
type Client struct {
	httpClient *http.Client
	retry      RetryPolicy
}

// NewClient builds a Client with a tuned transport and timeout.
//
// A zero or negative timeout is normalized to 30 seconds. The timeout covers
// the whole exchange including body reads, so download clients should pass a
// generous value.
func NewClient(timeout time.Duration, retry RetryPolicy) *Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout, Transport: tr},
		retry:      retry,
	}
}

// NewClientWithHTTPClient builds a Client from an existing http.Client.
//
// A nil client is replaced with a default client, and a non-positive timeout
// is normalized to 30 seconds.
func NewClientWithHTTPClient(httpClient *http.Client, retry RetryPolicy) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 30 * time.Second
	}
	return &Client{
		httpClient: httpClient,
		retry:      retry,
	}
}

// Do executes req with the client's RetryPolicy.
//
// Retryable transport errors and HTTP 5xx/429 responses are retried. Any
// other response, including 403, is returned to the caller as-is: which
// statuses are definitive is the caller's business rule, not transport's.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	return RetryOperation(ctx, c.retry, func() (*http.Response, error) {
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, Permanent(err)
			}
			req.Body = body
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isRetryableError(err) {
				return nil, err
			}
			return nil, Permanent(err)
		}
		if resp.StatusCode >= 500 || resp.StatusCode == 429 {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("retryable status: %d", resp.StatusCode)
		}
		return resp, nil
	})
}

// GetStream sends a single GET request and returns the raw response.
//
// No retries are applied and no status filtering happens; the caller owns
// both the status decision and the response body.
func (c *Client) GetStream(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.httpClient.Do(req)
}

// GetBytes sends a GET request through Do and returns status code plus the
// full response body.
func (c *Client) GetBytes(ctx context.Context, rawURL string, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, b, nil
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection reset") || strings.Contains(s, "timeout") || strings.Contains(s, "eof")
}
