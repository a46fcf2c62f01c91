// Package upstream implements the per-source pooled HTTP client: header
// shaping, transparent gzip, and bounded exponential-backoff retry on
// idempotent GETs.
package upstream

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// RetryOptions configures the backoff loop, grounded on the teacher
// pack's core.WithRetry shape but restricted to spec.md §4.3's numbers
// (two retries, initial 0.2s, factor 2) and GET-only idempotent calls.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryOptions matches spec.md §4.3: two automatic retries with
// exponential backoff, initial 0.2s, factor 2.
var DefaultRetryOptions = RetryOptions{
	MaxAttempts:  3, // 1 initial try + 2 retries
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     10 * time.Second,
	Multiplier:   2.0,
}

// Config configures one source's upstream client.
type Config struct {
	// RequestHeaders are this source's headers, merged over the
	// browser-like defaults and in turn overridden by pass-through client
	// headers (see MergeHeaders).
	RequestHeaders map[string]string
	Retry          RetryOptions
	Logger         *slog.Logger
}

// Response is the normalized result of a Get call.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Client is one source's pooled HTTP client.
type Client struct {
	http *http.Client
	cfg  Config
	log  *slog.Logger
}

// New builds a Client with spec.md §4.3's pool/timeout settings:
// connection pool size 10, idle timeout 60s, per-request timeout 15s,
// connect timeout 10s, TLS verification off (retained "current
// behavior").
func New(cfg Config) *Client {
	if cfg.Retry == (RetryOptions{}) {
		cfg.Retry = DefaultRetryOptions
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		DialContext: (&dialer{connectTimeout: 10 * time.Second}).dial,
	}

	return &Client{
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		},
		cfg: cfg,
		log: cfg.Logger,
	}
}

// Get issues an idempotent GET to path with the merged header set
// (browser-like defaults < per-source headers < pass-through headers),
// retrying transient failures with exponential backoff. The response
// body is transparently gunzipped when Content-Encoding: gzip.
func (c *Client) Get(ctx context.Context, url string, passthrough http.Header) (*Response, error) {
	headers := MergeHeaders(c.cfg.RequestHeaders, passthrough)

	var lastErr error
	delay := c.cfg.Retry.InitialDelay

	for attempt := 0; attempt < c.cfg.Retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay = time.Duration(float64(delay) * c.cfg.Retry.Multiplier)
			if delay > c.cfg.Retry.MaxDelay {
				delay = c.cfg.Retry.MaxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("upstream: build request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.log.Warn("upstream request failed", "url", url, "attempt", attempt+1, "err", err)
			continue
		}

		body, err := readBody(resp)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			c.log.Warn("upstream body read failed", "url", url, "attempt", attempt+1, "err", err)
			continue
		}

		if isTransientStatus(resp.StatusCode) && attempt < c.cfg.Retry.MaxAttempts-1 {
			lastErr = fmt.Errorf("upstream: transient status %d", resp.StatusCode)
			c.log.Warn("upstream transient status, retrying", "url", url, "status", resp.StatusCode, "attempt", attempt+1)
			continue
		}

		return &Response{Status: resp.StatusCode, Headers: resp.Header, Body: body}, nil
	}

	return nil, fmt.Errorf("upstream: max retries exceeded: %w", lastErr)
}

func readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("upstream: gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}
	return io.ReadAll(reader)
}

func isTransientStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// dialer applies a connect timeout separate from the overall request
// timeout, matching spec.md §4.3's "connect timeout 10s" distinct from
// "per-request timeout 15s".
type dialer struct {
	connectTimeout time.Duration
}

func (d *dialer) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	nd := net.Dialer{Timeout: d.connectTimeout}
	return nd.DialContext(ctx, network, addr)
}
