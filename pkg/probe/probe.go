// Package probe checks reachability of the analysis webhook.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	PingTimeout = 5 * time.Second
	SendTimeout = 30 * time.Second

	maxBody = 64 << 10
)

// Result is what the admin sees. Failures are values, never errors.
type Result struct {
	Success    bool   `json:"success"`
	Online     bool   `json:"online"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
	Message    string `json:"message"`
	LatencyMS  int64  `json:"latency_ms"`
}

type Client struct {
	pingTimeout time.Duration
	sendTimeout time.Duration
	client      *http.Client
}

func New() *Client {
	return &Client{
		pingTimeout: PingTimeout,
		sendTimeout: SendTimeout,
		client:      &http.Client{},
	}
}

// WithTimeouts overrides both timeouts.
func (c *Client) WithTimeouts(ping, send time.Duration) *Client {
	out := *c
	out.pingTimeout, out.sendTimeout = ping, send
	return &out
}

// Ping issues a HEAD request. The endpoint is online when it answers below 500.
func (c *Client) Ping(ctx context.Context, url string) Result {
	if url == "" {
		return Result{Message: "webhook URL is not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return Result{Message: fmt.Sprintf("invalid URL: %v", err)}
	}
	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return Result{Message: fmt.Sprintf("offline: %v", err), LatencyMS: latency}
	}
	resp.Body.Close()
	r := Result{StatusCode: resp.StatusCode, LatencyMS: latency}
	if resp.StatusCode < http.StatusInternalServerError {
		r.Success, r.Online = true, true
		r.Message = "online"
	} else {
		r.Message = fmt.Sprintf("server error: HTTP %d", resp.StatusCode)
	}
	return r
}

// SendTest posts payload as JSON once. Only HTTP 200 counts as success;
// the response body is returned verbatim either way.
func (c *Client) SendTest(ctx context.Context, url string, payload interface{}) Result {
	if url == "" {
		return Result{Message: "URL is required"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Message: fmt.Sprintf("encode payload: %v", err)}
	}
	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{Message: fmt.Sprintf("invalid URL: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return Result{Message: fmt.Sprintf("request failed: %v", err), LatencyMS: latency}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	r := Result{StatusCode: resp.StatusCode, Body: string(raw), LatencyMS: latency, Online: true}
	if resp.StatusCode == http.StatusOK {
		r.Success = true
		r.Message = "webhook responded with HTTP 200"
	} else {
		r.Message = fmt.Sprintf("webhook responded with HTTP %d", resp.StatusCode)
	}
	return r
}
