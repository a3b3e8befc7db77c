// Package executor performs calls against the threat API on behalf of
// resolved queries and the HTTP proxy.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tdr-agent/internal/config"
	"tdr-agent/internal/types"
)

// Response is a relayed threat API response
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	Duration time.Duration
}

// Forwarder sends requests to the threat API
type Forwarder struct {
	client *http.Client
}

// NewForwarder creates a forwarder whose calls time out after timeout
func NewForwarder(timeout time.Duration) *Forwarder {
	return &Forwarder{
		client: &http.Client{Timeout: timeout},
	}
}

// Forward relays one call to base_url/path. The body is only sent for
// methods that carry one.
func (f *Forwarder) Forward(ctx context.Context, method, path, rawQuery string, body []byte, rt config.Runtime) (*Response, error) {
	target := strings.TrimSuffix(rt.APIBaseURL(), "/") + "/" + strings.TrimPrefix(path, "/")
	if rawQuery != "" {
		target += "?" + rawQuery
	}

	var reader io.Reader
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range rt.Headers() {
		req.Header.Set(key, value)
	}

	slog.Info("proxying request", "method", method, "url", target)
	return f.do(req)
}

// Execute performs the call a resolved descriptor describes
func (f *Forwarder) Execute(ctx context.Context, desc types.APIRequest) (*Response, error) {
	target := strings.TrimSuffix(desc.BaseURL, "/") + desc.URL
	if len(desc.QueryParams) > 0 {
		query := url.Values{}
		for key, value := range desc.QueryParams {
			query.Set(key, fmt.Sprint(value))
		}
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, desc.Method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range desc.Headers {
		req.Header.Set(key, value)
	}

	slog.Info("executing request", "method", desc.Method, "url", target)
	return f.do(req)
}

func (f *Forwarder) do(req *http.Request) (*Response, error) {
	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	duration := time.Since(start)
	slog.Info("threat API response", "status", resp.StatusCode, "duration", duration)
	return &Response{
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		Duration: duration,
	}, nil
}
