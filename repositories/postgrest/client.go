// Package postgrest implements the repositories over the Supabase data API.
// Every call uses the service-role credential, which bypasses row-level
// security; tenant scoping is the caller's job.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/upb/pipebridge/config"
	"github.com/upb/pipebridge/internal/observability"
	"github.com/upb/pipebridge/repositories"
)

const (
	upstreamName = "data_api"
	maxErrorBody = 4 << 10
)

// Client performs REST calls against {SUPABASE_URL}/rest/v1
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	metrics    observability.MetricsRecorder
	logger     *zap.Logger
}

// NewClient creates a data API client. httpClient carries the request timeout.
func NewClient(cfg config.SupabaseConfig, httpClient *http.Client, metrics observability.MetricsRecorder, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	return &Client{
		baseURL:    cfg.URL + "/rest/v1",
		serviceKey: cfg.ServiceRoleKey,
		httpClient: httpClient,
		metrics:    metrics,
		logger:     logger,
	}
}

// request describes one data API call
type request struct {
	op     string
	method string
	table  string
	query  url.Values
	body   interface{}
	prefer string
}

// do executes req and decodes a 2xx JSON response into out (when non-nil).
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	endpoint := c.baseURL + "/" + req.table
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode body: %w", req.op, err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", req.op, err)
	}
	httpReq.Header.Set("apikey", c.serviceKey)
	httpReq.Header.Set("Authorization", "Bearer "+c.serviceKey)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.prefer != "" {
		httpReq.Header.Set("Prefer", req.prefer)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.RecordUpstream(upstreamName, req.op, 0, time.Since(start))
		c.logger.Error("data API request failed",
			zap.String("op", req.op),
			zap.String("table", req.table),
			zap.Error(err),
		)
		return fmt.Errorf("%s: %w", req.op, err)
	}
	defer resp.Body.Close()
	c.metrics.RecordUpstream(upstreamName, req.op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("data API returned an error status",
			zap.String("op", req.op),
			zap.String("table", req.table),
			zap.Int("status", resp.StatusCode),
		)
		return &repositories.StatusError{Op: req.op, StatusCode: resp.StatusCode, Body: errBody}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", req.op, err)
	}
	return nil
}

// eq builds a PostgREST equality filter value
func eq(value string) string {
	return "eq." + value
}
