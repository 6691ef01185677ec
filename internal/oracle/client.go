// Package oracle talks to the external estimation service used for tenants
// that have not stated any preferences.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lettings-match/internal/match"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// Config holds estimation service connection settings
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client implements match.Oracle over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

type estimateRequest struct {
	Tenant   match.TenantSummary   `json:"tenant"`
	Property match.PropertySummary `json:"property"`
}

// NewClient creates a new estimation client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.Named("oracle"),
	}
}

// Estimate asks the service to score one pair.
func (c *Client) Estimate(ctx context.Context, tenant match.TenantSummary, property match.PropertySummary) (match.Estimate, error) {
	var est match.Estimate
	payload := estimateRequest{Tenant: tenant, Property: property}
	if err := c.makeRequest(ctx, http.MethodPost, c.baseURL+"/estimate", payload, &est); err != nil {
		return match.Estimate{}, eris.Wrapf(err, "estimate tenant %s property %s", tenant.ID, property.ID)
	}
	return est, nil
}

func (c *Client) makeRequest(ctx context.Context, method, url string, payload, result interface{}) error {
	var body io.Reader

	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return eris.Wrap(err, "failed to marshal JSON")
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return eris.Wrap(err, "failed to create request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return eris.Wrap(err, "failed to read response")
	}

	c.logger.Debug("oracle response",
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(respBody)),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return eris.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return eris.Wrap(err, "failed to unmarshal response")
		}
	}

	return nil
}
