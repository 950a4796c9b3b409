// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

// HTTPClient implements Client against the aggregator's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	retries int
	log     *slog.Logger
}

// HTTPConfig configures the aggregator client.
type HTTPConfig struct {
	Endpoint string
	APIKey   string
	Client   *http.Client // optional
	Retries  int          // extra attempts on 429/5xx, default 2
	Logger   *slog.Logger // optional
}

// NewHTTPClient creates an aggregator client.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.Endpoint == "" {
		return nil, pperr.New(pperr.CodeConfigValidateInvalidValue, "publisher: endpoint must not be empty")
	}
	if cfg.APIKey == "" {
		return nil, pperr.New(pperr.CodeConfigValidateInvalidValue, "publisher: api_key must not be empty")
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	retries := cfg.Retries
	if retries <= 0 {
		retries = 2
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	return &HTTPClient{
		baseURL: strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:  cfg.APIKey,
		client:  client,
		retries: retries,
		log:     log,
	}, nil
}

// CreateDraft stages an inactive post on the aggregator. The caller's
// idempotency key makes retried creates safe.
func (c *HTTPClient) CreateDraft(ctx context.Context, req DraftRequest) (*Draft, error) {
	headers := map[string]string{}
	if req.IdempotencyKey != "" {
		headers["Idempotency-Key"] = req.IdempotencyKey
	}

	var draft Draft
	err := c.do(ctx, http.MethodPost, "/v1/drafts", req, headers, &draft)
	if err != nil {
		return nil, pperr.Wrap(err, pperr.CodePublisherDraftCreateFailure, "publisher: creating draft")
	}
	return &draft, nil
}

// ActivateDraft flips a staged draft live (or scheduled).
func (c *HTTPClient) ActivateDraft(ctx context.Context, draftID string) (*PublishResult, error) {
	if draftID == "" {
		return nil, pperr.New(pperr.CodeAgentToolInputInvalid, "publisher: empty draft id")
	}

	var result PublishResult
	err := c.do(ctx, http.MethodPost, "/v1/drafts/"+draftID+"/activate", nil, nil, &result)
	if err != nil {
		return nil, pperr.Wrap(err, pperr.CodePublisherDraftActivateFailure, "publisher: activating draft")
	}
	return &result, nil
}

// ListAccounts returns the platform accounts connected through the
// aggregator for the authenticated tenant.
func (c *HTTPClient) ListAccounts(ctx context.Context) ([]Account, error) {
	var payload struct {
		Accounts []Account `json:"accounts"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/accounts", nil, nil, &payload)
	if err != nil {
		return nil, pperr.Wrap(err, pperr.CodePublisherAccountsListFailure, "publisher: listing accounts")
	}
	return payload.Accounts, nil
}

// do issues a request with auth and bounded retries on 429/5xx.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any, headers map[string]string, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 0 {
			c.log.Debug("publisher retrying request",
				"method", method, "path", path, "attempt", attempt)
		}

		retryable, err := c.attempt(ctx, method, path, payload, headers, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return lastErr
}

// attempt runs a single HTTP exchange. The bool reports whether the
// failure is worth retrying.
func (c *HTTPClient) attempt(ctx context.Context, method, path string, payload []byte, headers map[string]string, out any) (bool, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return false, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return true, pperr.Wrapf(err, pperr.CodePublisherUpstreamFailure, "request %s %s failed", method, path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return true, pperr.Wrapf(err, pperr.CodePublisherUpstreamFailure, "reading response for %s %s", method, path)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, pperr.Errorf(pperr.CodePublisherUpstreamFailure,
			"aggregator returned %d for %s %s: %s", resp.StatusCode, method, path, truncate(raw, 200))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, pperr.Errorf(pperr.CodePublisherUpstreamFailure,
			"aggregator returned %d for %s %s: %s", resp.StatusCode, method, path, truncate(raw, 200))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return false, pperr.Wrapf(err, pperr.CodeProviderResponseInvalid, "decoding response for %s %s", method, path)
		}
	}
	return false, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
