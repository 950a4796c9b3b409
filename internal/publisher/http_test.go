// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package publisher_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot-ai/postpilot/internal/publisher"
	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

// Compile-time interface satisfaction check.
var _ publisher.Client = (*publisher.HTTPClient)(nil)

func newTestClient(t *testing.T, srv *httptest.Server) *publisher.HTTPClient {
	t.Helper()
	c, err := publisher.NewHTTPClient(publisher.HTTPConfig{
		Endpoint: srv.URL,
		APIKey:   "test-key",
		Client:   srv.Client(),
	})
	require.NoError(t, err)
	return c
}

func TestNewHTTPClient_Validation(t *testing.T) {
	_, err := publisher.NewHTTPClient(publisher.HTTPConfig{APIKey: "k"})
	require.Error(t, err)

	_, err = publisher.NewHTTPClient(publisher.HTTPConfig{Endpoint: "http://x"})
	require.Error(t, err)
}

func TestCreateDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/drafts", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "idem-123", r.Header.Get("Idempotency-Key"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "instagram", req["platform"])
		assert.Equal(t, "Nuevo post", req["content"])

		json.NewEncoder(w).Encode(publisher.Draft{ID: "draft-1", Platform: "instagram", Status: "draft"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	draft, err := c.CreateDraft(context.Background(), publisher.DraftRequest{
		IdempotencyKey: "idem-123",
		Platform:       "instagram",
		AccountID:      "ig-1",
		Content:        "Nuevo post",
	})
	require.NoError(t, err)
	assert.Equal(t, "draft-1", draft.ID)
}

func TestActivateDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/drafts/draft-1/activate", r.URL.Path)
		json.NewEncoder(w).Encode(publisher.PublishResult{DraftID: "draft-1", PostURL: "https://instagram.com/p/abc"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	res, err := c.ActivateDraft(context.Background(), "draft-1")
	require.NoError(t, err)
	assert.Equal(t, "https://instagram.com/p/abc", res.PostURL)
}

func TestActivateDraft_EmptyID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.ActivateDraft(context.Background(), "")
	require.Error(t, err)
	assert.True(t, pperr.HasCode(err, pperr.CodeAgentToolInputInvalid))
}

func TestListAccounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(map[string]any{
			"accounts": []publisher.Account{
				{ID: "acc-1", Platform: "instagram", AccountID: "ig-1", DisplayName: "Mi Tienda"},
				{ID: "acc-2", Platform: "facebook", AccountID: "fb-1", DisplayName: "Mi Tienda FB"},
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	accounts, err := c.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "instagram", accounts[0].Platform)
}

func TestRetryOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"accounts": []publisher.Account{}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestNoRetryOn4xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.ListAccounts(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, pperr.HasCode(err, pperr.CodePublisherAccountsListFailure))
}

func TestRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.ListAccounts(context.Background())
	require.Error(t, err)
	// Initial attempt plus two retries.
	assert.Equal(t, int32(3), calls.Load())
	assert.True(t, pperr.IsUpstreamFailure(err))
}
