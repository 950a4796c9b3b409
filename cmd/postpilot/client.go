// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

// defaultHTTPClient is the package-level HTTP client used by the status
// command. Overridden in tests via httptest.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Second,
}

// serverClient provides HTTP access to a running PostPilot server.
type serverClient struct {
	baseURL string
	http    *http.Client
}

// newServerClient creates a client targeting the given host:port address.
func newServerClient(addr string) *serverClient {
	return &serverClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
func (c *serverClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		if isDialError(err) {
			return pperr.Wrap(err, pperr.CodeCLIGatewayNotRunning, "server is not running")
		}
		return pperr.Wrap(err, pperr.CodeCLIRequestFailure, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return pperr.Errorf(pperr.CodeCLIRequestFailure, "server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pperr.Wrap(err, pperr.CodeCLIRequestFailure, "invalid response")
	}
	return nil
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
