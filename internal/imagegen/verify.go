// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package imagegen

import (
	"context"
	"net/http"
	"time"

	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

// Verifier checks that generated image URLs are actually reachable
// before they are attached to a draft or shown to the user.
type Verifier struct {
	client *http.Client
}

// NewVerifier creates a Verifier. A nil client gets a default with a
// short timeout.
func NewVerifier(client *http.Client) *Verifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Verifier{client: client}
}

// Verify issues a HEAD request against url. A transient failure is
// retried once before the URL is reported unreachable.
func (v *Verifier) Verify(ctx context.Context, url string) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = v.head(ctx, url)
		if lastErr == nil {
			return nil
		}
	}
	return pperr.Wrapf(lastErr, pperr.CodeImageURLUnreachable, "image url %s is not reachable", url)
}

func (v *Verifier) head(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return pperr.Errorf(pperr.CodeImageURLUnreachable, "unexpected status %d", resp.StatusCode)
	}
	return nil
}
