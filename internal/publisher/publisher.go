// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

// Package publisher talks to the social publishing aggregator that
// fronts the connected platform accounts. Drafts are created inactive
// and flipped live in a second call so a failed activation never leaves
// a half-published post.
package publisher

import (
	"context"
	"time"
)

// Client is the aggregator API surface the agent depends on.
type Client interface {
	CreateDraft(ctx context.Context, req DraftRequest) (*Draft, error)
	ActivateDraft(ctx context.Context, draftID string) (*PublishResult, error)
	ListAccounts(ctx context.Context) ([]Account, error)
}

// DraftRequest describes the post to stage on the aggregator.
type DraftRequest struct {
	IdempotencyKey string     `json:"-"`
	Platform       string     `json:"platform"`
	AccountID      string     `json:"account_id"`
	Content        string     `json:"content"`
	ImageURL       string     `json:"image_url,omitempty"`
	ScheduledFor   *time.Time `json:"scheduled_for,omitempty"`
}

// Draft is an inactive staged post on the aggregator.
type Draft struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// PublishResult is the outcome of activating a draft.
type PublishResult struct {
	DraftID     string     `json:"draft_id"`
	PostURL     string     `json:"post_url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// Account is a platform account connected through the aggregator.
type Account struct {
	ID          string `json:"id"`
	Platform    string `json:"platform"`
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
}
