// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package store

import (
	"context"
	"time"
)

// SessionStore manages conversation sessions and their guardian snapshots.
type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSession(ctx context.Context, session *Session) error
}

// PlanStore manages content plans and the authoritative publish counter.
type PlanStore interface {
	CreatePlan(ctx context.Context, plan *Plan) error
	GetPlan(ctx context.Context, id string) (*Plan, error)

	// IncrementPostsPublished atomically bumps the plan's publish counter
	// and returns the new value. This is the only writer of the counter.
	IncrementPostsPublished(ctx context.Context, planID string) (int, error)
}

// PostStore manages drafted posts. Content mutations go through
// dedicated operations so every field has exactly one writer.
type PostStore interface {
	CreatePost(ctx context.Context, post *Post) error
	GetPost(ctx context.Context, id string) (*Post, error)
	UpdatePostContent(ctx context.Context, id, content string) error
	SetPostImage(ctx context.Context, id, imageURL string) error
	MarkPostApproved(ctx context.Context, id string) error
	MarkPostPublished(ctx context.Context, id string, scheduledFor *time.Time) error
}

// AccountStore manages the connected social accounts for a session.
type AccountStore interface {
	ReplaceAccounts(ctx context.Context, sessionID string, accounts []*ConnectedAccount) error
	ListAccounts(ctx context.Context, sessionID string) ([]*ConnectedAccount, error)
}

// Store is the composite persistence interface the assistant depends on.
type Store interface {
	SessionStore
	PlanStore
	PostStore
	AccountStore
	Close() error
}
