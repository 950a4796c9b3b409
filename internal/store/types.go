// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package store

import "time"

// Session is the durable conversation record. It carries the persisted
// guardian snapshot so a new request can resume the protocol where the
// previous turn left it.
type Session struct {
	ID                   string
	Stage                string
	ActivePlanID         string
	ActivePostID         string
	LastGeneratedContent string
	PlanPostCount        int
	OAuthPending         bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Plan is a content plan for a business. PostsPublished is the
// authoritative publish counter: it is mutated only through
// IncrementPostsPublished, never by direct update.
type Plan struct {
	ID             string
	SessionID      string
	Theme          string
	PostCount      int
	PostsPublished int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PostStatus tracks a post through the draft-first workflow.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusApproved  PostStatus = "approved"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
)

// Post is a single piece of drafted content. Content is the
// authoritative text: publish paths re-read it by ID and never trust
// a client-echoed copy.
type Post struct {
	ID           string
	SessionID    string
	PlanID       string
	Platform     string
	Topic        string
	Content      string
	ImageURL     string
	Status       PostStatus
	ScheduledFor *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ConnectedAccount binds a session to a publishable social account.
type ConnectedAccount struct {
	ID          string
	SessionID   string
	Platform    string
	AccountID   string
	DisplayName string
	CreatedAt   time.Time
}
