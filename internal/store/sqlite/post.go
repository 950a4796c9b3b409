// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/postpilot-ai/postpilot/internal/store"
	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

func (s *Store) CreatePost(ctx context.Context, post *store.Post) error {
	const q = `INSERT INTO posts (id, session_id, plan_id, platform, topic, content, image_url, status, scheduled_for, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var scheduled string
	if post.ScheduledFor != nil {
		scheduled = formatTime(*post.ScheduledFor)
	}

	_, err := s.db.ExecContext(ctx, q,
		post.ID,
		post.SessionID,
		post.PlanID,
		post.Platform,
		post.Topic,
		post.Content,
		post.ImageURL,
		string(post.Status),
		scheduled,
		formatTime(post.CreatedAt),
		formatTime(post.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating post %s: %w", post.ID, err)
	}
	return nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*store.Post, error) {
	const q = `SELECT id, session_id, plan_id, platform, topic, content, image_url, status, scheduled_for, created_at, updated_at
FROM posts WHERE id = ?`

	var post store.Post
	var scheduled, createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&post.ID,
		&post.SessionID,
		&post.PlanID,
		&post.Platform,
		&post.Topic,
		&post.Content,
		&post.ImageURL,
		&post.Status,
		&scheduled,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, pperr.New(pperr.CodeStorePostGetNotFound, "post not found", pperr.FieldPostID(id))
	}
	if err != nil {
		return nil, fmt.Errorf("getting post %s: %w", id, err)
	}

	if scheduled != "" {
		t := parseTime(scheduled)
		post.ScheduledFor = &t
	}
	post.CreatedAt = parseTime(createdAt)
	post.UpdatedAt = parseTime(updatedAt)

	return &post, nil
}

func (s *Store) UpdatePostContent(ctx context.Context, id, content string) error {
	return s.updatePost(ctx, id, `UPDATE posts SET content = ?, updated_at = ? WHERE id = ?`, content)
}

func (s *Store) SetPostImage(ctx context.Context, id, imageURL string) error {
	return s.updatePost(ctx, id, `UPDATE posts SET image_url = ?, updated_at = ? WHERE id = ?`, imageURL)
}

func (s *Store) MarkPostApproved(ctx context.Context, id string) error {
	return s.updatePost(ctx, id, `UPDATE posts SET status = ?, updated_at = ? WHERE id = ?`, string(store.PostStatusApproved))
}

// MarkPostPublished records the publish outcome. A nil scheduledFor
// means the post went live immediately; otherwise it is scheduled.
func (s *Store) MarkPostPublished(ctx context.Context, id string, scheduledFor *time.Time) error {
	status := store.PostStatusPublished
	scheduled := ""
	if scheduledFor != nil {
		status = store.PostStatusScheduled
		scheduled = formatTime(*scheduledFor)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE posts SET status = ?, scheduled_for = ?, updated_at = ? WHERE id = ?`,
		string(status), scheduled, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("marking post %s published: %w", id, err)
	}
	return checkPostAffected(result, id)
}

func (s *Store) updatePost(ctx context.Context, id, query, value string) error {
	result, err := s.db.ExecContext(ctx, query, value, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("updating post %s: %w", id, err)
	}
	return checkPostAffected(result, id)
}

func checkPostAffected(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for post %s: %w", id, err)
	}
	if rows == 0 {
		return pperr.New(pperr.CodeStorePostGetNotFound, "post not found", pperr.FieldPostID(id))
	}
	return nil
}
