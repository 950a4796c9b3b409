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

func (s *Store) CreateSession(ctx context.Context, session *store.Session) error {
	const q = `INSERT INTO sessions (id, stage, active_plan_id, active_post_id, last_generated_content, plan_post_count, oauth_pending, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		session.ID,
		session.Stage,
		session.ActivePlanID,
		session.ActivePostID,
		session.LastGeneratedContent,
		session.PlanPostCount,
		boolToInt(session.OAuthPending),
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating session %s: %w", session.ID, err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*store.Session, error) {
	const q = `SELECT id, stage, active_plan_id, active_post_id, last_generated_content, plan_post_count, oauth_pending, created_at, updated_at
FROM sessions WHERE id = ?`

	var sess store.Session
	var oauthPending int
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&sess.ID,
		&sess.Stage,
		&sess.ActivePlanID,
		&sess.ActivePostID,
		&sess.LastGeneratedContent,
		&sess.PlanPostCount,
		&oauthPending,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, pperr.New(pperr.CodeStoreSessionGetNotFound, "session not found", pperr.FieldSessionID(id))
	}
	if err != nil {
		return nil, fmt.Errorf("getting session %s: %w", id, err)
	}

	sess.OAuthPending = oauthPending != 0
	sess.CreatedAt = parseTime(createdAt)
	sess.UpdatedAt = parseTime(updatedAt)

	return &sess, nil
}

func (s *Store) UpdateSession(ctx context.Context, session *store.Session) error {
	const q = `UPDATE sessions SET stage = ?, active_plan_id = ?, active_post_id = ?, last_generated_content = ?,
plan_post_count = ?, oauth_pending = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, q,
		session.Stage,
		session.ActivePlanID,
		session.ActivePostID,
		session.LastGeneratedContent,
		session.PlanPostCount,
		boolToInt(session.OAuthPending),
		formatTime(time.Now()),
		session.ID,
	)
	if err != nil {
		return fmt.Errorf("updating session %s: %w", session.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected for session %s: %w", session.ID, err)
	}
	if rows == 0 {
		return pperr.New(pperr.CodeStoreSessionGetNotFound, "session not found", pperr.FieldSessionID(session.ID))
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
