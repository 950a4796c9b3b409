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

func (s *Store) CreatePlan(ctx context.Context, plan *store.Plan) error {
	const q = `INSERT INTO plans (id, session_id, theme, post_count, posts_published, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		plan.ID,
		plan.SessionID,
		plan.Theme,
		plan.PostCount,
		plan.PostsPublished,
		formatTime(plan.CreatedAt),
		formatTime(plan.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating plan %s: %w", plan.ID, err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, id string) (*store.Plan, error) {
	const q = `SELECT id, session_id, theme, post_count, posts_published, created_at, updated_at
FROM plans WHERE id = ?`

	var plan store.Plan
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&plan.ID,
		&plan.SessionID,
		&plan.Theme,
		&plan.PostCount,
		&plan.PostsPublished,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, pperr.New(pperr.CodeStorePlanGetNotFound, "plan not found", pperr.FieldPlanID(id))
	}
	if err != nil {
		return nil, fmt.Errorf("getting plan %s: %w", id, err)
	}

	plan.CreatedAt = parseTime(createdAt)
	plan.UpdatedAt = parseTime(updatedAt)

	return &plan, nil
}

// IncrementPostsPublished bumps the authoritative counter in a single
// UPDATE so concurrent publishes cannot double-count, then reads the
// new value back inside the same transaction.
func (s *Store) IncrementPostsPublished(ctx context.Context, planID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning counter transaction for plan %s: %w", planID, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE plans SET posts_published = posts_published + 1, updated_at = ? WHERE id = ?`,
		formatTime(time.Now()), planID,
	)
	if err != nil {
		return 0, fmt.Errorf("incrementing posts_published for plan %s: %w", planID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected for plan %s: %w", planID, err)
	}
	if rows == 0 {
		return 0, pperr.New(pperr.CodeStorePlanGetNotFound, "plan not found", pperr.FieldPlanID(planID))
	}

	var published int
	if err := tx.QueryRowContext(ctx, `SELECT posts_published FROM plans WHERE id = ?`, planID).Scan(&published); err != nil {
		return 0, fmt.Errorf("reading posts_published for plan %s: %w", planID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing counter transaction for plan %s: %w", planID, err)
	}
	return published, nil
}
