// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package sqlite

import (
	"context"
	"fmt"

	"github.com/postpilot-ai/postpilot/internal/store"
)

// ReplaceAccounts swaps the connected accounts for a session in one
// transaction. The aggregator's listing is the source of truth, so the
// previous rows are dropped rather than merged.
func (s *Store) ReplaceAccounts(ctx context.Context, sessionID string, accounts []*store.ConnectedAccount) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning accounts transaction for session %s: %w", sessionID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM connected_accounts WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clearing accounts for session %s: %w", sessionID, err)
	}

	const q = `INSERT INTO connected_accounts (id, session_id, platform, account_id, display_name, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	for _, acc := range accounts {
		if _, err := tx.ExecContext(ctx, q,
			acc.ID,
			sessionID,
			acc.Platform,
			acc.AccountID,
			acc.DisplayName,
			formatTime(acc.CreatedAt),
		); err != nil {
			return fmt.Errorf("inserting account %s for session %s: %w", acc.ID, sessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing accounts for session %s: %w", sessionID, err)
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context, sessionID string) ([]*store.ConnectedAccount, error) {
	const q = `SELECT id, session_id, platform, account_id, display_name, created_at
FROM connected_accounts WHERE session_id = ? ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing accounts for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var accounts []*store.ConnectedAccount
	for rows.Next() {
		var acc store.ConnectedAccount
		var createdAt string
		if err := rows.Scan(
			&acc.ID,
			&acc.SessionID,
			&acc.Platform,
			&acc.AccountID,
			&acc.DisplayName,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning account row: %w", err)
		}
		acc.CreatedAt = parseTime(createdAt)
		accounts = append(accounts, &acc)
	}

	return accounts, rows.Err()
}
