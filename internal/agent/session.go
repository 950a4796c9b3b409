// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package agent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/postpilot-ai/postpilot/internal/guardian"
	"github.com/postpilot-ai/postpilot/internal/store"
	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

// SessionManager bridges persisted session rows and per-request
// guardian state.
type SessionManager struct {
	store store.Store
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(s store.Store) *SessionManager {
	return &SessionManager{store: s}
}

// Bootstrap loads the session (creating it when the ID is empty or
// unknown) and seeds a fresh guardian state from its snapshot.
func (m *SessionManager) Bootstrap(ctx context.Context, sessionID string) (*store.Session, *guardian.State, error) {
	var sess *store.Session

	if sessionID != "" {
		existing, err := m.store.GetSession(ctx, sessionID)
		switch {
		case err == nil:
			sess = existing
		case pperr.IsNotFound(err):
			// Unknown IDs start a new conversation instead of erroring;
			// clients may hold stale IDs after a data reset.
		default:
			return nil, nil, err
		}
	}

	if sess == nil {
		now := time.Now()
		sess = &store.Session{
			ID:        uuid.NewString(),
			Stage:     guardian.StageNoPlan.String(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := m.store.CreateSession(ctx, sess); err != nil {
			return nil, nil, err
		}
	}

	accounts, err := m.store.ListAccounts(ctx, sess.ID)
	if err != nil {
		return nil, nil, err
	}
	platforms := make([]guardian.PlatformBinding, 0, len(accounts))
	for _, acc := range accounts {
		platforms = append(platforms, guardian.PlatformBinding{
			Platform:  acc.Platform,
			AccountID: acc.AccountID,
		})
	}

	var postsPublished int
	if sess.ActivePlanID != "" {
		plan, err := m.store.GetPlan(ctx, sess.ActivePlanID)
		if err == nil {
			postsPublished = plan.PostsPublished
		} else if !pperr.IsNotFound(err) {
			return nil, nil, err
		}
	}

	st := guardian.NewState(guardian.SessionSnapshot{
		SessionID:            sess.ID,
		ActivePlanID:         sess.ActivePlanID,
		ActivePostID:         sess.ActivePostID,
		Stage:                sess.Stage,
		LastGeneratedContent: sess.LastGeneratedContent,
		PlanPostCount:        sess.PlanPostCount,
		OAuthPending:         sess.OAuthPending,
		Platforms:            platforms,
	})

	st.PostsPublished = postsPublished
	return sess, st, nil
}

// Persist projects the terminal guardian state back onto the session row.
func (m *SessionManager) Persist(ctx context.Context, sess *store.Session, st *guardian.State) error {
	snap := st.Snapshot()
	sess.Stage = snap.Stage
	sess.ActivePlanID = snap.ActivePlanID
	sess.ActivePostID = snap.ActivePostID
	sess.LastGeneratedContent = snap.LastGeneratedContent
	sess.PlanPostCount = snap.PlanPostCount
	sess.OAuthPending = false
	return m.store.UpdateSession(ctx, sess)
}
