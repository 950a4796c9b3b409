// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package agent

import (
	"context"
	"log/slog"

	"github.com/postpilot-ai/postpilot/internal/provider"
)

// ChatOutcome is the result of one full conversation turn, ready to be
// serialized back to the client.
type ChatOutcome struct {
	SessionID string
	Message   string
	Buttons   []ButtonConfig
	Truncated bool
	Usage     provider.Usage
}

// Service ties session bootstrap, the conversation loop, and button
// derivation into the single operation the HTTP layer calls.
type Service struct {
	sessions *SessionManager
	loop     *Loop
	log      *slog.Logger
}

// ServiceConfig holds the Service dependencies.
type ServiceConfig struct {
	Sessions *SessionManager
	Loop     *Loop
	Logger   *slog.Logger
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) *Service {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		sessions: cfg.Sessions,
		loop:     cfg.Loop,
		log:      log,
	}
}

// Chat runs one conversation turn. The session is loaded (or created),
// the loop runs against a fresh guardian state, buttons are derived
// from the final text, and the terminal state is persisted before the
// outcome is returned. Loop failures leave the stored session untouched.
func (s *Service) Chat(ctx context.Context, sessionID string, history []provider.Message) (*ChatOutcome, error) {
	sess, st, err := s.sessions.Bootstrap(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	res, err := s.loop.Run(ctx, st, history)
	if err != nil {
		return nil, err
	}

	buttons := DetectButtons(res.Text, st)

	if err := s.sessions.Persist(ctx, sess, st); err != nil {
		return nil, err
	}

	s.log.Debug("turn complete",
		"session_id", sess.ID,
		"stage", st.Stage.String(),
		"tool_calls", st.ToolUseCount,
		"truncated", res.Truncated,
	)

	return &ChatOutcome{
		SessionID: sess.ID,
		Message:   res.Text,
		Buttons:   buttons,
		Truncated: res.Truncated,
		Usage:     res.Usage,
	}, nil
}
