// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package server

import (
	"context"

	"github.com/postpilot-ai/postpilot/internal/agent"
	"github.com/postpilot-ai/postpilot/internal/provider"
	"github.com/postpilot-ai/postpilot/internal/store"
	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

// Services holds the dependencies injected into route handlers.
// Each field is an interface so subsystems can be mocked in tests.
// Use the NewServices constructor so required services are validated.
type Services struct {
	chat      ChatService
	actions   ActionService
	accounts  AccountService
	providers ProviderService // optional; nil = health omits LLM status
}

// NewServices creates a Services instance with validation. The optional
// providers variadic parameter sets the LLM status source.
func NewServices(chat ChatService, actions ActionService, accounts AccountService, providers ...ProviderService) (*Services, error) {
	if chat == nil {
		return nil, pperr.New(pperr.CodeServerConfigInvalid, "chat service is required")
	}
	if actions == nil {
		return nil, pperr.New(pperr.CodeServerConfigInvalid, "action service is required")
	}
	if accounts == nil {
		return nil, pperr.New(pperr.CodeServerConfigInvalid, "account service is required")
	}
	if len(providers) > 1 {
		return nil, pperr.New(pperr.CodeServerConfigInvalid, "at most one provider service may be supplied")
	}
	s := &Services{
		chat:     chat,
		actions:  actions,
		accounts: accounts,
	}
	if len(providers) > 0 && providers[0] != nil {
		s.providers = providers[0]
	}
	return s, nil
}

// ChatService runs one full conversation turn.
// agent.Service satisfies this interface.
type ChatService interface {
	Chat(ctx context.Context, sessionID string, history []provider.Message) (*agent.ChatOutcome, error)
}

// ActionService executes button-triggered operations.
// agent.ActionHandler satisfies this interface.
type ActionService interface {
	Execute(ctx context.Context, action string, params agent.ActionParams) (*agent.ActionResult, error)
}

// AccountService lists locally mirrored connected accounts.
// store.Store satisfies this interface.
type AccountService interface {
	ListAccounts(ctx context.Context, sessionID string) ([]*store.ConnectedAccount, error)
}

// ProviderService reports LLM provider availability for /health.
type ProviderService interface {
	Status(ctx context.Context) (provider.Status, error)
}

// NewServicesForTest creates a Services instance for testing. It
// delegates to NewServices so the same validation applies, and panics
// when a required service is missing.
func NewServicesForTest(chat ChatService, actions ActionService, accounts AccountService, providers ...ProviderService) *Services {
	svc, err := NewServices(chat, actions, accounts, providers...)
	if err != nil {
		panic(err)
	}
	return svc
}
