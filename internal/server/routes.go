// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/postpilot-ai/postpilot/internal/agent"
	"github.com/postpilot-ai/postpilot/internal/provider"
	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

// RegisterServices sets the service dependencies and registers REST routes.
func (s *Server) RegisterServices(svc *Services) {
	s.services = svc
	s.registerRoutes()
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/api/v1/chat",
		Summary:     "Run one conversation turn",
		Tags:        []string{"chat"},
	}, s.handleChat)

	huma.Register(s.api, huma.Operation{
		OperationID: "chat-action",
		Method:      http.MethodPost,
		Path:        "/api/v1/chat/action",
		Summary:     "Execute a button action",
		Tags:        []string{"chat"},
	}, s.handleAction)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-accounts",
		Method:      http.MethodGet,
		Path:        "/api/v1/accounts",
		Summary:     "List connected accounts for a session",
		Tags:        []string{"accounts"},
	}, s.handleListAccounts)
}

// --- Request/Response types for huma ---

// ChatMessage is one turn of client-held conversation history.
type ChatMessage struct {
	Role    string `json:"role" doc:"Message role (user or assistant)"`
	Content string `json:"content" doc:"Message text"`
}

type chatInput struct {
	Body struct {
		SessionID string        `json:"session_id,omitempty" doc:"Session to resume; omit to start a new one"`
		Messages  []ChatMessage `json:"messages" doc:"Conversation history, oldest first"`
	}
}

// APIErrorDetail carries the machine-readable failure description.
// Named to avoid colliding with huma.ErrorDetail in the schema registry.
type APIErrorDetail struct {
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable description"`
}

// ResponseBody is the uniform envelope for chat and action responses.
type ResponseBody struct {
	Success   bool                 `json:"success"`
	SessionID string               `json:"session_id,omitempty" doc:"Session identifier, echoed on every turn"`
	Message   string               `json:"message,omitempty" doc:"Assistant reply"`
	Buttons   []agent.ButtonConfig `json:"buttons,omitempty" doc:"Suggested quick replies"`
	Truncated bool                 `json:"truncated,omitempty" doc:"Turn hit the tool iteration ceiling"`
	Error     *APIErrorDetail      `json:"error,omitempty"`
}

type chatOutput struct {
	Status int
	Body   ResponseBody
}

type actionInput struct {
	Body struct {
		SessionID string             `json:"session_id,omitempty" doc:"Session the action belongs to"`
		Action    string             `json:"action" doc:"Action identifier (approve_text, generate_image, ...)"`
		Params    agent.ActionParams `json:"params" doc:"Action parameters"`
	}
}

type listAccountsInput struct {
	SessionID string `query:"session_id" doc:"Session whose accounts to list"`
}

// AccountSummary is the REST representation of a connected account.
type AccountSummary struct {
	ID          string `json:"id" doc:"Local identifier"`
	Platform    string `json:"platform" doc:"Social platform name"`
	AccountID   string `json:"account_id" doc:"Platform-side account identifier"`
	DisplayName string `json:"display_name,omitempty" doc:"Account display name"`
}

type listAccountsOutput struct {
	Body struct {
		Accounts []AccountSummary `json:"accounts"`
	}
}

// --- Handlers ---

func (s *Server) handleChat(ctx context.Context, input *chatInput) (*chatOutput, error) {
	history, err := convertHistory(input.Body.Messages)
	if err != nil {
		return s.failure(err), nil
	}

	out, err := s.services.chat.Chat(ctx, input.Body.SessionID, history)
	if err != nil {
		return s.failure(err), nil
	}

	return &chatOutput{
		Status: http.StatusOK,
		Body: ResponseBody{
			Success:   true,
			SessionID: out.SessionID,
			Message:   out.Message,
			Buttons:   out.Buttons,
			Truncated: out.Truncated,
		},
	}, nil
}

func (s *Server) handleAction(ctx context.Context, input *actionInput) (*chatOutput, error) {
	if input.Body.Action == "" {
		return s.failure(pperr.New(pperr.CodeServerRequestInvalid, "action is required")), nil
	}

	res, err := s.services.actions.Execute(ctx, input.Body.Action, input.Body.Params)
	if err != nil {
		return s.failure(err), nil
	}

	return &chatOutput{
		Status: http.StatusOK,
		Body: ResponseBody{
			Success:   true,
			SessionID: input.Body.SessionID,
			Message:   res.Message,
			Buttons:   res.Buttons,
		},
	}, nil
}

func (s *Server) handleListAccounts(ctx context.Context, input *listAccountsInput) (*listAccountsOutput, error) {
	if input.SessionID == "" {
		return nil, huma.Error400BadRequest("session_id is required")
	}

	accounts, err := s.services.accounts.ListAccounts(ctx, input.SessionID)
	if err != nil {
		return nil, huma.Error500InternalServerError("listing accounts", err)
	}

	out := &listAccountsOutput{}
	out.Body.Accounts = make([]AccountSummary, 0, len(accounts))
	for _, acc := range accounts {
		out.Body.Accounts = append(out.Body.Accounts, AccountSummary{
			ID:          acc.ID,
			Platform:    acc.Platform,
			AccountID:   acc.AccountID,
			DisplayName: acc.DisplayName,
		})
	}
	return out, nil
}

// failure maps an error onto the response envelope. Unexpected failures
// are logged and degraded to a generic message so internals never leak.
func (s *Server) failure(err error) *chatOutput {
	status := pperr.HTTPStatus(err)
	code := string(pperr.CodeOf(err))
	msg := err.Error()

	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "code", code, "error", err)
		msg = "internal error"
		if code == "" {
			code = string(pperr.CodeServerInternalFailure)
		}
	}

	return &chatOutput{
		Status: status,
		Body: ResponseBody{
			Success: false,
			Error:   &APIErrorDetail{Code: code, Message: msg},
		},
	}
}

// convertHistory validates the inbound history and maps it onto
// provider messages. Malformed histories are a 400, not a 422.
func convertHistory(msgs []ChatMessage) ([]provider.Message, error) {
	if len(msgs) == 0 {
		return nil, pperr.New(pperr.CodeServerRequestInvalid, "messages must not be empty")
	}

	out := make([]provider.Message, 0, len(msgs))
	for i, m := range msgs {
		var role provider.MessageRole
		switch m.Role {
		case "user":
			role = provider.MessageRoleUser
		case "assistant":
			role = provider.MessageRoleAssistant
		default:
			return nil, pperr.Errorf(pperr.CodeServerRequestInvalid, "message %d: unsupported role %q", i, m.Role)
		}
		if m.Content == "" {
			return nil, pperr.Errorf(pperr.CodeServerRequestInvalid, "message %d: content must not be empty", i)
		}
		out = append(out, provider.Message{Role: role, Content: m.Content})
	}

	if out[len(out)-1].Role != provider.MessageRoleUser {
		return nil, pperr.New(pperr.CodeServerRequestInvalid, "history must end with a user message")
	}
	return out, nil
}
