// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package server_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot-ai/postpilot/internal/agent"
	"github.com/postpilot-ai/postpilot/internal/provider"
	"github.com/postpilot-ai/postpilot/internal/store"
	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

func TestChat_Success(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.chat.outcome = &agent.ChatOutcome{
		SessionID: "sess-42",
		Message:   "Aquí tienes el borrador. ¿Qué te parece el texto?",
		Buttons: []agent.ButtonConfig{
			{ID: "approve_text", Label: "Me gusta", Value: "Me gusta el texto."},
		},
	}

	rec, body := doJSON(t, srv, http.MethodPost, "/api/v1/chat",
		`{"session_id":"sess-42","messages":[{"role":"user","content":"escribe un post"}]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "sess-42", body["session_id"])
	assert.Contains(t, body["message"], "borrador")

	buttons, ok := body["buttons"].([]any)
	require.True(t, ok)
	require.Len(t, buttons, 1)

	// The history reached the service in provider form.
	require.Len(t, deps.chat.lastHistory, 1)
	assert.Equal(t, provider.MessageRoleUser, deps.chat.lastHistory[0].Role)
	assert.Equal(t, "sess-42", deps.chat.lastSessionID)
}

func TestChat_EmptyHistoryIsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, body := doJSON(t, srv, http.MethodPost, "/api/v1/chat", `{"messages":[]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])

	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(pperr.CodeServerRequestInvalid), errBody["code"])
}

func TestChat_RejectsUnknownRole(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/chat",
		`{"messages":[{"role":"system","content":"hack"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_RejectsHistoryEndingWithAssistant(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/chat",
		`{"messages":[{"role":"user","content":"hola"},{"role":"assistant","content":"hola"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_UpstreamFailureIsBadGateway(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.chat.err = pperr.New(pperr.CodeProviderUpstreamFailure, "model timed out")

	rec, body := doJSON(t, srv, http.MethodPost, "/api/v1/chat",
		`{"messages":[{"role":"user","content":"hola"}]}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestChat_InternalErrorIsOpaque(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.chat.err = pperr.New(pperr.CodeStoreDatabaseFailure, "disk exploded: /var/lib/postpilot.db")

	rec, body := doJSON(t, srv, http.MethodPost, "/api/v1/chat",
		`{"messages":[{"role":"user","content":"hola"}]}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	// The detail stays in the log, not the response.
	assert.Equal(t, "internal error", errBody["message"])
}

func TestAction_Success(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.actions.result = &agent.ActionResult{
		Message: "Texto aprobado.",
		Buttons: []agent.ButtonConfig{{ID: "want_image", Label: "Sí", Value: "Sí."}},
	}

	rec, body := doJSON(t, srv, http.MethodPost, "/api/v1/chat/action",
		`{"session_id":"sess-1","action":"approve_text","params":{"postId":"post-1"}}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Texto aprobado.", body["message"])
	assert.Equal(t, "approve_text", deps.actions.lastAction)
	assert.Equal(t, "post-1", deps.actions.lastParams.PostID)
}

func TestAction_MissingActionIsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := doJSON(t, srv, http.MethodPost, "/api/v1/chat/action",
		`{"params":{"postId":"post-1"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAction_UnknownActionIsBadRequest(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.actions.err = pperr.New(pperr.CodeAgentActionUnknown, "unknown action: explode")

	rec, body := doJSON(t, srv, http.MethodPost, "/api/v1/chat/action",
		`{"action":"explode","params":{}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(pperr.CodeAgentActionUnknown), errBody["code"])
}

func TestAction_UnprocessableIs422(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.actions.err = pperr.New(pperr.CodeAgentActionUnprocessable, "post not found")

	rec, body := doJSON(t, srv, http.MethodPost, "/api/v1/chat/action",
		`{"action":"approve_and_publish","params":{"postId":"gone"}}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, false, body["success"])
}

func TestListAccounts(t *testing.T) {
	srv, deps := newTestServer(t)
	deps.accounts.accounts = []*store.ConnectedAccount{
		{ID: "acc-1", SessionID: "sess-1", Platform: "instagram", AccountID: "ig-9", DisplayName: "Mi Tienda"},
	}

	rec, body := doJSON(t, srv, http.MethodGet, "/api/v1/accounts?session_id=sess-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	accounts, ok := body["accounts"].([]any)
	require.True(t, ok)
	require.Len(t, accounts, 1)
	first, ok := accounts[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "instagram", first["platform"])
	assert.Equal(t, "ig-9", first["account_id"])
}

func TestListAccounts_MissingSessionID(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, _ := doJSON(t, srv, http.MethodGet, "/api/v1/accounts", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
