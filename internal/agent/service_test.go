// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package agent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot-ai/postpilot/internal/agent"
	"github.com/postpilot-ai/postpilot/internal/guardian"
	"github.com/postpilot-ai/postpilot/internal/provider"
)

func newService(env *testEnv, prov provider.Provider) *agent.Service {
	return agent.NewService(agent.ServiceConfig{
		Sessions: agent.NewSessionManager(env.store),
		Loop:     env.newLoop(prov, 0),
	})
}

func TestService_ChatCreatesAndPersistsSession(t *testing.T) {
	env := newTestEnv(t)
	prov := newMockProvider(
		scriptedTurn{
			toolCalls: []provider.ToolCall{{
				ID: "toolu_1", Name: guardian.ToolGenerateContent,
				Arguments: `{"topic":"promo","content":"Borrador nuevo"}`,
			}},
		},
		scriptedTurn{text: "Aquí tienes el borrador. ¿Qué te parece el texto?"},
	)
	svc := newService(env, prov)

	out, err := svc.Chat(context.Background(), "", userTurn("escribe un post"))
	require.NoError(t, err)
	require.NotEmpty(t, out.SessionID)
	assert.Contains(t, out.Message, "borrador")

	// Buttons derived from the final text.
	require.NotEmpty(t, out.Buttons)
	assert.Equal(t, "approve_text", out.Buttons[0].ID)

	// The terminal state landed on the session row.
	sess, err := env.store.GetSession(context.Background(), out.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "content_drafted", sess.Stage)
	assert.Equal(t, "Borrador nuevo", sess.LastGeneratedContent)
}

func TestService_ChatResumesExistingSession(t *testing.T) {
	env := newTestEnv(t)
	svc := newService(env, newMockProvider(scriptedTurn{text: "Hola de nuevo."}))

	first, err := svc.Chat(context.Background(), "", userTurn("hola"))
	require.NoError(t, err)

	second, err := svc.Chat(context.Background(), first.SessionID, userTurn("sigo aquí"))
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)
}

func TestService_LoopErrorDoesNotPersist(t *testing.T) {
	env := newTestEnv(t)
	svc := newService(env, newMockProvider(scriptedTurn{text: "x"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Chat(ctx, "", userTurn("hola"))
	require.Error(t, err)
}
