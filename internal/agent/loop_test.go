// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package agent_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postpilot-ai/postpilot/internal/agent"
	"github.com/postpilot-ai/postpilot/internal/guardian"
	"github.com/postpilot-ai/postpilot/internal/imagegen"
	"github.com/postpilot-ai/postpilot/internal/provider"
	"github.com/postpilot-ai/postpilot/internal/store"
)

// testEnv bundles the mocked collaborators for a loop test.
type testEnv struct {
	store  *memStore
	pub    *mockPublisher
	images *mockImages
	srv    *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	return &testEnv{
		store:  newMemStore(),
		pub:    &mockPublisher{},
		images: &mockImages{urls: []string{srv.URL + "/img-1.png"}},
		srv:    srv,
	}
}

func (e *testEnv) newLoop(prov provider.Provider, maxIter int) *agent.Loop {
	executor := agent.NewExecutor(agent.ExecutorConfig{
		Store:     e.store,
		Publisher: e.pub,
		Images:    e.images,
		Verifier:  imagegen.NewVerifier(e.srv.Client()),
	})
	return agent.NewLoop(agent.LoopConfig{
		Provider:      prov,
		Interlock:     guardian.NewInterlock(guardian.InterlockConfig{}),
		Executor:      executor,
		Model:         "claude-sonnet-4-5",
		MaxTokens:     1024,
		MaxIterations: maxIter,
	})
}

func newState(sessionID string) *guardian.State {
	return guardian.NewState(guardian.SessionSnapshot{SessionID: sessionID})
}

func userTurn(text string) []provider.Message {
	return []provider.Message{{Role: provider.MessageRoleUser, Content: text}}
}

func TestLoop_PlainTextTurn(t *testing.T) {
	env := newTestEnv(t)
	prov := newMockProvider(
		scriptedTurn{text: "¡Hola! ¿Qué tipo de negocio tienes?"},
	)
	loop := env.newLoop(prov, 0)

	st := newState("sess-1")
	res, err := loop.Run(context.Background(), st, userTurn("hola"))
	require.NoError(t, err)
	assert.Equal(t, "¡Hola! ¿Qué tipo de negocio tienes?", res.Text)
	assert.False(t, res.Truncated)
	assert.Equal(t, 1, prov.callCount())
	assert.Equal(t, 10, res.Usage.InputTokens)
}

func TestLoop_EmptyHistoryRejected(t *testing.T) {
	env := newTestEnv(t)
	loop := env.newLoop(newMockProvider(scriptedTurn{text: "x"}), 0)

	_, err := loop.Run(context.Background(), newState("sess-1"), nil)
	require.Error(t, err)
}

func TestLoop_ContentToolAdvancesState(t *testing.T) {
	env := newTestEnv(t)
	prov := newMockProvider(
		scriptedTurn{
			text: "Voy a redactar el post.",
			toolCalls: []provider.ToolCall{{
				ID:   "toolu_1",
				Name: guardian.ToolGenerateContent,
				Arguments: `{"topic":"promo de otoño","platform":"instagram",` +
					`"content":"¡Llegó el otoño a Mi Tienda! 🍂"}`,
			}},
		},
		scriptedTurn{text: "Aquí tienes el borrador. ¿Qué te parece el texto?"},
	)
	loop := env.newLoop(prov, 0)

	st := newState("sess-1")
	res, err := loop.Run(context.Background(), st, userTurn("escribe un post de otoño"))
	require.NoError(t, err)

	assert.Equal(t, guardian.StageContentDrafted, st.Stage)
	assert.Equal(t, "¡Llegó el otoño a Mi Tienda! 🍂", st.LastGeneratedContent)
	assert.NotEmpty(t, st.ActivePostID)
	assert.Contains(t, res.Text, "borrador")

	// The draft landed in the store.
	post := env.store.getPost(st.ActivePostID)
	require.NotNil(t, post)
	assert.Equal(t, "¡Llegó el otoño a Mi Tienda! 🍂", post.Content)
	assert.Equal(t, store.PostStatusDraft, post.Status)
}

func TestLoop_ImageBeforeContentBlockedThenAllowed(t *testing.T) {
	env := newTestEnv(t)
	prov := newMockProvider(
		// Model jumps straight to imagery: the interlock must block.
		scriptedTurn{
			toolCalls: []provider.ToolCall{{
				ID: "toolu_1", Name: guardian.ToolGenerateImage,
				Arguments: `{"prompt":"un café acogedor"}`,
			}},
		},
		// Corrected: draft first.
		scriptedTurn{
			toolCalls: []provider.ToolCall{{
				ID: "toolu_2", Name: guardian.ToolGenerateContent,
				Arguments: `{"topic":"café","content":"Ven a probar nuestro café ☕"}`,
			}},
		},
		// Now imagery is legal.
		scriptedTurn{
			toolCalls: []provider.ToolCall{{
				ID: "toolu_3", Name: guardian.ToolGenerateImage,
				Arguments: `{"prompt":"un café acogedor"}`,
			}},
		},
		scriptedTurn{text: "Listo, contenido e imagen preparados."},
	)
	loop := env.newLoop(prov, 0)

	st := newState("sess-1")
	_, err := loop.Run(context.Background(), st, userTurn("hazme un post con imagen"))
	require.NoError(t, err)

	// The first generate_image never reached the backend.
	assert.Equal(t, 1, env.images.calls)
	assert.Equal(t, guardian.StageImageGenerated, st.Stage)
	assert.Len(t, st.LastImageURLs, 1)
}

func TestLoop_PublishReadsStoredContent(t *testing.T) {
	env := newTestEnv(t)
	prov := newMockProvider(
		scriptedTurn{
			toolCalls: []provider.ToolCall{{
				ID: "toolu_1", Name: guardian.ToolGenerateContent,
				Arguments: `{"topic":"promo","content":"Texto autoritativo del servidor"}`,
			}},
		},
		scriptedTurn{
			toolCalls: []provider.ToolCall{{
				ID: "toolu_2", Name: guardian.ToolCreatePublishDraft,
				Arguments: `{"platform":"instagram"}`,
			}},
		},
		scriptedTurn{text: "Publicado con éxito."},
	)
	loop := env.newLoop(prov, 0)

	st := newState("sess-1")
	_, err := loop.Run(context.Background(), st, userTurn("publica ya"))
	require.NoError(t, err)

	require.Equal(t, 1, env.pub.draftCount())
	// What went to the aggregator is the stored row's content.
	assert.Equal(t, "Texto autoritativo del servidor", env.pub.drafts[0].Content)
	assert.Equal(t, guardian.StagePublished, st.Stage)

	post := env.store.getPost(st.ActivePostID)
	require.NotNil(t, post)
	assert.Equal(t, store.PostStatusPublished, post.Status)
}

func TestLoop_ApprovalWithoutToolBlockedTwiceThenFailsOpen(t *testing.T) {
	env := newTestEnv(t)
	// Model keeps claiming it published without calling any tool.
	prov := newMockProvider(
		scriptedTurn{text: "¡Perfecto, lo aprobamos y lo publicamos ahora!"},
	)
	loop := env.newLoop(prov, 0)

	st := newState("sess-1")
	res, err := loop.Run(context.Background(), st, userTurn("ok publícalo"))
	require.NoError(t, err)

	// Blocked twice, allowed on the third attempt.
	assert.Equal(t, 2, st.EndTurnRetries)
	assert.Equal(t, 3, prov.callCount())
	assert.Contains(t, res.Text, "lo publicamos ahora")
	assert.False(t, res.Truncated)
}

func TestLoop_IterationCeilingFlagsTruncation(t *testing.T) {
	env := newTestEnv(t)
	// Model never stops asking for tools.
	prov := newMockProvider(
		scriptedTurn{
			text: "Sigo trabajando...",
			toolCalls: []provider.ToolCall{{
				ID: "toolu_n", Name: guardian.ToolCreatePlan,
				Arguments: `{"theme":"otoño","post_count":3}`,
			}},
		},
	)
	loop := env.newLoop(prov, 7)

	st := newState("sess-1")
	res, err := loop.Run(context.Background(), st, userTurn("planifica"))
	require.NoError(t, err)

	assert.True(t, res.Truncated)
	assert.True(t, st.Truncated)
	assert.Equal(t, 7, prov.callCount())
	assert.NotEmpty(t, res.Text)
}

func TestLoop_ToolErrorFedBackToModel(t *testing.T) {
	env := newTestEnv(t)
	prov := newMockProvider(
		// Missing required theme: executor fails, error goes back in-context.
		scriptedTurn{
			toolCalls: []provider.ToolCall{{
				ID: "toolu_1", Name: guardian.ToolCreatePlan,
				Arguments: `{"post_count":3}`,
			}},
		},
		scriptedTurn{text: "Perdona, necesito saber el tema del plan primero."},
	)
	loop := env.newLoop(prov, 0)

	st := newState("sess-1")
	res, err := loop.Run(context.Background(), st, userTurn("haz un plan"))
	require.NoError(t, err)
	assert.Contains(t, res.Text, "tema del plan")
	// The failed tool call did not advance the protocol.
	assert.Equal(t, guardian.StageNoPlan, st.Stage)
}

func TestLoop_ContextCancelledBetweenIterations(t *testing.T) {
	env := newTestEnv(t)
	prov := newMockProvider(scriptedTurn{text: "hola"})
	loop := env.newLoop(prov, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loop.Run(ctx, newState("sess-1"), userTurn("hola"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, prov.callCount())
}

func TestLoop_CounterToolAlwaysBlocked(t *testing.T) {
	env := newTestEnv(t)
	prov := newMockProvider(
		scriptedTurn{
			toolCalls: []provider.ToolCall{{
				ID: "toolu_1", Name: "increment_published_count", Arguments: `{}`,
			}},
		},
		scriptedTurn{text: "Entendido, no toco los contadores."},
	)
	loop := env.newLoop(prov, 0)

	st := newState("sess-1")
	_, err := loop.Run(context.Background(), st, userTurn("sube el contador"))
	require.NoError(t, err)
	assert.Equal(t, guardian.StageNoPlan, st.Stage)
	assert.Equal(t, 0, env.pub.draftCount())
}

func TestLoop_PublishedCounterMirroredFromStore(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now()
	require.NoError(t, env.store.CreatePlan(context.Background(), &store.Plan{
		ID: "plan-1", SessionID: "sess-1", PostCount: 3, CreatedAt: now, UpdatedAt: now,
	}))

	prov := newMockProvider(
		scriptedTurn{
			toolCalls: []provider.ToolCall{{
				ID: "toolu_1", Name: guardian.ToolGenerateContent,
				Arguments: `{"topic":"promo","content":"Texto"}`,
			}},
		},
		scriptedTurn{
			toolCalls: []provider.ToolCall{{
				ID: "toolu_2", Name: guardian.ToolCreatePublishDraft,
				Arguments: `{"platform":"instagram"}`,
			}},
		},
		scriptedTurn{text: "Hecho."},
	)
	loop := env.newLoop(prov, 0)

	st := newState("sess-1")
	st.ActivePlanID = "plan-1"
	_, err := loop.Run(context.Background(), st, userTurn("publica"))
	require.NoError(t, err)

	// The store incremented once; the state mirrors the value.
	assert.Equal(t, 1, st.PostsPublished)
	plan, err := env.store.GetPlan(context.Background(), "plan-1")
	require.NoError(t, err)
	assert.Equal(t, 1, plan.PostsPublished)
}
