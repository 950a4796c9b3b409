// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package agent_test

import (
	"context"
	"sync"
	"time"

	"github.com/postpilot-ai/postpilot/internal/imagegen"
	"github.com/postpilot-ai/postpilot/internal/provider"
	"github.com/postpilot-ai/postpilot/internal/publisher"
	"github.com/postpilot-ai/postpilot/internal/store"
	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

// scriptedTurn is one pre-programmed model response.
type scriptedTurn struct {
	text      string
	toolCalls []provider.ToolCall
}

// mockProvider replays scripted turns. When the script runs out it
// repeats the last turn, which keeps retry scenarios deterministic.
type mockProvider struct {
	mu    sync.Mutex
	turns []scriptedTurn
	calls int

	// lastMessages captures the request history of the most recent call.
	lastMessages []provider.Message
}

func newMockProvider(turns ...scriptedTurn) *mockProvider {
	return &mockProvider{turns: turns}
}

func (m *mockProvider) Name() string                     { return "mock" }
func (m *mockProvider) Available(_ context.Context) bool { return true }
func (m *mockProvider) Close() error                     { return nil }

func (m *mockProvider) Status(_ context.Context) (provider.Status, error) {
	return provider.Status{Available: true, Provider: "mock"}, nil
}

func (m *mockProvider) Chat(_ context.Context, req provider.ChatRequest) (<-chan provider.ChatEvent, error) {
	m.mu.Lock()
	idx := m.calls
	if idx >= len(m.turns) {
		idx = len(m.turns) - 1
	}
	turn := m.turns[idx]
	m.calls++
	m.lastMessages = req.Messages
	m.mu.Unlock()

	ch := make(chan provider.ChatEvent, 8)
	go func() {
		defer close(ch)
		if turn.text != "" {
			ch <- provider.ChatEvent{Type: provider.EventTypeTextDelta, Text: turn.text}
		}
		for i := range turn.toolCalls {
			tc := turn.toolCalls[i]
			ch <- provider.ChatEvent{Type: provider.EventTypeToolCall, ToolCall: &tc}
		}
		ch <- provider.ChatEvent{Type: provider.EventTypeUsage, Usage: &provider.Usage{InputTokens: 10, OutputTokens: 5}}
		ch <- provider.ChatEvent{Type: provider.EventTypeDone}
	}()
	return ch, nil
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// memStore is an in-memory store.Store for tests.
type memStore struct {
	mu       sync.Mutex
	sessions map[string]*store.Session
	plans    map[string]*store.Plan
	posts    map[string]*store.Post
	accounts map[string][]*store.ConnectedAccount
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[string]*store.Session{},
		plans:    map[string]*store.Plan{},
		posts:    map[string]*store.Post{},
		accounts: map[string][]*store.ConnectedAccount{},
	}
}

func (s *memStore) Close() error { return nil }

func (s *memStore) CreateSession(_ context.Context, sess *store.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *memStore) GetSession(_ context.Context, id string) (*store.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, pperr.New(pperr.CodeStoreSessionGetNotFound, "session not found", pperr.FieldSessionID(id))
	}
	cp := *sess
	return &cp, nil
}

func (s *memStore) UpdateSession(_ context.Context, sess *store.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return pperr.New(pperr.CodeStoreSessionGetNotFound, "session not found", pperr.FieldSessionID(sess.ID))
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *memStore) CreatePlan(_ context.Context, plan *store.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *plan
	s.plans[plan.ID] = &cp
	return nil
}

func (s *memStore) GetPlan(_ context.Context, id string) (*store.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[id]
	if !ok {
		return nil, pperr.New(pperr.CodeStorePlanGetNotFound, "plan not found", pperr.FieldPlanID(id))
	}
	cp := *plan
	return &cp, nil
}

func (s *memStore) IncrementPostsPublished(_ context.Context, planID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[planID]
	if !ok {
		return 0, pperr.New(pperr.CodeStorePlanGetNotFound, "plan not found", pperr.FieldPlanID(planID))
	}
	plan.PostsPublished++
	return plan.PostsPublished, nil
}

func (s *memStore) CreatePost(_ context.Context, post *store.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *post
	s.posts[post.ID] = &cp
	return nil
}

func (s *memStore) GetPost(_ context.Context, id string) (*store.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[id]
	if !ok {
		return nil, pperr.New(pperr.CodeStorePostGetNotFound, "post not found", pperr.FieldPostID(id))
	}
	cp := *post
	return &cp, nil
}

func (s *memStore) UpdatePostContent(_ context.Context, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[id]
	if !ok {
		return pperr.New(pperr.CodeStorePostGetNotFound, "post not found", pperr.FieldPostID(id))
	}
	post.Content = content
	return nil
}

func (s *memStore) SetPostImage(_ context.Context, id, imageURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[id]
	if !ok {
		return pperr.New(pperr.CodeStorePostGetNotFound, "post not found", pperr.FieldPostID(id))
	}
	post.ImageURL = imageURL
	return nil
}

func (s *memStore) MarkPostApproved(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[id]
	if !ok {
		return pperr.New(pperr.CodeStorePostGetNotFound, "post not found", pperr.FieldPostID(id))
	}
	post.Status = store.PostStatusApproved
	return nil
}

func (s *memStore) MarkPostPublished(_ context.Context, id string, scheduledFor *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[id]
	if !ok {
		return pperr.New(pperr.CodeStorePostGetNotFound, "post not found", pperr.FieldPostID(id))
	}
	if scheduledFor != nil {
		post.Status = store.PostStatusScheduled
		post.ScheduledFor = scheduledFor
	} else {
		post.Status = store.PostStatusPublished
	}
	return nil
}

func (s *memStore) ReplaceAccounts(_ context.Context, sessionID string, accounts []*store.ConnectedAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[sessionID] = accounts
	return nil
}

func (s *memStore) ListAccounts(_ context.Context, sessionID string) ([]*store.ConnectedAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[sessionID], nil
}

func (s *memStore) getPost(id string) *store.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posts[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// mockPublisher records drafts and activations.
type mockPublisher struct {
	mu        sync.Mutex
	drafts    []publisher.DraftRequest
	activated []string
	accounts  []publisher.Account
	draftErr  error
	nextDraft int
}

func (m *mockPublisher) CreateDraft(_ context.Context, req publisher.DraftRequest) (*publisher.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draftErr != nil {
		return nil, m.draftErr
	}
	m.drafts = append(m.drafts, req)
	m.nextDraft++
	return &publisher.Draft{ID: "draft-" + req.Platform, Platform: req.Platform, Status: "draft"}, nil
}

func (m *mockPublisher) ActivateDraft(_ context.Context, draftID string) (*publisher.PublishResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activated = append(m.activated, draftID)
	return &publisher.PublishResult{DraftID: draftID, PostURL: "https://social.example.com/p/1"}, nil
}

func (m *mockPublisher) ListAccounts(_ context.Context) ([]publisher.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts, nil
}

func (m *mockPublisher) draftCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.drafts)
}

// mockImages returns a fixed URL set.
type mockImages struct {
	mu    sync.Mutex
	urls  []string
	err   error
	calls int
}

func (m *mockImages) Name() string { return "mock-images" }

func (m *mockImages) Generate(_ context.Context, _ imagegen.Request) (*imagegen.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	urls := m.urls
	if len(urls) == 0 {
		urls = []string{"https://cdn.example.com/mock.png"}
	}
	return &imagegen.Result{URLs: urls}, nil
}
