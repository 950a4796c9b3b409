// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

// Package agent drives the conversation between the end user, the LLM,
// and the side-effecting collaborators. Every tool call and turn ending
// passes through the guardian interlock before it takes effect.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/postpilot-ai/postpilot/internal/guardian"
	"github.com/postpilot-ai/postpilot/internal/provider"
	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

// DefaultMaxToolIterations bounds the LLM round-trips in one turn.
const DefaultMaxToolIterations = 7

// LoopConfig holds dependencies for the Loop.
type LoopConfig struct {
	Provider      provider.Provider
	Interlock     *guardian.Interlock
	Executor      *Executor
	Model         string
	MaxTokens     int
	MaxIterations int
	SystemPrompt  string
	Logger        *slog.Logger
}

// Loop is the bounded conversation pipeline for a single inbound request.
// One instance handles one request to completion; there is no shared
// mutable state across requests beyond the store.
type Loop struct {
	provider      provider.Provider
	interlock     *guardian.Interlock
	executor      *Executor
	model         string
	maxTokens     int
	maxIterations int
	systemPrompt  string
	log           *slog.Logger
}

// NewLoop creates a Loop with the given dependencies.
func NewLoop(cfg LoopConfig) *Loop {
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxToolIterations
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	return &Loop{
		provider:      cfg.Provider,
		interlock:     cfg.Interlock,
		executor:      cfg.Executor,
		model:         cfg.Model,
		maxTokens:     cfg.MaxTokens,
		maxIterations: maxIter,
		systemPrompt:  prompt,
		log:           log,
	}
}

const defaultSystemPrompt = "Eres PostPilot, un asistente de marketing en redes sociales para pequeños negocios. " +
	"Conversas en el idioma del usuario. Sigue siempre el flujo: plan, borrador de contenido, imagen opcional, " +
	"aprobación explícita del usuario y solo entonces publicación. Nunca afirmes haber publicado sin haber usado la herramienta de publicación."

// TurnResult is the outcome of running one conversation turn.
type TurnResult struct {
	Text      string
	Usage     provider.Usage
	Truncated bool
}

// Run drives the turn: call the model, dispatch allowed tools, feed
// results back, and repeat until the model ends its turn or the
// iteration ceiling is reached. The guardian state is mutated in place
// and must be persisted by the caller afterwards.
func (l *Loop) Run(ctx context.Context, st *guardian.State, history []provider.Message) (*TurnResult, error) {
	if st == nil {
		return nil, pperr.New(pperr.CodeAgentLoopInvalidInput, "nil guardian state")
	}
	if len(history) == 0 {
		return nil, pperr.New(pperr.CodeAgentLoopInvalidInput, "empty message history",
			pperr.FieldSessionID(st.SessionID))
	}

	messages := make([]provider.Message, len(history))
	copy(messages, history)

	tools := ToolDefinitions()
	var accumulated strings.Builder
	var usage provider.Usage

	for iteration := 0; iteration < l.maxIterations; iteration++ {
		// Stop at the next safe boundary when the client went away.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, toolCalls, sample, err := l.callModel(ctx, messages, tools)
		if err != nil {
			return nil, err
		}
		usage.Add(sample)

		if len(toolCalls) > 0 {
			appendText(&accumulated, text)
			messages = append(messages, provider.Message{
				Role:      provider.MessageRoleAssistant,
				Content:   text,
				ToolCalls: derefToolCalls(toolCalls),
			})
			messages = l.dispatchToolCalls(ctx, st, messages, toolCalls)
			continue
		}

		// End-turn requested.
		appendText(&accumulated, text)
		verdict := l.interlock.ValidateEndTurn(st, accumulated.String())
		if verdict.Allowed {
			return &TurnResult{Text: accumulated.String(), Usage: usage}, nil
		}

		st.EndTurnRetries++
		l.log.Debug("end turn blocked, forcing retry",
			"session_id", st.SessionID,
			"retries", st.EndTurnRetries,
		)
		messages = append(messages,
			provider.Message{Role: provider.MessageRoleAssistant, Content: text},
			provider.Message{Role: provider.MessageRoleUser, Content: verdict.Message},
		)
	}

	// Ceiling reached without an end-turn. Return what we have, flagged
	// so the caller can offer a "please continue" affordance.
	st.Truncated = true
	l.log.Warn("tool iteration ceiling reached",
		"session_id", st.SessionID,
		"iterations", l.maxIterations,
		"tool_calls", st.ToolUseCount,
	)
	return &TurnResult{Text: accumulated.String(), Usage: usage, Truncated: true}, nil
}

// callModel performs one LLM round-trip and collects the buffered text,
// tool calls, and usage from the event stream.
func (l *Loop) callModel(ctx context.Context, messages []provider.Message, tools []provider.ToolDefinition) (string, []*provider.ToolCall, provider.Usage, error) {
	req := provider.ChatRequest{
		Model:        l.model,
		Messages:     messages,
		Tools:        tools,
		SystemPrompt: l.systemPrompt,
		Options:      provider.ChatOptions{MaxTokens: l.maxTokens},
	}

	eventCh, err := l.provider.Chat(ctx, req)
	if err != nil {
		return "", nil, provider.Usage{}, pperr.Wrapf(err, pperr.CodeProviderUpstreamFailure,
			"chat call to %s", l.provider.Name())
	}

	var buf strings.Builder
	var toolCalls []*provider.ToolCall
	var usage provider.Usage
	var streamErr error

	for ev := range eventCh {
		switch ev.Type {
		case provider.EventTypeTextDelta:
			buf.WriteString(ev.Text)
		case provider.EventTypeToolCall:
			if ev.ToolCall != nil {
				toolCalls = append(toolCalls, ev.ToolCall)
			}
		case provider.EventTypeUsage:
			if ev.Usage != nil {
				usage.Add(*ev.Usage)
			}
		case provider.EventTypeError:
			streamErr = pperr.New(pperr.CodeProviderUpstreamFailure, ev.Error)
		case provider.EventTypeDone:
		}
	}

	if streamErr != nil {
		return "", nil, usage, streamErr
	}
	return buf.String(), toolCalls, usage, nil
}

// dispatchToolCalls validates and executes each requested tool. Blocked
// calls and execution failures both come back as tool results so the
// model can adapt instead of the whole request failing.
func (l *Loop) dispatchToolCalls(ctx context.Context, st *guardian.State, messages []provider.Message, toolCalls []*provider.ToolCall) []provider.Message {
	for _, tc := range toolCalls {
		st.ToolUseCount++

		input, err := parseToolInput(tc.Arguments)
		if err != nil {
			messages = append(messages, toolResult(tc, `{"error":"invalid tool input: not valid JSON"}`, true))
			continue
		}

		verdict := l.interlock.ValidateToolCall(st, tc.Name, input)
		if !verdict.Allowed {
			l.log.Debug("tool call blocked",
				"session_id", st.SessionID,
				"tool", tc.Name,
				"stage", st.Stage.String(),
			)
			messages = append(messages, toolResult(tc, verdict.Message, false))
			continue
		}

		result, effect, err := l.executor.Execute(ctx, st, tc.Name, input)
		if err != nil {
			l.log.Warn("tool execution failed",
				"session_id", st.SessionID,
				"tool", tc.Name,
				"error", err,
			)
			messages = append(messages, toolResult(tc, `{"error":`+jsonString(err.Error())+`}`, true))
			continue
		}

		st.Apply(tc.Name, input, effect)
		messages = append(messages, toolResult(tc, result, false))
	}
	return messages
}

func toolResult(tc *provider.ToolCall, content string, isError bool) provider.Message {
	return provider.Message{
		Role:       provider.MessageRoleTool,
		Content:    content,
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		IsError:    isError,
	}
}

func parseToolInput(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var input map[string]any
	if err := json.Unmarshal([]byte(raw), &input); err != nil {
		return nil, err
	}
	return input, nil
}

func derefToolCalls(calls []*provider.ToolCall) []provider.ToolCall {
	out := make([]provider.ToolCall, 0, len(calls))
	for _, c := range calls {
		out = append(out, *c)
	}
	return out
}

func appendText(b *strings.Builder, text string) {
	if text == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n\n")
	}
	b.WriteString(text)
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
