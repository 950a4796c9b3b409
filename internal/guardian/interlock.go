// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package guardian

import (
	"log/slog"
	"strings"
)

// Tool names recognised by the interlock. The agent package registers
// definitions under the same names.
const (
	ToolCreatePlan            = "create_plan"
	ToolGenerateContent       = "generate_content"
	ToolDescribeImage         = "describe_image"
	ToolGenerateImage         = "generate_image"
	ToolListConnectedAccounts = "list_connected_accounts"
	ToolCreatePublishDraft    = "create_publish_draft"
)

// toolCategory groups tools for policy decisions.
type toolCategory int

const (
	categoryContent toolCategory = iota
	categoryImage
	categoryAccounts
	categoryPublish
	categoryCounter
	categoryUnknown
)

func categoryOf(toolName string) toolCategory {
	switch toolName {
	case ToolCreatePlan, ToolGenerateContent:
		return categoryContent
	case ToolDescribeImage, ToolGenerateImage:
		return categoryImage
	case ToolListConnectedAccounts:
		return categoryAccounts
	case ToolCreatePublishDraft:
		return categoryPublish
	case "increment_published_count", "mark_scheduled":
		// Counter mutations belong to the store and the action handler.
		// The model must never drive them directly.
		return categoryCounter
	default:
		return categoryUnknown
	}
}

// Verdict is the interlock's decision on an attempted tool call or
// turn ending. A blocked verdict carries a corrective message that is
// fed back to the model, never shown to the end user.
type Verdict struct {
	Allowed bool
	Message string
}

func allow() Verdict           { return Verdict{Allowed: true} }
func block(msg string) Verdict { return Verdict{Allowed: false, Message: msg} }

// Interlock validates every tool call and every turn-ending attempt
// against the draft-first protocol. It is the single enforcement point
// between the model's requests and their execution.
type Interlock struct {
	phrases      []string
	endTurnLimit int
	log          *slog.Logger
}

// InterlockConfig configures an Interlock. Zero values fall back to
// the defaults used by the production assistant.
type InterlockConfig struct {
	// ApprovalPhrases override the built-in phrase table used to detect
	// approval-sounding turn endings. Matching is case-insensitive substring.
	ApprovalPhrases []string
	// EndTurnRetryLimit is the number of corrective retries before the
	// interlock fails open. Defaults to 2.
	EndTurnRetryLimit int
	Logger            *slog.Logger
}

const defaultEndTurnRetryLimit = 2

// NewInterlock creates an Interlock with the given configuration.
func NewInterlock(cfg InterlockConfig) *Interlock {
	phrases := cfg.ApprovalPhrases
	if len(phrases) == 0 {
		phrases = DefaultApprovalPhrases()
	}
	limit := cfg.EndTurnRetryLimit
	if limit <= 0 {
		limit = defaultEndTurnRetryLimit
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Interlock{phrases: phrases, endTurnLimit: limit, log: log}
}

// ValidateToolCall decides whether an attempted tool invocation may
// reach its collaborator. Blocked calls get a corrective message that
// is synthesised into a tool result so the model can adjust.
func (i *Interlock) ValidateToolCall(st *State, toolName string, input map[string]any) Verdict {
	switch categoryOf(toolName) {
	case categoryContent, categoryAccounts:
		return allow()

	case categoryImage:
		if st.LastGeneratedContent == "" {
			return block("No hay contenido redactado todavía. Redacta el contenido del post con generate_content antes de pedir imágenes.")
		}
		return allow()

	case categoryPublish:
		if !st.Stage.AtLeast(StageContentDrafted) {
			return block("No puedes publicar sin un borrador. Usa generate_content para redactar el contenido primero.")
		}
		if st.Stage == StageImageOffered && !st.ImageDeclined {
			if skip, _ := input["skip_image"].(bool); !skip {
				return block("Ofreciste una imagen y la pregunta sigue abierta. Genera la imagen con generate_image, o publica sin imagen pasando skip_image=true.")
			}
		}
		return allow()

	case categoryCounter:
		return block("Los contadores de publicación los actualiza el sistema automáticamente al publicar. No invoques esta herramienta.")

	default:
		return block("Herramienta desconocida. Usa solo las herramientas declaradas en esta conversación.")
	}
}

// ValidateEndTurn guards against the model ending its turn with an
// approval-sounding message without having invoked a publishing tool.
// After the retry limit is exhausted it fails open and logs a protocol
// anomaly rather than hanging the conversation.
func (i *Interlock) ValidateEndTurn(st *State, accumulatedText string) Verdict {
	if !i.containsApprovalPhrase(accumulatedText) {
		return allow()
	}
	if st.Stage.AtLeast(StagePublished) {
		return allow()
	}
	if st.EndTurnRetries >= i.endTurnLimit {
		i.log.Warn("guardian fail-open: approval phrasing without publish tool, retry limit exhausted",
			"session_id", st.SessionID,
			"stage", st.Stage.String(),
			"retries", st.EndTurnRetries,
		)
		return allow()
	}
	return block("Dijiste que publicarías pero no invocaste ninguna herramienta de publicación. Llama a create_publish_draft para publicar de verdad, o corrige tu mensaje para no afirmar que está publicado.")
}

func (i *Interlock) containsApprovalPhrase(text string) bool {
	lowered := strings.ToLower(text)
	for _, p := range i.phrases {
		if strings.Contains(lowered, p) {
			return true
		}
	}
	return false
}
