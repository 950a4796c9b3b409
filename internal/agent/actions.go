// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/postpilot-ai/postpilot/internal/imagegen"
	"github.com/postpilot-ai/postpilot/internal/publisher"
	"github.com/postpilot-ai/postpilot/internal/store"
	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

// Action kinds triggered by button clicks or direct client calls.
const (
	ActionApproveText       = "approve_text"
	ActionGenerateImage     = "generate_image"
	ActionApproveAndPublish = "approve_and_publish"
	ActionPublishNoImage    = "publish_no_image"
	ActionRegenerateImage   = "regenerate_image"
)

// ActionParams carries the client-supplied parameters for an action.
// Content is deliberately absent: handlers re-read it from the store by
// post ID so stale or tampered client copies can never be published.
type ActionParams struct {
	PostID       string     `json:"postId"`
	Platforms    []string   `json:"platforms,omitempty"`
	AccountID    string     `json:"accountId,omitempty"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty"`
	Prompt       string     `json:"prompt,omitempty"`
	AspectRatio  string     `json:"aspectRatio,omitempty"`
}

// ActionResult is the outcome surfaced back to the client.
type ActionResult struct {
	Message string         `json:"message"`
	Buttons []ButtonConfig `json:"buttons,omitempty"`
}

// ActionHandler executes the side-effecting operations behind derived
// buttons. It shares the Executor's collaborators and honours the same
// single-writer rules for counters and content.
type ActionHandler struct {
	store     store.Store
	publisher publisher.Client
	images    imagegen.Generator
	verifier  *imagegen.Verifier
	log       *slog.Logger
}

// ActionHandlerConfig holds the ActionHandler's dependencies.
type ActionHandlerConfig struct {
	Store     store.Store
	Publisher publisher.Client
	Images    imagegen.Generator
	Verifier  *imagegen.Verifier
	Logger    *slog.Logger
}

// NewActionHandler creates an ActionHandler.
func NewActionHandler(cfg ActionHandlerConfig) *ActionHandler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	verifier := cfg.Verifier
	if verifier == nil {
		verifier = imagegen.NewVerifier(nil)
	}
	return &ActionHandler{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		images:    cfg.Images,
		verifier:  verifier,
		log:       log,
	}
}

// Execute dispatches one action. Unknown actions are invalid input;
// actions that cannot run against current state are unprocessable.
func (h *ActionHandler) Execute(ctx context.Context, action string, params ActionParams) (*ActionResult, error) {
	switch action {
	case ActionApproveText:
		return h.approveText(ctx, params)
	case ActionGenerateImage, ActionRegenerateImage:
		return h.generateImage(ctx, params)
	case ActionApproveAndPublish:
		return h.publish(ctx, params, false)
	case ActionPublishNoImage:
		return h.publish(ctx, params, true)
	default:
		return nil, pperr.New(pperr.CodeAgentActionUnknown, "unknown action: "+action)
	}
}

// loadPost re-reads the authoritative post row. A missing post means
// the action cannot be processed, not that the request was malformed.
func (h *ActionHandler) loadPost(ctx context.Context, postID string) (*store.Post, error) {
	if postID == "" {
		return nil, pperr.New(pperr.CodeAgentActionUnprocessable, "postId is required")
	}
	post, err := h.store.GetPost(ctx, postID)
	if err != nil {
		if pperr.IsNotFound(err) {
			return nil, pperr.Wrap(err, pperr.CodeAgentActionUnprocessable, "post not found",
				pperr.FieldPostID(postID))
		}
		return nil, err
	}
	return post, nil
}

func (h *ActionHandler) approveText(ctx context.Context, params ActionParams) (*ActionResult, error) {
	post, err := h.loadPost(ctx, params.PostID)
	if err != nil {
		return nil, err
	}
	if post.Content == "" {
		return nil, pperr.New(pperr.CodeAgentActionUnprocessable, "post has no content to approve",
			pperr.FieldPostID(post.ID))
	}

	if err := h.store.MarkPostApproved(ctx, post.ID); err != nil {
		return nil, err
	}

	return &ActionResult{
		Message: "Texto aprobado. ¿Quieres una imagen para acompañarlo o lo publicamos así?",
		Buttons: []ButtonConfig{
			{ID: "want_image", Label: "Sí, con imagen", Value: "Sí, genera una imagen para el post."},
			{ID: "no_image", Label: "Publicar sin imagen", Value: "No, publiquemos sin imagen."},
		},
	}, nil
}

func (h *ActionHandler) generateImage(ctx context.Context, params ActionParams) (*ActionResult, error) {
	post, err := h.loadPost(ctx, params.PostID)
	if err != nil {
		return nil, err
	}
	if post.Content == "" {
		return nil, pperr.New(pperr.CodeAgentActionUnprocessable, "cannot illustrate a post with no content",
			pperr.FieldPostID(post.ID))
	}

	prompt := params.Prompt
	if prompt == "" {
		prompt = post.Topic
	}
	if prompt == "" {
		return nil, pperr.New(pperr.CodeAgentActionUnprocessable, "no image prompt available",
			pperr.FieldPostID(post.ID))
	}

	res, err := h.images.Generate(ctx, imagegen.Request{
		Prompt:      prompt,
		AspectRatio: params.AspectRatio,
		Count:       1,
	})
	if err != nil {
		return nil, err
	}
	if err := h.verifier.Verify(ctx, res.URLs[0]); err != nil {
		return nil, err
	}
	if err := h.store.SetPostImage(ctx, post.ID, res.URLs[0]); err != nil {
		return nil, err
	}

	return &ActionResult{
		Message: "Imagen lista. ¿La usamos?",
		Buttons: []ButtonConfig{
			{ID: "approve_image", Label: "Me encanta, usarla", Value: "Me encanta la imagen, usémosla."},
			{ID: "regenerate_image", Label: "Probar otra", Value: "Genera otra imagen, por favor."},
			{ID: "publish_no_image", Label: "Publicar sin imagen", Value: "Prefiero publicar sin imagen."},
		},
	}, nil
}

// publish re-reads the stored content, stages a draft per platform,
// activates it, and bumps the authoritative counter once per post.
func (h *ActionHandler) publish(ctx context.Context, params ActionParams, withoutImage bool) (*ActionResult, error) {
	post, err := h.loadPost(ctx, params.PostID)
	if err != nil {
		return nil, err
	}
	if post.Content == "" {
		return nil, pperr.New(pperr.CodeAgentActionUnprocessable, "stored post has no content to publish",
			pperr.FieldPostID(post.ID))
	}

	platforms := params.Platforms
	if len(platforms) == 0 && post.Platform != "" {
		platforms = []string{post.Platform}
	}
	if len(platforms) == 0 {
		return nil, pperr.New(pperr.CodeAgentActionUnprocessable, "no target platform",
			pperr.FieldPostID(post.ID))
	}

	imageURL := post.ImageURL
	if withoutImage {
		imageURL = ""
	}

	for _, platform := range platforms {
		draft, err := h.publisher.CreateDraft(ctx, publisher.DraftRequest{
			IdempotencyKey: post.ID + ":" + platform,
			Platform:       platform,
			AccountID:      params.AccountID,
			Content:        post.Content,
			ImageURL:       imageURL,
			ScheduledFor:   params.ScheduledFor,
		})
		if err != nil {
			return nil, err
		}
		if _, err := h.publisher.ActivateDraft(ctx, draft.ID); err != nil {
			return nil, err
		}
	}

	if err := h.store.MarkPostPublished(ctx, post.ID, params.ScheduledFor); err != nil {
		return nil, err
	}

	published := 0
	if post.PlanID != "" {
		published, err = h.store.IncrementPostsPublished(ctx, post.PlanID)
		if err != nil {
			return nil, err
		}
	}

	h.log.Info("post published via action",
		"post_id", post.ID,
		"platforms", platforms,
		"scheduled", params.ScheduledFor != nil,
	)

	msg := "¡Publicado! Tu post ya está en camino."
	if params.ScheduledFor != nil {
		msg = "Programado. Tu post se publicará a la hora acordada."
	}
	result := &ActionResult{Message: msg}
	if published > 0 {
		result.Buttons = []ButtonConfig{
			{ID: "continue_next", Label: "Siguiente post", Value: "Sí, sigamos con el siguiente post."},
			{ID: "finish_today", Label: "Terminar por hoy", Value: "Terminemos por hoy."},
		}
	}
	return result, nil
}
