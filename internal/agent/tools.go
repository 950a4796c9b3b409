// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package agent

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/postpilot-ai/postpilot/internal/guardian"
	"github.com/postpilot-ai/postpilot/internal/imagegen"
	"github.com/postpilot-ai/postpilot/internal/provider"
	"github.com/postpilot-ai/postpilot/internal/publisher"
	"github.com/postpilot-ai/postpilot/internal/store"
	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

// ToolDefinitions returns the tool surface declared to the model. The
// names match the guardian's policy table.
func ToolDefinitions() []provider.ToolDefinition {
	return []provider.ToolDefinition{
		{
			Name:        guardian.ToolCreatePlan,
			Description: "Create a content plan for the business. Call this once the user has agreed on a theme and how many posts they want.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"theme":      map[string]any{"type": "string", "description": "Overall theme of the plan"},
					"post_count": map[string]any{"type": "integer", "description": "Number of posts in the plan"},
				},
				"required": []any{"theme", "post_count"},
			},
		},
		{
			Name:        guardian.ToolGenerateContent,
			Description: "Persist a drafted post. Write the full post copy yourself and pass it in content. This must happen before any image or publish step.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"topic":    map[string]any{"type": "string", "description": "Short topic of the post"},
					"platform": map[string]any{"type": "string", "description": "Target platform, e.g. instagram"},
					"content":  map[string]any{"type": "string", "description": "The complete post copy"},
				},
				"required": []any{"topic", "content"},
			},
		},
		{
			Name:        guardian.ToolDescribeImage,
			Description: "Offer an image to the user by describing what you would generate. Does not generate anything yet.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt":       map[string]any{"type": "string", "description": "The image prompt you would use"},
					"model":        map[string]any{"type": "string"},
					"aspect_ratio": map[string]any{"type": "string", "enum": []any{"1:1", "16:9", "9:16"}},
					"count":        map[string]any{"type": "integer"},
				},
				"required": []any{"prompt"},
			},
		},
		{
			Name:        guardian.ToolGenerateImage,
			Description: "Generate an image for the current draft. Requires drafted content.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt":       map[string]any{"type": "string"},
					"model":        map[string]any{"type": "string"},
					"aspect_ratio": map[string]any{"type": "string", "enum": []any{"1:1", "16:9", "9:16"}},
					"count":        map[string]any{"type": "integer"},
				},
				"required": []any{"prompt"},
			},
		},
		{
			Name:        guardian.ToolListConnectedAccounts,
			Description: "List the social accounts the user has connected for publishing.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        guardian.ToolCreatePublishDraft,
			Description: "Publish the current draft through the aggregator. Only call this after the user has explicitly approved the content.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"post_id":       map[string]any{"type": "string", "description": "Post to publish; defaults to the active draft"},
					"platform":      map[string]any{"type": "string"},
					"account_id":    map[string]any{"type": "string"},
					"skip_image":    map[string]any{"type": "boolean", "description": "Publish without an image even though one was offered"},
					"scheduled_for": map[string]any{"type": "string", "description": "RFC3339 time to schedule instead of publishing now"},
				},
				"required": []any{"platform"},
			},
		},
	}
}

// Executor runs allowed tool calls against their collaborators and
// reports the guardian-relevant effect of each.
type Executor struct {
	store     store.Store
	publisher publisher.Client
	images    imagegen.Generator
	verifier  *imagegen.Verifier
	log       *slog.Logger
}

// ExecutorConfig holds the Executor's dependencies.
type ExecutorConfig struct {
	Store     store.Store
	Publisher publisher.Client
	Images    imagegen.Generator
	Verifier  *imagegen.Verifier
	Logger    *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	verifier := cfg.Verifier
	if verifier == nil {
		verifier = imagegen.NewVerifier(nil)
	}
	return &Executor{
		store:     cfg.Store,
		publisher: cfg.Publisher,
		images:    cfg.Images,
		verifier:  verifier,
		log:       log,
	}
}

// Execute runs one tool call. It returns the JSON payload fed back to
// the model and the effect the caller folds into the guardian state.
// The executor never mutates the state itself.
func (e *Executor) Execute(ctx context.Context, st *guardian.State, toolName string, input map[string]any) (string, guardian.Effect, error) {
	switch toolName {
	case guardian.ToolCreatePlan:
		return e.createPlan(ctx, st, input)
	case guardian.ToolGenerateContent:
		return e.generateContent(ctx, st, input)
	case guardian.ToolDescribeImage:
		return e.describeImage(input)
	case guardian.ToolGenerateImage:
		return e.generateImage(ctx, st, input)
	case guardian.ToolListConnectedAccounts:
		return e.listConnectedAccounts(ctx, st)
	case guardian.ToolCreatePublishDraft:
		return e.createPublishDraft(ctx, st, input)
	default:
		return "", guardian.Effect{}, pperr.New(pperr.CodeAgentToolInputInvalid,
			"unknown tool", pperr.FieldTool(toolName))
	}
}

func (e *Executor) createPlan(ctx context.Context, st *guardian.State, input map[string]any) (string, guardian.Effect, error) {
	theme, _ := input["theme"].(string)
	if theme == "" {
		return "", guardian.Effect{}, pperr.New(pperr.CodeAgentToolInputInvalid, "create_plan: theme is required")
	}
	postCount := intArg(input, "post_count")
	if postCount <= 0 {
		return "", guardian.Effect{}, pperr.New(pperr.CodeAgentToolInputInvalid, "create_plan: post_count must be positive")
	}

	now := time.Now()
	plan := &store.Plan{
		ID:        uuid.NewString(),
		SessionID: st.SessionID,
		Theme:     theme,
		PostCount: postCount,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreatePlan(ctx, plan); err != nil {
		return "", guardian.Effect{}, err
	}

	result := marshalResult(map[string]any{
		"plan_id":    plan.ID,
		"theme":      plan.Theme,
		"post_count": plan.PostCount,
	})
	return result, guardian.Effect{PlanID: plan.ID, PostCount: plan.PostCount}, nil
}

func (e *Executor) generateContent(ctx context.Context, st *guardian.State, input map[string]any) (string, guardian.Effect, error) {
	content, _ := input["content"].(string)
	if content == "" {
		return "", guardian.Effect{}, pperr.New(pperr.CodeAgentToolInputInvalid, "generate_content: content is required")
	}
	topic, _ := input["topic"].(string)
	platform, _ := input["platform"].(string)

	now := time.Now()
	post := &store.Post{
		ID:        uuid.NewString(),
		SessionID: st.SessionID,
		PlanID:    st.ActivePlanID,
		Platform:  platform,
		Topic:     topic,
		Content:   content,
		Status:    store.PostStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.CreatePost(ctx, post); err != nil {
		return "", guardian.Effect{}, err
	}

	result := marshalResult(map[string]any{
		"post_id": post.ID,
		"content": post.Content,
		"status":  string(post.Status),
	})
	return result, guardian.Effect{Content: content, PostID: post.ID}, nil
}

func (e *Executor) describeImage(input map[string]any) (string, guardian.Effect, error) {
	prompt, _ := input["prompt"].(string)
	if prompt == "" {
		return "", guardian.Effect{}, pperr.New(pperr.CodeAgentToolInputInvalid, "describe_image: prompt is required")
	}

	// Offering an image is a pure protocol step; the state transition is
	// the whole effect.
	result := marshalResult(map[string]any{
		"offered": true,
		"prompt":  prompt,
	})
	return result, guardian.Effect{}, nil
}

func (e *Executor) generateImage(ctx context.Context, st *guardian.State, input map[string]any) (string, guardian.Effect, error) {
	prompt, _ := input["prompt"].(string)
	if prompt == "" {
		return "", guardian.Effect{}, pperr.New(pperr.CodeAgentToolInputInvalid, "generate_image: prompt is required")
	}

	req := imagegen.Request{
		Prompt:      prompt,
		AspectRatio: stringArg(input, "aspect_ratio"),
		Model:       stringArg(input, "model"),
		Count:       intArg(input, "count"),
	}
	res, err := e.images.Generate(ctx, req)
	if err != nil {
		return "", guardian.Effect{}, err
	}

	for _, url := range res.URLs {
		if err := e.verifier.Verify(ctx, url); err != nil {
			return "", guardian.Effect{}, err
		}
	}

	// Attach the first image to the active draft when there is one.
	if st.ActivePostID != "" && len(res.URLs) > 0 {
		if err := e.store.SetPostImage(ctx, st.ActivePostID, res.URLs[0]); err != nil {
			return "", guardian.Effect{}, err
		}
	}

	result := marshalResult(map[string]any{
		"image_urls": res.URLs,
	})
	return result, guardian.Effect{ImageURLs: res.URLs}, nil
}

func (e *Executor) listConnectedAccounts(ctx context.Context, st *guardian.State) (string, guardian.Effect, error) {
	accounts, err := e.publisher.ListAccounts(ctx)
	if err != nil {
		return "", guardian.Effect{}, err
	}

	// Mirror the aggregator's listing into the local store so the rest
	// of the request can read it without another network hop.
	now := time.Now()
	rows := make([]*store.ConnectedAccount, 0, len(accounts))
	bindings := make([]guardian.PlatformBinding, 0, len(accounts))
	payload := make([]map[string]any, 0, len(accounts))
	for _, acc := range accounts {
		rows = append(rows, &store.ConnectedAccount{
			ID:          acc.ID,
			SessionID:   st.SessionID,
			Platform:    acc.Platform,
			AccountID:   acc.AccountID,
			DisplayName: acc.DisplayName,
			CreatedAt:   now,
		})
		bindings = append(bindings, guardian.PlatformBinding{
			Platform:  acc.Platform,
			AccountID: acc.AccountID,
		})
		payload = append(payload, map[string]any{
			"platform":     acc.Platform,
			"account_id":   acc.AccountID,
			"display_name": acc.DisplayName,
		})
	}
	if err := e.store.ReplaceAccounts(ctx, st.SessionID, rows); err != nil {
		return "", guardian.Effect{}, err
	}

	result := marshalResult(map[string]any{"accounts": payload})
	return result, guardian.Effect{Platforms: bindings}, nil
}

func (e *Executor) createPublishDraft(ctx context.Context, st *guardian.State, input map[string]any) (string, guardian.Effect, error) {
	platform := stringArg(input, "platform")
	if platform == "" {
		return "", guardian.Effect{}, pperr.New(pperr.CodeAgentToolInputInvalid, "create_publish_draft: platform is required")
	}

	postID := stringArg(input, "post_id")
	if postID == "" {
		postID = st.ActivePostID
	}
	if postID == "" {
		return "", guardian.Effect{}, pperr.New(pperr.CodeAgentToolInputInvalid, "create_publish_draft: no post to publish")
	}

	// The stored row is the only trusted source of content. Whatever the
	// model holds in its context is advisory.
	post, err := e.store.GetPost(ctx, postID)
	if err != nil {
		return "", guardian.Effect{}, err
	}
	if post.Content == "" {
		return "", guardian.Effect{}, pperr.New(pperr.CodeAgentToolInputInvalid,
			"create_publish_draft: stored post has no content", pperr.FieldPostID(postID))
	}

	var scheduledFor *time.Time
	if raw := stringArg(input, "scheduled_for"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return "", guardian.Effect{}, pperr.Wrapf(err, pperr.CodeAgentToolInputInvalid,
				"create_publish_draft: invalid scheduled_for %q", raw)
		}
		scheduledFor = &t
	}

	skipImage, _ := input["skip_image"].(bool)
	imageURL := post.ImageURL
	if skipImage {
		imageURL = ""
	}

	draft, err := e.publisher.CreateDraft(ctx, publisher.DraftRequest{
		IdempotencyKey: post.ID + ":" + platform,
		Platform:       platform,
		AccountID:      stringArg(input, "account_id"),
		Content:        post.Content,
		ImageURL:       imageURL,
		ScheduledFor:   scheduledFor,
	})
	if err != nil {
		return "", guardian.Effect{}, err
	}

	pub, err := e.publisher.ActivateDraft(ctx, draft.ID)
	if err != nil {
		return "", guardian.Effect{}, err
	}

	if err := e.store.MarkPostPublished(ctx, post.ID, scheduledFor); err != nil {
		return "", guardian.Effect{}, err
	}

	published := 0
	if post.PlanID != "" {
		published, err = e.store.IncrementPostsPublished(ctx, post.PlanID)
		if err != nil {
			return "", guardian.Effect{}, err
		}
	}

	e.log.Info("post published",
		"session_id", st.SessionID,
		"post_id", post.ID,
		"platform", platform,
		"scheduled", scheduledFor != nil,
	)

	result := marshalResult(map[string]any{
		"draft_id":        draft.ID,
		"post_url":        pub.PostURL,
		"posts_published": published,
		"scheduled":       scheduledFor != nil,
	})
	return result, guardian.Effect{PostsPublished: published}, nil
}

func marshalResult(v map[string]any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"error":"internal: result serialization failed"}`
	}
	return string(b)
}

func stringArg(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}

func intArg(input map[string]any, key string) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
