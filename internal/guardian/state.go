// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package guardian

// Stage is the coarse progress marker for one conversation. Stages are
// totally ordered; a conversation only moves forward within a turn.
type Stage int

const (
	StageNoPlan Stage = iota
	StagePlanning
	StageContentDrafted
	StageImageOffered
	StageImageGenerated
	StageReadyToPublish
	StagePublished
)

var stageNames = map[Stage]string{
	StageNoPlan:         "no_plan",
	StagePlanning:       "planning",
	StageContentDrafted: "content_drafted",
	StageImageOffered:   "image_offered",
	StageImageGenerated: "image_generated",
	StageReadyToPublish: "ready_to_publish",
	StagePublished:      "published",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "no_plan"
}

// AtLeast reports whether s has reached or passed other.
func (s Stage) AtLeast(other Stage) bool { return s >= other }

// ParseStage maps a persisted stage name back to a Stage. Unknown or
// empty values default to StageNoPlan rather than erroring: a session
// with a corrupt stage restarts the protocol instead of wedging.
func ParseStage(name string) Stage {
	for stage, n := range stageNames {
		if n == name {
			return stage
		}
	}
	return StageNoPlan
}

// ImageSpec describes the most recent image request, independent of
// whether the image has been generated yet.
type ImageSpec struct {
	Prompt      string `json:"prompt"`
	Model       string `json:"model"`
	AspectRatio string `json:"aspect_ratio"`
	Count       int    `json:"count"`
}

// PlatformBinding is an account-to-platform binding available for publishing.
type PlatformBinding struct {
	Platform  string `json:"platform"`
	AccountID string `json:"account_id"`
}

// State is the per-conversation guardian record. One instance is built
// per inbound chat request, mutated in place by Apply after every tool
// execution, and projected back to the session row when the request
// handler finishes. It is never shared across requests.
type State struct {
	Stage Stage

	// LastGeneratedContent is the most recent content draft produced by a
	// content-generation tool call. Set only from tool effects, never from
	// raw model text.
	LastGeneratedContent string

	LastImageSpec       *ImageSpec
	DescribeImageCalled bool
	ImageDeclined       bool

	ConnectedPlatforms []PlatformBinding

	// PlanPostCount and PostsPublished mirror the authoritative counters
	// in the database. Advisory only: UI hints, never publish-eligibility.
	PlanPostCount  int
	PostsPublished int

	SessionID    string
	ActivePlanID string
	ActivePostID string

	// ShouldClearOAuthCookie is consumed by the response layer only.
	ShouldClearOAuthCookie bool

	ToolUseCount   int
	EndTurnRetries int

	// Truncated is set when the loop hits its iteration ceiling so the
	// caller can surface a "please continue" affordance.
	Truncated bool

	// LastImageURLs holds the URLs of the most recently generated images,
	// used by the button layer to present approval affordances.
	LastImageURLs []string
}

// SessionSnapshot is the minimal persisted view a State is seeded from.
type SessionSnapshot struct {
	SessionID            string
	ActivePlanID         string
	ActivePostID         string
	Stage                string
	LastGeneratedContent string
	PlanPostCount        int
	PostsPublished       int
	OAuthPending         bool
	Platforms            []PlatformBinding
}

// NewState builds the initial guardian state for a request. Missing or
// unknown snapshot fields default to empty, not error.
func NewState(snap SessionSnapshot) *State {
	return &State{
		Stage:                  ParseStage(snap.Stage),
		LastGeneratedContent:   snap.LastGeneratedContent,
		ConnectedPlatforms:     snap.Platforms,
		PlanPostCount:          snap.PlanPostCount,
		PostsPublished:         snap.PostsPublished,
		SessionID:              snap.SessionID,
		ActivePlanID:           snap.ActivePlanID,
		ActivePostID:           snap.ActivePostID,
		ShouldClearOAuthCookie: snap.OAuthPending,
	}
}

// Effect is the state-relevant outcome of a successful tool execution,
// filled by the tool executor alongside the LLM-visible result payload.
type Effect struct {
	Content        string
	PlanID         string
	PostID         string
	PostCount      int
	Platforms      []PlatformBinding
	ImageURLs      []string
	PostsPublished int
}

// advance moves the stage forward, never backward.
func (s *State) advance(to Stage) {
	if to > s.Stage {
		s.Stage = to
	}
}

// Apply folds the effect of a completed tool call into the state.
// It is idempotent for identical successful inputs: stages only move
// forward and counters are copied from the effect, never incremented
// here — the store is the single writer of counters.
func (s *State) Apply(toolName string, input map[string]any, effect Effect) {
	switch toolName {
	case ToolCreatePlan:
		if effect.PlanID != "" {
			s.ActivePlanID = effect.PlanID
		}
		if effect.PostCount > 0 {
			s.PlanPostCount = effect.PostCount
		}
		s.advance(StagePlanning)

	case ToolGenerateContent:
		if effect.Content != "" {
			s.LastGeneratedContent = effect.Content
		}
		if effect.PostID != "" {
			s.ActivePostID = effect.PostID
		}
		s.advance(StageContentDrafted)

	case ToolDescribeImage:
		s.DescribeImageCalled = true
		s.LastImageSpec = imageSpecFromInput(input)
		s.advance(StageImageOffered)

	case ToolGenerateImage:
		if spec := imageSpecFromInput(input); spec.Prompt != "" {
			s.LastImageSpec = spec
		}
		if len(effect.ImageURLs) > 0 {
			s.LastImageURLs = effect.ImageURLs
		}
		s.advance(StageImageGenerated)

	case ToolListConnectedAccounts:
		if len(effect.Platforms) > 0 {
			s.ConnectedPlatforms = effect.Platforms
		}

	case ToolCreatePublishDraft:
		if skip, _ := input["skip_image"].(bool); skip {
			s.ImageDeclined = true
		}
		if effect.PostsPublished > 0 {
			s.PostsPublished = effect.PostsPublished
		}
		s.advance(StagePublished)
	}
}

// Snapshot projects the terminal state back into a persistable view.
func (s *State) Snapshot() SessionSnapshot {
	return SessionSnapshot{
		SessionID:            s.SessionID,
		ActivePlanID:         s.ActivePlanID,
		ActivePostID:         s.ActivePostID,
		Stage:                s.Stage.String(),
		LastGeneratedContent: s.LastGeneratedContent,
		PlanPostCount:        s.PlanPostCount,
		PostsPublished:       s.PostsPublished,
		Platforms:            s.ConnectedPlatforms,
	}
}

func imageSpecFromInput(input map[string]any) *ImageSpec {
	spec := &ImageSpec{Count: 1}
	if v, ok := input["prompt"].(string); ok {
		spec.Prompt = v
	}
	if v, ok := input["model"].(string); ok {
		spec.Model = v
	}
	if v, ok := input["aspect_ratio"].(string); ok {
		spec.AspectRatio = v
	}
	switch v := input["count"].(type) {
	case float64:
		if v > 0 {
			spec.Count = int(v)
		}
	case int:
		if v > 0 {
			spec.Count = v
		}
	}
	return spec
}
