// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/postpilot-ai/postpilot/internal/imagegen"
	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

// Config holds OpenAI image backend configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
	Model   string // default image model when the request does not name one
}

// Generator implements imagegen.Generator using the OpenAI Images API.
type Generator struct {
	client openaisdk.Client
	config Config
}

// New creates a new OpenAI image generator. Returns an error if the API
// key is missing.
func New(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, pperr.New(pperr.CodeProviderRequestInvalid, "openai images: missing api_key in config")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Generator{client: openaisdk.NewClient(opts...), config: cfg}, nil
}

func (g *Generator) Name() string { return "openai" }

// Generate renders images for the prompt and returns their hosted URLs.
func (g *Generator) Generate(ctx context.Context, req imagegen.Request) (*imagegen.Result, error) {
	if req.Prompt == "" {
		return nil, pperr.New(pperr.CodeAgentToolInputInvalid, "openai images: empty prompt")
	}

	model := req.Model
	if model == "" {
		model = g.config.Model
	}
	if model == "" {
		model = string(openaisdk.ImageModelDallE3)
	}

	count := req.Count
	if count <= 0 {
		count = 1
	}

	params := openaisdk.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openaisdk.ImageModel(model),
		N:              openaisdk.Int(int64(count)),
		Size:           sizeForAspect(req.AspectRatio),
		ResponseFormat: openaisdk.ImageGenerateParamsResponseFormatURL,
	}

	resp, err := g.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, pperr.Wrap(err, pperr.CodeImageGenerateFailure, "openai images: generate request failed")
	}

	urls := make([]string, 0, len(resp.Data))
	for _, img := range resp.Data {
		if img.URL != "" {
			urls = append(urls, img.URL)
		}
	}
	if len(urls) == 0 {
		return nil, pperr.New(pperr.CodeProviderResponseInvalid, "openai images: response contained no image URLs")
	}

	return &imagegen.Result{URLs: urls}, nil
}

// sizeForAspect maps a social aspect ratio onto the closest supported
// DALL-E output size.
func sizeForAspect(aspect string) openaisdk.ImageGenerateParamsSize {
	switch aspect {
	case "16:9":
		return openaisdk.ImageGenerateParamsSize1792x1024
	case "9:16":
		return openaisdk.ImageGenerateParamsSize1024x1792
	default:
		return openaisdk.ImageGenerateParamsSize1024x1024
	}
}
