// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package google

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/postpilot-ai/postpilot/internal/imagegen"
	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

// Config holds Google Imagen backend configuration. Imagen returns raw
// bytes rather than hosted URLs, so generated files are written under
// MediaDir and served from BaseURL.
type Config struct {
	APIKey   string
	Model    string
	MediaDir string
	BaseURL  string
}

// Generator implements imagegen.Generator using the Google Imagen API.
type Generator struct {
	client *genai.Client
	config Config
}

// New creates a new Google image generator.
func New(ctx context.Context, cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, pperr.New(pperr.CodeProviderRequestInvalid, "google images: missing api_key in config")
	}
	if cfg.MediaDir == "" {
		return nil, pperr.New(pperr.CodeConfigValidateInvalidValue, "google images: media_dir must not be empty")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, pperr.Wrap(err, pperr.CodeProviderUpstreamFailure, "google images: creating client")
	}

	if err := os.MkdirAll(cfg.MediaDir, 0o755); err != nil {
		return nil, pperr.Wrapf(err, pperr.CodeConfigValidateInvalidValue, "google images: creating media dir %s", cfg.MediaDir)
	}

	return &Generator{client: client, config: cfg}, nil
}

func (g *Generator) Name() string { return "google" }

// Generate renders images, persists them to the media directory, and
// returns URLs under the configured base URL.
func (g *Generator) Generate(ctx context.Context, req imagegen.Request) (*imagegen.Result, error) {
	if req.Prompt == "" {
		return nil, pperr.New(pperr.CodeAgentToolInputInvalid, "google images: empty prompt")
	}

	model := req.Model
	if model == "" {
		model = g.config.Model
	}
	if model == "" {
		model = "imagen-3.0-generate-002"
	}

	count := int32(req.Count)
	if count <= 0 {
		count = 1
	}

	cfg := &genai.GenerateImagesConfig{
		NumberOfImages: count,
	}
	if req.AspectRatio != "" {
		cfg.AspectRatio = req.AspectRatio
	}

	resp, err := g.client.Models.GenerateImages(ctx, model, req.Prompt, cfg)
	if err != nil {
		return nil, pperr.Wrap(err, pperr.CodeImageGenerateFailure, "google images: generate request failed")
	}
	if len(resp.GeneratedImages) == 0 {
		return nil, pperr.New(pperr.CodeProviderResponseInvalid, "google images: response contained no images")
	}

	urls := make([]string, 0, len(resp.GeneratedImages))
	for _, gi := range resp.GeneratedImages {
		if gi.Image == nil || len(gi.Image.ImageBytes) == 0 {
			continue
		}
		name := fmt.Sprintf("%s.png", uuid.NewString())
		path := filepath.Join(g.config.MediaDir, name)
		if err := os.WriteFile(path, gi.Image.ImageBytes, 0o644); err != nil {
			return nil, pperr.Wrapf(err, pperr.CodeImageGenerateFailure, "google images: writing %s", path)
		}
		urls = append(urls, strings.TrimSuffix(g.config.BaseURL, "/")+"/"+name)
	}
	if len(urls) == 0 {
		return nil, pperr.New(pperr.CodeProviderResponseInvalid, "google images: response images were empty")
	}

	return &imagegen.Result{URLs: urls}, nil
}
