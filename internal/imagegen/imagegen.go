// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

// Package imagegen defines the prompt-in, URL-out interface for image
// generation backends.
package imagegen

import (
	"context"
)

// Generator produces images for post drafts.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Request describes the image to generate.
type Request struct {
	Prompt      string
	Model       string
	AspectRatio string // "1:1", "16:9", "9:16"
	Count       int
}

// Result carries the URLs of the generated images.
type Result struct {
	URLs []string
}
