// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package config

import (
	"errors"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

// Config is the top-level PostPilot configuration.
type Config struct {
	Networking NetworkingConfig          `mapstructure:"networking"`
	Providers  map[string]ProviderConfig `mapstructure:"providers"`
	Models     ModelsConfig              `mapstructure:"models"`
	Guardian   GuardianConfig            `mapstructure:"guardian"`
	Publisher  PublisherConfig           `mapstructure:"publisher"`
	Images     ImagesConfig              `mapstructure:"images"`
	Storage    StorageConfig             `mapstructure:"storage"`
}

// NetworkingConfig controls how PostPilot listens for connections.
type NetworkingConfig struct {
	Listen string `mapstructure:"listen"`
}

// ProviderConfig holds credentials and endpoint for an upstream API.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// ModelsConfig controls model selection and token budgets.
type ModelsConfig struct {
	Default   string `mapstructure:"default"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// GuardianConfig tunes the publish interlock.
type GuardianConfig struct {
	MaxToolIterations int      `mapstructure:"max_tool_iterations"`
	EndTurnRetryLimit int      `mapstructure:"end_turn_retry_limit"`
	ApprovalPhrases   []string `mapstructure:"approval_phrases"`
}

// PublisherConfig points at the social publishing aggregator.
type PublisherConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Endpoint string `mapstructure:"endpoint"`
}

// ImagesConfig selects the image generation backend.
type ImagesConfig struct {
	Backend  string `mapstructure:"backend"`
	MediaDir string `mapstructure:"media_dir"`
	BaseURL  string `mapstructure:"base_url"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix POSTPILOT_).
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("networking.listen", "127.0.0.1:8787")
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.path", "postpilot.db")
	v.SetDefault("models.default", "anthropic/claude-sonnet-4-5")
	v.SetDefault("models.max_tokens", 4096)
	v.SetDefault("guardian.max_tool_iterations", 7)
	v.SetDefault("guardian.end_turn_retry_limit", 2)
	v.SetDefault("publisher.endpoint", "https://api.publisher.example.com")
	v.SetDefault("images.backend", "openai")
	v.SetDefault("images.media_dir", "media")
	v.SetDefault("images.base_url", "http://127.0.0.1:8787/media")

	// Environment
	v.SetEnvPrefix("POSTPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// File
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, pperr.Errorf(pperr.CodeConfigValidateInvalidValue, "reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, pperr.Errorf(pperr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, pperr.Errorf(pperr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It collects
// every issue found instead of stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateNetworking()...)
	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateModels()...)
	errs = append(errs, c.validateGuardian()...)
	errs = append(errs, c.validateImages()...)

	return errs
}

func (c *Config) validateNetworking() []error {
	var errs []error

	if c.Networking.Listen == "" {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue, "config: networking.listen must not be empty"))
		return errs
	}

	host, portStr, err := net.SplitHostPort(c.Networking.Listen)
	if err != nil {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: networking.listen must be a valid host:port address, got %q: %w",
			c.Networking.Listen, err,
		))
		return errs
	}
	_ = host // host can be empty (e.g., ":8080"), which is valid

	port, err := strconv.Atoi(portStr)
	if err != nil {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: networking.listen port must be a number, got %q",
			portStr,
		))
	} else if port < 1 || port > 65535 {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: networking.listen port must be between 1 and 65535, got %d",
			port,
		))
	}

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	validBackends := map[string]bool{"sqlite": true}
	if !validBackends[c.Storage.Backend] {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite], got %q",
			c.Storage.Backend,
		))
	}

	if c.Storage.Path == "" {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue, "config: storage.path must not be empty"))
	}

	return errs
}

func (c *Config) validateModels() []error {
	var errs []error

	if c.Models.Default == "" {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue, "config: models.default must not be empty"))
	} else if !strings.Contains(c.Models.Default, "/") {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: models.default must be in \"provider/model\" format, got %q",
			c.Models.Default,
		))
	} else if c.Providers != nil {
		// Only cross-reference providers when the providers section exists
		// in config. A nil map means defaults only, which is valid.
		providerName := providerFromModel(c.Models.Default)
		if _, ok := c.Providers[providerName]; !ok {
			errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
				"config: models.default %q references provider %q which is not configured",
				c.Models.Default, providerName,
			))
		}
	}

	if c.Models.MaxTokens <= 0 {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: models.max_tokens must be greater than 0, got %d",
			c.Models.MaxTokens,
		))
	}

	return errs
}

func (c *Config) validateGuardian() []error {
	var errs []error

	if c.Guardian.MaxToolIterations <= 0 {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: guardian.max_tool_iterations must be greater than 0, got %d",
			c.Guardian.MaxToolIterations,
		))
	}

	if c.Guardian.EndTurnRetryLimit < 0 {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: guardian.end_turn_retry_limit must not be negative, got %d",
			c.Guardian.EndTurnRetryLimit,
		))
	}

	return errs
}

func (c *Config) validateImages() []error {
	var errs []error

	validBackends := map[string]bool{"openai": true, "google": true}
	if !validBackends[c.Images.Backend] {
		errs = append(errs, pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"config: images.backend must be one of [openai, google], got %q",
			c.Images.Backend,
		))
	}

	return errs
}

// providerFromModel extracts the provider prefix from a "provider/model" string.
func providerFromModel(model string) string {
	if idx := strings.Index(model, "/"); idx > 0 {
		return model[:idx]
	}
	return model
}
