// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/postpilot-ai/postpilot/internal/agent"
	"github.com/postpilot-ai/postpilot/internal/config"
	"github.com/postpilot-ai/postpilot/internal/guardian"
	"github.com/postpilot-ai/postpilot/internal/imagegen"
	googleimg "github.com/postpilot-ai/postpilot/internal/imagegen/google"
	openaiimg "github.com/postpilot-ai/postpilot/internal/imagegen/openai"
	"github.com/postpilot-ai/postpilot/internal/provider/anthropic"
	"github.com/postpilot-ai/postpilot/internal/publisher"
	"github.com/postpilot-ai/postpilot/internal/server"
	"github.com/postpilot-ai/postpilot/internal/store/sqlite"
	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the PostPilot server",
		Long:  "Load configuration, initialize all subsystems, and start the HTTP server.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("networking.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	// Apply any flag overrides that Viper resolved.
	if listen := viper.GetString("networking.listen"); listen != "" {
		cfg.Networking.Listen = listen
	}

	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	st, err := sqlite.Open(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	modelProvider, model := splitModel(cfg.Models.Default)
	if modelProvider != "anthropic" {
		return pperr.Errorf(pperr.CodeConfigValidateInvalidValue,
			"models.default references unsupported chat provider %q", modelProvider)
	}

	prov, err := anthropic.New(anthropic.Config{
		APIKey:  cfg.Providers["anthropic"].APIKey,
		BaseURL: cfg.Providers["anthropic"].Endpoint,
	})
	if err != nil {
		return err
	}
	defer func() { _ = prov.Close() }()

	images, mediaDir, err := newImageGenerator(cmd, cfg)
	if err != nil {
		return err
	}

	pub, err := publisher.NewHTTPClient(publisher.HTTPConfig{
		Endpoint: cfg.Publisher.Endpoint,
		APIKey:   cfg.Publisher.APIKey,
		Logger:   log,
	})
	if err != nil {
		return err
	}

	interlock := guardian.NewInterlock(guardian.InterlockConfig{
		ApprovalPhrases:   cfg.Guardian.ApprovalPhrases,
		EndTurnRetryLimit: cfg.Guardian.EndTurnRetryLimit,
		Logger:            log,
	})

	executor := agent.NewExecutor(agent.ExecutorConfig{
		Store:     st,
		Publisher: pub,
		Images:    images,
		Logger:    log,
	})

	loop := agent.NewLoop(agent.LoopConfig{
		Provider:      prov,
		Interlock:     interlock,
		Executor:      executor,
		Model:         model,
		MaxTokens:     cfg.Models.MaxTokens,
		MaxIterations: cfg.Guardian.MaxToolIterations,
		Logger:        log,
	})

	chatSvc := agent.NewService(agent.ServiceConfig{
		Sessions: agent.NewSessionManager(st),
		Loop:     loop,
		Logger:   log,
	})

	actions := agent.NewActionHandler(agent.ActionHandlerConfig{
		Store:     st,
		Publisher: pub,
		Images:    images,
		Logger:    log,
	})

	services, err := server.NewServices(chatSvc, actions, st, prov)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		ListenAddr: cfg.Networking.Listen,
		MediaDir:   mediaDir,
		Logger:     log,
	})
	if err != nil {
		return err
	}
	srv.RegisterServices(services)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting postpilot",
		"listen", cfg.Networking.Listen,
		"model", cfg.Models.Default,
		"images", cfg.Images.Backend,
	)
	return srv.Start(ctx)
}

// newImageGenerator selects the configured image backend. The google
// backend writes files locally, so its media directory is also served
// by the HTTP layer.
func newImageGenerator(cmd *cobra.Command, cfg *config.Config) (imagegen.Generator, string, error) {
	switch cfg.Images.Backend {
	case "openai":
		gen, err := openaiimg.New(openaiimg.Config{
			APIKey:  cfg.Providers["openai"].APIKey,
			BaseURL: cfg.Providers["openai"].Endpoint,
		})
		return gen, "", err
	case "google":
		gen, err := googleimg.New(cmd.Context(), googleimg.Config{
			APIKey:   cfg.Providers["google"].APIKey,
			MediaDir: cfg.Images.MediaDir,
			BaseURL:  cfg.Images.BaseURL,
		})
		return gen, cfg.Images.MediaDir, err
	default:
		return nil, "", pperr.Errorf(pperr.CodeImageBackendUnsupported,
			"images.backend %q is not supported", cfg.Images.Backend)
	}
}

// splitModel breaks a "provider/model" reference into its parts.
func splitModel(ref string) (string, string) {
	if idx := strings.Index(ref, "/"); idx > 0 {
		return ref[:idx], ref[idx+1:]
	}
	return ref, ref
}
