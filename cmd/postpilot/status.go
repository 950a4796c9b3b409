// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	pperr "github.com/postpilot-ai/postpilot/pkg/errors"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Long:  "Check the running server's health endpoint and display status information.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "127.0.0.1:8787", "server address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	client := newServerClient(addr)
	var body struct {
		Status   string `json:"status"`
		Provider string `json:"provider"`
		LLM      string `json:"llm"`
	}
	if err := client.getJSON("/health", &body); err != nil {
		if pperr.HasCode(err, pperr.CodeCLIGatewayNotRunning) {
			_, _ = fmt.Fprintf(out, "PostPilot at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "PostPilot at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "PostPilot at %s: %s\n", addr, body.Status)
	if body.Provider != "" {
		_, _ = fmt.Fprintf(out, "LLM provider %s: %s\n", body.Provider, body.LLM)
	}
	return nil
}
