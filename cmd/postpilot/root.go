// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PostPilot Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root postpilot command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "postpilot",
		Short:         "PostPilot — conversational social media assistant",
		Long:          "PostPilot is a conversational marketing assistant that plans, drafts, illustrates, and publishes social media posts for small businesses.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")

	root.AddCommand(
		newStartCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	return root
}
