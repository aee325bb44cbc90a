// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package cli wires together the workflowctl root Cobra command and its
// global flags.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"workflowforge/internal/cli/commands"
)

// NewRootCommand constructs the workflowctl root Cobra command.
func NewRootCommand() *cobra.Command {
	version := os.Getenv("WORKFLOWCTL_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}

	cmd := &cobra.Command{
		Use:           "workflowctl",
		Short:         "workflowctl – author and run workflow definitions and executions",
		Long:          "workflowctl operates the workflow graph engine: create and publish workflow templates, then start and step through executions.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags, registered in lexicographic order for deterministic help output.
	cmd.PersistentFlags().StringP("config", "c", "", "path to workflowforge.yml")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the workflowctl version",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = cmd.OutOrStdout().Write([]byte("workflowctl version " + version + "\n"))
		},
	})

	// Subcommands registered in lexicographic order by .Use.
	cmd.AddCommand(commands.NewExecutionCommand())
	cmd.AddCommand(commands.NewWorkflowCommand())

	return cmd
}
