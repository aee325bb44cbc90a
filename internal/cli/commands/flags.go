// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package commands implements workflowctl's subcommands: workflow
// authoring (create/publish/search/delete/duplicate/export/import) and
// execution control (start/complete-step/navigate/next-steps/
// navigation-context/pause/resume/cancel/progress).
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"workflowforge/pkg/config"
)

// ResolvedFlags holds the resolved values of workflowctl's global flags.
type ResolvedFlags struct {
	Config  string
	Verbose bool
}

// ResolveFlags resolves global flags with precedence: command-line flag >
// environment variable > built-in default.
func ResolveFlags(cmd *cobra.Command) *ResolvedFlags {
	configFlag, _ := cmd.Flags().GetString("config")
	verboseFlag, _ := cmd.Flags().GetBool("verbose")

	cfgPath := configFlag
	if cfgPath == "" {
		cfgPath = os.Getenv("WORKFLOWCTL_CONFIG")
	}
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}

	return &ResolvedFlags{Config: cfgPath, Verbose: verboseFlag}
}
