// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"workflowforge/internal/app"
	"workflowforge/pkg/catalog"
	"workflowforge/pkg/codec"
	"workflowforge/pkg/config"
	"workflowforge/pkg/errs"
	"workflowforge/pkg/graph"
	"workflowforge/pkg/logging"
	"workflowforge/pkg/repository"
)

// NewWorkflowCommand returns the `workflowctl workflow` command group.
func NewWorkflowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Author, publish, and search workflow definitions",
	}

	// Subcommands in lexicographic order by .Use.
	cmd.AddCommand(newWorkflowCreateCommand())
	cmd.AddCommand(newWorkflowDeleteCommand())
	cmd.AddCommand(newWorkflowDuplicateCommand())
	cmd.AddCommand(newWorkflowExportCommand())
	cmd.AddCommand(newWorkflowImportCommand())
	cmd.AddCommand(newWorkflowPublishCommand())
	cmd.AddCommand(newWorkflowSearchCommand())

	return cmd
}

func openApp(cmd *cobra.Command) (*app.App, error) {
	flags := ResolveFlags(cmd)
	cfg, err := config.Load(flags.Config)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return app.New(cmd.Context(), cfg, logging.NewLogger(flags.Verbose))
}

func principalFromFlags(cmd *cobra.Command) catalog.Principal {
	userID, _ := cmd.Flags().GetString("user")
	role, _ := cmd.Flags().GetString("role")
	if role != string(catalog.RoleSuperuser) {
		role = string(catalog.RoleUser)
	}
	return catalog.Principal{UserID: userID, Role: catalog.Role(role)}
}

func newWorkflowCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workflow from a JSON definition file",
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath, _ := cmd.Flags().GetString("file")
			userID, _ := cmd.Flags().GetString("user")

			data, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("reading %q: %w", filePath, err)
			}
			var def graph.Workflow
			if err := json.Unmarshal(data, &def); err != nil {
				return fmt.Errorf("parsing workflow definition: %w", err)
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := a.Catalog.CreateWorkflow(cmd.Context(), &def, userID)
			if err != nil {
				return err
			}
			return printJSON(cmd, w)
		},
	}
	cmd.Flags().String("file", "", "path to a workflow definition JSON file")
	cmd.Flags().String("user", "", "creating user's ID")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newWorkflowPublishCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a workflow as a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			visibility, _ := cmd.Flags().GetString("visibility")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := a.Catalog.PublishTemplate(cmd.Context(), id, graph.Visibility(visibility), principalFromFlags(cmd))
			if err != nil {
				return err
			}
			return printJSON(cmd, w)
		},
	}
	cmd.Flags().String("id", "", "workflow ID")
	cmd.Flags().String("visibility", string(graph.VisibilityPublic), "visibility to publish under")
	cmd.Flags().String("user", "", "principal user ID")
	cmd.Flags().String("role", "user", "principal role (user|superuser)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newWorkflowSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			nameContains, _ := cmd.Flags().GetString("name")
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Catalog.SearchWorkflows(cmd.Context(),
				repository.WorkflowFilter{NameContains: nameContains},
				repository.Page{Limit: limit, Offset: offset})
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().String("name", "", "filter by substring of workflow name")
	cmd.Flags().Int("limit", 20, "page size")
	cmd.Flags().Int("offset", 0, "page offset")
	return cmd
}

func newWorkflowDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a workflow (refuses if any non-terminal execution references it)",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Catalog.DeleteWorkflow(cmd.Context(), id, principalFromFlags(cmd)); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted workflow %s\n", id)
			return nil
		},
	}
	cmd.Flags().String("id", "", "workflow ID")
	cmd.Flags().String("user", "", "principal user ID")
	cmd.Flags().String("role", "user", "principal role (user|superuser)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newWorkflowDuplicateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "duplicate",
		Short: "Deep-copy a workflow into a new ID space",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			name, _ := cmd.Flags().GetString("name")
			userID, _ := cmd.Flags().GetString("user")
			asTemplate, _ := cmd.Flags().GetBool("template")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			dup, err := a.Catalog.DuplicateWorkflow(cmd.Context(), id, name, userID, asTemplate)
			if err != nil {
				return err
			}
			return printJSON(cmd, dup)
		},
	}
	cmd.Flags().String("id", "", "source workflow ID")
	cmd.Flags().String("name", "", "name for the duplicate")
	cmd.Flags().String("user", "", "owning user's ID")
	cmd.Flags().Bool("template", false, "mark the duplicate as a template")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newWorkflowExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a workflow to the canonical JSON envelope",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			exportedAt, _ := cmd.Flags().GetString("exported-at")

			principal := principalFromFlags(cmd)
			if principal.Role != catalog.RoleSuperuser {
				return errs.Newf(errs.BusinessRule, "principal %q may not export a raw workflow envelope; import/export requires superuser", principal.UserID)
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			w, err := a.Catalog.LoadWorkflow(cmd.Context(), id, principal, repository.FullWorkflow())
			if err != nil {
				return err
			}
			env := codec.Export(w, &w.ID, exportedAt)
			return printJSON(cmd, env)
		},
	}
	cmd.Flags().String("id", "", "workflow ID")
	cmd.Flags().String("exported-at", "", "export timestamp to stamp into metadata")
	cmd.Flags().String("user", "", "principal user ID")
	cmd.Flags().String("role", "user", "principal role (user|superuser); import/export requires superuser")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newWorkflowImportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a workflow from a canonical JSON envelope",
		RunE: func(cmd *cobra.Command, args []string) error {
			filePath, _ := cmd.Flags().GetString("file")
			userID, _ := cmd.Flags().GetString("user")

			principal := principalFromFlags(cmd)
			if principal.Role != catalog.RoleSuperuser {
				return errs.Newf(errs.BusinessRule, "principal %q may not import a raw workflow envelope; import/export requires superuser", principal.UserID)
			}

			data, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("reading %q: %w", filePath, err)
			}
			var env codec.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				return fmt.Errorf("parsing envelope: %w", err)
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var result *codec.ImportResult
			err = a.Store.Transaction(cmd.Context(), func(ctx context.Context, tx repository.Tx) error {
				result, err = codec.Import(ctx, env, uuid.NewString, nil)
				if err != nil {
					return err
				}
				result.Workflow.CreatedBy = userID
				return tx.SaveWorkflow(ctx, result.Workflow)
			})
			if err != nil {
				return err
			}
			for _, w := range result.Warnings {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			return printJSON(cmd, result.Workflow)
		},
	}
	cmd.Flags().String("file", "", "path to an exported workflow envelope")
	cmd.Flags().String("user", "", "owning user's ID")
	cmd.Flags().String("role", "user", "principal role (user|superuser); import/export requires superuser")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
