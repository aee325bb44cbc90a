// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"workflowforge/internal/app"
	"workflowforge/pkg/engine"
	"workflowforge/pkg/repository"
	"workflowforge/pkg/value"
)

// NewExecutionCommand returns the `workflowctl execution` command group.
func NewExecutionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execution",
		Short: "Start and step through workflow executions",
	}

	cmd.AddCommand(newExecutionCancelCommand())
	cmd.AddCommand(newExecutionCompleteStepCommand())
	cmd.AddCommand(newExecutionNavigateCommand())
	cmd.AddCommand(newExecutionNavigationContextCommand())
	cmd.AddCommand(newExecutionNextStepsCommand())
	cmd.AddCommand(newExecutionPauseCommand())
	cmd.AddCommand(newExecutionProgressCommand())
	cmd.AddCommand(newExecutionResumeCommand())
	cmd.AddCommand(newExecutionStartCommand())

	return cmd
}

func newExecutionStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start an execution of a workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID, _ := cmd.Flags().GetString("workflow")
			userID, _ := cmd.Flags().GetString("user")
			outcomeID, _ := cmd.Flags().GetString("outcome")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var selected *string
			if outcomeID != "" {
				selected = &outcomeID
			}
			exec, err := a.Engine.Start(cmd.Context(), workflowID, userID, selected)
			if err != nil {
				return err
			}
			return printJSON(cmd, exec)
		},
	}
	cmd.Flags().String("workflow", "", "workflow ID to start")
	cmd.Flags().String("user", "", "starting user's ID")
	cmd.Flags().String("outcome", "", "outcome ID to pre-select, if the workflow supports it")
	_ = cmd.MarkFlagRequired("workflow")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newExecutionCompleteStepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete-step",
		Short: "Complete the active step of an execution",
		RunE: func(cmd *cobra.Command, args []string) error {
			executionID, _ := cmd.Flags().GetString("execution")
			stepID, _ := cmd.Flags().GetString("step")
			dataJSON, _ := cmd.Flags().GetString("data")
			decisionOption, _ := cmd.Flags().GetString("decision-option")

			stepData, err := parseDataFlag(dataJSON)
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			completion := engine.CompletionData{StepData: stepData}
			if decisionOption != "" {
				completion.DecisionOptionID = &decisionOption
			}

			exec, err := a.Engine.CompleteStep(cmd.Context(), executionID, stepID, completion)
			if err != nil {
				return err
			}
			return printJSON(cmd, exec)
		},
	}
	cmd.Flags().String("execution", "", "execution ID")
	cmd.Flags().String("step", "", "step ID to complete")
	cmd.Flags().String("data", "", "JSON object stored as the completed step's stepData, replacing any existing stepData")
	cmd.Flags().String("decision-option", "", "decision option ID, required at a decision-point step")
	_ = cmd.MarkFlagRequired("execution")
	_ = cmd.MarkFlagRequired("step")
	return cmd
}

func newExecutionNavigateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "navigate",
		Short: "Jump an execution directly to a target step",
		RunE: func(cmd *cobra.Command, args []string) error {
			executionID, _ := cmd.Flags().GetString("execution")
			targetStepID, _ := cmd.Flags().GetString("target")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			exec, err := a.Engine.NavigateTo(cmd.Context(), executionID, targetStepID)
			if err != nil {
				return err
			}
			return printJSON(cmd, exec)
		},
	}
	cmd.Flags().String("execution", "", "execution ID")
	cmd.Flags().String("target", "", "target step ID")
	_ = cmd.MarkFlagRequired("execution")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newExecutionPauseCommand() *cobra.Command {
	return executionTransitionCommand("pause", "Pause an active execution", func(a *app.App, cmd *cobra.Command, executionID string) (*repository.Execution, error) {
		return a.Engine.Pause(cmd.Context(), executionID)
	})
}

func newExecutionResumeCommand() *cobra.Command {
	return executionTransitionCommand("resume", "Resume a paused execution", func(a *app.App, cmd *cobra.Command, executionID string) (*repository.Execution, error) {
		return a.Engine.Resume(cmd.Context(), executionID)
	})
}

func newExecutionCancelCommand() *cobra.Command {
	return executionTransitionCommand("cancel", "Cancel an execution", func(a *app.App, cmd *cobra.Command, executionID string) (*repository.Execution, error) {
		return a.Engine.Cancel(cmd.Context(), executionID)
	})
}

func executionTransitionCommand(use, short string, transition func(a *app.App, cmd *cobra.Command, executionID string) (*repository.Execution, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			executionID, _ := cmd.Flags().GetString("execution")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			exec, err := transition(a, cmd, executionID)
			if err != nil {
				return err
			}
			return printJSON(cmd, exec)
		},
	}
	cmd.Flags().String("execution", "", "execution ID")
	_ = cmd.MarkFlagRequired("execution")
	return cmd
}

func newExecutionProgressCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Print an execution's progress summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			executionID, _ := cmd.Flags().GetString("execution")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			exec, stepExecs, _, err := a.Store.LoadExecution(cmd.Context(), executionID, repository.ExecutionLoadOptions{IncludeStepExecutions: true})
			if err != nil {
				return err
			}
			w, err := a.Catalog.LoadWorkflow(cmd.Context(), exec.WorkflowID, principalFromFlags(cmd), repository.FullWorkflow())
			if err != nil {
				return err
			}

			progress := a.Engine.GetProgress(w, exec, stepExecs)
			return printJSON(cmd, progress)
		},
	}
	cmd.Flags().String("execution", "", "execution ID")
	cmd.Flags().String("user", "", "principal user ID")
	cmd.Flags().String("role", "user", "principal role (user|superuser)")
	_ = cmd.MarkFlagRequired("execution")
	return cmd
}

func newExecutionNextStepsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next-steps",
		Short: "List the steps available to move into next",
		RunE: func(cmd *cobra.Command, args []string) error {
			executionID, _ := cmd.Flags().GetString("execution")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			exec, stepExecs, _, err := a.Store.LoadExecution(cmd.Context(), executionID, repository.ExecutionLoadOptions{IncludeStepExecutions: true})
			if err != nil {
				return err
			}
			w, err := a.Catalog.LoadWorkflow(cmd.Context(), exec.WorkflowID, principalFromFlags(cmd), repository.FullWorkflow())
			if err != nil {
				return err
			}

			return printJSON(cmd, a.Engine.GetNextAvailableSteps(w, exec, stepExecs))
		},
	}
	cmd.Flags().String("execution", "", "execution ID")
	cmd.Flags().String("user", "", "principal user ID")
	cmd.Flags().String("role", "user", "principal role (user|superuser)")
	_ = cmd.MarkFlagRequired("execution")
	return cmd
}

func newExecutionNavigationContextCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "navigation-context",
		Short: "Print the current step, guidance, and next available steps for an execution",
		RunE: func(cmd *cobra.Command, args []string) error {
			executionID, _ := cmd.Flags().GetString("execution")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			exec, stepExecs, _, err := a.Store.LoadExecution(cmd.Context(), executionID, repository.ExecutionLoadOptions{IncludeStepExecutions: true})
			if err != nil {
				return err
			}
			w, err := a.Catalog.LoadWorkflow(cmd.Context(), exec.WorkflowID, principalFromFlags(cmd), repository.FullWorkflow())
			if err != nil {
				return err
			}

			return printJSON(cmd, a.Engine.GetNavigationContext(w, exec, stepExecs))
		},
	}
	cmd.Flags().String("execution", "", "execution ID")
	cmd.Flags().String("user", "", "principal user ID")
	cmd.Flags().String("role", "user", "principal role (user|superuser)")
	_ = cmd.MarkFlagRequired("execution")
	return cmd
}

func parseDataFlag(raw string) (value.Map, error) {
	if raw == "" {
		return nil, nil
	}
	var m value.Map
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("parsing --data as JSON: %w", err)
	}
	return m, nil
}
