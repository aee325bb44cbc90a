// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package navigator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflowforge/pkg/graph"
	"workflowforge/pkg/navigator"
	"workflowforge/pkg/repository"
	"workflowforge/pkg/value"
)

func twoStepWorkflow() *graph.Workflow {
	w := &graph.Workflow{ID: "wf-1"}
	w.Steps = []*graph.Step{
		{ID: "s1", WorkflowID: "wf-1", Name: "First", DisplayOrder: 1},
		{ID: "s2", WorkflowID: "wf-1", Name: "Second", DisplayOrder: 2, IsOutcome: true},
	}
	w.Connections = []*graph.Connection{
		{ID: "c1", SourceStepID: "s1", TargetStepID: "s2", ConnectionType: graph.ConnSequential, DisplayOrder: 1},
	}
	return w
}

func TestNextStepSelection_FollowsSequentialConnection(t *testing.T) {
	nav := navigator.New(nil)
	w := twoStepWorkflow()

	next := nav.NextStepSelection(w, w.StepByID("s1"), value.Map{}, value.Map{})
	require.Len(t, next, 1)
	assert.Equal(t, "s2", next[0].TargetStepID)
}

func TestSuggest_NoCurrentStepSuggestsNavigateToSingleInitial(t *testing.T) {
	w := twoStepWorkflow()
	exec := &repository.Execution{ID: "exec-1", WorkflowID: "wf-1"}

	g := navigator.Suggest(w, exec, nil, false)
	assert.Equal(t, navigator.ActionNavigateToStep, g.Action)
	require.NotNil(t, g.StepID)
	assert.Equal(t, "s1", *g.StepID)
}

func TestSuggest_ActiveDecisionStepSuggestsMakeDecision(t *testing.T) {
	w := twoStepWorkflow()
	w.Steps[0].IsDecisionPoint = true
	current := "s1"
	exec := &repository.Execution{ID: "exec-1", WorkflowID: "wf-1", CurrentStepID: &current}
	stepExecs := []*repository.StepExecution{{ExecutionID: "exec-1", StepID: "s1", Status: repository.StepExecActive}}

	g := navigator.Suggest(w, exec, stepExecs, false)
	assert.Equal(t, navigator.ActionMakeDecision, g.Action)
}

func TestSuggest_CompletedFinalStepSuggestsWorkflowComplete(t *testing.T) {
	w := twoStepWorkflow()
	current := "s2"
	exec := &repository.Execution{ID: "exec-1", WorkflowID: "wf-1", CurrentStepID: &current}
	stepExecs := []*repository.StepExecution{{ExecutionID: "exec-1", StepID: "s2", Status: repository.StepExecCompleted}}

	g := navigator.Suggest(w, exec, stepExecs, true)
	assert.Equal(t, navigator.ActionWorkflowComplete, g.Action)
}
