// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflowforge/pkg/graph"
)

func TestNewWorkflow_RequiresName(t *testing.T) {
	_, err := graph.NewWorkflow("", "desc", "user-1")
	require.Error(t, err)

	w, err := graph.NewWorkflow("Brew Coffee", "desc", "user-1")
	require.NoError(t, err)
	assert.Equal(t, graph.StatusDraft, w.Status)
	assert.Equal(t, graph.VisibilityPrivate, w.Visibility)
	assert.Equal(t, 1, w.Version)
}

func TestNewConnection_RejectsSelfLoop(t *testing.T) {
	_, err := graph.NewConnection("step-1", "step-1", graph.ConnSequential, 1)
	require.Error(t, err)

	c, err := graph.NewConnection("step-1", "step-2", graph.ConnSequential, 1)
	require.NoError(t, err)
	assert.Equal(t, "step-1", c.SourceStepID)
}

func TestNewStepResource_SetsReferenceByKind(t *testing.T) {
	qty := 2.5
	res, err := graph.NewStepResource("step-1", graph.ResourceMaterial, "material-9", &qty)
	require.NoError(t, err)
	require.NotNil(t, res.MaterialID)
	assert.Equal(t, "material-9", *res.MaterialID)
	assert.Nil(t, res.ToolID)

	_, err = graph.NewStepResource("step-1", graph.ResourceKind("bogus"), "x", nil)
	assert.Error(t, err)
}

func twoStepWorkflow() *graph.Workflow {
	w := &graph.Workflow{ID: "wf-1", Name: "Two Step"}
	s1 := &graph.Step{ID: "s1", WorkflowID: "wf-1", Name: "First", DisplayOrder: 1, StepType: graph.StepInstruction}
	s2 := &graph.Step{ID: "s2", WorkflowID: "wf-1", Name: "Last", DisplayOrder: 2, StepType: graph.StepOutcome, IsOutcome: true}
	w.Steps = []*graph.Step{s1, s2}
	w.Connections = []*graph.Connection{
		{ID: "c1", SourceStepID: "s1", TargetStepID: "s2", ConnectionType: graph.ConnSequential, DisplayOrder: 1},
	}
	return w
}

func TestValidate_CleanGraphHasNoErrors(t *testing.T) {
	w := twoStepWorkflow()
	report := graph.Validate(w, true)
	assert.True(t, report.OK())
	assert.Empty(t, report.Warnings)
}

func TestValidate_DetectsCycle(t *testing.T) {
	w := twoStepWorkflow()
	w.Steps[1].IsOutcome = false
	w.Connections = append(w.Connections, &graph.Connection{ID: "c2", SourceStepID: "s2", TargetStepID: "s1", ConnectionType: graph.ConnSequential, DisplayOrder: 1})

	report := graph.Validate(w, true)
	assert.False(t, report.OK())
}

func TestValidate_UnreachableStepIsErrorOnlyForPublication(t *testing.T) {
	w := twoStepWorkflow()
	orphan := &graph.Step{ID: "s3", WorkflowID: "wf-1", Name: "Orphan", DisplayOrder: 3, StepType: graph.StepInstruction}
	w.Steps = append(w.Steps, orphan)

	draftReport := graph.Validate(w, false)
	assert.True(t, draftReport.OK())
	assert.NotEmpty(t, draftReport.Warnings)

	pubReport := graph.Validate(w, true)
	assert.False(t, pubReport.OK())
}

func TestValidate_MismatchedWorkflowIDIsError(t *testing.T) {
	w := twoStepWorkflow()
	w.Steps[1].WorkflowID = "other-workflow"

	report := graph.Validate(w, false)
	assert.False(t, report.OK())
}

func TestInitialSteps_FallsBackToSmallestDisplayOrder(t *testing.T) {
	w := &graph.Workflow{ID: "wf-1"}
	w.Steps = []*graph.Step{
		{ID: "a", WorkflowID: "wf-1", DisplayOrder: 2},
		{ID: "b", WorkflowID: "wf-1", DisplayOrder: 1},
	}
	w.Connections = []*graph.Connection{
		{ID: "c1", SourceStepID: "a", TargetStepID: "b"},
		{ID: "c2", SourceStepID: "b", TargetStepID: "a"},
	}

	initial := graph.InitialSteps(w)
	require.Len(t, initial, 1)
	assert.Equal(t, "b", initial[0].ID)
}

func TestStepByID_AndConnectionLookups(t *testing.T) {
	w := twoStepWorkflow()
	require.NotNil(t, w.StepByID("s1"))
	assert.Nil(t, w.StepByID("missing"))

	assert.Len(t, w.OutgoingConnections("s1"), 1)
	assert.Len(t, w.IncomingConnections("s2"), 1)
	assert.Empty(t, w.OutgoingConnections("s2"))
}
