// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package graphalgo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflowforge/pkg/condition"
	"workflowforge/pkg/graph"
	"workflowforge/pkg/graphalgo"
	"workflowforge/pkg/value"
)

func branchingWorkflow() *graph.Workflow {
	cond := "ctx.temp > 100"
	w := &graph.Workflow{ID: "wf-1"}
	w.Steps = []*graph.Step{
		{ID: "s1", WorkflowID: "wf-1", DisplayOrder: 1},
		{ID: "s2", WorkflowID: "wf-1", DisplayOrder: 2},
		{ID: "s3", WorkflowID: "wf-1", DisplayOrder: 3, IsOutcome: true},
	}
	w.Connections = []*graph.Connection{
		{ID: "c-hot", SourceStepID: "s1", TargetStepID: "s2", ConnectionType: graph.ConnConditional, Condition: &cond, DisplayOrder: 2},
		{ID: "c-default", SourceStepID: "s1", TargetStepID: "s3", ConnectionType: graph.ConnSequential, DisplayOrder: 1, IsDefault: true},
	}
	return w
}

func TestOrderConnections_DefaultFirstThenDisplayOrder(t *testing.T) {
	w := branchingWorkflow()
	ordered := graphalgo.OrderConnections(w.OutgoingConnections("s1"))
	require.Len(t, ordered, 2)
	assert.Equal(t, "c-default", ordered[0].ID)
	assert.Equal(t, "c-hot", ordered[1].ID)
}

func TestNextSteps_FallsBackToDefaultWhenConditionFalse(t *testing.T) {
	w := branchingWorkflow()
	ctx := condition.Context{Ctx: value.Map{"temp": value.Number(50)}}

	next := graphalgo.NextSteps(w, "s1", ctx, nil)
	require.Len(t, next, 1)
	assert.Equal(t, "c-default", next[0].ID)
}

func TestNextSteps_TakesMatchingConditionalOverDefault(t *testing.T) {
	w := branchingWorkflow()
	ctx := condition.Context{Ctx: value.Map{"temp": value.Number(150)}}

	next := graphalgo.NextSteps(w, "s1", ctx, nil)
	require.Len(t, next, 1)
	assert.Equal(t, "c-hot", next[0].ID)
}

func TestReachable_AndOrphanSteps(t *testing.T) {
	w := branchingWorkflow()
	// s4 is a sub-step of s1 with no incoming connection: its parent link
	// keeps it out of the initial set, and no connection reaches it.
	parent := "s1"
	orphan := &graph.Step{ID: "s4", WorkflowID: "wf-1", DisplayOrder: 4, ParentStepID: &parent}
	w.Steps = append(w.Steps, orphan)

	reachable := graphalgo.Reachable(w)
	assert.True(t, reachable["s2"])
	assert.False(t, reachable["s4"])

	orphans := graphalgo.OrphanSteps(w)
	require.Len(t, orphans, 1)
	assert.Equal(t, "s4", orphans[0].ID)
}

func TestDetectCycle(t *testing.T) {
	w := branchingWorkflow()
	assert.Nil(t, graphalgo.DetectCycle(w))

	w.Connections = append(w.Connections, &graph.Connection{ID: "back", SourceStepID: "s2", TargetStepID: "s1"})
	assert.NotEmpty(t, graphalgo.DetectCycle(w))
}

func TestShortestPath_PrefersFewerHopsThenLowerDuration(t *testing.T) {
	w := &graph.Workflow{ID: "wf-1"}
	d1, d2 := 5, 1
	w.Steps = []*graph.Step{
		{ID: "a", WorkflowID: "wf-1", EstimatedDuration: &d1},
		{ID: "b", WorkflowID: "wf-1", EstimatedDuration: &d2},
		{ID: "c", WorkflowID: "wf-1"},
	}
	w.Connections = []*graph.Connection{
		{ID: "c1", SourceStepID: "a", TargetStepID: "c", DisplayOrder: 1},
		{ID: "c2", SourceStepID: "a", TargetStepID: "b", DisplayOrder: 2},
		{ID: "c3", SourceStepID: "b", TargetStepID: "c", DisplayOrder: 1},
	}

	path, ok := graphalgo.ShortestPath(w, "a", "c")
	require.True(t, ok)
	assert.Equal(t, 1, path.Hops)
	assert.Equal(t, []string{"a", "c"}, path.StepIDs)
}

func TestShortestPath_NoPathReturnsFalse(t *testing.T) {
	w := &graph.Workflow{ID: "wf-1"}
	w.Steps = []*graph.Step{{ID: "a", WorkflowID: "wf-1"}, {ID: "b", WorkflowID: "wf-1"}}

	_, ok := graphalgo.ShortestPath(w, "a", "b")
	assert.False(t, ok)
}
