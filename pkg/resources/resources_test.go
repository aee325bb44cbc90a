// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package resources_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflowforge/pkg/graph"
	"workflowforge/pkg/resources"
)

type fakeOracle struct {
	unavailable map[string]bool
	failures    map[string]*resources.OracleError
	released    map[string]bool
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		unavailable: map[string]bool{},
		failures:    map[string]*resources.OracleError{},
		released:    map[string]bool{},
	}
}

func (f *fakeOracle) CheckMaterial(_ context.Context, id string, _ float64) (bool, float64, error) {
	if err := f.failures[id]; err != nil {
		return false, 0, err
	}
	return !f.unavailable[id], 100, nil
}

func (f *fakeOracle) ReserveMaterial(_ context.Context, id string, _ float64) (string, error) {
	return "tok-" + id, nil
}

func (f *fakeOracle) ReleaseMaterial(_ context.Context, token string) error {
	f.released[token] = true
	return nil
}

func (f *fakeOracle) CheckTool(_ context.Context, id string, _ int) (bool, error) {
	if err := f.failures[id]; err != nil {
		return false, err
	}
	return !f.unavailable[id], nil
}

func (f *fakeOracle) ReserveTool(_ context.Context, id string, _ int) (string, error) {
	return "tok-" + id, nil
}

func (f *fakeOracle) ReleaseTool(_ context.Context, token string) error {
	f.released[token] = true
	return nil
}

func (f *fakeOracle) FindMaterial(context.Context, string) (string, bool, error) { return "", false, nil }
func (f *fakeOracle) FindTool(context.Context, string) (string, bool, error)     { return "", false, nil }

func workflowWithMaterial(materialID string, required bool) *graph.Workflow {
	qty := 3.0
	w := &graph.Workflow{ID: "wf-1"}
	w.Steps = []*graph.Step{
		{
			ID: "s1", WorkflowID: "wf-1",
			Resources: []*graph.StepResource{
				{StepID: "s1", ResourceKind: graph.ResourceMaterial, MaterialID: &materialID, Quantity: &qty, IsOptional: !required},
			},
		},
	}
	return w
}

func TestAnalyzeRequirements_AggregatesByMaterial(t *testing.T) {
	w := workflowWithMaterial("flour", true)
	reqs := resources.AnalyzeRequirements(w)
	require.Len(t, reqs, 1)
	assert.Equal(t, "flour", reqs[0].RefID)
	assert.Equal(t, 3.0, reqs[0].Quantity)
	assert.True(t, reqs[0].Required)
}

func TestCoordinator_Reserve_StrictFailsOnUnavailableRequired(t *testing.T) {
	oracle := newFakeOracle()
	oracle.unavailable["flour"] = true
	coord := resources.NewCoordinator(oracle, time.Second, nil)

	w := workflowWithMaterial("flour", true)
	_, _, err := coord.Reserve(context.Background(), w, resources.PolicyStrict)
	assert.Error(t, err)
}

func TestCoordinator_Reserve_WarnPolicyProceedsWithWarning(t *testing.T) {
	oracle := newFakeOracle()
	oracle.unavailable["flour"] = true
	coord := resources.NewCoordinator(oracle, time.Second, nil)

	w := workflowWithMaterial("flour", true)
	held, warnings, err := coord.Reserve(context.Background(), w, resources.PolicyWarn)
	require.NoError(t, err)
	assert.Empty(t, held)
	assert.Len(t, warnings, 1)
}

func TestCoordinator_Reserve_ThenRelease(t *testing.T) {
	oracle := newFakeOracle()
	coord := resources.NewCoordinator(oracle, time.Second, nil)

	w := workflowWithMaterial("flour", true)
	held, warnings, err := coord.Reserve(context.Background(), w, resources.PolicyStrict)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, held, 1)

	require.NoError(t, coord.Release(context.Background(), held))
	assert.True(t, oracle.released[held[0].Token])
}

func TestPrepareStep_FiltersByStepID(t *testing.T) {
	records := []resources.ReservationRecord{
		{RefID: "flour", StepIDs: []string{"s1"}},
		{RefID: "sugar", StepIDs: []string{"s2"}},
	}
	step := &graph.Step{ID: "s1"}
	filtered := resources.PrepareStep(records, step)
	require.Len(t, filtered, 1)
	assert.Equal(t, "flour", filtered[0].RefID)
}
