// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflowforge/pkg/engine"
	"workflowforge/pkg/errs"
	"workflowforge/pkg/graph"
	"workflowforge/pkg/navigator"
	"workflowforge/pkg/repository"
	"workflowforge/pkg/resources"
	"workflowforge/pkg/value"
)

// fakeRepo is an in-memory repository.Repository sufficient to exercise the
// execution lifecycle without a database.
type fakeRepo struct {
	mu         sync.Mutex
	workflows  map[string]*graph.Workflow
	executions map[string]*repository.Execution
	stepExecs  map[string][]*repository.StepExecution
	navEvents  map[string][]*repository.NavigationEvent
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		workflows:  make(map[string]*graph.Workflow),
		executions: make(map[string]*repository.Execution),
		stepExecs:  make(map[string][]*repository.StepExecution),
		navEvents:  make(map[string][]*repository.NavigationEvent),
	}
}

func (r *fakeRepo) LoadWorkflow(_ context.Context, id string, _ repository.WorkflowLoadOptions) (*graph.Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workflows[id]
	if !ok {
		return nil, errs.Newf(errs.NotFound, "workflow %q not found", id)
	}
	return w, nil
}

func (r *fakeRepo) SaveWorkflow(_ context.Context, w *graph.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[w.ID] = w
	return nil
}

func (r *fakeRepo) SearchWorkflows(context.Context, repository.WorkflowFilter, repository.Page) (repository.SearchResult, error) {
	return repository.SearchResult{}, nil
}

func (r *fakeRepo) DeleteWorkflow(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workflows, id)
	return nil
}

func (r *fakeRepo) LoadExecution(_ context.Context, id string, _ repository.ExecutionLoadOptions) (*repository.Execution, []*repository.StepExecution, []*repository.NavigationEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.executions[id]
	if !ok {
		return nil, nil, nil, errs.Newf(errs.NotFound, "execution %q not found", id)
	}
	cp := *e
	return &cp, append([]*repository.StepExecution(nil), r.stepExecs[id]...), append([]*repository.NavigationEvent(nil), r.navEvents[id]...), nil
}

func (r *fakeRepo) CreateExecution(_ context.Context, e *repository.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.Version == 0 {
		e.Version = 1
	}
	r.executions[e.ID] = e
	return nil
}

// UpdateExecution enforces the same optimistic-concurrency check as
// internal/store/postgres (§4.2, §5): the write only applies if e.Version
// matches the stored row's version, and the stored version is bumped on
// success. A racing writer whose Execution was loaded before this write
// committed carries the pre-bump version and fails with errs.Conflict.
func (r *fakeRepo) UpdateExecution(_ context.Context, e *repository.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.executions[e.ID]
	if !ok {
		return errs.Newf(errs.NotFound, "execution %q not found", e.ID)
	}
	if existing.Version != e.Version {
		return errs.Newf(errs.Conflict, "execution %q: version %d is stale", e.ID, e.Version)
	}
	e.Version++
	r.executions[e.ID] = e
	return nil
}

func (r *fakeRepo) UpsertStepExecution(_ context.Context, se *repository.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.stepExecs[se.ExecutionID]
	for i, existing := range list {
		if existing.StepID == se.StepID {
			list[i] = se
			r.stepExecs[se.ExecutionID] = list
			return nil
		}
	}
	r.stepExecs[se.ExecutionID] = append(list, se)
	return nil
}

func (r *fakeRepo) AppendNavigation(_ context.Context, ev *repository.NavigationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navEvents[ev.ExecutionID] = append(r.navEvents[ev.ExecutionID], ev)
	return nil
}

func (r *fakeRepo) ListActiveExecutions(context.Context, repository.ActiveExecutionFilter) ([]*repository.Execution, error) {
	return nil, nil
}

func (r *fakeRepo) ExecutionStatistics(context.Context, string) (repository.ExecutionStatistics, error) {
	return repository.ExecutionStatistics{}, nil
}

func (r *fakeRepo) Transaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, r)
}

type alwaysAvailableOracle struct{}

func (alwaysAvailableOracle) CheckMaterial(context.Context, string, float64) (bool, float64, error) {
	return true, 1000, nil
}
func (alwaysAvailableOracle) ReserveMaterial(context.Context, string, float64) (string, error) {
	return "tok", nil
}
func (alwaysAvailableOracle) ReleaseMaterial(context.Context, string) error { return nil }
func (alwaysAvailableOracle) CheckTool(context.Context, string, int) (bool, error) {
	return true, nil
}
func (alwaysAvailableOracle) ReserveTool(context.Context, string, int) (string, error) {
	return "tok", nil
}
func (alwaysAvailableOracle) ReleaseTool(context.Context, string) error { return nil }
func (alwaysAvailableOracle) FindMaterial(context.Context, string) (string, bool, error) {
	return "", false, nil
}
func (alwaysAvailableOracle) FindTool(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func twoStepWorkflow() *graph.Workflow {
	w := &graph.Workflow{ID: "wf-1", Name: "Brew", Status: graph.StatusActive}
	w.Steps = []*graph.Step{
		{ID: "s1", WorkflowID: "wf-1", Name: "Boil water", DisplayOrder: 1, StepType: graph.StepInstruction},
		{ID: "s2", WorkflowID: "wf-1", Name: "Pour", DisplayOrder: 2, StepType: graph.StepOutcome, IsOutcome: true},
	}
	w.Connections = []*graph.Connection{
		{ID: "c1", SourceStepID: "s1", TargetStepID: "s2", ConnectionType: graph.ConnSequential, DisplayOrder: 1},
	}
	return w
}

func newTestEngine(repo *fakeRepo) *engine.Engine {
	coord := resources.NewCoordinator(alwaysAvailableOracle{}, time.Second, nil)
	nav := navigator.New(nil)
	seq := 0
	return engine.New(repo, coord, resources.PolicyWarn, nav, nil,
		engine.WithIDGenerator(func() string { seq++; return "id-" + itoa(seq) }),
	)
}

func itoa(n int) string {
	digits := "0123456789"
	if n == 0 {
		return "0"
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return string(buf)
}

func TestEngine_Start_ActivatesInitialStep(t *testing.T) {
	repo := newFakeRepo()
	w := twoStepWorkflow()
	require.NoError(t, repo.SaveWorkflow(context.Background(), w))

	e := newTestEngine(repo)
	exec, err := e.Start(context.Background(), "wf-1", "user-1", nil)
	require.NoError(t, err)
	require.NotNil(t, exec.CurrentStepID)
	assert.Equal(t, "s1", *exec.CurrentStepID)
	assert.Equal(t, repository.ExecutionActive, exec.Status)
}

func TestEngine_Start_RejectsDraftWorkflow(t *testing.T) {
	repo := newFakeRepo()
	w := twoStepWorkflow()
	w.Status = graph.StatusDraft
	require.NoError(t, repo.SaveWorkflow(context.Background(), w))

	e := newTestEngine(repo)
	_, err := e.Start(context.Background(), "wf-1", "user-1", nil)
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.BusinessRule))
}

func TestEngine_CompleteStep_AdvancesToNextAndThenCompletesWorkflow(t *testing.T) {
	repo := newFakeRepo()
	w := twoStepWorkflow()
	require.NoError(t, repo.SaveWorkflow(context.Background(), w))

	e := newTestEngine(repo)
	exec, err := e.Start(context.Background(), "wf-1", "user-1", nil)
	require.NoError(t, err)

	exec, err = e.CompleteStep(context.Background(), exec.ID, "s1", engine.CompletionData{StepData: value.Map{}})
	require.NoError(t, err)
	require.NotNil(t, exec.CurrentStepID)
	assert.Equal(t, "s2", *exec.CurrentStepID)

	exec, err = e.CompleteStep(context.Background(), exec.ID, "s2", engine.CompletionData{StepData: value.Map{}})
	require.NoError(t, err)
	assert.Equal(t, repository.ExecutionCompleted, exec.Status)
}

func TestEngine_CompleteStep_RejectsWrongActiveStep(t *testing.T) {
	repo := newFakeRepo()
	w := twoStepWorkflow()
	require.NoError(t, repo.SaveWorkflow(context.Background(), w))

	e := newTestEngine(repo)
	exec, err := e.Start(context.Background(), "wf-1", "user-1", nil)
	require.NoError(t, err)

	_, err = e.CompleteStep(context.Background(), exec.ID, "s2", engine.CompletionData{})
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.InvalidStateTransition))
}

func TestEngine_PauseResume(t *testing.T) {
	repo := newFakeRepo()
	w := twoStepWorkflow()
	require.NoError(t, repo.SaveWorkflow(context.Background(), w))

	e := newTestEngine(repo)
	exec, err := e.Start(context.Background(), "wf-1", "user-1", nil)
	require.NoError(t, err)

	paused, err := e.Pause(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ExecutionPaused, paused.Status)

	resumed, err := e.Resume(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ExecutionActive, resumed.Status)
}

func TestEngine_Cancel_IsTerminalAndRejectsFurtherTransitions(t *testing.T) {
	repo := newFakeRepo()
	w := twoStepWorkflow()
	require.NoError(t, repo.SaveWorkflow(context.Background(), w))

	e := newTestEngine(repo)
	exec, err := e.Start(context.Background(), "wf-1", "user-1", nil)
	require.NoError(t, err)

	cancelled, err := e.Cancel(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.ExecutionCancelled, cancelled.Status)

	_, err = e.Pause(context.Background(), exec.ID)
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.InvalidStateTransition))
}

func TestEngine_GetProgress_ComputesRatio(t *testing.T) {
	repo := newFakeRepo()
	w := twoStepWorkflow()
	duration := 30
	w.EstimatedDuration = &duration
	require.NoError(t, repo.SaveWorkflow(context.Background(), w))

	e := newTestEngine(repo)
	exec, err := e.Start(context.Background(), "wf-1", "user-1", nil)
	require.NoError(t, err)

	_, stepExecs, _, err := repo.LoadExecution(context.Background(), exec.ID, repository.ExecutionLoadOptions{IncludeStepExecutions: true})
	require.NoError(t, err)

	progress := e.GetProgress(w, exec, stepExecs)
	assert.Equal(t, 1, progress.VisitedSteps)
	assert.Equal(t, 0, progress.CompletedSteps)
	assert.Equal(t, 0.0, progress.Ratio)
	require.NotNil(t, progress.EstimatedRemaining)
}

func TestEngine_NavigateTo_JumpsDirectly(t *testing.T) {
	repo := newFakeRepo()
	w := twoStepWorkflow()
	require.NoError(t, repo.SaveWorkflow(context.Background(), w))

	e := newTestEngine(repo)
	exec, err := e.Start(context.Background(), "wf-1", "user-1", nil)
	require.NoError(t, err)

	exec, err = e.NavigateTo(context.Background(), exec.ID, "s2")
	require.NoError(t, err)
	require.NotNil(t, exec.CurrentStepID)
	assert.Equal(t, "s2", *exec.CurrentStepID)
}

func TestEngine_NavigateTo_RejectsStepFromAnotherWorkflow(t *testing.T) {
	repo := newFakeRepo()
	w := twoStepWorkflow()
	require.NoError(t, repo.SaveWorkflow(context.Background(), w))

	other := &graph.Workflow{ID: "wf-2", Name: "Other", Status: graph.StatusActive}
	other.Steps = []*graph.Step{{ID: "other-step", WorkflowID: "wf-2", Name: "Stray", DisplayOrder: 1, StepType: graph.StepInstruction}}
	require.NoError(t, repo.SaveWorkflow(context.Background(), other))

	e := newTestEngine(repo)
	exec, err := e.Start(context.Background(), "wf-1", "user-1", nil)
	require.NoError(t, err)

	_, err = e.NavigateTo(context.Background(), exec.ID, "other-step")
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.Validation))
}

// decisionWorkflow builds a workflow whose first step is a decision point
// with two options, each mutating ctx.path via resultAction, routing to
// distinct outcomes via conditional connections gated on ctx.path (§4.4).
func decisionWorkflow() *graph.Workflow {
	leftAction := "ctx.path = 'L';"
	rightAction := "ctx.path = 'R';"
	leftCond := "ctx.path == 'L'"
	rightCond := "ctx.path == 'R'"

	w := &graph.Workflow{ID: "wf-dec", Name: "Fork", Status: graph.StatusActive}
	w.Steps = []*graph.Step{
		{
			ID: "d1", WorkflowID: "wf-dec", Name: "Choose path", DisplayOrder: 1,
			StepType: graph.StepDecision, IsDecisionPoint: true,
			DecisionOptions: []*graph.DecisionOption{
				{ID: "opt-left", StepID: "d1", OptionText: "Go left", ResultAction: &leftAction, DisplayOrder: 1},
				{ID: "opt-right", StepID: "d1", OptionText: "Go right", ResultAction: &rightAction, DisplayOrder: 2},
			},
		},
		{ID: "left", WorkflowID: "wf-dec", Name: "Left outcome", DisplayOrder: 2, StepType: graph.StepOutcome, IsOutcome: true},
		{ID: "right", WorkflowID: "wf-dec", Name: "Right outcome", DisplayOrder: 3, StepType: graph.StepOutcome, IsOutcome: true},
	}
	w.Connections = []*graph.Connection{
		{ID: "c-left", SourceStepID: "d1", TargetStepID: "left", ConnectionType: graph.ConnConditional, Condition: &leftCond, DisplayOrder: 1},
		{ID: "c-right", SourceStepID: "d1", TargetStepID: "right", ConnectionType: graph.ConnConditional, Condition: &rightCond, DisplayOrder: 2},
	}
	return w
}

func TestEngine_CompleteStep_DecisionBranchesAndMutatesExecutionData(t *testing.T) {
	repo := newFakeRepo()
	w := decisionWorkflow()
	require.NoError(t, repo.SaveWorkflow(context.Background(), w))

	e := newTestEngine(repo)
	exec, err := e.Start(context.Background(), "wf-dec", "user-1", nil)
	require.NoError(t, err)
	require.NotNil(t, exec.CurrentStepID)
	assert.Equal(t, "d1", *exec.CurrentStepID)

	exec, err = e.MakeDecision(context.Background(), exec.ID, "d1", "opt-right", value.Map{})
	require.NoError(t, err)
	require.NotNil(t, exec.CurrentStepID)
	assert.Equal(t, "right", *exec.CurrentStepID)

	path, ok := exec.ExecutionData.Get("path")
	require.True(t, ok)
	got, ok := path.AsString()
	require.True(t, ok)
	assert.Equal(t, "R", got)
}

func TestEngine_CompleteStep_RejectsDecisionWithoutOption(t *testing.T) {
	repo := newFakeRepo()
	w := decisionWorkflow()
	require.NoError(t, repo.SaveWorkflow(context.Background(), w))

	e := newTestEngine(repo)
	exec, err := e.Start(context.Background(), "wf-dec", "user-1", nil)
	require.NoError(t, err)

	_, err = e.CompleteStep(context.Background(), exec.ID, "d1", engine.CompletionData{StepData: value.Map{}})
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.Validation))
}

// unavailableMaterialOracle reports every material as unavailable and fails
// any reservation attempt, so Reserve (§4.5.2) under PolicyStrict aborts
// before a single reservation is held.
type unavailableMaterialOracle struct{}

func (unavailableMaterialOracle) CheckMaterial(context.Context, string, float64) (bool, float64, error) {
	return false, 0, nil
}
func (unavailableMaterialOracle) ReserveMaterial(context.Context, string, float64) (string, error) {
	return "", errs.New(errs.ExternalUnavailable, "should not be called")
}
func (unavailableMaterialOracle) ReleaseMaterial(context.Context, string) error { return nil }
func (unavailableMaterialOracle) CheckTool(context.Context, string, int) (bool, error) {
	return true, nil
}
func (unavailableMaterialOracle) ReserveTool(context.Context, string, int) (string, error) {
	return "tok", nil
}
func (unavailableMaterialOracle) ReleaseTool(context.Context, string) error { return nil }
func (unavailableMaterialOracle) FindMaterial(context.Context, string) (string, bool, error) {
	return "", false, nil
}
func (unavailableMaterialOracle) FindTool(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func workflowRequiringMaterial() *graph.Workflow {
	qty := 1.0
	w := &graph.Workflow{ID: "wf-mat", Name: "Needs flour", Status: graph.StatusActive}
	w.Steps = []*graph.Step{
		{
			ID: "s1", WorkflowID: "wf-mat", Name: "Gather flour", DisplayOrder: 1, StepType: graph.StepMaterial,
			Resources: []*graph.StepResource{
				{ID: "r1", StepID: "s1", ResourceKind: graph.ResourceMaterial, MaterialID: strPtr("flour"), Quantity: &qty, IsOptional: false},
			},
		},
	}
	return w
}

func strPtr(s string) *string { return &s }

func TestEngine_Start_StrictPolicyAbortsWithoutPersistingExecution(t *testing.T) {
	repo := newFakeRepo()
	w := workflowRequiringMaterial()
	require.NoError(t, repo.SaveWorkflow(context.Background(), w))

	coord := resources.NewCoordinator(unavailableMaterialOracle{}, time.Second, nil)
	nav := navigator.New(nil)
	e := engine.New(repo, coord, resources.PolicyStrict, nav, nil)

	_, err := e.Start(context.Background(), "wf-mat", "user-1", nil)
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.Unreserved))
	assert.Empty(t, repo.executions)
}

func TestEngine_CompleteStep_ConcurrentCallsRaceToConflictOrInvalidTransition(t *testing.T) {
	repo := newFakeRepo()
	w := twoStepWorkflow()
	require.NoError(t, repo.SaveWorkflow(context.Background(), w))

	e := newTestEngine(repo)
	exec, err := e.Start(context.Background(), "wf-1", "user-1", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, results[i] = e.CompleteStep(context.Background(), exec.ID, "s1", engine.CompletionData{StepData: value.Map{}})
		}()
	}
	wg.Wait()

	successes, failures := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errs.HasCode(err, errs.Conflict), errs.HasCode(err, errs.InvalidStateTransition):
			failures++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, failures)
}

func TestEngine_PauseResume_PreservesStepExecutionsAndReservations(t *testing.T) {
	repo := newFakeRepo()
	w := twoStepWorkflow()
	require.NoError(t, repo.SaveWorkflow(context.Background(), w))

	e := newTestEngine(repo)
	exec, err := e.Start(context.Background(), "wf-1", "user-1", nil)
	require.NoError(t, err)

	_, stepExecsBefore, _, err := repo.LoadExecution(context.Background(), exec.ID, repository.ExecutionLoadOptions{IncludeStepExecutions: true})
	require.NoError(t, err)
	dataBefore := exec.ExecutionData.Clone()
	currentBefore := *exec.CurrentStepID

	_, err = e.Pause(context.Background(), exec.ID)
	require.NoError(t, err)
	resumed, err := e.Resume(context.Background(), exec.ID)
	require.NoError(t, err)

	require.NotNil(t, resumed.CurrentStepID)
	assert.Equal(t, currentBefore, *resumed.CurrentStepID)
	assert.Equal(t, dataBefore, resumed.ExecutionData)

	_, stepExecsAfter, _, err := repo.LoadExecution(context.Background(), exec.ID, repository.ExecutionLoadOptions{IncludeStepExecutions: true})
	require.NoError(t, err)
	require.Len(t, stepExecsAfter, len(stepExecsBefore))
	for _, before := range stepExecsBefore {
		after := findStepExecutionByID(stepExecsAfter, before.StepID)
		require.NotNil(t, after)
		assert.Equal(t, before.Status, after.Status)
		assert.Equal(t, before.StepData, after.StepData)
	}
}

func findStepExecutionByID(execs []*repository.StepExecution, stepID string) *repository.StepExecution {
	for _, se := range execs {
		if se.StepID == stepID {
			return se
		}
	}
	return nil
}
