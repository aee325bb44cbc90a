// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflowforge/pkg/errs"
	"workflowforge/pkg/graph"
	"workflowforge/pkg/repository"
)

// memRepo is a minimal in-memory repository.Repository used to exercise
// pkg/catalog without a database.
type memRepo struct {
	mu        sync.Mutex
	workflows map[string]*graph.Workflow
	active    map[string][]*repository.Execution
}

func newMemRepo() *memRepo {
	return &memRepo{
		workflows: make(map[string]*graph.Workflow),
		active:    make(map[string][]*repository.Execution),
	}
}

func cloneWorkflow(w *graph.Workflow) *graph.Workflow {
	cp := *w
	cp.Steps = append([]*graph.Step(nil), w.Steps...)
	cp.Connections = append([]*graph.Connection(nil), w.Connections...)
	cp.Outcomes = append([]*graph.Outcome(nil), w.Outcomes...)
	return &cp
}

func (m *memRepo) LoadWorkflow(_ context.Context, id string, _ repository.WorkflowLoadOptions) (*graph.Workflow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workflows[id]
	if !ok {
		return nil, errs.Newf(errs.NotFound, "workflow %q not found", id)
	}
	return cloneWorkflow(w), nil
}

func (m *memRepo) SaveWorkflow(_ context.Context, w *graph.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workflows[w.ID] = cloneWorkflow(w)
	return nil
}

func (m *memRepo) SearchWorkflows(_ context.Context, _ repository.WorkflowFilter, _ repository.Page) (repository.SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := repository.SearchResult{}
	for _, w := range m.workflows {
		res.Items = append(res.Items, cloneWorkflow(w))
	}
	res.Total = len(res.Items)
	return res, nil
}

func (m *memRepo) DeleteWorkflow(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.workflows, id)
	return nil
}

func (m *memRepo) LoadExecution(context.Context, string, repository.ExecutionLoadOptions) (*repository.Execution, []*repository.StepExecution, []*repository.NavigationEvent, error) {
	return nil, nil, nil, errs.New(errs.NotFound, "not implemented")
}

func (m *memRepo) CreateExecution(context.Context, *repository.Execution) error { return nil }
func (m *memRepo) UpdateExecution(context.Context, *repository.Execution) error { return nil }
func (m *memRepo) UpsertStepExecution(context.Context, *repository.StepExecution) error {
	return nil
}
func (m *memRepo) AppendNavigation(context.Context, *repository.NavigationEvent) error { return nil }

func (m *memRepo) ListActiveExecutions(_ context.Context, filter repository.ActiveExecutionFilter) ([]*repository.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if filter.WorkflowID == nil {
		return nil, nil
	}
	return m.active[*filter.WorkflowID], nil
}

func (m *memRepo) ExecutionStatistics(context.Context, string) (repository.ExecutionStatistics, error) {
	return repository.ExecutionStatistics{}, nil
}

func (m *memRepo) Transaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, m)
}

func ownerInstance() *graph.Workflow {
	return &graph.Workflow{
		Name: "Assemble bookshelf",
		Steps: []*graph.Step{
			{Name: "Lay out panels", DisplayOrder: 1, StepType: graph.StepInstruction},
			{Name: "Attach sides", DisplayOrder: 2, StepType: graph.StepInstruction},
		},
	}
}

func TestService_CreateWorkflow(t *testing.T) {
	svc := New(newMemRepo(), nil)

	w, err := svc.CreateWorkflow(context.Background(), ownerInstance(), "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, w.ID)
	assert.Equal(t, "user-1", w.CreatedBy)
	assert.Equal(t, graph.StatusDraft, w.Status)
	assert.Equal(t, graph.VisibilityPrivate, w.Visibility)
	for _, s := range w.Steps {
		assert.NotEmpty(t, s.ID)
		assert.Equal(t, w.ID, s.WorkflowID)
	}
}

func TestService_UpdateWorkflow_RequiresOwnership(t *testing.T) {
	repo := newMemRepo()
	svc := New(repo, nil)

	w, err := svc.CreateWorkflow(context.Background(), ownerInstance(), "owner")
	require.NoError(t, err)

	_, err = svc.UpdateWorkflow(context.Background(), w.ID, Principal{UserID: "someone-else", Role: RoleUser}, func(w *graph.Workflow) {
		w.Name = "hijacked"
	})
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.BusinessRule))

	updated, err := svc.UpdateWorkflow(context.Background(), w.ID, Principal{UserID: "owner", Role: RoleUser}, func(w *graph.Workflow) {
		w.Name = "Assemble bookshelf v2"
	})
	require.NoError(t, err)
	assert.Equal(t, "Assemble bookshelf v2", updated.Name)
}

func TestService_PublishTemplate(t *testing.T) {
	repo := newMemRepo()
	svc := New(repo, nil)

	w, err := svc.CreateWorkflow(context.Background(), ownerInstance(), "owner")
	require.NoError(t, err)
	// Publication requires every step without outgoing connections to be an
	// outcome, so link the two steps and mark the second as the outcome.
	w.Connections = append(w.Connections, &graph.Connection{ID: "c1", SourceStepID: w.Steps[0].ID, TargetStepID: w.Steps[1].ID, ConnectionType: graph.ConnSequential, DisplayOrder: 1})
	w.Steps[1].IsOutcome = true
	w.Outcomes = append(w.Outcomes, &graph.Outcome{ID: "o1", WorkflowID: w.ID, Name: "Done", IsDefault: true})
	require.NoError(t, repo.SaveWorkflow(context.Background(), w))

	published, err := svc.PublishTemplate(context.Background(), w.ID, graph.VisibilityPublic, Principal{UserID: "owner", Role: RoleUser})
	require.NoError(t, err)
	assert.True(t, published.IsTemplate)
	assert.Equal(t, graph.StatusPublished, published.Status)
	assert.Equal(t, graph.VisibilityPublic, published.Visibility)
}

func TestService_DeleteWorkflow_BlockedByActiveExecution(t *testing.T) {
	repo := newMemRepo()
	svc := New(repo, nil)

	w, err := svc.CreateWorkflow(context.Background(), ownerInstance(), "owner")
	require.NoError(t, err)

	repo.active[w.ID] = []*repository.Execution{{ID: "exec-1", WorkflowID: w.ID, Status: repository.ExecutionActive}}

	err = svc.DeleteWorkflow(context.Background(), w.ID, Principal{UserID: "owner", Role: RoleUser})
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.BusinessRule))

	repo.active[w.ID] = nil
	err = svc.DeleteWorkflow(context.Background(), w.ID, Principal{UserID: "owner", Role: RoleUser})
	require.NoError(t, err)
}

func TestService_DuplicateWorkflow(t *testing.T) {
	repo := newMemRepo()
	svc := New(repo, nil)

	src := ownerInstance()
	src.Outcomes = append(src.Outcomes, &graph.Outcome{Name: "Done", IsDefault: true})
	created, err := svc.CreateWorkflow(context.Background(), src, "owner")
	require.NoError(t, err)
	created.Connections = append(created.Connections, &graph.Connection{
		SourceStepID: created.Steps[0].ID,
		TargetStepID: created.Steps[1].ID,
	})
	require.NoError(t, repo.SaveWorkflow(context.Background(), created))

	dup, err := svc.DuplicateWorkflow(context.Background(), created.ID, "Assemble bookshelf (copy)", "owner", false)
	require.NoError(t, err)

	assert.NotEqual(t, created.ID, dup.ID)
	assert.Equal(t, "Assemble bookshelf (copy)", dup.Name)
	require.Len(t, dup.Steps, len(created.Steps))
	for i, s := range dup.Steps {
		assert.NotEqual(t, created.Steps[i].ID, s.ID)
		assert.Equal(t, created.Steps[i].Name, s.Name)
		assert.Equal(t, dup.ID, s.WorkflowID)
	}
	require.Len(t, dup.Connections, len(created.Connections))
	assert.Equal(t, dup.Steps[0].ID, dup.Connections[0].SourceStepID)
	assert.Equal(t, dup.Steps[1].ID, dup.Connections[0].TargetStepID)
}

func TestCanReadCanWrite(t *testing.T) {
	w := &graph.Workflow{CreatedBy: "owner", Visibility: graph.VisibilityPrivate}

	assert.True(t, CanRead(w, Principal{UserID: "owner", Role: RoleUser}))
	assert.False(t, CanRead(w, Principal{UserID: "stranger", Role: RoleUser}))
	assert.True(t, CanRead(w, Principal{UserID: "stranger", Role: RoleSuperuser}))

	w.Visibility = graph.VisibilityPublic
	assert.True(t, CanRead(w, Principal{UserID: "stranger", Role: RoleUser}))
	assert.False(t, CanWrite(w, Principal{UserID: "stranger", Role: RoleUser}))
}
