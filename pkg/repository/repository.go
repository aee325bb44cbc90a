// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package repository defines the transactional persistence contract (C2)
// for workflow definitions and their executions, plus the execution-side
// entities (Execution, StepExecution, NavigationEvent) that are not part of
// the static graph model. internal/store/postgres provides the pgx-backed
// implementation; the engine, navigator, and codec depend only on this
// interface.
package repository

import (
	"context"
	"time"

	"workflowforge/pkg/graph"
	"workflowforge/pkg/value"
)

// ExecutionStatus is the lifecycle state of an Execution (§4.5.1).
type ExecutionStatus string

const (
	ExecutionActive    ExecutionStatus = "active"
	ExecutionPaused    ExecutionStatus = "paused"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionCancelled ExecutionStatus = "cancelled"
	ExecutionFailed    ExecutionStatus = "failed"
)

// Terminal reports whether the status permits no further state changes (I6).
func (s ExecutionStatus) Terminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionCancelled, ExecutionFailed:
		return true
	default:
		return false
	}
}

// StepExecutionStatus is the lifecycle state of a StepExecution.
type StepExecutionStatus string

const (
	StepExecReady     StepExecutionStatus = "ready"
	StepExecActive    StepExecutionStatus = "active"
	StepExecCompleted StepExecutionStatus = "completed"
	StepExecSkipped   StepExecutionStatus = "skipped"
	StepExecFailed    StepExecutionStatus = "failed"
)

// ActionType classifies a NavigationEvent.
type ActionType string

const (
	ActionNavigateTo        ActionType = "navigate_to"
	ActionStarted           ActionType = "started"
	ActionCompleted         ActionType = "completed"
	ActionDecisionMade      ActionType = "decision_made"
	ActionPaused            ActionType = "paused"
	ActionResumed           ActionType = "resumed"
	ActionCancelled         ActionType = "cancelled"
	ActionSkipped           ActionType = "skipped"
	ActionWorkflowCompleted ActionType = "workflow_completed"
)

// Execution is a runtime instance of a Workflow being navigated by a user.
type Execution struct {
	ID                   string
	WorkflowID           string
	StartedBy            string
	Status               ExecutionStatus
	StartedAt            time.Time
	CompletedAt          *time.Time
	SelectedOutcomeID    *string
	CurrentStepID        *string
	ExecutionData        value.Map
	TotalDurationMinutes *int

	// Version is the optimistic-concurrency row version (§4.2, §5): the
	// repository increments it on every UpdateExecution and rejects a
	// write whose Version does not match the stored row with
	// errs.Conflict.
	Version int
}

// StepExecution tracks one Step's progress within an Execution.
type StepExecution struct {
	ID                    string
	ExecutionID           string
	StepID                string
	Status                StepExecutionStatus
	StartedAt             *time.Time
	CompletedAt           *time.Time
	ActualDurationMinutes *int
	StepData              value.Map
}

// NavigationEvent is an append-only record of a state change observed
// during an Execution.
type NavigationEvent struct {
	ID          string
	ExecutionID string
	StepID      *string
	ActionType  ActionType
	ActionData  value.Map
	Timestamp   time.Time
}

// WorkflowLoadOptions controls which owned collections LoadWorkflow eagerly
// populates.
type WorkflowLoadOptions struct {
	IncludeSteps       bool
	IncludeConnections bool
	IncludeResources   bool
	IncludeOutcomes    bool
}

// FullWorkflow is a convenience WorkflowLoadOptions that loads every owned
// collection, the shape C1's Validate and the codec both need.
func FullWorkflow() WorkflowLoadOptions {
	return WorkflowLoadOptions{IncludeSteps: true, IncludeConnections: true, IncludeResources: true, IncludeOutcomes: true}
}

// WorkflowFilter narrows SearchWorkflows results.
type WorkflowFilter struct {
	NameContains string
	Status       *graph.WorkflowStatus
	IsTemplate   *bool
	Difficulty   *int
	CreatedBy    *string
	ProjectID    *string
	OrderBy      string // "name", "createdAt", "updatedAt"; default "updatedAt"
	Descending   bool
}

// Page bounds a paginated query.
type Page struct {
	Offset int
	Limit  int
}

// SearchResult is the paginated result of SearchWorkflows.
type SearchResult struct {
	Items []*graph.Workflow
	Total int
}

// ExecutionLoadOptions controls how much of an Execution's owned state
// LoadExecution eagerly populates.
type ExecutionLoadOptions struct {
	IncludeStepExecutions  bool
	RecentNavigationEvents int // 0 means none; negative means unbounded
}

// ActiveExecutionFilter narrows ListActiveExecutions.
type ActiveExecutionFilter struct {
	WorkflowID *string
	StartedBy  *string
}

// ExecutionStatistics aggregates Execution history for a Workflow.
type ExecutionStatistics struct {
	WorkflowID          string
	Count               int
	Completions         int
	MeanDurationMinutes float64
	TopOutcomeID        *string
}

// Querier is the read/write surface both the top-level Repository and a
// transaction scope (Tx) expose; every state-changing engine operation
// calls these methods through a Tx obtained from Transaction.
type Querier interface {
	LoadWorkflow(ctx context.Context, id string, opts WorkflowLoadOptions) (*graph.Workflow, error)
	SaveWorkflow(ctx context.Context, w *graph.Workflow) error
	SearchWorkflows(ctx context.Context, filter WorkflowFilter, page Page) (SearchResult, error)
	DeleteWorkflow(ctx context.Context, id string) error

	LoadExecution(ctx context.Context, id string, opts ExecutionLoadOptions) (*Execution, []*StepExecution, []*NavigationEvent, error)
	CreateExecution(ctx context.Context, e *Execution) error
	UpdateExecution(ctx context.Context, e *Execution) error
	UpsertStepExecution(ctx context.Context, se *StepExecution) error
	AppendNavigation(ctx context.Context, ev *NavigationEvent) error
	ListActiveExecutions(ctx context.Context, filter ActiveExecutionFilter) ([]*Execution, error)
	ExecutionStatistics(ctx context.Context, workflowID string) (ExecutionStatistics, error)
}

// Tx is the Querier surface scoped to one transaction.
type Tx interface {
	Querier
}

// Repository is the full transactional persistence contract (C2).
// Transaction runs fn inside one atomic transaction; state-changing engine
// operations must use it so that all mutations and the appended
// NavigationEvent commit together (§4.5.9).
type Repository interface {
	Querier
	Transaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
