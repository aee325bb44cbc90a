// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package graph implements the workflow graph model (Workflow, Step,
// Connection, Outcome, DecisionOption, StepResource) and its structural
// validation. It is pure and performs no I/O; persistence is the
// repository's concern and runtime routing is the navigator's.
package graph

import "time"

// WorkflowStatus is the lifecycle state of a Workflow definition.
type WorkflowStatus string

const (
	StatusDraft     WorkflowStatus = "draft"
	StatusActive    WorkflowStatus = "active"
	StatusPublished WorkflowStatus = "published"
	StatusArchived  WorkflowStatus = "archived"
)

// Visibility controls who may read a Workflow.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
	VisibilityShared  Visibility = "shared"
	VisibilitySystem  Visibility = "system"
)

// StepType classifies what a Step represents.
type StepType string

const (
	StepInstruction StepType = "instruction"
	StepMaterial    StepType = "material"
	StepTool        StepType = "tool"
	StepTime        StepType = "time"
	StepDecision    StepType = "decision"
	StepOutcome     StepType = "outcome"
)

// ConnectionType classifies the semantics of an edge between two Steps.
type ConnectionType string

const (
	ConnSequential  ConnectionType = "sequential"
	ConnConditional ConnectionType = "conditional"
	ConnDecision    ConnectionType = "decision"
	ConnParallel    ConnectionType = "parallel"
)

// ResourceKind classifies a StepResource.
type ResourceKind string

const (
	ResourceMaterial      ResourceKind = "material"
	ResourceTool          ResourceKind = "tool"
	ResourceDocumentation ResourceKind = "documentation"
)

// Workflow is the static graph authored by a user.
type Workflow struct {
	ID                  string
	Name                string
	Description         string
	Status              WorkflowStatus
	CreatedBy           string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	IsTemplate          bool
	Visibility          Visibility
	Version             int
	HasMultipleOutcomes bool
	EstimatedDuration   *int
	DifficultyLevel     *int
	ProjectID           *string
	ThemeID             *string

	Steps       []*Step
	Connections []*Connection
	Outcomes    []*Outcome
}

// Step is a node in the workflow graph.
type Step struct {
	ID              string
	WorkflowID      string
	Name            string
	Instructions    *string
	DisplayOrder    int
	StepType        StepType
	EstimatedDuration *int
	ParentStepID    *string
	IsMilestone     bool
	IsDecisionPoint bool
	IsOutcome       bool
	ConditionLogic  *string

	Resources       []*StepResource
	DecisionOptions []*DecisionOption
}

// Connection is a directed edge between two Steps with an optional guard
// condition.
type Connection struct {
	ID             string
	SourceStepID   string
	TargetStepID   string
	ConnectionType ConnectionType
	Condition      *string
	DisplayOrder   int
	IsDefault      bool
}

// DecisionOption is one choice available at a decision-point Step.
type DecisionOption struct {
	ID           string
	StepID       string
	OptionText   string
	ResultAction *string
	DisplayOrder int
	IsDefault    bool
}

// StepResource ties a material, tool, or documentation reference to a Step.
type StepResource struct {
	ID              string
	StepID          string
	ResourceKind    ResourceKind
	MaterialID      *string
	ToolID          *string
	DocumentationID *string
	Quantity        *float64
	Unit            *string
	IsOptional      bool
}

// Outcome is a terminal labeling of a completed Execution.
type Outcome struct {
	ID              string
	WorkflowID      string
	Name            string
	DisplayOrder    int
	IsDefault       bool
	SuccessCriteria *string
}

// StepByID returns the Step with the given ID, or nil.
func (w *Workflow) StepByID(id string) *Step {
	for _, s := range w.Steps {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// OutgoingConnections returns w's connections whose source is stepID, in
// arbitrary order (callers needing routing order should sort via
// graphalgo.OrderConnections).
func (w *Workflow) OutgoingConnections(stepID string) []*Connection {
	var out []*Connection
	for _, c := range w.Connections {
		if c.SourceStepID == stepID {
			out = append(out, c)
		}
	}
	return out
}

// IncomingConnections returns w's connections whose target is stepID.
func (w *Workflow) IncomingConnections(stepID string) []*Connection {
	var in []*Connection
	for _, c := range w.Connections {
		if c.TargetStepID == stepID {
			in = append(in, c)
		}
	}
	return in
}
