// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package codec implements the canonical JSON import/export envelope (C8):
// a stable, human-authorable representation of a Workflow graph keyed by
// per-step localId rather than storage identifiers, so a workflow can be
// exported, hand-edited, and re-imported without carrying database state
// along with it.
package codec

import "workflowforge/pkg/graph"

// FormatVersion is the envelope schema version this package reads and
// writes.
const FormatVersion = "1.0"

// Envelope is the root of the canonical export/import document (§4.8).
type Envelope struct {
	PresetInfo        PresetInfo        `json:"presetInfo"`
	Workflow          WorkflowDoc       `json:"workflow"`
	RequiredResources RequiredResources `json:"requiredResources"`
	Metadata          Metadata          `json:"metadata"`
}

// PresetInfo is descriptive metadata carried alongside the graph, useful
// for template catalogs and not itself validated against graph.Workflow.
type PresetInfo struct {
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Difficulty      *int     `json:"difficulty,omitempty"`
	EstimatedTime   *int     `json:"estimatedTime,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Category        string   `json:"category,omitempty"`
}

// WorkflowDoc is the graph body, addressed by localId instead of storage
// identifiers.
type WorkflowDoc struct {
	Name                string         `json:"name"`
	Description         string         `json:"description,omitempty"`
	HasMultipleOutcomes bool           `json:"hasMultipleOutcomes"`
	EstimatedDuration   *int           `json:"estimatedDuration,omitempty"`
	DifficultyLevel     *int           `json:"difficultyLevel,omitempty"`
	Steps               []StepDoc      `json:"steps"`
	Outcomes            []OutcomeDoc   `json:"outcomes"`
	Connections         []ConnDoc      `json:"connections"`
}

// StepDoc is one Step keyed by a stable localId equal to its pre-export
// storage ID on export (§4.8).
type StepDoc struct {
	LocalID           string             `json:"localId"`
	Name              string             `json:"name"`
	Instructions      *string            `json:"instructions,omitempty"`
	DisplayOrder      int                `json:"displayOrder"`
	StepType          graph.StepType     `json:"stepType"`
	EstimatedDuration *int               `json:"estimatedDuration,omitempty"`
	ParentLocalID     *string            `json:"parentLocalId,omitempty"`
	IsMilestone       bool               `json:"isMilestone,omitempty"`
	IsDecisionPoint   bool               `json:"isDecisionPoint,omitempty"`
	IsOutcome         bool               `json:"isOutcome,omitempty"`
	ConditionLogic    *string            `json:"conditionLogic,omitempty"`
	Resources         []ResourceDoc      `json:"resources,omitempty"`
	DecisionOptions   []DecisionOptDoc   `json:"decisionOptions,omitempty"`
}

// ResourceDoc is one StepResource. MaterialName/ToolName are used to
// resolve an ID via the Oracle on import when ID is absent (§4.8).
type ResourceDoc struct {
	ResourceKind    graph.ResourceKind `json:"resourceKind"`
	MaterialID      *string            `json:"materialId,omitempty"`
	MaterialName    string             `json:"materialName,omitempty"`
	ToolID          *string            `json:"toolId,omitempty"`
	ToolName        string             `json:"toolName,omitempty"`
	DocumentationID *string            `json:"documentationId,omitempty"`
	Quantity        *float64           `json:"quantity,omitempty"`
	Unit            *string            `json:"unit,omitempty"`
	IsOptional      bool               `json:"isOptional,omitempty"`
}

// DecisionOptDoc is one DecisionOption.
type DecisionOptDoc struct {
	OptionText   string  `json:"optionText"`
	ResultAction *string `json:"resultAction,omitempty"`
	DisplayOrder int     `json:"displayOrder"`
	IsDefault    bool    `json:"isDefault,omitempty"`
}

// OutcomeDoc is one Outcome.
type OutcomeDoc struct {
	Name            string  `json:"name"`
	DisplayOrder    int     `json:"displayOrder"`
	IsDefault       bool    `json:"isDefault,omitempty"`
	SuccessCriteria *string `json:"successCriteria,omitempty"`
}

// ConnDoc is one Connection addressed by localId (§4.8).
type ConnDoc struct {
	SourceLocalID  string                `json:"sourceLocalId"`
	TargetLocalID  string                `json:"targetLocalId"`
	ConnectionType graph.ConnectionType  `json:"connectionType"`
	Condition      *string               `json:"condition,omitempty"`
	DisplayOrder   int                   `json:"displayOrder"`
	IsDefault      bool                  `json:"isDefault,omitempty"`
}

// RequiredResources summarizes the materials/tools/documentation the
// workflow references, for catalog display without walking every step.
type RequiredResources struct {
	Materials     []string `json:"materials,omitempty"`
	Tools         []string `json:"tools,omitempty"`
	Documentation []string `json:"documentation,omitempty"`
}

// Metadata carries envelope provenance.
type Metadata struct {
	FormatVersion     string  `json:"formatVersion"`
	ExportedAt        string  `json:"exportedAt"`
	OriginalWorkflowID *string `json:"originalWorkflowId,omitempty"`
}
