// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package graph

import (
	"strings"

	"workflowforge/pkg/errs"
)

const maxNameLen = 255

// NewWorkflow constructs and locally validates a draft Workflow at Version
// 1. ID is left empty for the caller to assign (catalog.Service mints one
// on create); CreatedAt and UpdatedAt are left zero and filled in when the
// workflow is saved.
func NewWorkflow(name, description, createdBy string) (*Workflow, error) {
	var fields []errs.FieldError
	if strings.TrimSpace(name) == "" {
		fields = append(fields, errs.FieldError{Path: "name", Message: "must be non-empty"})
	}
	if len(name) > maxNameLen {
		fields = append(fields, errs.FieldError{Path: "name", Message: "exceeds maximum length"})
	}
	if strings.TrimSpace(createdBy) == "" {
		fields = append(fields, errs.FieldError{Path: "createdBy", Message: "must be non-empty"})
	}
	if len(fields) > 0 {
		return nil, errs.WithFields(errs.Validation, "invalid workflow", fields...)
	}
	return &Workflow{
		Name:        name,
		Description: description,
		Status:      StatusDraft,
		CreatedBy:   createdBy,
		Visibility:  VisibilityPrivate,
		Version:     1,
	}, nil
}

// NewStep constructs and locally validates a Step within workflowID.
func NewStep(workflowID, name string, displayOrder int, stepType StepType) (*Step, error) {
	var fields []errs.FieldError
	if strings.TrimSpace(workflowID) == "" {
		fields = append(fields, errs.FieldError{Path: "workflowId", Message: "must be non-empty"})
	}
	if strings.TrimSpace(name) == "" {
		fields = append(fields, errs.FieldError{Path: "name", Message: "must be non-empty"})
	}
	if displayOrder <= 0 {
		fields = append(fields, errs.FieldError{Path: "displayOrder", Message: "must be a positive integer"})
	}
	if !validStepType(stepType) {
		fields = append(fields, errs.FieldError{Path: "stepType", Message: "unknown step type"})
	}
	if len(fields) > 0 {
		return nil, errs.WithFields(errs.Validation, "invalid step", fields...)
	}
	return &Step{
		WorkflowID:   workflowID,
		Name:         name,
		DisplayOrder: displayOrder,
		StepType:     stepType,
	}, nil
}

// NewConnection constructs and locally validates a Connection. It enforces
// I2 (no self-loops) at construction time, matching end-to-end scenario 3.
func NewConnection(sourceStepID, targetStepID string, connType ConnectionType, displayOrder int) (*Connection, error) {
	var fields []errs.FieldError
	if strings.TrimSpace(sourceStepID) == "" {
		fields = append(fields, errs.FieldError{Path: "sourceStepId", Message: "must be non-empty"})
	}
	if strings.TrimSpace(targetStepID) == "" {
		fields = append(fields, errs.FieldError{Path: "targetStepId", Message: "must be non-empty"})
	}
	if sourceStepID != "" && sourceStepID == targetStepID {
		fields = append(fields, errs.FieldError{Path: "targetStepId", Message: "connection is a self-loop"})
	}
	if !validConnectionType(connType) {
		fields = append(fields, errs.FieldError{Path: "connectionType", Message: "unknown connection type"})
	}
	if len(fields) > 0 {
		return nil, errs.WithFields(errs.Validation, "invalid connection", fields...)
	}
	return &Connection{
		SourceStepID:   sourceStepID,
		TargetStepID:   targetStepID,
		ConnectionType: connType,
		DisplayOrder:   displayOrder,
	}, nil
}

// NewDecisionOption constructs and locally validates a DecisionOption.
func NewDecisionOption(stepID, optionText string, displayOrder int) (*DecisionOption, error) {
	var fields []errs.FieldError
	if strings.TrimSpace(stepID) == "" {
		fields = append(fields, errs.FieldError{Path: "stepId", Message: "must be non-empty"})
	}
	if strings.TrimSpace(optionText) == "" {
		fields = append(fields, errs.FieldError{Path: "optionText", Message: "must be non-empty"})
	}
	if len(fields) > 0 {
		return nil, errs.WithFields(errs.Validation, "invalid decision option", fields...)
	}
	return &DecisionOption{
		StepID:       stepID,
		OptionText:   optionText,
		DisplayOrder: displayOrder,
	}, nil
}

// NewStepResource constructs and locally validates a StepResource, enforcing
// that exactly one of MaterialID/ToolID/DocumentationID is set, matching its
// ResourceKind, and that Quantity is non-negative when set for a material.
func NewStepResource(stepID string, kind ResourceKind, refID string, quantity *float64) (*StepResource, error) {
	var fields []errs.FieldError
	if strings.TrimSpace(stepID) == "" {
		fields = append(fields, errs.FieldError{Path: "stepId", Message: "must be non-empty"})
	}
	if strings.TrimSpace(refID) == "" {
		fields = append(fields, errs.FieldError{Path: "referenceId", Message: "must be non-empty"})
	}
	if quantity != nil && *quantity < 0 {
		fields = append(fields, errs.FieldError{Path: "quantity", Message: "must be >= 0"})
	}

	res := &StepResource{StepID: stepID, ResourceKind: kind, Quantity: quantity}
	switch kind {
	case ResourceMaterial:
		res.MaterialID = &refID
	case ResourceTool:
		res.ToolID = &refID
	case ResourceDocumentation:
		res.DocumentationID = &refID
	default:
		fields = append(fields, errs.FieldError{Path: "resourceKind", Message: "unknown resource kind"})
	}

	if len(fields) > 0 {
		return nil, errs.WithFields(errs.Validation, "invalid step resource", fields...)
	}
	return res, nil
}

// NewOutcome constructs and locally validates an Outcome.
func NewOutcome(workflowID, name string, displayOrder int) (*Outcome, error) {
	var fields []errs.FieldError
	if strings.TrimSpace(workflowID) == "" {
		fields = append(fields, errs.FieldError{Path: "workflowId", Message: "must be non-empty"})
	}
	if strings.TrimSpace(name) == "" {
		fields = append(fields, errs.FieldError{Path: "name", Message: "must be non-empty"})
	}
	if len(fields) > 0 {
		return nil, errs.WithFields(errs.Validation, "invalid outcome", fields...)
	}
	return &Outcome{WorkflowID: workflowID, Name: name, DisplayOrder: displayOrder}, nil
}

func validStepType(t StepType) bool {
	switch t {
	case StepInstruction, StepMaterial, StepTool, StepTime, StepDecision, StepOutcome:
		return true
	default:
		return false
	}
}

func validConnectionType(t ConnectionType) bool {
	switch t {
	case ConnSequential, ConnConditional, ConnDecision, ConnParallel:
		return true
	default:
		return false
	}
}
