// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package catalog implements the Workflow-definition half of the Public
// API surface (§6): CreateWorkflow, UpdateWorkflow, PublishTemplate,
// DuplicateWorkflow, SearchWorkflows, DeleteWorkflow, plus the permission
// model that gates them. It composes the pure Graph Model (C1) with the
// Repository contract (C2); the execution-side operations of §6 live in
// pkg/engine and pkg/navigator.
package catalog

import (
	"context"

	"github.com/google/uuid"

	"workflowforge/pkg/errs"
	"workflowforge/pkg/graph"
	"workflowforge/pkg/logging"
	"workflowforge/pkg/repository"
)

// Role is a caller's coarse permission level (§6).
type Role string

const (
	RoleUser      Role = "user"
	RoleSuperuser Role = "superuser"
)

// Principal identifies the caller of a catalog operation.
type Principal struct {
	UserID string
	Role   Role
}

func (p Principal) isSuperuser() bool { return p.Role == RoleSuperuser }

// CanRead reports whether p may read w, per §6: creator, public/system
// visibility, or superuser.
func CanRead(w *graph.Workflow, p Principal) bool {
	if p.isSuperuser() || w.CreatedBy == p.UserID {
		return true
	}
	switch w.Visibility {
	case graph.VisibilityPublic, graph.VisibilitySystem:
		return true
	default:
		return false
	}
}

// CanWrite reports whether p may write or delete w: creator or superuser.
func CanWrite(w *graph.Workflow, p Principal) bool {
	return p.isSuperuser() || w.CreatedBy == p.UserID
}

// Service implements the Workflow CRUD surface of §6.
type Service struct {
	repo  repository.Repository
	log   logging.Logger
	newID func() string
}

// New builds a Service.
func New(repo repository.Repository, log logging.Logger) *Service {
	if log == nil {
		log = logging.NewLogger(false)
	}
	return &Service{repo: repo, log: log, newID: uuid.NewString}
}

// CreateWorkflow validates def's local invariants and persists it as a
// draft owned by userID (§6). IDs for the workflow and every owned child
// are minted here so the caller never has to pre-assign them; Status is
// forced to draft and CreatedBy to userID regardless of what def carries.
func (s *Service) CreateWorkflow(ctx context.Context, def *graph.Workflow, userID string) (*graph.Workflow, error) {
	def.ID = s.newID()
	def.CreatedBy = userID
	def.Status = graph.StatusDraft
	if def.Visibility == "" {
		def.Visibility = graph.VisibilityPrivate
	}
	def.Version = 1
	assignChildIDs(def, s.newID)

	if report := graph.Validate(def, false); !report.OK() {
		return nil, errs.WithFields(errs.Validation, "workflow failed structural validation", report.Errors...)
	}

	if err := s.repo.SaveWorkflow(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

// UpdateWorkflow loads id, applies patch to the in-memory graph, validates,
// and persists the result. patch may add/remove/modify Steps, Connections,
// Resources, DecisionOptions, and Outcomes directly on the loaded Workflow;
// any newly added child without an ID is assigned one before validation.
func (s *Service) UpdateWorkflow(ctx context.Context, id string, principal Principal, patch func(*graph.Workflow)) (*graph.Workflow, error) {
	w, err := s.repo.LoadWorkflow(ctx, id, repository.FullWorkflow())
	if err != nil {
		return nil, err
	}
	if !CanWrite(w, principal) {
		return nil, errs.Newf(errs.BusinessRule, "principal %q may not modify workflow %q", principal.UserID, id)
	}

	patch(w)
	assignChildIDs(w, s.newID)

	if report := graph.Validate(w, false); !report.OK() {
		return nil, errs.WithFields(errs.Validation, "workflow failed structural validation", report.Errors...)
	}

	if err := s.repo.SaveWorkflow(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// PublishTemplate checks I3/I4 (§4.1, B2) and, if the graph is
// publication-ready, sets isTemplate=true and status=published with the
// given visibility (§6).
func (s *Service) PublishTemplate(ctx context.Context, id string, visibility graph.Visibility, principal Principal) (*graph.Workflow, error) {
	w, err := s.repo.LoadWorkflow(ctx, id, repository.FullWorkflow())
	if err != nil {
		return nil, err
	}
	if !CanWrite(w, principal) {
		return nil, errs.Newf(errs.BusinessRule, "principal %q may not publish workflow %q", principal.UserID, id)
	}

	report := graph.Validate(w, true)
	if !report.OK() {
		return nil, errs.WithFields(errs.Validation, "workflow is not publication-ready", report.Errors...)
	}

	w.IsTemplate = true
	w.Status = graph.StatusPublished
	w.Visibility = visibility

	if err := s.repo.SaveWorkflow(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// SearchWorkflows delegates to the repository's paginated query. Results
// are not filtered by visibility or by principal (WorkflowFilter carries
// neither); catalog only forbids reading the loaded detail of a workflow
// the principal cannot see, in LoadWorkflow.
func (s *Service) SearchWorkflows(ctx context.Context, filter repository.WorkflowFilter, page repository.Page) (repository.SearchResult, error) {
	return s.repo.SearchWorkflows(ctx, filter, page)
}

// LoadWorkflow loads id and enforces CanRead before returning it.
func (s *Service) LoadWorkflow(ctx context.Context, id string, principal Principal, opts repository.WorkflowLoadOptions) (*graph.Workflow, error) {
	w, err := s.repo.LoadWorkflow(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	if !CanRead(w, principal) {
		return nil, errs.Newf(errs.BusinessRule, "principal %q may not read workflow %q", principal.UserID, id)
	}
	return w, nil
}

// DeleteWorkflow refuses while any non-terminal Execution references id
// (B1), then deletes it (§6).
func (s *Service) DeleteWorkflow(ctx context.Context, id string, principal Principal) error {
	w, err := s.repo.LoadWorkflow(ctx, id, repository.WorkflowLoadOptions{})
	if err != nil {
		return err
	}
	if !CanWrite(w, principal) {
		return errs.Newf(errs.BusinessRule, "principal %q may not delete workflow %q", principal.UserID, id)
	}

	active, err := s.repo.ListActiveExecutions(ctx, repository.ActiveExecutionFilter{WorkflowID: &id})
	if err != nil {
		return err
	}
	if len(active) > 0 {
		return errs.Newf(errs.BusinessRule, "workflow %q has %d non-terminal execution(s) and cannot be deleted", id, len(active))
	}

	return s.repo.DeleteWorkflow(ctx, id)
}

// assignChildIDs mints an ID for w itself (if empty) and for every owned
// Step/Connection/Outcome/Resource/DecisionOption lacking one, since
// Connections and Resources reference their owner by ID before the first
// save (§9: identifiers are opaque, minted client-side here with uuid
// rather than left for the repository to assign mid-graph).
func assignChildIDs(w *graph.Workflow, newID func() string) {
	if w.ID == "" {
		w.ID = newID()
	}
	for _, s := range w.Steps {
		if s.ID == "" {
			s.ID = newID()
		}
		s.WorkflowID = w.ID
		for _, r := range s.Resources {
			if r.ID == "" {
				r.ID = newID()
			}
			r.StepID = s.ID
		}
		for _, d := range s.DecisionOptions {
			if d.ID == "" {
				d.ID = newID()
			}
			d.StepID = s.ID
		}
	}
	for _, c := range w.Connections {
		if c.ID == "" {
			c.ID = newID()
		}
	}
	for _, o := range w.Outcomes {
		if o.ID == "" {
			o.ID = newID()
		}
		o.WorkflowID = w.ID
	}
}
