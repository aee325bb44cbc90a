// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"workflowforge/pkg/errs"
	"workflowforge/pkg/graph"
	"workflowforge/pkg/repository"
)

// queries implements repository.Querier against any dbtx (pool or tx).
type queries struct {
	db dbtx
}

func (q *queries) LoadWorkflow(ctx context.Context, id string, opts repository.WorkflowLoadOptions) (*graph.Workflow, error) {
	w := &graph.Workflow{}
	var desc string
	var estimatedDuration, difficultyLevel *int
	var projectID, themeID *string

	err := q.db.QueryRow(ctx, `
		SELECT id, name, description, status, created_by, created_at, updated_at,
		       is_template, visibility, version, has_multiple_outcomes,
		       estimated_duration, difficulty_level, project_id, theme_id
		FROM workflows WHERE id = $1`, id,
	).Scan(&w.ID, &w.Name, &desc, &w.Status, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt,
		&w.IsTemplate, &w.Visibility, &w.Version, &w.HasMultipleOutcomes,
		&estimatedDuration, &difficultyLevel, &projectID, &themeID)
	if err != nil {
		return nil, errs.Newf(errs.NotFound, "workflow %q: %v", id, err)
	}
	w.Description = desc
	w.EstimatedDuration = estimatedDuration
	w.DifficultyLevel = difficultyLevel
	w.ProjectID = projectID
	w.ThemeID = themeID

	if opts.IncludeSteps {
		if err := q.loadSteps(ctx, w); err != nil {
			return nil, err
		}
	}
	if opts.IncludeConnections {
		if err := q.loadConnections(ctx, w); err != nil {
			return nil, err
		}
	}
	if opts.IncludeOutcomes {
		if err := q.loadOutcomes(ctx, w); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (q *queries) loadSteps(ctx context.Context, w *graph.Workflow) error {
	rows, err := q.db.Query(ctx, `
		SELECT id, workflow_id, name, instructions, display_order, step_type,
		       estimated_duration, parent_step_id, is_milestone, is_decision_point,
		       is_outcome, condition_logic
		FROM steps WHERE workflow_id = $1 ORDER BY display_order`, w.ID)
	if err != nil {
		return fmt.Errorf("postgres: load steps: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*graph.Step)
	for rows.Next() {
		s := &graph.Step{}
		if err := rows.Scan(&s.ID, &s.WorkflowID, &s.Name, &s.Instructions, &s.DisplayOrder,
			&s.StepType, &s.EstimatedDuration, &s.ParentStepID, &s.IsMilestone,
			&s.IsDecisionPoint, &s.IsOutcome, &s.ConditionLogic); err != nil {
			return fmt.Errorf("postgres: scan step: %w", err)
		}
		w.Steps = append(w.Steps, s)
		byID[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(byID) == 0 {
		return nil
	}
	if err := q.loadStepResources(ctx, byID); err != nil {
		return err
	}
	return q.loadDecisionOptions(ctx, byID)
}

func (q *queries) loadStepResources(ctx context.Context, byID map[string]*graph.Step) error {
	ids := stepIDsOf(byID)
	rows, err := q.db.Query(ctx, `
		SELECT id, step_id, resource_kind, material_id, tool_id, documentation_id,
		       quantity, unit, is_optional
		FROM step_resources WHERE step_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("postgres: load step resources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		r := &graph.StepResource{}
		if err := rows.Scan(&r.ID, &r.StepID, &r.ResourceKind, &r.MaterialID, &r.ToolID,
			&r.DocumentationID, &r.Quantity, &r.Unit, &r.IsOptional); err != nil {
			return fmt.Errorf("postgres: scan step resource: %w", err)
		}
		if s, ok := byID[r.StepID]; ok {
			s.Resources = append(s.Resources, r)
		}
	}
	return rows.Err()
}

func (q *queries) loadDecisionOptions(ctx context.Context, byID map[string]*graph.Step) error {
	ids := stepIDsOf(byID)
	rows, err := q.db.Query(ctx, `
		SELECT id, step_id, option_text, result_action, display_order, is_default
		FROM decision_options WHERE step_id = ANY($1) ORDER BY display_order`, ids)
	if err != nil {
		return fmt.Errorf("postgres: load decision options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		d := &graph.DecisionOption{}
		if err := rows.Scan(&d.ID, &d.StepID, &d.OptionText, &d.ResultAction, &d.DisplayOrder, &d.IsDefault); err != nil {
			return fmt.Errorf("postgres: scan decision option: %w", err)
		}
		if s, ok := byID[d.StepID]; ok {
			s.DecisionOptions = append(s.DecisionOptions, d)
		}
	}
	return rows.Err()
}

func stepIDsOf(byID map[string]*graph.Step) []string {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	return ids
}

func (q *queries) loadConnections(ctx context.Context, w *graph.Workflow) error {
	rows, err := q.db.Query(ctx, `
		SELECT id, source_step_id, target_step_id, connection_type, condition,
		       display_order, is_default
		FROM connections WHERE workflow_id = $1 ORDER BY source_step_id, display_order`, w.ID)
	if err != nil {
		return fmt.Errorf("postgres: load connections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c := &graph.Connection{}
		if err := rows.Scan(&c.ID, &c.SourceStepID, &c.TargetStepID, &c.ConnectionType,
			&c.Condition, &c.DisplayOrder, &c.IsDefault); err != nil {
			return fmt.Errorf("postgres: scan connection: %w", err)
		}
		w.Connections = append(w.Connections, c)
	}
	return rows.Err()
}

func (q *queries) loadOutcomes(ctx context.Context, w *graph.Workflow) error {
	rows, err := q.db.Query(ctx, `
		SELECT id, workflow_id, name, display_order, is_default, success_criteria
		FROM outcomes WHERE workflow_id = $1 ORDER BY display_order`, w.ID)
	if err != nil {
		return fmt.Errorf("postgres: load outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		o := &graph.Outcome{}
		if err := rows.Scan(&o.ID, &o.WorkflowID, &o.Name, &o.DisplayOrder, &o.IsDefault, &o.SuccessCriteria); err != nil {
			return fmt.Errorf("postgres: scan outcome: %w", err)
		}
		w.Outcomes = append(w.Outcomes, o)
	}
	return rows.Err()
}

// SaveWorkflow upserts w and replaces every owned child collection present
// on w (Steps, Connections, Outcomes, and their nested Resources/
// DecisionOptions). Call it through Transaction when atomicity with other
// writes in the same operation matters; SaveWorkflow itself issues no
// transaction of its own so it composes inside one.
func (q *queries) SaveWorkflow(ctx context.Context, w *graph.Workflow) error {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}

	_, err := q.db.Exec(ctx, `
		INSERT INTO workflows (id, name, description, status, created_by, created_at, updated_at,
		                        is_template, visibility, version, has_multiple_outcomes,
		                        estimated_duration, difficulty_level, project_id, theme_id)
		VALUES ($1,$2,$3,$4,$5,$6, now(), $7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			name=$2, description=$3, status=$4, is_template=$7, visibility=$8,
			version=$9, has_multiple_outcomes=$10, estimated_duration=$11,
			difficulty_level=$12, project_id=$13, theme_id=$14, updated_at=now()`,
		w.ID, w.Name, w.Description, w.Status, w.CreatedBy, w.CreatedAt,
		w.IsTemplate, w.Visibility, w.Version, w.HasMultipleOutcomes,
		w.EstimatedDuration, w.DifficultyLevel, w.ProjectID, w.ThemeID)
	if err != nil {
		return fmt.Errorf("postgres: save workflow: %w", err)
	}

	if _, err := q.db.Exec(ctx, `DELETE FROM steps WHERE workflow_id = $1`, w.ID); err != nil {
		return fmt.Errorf("postgres: clear steps: %w", err)
	}
	if _, err := q.db.Exec(ctx, `DELETE FROM connections WHERE workflow_id = $1`, w.ID); err != nil {
		return fmt.Errorf("postgres: clear connections: %w", err)
	}
	if _, err := q.db.Exec(ctx, `DELETE FROM outcomes WHERE workflow_id = $1`, w.ID); err != nil {
		return fmt.Errorf("postgres: clear outcomes: %w", err)
	}

	for _, s := range w.Steps {
		if _, err := q.db.Exec(ctx, `
			INSERT INTO steps (id, workflow_id, name, instructions, display_order, step_type,
			                    estimated_duration, parent_step_id, is_milestone, is_decision_point,
			                    is_outcome, condition_logic)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			s.ID, w.ID, s.Name, s.Instructions, s.DisplayOrder, s.StepType,
			s.EstimatedDuration, s.ParentStepID, s.IsMilestone, s.IsDecisionPoint,
			s.IsOutcome, s.ConditionLogic); err != nil {
			return fmt.Errorf("postgres: insert step %q: %w", s.ID, err)
		}
		for _, r := range s.Resources {
			if _, err := q.db.Exec(ctx, `
				INSERT INTO step_resources (id, step_id, resource_kind, material_id, tool_id,
				                             documentation_id, quantity, unit, is_optional)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
				r.ID, s.ID, r.ResourceKind, r.MaterialID, r.ToolID, r.DocumentationID,
				r.Quantity, r.Unit, r.IsOptional); err != nil {
				return fmt.Errorf("postgres: insert step resource %q: %w", r.ID, err)
			}
		}
		for _, d := range s.DecisionOptions {
			if _, err := q.db.Exec(ctx, `
				INSERT INTO decision_options (id, step_id, option_text, result_action, display_order, is_default)
				VALUES ($1,$2,$3,$4,$5,$6)`,
				d.ID, s.ID, d.OptionText, d.ResultAction, d.DisplayOrder, d.IsDefault); err != nil {
				return fmt.Errorf("postgres: insert decision option %q: %w", d.ID, err)
			}
		}
	}

	for _, c := range w.Connections {
		if _, err := q.db.Exec(ctx, `
			INSERT INTO connections (id, workflow_id, source_step_id, target_step_id,
			                          connection_type, condition, display_order, is_default)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			c.ID, w.ID, c.SourceStepID, c.TargetStepID, c.ConnectionType, c.Condition,
			c.DisplayOrder, c.IsDefault); err != nil {
			return fmt.Errorf("postgres: insert connection %q: %w", c.ID, err)
		}
	}

	for _, o := range w.Outcomes {
		if _, err := q.db.Exec(ctx, `
			INSERT INTO outcomes (id, workflow_id, name, display_order, is_default, success_criteria)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			o.ID, w.ID, o.Name, o.DisplayOrder, o.IsDefault, o.SuccessCriteria); err != nil {
			return fmt.Errorf("postgres: insert outcome %q: %w", o.ID, err)
		}
	}

	return nil
}

func (q *queries) SearchWorkflows(ctx context.Context, filter repository.WorkflowFilter, page repository.Page) (repository.SearchResult, error) {
	var where []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.NameContains != "" {
		where = append(where, "name ILIKE "+arg("%"+filter.NameContains+"%"))
	}
	if filter.Status != nil {
		where = append(where, "status = "+arg(*filter.Status))
	}
	if filter.IsTemplate != nil {
		where = append(where, "is_template = "+arg(*filter.IsTemplate))
	}
	if filter.Difficulty != nil {
		where = append(where, "difficulty_level = "+arg(*filter.Difficulty))
	}
	if filter.CreatedBy != nil {
		where = append(where, "created_by = "+arg(*filter.CreatedBy))
	}
	if filter.ProjectID != nil {
		where = append(where, "project_id = "+arg(*filter.ProjectID))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	orderBy := "updated_at"
	switch filter.OrderBy {
	case "name":
		orderBy = "name"
	case "createdAt":
		orderBy = "created_at"
	}
	direction := "ASC"
	if filter.Descending {
		direction = "DESC"
	}

	var total int
	countSQL := "SELECT count(*) FROM workflows " + whereClause
	if err := q.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return repository.SearchResult{}, fmt.Errorf("postgres: count workflows: %w", err)
	}

	limitArg := arg(page.Limit)
	offsetArg := arg(page.Offset)
	listSQL := fmt.Sprintf(`
		SELECT id, name, description, status, created_by, created_at, updated_at,
		       is_template, visibility, version, has_multiple_outcomes,
		       estimated_duration, difficulty_level, project_id, theme_id
		FROM workflows %s ORDER BY %s %s LIMIT %s OFFSET %s`,
		whereClause, orderBy, direction, limitArg, offsetArg)

	rows, err := q.db.Query(ctx, listSQL, args...)
	if err != nil {
		return repository.SearchResult{}, fmt.Errorf("postgres: search workflows: %w", err)
	}
	defer rows.Close()

	var items []*graph.Workflow
	for rows.Next() {
		w := &graph.Workflow{}
		if err := rows.Scan(&w.ID, &w.Name, &w.Description, &w.Status, &w.CreatedBy, &w.CreatedAt,
			&w.UpdatedAt, &w.IsTemplate, &w.Visibility, &w.Version, &w.HasMultipleOutcomes,
			&w.EstimatedDuration, &w.DifficultyLevel, &w.ProjectID, &w.ThemeID); err != nil {
			return repository.SearchResult{}, fmt.Errorf("postgres: scan workflow: %w", err)
		}
		items = append(items, w)
	}
	if err := rows.Err(); err != nil {
		return repository.SearchResult{}, err
	}

	return repository.SearchResult{Items: items, Total: total}, nil
}

func (q *queries) DeleteWorkflow(ctx context.Context, id string) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM workflows WHERE id = $1`, id); err != nil {
		return fmt.Errorf("postgres: delete workflow: %w", err)
	}
	return nil
}
