// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package condition implements the fixed mini-expression language used for
// Connection guard conditions, Step conditionLogic, and DecisionOption
// resultAction scripts (§4.4). The grammar is deliberately small: literals,
// ctx./last./outcome. lookups, comparison and boolean operators, and a
// sequential ctx.<key> = <literal> assignment form. It is not, and must not
// become, a general-purpose scripting language.
package condition

import (
	"fmt"

	"workflowforge/pkg/errs"
	"workflowforge/pkg/value"
)

// Context supplies the three lookup scopes a condition may reference.
type Context struct {
	Ctx     value.Map // Execution.executionData
	Last    value.Map // the just-completed step's stepData
	Outcome value.Map // e.g. {"id": <outcomeID>} when evaluating outcome.id
}

// Evaluate parses and evaluates src against ctx, returning a boolean result.
// It is pure, total over well-formed input, and returns a *errs.Error with
// code ConditionError on any parse or type failure.
func Evaluate(src string, ctx Context) (bool, error) {
	e, err := parseExpr(src)
	if err != nil {
		return false, errs.Wrap(errs.ConditionError, err, "failed to parse condition")
	}
	v, err := evalExpr(e, ctx)
	if err != nil {
		return false, errs.Wrap(errs.ConditionError, err, "failed to evaluate condition")
	}
	if v.kind != 'b' {
		return false, errs.New(errs.ConditionError, "condition did not evaluate to a boolean")
	}
	return v.b, nil
}

// Apply parses src as a resultAction script and applies its assignments, in
// order, to a clone of base, returning the updated map. It fails closed:
// on any parse error the original map is returned unchanged alongside the
// error, so callers can reject the decision per §4.4/§7.
func Apply(src string, base value.Map) (value.Map, error) {
	assignments, err := parseResultAction(src)
	if err != nil {
		return base, errs.Wrap(errs.ConditionError, err, "failed to parse resultAction")
	}
	out := base.Clone()
	for _, a := range assignments {
		out = out.Set(a.key, toValue(a.val))
	}
	return out, nil
}

func toValue(v exprValue) value.Value {
	switch v.kind {
	case 's':
		return value.String(v.str)
	case 'n':
		return value.Number(v.num)
	case 'b':
		return value.Bool(v.b)
	default:
		return value.Null
	}
}

func lookupValue(ctx Context, scope, key string) value.Value {
	var m value.Map
	switch scope {
	case "ctx":
		m = ctx.Ctx
	case "last":
		m = ctx.Last
	case "outcome":
		m = ctx.Outcome
	}
	v, _ := m.Get(key)
	return v
}

func fromValue(v value.Value) (exprValue, bool) {
	if s, ok := v.AsString(); ok {
		return strVal(s), true
	}
	if n, ok := v.AsNumber(); ok {
		return numVal(n), true
	}
	if b, ok := v.AsBool(); ok {
		return boolVal(b), true
	}
	return exprValue{}, false
}

func evalExpr(e expr, ctx Context) (exprValue, error) {
	switch t := e.(type) {
	case litExpr:
		return t.val, nil
	case lookupExpr:
		v := lookupValue(ctx, t.scope, t.key)
		if v.IsNull() {
			return boolVal(false), nil
		}
		ev, ok := fromValue(v)
		if !ok {
			return exprValue{}, fmt.Errorf("%s.%s is not a comparable scalar", t.scope, t.key)
		}
		return ev, nil
	case unaryExpr:
		arg, err := evalExpr(t.arg, ctx)
		if err != nil {
			return exprValue{}, err
		}
		if arg.kind != 'b' {
			return exprValue{}, fmt.Errorf("operand of ! must be boolean")
		}
		return boolVal(!arg.b), nil
	case binaryExpr:
		return evalBinary(t, ctx)
	default:
		return exprValue{}, fmt.Errorf("unknown expression node")
	}
}

func evalBinary(t binaryExpr, ctx Context) (exprValue, error) {
	switch t.op {
	case tokAnd, tokOr:
		left, err := evalExpr(t.left, ctx)
		if err != nil {
			return exprValue{}, err
		}
		if left.kind != 'b' {
			return exprValue{}, fmt.Errorf("left operand of boolean operator must be boolean")
		}
		if t.op == tokAnd && !left.b {
			return boolVal(false), nil
		}
		if t.op == tokOr && left.b {
			return boolVal(true), nil
		}
		right, err := evalExpr(t.right, ctx)
		if err != nil {
			return exprValue{}, err
		}
		if right.kind != 'b' {
			return exprValue{}, fmt.Errorf("right operand of boolean operator must be boolean")
		}
		return boolVal(right.b), nil
	default:
		left, err := evalExpr(t.left, ctx)
		if err != nil {
			return exprValue{}, err
		}
		right, err := evalExpr(t.right, ctx)
		if err != nil {
			return exprValue{}, err
		}
		return compare(t.op, left, right)
	}
}

func compare(op tokenKind, left, right exprValue) (exprValue, error) {
	switch op {
	case tokEq:
		return boolVal(equalValues(left, right)), nil
	case tokNeq:
		return boolVal(!equalValues(left, right)), nil
	case tokLt, tokLte, tokGt, tokGte:
		if left.kind != 'n' || right.kind != 'n' {
			return exprValue{}, fmt.Errorf("ordering operators require numeric operands")
		}
		switch op {
		case tokLt:
			return boolVal(left.num < right.num), nil
		case tokLte:
			return boolVal(left.num <= right.num), nil
		case tokGt:
			return boolVal(left.num > right.num), nil
		default:
			return boolVal(left.num >= right.num), nil
		}
	default:
		return exprValue{}, fmt.Errorf("unsupported comparison operator")
	}
}

func equalValues(a, b exprValue) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case 's':
		return a.str == b.str
	case 'n':
		return a.num == b.num
	case 'b':
		return a.b == b.b
	default:
		return false
	}
}
