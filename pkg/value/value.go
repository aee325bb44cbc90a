// SPDX-License-Identifier: AGPL-3.0-or-later

/*

Stagecraft - Stagecraft is a Go-based CLI that orchestrates local-first development and scalable single-host to multi-host deployments for multi-service applications powered by Docker Compose.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package value defines the closed dynamic-value type used for the opaque
// key-value maps attached to workflow entities (Execution.executionData,
// StepExecution.stepData, NavigationEvent.actionData).
package value

import (
	"encoding/json"
	"fmt"
)

// Value is a member of the closed sum {string, number, boolean, null,
// list<Value>, map<string,Value>}. The zero Value is null.
type Value struct {
	raw any
}

// Null is the null Value.
var Null = Value{}

// String wraps a string as a Value.
func String(s string) Value { return Value{raw: s} }

// Number wraps a float64 as a Value.
func Number(n float64) Value { return Value{raw: n} }

// Bool wraps a bool as a Value.
func Bool(b bool) Value { return Value{raw: b} }

// List wraps a slice of Values as a Value.
func List(items []Value) Value { return Value{raw: items} }

// Of converts a plain Go value (string, float64, int, bool, nil, []Value,
// map[string]Value, or another Value) into a Value.
func Of(v any) Value {
	switch t := v.(type) {
	case Value:
		return t
	case nil:
		return Null
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Number(float64(t))
	case float64:
		return Number(t)
	case []Value:
		return List(t)
	case Map:
		return Value{raw: t}
	case map[string]Value:
		return Value{raw: Map(t)}
	default:
		return Value{raw: fmt.Sprintf("%v", t)}
	}
}

// IsNull reports whether the Value is null.
func (v Value) IsNull() bool { return v.raw == nil }

// AsString returns the string form if the Value holds a string.
func (v Value) AsString() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok
}

// AsNumber returns the numeric form if the Value holds a number.
func (v Value) AsNumber() (float64, bool) {
	n, ok := v.raw.(float64)
	return n, ok
}

// AsBool returns the boolean form if the Value holds a boolean.
func (v Value) AsBool() (bool, bool) {
	b, ok := v.raw.(bool)
	return b, ok
}

// AsList returns the list form if the Value holds a list.
func (v Value) AsList() ([]Value, bool) {
	l, ok := v.raw.([]Value)
	return l, ok
}

// AsMap returns the map form if the Value holds a map.
func (v Value) AsMap() (Map, bool) {
	m, ok := v.raw.(Map)
	return m, ok
}

// Raw returns the underlying Go value (string, float64, bool, nil, []Value, Map).
func (v Value) Raw() any { return v.raw }

// Equal reports whether two Values are structurally equal. Lists and maps
// compare element-wise; this is used by the condition evaluator's == and !=.
func (v Value) Equal(other Value) bool {
	switch a := v.raw.(type) {
	case nil:
		return other.raw == nil
	case string:
		b, ok := other.raw.(string)
		return ok && a == b
	case float64:
		b, ok := other.raw.(float64)
		return ok && a == b
	case bool:
		b, ok := other.raw.(bool)
		return ok && a == b
	case []Value:
		b, ok := other.raw.([]Value)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !a[i].Equal(b[i]) {
				return false
			}
		}
		return true
	case Map:
		b, ok := other.raw.(Map)
		if !ok || len(a) != len(b) {
			return false
		}
		for k, av := range a {
			bv, ok := b[k]
			if !ok || !av.Equal(bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Map is the opaque string-keyed map type carried by Execution, StepExecution
// and NavigationEvent. It serializes as a plain JSON object.
type Map map[string]Value

// Get returns the value at key, or Null with ok=false if absent.
func (m Map) Get(key string) (Value, bool) {
	if m == nil {
		return Null, false
	}
	v, ok := m[key]
	return v, ok
}

// Set returns a shallow copy of m with key set to v. The original map is
// never mutated, matching the clone-on-write discipline engine state uses.
func (m Map) Set(key string, v Value) Map {
	out := make(Map, len(m)+1)
	for k, existing := range m {
		out[k] = existing
	}
	out[key] = v
	return out
}

// Clone returns a shallow copy of m.
func (m Map) Clone() Map {
	if m == nil {
		return Map{}
	}
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MarshalJSON implements json.Marshaler for Value.
func (v Value) MarshalJSON() ([]byte, error) {
	switch t := v.raw.(type) {
	case []Value:
		return json.Marshal(t)
	default:
		return json.Marshal(t)
	}
}

// UnmarshalJSON implements json.Unmarshaler for Value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	*v = fromGeneric(generic)
	return nil
}

func fromGeneric(g any) Value {
	switch t := g.(type) {
	case nil:
		return Null
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = fromGeneric(item)
		}
		return List(items)
	case map[string]any:
		m := make(Map, len(t))
		for k, v := range t {
			m[k] = fromGeneric(v)
		}
		return Value{raw: m}
	default:
		return Null
	}
}
