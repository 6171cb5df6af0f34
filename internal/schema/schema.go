/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package schema

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Field is one named, typed, nullable column of a Schema.
type Field struct {
	Name     string
	DataType DataType
	Nullable bool
}

// Schema is an ordered list of Field. Names are unique within a schema,
// matched case-insensitively during analysis.
type Schema []Field

func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, f := range s {
		parts[i] = fmt.Sprintf("%s:%s", f.Name, f.DataType)
	}
	return strings.Join(parts, ",")
}

// IndexOf returns the position of name in the schema (case-insensitive), or
// -1 if absent. Returns an error if name matches more than one field.
func (s Schema) IndexOf(name string) (int, error) {
	found := -1
	for i, f := range s {
		if strings.EqualFold(f.Name, name) {
			if found != -1 {
				return -1, fmt.Errorf("ambiguous reference to column %q", name)
			}
			found = i
		}
	}
	return found, nil
}

func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if !strings.EqualFold(s[i].Name, other[i].Name) || !s[i].DataType.Equal(other[i].DataType) {
			return false
		}
	}
	return true
}

// exprIDCounter backs the globally unique, monotonically increasing
// identifiers assigned to resolved attributes (§3). A process-local atomic
// counter is the right shape here, not a random UUID: ids must be ordered
// and cheaply comparable for the analyzer's "resolves by exprId" binding
// check.
var exprIDCounter int64

// NextExprID returns a fresh, process-unique expression id.
func NextExprID() int64 {
	return atomic.AddInt64(&exprIDCounter, 1)
}

// AttributeReference identifies one resolved, uniquely-numbered column.
// Two AttributeReferences are the "same" attribute iff their ExprID
// matches; equality is by value, not pointer identity (§9).
type AttributeReference struct {
	Name     string
	DataType DataType
	Nullable bool
	ExprID   int64
}

func NewAttributeReference(name string, dt DataType, nullable bool) AttributeReference {
	return AttributeReference{Name: name, DataType: dt, Nullable: nullable, ExprID: NextExprID()}
}

// ToAttribute returns the field as an AttributeReference keyed under a
// freshly minted exprId (used when a Field is materialized as the output
// of a new plan node, e.g. a RelationPlaceholder's schema).
func (f Field) ToAttribute() AttributeReference {
	return NewAttributeReference(f.Name, f.DataType, f.Nullable)
}

// Attributes materializes every field of a schema as a freshly-numbered
// AttributeReference list, in schema order.
func (s Schema) Attributes() []AttributeReference {
	out := make([]AttributeReference, len(s))
	for i, f := range s {
		out[i] = f.ToAttribute()
	}
	return out
}

// FromAttributes builds a Schema view over a resolved attribute list (used
// to describe a plan node's output schema after analysis).
func FromAttributes(attrs []AttributeReference) Schema {
	s := make(Schema, len(attrs))
	for i, a := range attrs {
		s[i] = Field{Name: a.Name, DataType: a.DataType, Nullable: a.Nullable}
	}
	return s
}
