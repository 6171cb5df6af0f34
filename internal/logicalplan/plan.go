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

package logicalplan

import "github.com/flowetl/flowetl/internal/schema"

// JoinKind enumerates the simple join kinds the parser accepts (§4.2:
// "simple joins").
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
)

// Plan is the common contract for every logical plan node.
type Plan interface {
	// Output returns the plan's resolved output attribute list. Only
	// meaningful after analysis.
	Output() []schema.AttributeReference
	Children() []Plan
	WithChildren(children []Plan) Plan
}

// Project corresponds to a SELECT list.
type Project struct {
	ProjectList []Expr
	Child       Plan
}

func (p *Project) Output() []schema.AttributeReference {
	out := make([]schema.AttributeReference, len(p.ProjectList))
	for i, e := range p.ProjectList {
		out[i] = attributeOf(e)
	}
	return out
}
func (p *Project) Children() []Plan { return []Plan{p.Child} }
func (p *Project) WithChildren(c []Plan) Plan {
	cp := *p
	cp.Child = c[0]
	return &cp
}

// Filter corresponds to a WHERE (or HAVING) clause.
type Filter struct {
	Condition Expr
	Child     Plan
}

func (f *Filter) Output() []schema.AttributeReference { return f.Child.Output() }
func (f *Filter) Children() []Plan                     { return []Plan{f.Child} }
func (f *Filter) WithChildren(c []Plan) Plan {
	cp := *f
	cp.Child = c[0]
	return &cp
}

// Aggregate corresponds to GROUP BY with aggregate functions in the
// projection. ResultExprs computes the final projected row from a
// (group-key | aggregate-state) joined row, referencing GroupBy positions
// and AggExprs' StateID via ResolvedAttribute/BoundReference as the
// physical planner binds them.
type Aggregate struct {
	GroupBy   []Expr
	AggExprs  []*AggregateFunction
	ResultExprs []Expr
	Child     Plan
}

func (a *Aggregate) Output() []schema.AttributeReference {
	out := make([]schema.AttributeReference, len(a.ResultExprs))
	for i, e := range a.ResultExprs {
		out[i] = attributeOf(e)
	}
	return out
}
func (a *Aggregate) Children() []Plan { return []Plan{a.Child} }
func (a *Aggregate) WithChildren(c []Plan) Plan {
	cp := *a
	cp.Child = c[0]
	return &cp
}

// Join corresponds to a simple two-relation join.
type Join struct {
	Left, Right Plan
	Kind        JoinKind
	Condition   Expr
}

func (j *Join) Output() []schema.AttributeReference {
	return append(append([]schema.AttributeReference{}, j.Left.Output()...), j.Right.Output()...)
}
func (j *Join) Children() []Plan { return []Plan{j.Left, j.Right} }
func (j *Join) WithChildren(c []Plan) Plan {
	cp := *j
	cp.Left, cp.Right = c[0], c[1]
	return &cp
}

// UnionAll concatenates the rows of every child in sequence.
type UnionAll struct {
	ChildPlans []Plan
}

func (u *UnionAll) Output() []schema.AttributeReference { return u.ChildPlans[0].Output() }
func (u *UnionAll) Children() []Plan                     { return u.ChildPlans }
func (u *UnionAll) WithChildren(c []Plan) Plan            { return &UnionAll{ChildPlans: c} }

// RelationPlaceholder is the dataflow edge binding a named source input to
// its schema; it is the leaf every FROM clause resolves to.
type RelationPlaceholder struct {
	Name    string
	Attrs   []schema.AttributeReference
}

func (r *RelationPlaceholder) Output() []schema.AttributeReference { return r.Attrs }
func (r *RelationPlaceholder) Children() []Plan                     { return nil }
func (r *RelationPlaceholder) WithChildren(c []Plan) Plan            { return r }

// OneRowRelation has no columns and exactly one row — the leaf for
// `SELECT <expr>` without a FROM clause.
type OneRowRelation struct{}

func (OneRowRelation) Output() []schema.AttributeReference { return nil }
func (OneRowRelation) Children() []Plan                     { return nil }
func (o OneRowRelation) WithChildren(c []Plan) Plan           { return o }

func attributeOf(e Expr) schema.AttributeReference {
	switch n := e.(type) {
	case *Alias:
		return n.ToAttribute()
	case *ResolvedAttribute:
		return n.Ref
	default:
		return schema.NewAttributeReference("?column?", e.DataType(), e.Nullable())
	}
}
