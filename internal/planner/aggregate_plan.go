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

package planner

import (
	"strings"

	lp "github.com/flowetl/flowetl/internal/logicalplan"
	pe "github.com/flowetl/flowetl/internal/physicalexpr"
	"github.com/flowetl/flowetl/internal/schema"
)

// AggExprSpec is one bound aggregate call: which state-table slot it
// updates (StateID, matching extractAggregates' numbering), the function
// name the aggregate transform dispatches on, and its (possibly absent,
// for count(*)) argument expression bound against the pre-aggregation row.
type AggExprSpec struct {
	Name       string
	StateID    int
	Args       []pe.Expr // empty for count(*)
	ArgTypes   []schema.DataType
	ResultType schema.DataType
}

// AggregateSpec is the physical form of a GROUP BY clause: the bound
// group-key expressions (evaluated per input row to produce the state
// table key), the bound aggregate calls (one state slot per AggExprSpec),
// and the bound result projection producing the emitted row from a
// (group key | aggregate state) pair.
type AggregateSpec struct {
	GroupBy      []pe.Expr
	GroupByTypes []schema.DataType
	Aggs         []AggExprSpec
	ResultExprs  []pe.Expr
	ResultSchema schema.Schema

	// resultAttrs is the (groupKey..., aggState...) attribute list
	// ResultExprs and a HAVING clause were bound against; planFilterChain
	// callers need it to bind a HAVING condition the same way.
	resultAttrs []schema.AttributeReference
}

// planAggregate binds an analyzed, optimized *lp.Aggregate node against
// relAttrs, the pre-aggregation row's resolved attribute list.
func planAggregate(agg *lp.Aggregate, relAttrs []schema.AttributeReference) (*AggregateSpec, error) {
	groupBy, err := BindList(agg.GroupBy, relAttrs)
	if err != nil {
		return nil, err
	}
	groupByTypes := make([]schema.DataType, len(agg.GroupBy))
	for i, g := range agg.GroupBy {
		groupByTypes[i] = g.DataType()
	}

	aggs := make([]AggExprSpec, len(agg.AggExprs))
	aggAttrs := make([]schema.AttributeReference, len(agg.AggExprs))
	for i, a := range agg.AggExprs {
		spec := AggExprSpec{Name: strings.ToLower(a.Name), StateID: a.StateID, ResultType: a.Type}
		if len(a.Args) > 0 {
			boundArgs, err := BindList(a.Args, relAttrs)
			if err != nil {
				return nil, err
			}
			spec.Args = boundArgs
			spec.ArgTypes = make([]schema.DataType, len(a.Args))
			for j, arg := range a.Args {
				spec.ArgTypes[j] = arg.DataType()
			}
		}
		aggs[i] = spec
		aggAttrs[a.StateID] = schema.NewAttributeReference(a.String(), a.Type, true)
	}

	groupAttrs := groupByAttributes(agg.GroupBy)
	resultAttrs := append(append([]schema.AttributeReference{}, groupAttrs...), aggAttrs...)

	resultExprs := make([]pe.Expr, len(agg.ResultExprs))
	for i, r := range agg.ResultExprs {
		substituted := substituteAggRefs(r, aggAttrs)
		be, err := Bind(substituted, resultAttrs)
		if err != nil {
			return nil, err
		}
		resultExprs[i] = be
	}

	return &AggregateSpec{
		GroupBy:      groupBy,
		GroupByTypes: groupByTypes,
		Aggs:         aggs,
		ResultExprs:  resultExprs,
		ResultSchema: schema.FromAttributes(agg.Output()),
		resultAttrs:  resultAttrs,
	}, nil
}

// groupByAttributes mirrors the analyzer's attributesOfGroupBy exactly:
// a bare resolved column keeps its real ExprID, a computed expression gets
// the same negative, position-keyed synthetic id the analyzer assigned it
// while resolving bare references inside the SELECT list.
func groupByAttributes(groupBy []lp.Expr) []schema.AttributeReference {
	out := make([]schema.AttributeReference, len(groupBy))
	for i, g := range groupBy {
		if ra, ok := g.(*lp.ResolvedAttribute); ok {
			out[i] = ra.Ref
			continue
		}
		out[i] = schema.AttributeReference{
			Name:     g.String(),
			DataType: g.DataType(),
			Nullable: g.Nullable(),
			ExprID:   -int64(i + 1),
		}
	}
	return out
}

// substituteAggRefs replaces every *lp.AggregateFunction leaf in e with a
// ResolvedAttribute pointing at that call's state-table slot, so the
// ordinary Bind walk can resolve it like any other column reference.
func substituteAggRefs(e lp.Expr, aggAttrs []schema.AttributeReference) lp.Expr {
	if af, ok := e.(*lp.AggregateFunction); ok {
		return &lp.ResolvedAttribute{Ref: aggAttrs[af.StateID]}
	}
	children := e.Children()
	if len(children) == 0 {
		return e
	}
	newChildren := make([]lp.Expr, len(children))
	changed := false
	for i, c := range children {
		nc := substituteAggRefs(c, aggAttrs)
		newChildren[i] = nc
		if nc != c {
			changed = true
		}
	}
	if !changed {
		return e
	}
	return e.WithChildren(newChildren)
}
