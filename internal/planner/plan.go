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
	lp "github.com/flowetl/flowetl/internal/logicalplan"
	pe "github.com/flowetl/flowetl/internal/physicalexpr"
	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/sqlparse"
)

// JoinSpec is the physical form of a FROM-clause join (§4.2's "simple
// joins"): the two source relation names, the column counts each side
// contributes to the concatenated (left++right) row the rest of the plan
// is bound against, and the bound ON condition.
type JoinSpec struct {
	LeftName, RightName   string
	LeftWidth, RightWidth int
	Kind                  lp.JoinKind
	Condition             pe.Expr // nil for an unconditional (cross) join
}

// Plan is the compiled physical form of one SQL transform instance (§4.4,
// §4.7): a pre-aggregate filter/projection, an optional aggregation stage,
// and the output schema/row-count cap the process-operator chain drives.
type Plan struct {
	// SourceName is the single named input this plan reads from; empty
	// when the plan reads from no relation (OneRowRelation) or reads from
	// a Join (Join is non-nil instead).
	SourceName string

	// Join is non-nil when the FROM clause is a two-relation join; the
	// executor materializes both named sources and evaluates Join before
	// PreFilter ever runs (§4.2).
	Join *JoinSpec

	// PreFilter is evaluated against the raw input row; a false/Null
	// result drops the row before it reaches either Aggregate or Project.
	PreFilter pe.Expr

	// Aggregate is non-nil when the query has a GROUP BY. When set,
	// PostFilter (the HAVING clause) is bound against the same
	// (group key | aggregate state) row as Aggregate.ResultExprs.
	Aggregate  *AggregateSpec
	PostFilter pe.Expr

	// Project is the final SELECT list. For a non-aggregate query it is
	// bound against the source schema; for an aggregate query it is
	// Aggregate.ResultExprs, bound against the (group key | aggregate
	// state) row and evaluated by Aggregator.Flush, not by SQLTransform.
	Project []pe.Expr

	OutputSchema schema.Schema
	Distinct     bool
	Limit        int // 0 means unlimited
}

// Compile lowers an analyzed and optimized logical plan into one physical
// Plan per UNION branch. A plain (non-union) query compiles to a single
// element. distinct is the whole-statement flag analyzer.Result carries
// (the analyzer resolves DISTINCT once for the full tree, including every
// UNION branch, since the marker is folded into a single accumulator as
// analyzeOnce walks down — see analyzer.Result.Distinct).
func Compile(root lp.Plan, distinct bool) ([]*Plan, error) {
	if u, ok := root.(*lp.UnionAll); ok {
		plans := make([]*Plan, len(u.ChildPlans))
		for i, c := range u.ChildPlans {
			p, err := compileOne(c, distinct)
			if err != nil {
				return nil, err
			}
			plans[i] = p
		}
		return plans, nil
	}
	p, err := compileOne(root, distinct)
	if err != nil {
		return nil, err
	}
	return []*Plan{p}, nil
}

func compileOne(root lp.Plan, distinct bool) (*Plan, error) {
	limit := 0
	if n, ok := sqlparse.LimitOf(root); ok {
		limit = n
	}
	root = sqlparse.Unwrap(root)

	switch n := root.(type) {
	case *lp.Project:
		preFilter, relAttrs, join, source, err := planFilterChain(n.Child)
		if err != nil {
			return nil, err
		}
		proj, err := BindList(n.ProjectList, relAttrs)
		if err != nil {
			return nil, err
		}
		return &Plan{
			SourceName:   source,
			Join:         join,
			PreFilter:    preFilter,
			Project:      proj,
			OutputSchema: schema.FromAttributes(n.Output()),
			Distinct:     distinct,
			Limit:        limit,
		}, nil

	case *lp.Filter:
		agg, ok := n.Child.(*lp.Aggregate)
		if !ok {
			return nil, errf("unsupported plan shape: Filter over %T", n.Child)
		}
		return compileAggregatePlan(agg, n.Condition, distinct, limit)

	case *lp.Aggregate:
		return compileAggregatePlan(n, nil, distinct, limit)

	default:
		return nil, errf("unsupported top-level plan shape %T", root)
	}
}

func compileAggregatePlan(agg *lp.Aggregate, having lp.Expr, distinct bool, limit int) (*Plan, error) {
	preFilter, relAttrs, join, source, err := planFilterChain(agg.Child)
	if err != nil {
		return nil, err
	}
	spec, err := planAggregate(agg, relAttrs)
	if err != nil {
		return nil, err
	}
	var postFilter pe.Expr
	if having != nil {
		postFilter, err = Bind(having, spec.resultAttrs)
		if err != nil {
			return nil, err
		}
	}
	return &Plan{
		SourceName:   source,
		Join:         join,
		PreFilter:    preFilter,
		Aggregate:    spec,
		PostFilter:   postFilter,
		Project:      spec.ResultExprs,
		OutputSchema: spec.ResultSchema,
		Distinct:     distinct,
		Limit:        limit,
	}, nil
}

// planFilterChain walks down through zero or more stacked Filter nodes to
// the relation leaf, ANDing every condition it finds together, and returns
// the bound condition plus the leaf's output attribute list for binding
// whatever sits above it. It also reports the leaf's identity: either a
// single source name, or a JoinSpec when the FROM clause was a join (§4.2).
func planFilterChain(p lp.Plan) (pe.Expr, []schema.AttributeReference, *JoinSpec, string, error) {
	var cond lp.Expr
	cur := p
	for {
		f, ok := cur.(*lp.Filter)
		if !ok {
			break
		}
		if f.Condition != nil {
			if cond == nil {
				cond = f.Condition
			} else {
				cond = lp.NewBinaryOperator(cond, lp.OpAnd, f.Condition)
			}
		}
		cur = f.Child
	}
	relAttrs, join, source, err := planLeaf(cur)
	if err != nil {
		return nil, nil, nil, "", err
	}
	if cond == nil {
		return nil, relAttrs, join, source, nil
	}
	bound, err := Bind(cond, relAttrs)
	if err != nil {
		return nil, nil, nil, "", err
	}
	return bound, relAttrs, join, source, nil
}

// planLeaf resolves the FROM-clause leaf a filter chain bottoms out at,
// returning its combined output attribute list alongside either a source
// name (plain or one-row relation) or a bound JoinSpec (two-relation join).
func planLeaf(p lp.Plan) ([]schema.AttributeReference, *JoinSpec, string, error) {
	switch n := p.(type) {
	case *lp.RelationPlaceholder:
		return n.Output(), nil, n.Name, nil
	case lp.OneRowRelation:
		return n.Output(), nil, "", nil
	case *lp.Join:
		leftName, err := relationName(n.Left)
		if err != nil {
			return nil, nil, "", err
		}
		rightName, err := relationName(n.Right)
		if err != nil {
			return nil, nil, "", err
		}
		combined := n.Output()
		var cond pe.Expr
		if n.Condition != nil {
			cond, err = Bind(n.Condition, combined)
			if err != nil {
				return nil, nil, "", err
			}
		}
		join := &JoinSpec{
			LeftName:   leftName,
			RightName:  rightName,
			LeftWidth:  len(n.Left.Output()),
			RightWidth: len(n.Right.Output()),
			Kind:       n.Kind,
			Condition:  cond,
		}
		return combined, join, "", nil
	default:
		return nil, nil, "", errf("unsupported relation leaf %T", p)
	}
}

func relationName(p lp.Plan) (string, error) {
	r, ok := p.(*lp.RelationPlaceholder)
	if !ok {
		return "", errf("join sides must be named relations, got %T", p)
	}
	return r.Name, nil
}
