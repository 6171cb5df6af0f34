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

// Package analyzer implements name resolution, aliasing, type coercion,
// and star expansion over a parsed logical plan (§4.2).
package analyzer

import (
	"fmt"
	"strings"

	"github.com/flowetl/flowetl/internal/functions"
	lp "github.com/flowetl/flowetl/internal/logicalplan"
	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/sqlparse"
)

// resolveFunctionType implements rule 6 (function resolution): look the
// function up by name/arity in the scalar-function registry and compute
// its resolved return type from the (already-resolved) argument types.
func resolveFunctionType(name string, args []lp.Expr) (schema.DataType, bool, error) {
	fn, ok := functions.Default.Lookup(name)
	if !ok {
		return schema.DataType{}, false, errf("unknown function %q", name)
	}
	if err := functions.CheckArity(fn, len(args)); err != nil {
		return schema.DataType{}, false, errf("%s", err)
	}
	argTypes := make([]schema.DataType, len(args))
	for i, a := range args {
		argTypes[i] = a.DataType()
	}
	dt, nullable := fn.ReturnType(argTypes)
	return dt, nullable, nil
}

// AnalysisError is §7's Kind AnalysisError: unknown name, ambiguous name,
// type mismatch that cannot coerce, or wrong arity.
type AnalysisError struct{ msg string }

func (e *AnalysisError) Error() string { return "analyzer: " + e.msg }

func errf(format string, args ...interface{}) error {
	return &AnalysisError{msg: fmt.Sprintf(format, args...)}
}

const maxIterations = 100

// Distinct, when non-nil after Analyze, is populated onto the caller via
// the returned flag — the outermost Project's DISTINCT marker is consumed
// here and is not part of the public logical plan shape.
type Result struct {
	Plan     lp.Plan
	Distinct bool
}

// Analyze resolves plan against the named input relations (typically a
// single entry, "tbl" -> the transform's one input edge schema, §6) and
// returns the fully resolved plan plus whether DISTINCT was requested.
func Analyze(plan lp.Plan, relations map[string]schema.Schema) (*Result, error) {
	plan = resolveRelations(plan, relations)

	var distinct bool
	var err error
	for i := 0; i < maxIterations; i++ {
		var changed bool
		plan, changed, distinct, err = analyzeOnce(plan, distinct)
		if err != nil {
			return nil, err
		}
		if !changed {
			break
		}
	}
	if err := validateResolved(plan); err != nil {
		return nil, err
	}
	return &Result{Plan: plan, Distinct: distinct}, nil
}

// resolveRelations replaces every RelationPlaceholder by the registered
// attribute list for its name (rule 1, §4.2).
func resolveRelations(plan lp.Plan, relations map[string]schema.Schema) lp.Plan {
	if rp, ok := plan.(*lp.RelationPlaceholder); ok {
		if s, found := relations[rp.Name]; found {
			cp := *rp
			cp.Attrs = s.Attributes()
			return &cp
		}
		return rp
	}
	children := plan.Children()
	if len(children) == 0 {
		return plan
	}
	newChildren := make([]lp.Plan, len(children))
	for i, c := range children {
		newChildren[i] = resolveRelations(c, relations)
	}
	return plan.WithChildren(newChildren)
}

// analyzeOnce runs one pass of reference resolution, star expansion,
// alias forward-reference resolution, type coercion and DISTINCT-marker
// stripping, bottom-up over the plan tree. Returns the rewritten plan and
// whether anything changed (drives Analyze's fixed-point loop).
func analyzeOnce(plan lp.Plan, distinctSoFar bool) (lp.Plan, bool, bool, error) {
	children := plan.Children()
	changedAny := false
	distinct := distinctSoFar
	newChildren := make([]lp.Plan, len(children))
	for i, c := range children {
		nc, changed, d, err := analyzeOnce(c, distinct)
		if err != nil {
			return nil, false, false, err
		}
		newChildren[i] = nc
		if changed {
			changedAny = true
		}
		distinct = d
	}
	if changedAny {
		plan = plan.WithChildren(newChildren)
	}

	switch n := plan.(type) {
	case *lp.RelationPlaceholder, lp.OneRowRelation:
		return plan, changedAny, distinct, nil
	case *lp.Project:
		childOut := n.Child.Output()
		list := n.ProjectList
		if len(list) > 0 && sqlparse.IsDistinctMarker(list[0]) {
			list = list[1:]
			distinct = true
			changedAny = true
		}
		newList, changed, err := resolveProjectionList(list, childOut)
		if err != nil {
			return nil, false, false, err
		}
		if changed || len(list) != len(n.ProjectList) {
			cp := *n
			cp.ProjectList = newList
			return &cp, true, distinct, nil
		}
		return n, changedAny, distinct, nil
	case *lp.Filter:
		childOut := n.Child.Output()
		if n.Condition == nil {
			return n, changedAny, distinct, nil
		}
		newCond, changed, err := resolveAndCoerce(n.Condition, childOut, nil)
		if err != nil {
			return nil, false, false, err
		}
		if changed {
			cp := *n
			cp.Condition = newCond
			return &cp, true, distinct, nil
		}
		return n, changedAny, distinct, nil
	case *lp.Aggregate:
		childOut := n.Child.Output()
		changed := changedAny
		newGroupBy := make([]lp.Expr, len(n.GroupBy))
		for i, g := range n.GroupBy {
			ng, c, err := resolveAndCoerce(g, childOut, nil)
			if err != nil {
				return nil, false, false, err
			}
			newGroupBy[i] = ng
			changed = changed || c
		}
		newAgg := make([]*lp.AggregateFunction, len(n.AggExprs))
		for i, a := range n.AggExprs {
			resolvedArgs := make([]lp.Expr, len(a.Args))
			for j, arg := range a.Args {
				ra, c, err := resolveAndCoerce(arg, childOut, nil)
				if err != nil {
					return nil, false, false, err
				}
				resolvedArgs[j] = ra
				changed = changed || c
			}
			cp := *a
			cp.Args = resolvedArgs
			cp.Type = aggregateResultType(a.Name, resolvedArgs)
			newAgg[i] = &cp
		}
		// Result exprs reference group-by output (by original
		// UnresolvedAttribute name) and aggregate results (by the
		// AggregateFunction node already embedded by the parser's
		// extractAggregates pass); build a synthetic child-output made of
		// the group-by attributes for name resolution of bare columns
		// (e.g. `SELECT k, SUM(v) ... GROUP BY k`).
		groupAttrs := attributesOfGroupBy(newGroupBy)
		newResult := make([]lp.Expr, len(n.ResultExprs))
		for i, r := range n.ResultExprs {
			nr, c, err := resolveAggregateResultExpr(r, groupAttrs, newAgg)
			if err != nil {
				return nil, false, false, err
			}
			newResult[i] = nr
			changed = changed || c
		}
		if changed {
			cp := *n
			cp.GroupBy = newGroupBy
			cp.AggExprs = newAgg
			cp.ResultExprs = newResult
			return &cp, true, distinct, nil
		}
		return n, changedAny, distinct, nil
	default:
		return plan, changedAny, distinct, nil
	}
}

// resolveProjectionList resolves each projection item, expanding Star and
// letting later items reference aliases declared earlier in the same list
// (rule 3: forward references within the projection fail — only a
// previously-declared alias may be referenced, never a later one).
func resolveProjectionList(list []lp.Expr, childOut []schema.AttributeReference) ([]lp.Expr, bool, error) {
	var out []lp.Expr
	var declaredAliases []schema.AttributeReference
	changed := false
	for _, e := range list {
		if _, ok := e.(lp.Star); ok {
			for _, a := range childOut {
				out = append(out, &lp.ResolvedAttribute{Ref: a})
			}
			changed = true
			continue
		}
		visible := append(append([]schema.AttributeReference{}, childOut...), declaredAliases...)
		ne, c, err := resolveAndCoerce(e, visible, nil)
		if err != nil {
			return nil, false, err
		}
		if c {
			changed = true
		}
		out = append(out, ne)
		if al, ok := ne.(*lp.Alias); ok {
			declaredAliases = append(declaredAliases, al.ToAttribute())
		}
	}
	return out, changed, nil
}

// attributesOfGroupBy builds the attribute list a bare SELECT-list name
// resolves against inside GROUP BY: a group-by item that is itself a
// resolved column keeps that column's real ExprID (so the same attribute
// referenced in SELECT and GROUP BY binds identically), while a computed
// group-by expression (e.g. `GROUP BY upper(name)`) gets a negative,
// position-keyed synthetic id rather than one minted from the global
// counter — the global counter isn't stable across the analyzer's
// fixed-point passes, but position within this Aggregate node is, and the
// physical planner regenerates the identical negative id when it rebuilds
// this same attribute list after analysis finishes.
func attributesOfGroupBy(groupBy []lp.Expr) []schema.AttributeReference {
	out := make([]schema.AttributeReference, 0, len(groupBy))
	for i, g := range groupBy {
		switch n := g.(type) {
		case *lp.ResolvedAttribute:
			out = append(out, n.Ref)
		default:
			out = append(out, schema.AttributeReference{
				Name:     g.String(),
				DataType: g.DataType(),
				Nullable: g.Nullable(),
				ExprID:   -int64(i + 1),
			})
		}
	}
	return out
}

// resolveAggregateResultExpr resolves a result-projection expression of an
// Aggregate plan: bare names resolve against the group-by attribute list,
// and already-extracted AggregateFunction nodes are left as-is (their
// final type was set during arg coercion).
func resolveAggregateResultExpr(e lp.Expr, groupAttrs []schema.AttributeReference, aggs []*lp.AggregateFunction) (lp.Expr, bool, error) {
	switch n := e.(type) {
	case *lp.AggregateFunction:
		for _, a := range aggs {
			if a.StateID == n.StateID {
				return a, true, nil
			}
		}
		return n, false, nil
	case *lp.Alias:
		child, changed, err := resolveAggregateResultExpr(n.Child, groupAttrs, aggs)
		if err != nil {
			return nil, false, err
		}
		if changed {
			cp := *n
			cp.Child = child
			return &cp, true, nil
		}
		return n, false, nil
	case *lp.UnresolvedAttribute:
		return resolveAndCoerce(n, groupAttrs, nil)
	default:
		children := n.Children()
		if len(children) == 0 {
			return e, false, nil
		}
		newChildren := make([]lp.Expr, len(children))
		changed := false
		for i, c := range children {
			nc, ch, err := resolveAggregateResultExpr(c, groupAttrs, aggs)
			if err != nil {
				return nil, false, err
			}
			newChildren[i] = nc
			changed = changed || ch
		}
		if !changed {
			return e, false, nil
		}
		return e.WithChildren(newChildren), true, nil
	}
}

// resolveAndCoerce resolves UnresolvedAttribute leaves against childOut
// (rule 2), then applies binary-operator type coercion bottom-up (rule 5)
// and function resolution (rule 6).
func resolveAndCoerce(e lp.Expr, childOut []schema.AttributeReference, _ interface{}) (lp.Expr, bool, error) {
	switch n := e.(type) {
	case *lp.UnresolvedAttribute:
		ref, err := lookup(n.Name, childOut)
		if err != nil {
			return nil, false, err
		}
		return &lp.ResolvedAttribute{Ref: ref}, true, nil
	case *lp.Literal, *lp.ResolvedAttribute, *lp.BoundReference:
		return e, false, nil
	case *lp.Alias:
		child, changed, err := resolveAndCoerce(n.Child, childOut, nil)
		if err != nil {
			return nil, false, err
		}
		if changed {
			cp := *n
			cp.Child = child
			return &cp, true, nil
		}
		return n, false, nil
	case *lp.BinaryOperator:
		left, lc, err := resolveAndCoerce(n.Left, childOut, nil)
		if err != nil {
			return nil, false, err
		}
		right, rc, err := resolveAndCoerce(n.Right, childOut, nil)
		if err != nil {
			return nil, false, err
		}
		left, right, coerced, err := coerceBinary(n.Op, left, right)
		if err != nil {
			return nil, false, err
		}
		typeUnset := n.Op.IsArithmetic() && !n.Type.Equal(left.DataType())
		if lc || rc || coerced || typeUnset || n.Left != left || n.Right != right {
			cp := *n
			cp.Left, cp.Right = left, right
			if n.Op.IsArithmetic() {
				cp.Type = left.DataType()
			}
			return &cp, true, nil
		}
		return n, false, nil
	case *lp.Cast:
		child, changed, err := resolveAndCoerce(n.Child, childOut, nil)
		if err != nil {
			return nil, false, err
		}
		if changed {
			cp := *n
			cp.Child = child
			return &cp, true, nil
		}
		return n, false, nil
	case *lp.Like:
		child, lc, err := resolveAndCoerce(n.Child, childOut, nil)
		if err != nil {
			return nil, false, err
		}
		pattern, pc, err := resolveAndCoerce(n.Pattern, childOut, nil)
		if err != nil {
			return nil, false, err
		}
		if lc || pc {
			cp := *n
			cp.Child, cp.Pattern = child, pattern
			return &cp, true, nil
		}
		return n, false, nil
	case *lp.RLike:
		child, lc, err := resolveAndCoerce(n.Child, childOut, nil)
		if err != nil {
			return nil, false, err
		}
		pattern, pc, err := resolveAndCoerce(n.Pattern, childOut, nil)
		if err != nil {
			return nil, false, err
		}
		if lc || pc {
			cp := *n
			cp.Child, cp.Pattern = child, pattern
			return &cp, true, nil
		}
		return n, false, nil
	case *lp.FunctionCall:
		changed := false
		newArgs := make([]lp.Expr, len(n.Args))
		for i, a := range n.Args {
			na, c, err := resolveAndCoerce(a, childOut, nil)
			if err != nil {
				return nil, false, err
			}
			newArgs[i] = na
			changed = changed || c
		}
		retType, nullable, err := resolveFunctionType(n.Name, newArgs)
		if err != nil {
			return nil, false, err
		}
		if changed || n.Type != retType || n.Null != nullable {
			cp := *n
			cp.Args = newArgs
			cp.Type = retType
			cp.Null = nullable
			return &cp, true, nil
		}
		return n, false, nil
	case *lp.AggregateFunction:
		return n, false, nil
	default:
		return e, false, nil
	}
}

func lookup(name string, attrs []schema.AttributeReference) (schema.AttributeReference, error) {
	found := -1
	for i, a := range attrs {
		if strings.EqualFold(a.Name, name) {
			if found != -1 {
				return schema.AttributeReference{}, errf("ambiguous reference to column %q", name)
			}
			found = i
		}
	}
	if found == -1 {
		return schema.AttributeReference{}, errf("unknown column %q", name)
	}
	return attrs[found], nil
}

// coerceBinary implements rule 5: type coercion. Binary operators require
// matching types; a Cast is inserted on the narrower side using the
// promotion order Int -> Long -> Float -> Double. A String operand against
// a numeric or Timestamp operand always has the String side cast to match
// (never the reverse — S4), with a failed runtime parse producing Null
// rather than an analysis error. Boolean vs numeric casts the boolean to
// numeric.
func coerceBinary(op lp.BinaryOp, left, right lp.Expr) (lp.Expr, lp.Expr, bool, error) {
	lt, rt := left.DataType(), right.DataType()
	if lt.Equal(rt) {
		return left, right, false, nil
	}
	// zero-value DataType means "not yet resolved" (e.g. Star/Unresolved
	// made it through); nothing to coerce yet.
	if isZero(lt) || isZero(rt) {
		return left, right, false, nil
	}

	// String vs numeric (both arithmetic and comparison): the string side
	// is cast to the numeric type, never the reverse — S4: `s > 5` over a
	// string column compares as long, not as a string comparison against
	// "5". Int operands are widened to Long first. A string that fails to
	// parse evaluates to Null at runtime (§8), it is never an analysis
	// error.
	if lt.Equal(schema.String) && rt.IsNumericType() {
		t := schema.PromotedType(rt, schema.Long)
		if !rt.Equal(t) {
			right = lp.NewCast(right, t)
		}
		return lp.NewCast(left, t), right, true, nil
	}
	if rt.Equal(schema.String) && lt.IsNumericType() {
		t := schema.PromotedType(lt, schema.Long)
		if !lt.Equal(t) {
			left = lp.NewCast(left, t)
		}
		return left, lp.NewCast(right, t), true, nil
	}

	// String vs Timestamp: the string side parses as a timestamp literal.
	if lt.Equal(schema.String) && rt.Equal(schema.Timestamp) {
		return lp.NewCast(left, rt), right, true, nil
	}
	if rt.Equal(schema.String) && lt.Equal(schema.Timestamp) {
		return left, lp.NewCast(right, lt), true, nil
	}

	if lt.Equal(schema.Boolean) && rt.IsNumericType() {
		return lp.NewCast(left, rt), right, true, nil
	}
	if rt.Equal(schema.Boolean) && lt.IsNumericType() {
		return left, lp.NewCast(right, lt), true, nil
	}

	if lt.IsNumericType() && rt.IsNumericType() {
		promoted := schema.PromotedType(lt, rt)
		if !lt.Equal(promoted) {
			return lp.NewCast(left, promoted), right, true, nil
		}
		return left, lp.NewCast(right, promoted), true, nil
	}

	return nil, nil, false, errf("cannot coerce types %s and %s for operator %s", lt, rt, op)
}

func isZero(t schema.DataType) bool {
	return t.Equal(schema.DataType{})
}

func aggregateResultType(name string, args []lp.Expr) schema.DataType {
	switch strings.ToLower(name) {
	case "count", "count_distinct", "approx_count_distinct":
		return schema.Long
	case "avg", "approx_percentile":
		return schema.Double
	case "sum":
		if len(args) > 0 && args[0].DataType().IsNumericType() {
			return schema.PromotedType(args[0].DataType(), schema.Long)
		}
		return schema.Double
	case "min", "max":
		if len(args) > 0 {
			return args[0].DataType()
		}
		return schema.Double
	default:
		return schema.Double
	}
}

// validateResolved walks the finished plan and fails fast if any attribute
// reference failed to resolve, surfacing a clear AnalysisError rather than
// letting an UnresolvedAttribute silently reach the physical planner.
func validateResolved(plan lp.Plan) error {
	var walkPlan func(p lp.Plan) error
	var walkExpr func(e lp.Expr) error
	walkExpr = func(e lp.Expr) error {
		if u, ok := e.(*lp.UnresolvedAttribute); ok {
			return errf("unresolved column %q", u.Name)
		}
		if _, ok := e.(lp.Star); ok {
			return errf("unexpanded '*' in resolved plan")
		}
		for _, c := range e.Children() {
			if err := walkExpr(c); err != nil {
				return err
			}
		}
		return nil
	}
	walkPlan = func(p lp.Plan) error {
		switch n := p.(type) {
		case *lp.Project:
			for _, e := range n.ProjectList {
				if err := walkExpr(e); err != nil {
					return err
				}
			}
		case *lp.Filter:
			if n.Condition != nil {
				if err := walkExpr(n.Condition); err != nil {
					return err
				}
			}
		case *lp.Aggregate:
			for _, e := range n.GroupBy {
				if err := walkExpr(e); err != nil {
					return err
				}
			}
			for _, e := range n.ResultExprs {
				if err := walkExpr(e); err != nil {
					return err
				}
			}
		}
		for _, c := range p.Children() {
			if err := walkPlan(c); err != nil {
				return err
			}
		}
		return nil
	}
	return walkPlan(plan)
}
