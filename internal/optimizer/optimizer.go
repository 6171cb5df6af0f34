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

// Package optimizer rewrites an analyzed logical plan with a small,
// fixed-point rule set: ConstantFolding and SimplifyCasts (§4.3). The rule
// set and the ten-pass ceiling are grounded on the original engine's
// optimizer driver, which runs exactly these two rules to a fixed point
// bounded at 10 iterations rather than the analyzer's looser 100.
package optimizer

import (
	lp "github.com/flowetl/flowetl/internal/logicalplan"
)

const maxPasses = 10

// rule rewrites a single expression bottom-up, reporting whether it
// changed anything. Both ConstantFolding and SimplifyCasts implement this
// shape so the driver can apply them uniformly.
type rule func(e lp.Expr) (lp.Expr, bool)

var rules = []rule{
	foldConstants,
	simplifyCasts,
}

// Optimize runs the rule set to a fixed point over every expression
// reachable from plan, capped at maxPasses full tree traversals — matching
// the original implementation's optimizer driver rather than the
// analyzer's 100-iteration ceiling, since these rules are non-recursive
// local rewrites that converge far faster than name resolution does.
func Optimize(plan lp.Plan) lp.Plan {
	for i := 0; i < maxPasses; i++ {
		var changed bool
		plan, changed = optimizePlan(plan)
		if !changed {
			break
		}
	}
	return plan
}

func optimizePlan(plan lp.Plan) (lp.Plan, bool) {
	children := plan.Children()
	changedAny := false
	if len(children) > 0 {
		newChildren := make([]lp.Plan, len(children))
		for i, c := range children {
			nc, ch := optimizePlan(c)
			newChildren[i] = nc
			changedAny = changedAny || ch
		}
		if changedAny {
			plan = plan.WithChildren(newChildren)
		}
	}

	switch n := plan.(type) {
	case *lp.Project:
		newList, changed := optimizeExprList(n.ProjectList)
		if changed {
			cp := *n
			cp.ProjectList = newList
			return &cp, true
		}
	case *lp.Filter:
		if n.Condition != nil {
			nc, changed := applyRules(n.Condition)
			if changed {
				cp := *n
				cp.Condition = nc
				return &cp, true
			}
		}
	case *lp.Aggregate:
		newGroupBy, gChanged := optimizeExprList(n.GroupBy)
		newResult, rChanged := optimizeExprList(n.ResultExprs)
		newAggs := make([]*lp.AggregateFunction, len(n.AggExprs))
		aChanged := false
		for i, a := range n.AggExprs {
			newArgs, changed := optimizeExprList(a.Args)
			if changed {
				cp := *a
				cp.Args = newArgs
				newAggs[i] = &cp
				aChanged = true
			} else {
				newAggs[i] = a
			}
		}
		if gChanged || rChanged || aChanged {
			cp := *n
			cp.GroupBy = newGroupBy
			cp.ResultExprs = newResult
			cp.AggExprs = newAggs
			return &cp, true
		}
	}
	return plan, changedAny
}

func optimizeExprList(list []lp.Expr) ([]lp.Expr, bool) {
	changedAny := false
	out := make([]lp.Expr, len(list))
	for i, e := range list {
		ne, changed := applyRules(e)
		out[i] = ne
		changedAny = changedAny || changed
	}
	return out, changedAny
}

// applyRules rewrites e bottom-up: children first, then each rule in turn
// at this node, repeating until no rule fires (a node-local fixed point,
// distinct from the tree-wide pass loop in Optimize).
func applyRules(e lp.Expr) (lp.Expr, bool) {
	changedAny := false
	children := e.Children()
	if len(children) > 0 {
		newChildren := make([]lp.Expr, len(children))
		for i, c := range children {
			nc, changed := applyRules(c)
			newChildren[i] = nc
			changedAny = changedAny || changed
		}
		if changedAny {
			e = e.WithChildren(newChildren)
		}
	}
	for {
		fired := false
		for _, r := range rules {
			ne, changed := r(e)
			if changed {
				e = ne
				fired = true
				changedAny = true
			}
		}
		if !fired {
			break
		}
	}
	return e, changedAny
}
