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

package optimizer

import (
	lp "github.com/flowetl/flowetl/internal/logicalplan"
	"github.com/flowetl/flowetl/internal/physicalexpr"
	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/value"
)

// foldConstants replaces a node whose operands are all *lp.Literal with
// the single Literal their evaluation produces, using the same kernel the
// physical expressions evaluate with so folding can never disagree with
// runtime evaluation.
func foldConstants(e lp.Expr) (lp.Expr, bool) {
	switch n := e.(type) {
	case *lp.BinaryOperator:
		ll, lok := n.Left.(*lp.Literal)
		rl, rok := n.Right.(*lp.Literal)
		if !lok || !rok {
			return e, false
		}
		lv, rv := ll.ToValue(), rl.ToValue()
		var out value.Value
		switch {
		case n.Op.IsArithmetic():
			out = physicalexpr.EvalArithmetic(n.Op, lv, rv, n.Type)
		case n.Op.IsComparison():
			out = physicalexpr.EvalComparison(n.Op, lv, rv)
		case n.Op == lp.OpAnd:
			out = physicalexpr.EvalAnd(lv, func() value.Value { return rv })
		case n.Op == lp.OpOr:
			out = physicalexpr.EvalOr(lv, func() value.Value { return rv })
		default:
			return e, false
		}
		return lp.LiteralFromValue(out, n.DataType()), true
	case *lp.Cast:
		cl, ok := n.Child.(*lp.Literal)
		if !ok {
			return e, false
		}
		out := physicalexpr.EvalCast(cl.ToValue(), n.To)
		return lp.LiteralFromValue(out, n.To), true
	default:
		return e, false
	}
}

// simplifyCasts removes a Cast that is already a no-op: casting an
// expression to the type it already has, or collapsing Cast(Cast(x, U),
// T) down to Cast(x, T) when doing so cannot change the result — iff U is
// a widening of x's type and T is at least as wide as U (§4.3). A
// narrowing inner cast must be kept: CAST(CAST(3.7 AS INT) AS STRING)
// truncates to "3", which collapsing to CAST(3.7 AS STRING) ("3.7") would
// silently change.
func simplifyCasts(e lp.Expr) (lp.Expr, bool) {
	c, ok := e.(*lp.Cast)
	if !ok {
		return e, false
	}
	if c.Child.DataType().Equal(c.To) {
		return c.Child, true
	}
	if inner, ok := c.Child.(*lp.Cast); ok {
		innerType, u, t := inner.Child.DataType(), inner.To, c.To
		if innerType.IsNumericType() && u.IsNumericType() && t.IsNumericType() &&
			atLeastAsWide(u, innerType) && atLeastAsWide(t, u) {
			return lp.NewCast(inner.Child, c.To), true
		}
	}
	return e, false
}

// atLeastAsWide reports whether a can represent every value b can, i.e. a
// is wider than or equal to b in the numeric promotion order.
func atLeastAsWide(a, b schema.DataType) bool {
	return a.Equal(b) || a.Wider(b)
}
