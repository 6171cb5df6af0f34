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

// Package planner lowers an analyzed, optimized logical plan to the bound
// physical expression/operator tree (§4.4, §4.7): every ResolvedAttribute
// becomes a positional physicalexpr.BoundReference, and every logical
// expression node picks its type-specialized physical counterpart.
package planner

import (
	"fmt"
	"regexp"

	lp "github.com/flowetl/flowetl/internal/logicalplan"
	pe "github.com/flowetl/flowetl/internal/physicalexpr"
	"github.com/flowetl/flowetl/internal/schema"
)

// PlanError is §7's Kind PlanError.
type PlanError struct{ msg string }

func (e *PlanError) Error() string { return "planner: " + e.msg }

func errf(format string, args ...interface{}) error {
	return &PlanError{msg: fmt.Sprintf(format, args...)}
}

// Bind compiles a resolved logical Expr into its physical counterpart,
// resolving ResolvedAttribute leaves to positional BoundReferences against
// childOut (the child plan's output attribute list, in order).
func Bind(e lp.Expr, childOut []schema.AttributeReference) (pe.Expr, error) {
	switch n := e.(type) {
	case *lp.ResolvedAttribute:
		ord, err := ordinalOf(n.Ref, childOut)
		if err != nil {
			return nil, err
		}
		return &pe.BoundReference{Ordinal: ord, Type: n.Ref.DataType}, nil
	case *lp.BoundReference:
		return &pe.BoundReference{Ordinal: n.Ordinal, Type: n.Type}, nil
	case *lp.Literal:
		return &pe.Literal{V: n.ToValue(), T: n.Type}, nil
	case *lp.Alias:
		return Bind(n.Child, childOut)
	case *lp.BinaryOperator:
		left, err := Bind(n.Left, childOut)
		if err != nil {
			return nil, err
		}
		right, err := Bind(n.Right, childOut)
		if err != nil {
			return nil, err
		}
		switch {
		case n.Op.IsArithmetic():
			return &pe.BinaryArithmetic{Left: left, Right: right, Op: n.Op, Type: n.Type}, nil
		case n.Op.IsComparison():
			return &pe.BinaryComparison{Left: left, Right: right, Op: n.Op}, nil
		case n.Op == lp.OpAnd:
			return &pe.And{Left: left, Right: right}, nil
		case n.Op == lp.OpOr:
			return &pe.Or{Left: left, Right: right}, nil
		default:
			return nil, errf("unhandled binary operator %s", n.Op)
		}
	case *lp.Cast:
		child, err := Bind(n.Child, childOut)
		if err != nil {
			return nil, err
		}
		return &pe.Cast{Child: child, To: n.To}, nil
	case *lp.Like:
		child, err := Bind(n.Child, childOut)
		if err != nil {
			return nil, err
		}
		if lit, ok := n.Pattern.(*lp.Literal); ok && !lit.Null {
			matcher := pe.CompileLikePattern(lit.Value.(string), n.IgnoreCase)
			return &pe.Like{Child: child, Matcher: matcher, Negate: n.Negate}, nil
		}
		pattern, err := Bind(n.Pattern, childOut)
		if err != nil {
			return nil, err
		}
		return &pe.DynamicLike{Child: child, Pattern: pattern, IgnoreCase: n.IgnoreCase, Negate: n.Negate}, nil
	case *lp.RLike:
		child, err := Bind(n.Child, childOut)
		if err != nil {
			return nil, err
		}
		lit, ok := n.Pattern.(*lp.Literal)
		if !ok || lit.Null {
			return nil, errf("RLIKE requires a constant pattern")
		}
		re, err := regexp.Compile(lit.Value.(string))
		if err != nil {
			return nil, errf("invalid RLIKE pattern: %s", err)
		}
		return &pe.RLike{Child: child, Re: re}, nil
	case *lp.FunctionCall:
		args := make([]pe.Expr, len(n.Args))
		for i, a := range n.Args {
			ba, err := Bind(a, childOut)
			if err != nil {
				return nil, err
			}
			args[i] = ba
		}
		if n.Name == "array" {
			return &pe.Collection{Elems: args, Type: n.Type}, nil
		}
		return pe.NewFunctionCall(n.Name, args, n.Type), nil
	case *lp.In:
		return Bind(n.ToOrChain(), childOut)
	default:
		return nil, errf("cannot bind expression %s", e)
	}
}

// BindList binds every expr in list against the same childOut.
func BindList(list []lp.Expr, childOut []schema.AttributeReference) ([]pe.Expr, error) {
	out := make([]pe.Expr, len(list))
	for i, e := range list {
		b, err := Bind(e, childOut)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func ordinalOf(ref schema.AttributeReference, childOut []schema.AttributeReference) (int, error) {
	for i, a := range childOut {
		if a.ExprID == ref.ExprID {
			return i, nil
		}
	}
	// Fall back to name match: a synthetic attribute minted fresh by the
	// analyzer for a group-by expression doesn't share the child's ExprID.
	for i, a := range childOut {
		if a.Name == ref.Name {
			return i, nil
		}
	}
	return 0, errf("unbound attribute %q (exprId %d)", ref.Name, ref.ExprID)
}
