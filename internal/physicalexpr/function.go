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

package physicalexpr

import (
	"github.com/flowetl/flowetl/internal/functions"
	"github.com/flowetl/flowetl/internal/row"
	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/value"
)

// nonStrict lists functions that want to see a Null argument rather than
// having the call short-circuit to Null before Eval runs (§4.1's
// "Null-strict unless declared otherwise").
var nonStrict = map[string]bool{
	"is_null":     true,
	"is_not_null": true,
	"coalesce":    true,
}

// FunctionCall evaluates a registered scalar function over its bound
// argument expressions, applying Null-strict short-circuiting unless the
// function is listed in nonStrict.
type FunctionCall struct {
	Fn     functions.Function
	Args   []Expr
	Type   schema.DataType
	Strict bool
}

// NewFunctionCall resolves name against the registry and wraps args,
// panicking only if the caller passed a name the analyzer didn't already
// validate to exist (a planner bug, not a runtime condition).
func NewFunctionCall(name string, args []Expr, resultType schema.DataType) *FunctionCall {
	fn, ok := functions.Default.Lookup(name)
	if !ok {
		panic("physicalexpr: unknown function " + name + " reached the physical planner")
	}
	return &FunctionCall{Fn: fn, Args: args, Type: resultType, Strict: !nonStrict[name]}
}

func (f *FunctionCall) Eval(r row.Row) value.Value {
	argv := make([]value.Value, len(f.Args))
	for i, a := range f.Args {
		argv[i] = a.Eval(r)
		if f.Strict && argv[i].IsNull() {
			return value.Null
		}
	}
	v, err := f.Fn.Eval(argv)
	if err != nil {
		return value.Null
	}
	return v
}
func (f *FunctionCall) DataType() schema.DataType { return f.Type }
