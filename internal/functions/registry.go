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

// Package functions is the scalar-function registry consulted by the
// analyzer's function-resolution rule (§4.2 rule 6) and evaluated by the
// physical FunctionCall expression (§4.4). It generalizes the teacher's
// functions.Registry (category/type/name lookup over a fixed interface)
// to operate on this engine's Value/DataType rather than
// map[string]interface{}.
package functions

import (
	"fmt"
	"strings"
	"sync"

	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/value"
)

// Function is the contract every built-in or user-registered scalar
// function implements.
type Function interface {
	Name() string
	MinArgs() int
	MaxArgs() int // -1 means unlimited
	// ReturnType computes the result DataType given the (already resolved)
	// argument types, and whether the result may be Null even when given
	// non-null args of the right type.
	ReturnType(argTypes []schema.DataType) (schema.DataType, bool)
	// Eval computes the function over already-evaluated argument values.
	// Per §4.1, the physical FunctionCall wrapper passes args through only
	// after checking whether propagation should short-circuit to Null;
	// functions that are Null-strict never see a Null argument.
	Eval(args []value.Value) (value.Value, error)
}

// Registry holds every built-in and custom Function, keyed case-
// insensitively by name, matching the teacher's case-insensitive function
// resolution.
type Registry struct {
	mu  sync.RWMutex
	fns map[string]Function
}

func NewRegistry() *Registry {
	r := &Registry{fns: make(map[string]Function)}
	registerBuiltins(r)
	return r
}

func (r *Registry) Register(fn Function) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[strings.ToLower(fn.Name())] = fn
}

func (r *Registry) Lookup(name string) (Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[strings.ToLower(name)]
	return fn, ok
}

// Default is the process-wide registry of built-in functions, extended by
// Register for custom UDFs (analogous to the teacher's global function
// registry used across SQL compilations).
var Default = NewRegistry()

// CheckArity validates argument count against a function's declared
// bounds, producing a §7 wrong-arity AnalysisError-shaped message.
func CheckArity(fn Function, n int) error {
	if n < fn.MinArgs() {
		return fmt.Errorf("function %s: expected at least %d args, got %d", fn.Name(), fn.MinArgs(), n)
	}
	if fn.MaxArgs() >= 0 && n > fn.MaxArgs() {
		return fmt.Errorf("function %s: expected at most %d args, got %d", fn.Name(), fn.MaxArgs(), n)
	}
	return nil
}
