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

package functions

import (
	"math"
	"strconv"
	"strings"

	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/value"
)

// baseFn gives every built-in its Name/MinArgs/MaxArgs bookkeeping without
// repeating it per type, matching the teacher's BaseFunction embedding
// pattern (functions/base.go).
type baseFn struct {
	name     string
	minArgs  int
	maxArgs  int
}

func (b baseFn) Name() string  { return b.name }
func (b baseFn) MinArgs() int  { return b.minArgs }
func (b baseFn) MaxArgs() int  { return b.maxArgs }

func registerBuiltins(r *Registry) {
	r.Register(notFn{baseFn{"not", 1, 1}})
	r.Register(isNullFn{baseFn{"is_null", 1, 1}})
	r.Register(isNotNullFn{baseFn{"is_not_null", 1, 1}})
	r.Register(upperFn{baseFn{"upper", 1, 1}})
	r.Register(lowerFn{baseFn{"lower", 1, 1}})
	r.Register(lengthFn{baseFn{"length", 1, 1}})
	r.Register(trimFn{baseFn{"trim", 1, 1}})
	r.Register(substringFn{baseFn{"substring", 2, 3}})
	r.Register(concatFn{baseFn{"concat", 1, -1}})
	r.Register(absFn{baseFn{"abs", 1, 1}})
	r.Register(roundFn{baseFn{"round", 1, 1}})
	r.Register(toStringFn{baseFn{"to_string", 1, 1}})
	r.Register(toIntFn{baseFn{"to_int", 1, 1}})
	r.Register(toLongFn{baseFn{"to_long", 1, 1}})
	r.Register(toDoubleFn{baseFn{"to_double", 1, 1}})
	r.Register(coalesceFn{baseFn{"coalesce", 1, -1}})
	r.Register(arrayFn{baseFn{"array", 0, -1}})
}

// ---- boolean / null-test functions ----

type notFn struct{ baseFn }

func (notFn) ReturnType([]schema.DataType) (schema.DataType, bool) { return schema.Boolean, true }
func (notFn) Eval(args []value.Value) (value.Value, error) {
	if args[0].IsNull() {
		return value.Null, nil
	}
	return value.NewBoolean(!args[0].GetBoolean()), nil
}

type isNullFn struct{ baseFn }

func (isNullFn) ReturnType([]schema.DataType) (schema.DataType, bool) { return schema.Boolean, false }
func (isNullFn) Eval(args []value.Value) (value.Value, error) {
	return value.NewBoolean(args[0].IsNull()), nil
}

type isNotNullFn struct{ baseFn }

func (isNotNullFn) ReturnType([]schema.DataType) (schema.DataType, bool) { return schema.Boolean, false }
func (isNotNullFn) Eval(args []value.Value) (value.Value, error) {
	return value.NewBoolean(!args[0].IsNull()), nil
}

// ---- string functions ----

type upperFn struct{ baseFn }

func (upperFn) ReturnType([]schema.DataType) (schema.DataType, bool) { return schema.String, true }
func (upperFn) Eval(args []value.Value) (value.Value, error) {
	return value.NewString(strings.ToUpper(args[0].GetString())), nil
}

type lowerFn struct{ baseFn }

func (lowerFn) ReturnType([]schema.DataType) (schema.DataType, bool) { return schema.String, true }
func (lowerFn) Eval(args []value.Value) (value.Value, error) {
	return value.NewString(strings.ToLower(args[0].GetString())), nil
}

type lengthFn struct{ baseFn }

func (lengthFn) ReturnType([]schema.DataType) (schema.DataType, bool) { return schema.Long, true }
func (lengthFn) Eval(args []value.Value) (value.Value, error) {
	return value.NewLong(int64(len(args[0].GetString()))), nil
}

type trimFn struct{ baseFn }

func (trimFn) ReturnType([]schema.DataType) (schema.DataType, bool) { return schema.String, true }
func (trimFn) Eval(args []value.Value) (value.Value, error) {
	return value.NewString(strings.TrimSpace(args[0].GetString())), nil
}

type substringFn struct{ baseFn }

func (substringFn) ReturnType([]schema.DataType) (schema.DataType, bool) { return schema.String, true }
func (substringFn) Eval(args []value.Value) (value.Value, error) {
	s := args[0].GetString()
	start := int(args[1].AsFloat64())
	if start < 0 {
		start = 0
	}
	if start > len(s) {
		start = len(s)
	}
	end := len(s)
	if len(args) == 3 {
		l := int(args[2].AsFloat64())
		if start+l < end {
			end = start + l
		}
	}
	return value.NewString(s[start:end]), nil
}

type concatFn struct{ baseFn }

func (concatFn) ReturnType([]schema.DataType) (schema.DataType, bool) { return schema.String, false }
func (concatFn) Eval(args []value.Value) (value.Value, error) {
	var sb strings.Builder
	for _, a := range args {
		if a.IsNull() {
			continue
		}
		sb.WriteString(stringify(a))
	}
	return value.NewString(sb.String()), nil
}

func stringify(v value.Value) string {
	switch v.Kind() {
	case value.KindString:
		return v.GetString()
	case value.KindInt, value.KindLong, value.KindFloat, value.KindDouble:
		return trimFloat(v.AsFloat64())
	case value.KindBoolean:
		if v.GetBoolean() {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

func trimFloat(f float64) string {
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ---- numeric functions ----

type absFn struct{ baseFn }

func (absFn) ReturnType(argTypes []schema.DataType) (schema.DataType, bool) {
	if len(argTypes) > 0 {
		return argTypes[0], true
	}
	return schema.Double, true
}
func (absFn) Eval(args []value.Value) (value.Value, error) {
	v := args[0]
	switch v.Kind() {
	case value.KindInt:
		n := v.GetInt()
		if n < 0 {
			n = -n
		}
		return value.NewInt(n), nil
	case value.KindLong:
		n := v.GetLong()
		if n < 0 {
			n = -n
		}
		return value.NewLong(n), nil
	case value.KindFloat:
		return value.NewFloat(float32(math.Abs(float64(v.GetFloat())))), nil
	default:
		return value.NewDouble(math.Abs(v.AsFloat64())), nil
	}
}

type roundFn struct{ baseFn }

func (roundFn) ReturnType([]schema.DataType) (schema.DataType, bool) { return schema.Long, true }
func (roundFn) Eval(args []value.Value) (value.Value, error) {
	return value.NewLong(int64(math.Round(args[0].AsFloat64()))), nil
}

// ---- conversion functions ----

type toStringFn struct{ baseFn }

func (toStringFn) ReturnType([]schema.DataType) (schema.DataType, bool) { return schema.String, true }
func (toStringFn) Eval(args []value.Value) (value.Value, error) {
	return value.NewString(stringify(args[0])), nil
}

type toIntFn struct{ baseFn }

func (toIntFn) ReturnType([]schema.DataType) (schema.DataType, bool) { return schema.Int, true }
func (toIntFn) Eval(args []value.Value) (value.Value, error) {
	return value.NewInt(int32(args[0].AsFloat64())), nil
}

type toLongFn struct{ baseFn }

func (toLongFn) ReturnType([]schema.DataType) (schema.DataType, bool) { return schema.Long, true }
func (toLongFn) Eval(args []value.Value) (value.Value, error) {
	return value.NewLong(int64(args[0].AsFloat64())), nil
}

type toDoubleFn struct{ baseFn }

func (toDoubleFn) ReturnType([]schema.DataType) (schema.DataType, bool) { return schema.Double, true }
func (toDoubleFn) Eval(args []value.Value) (value.Value, error) {
	return value.NewDouble(args[0].AsFloat64()), nil
}

// ---- conditional ----

type coalesceFn struct{ baseFn }

func (coalesceFn) ReturnType(argTypes []schema.DataType) (schema.DataType, bool) {
	if len(argTypes) > 0 {
		return argTypes[0], true
	}
	return schema.Double, true
}
func (coalesceFn) Eval(args []value.Value) (value.Value, error) {
	for _, a := range args {
		if !a.IsNull() {
			return a, nil
		}
	}
	return value.Null, nil
}

// ---- collection ----

// arrayFn exists so the analyzer can resolve an `array(...)` call's result
// type during logical analysis; the physical planner lowers the call to
// the specialized Collection expression rather than calling Eval below,
// which exists only as the registry-contract fallback (e.g. for a
// dataframe expression evaluated outside the streaming physical planner).
type arrayFn struct{ baseFn }

func (arrayFn) ReturnType(argTypes []schema.DataType) (schema.DataType, bool) {
	if len(argTypes) == 0 {
		return schema.Array(schema.Double), true
	}
	elem := argTypes[0]
	for _, t := range argTypes[1:] {
		elem = schema.PromotedType(elem, t)
	}
	return schema.Array(elem), false
}
func (arrayFn) Eval(args []value.Value) (value.Value, error) {
	return value.NewArray(args), nil
}
