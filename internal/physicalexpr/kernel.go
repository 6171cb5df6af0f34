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

// Package physicalexpr implements the bound, type-specialized physical
// expression tree (§3, §4.4) evaluated once per row. This file holds the
// pure, row-independent evaluation kernel shared by the physical operators
// and by the optimizer's constant-folding rule (which evaluates literal-
// only logical subtrees without needing a bound row at all).
package physicalexpr

import (
	"strconv"

	"github.com/flowetl/flowetl/internal/logicalplan"
	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/value"
)

// EvalArithmetic implements §4.1: if either operand is Null the result is
// Null; otherwise the natural arithmetic result in resultType, with
// divide/modulo by zero yielding Null (never an error, §8).
func EvalArithmetic(op logicalplan.BinaryOp, a, b value.Value, resultType schema.DataType) value.Value {
	if a.IsNull() || b.IsNull() {
		return value.Null
	}
	af, bf := a.AsFloat64(), b.AsFloat64()
	var r float64
	switch op {
	case logicalplan.OpPlus:
		r = af + bf
	case logicalplan.OpMinus:
		r = af - bf
	case logicalplan.OpMultiply:
		r = af * bf
	case logicalplan.OpDivide:
		if bf == 0 {
			return value.Null
		}
		r = af / bf
	case logicalplan.OpModulo:
		if bf == 0 {
			return value.Null
		}
		r = float64(int64(af) % int64(bf))
	default:
		panic("physicalexpr: not an arithmetic op")
	}
	return castFloatTo(r, resultType)
}

// DataType is not comparable (a struct type nests a Schema slice), so every
// dispatch below compares via Equal rather than a switch on DataType itself.
func castFloatTo(r float64, t schema.DataType) value.Value {
	switch {
	case t.Equal(schema.Int):
		return value.NewInt(int32(r))
	case t.Equal(schema.Long):
		return value.NewLong(int64(r))
	case t.Equal(schema.Float):
		return value.NewFloat(float32(r))
	default:
		return value.NewDouble(r)
	}
}

// EvalComparison implements §4.1's strict comparison semantics: Null in,
// Null out; otherwise value.Compare decides.
func EvalComparison(op logicalplan.BinaryOp, a, b value.Value) value.Value {
	if a.IsNull() || b.IsNull() {
		return value.Null
	}
	c := value.Compare(a, b)
	var r bool
	switch op {
	case logicalplan.OpEq:
		r = c == 0
	case logicalplan.OpNotEq:
		r = c != 0
	case logicalplan.OpLt:
		r = c < 0
	case logicalplan.OpLtEq:
		r = c <= 0
	case logicalplan.OpGt:
		r = c > 0
	case logicalplan.OpGtEq:
		r = c >= 0
	default:
		panic("physicalexpr: not a comparison op")
	}
	return value.NewBoolean(r)
}

// EvalAnd implements SQL tri-valued AND: false AND X = false regardless of
// X; true AND true = true; otherwise Null. left is evaluated eagerly by
// the caller; right is only evaluated if left isn't already
// short-circuiting (callers pass a thunk so this stays non-allocating in
// the common case — see And.Eval).
func EvalAnd(left value.Value, rightFn func() value.Value) value.Value {
	if !left.IsNull() && !left.GetBoolean() {
		return value.NewBoolean(false)
	}
	right := rightFn()
	if !right.IsNull() && !right.GetBoolean() {
		return value.NewBoolean(false)
	}
	if left.IsNull() || right.IsNull() {
		return value.Null
	}
	return value.NewBoolean(true)
}

// EvalOr implements SQL tri-valued OR.
func EvalOr(left value.Value, rightFn func() value.Value) value.Value {
	if !left.IsNull() && left.GetBoolean() {
		return value.NewBoolean(true)
	}
	right := rightFn()
	if !right.IsNull() && right.GetBoolean() {
		return value.NewBoolean(true)
	}
	if left.IsNull() || right.IsNull() {
		return value.Null
	}
	return value.NewBoolean(false)
}

// EvalCast implements §4.1/§8's cast contract: Null casts to Null; casting
// a non-null value of `from` to `to` never fails — a string that fails to
// parse numerically yields Null rather than an error.
func EvalCast(v value.Value, to schema.DataType) value.Value {
	if v.IsNull() {
		return value.Null
	}
	if v.Kind() == kindOf(to) {
		return v
	}
	switch {
	case to.Equal(schema.Int):
		n, ok := toInt64(v)
		if !ok {
			return value.Null
		}
		return value.NewInt(int32(n))
	case to.Equal(schema.Long):
		n, ok := toInt64(v)
		if !ok {
			return value.Null
		}
		return value.NewLong(n)
	case to.Equal(schema.Float):
		f, ok := toFloat64(v)
		if !ok {
			return value.Null
		}
		return value.NewFloat(float32(f))
	case to.Equal(schema.Double):
		f, ok := toFloat64(v)
		if !ok {
			return value.Null
		}
		return value.NewDouble(f)
	case to.Equal(schema.String):
		return value.NewString(toStringValue(v))
	case to.Equal(schema.Boolean):
		b, ok := toBool(v)
		if !ok {
			return value.Null
		}
		return value.NewBoolean(b)
	case to.Equal(schema.Timestamp):
		n, ok := toInt64(v)
		if !ok {
			return value.Null
		}
		return value.NewTimestamp(n)
	default:
		return value.Null
	}
}

func kindOf(t schema.DataType) value.Kind {
	switch {
	case t.Equal(schema.Int):
		return value.KindInt
	case t.Equal(schema.Long):
		return value.KindLong
	case t.Equal(schema.Float):
		return value.KindFloat
	case t.Equal(schema.Double):
		return value.KindDouble
	case t.Equal(schema.String):
		return value.KindString
	case t.Equal(schema.Boolean):
		return value.KindBoolean
	case t.Equal(schema.Binary):
		return value.KindBinary
	case t.Equal(schema.Timestamp):
		return value.KindTimestamp
	default:
		return value.KindNull
	}
}

func toInt64(v value.Value) (int64, bool) {
	switch v.Kind() {
	case value.KindInt, value.KindLong, value.KindFloat, value.KindDouble:
		return int64(v.AsFloat64()), true
	case value.KindTimestamp:
		return v.GetTimestamp(), true
	case value.KindString:
		n, err := strconv.ParseInt(v.GetString(), 10, 64)
		if err != nil {
			f, err2 := strconv.ParseFloat(v.GetString(), 64)
			if err2 != nil {
				return 0, false
			}
			return int64(f), true
		}
		return n, true
	case value.KindBoolean:
		if v.GetBoolean() {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func toFloat64(v value.Value) (float64, bool) {
	switch v.Kind() {
	case value.KindInt, value.KindLong, value.KindFloat, value.KindDouble:
		return v.AsFloat64(), true
	case value.KindString:
		f, err := strconv.ParseFloat(v.GetString(), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case value.KindBoolean:
		if v.GetBoolean() {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func toBool(v value.Value) (bool, bool) {
	switch v.Kind() {
	case value.KindBoolean:
		return v.GetBoolean(), true
	case value.KindString:
		b, err := strconv.ParseBool(v.GetString())
		if err != nil {
			return false, false
		}
		return b, true
	case value.KindInt, value.KindLong, value.KindFloat, value.KindDouble:
		return v.AsFloat64() != 0, true
	default:
		return false, false
	}
}

func toStringValue(v value.Value) string {
	switch v.Kind() {
	case value.KindString:
		return v.GetString()
	case value.KindBoolean:
		return strconv.FormatBool(v.GetBoolean())
	case value.KindInt:
		return strconv.FormatInt(int64(v.GetInt()), 10)
	case value.KindLong:
		return strconv.FormatInt(v.GetLong(), 10)
	case value.KindFloat:
		return strconv.FormatFloat(float64(v.GetFloat()), 'g', -1, 32)
	case value.KindDouble:
		return strconv.FormatFloat(v.GetDouble(), 'g', -1, 64)
	case value.KindTimestamp:
		return strconv.FormatInt(v.GetTimestamp(), 10)
	case value.KindBinary:
		return string(v.GetBinary())
	default:
		return ""
	}
}
