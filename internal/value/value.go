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

// Package value implements the engine's tagged-union runtime value: the
// dynamically-typed payload carried by every Row cell and produced by every
// physical expression evaluation.
package value

import (
	"fmt"

	"github.com/spf13/cast"
)

// Kind discriminates the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindString
	KindBoolean
	KindBinary
	KindArray
	KindStruct
	KindTimestamp
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	case KindBinary:
		return "binary"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Value is the engine's dynamically-typed cell payload. The zero Value is
// Null. Accessors are partial: calling the wrong accessor for the held Kind
// is a contract violation and panics, matching the specification's "trusted
// caller" model (§3) rather than returning an error for every read.
type Value struct {
	kind Kind

	i   int32
	l   int64
	f   float32
	d   float64
	b   bool
	ts  int64
	str *string
	bin *[]byte
	arr *[]Value
	srt *[]Value
}

// Null is the shared Null value.
var Null = Value{kind: KindNull}

func NewInt(v int32) Value    { return Value{kind: KindInt, i: v} }
func NewLong(v int64) Value   { return Value{kind: KindLong, l: v} }
func NewFloat(v float32) Value { return Value{kind: KindFloat, f: v} }
func NewDouble(v float64) Value { return Value{kind: KindDouble, d: v} }
func NewBoolean(v bool) Value { return Value{kind: KindBoolean, b: v} }
func NewTimestamp(microsSinceEpoch int64) Value {
	return Value{kind: KindTimestamp, ts: microsSinceEpoch}
}
func NewString(v string) Value { return Value{kind: KindString, str: &v} }
func NewBinary(v []byte) Value { return Value{kind: KindBinary, bin: &v} }
func NewArray(v []Value) Value { return Value{kind: KindArray, arr: &v} }
func NewStruct(v []Value) Value { return Value{kind: KindStruct, srt: &v} }

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == KindNull }

func (v Value) GetInt() int32 {
	v.mustBe(KindInt)
	return v.i
}
func (v Value) GetLong() int64 {
	v.mustBe(KindLong)
	return v.l
}
func (v Value) GetFloat() float32 {
	v.mustBe(KindFloat)
	return v.f
}
func (v Value) GetDouble() float64 {
	v.mustBe(KindDouble)
	return v.d
}
func (v Value) GetBoolean() bool {
	v.mustBe(KindBoolean)
	return v.b
}
func (v Value) GetTimestamp() int64 {
	v.mustBe(KindTimestamp)
	return v.ts
}
func (v Value) GetString() string {
	v.mustBe(KindString)
	return *v.str
}
func (v Value) GetBinary() []byte {
	v.mustBe(KindBinary)
	return *v.bin
}
func (v Value) GetArray() []Value {
	v.mustBe(KindArray)
	return *v.arr
}
func (v Value) GetStruct() []Value {
	v.mustBe(KindStruct)
	return *v.srt
}

func (v Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("value: accessor for %s called on a %s value", k, v.kind))
	}
}

// AsFloat64 widens any numeric variant to float64; used by aggregate
// functions and arithmetic specialization that operate in double precision.
// Panics on a non-numeric, non-null Kind.
func (v Value) AsFloat64() float64 {
	switch v.kind {
	case KindNull:
		return 0
	case KindInt:
		return float64(v.i)
	case KindLong:
		return float64(v.l)
	case KindFloat:
		return float64(v.f)
	case KindDouble:
		return v.d
	default:
		panic(fmt.Sprintf("value: AsFloat64 called on non-numeric %s value", v.kind))
	}
}

// FromAny converts a raw decoded value (as produced by a Deserializer) into
// a Value of the requested Kind, using spf13/cast for the numeric/string
// coercions — the same conversion library the teacher leans on throughout
// its aggregator and functions packages.
func FromAny(raw interface{}, kind Kind) (Value, error) {
	if raw == nil {
		return Null, nil
	}
	switch kind {
	case KindInt:
		n, err := cast.ToInt32E(raw)
		if err != nil {
			return Null, err
		}
		return NewInt(n), nil
	case KindLong:
		n, err := cast.ToInt64E(raw)
		if err != nil {
			return Null, err
		}
		return NewLong(n), nil
	case KindFloat:
		n, err := cast.ToFloat32E(raw)
		if err != nil {
			return Null, err
		}
		return NewFloat(n), nil
	case KindDouble:
		n, err := cast.ToFloat64E(raw)
		if err != nil {
			return Null, err
		}
		return NewDouble(n), nil
	case KindBoolean:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return Null, err
		}
		return NewBoolean(b), nil
	case KindString:
		s, err := cast.ToStringE(raw)
		if err != nil {
			return Null, err
		}
		return NewString(s), nil
	case KindBinary:
		if b, ok := raw.([]byte); ok {
			return NewBinary(b), nil
		}
		s, err := cast.ToStringE(raw)
		if err != nil {
			return Null, err
		}
		return NewBinary([]byte(s)), nil
	case KindTimestamp:
		t, err := cast.ToTimeE(raw)
		if err != nil {
			// fall back: integer microseconds since epoch
			n, err2 := cast.ToInt64E(raw)
			if err2 != nil {
				return Null, err
			}
			return NewTimestamp(n), nil
		}
		return NewTimestamp(t.UnixMicro()), nil
	default:
		return Null, fmt.Errorf("value: unsupported target kind %s", kind)
	}
}

// Equal implements value-based equality. Null equals only Null.
func Equal(a, b Value) bool {
	return Compare(a, b) == 0 && a.kind == b.kind
}

// Compare orders values: Null sorts below every other variant; two
// non-null values of the same Kind use their natural order. Comparing two
// non-null values of differing Kind compares their float64 widening when
// both are numeric, otherwise compares by Kind ordinal (a conservative,
// total, but otherwise unspecified order — the analyzer is expected to
// have coerced both sides to a common type before comparison reaches here).
func Compare(a, b Value) int {
	if a.IsNull() && b.IsNull() {
		return 0
	}
	if a.IsNull() {
		return -1
	}
	if b.IsNull() {
		return 1
	}
	if isNumeric(a.kind) && isNumeric(b.kind) {
		af, bf := a.AsFloat64(), b.AsFloat64()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	if a.kind != b.kind {
		if a.kind < b.kind {
			return -1
		}
		return 1
	}
	switch a.kind {
	case KindString:
		return compareOrdered(a.GetString(), b.GetString())
	case KindBoolean:
		return compareOrdered(boolRank(a.GetBoolean()), boolRank(b.GetBoolean()))
	case KindTimestamp:
		return compareOrdered(a.GetTimestamp(), b.GetTimestamp())
	case KindBinary:
		return compareOrdered(string(a.GetBinary()), string(b.GetBinary()))
	case KindArray, KindStruct:
		av, bv := elemsOf(a), elemsOf(b)
		n := len(av)
		if len(bv) < n {
			n = len(bv)
		}
		for i := 0; i < n; i++ {
			if c := Compare(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return compareOrdered(len(av), len(bv))
	default:
		return 0
	}
}

func elemsOf(v Value) []Value {
	if v.kind == KindArray {
		return v.GetArray()
	}
	return v.GetStruct()
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isNumeric(k Kind) bool {
	return k == KindInt || k == KindLong || k == KindFloat || k == KindDouble
}

type ordered interface {
	~int | ~int32 | ~int64 | ~float64 | ~string
}

func compareOrdered[T ordered](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
