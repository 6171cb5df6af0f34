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

package aggregate

import (
	"fmt"
	"strconv"

	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/value"
)

// state is one aggregate function's per-key accumulator (§4.6: "a state
// row, one per aggregate function"). update is called once per input row
// that reaches this group; result is called only at flush.
type state interface {
	update(args []value.Value)
	result(resultType schema.DataType) value.Value
}

// newState constructs the zero state for one aggregate call, dispatched by
// function name (already lower-cased; only names the parser's aggregate
// extraction recognizes become aggregate calls, so unknown names are a
// planner bug, not a runtime condition).
func newState(name string, argTypes []schema.DataType) (state, error) {
	switch name {
	case "count":
		return &countState{}, nil
	case "count_distinct":
		return &distinctState{hll: newHyperLogLog()}, nil
	case "sum":
		return &sumState{}, nil
	case "min":
		return &minMaxState{isMin: true}, nil
	case "max":
		return &minMaxState{isMin: false}, nil
	case "avg":
		return &avgState{}, nil
	case "approx_count_distinct":
		return &distinctState{hll: newHyperLogLog()}, nil
	case "approx_percentile":
		return &percentileState{digest: newTDigest(), quantile: 0.5}, nil
	default:
		return nil, fmt.Errorf("aggregate: unsupported function %q", name)
	}
}

// countState implements count(*) (no args: every row counts) and
// count(expr) (only non-null arg values count).
type countState struct{ n int64 }

func (s *countState) update(args []value.Value) {
	if len(args) == 0 || !args[0].IsNull() {
		s.n++
	}
}
func (s *countState) result(schema.DataType) value.Value { return value.NewLong(s.n) }

// distinctState backs both count_distinct and approx_count_distinct:
// §4.6 specifies count_distinct itself is sketch-based (HLL), not exact.
type distinctState struct{ hll *hyperLogLog }

func (s *distinctState) update(args []value.Value) {
	if len(args) == 0 || args[0].IsNull() {
		return
	}
	s.hll.Add(hashBytes(args[0]))
}
func (s *distinctState) result(schema.DataType) value.Value {
	return value.NewLong(int64(s.hll.Estimate()))
}

type sumState struct {
	sum  float64
	seen bool
}

func (s *sumState) update(args []value.Value) {
	if len(args) == 0 || args[0].IsNull() {
		return
	}
	s.sum += args[0].AsFloat64()
	s.seen = true
}
func (s *sumState) result(resultType schema.DataType) value.Value {
	if !s.seen {
		return value.Null
	}
	return numericFromFloat64(s.sum, resultType)
}

type minMaxState struct {
	isMin bool
	v     value.Value
	seen  bool
}

func (s *minMaxState) update(args []value.Value) {
	if len(args) == 0 || args[0].IsNull() {
		return
	}
	if !s.seen {
		s.v, s.seen = args[0], true
		return
	}
	c := value.Compare(args[0], s.v)
	if (s.isMin && c < 0) || (!s.isMin && c > 0) {
		s.v = args[0]
	}
}
func (s *minMaxState) result(schema.DataType) value.Value {
	if !s.seen {
		return value.Null
	}
	return s.v
}

type avgState struct {
	sum   float64
	count int64
}

func (s *avgState) update(args []value.Value) {
	if len(args) == 0 || args[0].IsNull() {
		return
	}
	s.sum += args[0].AsFloat64()
	s.count++
}
func (s *avgState) result(resultType schema.DataType) value.Value {
	if s.count == 0 {
		return value.Null
	}
	return numericFromFloat64(s.sum/float64(s.count), resultType)
}

// percentileState backs approx_percentile(value, quantile): quantile is
// latched from the first update whose second argument is non-null, and
// every later update only feeds the digest. The analyzer does not check
// that the second argument is a literal; without one the median (0.5) is
// used.
type percentileState struct {
	digest   *tDigest
	quantile float64
	latched  bool
}

func (s *percentileState) update(args []value.Value) {
	if len(args) == 0 || args[0].IsNull() {
		return
	}
	if !s.latched && len(args) > 1 && !args[1].IsNull() {
		s.quantile = args[1].AsFloat64()
		s.latched = true
	}
	s.digest.Add(args[0].AsFloat64())
}
func (s *percentileState) result(resultType schema.DataType) value.Value {
	return numericFromFloat64(s.digest.Quantile(s.quantile), resultType)
}

func numericFromFloat64(f float64, t schema.DataType) value.Value {
	switch {
	case t.Equal(schema.Int):
		return value.NewInt(int32(f))
	case t.Equal(schema.Long):
		return value.NewLong(int64(f))
	case t.Equal(schema.Float):
		return value.NewFloat(float32(f))
	default:
		return value.NewDouble(f)
	}
}

// hashBytes produces a stable byte encoding of v for feeding into a
// HyperLogLog sketch: the exact bytes don't need to be reversible, only
// distinct values must hash to distinct inputs.
func hashBytes(v value.Value) []byte {
	switch v.Kind() {
	case value.KindString:
		return []byte(v.GetString())
	case value.KindBinary:
		return v.GetBinary()
	case value.KindInt:
		return []byte(strconv.FormatInt(int64(v.GetInt()), 10))
	case value.KindLong:
		return []byte(strconv.FormatInt(v.GetLong(), 10))
	case value.KindTimestamp:
		return []byte(strconv.FormatInt(v.GetTimestamp(), 10))
	case value.KindFloat:
		return []byte(strconv.FormatFloat(float64(v.GetFloat()), 'g', -1, 32))
	case value.KindDouble:
		return []byte(strconv.FormatFloat(v.GetDouble(), 'g', -1, 64))
	case value.KindBoolean:
		if v.GetBoolean() {
			return []byte{1}
		}
		return []byte{0}
	case value.KindArray:
		return []byte(encodeKey(v.GetArray()))
	case value.KindStruct:
		return []byte(encodeKey(v.GetStruct()))
	default:
		return []byte(fmt.Sprintf("%v", v))
	}
}
