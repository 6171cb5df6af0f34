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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowetl/flowetl/internal/planner"
	pe "github.com/flowetl/flowetl/internal/physicalexpr"
	"github.com/flowetl/flowetl/internal/row"
	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/value"
)

// deviceSumSpec builds `SELECT device, sum(temperature), count(*) FROM t
// GROUP BY device` as an already-bound AggregateSpec, bypassing the SQL
// front end to isolate the aggregator's state-table behavior.
func deviceSumSpec() *planner.AggregateSpec {
	groupBy := []pe.Expr{&pe.BoundReference{Ordinal: 0, Type: schema.String}}
	sumArg := &pe.BoundReference{Ordinal: 1, Type: schema.Double}

	aggs := []planner.AggExprSpec{
		{Name: "sum", StateID: 0, Args: []pe.Expr{sumArg}, ArgTypes: []schema.DataType{schema.Double}, ResultType: schema.Double},
		{Name: "count", StateID: 1, ResultType: schema.Long},
	}

	// Result row layout after a flush is (group-key..., agg-state...):
	// ordinal 0 = device, ordinal 1 = sum state, ordinal 2 = count state.
	resultExprs := []pe.Expr{
		&pe.BoundReference{Ordinal: 0, Type: schema.String},
		&pe.BoundReference{Ordinal: 1, Type: schema.Double},
		&pe.BoundReference{Ordinal: 2, Type: schema.Long},
	}

	return &planner.AggregateSpec{
		GroupBy:      groupBy,
		GroupByTypes: []schema.DataType{schema.String},
		Aggs:         aggs,
		ResultExprs:  resultExprs,
		ResultSchema: schema.Schema{
			{Name: "device", DataType: schema.String},
			{Name: "sum", DataType: schema.Double},
			{Name: "count", DataType: schema.Long},
		},
	}
}

func inputRow(device string, temp float64) *row.GenericRow {
	return row.WrapGenericRow([]value.Value{value.NewString(device), value.NewDouble(temp)})
}

func TestAggregator_SumAndCountPerGroup(t *testing.T) {
	agg := New(deviceSumSpec(), 0, 0)

	agg.Update(inputRow("aa", 25.5))
	agg.Update(inputRow("aa", 26.8))
	agg.Update(inputRow("bb", 22.3))

	require.Equal(t, 2, agg.Len())

	out := agg.Flush()
	require.Len(t, out, 2)

	byDevice := map[string]*row.GenericRow{}
	for _, r := range out {
		byDevice[r.Get(0).GetString()] = r
	}

	require.Contains(t, byDevice, "aa")
	assert.InDelta(t, 52.3, byDevice["aa"].Get(1).GetDouble(), 1e-9)
	assert.Equal(t, int64(2), byDevice["aa"].Get(2).GetLong())

	require.Contains(t, byDevice, "bb")
	assert.InDelta(t, 22.3, byDevice["bb"].Get(1).GetDouble(), 1e-9)
	assert.Equal(t, int64(1), byDevice["bb"].Get(2).GetLong())
}

func TestAggregator_FlushClearsStateTable(t *testing.T) {
	agg := New(deviceSumSpec(), 0, 0)
	agg.Update(inputRow("aa", 1))
	require.Equal(t, 1, agg.Len())
	agg.Flush()
	assert.Equal(t, 0, agg.Len())
}

func TestAggregator_NeedsFlushAtMaxRows(t *testing.T) {
	agg := New(deviceSumSpec(), 2, 0)
	agg.Update(inputRow("aa", 1))
	assert.False(t, agg.NeedsFlush())
	agg.Update(inputRow("bb", 1))
	assert.True(t, agg.NeedsFlush())
}

func TestAggregator_DueByInterval(t *testing.T) {
	agg := New(deviceSumSpec(), 0, 10*time.Millisecond)
	agg.Update(inputRow("aa", 1))
	assert.False(t, agg.DueByInterval(time.Now()))
	assert.True(t, agg.DueByInterval(time.Now().Add(20*time.Millisecond)))
}

func TestAggregator_NullsExcludedFromSumButCountedByCountStar(t *testing.T) {
	agg := New(deviceSumSpec(), 0, 0)
	agg.Update(row.WrapGenericRow([]value.Value{value.NewString("aa"), value.Null}))
	agg.Update(inputRow("aa", 5))

	out := agg.Flush()
	require.Len(t, out, 1)
	assert.InDelta(t, 5, out[0].Get(1).GetDouble(), 1e-9)
	assert.Equal(t, int64(2), out[0].Get(2).GetLong())
}

func TestHyperLogLog_EstimatesWithinTolerance(t *testing.T) {
	h := newHyperLogLog()
	const n = 10000
	seen := map[int]struct{}{}
	for i := 0; i < n; i++ {
		v := i % 8000 // introduce duplicates
		seen[v] = struct{}{}
		h.Add(hashBytes(value.NewLong(int64(v))))
	}
	est := h.Estimate()
	want := float64(len(seen))
	assert.InDelta(t, want, float64(est), want*0.1)
}

func TestTDigest_QuantileOrdering(t *testing.T) {
	d := newTDigest()
	for i := 1; i <= 1000; i++ {
		d.Add(float64(i))
	}
	p50 := d.Quantile(0.5)
	p90 := d.Quantile(0.9)
	assert.InDelta(t, 500, p50, 60)
	assert.InDelta(t, 900, p90, 60)
	assert.Less(t, p50, p90)
}
