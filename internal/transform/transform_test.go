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

package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lp "github.com/flowetl/flowetl/internal/logicalplan"
	pe "github.com/flowetl/flowetl/internal/physicalexpr"
	"github.com/flowetl/flowetl/internal/planner"
	"github.com/flowetl/flowetl/internal/row"
	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/value"
)

// captureCollector records every row it receives, for assertions.
type captureCollector struct {
	rows   []row.Row
	closed bool
}

func (c *captureCollector) Collect(r row.Row) error {
	c.rows = append(c.rows, r.ToGenericRow())
	return nil
}
func (c *captureCollector) CheckTimer(nowMs int64) error { return nil }
func (c *captureCollector) Close() error                  { c.closed = true; return nil }

func idRow(id int32) *row.GenericRow {
	return row.WrapGenericRow([]value.Value{value.NewInt(id)})
}

func TestSQLTransform_ProjectPassesThrough(t *testing.T) {
	plan := &planner.Plan{
		Project:      []pe.Expr{&pe.BoundReference{Ordinal: 0, Type: schema.Int}},
		OutputSchema: schema.Schema{{Name: "id", DataType: schema.Int}},
	}
	out := &captureCollector{}
	tr := New(plan, out, nil)

	require.NoError(t, tr.Collect(idRow(1)))
	require.NoError(t, tr.Collect(idRow(2)))

	require.Len(t, out.rows, 2)
	assert.Equal(t, int32(1), out.rows[0].Get(0).GetInt())
	assert.Equal(t, int32(2), out.rows[1].Get(0).GetInt())
}

func TestSQLTransform_PreFilterDropsRows(t *testing.T) {
	cond := &pe.BinaryComparison{
		Left:  &pe.BoundReference{Ordinal: 0, Type: schema.Int},
		Right: &pe.Literal{V: value.NewInt(1), T: schema.Int},
		Op:    lp.OpGt,
	}
	plan := &planner.Plan{
		PreFilter:    cond,
		Project:      []pe.Expr{&pe.BoundReference{Ordinal: 0, Type: schema.Int}},
		OutputSchema: schema.Schema{{Name: "id", DataType: schema.Int}},
	}
	out := &captureCollector{}
	tr := New(plan, out, nil)

	require.NoError(t, tr.Collect(idRow(1)))
	require.NoError(t, tr.Collect(idRow(2)))

	require.Len(t, out.rows, 1)
	assert.Equal(t, int32(2), out.rows[0].Get(0).GetInt())
}

func TestSQLTransform_LimitStopsEmission(t *testing.T) {
	plan := &planner.Plan{
		Project:      []pe.Expr{&pe.BoundReference{Ordinal: 0, Type: schema.Int}},
		OutputSchema: schema.Schema{{Name: "id", DataType: schema.Int}},
		Limit:        2,
	}
	out := &captureCollector{}
	tr := New(plan, out, nil)

	for i := int32(1); i <= 5; i++ {
		require.NoError(t, tr.Collect(idRow(i)))
	}
	assert.Len(t, out.rows, 2)
}

func TestSQLTransform_DistinctDropsDuplicates(t *testing.T) {
	plan := &planner.Plan{
		Project:      []pe.Expr{&pe.BoundReference{Ordinal: 0, Type: schema.Int}},
		OutputSchema: schema.Schema{{Name: "id", DataType: schema.Int}},
		Distinct:     true,
	}
	out := &captureCollector{}
	tr := New(plan, out, nil)

	require.NoError(t, tr.Collect(idRow(1)))
	require.NoError(t, tr.Collect(idRow(1)))
	require.NoError(t, tr.Collect(idRow(2)))

	assert.Len(t, out.rows, 2)
}

func TestSQLTransform_CloseFlushesPartialAggregateState(t *testing.T) {
	spec := &planner.AggregateSpec{
		GroupBy:      []pe.Expr{&pe.BoundReference{Ordinal: 0, Type: schema.String}},
		GroupByTypes: []schema.DataType{schema.String},
		Aggs: []planner.AggExprSpec{
			{Name: "count", StateID: 0, ResultType: schema.Long},
		},
		ResultExprs: []pe.Expr{
			&pe.BoundReference{Ordinal: 0, Type: schema.String},
			&pe.BoundReference{Ordinal: 1, Type: schema.Long},
		},
		ResultSchema: schema.Schema{
			{Name: "k", DataType: schema.String},
			{Name: "c", DataType: schema.Long},
		},
	}
	plan := &planner.Plan{Aggregate: spec, Project: spec.ResultExprs, OutputSchema: spec.ResultSchema}
	out := &captureCollector{}
	tr := New(plan, out, nil)

	require.NoError(t, tr.Collect(row.WrapGenericRow([]value.Value{value.NewString("a")})))
	require.NoError(t, tr.Collect(row.WrapGenericRow([]value.Value{value.NewString("a")})))
	assert.Empty(t, out.rows)

	require.NoError(t, tr.Close())
	require.Len(t, out.rows, 1)
	assert.Equal(t, "a", out.rows[0].Get(0).GetString())
	assert.Equal(t, int64(2), out.rows[0].Get(1).GetLong())
	assert.True(t, out.closed)
}
