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

package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowetl/flowetl/internal/row"
	"github.com/flowetl/flowetl/internal/schema"
)

type countingCollector struct{ rows int }

func (c *countingCollector) Collect(r row.Row) error      { c.rows++; return nil }
func (c *countingCollector) CheckTimer(nowMs int64) error { return nil }
func (c *countingCollector) Close() error                 { return nil }

func TestShares_SplitsRemainderAcrossLeadingSubtasks(t *testing.T) {
	// S6: number_of_rows = 1000, parallelism = 3 -> {334, 333, 333}.
	shares := Shares(1000, 3)
	assert.Equal(t, []int64{334, 333, 333}, shares)

	total := int64(0)
	for _, s := range shares {
		total += s
	}
	assert.Equal(t, int64(1000), total)
}

func TestShares_EvenSplit(t *testing.T) {
	assert.Equal(t, []int64{25, 25, 25, 25}, Shares(100, 4))
}

func TestGenerator_ZeroRowsImmediatelyEnds(t *testing.T) {
	g := New(GeneratorConfig{
		Schema:       schema.Schema{{Name: "id", DataType: schema.Int}},
		NumberOfRows: 0,
	})
	require.NoError(t, g.Open())
	out := &countingCollector{}
	status, err := g.PollNext(out)
	require.NoError(t, err)
	assert.Equal(t, End, status)
	assert.Equal(t, 0, out.rows)
}

func TestGenerator_UnboundedKeepsEmitting(t *testing.T) {
	g := New(GeneratorConfig{
		Schema:    schema.Schema{{Name: "id", DataType: schema.Int}},
		Unbounded: true,
	})
	require.NoError(t, g.Open())
	out := &countingCollector{}
	for i := 0; i < 10; i++ {
		status, err := g.PollNext(out)
		require.NoError(t, err)
		require.Equal(t, More, status)
	}
	assert.Equal(t, 10, out.rows)
}

func TestGenerator_EmitsExactlyNumberOfRows(t *testing.T) {
	g := New(GeneratorConfig{
		Schema:       schema.Schema{{Name: "id", DataType: schema.Int}, {Name: "name", DataType: schema.String}},
		NumberOfRows: 5,
		Seed:         42,
	})
	require.NoError(t, g.Open())
	out := &countingCollector{}
	for {
		status, err := g.PollNext(out)
		require.NoError(t, err)
		if status == End {
			break
		}
	}
	assert.Equal(t, 5, out.rows)
	require.NoError(t, g.Close())
}

func TestGenerator_DeterministicWithSameSeed(t *testing.T) {
	sch := schema.Schema{{Name: "v", DataType: schema.Double}}
	g1 := New(GeneratorConfig{Schema: sch, NumberOfRows: 3, Seed: 7})
	g2 := New(GeneratorConfig{Schema: sch, NumberOfRows: 3, Seed: 7})

	var rows1, rows2 []*row.GenericRow
	for i := 0; i < 3; i++ {
		rows1 = append(rows1, g1.generateRow())
		rows2 = append(rows2, g2.generateRow())
	}
	for i := range rows1 {
		assert.Equal(t, rows1[i].Get(0).GetDouble(), rows2[i].Get(0).GetDouble())
	}
}
