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

package dataframe

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowetl/flowetl/internal/schema"
)

func TestLoadNDJSON_CoercesFieldsBySchema(t *testing.T) {
	sch := schema.Schema{
		{Name: "id", DataType: schema.Int},
		{Name: "name", DataType: schema.String},
	}
	input := strings.NewReader(`{"id":1,"name":"a"}
{"id":2,"name":"b"}
`)
	df, err := LoadNDJSON(input, sch)
	require.NoError(t, err)
	require.Len(t, df.Rows, 2)
	assert.Equal(t, int32(1), df.Rows[0].Get(0).GetInt())
	assert.Equal(t, "b", df.Rows[1].Get(1).GetString())
}

func TestQuery_ConstantSelectRunsWithoutTable(t *testing.T) {
	out, err := Query(Empty(), "SELECT 1 + 1 AS two")
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	assert.Equal(t, int32(2), out.Rows[0].Get(0).GetInt())
}

func TestQuery_FiltersAndProjectsLoadedRows(t *testing.T) {
	sch := schema.Schema{
		{Name: "id", DataType: schema.Int},
		{Name: "name", DataType: schema.String},
	}
	input := strings.NewReader(`{"id":1,"name":"a"}
{"id":2,"name":"b"}
{"id":3,"name":"c"}
`)
	df, err := LoadNDJSON(input, sch)
	require.NoError(t, err)

	out, err := Query(df, "SELECT name FROM tbl WHERE id >= 2")
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "b", out.Rows[0].Get(0).GetString())
	assert.Equal(t, "c", out.Rows[1].Get(0).GetString())

	var buf bytes.Buffer
	require.NoError(t, out.WriteNDJSON(&buf))
	assert.Equal(t, "{\"name\":\"b\"}\n{\"name\":\"c\"}\n", buf.String())
}

func TestQuery_AggregateFlushesOnceAtClose(t *testing.T) {
	sch := schema.Schema{
		{Name: "k", DataType: schema.String},
		{Name: "v", DataType: schema.Int},
	}
	input := strings.NewReader(`{"k":"a","v":1}
{"k":"a","v":2}
{"k":"b","v":5}
`)
	df, err := LoadNDJSON(input, sch)
	require.NoError(t, err)

	out, err := Query(df, "SELECT k, sum(v) AS total FROM tbl GROUP BY k")
	require.NoError(t, err)
	require.Len(t, out.Rows, 2)

	totals := map[string]int64{}
	for _, r := range out.Rows {
		totals[r.Get(0).GetString()] = r.Get(1).GetLong()
	}
	assert.Equal(t, int64(3), totals["a"])
	assert.Equal(t, int64(5), totals["b"])
}
