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

// Package dataframe implements the batch DataFrame façade (§2 "Batch
// DataFrame façade"): the in-process materialization the "sql" CLI
// subcommand runs one-shot queries against, reusing the same
// planner/transform machinery the streaming engine drives, just without a
// Source/Sink either side of it.
package dataframe

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/flowetl/flowetl/internal/planner"
	"github.com/flowetl/flowetl/internal/row"
	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/sink"
	"github.com/flowetl/flowetl/internal/timeservice"
	"github.com/flowetl/flowetl/internal/transform"
	"github.com/flowetl/flowetl/internal/value"
)

// DataFrame is a materialized, in-memory table: a schema plus every row,
// entirely held in process memory (the "batch" in "batch DataFrame
// façade" — no streaming, no subtasks, no graph).
type DataFrame struct {
	Schema schema.Schema
	Rows   []*row.GenericRow
}

// Empty returns a zero-row, zero-column DataFrame, the input a "sql"
// invocation with no loaded table runs constant-only queries against
// (e.g. "SELECT 1+1"), matching OneRowRelation semantics (§3).
func Empty() *DataFrame {
	return &DataFrame{}
}

// LoadNDJSON reads one JSON object per line, coercing each field by name
// against sch, building a DataFrame held entirely in memory.
func LoadNDJSON(r io.Reader, sch schema.Schema) (*DataFrame, error) {
	df := &DataFrame{Schema: sch}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(line), &obj); err != nil {
			return nil, fmt.Errorf("dataframe: parse row: %w", err)
		}
		values := make([]value.Value, len(sch))
		for i, f := range sch {
			raw, ok := obj[f.Name]
			if !ok || raw == nil || f.DataType.IsArray() || f.DataType.IsStruct() {
				values[i] = value.Null
				continue
			}
			v, err := value.FromAny(raw, valueKindOf(f.DataType))
			if err != nil {
				return nil, fmt.Errorf("dataframe: field %q: %w", f.Name, err)
			}
			values[i] = v
		}
		df.Rows = append(df.Rows, row.WrapGenericRow(values))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dataframe: %w", err)
	}
	return df, nil
}

// WriteNDJSON serializes every row as one JSON object per line.
func (df *DataFrame) WriteNDJSON(w io.Writer) error {
	serialize := sink.JSONRowSerializer(df.Schema)
	for _, r := range df.Rows {
		encoded, err := serialize(r)
		if err != nil {
			return err
		}
		if _, err := w.Write(encoded); err != nil {
			return err
		}
		if _, err := w.Write([]byte("\n")); err != nil {
			return err
		}
	}
	return nil
}

// valueKindOf maps a schema DataType to the value.Kind FromAny coerces
// raw JSON into; array/struct fields are left Null (NDJSON batch loading
// covers the scalar columns a generator or CSV-like source would produce,
// not nested structures).
func valueKindOf(dt schema.DataType) value.Kind {
	switch {
	case dt.Equal(schema.Int):
		return value.KindInt
	case dt.Equal(schema.Long):
		return value.KindLong
	case dt.Equal(schema.Float):
		return value.KindFloat
	case dt.Equal(schema.Double):
		return value.KindDouble
	case dt.Equal(schema.Boolean):
		return value.KindBoolean
	case dt.Equal(schema.Timestamp):
		return value.KindTimestamp
	case dt.Equal(schema.Binary):
		return value.KindBinary
	default:
		return value.KindString
	}
}

// collectingCollector gathers every row pushed to it, for Query's
// in-process materialization of a compiled plan's output.
type collectingCollector struct{ rows []*row.GenericRow }

func (c *collectingCollector) Collect(r row.Row) error {
	c.rows = append(c.rows, r.ToGenericRow())
	return nil
}
func (c *collectingCollector) CheckTimer(nowMs int64) error { return nil }
func (c *collectingCollector) Close() error                 { return nil }

// Query compiles sql against df's schema (bound as relation "tbl", §6) and
// runs every row of df through it in one batch, returning the result as a
// new, fully materialized DataFrame. A query with no FROM clause (e.g. a
// constant SELECT) runs once against row.EmptyRow, matching OneRowRelation
// (§3): the input DataFrame's rows are ignored in that case.
func Query(df *DataFrame, sql string) (*DataFrame, error) {
	if df == nil {
		df = Empty()
	}
	plans, err := planner.CompileSQL(sql, map[string]schema.Schema{"tbl": df.Schema})
	if err != nil {
		return nil, err
	}

	out := &collectingCollector{}
	times := timeservice.New()
	for _, p := range plans {
		var t *transform.SQLTransform
		if p.Aggregate != nil {
			// Batch mode never polls the time service, so the interval
			// trigger never fires on its own; the aggregate state flushes
			// once, at Close, after every row has been folded in.
			const neverMs = int64(24 * time.Hour / time.Millisecond)
			t = transform.NewWithTriggers(p, out, times, 0, neverMs)
		} else {
			t = transform.New(p, out, times)
		}

		if p.SourceName == "" && p.Join == nil {
			if err := t.Collect(row.EmptyRow); err != nil {
				return nil, err
			}
		} else {
			for _, r := range df.Rows {
				if err := t.Collect(r); err != nil {
					return nil, err
				}
			}
		}
		if err := t.Close(); err != nil {
			return nil, err
		}
	}

	resultSchema := plans[0].OutputSchema
	return &DataFrame{Schema: resultSchema, Rows: out.rows}, nil
}
