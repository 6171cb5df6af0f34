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

// Package aggregate implements the global hash-aggregation transform
// (§4.6): a bounded state table keyed by the grouping tuple, flushed by
// row-count or by elapsed time.
package aggregate

import (
	"strconv"
	"strings"
	"time"

	"github.com/flowetl/flowetl/internal/planner"
	"github.com/flowetl/flowetl/internal/row"
	"github.com/flowetl/flowetl/internal/value"
)

// DefaultMaxRows and DefaultInterval are the aggregate transform's
// defaults (§4.6), carried over from the original engine's task
// configuration (max_rows=3_000_000, interval_ms=5_000).
const (
	DefaultMaxRows  = 3_000_000
	DefaultInterval = 5 * time.Second
)

// group is one state-table entry: the owned group-key values (for
// building the emitted row) plus one accumulator per aggregate call.
type group struct {
	key    []value.Value
	states []state
}

// Aggregator is the runtime counterpart of a planner.AggregateSpec: it
// owns the state table and knows how to update it per input row and flush
// it into output rows.
type Aggregator struct {
	spec      *planner.AggregateSpec
	maxRows   int
	interval  time.Duration
	table     map[string]*group
	lastFlush time.Time
}

// New builds an Aggregator for spec. maxRows <= 0 and interval <= 0 fall
// back to the §4.6 defaults.
func New(spec *planner.AggregateSpec, maxRows int, interval time.Duration) *Aggregator {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Aggregator{
		spec:      spec,
		maxRows:   maxRows,
		interval:  interval,
		table:     make(map[string]*group),
		lastFlush: time.Now(),
	}
}

// Update evaluates the grouping expressions against r to find or create
// the group's state row, then updates every aggregate call's accumulator
// against r (§4.6's update path).
func (a *Aggregator) Update(r row.Row) {
	key := make([]value.Value, len(a.spec.GroupBy))
	for i, g := range a.spec.GroupBy {
		key[i] = g.Eval(r)
	}
	k := encodeKey(key)

	g, ok := a.table[k]
	if !ok {
		states := make([]state, len(a.spec.Aggs))
		for i, agg := range a.spec.Aggs {
			// agg.Name is one the parser's aggregate extraction
			// recognized; a failure here means the planner built a bad
			// spec.
			st, err := newState(agg.Name, agg.ArgTypes)
			if err != nil {
				panic(err)
			}
			states[i] = st
		}
		g = &group{key: key, states: states}
		a.table[k] = g
	}

	for i, agg := range a.spec.Aggs {
		args := make([]value.Value, len(agg.Args))
		for j, ae := range agg.Args {
			args[j] = ae.Eval(r)
		}
		g.states[i].update(args)
	}
}

// Len reports the current state-table size (§4.6's max_rows trigger).
func (a *Aggregator) Len() int { return len(a.table) }

// NeedsFlush reports whether the max_rows trigger has fired.
func (a *Aggregator) NeedsFlush() bool { return len(a.table) >= a.maxRows }

// DueByInterval reports whether interval_ms has elapsed since the last
// flush (§4.6's second trigger, normally signalled by the time service).
func (a *Aggregator) DueByInterval(now time.Time) bool {
	return len(a.table) > 0 && now.Sub(a.lastFlush) >= a.interval
}

// Flush emits one output row per group key and clears the state table
// (§4.6: "After flush, the state table is cleared").
func (a *Aggregator) Flush() []*row.GenericRow {
	out := make([]*row.GenericRow, 0, len(a.table))
	for _, g := range a.table {
		combined := make([]value.Value, 0, len(g.key)+len(g.states))
		combined = append(combined, g.key...)
		for i, st := range g.states {
			combined = append(combined, st.result(a.spec.Aggs[i].ResultType))
		}
		stateRow := row.WrapGenericRow(combined)

		result := make([]value.Value, len(a.spec.ResultExprs))
		for i, re := range a.spec.ResultExprs {
			result[i] = re.Eval(stateRow)
		}
		out = append(out, row.WrapGenericRow(result))
	}
	a.table = make(map[string]*group)
	a.lastFlush = time.Now()
	return out
}

// encodeKey builds a map key from a group-by tuple. Two tuples compare
// equal under Aggregator grouping iff their encodings are byte-identical,
// which holds for every Value kind this engine supports since each cell is
// written as its kind byte followed by hashBytes' rendering in Go-quoted
// form, which is self-delimited.
func encodeKey(key []value.Value) string {
	var b strings.Builder
	for _, v := range key {
		if v.IsNull() {
			b.WriteString("\x00N\x01")
			continue
		}
		b.WriteByte(byte(v.Kind()))
		b.WriteString(strconv.Quote(string(hashBytes(v))))
		b.WriteByte('\x01')
	}
	return b.String()
}
