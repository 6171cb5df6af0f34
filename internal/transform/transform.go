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

// Package transform implements the process-operator chain (§4.7): a
// FilterTransform/QueryTransform pair lowered from a compiled
// planner.Plan, exposed as a collector.Collector so it composes with
// sources, other transforms, and sinks without its callers caring which
// kind sits on either side.
package transform

import (
	"strconv"
	"strings"
	"time"

	"github.com/flowetl/flowetl/internal/aggregate"
	"github.com/flowetl/flowetl/internal/collector"
	"github.com/flowetl/flowetl/internal/planner"
	"github.com/flowetl/flowetl/internal/row"
	"github.com/flowetl/flowetl/internal/timeservice"
	"github.com/flowetl/flowetl/internal/value"
)

// SQLTransform is one compiled SQL transform instance (§4.4, §4.7): a
// pre-aggregate filter/projection, an optional global hash aggregation
// stage, and the row-count cap, wired to push its output into Next.
type SQLTransform struct {
	plan *planner.Plan
	next collector.Collector

	agg        *aggregate.Aggregator
	times      *timeservice.TimeService
	intervalMs int64

	distinctSeen map[string]struct{}
	emitted      int
	done         bool
}

// New builds a SQLTransform from a compiled plan, forwarding emitted rows
// to next. times is the shared time service this subtask chain's source
// driver polls (§4.12); it may be nil for a non-aggregate transform, which
// never registers timers.
func New(plan *planner.Plan, next collector.Collector, times *timeservice.TimeService) *SQLTransform {
	return NewWithTriggers(plan, next, times, 0, int64(aggregate.DefaultInterval/time.Millisecond))
}

// NewWithTriggers builds a SQLTransform whose aggregate stage uses
// explicit max_rows/interval_ms triggers instead of the §4.6 defaults.
// The first interval timer is scheduled intervalMs after the wall-clock
// time of construction.
func NewWithTriggers(plan *planner.Plan, next collector.Collector, times *timeservice.TimeService, maxRows int, intervalMs int64) *SQLTransform {
	t := &SQLTransform{plan: plan, next: next, times: times, intervalMs: intervalMs}
	if plan.Aggregate != nil {
		t.agg = aggregate.New(plan.Aggregate, maxRows, time.Duration(intervalMs)*time.Millisecond)
		if times != nil {
			times.RegisterTimer(time.Now().UnixMilli() + intervalMs)
		}
	}
	if plan.Distinct {
		t.distinctSeen = make(map[string]struct{})
	}
	return t
}

// Collect evaluates PreFilter, then either feeds the aggregate state table
// or projects directly, matching the "dropped by false/Null" and
// "Null-propagating" semantics of §4.1/§4.7.
func (t *SQLTransform) Collect(r row.Row) error {
	if t.done {
		return nil
	}
	if t.plan.PreFilter != nil && !isTrue(t.plan.PreFilter.Eval(r)) {
		return nil
	}
	if t.agg != nil {
		t.agg.Update(r)
		if t.agg.NeedsFlush() {
			return t.flushAggregate()
		}
		return nil
	}
	return t.project(r)
}

// CheckTimer polls the time service for fired timers and flushes the
// aggregate stage when its interval timer has elapsed (§4.6's second
// trigger, §4.12's TransformCollector.check_timer contract).
func (t *SQLTransform) CheckTimer(nowMs int64) error {
	if t.agg == nil || t.times == nil || t.done {
		return nil
	}
	fired := t.times.PollTriggerTime(nowMs)
	if len(fired) == 0 {
		return nil
	}
	if err := t.flushAggregate(); err != nil {
		return err
	}
	// Reschedule: the interval timer is periodic for as long as the
	// transform is alive.
	t.times.RegisterTimer(nowMs + t.intervalMs)
	return nil
}

func (t *SQLTransform) flushAggregate() error {
	for _, stateRow := range t.agg.Flush() {
		var postRow row.Row = stateRow
		if t.plan.PostFilter != nil && !isTrue(t.plan.PostFilter.Eval(postRow)) {
			continue
		}
		if err := t.emit(stateRow); err != nil {
			return err
		}
	}
	return nil
}

// project evaluates the non-aggregate SELECT list directly against the
// input row and emits the result.
func (t *SQLTransform) project(r row.Row) error {
	out := make([]value.Value, len(t.plan.Project))
	for i, p := range t.plan.Project {
		out[i] = p.Eval(r)
	}
	return t.emit(row.WrapGenericRow(out))
}

// emit applies DISTINCT dedup and the LIMIT cap (shared between the
// aggregate and non-aggregate paths), then pushes to Next.
func (t *SQLTransform) emit(r *row.GenericRow) error {
	if t.distinctSeen != nil {
		key := rowKey(r)
		if _, ok := t.distinctSeen[key]; ok {
			return nil
		}
		t.distinctSeen[key] = struct{}{}
	}
	if t.plan.Limit > 0 && t.emitted >= t.plan.Limit {
		t.done = true
		return nil
	}
	t.emitted++
	if err := t.next.Collect(r); err != nil {
		return err
	}
	if t.plan.Limit > 0 && t.emitted >= t.plan.Limit {
		t.done = true
	}
	return nil
}

// Close flushes any buffered aggregate state (so a final, partial group
// isn't silently lost at shutdown) and closes Next.
func (t *SQLTransform) Close() error {
	if t.agg != nil && t.agg.Len() > 0 {
		if err := t.flushAggregate(); err != nil {
			return err
		}
	}
	return t.next.Close()
}

func isTrue(v value.Value) bool {
	return v.Kind() == value.KindBoolean && v.GetBoolean()
}

// rowKey builds a stable, order-sensitive string key for DISTINCT dedup:
// distinct output rows must map to distinct keys, and equal rows must
// collide, which a kind-tagged, separator-delimited encoding of every
// cell (strings, binaries and nested arrays/structs Go-quoted, so they
// cannot contain a raw separator) guarantees without needing the cell
// values to be comparable.
func rowKey(r *row.GenericRow) string {
	var b strings.Builder
	for i := 0; i < r.Len(); i++ {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		v := r.Get(i)
		if v.IsNull() {
			b.WriteByte('\x00')
			continue
		}
		b.WriteByte(byte(v.Kind()))
		switch v.Kind() {
		case value.KindString:
			b.WriteString(strconv.Quote(v.GetString()))
		case value.KindBinary:
			b.WriteString(strconv.Quote(string(v.GetBinary())))
		case value.KindArray:
			b.WriteString(strconv.Quote(rowKey(row.WrapGenericRow(v.GetArray()))))
		case value.KindStruct:
			b.WriteString(strconv.Quote(rowKey(row.WrapGenericRow(v.GetStruct()))))
		case value.KindInt:
			b.WriteString(strconv.FormatInt(int64(v.GetInt()), 10))
		case value.KindLong:
			b.WriteString(strconv.FormatInt(v.GetLong(), 10))
		case value.KindTimestamp:
			b.WriteString(strconv.FormatInt(v.GetTimestamp(), 10))
		case value.KindFloat:
			b.WriteString(strconv.FormatFloat(float64(v.GetFloat()), 'g', -1, 32))
		case value.KindDouble:
			b.WriteString(strconv.FormatFloat(v.GetDouble(), 'g', -1, 64))
		case value.KindBoolean:
			if v.GetBoolean() {
				b.WriteByte('1')
			} else {
				b.WriteByte('0')
			}
		}
	}
	return b.String()
}
