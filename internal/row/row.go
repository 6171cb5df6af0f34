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

// Package row implements the abstract indexed tuple-of-Value abstraction
// every operator reads and writes through (§3).
package row

import "github.com/flowetl/flowetl/internal/value"

// Row is an abstract, indexed, ordered tuple of Value.
type Row interface {
	Len() int
	Get(i int) value.Value
	Update(i int, v value.Value)
	ToGenericRow() *GenericRow
}

// GenericRow owns a mutable slice of values. Sources, transform scratch
// buffers, and sinks all read/write through this concrete type.
type GenericRow struct {
	values []value.Value
}

// NewGenericRow allocates a row of n Null cells.
func NewGenericRow(n int) *GenericRow {
	return &GenericRow{values: make([]value.Value, n)}
}

// WrapGenericRow adopts an existing slice without copying.
func WrapGenericRow(values []value.Value) *GenericRow {
	return &GenericRow{values: values}
}

func (r *GenericRow) Len() int { return len(r.values) }

func (r *GenericRow) Get(i int) value.Value { return r.values[i] }

func (r *GenericRow) Update(i int, v value.Value) { r.values[i] = v }

func (r *GenericRow) ToGenericRow() *GenericRow {
	cp := make([]value.Value, len(r.values))
	copy(cp, r.values)
	return &GenericRow{values: cp}
}

// Values exposes the backing slice read-only, for callers (serializers)
// that want to range over cells without per-index virtual dispatch.
func (r *GenericRow) Values() []value.Value { return r.values }

// JoinedRow is the logical concatenation of two rows: reads below the
// left row's length are served from left, the rest from right, shifted.
// It never copies and does not support Update (read-only passthrough, as
// used to evaluate an aggregate's update expression over (state, input)).
type JoinedRow struct {
	left, right Row
}

func NewJoinedRow(left, right Row) *JoinedRow {
	return &JoinedRow{left: left, right: right}
}

func (j *JoinedRow) Len() int { return j.left.Len() + j.right.Len() }

func (j *JoinedRow) Get(i int) value.Value {
	if i < j.left.Len() {
		return j.left.Get(i)
	}
	return j.right.Get(i - j.left.Len())
}

func (j *JoinedRow) Update(i int, v value.Value) { panic("row: Update on JoinedRow") }

func (j *JoinedRow) ToGenericRow() *GenericRow {
	out := NewGenericRow(j.Len())
	for i := 0; i < j.Len(); i++ {
		out.Update(i, j.Get(i))
	}
	return out
}

// emptyRow is the zero-column singleton used to evaluate constant
// expressions (e.g. during OneRowRelation evaluation, which needs *some*
// row to drive Eval on a childless literal).
type emptyRow struct{}

func (emptyRow) Len() int                      { return 0 }
func (emptyRow) Get(i int) value.Value         { panic("row: Get on EmptyRow") }
func (emptyRow) Update(i int, v value.Value)   { panic("row: Update on EmptyRow") }
func (emptyRow) ToGenericRow() *GenericRow      { return NewGenericRow(0) }

// EmptyRow is the shared zero-column row singleton.
var EmptyRow Row = emptyRow{}
