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

// Package metrics implements the per-operator, per-subtask counters and
// the TaskContext every operator is built with (§4.11, §5: "the metrics
// registry is safe for concurrent increments").
package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Counters is one operator/subtask's atomic counter set. Every field is
// safe for concurrent increment from the operator's own subtask goroutine
// and for concurrent read from a metrics-reporting goroutine.
type Counters struct {
	RowsIn    int64
	RowsOut   int64
	RowsError int64
	BytesIn   int64
	BytesOut  int64
}

func (c *Counters) IncRowsIn(n int64)    { atomic.AddInt64(&c.RowsIn, n) }
func (c *Counters) IncRowsOut(n int64)   { atomic.AddInt64(&c.RowsOut, n) }
func (c *Counters) IncRowsError(n int64) { atomic.AddInt64(&c.RowsError, n) }
func (c *Counters) IncBytesIn(n int64)   { atomic.AddInt64(&c.BytesIn, n) }
func (c *Counters) IncBytesOut(n int64)  { atomic.AddInt64(&c.BytesOut, n) }

// Snapshot is a point-in-time, non-atomic copy of Counters for reporting.
type Snapshot struct {
	OperatorID string
	Subtask    int
	RowsIn     int64
	RowsOut    int64
	RowsError  int64
	BytesIn    int64
	BytesOut   int64
}

// Registry owns every operator/subtask's Counters. Safe for concurrent use:
// operators register once at build time, then only increment their own
// counters; a reporting goroutine reads a consistent Snapshot list.
type Registry struct {
	mu     sync.Mutex
	byKey  map[string]*Counters
	order  []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]*Counters)}
}

func counterKey(operatorID string, subtask int) string {
	return fmt.Sprintf("%s#%d", operatorID, subtask)
}

// For returns the Counters for (operatorID, subtask), creating it on first
// use.
func (r *Registry) For(operatorID string, subtask int) *Counters {
	key := counterKey(operatorID, subtask)
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byKey[key]
	if !ok {
		c = &Counters{}
		r.byKey[key] = c
		r.order = append(r.order, key)
	}
	return c
}

// Snapshot returns a stable, ordered copy of every registered counter set.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Snapshot, 0, len(r.order))
	for _, key := range r.order {
		c := r.byKey[key]
		out = append(out, Snapshot{
			RowsIn:    atomic.LoadInt64(&c.RowsIn),
			RowsOut:   atomic.LoadInt64(&c.RowsOut),
			RowsError: atomic.LoadInt64(&c.RowsError),
			BytesIn:   atomic.LoadInt64(&c.BytesIn),
			BytesOut:  atomic.LoadInt64(&c.BytesOut),
		})
	}
	return out
}

// TaskContext is the per-subtask identity and shared registry every
// operator is constructed with (§4.11).
type TaskContext struct {
	Parallelism int
	SubtaskIdx  int
	OperatorID  string
	Registry    *Registry
}

// Counters returns this task's own counter set from the shared registry.
func (t TaskContext) Counters() *Counters {
	return t.Registry.For(t.OperatorID, t.SubtaskIdx)
}

// WithOperator returns a copy of t scoped to a different operator id,
// keeping parallelism/subtask/registry — used when building a downstream
// operator within the same subtask chain.
func (t TaskContext) WithOperator(operatorID string) TaskContext {
	t.OperatorID = operatorID
	return t
}
