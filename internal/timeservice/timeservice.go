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

// Package timeservice implements the dedup min-heap of future trigger
// timestamps transforms register timers against (§4.12).
package timeservice

import (
	"container/heap"
	"sync"
)

// TimeService is a min-heap of absolute future trigger timestamps (ms
// since epoch), deduplicated by a hash set so registering the same
// timestamp twice only ever fires once.
type TimeService struct {
	mu    sync.Mutex
	heap  tsHeap
	seen  map[int64]struct{}
}

// New returns an empty TimeService.
func New() *TimeService {
	return &TimeService{seen: make(map[int64]struct{})}
}

// RegisterTimer inserts ts if it isn't already pending.
func (t *TimeService) RegisterTimer(ts int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.seen[ts]; ok {
		return
	}
	t.seen[ts] = struct{}{}
	heap.Push(&t.heap, ts)
}

// NextTriggerTime returns the earliest pending timestamp, or (0, false) if
// the heap is empty (the spec's "+infinity" sentinel, expressed as ok=false
// so callers don't need a sentinel integer).
func (t *TimeService) NextTriggerTime() (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.heap) == 0 {
		return 0, false
	}
	return t.heap[0], true
}

// PollTriggerTime pops and returns every timestamp that is <= now,
// removing each from the dedup set. Returns nil if nothing has fired yet.
func (t *TimeService) PollTriggerTime(nowMs int64) []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var fired []int64
	for len(t.heap) > 0 && t.heap[0] <= nowMs {
		ts := heap.Pop(&t.heap).(int64)
		delete(t.seen, ts)
		fired = append(fired, ts)
	}
	return fired
}

// tsHeap is a container/heap.Interface over int64 timestamps.
type tsHeap []int64

func (h tsHeap) Len() int            { return len(h) }
func (h tsHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h tsHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *tsHeap) Push(x interface{}) { *h = append(*h, x.(int64)) }
func (h *tsHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
