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

// Package source implements the Source contract (§4.9) and the
// deterministic, shardable data-generator source (§2 "Fakers").
package source

import (
	"github.com/flowetl/flowetl/internal/collector"
	"github.com/flowetl/flowetl/internal/schema"
)

// Status is poll_next's per-call outcome.
type Status int

const (
	// More indicates the subtask chain should keep polling.
	More Status = iota
	// End is terminal for this subtask: no further poll_next calls follow.
	End
)

// Source is the engine's ingestion contract (§4.9): schema(), open(),
// poll_next(out) -> {More, End}, close(). One call to PollNext produces
// zero or more records via out.Collect, then reports whether the subtask
// chain should keep driving it.
type Source interface {
	Schema() schema.Schema
	Open() error
	PollNext(out collector.Collector) (Status, error)
	Close() error
}

// Shares computes the per-subtask row/rate shares a naturally-shardable
// source (a data generator) divides total across parallelism instances
// (§4.11):
//
//	base = total / parallelism
//	subtask_i_share = base + (1 if total % parallelism > i else 0)
func Shares(total int64, parallelism int) []int64 {
	if parallelism <= 0 {
		parallelism = 1
	}
	base := total / int64(parallelism)
	remainder := total % int64(parallelism)
	shares := make([]int64, parallelism)
	for i := range shares {
		shares[i] = base
		if remainder > int64(i) {
			shares[i]++
		}
	}
	return shares
}
