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

package graph

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowetl/flowetl/internal/flowlog"
	"github.com/flowetl/flowetl/internal/metrics"
	"github.com/flowetl/flowetl/internal/planner"
	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/source"
	"github.com/flowetl/flowetl/internal/timeservice"
)

// Runner drives every source node's worker goroutines (§4.11's "Per-
// subtask construction" and "Source driver"), sharing one process-wide
// termination flag and metrics registry across the whole graph.
type Runner struct {
	g           *Graph
	parallelism int
	Registry    *metrics.Registry

	terminated int32
	wg         sync.WaitGroup

	mu       sync.Mutex
	firstErr error
}

// NewRunner builds a Runner for g with parallelism worker threads per
// source id (§4.11: "parallelism worker threads are spawned per source
// id").
func NewRunner(g *Graph, parallelism int) *Runner {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Runner{g: g, parallelism: parallelism, Registry: metrics.NewRegistry()}
}

// Run spawns one goroutine per (source id, subtask index) pair and blocks
// until every worker has returned (either by its source reaching End or
// by the termination flag being set). It returns the first worker error,
// if any.
func (r *Runner) Run() error {
	schemas, plans, err := r.g.schemas()
	if err != nil {
		return err
	}

	for _, src := range r.g.Sources() {
		for subtask := 0; subtask < r.parallelism; subtask++ {
			r.wg.Add(1)
			go r.runSubtask(src, subtask, timeservice.New(), schemas, plans)
		}
	}
	r.wg.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.firstErr
}

// Stop sets the process-wide termination flag; every subtask's source
// driver loop observes it at the top of its next iteration (§4.11
// "Termination": "a process-wide flag; any worker error sets it; the
// source driver loop checks it once per iteration").
func (r *Runner) Stop() {
	atomic.StoreInt32(&r.terminated, 1)
}

func (r *Runner) isTerminated() bool {
	return atomic.LoadInt32(&r.terminated) != 0
}

func (r *Runner) recordErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.firstErr == nil {
		r.firstErr = err
	}
}

// runSubtask builds one (source id, subtask index) chain and drives it
// until End or termination (§4.11 "Source driver": "while not terminated:
// status = source.poll_next(downstream); downstream.check_timer(now_ms());
// if status == End: break").
func (r *Runner) runSubtask(src *Node, subtask int, times *timeservice.TimeService, schemas map[int]schema.Schema, plans map[int][]*planner.Plan) {
	defer r.wg.Done()

	tc := metrics.TaskContext{
		Parallelism: r.parallelism,
		SubtaskIdx:  subtask,
		OperatorID:  src.OperatorID(),
		Registry:    r.Registry,
	}

	sch := schemas[src.ID]
	srcOp, err := buildSource(src, sch, tc)
	if err != nil {
		r.recordErr(err)
		r.Stop()
		return
	}
	downstream, err := r.g.buildDownstream(src, tc, times, schemas, plans)
	if err != nil {
		r.recordErr(err)
		r.Stop()
		return
	}

	if err := srcOp.Open(); err != nil {
		r.recordErr(err)
		r.Stop()
		return
	}

	for !r.isTerminated() {
		status, err := srcOp.PollNext(downstream)
		if err != nil {
			r.recordErr(err)
			r.Stop()
			break
		}
		if err := downstream.CheckTimer(time.Now().UnixMilli()); err != nil {
			r.recordErr(err)
			r.Stop()
			break
		}
		if status == source.End {
			break
		}
	}

	if err := srcOp.Close(); err != nil {
		flowlog.Warn("graph[%s#%d]: source close: %v", src.OperatorID(), subtask, err)
	}
	if err := downstream.Close(); err != nil {
		flowlog.Warn("graph[%s#%d]: downstream close: %v", src.OperatorID(), subtask, err)
	}
}
