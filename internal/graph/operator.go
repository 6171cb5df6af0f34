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
	"fmt"
	"os"
	"sync"

	"github.com/flowetl/flowetl/internal/collector"
	"github.com/flowetl/flowetl/internal/metrics"
	"github.com/flowetl/flowetl/internal/planner"
	"github.com/flowetl/flowetl/internal/row"
	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/sink"
	"github.com/flowetl/flowetl/internal/source"
	"github.com/flowetl/flowetl/internal/timeservice"
	"github.com/flowetl/flowetl/internal/transform"
)

// schemas resolves every node's output schema: sources from their
// declared schema DSL string, transforms by compiling their SQL against
// their resolved input schema(s) (§4.2, §4.4). Resolution proceeds in
// dependency order; Build already rejected cycles, so a single pass that
// retries pending transforms until none make progress always terminates.
func (g *Graph) schemas() (map[int]schema.Schema, map[int][]*planner.Plan, error) {
	schemas := make(map[int]schema.Schema, len(g.Nodes))
	plans := make(map[int][]*planner.Plan)

	for _, n := range g.Nodes {
		if n.Kind != SourceKind {
			continue
		}
		sch, err := n.Config.ParsedSchema()
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", n.OperatorID(), err)
		}
		schemas[n.ID] = sch
	}

	pending := make(map[int]*Node)
	for _, n := range g.Nodes {
		if n.Kind == TransformKind {
			pending[n.ID] = n
		}
	}
	for len(pending) > 0 {
		progressed := false
		for id, n := range pending {
			relations, ready := g.inputRelations(n, schemas)
			if !ready {
				continue
			}
			sqlText := n.Config.StringField("sql")
			nodePlans, err := planner.CompileSQL(sqlText, relations)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", n.OperatorID(), err)
			}
			plans[id] = nodePlans
			schemas[id] = nodePlans[0].OutputSchema
			delete(pending, id)
			progressed = true
		}
		if !progressed {
			for id := range pending {
				return nil, nil, fmt.Errorf("graph: could not resolve input schema for transform node %d", id)
			}
		}
	}
	return schemas, plans, nil
}

// inputRelations builds the FROM-clause relation-name -> schema map a
// transform's SQL resolves against: a single input is available both
// under its declared edge name and the default alias "tbl" (§6: "the name
// is tbl in the default configuration"); two inputs (a simple join, §4.2)
// are available only under their own declared edge names.
func (g *Graph) inputRelations(n *Node, schemas map[int]schema.Schema) (map[string]schema.Schema, bool) {
	relations := make(map[string]schema.Schema, len(n.Inputs)+1)
	for _, in := range n.Inputs {
		owner, ok := g.outputOwner[in]
		if !ok {
			return nil, false
		}
		sch, ok := schemas[owner.ID]
		if !ok {
			return nil, false
		}
		relations[in] = sch
	}
	if len(n.Inputs) == 1 {
		relations["tbl"] = relations[n.Inputs[0]]
	}
	return relations, true
}

// buildSource constructs the Source operator for a source node's i-th
// subtask, sharing number_of_rows/rows_per_second per §4.11's formula.
func buildSource(n *Node, sch schema.Schema, tc metrics.TaskContext) (source.Source, error) {
	switch n.Config.Type {
	case "generator", "":
		unbounded := !n.Config.HasField("number_of_rows")
		totalRows := int64(n.Config.IntField("number_of_rows", 0))
		totalRate := int64(n.Config.IntField("rows_per_second", 0))
		rowShares := source.Shares(totalRows, tc.Parallelism)
		rateShares := source.Shares(totalRate, tc.Parallelism)
		return source.New(source.GeneratorConfig{
			Schema:        sch,
			NumberOfRows:  rowShares[tc.SubtaskIdx],
			Unbounded:     unbounded,
			RowsPerSecond: rateShares[tc.SubtaskIdx],
		}), nil
	default:
		return nil, fmt.Errorf("graph: unknown source type %q", n.Config.Type)
	}
}

// buildSink constructs the Sink operator for a sink node, wrapped as a
// Collector. tc is already scoped to n's operator id, so its Counters()
// is where the sink's own write path reports BytesIn/BytesOut (§4.11's
// base_iometrics) — the same counter set buildCollectorFor wraps the
// returned Collector's row counts into.
func buildSink(n *Node, sch schema.Schema, tc metrics.TaskContext) (collector.Collector, error) {
	counters := tc.Counters()
	switch n.Config.Type {
	case "stdout", "":
		return collector.NewSinkCollector(sink.NewWriterSink(os.Stdout, sch).WithCounters(counters)), nil
	case "batched":
		maxRows := n.Config.IntField("max_rows", 1000)
		maxBytes := n.Config.IntField("max_bytes", 1 << 20)
		intervalMs := n.Config.IntField("interval_ms", 5000)
		endpoints := []sink.Endpoint{&discardEndpoint{}}
		batched := sink.NewBatchedSink(sink.BatchedConfig{
			Framing:      sink.NDJSONFraming,
			Serialize:    sink.JSONRowSerializer(sch),
			MaxRows:      maxRows,
			MaxBytes:     maxBytes,
			IntervalMs:   int64(intervalMs),
			Endpoints:    endpoints,
			SubtaskIndex: tc.SubtaskIdx,
			OperatorID:   n.OperatorID(),
			Counters:     counters,
		})
		return &sinkCollectorWithOpen{sink: batched}, nil
	default:
		return nil, fmt.Errorf("graph: unknown sink type %q", n.Config.Type)
	}
}

// discardEndpoint is the zero-configuration batched-sink endpoint used
// when a config declares type: batched without naming a concrete wire
// target; real deployments supply an Endpoint that actually talks to a
// database or warehouse stream-load API.
type discardEndpoint struct{}

func (discardEndpoint) Flush(b *sink.Block) error { return nil }

// sinkCollectorWithOpen adapts *sink.BatchedSink (which needs Open called
// to spawn its flusher before any row arrives) to collector.Collector.
type sinkCollectorWithOpen struct{ sink *sink.BatchedSink }

func (s *sinkCollectorWithOpen) Open() error                  { return s.sink.Open() }
func (s *sinkCollectorWithOpen) Collect(r row.Row) error      { return s.sink.Invoke(r) }
func (s *sinkCollectorWithOpen) CheckTimer(nowMs int64) error { return nil }
func (s *sinkCollectorWithOpen) Close() error                 { return s.sink.Close() }

// buildDownstream builds the Collector chain feeding all of n's declared
// output edges, fanning out with a MultiCollector when more than one
// downstream node consumes the same edge (§4.11 step 2: "wrap multiple
// downstreams in a MultiCollector"). tc carries this subtask's identity
// and shared registry (§4.11 step 3's TaskContext); buildCollectorFor
// rescopes it to each downstream node's own operator id.
func (g *Graph) buildDownstream(n *Node, tc metrics.TaskContext, times *timeservice.TimeService, schemas map[int]schema.Schema, plans map[int][]*planner.Plan) (collector.Collector, error) {
	downstream := g.Downstream(n)
	if len(downstream) == 0 {
		return noopCollector{}, nil
	}
	children := make([]collector.Collector, 0, len(downstream))
	for _, d := range downstream {
		c, err := g.buildCollectorFor(d, tc, times, schemas, plans)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return collector.NewMultiCollector(children...), nil
}

func (g *Graph) buildCollectorFor(n *Node, tc metrics.TaskContext, times *timeservice.TimeService, schemas map[int]schema.Schema, plans map[int][]*planner.Plan) (collector.Collector, error) {
	nodeCtx := tc.WithOperator(n.OperatorID())
	switch n.Kind {
	case SinkKind:
		sch := g.upstreamSchema(n, schemas)
		c, err := buildSink(n, sch, nodeCtx)
		if err != nil {
			return nil, err
		}
		if opener, ok := c.(interface{ Open() error }); ok {
			if err := opener.Open(); err != nil {
				return nil, err
			}
		}
		return newMetricsCollector(c, nodeCtx.Counters()), nil
	case TransformKind:
		next, err := g.buildDownstream(n, nodeCtx, times, schemas, plans)
		if err != nil {
			return nil, err
		}
		fanned := newTransformFanOut(n, plans[n.ID], next, times)
		return newMetricsCollector(fanned, nodeCtx.Counters()), nil
	default:
		return nil, fmt.Errorf("graph: node %s cannot be a downstream collector", n.OperatorID())
	}
}

// newTransformFanOut builds the Collector for a transform node's compiled
// plan(s): a single plan is already a Collector (transform.SQLTransform);
// a UNION ALL transform compiles to several plans sharing the node's
// input relations, each evaluated independently against every row and
// fanned into the same next, with next closed exactly once.
func newTransformFanOut(n *Node, plans []*planner.Plan, next collector.Collector, times *timeservice.TimeService) collector.Collector {
	if len(plans) == 1 {
		return newSQLTransform(n, plans[0], next, times)
	}
	shared := &closeOnceCollector{next: next}
	branches := make([]collector.Collector, len(plans))
	for i, p := range plans {
		branches[i] = newSQLTransform(n, p, shared, times)
	}
	return collector.NewMultiCollector(branches...)
}

func newSQLTransform(n *Node, p *planner.Plan, next collector.Collector, times *timeservice.TimeService) *transform.SQLTransform {
	if p.Aggregate == nil {
		return transform.New(p, next, times)
	}
	maxRows := n.Config.IntField("agg_max_rows", 0)
	intervalMs := int64(n.Config.IntField("agg_interval_ms", 5000))
	return transform.NewWithTriggers(p, next, times, maxRows, intervalMs)
}

// closeOnceCollector lets several SQLTransform branches (one per UNION ALL
// arm) share a single downstream without each one's Close call tearing it
// down again.
type closeOnceCollector struct {
	next   collector.Collector
	once   sync.Once
	closed error
}

func (c *closeOnceCollector) Collect(r row.Row) error      { return c.next.Collect(r) }
func (c *closeOnceCollector) CheckTimer(nowMs int64) error { return c.next.CheckTimer(nowMs) }
func (c *closeOnceCollector) Close() error {
	c.once.Do(func() { c.closed = c.next.Close() })
	return c.closed
}

// metricsCollector wraps any Collector with the per-operator/subtask row
// counters every built operator reports into (§4.11, §5).
type metricsCollector struct {
	next     collector.Collector
	counters *metrics.Counters
}

func newMetricsCollector(next collector.Collector, counters *metrics.Counters) collector.Collector {
	return &metricsCollector{next: next, counters: counters}
}

func (m *metricsCollector) Collect(r row.Row) error {
	m.counters.IncRowsIn(1)
	if err := m.next.Collect(r); err != nil {
		m.counters.IncRowsError(1)
		return err
	}
	m.counters.IncRowsOut(1)
	return nil
}

func (m *metricsCollector) CheckTimer(nowMs int64) error { return m.next.CheckTimer(nowMs) }
func (m *metricsCollector) Close() error                 { return m.next.Close() }

// upstreamSchema returns the schema of whichever node feeds n's single
// input edge (used for a sink, which has no output schema of its own).
func (g *Graph) upstreamSchema(n *Node, schemas map[int]schema.Schema) schema.Schema {
	if len(n.Inputs) == 0 {
		return nil
	}
	owner, ok := g.outputOwner[n.Inputs[0]]
	if !ok {
		return nil
	}
	return schemas[owner.ID]
}

// noopCollector is the terminal collector for an edge with no declared
// downstream; buildDownstream should never actually need it once Build's
// reachability validation has passed, but it keeps buildCollectorFor total.
type noopCollector struct{}

func (noopCollector) Collect(r row.Row) error      { return nil }
func (noopCollector) CheckTimer(nowMs int64) error { return nil }
func (noopCollector) Close() error                 { return nil }
