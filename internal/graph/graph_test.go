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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowetl/flowetl/internal/config"
)

func genNode(name string, numberOfRows int) config.Node {
	return config.Node{
		Type:    "generator",
		Outputs: []string{name},
		Schema:  "id:int, name:string",
		Fields:  map[string]interface{}{"number_of_rows": numberOfRows},
	}
}

func sqlNode(in, out, sql string) config.Node {
	return config.Node{
		Type:    "sql",
		Inputs:  []string{in},
		Outputs: []string{out},
		Fields:  map[string]interface{}{"sql": sql},
	}
}

func stdoutSink(in string) config.Node {
	return config.Node{Type: "stdout", Inputs: []string{in}}
}

func TestBuild_RejectsDanglingInput(t *testing.T) {
	cfg := &config.Config{
		Sources: []config.Node{genNode("a", 10)},
		Sinks:   []config.Node{stdoutSink("nonexistent")},
	}
	_, err := Build(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matches no declared output")
}

func TestBuild_RejectsCycle(t *testing.T) {
	cfg := &config.Config{
		Sources: []config.Node{genNode("a", 10)},
		Transforms: []config.Node{
			{Type: "sql", Inputs: []string{"a", "loop"}, Outputs: []string{"b"}, Fields: map[string]interface{}{"sql": "SELECT * FROM tbl"}},
			{Type: "sql", Inputs: []string{"b"}, Outputs: []string{"loop"}, Fields: map[string]interface{}{"sql": "SELECT * FROM tbl"}},
		},
		Sinks: []config.Node{stdoutSink("b")},
	}
	_, err := Build(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuild_RejectsUnreachableSource(t *testing.T) {
	cfg := &config.Config{
		Sources: []config.Node{genNode("a", 10), genNode("orphan", 10)},
		Sinks:   []config.Node{stdoutSink("a")},
	}
	_, err := Build(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reaches no sink")
}

func TestBuild_RejectsDuplicateOutputName(t *testing.T) {
	cfg := &config.Config{
		Sources: []config.Node{genNode("a", 10), genNode("a", 10)},
		Sinks:   []config.Node{stdoutSink("a")},
	}
	_, err := Build(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared by both")
}

func TestBuild_AcceptsLinearPipeline(t *testing.T) {
	cfg := &config.Config{
		Sources:    []config.Node{genNode("raw", 10)},
		Transforms: []config.Node{sqlNode("raw", "clean", "SELECT id FROM tbl")},
		Sinks:      []config.Node{stdoutSink("clean")},
	}
	g, err := Build(cfg)
	require.NoError(t, err)
	require.Len(t, g.Sources(), 1)

	src := g.Sources()[0]
	downstream := g.Downstream(src)
	require.Len(t, downstream, 1)
	assert.Equal(t, TransformKind, downstream[0].Kind)
}

func TestRunner_DrivesGeneratorThroughTransformToSink(t *testing.T) {
	cfg := &config.Config{
		Sources:    []config.Node{genNode("raw", 6)},
		Transforms: []config.Node{sqlNode("raw", "clean", "SELECT id FROM tbl WHERE id >= 0")},
		Sinks:      []config.Node{stdoutSink("clean")},
	}
	g, err := Build(cfg)
	require.NoError(t, err)

	r := NewRunner(g, 2)
	require.NoError(t, r.Run())

	var totalOut int64
	for _, snap := range r.Registry.Snapshot() {
		totalOut += snap.RowsOut
	}
	// Every row passes through two operators (transform, sink) on its way
	// out, so the registry's total RowsOut is double the row count.
	assert.Equal(t, int64(6*2), totalOut)
}

func TestBuild_ExcludesInactiveSinks(t *testing.T) {
	keep := stdoutSink("a")
	keep.Fields = map[string]interface{}{"name": "keep"}
	drop := stdoutSink("a")
	drop.Fields = map[string]interface{}{"name": "drop"}

	cfg := &config.Config{
		Sources:     []config.Node{genNode("a", 10)},
		Sinks:       []config.Node{keep, drop},
		ActiveSinks: []string{"keep"},
	}
	g, err := Build(cfg)
	require.NoError(t, err)

	require.Len(t, g.Nodes, 2) // the source plus exactly one sink
	var sinks []*Node
	for _, n := range g.Nodes {
		if n.Kind == SinkKind {
			sinks = append(sinks, n)
		}
	}
	require.Len(t, sinks, 1)
	assert.Equal(t, "keep", sinks[0].Config.StringField("name"))
}

func TestRunner_SinkReportsBytesOut(t *testing.T) {
	cfg := &config.Config{
		Sources: []config.Node{genNode("raw", 4)},
		Sinks:   []config.Node{stdoutSink("raw")},
	}
	g, err := Build(cfg)
	require.NoError(t, err)

	r := NewRunner(g, 1)
	require.NoError(t, r.Run())

	var totalBytesOut int64
	for _, snap := range r.Registry.Snapshot() {
		totalBytesOut += snap.BytesOut
	}
	assert.Greater(t, totalBytesOut, int64(0))
}

func TestRunner_ZeroRowSourceEndsImmediately(t *testing.T) {
	cfg := &config.Config{
		Sources: []config.Node{genNode("raw", 0)},
		Sinks:   []config.Node{stdoutSink("raw")},
	}
	g, err := Build(cfg)
	require.NoError(t, err)

	r := NewRunner(g, 1)
	require.NoError(t, r.Run())

	for _, snap := range r.Registry.Snapshot() {
		assert.Equal(t, int64(0), snap.RowsOut)
	}
}
