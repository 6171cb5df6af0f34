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

// Package graph builds the execution graph from configuration (§4.11):
// typed Source/Transform/Sink nodes connected by declared inputs/outputs
// names, validated for reachability and acyclicity, then spawned as one
// worker goroutine per (source id, subtask index) pair.
package graph

import (
	"fmt"

	"github.com/flowetl/flowetl/internal/config"
)

// Kind discriminates a graph node's role.
type Kind int

const (
	SourceKind Kind = iota
	TransformKind
	SinkKind
)

func (k Kind) String() string {
	switch k {
	case SourceKind:
		return "source"
	case TransformKind:
		return "transform"
	case SinkKind:
		return "sink"
	default:
		return "unknown"
	}
}

// Node is one typed graph node with a monotonic id and its declared edges
// (§4.11: "each with a monotonic integer id and a named list of output
// edges and (for transform/sink) input edges").
type Node struct {
	ID      int
	Kind    Kind
	Config  config.Node
	Inputs  []string
	Outputs []string
}

// OperatorID is a stable, human-readable identity for metrics/error
// correlation (§7's "error strings must include the operator id").
func (n *Node) OperatorID() string {
	return fmt.Sprintf("%s#%d", n.Kind, n.ID)
}

// Graph is the validated, built execution graph: every node plus an index
// from an output-edge name to the node that declared it.
type Graph struct {
	Nodes        []*Node
	outputOwner  map[string]*Node
	downstreamOf map[string][]*Node // output name -> nodes consuming it
}

// Build reads cfg, constructs typed nodes, resolves the inputs/outputs
// name graph, and validates it (§4.11's "Validation" bullet plus §8
// invariant 5: "the graph has no cycle, and every inputs name resolves to
// exactly one upstream outputs entry"). Sinks excluded by
// cfg.ActiveSinkSet() (§9) are never constructed, as if they had not been
// declared at all.
func Build(cfg *config.Config) (*Graph, error) {
	g := &Graph{outputOwner: make(map[string]*Node), downstreamOf: make(map[string][]*Node)}

	id := 0
	for _, s := range cfg.Sources {
		g.Nodes = append(g.Nodes, &Node{ID: id, Kind: SourceKind, Config: s, Outputs: s.Outputs})
		id++
	}
	for _, t := range cfg.Transforms {
		g.Nodes = append(g.Nodes, &Node{ID: id, Kind: TransformKind, Config: t, Inputs: t.Inputs, Outputs: t.Outputs})
		id++
	}
	active := cfg.ActiveSinkSet()
	for _, sk := range cfg.Sinks {
		if !active[sk.SinkKey()] {
			continue
		}
		g.Nodes = append(g.Nodes, &Node{ID: id, Kind: SinkKind, Config: sk, Inputs: sk.Inputs})
		id++
	}

	for _, n := range g.Nodes {
		for _, out := range n.Outputs {
			if owner, ok := g.outputOwner[out]; ok {
				return nil, fmt.Errorf("graph: output name %q declared by both %s and %s", out, owner.OperatorID(), n.OperatorID())
			}
			g.outputOwner[out] = n
		}
	}

	for _, n := range g.Nodes {
		for _, in := range n.Inputs {
			owner, ok := g.outputOwner[in]
			if !ok {
				return nil, fmt.Errorf("graph: %s input %q matches no declared output", n.OperatorID(), in)
			}
			g.downstreamOf[in] = append(g.downstreamOf[in], n)
			_ = owner
		}
	}

	if err := g.validateAcyclic(); err != nil {
		return nil, err
	}
	if err := g.validateSourcesReachSinks(); err != nil {
		return nil, err
	}
	return g, nil
}

// Downstream returns the nodes consuming n's output edges, in declaration
// order, deduplicated.
func (g *Graph) Downstream(n *Node) []*Node {
	var out []*Node
	seen := make(map[int]bool)
	for _, name := range n.Outputs {
		for _, d := range g.downstreamOf[name] {
			if !seen[d.ID] {
				seen[d.ID] = true
				out = append(out, d)
			}
		}
	}
	return out
}

// Sources returns every Source node, in declaration order.
func (g *Graph) Sources() []*Node {
	var out []*Node
	for _, n := range g.Nodes {
		if n.Kind == SourceKind {
			out = append(out, n)
		}
	}
	return out
}

func (g *Graph) validateAcyclic() error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[int]int, len(g.Nodes))
	var visit func(n *Node) error
	visit = func(n *Node) error {
		color[n.ID] = gray
		for _, d := range g.Downstream(n) {
			switch color[d.ID] {
			case gray:
				return fmt.Errorf("graph: cycle detected at %s", d.OperatorID())
			case white:
				if err := visit(d); err != nil {
					return err
				}
			}
		}
		color[n.ID] = black
		return nil
	}
	for _, n := range g.Nodes {
		if color[n.ID] == white {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateSourcesReachSinks enforces "every source is reachable from at
// least one sink" (read as: a path from the source reaches some sink).
func (g *Graph) validateSourcesReachSinks() error {
	for _, s := range g.Sources() {
		if !g.reachesSink(s, make(map[int]bool)) {
			return fmt.Errorf("graph: source %s reaches no sink", s.OperatorID())
		}
	}
	return nil
}

func (g *Graph) reachesSink(n *Node, seen map[int]bool) bool {
	if seen[n.ID] {
		return false
	}
	seen[n.ID] = true
	if n.Kind == SinkKind {
		return true
	}
	for _, d := range g.Downstream(n) {
		if g.reachesSink(d, seen) {
			return true
		}
	}
	return false
}
