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

// Package collector implements the push-side abstraction every operator
// forwards rows through (§4.9/§GLOSSARY "Collector"): a source pushes into
// its downstream Collector, a transform both implements Collector (so an
// upstream can push into it) and owns one (to push further downstream).
package collector

import "github.com/flowetl/flowetl/internal/row"

// Collector is the push-side interface carrying rows downstream.
type Collector interface {
	// Collect delivers one row. Implementations must not retain r beyond
	// the call unless they copy it first (row.Row.ToGenericRow).
	Collect(r row.Row) error

	// CheckTimer lets a collector react to the wall-clock time passed in
	// by the source driver loop (§4.9, §4.12); transforms use this to
	// poll the time service for fired timers. Collectors with nothing
	// time-driven (sinks, plain projections) implement it as a no-op.
	CheckTimer(nowMs int64) error

	// Close releases any resources the collector owns (e.g. a sink's
	// flusher thread) and propagates the close to anything it wraps.
	Close() error
}

// MultiCollector fans one producer out to N downstream Collectors in
// lockstep (§GLOSSARY "Fan-out"): every row, timer tick, and close call is
// forwarded to each child in order. The first error from any child is
// reported but all children are still given the chance to run (Close
// always visits every child so one failing collector doesn't leak the
// others' resources).
type MultiCollector struct {
	children []Collector
}

// NewMultiCollector wraps children behind a single Collector.
func NewMultiCollector(children ...Collector) *MultiCollector {
	return &MultiCollector{children: children}
}

func (m *MultiCollector) Collect(r row.Row) error {
	var firstErr error
	for _, c := range m.children {
		if err := c.Collect(r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiCollector) CheckTimer(nowMs int64) error {
	var firstErr error
	for _, c := range m.children {
		if err := c.CheckTimer(nowMs); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiCollector) Close() error {
	var firstErr error
	for _, c := range m.children {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SinkCollector adapts a terminal Sink to the Collector contract: Collect
// forwards to Invoke, CheckTimer is a no-op (sinks don't register timers),
// Close forwards to the sink's own Close.
type SinkCollector struct {
	Sink Sink
}

// Sink is the minimal contract a terminal node implements (§4.10's
// generic, non-batched shape; batched sinks additionally satisfy this via
// their own Invoke/Close wrapping the producer/flusher protocol).
type Sink interface {
	Open() error
	Invoke(r row.Row) error
	Close() error
}

func NewSinkCollector(s Sink) *SinkCollector { return &SinkCollector{Sink: s} }

func (s *SinkCollector) Collect(r row.Row) error       { return s.Sink.Invoke(r) }
func (s *SinkCollector) CheckTimer(nowMs int64) error { return nil }
func (s *SinkCollector) Close() error                  { return s.Sink.Close() }
