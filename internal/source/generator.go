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

package source

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/flowetl/flowetl/internal/collector"
	"github.com/flowetl/flowetl/internal/row"
	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/value"
)

// no faker/random-data library exists anywhere in the retrieved example
// pack (checked every go.mod in the corpus), so random field values are
// produced with stdlib math/rand: the shape this spec needs is "plausible
// filler data for a load-test schema", not a reproducible-across-languages
// fake-identity generator a dedicated library would be built for.

// GeneratorConfig configures one subtask instance of the generator
// source. NumberOfRows and RowsPerSecond are already this subtask's share
// (computed by Shares at graph-build time, §4.11). Unbounded must be set
// explicitly to run until the caller stops polling; a zero-value
// NumberOfRows with Unbounded false immediately returns End with no rows
// emitted, per §8's boundary behaviour.
type GeneratorConfig struct {
	Schema        schema.Schema
	NumberOfRows  int64
	Unbounded     bool
	RowsPerSecond int64
	Seed          int64
}

// Generator is the deterministic, shardable data-generator source backing
// §2's "Fakers" component: each field is filled per its declared type with
// bounded random data, and the row count obeys the boundary behaviour
// "number_of_rows = 0 immediately returns End" (§8).
type Generator struct {
	cfg        GeneratorConfig
	rnd        *rand.Rand
	emitted    int64
	nextRowAt  time.Time
	rowPeriod  time.Duration
}

// New builds a Generator from cfg. A zero Seed derives a time-based seed
// (the per-process variation a faker source needs so parallel subtasks
// don't all draw the same sequence); a non-zero Seed is reproducible,
// matching "a deterministic generator" in §8's S6 scenario.
func New(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &Generator{cfg: cfg, rnd: rand.New(rand.NewSource(seed))}
	if cfg.RowsPerSecond > 0 {
		g.rowPeriod = time.Second / time.Duration(cfg.RowsPerSecond)
	}
	return g
}

func (g *Generator) Schema() schema.Schema { return g.cfg.Schema }

func (g *Generator) Open() error {
	g.nextRowAt = time.Now()
	return nil
}

// PollNext emits exactly one row per call (so check_timer and the
// termination flag are observed promptly between rows, §4.11's source
// driver loop), pacing itself to RowsPerSecond when configured. A
// generator with NumberOfRows == 0 and Unbounded == false immediately
// returns End without emitting anything (§8).
func (g *Generator) PollNext(out collector.Collector) (Status, error) {
	if !g.cfg.Unbounded && g.emitted >= g.cfg.NumberOfRows {
		return End, nil
	}
	if g.rowPeriod > 0 {
		if wait := time.Until(g.nextRowAt); wait > 0 {
			time.Sleep(wait)
		}
		g.nextRowAt = g.nextRowAt.Add(g.rowPeriod)
	}

	r := g.generateRow()
	if err := out.Collect(r); err != nil {
		return End, err
	}
	g.emitted++

	if !g.cfg.Unbounded && g.emitted >= g.cfg.NumberOfRows {
		return End, nil
	}
	return More, nil
}

func (g *Generator) Close() error { return nil }

func (g *Generator) generateRow() *row.GenericRow {
	values := make([]value.Value, len(g.cfg.Schema))
	for i, f := range g.cfg.Schema {
		values[i] = g.randomValue(f.DataType)
	}
	return row.WrapGenericRow(values)
}

func (g *Generator) randomValue(dt schema.DataType) value.Value {
	switch {
	case dt.Equal(schema.Int):
		return value.NewInt(g.rnd.Int31n(100000))
	case dt.Equal(schema.Long):
		return value.NewLong(g.rnd.Int63n(1_000_000_000))
	case dt.Equal(schema.Float):
		return value.NewFloat(g.rnd.Float32() * 1000)
	case dt.Equal(schema.Double):
		return value.NewDouble(g.rnd.Float64() * 1000)
	case dt.Equal(schema.Boolean):
		return value.NewBoolean(g.rnd.Intn(2) == 0)
	case dt.Equal(schema.Timestamp):
		return value.NewTimestamp(time.Now().UnixMicro())
	case dt.Equal(schema.Binary):
		b := make([]byte, 8)
		g.rnd.Read(b)
		return value.NewBinary(b)
	case dt.Equal(schema.String):
		return value.NewString(g.randomString())
	default:
		// array<T>/struct<...>: out of scope for the generator's random
		// filler (the schema DSL accepts them for sinks/sources that
		// parse real data; the generator only fills scalar columns).
		return value.Null
	}
}

var wordBank = []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel"}

func (g *Generator) randomString() string {
	return fmt.Sprintf("%s-%d", wordBank[g.rnd.Intn(len(wordBank))], g.rnd.Intn(1000))
}
