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

package sink

import (
	"fmt"
	"io"

	"github.com/flowetl/flowetl/internal/metrics"
	"github.com/flowetl/flowetl/internal/row"
	"github.com/flowetl/flowetl/internal/schema"
)

// WriterSink is the simplest generic Sink (§4.10): open/invoke/close with
// no batching, writing each row as one JSON line to an io.Writer. Used for
// the "sql" CLI's REPL output and for config-declared "stdout"/"file"
// sinks that don't need the batched protocol.
type WriterSink struct {
	w           io.Writer
	serialize   Serializer
	counters    *metrics.Counters
	rowsWritten int
}

// NewWriterSink builds a WriterSink that serializes rows per sch.
func NewWriterSink(w io.Writer, sch schema.Schema) *WriterSink {
	return &WriterSink{w: w, serialize: JSONRowSerializer(sch)}
}

// WithCounters attaches the per-operator/subtask counters this sink's
// write path reports BytesIn/BytesOut into (§4.11's base_iometrics).
func (s *WriterSink) WithCounters(c *metrics.Counters) *WriterSink {
	s.counters = c
	return s
}

func (s *WriterSink) Open() error { return nil }

func (s *WriterSink) Invoke(r row.Row) error {
	encoded, err := s.serialize(r)
	if err != nil {
		return fmt.Errorf("sink: serde: %w", err)
	}
	if s.counters != nil {
		s.counters.IncBytesIn(int64(len(encoded)))
	}
	if _, err := s.w.Write(encoded); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\n")); err != nil {
		return err
	}
	if s.counters != nil {
		s.counters.IncBytesOut(int64(len(encoded) + 1))
	}
	s.rowsWritten++
	return nil
}

func (s *WriterSink) Close() error { return nil }

// RowsWritten reports how many rows this sink has emitted so far.
func (s *WriterSink) RowsWritten() int { return s.rowsWritten }
