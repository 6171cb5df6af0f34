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

// Package sink implements the generic Sink contract and the batched-sink
// producer/flusher protocol (§4.10): a growable Block buffer, a bounded
// buffer pool, retrying flush with endpoint rotation, and the condvar-style
// handoff between the caller thread and the sink's own flusher goroutine.
package sink

// Framing supplies the opener/separator/closer bytes a serialization
// format wraps rows in (e.g. JSON array "[", ",", "]"; NDJSON "", "\n",
// "").
type Framing struct {
	Opener    []byte
	Separator []byte
	Closer    []byte
}

// NDJSONFraming is the framing used when rows are serialized as
// newline-delimited JSON: no array wrapper, each row terminated by "\n".
var NDJSONFraming = Framing{Separator: []byte("\n")}

// JSONArrayFraming wraps rows in a JSON array.
var JSONArrayFraming = Framing{Opener: []byte("["), Separator: []byte(","), Closer: []byte("]")}

// Block owns a growable byte buffer a batched sink fills as it serializes
// rows, the row/byte counts that decide when it finalizes, and the
// framing bytes for its format (§4.10's "Block" glossary entry).
type Block struct {
	buf      []byte
	rows     int
	framing  Framing
	finished bool
}

// NewBlock starts an empty Block, optionally reusing buf's backing array
// (handed back by a BufferPool to cut allocator churn).
func NewBlock(framing Framing, buf []byte) *Block {
	b := &Block{framing: framing, buf: buf[:0]}
	b.buf = append(b.buf, framing.Opener...)
	return b
}

// AppendRow appends one already-serialized row's bytes, inserting the
// format's separator before every row after the first.
func (b *Block) AppendRow(rowBytes []byte) {
	if b.rows > 0 {
		b.buf = append(b.buf, b.framing.Separator...)
	}
	b.buf = append(b.buf, rowBytes...)
	b.rows++
}

// Rows returns the number of rows appended so far.
func (b *Block) Rows() int { return b.rows }

// Bytes returns the current buffer length, including framing written so
// far but not yet the closer (matches the producer-side trigger check,
// which compares against the in-progress buffer before finalize).
func (b *Block) Bytes() int { return len(b.buf) }

// Finalize writes the closing framing once; idempotent.
func (b *Block) Finalize() {
	if b.finished {
		return
	}
	b.buf = append(b.buf, b.framing.Closer...)
	b.finished = true
}

// Buffer returns the Block's raw bytes (valid after Finalize for an
// exact-round-trip serialization, §8 round-trip law 4: "the concatenation
// of the buffers inside one Block equals the framing opener ++ (row-bytes
// joined by separator) ++ closer").
func (b *Block) Buffer() []byte { return b.buf }

// Reset clears the Block's contents for reuse (called after its backing
// buffer is returned to a BufferPool) without discarding its backing
// array capacity.
func (b *Block) Reset() {
	b.buf = b.buf[:0]
	b.buf = append(b.buf, b.framing.Opener...)
	b.rows = 0
	b.finished = false
}
