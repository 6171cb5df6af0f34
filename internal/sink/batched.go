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
	"sync"
	"time"

	"github.com/flowetl/flowetl/internal/flowlog"
	"github.com/flowetl/flowetl/internal/metrics"
	"github.com/flowetl/flowetl/internal/row"
)

// Endpoint is one flush target a batched sink rotates across on retry
// (§4.10's retry policy). A relational-database or warehouse-stream-load
// sink implements this over its own wire protocol; the protocol here is
// endpoint-agnostic.
type Endpoint interface {
	Flush(block *Block) error
}

// BatchedConfig configures one BatchedSink subtask instance.
type BatchedConfig struct {
	Framing       Framing
	Serialize     Serializer
	MaxRows       int
	MaxBytes      int
	IntervalMs    int64
	Endpoints     []Endpoint
	SubtaskIndex  int
	Pool          *BufferPool
	OperatorID    string
	Counters      *metrics.Counters
}

// BatchedSink implements the batched-sink producer/flusher protocol
// (§4.10): the caller thread (Invoke) fills the current Block and hands
// off a finalized one to a dedicated flusher goroutine once it crosses
// max_rows/max_bytes; the flusher also time-triggers on interval_ms.
type BatchedSink struct {
	cfg BatchedConfig

	mu      sync.Mutex
	current *Block
	pending *Block

	pendingReady chan struct{}
	pendingFreed chan struct{}
	stopCh       chan struct{}
	flusherDone  chan struct{}

	lastFlushTs  time.Time
	nextEndpoint int
}

// NewBatchedSink builds a BatchedSink; Open spawns its flusher goroutine.
func NewBatchedSink(cfg BatchedConfig) *BatchedSink {
	if cfg.Pool == nil {
		cfg.Pool = NewBufferPool(DefaultBufferTTL)
	}
	if len(cfg.Endpoints) == 0 {
		panic("sink: BatchedSink requires at least one Endpoint")
	}
	return &BatchedSink{
		cfg:          cfg,
		pendingReady: make(chan struct{}, 1),
		pendingFreed: make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		flusherDone:  make(chan struct{}),
		nextEndpoint: cfg.SubtaskIndex % len(cfg.Endpoints),
	}
}

func (s *BatchedSink) Open() error {
	s.mu.Lock()
	s.current = NewBlock(s.cfg.Framing, s.cfg.Pool.Get(4096))
	s.lastFlushTs = time.Now()
	s.mu.Unlock()

	go s.flusherLoop()
	return nil
}

// Invoke implements the producer side (§4.10 step 1-2): serialize, check
// the size triggers, and block (back-pressure) until the pending slot is
// free when a finalize is due.
func (s *BatchedSink) Invoke(r row.Row) error {
	encoded, err := s.cfg.Serialize(r)
	if err != nil {
		return fmt.Errorf("sink[%s]: serde: %w", s.cfg.OperatorID, err)
	}
	if s.cfg.Counters != nil {
		s.cfg.Counters.IncBytesIn(int64(len(encoded)))
	}

	s.mu.Lock()
	s.current.AppendRow(encoded)
	needsFlush := (s.cfg.MaxRows > 0 && s.current.Rows() >= s.cfg.MaxRows) ||
		(s.cfg.MaxBytes > 0 && s.current.Bytes() >= s.cfg.MaxBytes)
	if !needsFlush {
		s.mu.Unlock()
		return nil
	}
	s.current.Finalize()
	full := s.current
	s.mu.Unlock()

	// Back-pressure: wait until the single pending slot is empty.
	for {
		s.mu.Lock()
		if s.pending == nil {
			s.pending = full
			s.current = NewBlock(s.cfg.Framing, s.cfg.Pool.Get(4096))
			s.mu.Unlock()
			s.notify(s.pendingReady)
			return nil
		}
		s.mu.Unlock()
		select {
		case <-s.pendingFreed:
		case <-s.stopCh:
			// Draining on shutdown still has to land this block somewhere;
			// fall through and retry once more before giving up the loop.
		}
	}
}

// Close stops the flusher (after it drains any buffered rows) and blocks
// until it exits (§4.10, §5: "join the flusher thread").
func (s *BatchedSink) Close() error {
	close(s.stopCh)
	<-s.flusherDone
	return nil
}

func (s *BatchedSink) notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *BatchedSink) interval() time.Duration {
	if s.cfg.IntervalMs <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.cfg.IntervalMs) * time.Millisecond
}

// flusherLoop is the dedicated goroutine spawned in Open and joined in
// Close (§4.10's "Flusher thread").
func (s *BatchedSink) flusherLoop() {
	defer close(s.flusherDone)

	for {
		if block := s.takePending(); block != nil {
			s.flushWithRetry(block)
			continue
		}

		wait := s.timeUntilIntervalTrigger()
		select {
		case <-s.pendingReady:
			continue
		case <-time.After(wait):
			if block := s.takeCurrentIfDue(); block != nil {
				s.flushWithRetry(block)
			}
		case <-s.stopCh:
			s.drain()
			return
		}
	}
}

func (s *BatchedSink) takePending() *Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	block := s.pending
	s.pending = nil
	s.notify(s.pendingFreed)
	return block
}

func (s *BatchedSink) timeUntilIntervalTrigger() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	wait := s.lastFlushTs.Add(s.interval()).Sub(time.Now())
	if wait < 0 {
		return 0
	}
	return wait
}

func (s *BatchedSink) takeCurrentIfDue() *Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	if time.Since(s.lastFlushTs) < s.interval() || s.current.Rows() == 0 {
		return nil
	}
	block := s.current
	block.Finalize()
	s.current = NewBlock(s.cfg.Framing, s.cfg.Pool.Get(4096))
	return block
}

// drain finishes flushing whatever is left once stopCh fires, per §4.10's
// "On global stop: continue until both pending and the current block are
// empty, then exit."
func (s *BatchedSink) drain() {
	if block := s.takePending(); block != nil {
		s.flushWithRetry(block)
	}
	s.mu.Lock()
	final := s.current
	s.current = nil
	s.mu.Unlock()
	if final != nil && final.Rows() > 0 {
		final.Finalize()
		s.flushWithRetry(final)
	}
}

// flushWithRetry implements §4.10's retry policy: up to min(2,
// endpoint_count) attempts, rotating the endpoint index on each failure,
// starting at subtask_index mod endpoint_count. Exhausting the budget logs
// and drops the block (at-most-once delivery).
func (s *BatchedSink) flushWithRetry(block *Block) {
	attempts := 2
	if len(s.cfg.Endpoints) < attempts {
		attempts = len(s.cfg.Endpoints)
	}
	if attempts < 1 {
		attempts = 1
	}

	s.mu.Lock()
	idx := s.nextEndpoint
	s.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		endpoint := s.cfg.Endpoints[idx%len(s.cfg.Endpoints)]
		if err := endpoint.Flush(block); err != nil {
			lastErr = err
			idx++
			continue
		}
		lastErr = nil
		break
	}

	s.mu.Lock()
	s.nextEndpoint = idx % len(s.cfg.Endpoints)
	s.lastFlushTs = time.Now()
	s.mu.Unlock()

	if lastErr != nil {
		flowlog.Warn("sink[%s]: dropped block of %d rows after %d attempts: %v",
			s.cfg.OperatorID, block.Rows(), attempts, lastErr)
	} else if s.cfg.Counters != nil {
		s.cfg.Counters.IncBytesOut(int64(block.Bytes()))
	}
	s.cfg.Pool.Put(block.Buffer())
}
