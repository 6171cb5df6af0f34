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
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowetl/flowetl/internal/row"
	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/value"
)

func idRow(id int32) *row.GenericRow {
	return row.WrapGenericRow([]value.Value{value.NewInt(id)})
}

func TestBlock_RoundTripsFramingAndRows(t *testing.T) {
	b := NewBlock(JSONArrayFraming, nil)
	b.AppendRow([]byte(`{"a":1}`))
	b.AppendRow([]byte(`{"a":2}`))
	b.Finalize()

	assert.Equal(t, `[{"a":1},{"a":2}]`, string(b.Buffer()))
	assert.Equal(t, 2, b.Rows())
}

func TestBufferPool_ReusesUnexpiredBuffer(t *testing.T) {
	pool := NewBufferPool(time.Minute)
	buf := pool.Get(4096)
	buf = append(buf, []byte("hello")...)
	pool.Put(buf)

	reused := pool.Get(4096)
	assert.Equal(t, 0, len(reused))
	assert.GreaterOrEqual(t, cap(reused), 4096)
}

func TestBufferPool_EvictsExpiredBuffer(t *testing.T) {
	pool := NewBufferPool(time.Nanosecond)
	pool.Put(pool.Get(4096))
	time.Sleep(time.Millisecond)

	fresh := pool.Get(4096)
	assert.Equal(t, 0, len(fresh))
}

// recordingEndpoint counts Flush calls and can be configured to fail its
// first N calls, to exercise the retry/rotation policy.
type recordingEndpoint struct {
	name       string
	mu         sync.Mutex
	failTimes  int
	flushCount int
	totalRows  int
}

func (e *recordingEndpoint) Flush(b *Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushCount++
	if e.failTimes > 0 {
		e.failTimes--
		return fmt.Errorf("%s: simulated failure", e.name)
	}
	e.totalRows += b.Rows()
	return nil
}

func TestWriterSink_WritesOneJSONLinePerRow(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf, schema.Schema{{Name: "id", DataType: schema.Int}})
	require.NoError(t, s.Open())
	require.NoError(t, s.Invoke(idRow(1)))
	require.NoError(t, s.Invoke(idRow(2)))
	require.NoError(t, s.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, 2, s.RowsWritten())
}

func TestBatchedSink_FlushesAtMaxRows(t *testing.T) {
	ep := &recordingEndpoint{name: "e0"}
	s := NewBatchedSink(BatchedConfig{
		Framing:    NDJSONFraming,
		Serialize:  JSONRowSerializer(schema.Schema{{Name: "id", DataType: schema.Int}}),
		MaxRows:    3,
		IntervalMs: 60_000,
		Endpoints:  []Endpoint{ep},
		OperatorID: "sink-0",
	})
	require.NoError(t, s.Open())
	for i := int32(1); i <= 3; i++ {
		require.NoError(t, s.Invoke(idRow(i)))
	}
	require.NoError(t, s.Close())

	ep.mu.Lock()
	defer ep.mu.Unlock()
	assert.Equal(t, 1, ep.flushCount)
	assert.Equal(t, 3, ep.totalRows)
}

func TestBatchedSink_RetriesAcrossEndpointsThenDropsAfterBudget(t *testing.T) {
	ep0 := &recordingEndpoint{name: "e0", failTimes: 10}
	ep1 := &recordingEndpoint{name: "e1", failTimes: 10}
	s := NewBatchedSink(BatchedConfig{
		Framing:    NDJSONFraming,
		Serialize:  JSONRowSerializer(schema.Schema{{Name: "id", DataType: schema.Int}}),
		MaxRows:    1,
		IntervalMs: 60_000,
		Endpoints:  []Endpoint{ep0, ep1},
		OperatorID: "sink-0",
	})
	require.NoError(t, s.Open())
	require.NoError(t, s.Invoke(idRow(1)))
	require.NoError(t, s.Close())

	// min(2, endpoint_count) = 2 attempts total, spread across ep0/ep1.
	assert.Equal(t, 2, ep0.flushCount+ep1.flushCount)
	assert.Equal(t, 0, ep0.totalRows+ep1.totalRows)
}

func TestBatchedSink_EndpointRotationStartsAtSubtaskIndex(t *testing.T) {
	ep0 := &recordingEndpoint{name: "e0"}
	ep1 := &recordingEndpoint{name: "e1"}
	s := NewBatchedSink(BatchedConfig{
		Framing:      NDJSONFraming,
		Serialize:    JSONRowSerializer(schema.Schema{{Name: "id", DataType: schema.Int}}),
		MaxRows:      1,
		IntervalMs:   60_000,
		Endpoints:    []Endpoint{ep0, ep1},
		SubtaskIndex: 1,
		OperatorID:   "sink-1",
	})
	require.NoError(t, s.Open())
	require.NoError(t, s.Invoke(idRow(1)))
	require.NoError(t, s.Close())

	assert.Equal(t, 0, ep0.flushCount)
	assert.Equal(t, 1, ep1.flushCount)
}

func TestBatchedSink_IntervalTriggerFlushesPartialBlock(t *testing.T) {
	ep := &recordingEndpoint{name: "e0"}
	s := NewBatchedSink(BatchedConfig{
		Framing:    NDJSONFraming,
		Serialize:  JSONRowSerializer(schema.Schema{{Name: "id", DataType: schema.Int}}),
		MaxRows:    1000,
		IntervalMs: 20,
		Endpoints:  []Endpoint{ep},
		OperatorID: "sink-0",
	})
	require.NoError(t, s.Open())
	require.NoError(t, s.Invoke(idRow(1)))

	require.Eventually(t, func() bool {
		ep.mu.Lock()
		defer ep.mu.Unlock()
		return ep.flushCount >= 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Close())
	assert.Equal(t, 1, ep.totalRows)
}
