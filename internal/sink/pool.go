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
	"sync"
	"time"
)

// DefaultBufferTTL is how long a freed buffer sits in the pool before it
// is no longer handed back out (§4.10: "bounded retention (TTL, e.g. 600
// s)").
const DefaultBufferTTL = 600 * time.Second

// sizeClass buckets a requested capacity into a power-of-two-ish class so
// buffers of similar size are reused instead of forcing an exact-size
// match.
func sizeClass(capHint int) int {
	class := 4096
	for class < capHint {
		class *= 2
	}
	return class
}

type pooledBuffer struct {
	buf     []byte
	freedAt time.Time
}

// BufferPool reclaims freed block buffers, keyed by size class, so the
// batched-sink producer doesn't allocate a fresh backing array for every
// Block (§4.10, §5: "internally synchronized and may be shared across
// subtasks of the same sink type").
type BufferPool struct {
	mu      sync.Mutex
	ttl     time.Duration
	classes map[int][]pooledBuffer
}

// NewBufferPool returns an empty pool with the given retention TTL; ttl
// <= 0 uses DefaultBufferTTL.
func NewBufferPool(ttl time.Duration) *BufferPool {
	if ttl <= 0 {
		ttl = DefaultBufferTTL
	}
	return &BufferPool{ttl: ttl, classes: make(map[int][]pooledBuffer)}
}

// Get returns a buffer with at least capHint capacity, reusing a pooled
// one if an unexpired match exists in its size class.
func (p *BufferPool) Get(capHint int) []byte {
	class := sizeClass(capHint)

	p.mu.Lock()
	defer p.mu.Unlock()

	bucket := p.classes[class]
	now := time.Now()
	for len(bucket) > 0 {
		last := bucket[len(bucket)-1]
		bucket = bucket[:len(bucket)-1]
		p.classes[class] = bucket
		if now.Sub(last.freedAt) <= p.ttl {
			return last.buf[:0]
		}
		// expired: drop it, keep looking.
	}
	return make([]byte, 0, class)
}

// Put returns buf to the pool for later reuse, stamped with the current
// time so a later Get can evict it once the pool's TTL has elapsed.
func (p *BufferPool) Put(buf []byte) {
	class := sizeClass(cap(buf))
	p.mu.Lock()
	defer p.mu.Unlock()
	p.classes[class] = append(p.classes[class], pooledBuffer{buf: buf, freedAt: time.Now()})
}
