/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package throughput tracks bytes/sec for one direction (read or
// write) of one connection, so the reaper can evaluate a throughput
// floor without touching worker-owned buffers (spec.md §4.8).
package throughput

import (
	"sync/atomic"
	"time"
)

// Tracker holds the counters for a single direction. Updates happen
// only on the owning worker goroutine; BytesPerSecond/IdleFor may be
// called concurrently from the reaper goroutine and tolerate a torn
// read by re-deriving from atomically-stored fields.
type Tracker struct {
	firstAt    atomic.Int64 // UnixNano, 0 until first update
	lastAt     atomic.Int64 // UnixNano
	bytes      atomic.Int64
	delayNanos int64 // warm-up window before enforcement
}

// New returns a Tracker whose throughput floor is not enforced until
// delay has elapsed since the first byte.
func New(delay time.Duration) *Tracker {
	return &Tracker{delayNanos: int64(delay)}
}

// Update records n additional bytes transferred at "now".
func (t *Tracker) Update(now time.Time, n int) {
	if n <= 0 {
		return
	}
	if t.firstAt.Load() == 0 {
		t.firstAt.Store(now.UnixNano())
	}
	t.lastAt.Store(now.UnixNano())
	t.bytes.Add(int64(n))
}

// BytesPerSecond returns the observed throughput as of now. Before the
// warm-up delay has elapsed since the first byte, it returns -1 to mean
// "infinite" (spec.md §4.8: the reaper must never trip during warm-up).
func (t *Tracker) BytesPerSecond(now time.Time) float64 {
	first := t.firstAt.Load()
	if first == 0 {
		return -1
	}

	elapsed := now.UnixNano() - first
	if elapsed < t.delayNanos {
		return -1
	}
	if elapsed <= 0 {
		return -1
	}

	b := t.bytes.Load()
	seconds := float64(elapsed) / float64(time.Second)
	if seconds <= 0 {
		return -1
	}
	return float64(b) / seconds
}

// IdleFor returns how long it has been since the last recorded byte.
// If no byte has been recorded yet, it returns 0.
func (t *Tracker) IdleFor(now time.Time) time.Duration {
	last := t.lastAt.Load()
	if last == 0 {
		return 0
	}
	return time.Duration(now.UnixNano() - last)
}

// BytesTotal returns the cumulative byte count.
func (t *Tracker) BytesTotal() int64 {
	return t.bytes.Load()
}
