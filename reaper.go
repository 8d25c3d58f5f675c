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

package httpcore

import (
	"sync"
	"time"

	"github.com/sabouaram/httpcore/instrument"
)

const reaperTick = 1 * time.Second

// reaper is the background sweeper of spec.md §4.7: on a fixed
// interval it evaluates every registered worker for a timed-out phase
// or a throughput-floor violation and force-closes the offenders. It
// never touches worker-owned buffers or parser state — closing the
// socket is its only lever (spec.md §9, "Reaper-worker interaction").
type reaper struct {
	cfg  *Config
	sink instrument.Sink

	mu      sync.Mutex
	workers map[*worker]struct{}

	stop chan struct{}
	done chan struct{}
}

func newReaper(cfg *Config, sink instrument.Sink) *reaper {
	return &reaper{
		cfg:     cfg,
		sink:    sink,
		workers: make(map[*worker]struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (r *reaper) register(w *worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[w] = struct{}{}
}

func (r *reaper) unregister(w *worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, w)
}

func (r *reaper) snapshot() []*worker {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*worker, 0, len(r.workers))
	for w := range r.workers {
		out = append(out, w)
	}
	return out
}

func (r *reaper) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// run loops until stop is closed, sweeping every reaperTick.
func (r *reaper) run() {
	defer close(r.done)
	ticker := time.NewTicker(reaperTick)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep(time.Now())
		}
	}
}

func (r *reaper) sweep(now time.Time) {
	for _, w := range r.snapshot() {
		if r.shouldReap(w, now) {
			w.ForceClose()
			r.sink.ConnectionClosed()
		}
	}
}

// shouldReap evaluates the three conditions of spec.md §4.7:
// readingSlow, writingSlow, timedOut.
func (r *reaper) shouldReap(w *worker, now time.Time) bool {
	if r.readingSlow(w, now) || r.writingSlow(w, now) || r.timedOut(w, now) {
		return true
	}
	return false
}

func (r *reaper) readingSlow(w *worker, now time.Time) bool {
	switch w.Phase() {
	case phaseInitialRead, phaseProcessing, phaseReadingBody:
	default:
		return false
	}
	floor := r.cfg.ReadThroughput.MinBytesPerSecond
	if floor <= 0 {
		return false
	}
	bps := w.ReadThroughput(now)
	return bps >= 0 && bps < float64(floor)
}

func (r *reaper) writingSlow(w *worker, now time.Time) bool {
	if w.Phase() != phaseWriting {
		return false
	}
	floor := r.cfg.WriteThroughput.MinBytesPerSecond
	if floor <= 0 {
		return false
	}
	bps := w.WriteThroughput(now)
	return bps >= 0 && bps < float64(floor)
}

func (r *reaper) timedOut(w *worker, now time.Time) bool {
	var phaseTimeout time.Duration
	switch w.Phase() {
	case phaseInitialRead:
		phaseTimeout = r.cfg.InitialReadTimeout
	case phaseKeepAliveIdle:
		phaseTimeout = r.cfg.KeepAliveTimeout
	case phaseProcessing, phaseWriting, phaseReadingBody:
		phaseTimeout = r.cfg.ProcessingTimeout
	default:
		return false
	}
	if phaseTimeout <= 0 {
		return false
	}
	return w.IdleFor(now) > phaseTimeout
}

// shutdown stops the sweep loop and, once grace has elapsed, forcibly
// closes whatever workers remain (spec.md §5, "Cancellation").
func (r *reaper) shutdown(grace time.Duration) {
	close(r.stop)
	<-r.done

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if r.count() == 0 {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	for _, w := range r.snapshot() {
		w.ForceClose()
	}
}
