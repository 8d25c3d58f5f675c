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
	"net"
	"sync"
	"time"

	"github.com/sabouaram/httpcore/hcerr"
	"github.com/sabouaram/httpcore/hclog"
	"github.com/sabouaram/httpcore/instrument"
)

// acceptor owns one bound listener and spawns one worker goroutine per
// accepted connection (spec.md §4.6). Every worker it spawns is handed
// to the reaper's registry before the acceptor blocks on the next
// Accept call.
type acceptor struct {
	name     string
	listener net.Listener
	cfg      *Config
	log      hclog.Logger
	sink     instrument.Sink

	handler          Handler
	expect           ExpectValidator
	exceptionHandler UnexpectedExceptionHandler

	reaper *reaper

	mu       sync.Mutex
	draining bool
}

func newAcceptor(name string, ln net.Listener, cfg *Config, log hclog.Logger, sink instrument.Sink, handler Handler, expect ExpectValidator, exh UnexpectedExceptionHandler, r *reaper) *acceptor {
	return &acceptor{
		name:             name,
		listener:         ln,
		cfg:              cfg,
		log:              log,
		sink:             sink,
		handler:          handler,
		expect:           expect,
		exceptionHandler: exh,
		reaper:           r,
	}
}

// serve blocks, accepting connections until the listener closes. A
// transient accept error is logged and retried; once the acceptor has
// been told to drain, any accept error ends the loop quietly.
func (a *acceptor) serve() {
	var backoff time.Duration

	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if a.isDraining() {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			a.log.Entry(hclog.ErrorLevel, "accept failed").ErrorAdd(true, hcerr.ListenFailed.Error(err)).Log()
			backoff = nextBackoff(backoff)
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		a.sink.AcceptedConnection()
		w := newWorker(conn, a.cfg, a.log, a.sink, a.handler, a.expect, a.exceptionHandler)
		a.reaper.register(w)
		go func() {
			defer a.reaper.unregister(w)
			w.run()
		}()
	}
}

func nextBackoff(prev time.Duration) time.Duration {
	if prev <= 0 {
		return 5 * time.Millisecond
	}
	next := prev * 2
	if next > time.Second {
		return time.Second
	}
	return next
}

func (a *acceptor) isDraining() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.draining
}

// drain stops new accepts by closing the listener; in-flight workers
// are left to the reaper's shutdown-duration grace period (spec.md §5).
func (a *acceptor) drain() error {
	a.mu.Lock()
	a.draining = true
	a.mu.Unlock()
	return a.listener.Close()
}
