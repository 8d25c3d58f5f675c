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
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/sabouaram/httpcore/hcerr"
	"github.com/sabouaram/httpcore/hclog"
	"github.com/sabouaram/httpcore/instrument"
)

// Server owns the listeners described by a Config, the reaper that
// sweeps their workers, and the handler chain every worker dispatches
// into. It mirrors the teacher's server/runFuncStart-runFuncStop shape
// (nabbar-golib httpserver/server.go, run.go) generalized to an
// arbitrary number of listeners instead of exactly one *http.Server.
type Server struct {
	cfg *Config

	log  hclog.Logger
	sink instrument.Sink

	handler          Handler
	expect           ExpectValidator
	exceptionHandler UnexpectedExceptionHandler

	running atomic.Bool

	mu        sync.Mutex
	acceptors []*acceptor
	reaper    *reaper
	group     *errgroup.Group
}

// NewServer returns a Server bound to cfg and handler, with the
// null-safe defaults (Noop sink, AlwaysContinue expect validator,
// DefaultUnexpectedExceptionHandler) every SetX method can override
// before Start.
func NewServer(cfg *Config, handler Handler) *Server {
	return &Server{
		cfg:              cfg,
		log:              hclog.New("httpcore"),
		sink:             instrument.Noop{},
		handler:          handler,
		expect:           AlwaysContinue{},
		exceptionHandler: DefaultUnexpectedExceptionHandler{},
	}
}

func (s *Server) SetLogger(l hclog.Logger) {
	if l != nil {
		s.log = l
	}
}

func (s *Server) SetSink(sink instrument.Sink) {
	if sink != nil {
		s.sink = sink
	}
}

func (s *Server) SetExpectValidator(v ExpectValidator) {
	if v != nil {
		s.expect = v
	}
}

func (s *Server) SetExceptionHandler(h UnexpectedExceptionHandler) {
	if h != nil {
		s.exceptionHandler = h
	}
}

// IsRunning reports whether Start has completed and Stop has not yet
// been called.
func (s *Server) IsRunning() bool {
	return s.running.Load()
}

// Start validates cfg, binds every configured listener (wrapping it in
// TLS first when requested), starts the reaper, and spawns one
// accept-loop goroutine per listener under an errgroup, whose Wait in
// Stop blocks until every accept loop has returned.
// A partially bound listener set on error is closed before returning.
func (s *Server) Start(_ context.Context) error {
	if s.running.Load() {
		return nil
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.reaper = newReaper(s.cfg, s.sink)
	go s.reaper.run()

	agg := hcerr.Multi()
	acceptors := make([]*acceptor, 0, len(s.cfg.Listeners))

	for i := range s.cfg.Listeners {
		lc := s.cfg.Listeners[i]

		ln, err := net.Listen("tcp", lc.BindAddr)
		if err != nil {
			agg = multierror.Append(agg, hcerr.ListenFailed.Error(err))
			continue
		}

		if lc.TLS {
			tln, terr := wrapTLSListener(ln, &lc)
			if terr != nil {
				_ = ln.Close()
				agg = multierror.Append(agg, terr)
				continue
			}
			ln = tln
		}

		acceptors = append(acceptors, newAcceptor(lc.BindAddr, ln, s.cfg, s.log, s.sink, s.handler, s.expect, s.exceptionHandler, s.reaper))
	}

	if agg.ErrorOrNil() != nil {
		for _, a := range acceptors {
			_ = a.listener.Close()
		}
		s.reaper.shutdown(0)
		return agg.ErrorOrNil()
	}

	s.acceptors = acceptors

	group := &errgroup.Group{}
	for _, a := range acceptors {
		a := a
		group.Go(func() error {
			a.serve()
			return nil
		})
	}
	s.group = group

	s.running.Store(true)
	s.sink.ServerStarted()
	s.log.Entry(hclog.InfoLevel, "server started").WithField("listeners", len(acceptors)).Log()
	return nil
}

// Stop drains every listener (refusing new accepts), gives in-flight
// workers up to cfg.ShutdownDuration to finish via the reaper, then
// force-closes stragglers. It returns early if ctx is canceled first,
// mirroring the teacher's context-bounded runFuncStop.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.Load() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.acceptors {
		_ = a.drain()
	}

	done := make(chan struct{})
	go func() {
		s.reaper.shutdown(s.cfg.ShutdownDuration)
		_ = s.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	s.acceptors = nil
	s.running.Store(false)
	s.log.Entry(hclog.InfoLevel, "server stopped").Log()
	return nil
}

// HealthCheck reports the server's liveness: not running is an
// immediate failure; otherwise every bound listener gets a short
// dial-back probe, the same PortNotUse-style check the teacher's
// srv.HealthCheck performs, aggregated so one dead listener doesn't
// mask a report on the others.
func (s *Server) HealthCheck(ctx context.Context) error {
	if !s.running.Load() {
		return hcerr.Fatal.Error(fmt.Errorf("server is not running"))
	}

	s.mu.Lock()
	accs := append([]*acceptor(nil), s.acceptors...)
	s.mu.Unlock()

	agg := hcerr.Multi()
	dialer := net.Dialer{Timeout: 2 * time.Second}

	for _, a := range accs {
		addr := a.listener.Addr()
		conn, err := dialer.DialContext(ctx, addr.Network(), addr.String())
		if err != nil {
			agg = multierror.Append(agg, hcerr.ListenFailed.Error(err))
			continue
		}
		_ = conn.Close()
	}

	return agg.ErrorOrNil()
}
