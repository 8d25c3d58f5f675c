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
	"bufio"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sabouaram/httpcore/hcerr"
	"github.com/sabouaram/httpcore/hclog"
	"github.com/sabouaram/httpcore/instrument"
	"github.com/sabouaram/httpcore/internal/body"
	"github.com/sabouaram/httpcore/internal/emitter"
	"github.com/sabouaram/httpcore/internal/preamble"
	"github.com/sabouaram/httpcore/internal/throughput"
)

// phase names the current step of the worker state machine, read by
// the reaper to pick the right timeout (spec.md §4.7).
type phase int

const (
	phaseInitialRead phase = iota
	phaseReadingBody
	phaseProcessing
	phaseWriting
	phaseKeepAliveIdle
)

// worker runs the per-connection state machine of spec.md §4.5 on its
// own goroutine: accept → initial read → parse preamble → optional
// Expect handling → read body → dispatch handler → drain → emit →
// loop or close. The state machine itself runs single-threaded, but
// phase and lastActivity are also read by the reaper's goroutine, so
// those two fields are atomic-backed; everything else is only ever
// touched by the worker's own goroutine.
type worker struct {
	id   string
	conn net.Conn
	cfg  *Config
	log  hclog.Logger
	sink instrument.Sink

	handler          Handler
	expect           ExpectValidator
	exceptionHandler UnexpectedExceptionHandler

	reader *bufio.Reader

	readTracker  *throughput.Tracker
	writeTracker *throughput.Tracker

	phaseVal        atomic.Int32
	lastActivityVal atomic.Int64
	requestsHandled int

	closed bool
}

func newWorker(conn net.Conn, cfg *Config, log hclog.Logger, sink instrument.Sink, handler Handler, expect ExpectValidator, exh UnexpectedExceptionHandler) *worker {
	if sink == nil {
		sink = instrument.Noop{}
	}
	if expect == nil {
		expect = AlwaysContinue{}
	}
	if exh == nil {
		exh = DefaultUnexpectedExceptionHandler{}
	}

	w := &worker{
		id:               uuid.NewString(),
		cfg:              cfg,
		log:              log,
		sink:             sink,
		handler:          handler,
		expect:           expect,
		exceptionHandler: exh,
		readTracker:      throughput.New(cfg.ReadThroughput.Delay),
		writeTracker:     throughput.New(cfg.WriteThroughput.Delay),
	}
	w.touch()
	w.conn = &trackingConn{Conn: conn, w: w}
	w.reader = bufio.NewReaderSize(w.conn, nonZero(cfg.RequestBufferSize, defaultRequestBufferSize))
	return w
}

// trackingConn feeds every byte read or written through the worker's
// throughput trackers and instrumentation sink, so the reaper's
// throughput-floor checks (spec.md §4.7/§4.8) see real numbers without
// the preamble FSM, body readers, or emitter needing to know about
// instrumentation at all.
type trackingConn struct {
	net.Conn
	w *worker
}

func (c *trackingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		now := time.Now()
		c.w.readTracker.Update(now, n)
		c.w.sink.ReadFromClient(n)
		c.w.touch()
	}
	return n, err
}

func (c *trackingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if n > 0 {
		now := time.Now()
		c.w.writeTracker.Update(now, n)
		c.w.sink.WroteToClient(n)
		c.w.touch()
	}
	return n, err
}

func nonZero(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// Phase reports the worker's current step, for the reaper.
func (w *worker) Phase() phase { return phase(w.phaseVal.Load()) }

func (w *worker) setPhase(p phase) {
	w.phaseVal.Store(int32(p))
	w.touch()
}

// IdleFor reports how long since the worker last made read/write
// progress or changed phase.
func (w *worker) IdleFor(now time.Time) time.Duration {
	last := time.Unix(0, w.lastActivityVal.Load())
	return now.Sub(last)
}

// ReadThroughput / WriteThroughput expose the underlying trackers for
// the reaper's throughput-floor evaluation (spec.md §4.7).
func (w *worker) ReadThroughput(now time.Time) float64  { return w.readTracker.BytesPerSecond(now) }
func (w *worker) WriteThroughput(now time.Time) float64 { return w.writeTracker.BytesPerSecond(now) }

// ForceClose is the reaper's only lever: it closes the socket, which
// fails the worker's in-flight blocking I/O (spec.md §5, "Cancellation").
func (w *worker) ForceClose() {
	_ = w.conn.Close()
}

// run drives the full keep-alive loop until the connection closes.
func (w *worker) run() {
	w.sink.WorkerStarted()
	defer func() {
		if r := recover(); r != nil {
			w.log.Entry(hclog.ErrorLevel, "worker panicked").WithField("recover", r).Log()
		}
		_ = w.conn.Close()
		w.sink.WorkerStopped()
		w.sink.ConnectionClosed()
	}()

	for {
		if w.requestsHandled == 0 {
			w.setPhase(phaseInitialRead)
			w.setDeadline(w.cfg.InitialReadTimeout)
		} else {
			w.setPhase(phaseKeepAliveIdle)
			w.setDeadline(w.cfg.KeepAliveTimeout)
		}

		req, readErr := w.parsePreamble()
		if readErr != nil {
			w.handlePreambleError(readErr)
			return
		}

		keepAlive, closeAfter := w.serveOne(req)
		w.requestsHandled++

		if closeAfter || !keepAlive || w.requestsHandled >= w.cfg.MaxRequestsPerConnection {
			return
		}
	}
}

// parsePreamble reads one request-line + header block, or returns the
// raw error (timeout / EOF / malformed) for run to classify.
func (w *worker) parsePreamble() (*Request, error) {
	result, err := preamble.Parse(w.reader, w.cfg.MaxRequestHeaderSize)
	if err != nil {
		return nil, err
	}

	req := NewRequest()
	req.Method = result.Method
	req.SetRawPath(result.RawPath)
	req.Protocol = result.Protocol
	req.ClientIP = clientIP(w.conn)
	req.ContextPath = w.cfg.ContextPath
	req.Scheme = "http"
	if w.isTLS() {
		req.Scheme = "https"
	}
	for _, h := range result.Headers {
		req.AddHeader(h.Name, h.Value)
	}
	req.Attributes["request-id"] = w.id
	w.sink.AcceptedRequest()
	return req, nil
}

func (w *worker) isTLS() bool {
	if tc, ok := w.conn.(*trackingConn); ok {
		_, ok := tc.Conn.(*tls.Conn)
		return ok
	}
	_, ok := w.conn.(*tls.Conn)
	return ok
}

func clientIP(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// handlePreambleError classifies a parse failure into the spec.md §7
// error taxonomy and reacts: BadRequest gets a 400 if nothing has been
// written yet; anything else (timeout, EOF, reset) closes silently.
func (w *worker) handlePreambleError(err error) {
	var badReq *preamble.Error
	var tooLarge *preamble.ErrTooLarge

	if errors.As(err, &badReq) || errors.As(err, &tooLarge) {
		w.sink.BadRequest()
		w.emitSimple(400, "Bad Request")
		return
	}

	if errors.Is(err, io.EOF) || isTimeoutErr(err) {
		return
	}
}

func isTimeoutErr(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// emitSimple writes a bare status line + Connection: close + no body,
// used for the 400 Bad Request path where no Request was ever fully
// parsed to build a Response from.
func (w *worker) emitSimple(status int, message string) {
	e := emitter.New(w.conn, emitter.Options{
		Protocol: "HTTP/1.1",
		StatusLine: func() emitter.StatusLine {
			return emitter.StatusLine{Code: status, Message: message}
		},
		Connection:   func() string { return "close" },
		BufferSize:   0,
		MaxChunkSize: w.cfg.MaxResponseChunkSize,
	})
	_ = e.EmitEmpty()
}

// serveOne runs one request/response cycle on an already-parsed
// preamble: body framing decision, optional 100-continue, dispatch,
// drain, emit. Returns whether the connection should be kept alive and
// whether it must be closed regardless (e.g. handler forced close).
func (w *worker) serveOne(req *Request) (keepAlive bool, closeNow bool) {
	resp := NewResponse()
	wantKeepAlive := wantsKeepAlive(req)

	// connection is resolved at commit time rather than captured here,
	// so a handler setting Connection: close during dispatch is still
	// the value actually written to the wire (spec.md §4.3/§6).
	connection := func() string {
		if strings.EqualFold(resp.Headers.Get("Connection"), "close") {
			return "close"
		}
		if wantKeepAlive && w.requestsHandled+1 < w.cfg.MaxRequestsPerConnection {
			return "keep-alive"
		}
		return "close"
	}

	encoding := ""
	if resp.CompressEnabled(w.cfg.CompressByDefault) {
		encoding = req.PreferredEncoding()
	}

	em := emitter.New(w.conn, emitter.Options{
		Protocol:        req.Protocol,
		StatusLine:      statusLineFunc(resp),
		Connection:      connection,
		Encoding:        encoding,
		BufferSize:      w.cfg.ResponseBufferSize,
		MaxChunkSize:    w.cfg.MaxResponseChunkSize,
		OnCommit:        resp.MarkCommitted,
		ChunkedResponse: w.sink.ChunkedResponse,
	})
	resp.Bind(em)

	if req.Headers.Get("Expect") == "100-continue" {
		if !w.expect.Validate(req, resp) || resp.StatusCode >= 300 {
			_ = resp.SetHeader("Connection", "close")
			_ = em.Close()
			return false, true
		}
		if _, err := io.WriteString(w.conn, "HTTP/1.1 100 Continue\r\n\r\n"); err != nil {
			return false, true
		}
	}

	bodyReader, hasBody := w.attachBody(req)

	w.setPhase(phaseProcessing)
	w.setDeadline(w.cfg.ProcessingTimeout)
	if w.dispatch(req, resp) {
		closeNow = true
	}

	if hasBody && connection() == "keep-alive" {
		w.setPhase(phaseReadingBody)
		if !w.drain(bodyReader, req) {
			_ = resp.SetHeader("Connection", "close")
			closeNow = true
		}
	}

	w.setPhase(phaseWriting)
	finish := em.Close
	if resp.Exception != nil && !resp.Committed() {
		finish = em.EmitEmpty
	}
	if err := finish(); err != nil {
		return false, true
	}

	if closeNow {
		return false, true
	}
	return connection() == "keep-alive", false
}

// statusLineFunc snapshots resp's status and headers at commit time,
// excluding the headers the emitter itself owns (Connection and
// Content-Encoding are added by the emitter; Content-Length and
// Transfer-Encoding are chosen by it and must never come from the
// handler).
func statusLineFunc(resp *Response) func() emitter.StatusLine {
	return func() emitter.StatusLine {
		names := resp.Headers.Names()
		out := make([]emitter.Header, 0, len(names))
		for _, name := range names {
			if name == "connection" || name == "content-encoding" || name == "content-length" || name == "transfer-encoding" {
				continue
			}
			for _, v := range resp.Headers.Values(name) {
				out = append(out, emitter.Header{Name: name, Value: v})
			}
		}
		for _, byPath := range resp.Cookies {
			for _, c := range byPath {
				out = append(out, emitter.Header{Name: "Set-Cookie", Value: c.String()})
			}
		}
		return emitter.StatusLine{Code: resp.StatusCode, Message: resp.Message, Headers: out}
	}
}

func (w *worker) attachBody(req *Request) (io.Reader, bool) {
	switch {
	case strings.EqualFold(req.TransferEncoding, "chunked"):
		// Chunked framing wins; a Content-Length sent alongside it is dropped.
		req.Headers.Del("Content-Length")
		req.HasContentLength = false
		req.ContentLength = -1
		ch := body.NewChunked(w.reader, w.sink.ChunkedRequest)
		limit := w.cfg.MaxBodySizeFor(req.ContentType)
		limited := body.NewLimited(ch, limit)
		req.SetInput(limited)
		return limited, true
	case req.HasContentLength && req.ContentLength > 0:
		fx := body.NewFixed(w.reader, req.ContentLength)
		limit := w.cfg.MaxBodySizeFor(req.ContentType)
		limited := body.NewLimited(fx, limit)
		req.SetInput(limited)
		return limited, true
	default:
		return nil, false
	}
}

// dispatch invokes the handler, recovering a panic as HandlerThrew
// (spec.md §7) and mapping it to a status via the exception handler
// when the response has not yet been committed. It reports whether the
// connection must be force-closed afterward: a panic that unwound
// after the response was already committed leaves the wire in a state
// no further framing can repair (spec.md §7, "if committed, close").
func (w *worker) dispatch(req *Request, resp *Response) (forceClose bool) {
	defer func() {
		if r := recover(); r != nil {
			forceClose = w.onHandlerPanic(req, resp, r)
		}
	}()
	w.handler.Handle(req, resp)
	return false
}

func (w *worker) onHandlerPanic(req *Request, resp *Response, recovered interface{}) (forceClose bool) {
	w.log.Entry(hclog.ErrorLevel, "handler panicked").
		WithField("request-id", req.Attributes["request-id"]).
		ErrorAdd(true, hcerr.HandlerThrew.Error()).
		Log()

	resp.Exception = hcerr.HandlerThrew.Error()
	if resp.Committed() {
		return true
	}

	status := w.exceptionHandler.HandleException(ExceptionContext{
		Request:        req,
		Recovered:      recovered,
		ProposedStatus: 500,
	})
	resp.Headers.Reset()
	_ = resp.SetStatus(status, "Internal Server Error")
	return false
}

// drain discards up to max_bytes_to_drain of any body the handler left
// unread, so the next keep-alive request starts at the right offset
// (spec.md §4.5, "Drain semantics"). Skipped once Connection: close is
// already decided (spec.md §9 Open Question resolution). It reports
// whether the body was fully consumed within the cap: io.CopyN only
// returns nil once it copied exactly MaxBytesToDrain bytes, so a nil
// error is followed by a one-byte sentinel read. EOF there means the
// body ended exactly at the cap; anything else means bytes remain ahead
// of the next request line, and the connection must not be reused.
func (w *worker) drain(r io.Reader, req *Request) bool {
	if strings.EqualFold(req.Headers.Get("Connection"), "close") {
		return true
	}
	if w.cfg.MaxBytesToDrain <= 0 {
		return true
	}

	if _, err := io.CopyN(io.Discard, r, w.cfg.MaxBytesToDrain); err != nil {
		return errors.Is(err, io.EOF)
	}

	var sentinel [1]byte
	_, err := r.Read(sentinel[:])
	return errors.Is(err, io.EOF)
}

func (w *worker) touch() {
	w.lastActivityVal.Store(time.Now().UnixNano())
}

func (w *worker) setDeadline(d time.Duration) {
	if d <= 0 {
		return
	}
	_ = w.conn.SetDeadline(time.Now().Add(d))
}

// wantsKeepAlive applies the HTTP/1.0-vs-1.1 default arbitration from
// spec.md §4.3: 1.1 defaults to keep-alive unless either side asked for
// close; 1.0 defaults to close unless the request explicitly asked for
// keep-alive.
func wantsKeepAlive(req *Request) bool {
	conn := strings.ToLower(req.Headers.Get("Connection"))
	switch req.Protocol {
	case "HTTP/1.1":
		return conn != "close"
	default:
		return conn == "keep-alive"
	}
}
