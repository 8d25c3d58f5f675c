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

// Package emitter writes a framed HTTP/1.1 response: status line,
// header block, and a body framed either by Content-Length (when the
// whole body fits the response buffer) or by chunked
// Transfer-Encoding (spec.md §4.3). It owns the optional gzip/deflate
// compression stage and the commit boundary after which status and
// headers can no longer change.
package emitter

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// Header is one ordered (name, value) pair the caller wants emitted
// verbatim; framing and Content-Encoding headers are added by the
// Emitter itself and must not be included here.
type Header struct {
	Name  string
	Value string
}

// StatusLine is resolved lazily at commit time (first byte written, or
// Close with nothing written), so a handler may keep mutating the
// Response's status and headers right up until its first body write.
type StatusLine struct {
	Code    int
	Message string
	Headers []Header
}

// Options configures one response emission.
type Options struct {
	Protocol   string
	StatusLine func() StatusLine
	// Connection is resolved at commit time, same as StatusLine, so a
	// handler that sets Connection: close on the Response after Options
	// was built is still reflected in the header actually written.
	Connection      func() string
	Encoding        string // "gzip", "deflate", or "" for no compression
	BufferSize      int    // response_buffer_size; -1 disables buffering (always chunked)
	MaxChunkSize    int    // max_response_chunk_size
	OnCommit        func() // invoked exactly once, when the first byte reaches w
	ChunkedResponse func() // invoked once, when framing commits to chunked
}

// Emitter is the write end a Response's output stream is bound to.
// Write buffers or chunks; Close finalizes framing and flushes
// anything still pending.
type Emitter struct {
	w    *bufio.Writer
	opts Options

	buf       []byte
	chunked   bool
	committed bool
	closed    bool

	compressor io.WriteCloser
}

// New returns an Emitter ready to receive the handler's body writes.
func New(w io.Writer, opts Options) *Emitter {
	e := &Emitter{
		w:    bufio.NewWriter(w),
		opts: opts,
	}
	if opts.BufferSize < 0 {
		e.chunked = true
	}
	switch opts.Encoding {
	case "gzip":
		e.compressor = gzip.NewWriter(bodyWriter{e})
	case "deflate":
		fw, _ := flate.NewWriter(bodyWriter{e}, flate.DefaultCompression)
		e.compressor = fw
	}
	return e
}

// bodyWriter adapts Emitter's internal body sink to io.Writer so a
// compressor can write through it without knowing about framing.
type bodyWriter struct{ e *Emitter }

func (b bodyWriter) Write(p []byte) (int, error) {
	return b.e.writeBody(p)
}

// Write accepts handler output. If compression is configured, bytes
// are pushed through the encoder first; otherwise they go straight to
// the framing sink.
func (e *Emitter) Write(p []byte) (int, error) {
	if e.closed {
		return 0, fmt.Errorf("emitter: write after close")
	}
	if e.compressor != nil {
		return e.compressor.Write(p)
	}
	return e.writeBody(p)
}

// writeBody is the framing sink: it buffers until BufferSize is
// exceeded, then commits to chunked framing for the remainder of the
// response (spec.md §4.3, "emitter owns write side and decides
// framing").
func (e *Emitter) writeBody(p []byte) (int, error) {
	if e.chunked {
		if !e.committed {
			if err := e.commitChunked(); err != nil {
				return 0, err
			}
		}
		if err := e.writeChunk(p); err != nil {
			return 0, err
		}
		return len(p), nil
	}

	e.buf = append(e.buf, p...)
	if len(e.buf) > e.opts.BufferSize {
		e.chunked = true
		if err := e.commitChunked(); err != nil {
			return 0, err
		}
		pending := e.buf
		e.buf = nil
		if err := e.writeChunk(pending); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Close finalizes the response: if the whole body fit in the buffer,
// emits it Content-Length-framed in one shot; otherwise writes the
// terminating zero-size chunk. Safe to call exactly once.
func (e *Emitter) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	if e.compressor != nil {
		if err := e.compressor.Close(); err != nil {
			return err
		}
	}

	if e.chunked {
		if !e.committed {
			if err := e.commitChunked(); err != nil {
				return err
			}
		}
		if _, err := e.w.WriteString("0\r\n\r\n"); err != nil {
			return err
		}
		return e.w.Flush()
	}

	if err := e.commitFixed(int64(len(e.buf))); err != nil {
		return err
	}
	if len(e.buf) > 0 {
		if _, err := e.w.Write(e.buf); err != nil {
			return err
		}
	}
	return e.w.Flush()
}

func (e *Emitter) markCommitted() {
	if e.committed {
		return
	}
	e.committed = true
	if e.opts.OnCommit != nil {
		e.opts.OnCommit()
	}
}

func (e *Emitter) commitChunked() error {
	e.markCommitted()
	if e.opts.ChunkedResponse != nil {
		e.opts.ChunkedResponse()
	}
	return e.writeStatusAndHeaders("Transfer-Encoding", "chunked")
}

func (e *Emitter) commitFixed(length int64) error {
	e.markCommitted()
	return e.writeStatusAndHeaders("Content-Length", strconv.FormatInt(length, 10))
}

func (e *Emitter) writeStatusAndHeaders(framingName, framingValue string) error {
	line := StatusLine{Code: 200, Message: "OK"}
	if e.opts.StatusLine != nil {
		line = e.opts.StatusLine()
	}

	if _, err := fmt.Fprintf(e.w, "%s %d %s\r\n", e.opts.Protocol, line.Code, line.Message); err != nil {
		return err
	}
	for _, h := range line.Headers {
		if _, err := fmt.Fprintf(e.w, "%s: %s\r\n", h.Name, h.Value); err != nil {
			return err
		}
	}
	if e.opts.Encoding != "" {
		if _, err := fmt.Fprintf(e.w, "Content-Encoding: %s\r\n", e.opts.Encoding); err != nil {
			return err
		}
	}
	if !noFramingStatus(line.Code) {
		if _, err := fmt.Fprintf(e.w, "%s: %s\r\n", framingName, framingValue); err != nil {
			return err
		}
	}
	conn := "close"
	if e.opts.Connection != nil {
		conn = e.opts.Connection()
	}
	if _, err := fmt.Fprintf(e.w, "Connection: %s\r\n\r\n", conn); err != nil {
		return err
	}
	return nil
}

// noFramingStatus reports whether status carries neither Content-Length
// nor Transfer-Encoding (spec.md §8, "except for 1xx/204/304").
func noFramingStatus(status int) bool {
	return (status >= 100 && status < 200) || status == 204 || status == 304
}

func (e *Emitter) writeChunk(p []byte) error {
	max := e.opts.MaxChunkSize
	if max <= 0 {
		max = len(p)
		if max == 0 {
			max = 1
		}
	}
	for len(p) > 0 {
		n := len(p)
		if n > max {
			n = max
		}
		if _, err := fmt.Fprintf(e.w, "%x\r\n", n); err != nil {
			return err
		}
		if _, err := e.w.Write(p[:n]); err != nil {
			return err
		}
		if _, err := e.w.WriteString("\r\n"); err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

// Committed reports whether the first byte has reached the underlying
// writer yet.
func (e *Emitter) Committed() bool {
	return e.committed
}

// EmitEmpty commits an empty-body response immediately, discarding any
// buffered body bytes — used for the failure-override path (spec.md
// §4.3, "emit an empty-body response") and for the 400 Bad Request
// reply to a malformed preamble.
func (e *Emitter) EmitEmpty() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if err := e.commitFixed(0); err != nil {
		return err
	}
	return e.w.Flush()
}
