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

// Package httpcore is an embeddable HTTP/1.1 connection lifecycle core:
// accept, parse, dispatch, emit, reap — byte-driven, with no dependency
// on net/http's own server loop.
//
// # Overview
//
// A Server binds one or more listeners from a Config, spawning one
// worker goroutine per accepted connection. Each worker runs a small
// state machine — initial read, preamble parse, optional
// Expect: 100-continue, body read, handler dispatch, drain, emit —
// looping for keep-alive until the connection closes or a configured
// limit is hit. A background reaper sweeps every live worker on a
// fixed tick, force-closing connections that time out or fall below a
// throughput floor.
//
// # Basic usage
//
//	cfg := httpcore.NewConfig()
//	cfg.Listeners = []httpcore.ListenerConfig{{BindAddr: "0.0.0.0:8080"}}
//
//	srv := httpcore.NewServer(cfg, httpcore.HandlerFunc(func(req *httpcore.Request, resp *httpcore.Response) {
//	    resp.SetStatus(200, "OK")
//	    resp.SetHeader("Content-Type", "text/plain")
//	    resp.Write([]byte("hello"))
//	}))
//
//	if err := srv.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Stop(context.Background())
//
// # Request and Response
//
// Request carries the parsed preamble (method, path, query, headers,
// cookies, negotiated locale/encoding) and an input stream the handler
// reads the body from. Response is write-once: every mutator
// (SetStatus, SetHeader, SetCookie, SetCompress) returns an
// AlreadyCommitted error once the first body byte has reached the
// socket. Framing (Content-Length vs chunked) and compression
// (gzip/deflate) are decided by the emitter, never by the handler.
//
// # Concurrency model
//
// One goroutine per connection, blocking sequential I/O — no internal
// event loop or poller. The reaper is the only component that reaches
// across goroutines, and it only ever closes a socket; it never
// touches a worker's buffers or parser state. Shutdown drains every
// listener, then gives in-flight workers up to Config.ShutdownDuration
// before the reaper force-closes whatever remains.
//
// # TLS
//
// Setting ListenerConfig.TLS wraps that listener's net.Listener with
// crypto/tls via tls.NewListener; certificate and key are supplied as
// PEM strings. The connection-lifecycle code downstream of Accept
// never distinguishes a *tls.Conn from a plain one except to decide
// Request.Scheme.
//
// # Error taxonomy
//
// hcerr.Code classifies failures in the same numeric range as HTTP
// status codes where one applies (BadRequest=400, HandlerThrew=500)
// and above 1000 where it doesn't (Timeout, Fatal, ConfigInvalid).
// hcerr.Error chains parent causes and satisfies errors.Is/errors.As.
//
// # Instrumentation
//
// instrument.Sink is the event surface the connection core emits to;
// instrument.Noop{} is the default, instrument.NewPrometheus wires
// accepted/closed connections, bytes read/written, bad requests and
// chunked traffic into Prometheus counters.
package httpcore
