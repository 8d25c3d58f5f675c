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

// Package hcerr defines the error taxonomy used across the connection
// lifecycle core: a small numeric Code type (HTTP-status-shaped), a
// registry mapping codes to human messages, and an Error wrapper that
// can chain parent causes.
package hcerr

import "strconv"

// Code is a numeric error classifier, HTTP-status-shaped on purpose so
// that a BadRequest code and an HTTP 400 status read the same.
type Code uint16

const (
	Unknown Code = 0

	// BadRequest: preamble FSM rejected a byte, header size exceeded,
	// chunk size malformed, or body size exceeded.
	BadRequest Code = 400

	// RequestEntityTooLarge: body exceeded max_request_body_size.
	RequestEntityTooLarge Code = 413

	// ClientAbort: socket I/O failed mid-read/mid-write due to peer
	// behavior (connection reset, half-close, ...).
	ClientAbort Code = 499

	// PrematureEOF: body reader hit EOF before the declared length.
	PrematureEOF Code = 1001

	// Timeout: reaper-initiated close (idle, slow read/write, or
	// processing deadline exceeded).
	Timeout Code = 1002

	// HandlerThrew: uncaught panic/error from the application handler.
	HandlerThrew Code = 500

	// Fatal: internal invariant violation.
	Fatal Code = 1003

	// ConfigInvalid: Config.Validate() rejected the configuration.
	ConfigInvalid Code = 1004

	// ListenFailed: the acceptor could not bind or accept.
	ListenFailed Code = 1005

	// AlreadyCommitted: an attempt to mutate a Response after commit.
	AlreadyCommitted Code = 1006

	// TLSConfigInvalid: certificate/key pair failed to parse or load.
	TLSConfigInvalid Code = 1007
)

var messages = map[Code]string{
	Unknown:                "unknown error",
	BadRequest:              "malformed request preamble or body",
	RequestEntityTooLarge:   "request body exceeds configured limit",
	ClientAbort:             "client closed or reset the connection",
	PrematureEOF:            "peer closed before declared body length was read",
	Timeout:                 "connection exceeded its phase timeout or throughput floor",
	HandlerThrew:            "application handler returned an error",
	Fatal:                   "internal invariant violation",
	ConfigInvalid:           "server configuration failed validation",
	ListenFailed:            "listener failed to bind or accept",
	AlreadyCommitted:        "response already committed",
	TLSConfigInvalid:        "certificate or private key failed to parse",
}

// Message returns the registered human-readable text for c, or the
// fallback "unknown error" text if c was never registered.
func (c Code) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[Unknown]
}

func (c Code) String() string {
	return strconv.Itoa(int(c))
}

// Error builds an Error value from this code and zero or more parent
// causes. A nil parent is silently dropped.
func (c Code) Error(parents ...error) *Error {
	e := &Error{code: c, message: c.Message()}
	for _, p := range parents {
		if p != nil {
			e.parents = append(e.parents, p)
		}
	}
	return e
}
