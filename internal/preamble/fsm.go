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

// Package preamble implements the strict, byte-driven finite-state
// machine that parses an HTTP/1.1 request-line plus header block
// (spec.md §4.1). It knows nothing about bodies, handlers or sockets;
// it only turns bytes into a Result.
package preamble

import (
	"bufio"
	"fmt"

	"golang.org/x/net/http/httpguts"
)

type state int

const (
	stMethod state = iota
	stMethodSP
	stPath
	stPathSP
	stProtocol
	stReqCR
	stReqLF
	stHeaderName
	stHeaderColon
	stHeaderValue
	stHeaderCR
	stHeaderLF
	stPreambleCR
	stComplete
)

// Header is one raw header line as parsed off the wire: Name is
// lowercased, Value has leading/trailing optional whitespace trimmed.
type Header struct {
	Name  string
	Value string
}

// Result is the parsed request-line and header block. Header decode
// side-effects (Content-Length, cookies, locales, ...) are applied by
// the caller as each Header is appended, per spec.md §4.1.
type Result struct {
	Method   string
	RawPath  string
	Protocol string
	Headers  []Header
}

// Error carries the offending byte and the FSM state name, per
// spec.md §4.1 ("the FSM fails with BadRequest carrying the offending
// character and state name").
type Error struct {
	State string
	Byte  byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("bad request: unexpected byte %q in state %s", e.Byte, e.State)
}

func (s state) String() string {
	switch s {
	case stMethod:
		return "RequestMethod"
	case stMethodSP:
		return "RequestMethodSP"
	case stPath:
		return "RequestPath"
	case stPathSP:
		return "RequestPathSP"
	case stProtocol:
		return "RequestProtocol"
	case stReqCR:
		return "RequestCR"
	case stReqLF:
		return "RequestLF"
	case stHeaderName:
		return "HeaderName"
	case stHeaderColon:
		return "HeaderColon"
	case stHeaderValue:
		return "HeaderValue"
	case stHeaderCR:
		return "HeaderCR"
	case stHeaderLF:
		return "HeaderLF"
	case stPreambleCR:
		return "PreambleCR"
	default:
		return "Complete"
	}
}

const maxHeaderNameLen = 256

// ErrTooLarge is returned when the cumulative preamble exceeds the
// configured ceiling.
type ErrTooLarge struct{ Limit int }

func (e *ErrTooLarge) Error() string {
	return fmt.Sprintf("bad request: preamble exceeds %d bytes", e.Limit)
}

// Parse reads one request-line + header block from r, byte by byte,
// enforcing maxSize across the cumulative bytes consumed (maxSize <= 0
// disables the limit). It stops exactly after the terminating blank
// line's LF, leaving any subsequent bytes (the body) unread in r.
func Parse(r *bufio.Reader, maxSize int) (*Result, error) {
	var (
		st       = stMethod
		method   []byte
		path     []byte
		protocol []byte
		hname    []byte
		hvalue   []byte
		result   = &Result{}
		consumed int
	)

	finishHeader := func() {
		name := lowerASCII(hname)
		value := trimOWS(hvalue)
		result.Headers = append(result.Headers, Header{Name: string(name), Value: string(value)})
		hname = hname[:0]
		hvalue = hvalue[:0]
	}

	for st != stComplete {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}

		consumed++
		if maxSize > 0 && consumed > maxSize {
			return nil, &ErrTooLarge{Limit: maxSize}
		}

		switch st {
		case stMethod:
			switch {
			case b == ' ':
				result.Method = string(method)
				st = stMethodSP
			case isMethodChar(b):
				method = append(method, b)
			default:
				return nil, &Error{State: st.String(), Byte: b}
			}

		case stMethodSP:
			if !isURIChar(b) {
				return nil, &Error{State: st.String(), Byte: b}
			}
			path = append(path, b)
			st = stPath

		case stPath:
			switch {
			case b == ' ':
				result.RawPath = string(path)
				st = stPathSP
			case isURIChar(b):
				path = append(path, b)
			default:
				return nil, &Error{State: st.String(), Byte: b}
			}

		case stPathSP:
			if !isURIChar(b) {
				return nil, &Error{State: st.String(), Byte: b}
			}
			protocol = append(protocol, b)
			st = stProtocol

		case stProtocol:
			switch {
			case b == '\r':
				result.Protocol = string(protocol)
				st = stReqCR
			case isURIChar(b):
				protocol = append(protocol, b)
			default:
				return nil, &Error{State: st.String(), Byte: b}
			}

		case stReqCR:
			if b != '\n' {
				return nil, &Error{State: st.String(), Byte: b}
			}
			st = stReqLF

		case stReqLF, stHeaderLF:
			switch {
			case b == '\r':
				st = stPreambleCR
			case isTokenChar(b):
				hname = append(hname, b)
				st = stHeaderName
			default:
				return nil, &Error{State: st.String(), Byte: b}
			}

		case stHeaderName:
			switch {
			case b == ':':
				if len(hname) > maxHeaderNameLen {
					return nil, &Error{State: st.String(), Byte: b}
				}
				st = stHeaderColon
			case isTokenChar(b):
				hname = append(hname, b)
			default:
				return nil, &Error{State: st.String(), Byte: b}
			}

		case stHeaderColon:
			switch {
			case b == ' ' || b == '\t':
				// stay in stHeaderColon, skip leading whitespace
			case b == '\r':
				// empty header value
				finishHeader()
				st = stHeaderCR
			default:
				hvalue = append(hvalue, b)
				st = stHeaderValue
			}

		case stHeaderValue:
			switch {
			case b == '\r':
				finishHeader()
				st = stHeaderCR
			case isValueChar(b):
				hvalue = append(hvalue, b)
			default:
				return nil, &Error{State: st.String(), Byte: b}
			}

		case stHeaderCR:
			if b != '\n' {
				return nil, &Error{State: st.String(), Byte: b}
			}
			st = stHeaderLF

		case stPreambleCR:
			if b != '\n' {
				return nil, &Error{State: st.String(), Byte: b}
			}
			st = stComplete

		default:
			return nil, &Error{State: st.String(), Byte: b}
		}
	}

	if result.Protocol != "HTTP/1.0" && result.Protocol != "HTTP/1.1" {
		return nil, &Error{State: "RequestProtocol", Byte: 0}
	}

	return result, nil
}

func isMethodChar(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

// isURIChar matches RFC 7230's visible-ASCII-minus-space-and-control
// class used for the request-target and protocol version tokens.
func isURIChar(b byte) bool {
	return b > 0x20 && b < 0x7f
}

func isTokenChar(b byte) bool {
	return httpguts.IsTokenRune(rune(b))
}

// isValueChar matches RFC 7230 field-content: visible ASCII plus SP/HT,
// and obs-text bytes 0x80-0xFF.
func isValueChar(b byte) bool {
	return b == ' ' || b == '\t' || (b >= 0x21 && b != 0x7f)
}

func lowerASCII(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return out
}

func trimOWS(b []byte) []byte {
	start := 0
	for start < len(b) && (b[start] == ' ' || b[start] == '\t') {
		start++
	}
	end := len(b)
	for end > start && (b[end-1] == ' ' || b[end-1] == '\t') {
		end--
	}
	cp := make([]byte, end-start)
	copy(cp, b[start:end])
	return cp
}
