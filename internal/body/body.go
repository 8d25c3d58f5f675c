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

// Package body implements the two request-body decoders spec.md §4.2
// calls for: fixed (Content-Length) and chunked (Transfer-Encoding).
// Both satisfy io.Reader and report io.EOF deterministically once the
// declared body has been fully delivered.
package body

import (
	"errors"
	"fmt"
)

// ErrPrematureEOF means the peer closed the connection before the
// declared body length (fixed) or the terminating chunk (chunked) was
// seen.
var ErrPrematureEOF = errors.New("premature EOF reading request body")

// ErrTooLarge means the body exceeded the caller's configured limit
// for this request's Content-Type.
type ErrTooLarge struct{ Limit int64 }

func (e *ErrTooLarge) Error() string {
	return fmt.Sprintf("request body exceeds %d byte limit", e.Limit)
}

// ErrBadChunk means the chunked decoder saw a malformed chunk-size
// line (non-hex digit, or more than 32 hex digits before a terminator).
type ErrBadChunk struct{ Reason string }

func (e *ErrBadChunk) Error() string {
	return "bad chunked encoding: " + e.Reason
}

// LimitedBody wraps a base reader (Fixed or Chunked) with a byte
// ceiling, so max_request_body_size is enforced identically for both
// framings.
type LimitedBody struct {
	inner interface {
		Read([]byte) (int, error)
	}
	limit int64
	read  int64
}

// NewLimited attaches a byte ceiling in front of inner. limit <= 0
// disables the check.
func NewLimited(inner interface{ Read([]byte) (int, error) }, limit int64) *LimitedBody {
	return &LimitedBody{inner: inner, limit: limit}
}

func (l *LimitedBody) Read(p []byte) (int, error) {
	if l.limit > 0 && l.read >= l.limit {
		// A body exactly at the limit is fine: only a byte beyond it fails.
		var probe [1]byte
		n, err := l.inner.Read(probe[:])
		if n == 0 && err != nil {
			return 0, err
		}
		return 0, &ErrTooLarge{Limit: l.limit}
	}
	if l.limit > 0 && int64(len(p)) > l.limit-l.read {
		p = p[:l.limit-l.read]
	}
	n, err := l.inner.Read(p)
	l.read += int64(n)
	return n, err
}
