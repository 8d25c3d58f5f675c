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

package body

import (
	"bufio"
	"io"
)

// Fixed decodes a Content-Length-framed body: it tracks the remaining
// byte count and reports io.EOF exactly once that many bytes have been
// delivered, or ErrPrematureEOF if the socket closes first.
type Fixed struct {
	r         *bufio.Reader
	remaining int64
}

// NewFixed returns a Fixed reader for exactly length bytes from r.
func NewFixed(r *bufio.Reader, length int64) *Fixed {
	return &Fixed{r: r, remaining: length}
}

func (f *Fixed) Read(p []byte) (int, error) {
	if f.remaining <= 0 {
		return 0, io.EOF
	}

	if int64(len(p)) > f.remaining {
		p = p[:f.remaining]
	}

	n, err := f.r.Read(p)
	f.remaining -= int64(n)

	if err == io.EOF && f.remaining > 0 {
		return n, ErrPrematureEOF
	}
	if err != nil {
		return n, err
	}
	if f.remaining == 0 {
		return n, io.EOF
	}
	return n, nil
}

// Remaining reports how many bytes are still undelivered; used by the
// worker to decide how much to drain between keep-alive requests.
func (f *Fixed) Remaining() int64 {
	return f.remaining
}
