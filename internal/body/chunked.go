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

type chunkedState int

const (
	csSize chunkedState = iota
	csData
	csDataCRLF
	csTrailer
	csDone
)

const maxChunkSizeDigits = 32

// Chunked decodes a Transfer-Encoding: chunked body (spec.md §4.2).
// Chunk extensions after ';' are skipped up to the CRLF. Trailers, if
// any, are read and discarded up to the final CRLF — never surfaced to
// the handler, matching the documented source behavior.
type Chunked struct {
	r        *bufio.Reader
	st       chunkedState
	size     int64
	onFirst  func()
	firstSet bool
}

// NewChunked returns a Chunked reader. onFirst, if non-nil, is invoked
// exactly once when the first chunk-size line is parsed, so the worker
// can emit the chunkedRequest instrumentation event.
func NewChunked(r *bufio.Reader, onFirst func()) *Chunked {
	return &Chunked{r: r, onFirst: onFirst}
}

func (c *Chunked) Read(p []byte) (int, error) {
	for {
		switch c.st {
		case csSize:
			size, err := c.readChunkSizeLine()
			if err != nil {
				return 0, err
			}
			if !c.firstSet {
				c.firstSet = true
				if c.onFirst != nil {
					c.onFirst()
				}
			}
			c.size = size
			if c.size == 0 {
				c.st = csTrailer
				continue
			}
			c.st = csData

		case csData:
			if len(p) == 0 {
				return 0, nil
			}
			n := len(p)
			if int64(n) > c.size {
				n = int(c.size)
			}
			read, err := c.r.Read(p[:n])
			c.size -= int64(read)
			if err == io.EOF {
				return read, ErrPrematureEOF
			}
			if err != nil {
				return read, err
			}
			if c.size == 0 {
				c.st = csDataCRLF
			}
			if read > 0 {
				return read, nil
			}

		case csDataCRLF:
			if err := c.expectCRLF(); err != nil {
				return 0, err
			}
			c.st = csSize

		case csTrailer:
			if err := c.consumeTrailers(); err != nil {
				return 0, err
			}
			c.st = csDone

		case csDone:
			return 0, io.EOF
		}
	}
}

func (c *Chunked) readChunkSizeLine() (int64, error) {
	var (
		digits  int
		size    int64
		sawSize bool
	)

	for {
		b, err := c.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return 0, ErrPrematureEOF
			}
			return 0, err
		}

		switch {
		case b == ';':
			// chunk-extension: skip to CR
			if err := c.skipToCR(); err != nil {
				return 0, err
			}
			if err := c.expectLF(); err != nil {
				return 0, err
			}
			return size, nil

		case b == '\r':
			if err := c.expectLF(); err != nil {
				return 0, err
			}
			if !sawSize {
				return 0, &ErrBadChunk{Reason: "empty chunk size"}
			}
			return size, nil

		case isHexDigit(b):
			digits++
			if digits > maxChunkSizeDigits {
				return 0, &ErrBadChunk{Reason: "chunk size too long"}
			}
			size = size<<4 | int64(hexVal(b))
			sawSize = true

		default:
			return 0, &ErrBadChunk{Reason: "invalid chunk size digit"}
		}
	}
}

func (c *Chunked) skipToCR() error {
	for {
		b, err := c.r.ReadByte()
		if err != nil {
			return err
		}
		if b == '\r' {
			return nil
		}
	}
}

func (c *Chunked) expectLF() error {
	b, err := c.r.ReadByte()
	if err != nil {
		return err
	}
	if b != '\n' {
		return &ErrBadChunk{Reason: "expected LF"}
	}
	return nil
}

func (c *Chunked) expectCRLF() error {
	b, err := c.r.ReadByte()
	if err != nil {
		return err
	}
	if b != '\r' {
		return &ErrBadChunk{Reason: "expected CR after chunk data"}
	}
	return c.expectLF()
}

// consumeTrailers reads zero or more trailer header lines followed by
// the terminating blank line, discarding all of it.
func (c *Chunked) consumeTrailers() error {
	for {
		line, err := c.r.ReadSlice('\n')
		if err != nil {
			return err
		}
		if len(line) == 2 && line[0] == '\r' {
			return nil
		}
		if len(line) == 1 {
			return nil
		}
	}
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexVal(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	default:
		return b - 'A' + 10
	}
}
