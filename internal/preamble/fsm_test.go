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

package preamble_test

import (
	"bufio"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/httpcore/internal/preamble"
)

func TestPreamble(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Preamble FSM Suite")
}

func parse(raw string, maxSize int) (*preamble.Result, error) {
	return preamble.Parse(bufio.NewReader(strings.NewReader(raw)), maxSize)
}

var _ = Describe("Parse", func() {
	It("parses a minimal GET request-line and header block", func() {
		raw := "GET /foo?bar=1 HTTP/1.1\r\nHost: example.com\r\nX-Trace: abc\r\n\r\n"
		res, err := parse(raw, 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(res.Method).To(Equal("GET"))
		Expect(res.RawPath).To(Equal("/foo?bar=1"))
		Expect(res.Protocol).To(Equal("HTTP/1.1"))
		Expect(res.Headers).To(ConsistOf(
			preamble.Header{Name: "host", Value: "example.com"},
			preamble.Header{Name: "x-trace", Value: "abc"},
		))
	})

	It("lowercases header names and trims surrounding whitespace", func() {
		raw := "GET / HTTP/1.1\r\nX-Weird:    padded value   \r\n\r\n"
		res, err := parse(raw, 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(res.Headers).To(ConsistOf(preamble.Header{Name: "x-weird", Value: "padded value"}))
	})

	It("accepts an empty header value", func() {
		raw := "GET / HTTP/1.1\r\nX-Empty:\r\n\r\n"
		res, err := parse(raw, 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(res.Headers).To(ConsistOf(preamble.Header{Name: "x-empty", Value: ""}))
	})

	It("rejects an unsupported protocol token", func() {
		raw := "GET / HTTP/9.9\r\n\r\n"
		_, err := parse(raw, 0)
		Expect(err).To(HaveOccurred())
		var fsmErr *preamble.Error
		Expect(err).To(BeAssignableToTypeOf(fsmErr))
	})

	It("rejects a lowercase method token", func() {
		raw := "get / HTTP/1.1\r\n\r\n"
		_, err := parse(raw, 0)
		var fsmErr *preamble.Error
		Expect(err).To(BeAssignableToTypeOf(fsmErr))
	})

	It("fails closed once the cumulative preamble exceeds maxSize", func() {
		raw := "GET / HTTP/1.1\r\nX-Long: " + strings.Repeat("a", 100) + "\r\n\r\n"
		_, err := parse(raw, 16)
		var tooLarge *preamble.ErrTooLarge
		Expect(err).To(BeAssignableToTypeOf(tooLarge))
	})

	It("leaves body bytes unread after the terminating blank line", func() {
		raw := "GET / HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"
		r := bufio.NewReader(strings.NewReader(raw))
		_, err := preamble.Parse(r, 0)
		Expect(err).ToNot(HaveOccurred())

		rest := make([]byte, 5)
		n, rerr := r.Read(rest)
		Expect(rerr).ToNot(HaveOccurred())
		Expect(string(rest[:n])).To(Equal("hello"))
	})
})
