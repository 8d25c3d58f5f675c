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

package httpcore_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/httpcore"
)

var _ = Describe("Request", func() {
	It("splits a raw path into decoded path, query string, and parameters", func() {
		req := httpcore.NewRequest()
		req.SetRawPath("/a%20b/c?x=1&x=2&y=hello%20world")

		Expect(req.Path).To(Equal("/a b/c"))
		Expect(req.Query).To(Equal("x=1&x=2&y=hello%20world"))
		Expect(req.Params["x"]).To(Equal([]string{"1", "2"}))
		Expect(req.Params["y"]).To(Equal([]string{"hello world"}))
	})

	It("drops a single malformed percent-escape pair without failing the whole parse", func() {
		req := httpcore.NewRequest()
		req.SetRawPath("/p?ok=1&bad=%zz&also=2")

		Expect(req.Params["ok"]).To(Equal([]string{"1"}))
		Expect(req.Params["also"]).To(Equal([]string{"2"}))
		Expect(req.Params).ToNot(HaveKey("bad"))
	})

	It("decodes Content-Type into main type, charset and boundary", func() {
		req := httpcore.NewRequest()
		req.AddHeader("Content-Type", `multipart/form-data; charset=utf-8; boundary="XYZ"`)

		Expect(req.ContentType).To(Equal("multipart/form-data"))
		Expect(req.Multipart).To(BeTrue())
		Expect(req.Charset).To(Equal("utf-8"))
		Expect(req.Boundary).To(Equal("XYZ"))
	})

	It("decodes a valid Content-Length and rejects a negative one", func() {
		req := httpcore.NewRequest()
		req.AddHeader("Content-Length", "42")
		Expect(req.HasContentLength).To(BeTrue())
		Expect(req.ContentLength).To(Equal(int64(42)))

		req.SetHeader("Content-Length", "-5")
		Expect(req.HasContentLength).To(BeFalse())
		Expect(req.ContentLength).To(Equal(int64(-1)))
	})

	It("parses every name=value pair of a Cookie header into Cookies", func() {
		req := httpcore.NewRequest()
		req.AddHeader("Cookie", "a=1; b=2")
		Expect(req.Cookies).To(HaveKey("a"))
		Expect(req.Cookies).To(HaveKey("b"))
	})

	It("prefers gzip over deflate on a tie and returns empty when neither is accepted", func() {
		req := httpcore.NewRequest()
		req.AddHeader("Accept-Encoding", "deflate;q=0.8, gzip;q=0.8")
		Expect(req.PreferredEncoding()).To(Equal("gzip"))

		req2 := httpcore.NewRequest()
		req2.AddHeader("Accept-Encoding", "br")
		Expect(req2.PreferredEncoding()).To(Equal(""))
	})

	It("splits Host into host and port, defaulting the port from scheme", func() {
		req := httpcore.NewRequest()
		req.Scheme = "https"
		req.AddHeader("Host", "example.com")
		Expect(req.Host).To(Equal("example.com"))
		Expect(req.Port).To(Equal("443"))

		req2 := httpcore.NewRequest()
		req2.AddHeader("Host", "example.com:9090")
		Expect(req2.Port).To(Equal("9090"))
	})

	It("merges query and form-urlencoded body parameters lazily and caches the result", func() {
		req := httpcore.NewRequest()
		req.SetRawPath("/p?a=1")
		req.SetHeader("Content-Type", "application/x-www-form-urlencoded")
		req.SetInput(strings.NewReader("b=2&a=3"))

		merged := req.Parameters()
		Expect(merged["a"]).To(ConsistOf("1", "3"))
		Expect(merged["b"]).To(Equal([]string{"2"}))

		again := req.Parameters()
		Expect(again).To(Equal(merged))
	})

	It("invalidates the cached parameter merge when the input is replaced", func() {
		req := httpcore.NewRequest()
		req.SetRawPath("/p?a=1")
		req.SetHeader("Content-Type", "application/x-www-form-urlencoded")
		req.SetInput(strings.NewReader("b=2"))
		_ = req.Parameters()

		req.SetInput(strings.NewReader("c=3"))
		merged := req.Parameters()
		Expect(merged["c"]).To(Equal([]string{"3"}))
		Expect(merged).ToNot(HaveKey("b"))
	})

	It("clears all fields on Reset", func() {
		req := httpcore.NewRequest()
		req.Method = "GET"
		req.SetRawPath("/x?y=1")
		req.AddHeader("Host", "example.com")
		req.Reset()

		Expect(req.Method).To(Equal(""))
		Expect(req.RawPath).To(Equal(""))
		Expect(req.Params).To(BeEmpty())
		Expect(req.ContentLength).To(Equal(int64(-1)))
	})
})
