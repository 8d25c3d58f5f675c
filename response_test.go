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
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/httpcore"
)

var _ = Describe("Response", func() {
	It("defaults to 200 OK with empty headers and cookies", func() {
		resp := httpcore.NewResponse()
		Expect(resp.StatusCode).To(Equal(200))
		Expect(resp.Message).To(Equal("OK"))
		Expect(resp.Committed()).To(BeFalse())
	})

	It("resolves CompressEnabled from the default exactly once and caches it", func() {
		resp := httpcore.NewResponse()
		Expect(resp.CompressEnabled(true)).To(BeTrue())
		Expect(resp.CompressEnabled(false)).To(BeTrue())
	})

	It("lets SetCompress override the default before commit", func() {
		resp := httpcore.NewResponse()
		Expect(resp.SetCompress(false)).To(Succeed())
		Expect(resp.CompressEnabled(true)).To(BeFalse())
	})

	It("keys cookies by path then name, so same-name different-path cookies coexist", func() {
		resp := httpcore.NewResponse()
		Expect(resp.SetCookie(&httpcore.Cookie{Name: "session", Value: "a", Path: "/"})).To(Succeed())
		Expect(resp.SetCookie(&httpcore.Cookie{Name: "session", Value: "b", Path: "/admin"})).To(Succeed())

		Expect(resp.Cookies["/"]["session"].Value).To(Equal("a"))
		Expect(resp.Cookies["/admin"]["session"].Value).To(Equal("b"))
	})

	It("defaults an unset cookie path to /", func() {
		resp := httpcore.NewResponse()
		Expect(resp.SetCookie(&httpcore.Cookie{Name: "a", Value: "1"})).To(Succeed())
		Expect(resp.Cookies["/"]).To(HaveKey("a"))
	})

	It("refuses every mutator once committed", func() {
		resp := httpcore.NewResponse()
		resp.MarkCommitted()

		Expect(resp.SetStatus(500, "err")).To(HaveOccurred())
		Expect(resp.SetCompress(true)).To(HaveOccurred())
		Expect(resp.AddHeader("X-A", "1")).To(HaveOccurred())
		Expect(resp.SetHeader("X-A", "1")).To(HaveOccurred())
		Expect(resp.SetCookie(&httpcore.Cookie{Name: "a", Value: "1"})).To(HaveOccurred())
		Expect(resp.Reset()).To(HaveOccurred())
	})

	It("writes body bytes through the bound output once Bind has been called", func() {
		var buf bytes.Buffer
		resp := httpcore.NewResponse()
		resp.Bind(&buf)

		n, err := resp.Write([]byte("hi"))
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(2))
		Expect(buf.String()).To(Equal("hi"))
	})

	It("fails to write before Bind has attached an output", func() {
		resp := httpcore.NewResponse()
		_, err := resp.Write([]byte("hi"))
		Expect(err).To(HaveOccurred())
	})
})
