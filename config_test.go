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
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/httpcore"
	"github.com/sabouaram/httpcore/hcerr"
)

var _ = Describe("Config", func() {
	It("builds a config that validates cleanly once a listener is set", func() {
		cfg := httpcore.NewConfig()
		cfg.Listeners = []httpcore.ListenerConfig{{BindAddr: "127.0.0.1:8080"}}
		Expect(cfg.Validate()).To(Succeed())
	})

	It("fails validation with no listeners configured", func() {
		cfg := httpcore.NewConfig()
		err := cfg.Validate()
		Expect(err).To(HaveOccurred())

		var hcErr *hcerr.Error
		Expect(err).To(BeAssignableToTypeOf(hcErr))
	})

	It("requires a cert chain and key when a listener enables TLS", func() {
		cfg := httpcore.NewConfig()
		cfg.Listeners = []httpcore.ListenerConfig{{BindAddr: "127.0.0.1:8443", TLS: true}}
		Expect(cfg.Validate()).To(HaveOccurred())
	})

	It("aggregates every failing constraint on one error instead of stopping at the first", func() {
		cfg := httpcore.NewConfig()
		cfg.MaxPendingSocketConnections = 0
		cfg.MaxRequestsPerConnection = 0
		err := cfg.Validate()
		Expect(err).To(HaveOccurred())

		he, ok := err.(*hcerr.Error)
		Expect(ok).To(BeTrue())
		Expect(he.HasParent()).To(BeTrue())
		Expect(he.Error()).To(And(ContainSubstring("Listeners"), ContainSubstring("MaxPendingSocketConnections"), ContainSubstring("MaxRequestsPerConnection")))
	})

	It("resolves MaxBodySizeFor to the exact content type when present", func() {
		cfg := httpcore.NewConfig()
		Expect(cfg.MaxBodySizeFor("application/x-www-form-urlencoded")).To(Equal(int64(10 * 1024 * 1024)))
	})

	It("falls back to the wildcard entry for unknown content types", func() {
		cfg := httpcore.NewConfig()
		Expect(cfg.MaxBodySizeFor("application/octet-stream")).To(Equal(int64(128 * 1024 * 1024)))
	})

	It("returns unbounded when neither the content type nor the wildcard is configured", func() {
		cfg := httpcore.NewConfig()
		cfg.MaxRequestBodySize = map[string]int64{}
		Expect(cfg.MaxBodySizeFor("anything")).To(Equal(int64(-1)))
	})
})
