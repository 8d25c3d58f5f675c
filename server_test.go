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

package httpcore

import (
	"bufio"
	"context"
	"io"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server", func() {
	var cfg *Config

	BeforeEach(func() {
		cfg = NewConfig()
		cfg.Listeners = []ListenerConfig{{BindAddr: "127.0.0.1:0"}}
	})

	It("is not running before Start and running after", func() {
		srv := NewServer(cfg, HandlerFunc(func(req *Request, resp *Response) {}))
		Expect(srv.IsRunning()).To(BeFalse())

		Expect(srv.Start(context.Background())).To(Succeed())
		defer srv.Stop(context.Background())

		Expect(srv.IsRunning()).To(BeTrue())
	})

	It("serves real requests over the bound listener", func() {
		srv := NewServer(cfg, HandlerFunc(func(req *Request, resp *Response) {
			_ = resp.SetStatus(200, "OK")
			_, _ = resp.Write([]byte("pong"))
		}))
		Expect(srv.Start(context.Background())).To(Succeed())
		defer srv.Stop(context.Background())

		addr := srv.acceptors[0].listener.Addr().String()
		conn, err := net.Dial("tcp", addr)
		Expect(err).ToNot(HaveOccurred())
		defer conn.Close()

		_, err = io.WriteString(conn, "GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
		Expect(err).ToNot(HaveOccurred())

		r := bufio.NewReader(conn)
		line, err := r.ReadString('\n')
		Expect(err).ToNot(HaveOccurred())
		Expect(line).To(Equal("HTTP/1.1 200 OK\r\n"))
	})

	It("reports HealthCheck failure before Start and success while running", func() {
		srv := NewServer(cfg, HandlerFunc(func(req *Request, resp *Response) {}))
		Expect(srv.HealthCheck(context.Background())).To(HaveOccurred())

		Expect(srv.Start(context.Background())).To(Succeed())
		defer srv.Stop(context.Background())

		Expect(srv.HealthCheck(context.Background())).To(Succeed())
	})

	It("refuses new connections once Stop has been called", func() {
		srv := NewServer(cfg, HandlerFunc(func(req *Request, resp *Response) {}))
		Expect(srv.Start(context.Background())).To(Succeed())
		addr := srv.acceptors[0].listener.Addr().String()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		Expect(srv.Stop(ctx)).To(Succeed())
		Expect(srv.IsRunning()).To(BeFalse())

		_, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		Expect(err).To(HaveOccurred())
	})

	It("is idempotent: Start twice and Stop twice are both no-ops", func() {
		srv := NewServer(cfg, HandlerFunc(func(req *Request, resp *Response) {}))
		Expect(srv.Start(context.Background())).To(Succeed())
		Expect(srv.Start(context.Background())).To(Succeed())

		Expect(srv.Stop(context.Background())).To(Succeed())
		Expect(srv.Stop(context.Background())).To(Succeed())
	})
})
