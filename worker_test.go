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
	"io"
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/httpcore/hclog"
	"github.com/sabouaram/httpcore/instrument"
)

func runWorker(cfg *Config, h Handler) (client net.Conn, done chan struct{}) {
	clientConn, serverConn := net.Pipe()
	w := newWorker(serverConn, cfg, hclog.New("test"), instrument.Noop{}, h, nil, nil)
	done = make(chan struct{})
	go func() {
		w.run()
		close(done)
	}()
	return clientConn, done
}

var _ = Describe("worker", func() {
	var cfg *Config

	BeforeEach(func() {
		cfg = NewConfig()
		cfg.Listeners = []ListenerConfig{{BindAddr: "127.0.0.1:0"}}
		cfg.InitialReadTimeout = 2 * time.Second
		cfg.ProcessingTimeout = 2 * time.Second
		cfg.KeepAliveTimeout = 2 * time.Second
	})

	It("serves a minimal GET and honors keep-alive across two requests", func() {
		hits := 0
		h := HandlerFunc(func(req *Request, resp *Response) {
			hits++
			_ = resp.SetStatus(200, "OK")
			_, _ = resp.Write([]byte("ok"))
		})

		client, done := runWorker(cfg, h)
		defer client.Close()

		_, err := io.WriteString(client, "GET /a HTTP/1.1\r\nHost: x\r\n\r\n")
		Expect(err).ToNot(HaveOccurred())

		r := bufio.NewReader(client)
		line, err := r.ReadString('\n')
		Expect(err).ToNot(HaveOccurred())
		Expect(line).To(Equal("HTTP/1.1 200 OK\r\n"))

		for {
			hline, herr := r.ReadString('\n')
			Expect(herr).ToNot(HaveOccurred())
			if hline == "\r\n" {
				break
			}
		}
		body := make([]byte, 2)
		_, err = io.ReadFull(r, body)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(body)).To(Equal("ok"))

		_, err = io.WriteString(client, "GET /b HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
		Expect(err).ToNot(HaveOccurred())

		line, err = r.ReadString('\n')
		Expect(err).ToNot(HaveOccurred())
		Expect(line).To(Equal("HTTP/1.1 200 OK\r\n"))

		Eventually(done).Should(BeClosed())
		Expect(hits).To(Equal(2))
	})

	It("echoes a chunked request body", func() {
		var got []byte
		h := HandlerFunc(func(req *Request, resp *Response) {
			got, _ = io.ReadAll(req.Input())
			_ = resp.SetStatus(200, "OK")
			_, _ = resp.Write(got)
		})

		client, _ := runWorker(cfg, h)
		defer client.Close()

		raw := "POST /echo HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\nConnection: close\r\n\r\n" +
			"5\r\nhello\r\n0\r\n\r\n"
		_, err := io.WriteString(client, raw)
		Expect(err).ToNot(HaveOccurred())

		r := bufio.NewReader(client)
		line, err := r.ReadString('\n')
		Expect(err).ToNot(HaveOccurred())
		Expect(line).To(Equal("HTTP/1.1 200 OK\r\n"))
		Expect(string(got)).To(Equal("hello"))
	})

	It("responds 400 and closes on a malformed request-line", func() {
		h := HandlerFunc(func(req *Request, resp *Response) {})
		client, done := runWorker(cfg, h)
		defer client.Close()

		_, err := io.WriteString(client, "bogus request line\r\n\r\n")
		Expect(err).ToNot(HaveOccurred())

		r := bufio.NewReader(client)
		line, err := r.ReadString('\n')
		Expect(err).ToNot(HaveOccurred())
		Expect(line).To(Equal("HTTP/1.1 400 Bad Request\r\n"))

		Eventually(done).Should(BeClosed())
	})

	It("recovers a handler panic into a 500 when nothing was committed", func() {
		h := HandlerFunc(func(req *Request, resp *Response) {
			panic("boom")
		})
		client, _ := runWorker(cfg, h)
		defer client.Close()

		_, err := io.WriteString(client, "GET / HTTP/1.1\r\nHost: x\r\nConnection: close\r\n\r\n")
		Expect(err).ToNot(HaveOccurred())

		r := bufio.NewReader(client)
		line, err := r.ReadString('\n')
		Expect(err).ToNot(HaveOccurred())
		Expect(line).To(Equal("HTTP/1.1 500 Internal Server Error\r\n"))
	})

	It("rejects Expect: 100-continue when the validator refuses", func() {
		called := false
		h := HandlerFunc(func(req *Request, resp *Response) { called = true })

		clientConn, serverConn := net.Pipe()
		w := newWorker(serverConn, cfg, hclog.New("test"), instrument.Noop{}, h, rejectExpect{}, nil)
		done := make(chan struct{})
		go func() {
			w.run()
			close(done)
		}()
		defer clientConn.Close()

		_, err := io.WriteString(clientConn, "POST /x HTTP/1.1\r\nHost: x\r\nExpect: 100-continue\r\nContent-Length: 1\r\n\r\n")
		Expect(err).ToNot(HaveOccurred())

		r := bufio.NewReader(clientConn)
		line, err := r.ReadString('\n')
		Expect(err).ToNot(HaveOccurred())
		Expect(line).To(Equal("HTTP/1.1 417 Expectation Failed\r\n"))

		Eventually(done).Should(BeClosed())
		Expect(called).To(BeFalse())
	})
})

type rejectExpect struct{}

func (rejectExpect) Validate(req *Request, resp *Response) bool {
	_ = resp.SetStatus(417, "Expectation Failed")
	return false
}
