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
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sabouaram/httpcore/hclog"
	"github.com/sabouaram/httpcore/instrument"
)

func newTestWorker(cfg *Config) (*worker, net.Conn) {
	client, server := net.Pipe()
	w := newWorker(server, cfg, hclog.New("test"), instrument.Noop{}, nil, nil, nil)
	return w, client
}

var _ = Describe("reaper", func() {
	var cfg *Config

	BeforeEach(func() {
		cfg = NewConfig()
		cfg.Listeners = []ListenerConfig{{BindAddr: "127.0.0.1:0"}}
		cfg.ReadThroughput.Delay = 0
		cfg.WriteThroughput.Delay = 0
	})

	It("registers and unregisters workers", func() {
		r := newReaper(cfg, instrument.Noop{})
		w, client := newTestWorker(cfg)
		defer client.Close()

		r.register(w)
		Expect(r.count()).To(Equal(1))
		r.unregister(w)
		Expect(r.count()).To(Equal(0))
	})

	It("flags a worker idle past its phase timeout", func() {
		cfg.InitialReadTimeout = 50 * time.Millisecond
		r := newReaper(cfg, instrument.Noop{})
		w, client := newTestWorker(cfg)
		defer client.Close()

		w.setPhase(phaseInitialRead)
		Expect(r.shouldReap(w, time.Now())).To(BeFalse())
		Expect(r.shouldReap(w, time.Now().Add(100*time.Millisecond))).To(BeTrue())
	})

	It("never flags a worker inside a phase with no configured timeout", func() {
		cfg.ProcessingTimeout = 0
		r := newReaper(cfg, instrument.Noop{})
		w, client := newTestWorker(cfg)
		defer client.Close()

		w.setPhase(phaseProcessing)
		Expect(r.shouldReap(w, time.Now().Add(time.Hour))).To(BeFalse())
	})

	It("flags a worker whose read throughput falls under the floor", func() {
		cfg.ReadThroughput.MinBytesPerSecond = 1_000_000
		r := newReaper(cfg, instrument.Noop{})
		w, client := newTestWorker(cfg)
		defer client.Close()

		w.setPhase(phaseInitialRead)
		now := time.Now()
		w.readTracker.Update(now, 1)
		Expect(r.readingSlow(w, now.Add(time.Second))).To(BeTrue())
	})

	It("does not enforce a throughput floor that is disabled", func() {
		cfg.ReadThroughput.MinBytesPerSecond = -1
		r := newReaper(cfg, instrument.Noop{})
		w, client := newTestWorker(cfg)
		defer client.Close()

		w.setPhase(phaseInitialRead)
		Expect(r.readingSlow(w, time.Now())).To(BeFalse())
	})

	It("sweep force-closes a worker that should be reaped", func() {
		cfg.InitialReadTimeout = 10 * time.Millisecond
		r := newReaper(cfg, instrument.Noop{})
		w, client := newTestWorker(cfg)
		defer client.Close()
		r.register(w)

		w.setPhase(phaseInitialRead)
		r.sweep(time.Now().Add(time.Second))

		buf := make([]byte, 1)
		client.SetReadDeadline(time.Now().Add(time.Second))
		_, err := client.Read(buf)
		Expect(err).To(HaveOccurred())
	})
})
