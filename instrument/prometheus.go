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

package instrument

import "github.com/prometheus/client_golang/prometheus"

// Prometheus is the thread-safe Sink implementation spec.md §4.10
// calls for: every counter is a prometheus.Counter, safe for
// concurrent Inc() from any number of worker goroutines.
type Prometheus struct {
	acceptedConnections prometheus.Counter
	acceptedRequests    prometheus.Counter
	badRequests         prometheus.Counter
	chunkedRequests     prometheus.Counter
	chunkedResponses    prometheus.Counter
	connectionsClosed   prometheus.Counter
	bytesRead           prometheus.Counter
	bytesWritten        prometheus.Counter
	workersStarted      prometheus.Counter
	workersStopped      prometheus.Counter
}

// NewPrometheus builds a Prometheus sink and registers its counters on
// reg. Passing prometheus.NewRegistry() keeps it isolated from the
// embedder's default registry; passing nil registers nothing (the
// counters still work, they are just not exported).
func NewPrometheus(namespace string, reg prometheus.Registerer) *Prometheus {
	mk := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
		if reg != nil {
			reg.MustRegister(c)
		}
		return c
	}

	return &Prometheus{
		acceptedConnections: mk("accepted_connections_total", "TCP connections accepted"),
		acceptedRequests:    mk("accepted_requests_total", "HTTP request preambles parsed"),
		badRequests:         mk("bad_requests_total", "malformed request preambles/bodies rejected"),
		chunkedRequests:     mk("chunked_requests_total", "requests read with chunked transfer-encoding"),
		chunkedResponses:    mk("chunked_responses_total", "responses written with chunked transfer-encoding"),
		connectionsClosed:   mk("connections_closed_total", "connections closed by any reason"),
		bytesRead:           mk("bytes_read_total", "bytes read from client sockets"),
		bytesWritten:        mk("bytes_written_total", "bytes written to client sockets"),
		workersStarted:      mk("workers_started_total", "connection worker goroutines started"),
		workersStopped:      mk("workers_stopped_total", "connection worker goroutines stopped"),
	}
}

func (p *Prometheus) AcceptedConnection()  { p.acceptedConnections.Inc() }
func (p *Prometheus) AcceptedRequest()     { p.acceptedRequests.Inc() }
func (p *Prometheus) BadRequest()          { p.badRequests.Inc() }
func (p *Prometheus) ChunkedRequest()      { p.chunkedRequests.Inc() }
func (p *Prometheus) ChunkedResponse()     { p.chunkedResponses.Inc() }
func (p *Prometheus) ConnectionClosed()    { p.connectionsClosed.Inc() }
func (p *Prometheus) ReadFromClient(n int) { p.bytesRead.Add(float64(n)) }
func (p *Prometheus) WroteToClient(n int)  { p.bytesWritten.Add(float64(n)) }
func (p *Prometheus) ServerStarted()       {}
func (p *Prometheus) WorkerStarted()       { p.workersStarted.Inc() }
func (p *Prometheus) WorkerStopped()       { p.workersStopped.Inc() }

var _ Sink = (*Prometheus)(nil)
