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
	"io"

	"github.com/sabouaram/httpcore/hcerr"
)

// Response is the mutable, pre-commit object a handler writes into
// before the worker emits it onto the wire (spec.md §3, "Response").
// Once committed, every mutator returns an AlreadyCommitted error
// instead of silently applying — matching the teacher's IllegalState
// guard on its own Response wrapper.
type Response struct {
	StatusCode int
	Message    string

	Headers *Header
	Cookies map[string]map[string]*Cookie

	Exception error

	compress    bool
	compressSet bool
	committed   bool

	output io.Writer
}

// NewResponse returns a Response defaulted to 200 OK, with compression
// left unset so the worker can apply the config's compress_by_default
// the first time CompressEnabled is consulted (spec.md §4.3).
func NewResponse() *Response {
	return &Response{
		StatusCode: 200,
		Message:    "OK",
		Headers:    NewHeader(),
		Cookies:    make(map[string]map[string]*Cookie),
	}
}

// Reset restores r to a fresh 200 OK with no headers, cookies,
// exception or compression choice. A committed response cannot be
// reset: Reset then fails with AlreadyCommitted and changes nothing.
func (r *Response) Reset() error {
	if r.committed {
		return hcerr.AlreadyCommitted.Error()
	}
	r.StatusCode = 200
	r.Message = "OK"
	r.Headers.Reset()
	r.Cookies = make(map[string]map[string]*Cookie)
	r.Exception = nil
	r.compress = false
	r.compressSet = false
	r.committed = false
	r.output = nil
	return nil
}

// SetStatus sets the status line fields. Refused once committed.
func (r *Response) SetStatus(code int, message string) error {
	if r.committed {
		return hcerr.AlreadyCommitted.Error()
	}
	r.StatusCode = code
	r.Message = message
	return nil
}

// SetCompress overrides the config's compress_by_default for this
// response. Valid only before the first byte is written (spec.md
// §4.3: "overridable pre-first-byte, else AlreadyCommitted").
func (r *Response) SetCompress(enabled bool) error {
	if r.committed {
		return hcerr.AlreadyCommitted.Error()
	}
	r.compress = enabled
	r.compressSet = true
	return nil
}

// CompressEnabled resolves whether this response should be compressed,
// applying defaultCompress (the config's compress_by_default) the
// first time it is asked and caching the resolution.
func (r *Response) CompressEnabled(defaultCompress bool) bool {
	if !r.compressSet {
		r.compress = defaultCompress
		r.compressSet = true
	}
	return r.compress
}

// AddHeader appends a response header value. Refused once committed.
func (r *Response) AddHeader(name, value string) error {
	if r.committed {
		return hcerr.AlreadyCommitted.Error()
	}
	r.Headers.Add(name, value)
	return nil
}

// SetHeader replaces all values for a response header. Refused once
// committed.
func (r *Response) SetHeader(name, value string) error {
	if r.committed {
		return hcerr.AlreadyCommitted.Error()
	}
	r.Headers.Set(name, value)
	return nil
}

// SetCookie registers a Set-Cookie to emit, keyed by path then name so
// two cookies with the same name but different paths both survive
// (spec.md §3, "Cookies: map path -> map name -> Cookie").
func (r *Response) SetCookie(c *Cookie) error {
	if r.committed {
		return hcerr.AlreadyCommitted.Error()
	}
	path := c.Path
	if path == "" {
		path = "/"
	}
	if r.Cookies[path] == nil {
		r.Cookies[path] = make(map[string]*Cookie)
	}
	r.Cookies[path][c.Name] = c
	return nil
}

// Bind attaches the output stream the worker writes the status line,
// headers, and body through. Binding alone does not commit the
// response — commit happens when the first byte actually reaches the
// socket (spec.md §4.3 "Committed flag"), signaled by the worker
// calling MarkCommitted from the emitter's OnCommit hook.
func (r *Response) Bind(w io.Writer) {
	r.output = w
}

// MarkCommitted flips the committed flag. After this, SetStatus,
// SetCompress, SetCookie and Reset all fail with AlreadyCommitted.
func (r *Response) MarkCommitted() {
	r.committed = true
}

// Committed reports whether MarkCommitted has been called.
func (r *Response) Committed() bool {
	return r.committed
}

// Output returns the bound output writer, or nil before Bind.
func (r *Response) Output() io.Writer {
	return r.output
}

// Write pushes body bytes through the bound output stream, per
// spec.md §6 ("handler may call response.getOutputStream() and write
// bytes"). Writing does not by itself commit the response: Committed
// flips through the emitter's OnCommit hook once the emitter actually
// starts sending, which for a buffered body may be as late as Close.
func (r *Response) Write(p []byte) (int, error) {
	if r.output == nil {
		return 0, hcerr.Fatal.Error()
	}
	return r.output.Write(p)
}
