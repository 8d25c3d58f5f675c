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

// Handler is the single application-level collaborator the worker
// dispatches each request to (spec.md §6, "Handler contract"). It is
// invoked synchronously on the connection's own worker goroutine:
// anything it blocks on counts against that connection's timeouts.
// A panic inside Handle is recovered by the worker and treated as
// HandlerThrew (spec.md §7).
type Handler interface {
	Handle(req *Request, resp *Response)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(req *Request, resp *Response)

// Handle calls f(req, resp).
func (f HandlerFunc) Handle(req *Request, resp *Response) {
	f(req, resp)
}

// ExceptionContext is handed to an UnexpectedExceptionHandler when the
// application handler panics before the response is committed
// (spec.md §6, "Unexpected exception handler contract").
type ExceptionContext struct {
	Request        *Request
	Recovered      interface{}
	ProposedStatus int
}

// UnexpectedExceptionHandler maps a recovered handler panic to the
// status code the worker should emit. The default always returns 500.
type UnexpectedExceptionHandler interface {
	HandleException(ctx ExceptionContext) int
}

// DefaultUnexpectedExceptionHandler always proposes 500, matching
// spec.md §6's documented default.
type DefaultUnexpectedExceptionHandler struct{}

// HandleException returns ctx.ProposedStatus unchanged.
func (DefaultUnexpectedExceptionHandler) HandleException(ctx ExceptionContext) int {
	return ctx.ProposedStatus
}

var _ UnexpectedExceptionHandler = DefaultUnexpectedExceptionHandler{}
