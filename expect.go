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

// ExpectValidator decides how the worker answers an "Expect: 100-continue"
// request (spec.md §4, "100-Continue handling"): Validate inspects the
// request and a prospective response and returns whether the body should
// be read at all. A status below 300 on the response continues; 300 or
// above rejects the body and the worker emits that status immediately
// without reading it (spec.md §9, Open Question resolution).
type ExpectValidator interface {
	Validate(req *Request, resp *Response) bool
}

// AlwaysContinue is the default ExpectValidator: it always accepts the
// body, matching a server with no application-level admission policy.
type AlwaysContinue struct{}

// Validate always returns true.
func (AlwaysContinue) Validate(_ *Request, _ *Response) bool {
	return true
}

var _ ExpectValidator = AlwaysContinue{}
