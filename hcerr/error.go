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

package hcerr

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Error is the concrete error type returned across the module. It
// carries a Code and, optionally, one or more parent causes.
type Error struct {
	code    Code
	message string
	parents []error
}

func (e *Error) Error() string {
	if len(e.parents) == 0 {
		return fmt.Sprintf("[%s] %s", e.code, e.message)
	}

	causes := make([]string, 0, len(e.parents))
	for _, p := range e.parents {
		causes = append(causes, p.Error())
	}
	return fmt.Sprintf("[%s] %s: %s", e.code, e.message, strings.Join(causes, "; "))
}

// Unwrap exposes the parent chain so errors.Is / errors.As can walk it.
func (e *Error) Unwrap() []error {
	return e.parents
}

// Code returns the classifier for this error.
func (e *Error) Code() Code {
	return e.code
}

// AddParent appends additional causes to an existing Error, mirroring
// the teacher's AddParentError accumulation pattern used when a single
// operation (e.g. validating a Config, or closing a set of listeners)
// can fail in more than one independent way.
func (e *Error) AddParent(p ...error) *Error {
	for _, x := range p {
		if x != nil {
			e.parents = append(e.parents, x)
		}
	}
	return e
}

func (e *Error) HasParent() bool {
	return len(e.parents) > 0
}

// Multi aggregates independent errors into a single *multierror.Error,
// used by Server.Start (listener binding) and Server.HealthCheck
// (listener probes) where every failure should be reported, not just
// the first one encountered.
func Multi() *multierror.Error {
	return &multierror.Error{}
}
