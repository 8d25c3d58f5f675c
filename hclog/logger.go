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

package hclog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the capability interface a Server logs through (see
// Server.SetLogger). An embedder's *logrus.Logger is adapted to it with
// FromLogrus; a nil Logger falls back to New().
type Logger interface {
	Entry(level Level, message string) *Entry
}

type logger struct {
	base *logrus.Logger
	name string
}

// New returns a Logger writing to os.Stderr at InfoLevel, the same
// null-safe default the connection core falls back to when the
// embedder supplies no logger.
func New(name string) Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return &logger{base: l, name: name}
}

// FromLogrus wraps an embedder-supplied *logrus.Logger.
func FromLogrus(l *logrus.Logger, name string) Logger {
	if l == nil {
		return New(name)
	}
	return &logger{base: l, name: name}
}

func (g *logger) Entry(level Level, message string) *Entry {
	return &Entry{
		fields: logrus.Fields{"component": g.name},
		level:  level,
		base:   g.base,
		msg:    message,
	}
}

// Entry is a single log record under construction; fields accumulate
// via WithField/WithError and the record is only emitted on Log().
type Entry struct {
	base   *logrus.Logger
	level  Level
	msg    string
	fields logrus.Fields
}

func (e *Entry) WithField(key string, value interface{}) *Entry {
	e.fields[key] = value
	return e
}

// ErrorAdd attaches err under the "error" field when non-nil; the
// "force" flag mirrors the teacher's signature but is currently
// unconditional since this facade has no sampling to bypass.
func (e *Entry) ErrorAdd(force bool, err ...error) *Entry {
	for _, x := range err {
		if x != nil {
			e.fields["error"] = x.Error()
		}
	}
	return e
}

func (e *Entry) Log() {
	e.base.WithFields(e.fields).Log(e.level.logrus(), e.msg)
}
