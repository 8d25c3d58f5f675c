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

import "strings"

// Header is an ordered, case-insensitive multimap: lookup is by
// lowercased name, values for a name keep their insertion order, and
// distinct names keep the order in which they were first inserted
// (spec.md §3, "Header set"). Emission (Response) walks Names() to
// reproduce that first-insertion order.
type Header struct {
	order  []string
	values map[string][]string
}

// NewHeader returns an empty Header set ready to use.
func NewHeader() *Header {
	return &Header{values: make(map[string][]string)}
}

func lowerHeader(name string) string {
	return strings.ToLower(name)
}

// Add appends value to name's value list, preserving insertion order.
// An empty name is ignored; an empty value is stored like any other,
// so a header line with no value survives parsing.
func (h *Header) Add(name, value string) {
	if name == "" {
		return
	}
	key := lowerHeader(name)
	if _, ok := h.values[key]; !ok {
		h.order = append(h.order, key)
	}
	h.values[key] = append(h.values[key], value)
}

// Set replaces all values for name with a single value.
func (h *Header) Set(name, value string) {
	key := lowerHeader(name)
	if _, ok := h.values[key]; !ok {
		h.order = append(h.order, key)
	}
	h.values[key] = []string{value}
}

// Del removes name and all its values.
func (h *Header) Del(name string) {
	key := lowerHeader(name)
	if _, ok := h.values[key]; !ok {
		return
	}
	delete(h.values, key)
	for i, n := range h.order {
		if n == key {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// Get returns the first value for name, or "" if absent.
func (h *Header) Get(name string) string {
	v := h.values[lowerHeader(name)]
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// Values returns every value stored for name, in insertion order.
func (h *Header) Values(name string) []string {
	return h.values[lowerHeader(name)]
}

// Has reports whether name has at least one value.
func (h *Header) Has(name string) bool {
	return len(h.values[lowerHeader(name)]) > 0
}

// Names returns the distinct header names in first-insertion order;
// this is the emission order for a response (spec.md §3, "Header
// emission order is the insertion order of distinct names").
func (h *Header) Names() []string {
	return h.order
}

// Clone returns an independent deep copy.
func (h *Header) Clone() *Header {
	n := NewHeader()
	for _, name := range h.order {
		vals := h.values[name]
		cp := make([]string, len(vals))
		copy(cp, vals)
		n.order = append(n.order, name)
		n.values[name] = cp
	}
	return n
}

// Reset empties the header set in place.
func (h *Header) Reset() {
	h.order = h.order[:0]
	h.values = make(map[string][]string)
}
