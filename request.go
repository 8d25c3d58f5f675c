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
	"net/url"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// Request is the mutable, incrementally-populated object the preamble
// FSM and body reader fill in, and the application handler reads from
// (spec.md §3, "Request"). Header mutation methods re-run the relevant
// decode side-effect so derived fields never drift from the stored
// header value (spec.md §4.4).
type Request struct {
	Method      string
	RawPath     string
	Path        string
	Query       string
	Params      map[string][]string
	Protocol    string
	Scheme      string
	Host        string
	Port        string
	ClientIP    string
	ContextPath string

	Headers *Header
	Cookies map[string]*Cookie

	Locales          []string
	AcceptEncodings  []weightedValue
	ContentEncodings []weightedValue

	ContentType      string
	ContentLength    int64
	HasContentLength bool
	Multipart        bool
	Boundary         string
	Charset          string
	TransferEncoding string

	Attributes map[string]interface{}

	input     io.Reader
	paramsSet bool
	bodyForm  url.Values
}

type weightedValue struct {
	Value  string
	Weight float64
}

// NewRequest returns an empty Request ready for the preamble FSM to
// populate via SetMethod/SetRawPath/SetProtocol/AddHeader.
func NewRequest() *Request {
	return &Request{
		Headers:       NewHeader(),
		Cookies:       make(map[string]*Cookie),
		Params:        make(map[string][]string),
		Attributes:    make(map[string]interface{}),
		ContentLength: -1,
	}
}

// Reset clears r in place for keep-alive reuse, matching the worker's
// "reset request/response" step between requests (spec.md §4.5).
func (r *Request) Reset() {
	r.Method = ""
	r.RawPath = ""
	r.Path = ""
	r.Query = ""
	r.Params = make(map[string][]string)
	r.Protocol = ""
	r.Scheme = ""
	r.Host = ""
	r.Port = ""
	r.ClientIP = ""
	r.ContextPath = ""
	r.Headers.Reset()
	r.Cookies = make(map[string]*Cookie)
	r.Locales = nil
	r.AcceptEncodings = nil
	r.ContentEncodings = nil
	r.ContentType = ""
	r.ContentLength = -1
	r.HasContentLength = false
	r.Multipart = false
	r.Boundary = ""
	r.Charset = ""
	r.TransferEncoding = ""
	r.Attributes = make(map[string]interface{})
	r.input = nil
	r.paramsSet = false
	r.bodyForm = nil
}

// SetRawPath splits at '?', percent-decodes the path, and parses the
// query string into Params — malformed percent-escapes in a key or
// value cause that single pair to be dropped, never the whole request
// (spec.md §3 invariant, §4.1 path decode side-effect).
func (r *Request) SetRawPath(raw string) {
	r.RawPath = raw
	r.Params = make(map[string][]string)
	r.paramsSet = false

	path, query, found := strings.Cut(raw, "?")
	r.Query = ""
	if found {
		r.Query = query
	}

	if decoded, err := url.PathUnescape(path); err == nil {
		r.Path = decoded
	} else {
		r.Path = path
	}

	if found {
		for _, pair := range strings.Split(query, "&") {
			if pair == "" {
				continue
			}
			k, v, _ := strings.Cut(pair, "=")
			dk, errK := url.QueryUnescape(k)
			dv, errV := url.QueryUnescape(v)
			if errK != nil || errV != nil {
				continue
			}
			r.Params[dk] = append(r.Params[dk], dv)
		}
	}
}

// AddHeader appends (name, value) to Headers and re-applies the
// decode side-effect for recognized header names, matching the
// teacher's "mutable request, decode side effects on add" contract.
func (r *Request) AddHeader(name, value string) {
	r.Headers.Add(name, value)
	r.applyHeaderSideEffect(strings.ToLower(name), value)
}

// SetHeader replaces all values for name and re-applies the decode
// side-effect using the new single value.
func (r *Request) SetHeader(name, value string) {
	r.Headers.Set(name, value)
	r.applyHeaderSideEffect(strings.ToLower(name), value)
}

func (r *Request) applyHeaderSideEffect(lname, value string) {
	switch lname {
	case "content-type":
		r.decodeContentType(value)
	case "content-length":
		r.decodeContentLength(value)
	case "cookie":
		for name, c := range parseCookieHeader(value) {
			r.Cookies[name] = c
		}
	case "accept-encoding":
		r.AcceptEncodings = parseWeighted(value)
	case "content-encoding":
		r.ContentEncodings = parseWeighted(value)
	case "accept-language":
		r.Locales = parseLocales(value)
	case "host":
		r.decodeHost(value)
	case "transfer-encoding":
		r.TransferEncoding = strings.ToLower(strings.TrimSpace(value))
	}
}

func (r *Request) decodeContentType(value string) {
	main, params := splitParams(value)
	r.ContentType = main
	r.Multipart = strings.HasPrefix(main, "multipart/")
	r.Charset = params["charset"]
	if b, ok := params["boundary"]; ok {
		r.Boundary = b
	} else {
		r.Boundary = ""
	}
}

func (r *Request) decodeContentLength(value string) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n < 0 {
		r.HasContentLength = false
		r.ContentLength = -1
		return
	}
	r.HasContentLength = true
	r.ContentLength = n
}

func (r *Request) decodeHost(value string) {
	host, port, err := splitHostPort(value)
	r.Host = host
	if err == nil && port != "" {
		r.Port = port
	} else if r.Scheme == "https" {
		r.Port = "443"
	} else {
		r.Port = "80"
	}
}

func splitHostPort(hostport string) (host, port string, err error) {
	idx := strings.LastIndexByte(hostport, ':')
	if idx < 0 {
		return hostport, "", nil
	}
	return hostport[:idx], hostport[idx+1:], nil
}

// splitParams parses "text/html; charset=utf-8; boundary=xyz" into its
// main token and a lowercased-key parameter map.
func splitParams(value string) (string, map[string]string) {
	parts := strings.Split(value, ";")
	main := strings.ToLower(strings.TrimSpace(parts[0]))
	params := make(map[string]string)
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		v = strings.Trim(v, `"`)
		params[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return main, params
}

// parseWeighted parses an Accept-Encoding/Content-Encoding-style list
// ("gzip;q=0.8, deflate") into entries sorted by weight descending,
// ties broken by original insertion order (spec.md §4.1).
func parseWeighted(value string) []weightedValue {
	items := strings.Split(value, ",")
	out := make([]weightedValue, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, params := splitParams(item)
		weight := 1.0
		if q, ok := params["q"]; ok {
			if f, err := strconv.ParseFloat(q, 64); err == nil {
				weight = f
			}
		}
		out = append(out, weightedValue{Value: name, Weight: weight})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Weight > out[j].Weight
	})
	return out
}

// parseLocales decodes Accept-Language using golang.org/x/text/language
// instead of a hand-rolled q-value parser, returning BCP-47 tags
// ordered by descending weight.
func parseLocales(value string) []string {
	tags, _, err := language.ParseAcceptLanguage(value)
	if err != nil || len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.String())
	}
	return out
}

// PreferredEncoding returns "gzip" whenever the client accepts it with a
// non-zero weight, else "deflate" if that is accepted, or "" otherwise
// (spec.md §4.3 compression policy).
func (r *Request) PreferredEncoding() string {
	var gzipW, deflateW float64 = -1, -1
	for _, e := range r.AcceptEncodings {
		switch e.Value {
		case "gzip":
			gzipW = e.Weight
		case "deflate":
			deflateW = e.Weight
		}
	}
	if gzipW > 0 {
		return "gzip"
	}
	if deflateW > 0 {
		return "deflate"
	}
	return ""
}

// SetInput attaches the body reader (Fixed or Chunked) and invalidates
// the cached form-parameter merge (spec.md §4.4: "cache is invalidated
// when the input-stream is replaced").
func (r *Request) SetInput(in io.Reader) {
	r.input = in
	r.bodyForm = nil
	r.paramsSet = false
}

// Input returns the current body reader, or nil if this request has no
// body.
func (r *Request) Input() io.Reader {
	return r.input
}

// Parameters lazily merges URL query parameters with
// application/x-www-form-urlencoded body data and caches the result,
// per spec.md §4.4. Multipart bodies are left to the out-of-scope
// multipart collaborator and are not merged here.
func (r *Request) Parameters() map[string][]string {
	if r.paramsSet {
		return r.mergedParams()
	}

	if r.ContentType == "application/x-www-form-urlencoded" && r.input != nil {
		buf := make([]byte, 0, 4096)
		chunk := make([]byte, 4096)
		for {
			n, err := r.input.Read(chunk)
			if n > 0 {
				buf = append(buf, chunk[:n]...)
			}
			if err != nil {
				break
			}
		}
		if form, err := url.ParseQuery(string(buf)); err == nil {
			r.bodyForm = form
		}
	}

	r.paramsSet = true
	return r.mergedParams()
}

func (r *Request) mergedParams() map[string][]string {
	out := make(map[string][]string, len(r.Params))
	for k, v := range r.Params {
		out[k] = append(out[k], v...)
	}
	for k, v := range r.bodyForm {
		out[k] = append(out[k], v...)
	}
	return out
}
