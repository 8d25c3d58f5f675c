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
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sabouaram/httpcore/hcerr"
)

// ListenerConfig describes one bound address: plain TCP or TLS
// (spec.md §4.16, "Listener").
type ListenerConfig struct {
	BindAddr      string `mapstructure:"bind_addr" json:"bind_addr" yaml:"bind_addr" toml:"bind_addr" validate:"required,hostname_port"`
	TLS           bool   `mapstructure:"tls" json:"tls" yaml:"tls" toml:"tls"`
	CertChainPEM  string `mapstructure:"cert_chain_pem" json:"cert_chain_pem" yaml:"cert_chain_pem" toml:"cert_chain_pem" validate:"required_if=TLS true"`
	PrivateKeyPEM string `mapstructure:"private_key_pem" json:"private_key_pem" yaml:"private_key_pem" toml:"private_key_pem" validate:"required_if=TLS true"`
}

// ThroughputConfig bounds a read or write direction: a floor in
// bytes/second, evaluated only after delay has elapsed since the
// connection (or the current direction) started, per spec.md §4.? "slow
// client reaping". -1 disables enforcement.
type ThroughputConfig struct {
	MinBytesPerSecond int64         `mapstructure:"min_bytes_per_second" json:"min_bytes_per_second" yaml:"min_bytes_per_second" toml:"min_bytes_per_second"`
	MaxBytesPerSecond int64         `mapstructure:"max_bytes_per_second" json:"max_bytes_per_second" yaml:"max_bytes_per_second" toml:"max_bytes_per_second"`
	Delay             time.Duration `mapstructure:"delay" json:"delay" yaml:"delay" toml:"delay"`
}

// Config is the server's full runtime configuration (spec.md §3,
// "Config"). Field tags follow the teacher's mapstructure/json/yaml/toml
// quadruple so the same struct can be bound from any of nabbar-golib's
// supported config sources.
type Config struct {
	BaseDir     string `mapstructure:"base_dir" json:"base_dir" yaml:"base_dir" toml:"base_dir"`
	ContextPath string `mapstructure:"context_path" json:"context_path" yaml:"context_path" toml:"context_path"`

	Listeners []ListenerConfig `mapstructure:"listeners" json:"listeners" yaml:"listeners" toml:"listeners" validate:"required,min=1,dive"`

	Workers int `mapstructure:"workers" json:"workers" yaml:"workers" toml:"workers" validate:"min=0"`

	InitialReadTimeout time.Duration `mapstructure:"initial_read_timeout" json:"initial_read_timeout" yaml:"initial_read_timeout" toml:"initial_read_timeout"`
	KeepAliveTimeout   time.Duration `mapstructure:"keep_alive_timeout" json:"keep_alive_timeout" yaml:"keep_alive_timeout" toml:"keep_alive_timeout"`
	ProcessingTimeout  time.Duration `mapstructure:"processing_timeout" json:"processing_timeout" yaml:"processing_timeout" toml:"processing_timeout"`
	ShutdownDuration   time.Duration `mapstructure:"shutdown_duration" json:"shutdown_duration" yaml:"shutdown_duration" toml:"shutdown_duration"`

	ReadThroughput  ThroughputConfig `mapstructure:"read_throughput" json:"read_throughput" yaml:"read_throughput" toml:"read_throughput"`
	WriteThroughput ThroughputConfig `mapstructure:"write_throughput" json:"write_throughput" yaml:"write_throughput" toml:"write_throughput"`

	MaxPendingSocketConnections int `mapstructure:"max_pending_socket_connections" json:"max_pending_socket_connections" yaml:"max_pending_socket_connections" toml:"max_pending_socket_connections" validate:"min=1"`
	MaxRequestsPerConnection    int `mapstructure:"max_requests_per_connection" json:"max_requests_per_connection" yaml:"max_requests_per_connection" toml:"max_requests_per_connection" validate:"min=1"`

	MaxRequestHeaderSize int              `mapstructure:"max_request_header_size" json:"max_request_header_size" yaml:"max_request_header_size" toml:"max_request_header_size"`
	MaxRequestBodySize   map[string]int64 `mapstructure:"max_request_body_size" json:"max_request_body_size" yaml:"max_request_body_size" toml:"max_request_body_size"`

	MaxBytesToDrain      int64 `mapstructure:"max_bytes_to_drain" json:"max_bytes_to_drain" yaml:"max_bytes_to_drain" toml:"max_bytes_to_drain"`
	MaxResponseChunkSize int   `mapstructure:"max_response_chunk_size" json:"max_response_chunk_size" yaml:"max_response_chunk_size" toml:"max_response_chunk_size" validate:"min=1"`
	ChunkedBufferSize    int   `mapstructure:"chunked_buffer_size" json:"chunked_buffer_size" yaml:"chunked_buffer_size" toml:"chunked_buffer_size" validate:"min=1"`
	RequestBufferSize    int   `mapstructure:"request_buffer_size" json:"request_buffer_size" yaml:"request_buffer_size" toml:"request_buffer_size" validate:"min=1"`
	ResponseBufferSize   int   `mapstructure:"response_buffer_size" json:"response_buffer_size" yaml:"response_buffer_size" toml:"response_buffer_size"`

	CompressByDefault bool `mapstructure:"compress_by_default" json:"compress_by_default" yaml:"compress_by_default" toml:"compress_by_default"`
}

const (
	defaultInitialReadTimeout          = 2 * time.Second
	defaultKeepAliveTimeout            = 20 * time.Second
	defaultProcessingTimeout           = 10 * time.Second
	defaultShutdownDuration            = 10 * time.Second
	defaultThroughputFloor             = 16 * 1024
	defaultThroughputDelay             = 5 * time.Second
	defaultMaxPendingSocketConnections = 250
	defaultMaxRequestsPerConnection    = 100000
	defaultMaxRequestHeaderSize        = 128 * 1024
	defaultMaxRequestBodySizeAny       = 128 * 1024 * 1024
	defaultMaxRequestBodySizeForm      = 10 * 1024 * 1024
	defaultMaxBytesToDrain             = 256 * 1024
	defaultMaxResponseChunkSize        = 16 * 1024
	defaultChunkedBufferSize           = 4 * 1024
	defaultRequestBufferSize           = 16 * 1024
	defaultResponseBufferSize          = 64 * 1024
)

// NewConfig returns a Config populated with spec.md §4's documented
// defaults, ready for the caller to override listeners and anything
// else before calling Validate.
func NewConfig() *Config {
	return &Config{
		ContextPath:                 "/",
		Workers:                     0,
		InitialReadTimeout:          defaultInitialReadTimeout,
		KeepAliveTimeout:            defaultKeepAliveTimeout,
		ProcessingTimeout:           defaultProcessingTimeout,
		ShutdownDuration:            defaultShutdownDuration,
		ReadThroughput:              ThroughputConfig{MinBytesPerSecond: defaultThroughputFloor, MaxBytesPerSecond: -1, Delay: defaultThroughputDelay},
		WriteThroughput:             ThroughputConfig{MinBytesPerSecond: defaultThroughputFloor, MaxBytesPerSecond: -1, Delay: defaultThroughputDelay},
		MaxPendingSocketConnections: defaultMaxPendingSocketConnections,
		MaxRequestsPerConnection:    defaultMaxRequestsPerConnection,
		MaxRequestHeaderSize:        defaultMaxRequestHeaderSize,
		MaxRequestBodySize: map[string]int64{
			"*": defaultMaxRequestBodySizeAny,
			"application/x-www-form-urlencoded": defaultMaxRequestBodySizeForm,
		},
		MaxBytesToDrain:      defaultMaxBytesToDrain,
		MaxResponseChunkSize: defaultMaxResponseChunkSize,
		ChunkedBufferSize:    defaultChunkedBufferSize,
		RequestBufferSize:    defaultRequestBufferSize,
		ResponseBufferSize:   defaultResponseBufferSize,
		CompressByDefault:    true,
	}
}

// Validate runs struct-tag validation, modeled on the teacher's
// ServerConfig.Validate (nabbar-golib httpserver/config.go): every
// failing constraint becomes one parent on a single ConfigInvalid
// error instead of stopping at the first failure.
func (c *Config) Validate() error {
	val := validator.New()
	err := val.Struct(c)
	if err == nil {
		return nil
	}

	if e, ok := err.(*validator.InvalidValidationError); ok {
		return hcerr.ConfigInvalid.Error(e)
	}

	out := hcerr.ConfigInvalid.Error()
	for _, fe := range err.(validator.ValidationErrors) {
		out.AddParent(fmt.Errorf("config field '%s' failed constraint '%s'", fe.Namespace(), fe.ActualTag()))
	}
	if out.HasParent() {
		return out
	}
	return nil
}

// MaxBodySizeFor resolves the configured body-size ceiling for a
// Content-Type, falling back to the "*" wildcard entry (spec.md §4:
// "max_request_body_size map, default '*' -> 128 MiB"). -1 means
// unbounded.
func (c *Config) MaxBodySizeFor(contentType string) int64 {
	if n, ok := c.MaxRequestBodySize[contentType]; ok {
		return n
	}
	if n, ok := c.MaxRequestBodySize["*"]; ok {
		return n
	}
	return -1
}
