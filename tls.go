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
	"crypto/tls"
	"net"
	"strings"

	"github.com/sabouaram/httpcore/hcerr"
)

// tlsBuilder accumulates certificate material for one listener and
// resolves it into a *tls.Config. Record-layer framing, handshake
// demux and close_notify are left entirely to crypto/tls — wrapping a
// net.Listener in tls.NewListener is the whole adapter.
type tlsBuilder struct {
	certs []tls.Certificate
}

func newTLSBuilder() *tlsBuilder {
	return &tlsBuilder{}
}

// AddCertificatePairString loads one PEM certificate chain and PEM
// private key pair, trimming surrounding whitespace the way
// configuration values pasted from a secrets store commonly carry.
func (b *tlsBuilder) AddCertificatePairString(certChainPEM, privateKeyPEM string) error {
	certChainPEM = strings.TrimSpace(certChainPEM)
	privateKeyPEM = strings.TrimSpace(privateKeyPEM)

	if certChainPEM == "" || privateKeyPEM == "" {
		return hcerr.TLSConfigInvalid.Error()
	}

	pair, err := tls.X509KeyPair([]byte(certChainPEM), []byte(privateKeyPEM))
	if err != nil {
		return hcerr.TLSConfigInvalid.Error(err)
	}

	b.certs = append(b.certs, pair)
	return nil
}

// Config resolves the accumulated certificates into a *tls.Config
// suitable for tls.NewListener. serverName, when non-empty, pins SNI
// for clients that expect one certificate regardless of the name they
// dialed with.
func (b *tlsBuilder) Config(serverName string) (*tls.Config, error) {
	if len(b.certs) == 0 {
		return nil, hcerr.TLSConfigInvalid.Error()
	}

	cfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: b.certs,
	}
	if serverName != "" {
		cfg.ServerName = serverName
	}
	return cfg, nil
}

// wrapTLSListener loads a single listener's certificate pair from its
// configured PEM strings and wraps ln with tls.NewListener. The
// returned net.Listener hands *tls.Conn values straight to the
// acceptor; worker.isTLS detects them unmodified.
func wrapTLSListener(ln net.Listener, lc *ListenerConfig) (net.Listener, error) {
	b := newTLSBuilder()
	if err := b.AddCertificatePairString(lc.CertChainPEM, lc.PrivateKeyPEM); err != nil {
		return nil, err
	}

	cfg, err := b.Config("")
	if err != nil {
		return nil, err
	}

	return tls.NewListener(ln, cfg), nil
}
