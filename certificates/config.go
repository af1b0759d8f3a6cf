/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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
 *
 *
 */

// Package certificates supplies TLS configuration for the framing engine's
// TLS upgrade hook, trimmed from nabbar/golib/certificates: no CA/cert/
// cipher/curve sub-packages, no certificate-authoring helpers (treated, per
// the surrounding spec, as an opaque certificate supplier out of scope here).
package certificates

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	libval "github.com/go-playground/validator/v10"
	liberr "github.com/nabbar/netkit/errors"
)

// ValidationDecision is the outcome a caller-supplied validation hook can
// force: Accept/Reject short-circuit the default chain policy, Undecided
// falls back to it.
type ValidationDecision uint8

const (
	Undecided ValidationDecision = iota
	Accept
	Reject
)

// ValidationFunc lets a caller override the certificate-validation policy
// used during a client-side TLS handshake. Returning Undecided defers to the
// default policy: accept fully trusted chains, accept a self-signed root
// whose subject equals its issuer, reject everything else. The hook is only
// consulted for configs with a RootCAFile (see New).
type ValidationFunc func(chain []*x509.Certificate, verifiedChains [][]*x509.Certificate) ValidationDecision

// Config describes one TLS material set: a certificate pair for server-side
// (or mutual) auth, a root CA pool for client-side verification, and the
// TLS version bounds the framing engine's TLS upgrade applies.
type Config struct {
	CertFile   string `mapstructure:"certFile" json:"certFile" yaml:"certFile" toml:"certFile" validate:"required_with=KeyFile"`
	KeyFile    string `mapstructure:"keyFile" json:"keyFile" yaml:"keyFile" toml:"keyFile" validate:"required_with=CertFile"`
	RootCAFile []string `mapstructure:"rootCAFile" json:"rootCAFile" yaml:"rootCAFile" toml:"rootCAFile"`
	VersionMin uint16 `mapstructure:"versionMin" json:"versionMin" yaml:"versionMin" toml:"versionMin"`
	VersionMax uint16 `mapstructure:"versionMax" json:"versionMax" yaml:"versionMax" toml:"versionMax"`

	validate ValidationFunc
}

// Validate checks the struct tags with go-playground/validator, the same
// way ftpclient.Config.Validate and the teacher's certificates.Config.
// Validate do.
func (c *Config) Validate() liberr.Error {
	err := ErrorValidatorError.Error()

	if er := libval.New().Struct(c); er != nil {
		if e, ok := er.(*libval.InvalidValidationError); ok {
			err.Add(e)
		} else if ve, ok := er.(libval.ValidationErrors); ok {
			for _, e := range ve {
				err.Add(fmt.Errorf("config field '%s' is not validated by constraint '%s'", e.StructNamespace(), e.ActualTag()))
			}
		} else {
			err.Add(er)
		}
	}

	if err.HasParent() {
		return err
	}

	return nil
}

// RegisterValidation installs the caller-supplied certificate-validation
// override hook described by the framing engine's TLS upgrade policy.
func (c *Config) RegisterValidation(fct ValidationFunc) {
	c.validate = fct
}

// New builds a *tls.Config for serverName (empty for a server-side config),
// loading the configured certificate pair and root CA pool. The
// default-or-overridden validation policy is wired into
// VerifyPeerCertificate only when RootCAFile is non-empty; without a root CA
// pool, crypto/tls's standard verification applies and the registered
// ValidationFunc is not consulted.
func (c *Config) New(serverName string) (*tls.Config, liberr.Error) {
	cfg := &tls.Config{
		ServerName: serverName,
		MinVersion: c.tlsVersionMin(),
		MaxVersion: c.tlsVersionMax(),
	}

	if c.CertFile != "" && c.KeyFile != "" {
		pair, e := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if e != nil {
			return nil, ErrorCertificateLoad.Error(e)
		}
		cfg.Certificates = []tls.Certificate{pair}
	}

	pool, e := c.rootCAPool()
	if e != nil {
		return nil, e
	}
	if pool != nil {
		cfg.RootCAs = pool
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = c.verifyPeerCertificate(pool)
	}

	return cfg, nil
}

func (c *Config) tlsVersionMin() uint16 {
	if c.VersionMin == 0 {
		return tls.VersionTLS12
	}
	return c.VersionMin
}

func (c *Config) tlsVersionMax() uint16 {
	if c.VersionMax == 0 {
		return tls.VersionTLS13
	}
	return c.VersionMax
}

func (c *Config) rootCAPool() (*x509.CertPool, liberr.Error) {
	if len(c.RootCAFile) == 0 {
		return nil, nil
	}

	pool := x509.NewCertPool()
	for _, f := range c.RootCAFile {
		pem, e := readFile(f)
		if e != nil {
			return nil, ErrorCertificateLoad.Error(e)
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, ErrorCertificatePoolAppend.Error()
		}
	}
	return pool, nil
}
