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

// Package ftp builds FTP verb requests against hostName + "/" + remotePath,
// per spec §4.6, generalized from nabbar/golib/ftpclient's single-server
// client wrapper into a request orchestrator driven by github.com/jlaffaye/ftp
// directly.
package ftp

import (
	"context"
	"fmt"
	"time"

	"net"

	libval "github.com/go-playground/validator/v10"
	libftp "github.com/jlaffaye/ftp"

	"github.com/nabbar/netkit/certificates"
	liberr "github.com/nabbar/netkit/errors"
)

// ConnectionTimeZone pins the session's reported timezone, mirroring
// ftpclient.ConfigTimeZone.
type ConnectionTimeZone struct {
	Name   string `mapstructure:"name" json:"name" yaml:"name" toml:"name"`
	Offset int    `mapstructure:"offset" json:"offset" yaml:"offset" toml:"offset"`
}

// ConnectionOptions is the handler's default request configuration; any
// field may be overridden per-call via Merge.
type ConnectionOptions struct {
	Hostname string `mapstructure:"hostname" json:"hostname" yaml:"hostname" toml:"hostname" validate:"required,hostname_port"`
	Login    string `mapstructure:"login" json:"login" yaml:"login" toml:"login"`
	Password string `mapstructure:"password" json:"password" yaml:"password" toml:"password"`

	ConnTimeout time.Duration      `mapstructure:"conn_timeout" json:"conn_timeout" yaml:"conn_timeout" toml:"conn_timeout"`
	TimeZone    ConnectionTimeZone `mapstructure:"timezone" json:"timezone" yaml:"timezone" toml:"timezone"`

	DisableUTF8 bool `mapstructure:"disable_utf8" json:"disable_utf8" yaml:"disable_utf8" toml:"disable_utf8"`
	DisableMLSD bool `mapstructure:"disable_mlsd" json:"disable_mlsd" yaml:"disable_mlsd" toml:"disable_mlsd"`
	EnableMDTM  bool `mapstructure:"enable_mdtm" json:"enable_mdtm" yaml:"enable_mdtm" toml:"enable_mdtm"`

	// DisableEPSV forces classic PASV negotiation instead of EPSV; the
	// zero value keeps the library's default passive-mode behavior.
	DisableEPSV bool `mapstructure:"disable_epsv" json:"disable_epsv" yaml:"disable_epsv" toml:"disable_epsv"`

	// KeepAlive is carried through Merge but is not applied when dialing:
	// no NOOP or other keep-alive traffic is sent on this interval.
	KeepAlive time.Duration `mapstructure:"keep_alive" json:"keep_alive" yaml:"keep_alive" toml:"keep_alive"`

	// Binary records whether the caller wants TYPE I (image/binary) rather
	// than TYPE A (ASCII) transfers. It is not applied to the session: the
	// library always negotiates binary internally, so ASCII is advisory
	// metadata a caller can branch on, not an enforced mode.
	Binary bool `mapstructure:"binary" json:"binary" yaml:"binary" toml:"binary"`

	// Proxy, when set, is dialed in place of Hostname; full proxy protocol
	// negotiation (CONNECT/SOCKS handshake) is out of scope, this only
	// redirects the raw TCP dial.
	Proxy string `mapstructure:"proxy" json:"proxy" yaml:"proxy" toml:"proxy"`

	// ConnectionGroup names a shared concurrency.Limiter key; handlers in
	// the same group share MaxConcurrentConnections.
	ConnectionGroup          string `mapstructure:"connection_group" json:"connection_group" yaml:"connection_group" toml:"connection_group"`
	MaxConcurrentConnections int    `mapstructure:"max_concurrent_connections" json:"max_concurrent_connections" yaml:"max_concurrent_connections" toml:"max_concurrent_connections"`

	ForceTLS bool                 `mapstructure:"force_tls" json:"force_tls" yaml:"force_tls" toml:"force_tls"`
	TLS      *certificates.Config `mapstructure:"tls" json:"tls" yaml:"tls" toml:"tls"`

	BufferSize int `mapstructure:"buffer_size" json:"buffer_size" yaml:"buffer_size" toml:"buffer_size"`

	fctx func() context.Context
	ftls func() *certificates.Config
}

// Validate checks the options against the go-playground/validator tags,
// exactly as ftpclient.Config.Validate / certificates.Config.Validate do.
func (c *ConnectionOptions) Validate() liberr.Error {
	e := ErrorValidatorError.Error()

	if err := libval.New().Struct(c); err != nil {
		if er, ok := err.(*libval.InvalidValidationError); ok {
			e.Add(er)
		} else if vErrs, ok := err.(libval.ValidationErrors); ok {
			for _, er := range vErrs {
				e.Add(fmt.Errorf("connection option '%s' is not validated by constraint '%s'", er.Namespace(), er.ActualTag()))
			}
		} else {
			e.Add(err)
		}
	}

	if !e.HasParent() {
		return nil
	}
	return e
}

// RegisterContext registers a context factory consulted on every dial, for
// cancellation/timeout propagation.
func (c *ConnectionOptions) RegisterContext(fct func() context.Context) {
	c.fctx = fct
}

// RegisterDefaultTLS registers a fallback TLS policy consulted when a
// request has none of its own, mirroring ftpclient.Config.RegisterDefaultTLS.
func (c *ConnectionOptions) RegisterDefaultTLS(fct func() *certificates.Config) {
	c.ftls = fct
}

// Merge layers override on top of c, returning a new ConnectionOptions with
// override's non-zero fields taking precedence (per-call override ∨
// handler default, per spec §4.6).
func (c ConnectionOptions) Merge(override *ConnectionOptions) ConnectionOptions {
	if override == nil {
		return c
	}

	out := c

	if override.Hostname != "" {
		out.Hostname = override.Hostname
	}
	if override.Login != "" {
		out.Login = override.Login
	}
	if override.Password != "" {
		out.Password = override.Password
	}
	if override.ConnTimeout != 0 {
		out.ConnTimeout = override.ConnTimeout
	}
	if override.TimeZone.Name != "" {
		out.TimeZone = override.TimeZone
	}
	if override.Proxy != "" {
		out.Proxy = override.Proxy
	}
	if override.ConnectionGroup != "" {
		out.ConnectionGroup = override.ConnectionGroup
	}
	if override.MaxConcurrentConnections != 0 {
		out.MaxConcurrentConnections = override.MaxConcurrentConnections
	}
	if override.BufferSize != 0 {
		out.BufferSize = override.BufferSize
	}
	if override.TLS != nil {
		out.TLS = override.TLS
	}

	out.DisableUTF8 = override.DisableUTF8 || c.DisableUTF8
	out.DisableMLSD = override.DisableMLSD || c.DisableMLSD
	out.EnableMDTM = override.EnableMDTM || c.EnableMDTM
	out.ForceTLS = override.ForceTLS || c.ForceTLS
	out.DisableEPSV = override.DisableEPSV || c.DisableEPSV
	out.Binary = override.Binary || c.Binary

	if override.KeepAlive != 0 {
		out.KeepAlive = override.KeepAlive
	}

	return out
}

// dial opens a fresh *libftp.ServerConn using these options.
func (c *ConnectionOptions) dial() (*libftp.ServerConn, liberr.Error) {
	opt := make([]libftp.DialOption, 0)

	tls := c.TLS
	if tls == nil && c.ftls != nil {
		tls = c.ftls()
	}
	if tls != nil {
		tlsCfg, terr := tls.New("")
		if terr == nil {
			if c.ForceTLS {
				opt = append(opt, libftp.DialWithExplicitTLS(tlsCfg))
			} else {
				opt = append(opt, libftp.DialWithTLS(tlsCfg))
			}
		}
	}

	if c.fctx != nil {
		opt = append(opt, libftp.DialWithContext(c.fctx()))
	}
	if c.ConnTimeout != 0 {
		opt = append(opt, libftp.DialWithTimeout(c.ConnTimeout))
	}
	if c.TimeZone.Name != "" {
		opt = append(opt, libftp.DialWithLocation(time.FixedZone(c.TimeZone.Name, c.TimeZone.Offset)))
	}
	if c.DisableUTF8 {
		opt = append(opt, libftp.DialWithDisabledUTF8(true))
	}
	if c.DisableEPSV {
		opt = append(opt, libftp.DialWithDisabledEPSV(true))
	}
	if c.DisableMLSD {
		opt = append(opt, libftp.DialWithDisabledMLSD(true))
	}
	if c.EnableMDTM {
		opt = append(opt, libftp.DialWithWritingMDTM(true))
	}
	if c.Proxy != "" {
		proxy := c.Proxy
		opt = append(opt, libftp.DialWithDialFunc(func(network, _ string) (net.Conn, error) {
			return net.Dial(network, proxy)
		}))
	}

	host := c.Hostname

	cli, err := libftp.Dial(host, opt...)
	if err != nil {
		return nil, ErrorFTPConnection.Error(err)
	}

	if c.Login != "" || c.Password != "" {
		if err = cli.Login(c.Login, c.Password); err != nil {
			return cli, ErrorFTPLogin.Error(err)
		}
	}

	return cli, nil
}
