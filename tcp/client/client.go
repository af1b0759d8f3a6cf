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

// Package client implements the TCP Client: dials a remote address,
// optionally upgrades to TLS, owns one framing.ConnectionInfo, and surfaces
// its lifecycle as events. Grounded on the dial/connect vocabulary of
// nabbar/golib/socket/client/tcp (ClientTCP.IsConnected, sckclt.New) and
// generalized onto this module's framing engine.
package client

import (
	"crypto/x509"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nabbar/netkit/certificates"
	"github.com/nabbar/netkit/framing"
	"github.com/nabbar/netkit/log"
)

// Events mirrors framing.Events plus the client-only sslValidationRequested
// hook named in spec §4.3.
type Events struct {
	OnReceivedFragment     func(f *framing.Fragment)
	OnReceivedFull         func(payload []byte)
	OnDisconnected         func(err error)
	OnReceiveError         func(err error)
	OnSslError             func(err error)
	OnSslValidationRequest func(chain []byte) certificates.ValidationDecision
}

// Client owns address, buffer size and the single ConnectionInfo that
// results from a successful connect().
type Client struct {
	Address            string
	BufferSize         int
	IsLengthInOneFrame bool
	SslTargetHost      string
	TLS                *certificates.Config

	events Events

	mu               sync.Mutex
	conn             *framing.ConnectionInfo
	lastConnectError error
	connected        atomic.Bool
}

// New builds a Client; call Connect to dial.
func New(address string, bufferSize int, events Events) *Client {
	return &Client{
		Address:    address,
		BufferSize: bufferSize,
		events:     events,
	}
}

// IsConnected reports whether the client currently owns a live connection.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// LastConnectError returns the cause of the most recent failed Connect, or
// nil if the last attempt (if any) succeeded.
func (c *Client) LastConnectError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastConnectError
}

// Connect dials Address, optionally upgrades to TLS, and starts the framing
// engine's receive loop in the background. Returns whether the attempt
// succeeded; on failure the cause is retained on LastConnectError and
// wrapped as liberr.Error via ErrorDial (dial failures) or ErrorTls (TLS
// setup or handshake failures).
func (c *Client) Connect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := net.Dial("tcp", c.Address)
	if err != nil {
		log.WithField("address", c.Address).ErrorE(err)
		c.lastConnectError = ErrorDial.Error(err)
		return false
	}

	ci := framing.NewConnectionInfo(framing.RoleClient, conn, c.BufferSize, framing.Events{
		OnFragment: func(_ *framing.ConnectionInfo, f *framing.Fragment) {
			if c.events.OnReceivedFragment != nil {
				c.events.OnReceivedFragment(f)
			}
		},
		OnFull: func(_ *framing.ConnectionInfo, payload []byte) {
			if c.events.OnReceivedFull != nil {
				c.events.OnReceivedFull(payload)
			}
		},
		OnDisconnected: func(_ *framing.ConnectionInfo, derr error) {
			c.connected.Store(false)
			if c.events.OnDisconnected != nil {
				c.events.OnDisconnected(derr)
			}
		},
		OnReceiveError: func(_ *framing.ConnectionInfo, rerr error) {
			if c.events.OnReceiveError != nil {
				c.events.OnReceiveError(rerr)
			}
		},
		OnSslError: func(_ *framing.ConnectionInfo, serr error) {
			if c.events.OnSslError != nil {
				c.events.OnSslError(serr)
			}
		},
	})
	ci.IsLengthInOneFrame = c.IsLengthInOneFrame

	if c.TLS != nil {
		if c.events.OnSslValidationRequest != nil {
			c.TLS.RegisterValidation(func(chain []*x509.Certificate, _ [][]*x509.Certificate) certificates.ValidationDecision {
				if len(chain) == 0 {
					return certificates.Undecided
				}
				return c.events.OnSslValidationRequest(chain[0].Raw)
			})
		}

		tlsCfg, terr := c.TLS.New(c.SslTargetHost)
		if terr != nil {
			_ = conn.Close()
			c.lastConnectError = ErrorTls.Error(terr)
			return false
		}
		if uerr := ci.UpgradeTLS(tlsCfg); uerr != nil {
			_ = conn.Close()
			c.lastConnectError = ErrorTls.Error(uerr)
			return false
		}
	}

	c.conn = ci
	c.connected.Store(true)
	c.lastConnectError = nil

	go ci.Start()

	return true
}

// ConnectTimeout is Connect bounded by an overall deadline, used by the
// single-instance coordinator's tryTimeout probe.
func (c *Client) ConnectTimeout(d time.Duration) bool {
	done := make(chan bool, 1)
	go func() { done <- c.Connect() }()

	select {
	case ok := <-done:
		return ok
	case <-time.After(d):
		return false
	}
}

// Disconnect delegates to the underlying ConnectionInfo; idempotent, and a
// no-op if never connected.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	ci := c.conn
	c.mu.Unlock()

	if ci == nil {
		return nil
	}
	return ci.Disconnect()
}

// Send delegates to the ConnectionInfo, framing b with a 32-bit length
// prefix when lengthPrefixed is set.
func (c *Client) Send(b []byte, lengthPrefixed bool) error {
	c.mu.Lock()
	ci := c.conn
	c.mu.Unlock()

	if ci == nil {
		return ErrorNotConnected.Error()
	}
	return ci.Send(b, lengthPrefixed, c.IsLengthInOneFrame)
}

// SendFile delegates to the ConnectionInfo's 64-bit length-prefixed file
// send.
func (c *Client) SendFile(path string, preBuffer, postBuffer []byte, preBufferIsBeforeLength bool) error {
	c.mu.Lock()
	ci := c.conn
	c.mu.Unlock()

	if ci == nil {
		return ErrorNotConnected.Error()
	}
	return ci.SendFile(path, preBuffer, postBuffer, preBufferIsBeforeLength)
}

// SetReadNextAsLong arms the next received packet's header to be 64-bit,
// per the send API's documented contract for file transfers.
func (c *Client) SetReadNextAsLong(enabled bool) {
	c.mu.Lock()
	ci := c.conn
	c.mu.Unlock()
	if ci != nil {
		ci.SetReadNextAsLong(enabled)
	}
}

// SetWholePacketDelivery toggles whole-packet (OnReceivedFull) delivery.
func (c *Client) SetWholePacketDelivery(enabled bool) {
	c.mu.Lock()
	ci := c.conn
	c.mu.Unlock()
	if ci != nil {
		ci.SetWholePacketDelivery(enabled)
	}
}
