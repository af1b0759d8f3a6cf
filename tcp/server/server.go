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

// Package server implements the TCP Server: accepts connections, caps
// concurrent clients, owns a registry of framing.ConnectionInfo, broadcasts
// to all registered clients, and supports TLS server authentication.
// Grounded on the accept/registry vocabulary of nabbar/golib/socket/server/
// tcp's test suite, generalized onto this module's framing engine.
package server

import (
	"net"
	"sync"

	"github.com/nabbar/netkit/certificates"
	"github.com/nabbar/netkit/concurrency"
	"github.com/nabbar/netkit/framing"
	"github.com/nabbar/netkit/log"
)

// Events is the set of lifecycle callbacks the server fires, per spec §4.4.
type Events struct {
	OnConnected        func(ci *framing.ConnectionInfo)
	OnDisconnected     func(ci *framing.ConnectionInfo, err error)
	OnReceivedFragment func(ci *framing.ConnectionInfo, f *framing.Fragment)
	OnReceivedFull     func(ci *framing.ConnectionInfo, payload []byte)
	OnReceiveError     func(ci *framing.ConnectionInfo, err error)
	OnSslError         func(ci *framing.ConnectionInfo, err error)
	OnMaxClientsReached func(ci *framing.ConnectionInfo)
}

// Server owns a listener, a cap on concurrent clients, and the registry of
// accepted connections.
type Server struct {
	Address            string
	BufferSize         int
	IsLengthInOneFrame bool
	TLS                *certificates.Config

	events Events
	limit  *concurrency.Limiter

	mu       sync.Mutex
	listener net.Listener
	listening bool

	registry sync.Map // net.Conn -> *framing.ConnectionInfo
}

// New builds a Server; call Start to listen and accept.
func New(address string, bufferSize int, maxClients int, events Events) *Server {
	return &Server{
		Address:    address,
		BufferSize: bufferSize,
		events:     events,
		limit:      concurrency.NewLimiter(int64(maxClients)),
	}
}

// Start is idempotent: it listens on Address and launches the accept loop
// in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listening {
		return nil
	}

	ln, err := net.Listen("tcp", s.Address)
	if err != nil {
		return ErrorListen.Error(err)
	}

	s.listener = ln
	s.listening = true
	s.Address = ln.Addr().String()

	log.WithField("address", s.Address).Info("tcp server listening")

	go s.acceptLoop(ln)

	return nil
}

// Stop stops the listener; outstanding receive loops terminate as their
// streams close.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.listening {
		return nil
	}
	s.listening = false
	return s.listener.Close()
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go s.acceptOne(conn)
	}
}

func (s *Server) acceptOne(conn net.Conn) {
	ci := framing.NewConnectionInfo(framing.RoleServer, conn, s.BufferSize, framing.Events{
		OnFragment: func(c *framing.ConnectionInfo, f *framing.Fragment) {
			if s.events.OnReceivedFragment != nil {
				s.events.OnReceivedFragment(c, f)
			}
		},
		OnFull: func(c *framing.ConnectionInfo, payload []byte) {
			if s.events.OnReceivedFull != nil {
				s.events.OnReceivedFull(c, payload)
			}
		},
		OnDisconnected: func(c *framing.ConnectionInfo, derr error) {
			s.registry.Delete(conn)
			s.limit.Release()
			if s.events.OnDisconnected != nil {
				s.events.OnDisconnected(c, derr)
			}
		},
		OnReceiveError: func(c *framing.ConnectionInfo, rerr error) {
			if s.events.OnReceiveError != nil {
				s.events.OnReceiveError(c, rerr)
			}
		},
		OnSslError: func(c *framing.ConnectionInfo, serr error) {
			if s.events.OnSslError != nil {
				s.events.OnSslError(c, serr)
			}
		},
	})
	ci.IsLengthInOneFrame = s.IsLengthInOneFrame

	if !s.limit.TryAdmit() {
		log.WithField("remote", conn.RemoteAddr().String()).Warn("max clients reached, rejecting connection")
		if s.events.OnMaxClientsReached != nil {
			s.events.OnMaxClientsReached(ci)
		}
		_ = conn.Close()
		return
	}

	if _, loaded := s.registry.LoadOrStore(conn, ci); loaded {
		// duplicate insertion: roll back the admission and close.
		s.limit.Release()
		_ = conn.Close()
		return
	}

	if s.TLS != nil {
		tlsCfg, terr := s.TLS.New("")
		if terr != nil {
			s.registry.Delete(conn)
			s.limit.Release()
			_ = conn.Close()
			return
		}
		if uerr := ci.UpgradeTLS(tlsCfg); uerr != nil {
			s.registry.Delete(conn)
			s.limit.Release()
			_ = conn.Close()
			return
		}
	}

	if s.events.OnConnected != nil {
		s.events.OnConnected(ci)
	}

	ci.Start()
}

// Clients returns a snapshot of currently registered connections.
func (s *Server) Clients() []*framing.ConnectionInfo {
	var out []*framing.ConnectionInfo
	s.registry.Range(func(_, v interface{}) bool {
		out = append(out, v.(*framing.ConnectionInfo))
		return true
	})
	return out
}

// ClientCount reports the number of currently registered connections.
func (s *Server) ClientCount() int {
	return int(s.limit.Current())
}

// Send writes b to one client, framed with a 32-bit length prefix when
// lengthPrefixed is set.
func (s *Server) Send(ci *framing.ConnectionInfo, b []byte, lengthPrefixed bool) error {
	return ci.Send(b, lengthPrefixed, s.IsLengthInOneFrame)
}

// SendFile streams path to one client as a 64-bit length-prefixed frame.
func (s *Server) SendFile(ci *framing.ConnectionInfo, path string, preBuffer, postBuffer []byte, preBufferIsBeforeLength bool) error {
	return ci.SendFile(path, preBuffer, postBuffer, preBufferIsBeforeLength)
}

// SendAll broadcasts b to every registered client. Broadcasts offer no
// cross-connection ordering: a write failure on one client does not abort
// delivery to the others.
func (s *Server) SendAll(b []byte, lengthPrefixed bool) {
	for _, ci := range s.Clients() {
		_ = ci.Send(b, lengthPrefixed, s.IsLengthInOneFrame)
	}
}

// SendAllFile broadcasts a file send to every registered client.
func (s *Server) SendAllFile(path string, preBuffer, postBuffer []byte, preBufferIsBeforeLength bool) {
	for _, ci := range s.Clients() {
		_ = ci.SendFile(path, preBuffer, postBuffer, preBufferIsBeforeLength)
	}
}

// DisconnectClient disconnects one registered client.
func (s *Server) DisconnectClient(ci *framing.ConnectionInfo) error {
	return ci.Disconnect()
}

// DisconnectAll disconnects every registered client.
func (s *Server) DisconnectAll() {
	for _, ci := range s.Clients() {
		_ = ci.Disconnect()
	}
}
