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

// Package udp owns a single datagram socket bound to a local endpoint,
// per spec §4.5: send/receive, idempotent listen toggling, and
// dispose-on-terminal-error for the receive loop. Grounded on the
// client/server split of nabbar/golib/socket/{client,server}/udp, collapsed
// into one handler since a UDP socket is symmetric.
package udp

import (
	"net"
	"sync"
)

// Events is the set of callbacks the handler fires.
type Events struct {
	OnReceived func(datagram []byte, from net.Addr)
	OnError    func(err error)
}

// Handler owns one UDP socket. Listen and Send may be called concurrently;
// Listen(false) disposes the socket and Listen(true) rebinds a fresh one on
// the same Address.
type Handler struct {
	Address    string
	BufferSize int

	events Events

	mu        sync.Mutex
	conn      *net.UDPConn
	listening bool
	stop      chan struct{}
}

// New builds a Handler bound to address; call Listen(true) to start
// receiving.
func New(address string, bufferSize int, events Events) *Handler {
	if bufferSize <= 0 {
		bufferSize = 4096
	}
	return &Handler{
		Address:    address,
		BufferSize: bufferSize,
		events:     events,
	}
}

// IsListening reports whether the receive loop is currently active.
func (h *Handler) IsListening() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listening
}

// Listen starts or stops the receive loop; idempotent with respect to the
// current state. Disabling closes the socket; re-enabling opens a fresh one
// bound to the same Address.
func (h *Handler) Listen(enable bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if enable {
		if h.listening {
			return nil
		}

		addr, err := net.ResolveUDPAddr("udp", h.Address)
		if err != nil {
			return ErrorResolve.Error(err)
		}

		conn, err := net.ListenUDP("udp", addr)
		if err != nil {
			return ErrorListen.Error(err)
		}

		h.conn = conn
		h.listening = true
		h.stop = make(chan struct{})
		h.Address = conn.LocalAddr().String()

		go h.receiveLoop(conn, h.stop)

		return nil
	}

	if !h.listening {
		return nil
	}

	h.listening = false
	close(h.stop)
	return h.conn.Close()
}

func (h *Handler) receiveLoop(conn *net.UDPConn, stop chan struct{}) {
	buf := make([]byte, h.BufferSize)

	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-stop:
				// socket disposed via Listen(false); not a terminal error.
				return
			default:
			}

			if h.events.OnError != nil {
				h.events.OnError(err)
			}

			h.dispose()
			return
		}

		if h.events.OnReceived != nil {
			datagram := make([]byte, n)
			copy(datagram, buf[:n])
			h.events.OnReceived(datagram, from)
		}
	}
}

// dispose closes the socket after a terminal receive error, mirroring a
// caller-driven Listen(false).
func (h *Handler) dispose() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.listening {
		return
	}
	h.listening = false
	_ = h.conn.Close()
}

// Send transmits one datagram to the given address. The handler must be
// listening: a UDP socket must be bound before it can send.
func (h *Handler) Send(b []byte, to *net.UDPAddr) error {
	h.mu.Lock()
	conn := h.conn
	listening := h.listening
	h.mu.Unlock()

	if !listening || conn == nil {
		return ErrorNotListening.Error()
	}

	if _, err := conn.WriteToUDP(b, to); err != nil {
		return ErrorSend.Error(err)
	}
	return nil
}

// SendTo resolves address and sends b to it.
func (h *Handler) SendTo(b []byte, address string) error {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return ErrorResolve.Error(err)
	}
	return h.Send(b, addr)
}
