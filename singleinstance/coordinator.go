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

// Package singleinstance arbitrates which of several processes on a host
// holds an exclusive role, per spec §4.8: a loopback TCP probe decides
// whether this process is the first ("single") instance or a late-coming
// one, and late-comers forward their command-line arguments to the first
// instance instead of running themselves. Built entirely on this module's
// own tcp/client and tcp/server rather than a third socket implementation.
package singleinstance

import (
	"fmt"
	"sync"
	"time"

	"github.com/nabbar/netkit/framing"
	"github.com/nabbar/netkit/tcp/client"
	"github.com/nabbar/netkit/tcp/server"

	liberr "github.com/nabbar/netkit/errors"
	"github.com/nabbar/netkit/log"
)

const defaultBufferSize = 4096

// Events are the coordinator's lifecycle callbacks.
type Events struct {
	// OnArgumentsReceived fires once a peer connection's full argument
	// vector has arrived, per spec §4.8 step 3.
	OnArgumentsReceived func(args []string)
}

// Coordinator owns the probe client and, if this process turns out to be
// the first instance, the listening server.
type Coordinator struct {
	port        int
	tryTimeout  time.Duration
	readTimeout time.Duration

	events Events

	isSingle bool

	srv *server.Server
	cli *client.Client

	mu        sync.Mutex
	instances map[*framing.ConnectionInfo]*InstanceInfo
}

// New probes loopback:port for an existing instance within tryTimeout. If
// none answers, it becomes the single instance and starts listening;
// otherwise it forwards args to the peer that answered and disconnects.
// readTimeout bounds idle time on accepted peer connections once listening.
func New(port int, tryTimeout, readTimeout time.Duration, args []string, events Events) (*Coordinator, liberr.Error) {
	c := &Coordinator{
		port:        port,
		tryTimeout:  tryTimeout,
		readTimeout: readTimeout,
		events:      events,
		instances:   make(map[*framing.ConnectionInfo]*InstanceInfo),
	}

	address := fmt.Sprintf("127.0.0.1:%d", port)

	c.cli = client.New(address, defaultBufferSize, client.Events{})

	if c.cli.ConnectTimeout(tryTimeout) {
		c.isSingle = false
		log.WithField("port", port).Info("an instance is already running, forwarding arguments")
		if err := c.forward(args); err != nil {
			return nil, err
		}
		_ = c.cli.Disconnect()
		return c, nil
	}

	c.isSingle = true
	c.cli = nil

	log.WithField("port", port).Info("no instance running, becoming the single instance")

	c.srv = server.New(address, defaultBufferSize, 0, server.Events{
		OnConnected: func(ci *framing.ConnectionInfo) {
			ci.SetWholePacketDelivery(true)
			ci.SetIdleTimeout(readTimeout)

			c.mu.Lock()
			c.instances[ci] = newInstanceInfo()
			c.mu.Unlock()
		},
		OnReceivedFull: func(ci *framing.ConnectionInfo, payload []byte) {
			c.mu.Lock()
			info, ok := c.instances[ci]
			c.mu.Unlock()
			if !ok {
				return
			}

			if err := info.feed(payload); err != nil {
				_ = ci.Disconnect()
				return
			}

			if info.Complete() {
				if c.events.OnArgumentsReceived != nil {
					c.events.OnArgumentsReceived(info.Args())
				}
				_ = ci.Disconnect()
			}
		},
		OnDisconnected: func(ci *framing.ConnectionInfo, _ error) {
			c.mu.Lock()
			delete(c.instances, ci)
			c.mu.Unlock()
		},
	})

	if err := c.srv.Start(); err != nil {
		return nil, ErrorListen.Error(err)
	}

	return c, nil
}

// IsSingle reports whether this process is the first instance on the port.
func (c *Coordinator) IsSingle() bool {
	return c.isSingle
}

// forward sends args to the peer that answered the probe, per spec §4.8
// step 4: the argument count as its own length-prefixed message, followed
// by each argument's UTF-16LE bytes as a separate length-prefixed message.
func (c *Coordinator) forward(args []string) liberr.Error {
	if err := c.cli.Send(encodeArgCount(len(args)), true); err != nil {
		return ErrorSend.Error(err)
	}
	for _, a := range args {
		if err := c.cli.Send(encodeUTF16LE(a), true); err != nil {
			return ErrorSend.Error(err)
		}
	}
	return nil
}

// Dispose stops both sides: the probe client disconnects (if still
// connected) and the listening server, if this process is the single
// instance, stops accepting.
func (c *Coordinator) Dispose() {
	if c.cli != nil {
		_ = c.cli.Disconnect()
	}
	if c.srv != nil {
		_ = c.srv.Stop()
	}
}
