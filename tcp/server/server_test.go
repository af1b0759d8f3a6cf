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

package server_test

import (
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nabbar/netkit/framing"
	"github.com/nabbar/netkit/tcp/server"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Server", func() {

	It("rejects a connection once maxClients is reached", func() {
		var reached int32
		var connected int32

		srv := server.New("127.0.0.1:0", 64, 1, server.Events{
			OnConnected: func(_ *framing.ConnectionInfo) {
				atomic.AddInt32(&connected, 1)
			},
			OnMaxClientsReached: func(_ *framing.ConnectionInfo) {
				atomic.AddInt32(&reached, 1)
			},
		})

		Expect(srv.Start()).To(Succeed())
		defer srv.Stop()

		c1, err := net.Dial("tcp", srv.Address)
		Expect(err).NotTo(HaveOccurred())
		defer c1.Close()

		Eventually(func() int32 { return atomic.LoadInt32(&connected) }, time.Second).Should(Equal(int32(1)))

		c2, err := net.Dial("tcp", srv.Address)
		Expect(err).NotTo(HaveOccurred())
		defer c2.Close()

		Eventually(func() int32 { return atomic.LoadInt32(&reached) }, time.Second).Should(Equal(int32(1)))
		Expect(atomic.LoadInt32(&connected)).To(Equal(int32(1)))
	})

	It("broadcasts a framed payload to every registered client", func() {
		var mu sync.Mutex
		delivered := make(map[*framing.ConnectionInfo][]byte)
		connected := make(chan struct{}, 2)

		srv := server.New("127.0.0.1:0", 64, 2, server.Events{
			OnConnected: func(ci *framing.ConnectionInfo) {
				connected <- struct{}{}
			},
			OnReceivedFull: func(ci *framing.ConnectionInfo, payload []byte) {
				mu.Lock()
				delivered[ci] = append([]byte(nil), payload...)
				mu.Unlock()
			},
		})
		Expect(srv.Start()).To(Succeed())
		defer srv.Stop()

		c1, err := net.Dial("tcp", srv.Address)
		Expect(err).NotTo(HaveOccurred())
		defer c1.Close()
		c2, err := net.Dial("tcp", srv.Address)
		Expect(err).NotTo(HaveOccurred())
		defer c2.Close()

		<-connected
		<-connected

		Eventually(func() int { return srv.ClientCount() }, time.Second).Should(Equal(2))

		srv.SendAll([]byte("broadcast"), true)

		buf1 := make([]byte, 4+len("broadcast"))
		_, err = io.ReadFull(c1, buf1)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf1[4:])).To(Equal("broadcast"))

		buf2 := make([]byte, 4+len("broadcast"))
		_, err = io.ReadFull(c2, buf2)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(buf2[4:])).To(Equal("broadcast"))
	})
})
