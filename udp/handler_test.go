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

package udp

import (
	"net"
	"testing"
	"time"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	received := make(chan []byte, 1)

	srv := New("127.0.0.1:0", 0, Events{
		OnReceived: func(datagram []byte, _ net.Addr) {
			received <- datagram
		},
	})
	if err := srv.Listen(true); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer srv.Listen(false)

	cli := New("127.0.0.1:0", 0, Events{})
	if err := cli.Listen(true); err != nil {
		t.Fatalf("client listen: %v", err)
	}
	defer cli.Listen(false)

	if err := cli.SendTo([]byte("ping"), srv.Address); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case got := <-received:
		if string(got) != "ping" {
			t.Fatalf("expected 'ping', got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}
}

func TestListenIsIdempotent(t *testing.T) {
	h := New("127.0.0.1:0", 0, Events{})
	if err := h.Listen(true); err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := h.Listen(true); err != nil {
		t.Fatalf("second listen(true) should be a no-op: %v", err)
	}
	if err := h.Listen(false); err != nil {
		t.Fatalf("listen(false): %v", err)
	}
	if err := h.Listen(false); err != nil {
		t.Fatalf("second listen(false) should be a no-op: %v", err)
	}
}

func TestSendWithoutListeningReturnsError(t *testing.T) {
	h := New("127.0.0.1:0", 0, Events{})
	if err := h.SendTo([]byte("x"), "127.0.0.1:9"); err == nil {
		t.Fatal("expected error sending before listen")
	}
}
