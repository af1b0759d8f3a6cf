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

package singleinstance

import (
	"math/rand"
	"sync"
	"testing"
	"time"
)

func freeishPort() int {
	return 20000 + rand.Intn(20000)
}

func TestArgsLengthRoundTrip(t *testing.T) {
	info := newInstanceInfo()

	if err := info.feed(encodeArgCount(2)); err != nil {
		t.Fatalf("unexpected error storing count: %v", err)
	}
	if info.Complete() {
		t.Fatal("expected incomplete before any argument arrives")
	}

	if err := info.feed(encodeUTF16LE("first")); err != nil {
		t.Fatalf("unexpected error decoding first arg: %v", err)
	}
	if info.Complete() {
		t.Fatal("expected incomplete after only one of two arguments")
	}

	if err := info.feed(encodeUTF16LE("second")); err != nil {
		t.Fatalf("unexpected error decoding second arg: %v", err)
	}
	if !info.Complete() {
		t.Fatal("expected complete after both arguments arrived")
	}

	got := info.Args()
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("unexpected args: %#v", got)
	}
}

func TestArgsLengthZeroArgsIsImmediatelyComplete(t *testing.T) {
	info := newInstanceInfo()
	if err := info.feed(encodeArgCount(0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !info.Complete() {
		t.Fatal("expected complete immediately when the peer forwards zero arguments")
	}
}

func TestUTF16LERoundTrip(t *testing.T) {
	for _, s := range []string{"", "plain", "héllo wörld", "--flag=value"} {
		got := decodeUTF16LE(encodeUTF16LE(s))
		if got != s {
			t.Fatalf("round trip mismatch: %q != %q", s, got)
		}
	}
}

func TestFirstInstanceBecomesSingleAndReceivesArgs(t *testing.T) {
	port := freeishPort()

	var mu sync.Mutex
	var received []string
	done := make(chan struct{}, 1)

	first, err := New(port, 200*time.Millisecond, time.Second, nil, Events{
		OnArgumentsReceived: func(args []string) {
			mu.Lock()
			received = args
			mu.Unlock()
			done <- struct{}{}
		},
	})
	if err != nil {
		t.Fatalf("unexpected error constructing first coordinator: %v", err)
	}
	defer first.Dispose()

	if !first.IsSingle() {
		t.Fatal("expected the first coordinator on this port to be single")
	}

	second, err := New(port, 500*time.Millisecond, time.Second, []string{"--a", "--b"}, Events{})
	if err != nil {
		t.Fatalf("unexpected error constructing second coordinator: %v", err)
	}
	defer second.Dispose()

	if second.IsSingle() {
		t.Fatal("expected the second coordinator on the same port to not be single")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the single instance to receive forwarded arguments")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 || received[0] != "--a" || received[1] != "--b" {
		t.Fatalf("unexpected forwarded args: %#v", received)
	}
}

func TestNewIsSingleWhenNothingListens(t *testing.T) {
	c, err := New(freeishPort(), 150*time.Millisecond, time.Second, nil, Events{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Dispose()

	if !c.IsSingle() {
		t.Fatal("expected single when no peer is listening on the probed port")
	}
}

