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

package progress

import (
	"testing"
	"time"
)

func TestPercentUnknownTotal(t *testing.T) {
	s := New(0)
	if p := s.Percent(); p != -1 {
		t.Fatalf("expected -1 for unknown total, got %d", p)
	}
}

func TestPercentMonotonic(t *testing.T) {
	s := New(100)
	s.Add(50)
	if p := s.Percent(); p != 50 {
		t.Fatalf("expected 50, got %d", p)
	}
	s.Add(50)
	if p := s.Percent(); p != 100 {
		t.Fatalf("expected 100, got %d", p)
	}
}

func TestRateSamplerTicksAndResets(t *testing.T) {
	s := New(0)

	rates := make(chan int64, 4)
	s.RegisterFctRateUpdated(func(bps int64) { rates <- bps })

	s.Start()
	defer s.Stop()

	s.Add(1024)

	select {
	case r := <-rates:
		if r != 1024 {
			t.Fatalf("expected 1024 bytes in the first tick, got %d", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a rate tick")
	}

	select {
	case r := <-rates:
		if r != 0 {
			t.Fatalf("expected the counter to reset to 0 on the next tick, got %d", r)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the reset tick")
	}
}

func TestFinishFiresEOFCallback(t *testing.T) {
	s := New(10)
	fired := false
	s.RegisterFctEOF(func() { fired = true })
	s.Finish()
	if !fired {
		t.Fatal("expected EOF callback to fire")
	}
}
