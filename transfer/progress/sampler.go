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

// Package progress owns the 1-second rate sampler and percent-complete
// accounting shared by FTP upload/download transfers, per spec §4.7.
// Grounded on the callback vocabulary of nabbar/golib/file/progress
// (RegisterFctIncrement/RegisterFctReset/RegisterFctEOF) and the
// time-windowed rate accounting of file/bandwidth, simplified to the exact
// counters the spec names instead of wrapping io.Reader/io.Writer/io.Seeker.
package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// Sampler tracks a transfer's total length, cumulative byte count, and a
// 1-second bytes-per-second rate.
type Sampler struct {
	totalLength    int64
	currentCount   int64
	bytesPerSecond int64

	mu      sync.Mutex
	tick    int64
	ticker  *time.Ticker
	stop    chan struct{}
	onEOF   func()
	onReset func(total, current int64)
	onRate  func(bytesPerSecond int64)
}

// New builds a Sampler; totalLength may be 0 to mean "unknown" (percent()
// then always reports -1).
func New(totalLength int64) *Sampler {
	return &Sampler{totalLength: totalLength}
}

// RegisterFctEOF registers the callback fired when Finish is called.
func (s *Sampler) RegisterFctEOF(fct func()) { s.onEOF = fct }

// RegisterFctReset registers the callback fired when Reset changes the
// known total.
func (s *Sampler) RegisterFctReset(fct func(total, current int64)) { s.onReset = fct }

// RegisterFctRateUpdated registers the callback fired on each 1-second tick.
func (s *Sampler) RegisterFctRateUpdated(fct func(bytesPerSecond int64)) { s.onRate = fct }

// Reset sets a new total length and zeroes the cumulative counter, firing
// onReset.
func (s *Sampler) Reset(total int64) {
	atomic.StoreInt64(&s.totalLength, total)
	atomic.StoreInt64(&s.currentCount, 0)
	if s.onReset != nil {
		s.onReset(total, 0)
	}
}

// TotalLength returns the configured total, or 0 if unknown.
func (s *Sampler) TotalLength() int64 { return atomic.LoadInt64(&s.totalLength) }

// CurrentCount returns the cumulative bytes transferred so far.
func (s *Sampler) CurrentCount() int64 { return atomic.LoadInt64(&s.currentCount) }

// BytesPerSecond returns the most recently sampled rate.
func (s *Sampler) BytesPerSecond() int64 { return atomic.LoadInt64(&s.bytesPerSecond) }

// Percent returns -1 if the total is unknown, else floor(current/total*100).
func (s *Sampler) Percent() int {
	total := atomic.LoadInt64(&s.totalLength)
	if total <= 0 {
		return -1
	}
	current := atomic.LoadInt64(&s.currentCount)
	return int((current * 100) / total)
}

// Start arms the 1-second rate-sampling timer. Call before the first read.
func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(time.Second)
	s.stop = make(chan struct{})

	go s.sampleLoop(s.ticker, s.stop)
}

func (s *Sampler) sampleLoop(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-ticker.C:
			n := atomic.SwapInt64(&s.tick, 0)
			atomic.StoreInt64(&s.bytesPerSecond, n)
			if s.onRate != nil {
				s.onRate(n)
			}
		case <-stop:
			return
		}
	}
}

// Stop disarms the rate-sampling timer. Call in a finally block around the
// transfer loop.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.ticker = nil
}

// Add increments the cumulative counter and the current second's tick
// counter by n bytes, as read/write calls in a transfer loop report progress.
func (s *Sampler) Add(n int64) {
	atomic.AddInt64(&s.currentCount, n)
	atomic.AddInt64(&s.tick, n)
}

// Finish fires the registered EOF callback.
func (s *Sampler) Finish() {
	if s.onEOF != nil {
		s.onEOF()
	}
}
