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

package concurrency

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter caps the number of concurrently admitted clients or workers, the
// way nabbar/golib/semaphore wraps golang.org/x/sync/semaphore.Weighted with
// a simple admit/release vocabulary instead of acquire/release weights.
type Limiter struct {
	sem     *semaphore.Weighted
	max     int64
	current atomic.Int64
}

// NewLimiter builds a Limiter admitting at most max concurrent holders. A
// max of 0 or less means unlimited: TryAdmit always succeeds and Current is
// tracked for observability only.
func NewLimiter(max int64) *Limiter {
	l := &Limiter{max: max}
	if max > 0 {
		l.sem = semaphore.NewWeighted(max)
	}
	return l
}

// TryAdmit attempts to reserve one slot without blocking, reporting whether
// a slot was reserved (false when the cap is already reached). The spec's accept handler uses this to decide
// between registering a connection and firing maxClientsReached.
func (l *Limiter) TryAdmit() bool {
	if l.sem == nil {
		l.current.Add(1)
		return true
	}
	if l.sem.TryAcquire(1) {
		l.current.Add(1)
		return true
	}
	return false
}

// Admit blocks until a slot is available or ctx is done.
func (l *Limiter) Admit(ctx context.Context) error {
	if l.sem == nil {
		l.current.Add(1)
		return nil
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	l.current.Add(1)
	return nil
}

// Release returns one slot to the limiter. Calling Release without a prior
// successful TryAdmit/Admit unbalances the count the same way misusing a
// raw semaphore would; callers are expected to pair the two.
func (l *Limiter) Release() {
	l.current.Add(-1)
	if l.sem != nil {
		l.sem.Release(1)
	}
}

// Current reports the number of currently admitted holders.
func (l *Limiter) Current() int64 {
	return l.current.Load()
}

// Max reports the configured cap, or 0 for unlimited.
func (l *Limiter) Max() int64 {
	return l.max
}

// AtCapacity reports whether Current has reached Max (always false when
// unlimited).
func (l *Limiter) AtCapacity() bool {
	if l.max <= 0 {
		return false
	}
	return l.Current() >= l.max
}
