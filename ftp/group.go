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

package ftp

import (
	"sync"

	"github.com/nabbar/netkit/concurrency"
)

// groupLimiters holds one concurrency.Limiter per ConnectionGroup name, so
// handlers sharing a group enforce one combined MaxConcurrentConnections
// cap, per spec §4.6's "connection group" option.
var (
	groupMu       sync.Mutex
	groupLimiters = make(map[string]*concurrency.Limiter)
)

func groupLimiter(name string, max int) *concurrency.Limiter {
	if name == "" || max <= 0 {
		return nil
	}

	groupMu.Lock()
	defer groupMu.Unlock()

	if l, ok := groupLimiters[name]; ok {
		return l
	}

	l := concurrency.NewLimiter(int64(max))
	groupLimiters[name] = l
	return l
}
