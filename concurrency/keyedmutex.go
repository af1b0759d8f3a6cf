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

// Package concurrency holds the process-local synchronization primitives
// shared by the TCP/UDP/FTP packages: a reference-counted per-key mutex used
// to serialize writes on a connection, and a weighted-semaphore limiter used
// to cap concurrent clients and workers.
package concurrency

import "sync"

type keyEntry struct {
	sem      chan struct{}
	waiters  int
}

// KeyedMutex maps an arbitrary comparable key to its own binary semaphore,
// creating the entry on first use and destroying it once nothing refers to
// it anymore, so unused keys carry no permanent memory.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[interface{}]*keyEntry
}

// NewKeyedMutex builds an empty KeyedMutex ready to use.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		entries: make(map[interface{}]*keyEntry),
	}
}

// Lock acquires exclusive access for key, blocking until available. FIFO
// ordering among contenders on the same key is inherited from the channel
// implementation underneath the entry's semaphore.
func (k *KeyedMutex) Lock(key interface{}) {
	e := k.ref(key)
	e.sem <- struct{}{}
}

// Unlock releases exclusive access for key. Calling Unlock for a key that was
// never locked (or already unlocked by someone else) is a silent no-op,
// mirroring the spec's misuse guarantee.
func (k *KeyedMutex) Unlock(key interface{}) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		k.mu.Unlock()
		return
	}
	k.mu.Unlock()

	select {
	case <-e.sem:
	default:
		return
	}

	k.deref(key)
}

// TryLock attempts to acquire key without blocking, reporting success.
func (k *KeyedMutex) TryLock(key interface{}) bool {
	e := k.ref(key)
	select {
	case e.sem <- struct{}{}:
		return true
	default:
		k.deref(key)
		return false
	}
}

func (k *KeyedMutex) ref(key interface{}) *keyEntry {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		e = &keyEntry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.waiters++
	return e
}

func (k *KeyedMutex) deref(key interface{}) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		return
	}
	e.waiters--
	if e.waiters <= 0 {
		delete(k.entries, key)
	}
}

// Len reports the number of keys currently tracked, for tests asserting that
// released keys are reclaimed.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
