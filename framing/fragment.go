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

// Package framing implements the length-prefixed packet codec shared by the
// TCP client and server: a per-connection Fragment state machine that turns
// a stream of incoming bytes into fragment and whole-packet deliveries, plus
// the ConnectionInfo wrapper that drives it over a net.Conn (optionally
// upgraded to TLS), serializes writes, and manages an idle timeout.
package framing

import (
	"bytes"
	"encoding/binary"
)

// State is one step of the per-connection receive state machine.
type State uint8

const (
	AwaitingHeader State = iota
	AwaitingPayload
	Completed
)

// Header sizes in bytes: 32-bit length-prefix for ordinary sends, 64-bit for
// file transfers.
const (
	HeaderSize32 = 4
	HeaderSize64 = 8
)

// DefaultBufferSize is used when a ConnectionInfo is built without an
// explicit buffer size.
const DefaultBufferSize = 4096

// Delivery is one callback-worthy event produced by feeding bytes into a
// Fragment. Payload is always set (a fragment callback fires for every
// delivery regardless of size); Full is set only on the delivery that
// completes a packet requesting whole-packet accumulation.
type Delivery struct {
	Payload []byte
	Full    []byte
}

// Fragment is the mutable, single-object-per-connection carrier of one
// in-progress packet. It is recycled in place between packets: Feed reports
// leftover bytes rather than recursing into the next packet so the owner can
// decide the next header's size (readNextAsLong) and whole-packet policy
// (readNextNotBuffered) before parsing resumes.
type Fragment struct {
	State      State
	HeaderSize int
	header     [HeaderSize64]byte
	headerFill int

	FullLength          int64
	CumulativeReadCount int64
	CurrentOffset       int
	CurrentReadCount    int
	LengthFound         bool
	Completed           bool

	buf        []byte
	accumulate bool
	accumulator *bytes.Buffer

	Tag interface{}
}

// NewFragment allocates a Fragment with a bufferSize+8 receive buffer,
// starting in AwaitingHeader with a 32-bit header.
func NewFragment(bufferSize int) *Fragment {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	f := &Fragment{
		buf: make([]byte, bufferSize+8),
	}
	f.Recycle(HeaderSize32, false)
	return f
}

// Buffer returns the fragment's reusable receive buffer, sized
// bufferSize+8, for the caller's Read calls.
func (f *Fragment) Buffer() []byte {
	return f.buf
}

// Window returns the slice of the fragment's own buffer corresponding to the
// most recent delivery (CurrentOffset/CurrentReadCount), letting an
// OnFragment callback read the payload directly off the Fragment it's
// handed, without tracking the read buffer itself.
func (f *Fragment) Window() []byte {
	return f.buf[f.CurrentOffset : f.CurrentOffset+f.CurrentReadCount]
}

// Recycle resets the fragment in place for the next packet: headerSize is
// the size to apply to the upcoming header (the connection's
// readNextAsLong, captured by the caller at this exact moment), accumulate
// requests whole-packet delivery for the upcoming packet (readNextNotBuffered,
// consumed by the caller before calling Recycle).
func (f *Fragment) Recycle(headerSize int, accumulate bool) {
	f.State = AwaitingHeader
	f.HeaderSize = headerSize
	f.headerFill = 0
	f.FullLength = -1
	f.CumulativeReadCount = 0
	f.CurrentOffset = 0
	f.CurrentReadCount = 0
	f.LengthFound = false
	f.Completed = false
	f.accumulate = accumulate
	f.accumulator = nil
}

// Feed advances the state machine with freshly read bytes belonging to a
// single packet (the caller must not call Feed again on the same Fragment
// past a Completed transition without first Recycle-ing it). chunk must be
// a suffix of the fragment's own Buffer(); bufOffset is chunk's absolute
// starting index within that buffer, so CurrentOffset keeps indexing into
// Buffer() even when chunk is itself a leftover sub-slice from an earlier
// Feed call within the same read (spec §3: "the slice of data corresponding
// to the most recent delivery"). It returns the deliveries produced, any
// bytes left in chunk once the packet completed (for the caller to feed
// into a freshly recycled Fragment, passing the matching advanced
// bufOffset), and an error if the header decoded to a negative length or the
// payload overflowed its declared length.
func (f *Fragment) Feed(chunk []byte, bufOffset int) (events []Delivery, leftover []byte, err error) {
	off := 0

	for off < len(chunk) {
		switch f.State {
		case AwaitingHeader:
			need := f.HeaderSize - f.headerFill
			take := need
			if take > len(chunk)-off {
				take = len(chunk) - off
			}
			copy(f.header[f.headerFill:f.headerFill+take], chunk[off:off+take])
			f.headerFill += take
			off += take

			if f.headerFill < f.HeaderSize {
				return events, nil, nil
			}

			var length int64
			if f.HeaderSize == HeaderSize64 {
				length = int64(binary.BigEndian.Uint64(f.header[:HeaderSize64]))
			} else {
				length = int64(binary.BigEndian.Uint32(f.header[:HeaderSize32]))
			}
			if length < 0 {
				return events, nil, ErrorFramingNegativeLength.Error()
			}

			f.FullLength = length
			f.LengthFound = true
			f.State = AwaitingPayload
			if f.accumulate {
				f.accumulator = &bytes.Buffer{}
			}

		case AwaitingPayload:
			remaining := f.FullLength - f.CumulativeReadCount
			avail := int64(len(chunk) - off)
			take := remaining
			if take > avail {
				take = avail
			}
			if take < 0 {
				take = 0
			}

			window := chunk[off : off+int(take)]
			f.CurrentOffset = bufOffset + off
			f.CurrentReadCount = int(take)
			f.CumulativeReadCount += take
			off += int(take)

			if f.CumulativeReadCount > f.FullLength {
				return events, nil, ErrorFramingOverflow.Error()
			}

			d := Delivery{Payload: window}
			if f.accumulator != nil {
				f.accumulator.Write(window)
			}

			if f.CumulativeReadCount == f.FullLength {
				f.Completed = true
				f.State = Completed
				if f.accumulator != nil {
					d.Full = f.accumulator.Bytes()
				}
				events = append(events, d)
				return events, chunk[off:], nil
			}

			events = append(events, d)

		case Completed:
			return events, chunk[off:], nil
		}
	}

	return events, nil, nil
}
