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
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	liberr "github.com/nabbar/netkit/errors"
)

// InstanceInfo accumulates one peer's forwarded argument vector as it
// arrives, message by message, per spec §4.8/§3.
//
// expectedArgCount is read once from the connection's first 4-byte message
// and stored; the original implementation instead discarded this value,
// leaving expectedArgCount permanently at -1 so the assembled-arguments event
// never fired. This type implements the corrected behavior: store the count once,
// then accept exactly that many subsequent string messages.
type InstanceInfo struct {
	expectedArgCount int
	receivedArgs     []string
}

func newInstanceInfo() *InstanceInfo {
	return &InstanceInfo{expectedArgCount: -1}
}

// Complete reports whether every expected argument string has arrived.
func (i *InstanceInfo) Complete() bool {
	return i.expectedArgCount >= 0 && len(i.receivedArgs) >= i.expectedArgCount
}

// Args returns the arguments accumulated so far.
func (i *InstanceInfo) Args() []string {
	return append([]string(nil), i.receivedArgs...)
}

// feed applies one received message to the InstanceInfo's state machine: the
// first message sets expectedArgCount, every message after that up to the
// count is decoded as one UTF-16LE argument string.
func (i *InstanceInfo) feed(payload []byte) liberr.Error {
	if i.expectedArgCount == -1 {
		if len(payload) != 4 {
			return ErrorDecode.Error(fmt.Errorf("expected a 4-byte argument count, got %d bytes", len(payload)))
		}
		i.expectedArgCount = int(binary.LittleEndian.Uint32(payload))
		i.receivedArgs = make([]string, 0, i.expectedArgCount)
		return nil
	}

	if i.Complete() {
		return ErrorDecode.Error(fmt.Errorf("received more than the announced %d arguments", i.expectedArgCount))
	}

	i.receivedArgs = append(i.receivedArgs, decodeUTF16LE(payload))
	return nil
}

// encodeArgCount renders n as the wire's 4-byte little-endian count payload,
// matching BitConverter.ToInt32's native-endian (little-endian) encoding of
// the argument count; only this count payload is little-endian, the
// surrounding length-prefix headers stay 32-bit big-endian per §6.
func encodeArgCount(n int) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(n))
	return b
}

// encodeUTF16LE renders s as little-endian UTF-16 code units, the wire
// format spec §4.8 specifies for forwarded argument strings.
func encodeUTF16LE(s string) []byte {
	units := utf16.Encode([]rune(s))
	b := make([]byte, len(units)*2)
	for idx, u := range units {
		binary.LittleEndian.PutUint16(b[idx*2:], u)
	}
	return b
}

func decodeUTF16LE(b []byte) string {
	units := make([]uint16, len(b)/2)
	for idx := range units {
		units[idx] = binary.LittleEndian.Uint16(b[idx*2:])
	}
	return string(utf16.Decode(units))
}
