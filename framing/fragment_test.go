package framing

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func encode32(payload []byte) []byte {
	b := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(b, uint32(len(payload)))
	copy(b[4:], payload)
	return b
}

func TestHeaderSpanningRead(t *testing.T) {
	f := NewFragment(64)
	f.Recycle(HeaderSize32, true)

	frame := encode32([]byte("ABCD"))

	// split the 4-byte header 2+2 across two feeds.
	events1, leftover1, err := f.Feed(frame[:2], 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events1) != 0 || leftover1 != nil {
		t.Fatalf("expected no deliveries while header is incomplete, got %v / %v", events1, leftover1)
	}

	events2, leftover2, err := f.Feed(frame[2:], 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(leftover2) != 0 {
		t.Fatalf("expected no leftover bytes, got %d", len(leftover2))
	}
	if len(events2) != 1 || !bytes.Equal(events2[0].Full, []byte("ABCD")) {
		t.Fatalf("expected one completed delivery of ABCD, got %+v", events2)
	}
}

func TestTwoPacketsInOneRead(t *testing.T) {
	f := NewFragment(64)
	f.Recycle(HeaderSize32, true)

	wire := append(encode32([]byte("AAAA")), encode32([]byte("BBBB"))...)
	// a real receive loop reads directly into the fragment's own buffer;
	// copy the wire bytes there instead of feeding an independent slice, so
	// Window()/CurrentOffset are checked against the buffer they actually
	// index into.
	n := copy(f.Buffer(), wire)
	chunk := f.Buffer()[:n]

	var fulls [][]byte
	var windows [][]byte
	base := 0
	for len(chunk) > 0 {
		events, leftover, err := f.Feed(chunk, base)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, e := range events {
			windows = append(windows, append([]byte(nil), f.Window()...))
			if e.Full != nil {
				fulls = append(fulls, append([]byte(nil), e.Full...))
			}
		}
		if f.Completed {
			f.Recycle(HeaderSize32, true)
		}
		base += len(chunk) - len(leftover)
		chunk = leftover
	}

	if len(fulls) != 2 || string(fulls[0]) != "AAAA" || string(fulls[1]) != "BBBB" {
		t.Fatalf("expected [AAAA BBBB], got %v", fulls)
	}
	if len(windows) != 2 || string(windows[0]) != "AAAA" || string(windows[1]) != "BBBB" {
		t.Fatalf("expected Window() to report [AAAA BBBB] against the fragment's own buffer for the second packet too, got %v", windows)
	}
}

func TestFragmentEventsCoverFullPayload(t *testing.T) {
	f := NewFragment(4) // tiny buffer forces multiple feeds in a real reader; here we just split the payload manually
	f.Recycle(HeaderSize32, false)

	payload := []byte("hello world")
	frame := encode32(payload)

	var reassembled []byte
	var sum int
	chunk := frame
	base := 0
	for len(chunk) > 0 {
		// feed 3 bytes at a time to exercise partial payload windows
		step := 3
		if step > len(chunk) {
			step = len(chunk)
		}
		events, leftover, err := f.Feed(chunk[:step], base)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, e := range events {
			reassembled = append(reassembled, e.Payload...)
			sum += len(e.Payload)
		}
		if f.Completed {
			f.Recycle(HeaderSize32, false)
		}
		base += step - len(leftover)
		chunk = append(leftover, chunk[step:]...)
	}

	if !bytes.Equal(reassembled, payload) {
		t.Fatalf("expected reassembled payload %q, got %q", payload, reassembled)
	}
	if int64(sum) != int64(len(payload)) {
		t.Fatalf("expected sum(currentReadCount) == fullLength, got %d != %d", sum, len(payload))
	}
}

func TestNegativeLengthIsFatal(t *testing.T) {
	f := NewFragment(64)
	f.Recycle(HeaderSize32, false)

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, 0x80000000) // top bit set, decodes negative as int64 via our uint32->int64 it won't be negative actually

	// Force an actual negative by crafting the 64-bit path instead, where a
	// full-width value's sign bit is observable once cast to int64.
	f.Recycle(HeaderSize64, false)
	big := make([]byte, 8)
	binary.BigEndian.PutUint64(big, 1<<63)

	_, _, err := f.Feed(big, 0)
	if err == nil {
		t.Fatal("expected negative-length header to be rejected")
	}
}

func TestRoundTripEncodeDecode(t *testing.T) {
	for _, oneFrame := range []bool{true, false} {
		payload := []byte("round trip payload data")
		var wire []byte

		if oneFrame {
			wire = encode32(payload)
		} else {
			header := make([]byte, 4)
			binary.BigEndian.PutUint32(header, uint32(len(payload)))
			wire = append(append([]byte{}, header...), payload...)
		}

		f := NewFragment(64)
		f.Recycle(HeaderSize32, true)

		events, _, err := f.Feed(wire, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(events) != 1 || !bytes.Equal(events[0].Full, payload) {
			t.Fatalf("round trip failed for oneFrame=%v: %+v", oneFrame, events)
		}
	}
}
