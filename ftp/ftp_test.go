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
	"bytes"
	"io"
	"testing"
	"time"
)

func TestValidateRequiresHostname(t *testing.T) {
	opts := ConnectionOptions{Login: "user"}
	if err := opts.Validate(); err == nil {
		t.Fatal("expected validation error for missing hostname")
	}
}

func TestValidateAcceptsHostPort(t *testing.T) {
	opts := ConnectionOptions{Hostname: "ftp.example.com:21"}
	if err := opts.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestMergeOverridesWinOverDefaults(t *testing.T) {
	base := ConnectionOptions{
		Hostname:    "default.example.com:21",
		ConnTimeout: 10 * time.Second,
		BufferSize:  4096,
	}

	override := &ConnectionOptions{
		Hostname:   "override.example.com:21",
		BufferSize: 8192,
	}

	merged := base.Merge(override)

	if merged.Hostname != "override.example.com:21" {
		t.Fatalf("expected override hostname, got %q", merged.Hostname)
	}
	if merged.BufferSize != 8192 {
		t.Fatalf("expected override buffer size, got %d", merged.BufferSize)
	}
	if merged.ConnTimeout != 10*time.Second {
		t.Fatalf("expected default ConnTimeout to survive merge, got %v", merged.ConnTimeout)
	}
}

func TestMergeNilOverrideReturnsBase(t *testing.T) {
	base := ConnectionOptions{Hostname: "default.example.com:21"}
	merged := base.Merge(nil)
	if merged.Hostname != base.Hostname {
		t.Fatalf("expected base unchanged, got %q", merged.Hostname)
	}
}

func TestStreamSizeFromBytesReader(t *testing.T) {
	r := bytes.NewReader([]byte("hello world"))
	size, ok := streamSize(r)
	if !ok {
		t.Fatal("expected bytes.Reader to report its length")
	}
	if size != int64(len("hello world")) {
		t.Fatalf("expected 11, got %d", size)
	}
}

func TestStreamSizeUnknownForPlainReader(t *testing.T) {
	r := struct{ io.Reader }{bytes.NewBufferString("x")}
	if _, ok := streamSize(r); ok {
		t.Fatal("expected a plain io.Reader to report an unknown size")
	}
}

func TestGroupLimiterSharedAcrossHandlers(t *testing.T) {
	l1 := groupLimiter("shared-group-test", 2)
	l2 := groupLimiter("shared-group-test", 2)
	if l1 != l2 {
		t.Fatal("expected the same limiter instance for the same group name")
	}
}

func TestGroupLimiterNilWhenUnconfigured(t *testing.T) {
	if l := groupLimiter("", 2); l != nil {
		t.Fatal("expected nil limiter when no group name is set")
	}
	if l := groupLimiter("some-group", 0); l != nil {
		t.Fatal("expected nil limiter when max is 0")
	}
}
