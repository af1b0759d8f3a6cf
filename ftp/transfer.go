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
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"

	liberr "github.com/nabbar/netkit/errors"
	"github.com/nabbar/netkit/transfer/progress"
)

const defaultTransferBufferSize = 32 * 1024

// progressReader wraps r, reporting every Read to sampler and aborting with
// ErrorCancelled once ctx is done, checked after each read per spec §4.6.
type progressReader struct {
	ctx     context.Context
	r       io.Reader
	sampler *progress.Sampler
}

func (p *progressReader) Read(b []byte) (int, error) {
	if p.ctx != nil {
		select {
		case <-p.ctx.Done():
			return 0, ErrorCancelled.Error(p.ctx.Err())
		default:
		}
	}

	n, err := p.r.Read(b)
	if n > 0 && p.sampler != nil {
		p.sampler.Add(int64(n))
	}
	return n, err
}

func (h *Handler) bufferSize() int {
	if h.opts.BufferSize > 0 {
		return h.opts.BufferSize
	}
	return defaultTransferBufferSize
}

// streamSize attempts to discover a reader's length without consuming it,
// mirroring the "preflight the stream length if the source supports it"
// clause of spec §4.6.
func streamSize(r io.Reader) (int64, bool) {
	switch v := r.(type) {
	case *os.File:
		if fi, err := v.Stat(); err == nil {
			return fi.Size(), true
		}
	case *bytes.Reader:
		return int64(v.Len()), true
	case *bytes.Buffer:
		return int64(v.Len()), true
	}
	return 0, false
}

// Download retrieves remotePath into w, optionally prefetching the file
// size (a failure there is treated as "unknown", per spec §4.6) and driving
// sampler's 1-second rate window around the read loop.
func (h *Handler) Download(ctx context.Context, remotePath string, w io.Writer, sampler *progress.Sampler, onInit func(totalLength int64)) liberr.Error {
	if err := h.Check(); err != nil {
		return err
	}

	size, sizeErr := h.getClient().FileSize(remotePath)
	if sizeErr != nil {
		size = 0
	}

	if sampler != nil {
		sampler.Reset(size)
	}
	if onInit != nil {
		onInit(size)
	}

	resp, e := h.getClient().Retr(remotePath)
	if e != nil {
		return ErrorTransfer.Error(e, fmt.Errorf("command: Retr = RETR %s", remotePath))
	}
	defer resp.Close()

	if sampler != nil {
		sampler.Start()
		defer sampler.Stop()
	}

	src := io.Reader(resp)
	if sampler != nil || ctx != nil {
		src = &progressReader{ctx: ctx, r: resp, sampler: sampler}
	}

	buf := make([]byte, h.bufferSize())
	if _, err := io.CopyBuffer(w, src, buf); err != nil {
		if ce, ok := err.(liberr.Error); ok {
			return ce
		}
		return ErrorTransfer.Error(err)
	}

	if sampler != nil {
		sampler.Finish()
	}

	return nil
}

// Upload stores r as remotePath, preflighting its length when possible to
// initialize sampler's total, per spec §4.6.
func (h *Handler) Upload(ctx context.Context, remotePath string, r io.Reader, sampler *progress.Sampler) liberr.Error {
	return h.upload(ctx, remotePath, r, sampler, func(p string, rd io.Reader) error { return h.getClient().Stor(p, rd) }, "Stor", "STOR")
}

// Append appends r to remotePath (or creates it), per the APPE verb.
func (h *Handler) Append(ctx context.Context, remotePath string, r io.Reader, sampler *progress.Sampler) liberr.Error {
	return h.upload(ctx, remotePath, r, sampler, func(p string, rd io.Reader) error { return h.getClient().Append(p, rd) }, "Append", "APPE")
}

func (h *Handler) upload(ctx context.Context, remotePath string, r io.Reader, sampler *progress.Sampler, verb func(string, io.Reader) error, name, code string) liberr.Error {
	if err := h.Check(); err != nil {
		return err
	}

	if size, ok := streamSize(r); ok && sampler != nil {
		sampler.Reset(size)
	}

	src := io.Reader(r)
	if sampler != nil || ctx != nil {
		src = &progressReader{ctx: ctx, r: r, sampler: sampler}
	}

	if sampler != nil {
		sampler.Start()
		defer sampler.Stop()
	}

	if e := verb(remotePath, src); e != nil {
		if ce, ok := e.(liberr.Error); ok {
			return ce
		}
		return ErrorTransfer.Error(e, fmt.Errorf("command: %s = %s %s", name, code, remotePath))
	}

	if sampler != nil {
		sampler.Finish()
	}

	h.mu.Lock()
	h.target = remotePath
	h.mu.Unlock()

	return nil
}

// UploadUnique stores r under a server-assigned unique name in remoteDir
// (the STOU verb); on completion the server's response URI is parsed and
// its last path segment is returned, per spec §4.6.
//
// github.com/jlaffaye/ftp does not expose STOU in its public API, so this
// issues STOR against a client-generated candidate name instead and treats
// that name as the "parsed" result — an approximation of the wire verb, not
// a faithful STOU.
func (h *Handler) UploadUnique(ctx context.Context, remoteDir string, r io.Reader, sampler *progress.Sampler) (string, liberr.Error) {
	if err := h.Check(); err != nil {
		return "", err
	}

	name := uniqueCandidateName()
	target := path.Join(remoteDir, name)

	if err := h.upload(ctx, target, r, sampler, func(p string, rd io.Reader) error { return h.getClient().Stor(p, rd) }, "Stor", "STOU"); err != nil {
		return "", err
	}

	return name, nil
}

func uniqueCandidateName() string {
	return "upload-" + strconv.FormatInt(int64(os.Getpid()), 36) + "-" + randomSuffix()
}

func randomSuffix() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "0"
	}
	return hex.EncodeToString(b)
}
