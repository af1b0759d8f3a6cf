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
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	libftp "github.com/jlaffaye/ftp"

	"github.com/nabbar/netkit/concurrency"
	liberr "github.com/nabbar/netkit/errors"
	"github.com/nabbar/netkit/log"
)

// Handler is the request orchestrator for one FTP host, built against
// hostName + "/" + remotePath per spec §4.6. It owns the current target
// path, which Rename updates on success so chained operations see the new
// location.
type Handler struct {
	opts ConnectionOptions

	mu     sync.Mutex
	cli    *libftp.ServerConn
	target string

	limiter *concurrency.Limiter
	admitted bool
}

// New validates opts and returns a Handler targeting its Hostname; the
// underlying connection is established lazily on first use.
func New(opts ConnectionOptions) (*Handler, liberr.Error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Handler{
		opts:    opts,
		limiter: groupLimiter(opts.ConnectionGroup, opts.MaxConcurrentConnections),
	}, nil
}

// Target returns hostName + "/" + remotePath for the current target.
func (h *Handler) Target() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opts.Hostname + "/" + h.target
}

func (h *Handler) getClient() *libftp.ServerConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cli
}

func (h *Handler) setClient(cli *libftp.ServerConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cli = cli
}

// Connect dials and logs in if not already connected, or validates an
// existing connection with a NOOP and reconnects on failure.
func (h *Handler) Connect() liberr.Error {
	if cli := h.getClient(); cli != nil {
		if cli.NoOp() == nil {
			return nil
		}
		_ = cli.Quit()
	}

	h.mu.Lock()
	needsAdmit := h.limiter != nil && !h.admitted
	h.mu.Unlock()

	if needsAdmit {
		if e := h.limiter.Admit(context.Background()); e != nil {
			return ErrorFTPConnection.Error(e)
		}
		h.mu.Lock()
		h.admitted = true
		h.mu.Unlock()
	}

	cli, err := h.opts.dial()
	if err != nil {
		log.WithField("hostname", h.opts.Hostname).ErrorE(err)
		return err
	}

	if e := cli.NoOp(); e != nil {
		return ErrorFTPConnectionCheck.Error(e)
	}

	h.setClient(cli)
	return nil
}

// Check is an alias for Connect kept for readability at call sites that
// only care that a usable connection exists.
func (h *Handler) Check() liberr.Error {
	return h.Connect()
}

// Close sends QUIT if a connection is live and releases the connection
// group's admission slot, if any.
func (h *Handler) Close() {
	if cli := h.getClient(); cli != nil {
		_ = cli.Quit()
	}

	h.mu.Lock()
	admitted := h.admitted
	h.admitted = false
	h.mu.Unlock()

	if admitted && h.limiter != nil {
		h.limiter.Release()
	}
}

func (h *Handler) command(name, verb string, fct func(*libftp.ServerConn) error) liberr.Error {
	if err := h.Check(); err != nil {
		return err
	}
	if e := fct(h.getClient()); e != nil {
		return ErrorFTPCommand.Error(e, fmt.Errorf("command: %s = %s", name, verb))
	}
	return nil
}

// NameList issues an NLST command.
func (h *Handler) NameList(remotePath string) ([]string, liberr.Error) {
	if err := h.Check(); err != nil {
		return nil, err
	}
	r, e := h.getClient().NameList(remotePath)
	if e != nil {
		return nil, ErrorFTPCommand.Error(e, fmt.Errorf("command: NameList = NLST"))
	}
	return r, nil
}

// List issues a LIST/MLSD command.
func (h *Handler) List(remotePath string) ([]*libftp.Entry, liberr.Error) {
	if err := h.Check(); err != nil {
		return nil, err
	}
	r, e := h.getClient().List(remotePath)
	if e != nil {
		return nil, ErrorFTPCommand.Error(e, fmt.Errorf("command: List = MLSD/LIST"))
	}
	return r, nil
}

// ChangeDir issues a CWD command and tracks the new target.
func (h *Handler) ChangeDir(remotePath string) liberr.Error {
	if err := h.command("ChangeDir", "CWD", func(c *libftp.ServerConn) error {
		return c.ChangeDir(remotePath)
	}); err != nil {
		return err
	}
	h.mu.Lock()
	h.target = remotePath
	h.mu.Unlock()
	return nil
}

// CurrentDir issues a PWD command.
func (h *Handler) CurrentDir() (string, liberr.Error) {
	if err := h.Check(); err != nil {
		return "", err
	}
	r, e := h.getClient().CurrentDir()
	if e != nil {
		return "", ErrorFTPCommand.Error(e, fmt.Errorf("command: CurrentDir = PWD"))
	}
	return r, nil
}

// FileSize issues a SIZE command.
func (h *Handler) FileSize(remotePath string) (int64, liberr.Error) {
	if err := h.Check(); err != nil {
		return 0, err
	}
	r, e := h.getClient().FileSize(remotePath)
	if e != nil {
		return 0, ErrorFTPCommand.Error(e, fmt.Errorf("command: FileSize = SIZE"))
	}
	return r, nil
}

// GetTime issues an MDTM command.
func (h *Handler) GetTime(remotePath string) (time.Time, liberr.Error) {
	if err := h.Check(); err != nil {
		return time.Time{}, err
	}
	r, e := h.getClient().GetTime(remotePath)
	if e != nil {
		return time.Time{}, ErrorFTPCommand.Error(e, fmt.Errorf("command: GetTime = MDTM"))
	}
	return r, nil
}

// SetTime issues an MFMT/MDTM command.
func (h *Handler) SetTime(remotePath string, t time.Time) liberr.Error {
	return h.command("SetTime", "MFMT/MDTM", func(c *libftp.ServerConn) error {
		return c.SetTime(remotePath, t)
	})
}

// Rename issues RNFR/RNTO; on success the target updates to the directory
// of the prior target joined with the new name, per spec §4.6.
func (h *Handler) Rename(from, to string) liberr.Error {
	if err := h.command("Rename", "RNFR/RNTO", func(c *libftp.ServerConn) error {
		return c.Rename(from, to)
	}); err != nil {
		return err
	}
	h.mu.Lock()
	h.target = path.Join(path.Dir(h.target), to)
	h.mu.Unlock()
	return nil
}

// Delete issues a DELE command.
func (h *Handler) Delete(remotePath string) liberr.Error {
	return h.command("Delete", "DELE", func(c *libftp.ServerConn) error {
		return c.Delete(remotePath)
	})
}

// RemoveDirRecur deletes a non-empty folder recursively.
func (h *Handler) RemoveDirRecur(remotePath string) liberr.Error {
	return h.command("RemoveDirRecur", "DELE/RMD", func(c *libftp.ServerConn) error {
		return c.RemoveDirRecur(remotePath)
	})
}

// MakeDir issues an MKD command.
func (h *Handler) MakeDir(remotePath string) liberr.Error {
	return h.command("MakeDir", "MKD", func(c *libftp.ServerConn) error {
		return c.MakeDir(remotePath)
	})
}

// RemoveDir issues an RMD command.
func (h *Handler) RemoveDir(remotePath string) liberr.Error {
	return h.command("RemoveDir", "RMD", func(c *libftp.ServerConn) error {
		return c.RemoveDir(remotePath)
	})
}

// Walk prepares a directory walker rooted at root.
func (h *Handler) Walk(root string) (*libftp.Walker, liberr.Error) {
	if err := h.Check(); err != nil {
		return nil, err
	}
	return h.getClient().Walk(root), nil
}
