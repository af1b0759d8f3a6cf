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

// Package errors provides the CodeError classification and Error wrapping used
// across this module, trimmed from nabbar/golib/errors down to what the
// framing, socket, ftp and transfer packages actually exercise.
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"strings"
)

// Error is implemented by values returned from CodeError.Error/ErrorParent. It
// behaves like a standard error while keeping its numeric code, its parent
// chain, and the call site it was created at.
type Error interface {
	error

	IsCode(code CodeError) bool
	GetCode() CodeError

	Add(parent ...error)
	HasParent() bool
	GetParent() []error

	Is(e error) bool
	Unwrap() error

	StringError() string
	Trace() string
}

type ers struct {
	code   CodeError
	msg    string
	frame  runtime.Frame
	parent []error
}

// New builds an Error carrying code, msg and any parent errors.
func New(code uint16, msg string, parent ...error) Error {
	return &ers{
		code:   CodeError(code),
		msg:    msg,
		frame:  getFrame(),
		parent: parent,
	}
}

// Newf is New with a formatted message.
func Newf(code uint16, format string, a ...interface{}) Error {
	return New(code, fmt.Sprintf(format, a...))
}

func (e *ers) IsCode(code CodeError) bool {
	return e != nil && e.code == code
}

func (e *ers) GetCode() CodeError {
	if e == nil {
		return UnknownError
	}
	return e.code
}

func (e *ers) Add(parent ...error) {
	for _, p := range parent {
		if p != nil {
			e.parent = append(e.parent, p)
		}
	}
}

func (e *ers) HasParent() bool {
	return e != nil && len(e.parent) > 0
}

func (e *ers) GetParent() []error {
	if e == nil {
		return nil
	}
	return e.parent
}

func (e *ers) Unwrap() error {
	if e == nil || len(e.parent) == 0 {
		return nil
	}
	return e.parent[0]
}

// Is supports errors.Is against either another *ers with the same code, or a
// plain sentinel that appears somewhere in the parent chain.
func (e *ers) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}

	if o, ok := target.(*ers); ok {
		return o.code == e.code
	}

	for _, p := range e.parent {
		if p == target {
			return true
		}
	}

	return false
}

func (e *ers) Error() string {
	return e.StringError()
}

func (e *ers) StringError() string {
	if e == nil {
		return ""
	}

	msg := e.msg
	if msg == "" {
		msg = e.code.Message()
	}

	parts := make([]string, 0, 1+len(e.parent))
	parts = append(parts, fmt.Sprintf("[%d] %s", e.code.Uint16(), msg))

	for _, p := range e.parent {
		if p != nil {
			parts = append(parts, p.Error())
		}
	}

	return strings.Join(parts, ": ")
}

// Trace renders the call site the error was created at, for debug logging.
func (e *ers) Trace() string {
	if e == nil || e.frame.Function == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d %s", e.frame.File, e.frame.Line, e.frame.Function)
}

// Get unwraps target into an Error if target is, or wraps, one.
func Get(target error) Error {
	if target == nil {
		return nil
	}
	var e Error
	if stderrors.As(target, &e) {
		return e
	}
	return nil
}

// Has reports whether target is, or contains in its parent chain, an Error
// with the given code.
func Has(target error, code CodeError) bool {
	e := Get(target)
	if e == nil {
		return false
	}
	if e.IsCode(code) {
		return true
	}
	for _, p := range e.GetParent() {
		if Has(p, code) {
			return true
		}
	}
	return false
}

// IfError returns a non-nil Error built from code/msg only when err is non-nil.
func IfError(err error, code uint16, msg string) Error {
	if err == nil {
		return nil
	}
	return New(code, msg, err)
}
