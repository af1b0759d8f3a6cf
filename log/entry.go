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

package log

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is the package-wide structured logger. Unset, it discards nothing:
// logrus's default output (stderr, text formatter) applies until SetOutput,
// SetJSON or SetLevel is called.
type Logger struct {
	base *logrus.Logger
	mu   sync.RWMutex
}

var std = New()

// New builds a standalone Logger with logrus defaults.
func New() *Logger {
	return &Logger{base: logrus.New()}
}

// Default returns the package-wide Logger instance.
func Default() *Logger { return std }

// SetLevel adjusts the minimum level emitted.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.base.SetLevel(level.logrus())
}

// SetJSON switches the output formatter between text (default) and JSON.
func (l *Logger) SetJSON(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if enabled {
		l.base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// SetOutput redirects where log lines are written; defaults to os.Stderr.
func (l *Logger) SetOutput(w *os.File) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.base.SetOutput(w)
}

// Entry is a single structured log line in progress, mirroring the
// teacher's logger/entry package trimmed to field attachment and the level
// methods this module actually calls.
type Entry struct {
	l      *Logger
	fields Fields
}

// WithFields starts an Entry carrying a copy of fields; later changes to the
// caller's map do not affect the Entry.
func (l *Logger) WithFields(fields Fields) *Entry {
	return &Entry{l: l, fields: fields.Clone()}
}

// WithField starts an Entry carrying a single field.
func (l *Logger) WithField(key string, value interface{}) *Entry {
	return l.WithFields(Fields{key: value})
}

// With returns a new Entry with key/value merged into the current fields.
func (e *Entry) With(key string, value interface{}) *Entry {
	return &Entry{l: e.l, fields: e.fields.With(key, value)}
}

func (e *Entry) entry() *logrus.Entry {
	e.l.mu.RLock()
	defer e.l.mu.RUnlock()
	return e.l.base.WithFields(logrus.Fields(e.fields))
}

func (e *Entry) Debug(msg string)  { e.entry().Debug(msg) }
func (e *Entry) Info(msg string)   { e.entry().Info(msg) }
func (e *Entry) Warn(msg string)   { e.entry().Warn(msg) }
func (e *Entry) Error(msg string)  { e.entry().Error(msg) }
func (e *Entry) ErrorE(err error) {
	if err == nil {
		return
	}
	e.With("error", err.Error()).Error(err.Error())
}

// Debug/Info/Warn/Error log through the package-wide Logger with no fields.
func Debug(msg string) { std.WithFields(nil).Debug(msg) }
func Info(msg string)  { std.WithFields(nil).Info(msg) }
func Warn(msg string)  { std.WithFields(nil).Warn(msg) }
func Error(msg string) { std.WithFields(nil).Error(msg) }

// WithFields/WithField start an Entry on the package-wide Logger.
func WithFields(fields Fields) *Entry        { return std.WithFields(fields) }
func WithField(key string, v interface{}) *Entry { return std.WithField(key, v) }
