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

// Fields is a flat map of structured attributes attached to a log line, the
// same shape the connection/transfer code fills with conn, remote, bytes,
// packet and similar keys.
type Fields map[string]interface{}

// Clone returns a shallow copy, letting a caller derive a new Entry's fields
// from an existing one without mutating the source map.
func (f Fields) Clone() Fields {
	if f == nil {
		return Fields{}
	}
	res := make(Fields, len(f))
	for k, v := range f {
		res[k] = v
	}
	return res
}

// With returns a clone of f with key/value merged in.
func (f Fields) With(key string, value interface{}) Fields {
	res := f.Clone()
	res[key] = value
	return res
}
