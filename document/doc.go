// The MIT License (MIT)
//
// Copyright (c) 2024 the project-palleon authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package document implements the canonical, self-describing binary document
// format spoken on every wire in the core: plugin init, dependency payloads,
// frame envelopes, datums, and the GUI mirror. It plays the role bson::Document
// plays in the original implementation, backed here by canonical CBOR.
package document

import (
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// Doc is one self-describing document: string-keyed, arbitrarily nested,
// values are any of map[string]interface{}, []interface{}, string, bool,
// int64, float64, []byte (binary) or DateTime.
type Doc = map[string]interface{}

// dateTimeTag is the CBOR tag number used for timestamps (RFC 8949 tag 1,
// "epoch-based date/time").
const dateTimeTag = 1

// DateTime is a millisecond-precision timestamp value, the document
// equivalent of bson::DateTime::from_system_time in the original.
type DateTime time.Time

// NewDateTime truncates t to millisecond precision and wraps it for
// inclusion in a Doc.
func NewDateTime(t time.Time) DateTime {
	return DateTime(t.Truncate(time.Millisecond))
}

// Time unwraps the timestamp back into a time.Time.
func (d DateTime) Time() time.Time {
	return time.Time(d)
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(errors.Wrap(err, "document: building canonical encode mode"))
	}
	encMode = em

	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}{}),
		UTF8:           cbor.UTF8DecodeInvalid,
	}.DecMode()
	if err != nil {
		panic(errors.Wrap(err, "document: building decode mode"))
	}
	decMode = dm
}

// Marshal serialises doc to the canonical binary document format.
func Marshal(doc Doc) ([]byte, error) {
	wire := toWire(doc)
	buf, err := encMode.Marshal(wire)
	if err != nil {
		return nil, errors.Wrap(err, "document: marshal")
	}
	return buf, nil
}

// Unmarshal parses buf as a document. Invalid UTF-8 inside strings is
// lossily replaced rather than rejected, per the wire contract.
func Unmarshal(buf []byte) (Doc, error) {
	var raw interface{}
	if err := decMode.Unmarshal(buf, &raw); err != nil {
		return nil, errors.Wrap(err, "document: unmarshal")
	}
	m, ok := fromWire(raw).(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("document: top-level value is not a document (got %T)", raw)
	}
	return m, nil
}

// toWire walks a Doc/value tree substituting DateTime for the raw CBOR tag
// representation the wire format actually carries.
func toWire(v interface{}) interface{} {
	switch t := v.(type) {
	case DateTime:
		return cbor.Tag{
			Number:  dateTimeTag,
			Content: float64(t.Time().UnixMilli()) / 1000.0,
		}
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[k] = toWire(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = toWire(vv)
		}
		return out
	default:
		return v
	}
}

// fromWire is the inverse of toWire: CBOR tag-1 values become DateTime,
// and every decoded string is repaired to valid UTF-8.
func fromWire(v interface{}) interface{} {
	switch t := v.(type) {
	case cbor.Tag:
		if t.Number == dateTimeTag {
			return dateTimeFromTagContent(t.Content)
		}
		return fromWire(t.Content)
	case time.Time:
		// the decoder turns tag-1 values into time.Time on its own
		return NewDateTime(t)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[strings.ToValidUTF8(k, "�")] = fromWire(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = fromWire(vv)
		}
		return out
	case string:
		return strings.ToValidUTF8(t, "�")
	case uint64:
		// CBOR decodes non-negative integers as uint64 and negative ones as
		// int64; normalize to int64 so callers see one consistent integer
		// type regardless of sign, as long as it fits.
		if t <= math.MaxInt64 {
			return int64(t)
		}
		return t
	default:
		return v
	}
}

func dateTimeFromTagContent(content interface{}) DateTime {
	var seconds float64
	switch n := content.(type) {
	case float64:
		seconds = n
	case int64:
		seconds = float64(n)
	case uint64:
		seconds = float64(n)
	}
	return NewDateTime(time.UnixMilli(int64(seconds * 1000)))
}
