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

// Package stream implements the length-prefixed byte and document framing
// spoken over every plugin and GUI connection: a thin wrapper over a
// reliable byte stream, the Go sibling of wrapped_stream.rs in the original.
package stream

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
	"net"

	"github.com/pkg/errors"
	"github.com/project-palleon/core/document"
)

// MaxFrameBytes bounds a single recv_framed payload to the full range the
// 4-byte length prefix can express (spec.md §8: "recv_framed(send_framed(b))
// == b for all byte sequences up to 2**32-1"). Since the prefix is a uint32,
// RecvFramed's check against it never rejects a length; it is not a
// tighter, policy-driven cap.
const MaxFrameBytes = math.MaxUint32

// Stream wraps a net.Conn with the framing operations of spec.md §4.1.
type Stream struct {
	conn   net.Conn
	reader *bufio.Reader
}

// New wraps conn. Reads are buffered; writes go straight to conn.
func New(conn net.Conn) *Stream {
	return &Stream{conn: conn, reader: bufio.NewReader(conn)}
}

// Conn returns the underlying connection, e.g. for RemoteAddr()/Close().
func (s *Stream) Conn() net.Conn {
	return s.conn
}

// Close closes the underlying connection.
func (s *Stream) Close() error {
	return s.conn.Close()
}

// WriteRaw writes data with no framing at all.
func (s *Stream) WriteRaw(data []byte) error {
	_, err := s.conn.Write(data)
	if err != nil {
		return errors.Wrap(err, "stream: write_raw")
	}
	return nil
}

// SendFramed writes a 4-byte little-endian length prefix followed by data.
func (s *Stream) SendFramed(data []byte) error {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := s.conn.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "stream: send_framed length prefix")
	}
	if _, err := s.conn.Write(data); err != nil {
		return errors.Wrap(err, "stream: send_framed payload")
	}
	return nil
}

// SendDocument serialises doc to the canonical binary document format and
// sends it length-prefixed.
func (s *Stream) SendDocument(doc document.Doc) error {
	buf, err := document.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "stream: send_document encode")
	}
	return s.SendFramed(buf)
}

// RecvU32 reads exactly 4 bytes and decodes them little-endian.
func (s *Stream) RecvU32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(s.reader, buf[:]); err != nil {
		return 0, errors.Wrap(err, "stream: recv_u32")
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// RecvFramed reads a u32 length then exactly that many bytes.
func (s *Stream) RecvFramed() ([]byte, error) {
	n, err := s.RecvU32()
	if err != nil {
		return nil, err
	}
	if n > MaxFrameBytes {
		return nil, errors.Errorf("stream: recv_framed length %d exceeds limit %d", n, MaxFrameBytes)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(s.reader, buf); err != nil {
		return nil, errors.Wrap(err, "stream: recv_framed payload")
	}
	return buf, nil
}

// RecvDocument reads a framed payload and parses it as a document. Invalid
// bytes or a short read are fatal to the caller, per spec.md §4.1.
func (s *Stream) RecvDocument() (document.Doc, error) {
	buf, err := s.RecvFramed()
	if err != nil {
		return nil, err
	}
	doc, err := document.Unmarshal(buf)
	if err != nil {
		return nil, errors.Wrap(err, "stream: recv_document parse")
	}
	return doc, nil
}
