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

// Package gui implements the observer connector (C7): a single external
// viewer may attach at a time and receive a lossy mirror of every frame
// and datum the scheduler produces, the Go sibling of gui_connector.rs.
package gui

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"github.com/project-palleon/core/document"
	"github.com/project-palleon/core/model"
	"github.com/project-palleon/core/stream"
)

// drainTimeout is how long handleConn waits for one more queued element
// before deciding the current batch is complete.
const drainTimeout = 5 * time.Millisecond

// Connector accepts at most one observer connection at a time and streams
// it a `{images, data}` document once per drain cycle.
type Connector struct {
	imageRx <-chan model.Frame
	dataRx  <-chan model.Datum

	listener net.Listener
	log      log15.Logger

	attached int32 // atomic bool: an observer is currently connected
}

// Start binds the observer listener and begins accepting connections on a
// background goroutine. imageRx/dataRx are the lossy mirror channels the
// scheduler is configured to send into.
func Start(bindAddr string, imageRx <-chan model.Frame, dataRx <-chan model.Datum, log log15.Logger) (*Connector, error) {
	lis, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "binding gui listener on %s", bindAddr)
	}

	c := &Connector{
		imageRx:  imageRx,
		dataRx:   dataRx,
		listener: lis,
		log:      log.New("component", "gui"),
	}
	go c.acceptLoop()
	return c, nil
}

// Attached reports whether an observer is currently connected.
func (c *Connector) Attached() bool {
	return atomic.LoadInt32(&c.attached) == 1
}

func (c *Connector) acceptLoop() {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			c.log.Warn("gui listener stopped accepting", "err", err)
			return
		}
		c.log.Info("gui observer attached", "remote", conn.RemoteAddr())
		atomic.StoreInt32(&c.attached, 1)
		c.handleConn(stream.New(conn))
		atomic.StoreInt32(&c.attached, 0)
		c.log.Info("gui observer detached")
		// only one observer at a time; go back and accept the next.
	}
}

// handleConn drains both channels every drainTimeout and ships whatever
// accumulated as one document, until a write fails.
func (c *Connector) handleConn(s *stream.Stream) {
	defer s.Close()
	for {
		images := drainImages(c.imageRx, drainTimeout)
		data := drainData(c.dataRx, drainTimeout)

		doc := document.Doc{
			"images": images,
			"data":   data,
		}
		if err := s.SendDocument(doc); err != nil {
			c.log.Warn("gui write failed", "err", err)
			return
		}

		// TODO: read an inbound control document here once the observer
		// protocol defines one; the original never specified its shape either.
	}
}

func drainImages(rx <-chan model.Frame, timeout time.Duration) []interface{} {
	out := []interface{}{}
	for {
		select {
		case f := <-rx:
			out = append(out, []interface{}{document.NewDateTime(f.Timestamp), f.Source, f.Payload})
		case <-time.After(timeout):
			return out
		}
	}
}

func drainData(rx <-chan model.Datum, timeout time.Duration) []interface{} {
	out := []interface{}{}
	for {
		select {
		case d := <-rx:
			out = append(out, []interface{}{d.Producer, document.NewDateTime(d.Timestamp), d.Value})
		case <-time.After(timeout):
			return out
		}
	}
}
