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

// Package input implements the core-initiated pull loop spoken to one input
// plugin connection (C4), the Go sibling of input_plugins.rs.
package input

import (
	"time"

	"github.com/inconshreveable/log15"
	"github.com/project-palleon/core/model"
	"github.com/project-palleon/core/stream"
)

const (
	modeNoData  = 0
	modeHasData = 1

	idleSleep = time.Second
)

// Handler polls one input plugin for frames and emits each into imageTx, a
// blocking send that applies natural backpressure back to the plugin.
type Handler struct {
	imageTx chan<- model.Frame
	log     log15.Logger
	quiet   bool
}

// New builds a Handler bound to imageTx, the unbuffered channel C6 reads
// from for this input source.
func New(imageTx chan<- model.Frame, log log15.Logger, quiet bool) *Handler {
	return &Handler{imageTx: imageTx, log: log, quiet: quiet}
}

// Handle implements plugin.Handler: it owns the connection until the
// protocol is violated or the stream ends, per spec.md §4.4.
func (h *Handler) Handle(name string, s *stream.Stream) {
	logger := h.log.New("plugin", name)
	for {
		if err := s.WriteRaw([]byte{'i'}); err != nil {
			logger.Warn("failed to request a frame", "err", err)
			return
		}

		mode, err := s.RecvU32()
		if err != nil {
			logger.Warn("failed to read mode", "err", err)
			return
		}

		switch mode {
		case modeNoData:
			time.Sleep(idleSleep)
		case modeHasData:
			payload, err := s.RecvFramed()
			if err != nil {
				logger.Warn("failed to read frame payload", "err", err)
				return
			}
			frame := model.NewFrame(payload, name)
			if !h.quiet {
				logger.Debug("frame received", "bytes", len(payload))
			}
			h.imageTx <- frame
		default:
			logger.Error("protocol violation: unexpected mode", "mode", mode)
			return
		}
	}
}
