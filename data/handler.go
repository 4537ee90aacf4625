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

// Package data implements the per-frame exchange with one data plugin
// connection (C5), the Go sibling of data_plugins.rs.
package data

import (
	"github.com/inconshreveable/log15"
	"github.com/project-palleon/core/document"
	"github.com/project-palleon/core/history"
	"github.com/project-palleon/core/model"
	"github.com/project-palleon/core/stream"
)

// Handler reads the plugin's init document once, then exchanges one
// dependency payload / frame / datum per frame received on imageRx.
type Handler struct {
	imageRx <-chan model.Frame
	dataTx  chan<- model.Datum
	store   *history.Store
	log     log15.Logger
}

// New builds a Handler for one data plugin. imageRx is the per-plugin
// fan-out channel the scheduler sends frames on; dataTx is the per-plugin
// result channel the scheduler blocks on.
func New(imageRx <-chan model.Frame, dataTx chan<- model.Datum, store *history.Store, log log15.Logger) *Handler {
	return &Handler{imageRx: imageRx, dataTx: dataTx, store: store, log: log}
}

// Handle implements plugin.Handler.
func (h *Handler) Handle(name string, s *stream.Stream) {
	logger := h.log.New("plugin", name)

	init, err := s.RecvDocument()
	if err != nil {
		logger.Warn("failed to read init document", "err", err)
		return
	}

	wantsImage, err := document.Bool(init, "image")
	if err != nil {
		logger.Warn("invalid init document", "err", err)
		return
	}
	dependencies, err := document.SubDocument(init, "dependencies")
	if err != nil {
		logger.Warn("invalid init document", "err", err)
		return
	}

	logger.Info("plugin initialized", "wants_image", wantsImage, "dependencies", len(dependencies))

	for frame := range h.imageRx {
		depsPayload, err := h.collectDependencies(dependencies, frame.Source)
		if err != nil {
			logger.Error("failed to collect dependency data", "err", err)
			return
		}
		if err := s.SendDocument(depsPayload); err != nil {
			logger.Warn("failed to send dependency payload", "err", err)
			return
		}

		envelope := document.Doc{
			"input_source": frame.Source,
			"timestamp":    document.NewDateTime(frame.Timestamp),
		}
		if wantsImage {
			envelope["data"] = frame.Payload
		}
		if err := s.SendDocument(envelope); err != nil {
			logger.Warn("failed to send frame envelope", "err", err)
			return
		}

		result, err := s.RecvDocument()
		if err != nil {
			logger.Warn("failed to read plugin result", "err", err)
			return
		}

		h.dataTx <- model.Datum{
			Producer:  name,
			Source:    frame.Source,
			Timestamp: frame.Timestamp,
			Value:     result,
		}
	}
}

// collectDependencies builds the per-frame dependency payload: for each
// requested (dep_name, n) it reads the last n entries of (dep_name, source)
// from the history store. A dependency that has never produced is simply
// absent from the payload — not mapped to an empty list — per SPEC_FULL.md
// §6's resolution of the cold-dependency open question.
func (h *Handler) collectDependencies(dependencies document.Doc, source string) (document.Doc, error) {
	out := document.Doc{}
	for depName, rawN := range dependencies {
		n, err := document.Int64(rawN)
		if err != nil {
			return nil, err
		}
		entries, ok := h.store.Last(depName, source, int(n))
		if !ok {
			continue
		}
		pairs := make([]interface{}, len(entries))
		for i, e := range entries {
			pairs[i] = []interface{}{document.NewDateTime(e.Timestamp), e.Value}
		}
		out[depName] = pairs
	}
	return out, nil
}
