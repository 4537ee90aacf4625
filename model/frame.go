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

// Package model holds the data model shared by every core component: the
// Frame an input plugin produces and the Datum a data plugin returns for it.
package model

import (
	"time"

	"github.com/project-palleon/core/document"
)

// Frame is an immutable timestamped binary payload from one input source.
// Frames are cloned across fan-out; Payload sharing without copy is
// permitted, so callers must treat Payload as read-only.
type Frame struct {
	Payload   []byte
	Timestamp time.Time
	Source    string
}

// NewFrame stamps payload with the current time, the moment C4 receives it.
func NewFrame(payload []byte, source string) Frame {
	return Frame{
		Payload:   payload,
		Timestamp: time.Now(),
		Source:    source,
	}
}

// Datum is the structured result a data plugin produced for one Frame.
type Datum struct {
	Producer  string
	Source    string
	Timestamp time.Time
	Value     document.Doc
}
