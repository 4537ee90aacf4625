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

// Package history implements the bounded per-series time series the core
// keeps of every data plugin's output, the Go sibling of data_manager.rs.
package history

import (
	"sync"
	"time"

	"github.com/project-palleon/core/document"
)

// MaxValues is the per-series retention cap; the oldest entry is evicted on
// overflow.
const MaxValues = 10_000

// entry is one (timestamp, value) pair in a series.
type entry struct {
	timestamp time.Time
	value     document.Doc
}

// series is a fixed-capacity ring buffer: O(1) amortized append, O(1)
// indexed access for a contiguous tail read.
type series struct {
	buf   []entry
	start int // index of the oldest element
	count int
}

func newSeries() *series {
	return &series{buf: make([]entry, MaxValues)}
}

func (s *series) append(ts time.Time, value document.Doc) {
	idx := (s.start + s.count) % MaxValues
	s.buf[idx] = entry{timestamp: ts, value: value}
	if s.count < MaxValues {
		s.count++
	} else {
		// full: overwriting the slot the oldest entry occupied advances the
		// logical start by one, evicting it.
		s.start = (s.start + 1) % MaxValues
	}
}

// lastN returns up to n most-recent entries, newest first.
func (s *series) lastN(n int) []entry {
	if n > s.count {
		n = s.count
	}
	out := make([]entry, n)
	for i := 0; i < n; i++ {
		// walk backwards from the newest element
		idx := (s.start + s.count - 1 - i) % MaxValues
		out[i] = s.buf[idx]
	}
	return out
}

// Store maps (producer, source) to its bounded series. Every operation
// behaves as if taken under a single exclusive lock; readers never observe
// a half-appended entry.
type Store struct {
	mu     sync.Mutex
	series map[key]*series
}

type key struct {
	producer string
	source   string
}

// New returns an empty store.
func New() *Store {
	return &Store{series: make(map[key]*series)}
}

// Append adds (ts, value) to the (producer, source) series, evicting the
// oldest entry if the series is at capacity.
func (s *Store) Append(producer, source string, ts time.Time, value document.Doc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{producer, source}
	ser, ok := s.series[k]
	if !ok {
		ser = newSeries()
		s.series[k] = ser
	}
	ser.append(ts, value)
}

// Entry is one point-in-time reading returned by Last.
type Entry struct {
	Timestamp time.Time
	Value     document.Doc
}

// Last returns up to n most-recent entries for (producer, source), newest
// first. ok is false only if the series has never been appended to.
func (s *Store) Last(producer, source string, n int) (values []Entry, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ser, exists := s.series[key{producer, source}]
	if !exists {
		return nil, false
	}
	raw := ser.lastN(n)
	values = make([]Entry, len(raw))
	for i, e := range raw {
		values[i] = Entry{Timestamp: e.timestamp, Value: e.value}
	}
	return values, true
}
