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

// Package scheduler implements the central dispatch loop (C6): it fans
// every input frame out to all data handlers and collects one response
// from each before accepting the next frame, the Go sibling of the main
// loop in main.rs.
package scheduler

import (
	"time"

	"github.com/inconshreveable/log15"
	"github.com/project-palleon/core/history"
	"github.com/project-palleon/core/model"
)

// pollTimeout is how long the scheduler waits on one input source before
// moving on to the next, per spec.md §4.6.
const pollTimeout = 5 * time.Millisecond

// statusInterval is how often the scheduler logs a liveness/status line.
const statusInterval = time.Second

// GUIChannels are the optional, lossy mirror channels C7 reads from.
// Attached reports whether an observer is currently connected; forwards are
// skipped entirely while it is false or nil, per spec.md §3/§4.6 ("if
// gui.attached: try_send") — a configured-but-unattached GUI must not
// accumulate a backlog for the next observer to receive.
type GUIChannels struct {
	Images   chan<- model.Frame
	Data     chan<- model.Datum
	Attached func() bool
}

// Scheduler is the dispatch loop described in spec.md §4.6.
type Scheduler struct {
	inputNames []string
	imageRx    []<-chan model.Frame

	dataNames []string
	imageTx   []chan<- model.Frame
	dataRx    []<-chan model.Datum

	store *history.Store
	guard *Guard
	gui   *GUIChannels // nil if no GUI is configured
	log   log15.Logger
}

// New builds a Scheduler. imageRx[i] corresponds to inputNames[i];
// imageTx[j]/dataRx[j] correspond to dataNames[j] — declaration order is
// preserved and used as the tie-break order for collecting responses.
func New(
	inputNames []string, imageRx []<-chan model.Frame,
	dataNames []string, imageTx []chan<- model.Frame, dataRx []<-chan model.Datum,
	store *history.Store, guard *Guard, gui *GUIChannels, log log15.Logger,
) *Scheduler {
	return &Scheduler{
		inputNames: inputNames,
		imageRx:    imageRx,
		dataNames:  dataNames,
		imageTx:    imageTx,
		dataRx:     dataRx,
		store:      store,
		guard:      guard,
		gui:        gui,
		log:        log,
	}
}

// Run executes the dispatch loop forever and never returns; the process
// ends only when the guard aborts it (it calls os.Exit itself), matching
// the crash-stop design of spec.md §7.
func (s *Scheduler) Run() {
	lastStatus := time.Now()
	for {
		s.guard.CheckAllOrAbort()

		for i, rx := range s.imageRx {
			frame, ok := tryRecvFrame(rx, pollTimeout)
			if !ok {
				continue
			}
			s.dispatch(frame)
			_ = i
		}

		if time.Since(lastStatus) >= statusInterval {
			s.periodicStatusLog()
			lastStatus = time.Now()
		}
	}
}

// dispatch fans one frame out to every data handler and blocks for all of
// their responses before returning, per the fan-out barrier invariant. The
// collect loop re-checks the guard every pollTimeout instead of blocking
// unconditionally, so a data handler that died mid-protocol (spec.md §8
// scenario 5) is caught — and the process aborted — within one further
// scheduler tick instead of hanging forever.
func (s *Scheduler) dispatch(frame model.Frame) {
	attached := s.guiAttached()

	for _, tx := range s.imageTx {
		tx <- cloneFrame(frame)
	}
	if attached {
		trySendFrame(s.gui.Images, frame)
	}

	for _, rx := range s.dataRx {
		datum := s.collectDatum(rx)
		if attached {
			trySendDatum(s.gui.Data, datum)
		}
		s.store.Append(datum.Producer, datum.Source, datum.Timestamp, datum.Value)
	}
}

// collectDatum blocks for one data plugin's response, polling the guard
// every pollTimeout instead of waiting unconditionally on rx.
func (s *Scheduler) collectDatum(rx <-chan model.Datum) model.Datum {
	for {
		select {
		case d := <-rx:
			return d
		case <-time.After(pollTimeout):
			s.guard.CheckAllOrAbort()
		}
	}
}

func (s *Scheduler) guiAttached() bool {
	return s.gui != nil && s.gui.Attached != nil && s.gui.Attached()
}

// periodicStatusLog logs an "alive" line with the number of input and data
// plugins, the counterpart of the original's "alive" ticker (SPEC_FULL.md
// §5). It reports neither per-plugin liveness nor any history series.
func (s *Scheduler) periodicStatusLog() {
	s.log.Info("alive", "inputs", len(s.inputNames), "data_plugins", len(s.dataNames))
}

func cloneFrame(f model.Frame) model.Frame {
	payload := make([]byte, len(f.Payload))
	copy(payload, f.Payload)
	return model.Frame{Payload: payload, Timestamp: f.Timestamp, Source: f.Source}
}

func tryRecvFrame(rx <-chan model.Frame, timeout time.Duration) (model.Frame, bool) {
	select {
	case f := <-rx:
		return f, true
	case <-time.After(timeout):
		return model.Frame{}, false
	}
}

func trySendFrame(tx chan<- model.Frame, f model.Frame) {
	select {
	case tx <- f:
	default:
		// GUI mirror is lossy by design; drop silently under backpressure.
	}
}

func trySendDatum(tx chan<- model.Datum, d model.Datum) {
	select {
	case tx <- d:
	default:
	}
}
