package scheduler

import (
	"testing"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/project-palleon/core/document"
	"github.com/project-palleon/core/history"
	"github.com/project-palleon/core/model"
	"github.com/stretchr/testify/require"
)

func discardLogger() log15.Logger {
	l := log15.New()
	l.SetHandler(log15.DiscardHandler())
	return l
}

func TestDispatchFansOutAndWritesHistory(t *testing.T) {
	camRx := make(chan model.Frame, 1)
	actTx := make(chan model.Frame, 1)
	actRx := make(chan model.Datum, 1)

	store := history.New()
	guard := NewGuard(nil, discardLogger())

	s := New(
		[]string{"cam"}, []<-chan model.Frame{camRx},
		[]string{"act"}, []chan<- model.Frame{actTx}, []<-chan model.Datum{actRx},
		store, guard, nil, discardLogger(),
	)

	frame := model.NewFrame([]byte{0x01, 0x02, 0x03}, "cam")

	go func() {
		received := <-actTx
		actRx <- model.Datum{Producer: "act", Source: received.Source, Timestamp: received.Timestamp, Value: document.Doc{"ok": true}}
	}()

	s.dispatch(frame)

	got, ok := store.Last("act", "cam", 1)
	require.True(t, ok)
	require.Len(t, got, 1)
	require.Equal(t, true, got[0].Value["ok"])
}

func TestDispatchDeliversExactlyOneCopyToEachDataPlugin(t *testing.T) {
	actTx := make(chan model.Frame, 1)
	bctTx := make(chan model.Frame, 1)
	actRx := make(chan model.Datum, 1)
	bctRx := make(chan model.Datum, 1)

	store := history.New()
	guard := NewGuard(nil, discardLogger())

	s := New(
		nil, nil,
		[]string{"act", "bct"}, []chan<- model.Frame{actTx, bctTx}, []<-chan model.Datum{actRx, bctRx},
		store, guard, nil, discardLogger(),
	)

	frame := model.NewFrame([]byte{7}, "cam")

	respond := func(tx <-chan model.Frame, rx chan<- model.Datum, producer string) {
		received := <-tx
		rx <- model.Datum{Producer: producer, Source: received.Source, Timestamp: received.Timestamp, Value: document.Doc{}}
	}
	go respond(actTx, actRx, "act")
	go respond(bctTx, bctRx, "bct")

	s.dispatch(frame)

	require.Len(t, actTx, 0)
	require.Len(t, bctTx, 0)

	actGot, ok := store.Last("act", "cam", 1)
	require.True(t, ok)
	require.Len(t, actGot, 1)

	bctGot, ok := store.Last("bct", "cam", 1)
	require.True(t, ok)
	require.Len(t, bctGot, 1)
}

func TestDispatchForwardsToGUIWhenAttached(t *testing.T) {
	actTx := make(chan model.Frame, 1)
	actRx := make(chan model.Datum, 1)
	guiImages := make(chan model.Frame, 1)
	guiData := make(chan model.Datum, 1)

	store := history.New()
	guard := NewGuard(nil, discardLogger())

	s := New(
		nil, nil,
		[]string{"act"}, []chan<- model.Frame{actTx}, []<-chan model.Datum{actRx},
		store, guard,
		&GUIChannels{Images: guiImages, Data: guiData, Attached: func() bool { return true }},
		discardLogger(),
	)

	frame := model.NewFrame([]byte{1}, "cam")
	go func() {
		received := <-actTx
		actRx <- model.Datum{Producer: "act", Source: received.Source, Timestamp: received.Timestamp, Value: document.Doc{}}
	}()

	s.dispatch(frame)

	select {
	case f := <-guiImages:
		require.Equal(t, "cam", f.Source)
	case <-time.After(time.Second):
		t.Fatal("frame was not mirrored to the GUI")
	}
	select {
	case d := <-guiData:
		require.Equal(t, "act", d.Producer)
	case <-time.After(time.Second):
		t.Fatal("datum was not mirrored to the GUI")
	}
}

func TestDispatchGUIBackpressureIsLossy(t *testing.T) {
	actTx := make(chan model.Frame, 1)
	actRx := make(chan model.Datum, 1)
	guiImages := make(chan model.Frame) // unbuffered: any send without a reader is lossy here

	store := history.New()
	guard := NewGuard(nil, discardLogger())

	s := New(
		nil, nil,
		[]string{"act"}, []chan<- model.Frame{actTx}, []<-chan model.Datum{actRx},
		store, guard,
		&GUIChannels{Images: guiImages, Data: make(chan model.Datum), Attached: func() bool { return true }},
		discardLogger(),
	)

	frame := model.NewFrame([]byte{1}, "cam")
	go func() {
		received := <-actTx
		actRx <- model.Datum{Producer: "act", Source: received.Source, Timestamp: received.Timestamp, Value: document.Doc{}}
	}()

	done := make(chan struct{})
	go func() {
		s.dispatch(frame)
		close(done)
	}()

	select {
	case <-done:
		// dispatch must not block on a full/unread GUI channel
	case <-time.After(time.Second):
		t.Fatal("dispatch blocked on GUI channel instead of dropping")
	}

	got, ok := store.Last("act", "cam", 1)
	require.True(t, ok)
	require.Len(t, got, 1)
}

func TestDispatchDoesNotForwardToGUIWhenNotAttached(t *testing.T) {
	actTx := make(chan model.Frame, 1)
	actRx := make(chan model.Datum, 1)
	// unbuffered: if dispatch tried to send here it would block forever,
	// since nothing ever reads from these channels in this test.
	guiImages := make(chan model.Frame)
	guiData := make(chan model.Datum)

	store := history.New()
	guard := NewGuard(nil, discardLogger())

	s := New(
		nil, nil,
		[]string{"act"}, []chan<- model.Frame{actTx}, []<-chan model.Datum{actRx},
		store, guard,
		&GUIChannels{Images: guiImages, Data: guiData, Attached: func() bool { return false }},
		discardLogger(),
	)

	frame := model.NewFrame([]byte{1}, "cam")
	go func() {
		received := <-actTx
		actRx <- model.Datum{Producer: "act", Source: received.Source, Timestamp: received.Timestamp, Value: document.Doc{}}
	}()

	done := make(chan struct{})
	go func() {
		s.dispatch(frame)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch should not attempt to forward to an unattached GUI")
	}

	got, ok := store.Last("act", "cam", 1)
	require.True(t, ok)
	require.Len(t, got, 1)
}

func TestDispatchGUINilAttachedFuncIsTreatedAsNotAttached(t *testing.T) {
	actTx := make(chan model.Frame, 1)
	actRx := make(chan model.Datum, 1)
	guiImages := make(chan model.Frame)
	guiData := make(chan model.Datum)

	store := history.New()
	guard := NewGuard(nil, discardLogger())

	s := New(
		nil, nil,
		[]string{"act"}, []chan<- model.Frame{actTx}, []<-chan model.Datum{actRx},
		store, guard,
		&GUIChannels{Images: guiImages, Data: guiData},
		discardLogger(),
	)

	frame := model.NewFrame([]byte{1}, "cam")
	go func() {
		received := <-actTx
		actRx <- model.Datum{Producer: "act", Source: received.Source, Timestamp: received.Timestamp, Value: document.Doc{}}
	}()

	done := make(chan struct{})
	go func() {
		s.dispatch(frame)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("a nil Attached func must default to not-attached, not block forever")
	}
}

func TestCollectDatumPollsUntilDatumArrives(t *testing.T) {
	store := history.New()
	guard := NewGuard(nil, discardLogger())
	s := New(nil, nil, nil, nil, nil, store, guard, nil, discardLogger())

	rx := make(chan model.Datum)
	go func() {
		time.Sleep(3 * pollTimeout) // spans several guard-poll ticks
		rx <- model.Datum{Producer: "act", Source: "cam"}
	}()

	d := s.collectDatum(rx)
	require.Equal(t, "act", d.Producer)
}

func TestTryRecvFrameTimesOut(t *testing.T) {
	rx := make(chan model.Frame)
	_, ok := tryRecvFrame(rx, 5*time.Millisecond)
	require.False(t, ok)
}

func TestTryRecvFrameReturnsAvailableFrame(t *testing.T) {
	rx := make(chan model.Frame, 1)
	rx <- model.NewFrame([]byte{1}, "cam")
	f, ok := tryRecvFrame(rx, 5*time.Millisecond)
	require.True(t, ok)
	require.Equal(t, "cam", f.Source)
}
