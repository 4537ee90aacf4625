package data

import (
	"net"
	"testing"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/project-palleon/core/document"
	"github.com/project-palleon/core/history"
	"github.com/project-palleon/core/model"
	"github.com/project-palleon/core/stream"
	"github.com/stretchr/testify/require"
)

func discardLogger() log15.Logger {
	l := log15.New()
	l.SetHandler(log15.DiscardHandler())
	return l
}

func TestHandleSingleFrameNoDependencies(t *testing.T) {
	pluginConn, coreConn := net.Pipe()
	defer pluginConn.Close()

	imageRx := make(chan model.Frame, 1)
	dataTx := make(chan model.Datum, 1)
	store := history.New()

	h := New(imageRx, dataTx, store, discardLogger())
	go h.Handle("act", stream.New(coreConn))

	pluginSide := stream.New(pluginConn)
	require.NoError(t, pluginSide.SendDocument(document.Doc{
		"image":        true,
		"dependencies": document.Doc{},
	}))

	imageRx <- model.NewFrame([]byte{0x01, 0x02, 0x03}, "cam")

	deps, err := pluginSide.RecvDocument()
	require.NoError(t, err)
	require.Empty(t, deps)

	envelope, err := pluginSide.RecvDocument()
	require.NoError(t, err)
	require.Equal(t, "cam", envelope["input_source"])
	require.Equal(t, []byte{0x01, 0x02, 0x03}, envelope["data"])

	require.NoError(t, pluginSide.SendDocument(document.Doc{"score": int64(42)}))

	select {
	case datum := <-dataTx:
		require.Equal(t, "act", datum.Producer)
		require.Equal(t, "cam", datum.Source)
		require.Equal(t, int64(42), datum.Value["score"])
	case <-time.After(time.Second):
		t.Fatal("no datum forwarded")
	}
}

func TestHandleOmitsImageWhenNotWanted(t *testing.T) {
	pluginConn, coreConn := net.Pipe()
	defer pluginConn.Close()

	imageRx := make(chan model.Frame, 1)
	dataTx := make(chan model.Datum, 1)
	store := history.New()

	h := New(imageRx, dataTx, store, discardLogger())
	go h.Handle("act", stream.New(coreConn))

	pluginSide := stream.New(pluginConn)
	require.NoError(t, pluginSide.SendDocument(document.Doc{
		"image":        false,
		"dependencies": document.Doc{},
	}))

	imageRx <- model.NewFrame([]byte{0x01}, "cam")

	_, err := pluginSide.RecvDocument() // deps
	require.NoError(t, err)

	envelope, err := pluginSide.RecvDocument()
	require.NoError(t, err)
	_, hasData := envelope["data"]
	require.False(t, hasData)

	require.NoError(t, pluginSide.SendDocument(document.Doc{"ok": true}))
	<-dataTx
}

func TestHandleDependencyReadReflectsHistory(t *testing.T) {
	pluginConn, coreConn := net.Pipe()
	defer pluginConn.Close()

	imageRx := make(chan model.Frame, 1)
	dataTx := make(chan model.Datum, 1)
	store := history.New()
	now := time.Now()
	store.Append("A", "cam", now, document.Doc{"v": int64(1)})
	store.Append("A", "cam", now.Add(time.Millisecond), document.Doc{"v": int64(2)})

	h := New(imageRx, dataTx, store, discardLogger())
	go h.Handle("B", stream.New(coreConn))

	pluginSide := stream.New(pluginConn)
	require.NoError(t, pluginSide.SendDocument(document.Doc{
		"image":        false,
		"dependencies": document.Doc{"A": int64(5)},
	}))

	imageRx <- model.NewFrame([]byte{}, "cam")

	deps, err := pluginSide.RecvDocument()
	require.NoError(t, err)
	aVals, ok := deps["A"].([]interface{})
	require.True(t, ok)
	require.Len(t, aVals, 2)
	// newest first
	first := aVals[0].([]interface{})
	require.Equal(t, int64(2), first[1].(map[string]interface{})["v"])

	_, err = pluginSide.RecvDocument() // frame envelope
	require.NoError(t, err)
	require.NoError(t, pluginSide.SendDocument(document.Doc{"ok": true}))
	<-dataTx
}

func TestHandleMissingDependencySeriesIsAbsent(t *testing.T) {
	pluginConn, coreConn := net.Pipe()
	defer pluginConn.Close()

	imageRx := make(chan model.Frame, 1)
	dataTx := make(chan model.Datum, 1)
	store := history.New()

	h := New(imageRx, dataTx, store, discardLogger())
	go h.Handle("B", stream.New(coreConn))

	pluginSide := stream.New(pluginConn)
	require.NoError(t, pluginSide.SendDocument(document.Doc{
		"image":        false,
		"dependencies": document.Doc{"never-produced": int64(5)},
	}))

	imageRx <- model.NewFrame([]byte{}, "cam")

	deps, err := pluginSide.RecvDocument()
	require.NoError(t, err)
	_, present := deps["never-produced"]
	require.False(t, present, "a series that never produced must be absent, not an empty list")

	_, err = pluginSide.RecvDocument()
	require.NoError(t, err)
	require.NoError(t, pluginSide.SendDocument(document.Doc{"ok": true}))
	<-dataTx
}
