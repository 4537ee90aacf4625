package history

import (
	"testing"
	"time"

	"github.com/project-palleon/core/document"
	"github.com/stretchr/testify/require"
)

func TestAppendAndLastBasic(t *testing.T) {
	s := New()
	now := time.Now()

	s.Append("act", "cam", now, document.Doc{"v": int64(1)})

	got, ok := s.Last("act", "cam", 10)
	require.True(t, ok)
	require.Len(t, got, 1)
	require.Equal(t, int64(1), got[0].Value["v"])
}

func TestLastOnUnknownSeriesReturnsNotOK(t *testing.T) {
	s := New()
	_, ok := s.Last("ghost", "cam", 5)
	require.False(t, ok)
}

func TestLastReturnsFewerThanRequestedWhenSeriesShort(t *testing.T) {
	s := New()
	now := time.Now()
	for i := 0; i < 3; i++ {
		s.Append("A", "cam", now.Add(time.Duration(i)*time.Millisecond), document.Doc{"i": int64(i)})
	}

	got, ok := s.Last("A", "cam", 5)
	require.True(t, ok)
	require.Len(t, got, 3)
	// newest first
	require.Equal(t, int64(2), got[0].Value["i"])
	require.Equal(t, int64(0), got[2].Value["i"])
}

func TestEvictionAtCapacity(t *testing.T) {
	s := New()
	base := time.Now()

	for i := 0; i < MaxValues+1; i++ {
		s.Append("A", "cam", base.Add(time.Duration(i)*time.Millisecond), document.Doc{"i": int64(i)})
	}

	got, ok := s.Last("A", "cam", MaxValues)
	require.True(t, ok)
	require.Len(t, got, MaxValues)

	// the very first append (i=0) must be gone; the 2nd-ever (i=1) is now
	// the oldest surviving entry, at the tail of the newest-first slice.
	require.Equal(t, int64(MaxValues), got[0].Value["i"])
	require.Equal(t, int64(1), got[MaxValues-1].Value["i"])
}

func TestOrderPreservationIsNonIncreasing(t *testing.T) {
	s := New()
	base := time.Now()
	for i := 0; i < 50; i++ {
		s.Append("A", "cam", base.Add(time.Duration(i)*time.Millisecond), document.Doc{})
	}

	got, ok := s.Last("A", "cam", 50)
	require.True(t, ok)
	for i := 1; i < len(got); i++ {
		require.False(t, got[i].Timestamp.After(got[i-1].Timestamp))
	}
}

func TestSeriesAreIndependentPerSource(t *testing.T) {
	s := New()
	now := time.Now()
	s.Append("A", "cam1", now, document.Doc{"src": "cam1"})
	s.Append("A", "cam2", now, document.Doc{"src": "cam2"})

	got1, _ := s.Last("A", "cam1", 10)
	got2, _ := s.Last("A", "cam2", 10)
	require.Len(t, got1, 1)
	require.Len(t, got2, 1)
	require.Equal(t, "cam1", got1[0].Value["src"])
	require.Equal(t, "cam2", got2[0].Value["src"])
}
