package ui

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(t *testing.T, s *Sink) []Update {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var out []Update
	for {
		u, err := s.Next(ctx)
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, u)
	}
}

func TestSink_OrderedUpdates(t *testing.T) {
	s := NewSink()

	ts, err := s.OpenText()
	require.NoError(t, err)
	require.NoError(t, ts.Append("Hel"))

	slot, err := s.OpenSlot(Fragment{Component: "weather-loading"})
	require.NoError(t, err)

	require.NoError(t, ts.Append("lo"))
	require.NoError(t, slot.Resolve(Fragment{Component: "weather-card", Props: 72}))
	require.NoError(t, ts.Close())
	require.NoError(t, s.Close(nil))

	updates := drain(t, s)
	ops := make([]Op, len(updates))
	for i, u := range updates {
		ops[i] = u.Op
		assert.Equal(t, i+1, u.Seq)
	}
	assert.Equal(t, []Op{OpAppend, OpDelta, OpAppend, OpDelta, OpReplace, OpClose}, ops)
	assert.Equal(t, ts.ID(), updates[0].NodeID)
	assert.Equal(t, NodeSlot, updates[4].Kind)

	nodes := s.Snapshot()
	require.Len(t, nodes, 2)
	assert.Equal(t, "Hello", nodes[0].Text)
	assert.True(t, nodes[0].Closed)
	assert.Equal(t, SlotFinal, nodes[1].State)
	assert.Equal(t, "weather-card", nodes[1].Fragment.Component)
}

func TestSink_ClosedRejectsWrites(t *testing.T) {
	s := NewSink()
	ts, err := s.OpenText()
	require.NoError(t, err)

	require.NoError(t, s.Close(nil))
	assert.ErrorIs(t, s.Close(nil), ErrSinkClosed)

	_, err = s.AppendFragment(Fragment{Component: "x"})
	assert.ErrorIs(t, err, ErrSinkClosed)
	assert.ErrorIs(t, ts.Append("late"), ErrSinkClosed)
	assert.True(t, s.Closed())

	select {
	case <-s.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestSink_CloseWithError(t *testing.T) {
	s := NewSink()
	boom := assert.AnError
	require.NoError(t, s.Close(boom))
	assert.ErrorIs(t, s.Err(), boom)
}

func TestTextStream_CloseOnce(t *testing.T) {
	s := NewSink()
	ts, err := s.OpenText()
	require.NoError(t, err)

	require.NoError(t, ts.Close())
	assert.ErrorIs(t, ts.Close(), ErrStreamClosed)
	assert.ErrorIs(t, ts.Append("x"), ErrStreamClosed)
	assert.True(t, ts.Closed())
}

func TestSlot_SettlesOnce(t *testing.T) {
	s := NewSink()
	slot, err := s.OpenSlot(Fragment{Component: "loading"})
	require.NoError(t, err)
	assert.Equal(t, SlotLoading, slot.State())

	require.NoError(t, slot.Abort())
	assert.Equal(t, SlotAborted, slot.State())
	assert.ErrorIs(t, slot.Resolve(Fragment{Component: "final"}), ErrSlotSettled)

	nodes := s.Snapshot()
	require.Len(t, nodes, 1)
	assert.Equal(t, "loading", nodes[0].Fragment.Component)
}

func TestSink_NextBlocksUntilWrite(t *testing.T) {
	s := NewSink()
	got := make(chan Update, 1)
	go func() {
		u, err := s.Next(context.Background())
		if err == nil {
			got <- u
		}
	}()

	time.Sleep(10 * time.Millisecond)
	_, err := s.AppendFragment(Fragment{Component: "banner"})
	require.NoError(t, err)

	select {
	case u := <-got:
		assert.Equal(t, OpAppend, u.Op)
		assert.Equal(t, "banner", u.Fragment.Component)
	case <-time.After(time.Second):
		t.Fatal("update not delivered")
	}
}

func TestSink_NextHonorsContext(t *testing.T) {
	s := NewSink()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSink_Updates(t *testing.T) {
	s := NewSink()
	_, err := s.AppendFragment(Fragment{Component: "a"})
	require.NoError(t, err)
	_, err = s.AppendFragment(Fragment{Component: "b"})
	require.NoError(t, err)
	require.NoError(t, s.Close(nil))

	var names []string
	for u := range s.Updates(context.Background()) {
		names = append(names, u.Fragment.Component)
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestSink_UpdatesStopsOnCancel(t *testing.T) {
	s := NewSink()
	for _, name := range []string{"a", "b", "c"} {
		_, err := s.AppendFragment(Fragment{Component: name})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	updates := s.Updates(ctx)
	first := <-updates
	assert.Equal(t, "a", first.Fragment.Component)

	cancel()
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for range updates {
		}
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("update pump did not stop after cancel")
	}
	assert.False(t, s.Closed())
}

func TestComponents_Lookup(t *testing.T) {
	comps := Components{
		"weather": StaticComponent("weather-loading", "weather-card"),
		"broken":  {Loading: func() Fragment { return Fragment{} }},
	}

	c, ok := comps.Lookup("weather")
	require.True(t, ok)
	assert.Equal(t, Fragment{Component: "weather-loading"}, c.Loading())
	assert.Equal(t, Fragment{Component: "weather-card", Props: 72}, c.Final(72))

	_, ok = comps.Lookup("broken")
	assert.False(t, ok)
	_, ok = comps.Lookup("missing")
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{"weather", "broken"}, comps.Names())
}
