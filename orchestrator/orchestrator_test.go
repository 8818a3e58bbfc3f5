package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/genui/internal/testutil"
	"github.com/hupe1980/genui/trace"
	"github.com/hupe1980/genui/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weatherComponents() ui.Components {
	return ui.Components{
		"weather": {
			Loading: func() ui.Fragment { return ui.Fragment{Component: "Loading"} },
			Final:   func(result any) ui.Fragment { return ui.Fragment{Component: "Final", Props: result} },
		},
	}
}

func await(t *testing.T, inv *Invocation) (any, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := inv.Result.Await(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return v, err
}

func TestStream_ToolScenario(t *testing.T) {
	src := testutil.NewTraceBuilder().
		ToolCall("m1", "weather", `{"city":"Berlin"}`).
		ToolResult("t1", "weather", map[string]any{"temp": 72}).
		Source()

	inv := New(weatherComponents()).Stream(context.Background(), src)
	value, err := await(t, inv)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"temp": 72}, value)

	nodes := inv.Sink.Snapshot()
	require.Len(t, nodes, 1, "loading and final must share one slot")
	assert.Equal(t, ui.NodeSlot, nodes[0].Kind)
	assert.Equal(t, ui.SlotFinal, nodes[0].State)
	assert.Equal(t, &ui.Fragment{Component: "Final", Props: map[string]any{"temp": 72}}, nodes[0].Fragment)

	var ops []ui.Op
	for u := range inv.Sink.Updates(context.Background()) {
		ops = append(ops, u.Op)
		if u.Op == ui.OpAppend {
			assert.Equal(t, "Loading", u.Fragment.Component)
		}
	}
	assert.Equal(t, []ui.Op{ui.OpAppend, ui.OpReplace}, ops)
}

func TestStream_TextScenario(t *testing.T) {
	src := testutil.NewTraceBuilder().Chunk("a", "Hel").Chunk("a", "lo").Source()

	inv := New(weatherComponents()).Stream(context.Background(), src)
	value, err := await(t, inv)
	require.NoError(t, err)
	assert.Nil(t, value)

	nodes := inv.Sink.Snapshot()
	require.Len(t, nodes, 1)
	assert.Equal(t, ui.NodeText, nodes[0].Kind)
	assert.Equal(t, "Hello", nodes[0].Text)
	assert.True(t, nodes[0].Closed)
	assert.True(t, inv.Sink.Closed())
	assert.NoError(t, inv.Sink.Err())
}

func TestStream_InterleavedRuns(t *testing.T) {
	src := testutil.NewTraceBuilder().
		Chunk("a", "one ").
		Chunk("b", "uno ").
		Chunk("a", "two").
		Chunk("b", "dos").
		Source()

	inv := New(nil).Stream(context.Background(), src)
	_, err := await(t, inv)
	require.NoError(t, err)

	nodes := inv.Sink.Snapshot()
	require.Len(t, nodes, 2)
	assert.Equal(t, "one two", nodes[0].Text)
	assert.Equal(t, "uno dos", nodes[1].Text)
	for _, n := range nodes {
		assert.True(t, n.Closed)
	}
}

func TestStream_AnswerSettlesStreamedText(t *testing.T) {
	src := testutil.NewTraceBuilder().
		Start("m1", trace.StepInvokeModel).
		Chunk("m1", "Hi ").
		Chunk("m1", "there").
		Answer("m1", "Hi there!").
		Source()

	inv := New(nil).Stream(context.Background(), src)
	value, err := await(t, inv)
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", value)

	nodes := inv.Sink.Snapshot()
	require.Len(t, nodes, 1)
	assert.Equal(t, "Hi there!", nodes[0].Text)
}

func TestStream_AnswerWithoutChunks(t *testing.T) {
	src := testutil.NewTraceBuilder().Answer("m1", "plain").Source()

	inv := New(nil).Stream(context.Background(), src)
	value, err := await(t, inv)
	require.NoError(t, err)
	assert.Equal(t, "plain", value)

	nodes := inv.Sink.Snapshot()
	require.Len(t, nodes, 1)
	assert.Equal(t, "plain", nodes[0].Text)
}

func TestStream_AnswerDivergingFromStreamedText(t *testing.T) {
	src := testutil.NewTraceBuilder().
		Chunk("m1", "Hi ").
		Chunk("m1", "there").
		Answer("m1", "Hello").
		Source()

	inv := New(nil).Stream(context.Background(), src)
	value, err := await(t, inv)
	require.NoError(t, err)
	assert.Equal(t, "Hello", value)

	nodes := inv.Sink.Snapshot()
	require.Len(t, nodes, 1)
	assert.Equal(t, "Hi there", nodes[0].Text)
	assert.True(t, nodes[0].Closed)
}

func TestStream_IgnoresOtherStepsAndUnknownKinds(t *testing.T) {
	src := testutil.NewTraceBuilder().
		Start("g", "graph").
		End("x", "summarize", trace.ToolCalls{Calls: []trace.ToolCall{{Name: "weather"}}}).
		Raw(trace.NewEvent(trace.Kind("on_custom_event"), "x", "custom", nil)).
		End("g", "graph", trace.Text{Text: "done"}).
		Source()

	inv := New(weatherComponents()).Stream(context.Background(), src)
	value, err := await(t, inv)
	require.NoError(t, err)
	assert.Equal(t, "done", value)
	assert.Zero(t, inv.Sink.Len())
}

func TestStream_UnmatchedToolResult(t *testing.T) {
	src := testutil.NewTraceBuilder().
		Chunk("a", "partial").
		ToolResult("t1", "weather", map[string]any{"temp": 72}).
		Source()

	inv := New(weatherComponents()).Stream(context.Background(), src)
	value, err := await(t, inv)
	require.ErrorIs(t, err, ErrUnmatchedToolResult)
	assert.Nil(t, value)

	nodes := inv.Sink.Snapshot()
	require.Len(t, nodes, 1, "no fragment may be appended for the unmatched result")
	assert.Equal(t, "partial", nodes[0].Text)
	assert.True(t, nodes[0].Closed)
	assert.ErrorIs(t, inv.Sink.Err(), ErrUnmatchedToolResult)
}

func TestStream_MismatchedToolName(t *testing.T) {
	src := testutil.NewTraceBuilder().
		ToolCall("m1", "weather", "").
		ToolResult("t1", "github", map[string]any{}).
		Source()

	inv := New(weatherComponents()).Stream(context.Background(), src)
	_, err := await(t, inv)
	require.ErrorIs(t, err, ErrUnmatchedToolResult)
}

func TestStream_ToolConflict(t *testing.T) {
	src := testutil.NewTraceBuilder().
		Chunk("a", "thinking").
		ToolCall("m1", "weather", "").
		ToolCall("m2", "weather", "").
		ToolResult("t1", "weather", 1).
		Source()

	inv := New(weatherComponents()).Stream(context.Background(), src)
	_, err := await(t, inv)
	require.ErrorIs(t, err, ErrToolConflict)

	nodes := inv.Sink.Snapshot()
	require.Len(t, nodes, 2)
	assert.True(t, nodes[0].Closed)
	assert.Equal(t, &ui.Fragment{Component: "Loading"}, nodes[1].Fragment, "first placeholder fragment must be unchanged")
	assert.Equal(t, ui.SlotAborted, nodes[1].State)
	assert.True(t, inv.Sink.Closed())
}

func TestStream_UnknownTool(t *testing.T) {
	src := testutil.NewTraceBuilder().ToolCall("m1", "stock-ticker", "").Source()

	inv := New(weatherComponents()).Stream(context.Background(), src)
	_, err := await(t, inv)
	require.ErrorIs(t, err, ErrUnknownTool)
	assert.Zero(t, inv.Sink.Len())
	assert.True(t, inv.Sink.Closed())
}

func TestStream_UnfinishedToolIsAborted(t *testing.T) {
	src := testutil.NewTraceBuilder().ToolCall("m1", "weather", "").Source()

	inv := New(weatherComponents()).Stream(context.Background(), src)
	value, err := await(t, inv)
	require.NoError(t, err)
	assert.Equal(t, []trace.ToolCall{{ID: "call-weather", Name: "weather"}}, value)

	nodes := inv.Sink.Snapshot()
	require.Len(t, nodes, 1)
	assert.Equal(t, ui.SlotAborted, nodes[0].State)
}

func TestStream_ToolErrorResult(t *testing.T) {
	src := testutil.NewTraceBuilder().
		ToolCall("m1", "weather", "").
		Raw(trace.NewToolEnd("t1", trace.StepInvokeTools, trace.ToolResult{Name: "weather", Error: "geocoding failed"})).
		Source()

	inv := New(weatherComponents()).Stream(context.Background(), src)
	value, err := await(t, inv)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"error": "geocoding failed"}, value)

	nodes := inv.Sink.Snapshot()
	require.Len(t, nodes, 1)
	assert.Equal(t, map[string]any{"error": "geocoding failed"}, nodes[0].Fragment.Props)
}

type failingSource struct {
	events []trace.Event
	err    error
	closed bool
}

func (s *failingSource) Next(context.Context) (trace.Event, error) {
	if len(s.events) == 0 {
		return trace.Event{}, s.err
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func (s *failingSource) Close() error {
	s.closed = true
	return nil
}

func TestStream_ProducerFailure(t *testing.T) {
	boom := errors.New("model backend unavailable")
	src := &failingSource{
		events: testutil.NewTraceBuilder().Chunk("a", "par").Answer("a", "partial answer").Events(),
		err:    boom,
	}

	inv := New(nil).Stream(context.Background(), src)
	value, err := await(t, inv)
	require.ErrorIs(t, err, boom)
	var perr *ProducerError
	require.ErrorAs(t, err, &perr)
	assert.Nil(t, value, "producer failure resolves to an empty value")
	assert.True(t, src.closed)

	nodes := inv.Sink.Snapshot()
	require.Len(t, nodes, 1)
	assert.Equal(t, "partial answer", nodes[0].Text)
	assert.True(t, nodes[0].Closed)
}

func TestStream_CancelStalledProducer(t *testing.T) {
	events := make(chan trace.Event, 1)
	stopped := make(chan struct{})
	src := trace.FromChannel(events, nil, func() { close(stopped) })
	events <- trace.NewTokenChunk("a", trace.StepInvokeModel, "waiting")

	ctx, cancel := context.WithCancel(context.Background())
	inv := New(nil).Stream(ctx, src)

	u, err := inv.Sink.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ui.OpAppend, u.Op)

	cancel()
	_, err = await(t, inv)
	require.ErrorIs(t, err, context.Canceled)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("source was not closed")
	}
	nodes := inv.Sink.Snapshot()
	require.Len(t, nodes, 1)
	assert.True(t, nodes[0].Closed)
	assert.ErrorIs(t, inv.Sink.Err(), context.Canceled)
}

func TestStream_ResultResolvesAfterSinkClose(t *testing.T) {
	src := testutil.NewTraceBuilder().Chunk("a", "x").Source()
	inv := New(nil).Stream(context.Background(), src)

	<-inv.Result.Done()
	assert.True(t, inv.Sink.Closed())

	v, err := inv.Result.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestResult_ValueBeforeResolution(t *testing.T) {
	r := newResult()
	_, err := r.Value()
	assert.ErrorIs(t, err, ErrNotResolved)

	r.resolve("first", nil)
	r.resolve("second", nil)
	v, err := r.Value()
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}

func TestStream_ConcurrentPassesAreIsolated(t *testing.T) {
	orch := New(weatherComponents())

	const n = 16
	var wg sync.WaitGroup
	invs := make([]*Invocation, n)
	for i := 0; i < n; i++ {
		src := testutil.NewTraceBuilder().
			ToolCall("m", "weather", "").
			ToolResult("t", "weather", i).
			Source()
		invs[i] = orch.Stream(context.Background(), src)
	}
	for i, inv := range invs {
		wg.Add(1)
		go func(i int, inv *Invocation) {
			defer wg.Done()
			v, err := await(t, inv)
			assert.NoError(t, err)
			assert.Equal(t, i, v)
		}(i, inv)
	}
	wg.Wait()
}

func TestRun_Synchronous(t *testing.T) {
	sink := ui.NewSink()
	v, err := New(nil).Run(context.Background(), testutil.NewTraceBuilder().Answer("m", "ok").Source(), sink)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.True(t, sink.Closed())
}

func TestStream_OptionsIDAndSettleHooks(t *testing.T) {
	src := testutil.NewTraceBuilder().Answer("m1", "done").Source()

	var (
		order   []string
		settled bool
	)
	inv := New(nil).Stream(context.Background(), src, func(so *StreamOptions) {
		so.ID = "inv-1"
		so.OnSettle = append(so.OnSettle,
			func(inv *Invocation, value any, err error) {
				assert.True(t, inv.Sink.Closed())
				_, rerr := inv.Result.Value()
				assert.ErrorIs(t, rerr, ErrNotResolved)
				assert.Equal(t, "done", value)
				assert.NoError(t, err)
				order = append(order, "first")
			},
			func(*Invocation, any, error) {
				order = append(order, "second")
				settled = true
			},
		)
	})
	assert.Equal(t, "inv-1", inv.ID)

	_, err := await(t, inv)
	require.NoError(t, err)
	assert.True(t, settled)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestStream_PanickingFinalComponent(t *testing.T) {
	components := ui.Components{
		"weather": {
			Loading: func() ui.Fragment { return ui.Fragment{Component: "Loading"} },
			Final:   func(any) ui.Fragment { panic("bad props") },
		},
	}
	src := testutil.NewTraceBuilder().
		Chunk("a", "x").
		ToolCall("m1", "weather", "").
		ToolResult("t1", "weather", map[string]any{"temp": 72}).
		Source()

	inv := New(components).Stream(context.Background(), src)
	value, err := await(t, inv)
	require.ErrorIs(t, err, ErrComponentPanic)
	assert.ErrorContains(t, err, "bad props")
	assert.Nil(t, value)

	assert.True(t, inv.Sink.Closed())
	assert.ErrorIs(t, inv.Sink.Err(), ErrComponentPanic)

	nodes := inv.Sink.Snapshot()
	require.Len(t, nodes, 2)
	assert.Equal(t, "x", nodes[0].Text)
	assert.True(t, nodes[0].Closed)
	assert.Equal(t, ui.SlotAborted, nodes[1].State)
	assert.Equal(t, "Loading", nodes[1].Fragment.Component)
}

func TestStream_PanickingLoadingComponent(t *testing.T) {
	components := ui.Components{
		"weather": {
			Loading: func() ui.Fragment { panic("no loader") },
			Final:   func(result any) ui.Fragment { return ui.Fragment{Component: "Final", Props: result} },
		},
	}
	src := testutil.NewTraceBuilder().
		Chunk("a", "x").
		ToolCall("m1", "weather", "").
		Source()

	inv := New(components).Stream(context.Background(), src)
	_, err := await(t, inv)
	require.ErrorIs(t, err, ErrComponentPanic)

	assert.True(t, inv.Sink.Closed())
	nodes := inv.Sink.Snapshot()
	require.Len(t, nodes, 1)
	assert.True(t, nodes[0].Closed)
}

// interleave merges the per-run chunk lists in a random order that keeps the
// order within each run. It returns the merged trace and the run ids in order
// of first appearance.
func interleave(rng *rand.Rand, runs map[string][]string) (*testutil.TraceBuilder, []string) {
	ids := make([]string, 0, len(runs))
	for id := range runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	next := make(map[string]int, len(runs))
	b := testutil.NewTraceBuilder()
	var first []string
	for {
		var pending []string
		for _, id := range ids {
			if next[id] < len(runs[id]) {
				pending = append(pending, id)
			}
		}
		if len(pending) == 0 {
			return b, first
		}
		id := pending[rng.Intn(len(pending))]
		if next[id] == 0 {
			first = append(first, id)
		}
		b.Chunk(id, runs[id][next[id]])
		next[id]++
	}
}

func TestStream_InterleavingsPreservePerRunText(t *testing.T) {
	runs := map[string][]string{
		"r1": {"The ", "quick ", "fox"},
		"r2": {"a", "b", "c", "d"},
		"r3": {"solo"},
		"r4": {"", "late ", "start"},
	}

	for seed := int64(0); seed < 25; seed++ {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			b, order := interleave(rng, runs)
			withTool := seed%2 == 1
			if withTool {
				b.ToolCall("m1", "weather", "").ToolResult("t1", "weather", "sunny")
			}

			inv := New(weatherComponents()).Stream(context.Background(), b.Source())
			_, err := await(t, inv)
			require.NoError(t, err)
			require.True(t, inv.Sink.Closed())

			var texts []string
			for _, n := range inv.Sink.Snapshot() {
				assert.True(t, n.Closed, "node %s (%s) left open", n.ID, n.Kind)
				if n.Kind == ui.NodeText {
					texts = append(texts, n.Text)
				}
			}

			require.Len(t, texts, len(order))
			for i, id := range order {
				assert.Equal(t, strings.Join(runs[id], ""), texts[i], "run %s", id)
			}
		})
	}
}
