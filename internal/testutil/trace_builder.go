package testutil

import (
	"encoding/json"

	"github.com/hupe1980/genui/trace"
)

// TraceBuilder assembles an ordered trace for tests.
// Example:
//
//	events := NewTraceBuilder().
//		ToolCall("m1", "weather", `{"city":"Berlin"}`).
//		ToolResult("t1", "weather", map[string]any{"temp": 72}).
//		Events()
type TraceBuilder struct {
	events []trace.Event
}

// NewTraceBuilder creates an empty builder.
func NewTraceBuilder() *TraceBuilder { return &TraceBuilder{} }

// Start appends a run-start event.
func (b *TraceBuilder) Start(runID, step string) *TraceBuilder {
	b.events = append(b.events, trace.NewRunStart(runID, step))
	return b
}

// Chunk appends a token chunk for runID.
func (b *TraceBuilder) Chunk(runID, text string) *TraceBuilder {
	b.events = append(b.events, trace.NewTokenChunk(runID, trace.StepInvokeModel, text))
	return b
}

// Answer appends a decision-step run-end carrying a text result.
func (b *TraceBuilder) Answer(runID, text string) *TraceBuilder {
	b.events = append(b.events, trace.NewRunEnd(runID, trace.StepInvokeModel, trace.Text{Text: text}))
	return b
}

// ToolCall appends a decision-step run-end selecting a single tool.
func (b *TraceBuilder) ToolCall(runID, tool, args string) *TraceBuilder {
	call := trace.ToolCall{ID: "call-" + tool, Name: tool}
	if args != "" {
		call.Arguments = json.RawMessage(args)
	}
	b.events = append(b.events, trace.NewRunEnd(runID, trace.StepInvokeModel, trace.ToolCalls{Calls: []trace.ToolCall{call}}))
	return b
}

// ToolResult appends a tool-end event.
func (b *TraceBuilder) ToolResult(runID, tool string, result any) *TraceBuilder {
	b.events = append(b.events, trace.NewToolEnd(runID, trace.StepInvokeTools, trace.ToolResult{Name: tool, CallID: "call-" + tool, Result: result}))
	return b
}

// End appends a run-end event for an arbitrary step.
func (b *TraceBuilder) End(runID, step string, output trace.Payload) *TraceBuilder {
	b.events = append(b.events, trace.NewRunEnd(runID, step, output))
	return b
}

// Raw appends an arbitrary event.
func (b *TraceBuilder) Raw(ev trace.Event) *TraceBuilder {
	b.events = append(b.events, ev)
	return b
}

// Events returns the built events.
func (b *TraceBuilder) Events() []trace.Event {
	out := make([]trace.Event, len(b.events))
	copy(out, b.events)
	return out
}

// Source returns a trace.Source replaying the built events.
func (b *TraceBuilder) Source() trace.Source { return trace.FromSlice(b.Events()...) }
