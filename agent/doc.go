// Package agent contains the conversational tool-calling runtime whose
// execution produces the event trace consumed by the orchestrator.
//
// One turn runs a two-step graph:
//
//  1. invoke_model: the model sees the conversation plus the tool
//     declarations. Text deltas are emitted as token chunks; the run ends
//     with either the selected tool calls or the final text.
//  2. invoke_tools: only when a tool was selected. The first call is
//     executed and reported through a tool-end event; the run ends with the
//     same result.
//
// Every run carries a fresh run id. Tool failures (including panics) become
// error results rather than aborting the turn; model failures terminate the
// trace with a producer error.
package agent
