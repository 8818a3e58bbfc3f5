// Package orchestrator turns an agent trace into a live generative UI.
//
// One orchestrator pass consumes a trace.Source in a single forward pass and
// builds a ui.Sink as it goes:
//
//   - token chunks are appended to one text stream per run id
//   - a tool selected by the decision step opens a loading slot, and the
//     matching tool result swaps it to the tool's final fragment
//   - once the source is exhausted (or fails) every open stream is closed, the
//     slot is aborted if still loading, the sink is closed and the Result
//     resolves to the last output value observed
//
// All pass state lives in the pass itself, so any number of passes may run
// concurrently with a shared Orchestrator.
package orchestrator
