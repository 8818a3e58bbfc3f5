// Package trace defines the execution trace emitted by an agent run: a single
// ordered sequence of heterogeneous events (step start/end, token chunks, tool
// completions) correlated by run id.
//
// Payloads form a closed set enforced by an unexported marker method, so
// consumers switch on concrete payload types instead of probing shapes at
// runtime. The Source interface models the asynchronous sequence itself and is
// consumed with a single forward pass.
package trace
