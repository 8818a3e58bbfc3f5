// Package model defines the provider-neutral model interface used by the agent
// runtime. Concrete adapters live in the openai and anthropic sub-packages.
//
// Generate returns a response channel plus an error channel. With Stream set,
// providers emit partial responses carrying text deltas followed by one final
// response carrying the full text and any tool calls.
package model
