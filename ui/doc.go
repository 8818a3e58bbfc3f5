// Package ui provides the presentation side of a generative UI turn: renderable
// fragments, the static tool → component mapping, and the Sink that delivers an
// ordered, append-only tree of nodes to a single remote consumer.
//
// A Sink holds three node kinds:
//
//   - fragment: a static renderable appended once
//   - text: a TextStream whose content grows until it is closed
//   - slot: a Slot that starts in a loading state and is resolved exactly once
//
// Every mutation is recorded as an Update and delivered in mutation order via
// Next or Updates. Writers never block; the Sink is meant to be driven by a
// single goroutine while one consumer reads concurrently.
package ui
