// Package session stores per-session conversation history. The engine loads
// the history before each turn and appends the turn once its result resolves.
//
// Add additional backends (Redis, Postgres, etc.) by implementing Store;
// only the wiring layer needs to decide which implementation to instantiate.
package session
