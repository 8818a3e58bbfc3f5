// Package logging provides the minimal Logger interface used across genui and
// adapters over log/slog.
//
//   - Logger is the interface components depend on
//   - SlogAdapter wraps an existing *slog.Logger
//   - StructuredLogger adds component/session context and domain helpers
//   - NoOpLogger discards everything (tests, library defaults)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(a, orch, func(o *engine.Options) { o.Logger = logger })
package logging
