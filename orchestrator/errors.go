package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrToolConflict is returned when a tool is selected while another tool
	// placeholder is still open. Only one tool call per turn is supported.
	ErrToolConflict = errors.New("tool conflict")
	// ErrUnmatchedToolResult is returned for a tool result that no open
	// placeholder is waiting for.
	ErrUnmatchedToolResult = errors.New("unmatched tool result")
	// ErrUnknownTool is returned when the selected tool has no component.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrNoOpenPlaceholder is returned by the placeholder manager when
	// finalizing without an open placeholder.
	ErrNoOpenPlaceholder = errors.New("no open placeholder")
	// ErrComponentPanic is returned when a Loading or Final factory panics.
	ErrComponentPanic = errors.New("component panicked")
	// ErrNotResolved is returned by Result.Value before resolution.
	ErrNotResolved = errors.New("result not resolved")
)

// ProducerError wraps a failure of the trace source itself, including
// cancellation of the pass context.
type ProducerError struct {
	Err error
}

func (e *ProducerError) Error() string { return fmt.Sprintf("trace producer failed: %v", e.Err) }

// Unwrap returns the underlying producer error.
func (e *ProducerError) Unwrap() error { return e.Err }
