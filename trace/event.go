package trace

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a trace event. Values outside the known set are valid and
// must be tolerated by consumers.
type Kind string

const (
	// KindRunStart marks the beginning of a run (graph step or model call).
	KindRunStart Kind = "run-start"
	// KindRunEnd marks the completion of a run and carries its output.
	KindRunEnd Kind = "run-end"
	// KindTokenChunk carries one token-level fragment of model output.
	KindTokenChunk Kind = "token-chunk"
	// KindToolEnd carries the result of a completed tool invocation.
	KindToolEnd Kind = "tool-end"
)

// Known reports whether k belongs to the closed set of kinds above.
func (k Kind) Known() bool {
	switch k {
	case KindRunStart, KindRunEnd, KindTokenChunk, KindToolEnd:
		return true
	default:
		return false
	}
}

// Step names used by the two-node agent graph.
const (
	StepInvokeModel = "invoke_model"
	StepInvokeTools = "invoke_tools"
)

// Payload is the discriminated union carried by an Event.
type Payload interface{ isPayload() }

// ToolCall names a tool selected by the model together with its raw JSON arguments.
type ToolCall struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolCalls is the run-end payload of a decision step that selected tools.
type ToolCalls struct {
	Calls []ToolCall `json:"calls"`
}

func (ToolCalls) isPayload() {}

// Text is a plain-text run result.
type Text struct {
	Text string `json:"text"`
}

func (Text) isPayload() {}

// Chunk is a single token fragment streamed by a model.
type Chunk struct {
	Text string `json:"text"`
}

func (Chunk) isPayload() {}

// ToolResult is the outcome of one tool invocation. Error is set instead of
// Result when the tool failed.
type ToolResult struct {
	Name   string `json:"name"`
	CallID string `json:"call_id,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (ToolResult) isPayload() {}

// Event is one item of the trace. Events of the same RunID arrive in the order
// the run produced them; events of different runs may interleave arbitrarily.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	RunID     string    `json:"run_id"`
	Name      string    `json:"name,omitempty"`
	Payload   Payload   `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an event with a fresh id and UTC timestamp.
func NewEvent(kind Kind, runID, name string, payload Payload) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		RunID:     runID,
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewRunStart creates a run-start event for the named step.
func NewRunStart(runID, name string) Event { return NewEvent(KindRunStart, runID, name, nil) }

// NewRunEnd creates a run-end event carrying the step output.
func NewRunEnd(runID, name string, output Payload) Event {
	return NewEvent(KindRunEnd, runID, name, output)
}

// NewTokenChunk creates a token-chunk event for a model run.
func NewTokenChunk(runID, name, text string) Event {
	return NewEvent(KindTokenChunk, runID, name, Chunk{Text: text})
}

// NewToolEnd creates a tool-end event.
func NewToolEnd(runID, name string, result ToolResult) Event {
	return NewEvent(KindToolEnd, runID, name, result)
}

// NewID generates a run identifier.
func NewID() string { return uuid.NewString() }

// Output returns the output value carried by the event, if any. Token chunks
// and run-start events never carry output.
func (e Event) Output() (any, bool) {
	switch e.Kind {
	case KindRunEnd, KindToolEnd:
	default:
		return nil, false
	}
	switch p := e.Payload.(type) {
	case Text:
		return p.Text, true
	case ToolCalls:
		return p.Calls, true
	case ToolResult:
		if p.Error != "" {
			return map[string]any{"error": p.Error}, true
		}
		return p.Result, true
	default:
		return nil, false
	}
}
