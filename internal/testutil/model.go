package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/hupe1980/genui/model"
)

// Turn scripts one Generate call of a ScriptedModel.
type Turn struct {
	Chunks    []string         // streamed text deltas; joined they form the final text
	ToolCalls []model.ToolCall // tool calls of the final response
	Err       error            // returned after the chunks instead of a final response
	Block     bool             // wait for ctx cancellation after the chunks
}

// Say scripts a plain text answer streamed as the given chunks.
func Say(chunks ...string) Turn { return Turn{Chunks: chunks} }

// Call scripts a single tool call.
func Call(tool, args string) Turn {
	return Turn{ToolCalls: []model.ToolCall{{ID: "call-" + tool, Name: tool, Arguments: json.RawMessage(args)}}}
}

// ErrScriptExhausted is returned when more calls arrive than were scripted.
var ErrScriptExhausted = errors.New("testutil: script exhausted")

// ScriptedModel is a model.Model replaying scripted turns in order and
// recording every request it receives.
type ScriptedModel struct {
	mu       sync.Mutex
	turns    []Turn
	requests []model.Request
}

// NewScriptedModel creates a model replaying turns.
func NewScriptedModel(turns ...Turn) *ScriptedModel {
	return &ScriptedModel{turns: turns}
}

// Requests returns the requests received so far.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Generate implements model.Model.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	var (
		turn Turn
		ok   bool
	)
	if len(m.turns) > 0 {
		turn, m.turns, ok = m.turns[0], m.turns[1:], true
	}
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if !ok {
			errCh <- ErrScriptExhausted
			return
		}
		text := ""
		for _, c := range turn.Chunks {
			text += c
			if !req.Stream {
				continue
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case respCh <- model.Response{Partial: true, Text: c}:
			}
		}
		if turn.Block {
			<-ctx.Done()
			errCh <- ctx.Err()
			return
		}
		if turn.Err != nil {
			errCh <- turn.Err
			return
		}
		respCh <- model.Response{
			Text:         text,
			ToolCalls:    turn.ToolCalls,
			FinishReason: "stop",
			Usage:        &model.TokenUsage{TotalTokens: len(text)},
		}
	}()
	return respCh, errCh
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "mock", SupportsTools: true}
}
