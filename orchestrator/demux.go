package orchestrator

import (
	"fmt"

	"github.com/hupe1980/genui/logging"
	"github.com/hupe1980/genui/trace"
	"github.com/hupe1980/genui/ui"
)

// pass is the state of one orchestrator invocation. It is owned by a single
// goroutine and needs no locking.
type pass struct {
	decisionStep string
	logger       logging.Logger

	texts *textStreams
	tools *placeholders

	last   any
	events int
}

func newPass(sink *ui.Sink, components ui.Components, decisionStep string, logger logging.Logger) *pass {
	return &pass{
		decisionStep: decisionStep,
		logger:       logger,
		texts:        newTextStreams(sink, logger),
		tools:        newPlaceholders(sink, components),
	}
}

// handle classifies one event and applies its state transition.
func (p *pass) handle(ev trace.Event) error {
	p.events++
	if out, ok := ev.Output(); ok {
		p.last = out
	}

	switch ev.Kind {
	case trace.KindRunEnd:
		if ev.Name != p.decisionStep {
			return nil
		}
		switch payload := ev.Payload.(type) {
		case trace.ToolCalls:
			return p.selectTool(ev.RunID, payload.Calls)
		case trace.Text:
			return p.texts.settle(ev.RunID, payload.Text)
		}
	case trace.KindTokenChunk:
		if chunk, ok := ev.Payload.(trace.Chunk); ok {
			return p.texts.append(ev.RunID, chunk.Text)
		}
	case trace.KindToolEnd:
		if res, ok := ev.Payload.(trace.ToolResult); ok {
			return p.completeTool(ev.RunID, res)
		}
	default:
		if !ev.Kind.Known() {
			p.logger.Debug("orchestrator.event.ignored", "kind", string(ev.Kind), "run_id", ev.RunID)
		}
	}
	return nil
}

func (p *pass) selectTool(runID string, calls []trace.ToolCall) error {
	if len(calls) == 0 {
		return nil
	}
	call := calls[0]
	if len(calls) > 1 {
		p.logger.Warn("orchestrator.tool.extra_calls_ignored", "run_id", runID, "tool", call.Name, "count", len(calls))
	}
	if p.tools.isOpen() {
		return fmt.Errorf("%w: %q selected while %q is still running", ErrToolConflict, call.Name, p.tools.openName())
	}
	if err := p.tools.open(call); err != nil {
		return err
	}
	p.logger.Debug("orchestrator.tool.open", "run_id", runID, "tool", call.Name, "call_id", call.ID)
	return nil
}

func (p *pass) completeTool(runID string, res trace.ToolResult) error {
	if !p.tools.isOpen() {
		return fmt.Errorf("%w: %q: %w", ErrUnmatchedToolResult, res.Name, ErrNoOpenPlaceholder)
	}
	if res.Name != "" && res.Name != p.tools.openName() {
		return fmt.Errorf("%w: got %q while %q is open", ErrUnmatchedToolResult, res.Name, p.tools.openName())
	}
	var value any = res.Result
	if res.Error != "" {
		value = map[string]any{"error": res.Error}
	}
	if err := p.tools.finalize(value); err != nil {
		return err
	}
	p.logger.Debug("orchestrator.tool.final", "run_id", runID, "tool", res.Name, "failed", res.Error != "")
	return nil
}

// finish closes every open text stream and aborts an open placeholder.
func (p *pass) finish() error {
	streamErr := p.texts.closeAll()
	if err := p.tools.abort(); err != nil {
		return err
	}
	return streamErr
}
