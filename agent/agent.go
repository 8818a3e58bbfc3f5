package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/genui/internal/prompt"
	"github.com/hupe1980/genui/logging"
	"github.com/hupe1980/genui/model"
	"github.com/hupe1980/genui/tool"
	"github.com/hupe1980/genui/trace"
)

// DefaultInstruction is the system prompt used when none is configured.
const DefaultInstruction = "You are a helpful assistant. You're provided a list of tools, and an input from the user.\n" +
	"Your job is to determine whether or not you have a tool which can handle the users input, or respond with plain text."

// Options configures an Agent.
type Options struct {
	Instruction        Instruction
	EnableStreaming    bool
	ToolTimeout        time.Duration
	MaxHistoryMessages int
	EventBuffer        int
	Logger             logging.Logger
}

// Agent drives one model plus a tool registry through the two-step graph.
// It holds no per-turn state and is safe for concurrent use.
type Agent struct {
	llm   model.Model
	tools *tool.Registry
	opts  Options
}

// New creates an agent with sensible defaults: streaming enabled, a
// 15-second tool timeout and a 20-message history window.
func New(llm model.Model, tools *tool.Registry, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Instruction:        NewInstructionFromText(DefaultInstruction),
		EnableStreaming:    true,
		ToolTimeout:        15 * time.Second,
		MaxHistoryMessages: 20,
		EventBuffer:        64,
		Logger:             logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.EventBuffer < 0 {
		opts.EventBuffer = 0
	}
	if tools == nil {
		tools, _ = tool.NewRegistry()
	}
	return &Agent{llm: llm, tools: tools, opts: opts}
}

// Tools returns the agent's tool registry.
func (a *Agent) Tools() *tool.Registry { return a.tools }

// Run starts a turn over history (which must end with the new user input) and
// returns its trace. Closing the returned Run cancels the turn.
func (a *Agent) Run(ctx context.Context, history []model.Message) *Run {
	ctx, cancel := context.WithCancel(ctx)
	events := make(chan trace.Event, a.opts.EventBuffer)
	errs := make(chan error, 1)

	r := &Run{Source: trace.FromChannel(events, errs, cancel)}
	go func() {
		defer cancel()
		defer close(errs)
		defer close(events)
		t := &turn{agent: a, ctx: ctx, events: events, run: r}
		if err := t.execute(a.window(history)); err != nil {
			errs <- err
		}
	}()
	return r
}

func (a *Agent) window(history []model.Message) []model.Message {
	if a.opts.MaxHistoryMessages <= 0 || len(history) <= a.opts.MaxHistoryMessages {
		return history
	}
	h := history[len(history)-a.opts.MaxHistoryMessages:]
	// a leading tool message would lose its assistant tool call
	for len(h) > 1 && h[0].Role == model.RoleTool {
		h = h[1:]
	}
	return h
}

// Run is the trace of one turn. It implements trace.Source and, once the
// source is exhausted, exposes the messages the turn added to the conversation.
type Run struct {
	trace.Source

	mu       sync.Mutex
	messages []model.Message
}

// Messages returns the assistant (and tool) messages produced by the turn.
func (r *Run) Messages() []model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

func (r *Run) record(msgs ...model.Message) {
	r.mu.Lock()
	r.messages = append(r.messages, msgs...)
	r.mu.Unlock()
}

// turn holds the state of a single graph execution.
type turn struct {
	agent  *Agent
	ctx    context.Context
	events chan<- trace.Event
	run    *Run
}

func (t *turn) emit(ev trace.Event) error {
	select {
	case <-t.ctx.Done():
		return t.ctx.Err()
	case t.events <- ev:
		return nil
	}
}

func (t *turn) execute(history []model.Message) error {
	calls, err := t.invokeModel(history)
	if err != nil {
		return err
	}
	if len(calls) == 0 {
		return nil
	}
	return t.invokeTools(calls)
}

// invokeModel runs the decision step and returns the selected tool calls.
func (t *turn) invokeModel(history []model.Message) ([]model.ToolCall, error) {
	a := t.agent
	runID := trace.NewID()
	if err := t.emit(trace.NewRunStart(runID, trace.StepInvokeModel)); err != nil {
		return nil, err
	}

	instructions, err := a.opts.Instruction.Resolve(t.ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve instruction: %w", err)
	}
	instructions, err = prompt.Render(instructions, map[string]any{
		"tools": a.tools.Names(),
		"today": time.Now().Format("2006-01-02"),
	})
	if err != nil {
		return nil, err
	}

	req := model.Request{
		Instructions: instructions,
		Messages:     history,
		Tools:        a.tools.Definitions(),
		Stream:       a.opts.EnableStreaming,
	}

	start := time.Now()
	final, err := t.generate(runID, req)
	t.logLLMCall(final, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if len(final.ToolCalls) > 0 {
		calls := make([]trace.ToolCall, len(final.ToolCalls))
		for i, c := range final.ToolCalls {
			calls[i] = trace.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
		}
		if err := t.emit(trace.NewRunEnd(runID, trace.StepInvokeModel, trace.ToolCalls{Calls: calls})); err != nil {
			return nil, err
		}
		return final.ToolCalls, nil
	}

	t.run.record(model.AssistantMessage(final.Text))
	return nil, t.emit(trace.NewRunEnd(runID, trace.StepInvokeModel, trace.Text{Text: final.Text}))
}

// generate drains the model channels, forwarding text deltas as token chunks.
func (t *turn) generate(runID string, req model.Request) (model.Response, error) {
	respCh, errCh := t.agent.llm.Generate(t.ctx, req)

	var (
		final    model.Response
		gotFinal bool
	)
	for resp := range respCh {
		if resp.Partial {
			if resp.Text == "" {
				continue
			}
			if err := t.emit(trace.NewTokenChunk(runID, trace.StepInvokeModel, resp.Text)); err != nil {
				return model.Response{}, err
			}
			continue
		}
		final = resp
		gotFinal = true
	}
	if err := <-errCh; err != nil {
		return model.Response{}, fmt.Errorf("model %s: %w", t.agent.llm.Info().Name, err)
	}
	if err := t.ctx.Err(); err != nil {
		return model.Response{}, err
	}
	if !gotFinal {
		return model.Response{}, errors.New("model returned no final response")
	}
	return final, nil
}

// invokeTools executes the first selected call and reports its result.
func (t *turn) invokeTools(calls []model.ToolCall) error {
	a := t.agent
	call := calls[0]
	if len(calls) > 1 {
		a.opts.Logger.Warn("agent.tool.extra_calls_ignored", "tool", call.Name, "count", len(calls))
	}

	runID := trace.NewID()
	if err := t.emit(trace.NewRunStart(runID, trace.StepInvokeTools)); err != nil {
		return err
	}

	toolCtx := t.ctx
	if a.opts.ToolTimeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(t.ctx, a.opts.ToolTimeout)
		defer cancel()
	}

	result := trace.ToolResult{Name: call.Name, CallID: call.ID}
	value, err := a.tools.Call(toolCtx, call.Name, call.Arguments)
	if err != nil {
		result.Error = toolErrorMessage(err)
	} else {
		result.Result = value
	}

	if err := t.emit(trace.NewToolEnd(runID, trace.StepInvokeTools, result)); err != nil {
		return err
	}

	t.run.record(
		model.Message{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{call}},
		model.Message{Role: model.RoleTool, ToolCallID: call.ID, Content: toolContent(result)},
	)

	return t.emit(trace.NewRunEnd(runID, trace.StepInvokeTools, result))
}

func (t *turn) logLLMCall(final model.Response, dur time.Duration, err error) {
	logger := t.agent.opts.Logger
	name := t.agent.llm.Info().Name
	tokens := 0
	if final.Usage != nil {
		tokens = final.Usage.TotalTokens
	}
	if sl, ok := logger.(*logging.StructuredLogger); ok {
		sl.LogLLMCall(name, tokens, dur, err)
		return
	}
	if err != nil {
		logger.Error("agent.model.error", "model", name, "error", err.Error())
		return
	}
	logger.Debug("agent.model.complete", "model", name, "tool_calls", len(final.ToolCalls), "duration_ms", dur.Milliseconds())
}

func toolErrorMessage(err error) string {
	var toolErr *tool.ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Message
	}
	return err.Error()
}

func toolContent(res trace.ToolResult) string {
	var v any = res.Result
	if res.Error != "" {
		v = map[string]any{"error": res.Error}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
