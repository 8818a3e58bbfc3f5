// Package genui provides a high-level façade that wires a model, the default
// tools and their UI components into an engine. Most applications interact
// with this package by:
//  1. Creating a GenUI via New() with a model (optionally overriding tools,
//     components and stores)
//  2. Invoking turns asynchronously (Invoke) and consuming the live sink, or
//     synchronously (InvokeSync) for the settled UI state
//
// Every tool offered to the model must have a component registered under the
// same name: a tool call is rendered as a loading placeholder that is replaced
// by the final component once the tool returns.
package genui

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hupe1980/genui/agent"
	"github.com/hupe1980/genui/engine"
	"github.com/hupe1980/genui/logging"
	"github.com/hupe1980/genui/model"
	"github.com/hupe1980/genui/orchestrator"
	"github.com/hupe1980/genui/session"
	"github.com/hupe1980/genui/tool"
	"github.com/hupe1980/genui/tool/github"
	"github.com/hupe1980/genui/tool/invoice"
	"github.com/hupe1980/genui/tool/weather"
	"github.com/hupe1980/genui/ui"
)

// ErrMissingComponent is returned by New when a tool has no component.
var ErrMissingComponent = errors.New("genui: tool has no component")

// Options configures the GenUI instance.
type Options struct {
	// EngineConfig sets concurrency limits and timeouts.
	EngineConfig engine.Config

	// Instruction is the system prompt. Defaults to agent.DefaultInstruction.
	Instruction agent.Instruction

	// EnableStreaming streams model text as token chunks.
	EnableStreaming bool

	// Tools offered to the model. Defaults to DefaultTools().
	Tools []tool.Tool

	// Components maps tool names to presentation components.
	// Defaults to DefaultComponents().
	Components ui.Components

	// SessionStore defaults to an in-memory store.
	SessionStore session.Store

	// Callbacks are registered with the engine in order.
	Callbacks []engine.Callback

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// GenUI is the high-level façade aggregating the agent, orchestrator and engine.
type GenUI struct {
	opts   Options
	tools  *tool.Registry
	engine *engine.Engine
}

// DefaultTools returns the github-repo, weather-data and invoice-parser tools
// talking to their public endpoints.
func DefaultTools() []tool.Tool {
	return []tool.Tool{github.New(), weather.New(), invoice.New()}
}

// DefaultComponents returns the components of the default tools.
func DefaultComponents() ui.Components {
	return ui.Components{
		github.Name:  ui.StaticComponent("github-loading", "github-card"),
		weather.Name: ui.StaticComponent("weather-loading", "weather-card"),
		invoice.Name: ui.StaticComponent("invoice-loading", "invoice-card"),
	}
}

// New creates a GenUI instance driving llm.
func New(llm model.Model, optFns ...func(o *Options)) (*GenUI, error) {
	opts := Options{
		EngineConfig:    engine.DefaultConfig,
		Instruction:     agent.NewInstructionFromText(agent.DefaultInstruction),
		EnableStreaming: true,
		SessionStore:    session.NewInMemoryStore(),
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Tools == nil {
		opts.Tools = DefaultTools()
	}
	if opts.Components == nil {
		opts.Components = DefaultComponents()
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	reg, err := tool.NewRegistry(opts.Tools...)
	if err != nil {
		return nil, err
	}
	reg.SetLogger(component(opts.Logger, "tool"))

	var missing []string
	for _, name := range reg.Names() {
		if _, ok := opts.Components.Lookup(name); !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %v", ErrMissingComponent, missing)
	}

	a := agent.New(llm, reg, func(o *agent.Options) {
		o.Instruction = opts.Instruction
		o.EnableStreaming = opts.EnableStreaming
		o.Logger = component(opts.Logger, "agent")
	})

	orch := orchestrator.New(opts.Components, func(o *orchestrator.Options) {
		o.Logger = component(opts.Logger, "orchestrator")
	})

	e := engine.New(a, orch, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.SessionStore = opts.SessionStore
		o.Callbacks = opts.Callbacks
		o.Logger = component(opts.Logger, "engine")
	})

	return &GenUI{opts: opts, tools: reg, engine: e}, nil
}

// Engine returns the underlying engine.
func (g *GenUI) Engine() *engine.Engine { return g.engine }

// Tools returns the tool registry.
func (g *GenUI) Tools() *tool.Registry { return g.tools }

// Invoke starts a turn and returns the live invocation.
func (g *GenUI) Invoke(ctx context.Context, sessionID, input string) (*orchestrator.Invocation, error) {
	return g.engine.Invoke(ctx, sessionID, input)
}

// InvokeSync runs a turn to completion.
func (g *GenUI) InvokeSync(ctx context.Context, sessionID, input string) (*engine.Outcome, error) {
	return g.engine.InvokeSync(ctx, sessionID, input)
}

// StopInvocation cancels a running turn.
func (g *GenUI) StopInvocation(invocationID string) error {
	return g.engine.StopInvocation(invocationID)
}

func component(l logging.Logger, name string) logging.Logger {
	if sl, ok := l.(*logging.StructuredLogger); ok {
		return sl.WithComponent(name)
	}
	return l
}
