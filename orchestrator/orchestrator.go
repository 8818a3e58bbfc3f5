package orchestrator

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/genui/logging"
	"github.com/hupe1980/genui/trace"
	"github.com/hupe1980/genui/ui"
)

// Options configures an Orchestrator.
type Options struct {
	// DecisionStep is the graph step whose run-end decides between a tool
	// call and a text answer. Defaults to trace.StepInvokeModel.
	DecisionStep string

	// Logger defaults to a NoOpLogger.
	Logger logging.Logger
}

// Orchestrator drives orchestrator passes against a fixed tool → component
// mapping. It holds no per-pass state and is safe for concurrent use.
type Orchestrator struct {
	components ui.Components
	opts       Options
}

// New creates an Orchestrator for the given components.
func New(components ui.Components, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		DecisionStep: trace.StepInvokeModel,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if components == nil {
		components = ui.Components{}
	}
	return &Orchestrator{components: components, opts: opts}
}

// Components returns the tool → component mapping.
func (o *Orchestrator) Components() ui.Components { return o.components }

// Invocation is the handle of a running pass: the live sink and the terminal
// result. The result resolves only after the sink is closed.
type Invocation struct {
	ID     string
	Sink   *ui.Sink
	Result *Result
}

// StreamOptions configure a single Stream call.
type StreamOptions struct {
	// ID overrides the generated invocation id.
	ID string

	// OnSettle hooks run in order after the sink closed and before the
	// result resolves, so anything they record is visible to Await callers.
	OnSettle []func(inv *Invocation, value any, err error)
}

// Stream starts a pass over src in a new goroutine and returns immediately.
// Cancelling ctx stops the pass, closes src and closes the sink with the
// cancellation error.
func (o *Orchestrator) Stream(ctx context.Context, src trace.Source, optFns ...func(so *StreamOptions)) *Invocation {
	var so StreamOptions
	for _, fn := range optFns {
		fn(&so)
	}
	if so.ID == "" {
		so.ID = uuid.NewString()
	}

	inv := &Invocation{
		ID:     so.ID,
		Sink:   ui.NewSink(),
		Result: newResult(),
	}
	go func() {
		value, err := o.Run(ctx, src, inv.Sink)
		for _, fn := range so.OnSettle {
			fn(inv, value, err)
		}
		inv.Result.resolve(value, err)
	}()
	return inv
}

// Run performs a pass synchronously, writing into sink, and returns the
// terminal value. sink is always closed on return and src is always closed.
func (o *Orchestrator) Run(ctx context.Context, src trace.Source, sink *ui.Sink) (any, error) {
	defer func() { _ = src.Close() }()

	start := time.Now()
	p := newPass(sink, o.components, o.opts.DecisionStep, o.opts.Logger)
	o.opts.Logger.Debug("orchestrator.pass.start")

	var passErr error
	for {
		ev, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			passErr = &ProducerError{Err: err}
			break
		}
		if err := p.handle(ev); err != nil {
			passErr = err
			break
		}
	}

	if err := p.finish(); err != nil && passErr == nil {
		passErr = err
	}
	if err := sink.Close(passErr); err != nil && passErr == nil {
		passErr = err
	}

	o.logPass(p, time.Since(start), passErr)

	if passErr != nil {
		return nil, passErr
	}
	return p.last, nil
}

func (o *Orchestrator) logPass(p *pass, dur time.Duration, err error) {
	if sl, ok := o.opts.Logger.(*logging.StructuredLogger); ok {
		sl.LogPass(p.events, p.texts.len(), p.tools.opened, dur, err)
		return
	}
	args := []any{"events", p.events, "text_streams", p.texts.len(), "tool_calls", p.tools.opened, "duration_ms", dur.Milliseconds()}
	if err != nil {
		o.opts.Logger.Error("orchestrator.pass.failed", append(args, "error", err.Error())...)
		return
	}
	o.opts.Logger.Info("orchestrator.pass.completed", args...)
}
