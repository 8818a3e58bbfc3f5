package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/genui/agent"
	"github.com/hupe1980/genui/logging"
	"github.com/hupe1980/genui/model"
	"github.com/hupe1980/genui/orchestrator"
	"github.com/hupe1980/genui/session"
	"github.com/hupe1980/genui/ui"
)

// ErrTooManyInvocations is returned by Invoke when the concurrency limit is
// reached.
var ErrTooManyInvocations = errors.New("engine: too many concurrent invocations")

// ErrInvocationNotFound is returned by StopInvocation for unknown ids.
var ErrInvocationNotFound = errors.New("engine: invocation not found")

// ErrEmptyInput is returned by Invoke when the user input is blank.
var ErrEmptyInput = errors.New("engine: empty input")

// Config defines tuning parameters for the Engine.
type Config struct {
	// MaxConcurrentInvocations limits the number of turns that can run
	// simultaneously. Set to 0 for unlimited.
	MaxConcurrentInvocations int

	// InvocationTimeout bounds a single turn. Zero disables the timeout.
	InvocationTimeout time.Duration
}

// DefaultConfig provides conservative defaults.
var DefaultConfig = Config{
	MaxConcurrentInvocations: 10,
	InvocationTimeout:        2 * time.Minute,
}

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// SessionStore holds conversation history. Defaults to an in-memory store.
	SessionStore session.Store

	// Callbacks are registered in order.
	Callbacks []Callback

	// Logger defaults to a NoOpLogger.
	Logger logging.Logger
}

// Engine turns user input into a live UI stream.
//
// Each Invoke loads the session history, starts an agent turn and drives an
// orchestrator pass over the resulting trace. Once the pass result resolves
// the turn is recorded in the session. The engine tracks active invocations so
// they can be stopped by id.
type Engine struct {
	agent        *agent.Agent
	orchestrator *orchestrator.Orchestrator
	sessionStore session.Store
	callbacks    *CallbackManager
	logger       logging.Logger
	config       Config

	invocationsMu     sync.Mutex
	activeInvocations map[string]context.CancelFunc
	running           int
}

// New creates an Engine running a over the components of o.
func New(a *agent.Agent, o *orchestrator.Orchestrator, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:       DefaultConfig,
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	cm := NewCallbackManager()
	for _, cb := range opts.Callbacks {
		cm.RegisterCallback(cb)
	}

	return &Engine{
		agent:             a,
		orchestrator:      o,
		sessionStore:      opts.SessionStore,
		callbacks:         cm,
		logger:            logging.OrNoOp(opts.Logger),
		config:            opts.Config,
		activeInvocations: make(map[string]context.CancelFunc),
	}
}

// Callbacks returns the callback manager for late registration.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// Sessions returns the session store.
func (e *Engine) Sessions() session.Store { return e.sessionStore }

// Components returns the tool → component mapping in use.
func (e *Engine) Components() ui.Components { return e.orchestrator.Components() }

// Invoke starts a turn and returns immediately with the live invocation.
// Cancelling ctx (or calling StopInvocation) stops the turn; the sink then
// closes with the cancellation error.
func (e *Engine) Invoke(ctx context.Context, sessionID, input string) (*orchestrator.Invocation, error) {
	if input == "" {
		return nil, ErrEmptyInput
	}

	if err := e.acquire(); err != nil {
		return nil, err
	}

	sess, err := e.sessionStore.Get(sessionID)
	if err != nil {
		e.release("")
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	cc := &CallbackContext{SessionID: sessionID, Input: input}
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeInvocation, cc); err != nil {
		e.release("")
		return nil, err
	}

	var (
		invocationCtx context.Context
		cancel        context.CancelFunc
	)
	if e.config.InvocationTimeout > 0 {
		invocationCtx, cancel = context.WithTimeout(ctx, e.config.InvocationTimeout)
	} else {
		invocationCtx, cancel = context.WithCancel(ctx)
	}

	invocationID := uuid.NewString()
	cc.InvocationID = invocationID

	e.invocationsMu.Lock()
	e.activeInvocations[invocationID] = cancel
	e.invocationsMu.Unlock()

	logger := e.logger
	if sl, ok := logger.(*logging.StructuredLogger); ok {
		logger = sl.WithSession(sessionID, invocationID)
	}
	logger.Debug("engine.invocation.start", "session_id", sessionID, "invocation_id", invocationID)

	user := model.UserMessage(input)
	run := e.agent.Run(invocationCtx, append(sess.Messages, user))

	settle := func(_ *orchestrator.Invocation, value any, err error) {
		defer e.release(invocationID)
		defer cancel()

		cc.Value, cc.Err = value, err
		if err != nil {
			logger.Warn("engine.invocation.failed", "invocation_id", invocationID, "error", err.Error())
			if cbErr := e.callbacks.ExecuteCallbacks(context.Background(), CallbackOnError, cc); cbErr != nil {
				logger.Warn("engine.callback.error", "error", cbErr.Error())
			}
			return
		}

		if err := e.sessionStore.Append(sessionID, append([]model.Message{user}, run.Messages()...)...); err != nil {
			logger.Error("engine.session.append_failed", "session_id", sessionID, "error", err.Error())
		}
		if cbErr := e.callbacks.ExecuteCallbacks(context.Background(), CallbackAfterInvocation, cc); cbErr != nil {
			logger.Warn("engine.callback.error", "error", cbErr.Error())
		}
		logger.Debug("engine.invocation.complete", "invocation_id", invocationID)
	}

	inv := e.orchestrator.Stream(invocationCtx, run, func(so *orchestrator.StreamOptions) {
		so.ID = invocationID
		so.OnSettle = append(so.OnSettle, settle)
	})

	return inv, nil
}

// Outcome is the settled state of a blocking invocation.
type Outcome struct {
	InvocationID string    `json:"invocation_id"`
	Nodes        []ui.Node `json:"nodes"`
	Value        any       `json:"value"`
}

// InvokeSync runs a turn to completion and returns the final UI state and
// value. On failure the partial UI state is returned together with the error.
func (e *Engine) InvokeSync(ctx context.Context, sessionID, input string) (*Outcome, error) {
	inv, err := e.Invoke(ctx, sessionID, input)
	if err != nil {
		return nil, err
	}

	<-inv.Result.Done()
	value, err := inv.Result.Value()

	return &Outcome{
		InvocationID: inv.ID,
		Nodes:        inv.Sink.Snapshot(),
		Value:        value,
	}, err
}

// StopInvocation cancels a running invocation by id.
func (e *Engine) StopInvocation(invocationID string) error {
	e.invocationsMu.Lock()
	cancel, exists := e.activeInvocations[invocationID]
	e.invocationsMu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrInvocationNotFound, invocationID)
	}

	cancel()
	return nil
}

// ActiveInvocations returns the ids of running invocations.
func (e *Engine) ActiveInvocations() []string {
	e.invocationsMu.Lock()
	defer e.invocationsMu.Unlock()
	ids := make([]string, 0, len(e.activeInvocations))
	for id := range e.activeInvocations {
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) acquire() error {
	e.invocationsMu.Lock()
	defer e.invocationsMu.Unlock()
	if max := e.config.MaxConcurrentInvocations; max > 0 && e.running >= max {
		return ErrTooManyInvocations
	}
	e.running++
	return nil
}

func (e *Engine) release(invocationID string) {
	e.invocationsMu.Lock()
	defer e.invocationsMu.Unlock()
	e.running--
	if invocationID != "" {
		delete(e.activeInvocations, invocationID)
	}
}
