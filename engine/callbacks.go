package engine

import (
	"context"
	"fmt"
	"sync"
)

// CallbackType defines the lifecycle points where callbacks run.
//
// Callbacks are executed synchronously. An error returned by a
// CallbackBeforeInvocation callback rejects the invocation; errors from the
// other types are logged and otherwise ignored.
type CallbackType string

const (
	// CallbackBeforeInvocation is triggered before the turn starts.
	// Use for validation, quotas or instrumentation.
	CallbackBeforeInvocation CallbackType = "before_invocation"

	// CallbackAfterInvocation is triggered once the result resolves
	// successfully and the turn was recorded.
	CallbackAfterInvocation CallbackType = "after_invocation"

	// CallbackOnError is triggered when a pass fails.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the invocation details passed to callbacks.
type CallbackContext struct {
	InvocationID string
	SessionID    string
	Input        string
	CallbackType CallbackType

	// Value and Err are set for after-invocation and error callbacks.
	Value any
	Err   error

	Metadata map[string]any
}

// Callback defines the interface for invocation lifecycle hooks.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	audit := NewFunctionCallback(
//	    CallbackAfterInvocation,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("session %s answered", cc.SessionID)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a FunctionCallback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type implements Callback.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute implements Callback.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager groups callbacks by type. It is safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs the callbacks of a type in registration order and
// stops at the first error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}

	return nil
}

// LoggingCallback formats the callback context through a plain print function.
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a LoggingCallback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type implements Callback.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute implements Callback.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger != nil {
		msg := fmt.Sprintf("[%s] session: %s, invocation: %s", c.callbackType, callbackCtx.SessionID, callbackCtx.InvocationID)
		if callbackCtx.Err != nil {
			msg += fmt.Sprintf(", error: %v", callbackCtx.Err)
		}
		c.logger(msg)
	}
	return nil
}
