package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/genui/logging"
	"github.com/hupe1980/genui/model"
)

// ErrDuplicateTool is returned when registering a name twice.
var ErrDuplicateTool = errors.New("tool: duplicate name")

// Registry is an ordered, concurrency-safe set of tools.
type Registry struct {
	mu     sync.RWMutex
	tools  []Tool
	index  map[string]int
	logger logging.Logger
}

// NewRegistry creates a registry holding tools in the given order.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		index:  make(map[string]int, len(tools)),
		logger: logging.NoOpLogger{},
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SetLogger sets the logger used for tool.call.* lines.
func (r *Registry) SetLogger(l logging.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logging.OrNoOp(l)
}

// Register appends a tool.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[t.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name())
	}
	r.index[t.Name()] = len(r.tools)
	r.tools = append(r.tools, t)
	return nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.tools[i], true
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Name()
	}
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Definitions returns the model-facing tool declarations.
func (r *Registry) Definitions() []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]model.ToolDefinition, len(r.tools))
	for i, t := range r.tools {
		defs[i] = model.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		}
	}
	return defs
}

// Call executes the named tool. Panics inside the tool are recovered and
// reported as EXECUTION_ERROR.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (result any, err error) {
	r.mu.RLock()
	logger := r.logger
	r.mu.RUnlock()

	t, ok := r.Get(name)
	if !ok {
		logger.Warn("tool.call.not_found", "tool", name)
		return nil, NewToolError(name, "tool not registered", CodeNotFound)
	}

	start := time.Now()
	logger.Debug("tool.call.start", "tool", name)

	defer func() {
		if rec := recover(); rec != nil {
			toolErr := &ToolError{
				Tool:    name,
				Message: fmt.Sprintf("panic: %v", rec),
				Code:    CodeExecution,
			}
			if sl, ok := logger.(*logging.StructuredLogger); ok {
				sl.ErrorWithStack(toolErr, "tool.call.panic", "tool", name)
			} else {
				logger.Error("tool.call.panic", "tool", name, "recover", rec, "stack", string(debug.Stack()))
			}
			result, err = nil, toolErr
		}
		if sl, ok := logger.(*logging.StructuredLogger); ok {
			sl.LogToolCall(name, time.Since(start), err)
			return
		}
		if err != nil {
			logger.Error("tool.call.error", "tool", name, "error", err.Error())
			return
		}
		logger.Info("tool.call.success", "tool", name, "duration_ms", time.Since(start).Milliseconds())
	}()

	return t.Call(ctx, args)
}
