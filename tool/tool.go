// Package tool implements the function / tool calling subsystem that lets the
// agent invoke structured capabilities (APIs, computations, parsers) with
// schema-described arguments and consistent error handling.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Error codes carried by *ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
)

// Tool defines a capability the model can select by name.
//
// Implementations must be safe for concurrent use: the same tool instance is
// shared by every invocation of an engine.
type Tool interface {
	// Name returns the unique identifier for this tool. It doubles as the key
	// into the UI component registry.
	Name() string

	// Description returns a human-readable description provided to the model.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool with the raw JSON arguments chosen by the model.
	Call(ctx context.Context, args json.RawMessage) (any, error)
}

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
