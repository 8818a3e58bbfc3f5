package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Validator is implemented by argument structs that check their own invariants
// after decoding.
type Validator interface {
	Validate() error
}

// TypedTool exposes a plain Go function taking a struct argument as a Tool.
//
// The parameter schema is reflected from T's json and jsonschema struct tags.
// Arguments are decoded into T before the function runs; decode failures and
// Validate errors surface as VALIDATION_ERROR, other failures as
// EXECUTION_ERROR. A *ToolError returned by the function is forwarded as is.
//
// A TypedTool has no mutable state after construction and is safe for
// concurrent use.
type TypedTool[T any] struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args T) (any, error)
}

// NewTyped constructs a TypedTool.
//
// Example:
//
//	type EchoArgs struct {
//	    Text string `json:"text" jsonschema:"description=Text to echo back"`
//	}
//
//	echo := tool.NewTyped("echo", "Echo back the input text",
//	    func(ctx context.Context, args EchoArgs) (any, error) {
//	        return args.Text, nil
//	    })
func NewTyped[T any](name, description string, fn func(ctx context.Context, args T) (any, error)) *TypedTool[T] {
	return &TypedTool[T]{
		name:        name,
		description: description,
		parameters:  Schema[T](),
		fn:          fn,
	}
}

// Name returns the tool name.
func (t *TypedTool[T]) Name() string { return t.name }

// Description returns the tool description.
func (t *TypedTool[T]) Description() string { return t.description }

// Parameters returns the reflected JSON schema.
func (t *TypedTool[T]) Parameters() map[string]any { return t.parameters }

// Call decodes args into T, validates and invokes the wrapped function.
func (t *TypedTool[T]) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var params T
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, &ToolError{
				Tool:    t.name,
				Message: fmt.Sprintf("invalid arguments: %v", err),
				Code:    CodeValidation,
				Details: err,
			}
		}
	}

	if v, ok := any(&params).(Validator); ok {
		if err := v.Validate(); err != nil {
			return nil, &ToolError{
				Tool:    t.name,
				Message: fmt.Sprintf("parameter validation failed: %v", err),
				Code:    CodeValidation,
				Details: err,
			}
		}
	}

	result, err := t.fn(ctx, params)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return nil, toolErr
		}
		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecution,
		}
	}

	return result, nil
}

// Schema reflects the JSON schema of T as a generic map, inlining every
// definition.
func Schema[T any]() map[string]any {
	reflector := &jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}

	var zero T
	b, err := json.Marshal(reflector.Reflect(zero))
	if err != nil {
		panic(fmt.Sprintf("failed to generate schema for type %T: %v", zero, err))
	}

	var schema map[string]any
	if err := json.Unmarshal(b, &schema); err != nil {
		panic(fmt.Sprintf("failed to decode schema for type %T: %v", zero, err))
	}
	delete(schema, "$schema")
	delete(schema, "$id")

	return schema
}
