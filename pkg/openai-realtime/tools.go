package openairealtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// ToolHandler runs a tool call. args is the decoded argument object. The
// result is JSON-encoded into the function_call_output item; a returned
// error becomes {"error": message} instead.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

type registeredTool struct {
	def      ToolDefinition
	handler  ToolHandler
	resolved *jsonschema.Resolved
}

func newRegisteredTool(def ToolDefinition, handler ToolHandler) (*registeredTool, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("%w: missing name", ErrInvalidTool)
	}
	if handler == nil {
		return nil, fmt.Errorf("%w: %q has no handler", ErrInvalidTool, def.Name)
	}
	if def.Type == "" {
		def.Type = "function"
	}
	t := &registeredTool{def: def, handler: handler}
	if def.Parameters != nil {
		resolved, err := def.Parameters.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %q parameters: %v", ErrInvalidTool, def.Name, err)
		}
		t.resolved = resolved
	}
	return t, nil
}

// call decodes and validates arguments, then runs the handler.
func (t *registeredTool) call(ctx context.Context, arguments string) (any, error) {
	args, err := parseArguments(arguments)
	if err != nil {
		return nil, err
	}
	if t.resolved != nil {
		if err := t.resolved.Validate(args); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", t.def.Name, err)
		}
	}
	return t.handler(ctx, args)
}

// parseArguments decodes a function call argument string. Syntax errors are
// repaired with jsonrepair before giving up. An empty string is an empty
// object.
func parseArguments(s string) (map[string]any, error) {
	if s == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	err := json.Unmarshal([]byte(s), &args)
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		fixed, rerr := jsonrepair.JSONRepair(s)
		if rerr != nil {
			return nil, fmt.Errorf("parse arguments %q: %w", s, err)
		}
		args = nil
		err = json.Unmarshal([]byte(fixed), &args)
	}
	if err != nil {
		return nil, fmt.Errorf("parse arguments %q: %w", s, err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// toolOutput renders a handler result as the output string of a
// function_call_output item.
func toolOutput(result any, err error) string {
	if err == nil {
		b, merr := json.Marshal(result)
		if merr == nil {
			return string(b)
		}
		err = fmt.Errorf("encode result: %w", merr)
	}
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}

// NewFuncTool builds a tool definition and handler from a typed function.
// The parameter schema is inferred from T, and the decoded argument object is
// converted to T before fn runs.
func NewFuncTool[T any](name, description string, fn func(ctx context.Context, arg T) (any, error)) (ToolDefinition, ToolHandler, error) {
	schema, err := jsonschema.For[T](&jsonschema.ForOptions{})
	if err != nil {
		return ToolDefinition{}, nil, fmt.Errorf("schema for %s: %w", name, err)
	}
	def := ToolDefinition{
		Type:        "function",
		Name:        name,
		Description: description,
		Parameters:  schema,
	}
	handler := func(ctx context.Context, args map[string]any) (any, error) {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s arguments: %w", name, err)
		}
		return fn(ctx, v)
	}
	return def, handler, nil
}

// MustNewFuncTool is like NewFuncTool but panics on error.
func MustNewFuncTool[T any](name, description string, fn func(ctx context.Context, arg T) (any, error)) (ToolDefinition, ToolHandler) {
	def, handler, err := NewFuncTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return def, handler
}
