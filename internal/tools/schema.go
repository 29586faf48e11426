// Package tools builds the tool schemas sent to the model and the mock
// executors that answer the calls it makes.
package tools

import (
	"fmt"

	"github.com/s33g/omni-probe/internal/llm"
)

// Param is a single string parameter of a tool
type Param struct {
	Name        string
	Description string
}

// Function builds a function tool whose parameters are all required strings
func Function(name, description string, params ...Param) llm.ToolDefinition {
	properties := make(map[string]any, len(params))
	required := make([]string, 0, len(params))
	for _, p := range params {
		prop := map[string]any{"type": "string"}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
		required = append(required, p.Name)
	}

	return llm.ToolDefinition{
		Type: "function",
		Function: llm.FunctionDef{
			Name:        name,
			Description: description,
			Parameters: map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

// WithParams returns the single test_tool with param_1..n
func WithParams(n int) llm.ToolDefinition {
	params := make([]Param, n)
	for i := range params {
		params[i] = Param{Name: fmt.Sprintf("param_%d", i+1)}
	}
	return Function("test_tool", fmt.Sprintf("Test tool with %d parameters", n), params...)
}

// Simple returns tool_1..n, each taking one input string
func Simple(n int) []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, n)
	for i := range defs {
		defs[i] = Function(fmt.Sprintf("tool_%d", i+1), fmt.Sprintf("This is tool number %d", i+1), Param{Name: "input"})
	}
	return defs
}

// Names returns the function names of defs in order
func Names(defs []llm.ToolDefinition) []string {
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Function.Name
	}
	return names
}
