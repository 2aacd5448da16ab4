// Package tools implements the Tool Registry: the external interface
// through which the Plan Executor turns a model-chosen action name and
// parameter map into an effect (file write, web fetch, shell command,
// browser interaction) and a result string or error.
package tools

import (
	"context"
)

// ToolCategory groups tools for registry introspection (`archi status`,
// GetByCategory). Unlike the teacher's intent-routed categories, Archi
// has no slash-intent dispatcher: the Plan Executor calls tools by
// name directly, so categories here are informational only.
type ToolCategory string

const (
	// CategoryFiles covers read_file, create_file, append_file, list_files.
	CategoryFiles ToolCategory = "files"

	// CategoryResearch covers web_search, web_fetch, browser control.
	CategoryResearch ToolCategory = "research"

	// CategorySystem covers shell command execution.
	CategorySystem ToolCategory = "system"

	// CategoryAgent is not assigned to any registered tool; think,
	// run_python and done are handled by the Plan Executor itself.
	CategoryAgent ToolCategory = "agent"

	// CategoryGeneral is for tools that don't fit another category.
	CategoryGeneral ToolCategory = "general"
)

// Property describes a single parameter property for JSON schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Default     any    `json:"default,omitempty"`
	Enum        []any  `json:"enum,omitempty"`
	// Items describes array element schema (required for type="array")
	Items *PropertyItems `json:"items,omitempty"`
}

// PropertyItems describes the schema for array elements.
type PropertyItems struct {
	Type string `json:"type"`
}

// ToolSchema defines the JSON schema for tool arguments.
// This enables LLM tool calling with proper validation.
type ToolSchema struct {
	// Required lists parameters that must be provided.
	Required []string `json:"required"`

	// Properties describes each parameter.
	Properties map[string]Property `json:"properties"`
}

// ExecuteFunc is the signature for tool execution.
// Returns the result string and any error.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool defines one action the Plan Executor can invoke by name.
type Tool struct {
	// Name is the unique identifier for the tool, e.g. "read_file".
	Name string

	// Description explains what the tool does.
	// Used for LLM tool calling and documentation.
	Description string

	// Category groups the tool for registry introspection.
	Category ToolCategory

	// Execute runs the tool with the given arguments.
	Execute ExecuteFunc

	// Schema defines the expected arguments.
	Schema ToolSchema

	// Priority is used when multiple tools match.
	// Higher priority tools are preferred (default 50).
	Priority int

	// RequiresContext indicates if the tool needs session context.
	RequiresContext bool
}

// Validate checks if the tool definition is valid.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// WithPriority returns a copy of the tool with the given priority.
func (t *Tool) WithPriority(priority int) *Tool {
	copy := *t
	copy.Priority = priority
	return &copy
}

// ToolResult wraps the result of tool execution with metadata.
type ToolResult struct {
	// ToolName identifies which tool was executed.
	ToolName string

	// Result is the string output from the tool.
	Result string

	// Error is set if the tool failed.
	Error error

	// DurationMs is how long execution took.
	DurationMs int64
}

// IsSuccess returns true if the tool executed without error.
func (r *ToolResult) IsSuccess() bool {
	return r.Error == nil
}
