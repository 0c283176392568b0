package relay

import (
	"context"
	"encoding/json"
)

// Tool describes a callable tool: its unique name, a description for the
// model, and the JSON schema of its arguments.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCatalog lists the tools a tool host serves.
type ToolCatalog interface {
	ListTools(ctx context.Context) ([]Tool, error)
}

// ToolExecutor runs tools. Execute returns error for infrastructure failures.
// ToolResult.IsError indicates tool-reported domain failures sent back to the LLM.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, args json.RawMessage) (*ToolResult, error)
}

// ToolResult represents the outcome of a tool execution. Structured holds
// the machine-readable value when the tool host provides one.
type ToolResult struct {
	Content    []ContentBlock
	Structured any
	IsError    bool
}

// Text returns the result's text blocks joined by newlines.
func (r *ToolResult) Text() string {
	return joinText(r.Content)
}

// TextResult returns a successful result holding text.
func TextResult(text string) *ToolResult {
	return &ToolResult{Content: []ContentBlock{TextBlock{Text: text}}}
}

// ErrorResult returns a tool-level failure that is reported to the model.
func ErrorResult(text string) *ToolResult {
	return &ToolResult{Content: []ContentBlock{TextBlock{Text: text}}, IsError: true}
}
