package modules

import "context"

// =============================================================================
// Module Interface
// =============================================================================

// Module defines the interface that all modules must implement.
// A module groups the tools backed by one upstream service.
type Module interface {
	// Metadata
	Name() string
	Description() string
	APIVersion() string

	// Tools - LLM executes
	Tools() []Tool
	ExecuteTool(ctx context.Context, name string, params map[string]any) (string, error)
}

// CompactConverter provides optional compact format conversion (Markdown).
// Modules that implement this can convert their JSON output to token-efficient formats.
type CompactConverter interface {
	// ToCompact converts JSON result to compact format.
	// toolName is used to select the appropriate format for each tool
	ToCompact(toolName string, jsonResult string) string
}

// =============================================================================
// Tool Definition
// =============================================================================

// ToolAnnotations describes the tool's behavior hints per MCP spec (2025-06-18).
type ToolAnnotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    *bool  `json:"readOnlyHint,omitempty"`
	DestructiveHint *bool  `json:"destructiveHint,omitempty"`
	IdempotentHint  *bool  `json:"idempotentHint,omitempty"`
	OpenWorldHint   *bool  `json:"openWorldHint,omitempty"`
}

// Helper to create *bool for annotation fields
func boolPtr(v bool) *bool { return &v }

// AnnotateReadOnly: tools that only read from an external service.
var AnnotateReadOnly = &ToolAnnotations{
	ReadOnlyHint:   boolPtr(true),
	IdempotentHint: boolPtr(true),
	OpenWorldHint:  boolPtr(true),
}

// Tool represents an MCP tool definition
type Tool struct {
	ID          string           `json:"-"` // Stable ID (e.g., "wakatime:get_summary")
	Name        string           `json:"name"`
	Description string           `json:"description"`
	InputSchema InputSchema      `json:"inputSchema"`
	Annotations *ToolAnnotations `json:"annotations,omitempty"`
}

// InputSchema defines the input parameters for a tool
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a single property in the input schema
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Enum        []string  `json:"enum,omitempty"`
	Default     any       `json:"default,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// =============================================================================
// Result Types
// =============================================================================

// ToolCallResult represents the result of a tool call
type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock represents a content block in the result
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func textResult(text string, isError bool) *ToolCallResult {
	return &ToolCallResult{
		Content: []ContentBlock{{Type: "text", Text: text}},
		IsError: isError,
	}
}

// AdvisoryError is returned by a tool handler that failed in an expected way and
// produced a structured advisory for the caller instead of a result. The
// advisory is delivered as regular tool content.
type AdvisoryError struct {
	Kind string // e.g. "auth", "rate_limit", "validation"
	Text string // JSON advisory body
}

func (e *AdvisoryError) Error() string {
	return e.Text
}
