package modules

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dpshade/wakatime-mcp/internal/middleware"
	"github.com/dpshade/wakatime-mcp/internal/observability"
)

// DefaultToolTimeout is the maximum duration for a single tool execution.
const DefaultToolTimeout = 30 * time.Second

// =============================================================================
// Registry
// =============================================================================

// Registry holds the registered modules and indexes their tools by name.
// It is populated at startup and read-only afterwards.
type Registry struct {
	modules     map[string]Module
	tools       map[string]toolEntry
	logger      *zap.Logger
	metrics     *observability.Metrics
	toolTimeout time.Duration
}

type toolEntry struct {
	module Module
	tool   Tool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for tool call logs.
func WithLogger(l *zap.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithMetrics sets the tool call instruments.
func WithMetrics(m *observability.Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// WithToolTimeout overrides DefaultToolTimeout.
func WithToolTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.toolTimeout = d }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		modules:     make(map[string]Module),
		tools:       make(map[string]toolEntry),
		logger:      zap.NewNop(),
		toolTimeout: DefaultToolTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a module. Tool names must be unique across modules.
func (r *Registry) Register(m Module) error {
	if _, exists := r.modules[m.Name()]; exists {
		return fmt.Errorf("module %q already registered", m.Name())
	}
	for _, t := range m.Tools() {
		if prev, exists := r.tools[t.Name]; exists {
			return fmt.Errorf("tool %q of module %q conflicts with module %q", t.Name, m.Name(), prev.module.Name())
		}
	}
	r.modules[m.Name()] = m
	for _, t := range m.Tools() {
		r.tools[t.Name] = toolEntry{module: m, tool: t}
	}
	return nil
}

// GetModule returns a module by name
func (r *Registry) GetModule(name string) (Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// ListModules returns all registered module names, sorted.
func (r *Registry) ListModules() []string {
	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools returns every registered tool, grouped by module in name order.
func (r *Registry) Tools() []Tool {
	var tools []Tool
	for _, name := range r.ListModules() {
		tools = append(tools, r.modules[name].Tools()...)
	}
	return tools
}

// LookupTool finds the module owning toolName.
func (r *Registry) LookupTool(toolName string) (Module, Tool, bool) {
	e, ok := r.tools[toolName]
	return e.module, e.tool, ok
}

// =============================================================================
// Tool Execution
// =============================================================================

// Call statuses reported in CallInfo.
const (
	StatusSuccess  = "success"
	StatusAdvisory = "advisory"
	StatusError    = "error"
)

// CallInfo describes a finished tool call for logging and usage accounting.
type CallInfo struct {
	Module   string
	Tool     string
	Status   string
	Kind     string // advisory or error kind, empty on success
	Duration time.Duration
}

// Run executes a tool by name. Every failure is reported inside the result,
// with IsError set for failures that are not advisories.
func (r *Registry) Run(ctx context.Context, toolName string, params map[string]any) (*ToolCallResult, CallInfo) {
	start := time.Now()
	info := CallInfo{Tool: toolName}

	m, tool, ok := r.LookupTool(toolName)
	if !ok {
		msg := fmt.Sprintf("Unknown tool: %s", toolName)
		info.Status, info.Kind = StatusError, "unknown_tool"
		r.observe(ctx, &info, start, msg)
		return textResult(msg, true), info
	}
	info.Module = m.Name()

	// Validate params against tool's InputSchema
	validated, err := ValidateParams(tool.InputSchema, params)
	if err != nil {
		info.Status, info.Kind = StatusError, "invalid_params"
		r.observe(ctx, &info, start, err.Error())
		return textResult(err.Error(), true), info
	}

	// Apply timeout to prevent external API calls from hanging indefinitely
	ctx, cancel := context.WithTimeout(ctx, r.toolTimeout)
	defer cancel()

	result, err := m.ExecuteTool(ctx, toolName, validated)
	if err != nil {
		if adv, ok := err.(*AdvisoryError); ok {
			info.Status, info.Kind = StatusAdvisory, adv.Kind
			r.observe(ctx, &info, start, "")
			return textResult(adv.Text, false), info
		}
		errMsg := err.Error()
		if ctx.Err() == context.DeadlineExceeded {
			errMsg = fmt.Sprintf("Request to %s timed out after %s. The external service did not respond in time.", m.Name(), r.toolTimeout)
		}
		info.Status, info.Kind = StatusError, "internal"
		r.observe(ctx, &info, start, errMsg)
		return textResult(errMsg, true), info
	}

	info.Status = StatusSuccess
	if f, _ := validated["format"].(string); f == "markdown" {
		result = r.ApplyCompact(m.Name(), toolName, result)
	}
	r.observe(ctx, &info, start, "")
	return textResult(result, false), info
}

func (r *Registry) observe(ctx context.Context, info *CallInfo, start time.Time, errMsg string) {
	info.Duration = time.Since(start)
	fields := []zap.Field{
		zap.String("request_id", middleware.GetRequestID(ctx)),
		zap.String("module", info.Module),
		zap.String("tool", info.Tool),
		zap.String("status", info.Status),
		zap.Int64("duration_ms", info.Duration.Milliseconds()),
	}
	if info.Kind != "" {
		fields = append(fields, zap.String("kind", info.Kind))
	}
	if errMsg != "" {
		r.logger.Error("tool call failed", append(fields, zap.String("error", errMsg))...)
	} else {
		r.logger.Info("tool call", fields...)
	}
	r.metrics.RecordToolCall(ctx, info.Tool, info.Status, info.Duration)
}

// ApplyCompact converts a JSON result to compact format (Markdown) for a given module and tool.
// Returns the original JSON if the module has no CompactConverter.
func (r *Registry) ApplyCompact(moduleName, toolName, jsonResult string) string {
	m, ok := r.modules[moduleName]
	if !ok {
		return jsonResult
	}
	if converter, ok := m.(CompactConverter); ok {
		return converter.ToCompact(toolName, jsonResult)
	}
	return jsonResult
}
