package mcp

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/dpshade/wakatime-mcp/internal/jsonrpc"
	"github.com/dpshade/wakatime-mcp/internal/middleware"
	"github.com/dpshade/wakatime-mcp/internal/modules"
	"github.com/dpshade/wakatime-mcp/internal/usage"
)

// ProtocolVersion is the MCP revision the server speaks.
const ProtocolVersion = "2025-03-26"

// ServerName is reported in serverInfo.
const ServerName = "wakatime-mcp"

// ServerVersion is overridden at link time.
var ServerVersion = "0.1.0"

const instructions = "Tools for reading your WakaTime coding activity. " +
	"Every tool accepts format=markdown for a compact rendering."

type Handler struct {
	registry *modules.Registry
	recorder usage.Recorder
	logger   *zap.Logger
}

// NewHandler serves the tools of registry. Calls are reported to recorder.
func NewHandler(registry *modules.Registry, recorder usage.Recorder, logger *zap.Logger) *Handler {
	if recorder == nil {
		recorder = usage.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		registry: registry,
		recorder: recorder,
		logger:   logger,
	}
}

// ProcessRequest routes a JSON-RPC request to the appropriate handler.
// Called by the transport middleware.
func (h *Handler) ProcessRequest(ctx context.Context, req *jsonrpc.Request) (interface{}, *jsonrpc.Error) {
	switch req.Method {
	case "initialize":
		return h.handleInitialize(req), nil
	case "notifications/initialized", "initialized":
		return nil, nil
	case "ping":
		return struct{}{}, nil
	case "tools/list":
		return h.handleToolsList(), nil
	case "tools/call":
		return h.handleToolCall(ctx, req)
	default:
		return nil, &jsonrpc.Error{Code: MethodNotFound, Message: "Method not found"}
	}
}

func (h *Handler) handleInitialize(req *jsonrpc.Request) *InitializeResult {
	var params InitializeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err == nil && params.ClientInfo.Name != "" {
			h.logger.Info("client initialized",
				zap.String("client", params.ClientInfo.Name),
				zap.String("client_version", params.ClientInfo.Version),
				zap.String("protocol_version", params.ProtocolVersion),
			)
		}
	}
	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{},
		},
		ServerInfo: ServerInfo{
			Name:    ServerName,
			Version: ServerVersion,
		},
		Instructions: instructions,
	}
}

func (h *Handler) handleToolsList() *ToolsListResult {
	tools := h.registry.Tools()
	if tools == nil {
		tools = []modules.Tool{}
	}
	return &ToolsListResult{Tools: tools}
}

func (h *Handler) handleToolCall(ctx context.Context, req *jsonrpc.Request) (*ToolCallResult, *jsonrpc.Error) {
	if len(req.Params) == 0 {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "Invalid params"}
	}
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "Invalid params structure"}
	}
	if params.Name == "" {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "name is required"}
	}
	if params.Arguments == nil {
		params.Arguments = make(map[string]any)
	}

	result, info := h.registry.Run(ctx, params.Name, params.Arguments)

	// Record usage asynchronously (fire-and-forget)
	h.recorder.Record(ctx, usage.Entry{
		Caller:    caller(ctx),
		Tool:      info.Tool,
		Status:    info.Status,
		ErrorKind: info.Kind,
		Duration:  info.Duration,
		RequestID: middleware.GetRequestID(ctx),
	})

	return result, nil
}

func caller(ctx context.Context) string {
	if authCtx := middleware.GetAuthContext(ctx); authCtx != nil {
		return authCtx.Subject
	}
	return ""
}
