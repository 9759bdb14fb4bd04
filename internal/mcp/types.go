package mcp

import (
	"github.com/dpshade/wakatime-mcp/internal/jsonrpc"
	"github.com/dpshade/wakatime-mcp/internal/modules"
)

// Re-export JSON-RPC error codes
const (
	InvalidParams  = jsonrpc.InvalidParams
	MethodNotFound = jsonrpc.MethodNotFound
	InternalError  = jsonrpc.InternalError
)

// MCP Protocol Types
type InitializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ClientInfo      ClientInfo `json:"clientInfo"`
}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

type ServerCapabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ToolsListResult struct {
	Tools []modules.Tool `json:"tools"`
}

type ToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Use modules types
type ToolCallResult = modules.ToolCallResult
