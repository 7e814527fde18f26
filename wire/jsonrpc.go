// Package wire implements the slice of the MCP wire protocol this module
// speaks on both transports: the JSON-RPC 2.0 envelope, construction of the
// initialize handshake, SSE response framing, and tolerant extraction of
// handshake data from noisy process output.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/mcpbridge/mcpbridge/buildinfo"
)

// ProtocolVersion is the MCP revision advertised during initialize.
const ProtocolVersion = "2025-03-26"

const clientName = "mcpbridge"

// JSON-RPC method names used on both transports.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodToolsList   = "tools/list"
)

// ErrCodeInvalidRequest is returned by some MCP servers when a request
// arrives without a negotiated session.
const ErrCodeInvalidRequest = -32600

// Request is a JSON-RPC 2.0 request, or a notification when ID is left zero.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response. Result is kept raw so callers can
// decode method-specific payloads.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// ServerInfo is the identifying metadata a server returns during initialize.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result payload of an initialize response.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      *ServerInfo    `json:"serverInfo"`
}

// Tool describes one invocable capability advertised by a server.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ToolsListResult is the result payload of a tools/list response.
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

// NewInitializeRequest builds the initialize request that opens every MCP
// session. The protocol version and client identification are fixed.
func NewInitializeRequest(id int64) Request {
	return Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  MethodInitialize,
		Params: map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]any{},
			"clientInfo": map[string]any{
				"name":    clientName,
				"version": buildinfo.Version(),
			},
		},
	}
}

// NewInitializedNotification builds the notifications/initialized message
// sent after a successful initialize response. No response is expected.
func NewInitializedNotification() Request {
	return Request{
		JSONRPC: "2.0",
		Method:  MethodInitialized,
	}
}

// NewToolsListRequest builds a tools/list request.
func NewToolsListRequest(id int64) Request {
	return Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  MethodToolsList,
	}
}

// Encode marshals the request followed by a newline, the framing used on the
// stdio transport.
func (r Request) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", r.Method, err)
	}
	return append(data, '\n'), nil
}
