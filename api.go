// Package mcpbridge verifies connectivity to configured MCP servers and
// retrieves their tool catalogs. Two transports are supported: a spawned
// local process speaking newline-delimited JSON-RPC over its standard
// streams, and a remote HTTP endpoint speaking JSON-RPC over POST with
// optional SSE response framing and session continuity.
//
// Every verification and tools-fetch call is independent and call-scoped: it
// owns its child process or HTTP exchange, commits to exactly one terminal
// result, and cleans up on every exit path so a misbehaving server can never
// hang or leak into the host application.
package mcpbridge

import (
	"github.com/mcpbridge/mcpbridge/wire"
)

// Aliases for the wire-level shapes surfaced through the public API.
type (
	// ServerInfo is the identifying metadata a server reports during its
	// handshake.
	ServerInfo = wire.ServerInfo

	// ToolDescriptor describes one invocable tool advertised by a server.
	ToolDescriptor = wire.Tool
)

// Status is the terminal outcome of one server verification.
type Status string

const (
	// StatusPending means the check was inconclusive: the server did not
	// answer before the deadline, or exited cleanly without answering.
	// Slow-starting servers commonly verify on a later re-check.
	StatusPending Status = "pending"
	// StatusConnected means the server completed the initialize handshake.
	StatusConnected Status = "connected"
	// StatusFailed means the server is misconfigured, unreachable, or
	// answered with a protocol error.
	StatusFailed Status = "failed"
	// StatusNeedsAuth means the HTTP server rejected the request with an
	// authentication challenge.
	StatusNeedsAuth Status = "needs-auth"
)

// ServerStatus is the result of verifying one configured server. It is
// created fresh per verification call and transitions exactly once from
// pending to a terminal value.
type ServerStatus struct {
	Name       string      `json:"name"`
	Status     Status      `json:"status"`
	ServerInfo *ServerInfo `json:"serverInfo,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// ToolsRecord is the result of one tool-catalog fetch. Tools is empty, never
// nil, when the fetch failed.
type ToolsRecord struct {
	Name  string           `json:"name"`
	Tools []ToolDescriptor `json:"tools"`
	Error string           `json:"error,omitempty"`
}
