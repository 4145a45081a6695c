// Package mcp implements the client side of a line-delimited JSON-RPC
// protocol for external tool servers (MCP-style servers).
//
// A tool server is a subprocess that exposes callable operations over its
// standard streams. This package launches the subprocess, performs the
// initialize handshake, discovers the tool set, and routes concurrent tool
// calls over a single connection, correlating responses by request id.
package mcp

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the protocol version announced in the handshake.
const ProtocolVersion = "1.0"

// Tool describes one callable operation exposed by a tool server.
// Tools are immutable once discovered; re-discovery replaces the whole set.
type Tool struct {
	// Name is the unique identifier for this tool within its server
	Name string `json:"name"`

	// Description explains what the tool does
	Description string `json:"description"`

	// InputSchema defines the expected input parameters using JSON Schema
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ToolError is a logical failure reported by the tool server inside a
// successfully transported response. It is carried in ToolCallResult and is
// deliberately distinct from the transport errors in errors.go: a ToolError
// means the server was reached and ran (or rejected) the tool.
type ToolError struct {
	// Code is the protocol error code
	Code int `json:"code"`

	// Message describes the error
	Message string `json:"message"`

	// Data contains additional error details
	Data json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *ToolError) Error() string {
	return fmt.Sprintf("tool error %d: %s", e.Code, e.Message)
}

// ToolCallResult is the outcome of one tool invocation: exactly one of
// Result and Err is set.
type ToolCallResult struct {
	// Result is the opaque success payload returned by the tool
	Result json.RawMessage

	// Err is the tool-reported failure, nil on success
	Err *ToolError
}

// Failed reports whether the tool reported a logical failure.
func (r *ToolCallResult) Failed() bool {
	return r.Err != nil
}

// Common protocol error codes (JSON-RPC 2.0).
const (
	// ErrorCodeParse indicates a JSON parsing error
	ErrorCodeParse = -32700

	// ErrorCodeInvalidRequest indicates an invalid request object
	ErrorCodeInvalidRequest = -32600

	// ErrorCodeMethodNotFound indicates the method doesn't exist
	ErrorCodeMethodNotFound = -32601

	// ErrorCodeInvalidParams indicates invalid method parameters
	ErrorCodeInvalidParams = -32602

	// ErrorCodeInternalServer indicates an internal server error
	ErrorCodeInternalServer = -32603
)

// Protocol method names.
const (
	// MethodInitialize is the handshake request sent first on the stream.
	MethodInitialize = "initialize"
	// MethodListTools asks the server for its current tool set.
	MethodListTools = "tools/list"
	// MethodCallTool invokes one tool by name.
	MethodCallTool = "tools/call"
	// MethodPing checks server liveness.
	MethodPing = "ping"
)

// initializeParams is the payload of the handshake request.
type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

// clientInfo identifies this client to the server.
type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// initializeResult is the payload of the handshake response. Servers either
// inline their tool list here or expect a follow-up tools/list call.
type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion,omitempty"`
	Capabilities    map[string]any `json:"capabilities,omitempty"`
	Tools           []Tool         `json:"tools,omitempty"`
}

// listToolsResult is the payload of a tools/list response.
type listToolsResult struct {
	Tools []Tool `json:"tools"`
}

// callToolParams is the payload of a tools/call request.
type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}
