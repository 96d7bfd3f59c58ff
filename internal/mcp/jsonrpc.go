package mcp

import (
	"encoding/json"
	"fmt"
)

// jsonrpcVersion is the JSON-RPC revision MCP mandates; every frame carries it.
const jsonrpcVersion = "2.0"

// request is an outgoing JSON-RPC 2.0 request. A zero ID is never used
// for requests; notifications omit the ID entirely (see notification).
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

func newRequest(id int64, method string, params any) *request {
	return &request{JSONRPC: jsonrpcVersion, ID: id, Method: method, Params: params}
}

// response is an incoming JSON-RPC 2.0 response. A well-formed response
// carries exactly one of Result or Error.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the JSON-RPC 2.0 error object returned by MCP servers.
// It is surfaced to callers inside ErrToolInvocation / ErrProtocolVersion
// wrappers so the remote payload is never lost.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// notification is an outgoing JSON-RPC 2.0 notification: no ID, no reply.
type notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

func newNotification(method string, params any) *notification {
	return &notification{JSONRPC: jsonrpcVersion, Method: method, Params: params}
}
