package mcp

import (
	"time"

	"github.com/google/uuid"
)

// protocolVersion is the MCP protocol revision shen advertises during
// the initialize handshake.
const protocolVersion = "2024-11-05"

// TransportKind selects the wire mechanism for one service.
type TransportKind string

const (
	TransportStdio     TransportKind = "stdio"
	TransportHTTP      TransportKind = "http"
	TransportWebSocket TransportKind = "websocket"
)

// Valid reports whether k is one of the supported transport kinds.
func (k TransportKind) Valid() bool {
	switch k {
	case TransportStdio, TransportHTTP, TransportWebSocket:
		return true
	}
	return false
}

// ServiceConfig describes one configured MCP service: how to reach it
// and how to talk to it. Instances are loaded from file-per-service
// JSON documents under ~/.shen/mcp and treated as immutable afterwards.
type ServiceConfig struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Transport   TransportKind     `json:"transport"`
	// Endpoint is the command to spawn for stdio, or the URL for
	// http/websocket.
	Endpoint   string            `json:"endpoint"`
	Args       []string          `json:"args,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Enabled    bool              `json:"enabled"`
	TimeoutSec int               `json:"timeout,omitempty"`
	RetryCount int               `json:"retry_count,omitempty"`
}

// Timeout returns the per-call timeout as a duration, falling back to
// 30s when the descriptor leaves it unset.
func (c ServiceConfig) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}

// Tool is an MCP tool definition as returned by tools/list.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`

	// Service is the owning service name; filled in by the Manager
	// when aggregating across connections, not part of the wire form.
	Service string `json:"-"`
}

// Resource is an MCP resource definition as returned by resources/list.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// Prompt is an MCP prompt template definition.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []map[string]any `json:"arguments,omitempty"`
}

// ServerInfo is what an MCP server reports about itself during the
// initialize handshake.
type ServerInfo struct {
	Name            string         `json:"name"`
	Version         string         `json:"version"`
	ProtocolVersion string         `json:"-"`
	Capabilities    map[string]any `json:"-"`
}

// Invocation records one tool call for logging and correlation. It is
// created per call and discarded after the result or error is delivered.
type Invocation struct {
	ID        string
	Service   string
	Tool      string
	Args      map[string]any
	StartedAt time.Time
}

func newInvocation(service, tool string, args map[string]any) Invocation {
	return Invocation{
		ID:        uuid.NewString(),
		Service:   service,
		Tool:      tool,
		Args:      args,
		StartedAt: time.Now(),
	}
}

// ContentBlock is a single content item in a tools/call result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}
