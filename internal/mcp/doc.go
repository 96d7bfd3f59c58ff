// Package mcp implements the MCP (Model Context Protocol) client layer:
// transports, the protocol client, the service manager, and the
// file-per-service configuration store.
//
// MCP is JSON-RPC 2.0 over one of three transports: a subprocess pipe
// (stdio), plain HTTP POST, or a WebSocket. The client discovers tools
// via tools/list and invokes them via tools/call. The Manager owns one
// connection per configured service and routes tool calls to the right
// client.
//
// This package is client/host side only; shen never acts as an MCP
// server.
package mcp
