package mcp

import (
	"context"
	"encoding/json"
)

// Transport is the byte-level channel carrying MCP messages. The three
// implementations (stdio subprocess, HTTP, WebSocket) share this
// contract:
//
//   - Open dials the endpoint (or spawns the subprocess) and fails with
//     ErrConnection when it is unreachable or the timeout elapses.
//   - Send writes one JSON frame and fails with ErrTransport when the
//     transport is not open.
//   - Receive blocks until the next inbound frame, honoring the context
//     deadline. On HTTP it yields the response to the last Send.
//   - Close tears the channel down and is safe to call repeatedly.
//
// Transports carry raw frames only; request/response correlation and
// protocol semantics live in the Client.
type Transport interface {
	Open(ctx context.Context) error
	Send(ctx context.Context, frame json.RawMessage) error
	Receive(ctx context.Context) (json.RawMessage, error)
	Close() error
}

// NewTransport builds the transport matching cfg.Transport.
// The returned transport is not yet open.
func NewTransport(cfg ServiceConfig) (Transport, error) {
	switch cfg.Transport {
	case TransportStdio:
		return newStdioTransport(cfg), nil
	case TransportHTTP:
		return newHTTPTransport(cfg), nil
	case TransportWebSocket:
		return newWebSocketTransport(cfg), nil
	default:
		return nil, serviceErr(cfg.Name, ErrConfiguration,
			&unsupportedTransportError{kind: cfg.Transport})
	}
}

type unsupportedTransportError struct{ kind TransportKind }

func (e *unsupportedTransportError) Error() string {
	return "unsupported transport " + string(e.kind)
}
