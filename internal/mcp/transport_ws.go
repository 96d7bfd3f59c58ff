package mcp

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsTransport holds a persistent duplex WebSocket to the MCP server.
// Unlike HTTP, the server may push frames at any time; Receive simply
// returns the next inbound text frame and the Client sorts out which
// request it answers.
type wsTransport struct {
	cfg ServiceConfig

	mu   sync.Mutex // guards conn and write ordering
	conn *websocket.Conn
}

func newWebSocketTransport(cfg ServiceConfig) *wsTransport {
	return &wsTransport{cfg: cfg}
}

// Open dials the endpoint. The descriptor timeout bounds the handshake.
func (t *wsTransport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return nil
	}
	if t.cfg.Endpoint == "" {
		return serviceErr(t.cfg.Name, ErrConfiguration, errNoEndpoint)
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout())
	defer cancel()

	header := make(map[string][]string, len(t.cfg.Headers))
	for k, v := range t.cfg.Headers {
		header[k] = []string{v}
	}

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, t.cfg.Endpoint, header)
	if err != nil {
		return serviceErr(t.cfg.Name, ErrConnection, err)
	}
	t.conn = conn
	return nil
}

// Send writes one text frame. Writes are serialized; gorilla allows only
// one concurrent writer.
func (t *wsTransport) Send(_ context.Context, frame json.RawMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return serviceErr(t.cfg.Name, ErrTransport, errNotOpen)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return serviceErr(t.cfg.Name, ErrTransport, err)
	}
	return nil
}

// Receive blocks for the next inbound frame. A context deadline is
// mapped onto the socket read deadline; gorilla reads cannot otherwise
// be interrupted.
func (t *wsTransport) Receive(ctx context.Context) (json.RawMessage, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return nil, serviceErr(t.cfg.Name, ErrTransport, errNotOpen)
	}

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, serviceErr(t.cfg.Name, ErrTransport, err)
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, serviceErr(t.cfg.Name, ErrTransport, ctxErr)
		}
		return nil, serviceErr(t.cfg.Name, ErrConnection, err)
	}
	return json.RawMessage(data), nil
}

// Close sends a close frame when possible and tears the socket down.
// Idempotent.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := t.conn.Close()
	t.conn = nil
	return err
}
