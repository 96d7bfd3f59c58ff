package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// httpTransport speaks MCP over plain HTTP: every frame is POSTed to
// the endpoint and the response body is queued for the next Receive.
// There is no persistent session state beyond the Mcp-Session header
// some servers hand back.
type httpTransport struct {
	cfg    ServiceConfig
	client *http.Client

	mu        sync.Mutex
	open      bool
	sessionID string
	pending   chan json.RawMessage
}

func newHTTPTransport(cfg ServiceConfig) *httpTransport {
	return &httpTransport{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
		// Notifications produce no body, so at most one response can be
		// outstanding between a Send and its Receive.
		pending: make(chan json.RawMessage, 1),
	}
}

// Open validates the descriptor. No connection is established up front;
// HTTP is request/response per frame.
func (t *httpTransport) Open(_ context.Context) error {
	if t.cfg.Endpoint == "" {
		return serviceErr(t.cfg.Name, ErrConfiguration, errNoEndpoint)
	}
	t.mu.Lock()
	t.open = true
	t.mu.Unlock()
	return nil
}

// Send POSTs one frame. A non-empty response body is queued for the
// next Receive; 202s (notification acks) queue nothing.
func (t *httpTransport) Send(ctx context.Context, frame json.RawMessage) error {
	t.mu.Lock()
	open := t.open
	session := t.sessionID
	t.mu.Unlock()

	if !open {
		return serviceErr(t.cfg.Name, ErrTransport, errNotOpen)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, bytes.NewReader(frame))
	if err != nil {
		return serviceErr(t.cfg.Name, ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}
	if session != "" {
		req.Header.Set("Mcp-Session", session)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return serviceErr(t.cfg.Name, ErrConnection, err)
	}
	defer resp.Body.Close()

	if sid := resp.Header.Get("Mcp-Session"); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return serviceErr(t.cfg.Name, ErrTransport,
			fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return serviceErr(t.cfg.Name, ErrTransport, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	select {
	case t.pending <- json.RawMessage(body):
		return nil
	default:
		return serviceErr(t.cfg.Name, ErrTransport,
			fmt.Errorf("response queued before previous one was received"))
	}
}

// Receive yields the response to the last Send, or fails when the
// context deadline passes with nothing outstanding.
func (t *httpTransport) Receive(ctx context.Context) (json.RawMessage, error) {
	t.mu.Lock()
	open := t.open
	t.mu.Unlock()

	if !open {
		return nil, serviceErr(t.cfg.Name, ErrTransport, errNotOpen)
	}

	select {
	case frame := <-t.pending:
		return frame, nil
	case <-ctx.Done():
		return nil, serviceErr(t.cfg.Name, ErrTransport, ctx.Err())
	}
}

// Close drops any queued response. Idempotent.
func (t *httpTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open = false
	select {
	case <-t.pending:
	default:
	}
	return nil
}
