package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
)

// clientVersion is reported as clientInfo.version during initialize.
const clientVersion = "0.1.0"

// ClientState tracks where a Client is in its lifecycle.
type ClientState int32

const (
	StateUninitialized ClientState = iota
	StateInitializing
	StateReady
	StateClosed
)

func (s ClientState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Client drives the MCP protocol over one Transport: the initialize
// handshake, tool discovery, and tool invocation. Requests on a single
// client are serialized so responses on one pipe or socket never
// interleave.
//
// Remote tool failures and handshake version mismatches leave the
// client Ready/Uninitialized; transport loss forces Closed.
type Client struct {
	cfg       ServiceConfig
	transport Transport
	logger    *slog.Logger

	nextID atomic.Int64
	state  atomic.Int32

	mu     sync.Mutex // serializes request/response exchanges
	server ServerInfo
}

// NewClient wraps transport in a protocol client for the given service.
func NewClient(cfg ServiceConfig, transport Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:       cfg,
		transport: transport,
		logger:    logger.With("service", cfg.Name),
	}
}

// State returns the current lifecycle state.
func (c *Client) State() ClientState { return ClientState(c.state.Load()) }

// ServerInfo returns what the server reported during initialize.
// Zero until Initialize succeeds.
func (c *Client) ServerInfo() ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.server
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
	Capabilities    map[string]any `json:"capabilities"`
}

// Initialize opens the transport and performs the MCP handshake. A
// server demanding a protocol revision newer than ours fails with
// ErrProtocolVersion and leaves the handshake incomplete; transport
// failures close the client.
func (c *Client) Initialize(ctx context.Context) error {
	if st := c.State(); st != StateUninitialized {
		return serviceErr(c.cfg.Name, ErrTransport, fmt.Errorf("initialize in state %s", st))
	}
	c.state.Store(int32(StateInitializing))

	if err := c.transport.Open(ctx); err != nil {
		c.state.Store(int32(StateClosed))
		return err
	}

	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
			"prompts":   map[string]any{},
		},
		"clientInfo": map[string]any{
			"name":    "shen",
			"version": clientVersion,
		},
	}

	raw, err := c.roundTrip(ctx, "initialize", params)
	if err != nil {
		c.state.Store(int32(StateClosed))
		_ = c.transport.Close()
		return err
	}

	var result initializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		c.state.Store(int32(StateClosed))
		_ = c.transport.Close()
		return serviceErr(c.cfg.Name, ErrTransport, fmt.Errorf("decode initialize result: %w", err))
	}

	// Servers on the dated revision scheme may trail us; one demanding a
	// newer revision speaks a dialect we do not.
	if result.ProtocolVersion > protocolVersion {
		// Back to Uninitialized so a caller may retry, but the transport
		// (and any subprocess behind it) must not linger.
		c.state.Store(int32(StateUninitialized))
		_ = c.transport.Close()
		return serviceErr(c.cfg.Name, ErrProtocolVersion,
			fmt.Errorf("server wants %s, client speaks %s", result.ProtocolVersion, protocolVersion))
	}

	if err := c.notify(ctx, "notifications/initialized", nil); err != nil {
		c.state.Store(int32(StateClosed))
		_ = c.transport.Close()
		return err
	}

	c.mu.Lock()
	c.server = result.ServerInfo
	c.server.ProtocolVersion = result.ProtocolVersion
	c.server.Capabilities = result.Capabilities
	c.mu.Unlock()

	c.state.Store(int32(StateReady))
	c.logger.Info("mcp: initialized",
		"server", result.ServerInfo.Name,
		"server_version", result.ServerInfo.Version,
		"protocol", result.ProtocolVersion)
	return nil
}

// ListTools calls tools/list and returns the tool definitions in server
// order.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	raw, err := c.request(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, serviceErr(c.cfg.Name, ErrTransport, fmt.Errorf("decode tools/list result: %w", err))
	}
	for i := range result.Tools {
		result.Tools[i].Service = c.cfg.Name
	}
	return result.Tools, nil
}

type callToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// CallTool invokes one tool and flattens the content blocks to text.
// Remote failures come back as ErrToolInvocation carrying the remote
// payload; the client stays Ready.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	params := map[string]any{
		"name":      name,
		"arguments": args,
	}
	raw, err := c.request(ctx, "tools/call", params)
	if err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return "", serviceErr(c.cfg.Name, ErrToolInvocation, rpcErr)
		}
		return "", err
	}

	var result callToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", serviceErr(c.cfg.Name, ErrTransport, fmt.Errorf("decode tools/call result: %w", err))
	}

	text := flattenContent(result.Content)
	if result.IsError {
		return "", serviceErr(c.cfg.Name, ErrToolInvocation, fmt.Errorf("tool %s: %s", name, text))
	}
	return text, nil
}

// ListResources calls resources/list.
func (c *Client) ListResources(ctx context.Context) ([]Resource, error) {
	raw, err := c.request(ctx, "resources/list", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Resources []Resource `json:"resources"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, serviceErr(c.cfg.Name, ErrTransport, fmt.Errorf("decode resources/list result: %w", err))
	}
	return result.Resources, nil
}

// ReadResource calls resources/read for one URI and returns the raw result.
func (c *Client) ReadResource(ctx context.Context, uri string) (json.RawMessage, error) {
	return c.request(ctx, "resources/read", map[string]any{"uri": uri})
}

// Ping checks that the server is still responsive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.request(ctx, "ping", nil)
	return err
}

// Shutdown closes the transport and moves the client to Closed.
// Safe to call in any state.
func (c *Client) Shutdown() error {
	if ClientState(c.state.Swap(int32(StateClosed))) == StateClosed {
		return nil
	}
	c.logger.Debug("mcp: client shut down")
	return c.transport.Close()
}

// request performs one exchange in the Ready state, applying the
// descriptor timeout when the caller supplied no deadline. Protocol
// errors (RPCError) keep the client Ready; transport errors close it.
func (c *Client) request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if st := c.State(); st != StateReady {
		return nil, serviceErr(c.cfg.Name, ErrNotConnected, fmt.Errorf("client is %s", st))
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout())
		defer cancel()
	}

	raw, err := c.roundTrip(ctx, method, params)
	if err != nil {
		var rpcErr *RPCError
		if !errors.As(err, &rpcErr) {
			// Wire-level loss: the connection is unusable.
			c.state.Store(int32(StateClosed))
			_ = c.transport.Close()
		}
		return nil, err
	}
	return raw, nil
}

// roundTrip sends one request frame and reads frames until the matching
// response id arrives, discarding server-initiated messages.
func (c *Client) roundTrip(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	frame, err := json.Marshal(newRequest(id, method, params))
	if err != nil {
		return nil, serviceErr(c.cfg.Name, ErrTransport, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transport.Send(ctx, frame); err != nil {
		return nil, err
	}

	for {
		raw, err := c.transport.Receive(ctx)
		if err != nil {
			return nil, err
		}

		var resp response
		if err := json.Unmarshal(raw, &resp); err != nil {
			// Non-protocol noise on the stream (stdio servers log here).
			c.logger.Debug("mcp: skipping unparseable frame", "frame", string(raw))
			continue
		}
		if resp.ID != id {
			c.logger.Debug("mcp: skipping unmatched frame", "id", resp.ID, "want", id)
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

// notify sends a notification frame; no response is read.
func (c *Client) notify(ctx context.Context, method string, params any) error {
	frame, err := json.Marshal(newNotification(method, params))
	if err != nil {
		return serviceErr(c.cfg.Name, ErrTransport, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport.Send(ctx, frame)
}

// flattenContent joins text blocks; non-text blocks become inline markers.
func flattenContent(blocks []ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			parts = append(parts, b.Text)
		default:
			parts = append(parts, "["+b.Type+"]")
		}
	}
	return strings.Join(parts, "\n")
}
