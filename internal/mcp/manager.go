package mcp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ConnState is the lifecycle state of one service connection as seen by
// the Manager.
type ConnState int

const (
	ConnDisconnected ConnState = iota
	ConnConnecting
	ConnConnected
	ConnFailed
)

func (s ConnState) String() string {
	switch s {
	case ConnDisconnected:
		return "disconnected"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnFailed:
		return "failed"
	}
	return "unknown"
}

// connection binds a descriptor to a live transport+client pair plus
// the tool set discovered at connect time.
type connection struct {
	cfg    ServiceConfig
	state  ConnState
	client *Client
	tools  []Tool
}

// ServiceStatus is one row of the Manager's service listing.
type ServiceStatus struct {
	Config    ServiceConfig
	State     ConnState
	Server    ServerInfo
	ToolCount int
}

// Manager owns the set of configured MCP services and their
// connections. The connection table is the single point of mutation;
// it is guarded so concurrent connect/disconnect on the same name
// cannot race, while operations on different services proceed
// independently.
type Manager struct {
	store  *Store
	logger *slog.Logger

	// newTransport is swapped out by tests to inject fakes.
	newTransport func(ServiceConfig) (Transport, error)

	mu    sync.Mutex
	conns map[string]*connection
}

// NewManager creates a manager over the given descriptor store.
func NewManager(store *Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:        store,
		logger:       logger,
		newTransport: NewTransport,
		conns:        make(map[string]*connection),
	}
}

// Store exposes the descriptor store (for add/remove CLI surface).
func (m *Manager) Store() *Store { return m.store }

// List returns every configured service with its current connection
// state, ordered by name.
func (m *Manager) List() []ServiceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ServiceStatus
	for _, cfg := range m.store.All() {
		st := ServiceStatus{Config: cfg, State: ConnDisconnected}
		if conn, ok := m.conns[cfg.Name]; ok {
			st.State = conn.state
			st.ToolCount = len(conn.tools)
			if conn.client != nil {
				st.Server = conn.client.ServerInfo()
			}
		}
		out = append(out, st)
	}
	return out
}

// State returns the connection state for one service name.
func (m *Manager) State(name string) ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn, ok := m.conns[name]; ok {
		return conn.state
	}
	return ConnDisconnected
}

// Connect establishes the connection for name: builds the transport and
// client, drives the initialize handshake, and caches the discovered
// tools. At most one connection (and one in-flight connect) exists per
// name; a second Connect without an intervening Disconnect fails with
// ErrAlreadyConnected. Disabled descriptors fail with ErrServiceDisabled.
func (m *Manager) Connect(ctx context.Context, name string) error {
	cfg, ok := m.store.Get(name)

	m.mu.Lock()
	if conn, exists := m.conns[name]; exists &&
		(conn.state == ConnConnecting || conn.state == ConnConnected) {
		m.mu.Unlock()
		return serviceErr(name, ErrAlreadyConnected, nil)
	}
	if !ok {
		m.mu.Unlock()
		return serviceErr(name, ErrUnknownService, nil)
	}
	if !cfg.Enabled {
		m.mu.Unlock()
		return serviceErr(name, ErrServiceDisabled, nil)
	}
	// Reserve the slot before dialing so a concurrent Connect on the
	// same name observes the in-flight attempt.
	reserved := &connection{cfg: cfg, state: ConnConnecting}
	m.conns[name] = reserved
	m.mu.Unlock()

	client, tools, err := m.dial(ctx, cfg)

	m.mu.Lock()
	conn, ok := m.conns[name]
	if !ok || conn != reserved {
		// Disconnected while the dial was in flight; the reservation is
		// gone, so tear down whatever the dial produced.
		m.mu.Unlock()
		if client != nil {
			_ = client.Shutdown()
		}
		m.logger.Warn("mcp: connect aborted, service disconnected while dialing", "service", name)
		return serviceErr(name, ErrNotConnected, nil)
	}
	defer m.mu.Unlock()
	if err != nil {
		conn.state = ConnFailed
		m.logger.Error("mcp: connect failed", "service", name, "err", err)
		return err
	}
	conn.state = ConnConnected
	conn.client = client
	conn.tools = tools
	m.logger.Info("mcp: connected", "service", name, "tools", len(tools))
	return nil
}

// dial builds and initializes a client outside the table lock.
func (m *Manager) dial(ctx context.Context, cfg ServiceConfig) (*Client, []Tool, error) {
	transport, err := m.newTransport(cfg)
	if err != nil {
		return nil, nil, err
	}
	client := NewClient(cfg, transport, m.logger)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	if err := client.Initialize(connectCtx); err != nil {
		return nil, nil, err
	}
	tools, err := client.ListTools(connectCtx)
	if err != nil {
		_ = client.Shutdown()
		return nil, nil, err
	}
	return client, tools, nil
}

// ConnectEnabled connects every enabled descriptor concurrently.
// Disabled descriptors are never dialed. Individual failures are logged
// and do not stop the others; only context cancellation aborts the
// fan-out.
func (m *Manager) ConnectEnabled(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, cfg := range m.store.All() {
		if !cfg.Enabled {
			continue
		}
		name := cfg.Name
		g.Go(func() error {
			if err := m.Connect(gctx, name); err != nil {
				if errors.Is(err, ErrAlreadyConnected) {
					return nil
				}
				if gctx.Err() != nil {
					return gctx.Err()
				}
				m.logger.Warn("mcp: auto-connect failed", "service", name, "err", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Disconnect tears down the connection for name and discards its cached
// tools. Idempotent: disconnecting an unconnected service is a no-op.
func (m *Manager) Disconnect(_ context.Context, name string) {
	m.mu.Lock()
	conn, ok := m.conns[name]
	if ok {
		delete(m.conns, name)
	}
	m.mu.Unlock()

	if !ok || conn.client == nil {
		return
	}
	if err := conn.client.Shutdown(); err != nil {
		m.logger.Warn("mcp: shutdown error", "service", name, "err", err)
	}
	m.logger.Info("mcp: disconnected", "service", name)
}

// DisconnectAll disconnects every live connection.
func (m *Manager) DisconnectAll(ctx context.Context) {
	m.mu.Lock()
	names := make([]string, 0, len(m.conns))
	for name := range m.conns {
		names = append(names, name)
	}
	m.mu.Unlock()

	for _, name := range names {
		m.Disconnect(ctx, name)
	}
}

// RemoveService disconnects name if connected, then drops its
// descriptor from the store. Reports whether the descriptor existed.
func (m *Manager) RemoveService(ctx context.Context, name string) bool {
	m.Disconnect(ctx, name)
	return m.store.Remove(name)
}

// Tools aggregates the tool sets of all connected services, ordered by
// service name. With a non-empty filter it returns that one service's
// tools, failing with ErrUnknownService or ErrNotConnected as
// appropriate.
func (m *Manager) Tools(_ context.Context, filter string) ([]Tool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if filter != "" {
		if _, ok := m.store.Get(filter); !ok {
			return nil, serviceErr(filter, ErrUnknownService, nil)
		}
		conn, ok := m.conns[filter]
		if !ok || conn.state != ConnConnected {
			return nil, serviceErr(filter, ErrNotConnected, nil)
		}
		return append([]Tool(nil), conn.tools...), nil
	}

	var out []Tool
	for _, cfg := range m.store.All() {
		if conn, ok := m.conns[cfg.Name]; ok && conn.state == ConnConnected {
			out = append(out, conn.tools...)
		}
	}
	return out, nil
}

// CallTool routes one tool call to the connected service. Calls on a
// service that was never connected (or has been disconnected) fail with
// ErrNotConnected rather than silently doing nothing.
func (m *Manager) CallTool(ctx context.Context, service, tool string, args map[string]any) (string, error) {
	m.mu.Lock()
	conn, ok := m.conns[service]
	if !ok || conn.state != ConnConnected || conn.client == nil {
		m.mu.Unlock()
		return "", serviceErr(service, ErrNotConnected, nil)
	}
	client := conn.client
	m.mu.Unlock()

	inv := newInvocation(service, tool, args)
	m.logger.Debug("mcp: invoking tool",
		"invocation", inv.ID, "service", service, "tool", tool)

	result, err := client.CallTool(ctx, tool, args)
	if err != nil {
		// Transport loss closed the client underneath us; reflect that
		// in the connection table.
		if client.State() == StateClosed {
			m.mu.Lock()
			if conn, ok := m.conns[service]; ok {
				conn.state = ConnFailed
				conn.tools = nil
			}
			m.mu.Unlock()
		}
		return "", err
	}

	m.logger.Debug("mcp: tool call finished",
		"invocation", inv.ID, "service", service, "tool", tool,
		"elapsed", time.Since(inv.StartedAt))
	return result, nil
}
