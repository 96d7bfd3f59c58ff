package mcp

import (
	"errors"
	"fmt"
)

// Sentinel errors for the MCP layer. Callers match with errors.Is; the
// concrete error in the chain is usually a *ServiceError carrying the
// service name and underlying cause.
var (
	// ErrConfiguration marks a malformed or missing service descriptor.
	ErrConfiguration = errors.New("invalid service configuration")

	// ErrConnection marks a failure to reach an endpoint or to complete
	// the connect within the descriptor's timeout.
	ErrConnection = errors.New("connection failed")

	// ErrTransport marks a send/receive on a transport that is not open,
	// or a wire-level failure on an open one.
	ErrTransport = errors.New("transport failure")

	// ErrProcessExited marks an MCP subprocess that terminated
	// unexpectedly underneath a stdio transport.
	ErrProcessExited = errors.New("server process exited")

	// ErrProtocolVersion marks an initialize handshake where the server
	// demanded an incompatible protocol revision.
	ErrProtocolVersion = errors.New("protocol version mismatch")

	// ErrToolInvocation marks a tool call the remote server rejected or
	// failed; the wrapped error carries the remote payload.
	ErrToolInvocation = errors.New("tool invocation failed")

	// ErrUnknownService marks a service name absent from the store.
	ErrUnknownService = errors.New("unknown service")

	// ErrAlreadyConnected marks a connect on a name that already has a
	// live (or in-flight) connection.
	ErrAlreadyConnected = errors.New("service already connected")

	// ErrServiceDisabled marks a connect on a descriptor with enabled=false.
	ErrServiceDisabled = errors.New("service disabled")

	// ErrNotConnected marks an operation that requires a connected
	// service (tool call, tool listing for one service).
	ErrNotConnected = errors.New("service not connected")
)

// ServiceError ties a sentinel to the service it concerns and the
// underlying cause, so callers always know which service failed and why.
type ServiceError struct {
	Service string
	Kind    error // one of the sentinels above
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("service %q: %v", e.Service, e.Kind)
	}
	return fmt.Sprintf("service %q: %v: %v", e.Service, e.Kind, e.Cause)
}

// Is matches the sentinel kind, so errors.Is(err, ErrConnection) works
// through a *ServiceError.
func (e *ServiceError) Is(target error) bool { return errors.Is(e.Kind, target) }

// Unwrap exposes the underlying cause.
func (e *ServiceError) Unwrap() error { return e.Cause }

func serviceErr(service string, kind, cause error) *ServiceError {
	return &ServiceError{Service: service, Kind: kind, Cause: cause}
}

// Shared low-level causes.
var (
	errNotOpen    = errors.New("transport not open")
	errNoEndpoint = errors.New("no endpoint configured")
)
