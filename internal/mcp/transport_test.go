package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestNewTransport_Factory(t *testing.T) {
	for _, kind := range []TransportKind{TransportStdio, TransportHTTP, TransportWebSocket} {
		tr, err := NewTransport(ServiceConfig{Name: "svc", Transport: kind, Endpoint: "x"})
		if err != nil {
			t.Fatalf("NewTransport(%s): %v", kind, err)
		}
		if tr == nil {
			t.Fatalf("NewTransport(%s) returned nil", kind)
		}
	}

	_, err := NewTransport(ServiceConfig{Name: "svc", Transport: "telepathy"})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("unknown transport err = %v, want ErrConfiguration", err)
	}
}

// ---- http ------------------------------------------------------------------

func TestHTTPTransport_RoundTrip(t *testing.T) {
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		var req struct {
			ID int64 `json:"id"`
		}
		_ = json.Unmarshal(body, &req)
		w.Header().Set("Mcp-Session", "sess-1")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{"ok": true},
		})
	}))
	defer srv.Close()

	tr := newHTTPTransport(ServiceConfig{
		Name:      "svc",
		Transport: TransportHTTP,
		Endpoint:  srv.URL,
		Headers:   map[string]string{"Authorization": "Bearer tok"},
	})
	ctx := context.Background()
	if err := tr.Open(ctx); err != nil {
		t.Fatal(err)
	}

	if err := tr.Send(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)); err != nil {
		t.Fatal(err)
	}
	if gotHeader.Get("Authorization") != "Bearer tok" {
		t.Error("custom header not forwarded")
	}
	if gotHeader.Get("Content-Type") != "application/json" {
		t.Error("content type not set")
	}

	frame, err := tr.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var resp response
	if err := json.Unmarshal(frame, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != 1 {
		t.Errorf("response id = %d", resp.ID)
	}

	// The session id from the first response rides along on later sends.
	if err := tr.Send(ctx, json.RawMessage(`{"jsonrpc":"2.0","id":2,"method":"ping"}`)); err != nil {
		t.Fatal(err)
	}
	if gotHeader.Get("Mcp-Session") != "sess-1" {
		t.Error("session header not propagated")
	}
	if _, err := tr.Receive(ctx); err != nil {
		t.Fatal(err)
	}
	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestHTTPTransport_NotificationQueuesNothing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	tr := newHTTPTransport(ServiceConfig{Name: "svc", Transport: TransportHTTP, Endpoint: srv.URL})
	ctx := context.Background()
	if err := tr.Open(ctx); err != nil {
		t.Fatal(err)
	}
	if err := tr.Send(ctx, json.RawMessage(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)); err != nil {
		t.Fatal(err)
	}

	recvCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := tr.Receive(recvCtx); !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport from deadline", err)
	}
}

func TestHTTPTransport_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := newHTTPTransport(ServiceConfig{Name: "svc", Transport: TransportHTTP, Endpoint: srv.URL})
	ctx := context.Background()
	if err := tr.Open(ctx); err != nil {
		t.Fatal(err)
	}
	err := tr.Send(ctx, json.RawMessage(`{}`))
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
}

func TestHTTPTransport_UsedBeforeOpen(t *testing.T) {
	tr := newHTTPTransport(ServiceConfig{Name: "svc", Transport: TransportHTTP, Endpoint: "http://localhost:1"})
	ctx := context.Background()

	if err := tr.Send(ctx, json.RawMessage(`{}`)); !errors.Is(err, ErrTransport) {
		t.Fatalf("Send err = %v, want ErrTransport", err)
	}
	if _, err := tr.Receive(ctx); !errors.Is(err, ErrTransport) {
		t.Fatalf("Receive err = %v, want ErrTransport", err)
	}
}

func TestHTTPTransport_OpenWithoutEndpoint(t *testing.T) {
	tr := newHTTPTransport(ServiceConfig{Name: "svc", Transport: TransportHTTP})
	if err := tr.Open(context.Background()); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

// ---- stdio -----------------------------------------------------------------

func TestStdioTransport_RoundTrip(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs cat")
	}

	// cat echoes every line back, which is exactly one frame per frame.
	tr := newStdioTransport(ServiceConfig{Name: "svc", Transport: TransportStdio, Endpoint: "cat"})
	ctx := context.Background()
	if err := tr.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	frame := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	if err := tr.Send(ctx, frame); err != nil {
		t.Fatal(err)
	}

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	got, err := tr.Receive(recvCtx)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(got)) != string(frame) {
		t.Errorf("echoed frame = %q", got)
	}
}

func TestStdioTransport_ProcessExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs sh")
	}

	tr := newStdioTransport(ServiceConfig{
		Name: "svc", Transport: TransportStdio,
		Endpoint: "sh", Args: []string{"-c", "exit 0"},
	})
	ctx := context.Background()
	if err := tr.Open(ctx); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	// Give the child time to exit and Wait to observe it.
	time.Sleep(200 * time.Millisecond)

	// Receive observes EOF once the child is gone.
	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := tr.Receive(recvCtx)
	if !errors.Is(err, ErrProcessExited) {
		t.Fatalf("err = %v, want ErrProcessExited", err)
	}

	// So do later sends.
	if err := tr.Send(ctx, json.RawMessage(`{}`)); !errors.Is(err, ErrProcessExited) {
		t.Fatalf("Send err = %v, want ErrProcessExited", err)
	}
}

func TestStdioTransport_UsedBeforeOpen(t *testing.T) {
	tr := newStdioTransport(ServiceConfig{Name: "svc", Transport: TransportStdio, Endpoint: "cat"})
	ctx := context.Background()

	if err := tr.Send(ctx, json.RawMessage(`{}`)); !errors.Is(err, ErrTransport) {
		t.Fatalf("Send err = %v, want ErrTransport", err)
	}
	if _, err := tr.Receive(ctx); !errors.Is(err, ErrTransport) {
		t.Fatalf("Receive err = %v, want ErrTransport", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close before Open: %v", err)
	}
}

func TestStdioTransport_OpenBadCommand(t *testing.T) {
	tr := newStdioTransport(ServiceConfig{
		Name: "svc", Transport: TransportStdio,
		Endpoint: "/nonexistent/mcp-server-binary",
	})
	if err := tr.Open(context.Background()); !errors.Is(err, ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
}

// ---- websocket -------------------------------------------------------------

func wsEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
}

func TestWSTransport_RoundTrip(t *testing.T) {
	srv := wsEchoServer(t)
	defer srv.Close()

	tr := newWebSocketTransport(ServiceConfig{
		Name: "svc", Transport: TransportWebSocket,
		Endpoint: "ws" + strings.TrimPrefix(srv.URL, "http"),
	})
	ctx := context.Background()
	if err := tr.Open(ctx); err != nil {
		t.Fatal(err)
	}

	frame := json.RawMessage(`{"jsonrpc":"2.0","id":7,"method":"ping"}`)
	if err := tr.Send(ctx, frame); err != nil {
		t.Fatal(err)
	}
	got, err := tr.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(frame) {
		t.Errorf("echoed frame = %q", got)
	}

	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := tr.Send(ctx, frame); !errors.Is(err, ErrTransport) {
		t.Fatalf("Send after close err = %v, want ErrTransport", err)
	}
}

func TestWSTransport_ReceiveDeadline(t *testing.T) {
	srv := wsEchoServer(t)
	defer srv.Close()

	tr := newWebSocketTransport(ServiceConfig{
		Name: "svc", Transport: TransportWebSocket,
		Endpoint: "ws" + strings.TrimPrefix(srv.URL, "http"),
	})
	if err := tr.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := tr.Receive(ctx); err == nil {
		t.Fatal("expected deadline error with nothing inbound")
	}
}

func TestWSTransport_DialFailure(t *testing.T) {
	tr := newWebSocketTransport(ServiceConfig{
		Name: "svc", Transport: TransportWebSocket,
		Endpoint: "ws://127.0.0.1:1", TimeoutSec: 1,
	})
	if err := tr.Open(context.Background()); !errors.Is(err, ErrConnection) {
		t.Fatalf("err = %v, want ErrConnection", err)
	}
}
