package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// stdioTransport talks to an MCP server running as a child process.
// Frames are newline-delimited JSON on the child's stdin/stdout; stderr
// is drained to the debug log so server chatter never corrupts the
// protocol stream.
type stdioTransport struct {
	cfg ServiceConfig

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	reader *bufio.Reader
	exited chan struct{} // closed when the child terminates
	werr   error         // Wait result, valid after exited is closed
}

func newStdioTransport(cfg ServiceConfig) *stdioTransport {
	return &stdioTransport{cfg: cfg}
}

// Open spawns the child process and wires up the pipes. The endpoint is
// the executable; Args are passed through verbatim.
func (t *stdioTransport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd != nil {
		return nil
	}
	if t.cfg.Endpoint == "" {
		return serviceErr(t.cfg.Name, ErrConfiguration, errNoEndpoint)
	}

	cmd := exec.Command(t.cfg.Endpoint, t.cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range t.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return serviceErr(t.cfg.Name, ErrConnection, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return serviceErr(t.cfg.Name, ErrConnection, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		return serviceErr(t.cfg.Name, ErrConnection, err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return serviceErr(t.cfg.Name, ErrConnection, err)
	}

	t.cmd = cmd
	t.stdin = stdin
	t.reader = bufio.NewReaderSize(stdout, 1<<20)
	t.exited = make(chan struct{})

	go t.drainStderr(stderr)
	go func() {
		t.werr = cmd.Wait()
		close(t.exited)
	}()

	slog.Debug("mcp: subprocess started",
		"service", t.cfg.Name, "command", t.cfg.Endpoint, "pid", cmd.Process.Pid)
	return nil
}

func (t *stdioTransport) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		slog.Debug("mcp: subprocess stderr", "service", t.cfg.Name, "line", scanner.Text())
	}
}

// Send writes one frame followed by the newline delimiter.
func (t *stdioTransport) Send(_ context.Context, frame json.RawMessage) error {
	t.mu.Lock()
	stdin := t.stdin
	t.mu.Unlock()

	if stdin == nil {
		return serviceErr(t.cfg.Name, ErrTransport, errNotOpen)
	}
	if t.hasExited() {
		return serviceErr(t.cfg.Name, ErrProcessExited, t.werr)
	}
	if _, err := stdin.Write(append(frame, '\n')); err != nil {
		if t.hasExited() {
			return serviceErr(t.cfg.Name, ErrProcessExited, t.werr)
		}
		return serviceErr(t.cfg.Name, ErrTransport, err)
	}
	return nil
}

type stdioRead struct {
	line []byte
	err  error
}

// Receive blocks for the next stdout line. The read runs in a goroutine
// so context cancellation can interrupt it; on cancellation the child is
// killed to unblock the read.
func (t *stdioTransport) Receive(ctx context.Context) (json.RawMessage, error) {
	t.mu.Lock()
	reader := t.reader
	t.mu.Unlock()

	if reader == nil {
		return nil, serviceErr(t.cfg.Name, ErrTransport, errNotOpen)
	}

	ch := make(chan stdioRead, 1)
	go func() {
		line, err := reader.ReadBytes('\n')
		ch <- stdioRead{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		t.kill()
		return nil, serviceErr(t.cfg.Name, ErrTransport, ctx.Err())
	case res := <-ch:
		if res.err != nil {
			if t.hasExited() {
				return nil, serviceErr(t.cfg.Name, ErrProcessExited, t.werr)
			}
			return nil, serviceErr(t.cfg.Name, ErrTransport, res.err)
		}
		return json.RawMessage(res.line), nil
	}
}

// Close shuts stdin to let the child exit, then kills it if it lingers.
// Idempotent.
func (t *stdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd == nil {
		return nil
	}
	if t.stdin != nil {
		t.stdin.Close()
	}

	select {
	case <-t.exited:
	case <-time.After(5 * time.Second):
		slog.Warn("mcp: subprocess did not exit, killing",
			"service", t.cfg.Name, "pid", t.cmd.Process.Pid)
		_ = t.cmd.Process.Kill()
		<-t.exited
	}

	t.cmd = nil
	t.stdin = nil
	t.reader = nil
	return nil
}

func (t *stdioTransport) hasExited() bool {
	t.mu.Lock()
	exited := t.exited
	t.mu.Unlock()
	if exited == nil {
		return false
	}
	select {
	case <-exited:
		return true
	default:
		return false
	}
}

func (t *stdioTransport) kill() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
}
