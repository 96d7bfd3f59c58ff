package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shen-assistant/shen/internal/plugin"
)

// RunTask routes a task to the plugin layer: the first plugin claiming
// the task executes it. Tasks no plugin claims return an error telling
// the user what shen can currently do.
func (c *Container) RunTask(ctx context.Context, taskText string, args map[string]string) (string, error) {
	return runTask(ctx, c.plugins, taskText, args)
}

func runTask(ctx context.Context, plugins *plugin.Manager, taskText string, args map[string]string) (string, error) {
	taskText = strings.TrimSpace(taskText)
	if taskText == "" {
		return "", fmt.Errorf("empty task")
	}

	matches := plugins.Registry().FindForTask(taskText)
	if len(matches) == 0 {
		return "", fmt.Errorf("no plugin can handle %q; run 'shen plugins' to see what is available", taskText)
	}
	p := matches[0]
	if len(matches) > 1 {
		var names []string
		for _, m := range matches {
			names = append(names, m.Name())
		}
		slog.Debug("app: multiple plugins match, using first", "task", taskText, "plugins", names)
	}

	slog.Info("app: running task", "plugin", p.Name(), "task", taskText)
	return p.Execute(ctx, taskText, args)
}

// Info summarizes the running installation: configured plugins, their
// capabilities, and the known MCP services.
func (c *Container) Info() string {
	var b strings.Builder

	b.WriteString("shen — personal assistant\n\n")

	b.WriteString("Plugins:\n")
	all := c.plugins.Registry().All()
	if len(all) == 0 {
		b.WriteString("  (none discovered)\n")
	}
	for _, p := range all {
		caps := strings.Join(p.Capabilities(), ", ")
		if caps == "" {
			caps = "-"
		}
		fmt.Fprintf(&b, "  %-16s %s [%s]\n", p.Name(), p.Description(), caps)
	}

	b.WriteString("\nMCP services:\n")
	services := c.store.All()
	if len(services) == 0 {
		b.WriteString("  (none configured)\n")
	}
	for _, svc := range services {
		state := "disabled"
		if svc.Enabled {
			state = c.mcpMgr.State(svc.Name).String()
		}
		fmt.Fprintf(&b, "  %-16s %-10s %s\n", svc.Name, state, svc.Description)
	}

	return b.String()
}

// Capabilities returns the deduplicated capability names across all
// plugins, sorted.
func (c *Container) Capabilities() []string {
	seen := make(map[string]bool)
	for _, p := range c.plugins.Registry().All() {
		for _, name := range p.Capabilities() {
			seen[name] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close shuts down everything the container owns that holds external
// resources. Safe to call on a partially used container.
func (c *Container) Close(ctx context.Context) {
	c.mcpMgr.DisconnectAll(ctx)
}
