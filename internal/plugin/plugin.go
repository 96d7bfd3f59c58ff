// Package plugin implements shen's plugin system: the Plugin contract,
// an immutable registry built through a builder, and manifest-based
// discovery from the configured plugin directories.
package plugin

import "context"

// Plugin is the contract every shen plugin satisfies. Built-in plugins
// implement it directly; external plugins are wrapped by commandPlugin
// from their manifest.
type Plugin interface {
	Name() string
	Description() string
	// Capabilities names what this plugin can do, for the info listing.
	Capabilities() []string
	// CanHandle reports whether this plugin wants the given task.
	CanHandle(task string) bool
	// Execute runs the task and returns its textual result.
	Execute(ctx context.Context, task string, args map[string]string) (string, error)
}
