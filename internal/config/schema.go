// Package config defines shen's configuration schema and the JSON
// load/save layer for ~/.shen/config.json.
//
// JSON keys use snake_case to stay byte-compatible with config files
// created by earlier shen releases.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Config is the root application configuration.
type Config struct {
	// Debug enables debug logging.
	Debug bool `json:"debug"`

	// PluginDirs are the directories scanned for plugin manifests.
	PluginDirs []string `json:"plugin_dirs"`

	// MCPEnabled gates the MCP integration as a whole. When false the
	// service manager never auto-connects anything.
	MCPEnabled bool `json:"mcp_enabled"`

	// MCPDir overrides the service-descriptor directory
	// (default ~/.shen/mcp).
	MCPDir string `json:"mcp_dir,omitempty"`

	// Workspace is where plugins and tasks read and write files
	// (default ~/.shen/workspace).
	Workspace string `json:"workspace,omitempty"`

	// TaskStore overrides the scheduled-task store path
	// (default ~/.shen/tasks/jobs.json).
	TaskStore string `json:"task_store,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Debug:      false,
		PluginDirs: []string{"~/.shen/plugins"},
		MCPEnabled: true,
	}
}

// DataDir returns the shen data directory: ~/.shen, overridable with
// SHEN_HOME.
func DataDir() string {
	if dir := os.Getenv("SHEN_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shen"
	}
	return filepath.Join(home, ".shen")
}

// ConfigPath returns the default configuration file path:
// ~/.shen/config.json.
func ConfigPath() string {
	return filepath.Join(DataDir(), "config.json")
}

// MCPStoreDir resolves the effective service-descriptor directory.
func (c *Config) MCPStoreDir() string {
	if c.MCPDir != "" {
		return expandHome(c.MCPDir)
	}
	return filepath.Join(DataDir(), "mcp")
}

// WorkspacePath resolves the effective workspace directory.
func (c *Config) WorkspacePath() string {
	if c.Workspace != "" {
		return expandHome(c.Workspace)
	}
	return filepath.Join(DataDir(), "workspace")
}

// TaskStorePath resolves the effective scheduled-task store path.
func (c *Config) TaskStorePath() string {
	if c.TaskStore != "" {
		return expandHome(c.TaskStore)
	}
	return filepath.Join(DataDir(), "tasks", "jobs.json")
}

// ExpandedPluginDirs returns PluginDirs with ~ expanded.
func (c *Config) ExpandedPluginDirs() []string {
	out := make([]string, 0, len(c.PluginDirs))
	for _, d := range c.PluginDirs {
		out = append(out, expandHome(d))
	}
	return out
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}

// applyEnv layers SHEN_* environment overrides onto cfg, mirroring the
// env handling of earlier releases.
func applyEnv(cfg *Config) {
	switch strings.ToLower(os.Getenv("SHEN_DEBUG")) {
	case "1", "true", "yes":
		cfg.Debug = true
	}
	if v := os.Getenv("SHEN_MCP_DIR"); v != "" {
		cfg.MCPDir = v
	}
}
