package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// manifestName is the file each plugin directory must carry.
const manifestName = "plugin.yaml"

// Manifest is the YAML document describing one external plugin:
//
//	name: organize
//	description: Organize files in a directory
//	capabilities: [file-organization]
//	match: [organize, tidy, sort files]
//	command: shen-plugin-organize
//	args: ["--task"]
type Manifest struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Capabilities []string `yaml:"capabilities"`
	// Match lists lowercase substrings; a task containing any of them
	// is claimed by this plugin.
	Match   []string `yaml:"match"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Manager discovers plugins from the configured directories and holds
// the resulting registry.
type Manager struct {
	dirs     []string
	logger   *slog.Logger
	registry *Registry
}

// NewManager creates a manager scanning the given directories.
// Discovery does not run until Discover is called.
func NewManager(dirs []string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		dirs:     dirs,
		logger:   logger,
		registry: NewBuilder().Build(),
	}
}

// Discover scans every plugin directory for <dir>/<name>/plugin.yaml,
// parses each manifest, and rebuilds the registry. Bad manifests are
// logged and skipped. Extra built-in plugins may be passed in; they
// take precedence over manifest plugins with the same name.
func (m *Manager) Discover(builtin ...Plugin) {
	b := NewBuilder()

	for _, dir := range m.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				m.logger.Warn("plugin: cannot read plugin dir", "dir", dir, "err", err)
			}
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			path := filepath.Join(dir, e.Name(), manifestName)
			mf, err := readManifest(path)
			if err != nil {
				if !os.IsNotExist(err) {
					m.logger.Warn("plugin: skipping bad manifest", "path", path, "err", err)
				}
				continue
			}
			b.With(&commandPlugin{manifest: mf, baseDir: filepath.Join(dir, e.Name())})
			m.logger.Debug("plugin: discovered", "name", mf.Name, "path", path)
		}
	}

	for _, p := range builtin {
		b.With(p)
	}

	m.registry = b.Build()
	m.logger.Info("plugin: discovery finished", "plugins", m.registry.Len())
}

// Registry returns the current registry.
func (m *Manager) Registry() *Registry { return m.registry }

func readManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, err
	}
	var mf Manifest
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	if mf.Name == "" {
		return Manifest{}, fmt.Errorf("manifest has no name")
	}
	if mf.Command == "" {
		return Manifest{}, fmt.Errorf("manifest %s has no command", mf.Name)
	}
	return mf, nil
}

// commandPlugin runs an external executable described by a manifest.
// The task is appended as the final argument; extra args become
// KEY=VALUE pairs on the environment.
type commandPlugin struct {
	manifest Manifest
	baseDir  string
}

func (p *commandPlugin) Name() string           { return p.manifest.Name }
func (p *commandPlugin) Description() string    { return p.manifest.Description }
func (p *commandPlugin) Capabilities() []string { return p.manifest.Capabilities }

func (p *commandPlugin) CanHandle(task string) bool {
	lower := strings.ToLower(task)
	for _, needle := range p.manifest.Match {
		if needle != "" && strings.Contains(lower, strings.ToLower(needle)) {
			return true
		}
	}
	return false
}

func (p *commandPlugin) Execute(ctx context.Context, task string, args map[string]string) (string, error) {
	argv := append(append([]string(nil), p.manifest.Args...), task)
	cmd := exec.CommandContext(ctx, p.manifest.Command, argv...)
	cmd.Dir = p.baseDir
	cmd.Env = os.Environ()
	for k, v := range args {
		cmd.Env = append(cmd.Env, "SHEN_ARG_"+strings.ToUpper(k)+"="+v)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("plugin %s: %w: %s", p.manifest.Name, err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
