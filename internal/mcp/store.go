package mcp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store reads and writes service descriptors, one JSON document per
// service, under a user-scoped directory (~/.shen/mcp by default).
type Store struct {
	dir string

	mu       sync.Mutex
	services map[string]ServiceConfig
}

// DefaultStoreDir returns ~/.shen/mcp, falling back to a relative path
// when the home directory cannot be resolved.
func DefaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".shen", "mcp")
	}
	return filepath.Join(home, ".shen", "mcp")
}

// NewStore creates a store rooted at dir. Nothing is read until Load.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultStoreDir()
	}
	return &Store{dir: dir, services: make(map[string]ServiceConfig)}
}

// Dir returns the directory this store reads from.
func (s *Store) Dir() string { return s.dir }

// Load reads every *.json descriptor in the store directory. Malformed
// descriptors are logged and skipped, never silently dropped. An empty
// or missing directory is seeded with a disabled example descriptor so
// users have a template to copy.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create config dir %s: %w", s.dir, err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read config dir %s: %w", s.dir, err)
	}

	s.services = make(map[string]ServiceConfig)
	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		cfg, err := readDescriptor(path)
		if err != nil {
			slog.Error("mcp: skipping bad service descriptor", "path", path, "err", err)
			continue
		}
		s.services[cfg.Name] = cfg
		loaded++
		slog.Debug("mcp: loaded service descriptor", "service", cfg.Name, "transport", cfg.Transport)
	}

	if loaded == 0 {
		s.seedExampleLocked()
	}
	return nil
}

func readDescriptor(path string) (ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ServiceConfig{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	var cfg ServiceConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ServiceConfig{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if cfg.Name == "" {
		return ServiceConfig{}, fmt.Errorf("%w: descriptor has no name", ErrConfiguration)
	}
	if !cfg.Transport.Valid() {
		return ServiceConfig{}, fmt.Errorf("%w: unknown transport %q", ErrConfiguration, cfg.Transport)
	}
	return cfg, nil
}

// seedExampleLocked writes the example-filesystem template. The example
// ships disabled so nothing dials it without the user opting in.
func (s *Store) seedExampleLocked() {
	example := ServiceConfig{
		Name:        "example-filesystem",
		Description: "Example filesystem MCP server",
		Transport:   TransportStdio,
		Endpoint:    "npx",
		Args:        []string{"@modelcontextprotocol/server-filesystem", "/tmp"},
		Enabled:     false,
		TimeoutSec:  30,
	}
	if err := s.writeDescriptor(example); err != nil {
		slog.Warn("mcp: could not seed example descriptor", "err", err)
		return
	}
	s.services[example.Name] = example
	slog.Info("mcp: created example service descriptor",
		"path", filepath.Join(s.dir, example.Name+".json"))
}

// Add registers cfg and persists it as <name>.json.
func (s *Store) Add(cfg ServiceConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: descriptor has no name", ErrConfiguration)
	}
	if !cfg.Transport.Valid() {
		return fmt.Errorf("%w: unknown transport %q", ErrConfiguration, cfg.Transport)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create config dir %s: %w", s.dir, err)
	}
	if err := s.writeDescriptor(cfg); err != nil {
		return err
	}
	s.services[cfg.Name] = cfg
	slog.Info("mcp: added service", "service", cfg.Name)
	return nil
}

func (s *Store) writeDescriptor(cfg ServiceConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal descriptor %s: %w", cfg.Name, err)
	}
	data = append(data, '\n')
	path := filepath.Join(s.dir, cfg.Name+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write descriptor %s: %w", path, err)
	}
	return nil
}

// Remove drops the descriptor and its file. Reports whether the service
// existed.
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.services[name]; !ok {
		return false
	}
	delete(s.services, name)
	path := filepath.Join(s.dir, name+".json")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Warn("mcp: could not remove descriptor file", "path", path, "err", err)
	}
	slog.Info("mcp: removed service", "service", name)
	return true
}

// Get returns the descriptor for name.
func (s *Store) Get(name string) (ServiceConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.services[name]
	return cfg, ok
}

// All returns every descriptor ordered by name.
func (s *Store) All() []ServiceConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ServiceConfig, 0, len(s.services))
	for _, cfg := range s.services {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
