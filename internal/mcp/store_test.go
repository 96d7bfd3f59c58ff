package mcp

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestLoad_EmptyDirSeedsExample(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	cfg, ok := s.Get("example-filesystem")
	if !ok {
		t.Fatal("example descriptor not seeded")
	}
	if cfg.Enabled {
		t.Error("seeded example must be disabled")
	}
	if cfg.Transport != TransportStdio || cfg.Endpoint != "npx" {
		t.Errorf("unexpected example descriptor: %+v", cfg)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "example-filesystem.json")); err != nil {
		t.Errorf("example descriptor file missing: %v", err)
	}
}

func TestLoad_SkipsBadDescriptors(t *testing.T) {
	dir := t.TempDir()
	writeFile := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	writeFile("good.json", `{"name":"good","transport":"stdio","endpoint":"srv","enabled":true}`)
	writeFile("broken.json", `{not json`)
	writeFile("noname.json", `{"transport":"stdio","endpoint":"srv"}`)
	writeFile("badtransport.json", `{"name":"bad","transport":"carrier-pigeon","endpoint":"srv"}`)
	writeFile("notes.txt", "ignored")

	s := NewStore(dir)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	all := s.All()
	if len(all) != 1 || all[0].Name != "good" {
		t.Fatalf("expected only the good descriptor, got %v", all)
	}
}

func TestAddRemove_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)

	cfg := ServiceConfig{
		Name:      "files",
		Transport: TransportStdio,
		Endpoint:  "mcp-files",
		Args:      []string{"--root", "/data"},
		Enabled:   true,
	}
	if err := s.Add(cfg); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "files.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		t.Errorf("descriptor mode = %o, want 600", info.Mode().Perm())
	}

	// A fresh store over the same dir sees the descriptor.
	s2 := NewStore(dir)
	if err := s2.Load(); err != nil {
		t.Fatal(err)
	}
	got, ok := s2.Get("files")
	if !ok || got.Endpoint != "mcp-files" || len(got.Args) != 2 {
		t.Fatalf("reloaded descriptor differs: %+v", got)
	}

	if !s.Remove("files") {
		t.Fatal("remove reported missing service")
	}
	if s.Remove("files") {
		t.Error("second remove should report false")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("descriptor file survives removal")
	}
}

func TestAdd_RejectsInvalidDescriptors(t *testing.T) {
	s := NewStore(t.TempDir())

	cases := []ServiceConfig{
		{Transport: TransportStdio, Endpoint: "x"},
		{Name: "bad", Transport: "smoke-signal", Endpoint: "x"},
	}
	for _, cfg := range cases {
		if err := s.Add(cfg); !errors.Is(err, ErrConfiguration) {
			t.Errorf("Add(%+v) err = %v, want ErrConfiguration", cfg, err)
		}
	}
}

func TestAll_SortedByName(t *testing.T) {
	s := NewStore(t.TempDir())
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := s.Add(ServiceConfig{Name: name, Transport: TransportHTTP, Endpoint: "http://x", Enabled: true}); err != nil {
			t.Fatal(err)
		}
	}

	all := s.All()
	if len(all) != 3 || all[0].Name != "alpha" || all[1].Name != "mid" || all[2].Name != "zeta" {
		t.Errorf("not sorted: %v", all)
	}
}

func TestTimeout_Default(t *testing.T) {
	var cfg ServiceConfig
	if cfg.Timeout().Seconds() != 30 {
		t.Errorf("default timeout = %v", cfg.Timeout())
	}
	cfg.TimeoutSec = 5
	if cfg.Timeout().Seconds() != 5 {
		t.Errorf("explicit timeout = %v", cfg.Timeout())
	}
}
