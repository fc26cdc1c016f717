package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"nvdiff/internal/domain"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		input string
		want  Backend
		ok    bool
	}{
		{"sqlite", BackendSQLite, true},
		{"Badger", BackendBadger, true},
		{"memory", BackendMemory, true},
		{"postgres", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseBackend(tt.input)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseBackend(%q) = %s, %v, want %s, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Comparison.Method != domain.MethodTopological {
		t.Errorf("Method = %s, want %s", cfg.Comparison.Method, domain.MethodTopological)
	}
	if cfg.Comparison.Tolerance != DefaultTolerance {
		t.Errorf("Tolerance = %g, want %g", cfg.Comparison.Tolerance, DefaultTolerance)
	}
	if cfg.Ledger.Backend != BackendSQLite || cfg.Ledger.Path == "" {
		t.Errorf("Ledger = %+v, want sqlite with a path", cfg.Ledger)
	}
	if cfg.Watch.Debounce.Duration() != DefaultDebounce {
		t.Errorf("Debounce = %s, want %s", cfg.Watch.Debounce.Duration(), DefaultDebounce)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig() should validate: %v", err)
	}
}

func TestParse(t *testing.T) {
	doc := `
version: 1
comparison:
  method: vertex
  tolerance: 0.001
  workers: 4
providers:
  NB:
    method: junction
    tolerance: 0.5
  on:
    method: topological
matching:
  search_radius: 10
  class_fields: [roadclass]
ledger:
  backend: memory
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	if cfg.Ledger.Path != "" {
		t.Errorf("Ledger.Path = %q, memory backend should not get a default path", cfg.Ledger.Path)
	}
	if len(cfg.Matching.ClassFields) != 1 || cfg.Matching.ClassFields[0] != "roadclass" {
		t.Errorf("ClassFields = %v, want [roadclass]", cfg.Matching.ClassFields)
	}

	tests := []struct {
		dataset string
		want    Settings
	}{
		{"nb", Settings{Method: domain.MethodJunction, Tolerance: 0.5, Workers: 4}},
		{"NB", Settings{Method: domain.MethodJunction, Tolerance: 0.5, Workers: 4}},
		{"on", Settings{Method: domain.MethodTopological, Tolerance: 0.001, Workers: 4}},
		{"yt", Settings{Method: domain.MethodVertex, Tolerance: 0.001, Workers: 4}},
	}
	for _, tt := range tests {
		if got := cfg.SettingsFor(tt.dataset); got != tt.want {
			t.Errorf("SettingsFor(%q) = %+v, want %+v", tt.dataset, got, tt.want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown method", "comparison: {method: fuzzy}", "comparison_method"},
		{"unknown provider method", "providers: {nb: {method: fuzzy}}", "comparison_method"},
		{"negative tolerance", "comparison: {tolerance: -1}", "gte"},
		{"unknown backend", "ledger: {backend: postgres}", "oneof"},
		{"bad log level", "logging: {level: loud}", "oneof"},
		{"not yaml", "comparison: [", "parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("Parse() should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	tol := 0.25
	cfg := DefaultConfig()
	cfg.Comparison.Method = domain.MethodJunction
	cfg.Providers = map[string]ProviderConfig{"nb": {Method: domain.MethodVertex, Tolerance: &tol}}
	cfg.Ledger.Backend = BackendBadger
	cfg.Ledger.Path = filepath.Join(tmpDir, "ledger")
	cfg.Watch.Debounce = Duration(2 * time.Second)

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, path, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error: %v", err)
	}
	if path != configPath {
		t.Errorf("path = %s, want %s", path, configPath)
	}

	if loaded.Comparison.Method != domain.MethodJunction {
		t.Errorf("Method = %s, want junction", loaded.Comparison.Method)
	}
	if got := loaded.SettingsFor("nb"); got.Method != domain.MethodVertex || got.Tolerance != tol {
		t.Errorf("SettingsFor(nb) = %+v", got)
	}
	if loaded.Ledger.Backend != BackendBadger {
		t.Errorf("Backend = %s, want badger", loaded.Ledger.Backend)
	}
	if loaded.Watch.Debounce.Duration() != 2*time.Second {
		t.Errorf("Debounce = %s, want 2s", loaded.Watch.Debounce.Duration())
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Error("LoadFromPath() should fail for a missing file")
	}
}

func TestFindConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	t.Chdir(tmpDir)

	found := FindConfigPath()
	if found == "" {
		t.Error("FindConfigPath() should find config in working directory")
	}

	// Explicit path doesn't exist, should fall back
	t.Setenv(EnvConfigPath, "/nonexistent/path.yaml")
	found = FindConfigPath()
	if found == "" {
		t.Error("FindConfigPath() should fall back when env path doesn't exist")
	}

	explicit := filepath.Join(tmpDir, "explicit.yaml")
	if err := cfg.Save(explicit); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	t.Setenv(EnvConfigPath, explicit)
	if found = FindConfigPath(); found != explicit {
		t.Errorf("FindConfigPath() = %s, want %s", found, explicit)
	}
}

func TestSearchPaths(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	t.Setenv("HOME", "/home/u")

	want := []string{
		ConfigFileName,
		"/xdg/nvdiff/config.yaml",
		"/home/u/.config/nvdiff/config.yaml",
		"/etc/nvdiff/config.yaml",
	}
	if diff := cmp.Diff(want, SearchPaths()); diff != "" {
		t.Errorf("SearchPaths() mismatch (-want +got):\n%s", diff)
	}

	t.Setenv(EnvConfigPath, "/explicit.yaml")
	if got := SearchPaths()[0]; got != "/explicit.yaml" {
		t.Errorf("SearchPaths()[0] = %s, want the explicit path", got)
	}
}

func TestDuration(t *testing.T) {
	d := Duration(5 * time.Minute)

	if d.Duration() != 5*time.Minute {
		t.Errorf("Duration() = %s, want 5m", d.Duration())
	}

	marshaled, err := d.MarshalYAML()
	if err != nil {
		t.Fatalf("MarshalYAML() error: %v", err)
	}
	if marshaled != "5m0s" {
		t.Errorf("MarshalYAML() = %v, want 5m0s", marshaled)
	}
}

func TestSummary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers = map[string]ProviderConfig{"on": {}, "nb": {Method: domain.MethodVertex}}

	s := cfg.Summary()
	if !strings.Contains(s, "nb=vertex on=topological") {
		t.Errorf("Summary() = %q, providers should be listed in order", s)
	}
}
