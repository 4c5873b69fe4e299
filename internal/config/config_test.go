package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"imgcat/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("IMGCAT_CATALOG_DSN", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "imgcat")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Catalog.Driver != config.CatalogDriverSQLite {
		t.Fatalf("unexpected catalog driver: %q", cfg.Catalog.Driver)
	}
	if cfg.Catalog.DSN != filepath.Join(wantData, "catalog.db") {
		t.Fatalf("unexpected catalog dsn: %q", cfg.Catalog.DSN)
	}
	if cfg.Journal.Dir != filepath.Join(wantData, "journal") {
		t.Fatalf("unexpected journal dir: %q", cfg.Journal.Dir)
	}
	if cfg.Run.Workers != config.Default().Run.Workers {
		t.Fatalf("unexpected workers: %d", cfg.Run.Workers)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Journal.Dir, cfg.Export.Dir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "imgcat.toml")
	t.Setenv("TCIA_TOKEN", "from-env")

	type source struct {
		Name string `toml:"name"`
		Kind string `toml:"kind"`
		URL  string `toml:"url"`
		Path string `toml:"path"`
	}
	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		Run struct {
			Version int `toml:"version"`
			Workers int `toml:"workers"`
		} `toml:"run"`
		Sources []source            `toml:"sources"`
		Skip    map[string][]string `toml:"skip"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Run.Version = 7
	custom.Run.Workers = 2
	custom.Sources = []source{
		{Name: "TCIA", Kind: "HTTP", URL: "https://example.com/api/"},
		{Name: "path", Kind: "manifest", Path: filepath.Join(tempDir, "path.yaml")},
	}
	custom.Skip = map[string][]string{"CPTAC-CCRCC": {"PATH"}}

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q, got %q (exists=%v)", configPath, resolved, exists)
	}
	if cfg.Run.PreviousVersion != 6 {
		t.Fatalf("expected previous version 6, got %d", cfg.Run.PreviousVersion)
	}
	if got := strings.Join(cfg.SourceNames(), ","); got != "tcia,path" {
		t.Fatalf("unexpected source order: %q", got)
	}
	if cfg.Sources[0].URL != "https://example.com/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Sources[0].URL)
	}
	if cfg.Sources[0].Token != "from-env" {
		t.Fatalf("expected token from env, got %q", cfg.Sources[0].Token)
	}
	skip := cfg.SkipVector("cptac-ccrcc")
	if len(skip) != 2 || skip[0] || !skip[1] {
		t.Fatalf("unexpected skip vector: %v", skip)
	}
	if other := cfg.SkipVector("tcga-luad"); other[0] || other[1] {
		t.Fatalf("expected no skips for unlisted collection, got %v", other)
	}
}

func TestValidateRejectsUnknownSkipSource(t *testing.T) {
	cfg := config.Default()
	cfg.Sources = []config.Source{{Name: "tcia", Kind: config.SourceKindHTTP, URL: "http://x"}}
	cfg.Skip = map[string][]string{"lidc-idri": {"path"}}
	cfg.Export.Dir = t.TempDir()
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "unknown source") {
		t.Fatalf("expected unknown source error, got %v", err)
	}
}

func TestValidateRejectsDuplicateSourceNames(t *testing.T) {
	cfg := config.Default()
	cfg.Export.Dir = t.TempDir()
	cfg.Sources = []config.Source{
		{Name: "tcia", Kind: config.SourceKindHTTP, URL: "http://a"},
		{Name: "tcia", Kind: config.SourceKindHTTP, URL: "http://b"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected duplicate source error")
	}
}

func TestValidateRequiresPostgresDSN(t *testing.T) {
	cfg := config.Default()
	cfg.Export.Dir = t.TempDir()
	cfg.Catalog.Driver = config.CatalogDriverPostgres
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected postgres dsn error")
	}
	cfg.Catalog.DSN = "postgres://localhost/imgcat"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsPreviousVersionAhead(t *testing.T) {
	cfg := config.Default()
	cfg.Export.Dir = t.TempDir()
	cfg.Run.Version = 3
	cfg.Run.PreviousVersion = 3
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected previous version error")
	}
}

func TestCreateSampleLoads(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	target := filepath.Join(tempHome, "conf", "imgcat.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if len(cfg.Sources) != 2 {
		t.Fatalf("expected two sample sources, got %d", len(cfg.Sources))
	}
}
