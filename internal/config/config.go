package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Catalog selects the relational store backing the versioned catalog.
type Catalog struct {
	Driver string `toml:"driver"`
	// DSN is a file path for sqlite and a connection string for postgres.
	DSN string `toml:"dsn"`
}

// Run contains reconciliation settings for a single version pass.
type Run struct {
	Version         int `toml:"version"`
	PreviousVersion int `toml:"previous_version"`
	Workers         int `toml:"workers"`
	BatchSize       int `toml:"batch_size"`
	// Retry settings apply to transient source failures.
	RetryAttempts      int `toml:"retry_attempts"`
	RetryInitialMillis int `toml:"retry_initial_ms"`
	RetryMaxMillis     int `toml:"retry_max_ms"`
}

// Source describes one upstream source of truth. The order of the
// [[sources]] tables fixes the index of each source in hash and flag vectors.
type Source struct {
	Name              string  `toml:"name"`
	Kind              string  `toml:"kind"`
	URL               string  `toml:"url"`
	Token             string  `toml:"token"`
	Path              string  `toml:"path"`
	CatalogVersion    int     `toml:"catalog_version"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// Journal selects the resumption journal backend.
type Journal struct {
	Kind string `toml:"kind"`
	Dir  string `toml:"dir"`
}

// Export configures where version index objects are written.
type Export struct {
	Sink            string `toml:"sink"`
	Dir             string `toml:"dir"`
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`
	CredentialsFile string `toml:"credentials_file"`
}

// Metrics configures the status and metrics listener.
type Metrics struct {
	Bind string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for imgcat.
//
// Configuration sections:
//   - Paths: data and log directories
//   - Catalog: store driver and DSN
//   - Run: version numbers, worker pool size, and source retry bounds
//   - Sources: ordered upstream sources
//   - Skip: per-collection list of source names excluded from revision and retirement
//   - Journal: resumption journal backend
//   - Export: index object sink
//   - Metrics: status/metrics listener
//   - Logging: log format and level
type Config struct {
	Paths   Paths               `toml:"paths"`
	Catalog Catalog             `toml:"catalog"`
	Run     Run                 `toml:"run"`
	Sources []Source            `toml:"sources"`
	Skip    map[string][]string `toml:"skip"`
	Journal Journal             `toml:"journal"`
	Export  Export              `toml:"export"`
	Metrics Metrics             `toml:"metrics"`
	Logging Logging             `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("imgcat.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data, log, and journal directories, plus the
// export directory when the directory sink is selected.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir, c.Journal.Dir}
	if c.Export.Sink == ExportSinkDir {
		dirs = append(dirs, c.Export.Dir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SourceNames returns the configured source names in vector order.
func (c *Config) SourceNames() []string {
	names := make([]string, len(c.Sources))
	for i, src := range c.Sources {
		names[i] = src.Name
	}
	return names
}

// SkipVector reports, per source index, whether the source is skipped for the
// given collection.
func (c *Config) SkipVector(collection string) []bool {
	skip := make([]bool, len(c.Sources))
	names, ok := c.Skip[strings.ToLower(collection)]
	if !ok {
		return skip
	}
	for _, name := range names {
		for i, src := range c.Sources {
			if src.Name == name {
				skip[i] = true
			}
		}
	}
	return skip
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
