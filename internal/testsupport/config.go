package testsupport

import (
	"path/filepath"
	"testing"

	"imgcat/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The catalog is a SQLite file under the temp directory and the run targets
// version 1 with no sources unless options say otherwise.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Catalog.DSN = filepath.Join(base, "data", "catalog.db")
	cfgVal.Journal.Dir = filepath.Join(base, "journal")
	cfgVal.Export.Dir = filepath.Join(base, "export")
	cfgVal.Metrics.Bind = "127.0.0.1:0"
	cfgVal.Run.Version = 1
	cfgVal.Run.Workers = 2
	cfgVal.Run.RetryAttempts = 2
	cfgVal.Run.RetryInitialMillis = 1
	cfgVal.Run.RetryMaxMillis = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithVersion sets the version being reconciled and its predecessor.
func WithVersion(version, previous int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Run.Version = version
		b.cfg.Run.PreviousVersion = previous
	}
}

// WithSources appends sources in vector order.
func WithSources(sources ...config.Source) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sources = append(b.cfg.Sources, sources...)
	}
}

// WithManifestSources adds one manifest source per name, each reading
// <base>/<name>.yaml.
func WithManifestSources(names ...string) ConfigOption {
	return func(b *configBuilder) {
		for _, name := range names {
			b.cfg.Sources = append(b.cfg.Sources, config.Source{
				Name: name,
				Kind: config.SourceKindManifest,
				Path: filepath.Join(b.baseDir, name+".yaml"),
			})
		}
	}
}

// WithSkip marks sources as skipped for a collection.
func WithSkip(collection string, sources ...string) ConfigOption {
	return func(b *configBuilder) {
		if b.cfg.Skip == nil {
			b.cfg.Skip = make(map[string][]string)
		}
		b.cfg.Skip[collection] = append(b.cfg.Skip[collection], sources...)
	}
}

// WithJournalKind selects the resumption journal backend.
func WithJournalKind(kind string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Kind = kind
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
