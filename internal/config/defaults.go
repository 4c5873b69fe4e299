package config

const (
	defaultConfigPath         = "~/.config/imgcat/config.toml"
	defaultDataDir            = "~/.local/share/imgcat"
	defaultLogDir             = "~/.local/share/imgcat/logs"
	defaultCatalogDriver      = CatalogDriverSQLite
	defaultCatalogFile        = "catalog.db"
	defaultWorkers            = 4
	defaultBatchSize          = 100
	defaultRetryAttempts      = 3
	defaultRetryInitialMillis = 500
	defaultRetryMaxMillis     = 10000
	defaultJournalKind        = JournalKindFile
	defaultJournalSubdir      = "journal"
	defaultExportSink         = ExportSinkDir
	defaultExportSubdir       = "export"
	defaultMetricsBind        = "127.0.0.1:7491"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultSourceTimeout      = 60
	defaultSourceRate         = 10
)

// Catalog drivers.
const (
	CatalogDriverSQLite   = "sqlite"
	CatalogDriverPostgres = "postgres"
)

// Source kinds.
const (
	SourceKindHTTP     = "http"
	SourceKindManifest = "manifest"
	SourceKindCatalog  = "catalog"
)

// Journal kinds.
const (
	JournalKindFile   = "file"
	JournalKindBadger = "badger"
)

// Export sinks.
const (
	ExportSinkDir = "dir"
	ExportSinkGCS = "gcs"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Catalog: Catalog{
			Driver: defaultCatalogDriver,
		},
		Run: Run{
			Workers:            defaultWorkers,
			BatchSize:          defaultBatchSize,
			RetryAttempts:      defaultRetryAttempts,
			RetryInitialMillis: defaultRetryInitialMillis,
			RetryMaxMillis:     defaultRetryMaxMillis,
		},
		Journal: Journal{
			Kind: defaultJournalKind,
		},
		Export: Export{
			Sink: defaultExportSink,
		},
		Metrics: Metrics{
			Bind: defaultMetricsBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
