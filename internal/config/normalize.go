package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCatalog(); err != nil {
		return err
	}
	c.normalizeRun()
	if err := c.normalizeSources(); err != nil {
		return err
	}
	c.normalizeSkip()
	if err := c.normalizeJournal(); err != nil {
		return err
	}
	if err := c.normalizeExport(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Metrics.Bind = strings.TrimSpace(c.Metrics.Bind)
	if c.Metrics.Bind == "" {
		c.Metrics.Bind = defaultMetricsBind
	}
	return nil
}

func (c *Config) normalizeCatalog() error {
	c.Catalog.Driver = strings.ToLower(strings.TrimSpace(c.Catalog.Driver))
	if c.Catalog.Driver == "" {
		c.Catalog.Driver = defaultCatalogDriver
	}
	c.Catalog.DSN = strings.TrimSpace(c.Catalog.DSN)
	if c.Catalog.DSN == "" {
		if value, ok := os.LookupEnv("IMGCAT_CATALOG_DSN"); ok {
			c.Catalog.DSN = strings.TrimSpace(value)
		}
	}
	if c.Catalog.Driver != CatalogDriverSQLite {
		return nil
	}
	if c.Catalog.DSN == "" {
		c.Catalog.DSN = filepath.Join(c.Paths.DataDir, defaultCatalogFile)
	}
	var err error
	if c.Catalog.DSN, err = expandPath(c.Catalog.DSN); err != nil {
		return fmt.Errorf("catalog.dsn: %w", err)
	}
	return nil
}

func (c *Config) normalizeRun() {
	if c.Run.PreviousVersion == 0 && c.Run.Version > 1 {
		c.Run.PreviousVersion = c.Run.Version - 1
	}
	if c.Run.Workers <= 0 {
		c.Run.Workers = defaultWorkers
	}
	if c.Run.BatchSize <= 0 {
		c.Run.BatchSize = defaultBatchSize
	}
	if c.Run.RetryAttempts <= 0 {
		c.Run.RetryAttempts = defaultRetryAttempts
	}
	if c.Run.RetryInitialMillis <= 0 {
		c.Run.RetryInitialMillis = defaultRetryInitialMillis
	}
	if c.Run.RetryMaxMillis <= 0 {
		c.Run.RetryMaxMillis = defaultRetryMaxMillis
	}
}

func (c *Config) normalizeSources() error {
	for i := range c.Sources {
		src := &c.Sources[i]
		src.Name = strings.ToLower(strings.TrimSpace(src.Name))
		src.Kind = strings.ToLower(strings.TrimSpace(src.Kind))
		src.URL = strings.TrimRight(strings.TrimSpace(src.URL), "/")
		src.Token = strings.TrimSpace(src.Token)
		if src.Token == "" && src.Name != "" {
			envKey := strings.ToUpper(strings.ReplaceAll(src.Name, "-", "_")) + "_TOKEN"
			if value, ok := os.LookupEnv(envKey); ok {
				src.Token = strings.TrimSpace(value)
			}
		}
		if strings.TrimSpace(src.Path) != "" {
			var err error
			if src.Path, err = expandPath(strings.TrimSpace(src.Path)); err != nil {
				return fmt.Errorf("sources[%d].path: %w", i, err)
			}
		}
		if src.TimeoutSeconds <= 0 {
			src.TimeoutSeconds = defaultSourceTimeout
		}
		if src.RequestsPerSecond <= 0 {
			src.RequestsPerSecond = defaultSourceRate
		}
	}
	return nil
}

func (c *Config) normalizeSkip() {
	if len(c.Skip) == 0 {
		return
	}
	normalized := make(map[string][]string, len(c.Skip))
	for collection, names := range c.Skip {
		key := strings.ToLower(strings.TrimSpace(collection))
		if key == "" {
			continue
		}
		for _, name := range names {
			name = strings.ToLower(strings.TrimSpace(name))
			if name != "" {
				normalized[key] = append(normalized[key], name)
			}
		}
	}
	c.Skip = normalized
}

func (c *Config) normalizeJournal() error {
	c.Journal.Kind = strings.ToLower(strings.TrimSpace(c.Journal.Kind))
	if c.Journal.Kind == "" {
		c.Journal.Kind = defaultJournalKind
	}
	if strings.TrimSpace(c.Journal.Dir) == "" {
		c.Journal.Dir = filepath.Join(c.Paths.DataDir, defaultJournalSubdir)
	}
	var err error
	if c.Journal.Dir, err = expandPath(c.Journal.Dir); err != nil {
		return fmt.Errorf("journal.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeExport() error {
	c.Export.Sink = strings.ToLower(strings.TrimSpace(c.Export.Sink))
	if c.Export.Sink == "" {
		c.Export.Sink = defaultExportSink
	}
	c.Export.Bucket = strings.TrimSpace(c.Export.Bucket)
	c.Export.Prefix = strings.Trim(strings.TrimSpace(c.Export.Prefix), "/")
	if strings.TrimSpace(c.Export.Dir) == "" {
		c.Export.Dir = filepath.Join(c.Paths.DataDir, defaultExportSubdir)
	}
	var err error
	if c.Export.Dir, err = expandPath(c.Export.Dir); err != nil {
		return fmt.Errorf("export.dir: %w", err)
	}
	if strings.TrimSpace(c.Export.CredentialsFile) != "" {
		if c.Export.CredentialsFile, err = expandPath(strings.TrimSpace(c.Export.CredentialsFile)); err != nil {
			return fmt.Errorf("export.credentials_file: %w", err)
		}
	} else if value, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS"); ok {
		c.Export.CredentialsFile = strings.TrimSpace(value)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
